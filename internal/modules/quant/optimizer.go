package quant

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// penaltyWeight scales the quadratic penalty folding the sum-to-one
// constraint into the objective.
const penaltyWeight = 1000.0

// Optimizer finds the minimum-variance portfolio on the annualized
// covariance matrix. Optimization is advisory: any failure degrades to a nil
// result and never aborts an analysis.
type Optimizer struct {
	minimizer Minimizer
	log       zerolog.Logger
}

// NewOptimizer creates an optimizer backed by the given minimizer.
func NewOptimizer(minimizer Minimizer, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		minimizer: minimizer,
		log:       log.With().Str("component", "optimizer").Logger(),
	}
}

// MinimumVariance minimizes w'Sigma'w subject to weights in [0, 1] summing
// to 1, seeded at equal weights. currentVolatility anchors the improvement
// potential. Returns nil when the minimizer does not converge. A single-asset
// portfolio has nothing to optimize and also returns nil.
func (o *Optimizer) MinimumVariance(meanAnnual []float64, cov *mat.SymDense, currentVolatility float64) *OptimizationResult {
	n := len(meanAnnual)
	if n < 2 {
		return nil
	}

	bounds := make([][2]float64, n)
	for i := range bounds {
		bounds[i] = [2]float64{0, 1}
	}

	problem := MinimizeProblem{
		Objective: func(w []float64) float64 {
			variance := 0.0
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += w[i]
				for j := 0; j < n; j++ {
					variance += w[i] * w[j] * cov.At(i, j)
				}
			}
			return variance + penaltyWeight*(sum-1.0)*(sum-1.0)
		},
		Gradient: func(grad, w []float64) {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += w[i]
			}
			for i := 0; i < n; i++ {
				grad[i] = 2 * penaltyWeight * (sum - 1.0)
				for j := 0; j < n; j++ {
					grad[i] += 2 * cov.At(i, j) * w[j]
				}
			}
		},
		Bounds:  bounds,
		Initial: EqualWeights(n),
	}

	solution, err := o.minimizer.Minimize(problem)
	if err != nil {
		o.log.Warn().Err(err).Msg("Minimum-variance optimization failed")
		return nil
	}

	weights := NormalizeWeights(solution)

	variance := 0.0
	optReturn := 0.0
	for i := 0; i < n; i++ {
		optReturn += weights[i] * meanAnnual[i]
		for j := 0; j < n; j++ {
			variance += weights[i] * weights[j] * cov.At(i, j)
		}
	}
	volatility := math.Sqrt(math.Max(variance, 0))

	improvement := 0.0
	if currentVolatility > nearZero {
		improvement = (currentVolatility - volatility) / currentVolatility * 100
	}

	o.log.Debug().
		Float64("min_variance_volatility", volatility).
		Float64("improvement_potential", improvement).
		Msg("Minimum-variance optimization converged")

	return &OptimizationResult{
		Weights:              weights,
		Return:               optReturn,
		Volatility:           volatility,
		ImprovementPotential: improvement,
	}
}

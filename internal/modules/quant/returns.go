package quant

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sidnei-almeida/groq-finance-inference/pkg/formulas"
)

// weightSumTolerance is the maximum absolute deviation of a weight vector's
// sum from 1.0 before it is renormalized. Deviation within the tolerance is
// treated as floating point noise and left untouched.
const weightSumTolerance = 0.01

// nearZero guards divisions by quantities that are numerically zero.
const nearZero = 1e-10

// ReturnComputer derives the return matrix, annualized moments, and the
// weighted portfolio return series from a cleaned price table.
type ReturnComputer struct {
	riskFreeRate float64
	log          zerolog.Logger
}

// NewReturnComputer creates a return computer with the configured annual
// risk-free rate.
func NewReturnComputer(riskFreeRate float64, log zerolog.Logger) *ReturnComputer {
	return &ReturnComputer{
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "returns").Logger(),
	}
}

// Computed bundles everything downstream stages need.
type Computed struct {
	Returns      *ReturnSet
	Weights      []float64
	MeanAnnual   []float64     // Annualized mean return per symbol
	CovAnnual    *mat.SymDense // Annualized covariance matrix
	Portfolio    *ReturnSeries // Weighted portfolio return series
	AnnualReturn float64       // w . mu
	Volatility   float64       // Annualized std of the portfolio series
	Sharpe       *float64      // nil when volatility is numerically zero
}

// Compute validates the weight vector and derives returns and annualized
// statistics. A weight/symbol count mismatch is fatal; a weight sum off by
// more than the tolerance is corrected by renormalization.
func (rc *ReturnComputer) Compute(t *PriceTable, weights []float64) (*Computed, error) {
	n := t.NumSymbols()

	if weights == nil {
		weights = EqualWeights(n)
		rc.log.Debug().Int("symbols", n).Msg("No weights provided, using equal weights")
	} else {
		if len(weights) != n {
			return nil, &DimensionMismatchError{Weights: len(weights), Symbols: n}
		}
		sum := 0.0
		for _, w := range weights {
			sum += w
		}
		if math.Abs(sum-1.0) > weightSumTolerance {
			rc.log.Warn().Float64("sum", sum).Msg("Weights do not sum to 1.0, normalizing")
			weights = NormalizeWeights(weights)
		}
	}

	returns := computeReturnSet(t)
	rows := returns.NumRows()

	// Column-major moments
	meanAnnual := make([]float64, n)
	for i := 0; i < n; i++ {
		meanAnnual[i] = formulas.Mean(returns.Column(i)) * TradingDaysPerYear
	}

	data := mat.NewDense(rows, n, nil)
	for r, row := range returns.Rows {
		data.SetRow(r, row)
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)
	cov.ScaleSym(TradingDaysPerYear, cov)

	// Portfolio series: inner product of each return row with the weights
	portfolio := &ReturnSeries{
		Dates:  returns.Dates,
		Values: make([]float64, rows),
	}
	for r, row := range returns.Rows {
		v := 0.0
		for i, w := range weights {
			v += w * row[i]
		}
		portfolio.Values[r] = v
	}

	annualReturn := 0.0
	for i, w := range weights {
		annualReturn += w * meanAnnual[i]
	}

	// Sample variance is bilinear, so the annualized std of the weighted
	// series equals sqrt(w' Sigma w) on the annualized covariance.
	volatility := formulas.AnnualizedVolatility(portfolio.Values)

	var sharpe *float64
	if volatility > nearZero {
		s := (annualReturn - rc.riskFreeRate) / volatility
		sharpe = &s
	}

	rc.log.Debug().
		Int("observations", rows).
		Int("symbols", n).
		Float64("annual_return", annualReturn).
		Float64("volatility", volatility).
		Msg("Computed portfolio returns")

	return &Computed{
		Returns:      returns,
		Weights:      weights,
		MeanAnnual:   meanAnnual,
		CovAnnual:    cov,
		Portfolio:    portfolio,
		AnnualReturn: annualReturn,
		Volatility:   volatility,
		Sharpe:       sharpe,
	}, nil
}

// computeReturnSet derives period-over-period percentage returns. The first
// price row has no prior observation and is dropped.
func computeReturnSet(t *PriceTable) *ReturnSet {
	n := t.NumSymbols()
	rows := make([][]float64, 0, t.NumRows()-1)
	for r := 1; r < t.NumRows(); r++ {
		row := make([]float64, n)
		for c := 0; c < n; c++ {
			prev := t.Rows[r-1][c]
			if prev != 0 {
				row[c] = (t.Rows[r][c] - prev) / prev
			}
		}
		rows = append(rows, row)
	}
	return &ReturnSet{
		Symbols: t.Symbols,
		Dates:   append([]time.Time(nil), t.Dates[1:]...),
		Rows:    rows,
	}
}

// EqualWeights returns the 1/N weight vector for n symbols.
func EqualWeights(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0 / float64(n)
	}
	return weights
}

// NormalizeWeights divides each weight by the vector's sum so the result
// sums to 1.0. A zero-sum vector is returned unchanged.
func NormalizeWeights(weights []float64) []float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum) < nearZero {
		return weights
	}
	normalized := make([]float64, len(weights))
	for i, w := range weights {
		normalized[i] = w / sum
	}
	return normalized
}

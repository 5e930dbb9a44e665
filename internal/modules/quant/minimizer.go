package quant

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// GonumMinimizer solves bounded minimization problems with gradient descent,
// falling back to a derivative-free method when BFGS does not converge.
// Bounds are enforced by projecting candidate points inside the objective
// and gradient callbacks and again on the final solution.
type GonumMinimizer struct{}

// NewGonumMinimizer creates the default minimizer.
func NewGonumMinimizer() *GonumMinimizer {
	return &GonumMinimizer{}
}

// successStatuses are the convergence statuses accepted as a solution.
var successStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
}

// Minimize runs BFGS first and retries with Nelder-Mead when BFGS fails or
// stops without converging. The returned vector is projected to the bounds.
func (m *GonumMinimizer) Minimize(p MinimizeProblem) ([]float64, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return p.Objective(projectToBounds(x, p.Bounds))
		},
	}
	if p.Gradient != nil {
		problem.Grad = func(grad, x []float64) {
			p.Gradient(grad, projectToBounds(x, p.Bounds))
		}
	}

	result, err := optimize.Minimize(problem, p.Initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !successStatuses[result.Status] {
		result, err = optimize.Minimize(problem, p.Initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
		if !successStatuses[result.Status] {
			return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
		}
	}

	return projectToBounds(result.X, p.Bounds), nil
}

// projectToBounds clamps each coordinate to its [lower, upper] interval.
func projectToBounds(x []float64, bounds [][2]float64) []float64 {
	if len(bounds) == 0 {
		return x
	}
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(bounds[i][0], math.Min(bounds[i][1], x[i]))
	}
	return proj
}

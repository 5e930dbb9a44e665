package quant

import "context"

// MarketDataProvider supplies historical price data. FetchPrices may return
// a partially populated table (NaN for gaps); the cleaner deals with those.
// FetchBenchmark returns the benchmark's daily return series for beta.
type MarketDataProvider interface {
	FetchPrices(ctx context.Context, symbols []string, period string) (*PriceTable, error)
	FetchBenchmark(ctx context.Context, period string) (*ReturnSeries, error)
}

// MinimizeProblem describes a bounded minimization. The equality constraint
// (weights summing to 1) is folded into the objective as a penalty term by
// the caller; Bounds are enforced by projection.
type MinimizeProblem struct {
	Objective func(w []float64) float64
	Gradient  func(grad, w []float64)
	Bounds    [][2]float64
	Initial   []float64
}

// Minimizer is the injectable constrained-minimization capability behind the
// portfolio optimizer. Implementations return the solution vector or an
// error on non-convergence.
type Minimizer interface {
	Minimize(p MinimizeProblem) ([]float64, error)
}

// Package quant implements the quantitative analytics pipeline: price data
// cleaning, return and risk computation, distribution and diversification
// analysis, and mean-variance optimization. All stages are pure functions of
// their inputs; the only external I/O points are the two market data fetches
// performed at orchestration level.
package quant

import (
	"math"
	"time"
)

// Constants for annualization and data quality thresholds.
const (
	// TradingDaysPerYear scales daily statistics to annual terms. Mean and
	// covariance scale linearly; VaR/CVaR scale by its square root.
	TradingDaysPerYear = 252

	// MinObservations is the minimum row count for a full-quality analysis.
	// Fewer rows degrade quality but do not abort the pipeline.
	MinObservations = 30

	// MinBenchmarkOverlap is the minimum number of overlapping observations
	// required between portfolio and benchmark returns for beta.
	MinBenchmarkOverlap = 30
)

// validPeriods is the set of data periods the market data provider accepts.
var validPeriods = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

// ValidPeriod reports whether p is an accepted analysis period.
func ValidPeriod(p string) bool {
	return validPeriods[p]
}

// PriceTable is a time-aligned table of closing prices, one column per
// symbol. Before cleaning, math.NaN() marks missing observations. After
// cleaning no NaN remains and rows are chronologically ordered.
type PriceTable struct {
	Symbols []string
	Dates   []time.Time
	Rows    [][]float64 // len(Dates) rows x len(Symbols) columns
}

// NumRows returns the number of observations in the table.
func (t *PriceTable) NumRows() int {
	return len(t.Rows)
}

// NumSymbols returns the number of columns in the table.
func (t *PriceTable) NumSymbols() int {
	return len(t.Symbols)
}

// Column extracts a single symbol's price series by column index.
func (t *PriceTable) Column(i int) []float64 {
	col := make([]float64, len(t.Rows))
	for r, row := range t.Rows {
		col[r] = row[i]
	}
	return col
}

// ReturnSet is a matrix of period-over-period returns derived from a
// PriceTable. It has one fewer row than the price table (the first price row
// has no prior observation).
type ReturnSet struct {
	Symbols []string
	Dates   []time.Time
	Rows    [][]float64
}

// NumRows returns the number of return observations.
func (r *ReturnSet) NumRows() int {
	return len(r.Rows)
}

// Column extracts a single symbol's return series by column index.
func (r *ReturnSet) Column(i int) []float64 {
	col := make([]float64, len(r.Rows))
	for j, row := range r.Rows {
		col[j] = row[i]
	}
	return col
}

// ReturnSeries is a scalar return time series. Dates are carried so the
// portfolio series can be aligned with an independently fetched benchmark.
type ReturnSeries struct {
	Dates  []time.Time
	Values []float64
}

// OptimizationResult holds the minimum-variance solution.
type OptimizationResult struct {
	Weights    []float64 // Optimal weight per symbol, same order as input
	Return     float64   // Annualized return implied by the optimal weights
	Volatility float64   // Annualized volatility at the optimum
	// ImprovementPotential is (current_vol - min_vol) / current_vol as a
	// percentage.
	ImprovementPotential float64
}

// MetricsReport is the complete analysis output. Every metric is optional: a
// nil field means the metric's preconditions were not met ("unavailable"),
// never that it was omitted. Percentage fields hold whole-number percentages
// (12.34 means 12.34%).
type MetricsReport struct {
	AnnualReturn                   *float64 `json:"annual_return"`
	Volatility                     *float64 `json:"volatility"`
	SharpeRatio                    *float64 `json:"sharpe_ratio"`
	StartDate                      string   `json:"start_date"`
	EndDate                        string   `json:"end_date"`
	MaxDrawdown                    *float64 `json:"max_drawdown"`
	CalmarRatio                    *float64 `json:"calmar_ratio"`
	SortinoRatio                   *float64 `json:"sortino_ratio"`
	DownsideDeviation              *float64 `json:"downside_deviation"`
	VaR95                          *float64 `json:"var_95"`
	VaR99                          *float64 `json:"var_99"`
	VaR95Annualized                *float64 `json:"var_95_annualized"`
	VaR99Annualized                *float64 `json:"var_99_annualized"`
	CVaR95                         *float64 `json:"cvar_95"`
	CVaR99                         *float64 `json:"cvar_99"`
	CVaR95Annualized               *float64 `json:"cvar_95_annualized"`
	CVaR99Annualized               *float64 `json:"cvar_99_annualized"`
	Skewness                       *float64 `json:"skewness"`
	Kurtosis                       *float64 `json:"kurtosis"`
	WinRate                        *float64 `json:"win_rate"`
	BestDay                        *float64 `json:"best_day"`
	WorstDay                       *float64 `json:"worst_day"`
	MedianDailyReturn              *float64 `json:"median_daily_return"`
	ReturnStd                      *float64 `json:"return_std"`
	AvgCorrelation                 *float64 `json:"avg_correlation"`
	MinCorrelation                 *float64 `json:"min_correlation"`
	MaxCorrelation                 *float64 `json:"max_correlation"`
	ConcentrationHHI               *float64 `json:"concentration_hhi"`
	ConcentrationRatio             *float64 `json:"concentration_ratio"`
	Beta                           *float64 `json:"beta"`
	MinVarianceVolatility          *float64 `json:"min_variance_volatility"`
	MinVarianceReturn              *float64 `json:"min_variance_return"`
	VolatilityImprovementPotential *float64 `json:"volatility_improvement_potential"`
}

// fields returns pointers to every optional metric for sanitization.
func (r *MetricsReport) fields() []**float64 {
	return []**float64{
		&r.AnnualReturn, &r.Volatility, &r.SharpeRatio, &r.MaxDrawdown,
		&r.CalmarRatio, &r.SortinoRatio, &r.DownsideDeviation,
		&r.VaR95, &r.VaR99, &r.VaR95Annualized, &r.VaR99Annualized,
		&r.CVaR95, &r.CVaR99, &r.CVaR95Annualized, &r.CVaR99Annualized,
		&r.Skewness, &r.Kurtosis, &r.WinRate, &r.BestDay, &r.WorstDay,
		&r.MedianDailyReturn, &r.ReturnStd,
		&r.AvgCorrelation, &r.MinCorrelation, &r.MaxCorrelation,
		&r.ConcentrationHHI, &r.ConcentrationRatio, &r.Beta,
		&r.MinVarianceVolatility, &r.MinVarianceReturn,
		&r.VolatilityImprovementPotential,
	}
}

// Sanitize converts any non-finite metric to the unavailable marker (nil).
// This runs once before a report leaves the pipeline; NaN/Inf never cross
// the API boundary.
func (r *MetricsReport) Sanitize() {
	for _, f := range r.fields() {
		if *f != nil && (math.IsNaN(**f) || math.IsInf(**f, 0)) {
			*f = nil
		}
	}
}

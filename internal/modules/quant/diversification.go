package quant

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sidnei-almeida/groq-finance-inference/pkg/formulas"
)

// DiversificationAnalyzer measures how spread out the portfolio is: pairwise
// correlation structure, weight concentration, and market beta against the
// benchmark. None of its outputs are required for the report to succeed.
type DiversificationAnalyzer struct {
	log zerolog.Logger
}

// NewDiversificationAnalyzer creates a diversification analyzer.
func NewDiversificationAnalyzer(log zerolog.Logger) *DiversificationAnalyzer {
	return &DiversificationAnalyzer{log: log.With().Str("component", "diversification").Logger()}
}

// DiversificationResult holds correlation, concentration, and beta metrics.
// Correlation fields are nil for single-symbol portfolios; Beta is nil when
// the benchmark overlap is too small or the benchmark variance is zero.
type DiversificationResult struct {
	AvgCorrelation     *float64
	MinCorrelation     *float64
	MaxCorrelation     *float64
	ConcentrationHHI   *float64
	ConcentrationRatio *float64
	Beta               *float64
}

// Analyze computes correlation statistics from the per-symbol return matrix,
// concentration from the weights, and beta from the benchmark series. A nil
// benchmark simply leaves Beta nil.
func (da *DiversificationAnalyzer) Analyze(returns *ReturnSet, weights []float64, portfolio *ReturnSeries, benchmark *ReturnSeries) *DiversificationResult {
	result := &DiversificationResult{}

	da.correlations(returns, result)
	da.concentration(weights, result)
	result.Beta = da.beta(portfolio, benchmark)

	return result
}

// correlations summarizes the pairwise correlations between the symbols'
// return series. A single symbol has no pairs, so all three fields stay nil.
func (da *DiversificationAnalyzer) correlations(returns *ReturnSet, result *DiversificationResult) {
	n := len(returns.Symbols)
	if n < 2 || returns.NumRows() < 2 {
		return
	}

	cols := make([][]float64, n)
	for i := range cols {
		cols[i] = returns.Column(i)
	}

	sum := 0.0
	count := 0
	minC := formulas.Correlation(cols[0], cols[1])
	maxC := minC
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := formulas.Correlation(cols[i], cols[j])
			sum += c
			count++
			if c < minC {
				minC = c
			}
			if c > maxC {
				maxC = c
			}
		}
	}

	avg := sum / float64(count)
	result.AvgCorrelation = &avg
	result.MinCorrelation = &minC
	result.MaxCorrelation = &maxC
}

// concentration computes the Herfindahl-Hirschman index of the weights and
// its ratio to the perfectly diversified 1/N baseline.
func (da *DiversificationAnalyzer) concentration(weights []float64, result *DiversificationResult) {
	n := len(weights)
	if n == 0 {
		return
	}

	hhi := 0.0
	for _, w := range weights {
		hhi += w * w
	}
	ratio := hhi / (1.0 / float64(n))

	result.ConcentrationHHI = &hhi
	result.ConcentrationRatio = &ratio
}

// beta regresses the portfolio series against the benchmark over their
// date intersection: Cov(portfolio, benchmark) / Var(benchmark).
func (da *DiversificationAnalyzer) beta(portfolio, benchmark *ReturnSeries) *float64 {
	if benchmark == nil || portfolio == nil {
		return nil
	}

	benchByDate := make(map[time.Time]float64, len(benchmark.Dates))
	for i, d := range benchmark.Dates {
		benchByDate[d.UTC().Truncate(24*time.Hour)] = benchmark.Values[i]
	}

	var p, b []float64
	for i, d := range portfolio.Dates {
		if v, ok := benchByDate[d.UTC().Truncate(24*time.Hour)]; ok {
			p = append(p, portfolio.Values[i])
			b = append(b, v)
		}
	}

	if len(p) < MinBenchmarkOverlap {
		da.log.Debug().
			Int("overlap", len(p)).
			Int("required", MinBenchmarkOverlap).
			Msg("Benchmark overlap too small for beta")
		return nil
	}

	benchVar := formulas.Variance(b)
	if benchVar < nearZero {
		return nil
	}
	beta := formulas.Covariance(p, b) / benchVar
	return &beta
}

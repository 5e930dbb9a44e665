package quant

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/sidnei-almeida/groq-finance-inference/pkg/formulas"
)

// minDrawdownForCalmar is the smallest absolute max drawdown for which the
// Calmar ratio is still meaningful.
const minDrawdownForCalmar = 1e-4

// RiskAnalyzer computes tail and downside risk metrics from the portfolio
// return series. Every output is optional; a metric whose preconditions are
// not met comes back nil and never aborts the pipeline.
type RiskAnalyzer struct {
	riskFreeRate float64
	log          zerolog.Logger
}

// NewRiskAnalyzer creates a risk analyzer with the configured annual
// risk-free rate.
func NewRiskAnalyzer(riskFreeRate float64, log zerolog.Logger) *RiskAnalyzer {
	return &RiskAnalyzer{
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "risk").Logger(),
	}
}

// RiskResult holds drawdown, downside, and tail risk metrics. VaR and CVaR
// are reported both as raw daily values and annualized by sqrt(252).
type RiskResult struct {
	MaxDrawdown       *float64
	CalmarRatio       *float64
	SortinoRatio      *float64
	DownsideDeviation *float64

	VaR95            *float64
	VaR99            *float64
	VaR95Annualized  *float64
	VaR99Annualized  *float64
	CVaR95           *float64
	CVaR99           *float64
	CVaR95Annualized *float64
	CVaR99Annualized *float64
}

// Analyze derives all risk metrics from the daily portfolio returns and the
// already-annualized portfolio return.
func (ra *RiskAnalyzer) Analyze(portfolioReturns []float64, annualReturn float64) *RiskResult {
	result := &RiskResult{}
	if len(portfolioReturns) == 0 {
		return result
	}

	cumulative := formulas.CumulativeValue(portfolioReturns)
	result.MaxDrawdown = formulas.CalculateMaxDrawdown(cumulative)

	// Calmar degenerates when the drawdown is numerically zero.
	if result.MaxDrawdown != nil && math.Abs(*result.MaxDrawdown) > minDrawdownForCalmar {
		calmar := annualReturn / math.Abs(*result.MaxDrawdown)
		result.CalmarRatio = &calmar
	}

	result.DownsideDeviation, result.SortinoRatio = ra.downside(portfolioReturns, annualReturn)

	result.VaR95 = formulas.Quantile(portfolioReturns, 0.05)
	result.VaR99 = formulas.Quantile(portfolioReturns, 0.01)
	result.CVaR95 = conditionalValueAtRisk(portfolioReturns, result.VaR95)
	result.CVaR99 = conditionalValueAtRisk(portfolioReturns, result.VaR99)

	sqrtDays := math.Sqrt(TradingDaysPerYear)
	result.VaR95Annualized = scale(result.VaR95, sqrtDays)
	result.VaR99Annualized = scale(result.VaR99, sqrtDays)
	result.CVaR95Annualized = scale(result.CVaR95, sqrtDays)
	result.CVaR99Annualized = scale(result.CVaR99, sqrtDays)

	ra.log.Debug().
		Int("observations", len(portfolioReturns)).
		Msg("Computed risk metrics")

	return result
}

// downside computes the annualized downside deviation and the Sortino ratio.
// Both are unavailable when the series has no negative returns.
func (ra *RiskAnalyzer) downside(returns []float64, annualReturn float64) (*float64, *float64) {
	sumSq := 0.0
	count := 0
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			count++
		}
	}
	if count == 0 {
		return nil, nil
	}

	deviation := math.Sqrt(sumSq/float64(count)) * math.Sqrt(TradingDaysPerYear)
	var sortino *float64
	if deviation > nearZero {
		s := (annualReturn - ra.riskFreeRate) / deviation
		sortino = &s
	}
	return &deviation, sortino
}

// conditionalValueAtRisk is the mean of all returns at or below the VaR
// threshold (expected shortfall).
func conditionalValueAtRisk(returns []float64, threshold *float64) *float64 {
	if threshold == nil {
		return nil
	}
	sum := 0.0
	count := 0
	for _, r := range returns {
		if r <= *threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		return nil
	}
	mean := sum / float64(count)
	return &mean
}

func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	scaled := *v * factor
	return &scaled
}

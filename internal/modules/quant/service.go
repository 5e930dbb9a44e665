package quant

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/sidnei-almeida/groq-finance-inference/pkg/formulas"
)

// Stage identifies a pipeline phase for progress reporting.
type Stage string

// Pipeline stages in execution order.
const (
	StageFetching    Stage = "fetching"
	StageCleaning    Stage = "cleaning"
	StageComputing   Stage = "computing"
	StageAggregating Stage = "aggregating"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// ProgressFunc receives stage transitions as the pipeline runs. It may be
// nil when the caller does not track progress.
type ProgressFunc func(stage Stage, message string)

// AnalysisRequest is the input to a full portfolio analysis. Weights may be
// nil for an equal-weighted portfolio.
type AnalysisRequest struct {
	Symbols []string  `json:"symbols"`
	Weights []float64 `json:"weights,omitempty"`
	Period  string    `json:"period,omitempty"`
}

// Result is the outcome of a successful analysis. Warnings carry non-fatal
// degradations (low data quality, missing benchmark); Weights are the
// normalized weights the metrics were computed with.
type Result struct {
	Report   *MetricsReport `json:"metrics"`
	Symbols  []string       `json:"symbols"`
	Weights  []float64      `json:"weights"`
	Period   string         `json:"period"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Service orchestrates the analytics pipeline: fetch, clean, compute,
// analyze, optimize, aggregate. All market data I/O happens here; the stage
// components are pure.
type Service struct {
	provider        MarketDataProvider
	cleaner         *Cleaner
	returns         *ReturnComputer
	risk            *RiskAnalyzer
	distribution    *DistributionAnalyzer
	diversification *DiversificationAnalyzer
	optimizer       *Optimizer
	log             zerolog.Logger
}

// NewService wires the pipeline together with the configured annual
// risk-free rate.
func NewService(provider MarketDataProvider, riskFreeRate float64, log zerolog.Logger) *Service {
	return &Service{
		provider:        provider,
		cleaner:         NewCleaner(log),
		returns:         NewReturnComputer(riskFreeRate, log),
		risk:            NewRiskAnalyzer(riskFreeRate, log),
		distribution:    NewDistributionAnalyzer(log),
		diversification: NewDiversificationAnalyzer(log),
		optimizer:       NewOptimizer(NewGonumMinimizer(), log),
		log:             log.With().Str("component", "quant").Logger(),
	}
}

// Analyze runs the full pipeline for the request. Fatal conditions (no
// data, weight/symbol mismatch, nothing left after cleaning) return an
// error and no report; everything else degrades individual metrics to nil
// and surfaces a warning.
func (s *Service) Analyze(ctx context.Context, req AnalysisRequest, progress ProgressFunc) (*Result, error) {
	report := func(stage Stage, message string) {
		if progress != nil {
			progress(stage, message)
		}
	}
	fail := func(err error) (*Result, error) {
		report(StageFailed, err.Error())
		return nil, err
	}

	if len(req.Symbols) == 0 {
		return fail(fmt.Errorf("no symbols provided"))
	}
	period := req.Period
	if period == "" {
		period = "1y"
	}
	if !ValidPeriod(period) {
		return fail(fmt.Errorf("invalid period %q", period))
	}

	var warnings []string

	report(StageFetching, fmt.Sprintf("Fetching %s of price data for %d symbols", period, len(req.Symbols)))
	prices, err := s.provider.FetchPrices(ctx, req.Symbols, period)
	if err != nil {
		return fail(fmt.Errorf("fetching prices: %w", err))
	}
	if prices == nil || prices.NumRows() == 0 {
		return fail(ErrDataUnavailable)
	}

	report(StageCleaning, "Cleaning price data")
	cleaned, lowQuality, err := s.cleaner.Clean(prices)
	if err != nil {
		return fail(fmt.Errorf("cleaning prices: %w", err))
	}
	if lowQuality {
		warnings = append(warnings, fmt.Sprintf(
			"only %d observations available, at least %d recommended", cleaned.NumRows(), MinObservations))
	}

	report(StageComputing, "Computing returns and risk metrics")
	computed, err := s.returns.Compute(cleaned, req.Weights)
	if err != nil {
		return fail(err)
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	benchmark, err := s.provider.FetchBenchmark(ctx, period)
	if err != nil {
		s.log.Warn().Err(err).Msg("Benchmark fetch failed, beta unavailable")
		warnings = append(warnings, "benchmark data unavailable, beta not computed")
		benchmark = nil
	}

	riskResult := s.risk.Analyze(computed.Portfolio.Values, computed.AnnualReturn)
	distResult := s.distribution.Analyze(computed.Portfolio.Values)
	divResult := s.diversification.Analyze(computed.Returns, computed.Weights, computed.Portfolio, benchmark)
	var optResult *OptimizationResult
	if cleaned.NumSymbols() >= 2 {
		optResult = s.optimizer.MinimumVariance(computed.MeanAnnual, computed.CovAnnual, computed.Volatility)
		if optResult == nil {
			warnings = append(warnings, "minimum-variance optimization did not converge")
		}
	}

	report(StageAggregating, "Aggregating metrics report")
	metrics := s.buildReport(cleaned, computed, riskResult, distResult, divResult, optResult)
	metrics.Sanitize()

	report(StageDone, "Analysis complete")
	s.log.Info().
		Strs("symbols", cleaned.Symbols).
		Str("period", period).
		Int("observations", cleaned.NumRows()).
		Msg("Portfolio analysis complete")

	return &Result{
		Report:   metrics,
		Symbols:  cleaned.Symbols,
		Weights:  computed.Weights,
		Period:   period,
		Warnings: warnings,
	}, nil
}

// buildReport maps the stage outputs onto the wire-level report. Percentage
// metrics are scaled to whole-number percentages and rounded to two places;
// unitless shape and structure metrics keep three.
func (s *Service) buildReport(
	cleaned *PriceTable,
	computed *Computed,
	risk *RiskResult,
	dist *DistributionResult,
	div *DiversificationResult,
	opt *OptimizationResult,
) *MetricsReport {
	report := &MetricsReport{
		StartDate: cleaned.Dates[0].Format("2006-01-02"),
		EndDate:   cleaned.Dates[len(cleaned.Dates)-1].Format("2006-01-02"),
	}

	report.AnnualReturn = pct(&computed.AnnualReturn, 2)
	report.Volatility = pct(&computed.Volatility, 2)
	report.SharpeRatio = round(computed.Sharpe, 2)

	report.MaxDrawdown = pct(risk.MaxDrawdown, 2)
	report.CalmarRatio = round(risk.CalmarRatio, 2)
	report.SortinoRatio = round(risk.SortinoRatio, 2)
	report.DownsideDeviation = pct(risk.DownsideDeviation, 2)
	report.VaR95 = pctAbs(risk.VaR95, 2)
	report.VaR99 = pctAbs(risk.VaR99, 2)
	report.VaR95Annualized = pctAbs(risk.VaR95Annualized, 2)
	report.VaR99Annualized = pctAbs(risk.VaR99Annualized, 2)
	report.CVaR95 = pctAbs(risk.CVaR95, 2)
	report.CVaR99 = pctAbs(risk.CVaR99, 2)
	report.CVaR95Annualized = pctAbs(risk.CVaR95Annualized, 2)
	report.CVaR99Annualized = pctAbs(risk.CVaR99Annualized, 2)

	report.Skewness = round(dist.Skewness, 3)
	report.Kurtosis = round(dist.Kurtosis, 3)
	report.WinRate = pct(dist.WinRate, 2)
	report.BestDay = pct(dist.BestDay, 2)
	report.WorstDay = pct(dist.WorstDay, 2)
	report.MedianDailyReturn = pct(dist.MedianDailyReturn, 3)
	report.ReturnStd = pct(dist.ReturnStd, 2)

	report.AvgCorrelation = round(div.AvgCorrelation, 3)
	report.MinCorrelation = round(div.MinCorrelation, 3)
	report.MaxCorrelation = round(div.MaxCorrelation, 3)
	report.ConcentrationHHI = round(div.ConcentrationHHI, 3)
	report.ConcentrationRatio = round(div.ConcentrationRatio, 3)
	report.Beta = round(div.Beta, 3)

	if opt != nil {
		report.MinVarianceVolatility = pct(&opt.Volatility, 2)
		report.MinVarianceReturn = pct(&opt.Return, 2)
		report.VolatilityImprovementPotential = round(&opt.ImprovementPotential, 2)
	}

	return report
}

// pct converts a fraction to a whole-number percentage and rounds.
func pct(v *float64, decimals int) *float64 {
	if v == nil {
		return nil
	}
	p := formulas.Round(*v*100, decimals)
	return &p
}

// pctAbs converts a fraction to an unsigned whole-number percentage. Tail
// risk metrics are loss magnitudes, so the sign is dropped at the report
// boundary while the internal values stay signed for thresholding.
func pctAbs(v *float64, decimals int) *float64 {
	if v == nil {
		return nil
	}
	p := formulas.Round(math.Abs(*v)*100, decimals)
	return &p
}

// round rounds a unitless metric in place.
func round(v *float64, decimals int) *float64 {
	if v == nil {
		return nil
	}
	r := formulas.Round(*v, decimals)
	return &r
}

package quant

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves canned price tables and benchmarks.
type fakeProvider struct {
	prices       *PriceTable
	pricesErr    error
	benchmark    *ReturnSeries
	benchmarkErr error
}

func (f *fakeProvider) FetchPrices(_ context.Context, _ []string, _ string) (*PriceTable, error) {
	return f.prices, f.pricesErr
}

func (f *fakeProvider) FetchBenchmark(_ context.Context, _ string) (*ReturnSeries, error) {
	return f.benchmark, f.benchmarkErr
}

// noisyTable builds a deterministic two-symbol table with enough variance
// for every metric to be defined.
func noisyTable(n int) *PriceTable {
	dates := testDates(n)
	rows := make([][]float64, n)
	a, b := 100.0, 50.0
	for i := 0; i < n; i++ {
		rows[i] = []float64{a, b}
		a *= 1 + 0.001 + 0.01*math.Sin(float64(i))
		b *= 1 + 0.0005 + 0.008*math.Cos(float64(i)*1.3)
	}
	return &PriceTable{Symbols: []string{"AAA", "BBB"}, Dates: dates, Rows: rows}
}

func benchmarkFor(table *PriceTable) *ReturnSeries {
	values := make([]float64, table.NumRows()-1)
	for i := 1; i < table.NumRows(); i++ {
		prev := table.Rows[i-1][0]
		values[i-1] = (table.Rows[i][0] - prev) / prev
	}
	return &ReturnSeries{Dates: append([]time.Time(nil), table.Dates[1:]...), Values: values}
}

func newTestService(provider MarketDataProvider) *Service {
	return NewService(provider, 0.04, zerolog.Nop())
}

func TestService_FullAnalysis(t *testing.T) {
	table := noisyTable(120)
	svc := newTestService(&fakeProvider{prices: table, benchmark: benchmarkFor(table)})

	result, err := svc.Analyze(context.Background(), AnalysisRequest{
		Symbols: []string{"AAA", "BBB"},
		Period:  "1y",
	}, nil)

	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.Empty(t, result.Warnings)

	report := result.Report
	assert.Equal(t, "2024-01-02", report.StartDate)
	assert.NotEmpty(t, report.EndDate)

	require.NotNil(t, report.AnnualReturn)
	require.NotNil(t, report.Volatility)
	assert.Greater(t, *report.Volatility, 0.0)
	require.NotNil(t, report.SharpeRatio)
	require.NotNil(t, report.MaxDrawdown)
	require.NotNil(t, report.VaR95)
	require.NotNil(t, report.CVaR95)
	require.NotNil(t, report.WinRate)
	require.NotNil(t, report.AvgCorrelation)
	require.NotNil(t, report.ConcentrationHHI)
	assert.InDelta(t, 0.5, *report.ConcentrationHHI, 1e-9, "equal weights on two symbols")
	require.NotNil(t, report.Beta)
	require.NotNil(t, report.MinVarianceVolatility)

	sum := 0.0
	for _, w := range result.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

// crashTable builds a one-symbol table whose returns include a single -50%
// day and periodic -3% days, so the left tail dominates the quantiles.
func crashTable(n int) *PriceTable {
	dates := testDates(n)
	rows := make([][]float64, n)
	price := 100.0
	for i := 0; i < n; i++ {
		rows[i] = []float64{price}
		switch {
		case i == 60:
			price *= 0.5
		case i%20 == 5:
			price *= 0.97
		default:
			price *= 1.001
		}
	}
	return &PriceTable{Symbols: []string{"AAA"}, Dates: dates, Rows: rows}
}

func TestService_TailRiskReportedAsMagnitudes(t *testing.T) {
	table := crashTable(105)
	svc := newTestService(&fakeProvider{prices: table, benchmarkErr: errors.New("unavailable")})

	result, err := svc.Analyze(context.Background(), AnalysisRequest{
		Symbols: []string{"AAA"},
		Period:  "1y",
	}, nil)

	require.NoError(t, err)
	report := result.Report

	for name, v := range map[string]*float64{
		"var_95":             report.VaR95,
		"var_99":             report.VaR99,
		"var_95_annualized":  report.VaR95Annualized,
		"var_99_annualized":  report.VaR99Annualized,
		"cvar_95":            report.CVaR95,
		"cvar_99":            report.CVaR99,
		"cvar_95_annualized": report.CVaR95Annualized,
		"cvar_99_annualized": report.CVaR99Annualized,
	} {
		require.NotNil(t, v, name)
		assert.Greater(t, *v, 0.0, "%s is a loss magnitude", name)
	}

	assert.GreaterOrEqual(t, *report.CVaR99, *report.CVaR95,
		"the deeper tail cannot have a smaller expected shortfall")

	// Signed daily extremes keep their sign; only tail risk is unsigned.
	require.NotNil(t, report.WorstDay)
	assert.InDelta(t, -50.0, *report.WorstDay, 1e-9)
}

func TestService_RenormalizesWeights(t *testing.T) {
	table := noisyTable(90)
	svc := newTestService(&fakeProvider{prices: table, benchmark: benchmarkFor(table)})

	result, err := svc.Analyze(context.Background(), AnalysisRequest{
		Symbols: []string{"AAA", "BBB"},
		Weights: []float64{0.5, 0.6},
		Period:  "1y",
	}, nil)

	require.NoError(t, err)
	assert.InDelta(t, 0.5/1.1, result.Weights[0], 1e-9)
	assert.InDelta(t, 0.6/1.1, result.Weights[1], 1e-9)
}

func TestService_DimensionMismatchIsFatal(t *testing.T) {
	table := noisyTable(90)
	svc := newTestService(&fakeProvider{prices: table})

	var stages []Stage
	_, err := svc.Analyze(context.Background(), AnalysisRequest{
		Symbols: []string{"AAA", "BBB"},
		Weights: []float64{0.2, 0.3, 0.5},
		Period:  "1y",
	}, func(stage Stage, _ string) { stages = append(stages, stage) })

	var mismatch *DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, StageFailed, stages[len(stages)-1])
}

func TestService_MissingBenchmarkDegradesToWarning(t *testing.T) {
	table := noisyTable(90)
	svc := newTestService(&fakeProvider{
		prices:       table,
		benchmarkErr: errors.New("upstream down"),
	})

	result, err := svc.Analyze(context.Background(), AnalysisRequest{
		Symbols: []string{"AAA", "BBB"},
		Period:  "1y",
	}, nil)

	require.NoError(t, err)
	assert.Nil(t, result.Report.Beta)
	assert.NotEmpty(t, result.Warnings)
}

func TestService_NoDataIsFatal(t *testing.T) {
	svc := newTestService(&fakeProvider{prices: &PriceTable{Symbols: []string{"AAA"}}})

	_, err := svc.Analyze(context.Background(), AnalysisRequest{
		Symbols: []string{"AAA"},
		Period:  "1y",
	}, nil)

	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestService_InvalidPeriod(t *testing.T) {
	svc := newTestService(&fakeProvider{})

	_, err := svc.Analyze(context.Background(), AnalysisRequest{
		Symbols: []string{"AAA"},
		Period:  "7w",
	}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid period")
}

func TestService_EmptySymbols(t *testing.T) {
	svc := newTestService(&fakeProvider{})

	_, err := svc.Analyze(context.Background(), AnalysisRequest{Period: "1y"}, nil)
	require.Error(t, err)
}

func TestService_DefaultsPeriod(t *testing.T) {
	table := noisyTable(60)
	svc := newTestService(&fakeProvider{prices: table, benchmark: benchmarkFor(table)})

	result, err := svc.Analyze(context.Background(), AnalysisRequest{
		Symbols: []string{"AAA", "BBB"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "1y", result.Period)
}

func TestService_LowQualityWarning(t *testing.T) {
	table := noisyTable(MinObservations - 10)
	svc := newTestService(&fakeProvider{prices: table, benchmark: benchmarkFor(table)})

	result, err := svc.Analyze(context.Background(), AnalysisRequest{
		Symbols: []string{"AAA", "BBB"},
		Period:  "1mo",
	}, nil)

	require.NoError(t, err)
	assert.NotEmpty(t, result.Warnings)
}

func TestService_ReportsStagesInOrder(t *testing.T) {
	table := noisyTable(90)
	svc := newTestService(&fakeProvider{prices: table, benchmark: benchmarkFor(table)})

	var stages []Stage
	_, err := svc.Analyze(context.Background(), AnalysisRequest{
		Symbols: []string{"AAA", "BBB"},
		Period:  "1y",
	}, func(stage Stage, _ string) { stages = append(stages, stage) })

	require.NoError(t, err)
	assert.Equal(t, []Stage{StageFetching, StageCleaning, StageComputing, StageAggregating, StageDone}, stages)
}

func TestService_AnalysisIsDeterministic(t *testing.T) {
	table := noisyTable(120)
	svc := newTestService(&fakeProvider{prices: table, benchmark: benchmarkFor(table)})
	req := AnalysisRequest{Symbols: []string{"AAA", "BBB"}, Period: "1y"}

	first, err := svc.Analyze(context.Background(), req, nil)
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Report, second.Report, "same input must produce the same report")
}

func TestService_SanitizedReportHasNoNonFiniteValues(t *testing.T) {
	table := noisyTable(90)
	svc := newTestService(&fakeProvider{prices: table, benchmark: benchmarkFor(table)})

	result, err := svc.Analyze(context.Background(), AnalysisRequest{
		Symbols: []string{"AAA", "BBB"},
		Period:  "1y",
	}, nil)

	require.NoError(t, err)
	for _, f := range result.Report.fields() {
		if *f != nil {
			assert.False(t, math.IsNaN(**f))
			assert.False(t, math.IsInf(**f, 0))
		}
	}
}

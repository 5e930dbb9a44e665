package quant

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func priceTable(symbols []string, rows [][]float64) *PriceTable {
	return &PriceTable{Symbols: symbols, Dates: testDates(len(rows)), Rows: rows}
}

func TestReturnComputer_ComputesSimpleReturns(t *testing.T) {
	table := priceTable([]string{"AAA"}, [][]float64{
		{100}, {110}, {99},
	})

	rc := NewReturnComputer(0.04, zerolog.Nop())
	computed, err := rc.Compute(table, nil)

	require.NoError(t, err)
	require.Equal(t, 2, computed.Returns.NumRows())
	assert.InDelta(t, 0.10, computed.Returns.Rows[0][0], 1e-12)
	assert.InDelta(t, -0.10, computed.Returns.Rows[1][0], 1e-12)
	assert.Equal(t, table.Dates[1], computed.Returns.Dates[0],
		"first price row has no return and its date is dropped")
}

func TestReturnComputer_DefaultsToEqualWeights(t *testing.T) {
	table := priceTable([]string{"AAA", "BBB"}, [][]float64{
		{100, 50}, {101, 51}, {103, 50},
	})

	rc := NewReturnComputer(0.04, zerolog.Nop())
	computed, err := rc.Compute(table, nil)

	require.NoError(t, err)
	require.Len(t, computed.Weights, 2)
	assert.InDelta(t, 0.5, computed.Weights[0], 1e-12)
	assert.InDelta(t, 0.5, computed.Weights[1], 1e-12)
}

func TestReturnComputer_DimensionMismatchIsFatal(t *testing.T) {
	table := priceTable([]string{"AAA", "BBB"}, [][]float64{
		{100, 50}, {101, 51},
	})

	rc := NewReturnComputer(0.04, zerolog.Nop())
	_, err := rc.Compute(table, []float64{1.0})

	var mismatch *DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.Weights)
	assert.Equal(t, 2, mismatch.Symbols)
}

func TestReturnComputer_RenormalizesOutOfToleranceWeights(t *testing.T) {
	table := priceTable([]string{"AAA", "BBB"}, [][]float64{
		{100, 50}, {101, 51}, {103, 50},
	})

	rc := NewReturnComputer(0.04, zerolog.Nop())
	computed, err := rc.Compute(table, []float64{0.5, 0.6})

	require.NoError(t, err)
	assert.InDelta(t, 0.5/1.1, computed.Weights[0], 1e-9)
	assert.InDelta(t, 0.6/1.1, computed.Weights[1], 1e-9)
}

func TestReturnComputer_KeepsWeightsWithinTolerance(t *testing.T) {
	table := priceTable([]string{"AAA", "BBB"}, [][]float64{
		{100, 50}, {101, 51}, {103, 50},
	})

	rc := NewReturnComputer(0.04, zerolog.Nop())
	computed, err := rc.Compute(table, []float64{0.5, 0.505})

	require.NoError(t, err)
	assert.Equal(t, 0.5, computed.Weights[0], "within-tolerance sums are left alone")
	assert.Equal(t, 0.505, computed.Weights[1])
}

func TestReturnComputer_SharpeNilForFlatSeries(t *testing.T) {
	table := priceTable([]string{"AAA"}, [][]float64{
		{100}, {100}, {100}, {100},
	})

	rc := NewReturnComputer(0.04, zerolog.Nop())
	computed, err := rc.Compute(table, nil)

	require.NoError(t, err)
	assert.Equal(t, 0.0, computed.Volatility)
	assert.Nil(t, computed.Sharpe, "zero volatility makes Sharpe undefined")
}

func TestReturnComputer_PortfolioSeriesIsWeightedSum(t *testing.T) {
	table := priceTable([]string{"AAA", "BBB"}, [][]float64{
		{100, 100}, {110, 90},
	})

	rc := NewReturnComputer(0.04, zerolog.Nop())
	computed, err := rc.Compute(table, []float64{0.5, 0.5})

	require.NoError(t, err)
	require.Len(t, computed.Portfolio.Values, 1)
	// 0.5*0.10 + 0.5*(-0.10) = 0
	assert.InDelta(t, 0.0, computed.Portfolio.Values[0], 1e-12)
}

func TestNormalizeWeights_SumsToOne(t *testing.T) {
	cases := [][]float64{
		{0.5, 0.6},
		{1, 2, 3, 4},
		{0.2, 0.2, 0.2},
	}
	for _, weights := range cases {
		normalized := NormalizeWeights(weights)
		sum := 0.0
		for _, w := range normalized {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	}
}

func TestNormalizeWeights_ZeroSumUnchanged(t *testing.T) {
	weights := []float64{0.5, -0.5}
	assert.Equal(t, weights, NormalizeWeights(weights))
}

func TestEqualWeights(t *testing.T) {
	weights := EqualWeights(4)
	require.Len(t, weights, 4)
	for _, w := range weights {
		assert.InDelta(t, 0.25, w, 1e-12)
	}
}

func TestReturnComputer_ZeroPriorPriceYieldsZeroReturn(t *testing.T) {
	table := priceTable([]string{"AAA"}, [][]float64{
		{0}, {100}, {110},
	})

	rc := NewReturnComputer(0.04, zerolog.Nop())
	computed, err := rc.Compute(table, nil)

	require.NoError(t, err)
	assert.Equal(t, 0.0, computed.Returns.Rows[0][0])
	assert.False(t, math.IsInf(computed.Returns.Rows[0][0], 0))
}

func TestReturnComputer_AnnualizedMoments(t *testing.T) {
	// Alternating +1%/-1% has zero mean and a known sample variance.
	rows := make([][]float64, 0, 41)
	price := 100.0
	rows = append(rows, []float64{price})
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			price *= 1.01
		} else {
			price *= 0.99
		}
		rows = append(rows, []float64{price})
	}
	table := priceTable([]string{"AAA"}, rows)

	rc := NewReturnComputer(0.04, zerolog.Nop())
	computed, err := rc.Compute(table, nil)

	require.NoError(t, err)
	assert.InDelta(t, 0.0, computed.AnnualReturn, 0.01)
	assert.Greater(t, computed.Volatility, 0.0)
	require.NotNil(t, computed.Sharpe)
	assert.Less(t, *computed.Sharpe, 0.0, "near-zero return under a positive risk-free rate")
}

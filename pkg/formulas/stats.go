// Package formulas provides the scalar statistical primitives shared by the
// analytics pipeline. Functions that are undefined for their input (too few
// observations, zero variance) return nil rather than a sentinel value.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Covariance calculates the sample covariance between two equal-length series
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// Correlation calculates the Pearson correlation coefficient between two series
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// CalculateReturns converts prices to period-over-period percentage returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]; a zero previous price
// yields a zero return so no Inf enters downstream statistics.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// AnnualizedVolatility calculates annualized volatility from daily returns.
// Formula: Std Dev of Daily Returns x sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	return StdDev(dailyReturns) * math.Sqrt(252)
}

// Skewness calculates the sample skewness of the series, or nil when fewer
// than two observations (or zero variance) make it undefined.
func Skewness(data []float64) *float64 {
	if len(data) < 2 {
		return nil
	}
	s := stat.Skew(data, nil)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return nil
	}
	return &s
}

// ExcessKurtosis calculates the excess kurtosis of the series (normal
// distribution yields 0), or nil when it is undefined.
func ExcessKurtosis(data []float64) *float64 {
	if len(data) < 2 {
		return nil
	}
	k := stat.ExKurtosis(data, nil)
	if math.IsNaN(k) || math.IsInf(k, 0) {
		return nil
	}
	return &k
}

// Round rounds a value to the given number of decimal places.
func Round(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

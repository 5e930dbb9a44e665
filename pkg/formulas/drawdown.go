package formulas

// CalculateMaxDrawdown calculates the maximum drawdown from a value series
// (prices or cumulative portfolio value).
//
// Drawdown Formula:
//
//	Drawdown = (Peak Value - Current Value) / Peak Value
//	Max Drawdown = Maximum of all drawdowns
//
// Returns the maximum drawdown as a positive fraction (0.25 = 25% loss from
// peak) or nil when the series is too short.
func CalculateMaxDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, v := range values {
		if v > peak {
			peak = v
		}

		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return &maxDrawdown
}

// CumulativeValue builds the running product of (1 + return) for a return
// series, starting from 1.0. The result has the same length as the input.
func CumulativeValue(returns []float64) []float64 {
	cumulative := make([]float64, len(returns))
	value := 1.0
	for i, r := range returns {
		value *= 1 + r
		cumulative[i] = value
	}
	return cumulative
}

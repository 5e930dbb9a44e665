package quant

import (
	"github.com/rs/zerolog"

	"github.com/sidnei-almeida/groq-finance-inference/pkg/formulas"
)

// DistributionAnalyzer characterizes the shape of the daily portfolio return
// distribution.
type DistributionAnalyzer struct {
	log zerolog.Logger
}

// NewDistributionAnalyzer creates a distribution analyzer.
func NewDistributionAnalyzer(log zerolog.Logger) *DistributionAnalyzer {
	return &DistributionAnalyzer{log: log.With().Str("component", "distribution").Logger()}
}

// DistributionResult holds shape statistics of the daily return series.
// Skewness and Kurtosis are nil for degenerate (constant) series.
type DistributionResult struct {
	Skewness          *float64
	Kurtosis          *float64 // Excess kurtosis (normal = 0)
	WinRate           *float64 // Fraction of strictly positive days
	BestDay           *float64
	WorstDay          *float64
	MedianDailyReturn *float64
	ReturnStd         *float64 // Daily standard deviation
}

// Analyze computes the distribution statistics. Fewer than two observations
// leaves every field nil.
func (da *DistributionAnalyzer) Analyze(returns []float64) *DistributionResult {
	result := &DistributionResult{}
	if len(returns) < 2 {
		return result
	}

	result.Skewness = formulas.Skewness(returns)
	result.Kurtosis = formulas.ExcessKurtosis(returns)

	wins := 0
	best, worst := returns[0], returns[0]
	for _, r := range returns {
		if r > 0 {
			wins++
		}
		if r > best {
			best = r
		}
		if r < worst {
			worst = r
		}
	}
	winRate := float64(wins) / float64(len(returns))
	result.WinRate = &winRate
	result.BestDay = &best
	result.WorstDay = &worst

	result.MedianDailyReturn = formulas.Median(returns)
	std := formulas.StdDev(returns)
	result.ReturnStd = &std

	da.log.Debug().Int("observations", len(returns)).Msg("Computed distribution statistics")

	return result
}

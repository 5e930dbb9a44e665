package quant

import (
	"errors"
	"fmt"
)

// Fatal pipeline errors. Any of these aborts the analysis with no report;
// all other metric failures degrade their own fields only.
var (
	// ErrDataUnavailable signals that the market data provider returned no
	// usable data for the requested symbols.
	ErrDataUnavailable = errors.New("no market data available")

	// ErrInsufficientData signals that no usable rows survived cleaning.
	ErrInsufficientData = errors.New("no usable rows after cleaning")
)

// DimensionMismatchError signals that the supplied weight vector does not
// match the number of symbols.
type DimensionMismatchError struct {
	Weights int
	Symbols int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("weights count (%d) doesn't match symbols count (%d)", e.Weights, e.Symbols)
}

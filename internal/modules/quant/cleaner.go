package quant

import (
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Cleaner normalizes a raw price table: rows where every column is missing
// are dropped, remaining gaps are forward-filled then back-filled, and any
// row still holding a NaN afterwards is removed.
type Cleaner struct {
	log zerolog.Logger
}

// NewCleaner creates a new data cleaner.
func NewCleaner(log zerolog.Logger) *Cleaner {
	return &Cleaner{log: log.With().Str("component", "cleaner").Logger()}
}

// Clean returns the cleaned table and a low-data-quality flag (true when
// fewer than MinObservations rows survive). Zero surviving rows is fatal.
func (c *Cleaner) Clean(t *PriceTable) (*PriceTable, bool, error) {
	initialRows := t.NumRows()

	dates, rows := dropRows(t.Dates, t.Rows, allNaN)
	if removed := initialRows - len(rows); removed > 0 {
		c.log.Debug().Int("removed", removed).Msg("Dropped rows with no observations")
	}

	forwardFill(rows)
	backwardFill(rows)

	// Safety net: a column with no observations at all survives both fills
	// as NaN, so drop any row still incomplete.
	dates, rows = dropRows(dates, rows, anyNaN)

	if len(rows) == 0 {
		return nil, false, ErrInsufficientData
	}

	lowQuality := len(rows) < MinObservations
	if lowQuality {
		c.log.Warn().
			Int("rows", len(rows)).
			Int("recommended", MinObservations).
			Msg("Insufficient data points for full-quality analysis")
	}

	c.log.Debug().
		Int("rows_in", initialRows).
		Int("rows_out", len(rows)).
		Int("symbols", t.NumSymbols()).
		Msg("Cleaned price table")

	return &PriceTable{Symbols: t.Symbols, Dates: dates, Rows: rows}, lowQuality, nil
}

func allNaN(row []float64) bool {
	for _, v := range row {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

func anyNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// dropRows removes rows matching the predicate, keeping dates aligned.
func dropRows(dates []time.Time, rows [][]float64, drop func([]float64) bool) ([]time.Time, [][]float64) {
	keptDates := make([]time.Time, 0, len(dates))
	keptRows := make([][]float64, 0, len(rows))
	for i, row := range rows {
		if drop(row) {
			continue
		}
		keptDates = append(keptDates, dates[i])
		keptRows = append(keptRows, row)
	}
	return keptDates, keptRows
}

// forwardFill carries the last known value of each column forward over gaps.
func forwardFill(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	cols := len(rows[0])
	for c := 0; c < cols; c++ {
		last := math.NaN()
		for r := range rows {
			if math.IsNaN(rows[r][c]) {
				rows[r][c] = last
			} else {
				last = rows[r][c]
			}
		}
	}
}

// backwardFill fills leading gaps from the next known value of each column.
func backwardFill(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	cols := len(rows[0])
	for c := 0; c < cols; c++ {
		next := math.NaN()
		for r := len(rows) - 1; r >= 0; r-- {
			if math.IsNaN(rows[r][c]) {
				rows[r][c] = next
			} else {
				next = rows[r][c]
			}
		}
	}
}

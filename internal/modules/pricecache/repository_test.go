package pricecache

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/quant"
)

func setupTestRepo(t *testing.T) *Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.EnsureSchema())
	return repo
}

func sampleTable() *quant.PriceTable {
	return &quant.PriceTable{
		Symbols: []string{"AAA", "BBB"},
		Dates: []time.Time{
			time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		},
		Rows: [][]float64{{100, 50}, {101, 51}},
	}
}

func TestRepository_TableRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	table := sampleTable()

	repo.StoreTable(table.Symbols, "1y", table)
	got, ok := repo.GetTable(table.Symbols, "1y")

	require.True(t, ok)
	assert.Equal(t, table.Symbols, got.Symbols)
	assert.Equal(t, table.Rows, got.Rows)
	require.Len(t, got.Dates, 2)
	assert.True(t, table.Dates[0].Equal(got.Dates[0]))
}

func TestRepository_MissOnUnknownKey(t *testing.T) {
	repo := setupTestRepo(t)

	_, ok := repo.GetTable([]string{"ZZZ"}, "1y")
	assert.False(t, ok)
}

func TestRepository_KeyIncludesPeriodAndOrder(t *testing.T) {
	repo := setupTestRepo(t)
	table := sampleTable()
	repo.StoreTable(table.Symbols, "1y", table)

	_, ok := repo.GetTable(table.Symbols, "6mo")
	assert.False(t, ok, "a different period is a different cache entry")

	_, ok = repo.GetTable([]string{"BBB", "AAA"}, "1y")
	assert.False(t, ok, "column order follows request order, so order is part of the key")
}

func TestRepository_ExpiredEntryIsAMiss(t *testing.T) {
	repo := setupTestRepo(t)
	repo.SetTTL(-time.Minute)

	table := sampleTable()
	repo.StoreTable(table.Symbols, "1y", table)

	_, ok := repo.GetTable(table.Symbols, "1y")
	assert.False(t, ok)
}

func TestRepository_SeriesRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	series := &quant.ReturnSeries{
		Dates: []time.Time{
			time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		},
		Values: []float64{0.01, -0.02},
	}

	repo.StoreSeries("SPY", "1y", series)
	got, ok := repo.GetSeries("SPY", "1y")

	require.True(t, ok)
	assert.Equal(t, series.Values, got.Values)
}

func TestRepository_PurgeExpired(t *testing.T) {
	repo := setupTestRepo(t)
	table := sampleTable()

	repo.SetTTL(-time.Minute)
	repo.StoreTable([]string{"OLD"}, "1y", table)
	repo.SetTTL(time.Hour)
	repo.StoreTable([]string{"NEW"}, "1y", table)

	deleted, err := repo.PurgeExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, ok := repo.GetTable([]string{"NEW"}, "1y")
	assert.True(t, ok, "fresh entries must survive the purge")
}

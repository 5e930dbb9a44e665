// Package pricecache persists fetched market data so repeated analyses of
// the same portfolio do not hammer the upstream API. Payloads are stored as
// msgpack blobs with expiration timestamps.
package pricecache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/quant"
)

// Schema holds the cache table definitions.
const Schema = `
CREATE TABLE IF NOT EXISTS price_tables (
	cache_key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS benchmark_series (
	cache_key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_tables_expires ON price_tables(expires_at);
CREATE INDEX IF NOT EXISTS idx_benchmark_series_expires ON benchmark_series(expires_at);
`

// DefaultTTL is how long cached market data stays fresh. Daily closes only
// change once a day, but intraday fetches for short periods should not go
// stale for too long either.
const DefaultTTL = time.Hour

// Repository is the persistent price cache. A cache failure is never fatal:
// reads degrade to a miss and writes log and move on.
type Repository struct {
	db  *sql.DB
	ttl time.Duration
	log zerolog.Logger
}

// NewRepository creates a price cache over the cache database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		ttl: DefaultTTL,
		log: log.With().Str("component", "pricecache").Logger(),
	}
}

// SetTTL overrides the freshness window.
func (r *Repository) SetTTL(ttl time.Duration) {
	r.ttl = ttl
}

// EnsureSchema creates the cache tables.
func (r *Repository) EnsureSchema() error {
	_, err := r.db.Exec(Schema)
	return err
}

// cacheKey hashes the request identity. Symbol order is part of the key
// because the cached table's columns follow it.
func cacheKey(symbols []string, period string) string {
	sum := sha256.Sum256([]byte(strings.Join(symbols, ",") + "|" + period))
	return hex.EncodeToString(sum[:])
}

// GetTable returns a fresh cached price table, or (nil, false) on miss.
func (r *Repository) GetTable(symbols []string, period string) (*quant.PriceTable, bool) {
	blob, ok := r.get("price_tables", cacheKey(symbols, period))
	if !ok {
		return nil, false
	}
	var table quant.PriceTable
	if err := msgpack.Unmarshal(blob, &table); err != nil {
		r.log.Warn().Err(err).Msg("Failed to decode cached price table")
		return nil, false
	}
	return &table, true
}

// StoreTable caches a price table for the request that produced it.
func (r *Repository) StoreTable(symbols []string, period string, table *quant.PriceTable) {
	r.store("price_tables", cacheKey(symbols, period), table)
}

// GetSeries returns a fresh cached benchmark series, or (nil, false) on miss.
func (r *Repository) GetSeries(symbol, period string) (*quant.ReturnSeries, bool) {
	blob, ok := r.get("benchmark_series", cacheKey([]string{symbol}, period))
	if !ok {
		return nil, false
	}
	var series quant.ReturnSeries
	if err := msgpack.Unmarshal(blob, &series); err != nil {
		r.log.Warn().Err(err).Msg("Failed to decode cached benchmark series")
		return nil, false
	}
	return &series, true
}

// StoreSeries caches a benchmark return series.
func (r *Repository) StoreSeries(symbol, period string, series *quant.ReturnSeries) {
	r.store("benchmark_series", cacheKey([]string{symbol}, period), series)
}

func (r *Repository) get(table, key string) ([]byte, bool) {
	var blob []byte
	err := r.db.QueryRow(
		"SELECT data FROM "+table+" WHERE cache_key = ? AND expires_at > ?",
		key, time.Now().Unix(),
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		r.log.Warn().Err(err).Str("table", table).Msg("Cache read failed")
		return nil, false
	}
	return blob, true
}

func (r *Repository) store(table, key string, payload interface{}) {
	blob, err := msgpack.Marshal(payload)
	if err != nil {
		r.log.Warn().Err(err).Str("table", table).Msg("Failed to encode cache payload")
		return
	}
	expiresAt := time.Now().Add(r.ttl).Unix()
	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO "+table+" (cache_key, data, expires_at) VALUES (?, ?, ?)",
		key, blob, expiresAt,
	)
	if err != nil {
		r.log.Warn().Err(err).Str("table", table).Msg("Cache write failed")
	}
}

// PurgeExpired removes stale entries from both tables and returns the total
// number of rows deleted.
func (r *Repository) PurgeExpired() (int64, error) {
	now := time.Now().Unix()
	var total int64
	for _, table := range []string{"price_tables", "benchmark_series"} {
		result, err := r.db.Exec("DELETE FROM "+table+" WHERE expires_at < ?", now)
		if err != nil {
			return total, err
		}
		deleted, err := result.RowsAffected()
		if err != nil {
			return total, err
		}
		total += deleted
	}
	return total, nil
}

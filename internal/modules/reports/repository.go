// Package reports persists analysis runs and their stage logs so past
// results can be listed and re-read without re-fetching market data.
package reports

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sidnei-almeida/groq-finance-inference/internal/database"
	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/quant"
)

// ErrNotFound signals that no analysis exists for the requested id.
var ErrNotFound = errors.New("analysis not found")

// Analysis statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Schema holds the analysis table definitions.
const Schema = `
CREATE TABLE IF NOT EXISTS portfolio_analyses (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	symbols TEXT NOT NULL,
	weights TEXT,
	period TEXT NOT NULL,
	status TEXT NOT NULL,
	report TEXT,
	warnings TEXT,
	narrative TEXT,
	error TEXT
);
CREATE TABLE IF NOT EXISTS analysis_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	stage TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON portfolio_analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_logs_analysis ON analysis_logs(analysis_id);
`

// Analysis is one stored analysis run.
type Analysis struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	Symbols   []string             `json:"symbols"`
	Weights   []float64            `json:"weights,omitempty"`
	Period    string               `json:"period"`
	Status    string               `json:"status"`
	Report    *quant.MetricsReport `json:"metrics,omitempty"`
	Warnings  []string             `json:"warnings,omitempty"`
	Narrative string               `json:"ai_analysis,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// LogEntry is one stage transition of a run.
type LogEntry struct {
	CreatedAt time.Time `json:"created_at"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
}

// Repository stores analyses in the standard database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates an analysis repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("component", "reports").Logger()}
}

// EnsureSchema creates the analysis tables.
func (r *Repository) EnsureSchema() error {
	_, err := r.db.Exec(Schema)
	return err
}

// Create inserts a new running analysis and returns its id.
func (r *Repository) Create(symbols []string, weights []float64, period string) (string, error) {
	id := uuid.NewString()
	symbolsJSON, err := json.Marshal(symbols)
	if err != nil {
		return "", fmt.Errorf("failed to marshal symbols: %w", err)
	}
	var weightsJSON []byte
	if weights != nil {
		if weightsJSON, err = json.Marshal(weights); err != nil {
			return "", fmt.Errorf("failed to marshal weights: %w", err)
		}
	}

	_, err = r.db.Exec(
		`INSERT INTO portfolio_analyses (id, created_at, symbols, weights, period, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, time.Now().Unix(), string(symbolsJSON), nullable(weightsJSON), period, StatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create analysis: %w", err)
	}
	return id, nil
}

// Complete marks the analysis done and stores its result along with the
// generated narrative (may be empty).
func (r *Repository) Complete(id string, result *quant.Result, narrative string) error {
	reportJSON, err := json.Marshal(result.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	var warningsJSON []byte
	if len(result.Warnings) > 0 {
		if warningsJSON, err = json.Marshal(result.Warnings); err != nil {
			return fmt.Errorf("failed to marshal warnings: %w", err)
		}
	}
	weightsJSON, err := json.Marshal(result.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}

	res, err := r.db.Exec(
		`UPDATE portfolio_analyses SET status = ?, report = ?, warnings = ?, narrative = ?, weights = ? WHERE id = ?`,
		StatusDone, string(reportJSON), nullable(warningsJSON), narrative, string(weightsJSON), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete analysis: %w", err)
	}
	return requireRow(res)
}

// Fail marks the analysis failed with the error message.
func (r *Repository) Fail(id, message string) error {
	res, err := r.db.Exec(
		`UPDATE portfolio_analyses SET status = ?, error = ? WHERE id = ?`,
		StatusFailed, message, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark analysis failed: %w", err)
	}
	return requireRow(res)
}

// Get returns one analysis by id.
func (r *Repository) Get(id string) (*Analysis, error) {
	row := r.db.QueryRow(
		`SELECT id, created_at, symbols, weights, period, status, report, warnings, narrative, error
		 FROM portfolio_analyses WHERE id = ?`, id)
	analysis, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return analysis, nil
}

// List returns the most recent analyses, newest first. When symbols are
// given, only analyses containing every one of them are returned. The
// symbols column stores a JSON array, so containment is a quoted-substring
// match.
func (r *Repository) List(limit int, symbols []string) ([]*Analysis, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, created_at, symbols, weights, period, status, report, warnings, narrative, error
		 FROM portfolio_analyses`
	var args []interface{}
	for i, symbol := range symbols {
		if i == 0 {
			query += " WHERE symbols LIKE ?"
		} else {
			query += " AND symbols LIKE ?"
		}
		args = append(args, `%"`+symbol+`"%`)
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, analysis)
	}
	return analyses, rows.Err()
}

// AddLog appends a stage log line to a run.
func (r *Repository) AddLog(analysisID, stage, message string) error {
	_, err := r.db.Exec(
		`INSERT INTO analysis_logs (analysis_id, created_at, stage, message) VALUES (?, ?, ?, ?)`,
		analysisID, time.Now().Unix(), stage, message,
	)
	if err != nil {
		return fmt.Errorf("failed to add log: %w", err)
	}
	return nil
}

// GetLogs returns a run's stage log in insertion order.
func (r *Repository) GetLogs(analysisID string) ([]LogEntry, error) {
	rows, err := r.db.Query(
		`SELECT created_at, stage, message FROM analysis_logs WHERE analysis_id = ? ORDER BY id`,
		analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var createdAt int64
		var entry LogEntry
		if err := rows.Scan(&createdAt, &entry.Stage, &entry.Message); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PurgeOlderThan deletes analyses (and their logs) created before the cutoff
// and returns the number of analyses removed. Both deletes run in one
// transaction so a failure never leaves logs purged but analyses kept.
func (r *Repository) PurgeOlderThan(age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).Unix()

	var deleted int64
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`DELETE FROM analysis_logs WHERE analysis_id IN
			 (SELECT id FROM portfolio_analyses WHERE created_at < ?)`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to purge logs: %w", err)
		}

		result, err := tx.Exec(`DELETE FROM portfolio_analyses WHERE created_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to purge analyses: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Msg("Purged old analyses")
	}
	return deleted, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(s scanner) (*Analysis, error) {
	var (
		analysis  Analysis
		createdAt int64
		symbols   string
		weights   sql.NullString
		report    sql.NullString
		warnings  sql.NullString
		narrative sql.NullString
		errMsg    sql.NullString
	)
	err := s.Scan(&analysis.ID, &createdAt, &symbols, &weights, &analysis.Period,
		&analysis.Status, &report, &warnings, &narrative, &errMsg)
	if err != nil {
		return nil, err
	}

	analysis.CreatedAt = time.Unix(createdAt, 0).UTC()
	if err := json.Unmarshal([]byte(symbols), &analysis.Symbols); err != nil {
		return nil, fmt.Errorf("corrupt symbols column: %w", err)
	}
	if weights.Valid {
		if err := json.Unmarshal([]byte(weights.String), &analysis.Weights); err != nil {
			return nil, fmt.Errorf("corrupt weights column: %w", err)
		}
	}
	if report.Valid {
		if err := json.Unmarshal([]byte(report.String), &analysis.Report); err != nil {
			return nil, fmt.Errorf("corrupt report column: %w", err)
		}
	}
	if warnings.Valid {
		if err := json.Unmarshal([]byte(warnings.String), &analysis.Warnings); err != nil {
			return nil, fmt.Errorf("corrupt warnings column: %w", err)
		}
	}
	analysis.Narrative = narrative.String
	analysis.Error = errMsg.String
	return &analysis, nil
}

func nullable(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRepo implements ResultRepo on a local SQLite file.
type SQLiteRepo struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the quiz history database. WAL mode
// keeps a reader (the history command) from blocking the orchestrator's
// appends.
func OpenSQLite(dbPath string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepo{db: db}
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepo) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS quiz_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		quiz_id TEXT NOT NULL,
		variant TEXT NOT NULL,
		answer TEXT NOT NULL,
		score REAL NOT NULL,
		passed INTEGER NOT NULL,
		detail TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_session ON quiz_results(session_id);
	CREATE INDEX IF NOT EXISTS idx_results_variant ON quiz_results(variant);
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Append stores one completed attempt.
func (r *SQLiteRepo) Append(ctx context.Context, rec Record) error {
	query := `
	INSERT INTO quiz_results (session_id, quiz_id, variant, answer, score, passed, detail, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.SessionID, rec.QuizID, rec.Variant, rec.Answer,
		rec.Score, rec.Passed, rec.Detail, created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append quiz result: %w", err)
	}
	return nil
}

// BySession returns a session's attempts in insertion order.
func (r *SQLiteRepo) BySession(ctx context.Context, sessionID string) ([]Record, error) {
	query := `
	SELECT id, session_id, quiz_id, variant, answer, score, passed, detail, created_at
	FROM quiz_results WHERE session_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session results: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Recent returns the latest attempts across all sessions, newest first.
func (r *SQLiteRepo) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
	SELECT id, session_id, quiz_id, variant, answer, score, passed, detail, created_at
	FROM quiz_results ORDER BY id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent results: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Stats aggregates attempts per variant across all sessions.
func (r *SQLiteRepo) Stats(ctx context.Context) ([]VariantStats, error) {
	query := `
	SELECT variant, COUNT(*), SUM(passed), AVG(score)
	FROM quiz_results GROUP BY variant ORDER BY variant`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query variant stats: %w", err)
	}
	defer rows.Close()

	var out []VariantStats
	for rows.Next() {
		var s VariantStats
		if err := rows.Scan(&s.Variant, &s.Attempts, &s.Passes, &s.AvgScore); err != nil {
			return nil, fmt.Errorf("scan variant stats: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant stats: %w", err)
	}
	return out, nil
}

// Close releases the underlying database.
func (r *SQLiteRepo) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var rec Record
		var passed int
		var created int64
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.QuizID, &rec.Variant,
			&rec.Answer, &rec.Score, &passed, &rec.Detail, &created,
		); err != nil {
			return nil, fmt.Errorf("scan quiz result: %w", err)
		}
		rec.Passed = passed != 0
		rec.CreatedAt = time.Unix(created, 0)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quiz results: %w", err)
	}
	return out, nil
}

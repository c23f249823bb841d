// Package store persists quiz outcomes across sessions. The orchestrator
// appends one record per completed quiz; the history command reads them
// back per session and aggregated per variant.
package store

import (
	"context"
	"time"
)

// Record is one completed quiz attempt.
type Record struct {
	ID        int64
	SessionID string
	QuizID    string
	Variant   string

	// Answer is the learner's submission rendered as text.
	Answer string

	// Score is normalized to 0.0-1.0 regardless of the variant's native scale.
	Score  float64
	Passed bool

	// Detail is the variant-specific result JSON, kept verbatim.
	Detail string

	CreatedAt time.Time
}

// VariantStats aggregates attempts for one quiz variant.
type VariantStats struct {
	Variant  string
	Attempts int
	Passes   int
	AvgScore float64
}

// Accuracy is the pass rate, 0.0-1.0.
func (s VariantStats) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Passes) / float64(s.Attempts)
}

// ResultRepo is the persistence interface for quiz outcomes.
type ResultRepo interface {
	// Append stores one completed attempt.
	Append(ctx context.Context, rec Record) error

	// BySession returns a session's attempts in insertion order.
	BySession(ctx context.Context, sessionID string) ([]Record, error)

	// Recent returns the latest attempts across all sessions, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Stats aggregates attempts per variant across all sessions.
	Stats(ctx context.Context) ([]VariantStats, error)

	// Close releases the underlying database.
	Close() error
}

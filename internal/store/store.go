// Package store persists engagement facts and backfill run history.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/capstone-impacta/engagement-cli/internal/model"
	"github.com/capstone-impacta/engagement-cli/internal/route"
)

// FactStore defines the persistence interface for the gold fact tables.
type FactStore interface {
	// UpsertFacts applies recs to dest in one transaction. A row whose
	// (date, category) already exists has its numeric fields replaced.
	UpsertFacts(ctx context.Context, dest route.Destination, recs []model.Record) (int64, error)
	// LoadFacts returns every row of t ordered by date then category.
	LoadFacts(ctx context.Context, t model.Table) ([]model.FactRow, error)

	Migrate(ctx context.Context) error
	Close() error
}

// File outcomes recorded in the run log.
const (
	OutcomeLoaded  = "loaded"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Run statuses.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunAborted  = "aborted"
)

// FileEntry is one object's outcome within a backfill run.
type FileEntry struct {
	Key     string
	Table   string
	Outcome string
	Rows    int64
	Error   string
}

// RunResult is passed to RunLog.Finish.
type RunResult struct {
	Status string
	Files  int
	Loaded int
	Failed int
	Rows   int64
	Error  string
}

// RunEntry represents a row in backfill_runs.
type RunEntry struct {
	ID          string     `json:"id"`
	Prefix      string     `json:"prefix"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Files       int        `json:"files"`
	Loaded      int        `json:"loaded"`
	Failed      int        `json:"failed"`
	Rows        int64      `json:"rows"`
	Error       string     `json:"error,omitempty"`
}

// RunLog records backfill runs and per-file outcomes.
type RunLog interface {
	Start(ctx context.Context, prefix string) (string, error)
	RecordFile(ctx context.Context, runID string, f FileEntry) error
	Finish(ctx context.Context, runID string, res RunResult) error
	ListRuns(ctx context.Context, limit int) ([]RunEntry, error)
}

// RecordError names the record whose upsert failed.
type RecordError struct {
	Table  string
	Index  int
	Record model.Record
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("store: upsert %s: record %d (%s, %q): %v",
		e.Table, e.Index, e.Record.Date.Format(time.DateOnly), e.Record.Category, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// ConstraintViolation is an integrity error raised by the database. The
// upsert path never produces one for well-formed input, so callers treat
// it as fatal.
type ConstraintViolation struct {
	Table      string
	Constraint string
	Err        error
}

func (e *ConstraintViolation) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("store: constraint %s violated on %s: %v", e.Constraint, e.Table, e.Err)
	}
	return fmt.Sprintf("store: constraint violated on %s: %v", e.Table, e.Err)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// dedupe keeps the last record for each (date, category) key, preserving
// first-seen order.
func dedupe(recs []model.Record) []model.Record {
	pos := make(map[string]int, len(recs))
	out := make([]model.Record, 0, len(recs))
	for _, r := range recs {
		if i, ok := pos[r.Key()]; ok {
			out[i] = r
			continue
		}
		pos[r.Key()] = len(out)
		out = append(out, r)
	}
	return out
}

// NopRunLog discards run history.
type NopRunLog struct{}

func (NopRunLog) Start(context.Context, string) (string, error) { return "", nil }
func (NopRunLog) RecordFile(context.Context, string, FileEntry) error { return nil }
func (NopRunLog) Finish(context.Context, string, RunResult) error { return nil }
func (NopRunLog) ListRuns(context.Context, int) ([]RunEntry, error) { return nil, nil }

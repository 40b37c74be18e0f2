// Package backfill loads every eligible object under a prefix into the fact
// tables, isolating failures to the file that caused them.
package backfill

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/capstone-impacta/engagement-cli/internal/fetcher"
	"github.com/capstone-impacta/engagement-cli/internal/metrics"
	"github.com/capstone-impacta/engagement-cli/internal/resilience"
	"github.com/capstone-impacta/engagement-cli/internal/route"
	"github.com/capstone-impacta/engagement-cli/internal/store"
)

// DefaultSuffix is the key suffix eligible for ingestion.
const DefaultSuffix = ".csv"

// Options configures a backfill run.
type Options struct {
	Prefix string
	Suffix string // defaults to DefaultSuffix
}

// FileFailure is a file that could not be loaded. Its records were not applied.
type FileFailure struct {
	Key string
	Err error
}

// Summary aggregates the outcome of a run.
type Summary struct {
	RunID    string
	Files    int // objects listed
	Loaded   int
	Skipped  int
	Failed   int
	Rows     int64
	Failures []FileFailure
	Elapsed  time.Duration
}

// Engine orchestrates list, fetch, parse, route and load for each object.
type Engine struct {
	objects fetcher.ObjectStore
	facts   store.FactStore
	runs    store.RunLog
	opts    Options
}

// NewEngine creates a backfill engine. A nil run log discards history.
func NewEngine(objects fetcher.ObjectStore, facts store.FactStore, runs store.RunLog, opts Options) *Engine {
	if runs == nil {
		runs = store.NopRunLog{}
	}
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}
	return &Engine{objects: objects, facts: facts, runs: runs, opts: opts}
}

// IsFatal reports whether err must abort the whole run rather than just the
// current file.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *resilience.ConnectivityError
	if errors.As(err, &ce) {
		return true
	}
	var cv *store.ConstraintViolation
	if errors.As(err, &cv) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Run processes every object under the prefix sequentially. File-level
// errors are collected in the summary; the returned error is non-nil only
// when the run was aborted.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	log := zap.L().With(zap.String("component", "backfill.engine"), zap.String("prefix", e.opts.Prefix))
	start := time.Now()
	sum := &Summary{}

	runID, err := e.runs.Start(ctx, e.opts.Prefix)
	if err != nil {
		return sum, resilience.AsConnectivity("backfill: start run", err)
	}
	sum.RunID = runID
	log = log.With(zap.String("run_id", runID))
	log.Info("backfill started")

	abort := func(err error) (*Summary, error) {
		sum.Elapsed = time.Since(start)
		log.Error("backfill aborted", zap.Error(err), zap.Int("files", sum.Files))
		e.finish(ctx, log, sum, store.RunAborted, err)
		return sum, err
	}

	for obj, err := range e.objects.List(ctx, e.opts.Prefix) {
		if err != nil {
			return abort(eris.Wrapf(err, "backfill: list %s", e.opts.Prefix))
		}
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		sum.Files++

		fileLog := log.With(zap.String("key", obj.Key))
		if !strings.HasSuffix(obj.Key, e.opts.Suffix) {
			fileLog.Debug("skipping object without eligible suffix")
			sum.Skipped++
			metrics.FilesTotal.WithLabelValues(store.OutcomeSkipped).Inc()
			e.record(ctx, fileLog, runID, store.FileEntry{Key: obj.Key, Outcome: store.OutcomeSkipped})
			continue
		}

		dest := route.Resolve(obj.Key)
		if !dest.Matched {
			fileLog.Warn("key matches no routing pattern; loading into faculty table",
				zap.String("pattern", route.NetworkPattern))
		}

		rows, err := e.loadFile(ctx, obj.Key, dest)
		if err != nil {
			e.record(ctx, fileLog, runID, store.FileEntry{Key: obj.Key, Table: dest.TableName, Outcome: store.OutcomeFailed, Error: err.Error()})
			metrics.FilesTotal.WithLabelValues(store.OutcomeFailed).Inc()
			sum.Failed++
			sum.Failures = append(sum.Failures, FileFailure{Key: obj.Key, Err: err})
			if IsFatal(err) {
				return abort(err)
			}
			fileLog.Warn("file failed; continuing", zap.Error(err))
			continue
		}

		sum.Loaded++
		sum.Rows += rows
		metrics.FilesTotal.WithLabelValues(store.OutcomeLoaded).Inc()
		metrics.RowsUpserted.WithLabelValues(dest.TableName).Add(float64(rows))
		e.record(ctx, fileLog, runID, store.FileEntry{Key: obj.Key, Table: dest.TableName, Outcome: store.OutcomeLoaded, Rows: rows})
		fileLog.Info("file loaded", zap.String("table", dest.TableName), zap.Int64("rows", rows))
	}

	sum.Elapsed = time.Since(start)
	metrics.BackfillDuration.Observe(sum.Elapsed.Seconds())
	metrics.LastBackfillSuccess.SetToCurrentTime()
	e.finish(ctx, log, sum, store.RunComplete, nil)

	log.Info("backfill complete",
		zap.Int("files", sum.Files),
		zap.Int("loaded", sum.Loaded),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Int64("rows", sum.Rows),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

// loadFile fetches, parses and upserts one object in a single transaction.
func (e *Engine) loadFile(ctx context.Context, key string, dest route.Destination) (int64, error) {
	data, err := e.objects.Fetch(ctx, key)
	if err != nil {
		return 0, err
	}
	f, err := fetcher.ParseCSV(key, data)
	if err != nil {
		return 0, err
	}
	recs, err := f.Records(dest.CategoryColumn)
	if err != nil {
		return 0, err
	}
	return e.facts.UpsertFacts(ctx, dest, recs)
}

func (e *Engine) record(ctx context.Context, log *zap.Logger, runID string, f store.FileEntry) {
	if err := e.runs.RecordFile(ctx, runID, f); err != nil {
		log.Warn("failed to record file outcome", zap.Error(err))
	}
}

func (e *Engine) finish(ctx context.Context, log *zap.Logger, sum *Summary, status string, cause error) {
	res := store.RunResult{
		Status: status,
		Files:  sum.Files,
		Loaded: sum.Loaded,
		Failed: sum.Failed,
		Rows:   sum.Rows,
	}
	if cause != nil {
		res.Error = cause.Error()
	}
	// The run context may already be cancelled.
	if err := e.runs.Finish(context.WithoutCancel(ctx), sum.RunID, res); err != nil {
		log.Warn("failed to record run completion", zap.Error(err))
	}
}

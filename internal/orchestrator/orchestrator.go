// Package orchestrator drives one sync run end to end: schema discovery,
// partition setup, and the batch loop with its read, write, checkpoint
// cadence. The checkpoint commits only after the sink has accepted a
// batch, so a crash at any point re-reads at most one batch.
package orchestrator

import (
	"context"
	"time"

	"github.com/qq940500529/oracle-feishu-sync/internal/checkpoint"
	"github.com/qq940500529/oracle-feishu-sync/internal/history"
	"github.com/qq940500529/oracle-feishu-sync/internal/logging"
	"github.com/qq940500529/oracle-feishu-sync/internal/notify"
	"github.com/qq940500529/oracle-feishu-sync/internal/progress"
	"github.com/qq940500529/oracle-feishu-sync/internal/source"
)

// Reader is the source surface the orchestrator reads from.
type Reader interface {
	DescribeSchema(ctx context.Context) (*source.Schema, error)
	CountPending(ctx context.Context, schema *source.Schema, since any) (int64, error)
	Batches(ctx context.Context, schema *source.Schema, since any) (<-chan source.Batch, error)
}

// Writer is the sink surface, implemented by the partition manager.
type Writer interface {
	EnsurePartition(ctx context.Context, tableID string, seq int) error
	WriteBatch(ctx context.Context, rows []source.Row) (int, error)
	Current() (tableID string, seq int, rowCount int)
	TablesCreated() int
}

// Options carries the optional collaborators of a run.
type Options struct {
	History     *history.Store
	Notifier    *notify.Notifier
	Tracker     *progress.Tracker
	SourceTable string
}

// Result summarizes a completed run.
type Result struct {
	RunID         string
	Mode          string
	Records       int64
	TablesCreated int
	Duration      time.Duration
	SyncValue     any
}

// Orchestrator runs syncs.
type Orchestrator struct {
	reader Reader
	writer Writer
	store  *checkpoint.Store
	opts   Options
}

// New builds an orchestrator. Options fields may be left zero.
func New(reader Reader, writer Writer, store *checkpoint.Store, opts Options) *Orchestrator {
	return &Orchestrator{reader: reader, writer: writer, store: store, opts: opts}
}

// Run executes one sync. With full set, any existing checkpoint is
// discarded and the whole table is re-read into a fresh partition
// sequence. The returned error is the run's terminal failure; the
// checkpoint always reflects the last batch the sink accepted.
func (o *Orchestrator) Run(ctx context.Context, full bool) (*Result, error) {
	start := time.Now()

	if full {
		if err := o.store.Reset(); err != nil {
			return nil, err
		}
	}
	cp, err := o.store.Load()
	if err != nil {
		return nil, err
	}

	since := cp.LastSyncValue
	mode := "incremental"
	if since == nil {
		mode = "full"
	}
	logging.Info("Starting %s sync (already synced: %d records)", mode, cp.TotalRecordsSynced)

	schema, err := o.reader.DescribeSchema(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := o.reader.CountPending(ctx, schema, since)
	if err != nil {
		return nil, err
	}
	logging.Info("%d rows pending", pending)

	runID := o.startRun(ctx, mode, pending)

	if o.opts.Tracker != nil {
		o.opts.Tracker.SetTotal(pending)
	}

	if err := o.writer.EnsurePartition(ctx, cp.CurrentTableID, cp.CurrentTableSeq); err != nil {
		return nil, o.failRun(ctx, runID, cp, start, err)
	}

	if err := o.batchLoop(ctx, schema, since, cp); err != nil {
		return nil, o.failRun(ctx, runID, cp, start, err)
	}

	result := &Result{
		RunID:         runID,
		Mode:          mode,
		Records:       cp.TotalRecordsSynced,
		TablesCreated: o.writer.TablesCreated(),
		Duration:      time.Since(start),
		SyncValue:     cp.LastSyncValue,
	}
	o.completeRun(ctx, result)
	return result, nil
}

// batchLoop reads batches and writes each one before committing the
// checkpoint. An error anywhere leaves the checkpoint at the last
// accepted batch.
func (o *Orchestrator) batchLoop(ctx context.Context, schema *source.Schema, since any, cp *checkpoint.Checkpoint) error {
	batches, err := o.reader.Batches(ctx, schema, since)
	if err != nil {
		return err
	}

	var runOffset int64
	for batch := range batches {
		if batch.Err != nil {
			return batch.Err
		}
		if len(batch.Rows) > 0 {
			written, err := o.writer.WriteBatch(ctx, batch.Rows)
			if err != nil {
				return err
			}

			if o.opts.Tracker != nil {
				o.opts.Tracker.Add(int64(written))
			}

			tableID, seq, _ := o.writer.Current()
			runOffset += int64(written)
			if batch.SyncValue != nil {
				cp.LastSyncValue = batch.SyncValue
			}
			cp.TotalRecordsSynced += int64(written)
			cp.CurrentTableID = tableID
			cp.CurrentTableSeq = seq
			cp.LastBatchOffset = runOffset
			cp.RecordBatch(int64(written), batch.SyncValue)

			if err := o.store.Commit(cp); err != nil {
				return err
			}
		}
		if batch.Done {
			break
		}
	}
	return nil
}

func (o *Orchestrator) startRun(ctx context.Context, mode string, pending int64) string {
	var runID string
	if o.opts.History != nil {
		id, err := o.opts.History.StartRun(ctx, mode)
		if err != nil {
			logging.Warn("Failed to record run start: %v", err)
		} else {
			runID = id
		}
	}
	if o.opts.Notifier != nil {
		if err := o.opts.Notifier.SyncStarted(runID, o.opts.SourceTable, pending); err != nil {
			logging.Warn("Start notification failed: %v", err)
		}
	}
	return runID
}

func (o *Orchestrator) completeRun(ctx context.Context, result *Result) {
	if o.opts.Tracker != nil {
		o.opts.Tracker.Finish()
	}
	if o.opts.History != nil && result.RunID != "" {
		if err := o.opts.History.CompleteRun(ctx, result.RunID, history.StatusCompleted,
			result.Records, result.TablesCreated, nil); err != nil {
			logging.Warn("Failed to record run completion: %v", err)
		}
	}
	if o.opts.Notifier != nil {
		if err := o.opts.Notifier.SyncCompleted(result.RunID, result.Duration,
			result.Records, result.TablesCreated); err != nil {
			logging.Warn("Completion notification failed: %v", err)
		}
	}
	logging.Info("Sync complete: %d records in %s", result.Records, result.Duration.Round(time.Second))
}

// failRun records the failure and passes the original error through.
func (o *Orchestrator) failRun(ctx context.Context, runID string, cp *checkpoint.Checkpoint, start time.Time, runErr error) error {
	duration := time.Since(start)
	logging.Error("Sync failed after %s: %v", duration.Round(time.Second), runErr)

	if o.opts.History != nil && runID != "" {
		// Recording may itself fail on cancellation; use a fresh context.
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := o.opts.History.CompleteRun(recordCtx, runID, history.StatusFailed,
			cp.TotalRecordsSynced, o.writer.TablesCreated(), runErr); err != nil {
			logging.Warn("Failed to record run failure: %v", err)
		}
	}
	if o.opts.Notifier != nil {
		if err := o.opts.Notifier.SyncFailed(runID, runErr, duration); err != nil {
			logging.Warn("Failure notification failed: %v", err)
		}
	}
	return runErr
}

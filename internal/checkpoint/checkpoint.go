// Package checkpoint persists sync progress as a small JSON document so
// an interrupted run can resume exactly where it stopped. Writes are
// atomic (temp file, fsync, rename); a missing or corrupt file yields a zero
// checkpoint rather than an error, which forces a full re-sync.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/qq940500529/oracle-feishu-sync/internal/logging"
	"github.com/qq940500529/oracle-feishu-sync/internal/syncerr"
)

// maxHistoryEntries bounds the sync_history ring kept in the checkpoint.
const maxHistoryEntries = 100

// HistoryEntry records one committed batch in the checkpoint history ring.
type HistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Records   int64  `json:"records"`
	SyncValue any    `json:"sync_value,omitempty"`
}

// Checkpoint is the persisted resume state for one source table.
type Checkpoint struct {
	// LastSyncValue is the high-water mark of the sync column from the
	// last committed batch. Temporal values are stored as epoch
	// milliseconds, numeric values as numbers.
	LastSyncValue      any            `json:"last_sync_value"`
	TotalRecordsSynced int64          `json:"total_records_synced"`
	CurrentTableSeq    int            `json:"current_table_sequence"`
	CurrentTableID     string         `json:"current_table_id"`
	LastBatchOffset    int64          `json:"last_batch_offset"`
	LastSyncTime       string         `json:"last_sync_time"`
	SyncHistory        []HistoryEntry `json:"sync_history"`
}

// IsZero reports whether the checkpoint carries no resume state.
func (c *Checkpoint) IsZero() bool {
	return c.LastSyncValue == nil && c.TotalRecordsSynced == 0 && c.CurrentTableID == ""
}

// Store reads and writes checkpoints at a fixed path.
type Store struct {
	path string
}

// NewStore returns a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the checkpoint file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the checkpoint from disk. A missing file returns a zero
// checkpoint. A file that cannot be parsed also returns a zero
// checkpoint, with a warning, so the sync restarts from scratch instead
// of failing.
func (s *Store) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Checkpoint{}, nil
		}
		return nil, syncerr.Wrap(syncerr.KindCheckpoint, "read checkpoint", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		logging.Warn("Checkpoint file %s is corrupt (%v), starting from scratch", s.path, err)
		return &Checkpoint{}, nil
	}
	return &cp, nil
}

// Commit writes the checkpoint atomically. The write goes to a temp file
// in the same directory, is flushed to disk, then renamed into place so a
// crash mid-write can never leave a truncated checkpoint behind.
func (s *Store) Commit(cp *Checkpoint) error {
	cp.LastSyncTime = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return syncerr.Wrap(syncerr.KindCheckpoint, "marshal checkpoint", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return syncerr.Wrap(syncerr.KindCheckpoint, "create temp checkpoint", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return syncerr.Wrap(syncerr.KindCheckpoint, "write checkpoint", err)
	}
	// Flush before the rename so a crash cannot promote an unsynced file.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return syncerr.Wrap(syncerr.KindCheckpoint, "sync checkpoint", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return syncerr.Wrap(syncerr.KindCheckpoint, "close checkpoint", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return syncerr.Wrap(syncerr.KindCheckpoint, "replace checkpoint", err)
	}
	return nil
}

// RecordBatch appends a history entry for a committed batch, trimming the
// ring to its maximum size.
func (cp *Checkpoint) RecordBatch(records int64, syncValue any) {
	cp.SyncHistory = append(cp.SyncHistory, HistoryEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Records:   records,
		SyncValue: syncValue,
	})
	if len(cp.SyncHistory) > maxHistoryEntries {
		cp.SyncHistory = cp.SyncHistory[len(cp.SyncHistory)-maxHistoryEntries:]
	}
}

// Reset removes the checkpoint file. Missing files are not an error.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return syncerr.Wrap(syncerr.KindCheckpoint, "remove checkpoint", err)
	}
	return nil
}

// Describe returns a short human-readable summary for the status command.
func (cp *Checkpoint) Describe() string {
	if cp.IsZero() {
		return "no checkpoint (next run starts a full sync)"
	}
	return fmt.Sprintf("%d records synced, table %s (seq %d), last sync %s",
		cp.TotalRecordsSynced, cp.CurrentTableID, cp.CurrentTableSeq, cp.LastSyncTime)
}

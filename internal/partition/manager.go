// Package partition manages the family of sink tables one sync writes
// into. The sink caps rows per table, so writes roll over to a fresh
// table before the cap would be exceeded; a table never overfills.
package partition

import (
	"context"
	"fmt"
	"sync"

	"github.com/qq940500529/oracle-feishu-sync/internal/feishu"
	"github.com/qq940500529/oracle-feishu-sync/internal/logging"
	"github.com/qq940500529/oracle-feishu-sync/internal/source"
	"github.com/qq940500529/oracle-feishu-sync/internal/syncerr"
	"github.com/qq940500529/oracle-feishu-sync/internal/typemap"
)

// Adapter is the sink surface the manager drives. *feishu.Client
// implements it.
type Adapter interface {
	CreateTable(ctx context.Context, name string, fields []feishu.Field) (string, error)
	ListFields(ctx context.Context, tableID string) ([]feishu.Field, error)
	CreateField(ctx context.Context, tableID string, field feishu.Field) error
	RowCount(ctx context.Context, tableID string) (int, error)
	WriteRecords(ctx context.Context, tableID string, rows []map[string]any) (int, error)
}

// Limiter admits one sink call per Acquire.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Config sets the partition policy for a manager.
type Config struct {
	Fields []feishu.Field
	// Prefix names partitions {Prefix}_{seq:03d}.
	Prefix string
	// BaseTableID, when set, is an existing table adopted as partition 1
	// on the first run instead of creating a fresh one.
	BaseTableID   string
	MaxRows       int
	MaxPerRequest int
}

// Manager tracks the active partition and applies the rate limit to
// every sink call.
type Manager struct {
	adapter       Adapter
	limiter       Limiter
	fields        []feishu.Field
	prefix        string
	baseTableID   string
	maxRows       int
	maxPerRequest int

	mu       sync.Mutex
	seq      int
	tableID  string
	rowCount int
	created  int
}

// NewManager builds a manager. MaxPerRequest is clamped to the API's
// batch limit.
func NewManager(adapter Adapter, limiter Limiter, cfg Config) *Manager {
	maxPerRequest := cfg.MaxPerRequest
	if maxPerRequest <= 0 || maxPerRequest > feishu.MaxRecordsPerRequest {
		maxPerRequest = feishu.MaxRecordsPerRequest
	}
	return &Manager{
		adapter:       adapter,
		limiter:       limiter,
		fields:        cfg.Fields,
		prefix:        cfg.Prefix,
		baseTableID:   cfg.BaseTableID,
		maxRows:       cfg.MaxRows,
		maxPerRequest: maxPerRequest,
	}
}

// FieldsFromSchema derives the sink field list from the source schema,
// preserving column order.
func FieldsFromSchema(schema *source.Schema) []feishu.Field {
	fields := make([]feishu.Field, len(schema.Columns))
	for i, c := range schema.Columns {
		fields[i] = feishu.Field{Name: c.Name, Type: typemap.Map(c.DataType)}
	}
	return fields
}

// TableName returns the partition name for a sequence number.
func (m *Manager) TableName(seq int) string {
	return fmt.Sprintf("%s_%03d", m.prefix, seq)
}

// Current returns the active partition's identity and row count.
func (m *Manager) Current() (tableID string, seq int, rowCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tableID, m.seq, m.rowCount
}

// TablesCreated returns how many partitions this manager created.
func (m *Manager) TablesCreated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// EnsurePartition makes a partition active. With a checkpointed table it
// adopts that table, reads its row count once, and adds any source
// columns the table does not have yet. Otherwise it creates partition 1.
func (m *Manager) EnsurePartition(ctx context.Context, tableID string, seq int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tableID == "" {
		if m.baseTableID != "" {
			tableID, seq = m.baseTableID, 1
		} else {
			return m.createPartitionLocked(ctx, 1)
		}
	}

	if err := m.limiter.Acquire(ctx); err != nil {
		return err
	}
	count, err := m.adapter.RowCount(ctx, tableID)
	if err != nil {
		return fmt.Errorf("adopting partition %s: %w", tableID, err)
	}

	if err := m.reconcileFieldsLocked(ctx, tableID); err != nil {
		return err
	}

	m.tableID = tableID
	m.seq = seq
	m.rowCount = count
	logging.Info("Resuming into table %s (seq %d) with %d existing rows", tableID, seq, count)
	return nil
}

// reconcileFieldsLocked adds source columns missing from the sink table.
// Evolution is additive only; extra or mistyped sink fields are left
// alone and reported.
func (m *Manager) reconcileFieldsLocked(ctx context.Context, tableID string) error {
	if err := m.limiter.Acquire(ctx); err != nil {
		return err
	}
	existing, err := m.adapter.ListFields(ctx, tableID)
	if err != nil {
		return fmt.Errorf("listing fields of %s: %w", tableID, err)
	}

	have := make(map[string]feishu.Field, len(existing))
	for _, f := range existing {
		have[f.Name] = f
	}

	for _, want := range m.fields {
		got, ok := have[want.Name]
		if !ok {
			logging.Info("Adding field %s (%s) to table %s", want.Name, want.Type, tableID)
			if err := m.limiter.Acquire(ctx); err != nil {
				return err
			}
			if err := m.adapter.CreateField(ctx, tableID, want); err != nil {
				return fmt.Errorf("creating field %s: %w", want.Name, err)
			}
			continue
		}
		if got.Type != want.Type {
			logging.Warn("Field %s in %s has type %s, source maps to %s; leaving as-is",
				want.Name, tableID, got.Type, want.Type)
		}
	}
	return nil
}

func (m *Manager) createPartitionLocked(ctx context.Context, seq int) error {
	name := m.TableName(seq)
	if err := m.limiter.Acquire(ctx); err != nil {
		return err
	}
	id, err := m.adapter.CreateTable(ctx, name, m.fields)
	if err != nil {
		return fmt.Errorf("creating partition %s: %w", name, err)
	}

	m.tableID = id
	m.seq = seq
	m.rowCount = 0
	m.created++
	logging.Info("Created table %s (%s)", name, id)
	return nil
}

// WriteBatch appends rows to the active partition, rolling over to a new
// partition whenever a chunk would push the row count past the cap. A
// chunk is never split across partitions. Returns how many rows the sink
// accepted.
func (m *Manager) WriteBatch(ctx context.Context, rows []source.Row) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tableID == "" {
		return 0, syncerr.New(syncerr.KindConfig, "no active partition; call EnsurePartition first")
	}

	written := 0
	for start := 0; start < len(rows); start += m.maxPerRequest {
		end := start + m.maxPerRequest
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		if m.rowCount+len(chunk) > m.maxRows {
			if err := m.createPartitionLocked(ctx, m.seq+1); err != nil {
				return written, err
			}
		}

		records := make([]map[string]any, len(chunk))
		for i, row := range chunk {
			records[i] = map[string]any(row)
		}

		if err := m.limiter.Acquire(ctx); err != nil {
			return written, err
		}
		accepted, err := m.adapter.WriteRecords(ctx, m.tableID, records)
		if err != nil {
			return written, err
		}
		m.rowCount += accepted
		written += accepted

		if accepted != len(chunk) {
			return written, syncerr.Errorf(syncerr.KindTransient,
				"sink accepted %d of %d records in %s", accepted, len(chunk), m.tableID)
		}
	}
	return written, nil
}

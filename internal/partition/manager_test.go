package partition

import (
	"context"
	"fmt"
	"testing"

	"github.com/qq940500529/oracle-feishu-sync/internal/feishu"
	"github.com/qq940500529/oracle-feishu-sync/internal/source"
	"github.com/qq940500529/oracle-feishu-sync/internal/typemap"
)

type fakeTable struct {
	name   string
	fields []feishu.Field
	rows   int
}

type fakeAdapter struct {
	tables map[string]*fakeTable
	nextID int
	writes []string // table IDs in write order
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{tables: map[string]*fakeTable{}}
}

func (f *fakeAdapter) CreateTable(_ context.Context, name string, fields []feishu.Field) (string, error) {
	f.nextID++
	id := fmt.Sprintf("tbl%03d", f.nextID)
	f.tables[id] = &fakeTable{name: name, fields: append([]feishu.Field(nil), fields...)}
	return id, nil
}

func (f *fakeAdapter) ListFields(_ context.Context, tableID string) ([]feishu.Field, error) {
	return f.tables[tableID].fields, nil
}

func (f *fakeAdapter) CreateField(_ context.Context, tableID string, field feishu.Field) error {
	t := f.tables[tableID]
	t.fields = append(t.fields, field)
	return nil
}

func (f *fakeAdapter) RowCount(_ context.Context, tableID string) (int, error) {
	return f.tables[tableID].rows, nil
}

func (f *fakeAdapter) WriteRecords(_ context.Context, tableID string, rows []map[string]any) (int, error) {
	f.tables[tableID].rows += len(rows)
	f.writes = append(f.writes, tableID)
	return len(rows), nil
}

type countingLimiter struct{ acquires int }

func (l *countingLimiter) Acquire(context.Context) error {
	l.acquires++
	return nil
}

var testFields = []feishu.Field{
	{Name: "ID", Type: typemap.FieldNumber},
	{Name: "UPDATED_AT", Type: typemap.FieldDate},
}

func makeRows(n int) []source.Row {
	rows := make([]source.Row, n)
	for i := range rows {
		rows[i] = source.Row{"ID": float64(i), "UPDATED_AT": int64(1704067200000 + i)}
	}
	return rows
}

func TestEnsurePartitionCreatesFirstTable(t *testing.T) {
	adapter := newFakeAdapter()
	m := NewManager(adapter, &countingLimiter{}, Config{Fields: testFields, Prefix: "DataSync", MaxRows: 20000, MaxPerRequest: 500})

	if err := m.EnsurePartition(context.Background(), "", 0); err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}

	id, seq, count := m.Current()
	if seq != 1 || count != 0 || id == "" {
		t.Errorf("Current = (%s, %d, %d), want fresh seq 1", id, seq, count)
	}
	if adapter.tables[id].name != "DataSync_001" {
		t.Errorf("table name = %q, want DataSync_001", adapter.tables[id].name)
	}
}

func TestEnsurePartitionAdoptsCheckpointedTable(t *testing.T) {
	adapter := newFakeAdapter()
	existing, _ := adapter.CreateTable(context.Background(), "DataSync_002", testFields[:1])
	adapter.tables[existing].rows = 12345

	m := NewManager(adapter, &countingLimiter{}, Config{Fields: testFields, Prefix: "DataSync", MaxRows: 20000, MaxPerRequest: 500})
	if err := m.EnsurePartition(context.Background(), existing, 2); err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}

	id, seq, count := m.Current()
	if id != existing || seq != 2 || count != 12345 {
		t.Errorf("Current = (%s, %d, %d), want adopted state", id, seq, count)
	}
	// The missing UPDATED_AT field was added, additively.
	if len(adapter.tables[existing].fields) != 2 {
		t.Errorf("fields = %+v, want ID and UPDATED_AT", adapter.tables[existing].fields)
	}
}

func TestEnsurePartitionAdoptsConfiguredBaseTable(t *testing.T) {
	adapter := newFakeAdapter()
	base, _ := adapter.CreateTable(context.Background(), "DataSync_001", testFields)
	adapter.tables[base].rows = 500

	m := NewManager(adapter, &countingLimiter{}, Config{
		Fields: testFields, Prefix: "DataSync", BaseTableID: base,
		MaxRows: 20000, MaxPerRequest: 500,
	})
	if err := m.EnsurePartition(context.Background(), "", 0); err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}

	id, seq, count := m.Current()
	if id != base || seq != 1 || count != 500 {
		t.Errorf("Current = (%s, %d, %d), want adopted base table", id, seq, count)
	}
	if m.TablesCreated() != 0 {
		t.Errorf("TablesCreated = %d, want 0 for adoption", m.TablesCreated())
	}
}

func TestRolloverDistribution(t *testing.T) {
	adapter := newFakeAdapter()
	m := NewManager(adapter, &countingLimiter{}, Config{Fields: testFields, Prefix: "DataSync", MaxRows: 20000, MaxPerRequest: 1000})

	ctx := context.Background()
	if err := m.EnsurePartition(ctx, "", 0); err != nil {
		t.Fatal(err)
	}

	// 45 batches of 1000 rows against a 20000-row cap.
	for i := 0; i < 45; i++ {
		if _, err := m.WriteBatch(ctx, makeRows(1000)); err != nil {
			t.Fatalf("batch %d: %v", i, err)
		}
	}

	if len(adapter.tables) != 3 {
		t.Fatalf("got %d tables, want 3", len(adapter.tables))
	}
	byName := map[string]int{}
	for _, tbl := range adapter.tables {
		byName[tbl.name] = tbl.rows
	}
	want := map[string]int{"DataSync_001": 20000, "DataSync_002": 20000, "DataSync_003": 5000}
	for name, rows := range want {
		if byName[name] != rows {
			t.Errorf("%s has %d rows, want %d", name, byName[name], rows)
		}
	}
}

func TestRolloverNeverSplitsChunk(t *testing.T) {
	adapter := newFakeAdapter()
	m := NewManager(adapter, &countingLimiter{}, Config{Fields: testFields, Prefix: "DataSync", MaxRows: 1000, MaxPerRequest: 400})

	ctx := context.Background()
	if err := m.EnsurePartition(ctx, "", 0); err != nil {
		t.Fatal(err)
	}

	// 400 + 400 fit; the third chunk of 400 would reach 1200 > 1000 and
	// must go whole into a new partition, leaving 800 behind.
	if _, err := m.WriteBatch(ctx, makeRows(1200)); err != nil {
		t.Fatal(err)
	}

	counts := map[string]int{}
	for _, tbl := range adapter.tables {
		counts[tbl.name] = tbl.rows
	}
	if counts["DataSync_001"] != 800 || counts["DataSync_002"] != 400 {
		t.Errorf("distribution = %v, want 800/400", counts)
	}
}

func TestEverySinkCallCostsOneToken(t *testing.T) {
	adapter := newFakeAdapter()
	lim := &countingLimiter{}
	m := NewManager(adapter, lim, Config{Fields: testFields, Prefix: "DataSync", MaxRows: 20000, MaxPerRequest: 500})

	ctx := context.Background()
	if err := m.EnsurePartition(ctx, "", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.WriteBatch(ctx, makeRows(1000)); err != nil {
		t.Fatal(err)
	}

	// 1 create + 2 writes of 500.
	if lim.acquires != 3 {
		t.Errorf("limiter acquires = %d, want 3", lim.acquires)
	}
}

func TestWriteBatchChunksToRequestLimit(t *testing.T) {
	adapter := newFakeAdapter()
	m := NewManager(adapter, &countingLimiter{}, Config{Fields: testFields, Prefix: "DataSync", MaxRows: 100000, MaxPerRequest: 500})

	ctx := context.Background()
	if err := m.EnsurePartition(ctx, "", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.WriteBatch(ctx, makeRows(1200)); err != nil {
		t.Fatal(err)
	}
	// 500 + 500 + 200.
	if len(adapter.writes) != 3 {
		t.Errorf("write calls = %d, want 3", len(adapter.writes))
	}
}

func TestWriteBatchWithoutPartitionFails(t *testing.T) {
	m := NewManager(newFakeAdapter(), &countingLimiter{}, Config{Fields: testFields, Prefix: "DataSync", MaxRows: 100, MaxPerRequest: 500})
	if _, err := m.WriteBatch(context.Background(), makeRows(1)); err == nil {
		t.Fatal("expected error without an active partition")
	}
}

func TestFieldsFromSchema(t *testing.T) {
	schema := &source.Schema{
		Table: "ORDERS",
		Columns: []source.Column{
			{Name: "ID", DataType: "NUMBER"},
			{Name: "NOTE", DataType: "CLOB"},
			{Name: "UPDATED_AT", DataType: "TIMESTAMP(6)"},
		},
	}
	fields := FieldsFromSchema(schema)
	want := []feishu.Field{
		{Name: "ID", Type: typemap.FieldNumber},
		{Name: "NOTE", Type: typemap.FieldText},
		{Name: "UPDATED_AT", Type: typemap.FieldDate},
	}
	if len(fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(fields), len(want))
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field %d = %+v, want %+v", i, fields[i], want[i])
		}
	}
}

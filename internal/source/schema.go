// Package source reads rows from the Oracle source table in ordered,
// resumable batches.
package source

import "strings"

// Column describes one column of the source table. Precision and Scale
// are zero for types that carry neither.
type Column struct {
	Name      string
	DataType  string
	Precision int
	Scale     int
	Nullable  bool
}

// Schema is the discovered shape of the source table.
type Schema struct {
	Table   string
	Columns []Column
}

// ColumnNames returns the column names in ordinal order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name, case-insensitively the way Oracle
// resolves unquoted identifiers.
func (s *Schema) Column(name string) (Column, bool) {
	upper := strings.ToUpper(name)
	for _, c := range s.Columns {
		if strings.ToUpper(c.Name) == upper {
			return c, true
		}
	}
	return Column{}, false
}

// Row is one source row keyed by column name, already normalized for the
// sink (temporal values as epoch milliseconds, LOBs as strings).
type Row map[string]any

// Batch is one unit of rows delivered by a cursor. A batch with Done set
// is terminal; Err is set when the read failed.
type Batch struct {
	Rows []Row
	// SyncValue is the normalized sync-column value of the last row seen
	// with one, suitable for checkpointing. Nil until a row carries a
	// non-NULL sync value.
	SyncValue any
	Done      bool
	Err       error
}

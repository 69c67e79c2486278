package source

import (
	"context"
	"strings"
	"time"

	"github.com/qq940500529/oracle-feishu-sync/internal/logging"
	"github.com/qq940500529/oracle-feishu-sync/internal/syncerr"
	"github.com/qq940500529/oracle-feishu-sync/internal/typemap"
)

// Cursor streams the source table as ordered batches, either from the
// beginning (full sync) or from a checkpointed sync value (incremental).
type Cursor struct {
	session   *Session
	schema    *Schema
	syncCol   Column
	batchSize int
	convertTZ bool
	since     any
}

// NewCursor prepares a cursor. A non-nil since value restricts the read
// to rows whose sync column is strictly greater than it; a persisted
// epoch-millisecond value is converted back to a temporal bind when the
// sync column is a date or timestamp.
func NewCursor(session *Session, schema *Schema, batchSize int, convertTZ bool, since any) (*Cursor, error) {
	syncCol, ok := schema.Column(session.cfg.SyncColumn)
	if !ok {
		return nil, syncerr.Errorf(syncerr.KindSchema, "sync column %s not in schema", session.cfg.SyncColumn)
	}

	since, err := CoerceSyncValue(schema, session.cfg.SyncColumn, since)
	if err != nil {
		return nil, err
	}

	return &Cursor{
		session:   session,
		schema:    schema,
		syncCol:   syncCol,
		batchSize: batchSize,
		convertTZ: convertTZ,
		since:     since,
	}, nil
}

// CoerceSyncValue prepares a checkpointed sync value for use as a bind
// parameter. Temporal columns get their persisted epoch-millisecond value
// converted back to a time.Time; everything else passes through.
func CoerceSyncValue(schema *Schema, syncColumn string, since any) (any, error) {
	if since == nil {
		return nil, nil
	}
	col, ok := schema.Column(syncColumn)
	if !ok {
		return nil, syncerr.Errorf(syncerr.KindSchema, "sync column %s not in schema", syncColumn)
	}
	if typemap.IsTemporal(col.DataType) {
		t, err := coerceTemporal(since)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return since, nil
}

// coerceTemporal converts a checkpointed epoch-millisecond value back to
// a time.Time for use as an Oracle bind parameter.
func coerceTemporal(since any) (time.Time, error) {
	switch v := since.(type) {
	case time.Time:
		return v, nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	}
	return time.Time{}, syncerr.Errorf(syncerr.KindCheckpoint,
		"cannot resume: sync value %v (%T) is not usable for a temporal column", since, since)
}

// Batches streams the remaining rows. The returned channel is closed
// after a terminal batch (Done set, or Err on failure). The caller owns
// the pace: the next query runs only after the previous batch is taken.
func (c *Cursor) Batches(ctx context.Context) <-chan Batch {
	out := make(chan Batch, 1)
	go func() {
		defer close(out)
		c.run(ctx, out)
	}()
	return out
}

func (c *Cursor) run(ctx context.Context, out chan<- Batch) {
	cols := c.schema.ColumnNames()
	fieldTypes := make([]typemap.FieldType, len(cols))
	for i, col := range c.schema.Columns {
		fieldTypes[i] = typemap.Map(col.DataType)
	}

	d := c.session.dialect
	var query string
	if c.since != nil {
		query = d.BuildIncrementalQuery(cols, c.session.cfg.Table, c.session.cfg.SyncColumn, c.session.cfg.PrimaryKey)
	} else {
		query = d.BuildFullQuery(cols, c.session.cfg.Table, c.session.cfg.SyncColumn, c.session.cfg.PrimaryKey)
	}

	syncName := strings.ToUpper(c.syncCol.Name)
	var rowNum int64
	var lastSync any

	for {
		select {
		case <-ctx.Done():
			out <- Batch{Err: ctx.Err(), Done: true}
			return
		default:
		}

		var args []any
		if c.since != nil {
			args = []any{c.since, rowNum, rowNum + int64(c.batchSize)}
		} else {
			args = []any{rowNum, rowNum + int64(c.batchSize)}
		}

		rows, err := c.session.db.QueryContext(ctx, query, args...)
		if err != nil {
			out <- Batch{Err: syncerr.Wrap(syncerr.KindTransient, "batch query", err), Done: true}
			return
		}

		batch := Batch{}
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				rows.Close()
				out <- Batch{Err: syncerr.Wrap(syncerr.KindTransient, "scan row", err), Done: true}
				return
			}

			row := buildRow(cols, vals, fieldTypes, c.convertTZ)
			if v, ok := row[syncName]; ok {
				lastSync = v
			}
			batch.Rows = append(batch.Rows, row)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			out <- Batch{Err: syncerr.Wrap(syncerr.KindTransient, "read batch", err), Done: true}
			return
		}
		rows.Close()

		if len(batch.Rows) == 0 {
			batch.Done = true
			out <- batch
			return
		}

		// Oracle sorts NULLs last on an ascending ORDER BY, so trailing
		// rows can lack a sync value; the high-water mark sticks at the
		// last row that had one.
		batch.SyncValue = lastSync
		rowNum += int64(len(batch.Rows))
		if len(batch.Rows) < c.batchSize {
			batch.Done = true
		}

		logging.Debug("Read batch of %d rows (total %d)", len(batch.Rows), rowNum)
		out <- batch

		if batch.Done {
			return
		}
	}
}

// buildRow normalizes one scanned row, keyed by uppercase column name.
// NULL columns are omitted so the sink leaves those cells empty.
func buildRow(cols []string, vals []any, fieldTypes []typemap.FieldType, convertTZ bool) Row {
	row := make(Row, len(cols))
	for i, name := range cols {
		if v := normalizeValue(vals[i], fieldTypes[i], convertTZ); v != nil {
			row[strings.ToUpper(name)] = v
		}
	}
	return row
}

package orchestrator

import (
	"context"

	"github.com/qq940500529/oracle-feishu-sync/internal/source"
)

// SessionReader adapts a source session to the Reader interface, creating
// a fresh cursor per run.
type SessionReader struct {
	session    *source.Session
	syncColumn string
	batchSize  int
	convertTZ  bool
}

// NewSessionReader wraps an open session.
func NewSessionReader(session *source.Session, syncColumn string, batchSize int, convertTZ bool) *SessionReader {
	return &SessionReader{
		session:    session,
		syncColumn: syncColumn,
		batchSize:  batchSize,
		convertTZ:  convertTZ,
	}
}

func (r *SessionReader) DescribeSchema(ctx context.Context) (*source.Schema, error) {
	return r.session.DescribeSchema(ctx)
}

func (r *SessionReader) CountPending(ctx context.Context, schema *source.Schema, since any) (int64, error) {
	coerced, err := source.CoerceSyncValue(schema, r.syncColumn, since)
	if err != nil {
		return 0, err
	}
	return r.session.CountPending(ctx, coerced)
}

func (r *SessionReader) Batches(ctx context.Context, schema *source.Schema, since any) (<-chan source.Batch, error) {
	cursor, err := source.NewCursor(r.session, schema, r.batchSize, r.convertTZ, since)
	if err != nil {
		return nil, err
	}
	return cursor.Batches(ctx), nil
}

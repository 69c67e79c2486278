package source

import (
	"context"
	"database/sql"
	"strings"
	"time"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/qq940500529/oracle-feishu-sync/internal/config"
	"github.com/qq940500529/oracle-feishu-sync/internal/logging"
	"github.com/qq940500529/oracle-feishu-sync/internal/syncerr"
	"github.com/qq940500529/oracle-feishu-sync/internal/typemap"
)

// Session owns the Oracle connection pool and answers schema and count
// queries for one source table.
type Session struct {
	db      *sql.DB
	cfg     *config.OracleConfig
	dialect dialect
}

// Open connects to Oracle and verifies the connection.
func Open(ctx context.Context, cfg *config.OracleConfig) (*Session, error) {
	dsn := go_ora.BuildUrl(cfg.Host, cfg.Port, cfg.ServiceName, cfg.User, cfg.Password, nil)

	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, syncerr.Wrap(syncerr.KindConfig, "open oracle connection", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	idle := cfg.MaxConns / 4
	if idle < 1 {
		idle = 1
	}
	db.SetMaxIdleConns(idle)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, syncerr.Wrap(syncerr.KindTransient, "ping oracle", err)
	}

	logging.Debug("Connected to Oracle source %s:%d/%s", cfg.Host, cfg.Port, cfg.ServiceName)

	return &Session{db: db, cfg: cfg, dialect: dialect{}}, nil
}

// Close releases all connections.
func (s *Session) Close() error {
	return s.db.Close()
}

// DescribeSchema loads the source table's columns from ALL_TAB_COLUMNS
// and verifies the configured sync column and primary key exist.
func (s *Session) DescribeSchema(ctx context.Context) (*Schema, error) {
	owner := strings.ToUpper(s.cfg.User)
	table := strings.ToUpper(s.cfg.Table)

	rows, err := s.db.QueryContext(ctx, s.dialect.BuildColumnsQuery(), owner, table)
	if err != nil {
		return nil, syncerr.Wrap(syncerr.KindTransient, "query columns", err)
	}
	defer rows.Close()

	schema := &Schema{Table: table}
	for rows.Next() {
		var c Column
		var nullable int
		if err := rows.Scan(&c.Name, &c.DataType, &c.Precision, &c.Scale, &nullable); err != nil {
			return nil, syncerr.Wrap(syncerr.KindTransient, "scan column", err)
		}
		c.DataType = strings.ToUpper(strings.TrimSpace(c.DataType))
		c.Nullable = nullable == 1
		schema.Columns = append(schema.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, syncerr.Wrap(syncerr.KindTransient, "read columns", err)
	}

	if len(schema.Columns) == 0 {
		return nil, syncerr.Errorf(syncerr.KindSchema, "table %s.%s not found or has no columns", owner, table)
	}
	if _, ok := schema.Column(s.cfg.SyncColumn); !ok {
		return nil, syncerr.Errorf(syncerr.KindSchema, "sync column %s not found in %s", s.cfg.SyncColumn, table)
	}
	if s.cfg.PrimaryKey != "" {
		if _, ok := schema.Column(s.cfg.PrimaryKey); !ok {
			return nil, syncerr.Errorf(syncerr.KindSchema, "primary key column %s not found in %s", s.cfg.PrimaryKey, table)
		}
	}

	logging.Debug("Discovered %d columns on %s", len(schema.Columns), table)
	return schema, nil
}

// MaxValue returns the current maximum of the sync column, normalized the
// same way cursor rows are so it is comparable to the checkpointed
// high-water mark. Nil means the table is empty or the column is all NULL.
func (s *Session) MaxValue(ctx context.Context, schema *Schema, convertTZ bool) (any, error) {
	col, ok := schema.Column(s.cfg.SyncColumn)
	if !ok {
		return nil, syncerr.Errorf(syncerr.KindSchema, "sync column %s not in schema", s.cfg.SyncColumn)
	}

	query := s.dialect.BuildMaxValueQuery(s.cfg.Table, col.Name)
	var raw any
	if err := s.db.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		return nil, syncerr.Wrap(syncerr.KindTransient, "query max sync value", err)
	}
	return normalizeValue(raw, typemap.Map(col.DataType), convertTZ), nil
}

// CountPending returns how many rows remain to sync. With a nil since
// value it counts the whole table.
func (s *Session) CountPending(ctx context.Context, since any) (int64, error) {
	query := s.dialect.BuildCountQuery(s.cfg.Table, s.cfg.SyncColumn, since != nil)

	var count int64
	var err error
	if since != nil {
		err = s.db.QueryRowContext(ctx, query, since).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, query).Scan(&count)
	}
	if err != nil {
		return 0, syncerr.Wrap(syncerr.KindTransient, "count pending rows", err)
	}
	return count, nil
}

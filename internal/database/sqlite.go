package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-targeted-ads/internal/matrix"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"modernc.org/sqlite"
)

const (
	sqliteBusyTimeout  = 5 * time.Second
	sqliteSetupTimeout = 5 * time.Second
)

var sqliteHookOnce sync.Once

type pragma struct {
	stmt          string
	allowReadOnly bool
}

var sqlitePragmas = []pragma{
	{stmt: "PRAGMA journal_mode = WAL"},
	{stmt: "PRAGMA synchronous = NORMAL"},
	{stmt: fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyTimeout.Milliseconds()), allowReadOnly: true},
	{stmt: "PRAGMA cache_size = -16000", allowReadOnly: true},
}

func registerSQLiteHook() {
	sqliteHookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			ctx, cancel := context.WithTimeout(context.Background(), sqliteSetupTimeout)
			defer cancel()

			readOnly := strings.Contains(dsn, "mode=ro")
			for _, p := range sqlitePragmas {
				if readOnly && !p.allowReadOnly {
					continue
				}
				if _, err := conn.ExecContext(ctx, p.stmt, nil); err != nil {
					return errors.Wrapf(err, "apply %q", p.stmt)
				}
			}
			return nil
		})
	})
}

// OpenSQLite opens an embedded store at cfg.SQLitePath. Writes go through a
// single connection, reads through a read-only pool of cfg.Read.MaxConns.
// The table is created when missing and every matrix statement is compiled
// once before the pair is returned.
func OpenSQLite(ctx context.Context, cfg Config, m *matrix.Matrix, logger zerolog.Logger) (*Pair, error) {
	path := cfg.SQLitePath
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create database directory %s", dir)
		}
	}

	registerSQLiteHook()

	writerDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open writer at %s", path)
	}
	writerDB.SetMaxOpenConns(1)
	writerDB.SetMaxIdleConns(1)
	writerDB.SetConnMaxLifetime(0)

	if err := EnsureSchema(ctx, writerDB, DriverSQLite, m.Table()); err != nil {
		writerDB.Close()
		return nil, err
	}

	readerDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		writerDB.Close()
		return nil, errors.Wrapf(err, "open reader at %s", path)
	}
	maxReaders := cfg.Read.MaxConns
	if maxReaders <= 0 {
		maxReaders = DefaultMaxConns
	}
	readerDB.SetMaxOpenConns(maxReaders)
	readerDB.SetMaxIdleConns(maxReaders)

	read := &sqlPool{role: RoleRead, db: readerDB, timeout: cfg.Read.AcquireTimeout}
	write := &sqlPool{role: RoleWrite, db: writerDB, timeout: cfg.Write.AcquireTimeout}

	if err := m.PrepareSelects(ctx, read.prepare); err != nil {
		readerDB.Close()
		writerDB.Close()
		return nil, err
	}
	if err := m.PrepareInsert(ctx, write.prepare); err != nil {
		readerDB.Close()
		writerDB.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Int("max_readers", maxReaders).Msg("sqlite store ready")
	return NewPair(read, write)
}

// sqlPool adapts a *sql.DB to Pool. Statements run as text on the held
// connection; the driver keeps its own per-connection statement cache.
type sqlPool struct {
	role    Role
	db      *sql.DB
	timeout time.Duration
}

// prepare compiles stmt through EXPLAIN. The driver defers compilation of a
// prepared statement to its first execution, so PrepareContext alone would
// accept SQL that references missing columns.
func (p *sqlPool) prepare(ctx context.Context, stmt matrix.Statement) error {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, "EXPLAIN "+stmt.SQL, make([]any, stmt.Params)...)
	if err != nil {
		return err
	}
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

func (p *sqlPool) Acquire(ctx context.Context) (Conn, error) {
	return acquire(ctx, p.role, p.timeout, func(ctx context.Context) (Conn, error) {
		c, err := p.db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		return &sqlConn{conn: c}, nil
	})
}

func (p *sqlPool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return errors.Wrapf(ErrStoreUnavailable, "%s pool: %v", p.role, err)
	}
	return nil
}

func (p *sqlPool) Stats() PoolStats {
	s := p.db.Stats()
	return PoolStats{
		Role:     p.role,
		Acquired: int64(s.InUse),
		Idle:     int64(s.Idle),
		Total:    int64(s.OpenConnections),
		Max:      int64(s.MaxOpenConnections),
	}
}

func (p *sqlPool) Close() {
	p.db.Close()
}

type sqlConn struct {
	conn *sql.Conn
}

func (c *sqlConn) Query(ctx context.Context, stmt matrix.Statement, args ...any) (Rows, error) {
	rows, err := c.conn.QueryContext(ctx, stmt.SQL, toSQLiteArgs(args)...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (c *sqlConn) Exec(ctx context.Context, stmt matrix.Statement, args ...any) error {
	_, err := c.conn.ExecContext(ctx, stmt.SQL, toSQLiteArgs(args)...)
	return err
}

func (c *sqlConn) Release() {
	c.conn.Close()
}

// timestamps are stored as unix milliseconds
func toSQLiteArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if t, ok := a.(time.Time); ok {
			out[i] = t.UnixMilli()
			continue
		}
		out[i] = a
	}
	return out
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool { return r.rows.Next() }

func (r *sqlRows) Err() error { return r.rows.Err() }

func (r *sqlRows) Close() { r.rows.Close() }

func (r *sqlRows) Scan(dest ...any) error {
	targets := make([]any, len(dest))
	var stamps map[int]*int64
	for i, d := range dest {
		if _, ok := d.(*time.Time); ok {
			if stamps == nil {
				stamps = make(map[int]*int64)
			}
			stamps[i] = new(int64)
			targets[i] = stamps[i]
			continue
		}
		targets[i] = d
	}
	if err := r.rows.Scan(targets...); err != nil {
		return err
	}
	for i, ms := range stamps {
		*dest[i].(*time.Time) = time.UnixMilli(*ms).UTC()
	}
	return nil
}

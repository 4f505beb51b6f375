// Package database owns the read/write connection pool pair.
//
// Reads and writes are served by two independently sized pools that may
// point at different hosts. Every connection handed out has the statement
// matrix available, either prepared on the connection (PostgreSQL) or
// validated at startup (SQLite).
package database

import (
	"context"
	"time"

	"github.com/goliatone/go-targeted-ads/internal/matrix"
	"github.com/pkg/errors"
)

var (
	// ErrPoolExhausted is returned when no connection became available
	// within the acquire timeout. It is not retried.
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrStoreUnavailable is returned when the store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Role names a pool of the pair.
type Role string

const (
	RoleRead  Role = "read"
	RoleWrite Role = "write"
)

// Rows is a forward only result cursor.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Conn is an exclusively held connection. Release must be called exactly
// once, typically deferred right after a successful acquire.
type Conn interface {
	Query(ctx context.Context, stmt matrix.Statement, args ...any) (Rows, error)
	Exec(ctx context.Context, stmt matrix.Statement, args ...any) error
	Release()
}

// Pools hands out read and write connections.
type Pools interface {
	AcquireRead(ctx context.Context) (Conn, error)
	AcquireWrite(ctx context.Context) (Conn, error)
}

// PoolStats is a snapshot of a single pool.
type PoolStats struct {
	Role     Role
	Acquired int64
	Idle     int64
	Total    int64
	Max      int64
}

// Pool is one side of the pair.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	Stats() PoolStats
	Close()
}

// Pair routes reads and writes to their own pool.
type Pair struct {
	read  Pool
	write Pool
}

var _ Pools = (*Pair)(nil)

// NewPair builds a pair from two pools. The same Pool may not be used for
// both roles.
func NewPair(read, write Pool) (*Pair, error) {
	if read == nil || write == nil {
		return nil, errors.New("database: both pools are required")
	}
	if read == write {
		return nil, errors.New("database: read and write must be distinct pools")
	}
	return &Pair{read: read, write: write}, nil
}

// AcquireRead takes a connection from the read pool.
func (p *Pair) AcquireRead(ctx context.Context) (Conn, error) {
	return p.read.Acquire(ctx)
}

// AcquireWrite takes a connection from the write pool.
func (p *Pair) AcquireWrite(ctx context.Context) (Conn, error) {
	return p.write.Acquire(ctx)
}

// Ping checks both pools.
func (p *Pair) Ping(ctx context.Context) error {
	if err := p.read.Ping(ctx); err != nil {
		return errors.Wrap(err, "read pool")
	}
	if err := p.write.Ping(ctx); err != nil {
		return errors.Wrap(err, "write pool")
	}
	return nil
}

// Stats returns a snapshot of both pools.
func (p *Pair) Stats() []PoolStats {
	return []PoolStats{p.read.Stats(), p.write.Stats()}
}

// Close closes both pools.
func (p *Pair) Close() {
	p.read.Close()
	p.write.Close()
}

type acquireFunc func(ctx context.Context) (Conn, error)

// acquire bounds fn by timeout and maps failures onto the pool sentinels.
// A caller that gave up gets its own context error back.
func acquire(ctx context.Context, role Role, timeout time.Duration, fn acquireFunc) (Conn, error) {
	actx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := fn(actx)
	if err == nil {
		return conn, nil
	}
	if ctx.Err() != nil {
		return nil, errors.Wrapf(ctx.Err(), "acquire %s connection", role)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, errors.Wrapf(ErrPoolExhausted, "%s pool: no connection within %s", role, timeout)
	}
	var stmtErr *matrix.StatementError
	if errors.As(err, &stmtErr) {
		return nil, err
	}
	return nil, errors.Wrapf(ErrStoreUnavailable, "%s pool: %v", role, err)
}

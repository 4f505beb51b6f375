package database

import (
	"context"

	"github.com/goliatone/go-targeted-ads/internal/matrix"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type pgPool struct {
	role   Role
	cfg    PoolConfig
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// OpenPostgres opens the read and write pools and prepares the matrix on
// every connection they create. The read pool only prepares selects and the
// write pool only the insert. A statement rejected by the server fails the
// call with a *matrix.StatementError.
func OpenPostgres(ctx context.Context, cfg Config, m *matrix.Matrix, logger zerolog.Logger) (*Pair, error) {
	read, err := newPgPool(ctx, RoleRead, cfg.Read, m.PrepareSelects, logger)
	if err != nil {
		return nil, err
	}
	write, err := newPgPool(ctx, RoleWrite, cfg.Write, m.PrepareInsert, logger)
	if err != nil {
		read.Close()
		return nil, err
	}
	return NewPair(read, write)
}

func newPgPool(ctx context.Context, role Role, cfg PoolConfig, prepare func(context.Context, matrix.PrepareFunc) error, logger zerolog.Logger) (*pgPool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s pool config", role)
	}
	pcfg.MaxConns = int32(cfg.MaxConns)
	pcfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return prepare(ctx, func(ctx context.Context, stmt matrix.Statement) error {
			_, err := conn.Prepare(ctx, stmt.Name, stmt.SQL)
			return err
		})
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s pool", role)
	}

	p := &pgPool{
		role:   role,
		cfg:    cfg,
		pool:   pool,
		logger: logger.With().Str("pool", string(role)).Str("host", cfg.Host).Logger(),
	}

	// first connection runs AfterConnect so a bad matrix fails startup
	conn, err := p.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	conn.Release()

	p.logger.Info().Int("max_conns", cfg.MaxConns).Msg("connection pool ready")
	return p, nil
}

func (p *pgPool) Acquire(ctx context.Context) (Conn, error) {
	return acquire(ctx, p.role, p.cfg.AcquireTimeout, func(ctx context.Context) (Conn, error) {
		c, err := p.pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return &pgConn{conn: c}, nil
	})
}

func (p *pgPool) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return errors.Wrapf(ErrStoreUnavailable, "%s pool: %v", p.role, err)
	}
	return nil
}

func (p *pgPool) Stats() PoolStats {
	s := p.pool.Stat()
	return PoolStats{
		Role:     p.role,
		Acquired: int64(s.AcquiredConns()),
		Idle:     int64(s.IdleConns()),
		Total:    int64(s.TotalConns()),
		Max:      int64(s.MaxConns()),
	}
}

func (p *pgPool) Close() {
	p.pool.Close()
}

// pgConn executes statements by their prepared name.
type pgConn struct {
	conn *pgxpool.Conn
}

func (c *pgConn) Query(ctx context.Context, stmt matrix.Statement, args ...any) (Rows, error) {
	return c.conn.Query(ctx, stmt.Name, args...)
}

func (c *pgConn) Exec(ctx context.Context, stmt matrix.Statement, args ...any) error {
	_, err := c.conn.Exec(ctx, stmt.Name, args...)
	return err
}

func (c *pgConn) Release() {
	c.conn.Release()
}

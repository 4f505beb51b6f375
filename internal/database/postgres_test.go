package database

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/goliatone/go-targeted-ads/internal/matrix"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// PostgresDSNEnv names the server used by the PostgreSQL tests. They are
// skipped when it is unset.
const PostgresDSNEnv = "ADS_TEST_POSTGRES_DSN"

func postgresTestConfig(t *testing.T) (Config, string) {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	parsed, err := pgx.ParseConfig(dsn)
	require.NoError(t, err)

	pool := DefaultPoolConfig()
	pool.Host = parsed.Host
	pool.Port = int(parsed.Port)
	pool.User = parsed.User
	pool.Password = parsed.Password
	pool.Database = parsed.Database
	pool.MaxConns = 2
	pool.AcquireTimeout = 2 * time.Second
	pool.SSLMode = ""
	if u, err := url.Parse(dsn); err == nil {
		pool.SSLMode = u.Query().Get("sslmode")
	}

	cfg := DefaultConfig()
	cfg.Driver = DriverPostgres
	cfg.Table = fmt.Sprintf("advertisement_it_%d", time.Now().UnixNano())
	cfg.Read = pool
	cfg.Write = pool

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			t.Logf("drop %s: %v", cfg.Table, err)
			return
		}
		defer conn.Close(ctx)
		if _, err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(cfg.Table)); err != nil {
			t.Logf("drop %s: %v", cfg.Table, err)
		}
	})
	return cfg, dsn
}

func TestPostgresInsertAndSelect(t *testing.T) {
	cfg, _ := postgresTestConfig(t)
	ctx := context.Background()

	require.NoError(t, EnsurePostgresSchema(ctx, cfg.Write, cfg.Table))
	// a second run is a no-op
	require.NoError(t, EnsurePostgresSchema(ctx, cfg.Write, cfg.Table))

	m, err := matrix.Build(matrix.Postgres{}, cfg.Table)
	require.NoError(t, err)

	pair, err := OpenPostgres(ctx, cfg, m, zerolog.New(io.Discard))
	require.NoError(t, err)
	defer pair.Close()
	require.NoError(t, pair.Ping(ctx))

	endAt := time.Now().Add(time.Hour).Truncate(time.Microsecond).UTC()
	w, err := pair.AcquireWrite(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Exec(ctx, m.Insert(), "adults", 18, 65, int16(840), nil, nil, endAt))
	require.NoError(t, w.Exec(ctx, m.Insert(), "expired", 18, 65, nil, nil, nil, time.Now().Add(-time.Hour)))
	w.Release()

	titles := func(idx matrix.Index, args ...any) []string {
		r, err := pair.AcquireRead(ctx)
		require.NoError(t, err)
		defer r.Release()

		rows, err := r.Query(ctx, m.Select(idx), args...)
		require.NoError(t, err)
		defer rows.Close()

		var out []string
		for rows.Next() {
			var (
				id    int64
				title string
				got   time.Time
			)
			require.NoError(t, rows.Scan(&id, &title, &got))
			assert.True(t, endAt.Equal(got), "got %s want %s", got, endAt)
			out = append(out, title)
		}
		require.NoError(t, rows.Err())
		return out
	}

	assert.Equal(t, []string{"adults"}, titles(0, 10, 0))
	assert.Equal(t, []string{"adults"}, titles(matrix.FilterAge, 18, 10, 0))
	assert.Equal(t, []string{"adults"}, titles(matrix.FilterAge, 65, 10, 0))
	assert.Empty(t, titles(matrix.FilterAge, 66, 10, 0))
	assert.Equal(t, []string{"adults"}, titles(matrix.FilterCountry|matrix.FilterAge, int16(840), 30, 10, 0))
	assert.Empty(t, titles(matrix.FilterCountry, int16(392), 10, 0))
}

func TestOpenPostgresRejectsIncompatibleTable(t *testing.T) {
	cfg, dsn := postgresTestConfig(t)
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, "CREATE TABLE "+pq.QuoteIdentifier(cfg.Table)+" (id bigserial PRIMARY KEY, title text NOT NULL, end_at timestamptz NOT NULL)")
	conn.Close(ctx)
	require.NoError(t, err)

	m, err := matrix.Build(matrix.Postgres{}, cfg.Table)
	require.NoError(t, err)

	pair, err := OpenPostgres(ctx, cfg, m, zerolog.New(io.Discard))
	if pair != nil {
		pair.Close()
	}
	require.Error(t, err)

	var stmtErr *matrix.StatementError
	require.True(t, errors.As(err, &stmtErr), err.Error())
	assert.Equal(t, "targeting_select_01", stmtErr.Name)
}

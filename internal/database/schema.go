package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// pgAdvertisement is the PostgreSQL row layout. The age range is a closed
// int4range so containment is a single operator.
type pgAdvertisement struct {
	bun.BaseModel `bun:"table:advertisement"`

	ID       int64     `bun:"id,pk,autoincrement"`
	Title    string    `bun:"title,notnull"`
	AgeRange string    `bun:"age_range,type:int4range,notnull"`
	Country  *int16    `bun:"country"`
	Platform *int16    `bun:"platform"`
	Gender   *int16    `bun:"gender"`
	EndAt    time.Time `bun:"end_at,type:timestamptz,notnull"`
}

// sqliteAdvertisement stores the range bounds in two columns and end_at as
// unix milliseconds.
type sqliteAdvertisement struct {
	bun.BaseModel `bun:"table:advertisement"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Title    string `bun:"title,notnull"`
	AgeFrom  int    `bun:"age_from,notnull"`
	AgeTo    int    `bun:"age_to,notnull"`
	Country  *int16 `bun:"country"`
	Platform *int16 `bun:"platform"`
	Gender   *int16 `bun:"gender"`
	EndAt    int64  `bun:"end_at,notnull"`
}

func schemaFor(driver string) (schema.Dialect, any, error) {
	switch driver {
	case DriverPostgres:
		return pgdialect.New(), (*pgAdvertisement)(nil), nil
	case DriverSQLite:
		return sqlitedialect.New(), (*sqliteAdvertisement)(nil), nil
	}
	return nil, nil, errors.Errorf("schema: unsupported driver %q", driver)
}

// EnsureSchema creates the advertisement table and its expiry index when
// they do not exist. db is not closed.
func EnsureSchema(ctx context.Context, db *sql.DB, driver, table string) error {
	dialect, model, err := schemaFor(driver)
	if err != nil {
		return err
	}
	bdb := bun.NewDB(db, dialect)

	if _, err := bdb.NewCreateTable().
		Model(model).
		ModelTableExpr("?", bun.Ident(table)).
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.Wrapf(err, "create table %s", table)
	}

	if _, err := bdb.NewCreateIndex().
		Model(model).
		ModelTableExpr("?", bun.Ident(table)).
		Index(table + "_end_at_idx").
		Column("end_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.Wrapf(err, "create index on %s", table)
	}
	return nil
}

// EnsurePostgresSchema runs EnsureSchema over the write pool settings.
func EnsurePostgresSchema(ctx context.Context, cfg PoolConfig, table string) error {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return errors.Wrap(err, "connect for schema")
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return EnsureSchema(ctx, db, DriverPostgres, table)
}

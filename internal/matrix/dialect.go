package matrix

import (
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Dialect renders the store specific fragments of the matrix.
type Dialect interface {
	Name() string
	Placeholder(n int) string
	Quote(ident string) string
	// Predicate renders the clause for a single filter bit bound to param.
	Predicate(f Index, param string) string
	NotExpired() string
	InsertColumns() string
	InsertValues() string
}

// Postgres stores the age range as int4range and end_at as timestamptz.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) Quote(ident string) string { return pq.QuoteIdentifier(ident) }

func (Postgres) Predicate(f Index, param string) string {
	switch f {
	case FilterCountry:
		return nullable("country", param)
	case FilterPlatform:
		return nullable("platform", param)
	case FilterAge:
		return "age_range @> " + param + "::int4"
	case FilterGender:
		return nullable("gender", param)
	}
	panic(fmt.Sprintf("matrix: unknown filter %d", f))
}

func (Postgres) NotExpired() string { return "end_at > now()" }

func (Postgres) InsertColumns() string {
	return "title, age_range, country, platform, gender, end_at"
}

func (Postgres) InsertValues() string {
	return "$1, int4range($2, $3, '[]'), $4, $5, $6, $7"
}

// SQLite stores the age range as two integer bounds and end_at as unix
// milliseconds.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

// Placeholder is an anonymous "?". SQLite numbers them left to right, which
// matches the matrix numbering since every parameter is used once in order.
func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) Quote(ident string) string { return pq.QuoteIdentifier(ident) }

func (SQLite) Predicate(f Index, param string) string {
	switch f {
	case FilterCountry:
		return nullable("country", param)
	case FilterPlatform:
		return nullable("platform", param)
	case FilterAge:
		return param + " BETWEEN age_from AND age_to"
	case FilterGender:
		return nullable("gender", param)
	}
	panic(fmt.Sprintf("matrix: unknown filter %d", f))
}

func (SQLite) NotExpired() string {
	return "end_at > CAST((julianday('now') - 2440587.5) * 86400000 AS INTEGER)"
}

func (SQLite) InsertColumns() string {
	return "title, age_from, age_to, country, platform, gender, end_at"
}

func (SQLite) InsertValues() string {
	return "?, ?, ?, ?, ?, ?, ?"
}

// untargeted ads store NULL and match any value
func nullable(column, param string) string {
	return "(" + column + " IS NULL OR " + column + " = " + param + ")"
}

// DialectFor resolves a dialect by driver name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "postgres", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	}
	return nil, errors.Errorf("matrix: unsupported dialect %q", name)
}

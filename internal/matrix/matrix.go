// Package matrix precompiles every read statement the targeting filters can
// require, one per combination of present filters, plus the single insert.
//
// Statements are addressed by an Index bitmask built from a Condition, so
// request handling never assembles SQL.
package matrix

import (
	"context"
	"fmt"
	"math/bits"
	"strings"

	"github.com/goliatone/go-targeted-ads/ads"
	"github.com/pkg/errors"
)

// Index is the filter shape bitmask. Bits follow the canonical clause order.
type Index uint8

const (
	FilterCountry Index = 1 << iota
	FilterPlatform
	FilterAge
	FilterGender
)

const (
	// Dimensions is the number of optional filters.
	Dimensions = 4
	// Size is the number of read statements.
	Size = 1 << Dimensions
)

// canonical clause order
var filters = [Dimensions]Index{FilterCountry, FilterPlatform, FilterAge, FilterGender}

// Has reports whether f is set in i.
func (i Index) Has(f Index) bool { return i&f != 0 }

// Count is the number of filters present.
func (i Index) Count() int { return bits.OnesCount8(uint8(i)) }

func (i Index) String() string {
	if i == 0 {
		return "none"
	}
	var names []string
	for _, f := range filters {
		if i.Has(f) {
			names = append(names, filterName(f))
		}
	}
	return strings.Join(names, "+")
}

func filterName(f Index) string {
	switch f {
	case FilterCountry:
		return "country"
	case FilterPlatform:
		return "platform"
	case FilterAge:
		return "age"
	case FilterGender:
		return "gender"
	}
	return "unknown"
}

// Kind distinguishes read and write statements.
type Kind int

const (
	KindSelect Kind = iota
	KindInsert
)

// Statement is a compiled, fully parameterized statement.
type Statement struct {
	Name   string
	SQL    string
	Kind   Kind
	Index  Index
	Params int
}

// Matrix holds the compiled statements. It is never mutated after Build and
// is safe to share.
type Matrix struct {
	dialect Dialect
	table   string
	selects [Size]Statement
	insert  Statement
}

// DefaultTable is the advertisement table name.
const DefaultTable = "advertisement"

// Build compiles all Size read statements and the insert for table.
func Build(d Dialect, table string) (*Matrix, error) {
	if d == nil {
		return nil, errors.New("matrix: dialect is required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("matrix: table is required")
	}

	m := &Matrix{dialect: d, table: table}
	quoted := d.Quote(table)

	for i := 0; i < Size; i++ {
		idx := Index(i)
		m.selects[i] = buildSelect(d, quoted, idx)
	}

	m.insert = Statement{
		Name:   "targeting_insert",
		SQL:    "INSERT INTO " + quoted + " (" + d.InsertColumns() + ") VALUES (" + d.InsertValues() + ")",
		Kind:   KindInsert,
		Params: 7,
	}
	return m, nil
}

func buildSelect(d Dialect, quoted string, idx Index) Statement {
	var sb strings.Builder
	sb.WriteString("SELECT id, title, end_at FROM ")
	sb.WriteString(quoted)

	clauses := make([]string, 0, Dimensions+1)
	n := 0
	for _, f := range filters {
		if !idx.Has(f) {
			continue
		}
		n++
		clauses = append(clauses, d.Predicate(f, d.Placeholder(n)))
	}
	clauses = append(clauses, d.NotExpired())

	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(clauses, " AND "))
	fmt.Fprintf(&sb, " ORDER BY id LIMIT %s OFFSET %s", d.Placeholder(n+1), d.Placeholder(n+2))

	return Statement{
		Name:   fmt.Sprintf("targeting_select_%02d", int(idx)),
		SQL:    sb.String(),
		Kind:   KindSelect,
		Index:  idx,
		Params: n + 2,
	}
}

// Dialect returns the dialect the matrix was built for.
func (m *Matrix) Dialect() Dialect { return m.dialect }

// Table returns the unquoted table name.
func (m *Matrix) Table() string { return m.table }

// Select returns the read statement at i.
func (m *Matrix) Select(i Index) Statement { return m.selects[i&(Size-1)] }

// Insert returns the insert statement.
func (m *Matrix) Insert() Statement { return m.insert }

// Selects returns a copy of all read statements ordered by index.
func (m *Matrix) Selects() []Statement {
	out := make([]Statement, Size)
	copy(out, m.selects[:])
	return out
}

// Lookup returns the read statement matching the shape of cond.
func (m *Matrix) Lookup(cond ads.Condition) Statement {
	return m.selects[IndexOf(cond)]
}

// IndexOf computes the filter bitmask of cond.
func IndexOf(cond ads.Condition) Index {
	var i Index
	if cond.Country != nil {
		i |= FilterCountry
	}
	if cond.Platform != nil {
		i |= FilterPlatform
	}
	if cond.Age != nil {
		i |= FilterAge
	}
	if cond.Gender != nil {
		i |= FilterGender
	}
	return i
}

// SelectArgs binds the present filter values in canonical order followed by
// limit and offset.
func SelectArgs(cond ads.Condition, page ads.Page) []any {
	args := make([]any, 0, Dimensions+2)
	if cond.Country != nil {
		args = append(args, cond.Country.Code())
	}
	if cond.Platform != nil {
		args = append(args, cond.Platform.Code())
	}
	if cond.Age != nil {
		args = append(args, *cond.Age)
	}
	if cond.Gender != nil {
		args = append(args, cond.Gender.Code())
	}
	return append(args, page.Limit, page.Offset)
}

// InsertArgs binds ad in insert column order. Absent enums bind as NULL.
func InsertArgs(ad ads.Advertisement) []any {
	var country, platform, gender any
	if ad.Country != nil {
		country = ad.Country.Code()
	}
	if ad.Platform != nil {
		platform = ad.Platform.Code()
	}
	if ad.Gender != nil {
		gender = ad.Gender.Code()
	}
	return []any{ad.Title, ad.AgeRange.From, ad.AgeRange.To, country, platform, gender, ad.EndAt.UTC()}
}

// StatementError reports a statement the store rejected during startup.
type StatementError struct {
	Name string
	SQL  string
	Err  error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("prepare %s: %v", e.Name, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// PrepareFunc compiles a single statement against a store.
type PrepareFunc func(ctx context.Context, stmt Statement) error

// PrepareSelects runs prepare for every read statement and stops at the
// first rejection.
func (m *Matrix) PrepareSelects(ctx context.Context, prepare PrepareFunc) error {
	for _, stmt := range m.selects {
		if err := prepare(ctx, stmt); err != nil {
			return &StatementError{Name: stmt.Name, SQL: stmt.SQL, Err: err}
		}
	}
	return nil
}

// PrepareInsert runs prepare for the insert statement.
func (m *Matrix) PrepareInsert(ctx context.Context, prepare PrepareFunc) error {
	if err := prepare(ctx, m.insert); err != nil {
		return &StatementError{Name: m.insert.Name, SQL: m.insert.SQL, Err: err}
	}
	return nil
}

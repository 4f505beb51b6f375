package matrix

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/biter777/countries"
	"github.com/goliatone/go-targeted-ads/ads"
	"github.com/goliatone/go-targeted-ads/pkg/testsupport"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

var numberedPlaceholder = regexp.MustCompile(`\$(\d+)`)

func dump(m *Matrix) []byte {
	var sb strings.Builder
	for _, stmt := range m.Selects() {
		fmt.Fprintf(&sb, "%s %s\n", stmt.Name, stmt.SQL)
	}
	fmt.Fprintf(&sb, "%s %s\n", m.Insert().Name, m.Insert().SQL)
	return []byte(sb.String())
}

func TestBuildGolden(t *testing.T) {
	for _, d := range []Dialect{Postgres{}, SQLite{}} {
		t.Run(d.Name(), func(t *testing.T) {
			m, err := Build(d, DefaultTable)
			require.NoError(t, err)
			testsupport.CompareWithGolden(t, testsupport.GoldenPath(d.Name()+".sql"), dump(m))
		})
	}
}

func TestBuildParameterCount(t *testing.T) {
	for _, d := range []Dialect{Postgres{}, SQLite{}} {
		m, err := Build(d, DefaultTable)
		require.NoError(t, err)

		for i := 0; i < Size; i++ {
			stmt := m.Select(Index(i))
			assert.Equal(t, Index(i), stmt.Index)
			assert.Equal(t, Index(i).Count()+2, stmt.Params, "%s %s", d.Name(), stmt.Name)

			if d.Name() == "sqlite" {
				assert.Equal(t, stmt.Params, strings.Count(stmt.SQL, "?"), stmt.SQL)
				continue
			}
			seen := map[string]bool{}
			var order []string
			for _, match := range numberedPlaceholder.FindAllStringSubmatch(stmt.SQL, -1) {
				if !seen[match[1]] {
					seen[match[1]] = true
					order = append(order, match[1])
				}
			}
			require.Len(t, order, stmt.Params, stmt.SQL)
			for n, got := range order {
				assert.Equal(t, fmt.Sprint(n+1), got, "placeholders must be sequential: %s", stmt.SQL)
			}
		}
		assert.Equal(t, 7, m.Insert().Params)
	}
}

func TestBuildCanonicalClauseOrder(t *testing.T) {
	m, err := Build(Postgres{}, DefaultTable)
	require.NoError(t, err)

	columns := []struct {
		bit    Index
		marker string
	}{
		{FilterCountry, "country = "},
		{FilterPlatform, "platform = "},
		{FilterAge, "age_range @> "},
		{FilterGender, "gender = "},
	}

	for i := 0; i < Size; i++ {
		sql := m.Select(Index(i)).SQL
		last := -1
		for _, c := range columns {
			pos := strings.Index(sql, c.marker)
			if !Index(i).Has(c.bit) {
				assert.Equal(t, -1, pos, "unexpected %q in %s", c.marker, sql)
				continue
			}
			require.Greater(t, pos, last, "clause %q out of order in %s", c.marker, sql)
			last = pos
		}
		notExpired := strings.Index(sql, "end_at > now()")
		assert.Greater(t, notExpired, last, sql)
		assert.Equal(t, 1, strings.Count(sql, " WHERE "), sql)
		assert.True(t, strings.Contains(sql, " ORDER BY id LIMIT "), sql)
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	_, err := Build(nil, DefaultTable)
	assert.Error(t, err)
	_, err = Build(Postgres{}, " ")
	assert.Error(t, err)
}

func TestBuildQuotesTable(t *testing.T) {
	m, err := Build(Postgres{}, `ads"; DROP`)
	require.NoError(t, err)
	assert.Contains(t, m.Insert().SQL, `INSERT INTO "ads""; DROP" (`)
}

func TestLookupAndArgs(t *testing.T) {
	m, err := Build(Postgres{}, DefaultTable)
	require.NoError(t, err)

	usa := ads.Country(countries.USA)
	cond := ads.Condition{Age: ptr(30), Country: &usa, Gender: ptr(ads.GenderFemale)}

	idx := IndexOf(cond)
	assert.Equal(t, FilterCountry|FilterAge|FilterGender, idx)
	assert.Equal(t, "country+age+gender", idx.String())

	stmt := m.Lookup(cond)
	assert.Equal(t, "targeting_select_13", stmt.Name)

	args := SelectArgs(cond, ads.Page{Limit: 10, Offset: 20})
	require.Len(t, args, stmt.Params)
	assert.Equal(t, []any{int16(840), 30, int16(2), 10, 20}, args)

	assert.Equal(t, "targeting_select_00", m.Lookup(ads.Condition{}).Name)
	assert.Equal(t, []any{5, 0}, SelectArgs(ads.Condition{}, ads.Page{Limit: 5}))
}

func TestInsertArgs(t *testing.T) {
	ad := ads.Advertisement{
		Title:    "t",
		AgeRange: ads.AgeRange{From: 18, To: 65},
		Platform: ptr(ads.PlatformIOS),
	}
	args := InsertArgs(ad)
	require.Len(t, args, 7)
	assert.Equal(t, "t", args[0])
	assert.Equal(t, 18, args[1])
	assert.Equal(t, 65, args[2])
	assert.Nil(t, args[3])
	assert.Equal(t, int16(2), args[4])
	assert.Nil(t, args[5])
}

func TestPrepareStopsAtFirstRejection(t *testing.T) {
	m, err := Build(SQLite{}, DefaultTable)
	require.NoError(t, err)

	boom := errors.New("syntax error")
	var prepared []string
	err = m.PrepareSelects(context.Background(), func(ctx context.Context, stmt Statement) error {
		prepared = append(prepared, stmt.Name)
		if stmt.Index == FilterAge {
			return boom
		}
		return nil
	})

	var stmtErr *StatementError
	require.True(t, errors.As(err, &stmtErr))
	assert.Equal(t, "targeting_select_04", stmtErr.Name)
	assert.True(t, errors.Is(err, boom))
	assert.Len(t, prepared, 5)

	require.NoError(t, m.PrepareInsert(context.Background(), func(context.Context, Statement) error { return nil }))
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("pgx")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = DialectFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

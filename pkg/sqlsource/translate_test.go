package sqlsource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhucNguyen204/fluentsearch/pkg/expr"
	"github.com/PhucNguyen204/fluentsearch/pkg/search"
)

type model struct {
	Id          string
	StringOne   string
	StringTwo   string
	StringThree *string
	Address     struct{ City string }
}

var columns = expr.NewFieldMapping(map[string]string{
	"Id":          "id",
	"StringOne":   "string_one",
	"StringTwo":   "string_two",
	"StringThree": "string_three",
})

func chainOf(fields ...string) search.Chain[model] {
	accs := make([]search.Accessor[model], len(fields))
	for i, f := range fields {
		accs[i] = search.Field[model](f)
	}
	return search.Search(search.FromSlice[model](nil), accs...)
}

func TestTranslate_Postgres(t *testing.T) {
	l, err := chainOf("StringOne", "StringTwo").Containing("Ab_").StartsWith("X").Expr()
	require.NoError(t, err)

	where, args, err := Translate(l, Postgres, columns)
	require.NoError(t, err)
	assert.Equal(t,
		`((lower("string_one") LIKE lower($1) ESCAPE '\' OR lower("string_two") LIKE lower($2) ESCAPE '\') AND `+
			`(lower("string_one") LIKE lower($3) ESCAPE '\' OR lower("string_two") LIKE lower($4) ESCAPE '\'))`,
		where)
	assert.Equal(t, []any{`%Ab\_%`, `%Ab\_%`, "X%", "X%"}, args)
}

func TestTranslate_SQLite(t *testing.T) {
	l, err := chainOf("StringOne").IsEqual("CASE", "50%").Expr()
	require.NoError(t, err)

	where, args, err := Translate(l, SQLite, columns)
	require.NoError(t, err)
	assert.Equal(t, `(lower("string_one") = lower(?) OR lower("string_one") = lower(?))`, where)
	assert.Equal(t, []any{"CASE", "50%"}, args)
}

func TestTranslate_UnmappedDottedPath(t *testing.T) {
	l, err := chainOf("Address.City").StartsWith(`a\b`).Expr()
	require.NoError(t, err)

	where, args, err := Translate(l, SQLite, expr.FieldMapping{})
	require.NoError(t, err)
	assert.Equal(t, `lower("Address"."City") LIKE lower(?) ESCAPE '\'`, where)
	assert.Equal(t, []any{`a\\b%`}, args)
}

func TestTranslate_NullArgumentNeverMatches(t *testing.T) {
	p := expr.NewParam("x")
	l := expr.Lambda{Param: p, Body: expr.OrElse(
		&expr.Call{Method: expr.MethodContains, Target: &expr.Member{Target: p, Name: "StringOne"}, Arg: &expr.Const{}},
		&expr.Call{Method: expr.MethodEquals, Target: &expr.Member{Target: p, Name: "StringTwo"}, Arg: expr.Str("a")},
	)}
	where, args, err := Translate(l, Postgres, columns)
	require.NoError(t, err)
	assert.Equal(t, `(1 = 0 OR lower("string_two") = lower($1))`, where)
	assert.Equal(t, []any{"a"}, args)
}

func TestTranslate_EmptyBody(t *testing.T) {
	l, err := chainOf("StringOne").Containing("", " ").Expr()
	require.NoError(t, err)
	where, args, err := Translate(l, Postgres, columns)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestTranslate_Untranslatable(t *testing.T) {
	fn := search.Func("upper", func(m model) *string { return &m.StringOne })
	l, err := search.Search(search.FromSlice[model](nil), fn).Containing("a").Expr()
	require.NoError(t, err)

	_, _, err = Translate(l, Postgres, columns)
	assert.ErrorIs(t, err, ErrUntranslatable)

	p := expr.NewParam("x")
	_, _, err = Translate(expr.Lambda{Param: p, Body: &expr.Member{Target: p, Name: "Id"}}, Postgres, columns)
	assert.ErrorIs(t, err, ErrUntranslatable)
}

func TestDialectByName(t *testing.T) {
	d, ok := DialectByName("PostgreSQL")
	require.True(t, ok)
	assert.Equal(t, "postgres", d.Name())
	assert.Equal(t, "$3", d.Placeholder(3))
	assert.Equal(t, `"a""b"."c"`, d.Quote(`a"b.c`))

	d, ok = DialectByName("sqlite3")
	require.True(t, ok)
	assert.Equal(t, "?", d.Placeholder(3))

	_, ok = DialectByName("oracle")
	assert.False(t, ok)
}

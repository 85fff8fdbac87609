package sqlsource

import (
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Dialect renders the parts of a statement that differ between databases.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker of the n-th argument, from 1.
	Placeholder(n int) string
	// Quote quotes a possibly dotted identifier such as "t.col".
	Quote(ident string) string
}

var (
	Postgres Dialect = postgres{}
	SQLite   Dialect = sqlite{}
)

// DialectByName looks up a dialect by its name or driver name.
func DialectByName(name string) (Dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pq", "pgx":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return nil, false
}

type postgres struct{}

func (postgres) Name() string             { return "postgres" }
func (postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgres) Quote(ident string) string {
	return quoteParts(ident, pq.QuoteIdentifier)
}

type sqlite struct{}

func (sqlite) Name() string           { return "sqlite" }
func (sqlite) Placeholder(int) string { return "?" }
func (sqlite) Quote(ident string) string {
	return quoteParts(ident, func(s string) string {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	})
}

func quoteParts(ident string, q func(string) string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = q(p)
	}
	return strings.Join(parts, ".")
}

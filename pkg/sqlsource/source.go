package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/PhucNguyen204/fluentsearch/pkg/expr"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Config describes the table a Source reads from.
type Config[R any] struct {
	DB      Querier
	Table   string
	Columns []string // empty selects *
	OrderBy string   // raw ORDER BY expression, optional
	Mapping expr.FieldMapping
	Dialect Dialect
	// Scan reads the current row; it is called once per row.
	Scan func(*sql.Rows) (R, error)
}

// Source is a search.Source backed by a SQL table.
type Source[R any] struct {
	cfg Config[R]
}

func New[R any](cfg Config[R]) (*Source[R], error) {
	if cfg.DB == nil {
		return nil, errors.New("sqlsource: DB is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, errors.New("sqlsource: table is required")
	}
	if cfg.Scan == nil {
		return nil, errors.New("sqlsource: scan function is required")
	}
	if cfg.Dialect == nil {
		cfg.Dialect = SQLite
	}
	return &Source[R]{cfg: cfg}, nil
}

// Query builds the SELECT statement for where.
func (s *Source[R]) Query(where expr.Lambda) (string, []any, error) {
	cond, args, err := Translate(where, s.cfg.Dialect, s.cfg.Mapping)
	if err != nil {
		return "", nil, err
	}
	cols := "*"
	if len(s.cfg.Columns) > 0 {
		q := make([]string, len(s.cfg.Columns))
		for i, c := range s.cfg.Columns {
			q[i] = s.cfg.Dialect.Quote(c)
		}
		cols = strings.Join(q, ", ")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, s.cfg.Dialect.Quote(s.cfg.Table))
	if cond != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(cond)
	}
	if s.cfg.OrderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(s.cfg.OrderBy)
	}
	return sb.String(), args, nil
}

// Records runs one query per call. Driver and scan errors are yielded
// unchanged and end the sequence.
func (s *Source[R]) Records(ctx context.Context, where expr.Lambda) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		query, args, err := s.Query(where)
		if err != nil {
			yield(zero, err)
			return
		}
		rows, err := s.cfg.DB.QueryContext(ctx, query, args...)
		if err != nil {
			yield(zero, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := s.cfg.Scan(rows)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// ScanMap reads the current row into a map keyed by column name. []byte
// values are returned as strings.
func ScanMap(rows *sql.Rows) (map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(cols))
	for i, c := range cols {
		if b, ok := vals[i].([]byte); ok {
			out[c] = string(b)
			continue
		}
		out[c] = vals[i]
	}
	return out, nil
}

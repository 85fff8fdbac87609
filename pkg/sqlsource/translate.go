// Package sqlsource runs search chains against a SQL table. The compound
// predicate of a chain is translated into one WHERE clause, so matching
// happens in the database.
package sqlsource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PhucNguyen204/fluentsearch/pkg/expr"
)

// ErrUntranslatable is returned for expressions that have no SQL form,
// such as opaque projections.
var ErrUntranslatable = errors.New("expression cannot be translated to SQL")

// Translate renders the body of l as a SQL boolean expression. Member paths
// are mapped to column names through m. An empty body yields an empty
// clause. Comparisons are case-insensitive through lower() on both sides.
func Translate(l expr.Lambda, d Dialect, m expr.FieldMapping) (string, []any, error) {
	if l.Body == nil {
		return "", nil, nil
	}
	if l.Param == nil {
		return "", nil, fmt.Errorf("%w: lambda has no parameter", ErrUntranslatable)
	}
	if d == nil {
		d = SQLite
	}
	t := &translator{param: l.Param, dialect: d, mapping: m}
	var sb strings.Builder
	if err := t.cond(&sb, l.Body); err != nil {
		return "", nil, err
	}
	return sb.String(), t.args, nil
}

type translator struct {
	param   *expr.Param
	dialect Dialect
	mapping expr.FieldMapping
	args    []any
}

func (t *translator) bind(v any) string {
	t.args = append(t.args, v)
	return t.dialect.Placeholder(len(t.args))
}

func (t *translator) cond(sb *strings.Builder, n expr.Node) error {
	switch x := n.(type) {
	case *expr.Binary:
		op := " AND "
		if x.Op == expr.OpOrElse {
			op = " OR "
		}
		sb.WriteByte('(')
		if err := t.cond(sb, x.Left); err != nil {
			return err
		}
		sb.WriteString(op)
		if err := t.cond(sb, x.Right); err != nil {
			return err
		}
		sb.WriteByte(')')
		return nil
	case *expr.Call:
		return t.call(sb, x)
	default:
		return fmt.Errorf("%w: %s is not a condition", ErrUntranslatable, n.Kind())
	}
}

func (t *translator) call(sb *strings.Builder, c *expr.Call) error {
	col, err := t.column(c.Target)
	if err != nil {
		return err
	}
	arg, ok := c.Arg.(*expr.Const)
	if !ok {
		return fmt.Errorf("%w: argument %s is not a literal", ErrUntranslatable, c.Arg)
	}
	// so sánh với null không bao giờ đúng
	if arg.Value == nil {
		sb.WriteString("1 = 0")
		return nil
	}
	// term giữ nguyên, cả hai vế được fold bởi cùng một hàm lower() của database
	term := *arg.Value
	switch c.Method {
	case expr.MethodContains:
		fmt.Fprintf(sb, `lower(%s) LIKE lower(%s) ESCAPE '\'`, col, t.bind("%"+escapeLike(term)+"%"))
	case expr.MethodStartsWith:
		fmt.Fprintf(sb, `lower(%s) LIKE lower(%s) ESCAPE '\'`, col, t.bind(escapeLike(term)+"%"))
	case expr.MethodEquals:
		fmt.Fprintf(sb, "lower(%s) = lower(%s)", col, t.bind(term))
	default:
		return fmt.Errorf("%w: method %s", ErrUntranslatable, c.Method)
	}
	return nil
}

func (t *translator) column(n expr.Node) (string, error) {
	path, ok := expr.Path(n, t.param)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a column", ErrUntranslatable, n)
	}
	return t.dialect.Quote(t.mapping.Resolve(path)), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

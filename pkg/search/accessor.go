package search

import (
	"strings"

	"github.com/PhucNguyen204/fluentsearch/pkg/expr"
)

// Accessor describes how to project a string (or null) out of a record of
// type R. It keeps the projection as an expression tree so that several
// accessors can be rebound onto one parameter and combined.
type Accessor[R any] struct {
	lambda expr.Lambda
}

// Field selects an exported string or *string field of R by name. Dotted
// paths walk nested structs or maps, e.g. "Address.City".
func Field[R any](path string) Accessor[R] {
	if path == "" {
		return Accessor[R]{}
	}
	p := expr.NewParam("x")
	var body expr.Node = p
	for _, name := range strings.Split(path, ".") {
		body = &expr.Member{Target: body, Name: name}
	}
	return Accessor[R]{lambda: expr.Lambda{Param: p, Body: body}}
}

// Func wraps an arbitrary projection. Func accessors are evaluated in memory
// only: sources that translate predicates to another query language reject
// them.
func Func[R any](name string, fn func(R) *string) Accessor[R] {
	if fn == nil {
		return Accessor[R]{}
	}
	p := expr.NewParam("x")
	return Accessor[R]{lambda: expr.Lambda{Param: p, Body: &expr.Invoke{
		Name:   name,
		Target: p,
		Fn: func(v any) *string {
			r, _ := v.(R)
			return fn(r)
		},
	}}}
}

// Text is a constant accessor, used as a literal comparison target.
func Text[R any](s string) Accessor[R] {
	return Accessor[R]{lambda: expr.Lambda{Param: expr.NewParam("x"), Body: expr.Str(s)}}
}

func (a Accessor[R]) Lambda() expr.Lambda { return a.lambda }

func (a Accessor[R]) IsZero() bool { return !a.lambda.Valid() }

func (a Accessor[R]) String() string { return a.lambda.String() }

// Package search composes case-insensitive match predicates over string
// fields of records and scores records by edit distance.
//
//	hits, err := search.Search(search.FromSlice(models),
//		search.Field[Model]("StringOne"), search.Field[Model]("StringTwo")).
//		Containing("cd", "jk").
//		StartsWith("a").
//		ToSlice(ctx)
package search

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/PhucNguyen204/fluentsearch/pkg/expr"
)

// Chain is an immutable, not yet executed search. Every method returns a new
// Chain; a Chain value can be branched freely.
type Chain[R any] struct {
	src    Source[R]
	param  *expr.Param
	fields []expr.Node // bodies rebound onto param, never mutated
	where  expr.Node
	post   []func(R) bool // applied after the source, in memory
	err    error
}

// Search starts a chain over src. Without fields every exported string
// field of R is searched.
func Search[R any](src Source[R], fields ...Accessor[R]) Chain[R] {
	c := Chain[R]{src: src, param: expr.NewParam("x")}
	if src == nil {
		c.err = invalidArg("source", "must not be nil", nil)
		return c
	}
	typ := reflect.TypeFor[R]()
	if len(fields) == 0 {
		names := expr.StringFields(typ)
		if len(names) == 0 {
			c.err = invalidArg("fields", fmt.Sprintf("%v has no string fields to search", typ), nil)
			return c
		}
		for _, n := range names {
			fields = append(fields, Field[R](n))
		}
	}
	c.fields, c.err = bind(c.param, typ, "fields", fields)
	return c
}

// bind validates accessors against R and rebinds them onto p.
func bind[R any](p *expr.Param, typ reflect.Type, name string, accs []Accessor[R]) ([]expr.Node, error) {
	out := make([]expr.Node, 0, len(accs))
	for i, a := range accs {
		if a.IsZero() {
			return nil, invalidArg(fmt.Sprintf("%s[%d]", name, i), "accessor is not set", nil)
		}
		l := expr.Rebind(a.lambda, p)
		if _, err := expr.Compile(l, typ); err != nil {
			return nil, invalidArg(fmt.Sprintf("%s[%d]", name, i), a.lambda.Body.String(), err)
		}
		out = append(out, l.Body)
	}
	return out, nil
}

// Containing keeps records where any field contains any term.
func (c Chain[R]) Containing(terms ...string) Chain[R] {
	return c.stage(expr.MethodContains, terms)
}

// StartsWith keeps records where any field starts with any term.
func (c Chain[R]) StartsWith(terms ...string) Chain[R] {
	return c.stage(expr.MethodStartsWith, terms)
}

// IsEqual keeps records where any field equals any term.
func (c Chain[R]) IsEqual(terms ...string) Chain[R] {
	return c.stage(expr.MethodEquals, terms)
}

// stage OR-joins fields × terms and ANDs the result onto the chain. Blank
// terms are dropped; with no term left the chain is returned unchanged.
func (c Chain[R]) stage(m expr.Method, terms []string) Chain[R] {
	if c.err != nil {
		return c
	}
	var or expr.Node
	for _, t := range terms {
		if strings.TrimSpace(t) == "" {
			continue
		}
		for _, f := range c.fields {
			or = expr.OrElse(or, &expr.Call{Method: m, Target: f, Arg: expr.Str(t)})
		}
	}
	if or == nil {
		return c
	}
	c.where = expr.AndAlso(c.where, or)
	return c
}

// Where keeps records accepted by fn. fn runs in memory on what the source
// yields, so it also narrows chains over remote sources.
func (c Chain[R]) Where(fn func(R) bool) Chain[R] {
	if fn == nil || c.err != nil {
		return c
	}
	post := make([]func(R) bool, 0, len(c.post)+1)
	post = append(post, c.post...)
	c.post = append(post, fn)
	return c
}

// Err returns the construction error of the chain, if any. A zero Chain
// has no source and reports ErrInvalidArgument.
func (c Chain[R]) Err() error {
	if c.err == nil && c.src == nil {
		return invalidArg("source", "chain was not created by Search", nil)
	}
	return c.err
}

// Expr returns the compound predicate as a single-parameter lambda. A nil
// body means the chain has no constraint yet.
func (c Chain[R]) Expr() (expr.Lambda, error) {
	if err := c.Err(); err != nil {
		return expr.Lambda{}, err
	}
	return expr.Lambda{Param: c.param, Body: c.where}, nil
}

// Predicate compiles the chain into a plain function of one record.
func (c Chain[R]) Predicate() (func(R) bool, error) {
	l, err := c.Expr()
	if err != nil {
		return nil, err
	}
	prog, err := expr.Compile(l, reflect.TypeFor[R]())
	if err != nil {
		return nil, err
	}
	post := c.post
	return func(r R) bool { return prog.Match(r) && accept(post, r) }, nil
}

// Iter runs the chain against its source. The sequence is lazy: breaking
// out of the loop stops evaluation.
func (c Chain[R]) Iter(ctx context.Context) iter.Seq2[R, error] {
	l, err := c.Expr()
	if err != nil {
		return func(yield func(R, error) bool) {
			var zero R
			yield(zero, err)
		}
	}
	seq := c.src.Records(ctx, l)
	if len(c.post) == 0 {
		return seq
	}
	post := c.post
	return func(yield func(R, error) bool) {
		for rec, err := range seq {
			if err != nil {
				var zero R
				yield(zero, err)
				return
			}
			if !accept(post, rec) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func accept[T any](fns []func(T) bool, v T) bool {
	for _, fn := range fns {
		if !fn(v) {
			return false
		}
	}
	return true
}

func (c Chain[R]) ToSlice(ctx context.Context) ([]R, error) {
	var out []R
	for r, err := range c.Iter(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (c Chain[R]) Count(ctx context.Context) (int, error) {
	n := 0
	for _, err := range c.Iter(ctx) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// First returns the first matching record; ok is false when there is none.
func (c Chain[R]) First(ctx context.Context) (r R, ok bool, err error) {
	for rec, err := range c.Iter(ctx) {
		if err != nil {
			return r, false, err
		}
		return rec, true, nil
	}
	return r, false, nil
}

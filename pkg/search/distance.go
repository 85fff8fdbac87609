package search

import (
	"context"
	"iter"
	"reflect"

	"github.com/PhucNguyen204/fluentsearch/pkg/expr"
	"github.com/PhucNguyen204/fluentsearch/pkg/levenshtein"
)

// Scored is one record with its edit distances. Distances[i*T+j] is the
// distance between source field i and target j (T targets).
type Scored[R any] struct {
	Item            R
	Distances       []int
	MinimumDistance int
	MaximumDistance int
}

// Distance returns the first distance, the only one when a single field is
// compared to a single target.
func (s Scored[R]) Distance() int {
	if len(s.Distances) == 0 {
		return 0
	}
	return s.Distances[0]
}

// DistanceBuilder holds the source fields of a distance stage until the
// comparison targets are known.
type DistanceBuilder[R any] struct {
	chain   Chain[R]
	sources []expr.Node
	err     error
}

// LevenshteinDistanceOf selects the fields whose distances are computed.
func (c Chain[R]) LevenshteinDistanceOf(fields ...Accessor[R]) DistanceBuilder[R] {
	b := DistanceBuilder[R]{chain: c, err: c.Err()}
	if b.err != nil {
		return b
	}
	if len(fields) == 0 {
		b.err = invalidArg("fields", "at least one field is required", nil)
		return b
	}
	b.sources, b.err = bind(c.param, reflect.TypeFor[R](), "fields", fields)
	return b
}

// ComparedTo compares every source field with each literal string.
func (b DistanceBuilder[R]) ComparedTo(terms ...string) Distances[R] {
	targets := make([]Accessor[R], len(terms))
	for i, t := range terms {
		targets[i] = Text[R](t)
	}
	return b.Compare(targets...)
}

// ComparedToFields compares every source field with each target field of
// the same record.
func (b DistanceBuilder[R]) ComparedToFields(fields ...Accessor[R]) Distances[R] {
	return b.Compare(fields...)
}

// Compare accepts any mix of Text and field accessors as targets.
func (b DistanceBuilder[R]) Compare(targets ...Accessor[R]) Distances[R] {
	d := Distances[R]{chain: b.chain, sources: b.sources, err: b.err}
	if d.err != nil {
		return d
	}
	if len(targets) == 0 {
		d.err = invalidArg("targets", "at least one target is required", nil)
		return d
	}
	d.targets, d.err = bind(b.chain.param, reflect.TypeFor[R](), "targets", targets)
	return d
}

// Distances is the lazy sequence of scored records. It never filters on its
// own: every record of the chain produces one Scored value.
type Distances[R any] struct {
	chain   Chain[R]
	sources []expr.Node
	targets []expr.Node
	keep    []func(Scored[R]) bool
	err     error
}

// Where keeps only the scored records accepted by fn.
func (d Distances[R]) Where(fn func(Scored[R]) bool) Distances[R] {
	if fn == nil {
		return d
	}
	keep := make([]func(Scored[R]) bool, 0, len(d.keep)+1)
	keep = append(keep, d.keep...)
	d.keep = append(keep, fn)
	return d
}

func (d Distances[R]) Err() error { return d.err }

func (d Distances[R]) compile() (src, tgt []*expr.Program, err error) {
	typ := reflect.TypeFor[R]()
	build := func(nodes []expr.Node) ([]*expr.Program, error) {
		out := make([]*expr.Program, len(nodes))
		for i, n := range nodes {
			p, err := expr.Compile(expr.Lambda{Param: d.chain.param, Body: n}, typ)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	}
	if src, err = build(d.sources); err != nil {
		return nil, nil, err
	}
	if tgt, err = build(d.targets); err != nil {
		return nil, nil, err
	}
	return src, tgt, nil
}

func (d Distances[R]) Iter(ctx context.Context) iter.Seq2[Scored[R], error] {
	return func(yield func(Scored[R], error) bool) {
		var zero Scored[R]
		if d.err != nil {
			yield(zero, d.err)
			return
		}
		src, tgt, err := d.compile()
		if err != nil {
			yield(zero, err)
			return
		}
		sv := make([]*string, len(src))
		tv := make([]*string, len(tgt))
		for rec, err := range d.chain.Iter(ctx) {
			if err != nil {
				yield(zero, err)
				return
			}
			// mỗi field chỉ đọc một lần cho mỗi record
			for i, p := range src {
				sv[i] = p.Eval(rec)
			}
			for j, p := range tgt {
				tv[j] = p.Eval(rec)
			}
			s := score(rec, sv, tv)
			if !accept(d.keep, s) {
				continue
			}
			if !yield(s, nil) {
				return
			}
		}
	}
}

func score[R any](rec R, sv, tv []*string) Scored[R] {
	s := Scored[R]{Item: rec, Distances: make([]int, 0, len(sv)*len(tv))}
	for _, a := range sv {
		for _, b := range tv {
			s.Distances = append(s.Distances, levenshtein.Nullable(a, b))
		}
	}
	for k, v := range s.Distances {
		if k == 0 || v < s.MinimumDistance {
			s.MinimumDistance = v
		}
		if k == 0 || v > s.MaximumDistance {
			s.MaximumDistance = v
		}
	}
	return s
}

func (d Distances[R]) ToSlice(ctx context.Context) ([]Scored[R], error) {
	var out []Scored[R]
	for s, err := range d.Iter(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d Distances[R]) Count(ctx context.Context) (int, error) {
	n := 0
	for _, err := range d.Iter(ctx) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func (d Distances[R]) First(ctx context.Context) (s Scored[R], ok bool, err error) {
	for sc, err := range d.Iter(ctx) {
		if err != nil {
			return s, false, err
		}
		return sc, true, nil
	}
	return s, false, nil
}

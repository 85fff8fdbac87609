package search

import (
	"context"
	"iter"
	"reflect"

	"github.com/PhucNguyen204/fluentsearch/pkg/expr"
)

// Source is the execution backend of a chain. Records receives the compound
// predicate of the chain (a lambda with nil body means no constraint) once
// per terminal call and yields the matching records in source order.
// Errors are yielded as-is and end the sequence.
type Source[R any] interface {
	Records(ctx context.Context, where expr.Lambda) iter.Seq2[R, error]
}

// FromSlice is an in-memory source; it is restartable.
func FromSlice[R any](items []R) Source[R] {
	return seqSource[R]{seq: func(yield func(R) bool) {
		for _, it := range items {
			if !yield(it) {
				return
			}
		}
	}}
}

// FromSeq adapts a sequence; it is restartable only if seq is.
func FromSeq[R any](seq iter.Seq[R]) Source[R] {
	return seqSource[R]{seq: seq}
}

type seqSource[R any] struct {
	seq iter.Seq[R]
}

func (s seqSource[R]) Records(ctx context.Context, where expr.Lambda) iter.Seq2[R, error] {
	return Filter(ctx, s.seq, where)
}

// Filter compiles where against R and lazily yields the records of seq that
// satisfy it. Compilation errors are yielded before any record is read.
func Filter[R any](ctx context.Context, seq iter.Seq[R], where expr.Lambda) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		prog, err := expr.Compile(where, reflect.TypeFor[R]())
		if err != nil {
			yield(zero, err)
			return
		}
		for rec := range seq {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			if !prog.Match(rec) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

package querydef

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/PhucNguyen204/fluentsearch/internal/records"
	"github.com/PhucNguyen204/fluentsearch/pkg/expr"
	"github.com/PhucNguyen204/fluentsearch/pkg/search"
)

type Record = records.Record

// ErrNoFields is returned when a definition has no fields and none can be
// discovered from the records.
var ErrNoFields = errors.New("no fields to search")

// Match is one record of a result, with its scores when the definition has
// a distance stage.
type Match struct {
	Record          Record `json:"record"`
	Distances       []int  `json:"distances,omitempty"`
	MinimumDistance *int   `json:"minimum_distance,omitempty"`
	MaximumDistance *int   `json:"maximum_distance,omitempty"`
}

type Result struct {
	ID        string  `json:"id"`
	Title     string  `json:"title,omitempty"`
	Query     string  `json:"query"`
	Count     int     `json:"count"`
	Truncated bool    `json:"truncated,omitempty"`
	Matches   []Match `json:"matches"`
}

// Query is a definition bound to a source, ready to execute.
type Query struct {
	def      Definition
	chain    search.Chain[Record]
	distance *search.Distances[Record]
}

// Build resolves the fields of def (aliases first, then allFields when def
// lists none) and composes the chain over src.
func Build(def Definition, src search.Source[Record], allFields []string) (*Query, error) {
	aliases := aliasMapping(def.Aliases)
	names := def.Fields
	if len(names) == 0 {
		names = allFields
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", def.ID, ErrNoFields)
	}
	chain := search.Search(src, accessors(aliases, names)...)
	for _, st := range def.Stages {
		switch st.Method {
		case expr.MethodContains:
			chain = chain.Containing(st.Terms...)
		case expr.MethodStartsWith:
			chain = chain.StartsWith(st.Terms...)
		case expr.MethodEquals:
			chain = chain.IsEqual(st.Terms...)
		}
	}
	if err := chain.Err(); err != nil {
		return nil, err
	}
	q := &Query{def: def, chain: chain}
	if ds := def.Distance; ds != nil {
		targets := make([]search.Accessor[Record], len(ds.To))
		for i, t := range ds.To {
			if t.Text != nil {
				targets[i] = search.Text[Record](*t.Text)
			} else {
				targets[i] = search.Field[Record](aliases.Resolve(t.Field))
			}
		}
		d := chain.LevenshteinDistanceOf(accessors(aliases, ds.Of)...).Compare(targets...)
		if ds.Max != nil {
			bound := *ds.Max
			d = d.Where(func(s search.Scored[Record]) bool { return s.MinimumDistance <= bound })
		}
		if err := d.Err(); err != nil {
			return nil, err
		}
		q.distance = &d
	}
	return q, nil
}

func aliasMapping(m map[string]string) expr.FieldMapping {
	fm := expr.NewFieldMapping(nil)
	for k, v := range m {
		fm.M[k] = v
		fm.M[strings.ToLower(k)] = v
	}
	return fm
}

func accessors(aliases expr.FieldMapping, names []string) []search.Accessor[Record] {
	out := make([]search.Accessor[Record], len(names))
	for i, n := range names {
		out[i] = search.Field[Record](aliases.Resolve(n))
	}
	return out
}

// Expr returns the textual form of the composed predicate.
func (q *Query) Expr() string {
	l, err := q.chain.Expr()
	if err != nil {
		return ""
	}
	return l.String()
}

func (q *Query) Definition() Definition { return q.def }

// Chain exposes the composed predicate, e.g. for translation.
func (q *Query) Chain() search.Chain[Record] { return q.chain }

func (q *Query) Execute(ctx context.Context) (Result, error) {
	res := Result{ID: q.def.ID, Title: q.def.Title, Query: q.Expr(), Matches: []Match{}}
	limit := q.def.Limit
	full := func() bool { return limit > 0 && len(res.Matches) >= limit }

	if q.distance == nil {
		for rec, err := range q.chain.Iter(ctx) {
			if err != nil {
				return Result{}, err
			}
			if full() {
				res.Truncated = true
				break
			}
			res.Matches = append(res.Matches, Match{Record: rec})
		}
		res.Count = len(res.Matches)
		return res, nil
	}

	// sort phải đọc hết rồi mới cắt theo limit
	sorted := q.def.Distance.Sort
	for s, err := range q.distance.Iter(ctx) {
		if err != nil {
			return Result{}, err
		}
		if !sorted && full() {
			res.Truncated = true
			break
		}
		lo, hi := s.MinimumDistance, s.MaximumDistance
		res.Matches = append(res.Matches, Match{Record: s.Item, Distances: s.Distances, MinimumDistance: &lo, MaximumDistance: &hi})
	}
	if sorted {
		sort.SliceStable(res.Matches, func(i, j int) bool {
			return *res.Matches[i].MinimumDistance < *res.Matches[j].MinimumDistance
		})
		if limit > 0 && len(res.Matches) > limit {
			res.Matches = res.Matches[:limit]
			res.Truncated = true
		}
	}
	res.Count = len(res.Matches)
	return res, nil
}

// Run executes def over an in-memory dataset. Definitions without fields
// search every key holding a string in some record.
func Run(ctx context.Context, def Definition, recs []Record) (Result, error) {
	q, err := Build(def, search.FromSlice(recs), records.StringKeys(recs))
	if err != nil {
		return Result{}, err
	}
	return q.Execute(ctx)
}

// RunBatch runs defs concurrently over recs; results keep the order of defs.
func RunBatch(ctx context.Context, defs []Definition, recs []Record, workers int) ([]Result, error) {
	return ExecuteBatch(ctx, defs, search.FromSlice(recs), records.StringKeys(recs), workers)
}

// ExecuteBatch runs defs concurrently over src with at most workers in
// flight. src must be safe for concurrent use. The first error cancels the
// remaining definitions.
func ExecuteBatch(ctx context.Context, defs []Definition, src search.Source[Record], allFields []string, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([]Result, len(defs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, def := range defs {
		g.Go(func() error {
			q, err := Build(def, src, allFields)
			if err != nil {
				return fmt.Errorf("query %s: %w", def.ID, err)
			}
			r, err := q.Execute(ctx)
			if err != nil {
				return fmt.Errorf("query %s: %w", def.ID, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

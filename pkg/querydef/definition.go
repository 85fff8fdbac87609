// Package querydef reads declarative search definitions from YAML (or JSON)
// and runs them over loosely typed records.
package querydef

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PhucNguyen204/fluentsearch/pkg/expr"
)

// Definition is one parsed search.
type Definition struct {
	ID      string
	Title   string
	Fields  []string // empty = every string field
	Aliases map[string]string
	Stages  []Stage
	// Distance is optional; without it matches carry no scores.
	Distance *DistanceSpec
	Limit    int
}

// Stage is one Containing / StartsWith / IsEqual call.
type Stage struct {
	Method expr.Method
	Terms  []string
}

type DistanceSpec struct {
	Of  []string
	To  []Target
	Max *int // keep scores with MinimumDistance <= Max
	// Sort orders matches by MinimumDistance, stable.
	Sort bool
}

// Target is either a literal text or a field of the same record.
type Target struct {
	Text  *string
	Field string
}

func (t Target) String() string {
	if t.Text != nil {
		return fmt.Sprintf("%q", *t.Text)
	}
	return t.Field
}

type rawDefinition struct {
	ID       string            `yaml:"id"`
	Title    string            `yaml:"title"`
	Fields   any               `yaml:"fields"`
	Aliases  map[string]string `yaml:"aliases"`
	Stages   []map[string]any  `yaml:"stages"`
	Distance *rawDistance      `yaml:"distance"`
	Limit    int               `yaml:"limit"`
}

type rawDistance struct {
	Of   any   `yaml:"of"`
	To   []any `yaml:"to"`
	Max  *int  `yaml:"max"`
	Sort bool  `yaml:"sort"`
}

var ErrInvalidDefinition = errors.New("invalid search definition")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}

// Parse decodes one definition. JSON documents are accepted too.
func Parse(b []byte) (Definition, error) {
	var rd rawDefinition
	if err := yaml.Unmarshal(b, &rd); err != nil {
		return Definition{}, err
	}
	return rd.definition()
}

// ParseList decodes a list of definitions, given either as a bare list or
// as {queries: [...]}.
func ParseList(b []byte) ([]Definition, error) {
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	var rds []rawDefinition
	switch v.(type) {
	case []any:
		if err := yaml.Unmarshal(b, &rds); err != nil {
			return nil, err
		}
	case map[string]any:
		var wrapped struct {
			Queries []rawDefinition `yaml:"queries"`
		}
		if err := yaml.Unmarshal(b, &wrapped); err != nil {
			return nil, err
		}
		rds = wrapped.Queries
	case nil:
		return nil, nil
	default:
		return nil, invalid("expected a list of definitions")
	}
	out := make([]Definition, 0, len(rds))
	for i, rd := range rds {
		d, err := rd.definition()
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		if d.ID == "" {
			d.ID = fmt.Sprintf("query-%d", i)
		}
		out = append(out, d)
	}
	return out, nil
}

func (rd rawDefinition) definition() (Definition, error) {
	fields, err := stringList(rd.Fields)
	if err != nil {
		return Definition{}, invalid("fields: %v", err)
	}
	if rd.Limit < 0 {
		return Definition{}, invalid("limit must not be negative")
	}

	def := Definition{
		ID:      strings.TrimSpace(rd.ID),
		Title:   rd.Title,
		Fields:  fields,
		Aliases: rd.Aliases,
		Limit:   rd.Limit,
	}
	if def.ID == "" {
		def.ID = def.Title
	}
	for i, raw := range rd.Stages {
		st, err := parseStage(raw)
		if err != nil {
			return Definition{}, fmt.Errorf("stage %d: %w", i, err)
		}
		def.Stages = append(def.Stages, st)
	}
	if rd.Distance != nil {
		ds, err := parseDistance(rd.Distance)
		if err != nil {
			return Definition{}, fmt.Errorf("distance: %w", err)
		}
		def.Distance = ds
	}
	return def, nil
}

// parseStage đọc một stage dạng {contains: [..]}; đúng một toán tử mỗi stage.
func parseStage(raw map[string]any) (Stage, error) {
	if len(raw) != 1 {
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return Stage{}, invalid("expected exactly one operator, got %v", keys)
	}
	for key, val := range raw {
		m, err := parseMethod(key)
		if err != nil {
			return Stage{}, err
		}
		terms, err := stringList(val)
		if err != nil {
			return Stage{}, invalid("%s: %v", key, err)
		}
		return Stage{Method: m, Terms: terms}, nil
	}
	return Stage{}, nil
}

func parseMethod(s string) (expr.Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "contains", "containing":
		return expr.MethodContains, nil
	case "startswith", "starts_with", "prefix":
		return expr.MethodStartsWith, nil
	case "equals", "eq", "isequal", "is":
		return expr.MethodEquals, nil
	default:
		return 0, invalid("unsupported operator %q", s)
	}
}

func parseDistance(rd *rawDistance) (*DistanceSpec, error) {
	of, err := stringList(rd.Of)
	if err != nil {
		return nil, invalid("of: %v", err)
	}
	if len(of) == 0 {
		return nil, invalid("of: at least one field is required")
	}
	if len(rd.To) == 0 {
		return nil, invalid("to: at least one target is required")
	}
	ds := &DistanceSpec{Of: of, Max: rd.Max, Sort: rd.Sort}
	for i, item := range rd.To {
		t, err := parseTarget(item)
		if err != nil {
			return nil, invalid("to[%d]: %v", i, err)
		}
		ds.To = append(ds.To, t)
	}
	return ds, nil
}

func parseTarget(v any) (Target, error) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) != 1 {
			return Target{}, errors.New("expected one of text or field")
		}
		if s, ok := t["text"]; ok {
			text := scalar(s)
			return Target{Text: &text}, nil
		}
		if f, ok := t["field"].(string); ok && strings.TrimSpace(f) != "" {
			return Target{Field: f}, nil
		}
		return Target{}, errors.New("expected one of text or field")
	case []any:
		return Target{}, errors.New("target must not be a list")
	default:
		text := scalar(t)
		return Target{Text: &text}, nil
	}
}

// stringList accepts a scalar or a list of scalars.
func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			switch item.(type) {
			case map[string]any, []any:
				return nil, fmt.Errorf("item %d is not a scalar", i)
			}
			out = append(out, scalar(item))
		}
		return out, nil
	case map[string]any:
		return nil, errors.New("expected a scalar or a list")
	default:
		return []string{scalar(t)}, nil
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

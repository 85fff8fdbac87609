package expr

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrNotString    = errors.New("field is not string-valued")
	ErrUnsupported  = errors.New("unsupported expression")
)

// FieldError reports a member path that cannot be resolved on a record type.
type FieldError struct {
	Path string
	Type reflect.Type
	Err  error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q on %v: %v", e.Path, e.Type, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// acMinPatterns là số term contains tối thiểu trên cùng một field để dùng Aho-Corasick.
const acMinPatterns = 4

type (
	valueFn  func(reflect.Value) (reflect.Value, bool)
	stringFn func(reflect.Value) *string
	boolFn   func(reflect.Value) bool
)

// Program is a lambda compiled against one record type. Member paths are
// resolved once at compile time; evaluation is allocation-light and never
// panics on null or missing values.
type Program struct {
	lambda Lambda
	typ    reflect.Type
	always bool
	match  boolFn
	eval   stringFn
}

// Compile resolves l against records of type t. Boolean bodies (Call,
// Binary) are evaluated with Match, string-valued bodies with Eval.
func Compile(l Lambda, t reflect.Type) (*Program, error) {
	if l.Param == nil {
		return nil, fmt.Errorf("%w: lambda has no parameter", ErrUnsupported)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: nil record type", ErrUnsupported)
	}
	c := &compiler{param: l.Param, typ: t}
	p := &Program{lambda: l, typ: t}
	switch {
	case l.Body == nil:
		p.always = true
	case isCondition(l.Body):
		m, err := c.condition(l.Body)
		if err != nil {
			return nil, err
		}
		p.match = m
	default:
		s, err := c.str(l.Body)
		if err != nil {
			return nil, err
		}
		p.eval = s
	}
	return p, nil
}

func isCondition(n Node) bool {
	switch n.(type) {
	case *Call, *Binary:
		return true
	}
	return false
}

func (p *Program) Lambda() Lambda     { return p.lambda }
func (p *Program) Type() reflect.Type { return p.typ }
func (p *Program) IsCondition() bool  { return p.always || p.match != nil }

// Match evaluates a condition program. A program without body matches
// every record.
func (p *Program) Match(rec any) bool {
	if p.always {
		return true
	}
	if p.match == nil {
		return false
	}
	v, ok := p.value(rec)
	if !ok {
		return false
	}
	return p.match(v)
}

// Eval evaluates a string-valued program; nil means null.
func (p *Program) Eval(rec any) *string {
	if p.eval == nil {
		return nil
	}
	v, ok := p.value(rec)
	if !ok {
		return nil
	}
	return p.eval(v)
}

func (p *Program) value(rec any) (reflect.Value, bool) {
	v := reflect.ValueOf(rec)
	if !v.IsValid() {
		return v, false
	}
	if p.typ.Kind() != reflect.Interface && v.Type() != p.typ {
		return v, false
	}
	return v, true
}

type compiler struct {
	param *Param
	typ   reflect.Type
}

func (c *compiler) pathOf(n Node) string {
	if p, ok := Path(n, c.param); ok {
		return p
	}
	return n.String()
}

func (c *compiler) value(n Node) (valueFn, reflect.Type, error) {
	switch t := n.(type) {
	case *Param:
		if t != c.param {
			return nil, nil, fmt.Errorf("%w: parameter %s is not bound by the lambda", ErrUnsupported, t.Name)
		}
		return func(v reflect.Value) (reflect.Value, bool) { return v, true }, c.typ, nil
	case *Member:
		target, tt, err := c.value(t.Target)
		if err != nil {
			return nil, nil, err
		}
		return c.member(t, target, tt)
	default:
		return nil, nil, fmt.Errorf("%w: %s is not a value", ErrUnsupported, n.Kind())
	}
}

func (c *compiler) member(m *Member, target valueFn, tt reflect.Type) (valueFn, reflect.Type, error) {
	base := tt
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if m.Name == "" {
		return nil, nil, &FieldError{Path: c.pathOf(m), Type: c.typ, Err: ErrUnknownField}
	}
	switch base.Kind() {
	case reflect.Struct:
		f, ok := base.FieldByName(m.Name)
		if !ok || !f.IsExported() {
			return nil, nil, &FieldError{Path: c.pathOf(m), Type: c.typ, Err: ErrUnknownField}
		}
		idx := f.Index
		return func(v reflect.Value) (reflect.Value, bool) {
			v, ok := target(v)
			if !ok {
				return v, false
			}
			if v, ok = indirect(v); !ok {
				return v, false
			}
			fv, err := v.FieldByIndexErr(idx)
			if err != nil {
				return reflect.Value{}, false
			}
			return fv, true
		}, f.Type, nil
	case reflect.Map:
		if base.Key().Kind() != reflect.String {
			return nil, nil, &FieldError{Path: c.pathOf(m), Type: c.typ, Err: ErrUnknownField}
		}
		key := reflect.ValueOf(m.Name).Convert(base.Key())
		return func(v reflect.Value) (reflect.Value, bool) {
			v, ok := target(v)
			if !ok {
				return v, false
			}
			if v, ok = indirect(v); !ok {
				return v, false
			}
			mv := v.MapIndex(key)
			return mv, mv.IsValid()
		}, base.Elem(), nil
	case reflect.Interface:
		name := m.Name
		return func(v reflect.Value) (reflect.Value, bool) {
			v, ok := target(v)
			if !ok {
				return v, false
			}
			return dynamicMember(v, name)
		}, base, nil
	default:
		return nil, nil, &FieldError{Path: c.pathOf(m), Type: c.typ, Err: ErrUnknownField}
	}
}

// dynamicMember resolves name on a value whose type is only known at runtime
// (records typed as any, or map[string]any nesting).
func dynamicMember(v reflect.Value, name string) (reflect.Value, bool) {
	v, ok := indirect(v)
	if !ok {
		return v, false
	}
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		mv := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		return mv, mv.IsValid()
	case reflect.Struct:
		f, ok := v.Type().FieldByName(name)
		if !ok || !f.IsExported() {
			return reflect.Value{}, false
		}
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil {
			return reflect.Value{}, false
		}
		return fv, true
	default:
		return reflect.Value{}, false
	}
}

func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

func (c *compiler) str(n Node) (stringFn, error) {
	switch t := n.(type) {
	case *Const:
		val := t.Value
		return func(reflect.Value) *string { return val }, nil
	case *Invoke:
		if t.Fn == nil {
			return nil, fmt.Errorf("%w: projection %s has no function", ErrUnsupported, t.Name)
		}
		target, _, err := c.value(t.Target)
		if err != nil {
			return nil, err
		}
		fn := t.Fn
		return func(v reflect.Value) *string {
			tv, ok := target(v)
			if !ok || !tv.CanInterface() {
				return nil
			}
			return fn(tv.Interface())
		}, nil
	case *Param, *Member:
		vf, vt, err := c.value(n)
		if err != nil {
			return nil, err
		}
		conv, err := stringer(vt)
		if err != nil {
			return nil, &FieldError{Path: c.pathOf(n), Type: c.typ, Err: err}
		}
		return func(v reflect.Value) *string {
			x, ok := vf(v)
			if !ok {
				return nil
			}
			return conv(x)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s is not string-valued", ErrUnsupported, n.Kind())
	}
}

func stringer(t reflect.Type) (stringFn, error) {
	switch {
	case t.Kind() == reflect.String:
		return func(v reflect.Value) *string {
			s := v.String()
			return &s
		}, nil
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.String:
		return func(v reflect.Value) *string {
			if v.IsNil() {
				return nil
			}
			s := v.Elem().String()
			return &s
		}, nil
	case t.Kind() == reflect.Interface:
		return dynamicString, nil
	default:
		return nil, ErrNotString
	}
}

// dynamicString chuẩn hoá scalar về string; nil/array/object => null.
func dynamicString(v reflect.Value) *string {
	v, ok := indirect(v)
	if !ok {
		return nil
	}
	var s string
	switch v.Kind() {
	case reflect.String:
		s = v.String()
	case reflect.Bool:
		s = strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		s = strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		s = strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		s = strconv.FormatFloat(v.Float(), 'g', -1, 64)
	default:
		return nil
	}
	return &s
}

func (c *compiler) condition(n Node) (boolFn, error) {
	switch t := n.(type) {
	case *Binary:
		if t.Op == OpOrElse {
			return c.disjunction(flattenOr(t, nil))
		}
		l, err := c.condition(t.Left)
		if err != nil {
			return nil, err
		}
		r, err := c.condition(t.Right)
		if err != nil {
			return nil, err
		}
		return func(v reflect.Value) bool { return l(v) && r(v) }, nil
	case *Call:
		return c.disjunction([]Node{t})
	default:
		return nil, fmt.Errorf("%w: %s is not a condition", ErrUnsupported, n.Kind())
	}
}

func flattenOr(n Node, out []Node) []Node {
	if b, ok := n.(*Binary); ok && b.Op == OpOrElse {
		out = flattenOr(b.Left, out)
		return flattenOr(b.Right, out)
	}
	return append(out, n)
}

// disjunction compiles OR'ed leaves. Calls over the same member path share
// one projection, so each field is read once per record however many terms
// are tested against it.
func (c *compiler) disjunction(leaves []Node) (boolFn, error) {
	var (
		groups []*leafGroup
		others []boolFn
	)
	byPath := map[string]*leafGroup{}
	for _, leaf := range leaves {
		call, ok := leaf.(*Call)
		if !ok {
			f, err := c.condition(leaf)
			if err != nil {
				return nil, err
			}
			others = append(others, f)
			continue
		}
		arg, ok := call.Arg.(*Const)
		if !ok {
			return nil, fmt.Errorf("%w: argument of %s must be a constant", ErrUnsupported, call.Method)
		}
		key, shared := Path(call.Target, c.param)
		var g *leafGroup
		if shared {
			g = byPath[key]
		}
		if g == nil {
			target, err := c.str(call.Target)
			if err != nil {
				return nil, err
			}
			g = &leafGroup{target: target}
			groups = append(groups, g)
			if shared {
				byPath[key] = g
			}
		}
		if arg.Value == nil {
			// null term: không bao giờ khớp
			continue
		}
		g.add(call.Method, *arg.Value)
	}
	for _, g := range groups {
		g.build()
	}
	return func(v reflect.Value) bool {
		for _, g := range groups {
			if g.matches(v) {
				return true
			}
		}
		for _, f := range others {
			if f(v) {
				return true
			}
		}
		return false
	}, nil
}

type leafGroup struct {
	target   stringFn
	anyValue bool
	contains []string // lowercased
	prefixes []string // lowercased
	equals   []string // lowercased
	ac       ahocorasick.AhoCorasick
	useAC    bool
}

func (g *leafGroup) add(m Method, term string) {
	switch m {
	case MethodContains:
		if term == "" {
			g.anyValue = true
			return
		}
		g.contains = append(g.contains, strings.ToLower(term))
	case MethodStartsWith:
		if term == "" {
			g.anyValue = true
			return
		}
		g.prefixes = append(g.prefixes, strings.ToLower(term))
	case MethodEquals:
		g.equals = append(g.equals, strings.ToLower(term))
	}
}

func (g *leafGroup) build() {
	if len(g.contains) < acMinPatterns {
		return
	}
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
		DFA:                  true,
	})
	g.ac = builder.Build(g.contains)
	g.useAC = true
}

func (g *leafGroup) matches(v reflect.Value) bool {
	sp := g.target(v)
	if sp == nil {
		return false
	}
	s := *sp
	if g.anyValue {
		return true
	}
	low := strings.ToLower(s)
	for _, e := range g.equals {
		if low == e {
			return true
		}
	}
	for _, p := range g.prefixes {
		if strings.HasPrefix(low, p) {
			return true
		}
	}
	if g.useAC {
		return len(g.ac.FindAll(low)) > 0
	}
	for _, sub := range g.contains {
		if strings.Contains(low, sub) {
			return true
		}
	}
	return false
}

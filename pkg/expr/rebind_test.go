package expr

import "testing"

func member(p *Param, path ...string) Node {
	var n Node = p
	for _, name := range path {
		n = &Member{Target: n, Name: name}
	}
	return n
}

func TestRebind_ReplacesFreeParameter(t *testing.T) {
	x := NewParam("x")
	y := NewParam("y")
	l := Lambda{Param: x, Body: &Call{Method: MethodContains, Target: member(x, "StringOne"), Arg: Str("abc")}}

	got := Rebind(l, y)
	if got.Param != y {
		t.Fatalf("expected param y, got %v", got.Param)
	}
	ps := Params(got.Body)
	if len(ps) != 1 || ps[0] != y {
		t.Fatalf("expected only y in body, got %v", ps)
	}
	if got.Body.String() != `y.StringOne.Contains("abc")` {
		t.Fatalf("unexpected body %s", got.Body)
	}
	// input không bị sửa
	if ps := Params(l.Body); len(ps) != 1 || ps[0] != x {
		t.Fatalf("original lambda mutated: %v", ps)
	}
}

func TestRebind_Idempotent(t *testing.T) {
	x := NewParam("x")
	y := NewParam("x")
	l := Lambda{Param: x, Body: member(x, "Address", "City")}

	once := Rebind(l, y)
	twice := Rebind(once, y)
	if once.String() != twice.String() {
		t.Fatalf("rebind not idempotent: %s vs %s", once, twice)
	}
	if p, ok := Path(twice.Body, y); !ok || p != "Address.City" {
		t.Fatalf("path = %q, %v", p, ok)
	}
	if _, ok := Path(twice.Body, x); ok {
		t.Fatalf("old parameter must not be referenced")
	}
}

func TestRebind_CombinesIndependentAccessors(t *testing.T) {
	a := NewParam("x")
	b := NewParam("x")
	la := Lambda{Param: a, Body: member(a, "StringOne")}
	lb := Lambda{Param: b, Body: member(b, "StringTwo")}

	shared := NewParam("x")
	var or Node
	for _, l := range []Lambda{la, lb} {
		body := Rebind(l, shared).Body
		or = OrElse(or, &Call{Method: MethodStartsWith, Target: body, Arg: Str("a")})
	}
	ps := Params(or)
	if len(ps) != 1 || ps[0] != shared {
		t.Fatalf("expected a single shared parameter, got %d", len(ps))
	}
}

func TestSubstitute_CopiesConstants(t *testing.T) {
	x := NewParam("x")
	c := Str("v")
	out := Substitute(c, x, NewParam("y")).(*Const)
	if out == c || out.Value == c.Value {
		t.Fatalf("constant not copied")
	}
	if *out.Value != "v" {
		t.Fatalf("value changed: %q", *out.Value)
	}
	if Substitute(&Const{}, x, x).(*Const).Value != nil {
		t.Fatalf("null constant must stay null")
	}
}

func TestJoin_NilSides(t *testing.T) {
	x := NewParam("x")
	leaf := &Call{Method: MethodEquals, Target: member(x, "A"), Arg: Str("1")}
	if AndAlso(nil, leaf) != leaf || AndAlso(leaf, nil) != leaf {
		t.Fatalf("nil side must be dropped")
	}
	if OrElse(nil, nil) != nil {
		t.Fatalf("expected nil")
	}
	b := AndAlso(leaf, OrElse(leaf, leaf))
	if b.String() != `(x.A.Equals("1") && (x.A.Equals("1") || x.A.Equals("1")))` {
		t.Fatalf("unexpected rendering %s", b)
	}
}

func TestWalk_SkipChildren(t *testing.T) {
	x := NewParam("x")
	n := OrElse(
		&Call{Method: MethodContains, Target: member(x, "A"), Arg: Str("1")},
		&Call{Method: MethodContains, Target: member(x, "B"), Arg: Str("2")},
	)
	calls := 0
	Walk(n, func(n Node) bool {
		if n.Kind() == KindCall {
			calls++
			return false
		}
		if n.Kind() == KindMember {
			t.Fatalf("children of calls must be skipped")
		}
		return true
	})
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}

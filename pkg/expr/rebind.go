package expr

// Rebind returns a copy of l whose free parameter is replaced by p.
// The input lambda is never modified, so calling Rebind repeatedly, or on
// lambdas already shared by other trees, is safe.
func Rebind(l Lambda, p *Param) Lambda {
	if l.Param == nil || p == nil {
		return l
	}
	return Lambda{Param: p, Body: Substitute(l.Body, l.Param, p)}
}

// Substitute deep-copies n, replacing every reference to from with to.
func Substitute(n Node, from, to *Param) Node {
	switch t := n.(type) {
	case nil:
		return nil
	case *Param:
		if t == from {
			return to
		}
		return t
	case *Member:
		return &Member{Target: Substitute(t.Target, from, to), Name: t.Name}
	case *Const:
		c := &Const{}
		if t.Value != nil {
			v := *t.Value
			c.Value = &v
		}
		return c
	case *Call:
		return &Call{Method: t.Method, Target: Substitute(t.Target, from, to), Arg: Substitute(t.Arg, from, to)}
	case *Binary:
		return &Binary{Op: t.Op, Left: Substitute(t.Left, from, to), Right: Substitute(t.Right, from, to)}
	case *Invoke:
		return &Invoke{Name: t.Name, Target: Substitute(t.Target, from, to), Fn: t.Fn}
	default:
		return n
	}
}

// Walk visits n depth-first, parents before children. Returning false from
// fn skips the children of the current node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch t := n.(type) {
	case *Member:
		Walk(t.Target, fn)
	case *Call:
		Walk(t.Target, fn)
		Walk(t.Arg, fn)
	case *Binary:
		Walk(t.Left, fn)
		Walk(t.Right, fn)
	case *Invoke:
		Walk(t.Target, fn)
	}
}

// Params lists the distinct parameters referenced by n in visit order.
func Params(n Node) []*Param {
	var out []*Param
	seen := map[*Param]struct{}{}
	Walk(n, func(x Node) bool {
		if p, ok := x.(*Param); ok {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
		return true
	})
	return out
}

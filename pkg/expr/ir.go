package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant of a Node.
type Kind uint8

const (
	KindParam Kind = iota
	KindMember
	KindConst
	KindCall
	KindBinary
	KindInvoke
)

func (k Kind) String() string {
	switch k {
	case KindParam:
		return "Param"
	case KindMember:
		return "Member"
	case KindConst:
		return "Const"
	case KindCall:
		return "Call"
	case KindBinary:
		return "Binary"
	case KindInvoke:
		return "Invoke"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node là một nút của cây biểu thức. Node không bao giờ bị sửa sau khi tạo;
// mọi phép biến đổi (Rebind, AndAlso, OrElse) đều trả về nút mới.
type Node interface {
	Kind() Kind
	String() string
}

// Param is the bound input symbol of a lambda. Identity is the pointer:
// two params with the same Name are still different symbols.
type Param struct {
	Name string
}

func NewParam(name string) *Param { return &Param{Name: name} }

func (p *Param) Kind() Kind     { return KindParam }
func (p *Param) String() string { return p.Name }

// Member reads field Name from the value produced by Target.
type Member struct {
	Target Node
	Name   string
}

func (m *Member) Kind() Kind     { return KindMember }
func (m *Member) String() string { return m.Target.String() + "." + m.Name }

// Const is a string literal; a nil Value is null.
type Const struct {
	Value *string
}

// Str returns a non-null string constant.
func Str(s string) *Const { return &Const{Value: &s} }

func (c *Const) Kind() Kind { return KindConst }
func (c *Const) String() string {
	if c.Value == nil {
		return "null"
	}
	return strconv.Quote(*c.Value)
}

// Method names a string test applied by Call. All methods are ordinal,
// case-insensitive and false when the target is null.
type Method uint8

const (
	MethodContains Method = iota
	MethodStartsWith
	MethodEquals
)

func (m Method) String() string {
	switch m {
	case MethodContains:
		return "Contains"
	case MethodStartsWith:
		return "StartsWith"
	case MethodEquals:
		return "Equals"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Call is a leaf condition: Target.Method(Arg).
type Call struct {
	Method Method
	Target Node
	Arg    Node
}

func (c *Call) Kind() Kind { return KindCall }
func (c *Call) String() string {
	return fmt.Sprintf("%s.%s(%s)", c.Target.String(), c.Method, c.Arg.String())
}

// Op is a short-circuit boolean operator.
type Op uint8

const (
	OpAndAlso Op = iota
	OpOrElse
)

func (o Op) String() string {
	if o == OpAndAlso {
		return "&&"
	}
	return "||"
}

type Binary struct {
	Op          Op
	Left, Right Node
}

func (b *Binary) Kind() Kind { return KindBinary }
func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

// Invoke applies an opaque projection to the value of Target. It can be
// evaluated in memory but not translated to another query language.
type Invoke struct {
	Name   string
	Target Node
	Fn     func(any) *string
}

func (i *Invoke) Kind() Kind     { return KindInvoke }
func (i *Invoke) String() string { return i.Name + "(" + i.Target.String() + ")" }

// Lambda binds Param as the single free variable of Body.
type Lambda struct {
	Param *Param
	Body  Node
}

// Valid reports whether both the parameter and the body are set.
func (l Lambda) Valid() bool { return l.Param != nil && l.Body != nil }

func (l Lambda) String() string {
	if l.Param == nil {
		return "<invalid>"
	}
	if l.Body == nil {
		return l.Param.Name + " => true"
	}
	return l.Param.Name + " => " + l.Body.String()
}

// AndAlso joins a and b; a nil side means "no expression".
func AndAlso(a, b Node) Node { return join(OpAndAlso, a, b) }

// OrElse joins a and b; a nil side means "no expression".
func OrElse(a, b Node) Node { return join(OpOrElse, a, b) }

func join(op Op, a, b Node) Node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &Binary{Op: op, Left: a, Right: b}
}

// Path returns the dotted member path of n when n is a chain of Members
// rooted at p, e.g. "Address.City".
func Path(n Node, p *Param) (string, bool) {
	var parts []string
	for {
		switch t := n.(type) {
		case *Member:
			parts = append(parts, t.Name)
			n = t.Target
		case *Param:
			if t != p || len(parts) == 0 {
				return "", false
			}
			for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
				parts[i], parts[j] = parts[j], parts[i]
			}
			return strings.Join(parts, "."), true
		default:
			return "", false
		}
	}
}

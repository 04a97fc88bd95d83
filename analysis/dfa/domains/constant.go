package domains

import (
	"fmt"
	"io"

	"github.com/MagicMotion/knight/analysis/dfa"
	"github.com/MagicMotion/knight/utils"
)

type flatState uint8

const (
	flatBot flatState = iota
	flatConst
	flatTop
)

// Constant is a member of the flat constant lattice: ⊥ below every
// integer constant below ⊤.
type Constant struct {
	kind  dfa.DomainKind
	state flatState
	v     int64
}

// NewConstant creates the lattice element for the constant v.
func NewConstant(kind dfa.DomainKind, v int64) *Constant {
	return &Constant{kind: kind, state: flatConst, v: v}
}

// ConstantDefault returns the default-value factory of the domain: ⊤.
func ConstantDefault(kind dfa.DomainKind) dfa.DefaultValFn {
	return func() dfa.AbsVal { return &Constant{kind: kind, state: flatTop} }
}

// ConstantBottom returns the bottom-value factory of the domain.
func ConstantBottom(kind dfa.DomainKind) dfa.BottomValFn {
	return func() dfa.AbsVal { return &Constant{kind: kind, state: flatBot} }
}

func (e *Constant) conv(other dfa.AbsVal) *Constant {
	o, ok := other.(*Constant)
	if !ok || o.kind != e.kind {
		panic("incompatible constant domains")
	}
	return o
}

// Value returns the constant and whether the element is a constant.
func (e *Constant) Value() (int64, bool) { return e.v, e.state == flatConst }

func (e *Constant) Kind() dfa.DomainKind { return e.kind }

func (e *Constant) Clone() dfa.AbsVal {
	c := *e
	return &c
}

func (e *Constant) CloneShared() dfa.AbsVal { return e.Clone() }

func (e *Constant) JoinWith(other dfa.AbsVal) {
	o := e.conv(other)
	switch {
	case o.state == flatBot || e.state == flatTop:
	case e.state == flatBot:
		*e = *o
	case o.state == flatTop || e.v != o.v:
		e.state = flatTop
	}
}

func (e *Constant) JoinWithAtLoopHead(other dfa.AbsVal) { e.JoinWith(other) }

func (e *Constant) JoinConsecutiveIterWith(other dfa.AbsVal) { e.JoinWith(other) }

// WidenWith is JoinWith; the lattice has finite height.
func (e *Constant) WidenWith(other dfa.AbsVal) { e.JoinWith(other) }

func (e *Constant) MeetWith(other dfa.AbsVal) {
	o := e.conv(other)
	switch {
	case o.state == flatTop || e.state == flatBot:
	case e.state == flatTop:
		*e = *o
	case o.state == flatBot || e.v != o.v:
		e.state = flatBot
	}
}

func (e *Constant) NarrowWith(other dfa.AbsVal) { e.MeetWith(other) }

func (e *Constant) Leq(other dfa.AbsVal) bool {
	o := e.conv(other)
	switch {
	case e.state == flatBot || o.state == flatTop:
		return true
	case e.state == flatTop || o.state == flatBot:
		return false
	default:
		return e.v == o.v
	}
}

func (e *Constant) Equals(other dfa.AbsVal) bool {
	o := e.conv(other)
	if e.state != o.state {
		return false
	}
	return e.state != flatConst || e.v == o.v
}

func (e *Constant) IsBottom() bool { return e.state == flatBot }

func (e *Constant) IsTop() bool { return e.state == flatTop }

func (e *Constant) SetToBottom() { e.state = flatBot }

func (e *Constant) SetToTop() { e.state = flatTop }

func (e *Constant) Normalize() {}

func (e *Constant) Hash() uint32 {
	return utils.HashCombine(uint32(e.kind), uint32(e.state),
		uint32(e.v), uint32(uint64(e.v)>>32))
}

func (e *Constant) String() string {
	switch e.state {
	case flatBot:
		return "⊥"
	case flatTop:
		return "⊤"
	default:
		return fmt.Sprintf("%d", e.v)
	}
}

func (e *Constant) Dump(w io.Writer) {
	fmt.Fprint(w, e.String())
}

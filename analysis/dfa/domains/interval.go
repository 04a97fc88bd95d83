// Package domains bundles the abstract domains shipped with the
// framework: integer intervals, flat constants, and a non-relational
// environment mapping memory regions to values.
package domains

import (
	"fmt"
	"io"
	"math"

	"github.com/MagicMotion/knight/analysis/dfa"
	"github.com/MagicMotion/knight/utils"
)

const (
	negInf = math.MinInt64
	posInf = math.MaxInt64
)

// Interval is a member of the integer interval lattice [lb, ub] with
// possibly infinite bounds. The empty interval is represented by the
// bottom flag.
type Interval struct {
	kind dfa.DomainKind
	lb   int64
	ub   int64
	bot  bool
}

// NewInterval creates the interval [lb, ub] in the given domain.
func NewInterval(kind dfa.DomainKind, lb, ub int64) *Interval {
	return &Interval{kind: kind, lb: lb, ub: ub}
}

// NewIntervalConst creates the singleton interval [v, v].
func NewIntervalConst(kind dfa.DomainKind, v int64) *Interval {
	return NewInterval(kind, v, v)
}

// IntervalDefault returns the default-value factory of the domain: the
// full interval, the identity for meet and the join absorber.
func IntervalDefault(kind dfa.DomainKind) dfa.DefaultValFn {
	return func() dfa.AbsVal { return NewInterval(kind, negInf, posInf) }
}

// IntervalBottom returns the bottom-value factory of the domain.
func IntervalBottom(kind dfa.DomainKind) dfa.BottomValFn {
	return func() dfa.AbsVal { return &Interval{kind: kind, bot: true} }
}

func (e *Interval) conv(other dfa.AbsVal) *Interval {
	o, ok := other.(*Interval)
	if !ok || o.kind != e.kind {
		panic("incompatible interval domains")
	}
	return o
}

// Lb returns the lower bound.
func (e *Interval) Lb() int64 { return e.lb }

// Ub returns the upper bound.
func (e *Interval) Ub() int64 { return e.ub }

func (e *Interval) Kind() dfa.DomainKind { return e.kind }

func (e *Interval) Clone() dfa.AbsVal {
	c := *e
	return &c
}

func (e *Interval) CloneShared() dfa.AbsVal { return e.Clone() }

// JoinWith takes the lowest of the lower bounds and the highest of the
// upper bounds.
func (e *Interval) JoinWith(other dfa.AbsVal) {
	o := e.conv(other)
	if o.bot {
		return
	}
	if e.bot {
		*e = *o
		return
	}
	if o.lb < e.lb {
		e.lb = o.lb
	}
	if o.ub > e.ub {
		e.ub = o.ub
	}
}

func (e *Interval) JoinWithAtLoopHead(other dfa.AbsVal) { e.JoinWith(other) }

func (e *Interval) JoinConsecutiveIterWith(other dfa.AbsVal) { e.JoinWith(other) }

// WidenWith jumps any growing bound to infinity, which stabilizes every
// ascending chain after one step per bound.
func (e *Interval) WidenWith(other dfa.AbsVal) {
	o := e.conv(other)
	if o.bot {
		return
	}
	if e.bot {
		*e = *o
		return
	}
	if o.lb < e.lb {
		e.lb = negInf
	}
	if o.ub > e.ub {
		e.ub = posInf
	}
}

func (e *Interval) MeetWith(other dfa.AbsVal) {
	o := e.conv(other)
	if e.bot {
		return
	}
	if o.bot {
		e.bot = true
		return
	}
	if o.lb > e.lb {
		e.lb = o.lb
	}
	if o.ub < e.ub {
		e.ub = o.ub
	}
	e.Normalize()
}

// NarrowWith refines an infinite bound with the other interval's bound.
func (e *Interval) NarrowWith(other dfa.AbsVal) {
	o := e.conv(other)
	if e.bot {
		return
	}
	if o.bot {
		e.bot = true
		return
	}
	if e.lb == negInf {
		e.lb = o.lb
	}
	if e.ub == posInf {
		e.ub = o.ub
	}
	e.Normalize()
}

func (e *Interval) Leq(other dfa.AbsVal) bool {
	o := e.conv(other)
	if e.bot {
		return true
	}
	if o.bot {
		return false
	}
	return o.lb <= e.lb && e.ub <= o.ub
}

func (e *Interval) Equals(other dfa.AbsVal) bool {
	o := e.conv(other)
	if e.bot || o.bot {
		return e.bot == o.bot
	}
	return e.lb == o.lb && e.ub == o.ub
}

func (e *Interval) IsBottom() bool { return e.bot }

func (e *Interval) IsTop() bool { return !e.bot && e.lb == negInf && e.ub == posInf }

func (e *Interval) SetToBottom() { e.bot = true }

func (e *Interval) SetToTop() {
	e.bot = false
	e.lb = negInf
	e.ub = posInf
}

// Normalize collapses inverted bounds to bottom.
func (e *Interval) Normalize() {
	if !e.bot && e.lb > e.ub {
		e.bot = true
	}
}

func (e *Interval) Hash() uint32 {
	if e.bot {
		return utils.HashCombine(uint32(e.kind), 1)
	}
	return utils.HashCombine(uint32(e.kind),
		uint32(e.lb), uint32(uint64(e.lb)>>32),
		uint32(e.ub), uint32(uint64(e.ub)>>32))
}

func (e *Interval) String() string {
	if e.bot {
		return "⊥"
	}
	lb, ub := "-∞", "+∞"
	if e.lb != negInf {
		lb = fmt.Sprintf("%d", e.lb)
	}
	if e.ub != posInf {
		ub = fmt.Sprintf("%d", e.ub)
	}
	return fmt.Sprintf("[%s, %s]", lb, ub)
}

func (e *Interval) Dump(w io.Writer) {
	fmt.Fprint(w, e.String())
}

// Arithmetic transfer functions used by the interval analysis.

// IntervalAdd returns the interval sum of two intervals.
func IntervalAdd(a, b *Interval) *Interval {
	if a.bot || b.bot {
		return &Interval{kind: a.kind, bot: true}
	}
	return &Interval{kind: a.kind, lb: satAdd(a.lb, b.lb), ub: satAdd(a.ub, b.ub)}
}

// IntervalSub returns the interval difference of two intervals.
func IntervalSub(a, b *Interval) *Interval {
	if a.bot || b.bot {
		return &Interval{kind: a.kind, bot: true}
	}
	return &Interval{kind: a.kind, lb: satSub(a.lb, b.ub), ub: satSub(a.ub, b.lb)}
}

// IntervalNeg returns the interval negation.
func IntervalNeg(a *Interval) *Interval {
	if a.bot {
		return &Interval{kind: a.kind, bot: true}
	}
	return &Interval{kind: a.kind, lb: satNeg(a.ub), ub: satNeg(a.lb)}
}

// satAdd adds with saturation at the infinities.
func satAdd(a, b int64) int64 {
	if a == negInf || b == negInf {
		return negInf
	}
	if a == posInf || b == posInf {
		return posInf
	}
	s := a + b
	if b > 0 && s < a {
		return posInf
	}
	if b < 0 && s > a {
		return negInf
	}
	return s
}

func satSub(a, b int64) int64 {
	return satAdd(a, satNeg(b))
}

func satNeg(a int64) int64 {
	switch a {
	case negInf:
		return posInf
	case posInf:
		return negInf
	default:
		return -a
	}
}

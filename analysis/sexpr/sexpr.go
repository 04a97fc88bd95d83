// Package sexpr builds interned symbolic expressions over memory regions
// and integer constants. Expressions are hash-consed by their manager, so
// structural equality coincides with pointer identity.
package sexpr

import (
	"fmt"
	"go/token"
	"io"

	"github.com/MagicMotion/knight/analysis/region"
	"github.com/MagicMotion/knight/utils"
	"github.com/MagicMotion/knight/utils/hmap"
)

// Op discriminates the expression forms.
type Op uint8

const (
	OpRegion Op = iota
	OpConst
	OpUnary
	OpBinary
	OpUnknown
)

// SymExpr is an interned symbolic expression. Compare with ==.
type SymExpr struct {
	op   Op
	reg  *region.MemRegion
	k    int64
	tok  token.Token
	l, r *SymExpr
}

func (e *SymExpr) Op() Op { return e.op }

// Region returns the leaf region of a region expression.
func (e *SymExpr) Region() *region.MemRegion { return e.reg }

// Const returns the value of a constant expression.
func (e *SymExpr) Const() int64 { return e.k }

// Token returns the operator of a unary or binary expression.
func (e *SymExpr) Token() token.Token { return e.tok }

// Operands returns the operands of a unary or binary expression.
func (e *SymExpr) Operands() (l, r *SymExpr) { return e.l, e.r }

func (e *SymExpr) String() string {
	switch e.op {
	case OpRegion:
		return e.reg.String()
	case OpConst:
		return fmt.Sprintf("%d", e.k)
	case OpUnary:
		return fmt.Sprintf("(%s%s)", e.tok, e.l)
	case OpBinary:
		return fmt.Sprintf("(%s %s %s)", e.l, e.tok, e.r)
	default:
		return "?"
	}
}

func (e *SymExpr) Dump(w io.Writer) {
	fmt.Fprint(w, e.String())
}

type exprKey struct {
	op   Op
	reg  *region.MemRegion
	k    int64
	tok  token.Token
	l, r *SymExpr
}

type exprKeyHasher struct{}

func (exprKeyHasher) Hash(k exprKey) uint32 {
	hs := []uint32{uint32(k.op), uint32(k.k), uint32(k.k >> 32), uint32(k.tok)}
	if k.reg != nil {
		hs = append(hs, k.reg.Hash())
	}
	if k.l != nil {
		hs = append(hs, utils.PointerHasher[*SymExpr]{}.Hash(k.l))
	}
	if k.r != nil {
		hs = append(hs, utils.PointerHasher[*SymExpr]{}.Hash(k.r))
	}
	return utils.HashCombine(hs...)
}

func (exprKeyHasher) Equal(a, b exprKey) bool { return a == b }

// Manager interns symbolic expressions.
type Manager struct {
	exprs   *hmap.Map[exprKey, *SymExpr]
	unknown *SymExpr
}

func NewManager() *Manager {
	m := &Manager{exprs: hmap.NewMap[*SymExpr](exprKeyHasher{})}
	m.unknown = &SymExpr{op: OpUnknown}
	return m
}

func (m *Manager) intern(k exprKey) *SymExpr {
	if e, ok := m.exprs.GetOk(k); ok {
		return e
	}
	e := &SymExpr{op: k.op, reg: k.reg, k: k.k, tok: k.tok, l: k.l, r: k.r}
	m.exprs.Set(k, e)
	return e
}

// RegionExpr returns the interned leaf expression for a region.
func (m *Manager) RegionExpr(r *region.MemRegion) *SymExpr {
	return m.intern(exprKey{op: OpRegion, reg: r})
}

// IntConst returns the interned constant expression for v.
func (m *Manager) IntConst(v int64) *SymExpr {
	return m.intern(exprKey{op: OpConst, k: v})
}

// Unary returns the interned unary expression tok(x).
func (m *Manager) Unary(tok token.Token, x *SymExpr) *SymExpr {
	return m.intern(exprKey{op: OpUnary, tok: tok, l: x})
}

// Binary returns the interned binary expression l tok r.
func (m *Manager) Binary(tok token.Token, l, r *SymExpr) *SymExpr {
	return m.intern(exprKey{op: OpBinary, tok: tok, l: l, r: r})
}

// Unknown returns the distinguished expression for unmodeled values.
func (m *Manager) Unknown() *SymExpr { return m.unknown }

package dfa

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/MagicMotion/knight/analysis/proccfg"
	"github.com/MagicMotion/knight/analysis/region"
	"github.com/MagicMotion/knight/analysis/sexpr"
	"github.com/MagicMotion/knight/utils"

	"github.com/benbjohnson/immutable"
)

// ProgramStateRef is a reference to an interned program state. Because
// states are hash-consed by their manager, two references are equal iff
// they point to the same pool slot.
type ProgramStateRef = *ProgramState

// ProgramState is the immutable abstract state at a program point: a map
// from domain IDs to abstract values, plus two auxiliary maps binding
// memory regions and statements to symbolic expressions.
//
// States are produced only through a ProgramStateManager. Every mutator
// returns a new interned state and leaves the receiver untouched.
type ProgramState struct {
	refcnt uint32
	mgr    *ProgramStateManager

	domVal      *immutable.Map[DomID, AbsVal]
	regionSExpr *immutable.Map[*region.MemRegion, *sexpr.SymExpr]
	stmtSExpr   *immutable.Map[proccfg.StmtRef, *sexpr.SymExpr]
}

type domIDHasher struct{}

func (domIDHasher) Hash(id DomID) uint32  { return utils.HashCombine(uint32(id)) }
func (domIDHasher) Equal(a, b DomID) bool { return a == b }

type regionRefHasher struct{}

func (regionRefHasher) Hash(r *region.MemRegion) uint32   { return r.Hash() }
func (regionRefHasher) Equal(a, b *region.MemRegion) bool { return a == b }

func emptyDomVal() *immutable.Map[DomID, AbsVal] {
	return immutable.NewMap[DomID, AbsVal](domIDHasher{})
}

func emptyRegionSExpr() *immutable.Map[*region.MemRegion, *sexpr.SymExpr] {
	return immutable.NewMap[*region.MemRegion, *sexpr.SymExpr](regionRefHasher{})
}

func emptyStmtSExpr() *immutable.Map[proccfg.StmtRef, *sexpr.SymExpr] {
	return immutable.NewMap[proccfg.StmtRef, *sexpr.SymExpr](utils.PointerHasher[proccfg.StmtRef]{})
}

// Manager returns the owning state manager.
func (s *ProgramState) Manager() *ProgramStateManager { return s.mgr }

// Exists reports whether the domain is populated in the state.
func (s *ProgramState) Exists(id DomID) bool {
	_, ok := s.domVal.Get(id)
	return ok
}

// GetVal returns the stored value of the domain, if any.
func (s *ProgramState) GetVal(id DomID) (AbsVal, bool) {
	return s.domVal.Get(id)
}

// Get returns a shareable copy of the domain's value, falling back to the
// domain's default value when the state carries no entry. The domain must
// be registered.
func (s *ProgramState) Get(id DomID) AbsVal {
	if v, ok := s.domVal.Get(id); ok {
		return v.CloneShared()
	}
	fn, ok := s.mgr.analysisMgr.DomainDefaultValFn(id)
	if !ok {
		panic(fmt.Sprintf("no value factory for unregistered domain %d", id))
	}
	return fn()
}

// Set returns the interned state with the domain bound to val.
func (s *ProgramState) Set(id DomID, val AbsVal) ProgramStateRef {
	s.mgr.checkRegistered(id)
	return s.mgr.internWithDomVal(s, s.domVal.Set(id, val))
}

// Remove returns the interned state without an entry for the domain.
func (s *ProgramState) Remove(id DomID) ProgramStateRef {
	return s.mgr.internWithDomVal(s, s.domVal.Delete(id))
}

// Normalize returns the interned state with every domain value normalized.
func (s *ProgramState) Normalize() ProgramStateRef {
	b := immutable.NewMapBuilder[DomID, AbsVal](domIDHasher{})
	for it := s.domVal.Iterator(); !it.Done(); {
		id, v, _ := it.Next()
		c := v.Clone()
		c.Normalize()
		b.Set(id, c)
	}
	return s.mgr.internWithDomVal(s, b.Map())
}

// IsBottom reports whether any domain value is bottom.
func (s *ProgramState) IsBottom() bool {
	for it := s.domVal.Iterator(); !it.Done(); {
		_, v, _ := it.Next()
		if v.IsBottom() {
			return true
		}
	}
	return false
}

// IsTop reports whether every domain value is top.
func (s *ProgramState) IsTop() bool {
	for it := s.domVal.Iterator(); !it.Done(); {
		_, v, _ := it.Next()
		if !v.IsTop() {
			return false
		}
	}
	return true
}

// SetToBottom returns the manager's bottom state.
func (s *ProgramState) SetToBottom() ProgramStateRef {
	return s.mgr.GetBottomState()
}

// SetToTop returns the manager's top state.
func (s *ProgramState) SetToTop() ProgramStateRef {
	return s.mgr.GetTopState()
}

// unionWith combines the receiver with other pointwise, keeping keys
// present in either state. Keys of other missing in the receiver are
// adopted by sharing; overlapping keys are cloned and combined with op.
// The receiver's auxiliary maps are preserved.
func (s *ProgramState) unionWith(other *ProgramState, op func(dst, src AbsVal)) ProgramStateRef {
	m := s.domVal
	for it := other.domVal.Iterator(); !it.Done(); {
		id, vo, _ := it.Next()
		if v, ok := s.domVal.Get(id); ok {
			c := v.Clone()
			op(c, vo)
			m = m.Set(id, c)
		} else {
			m = m.Set(id, vo.CloneShared())
		}
	}
	return s.mgr.internWithDomVal(s, m)
}

// intersectWith combines the receiver with other pointwise, keeping only
// keys present in both states.
func (s *ProgramState) intersectWith(other *ProgramState, op func(dst, src AbsVal)) ProgramStateRef {
	b := immutable.NewMapBuilder[DomID, AbsVal](domIDHasher{})
	for it := other.domVal.Iterator(); !it.Done(); {
		id, vo, _ := it.Next()
		if v, ok := s.domVal.Get(id); ok {
			c := v.Clone()
			op(c, vo)
			b.Set(id, c)
		}
	}
	return s.mgr.internWithDomVal(s, b.Map())
}

// Join returns the interned least upper bound of the two states.
func (s *ProgramState) Join(other ProgramStateRef) ProgramStateRef {
	return s.unionWith(other, func(dst, src AbsVal) { dst.JoinWith(src) })
}

// JoinAtLoopHead joins the two states at a loop head.
func (s *ProgramState) JoinAtLoopHead(other ProgramStateRef) ProgramStateRef {
	return s.unionWith(other, func(dst, src AbsVal) { dst.JoinWithAtLoopHead(src) })
}

// JoinConsecutiveIter joins the states of two consecutive loop iterations.
func (s *ProgramState) JoinConsecutiveIter(other ProgramStateRef) ProgramStateRef {
	return s.unionWith(other, func(dst, src AbsVal) { dst.JoinConsecutiveIterWith(src) })
}

// Widen returns the interned widening of the two states.
func (s *ProgramState) Widen(other ProgramStateRef) ProgramStateRef {
	return s.unionWith(other, func(dst, src AbsVal) { dst.WidenWith(src) })
}

// Meet returns the interned greatest lower bound of the two states.
func (s *ProgramState) Meet(other ProgramStateRef) ProgramStateRef {
	return s.intersectWith(other, func(dst, src AbsVal) { dst.MeetWith(src) })
}

// Narrow returns the interned narrowing of the two states.
func (s *ProgramState) Narrow(other ProgramStateRef) ProgramStateRef {
	return s.intersectWith(other, func(dst, src AbsVal) { dst.NarrowWith(src) })
}

// Leq reports whether the state is at most other in the lifted order.
// A domain missing on either side stands for that domain's bottom, so a
// key only in the receiver must hold bottom, and a key only in other must
// hold top for the comparison to hold conservatively.
func (s *ProgramState) Leq(other ProgramStateRef) bool {
	for it := s.domVal.Iterator(); !it.Done(); {
		id, v, _ := it.Next()
		vo, ok := other.domVal.Get(id)
		if !ok {
			if !v.IsBottom() {
				return false
			}
			continue
		}
		if !v.Leq(vo) {
			return false
		}
	}
	for it := other.domVal.Iterator(); !it.Done(); {
		id, vo, _ := it.Next()
		if _, ok := s.domVal.Get(id); !ok && !vo.IsTop() {
			return false
		}
	}
	return true
}

// Equals reports whether the two states agree on every domain value and
// on both auxiliary maps. Interned states therefore compare equal iff
// they are the same reference.
func (s *ProgramState) Equals(other ProgramStateRef) bool {
	if s.domVal.Len() != other.domVal.Len() ||
		s.regionSExpr.Len() != other.regionSExpr.Len() ||
		s.stmtSExpr.Len() != other.stmtSExpr.Len() {
		return false
	}
	for it := s.domVal.Iterator(); !it.Done(); {
		id, v, _ := it.Next()
		vo, ok := other.domVal.Get(id)
		if !ok || !v.Equals(vo) {
			return false
		}
	}
	for it := s.regionSExpr.Iterator(); !it.Done(); {
		r, e, _ := it.Next()
		eo, ok := other.regionSExpr.Get(r)
		if !ok || e != eo {
			return false
		}
	}
	for it := s.stmtSExpr.Iterator(); !it.Done(); {
		st, e, _ := it.Next()
		eo, ok := other.stmtSExpr.Get(st)
		if !ok || e != eo {
			return false
		}
	}
	return true
}

// GetRegion resolves the region of decl within frame through the region
// manager. Declaration kinds the region model does not cover yield no
// region.
func (s *ProgramState) GetRegion(decl proccfg.DeclRef, frame *region.StackFrame) (*region.MemRegion, bool) {
	return s.mgr.regionMgr.GetRegion(decl, frame)
}

// SetRegionSExpr returns the interned state binding the region to the
// symbolic expression.
func (s *ProgramState) SetRegionSExpr(r *region.MemRegion, e *sexpr.SymExpr) ProgramStateRef {
	return s.mgr.internWithRegionSExpr(s, s.regionSExpr.Set(r, e))
}

// GetRegionSExpr returns the symbolic expression bound to the region.
func (s *ProgramState) GetRegionSExpr(r *region.MemRegion) (*sexpr.SymExpr, bool) {
	return s.regionSExpr.Get(r)
}

// SetStmtSExpr returns the interned state binding the statement to the
// symbolic expression.
func (s *ProgramState) SetStmtSExpr(stmt proccfg.StmtRef, e *sexpr.SymExpr) ProgramStateRef {
	return s.mgr.internWithStmtSExpr(s, s.stmtSExpr.Set(stmt, e))
}

// GetStmtSExpr returns the symbolic expression bound to the statement.
func (s *ProgramState) GetStmtSExpr(stmt proccfg.StmtRef) (*sexpr.SymExpr, bool) {
	return s.stmtSExpr.Get(stmt)
}

// Hash profiles the state for interning. Each map contributes its entries
// order-independently.
func (s *ProgramState) Hash() (h uint32) {
	for it := s.domVal.Iterator(); !it.Done(); {
		id, v, _ := it.Next()
		h ^= utils.HashCombine(uint32(id), v.Hash())
	}
	ptr := utils.PointerHasher[*sexpr.SymExpr]{}
	for it := s.regionSExpr.Iterator(); !it.Done(); {
		r, e, _ := it.Next()
		h ^= utils.HashCombine(r.Hash(), ptr.Hash(e))
	}
	sptr := utils.PointerHasher[proccfg.StmtRef]{}
	for it := s.stmtSExpr.Iterator(); !it.Done(); {
		st, e, _ := it.Next()
		h ^= utils.HashCombine(sptr.Hash(st), ptr.Hash(e))
	}
	return h
}

// Dump writes the state domain-by-domain in ascending ID order.
func (s *ProgramState) Dump(w io.Writer) {
	ids := make([]DomID, 0, s.domVal.Len())
	for it := s.domVal.Iterator(); !it.Done(); {
		id, _, _ := it.Next()
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		v, _ := s.domVal.Get(id)
		fmt.Fprintf(w, "[%s]: ", s.mgr.analysisMgr.Kinds().DomainName(id))
		v.Dump(w)
		fmt.Fprintln(w)
	}
}

func (s *ProgramState) String() string {
	var b strings.Builder
	s.Dump(&b)
	return b.String()
}

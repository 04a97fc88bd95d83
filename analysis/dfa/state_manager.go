package dfa

import (
	"fmt"

	"github.com/MagicMotion/knight/analysis/proccfg"
	"github.com/MagicMotion/knight/analysis/region"
	"github.com/MagicMotion/knight/analysis/sexpr"
	"github.com/MagicMotion/knight/utils/hmap"

	"github.com/benbjohnson/immutable"
)

type stateProfileHasher struct{}

func (stateProfileHasher) Hash(s *ProgramState) uint32   { return s.Hash() }
func (stateProfileHasher) Equal(a, b *ProgramState) bool { return a.Equals(b) }

// ProgramStateManager owns the hash-consed pool of program states built
// for one analysis run. Equivalent states share a single pool slot, so
// state equality degenerates to pointer identity for interned states.
type ProgramStateManager struct {
	analysisMgr *AnalysisManager
	regionMgr   *region.Manager

	// states uniques all live states of the run.
	states *hmap.Map[*ProgramState, *ProgramState]

	// freeStates holds released slots for reuse.
	freeStates []*ProgramState
}

func NewProgramStateManager(analysisMgr *AnalysisManager, regionMgr *region.Manager) *ProgramStateManager {
	return &ProgramStateManager{
		analysisMgr: analysisMgr,
		regionMgr:   regionMgr,
		states:      hmap.NewMap[*ProgramState](stateProfileHasher{}),
	}
}

// RegionManager returns the region manager backing the run.
func (m *ProgramStateManager) RegionManager() *region.Manager { return m.regionMgr }

// AnalysisManager returns the analysis manager the pool serves.
func (m *ProgramStateManager) AnalysisManager() *AnalysisManager { return m.analysisMgr }

func (m *ProgramStateManager) checkRegistered(id DomID) {
	if _, ok := m.analysisMgr.DomainDefaultValFn(id); !ok {
		panic(fmt.Sprintf("program state references unregistered domain %d", id))
	}
}

// populate builds a domain-value map holding pick's result for every domain
// registered under every required analysis.
func (m *ProgramStateManager) populate(pick func(id DomID) AbsVal) *immutable.Map[DomID, AbsVal] {
	b := immutable.NewMapBuilder[DomID, AbsVal](domIDHasher{})
	for _, aid := range m.analysisMgr.RequiredAnalyses() {
		for _, id := range m.analysisMgr.RegisteredDomainsIn(aid) {
			b.Set(id, pick(id))
		}
	}
	return b.Map()
}

// GetDefaultState interns the state holding every required domain's
// default value.
func (m *ProgramStateManager) GetDefaultState() ProgramStateRef {
	domVal := m.populate(func(id DomID) AbsVal {
		fn, _ := m.analysisMgr.DomainDefaultValFn(id)
		return fn()
	})
	return m.intern(&ProgramState{
		mgr:         m,
		domVal:      domVal,
		regionSExpr: emptyRegionSExpr(),
		stmtSExpr:   emptyStmtSExpr(),
	})
}

// GetBottomState interns the state holding every required domain's bottom
// value.
func (m *ProgramStateManager) GetBottomState() ProgramStateRef {
	domVal := m.populate(func(id DomID) AbsVal {
		fn, _ := m.analysisMgr.DomainBottomValFn(id)
		return fn()
	})
	return m.intern(&ProgramState{
		mgr:         m,
		domVal:      domVal,
		regionSExpr: emptyRegionSExpr(),
		stmtSExpr:   emptyStmtSExpr(),
	})
}

// GetTopState interns the state holding top for every required domain.
func (m *ProgramStateManager) GetTopState() ProgramStateRef {
	domVal := m.populate(func(id DomID) AbsVal {
		fn, _ := m.analysisMgr.DomainDefaultValFn(id)
		v := fn()
		v.SetToTop()
		return v
	})
	return m.intern(&ProgramState{
		mgr:         m,
		domVal:      domVal,
		regionSExpr: emptyRegionSExpr(),
		stmtSExpr:   emptyStmtSExpr(),
	})
}

// intern uniques the candidate state, reusing a released slot when one is
// available. The candidate's fields are moved into the pooled slot.
func (m *ProgramStateManager) intern(candidate *ProgramState) ProgramStateRef {
	for it := candidate.domVal.Iterator(); !it.Done(); {
		id, _, _ := it.Next()
		m.checkRegistered(id)
	}

	if existing, ok := m.states.GetOk(candidate); ok {
		return existing
	}

	var slot *ProgramState
	if n := len(m.freeStates); n > 0 {
		slot = m.freeStates[n-1]
		m.freeStates = m.freeStates[:n-1]
	} else {
		slot = new(ProgramState)
	}
	*slot = ProgramState{
		mgr:         m,
		domVal:      candidate.domVal,
		regionSExpr: candidate.regionSExpr,
		stmtSExpr:   candidate.stmtSExpr,
	}
	m.states.Set(slot, slot)
	return slot
}

func (m *ProgramStateManager) internWithDomVal(s *ProgramState, domVal *immutable.Map[DomID, AbsVal]) ProgramStateRef {
	return m.intern(&ProgramState{
		mgr:         m,
		domVal:      domVal,
		regionSExpr: s.regionSExpr,
		stmtSExpr:   s.stmtSExpr,
	})
}

func (m *ProgramStateManager) internWithRegionSExpr(s *ProgramState, regionSExpr *immutable.Map[*region.MemRegion, *sexpr.SymExpr]) ProgramStateRef {
	return m.intern(&ProgramState{
		mgr:         m,
		domVal:      s.domVal,
		regionSExpr: regionSExpr,
		stmtSExpr:   s.stmtSExpr,
	})
}

func (m *ProgramStateManager) internWithStmtSExpr(s *ProgramState, stmtSExpr *immutable.Map[proccfg.StmtRef, *sexpr.SymExpr]) ProgramStateRef {
	return m.intern(&ProgramState{
		mgr:         m,
		domVal:      s.domVal,
		regionSExpr: s.regionSExpr,
		stmtSExpr:   stmtSExpr,
	})
}

// Retain takes a reference on an interned state.
func (m *ProgramStateManager) Retain(s ProgramStateRef) ProgramStateRef {
	s.refcnt++
	return s
}

// Release drops a reference. When the count reaches zero the state is
// removed from the pool and its slot is recycled. Releasing a state that
// holds no references is a programming error.
func (m *ProgramStateManager) Release(s ProgramStateRef) {
	if s.refcnt == 0 {
		panic("releasing a program state with no references")
	}
	s.refcnt--
	if s.refcnt > 0 {
		return
	}
	m.states.Delete(s)
	*s = ProgramState{}
	m.freeStates = append(m.freeStates, s)
}

// PoolSize returns the number of live interned states.
func (m *ProgramStateManager) PoolSize() int { return m.states.Len() }

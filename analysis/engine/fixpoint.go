// Package engine drives the abstract interpretation of one function: a
// worklist fixpoint over the procedural CFG with widening at loop heads,
// a descending narrowing sweep, and checker dispatch over the stabilized
// per-statement states.
package engine

import (
	"github.com/MagicMotion/knight/analysis/dfa"
	"github.com/MagicMotion/knight/analysis/proccfg"
	"github.com/MagicMotion/knight/analysis/region"
	"github.com/MagicMotion/knight/tooling"
	"github.com/MagicMotion/knight/utils/worklist"
)

// defaultWideningDelay is the number of loop-head joins performed before
// the engine switches to widening.
const defaultWideningDelay = 2

// IntraProceduralFixpointIterator computes, for every node and statement
// of a single function, the stabilized abstract program states, and runs
// the registered checkers over them.
type IntraProceduralFixpointIterator struct {
	ctx         *tooling.Context
	analysisMgr *dfa.AnalysisManager
	checkerMgr  *dfa.CheckerManager
	stateMgr    *dfa.ProgramStateManager
	frame       *region.StackFrame
	graph       *proccfg.Graph

	// WideningDelay is the number of loop-head joins before widening.
	WideningDelay int

	pre      map[proccfg.NodeRef]dfa.ProgramStateRef
	post     map[proccfg.NodeRef]dfa.ProgramStateRef
	stmtPre  map[proccfg.StmtRef]dfa.ProgramStateRef
	stmtPost map[proccfg.StmtRef]dfa.ProgramStateRef
	visits   map[proccfg.NodeRef]int
	heads    map[proccfg.NodeRef]bool
}

func NewIntraProceduralFixpointIterator(
	ctx *tooling.Context,
	analysisMgr *dfa.AnalysisManager,
	checkerMgr *dfa.CheckerManager,
	stateMgr *dfa.ProgramStateManager,
	frame *region.StackFrame,
) *IntraProceduralFixpointIterator {

	g := frame.CFG()
	return &IntraProceduralFixpointIterator{
		ctx:           ctx,
		analysisMgr:   analysisMgr,
		checkerMgr:    checkerMgr,
		stateMgr:      stateMgr,
		frame:         frame,
		graph:         g,
		WideningDelay: defaultWideningDelay,
		pre:           make(map[proccfg.NodeRef]dfa.ProgramStateRef),
		post:          make(map[proccfg.NodeRef]dfa.ProgramStateRef),
		stmtPre:       make(map[proccfg.StmtRef]dfa.ProgramStateRef),
		stmtPost:      make(map[proccfg.StmtRef]dfa.ProgramStateRef),
		visits:        make(map[proccfg.NodeRef]int),
		heads:         g.LoopHeads(),
	}
}

// PreStateOf returns the stabilized entry state of the node.
func (it *IntraProceduralFixpointIterator) PreStateOf(n proccfg.NodeRef) (dfa.ProgramStateRef, bool) {
	s, ok := it.pre[n]
	return s, ok
}

// PostStateOf returns the stabilized exit state of the node.
func (it *IntraProceduralFixpointIterator) PostStateOf(n proccfg.NodeRef) (dfa.ProgramStateRef, bool) {
	s, ok := it.post[n]
	return s, ok
}

// StmtPreState returns the stabilized state before the statement.
func (it *IntraProceduralFixpointIterator) StmtPreState(s proccfg.StmtRef) (dfa.ProgramStateRef, bool) {
	st, ok := it.stmtPre[s]
	return st, ok
}

// StmtPostState returns the stabilized state after the statement.
func (it *IntraProceduralFixpointIterator) StmtPostState(s proccfg.StmtRef) (dfa.ProgramStateRef, bool) {
	st, ok := it.stmtPost[s]
	return st, ok
}

func (it *IntraProceduralFixpointIterator) store(m map[proccfg.NodeRef]dfa.ProgramStateRef, n proccfg.NodeRef, s dfa.ProgramStateRef) {
	old, ok := m[n]
	if ok && old == s {
		return
	}
	m[n] = it.stateMgr.Retain(s)
	if ok {
		it.stateMgr.Release(old)
	}
}

func (it *IntraProceduralFixpointIterator) storeStmt(m map[proccfg.StmtRef]dfa.ProgramStateRef, st proccfg.StmtRef, s dfa.ProgramStateRef) {
	old, ok := m[st]
	if ok && old == s {
		return
	}
	m[st] = it.stateMgr.Retain(s)
	if ok {
		it.stateMgr.Release(old)
	}
}

// transferNode executes the statements of a node on the entry state and
// returns the exit state. The states around every statement are recorded
// for the checker pass. Each statement observes its callbacks in the
// order pre, eval, post.
func (it *IntraProceduralFixpointIterator) transferNode(
	n proccfg.NodeRef, preState dfa.ProgramStateRef, actx *dfa.AnalysisContext) dfa.ProgramStateRef {

	actx.SetState(preState)
	for _, stmt := range n.Elems() {
		it.storeStmt(it.stmtPre, stmt, actx.GetState())

		it.analysisMgr.RunAnalysesForPreStmt(stmt, actx)
		it.analysisMgr.RunAnalysesForEvalStmt(stmt, actx)
		it.analysisMgr.RunAnalysesForPostStmt(stmt, actx)

		it.storeStmt(it.stmtPost, stmt, actx.GetState())
	}
	return actx.GetState()
}

// merge combines the previous entry state of a node with an incoming
// state: plain join on ordinary nodes, loop-head join then widening on
// loop heads once the widening delay is exhausted.
func (it *IntraProceduralFixpointIterator) merge(n proccfg.NodeRef, old, incoming dfa.ProgramStateRef) dfa.ProgramStateRef {
	if !it.heads[n] {
		return old.Join(incoming)
	}
	it.visits[n]++
	if it.visits[n] <= it.WideningDelay {
		return old.JoinAtLoopHead(incoming)
	}
	return old.Widen(incoming)
}

// Run analyzes the function to a fixpoint and dispatches the checkers.
func (it *IntraProceduralFixpointIterator) Run() {
	initial := it.stateMgr.GetDefaultState()

	actx := dfa.NewAnalysisContext(it.ctx, it.stateMgr.RegionManager())
	actx.SetCurrentStackFrame(it.frame)
	actx.SetState(initial)

	cctx := dfa.NewCheckerContext(it.ctx, it.checkerMgr.Kinds())
	cctx.SetCurrentStackFrame(it.frame)
	cctx.SetCurrentState(initial)

	it.analysisMgr.RunAnalysesForBeginFunction(actx)
	it.checkerMgr.RunCheckersForBeginFunction(cctx)

	entryState := actx.GetState()
	entry := it.graph.Entry()
	it.store(it.pre, entry, entryState)

	// Ascending iteration with widening.
	w := worklist.Empty[proccfg.NodeRef](true)
	w.Add(entry)
	w.Process(func(n proccfg.NodeRef, add func(proccfg.NodeRef)) {
		out := it.transferNode(n, it.pre[n], actx)

		if old, ok := it.post[n]; ok && old == out {
			return
		}
		it.store(it.post, n, out)

		for _, succ := range n.Succs() {
			old, ok := it.pre[succ]
			next := out
			if ok {
				next = it.merge(succ, old, out)
			}
			if !ok || next != old {
				it.store(it.pre, succ, next)
				add(succ)
			}
		}
	})

	// One descending sweep recovers precision lost to widening.
	for _, n := range it.graph.ReversePostOrder() {
		in := it.inState(n, entryState)
		if old, ok := it.pre[n]; ok {
			in = old.Narrow(in)
		}
		it.store(it.pre, n, in)

		out := it.transferNode(n, in, actx)
		if old, ok := it.post[n]; ok {
			out = old.Narrow(out)
		}
		it.store(it.post, n, out)
	}

	it.runCheckers(cctx)

	exit := it.graph.Exit()
	exitState, ok := it.post[exit]
	if !ok {
		exitState = it.stateMgr.GetBottomState()
	}
	actx.SetState(exitState)
	it.analysisMgr.RunAnalysesForEndFunction(exit, actx)

	cctx.SetCurrentState(exitState)
	it.checkerMgr.RunCheckersForEndFunction(exit, cctx)
}

// inState joins the post states of the node's predecessors.
func (it *IntraProceduralFixpointIterator) inState(n proccfg.NodeRef, entryState dfa.ProgramStateRef) dfa.ProgramStateRef {
	if n == it.graph.Entry() {
		return entryState
	}
	var in dfa.ProgramStateRef
	for _, pred := range n.Preds() {
		p, ok := it.post[pred]
		if !ok {
			continue
		}
		if in == nil {
			in = p
		} else {
			in = in.Join(p)
		}
	}
	if in == nil {
		return it.stateMgr.GetBottomState()
	}
	return in
}

// runCheckers replays the stabilized per-statement states through the
// checker callbacks.
func (it *IntraProceduralFixpointIterator) runCheckers(cctx *dfa.CheckerContext) {
	for _, n := range it.graph.ReversePostOrder() {
		for _, stmt := range n.Elems() {
			if s, ok := it.stmtPre[stmt]; ok {
				cctx.SetCurrentState(s)
			} else {
				cctx.SetCurrentState(it.stateMgr.GetBottomState())
			}
			it.checkerMgr.RunCheckersForPreStmt(stmt, cctx)

			if s, ok := it.stmtPost[stmt]; ok {
				cctx.SetCurrentState(s)
			} else {
				cctx.SetCurrentState(it.stateMgr.GetBottomState())
			}
			it.checkerMgr.RunCheckersForPostStmt(stmt, cctx)
		}
	}
}

// Dispose releases every state retained by the iterator.
func (it *IntraProceduralFixpointIterator) Dispose() {
	for n, s := range it.pre {
		it.stateMgr.Release(s)
		delete(it.pre, n)
	}
	for n, s := range it.post {
		it.stateMgr.Release(s)
		delete(it.post, n)
	}
	for st, s := range it.stmtPre {
		it.stateMgr.Release(s)
		delete(it.stmtPre, st)
	}
	for st, s := range it.stmtPost {
		it.stateMgr.Release(s)
		delete(it.stmtPost, st)
	}
}

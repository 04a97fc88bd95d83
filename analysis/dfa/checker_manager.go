package dfa

import (
	"log"

	"github.com/MagicMotion/knight/analysis/proccfg"
	"github.com/MagicMotion/knight/tooling"
)

// CheckerManager holds the registered checkers and dispatches their
// callbacks around the statements the fixpoint engine has analyzed.
// Checkers fire in registration order; pulling an analysis into the
// required set is their only scheduling lever.
type CheckerManager struct {
	ctx         *tooling.Context
	kinds       *KindRegistry
	analysisMgr *AnalysisManager

	checkers map[CheckerID]bool
	required map[CheckerID]bool
	enabled  map[CheckerID]Checker

	beginFunctionChecks []CheckBeginFunctionCallBack
	endFunctionChecks   []CheckEndFunctionCallBack
	stmtChecks          []stmtCheckerInfo
}

func NewCheckerManager(ctx *tooling.Context, kinds *KindRegistry, analysisMgr *AnalysisManager) *CheckerManager {
	return &CheckerManager{
		ctx:         ctx,
		kinds:       kinds,
		analysisMgr: analysisMgr,
		checkers:    make(map[CheckerID]bool),
		required:    make(map[CheckerID]bool),
		enabled:     make(map[CheckerID]Checker),
	}
}

// Kinds returns the kind registry the manager resolves IDs through.
func (m *CheckerManager) Kinds() *KindRegistry { return m.kinds }

// RegisterChecker adds the checker to the registered set and lets it
// install its dependencies and callbacks. Re-registration only warns.
func (m *CheckerManager) RegisterChecker(c Checker) Checker {
	id := m.kinds.CheckerID(c.Kind())
	if m.checkers[id] {
		log.Printf("%s checker is already registered", m.kinds.CheckerName(id))
	} else {
		m.checkers[id] = true
	}

	if d, ok := c.(CheckerDependencyRegistrar); ok {
		d.RegisterDependencies(m)
	}
	if r, ok := c.(CheckerCallbackRegistrar); ok {
		r.RegisterCallbacks(m)
	}
	return c
}

// AddRequiredChecker marks the checker as one that must run.
func (m *CheckerManager) AddRequiredChecker(id CheckerID) {
	m.required[id] = true
}

// IsCheckerRequired reports whether the checker must run.
func (m *CheckerManager) IsCheckerRequired(id CheckerID) bool {
	return m.required[id]
}

// EnableChecker transfers ownership of a constructed checker instance to
// the manager.
func (m *CheckerManager) EnableChecker(c Checker) {
	m.enabled[m.kinds.CheckerID(c.Kind())] = c
}

// GetChecker returns the enabled instance of the checker, if any.
func (m *CheckerManager) GetChecker(id CheckerID) (Checker, bool) {
	c, ok := m.enabled[id]
	return c, ok
}

// AddCheckerDependency pulls the analysis a checker consumes into the
// required analysis set.
func (m *CheckerManager) AddCheckerDependency(checker CheckerKind, analysis AnalysisKind) {
	m.analysisMgr.AddRequiredAnalysis(m.kinds.AnalysisID(analysis))
}

// RegisterForBeginFunction subscribes a callback to function entry.
func (m *CheckerManager) RegisterForBeginFunction(cb CheckBeginFunctionCallBack) {
	m.beginFunctionChecks = append(m.beginFunctionChecks, cb)
}

// RegisterForEndFunction subscribes a callback to function exit.
func (m *CheckerManager) RegisterForEndFunction(cb CheckEndFunctionCallBack) {
	m.endFunctionChecks = append(m.endFunctionChecks, cb)
}

// RegisterForStmt subscribes a statement callback guarded by a match
// predicate for one check phase.
func (m *CheckerManager) RegisterForStmt(cb CheckStmtCallBack, match MatchStmtCallBack, check CheckStmtKind) {
	m.stmtChecks = append(m.stmtChecks, stmtCheckerInfo{cb, match, check})
}

// RunCheckersForBeginFunction fires the function-entry callbacks of the
// required checkers.
func (m *CheckerManager) RunCheckersForBeginFunction(cctx *CheckerContext) {
	for _, cb := range m.beginFunctionChecks {
		if m.required[m.kinds.CheckerID(cb.kind)] {
			cctx.current = cb.kind
			cb.run(cctx)
		}
	}
}

// RunCheckersForEndFunction fires the function-exit callbacks of the
// required checkers.
func (m *CheckerManager) RunCheckersForEndFunction(exit proccfg.NodeRef, cctx *CheckerContext) {
	for _, cb := range m.endFunctionChecks {
		if m.required[m.kinds.CheckerID(cb.kind)] {
			cctx.current = cb.kind
			cb.run(exit, cctx)
		}
	}
}

func (m *CheckerManager) runCheckersForStmt(stmt proccfg.StmtRef, check CheckStmtKind, cctx *CheckerContext) {
	for _, info := range m.stmtChecks {
		if info.check != check || !m.required[m.kinds.CheckerID(info.cb.kind)] {
			continue
		}
		if !info.match(stmt) {
			continue
		}
		cctx.current = info.cb.kind
		info.cb.run(stmt, cctx)
	}
}

// RunCheckersForPreStmt fires the matching pre-statement callbacks.
func (m *CheckerManager) RunCheckersForPreStmt(stmt proccfg.StmtRef, cctx *CheckerContext) {
	m.runCheckersForStmt(stmt, CheckPre, cctx)
}

// RunCheckersForPostStmt fires the matching post-statement callbacks.
func (m *CheckerManager) RunCheckersForPostStmt(stmt proccfg.StmtRef, cctx *CheckerContext) {
	m.runCheckersForStmt(stmt, CheckPost, cctx)
}

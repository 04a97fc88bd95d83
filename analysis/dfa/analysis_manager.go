package dfa

import (
	"fmt"
	"log"
	"sort"

	"github.com/MagicMotion/knight/analysis/proccfg"
	"github.com/MagicMotion/knight/tooling"
)

// Analysis is implemented by every analysis instance. An analysis that
// also implements CallbackRegistrar installs its callbacks at
// registration time.
type Analysis interface {
	Kind() AnalysisKind
}

// CallbackRegistrar is implemented by analyses that subscribe to events.
type CallbackRegistrar interface {
	RegisterCallbacks(mgr *AnalysisManager)
}

// DependencyRegistrar is implemented by analyses that require other
// analyses or register domains.
type DependencyRegistrar interface {
	RegisterDependencies(mgr *AnalysisManager)
}

// AnalysisManager tracks registered analyses, their dependency graph and
// domains, computes which analyses must run and in what order, and
// dispatches event callbacks to them.
type AnalysisManager struct {
	ctx   *tooling.Context
	kinds *KindRegistry

	analyses     map[AnalysisID]bool
	dependencies map[AnalysisID]map[AnalysisID]bool
	privileged   map[AnalysisID]bool
	required     map[AnalysisID]bool
	enabled      map[AnalysisID]Analysis

	fullOrder []AnalysisID

	domains         map[DomID]AnalysisID
	domainDefaultFn map[DomID]DefaultValFn
	domainBottomFn  map[DomID]BottomValFn
	analysisDomains map[AnalysisID][]DomID

	beginFunctionAnalyses []AnalyzeBeginFunctionCallBack
	endFunctionAnalyses   []AnalyzeEndFunctionCallBack
	stmtAnalyses          []stmtAnalysisInfo
}

func NewAnalysisManager(ctx *tooling.Context, kinds *KindRegistry) *AnalysisManager {
	return &AnalysisManager{
		ctx:             ctx,
		kinds:           kinds,
		analyses:        make(map[AnalysisID]bool),
		dependencies:    make(map[AnalysisID]map[AnalysisID]bool),
		privileged:      make(map[AnalysisID]bool),
		required:        make(map[AnalysisID]bool),
		enabled:         make(map[AnalysisID]Analysis),
		domains:         make(map[DomID]AnalysisID),
		domainDefaultFn: make(map[DomID]DefaultValFn),
		domainBottomFn:  make(map[DomID]BottomValFn),
		analysisDomains: make(map[AnalysisID][]DomID),
	}
}

// Kinds returns the kind registry the manager resolves IDs through.
func (m *AnalysisManager) Kinds() *KindRegistry { return m.kinds }

// Context returns the tooling context of the run.
func (m *AnalysisManager) Context() *tooling.Context { return m.ctx }

// RegisterAnalysis adds the analysis to the registered set and lets it
// install its dependencies and callbacks. Registering the same kind twice
// only warns; the registered set is idempotent. The caller hands the
// returned instance back through EnableAnalysis once it should run.
func (m *AnalysisManager) RegisterAnalysis(a Analysis) Analysis {
	id := m.kinds.AnalysisID(a.Kind())
	if m.analyses[id] {
		log.Printf("%s analysis is already registered", m.kinds.AnalysisName(id))
	} else {
		m.analyses[id] = true
	}

	if d, ok := a.(DependencyRegistrar); ok {
		d.RegisterDependencies(m)
	}
	if r, ok := a.(CallbackRegistrar); ok {
		r.RegisterCallbacks(m)
	}
	return a
}

// AddRequiredAnalysis marks the analysis as one that must run.
func (m *AnalysisManager) AddRequiredAnalysis(id AnalysisID) {
	m.required[id] = true
}

// IsAnalysisRequired reports whether the analysis must run.
func (m *AnalysisManager) IsAnalysisRequired(id AnalysisID) bool {
	return m.required[id]
}

// SetPrivileged marks the analysis kind as unconditionally required,
// regardless of user selection.
func (m *AnalysisManager) SetPrivileged(k AnalysisKind) {
	id := m.kinds.AnalysisID(k)
	m.privileged[id] = true
	m.required[id] = true
}

// AddAnalysisDependency records that id can only run after requiredID.
// Both analyses must have been registered beforehand.
func (m *AnalysisManager) AddAnalysisDependency(id, requiredID AnalysisID) error {
	if !m.analyses[id] {
		return fmt.Errorf("dependency added for unregistered analysis %s",
			m.kinds.AnalysisName(id))
	}
	if !m.analyses[requiredID] {
		return fmt.Errorf("analysis %s depends on unregistered analysis %s",
			m.kinds.AnalysisName(id), m.kinds.AnalysisName(requiredID))
	}
	if m.dependencies[id] == nil {
		m.dependencies[id] = make(map[AnalysisID]bool)
	}
	m.dependencies[id][requiredID] = true
	return nil
}

// AnalysisDependencies returns the direct dependencies of the analysis.
func (m *AnalysisManager) AnalysisDependencies(id AnalysisID) []AnalysisID {
	deps := make([]AnalysisID, 0, len(m.dependencies[id]))
	for dep := range m.dependencies[id] {
		deps = append(deps, dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
	return deps
}

// EnableAnalysis transfers ownership of a constructed analysis instance
// to the manager.
func (m *AnalysisManager) EnableAnalysis(a Analysis) {
	m.enabled[m.kinds.AnalysisID(a.Kind())] = a
}

// GetAnalysis returns the enabled instance of the analysis, if any.
func (m *AnalysisManager) GetAnalysis(id AnalysisID) (Analysis, bool) {
	a, ok := m.enabled[id]
	return a, ok
}

// ComputeAllRequiredAnalysesByDependencies closes the required set under
// the dependency edges, starting from the privileged and explicitly
// required analyses.
func (m *AnalysisManager) ComputeAllRequiredAnalysesByDependencies() {
	queue := make([]AnalysisID, 0, len(m.required))
	for id := range m.required {
		queue = append(queue, id)
	}

	visited := make(map[AnalysisID]bool)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		m.required[id] = true
		for dep := range m.dependencies[id] {
			queue = append(queue, dep)
		}
	}
}

// RequiredAnalyses returns the required analyses in ascending ID order.
func (m *AnalysisManager) RequiredAnalyses() []AnalysisID {
	ids := make([]AnalysisID, 0, len(m.required))
	for id := range m.required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ComputeFullOrderAnalysesAfterRegistry linearizes the required set so
// every analysis runs after its dependencies. Ties break on ascending ID.
// A dependency cycle is a configuration error.
func (m *AnalysisManager) ComputeFullOrderAnalysesAfterRegistry() error {
	indegree := make(map[AnalysisID]int)
	dependents := make(map[AnalysisID][]AnalysisID)
	for id := range m.required {
		indegree[id] = 0
	}
	for id := range m.required {
		for dep := range m.dependencies[id] {
			if !m.required[dep] {
				continue
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []AnalysisID
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]AnalysisID, 0, len(indegree))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dependent := range dependents[next] {
			if indegree[dependent]--; indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(indegree) {
		return fmt.Errorf("cycle detected between the dependencies of the required analyses")
	}
	m.fullOrder = order
	return nil
}

// FullOrder returns the computed linear order of the required analyses.
func (m *AnalysisManager) FullOrder() []AnalysisID { return m.fullOrder }

// GetOrderedAnalyses projects the full order onto the given subset,
// preserving the order.
func (m *AnalysisManager) GetOrderedAnalyses(ids map[AnalysisID]bool) []AnalysisID {
	res := make([]AnalysisID, 0, len(ids))
	for _, id := range m.fullOrder {
		if ids[id] {
			res = append(res, id)
		}
	}
	return res
}

// AddDomainDependency binds a domain to its owning analysis along with
// the factories for its default and bottom values.
func (m *AnalysisManager) AddDomainDependency(analysis AnalysisKind, dom DomainKind,
	defaultFn DefaultValFn, bottomFn BottomValFn) {

	aid := m.kinds.AnalysisID(analysis)
	id := m.kinds.DomainID(dom)
	m.domains[id] = aid
	m.domainDefaultFn[id] = defaultFn
	m.domainBottomFn[id] = bottomFn
	m.analysisDomains[aid] = append(m.analysisDomains[aid], id)
}

// RegisteredDomainsIn returns the domains registered under the analysis.
func (m *AnalysisManager) RegisteredDomainsIn(id AnalysisID) []DomID {
	return m.analysisDomains[id]
}

// DomainOwner returns the analysis owning the domain.
func (m *AnalysisManager) DomainOwner(id DomID) (AnalysisID, bool) {
	aid, ok := m.domains[id]
	return aid, ok
}

// DomainDefaultValFn returns the default-value factory of the domain.
func (m *AnalysisManager) DomainDefaultValFn(id DomID) (DefaultValFn, bool) {
	fn, ok := m.domainDefaultFn[id]
	return fn, ok
}

// DomainBottomValFn returns the bottom-value factory of the domain.
func (m *AnalysisManager) DomainBottomValFn(id DomID) (BottomValFn, bool) {
	fn, ok := m.domainBottomFn[id]
	return fn, ok
}

// RegisterForBeginFunction subscribes a callback to function entry.
func (m *AnalysisManager) RegisterForBeginFunction(cb AnalyzeBeginFunctionCallBack) {
	m.beginFunctionAnalyses = append(m.beginFunctionAnalyses, cb)
}

// RegisterForEndFunction subscribes a callback to function exit.
func (m *AnalysisManager) RegisterForEndFunction(cb AnalyzeEndFunctionCallBack) {
	m.endFunctionAnalyses = append(m.endFunctionAnalyses, cb)
}

// RegisterForStmt subscribes a statement callback guarded by a match
// predicate for one visit phase.
func (m *AnalysisManager) RegisterForStmt(cb AnalyzeStmtCallBack, match MatchStmtCallBack, visit VisitStmtKind) {
	m.stmtAnalyses = append(m.stmtAnalyses, stmtAnalysisInfo{cb, match, visit})
}

// RunAnalysesForBeginFunction fires the function-entry callbacks of the
// required analyses in full order.
func (m *AnalysisManager) RunAnalysesForBeginFunction(actx *AnalysisContext) {
	for _, id := range m.fullOrder {
		for _, cb := range m.beginFunctionAnalyses {
			if m.kinds.AnalysisID(cb.kind) == id {
				cb.run(actx)
			}
		}
	}
}

// RunAnalysesForEndFunction fires the function-exit callbacks of the
// required analyses in full order.
func (m *AnalysisManager) RunAnalysesForEndFunction(exit proccfg.NodeRef, actx *AnalysisContext) {
	for _, id := range m.fullOrder {
		for _, cb := range m.endFunctionAnalyses {
			if m.kinds.AnalysisID(cb.kind) == id {
				cb.run(exit, actx)
			}
		}
	}
}

func (m *AnalysisManager) runAnalysesForStmt(stmt proccfg.StmtRef, visit VisitStmtKind, actx *AnalysisContext) {
	for _, id := range m.fullOrder {
		for _, info := range m.stmtAnalyses {
			if info.visit != visit || m.kinds.AnalysisID(info.cb.kind) != id {
				continue
			}
			if !info.match(stmt) {
				continue
			}
			info.cb.run(stmt, actx)
		}
	}
}

// RunAnalysesForPreStmt fires the matching pre-statement callbacks.
func (m *AnalysisManager) RunAnalysesForPreStmt(stmt proccfg.StmtRef, actx *AnalysisContext) {
	m.runAnalysesForStmt(stmt, VisitPre, actx)
}

// RunAnalysesForEvalStmt fires the matching eval-statement callbacks.
func (m *AnalysisManager) RunAnalysesForEvalStmt(stmt proccfg.StmtRef, actx *AnalysisContext) {
	m.runAnalysesForStmt(stmt, VisitEval, actx)
}

// RunAnalysesForPostStmt fires the matching post-statement callbacks.
func (m *AnalysisManager) RunAnalysesForPostStmt(stmt proccfg.StmtRef, actx *AnalysisContext) {
	m.runAnalysesForStmt(stmt, VisitPost, actx)
}

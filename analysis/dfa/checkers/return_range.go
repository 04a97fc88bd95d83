// Package checkers bundles the checkers shipped with the framework.
package checkers

import (
	"fmt"
	"go/ast"

	"github.com/MagicMotion/knight/analysis/dfa"
	"github.com/MagicMotion/knight/analysis/dfa/analyses"
	"github.com/MagicMotion/knight/analysis/dfa/domains"
	"github.com/MagicMotion/knight/analysis/proccfg"
	"github.com/MagicMotion/knight/tooling"
)

// Kinds collects the kind descriptors of the bundled checkers.
type Kinds struct {
	ReturnRange dfa.CheckerKind
}

// RegisterKinds registers the bundled checker kinds.
func RegisterKinds(r *dfa.KindRegistry) Kinds {
	return Kinds{
		ReturnRange: r.RegisterCheckerKind("ReturnRange",
			"Reports the interval of returned integer expressions."),
	}
}

// ReturnRangeChecker reports, for every return statement whose single
// result is an identifier, the interval the interval analysis derived for
// it. Other return statements and unconstrained (⊤) values are not
// reported.
type ReturnRangeChecker struct {
	kind     dfa.CheckerKind
	analysis *analyses.IntervalAnalysis
}

func NewReturnRangeChecker(kind dfa.CheckerKind, analysis *analyses.IntervalAnalysis) *ReturnRangeChecker {
	return &ReturnRangeChecker{kind: kind, analysis: analysis}
}

func (c *ReturnRangeChecker) Kind() dfa.CheckerKind { return c.kind }

// RegisterDependencies pulls the interval analysis into the required set.
func (c *ReturnRangeChecker) RegisterDependencies(mgr *dfa.CheckerManager) {
	mgr.AddCheckerDependency(c.kind, c.analysis.Kind())
}

// RegisterCallbacks subscribes the checker to return statements.
func (c *ReturnRangeChecker) RegisterCallbacks(mgr *dfa.CheckerManager) {
	mgr.RegisterForStmt(
		dfa.MakeCheckStmtCallBack(c.kind, c.checkReturn),
		func(s proccfg.StmtRef) bool {
			_, ok := s.(*ast.ReturnStmt)
			return ok
		},
		dfa.CheckPre,
	)
}

func (c *ReturnRangeChecker) checkReturn(stmt proccfg.StmtRef, cctx *dfa.CheckerContext) {
	ret := stmt.(*ast.ReturnStmt)
	if len(ret.Results) != 1 {
		return
	}
	id, ok := ret.Results[0].(*ast.Ident)
	if !ok {
		return
	}

	state := cctx.GetState()
	if state == nil || state.IsBottom() {
		return
	}

	info := cctx.GetToolingContext().TypeInfo()
	if info == nil {
		return
	}
	obj := info.ObjectOf(id)
	if obj == nil {
		return
	}
	r, ok := state.GetRegion(obj, cctx.GetCurrentStackFrame())
	if !ok {
		return
	}

	env, ok := state.Get(c.analysis.DomID()).(*domains.EnvMap)
	if !ok {
		return
	}
	itv, ok := env.GetValue(r).(*domains.Interval)
	if !ok || itv.IsTop() {
		return
	}

	cctx.Diagnose(ret.Pos(), tooling.Warning,
		fmt.Sprintf("%s is returned with value in %s", id.Name, itv))
}

// Builtin holds the constructed bundled checkers.
type Builtin struct {
	Kinds       Kinds
	ReturnRange *ReturnRangeChecker
}

// RegisterBuiltinCheckers registers the bundled checker kinds and, for
// every kind accepted by the enabled filter, constructs the checker,
// installs its callbacks and dependencies, and marks it required.
func RegisterBuiltinCheckers(r *dfa.KindRegistry, mgr *dfa.CheckerManager,
	builtin analyses.Builtin, enabled func(name string) bool) Builtin {

	kinds := RegisterKinds(r)
	res := Builtin{Kinds: kinds}

	if enabled(r.CheckerName(r.CheckerID(kinds.ReturnRange))) {
		res.ReturnRange = NewReturnRangeChecker(kinds.ReturnRange, builtin.IntervalAnalysis)
		mgr.RegisterChecker(res.ReturnRange)
		mgr.EnableChecker(res.ReturnRange)
		mgr.AddRequiredChecker(r.CheckerID(kinds.ReturnRange))
	}

	return res
}

package analyses

import (
	"go/ast"
	"go/token"
	"log"
	"strconv"

	"github.com/MagicMotion/knight/analysis/dfa"
	"github.com/MagicMotion/knight/analysis/dfa/domains"
	"github.com/MagicMotion/knight/analysis/proccfg"
	"github.com/MagicMotion/knight/analysis/region"
)

// IntervalAnalysis tracks the integer variables of a function with an
// interval environment. It consumes the regions resolved by the symbol
// resolver and owns the interval environment domain.
type IntervalAnalysis struct {
	kinds Kinds
	reg   *dfa.KindRegistry
	domID dfa.DomID
}

func NewIntervalAnalysis(kinds Kinds, reg *dfa.KindRegistry) *IntervalAnalysis {
	return &IntervalAnalysis{
		kinds: kinds,
		reg:   reg,
		domID: reg.DomainID(kinds.IntervalEnv),
	}
}

func (a *IntervalAnalysis) Kind() dfa.AnalysisKind { return a.kinds.IntervalAnalysis }

// DomID returns the ID of the interval environment domain.
func (a *IntervalAnalysis) DomID() dfa.DomID { return a.domID }

// RegisterDependencies orders the analysis after the symbol resolver and
// registers the interval environment domain.
func (a *IntervalAnalysis) RegisterDependencies(mgr *dfa.AnalysisManager) {
	err := mgr.AddAnalysisDependency(
		a.reg.AnalysisID(a.kinds.IntervalAnalysis),
		a.reg.AnalysisID(a.kinds.SymbolResolver),
	)
	if err != nil {
		log.Fatal(err)
	}

	valDefault := domains.IntervalDefault(a.kinds.IntervalEnv)
	valBottom := domains.IntervalBottom(a.kinds.IntervalEnv)
	mgr.AddDomainDependency(a.kinds.IntervalAnalysis, a.kinds.IntervalEnv,
		domains.EnvMapDefault(a.kinds.IntervalEnv, valDefault, valBottom),
		domains.EnvMapBottom(a.kinds.IntervalEnv, valDefault, valBottom))
}

// RegisterCallbacks subscribes the transfer functions.
func (a *IntervalAnalysis) RegisterCallbacks(mgr *dfa.AnalysisManager) {
	mgr.RegisterForStmt(
		dfa.MakeStmtCallBack(a.kinds.IntervalAnalysis, a.evalAssign),
		func(s proccfg.StmtRef) bool {
			switch s.(type) {
			case *ast.AssignStmt, *ast.IncDecStmt:
				return true
			}
			return false
		},
		dfa.VisitEval,
	)
}

func (a *IntervalAnalysis) evalAssign(stmt proccfg.StmtRef, actx *dfa.AnalysisContext) {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		a.transferAssign(s, actx)
	case *ast.IncDecStmt:
		a.transferIncDec(s, actx)
	}
}

func (a *IntervalAnalysis) transferAssign(assign *ast.AssignStmt, actx *dfa.AnalysisContext) {
	if len(assign.Lhs) != len(assign.Rhs) {
		return
	}

	state := actx.GetState()
	env := state.Get(a.domID).(*domains.EnvMap)

	for i, lhs := range assign.Lhs {
		lid, ok := lhs.(*ast.Ident)
		if !ok || lid.Name == "_" {
			continue
		}
		r, ok := a.regionOf(lid, actx)
		if !ok {
			continue
		}

		val := a.evalExpr(assign.Rhs[i], env, actx)
		switch assign.Tok {
		case token.ASSIGN, token.DEFINE:
		case token.ADD_ASSIGN:
			val = domains.IntervalAdd(a.lookup(env, lid, actx), val)
		case token.SUB_ASSIGN:
			val = domains.IntervalSub(a.lookup(env, lid, actx), val)
		default:
			val = a.topVal()
		}
		env.SetValue(r, val)
	}

	actx.SetState(state.Set(a.domID, env))
}

func (a *IntervalAnalysis) transferIncDec(s *ast.IncDecStmt, actx *dfa.AnalysisContext) {
	lid, ok := s.X.(*ast.Ident)
	if !ok {
		return
	}
	r, ok := a.regionOf(lid, actx)
	if !ok {
		return
	}

	state := actx.GetState()
	env := state.Get(a.domID).(*domains.EnvMap)

	one := domains.NewIntervalConst(a.kinds.IntervalEnv, 1)
	cur := a.lookup(env, lid, actx)
	if s.Tok == token.INC {
		env.SetValue(r, domains.IntervalAdd(cur, one))
	} else {
		env.SetValue(r, domains.IntervalSub(cur, one))
	}

	actx.SetState(state.Set(a.domID, env))
}

// evalExpr abstracts an expression into an interval under env.
func (a *IntervalAnalysis) evalExpr(e ast.Expr, env *domains.EnvMap, actx *dfa.AnalysisContext) *domains.Interval {
	switch e := e.(type) {
	case *ast.BasicLit:
		if e.Kind == token.INT {
			if v, err := strconv.ParseInt(e.Value, 0, 64); err == nil {
				return domains.NewIntervalConst(a.kinds.IntervalEnv, v)
			}
		}
	case *ast.Ident:
		return a.lookup(env, e, actx)
	case *ast.ParenExpr:
		return a.evalExpr(e.X, env, actx)
	case *ast.BinaryExpr:
		l := a.evalExpr(e.X, env, actx)
		r := a.evalExpr(e.Y, env, actx)
		switch e.Op {
		case token.ADD:
			return domains.IntervalAdd(l, r)
		case token.SUB:
			return domains.IntervalSub(l, r)
		}
	case *ast.UnaryExpr:
		if e.Op == token.SUB {
			return domains.IntervalNeg(a.evalExpr(e.X, env, actx))
		}
	}
	return a.topVal()
}

func (a *IntervalAnalysis) lookup(env *domains.EnvMap, id *ast.Ident, actx *dfa.AnalysisContext) *domains.Interval {
	if r, ok := a.regionOf(id, actx); ok {
		if itv, ok := env.GetValue(r).(*domains.Interval); ok {
			return itv
		}
	}
	return a.topVal()
}

func (a *IntervalAnalysis) regionOf(id *ast.Ident, actx *dfa.AnalysisContext) (*region.MemRegion, bool) {
	info := actx.GetTypeInfo()
	if info == nil {
		return nil, false
	}
	obj := info.ObjectOf(id)
	if obj == nil {
		return nil, false
	}
	return actx.GetState().GetRegion(obj, actx.GetCurrentStackFrame())
}

func (a *IntervalAnalysis) topVal() *domains.Interval {
	return domains.IntervalDefault(a.kinds.IntervalEnv)().(*domains.Interval)
}

package analyses

import (
	"go/ast"
	"go/token"
	"strconv"

	"github.com/MagicMotion/knight/analysis/dfa"
	"github.com/MagicMotion/knight/analysis/proccfg"
	"github.com/MagicMotion/knight/analysis/sexpr"
)

// SymbolResolver resolves identifiers to memory regions and attaches
// symbolic expressions to the statements it evaluates. Later analyses
// read both through the program state, so the resolver must run first.
type SymbolResolver struct {
	kind  dfa.AnalysisKind
	exprs *sexpr.Manager
}

func NewSymbolResolver(kind dfa.AnalysisKind, exprs *sexpr.Manager) *SymbolResolver {
	return &SymbolResolver{kind: kind, exprs: exprs}
}

func (a *SymbolResolver) Kind() dfa.AnalysisKind { return a.kind }

// RegisterCallbacks subscribes the resolver to every evaluated statement.
func (a *SymbolResolver) RegisterCallbacks(mgr *dfa.AnalysisManager) {
	mgr.RegisterForStmt(
		dfa.MakeStmtCallBack(a.kind, a.evalStmt),
		func(proccfg.StmtRef) bool { return true },
		dfa.VisitEval,
	)
}

func (a *SymbolResolver) evalStmt(stmt proccfg.StmtRef, actx *dfa.AnalysisContext) {
	switch n := stmt.(type) {
	case *ast.BasicLit:
		a.visitBasicLit(n, actx)
	case *ast.Ident:
		a.visitIdent(n, actx)
	case *ast.BinaryExpr:
		a.visitBinaryExpr(n, actx)
	case *ast.UnaryExpr:
		a.visitUnaryExpr(n, actx)
	case *ast.ParenExpr:
		if e, ok := actx.GetState().GetStmtSExpr(n.X); ok {
			actx.SetState(actx.GetState().SetStmtSExpr(n, e))
		}
	case *ast.AssignStmt:
		a.visitAssignStmt(n, actx)
	}
}

func (a *SymbolResolver) visitBasicLit(lit *ast.BasicLit, actx *dfa.AnalysisContext) {
	if lit.Kind != token.INT {
		return
	}
	v, err := strconv.ParseInt(lit.Value, 0, 64)
	if err != nil {
		return
	}
	actx.SetState(actx.GetState().SetStmtSExpr(lit, a.exprs.IntConst(v)))
}

// visitIdent propagates the region's expression to the use site.
func (a *SymbolResolver) visitIdent(id *ast.Ident, actx *dfa.AnalysisContext) {
	state := actx.GetState()
	if _, ok := state.GetStmtSExpr(id); ok {
		return
	}

	obj := a.objectOf(id, actx)
	if obj == nil {
		return
	}
	r, ok := state.GetRegion(obj, actx.GetCurrentStackFrame())
	if !ok {
		return
	}

	e, ok := state.GetRegionSExpr(r)
	if !ok {
		e = a.exprs.RegionExpr(actx.GetRegionManager().Representative(r))
	}
	actx.SetState(state.SetStmtSExpr(id, e))
}

func (a *SymbolResolver) visitBinaryExpr(bin *ast.BinaryExpr, actx *dfa.AnalysisContext) {
	state := actx.GetState()
	l, lok := state.GetStmtSExpr(bin.X)
	r, rok := state.GetStmtSExpr(bin.Y)
	if !lok || !rok {
		return
	}
	actx.SetState(state.SetStmtSExpr(bin, a.exprs.Binary(bin.Op, l, r)))
}

func (a *SymbolResolver) visitUnaryExpr(un *ast.UnaryExpr, actx *dfa.AnalysisContext) {
	state := actx.GetState()
	x, ok := state.GetStmtSExpr(un.X)
	if !ok {
		return
	}
	actx.SetState(state.SetStmtSExpr(un, a.exprs.Unary(un.Op, x)))
}

// visitAssignStmt binds the assigned regions to the expressions of their
// right-hand sides. Plain variable copies additionally merge the alias
// classes of both regions.
func (a *SymbolResolver) visitAssignStmt(assign *ast.AssignStmt, actx *dfa.AnalysisContext) {
	if len(assign.Lhs) != len(assign.Rhs) {
		return
	}

	for i, lhs := range assign.Lhs {
		lid, ok := lhs.(*ast.Ident)
		if !ok || lid.Name == "_" {
			continue
		}
		obj := a.objectOf(lid, actx)
		if obj == nil {
			continue
		}
		state := actx.GetState()
		r, ok := state.GetRegion(obj, actx.GetCurrentStackFrame())
		if !ok {
			continue
		}

		rhs := assign.Rhs[i]
		e, ok := state.GetStmtSExpr(rhs)
		if !ok {
			e = a.exprs.Unknown()
		}
		state = state.SetRegionSExpr(r, e)
		state = state.SetStmtSExpr(assign, e)
		actx.SetState(state)

		if rid, ok := rhs.(*ast.Ident); ok && assign.Tok == token.ASSIGN {
			if robj := a.objectOf(rid, actx); robj != nil {
				if rr, ok := state.GetRegion(robj, actx.GetCurrentStackFrame()); ok {
					actx.GetRegionManager().Unify(r, rr)
				}
			}
		}
	}
}

func (a *SymbolResolver) objectOf(id *ast.Ident, actx *dfa.AnalysisContext) proccfg.DeclRef {
	info := actx.GetTypeInfo()
	if info == nil {
		return nil
	}
	if obj := info.ObjectOf(id); obj != nil {
		return obj
	}
	return nil
}

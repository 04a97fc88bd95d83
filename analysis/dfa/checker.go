package dfa

import (
	"go/ast"
	"go/token"

	"github.com/MagicMotion/knight/analysis/proccfg"
	"github.com/MagicMotion/knight/analysis/region"
	"github.com/MagicMotion/knight/tooling"
)

// Checker is implemented by every checker instance.
type Checker interface {
	Kind() CheckerKind
}

// CheckerCallbackRegistrar is implemented by checkers that subscribe to
// events.
type CheckerCallbackRegistrar interface {
	RegisterCallbacks(mgr *CheckerManager)
}

// CheckerDependencyRegistrar is implemented by checkers that consume the
// results of analyses.
type CheckerDependencyRegistrar interface {
	RegisterDependencies(mgr *CheckerManager)
}

// CheckStmtKind selects the statement phase a checker callback fires in.
// Checkers observe the states around a statement; they do not evaluate.
type CheckStmtKind int

const (
	CheckPre CheckStmtKind = iota
	CheckPost
)

type (
	CheckBeginFunctionCallBack struct {
		kind CheckerKind
		run  func(*CheckerContext)
	}

	CheckEndFunctionCallBack struct {
		kind CheckerKind
		run  func(proccfg.NodeRef, *CheckerContext)
	}

	CheckStmtCallBack struct {
		kind CheckerKind
		run  func(proccfg.StmtRef, *CheckerContext)
	}

	stmtCheckerInfo struct {
		cb    CheckStmtCallBack
		match MatchStmtCallBack
		check CheckStmtKind
	}
)

func MakeCheckBeginFunctionCallBack(kind CheckerKind, run func(*CheckerContext)) CheckBeginFunctionCallBack {
	return CheckBeginFunctionCallBack{kind, run}
}

func MakeCheckEndFunctionCallBack(kind CheckerKind, run func(proccfg.NodeRef, *CheckerContext)) CheckEndFunctionCallBack {
	return CheckEndFunctionCallBack{kind, run}
}

func MakeCheckStmtCallBack(kind CheckerKind, run func(proccfg.StmtRef, *CheckerContext)) CheckStmtCallBack {
	return CheckStmtCallBack{kind, run}
}

// CheckerContext is the handle passed to checker callbacks. It exposes
// the state surrounding the checked statement and a diagnostics sink.
type CheckerContext struct {
	ctx   *tooling.Context
	kinds *KindRegistry

	state   ProgramStateRef
	frame   *region.StackFrame
	current CheckerKind
}

func NewCheckerContext(ctx *tooling.Context, kinds *KindRegistry) *CheckerContext {
	return &CheckerContext{ctx: ctx, kinds: kinds}
}

// GetState returns the state observed by the checker.
func (c *CheckerContext) GetState() ProgramStateRef { return c.state }

// SetCurrentState installs the state the next callback observes.
func (c *CheckerContext) SetCurrentState(s ProgramStateRef) { c.state = s }

// GetCurrentStackFrame returns the active frame.
func (c *CheckerContext) GetCurrentStackFrame() *region.StackFrame { return c.frame }

// SetCurrentStackFrame installs the active frame.
func (c *CheckerContext) SetCurrentStackFrame(f *region.StackFrame) { c.frame = f }

// GetCurrentDecl returns the function declaration of the active frame.
func (c *CheckerContext) GetCurrentDecl() *ast.FuncDecl {
	if c.frame == nil {
		return nil
	}
	return c.frame.Fn()
}

// GetToolingContext returns the per-run tooling context.
func (c *CheckerContext) GetToolingContext() *tooling.Context { return c.ctx }

// Diagnose reports a finding attributed to the running checker.
func (c *CheckerContext) Diagnose(pos token.Pos, level tooling.DiagLevel, msg string) {
	c.ctx.Diagnostics().Diagnose(tooling.Diagnostic{
		Pos:     pos,
		Level:   level,
		Checker: c.kinds.CheckerName(c.kinds.CheckerID(c.current)),
		Message: msg,
	})
}

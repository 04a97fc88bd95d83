package dfa

import (
	"go/ast"
	"go/token"
	"go/types"

	"github.com/MagicMotion/knight/analysis/region"
	"github.com/MagicMotion/knight/tooling"
)

// AnalysisContext is the short-lived handle passed to every analysis
// callback. Callbacks read the current state, derive a new interned state
// through the state manager, and install it back; the driver moves the
// stack frame across call boundaries.
type AnalysisContext struct {
	ctx       *tooling.Context
	regionMgr *region.Manager

	state ProgramStateRef
	frame *region.StackFrame
}

func NewAnalysisContext(ctx *tooling.Context, regionMgr *region.Manager) *AnalysisContext {
	return &AnalysisContext{ctx: ctx, regionMgr: regionMgr}
}

// GetState returns the current interned state.
func (c *AnalysisContext) GetState() ProgramStateRef { return c.state }

// SetState installs a new current state. States are interned, so this is
// just a pointer update.
func (c *AnalysisContext) SetState(s ProgramStateRef) { c.state = s }

// GetCurrentStackFrame returns the active frame.
func (c *AnalysisContext) GetCurrentStackFrame() *region.StackFrame { return c.frame }

// SetCurrentStackFrame installs the active frame.
func (c *AnalysisContext) SetCurrentStackFrame(f *region.StackFrame) { c.frame = f }

// GetCurrentDecl returns the function declaration of the active frame.
func (c *AnalysisContext) GetCurrentDecl() *ast.FuncDecl {
	if c.frame == nil {
		return nil
	}
	return c.frame.Fn()
}

// GetRegionManager returns the region manager of the run.
func (c *AnalysisContext) GetRegionManager() *region.Manager { return c.regionMgr }

// GetFileSet returns the front end's file set.
func (c *AnalysisContext) GetFileSet() *token.FileSet { return c.ctx.FileSet() }

// GetTypeInfo returns the front end's type information.
func (c *AnalysisContext) GetTypeInfo() *types.Info { return c.ctx.TypeInfo() }

// GetToolingContext returns the per-run tooling context.
func (c *AnalysisContext) GetToolingContext() *tooling.Context { return c.ctx }

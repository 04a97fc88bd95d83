package region

import (
	"fmt"
	"go/ast"
	"go/token"
	"io"

	"github.com/MagicMotion/knight/analysis/proccfg"
	"github.com/MagicMotion/knight/utils"
	"github.com/MagicMotion/knight/utils/hmap"
)

// CallSiteInfo records where a frame was entered from.
type CallSiteInfo struct {
	// CallExpr is the call expression at the call site.
	CallExpr proccfg.StmtRef
	// Node is the CFG node containing the call site.
	Node proccfg.NodeRef
	// StmtIdx is the index of the call site in the node.
	StmtIdx int
}

// StackFrame identifies a procedural context: a function declaration plus
// the chain of call sites that reached it. Frames are interned by their
// manager, so equal frames are pointer-identical.
type StackFrame struct {
	mgr    *StackFrameManager
	fn     *ast.FuncDecl
	parent *StackFrame
	call   CallSiteInfo
}

// Fn returns the function declaration owned by the frame.
func (f *StackFrame) Fn() *ast.FuncDecl { return f.fn }

// Parent returns the calling frame, or nil for a top frame.
func (f *StackFrame) Parent() *StackFrame { return f.parent }

// IsTopFrame reports whether the frame has no caller.
func (f *StackFrame) IsTopFrame() bool { return f.parent == nil }

// CallSite returns the call-site bookkeeping of a non-top frame.
func (f *StackFrame) CallSite() CallSiteInfo {
	if f.IsTopFrame() {
		panic("top frame has no call site info")
	}
	return f.call
}

// CFG returns the control-flow graph of the frame's function.
func (f *StackFrame) CFG() *proccfg.Graph { return f.mgr.CFG(f.fn) }

// IsAncestorOf reports whether f appears in other's parent chain.
func (f *StackFrame) IsAncestorOf(other *StackFrame) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == f {
			return true
		}
	}
	return false
}

func (f *StackFrame) Dump(w io.Writer) {
	if f.IsTopFrame() {
		fmt.Fprintf(w, "#%s", f.fn.Name.Name)
		return
	}
	f.parent.Dump(w)
	fmt.Fprintf(w, " > %s", f.fn.Name.Name)
}

type frameKey struct {
	fn      *ast.FuncDecl
	parent  *StackFrame
	call    proccfg.StmtRef
	stmtIdx int
}

type frameKeyHasher struct{}

func (frameKeyHasher) Hash(k frameKey) uint32 {
	hs := []uint32{utils.PointerHasher[*ast.FuncDecl]{}.Hash(k.fn), uint32(k.stmtIdx)}
	if k.parent != nil {
		hs = append(hs, utils.PointerHasher[*StackFrame]{}.Hash(k.parent))
	}
	if k.call != nil {
		hs = append(hs, utils.PointerHasher[proccfg.StmtRef]{}.Hash(k.call))
	}
	return utils.HashCombine(hs...)
}

func (frameKeyHasher) Equal(a, b frameKey) bool { return a == b }

// StackFrameManager interns stack frames and caches one CFG per function
// declaration.
type StackFrameManager struct {
	fset   *token.FileSet
	cfgs   map[*ast.FuncDecl]*proccfg.Graph
	frames *hmap.Map[frameKey, *StackFrame]
}

func NewStackFrameManager(fset *token.FileSet) *StackFrameManager {
	return &StackFrameManager{
		fset:   fset,
		cfgs:   make(map[*ast.FuncDecl]*proccfg.Graph),
		frames: hmap.NewMap[*StackFrame](frameKeyHasher{}),
	}
}

// CFG returns the cached graph for fn, building it on first use.
func (m *StackFrameManager) CFG(fn *ast.FuncDecl) *proccfg.Graph {
	if g, ok := m.cfgs[fn]; ok {
		return g
	}
	g := proccfg.Build(m.fset, fn)
	m.cfgs[fn] = g
	return g
}

// CreateTopFrame returns the interned top frame for fn.
func (m *StackFrameManager) CreateTopFrame(fn *ast.FuncDecl) *StackFrame {
	return m.intern(frameKey{fn: fn, stmtIdx: -1})
}

// CreateFromNode returns the interned frame for fn called from the given
// call site in the parent frame.
func (m *StackFrameManager) CreateFromNode(parent *StackFrame, fn *ast.FuncDecl,
	node proccfg.NodeRef, callExpr proccfg.StmtRef, stmtIdx int) *StackFrame {

	f := m.intern(frameKey{fn: fn, parent: parent, call: callExpr, stmtIdx: stmtIdx})
	f.call = CallSiteInfo{CallExpr: callExpr, Node: node, StmtIdx: stmtIdx}
	return f
}

func (m *StackFrameManager) intern(k frameKey) *StackFrame {
	if f, ok := m.frames.GetOk(k); ok {
		return f
	}
	f := &StackFrame{mgr: m, fn: k.fn, parent: k.parent}
	m.frames.Set(k, f)
	m.CFG(k.fn)
	return f
}

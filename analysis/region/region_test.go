package region

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"testing"
)

func testVarObj(pkg *types.Package, name string) *types.Var {
	return types.NewVar(token.NoPos, pkg, name, types.Typ[types.Int])
}

func TestRegionInterning(t *testing.T) {
	pkg := types.NewPackage("p", "p")
	rm := NewManager()

	x := testVarObj(pkg, "x")
	y := testVarObj(pkg, "y")

	r1, ok := rm.GetRegion(x, nil)
	if !ok {
		t.Fatal("no region for variable x")
	}
	r2, ok := rm.GetRegion(x, nil)
	if !ok || r1 != r2 {
		t.Error("repeated lookups of the same variable yield distinct regions")
	}

	r3, _ := rm.GetRegion(y, nil)
	if r1 == r3 {
		t.Error("distinct variables share one region")
	}
}

func TestRegionPerFrame(t *testing.T) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "input.go", `package p
func f() {}
func g() {}
`, 0)
	if err != nil {
		t.Fatal(err)
	}
	var fns []*ast.FuncDecl
	for _, d := range file.Decls {
		fns = append(fns, d.(*ast.FuncDecl))
	}

	fm := NewStackFrameManager(fset)
	f1 := fm.CreateTopFrame(fns[0])
	f2 := fm.CreateTopFrame(fns[1])
	if f1 == f2 {
		t.Fatal("distinct functions share a top frame")
	}
	if fm.CreateTopFrame(fns[0]) != f1 {
		t.Error("top frames are not interned")
	}
	if !f1.IsTopFrame() {
		t.Error("top frame does not report as top")
	}

	pkg := types.NewPackage("p", "p")
	x := testVarObj(pkg, "x")
	rm := NewManager()

	r1, _ := rm.GetRegion(x, f1)
	r2, _ := rm.GetRegion(x, f2)
	if r1 == r2 {
		t.Error("one variable in two frames shares a region")
	}
}

func TestUnmodeledDeclKinds(t *testing.T) {
	pkg := types.NewPackage("p", "p")
	rm := NewManager()

	fn := types.NewFunc(token.NoPos, pkg, "f", types.NewSignatureType(nil, nil, nil, nil, nil, false))
	if _, ok := rm.GetRegion(fn, nil); ok {
		t.Error("function object is unexpectedly modeled")
	}

	tn := types.NewTypeName(token.NoPos, pkg, "T", types.Typ[types.Int])
	if _, ok := rm.GetRegion(tn, nil); ok {
		t.Error("type name is unexpectedly modeled")
	}
}

func TestAliasClasses(t *testing.T) {
	pkg := types.NewPackage("p", "p")
	rm := NewManager()

	x, _ := rm.GetRegion(testVarObj(pkg, "x"), nil)
	y, _ := rm.GetRegion(testVarObj(pkg, "y"), nil)
	z, _ := rm.GetRegion(testVarObj(pkg, "z"), nil)

	if rm.SameClass(x, y) {
		t.Error("fresh regions alias")
	}

	rm.Unify(x, y)
	if !rm.SameClass(x, y) {
		t.Error("unified regions do not alias")
	}
	if rm.SameClass(x, z) {
		t.Error("unrelated region joined the alias class")
	}

	rm.Unify(y, z)
	if !rm.SameClass(x, z) {
		t.Error("alias classes are not transitive")
	}

	rep := rm.Representative(x)
	if rep != rm.Representative(y) || rep != rm.Representative(z) {
		t.Error("alias class has no canonical representative")
	}
}

func TestStackFrameChain(t *testing.T) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "input.go", `package p
func caller() { callee() }
func callee() {}
`, 0)
	if err != nil {
		t.Fatal(err)
	}
	var fns []*ast.FuncDecl
	for _, d := range file.Decls {
		fns = append(fns, d.(*ast.FuncDecl))
	}

	fm := NewStackFrameManager(fset)
	top := fm.CreateTopFrame(fns[0])
	child := fm.CreateFromNode(top, fns[1], nil, nil, 0)

	if child.IsTopFrame() {
		t.Error("child frame reports as top")
	}
	if child.Parent() != top {
		t.Error("child frame lost its parent")
	}
	if !top.IsAncestorOf(child) {
		t.Error("top frame is not an ancestor of its child")
	}
	if child.IsAncestorOf(top) {
		t.Error("ancestry is not antisymmetric")
	}
	if child.CFG() == nil || child.CFG() != fm.CFG(fns[1]) {
		t.Error("frame CFG is not the cached graph of its function")
	}
}

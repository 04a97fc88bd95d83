package proccfg

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

func buildGraph(t *testing.T, src string, name string) *Graph {
	t.Helper()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "input.go", src, 0)
	if err != nil {
		t.Fatalf("parsing test source: %v", err)
	}
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == name {
			return Build(fset, fn)
		}
	}
	t.Fatalf("function %s not found", name)
	return nil
}

const branchSrc = `package p

func f(x int) int {
	y := 0
	if x > 0 {
		y = 1
	} else {
		y = 2
	}
	return y
}
`

const loopSrc = `package p

func g() int {
	x := 0
	for i := 0; i < 10; i++ {
		x = x + 1
	}
	return x
}
`

func TestBuildBranch(t *testing.T) {
	g := buildGraph(t, branchSrc, "f")

	if g.Entry() == nil || g.Exit() == nil {
		t.Fatal("graph lacks entry or exit")
	}
	if !g.Exit().IsExit() {
		t.Error("exit node does not report as exit")
	}
	if len(g.Exit().Succs()) != 0 {
		t.Error("exit node has successors")
	}
	if len(g.Exit().Preds()) == 0 {
		t.Error("exit node is unreachable")
	}
	if len(g.Entry().Preds()) != 0 {
		t.Error("entry node has predecessors")
	}

	// The entry branches to the two arms.
	if len(g.Entry().Succs()) != 2 {
		t.Errorf("entry has %d successors, expected 2", len(g.Entry().Succs()))
	}

	if heads := g.LoopHeads(); len(heads) != 0 {
		t.Errorf("branch-only function has %d loop heads", len(heads))
	}
}

func TestReversePostOrder(t *testing.T) {
	g := buildGraph(t, branchSrc, "f")

	rpo := g.ReversePostOrder()
	if len(rpo) == 0 || rpo[0] != g.Entry() {
		t.Fatal("reverse post-order does not start at the entry")
	}

	pos := make(map[NodeRef]int)
	for i, n := range rpo {
		pos[n] = i
	}
	if pos[g.Exit()] != len(rpo)-1 {
		t.Error("exit is not last in reverse post-order")
	}

	// Every edge that is not a back edge goes forward in the order.
	heads := g.LoopHeads()
	for _, n := range rpo {
		for _, s := range n.Succs() {
			if !heads[s] && pos[s] <= pos[n] {
				t.Errorf("edge %s -> %s goes backwards without a loop head", n, s)
			}
		}
	}
}

func TestLoopHeads(t *testing.T) {
	g := buildGraph(t, loopSrc, "g")

	heads := g.LoopHeads()
	if len(heads) != 1 {
		t.Fatalf("found %d loop heads, expected 1", len(heads))
	}
	for head := range heads {
		if len(head.Preds()) < 2 {
			t.Error("loop head is missing the back edge predecessor")
		}
	}
}

func TestDot(t *testing.T) {
	g := buildGraph(t, loopSrc, "g")

	dot := string(g.Dot())
	if !strings.HasPrefix(dot, "digraph \"g\"") {
		t.Errorf("dot output does not start with the digraph header: %.40s", dot)
	}
	if !strings.Contains(dot, "->") {
		t.Error("dot output has no edges")
	}
	if !strings.Contains(dot, "exit") {
		t.Error("dot output does not label the exit node")
	}
}

func TestBodylessFunction(t *testing.T) {
	src := `package p

func external() int
`
	g := buildGraph(t, src, "external")
	if len(g.Entry().Succs()) != 1 || g.Entry().Succs()[0] != g.Exit() {
		t.Error("bodyless function is not a straight edge from entry to exit")
	}
	if len(g.Entry().Elems()) != 0 {
		t.Error("bodyless function has statements")
	}
}

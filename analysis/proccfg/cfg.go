// Package proccfg exposes the control-flow graph of a single procedure.
//
// The graph wraps golang.org/x/tools/go/cfg and augments it with predecessor
// edges, a synthetic exit node, traversal orders and loop-head detection.
// Consumers treat statement, declaration and node references as opaque,
// identity-comparable handles.
package proccfg

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/cfg"
)

type (
	// StmtRef is an opaque reference to an AST node scheduled in the graph.
	StmtRef = ast.Node
	// DeclRef is an opaque reference to a declared object.
	DeclRef = types.Object
	// NodeRef is an opaque reference to a node of the graph.
	NodeRef = *Node
)

// Node is a basic block of the procedural CFG.
type Node struct {
	graph *Graph
	block *cfg.Block
	succs []*Node
	preds []*Node
	index int
}

// Graph is the control-flow graph of a single function declaration.
type Graph struct {
	fn    *ast.FuncDecl
	fset  *token.FileSet
	nodes []*Node
	entry *Node
	exit  *Node
}

// Build constructs the graph for the given function declaration.
// Functions without a body (external declarations) yield a graph with
// only the synthetic entry and exit nodes.
func Build(fset *token.FileSet, fn *ast.FuncDecl) *Graph {
	g := &Graph{fn: fn, fset: fset}

	if fn.Body == nil {
		g.entry = g.newNode(nil)
		g.exit = g.newNode(nil)
		g.entry.succs = []*Node{g.exit}
		g.exit.preds = []*Node{g.entry}
		return g
	}

	raw := cfg.New(fn.Body, func(*ast.CallExpr) bool { return true })

	byBlock := make(map[*cfg.Block]*Node, len(raw.Blocks))
	for _, b := range raw.Blocks {
		if !b.Live {
			continue
		}
		byBlock[b] = g.newNode(b)
	}

	// The synthetic exit node collects every block that leaves the function.
	g.exit = g.newNode(nil)

	for b, n := range byBlock {
		if len(b.Succs) == 0 {
			n.succs = append(n.succs, g.exit)
			g.exit.preds = append(g.exit.preds, n)
			continue
		}
		for _, s := range b.Succs {
			if sn, ok := byBlock[s]; ok {
				n.succs = append(n.succs, sn)
				sn.preds = append(sn.preds, n)
			}
		}
	}

	g.entry = byBlock[raw.Blocks[0]]
	return g
}

func (g *Graph) newNode(b *cfg.Block) *Node {
	n := &Node{graph: g, block: b, index: len(g.nodes)}
	g.nodes = append(g.nodes, n)
	return n
}

// Fn returns the function declaration the graph was built from.
func (g *Graph) Fn() *ast.FuncDecl { return g.fn }

// FileSet returns the file set positions in the graph refer to.
func (g *Graph) FileSet() *token.FileSet { return g.fset }

// Name returns the name of the underlying function.
func (g *Graph) Name() string { return g.fn.Name.Name }

// Entry returns the entry node of the graph.
func (g *Graph) Entry() NodeRef { return g.entry }

// Exit returns the synthetic exit node of the graph.
func (g *Graph) Exit() NodeRef { return g.exit }

// Nodes returns all nodes of the graph in creation order.
func (g *Graph) Nodes() []NodeRef { return g.nodes }

// Succs returns the successor nodes.
func (n *Node) Succs() []NodeRef { return n.succs }

// Preds returns the predecessor nodes.
func (n *Node) Preds() []NodeRef { return n.preds }

// Index returns the position of the node in its graph.
func (n *Node) Index() int { return n.index }

// IsExit reports whether the node is the synthetic exit node.
func (n *Node) IsExit() bool { return n == n.graph.exit }

// Elems returns the AST nodes scheduled in the block, in execution order.
// The synthetic exit node has none.
func (n *Node) Elems() []StmtRef {
	if n.block == nil {
		return nil
	}
	return n.block.Nodes
}

func (n *Node) String() string {
	if n.block == nil {
		if n.IsExit() {
			return fmt.Sprintf("n%d:exit", n.index)
		}
		return fmt.Sprintf("n%d", n.index)
	}
	return fmt.Sprintf("n%d:%s", n.index, n.block)
}

// ReversePostOrder returns the nodes in reverse post-order from the entry.
// Unreachable nodes are excluded.
func (g *Graph) ReversePostOrder() []NodeRef {
	seen := make([]bool, len(g.nodes))
	var post []*Node

	var visit func(n *Node)
	visit = func(n *Node) {
		seen[n.index] = true
		for _, s := range n.succs {
			if !seen[s.index] {
				visit(s)
			}
		}
		post = append(post, n)
	}
	visit(g.entry)

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// LoopHeads returns the set of nodes that are targets of a back edge.
func (g *Graph) LoopHeads() map[NodeRef]bool {
	heads := make(map[NodeRef]bool)
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(g.nodes))

	var visit func(n *Node)
	visit = func(n *Node) {
		color[n.index] = grey
		for _, s := range n.succs {
			switch color[s.index] {
			case white:
				visit(s)
			case grey:
				heads[s] = true
			}
		}
		color[n.index] = black
	}
	visit(g.entry)
	return heads
}

// Dot renders the graph in graphviz dot syntax.
func (g *Graph) Dot() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", g.Name())
	fmt.Fprintf(&buf, "  node [shape=box fontname=%q];\n", "Courier")
	for _, n := range g.nodes {
		label := n.dotLabel()
		fmt.Fprintf(&buf, "  n%d [label=%q];\n", n.index, label)
		for _, s := range n.succs {
			fmt.Fprintf(&buf, "  n%d -> n%d;\n", n.index, s.index)
		}
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

func (n *Node) dotLabel() string {
	if n.block == nil {
		if n.IsExit() {
			return "exit"
		}
		return "empty"
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n", n.block)
	for _, e := range n.block.Nodes {
		fmt.Fprintf(&buf, "%s\n", nodeText(n.graph.fset, e))
	}
	return buf.String()
}

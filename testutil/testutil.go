// Package testutil loads small Go sources into the front-end artifacts
// the analysis framework consumes.
package testutil

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/MagicMotion/knight/tooling"
)

// LoadSource parses and type-checks a single-file program and returns
// the tooling context plus the function declarations by name.
func LoadSource(t *testing.T, src string) (*tooling.Context, map[string]*ast.FuncDecl) {
	t.Helper()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "input.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parsing test source: %v", err)
	}

	info := &types.Info{
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
		Types: make(map[ast.Expr]types.TypeAndValue),
	}
	conf := types.Config{
		Importer: importer.Default(),
		Error:    func(error) {},
	}
	// Partial type information is fine for analysis inputs.
	_, _ = conf.Check("input", fset, []*ast.File{file}, info)

	provider := tooling.NewDefaultOptionsProvider()
	ctx := tooling.NewContext(provider, fset)
	ctx.SetCurrentFile("input.go")
	ctx.SetTypeInfo(info)

	funcs := make(map[string]*ast.FuncDecl)
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			funcs[fn.Name.Name] = fn
		}
	}
	return ctx, funcs
}

// Package tooling carries the per-run surroundings of an analysis: the
// configured options, the front-end artifacts of the file under analysis
// and the diagnostic engine.
package tooling

import (
	"go/token"
	"go/types"
)

// Context is the per-translation-unit environment shared by managers,
// analyses and checkers.
type Context struct {
	provider OptionsProvider
	fset     *token.FileSet
	info     *types.Info

	currentFile     string
	currentBuildDir string

	diags *DiagnosticEngine
}

func NewContext(provider OptionsProvider, fset *token.FileSet) *Context {
	opts := provider.OptionsFor("")
	return &Context{
		provider: provider,
		fset:     fset,
		diags:    NewDiagnosticEngine(fset, opts.UseColor),
	}
}

// Options returns the options that apply to the current file.
func (c *Context) Options() Options {
	return c.provider.OptionsFor(c.currentFile)
}

// FileSet returns the token file set of the front end.
func (c *Context) FileSet() *token.FileSet { return c.fset }

// TypeInfo returns the type information of the current file, if the
// front end produced any.
func (c *Context) TypeInfo() *types.Info { return c.info }

func (c *Context) SetTypeInfo(info *types.Info) { c.info = info }

// CurrentFile returns the file currently under analysis.
func (c *Context) CurrentFile() string { return c.currentFile }

func (c *Context) SetCurrentFile(file string) { c.currentFile = file }

// CurrentBuildDir returns the working directory of the front end.
func (c *Context) CurrentBuildDir() string { return c.currentBuildDir }

func (c *Context) SetCurrentBuildDir(dir string) { c.currentBuildDir = dir }

// Diagnostics returns the diagnostic engine of the run.
func (c *Context) Diagnostics() *DiagnosticEngine { return c.diags }

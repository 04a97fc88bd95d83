package tooling

import (
	"fmt"
	"go/token"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// DiagLevel grades the severity of a diagnostic.
type DiagLevel int

const (
	Note DiagLevel = iota
	Warning
	Error
)

func (l DiagLevel) String() string {
	switch l {
	case Note:
		return "note"
	case Warning:
		return "warning"
	default:
		return "error"
	}
}

// Diagnostic is a single reported finding.
type Diagnostic struct {
	Pos     token.Pos
	Level   DiagLevel
	Checker string
	Message string
}

// DiagnosticEngine collects and renders diagnostics.
type DiagnosticEngine struct {
	fset     *token.FileSet
	useColor bool
	w        io.Writer
	diags    []Diagnostic
}

func NewDiagnosticEngine(fset *token.FileSet, useColor bool) *DiagnosticEngine {
	return &DiagnosticEngine{fset: fset, useColor: useColor, w: os.Stdout}
}

// SetWriter redirects rendered diagnostics, mainly for tests.
func (e *DiagnosticEngine) SetWriter(w io.Writer) { e.w = w }

func (e *DiagnosticEngine) canColorize(col func(...interface{}) string) func(...interface{}) string {
	if !e.useColor {
		return func(is ...interface{}) string {
			return fmt.Sprintf(strings.Repeat("%s", len(is)), is...)
		}
	}
	return col
}

// Diagnose records and renders a diagnostic.
func (e *DiagnosticEngine) Diagnose(d Diagnostic) {
	e.diags = append(e.diags, d)

	pos := "<unknown>"
	if e.fset != nil && d.Pos.IsValid() {
		pos = e.fset.Position(d.Pos).String()
	}

	level := d.Level.String()
	switch d.Level {
	case Warning:
		level = e.canColorize(color.New(color.FgHiYellow).SprintFunc())(level)
	case Error:
		level = e.canColorize(color.New(color.FgHiRed).SprintFunc())(level)
	default:
		level = e.canColorize(color.New(color.FgHiBlue).SprintFunc())(level)
	}

	checker := e.canColorize(color.New(color.FgMagenta).SprintFunc())(d.Checker)
	fmt.Fprintf(e.w, "%s: %s: %s [%s]\n", pos, level, d.Message, checker)
}

// Diagnostics returns every diagnostic recorded so far.
func (e *DiagnosticEngine) Diagnostics() []Diagnostic { return e.diags }

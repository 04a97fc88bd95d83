package dfa

import (
	"fmt"
	"go/token"
	"io"
	"testing"

	"github.com/MagicMotion/knight/analysis/region"
	"github.com/MagicMotion/knight/tooling"
	"github.com/MagicMotion/knight/utils"
)

// testVal is a member of the diamond lattice ⊥ < {a, b} < ⊤ used
// throughout the tests.
type testElem uint8

const (
	tBot testElem = iota
	tA
	tB
	tTop
)

type testVal struct {
	kind DomainKind
	v    testElem
}

func (e *testVal) conv(other AbsVal) *testVal {
	o, ok := other.(*testVal)
	if !ok || o.kind != e.kind {
		panic("incompatible test domains")
	}
	return o
}

func (e *testVal) Kind() DomainKind { return e.kind }

func (e *testVal) Clone() AbsVal {
	c := *e
	return &c
}

func (e *testVal) CloneShared() AbsVal { return e.Clone() }

func (e *testVal) JoinWith(other AbsVal) {
	o := e.conv(other)
	switch {
	case e.v == o.v || o.v == tBot:
	case e.v == tBot:
		e.v = o.v
	default:
		e.v = tTop
	}
}

func (e *testVal) JoinWithAtLoopHead(other AbsVal) { e.JoinWith(other) }

func (e *testVal) JoinConsecutiveIterWith(other AbsVal) { e.JoinWith(other) }

func (e *testVal) WidenWith(other AbsVal) { e.JoinWith(other) }

func (e *testVal) MeetWith(other AbsVal) {
	o := e.conv(other)
	switch {
	case e.v == o.v || o.v == tTop:
	case e.v == tTop:
		e.v = o.v
	default:
		e.v = tBot
	}
}

func (e *testVal) NarrowWith(other AbsVal) { e.MeetWith(other) }

func (e *testVal) Leq(other AbsVal) bool {
	o := e.conv(other)
	return e.v == tBot || o.v == tTop || e.v == o.v
}

func (e *testVal) Equals(other AbsVal) bool { return e.v == e.conv(other).v }

func (e *testVal) IsBottom() bool { return e.v == tBot }

func (e *testVal) IsTop() bool { return e.v == tTop }

func (e *testVal) SetToBottom() { e.v = tBot }

func (e *testVal) SetToTop() { e.v = tTop }

func (e *testVal) Normalize() {}

func (e *testVal) Hash() uint32 { return utils.HashCombine(uint32(e.kind), uint32(e.v)) }

func (e *testVal) String() string {
	switch e.v {
	case tBot:
		return "bottom"
	case tA:
		return "a"
	case tB:
		return "b"
	default:
		return "top"
	}
}

func (e *testVal) Dump(w io.Writer) { fmt.Fprint(w, e.String()) }

// testAnalysis is an inert analysis owning test domains.
type testAnalysis struct {
	kind AnalysisKind
}

func (a *testAnalysis) Kind() AnalysisKind { return a.kind }

// testSetup wires one analysis A owning one diamond domain D, with ⊥ as
// both default and bottom value.
type testSetup struct {
	kinds *KindRegistry
	am    *AnalysisManager
	rm    *region.Manager
	sm    *ProgramStateManager

	aKind AnalysisKind
	dKind DomainKind
	domID DomID
}

func newTestContext() *tooling.Context {
	return tooling.NewContext(tooling.NewDefaultOptionsProvider(), token.NewFileSet())
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()

	kinds := NewKindRegistry()
	am := NewAnalysisManager(newTestContext(), kinds)

	aKind := kinds.RegisterAnalysisKind("A", "test analysis")
	dKind := kinds.RegisterDomainKind("D", "test domain")

	am.RegisterAnalysis(&testAnalysis{kind: aKind})
	am.AddDomainDependency(aKind, dKind,
		func() AbsVal { return &testVal{kind: dKind, v: tBot} },
		func() AbsVal { return &testVal{kind: dKind, v: tBot} })
	am.AddRequiredAnalysis(kinds.AnalysisID(aKind))
	am.ComputeAllRequiredAnalysesByDependencies()
	if err := am.ComputeFullOrderAnalysesAfterRegistry(); err != nil {
		t.Fatal(err)
	}

	rm := region.NewManager()
	return &testSetup{
		kinds: kinds,
		am:    am,
		rm:    rm,
		sm:    NewProgramStateManager(am, rm),
		aKind: aKind,
		dKind: dKind,
		domID: kinds.DomainID(dKind),
	}
}

func (s *testSetup) val(v testElem) *testVal {
	return &testVal{kind: s.dKind, v: v}
}

package dfa

import (
	"bytes"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/MagicMotion/knight/analysis/sexpr"

	"github.com/sebdah/goldie/v2"
)

// TestDefaultStateIsBottom covers registration of a single analysis with
// a single domain whose default value is ⊥.
func TestDefaultStateIsBottom(t *testing.T) {
	s := newTestSetup(t)

	if got := s.kinds.AnalysisID(s.aKind); got != 1 {
		t.Errorf("analysis ID = %d, expected 1", got)
	}
	if got := s.kinds.DomainID(s.dKind); got != 1 {
		t.Errorf("domain ID = %d, expected 1", got)
	}

	def := s.sm.GetDefaultState()
	if !def.IsBottom() {
		t.Error("expected the default state to be bottom")
	}

	var buf bytes.Buffer
	def.Dump(&buf)
	if !strings.Contains(buf.String(), "[D]: bottom") {
		t.Errorf("dump %q does not mention the bottom domain", buf.String())
	}
}

func TestStateDumpGolden(t *testing.T) {
	s := newTestSetup(t)
	st := s.sm.GetDefaultState().Set(s.domID, s.val(tA))

	var buf bytes.Buffer
	st.Dump(&buf)
	goldie.New(t).Assert(t, "state_dump", buf.Bytes())
}

// TestInterning covers hash-consing: setting an equal value yields the
// same pool slot.
func TestInterning(t *testing.T) {
	s := newTestSetup(t)

	s1 := s.sm.GetDefaultState()
	v := s1.Get(s.domID)
	s2 := s1.Set(s.domID, v.Clone())
	if s1 != s2 {
		t.Error("expected an equal state to intern to the same slot")
	}

	s3 := s1.Set(s.domID, s.val(tA))
	if s1 == s3 {
		t.Error("expected a distinct state for a distinct value")
	}
	if s3.Equals(s1) {
		t.Error("distinct interned states must not compare equal")
	}

	s4 := s3.Set(s.domID, s.val(tA))
	if s3 != s4 {
		t.Error("expected the same slot when re-setting an equal value")
	}
}

func TestMutatorPurity(t *testing.T) {
	s := newTestSetup(t)

	s1 := s.sm.GetDefaultState().Set(s.domID, s.val(tA))
	s2 := s1.Set(s.domID, s.val(tB))

	if v, _ := s1.GetVal(s.domID); !v.Equals(s.val(tA)) {
		t.Errorf("receiver changed by Set: now holds %v", v)
	}
	if v, _ := s2.GetVal(s.domID); !v.Equals(s.val(tB)) {
		t.Errorf("returned state does not hold the new value: %v", v)
	}

	s3 := s1.Remove(s.domID)
	if !s1.Exists(s.domID) {
		t.Error("receiver changed by Remove")
	}
	if s3.Exists(s.domID) {
		t.Error("Remove did not erase the domain in the result")
	}
}

// TestLatticePointwise covers the diamond: join of a and b is ⊤, meet
// is ⊥, and join dominates both operands.
func TestLatticePointwise(t *testing.T) {
	s := newTestSetup(t)

	base := s.sm.GetDefaultState()
	sa := base.Set(s.domID, s.val(tA))
	sb := base.Set(s.domID, s.val(tB))

	join := sa.Join(sb)
	if v, _ := join.GetVal(s.domID); !v.IsTop() {
		t.Errorf("a ⊔ b = %v, expected ⊤", v)
	}

	meet := sa.Meet(sb)
	if v, _ := meet.GetVal(s.domID); !v.IsBottom() {
		t.Errorf("a ⊓ b = %v, expected ⊥", v)
	}

	widen := sa.Widen(sb)

	for _, test := range []struct {
		name     string
		holds    bool
	}{
		{"a ⊑ a", sa.Leq(sa)},
		{"a ⊑ a⊔b", sa.Leq(join)},
		{"b ⊑ a⊔b", sb.Leq(join)},
		{"a⊓b ⊑ a", meet.Leq(sa)},
		{"a⊓b ⊑ b", meet.Leq(sb)},
		{"a ⊑ a∇b", sa.Leq(widen)},
		{"b ⊑ a∇b", sb.Leq(widen)},
	} {
		if !test.holds {
			t.Errorf("%s does not hold", test.name)
		}
	}

	if got := sa.JoinAtLoopHead(sb); got != join {
		t.Errorf("loop-head join = %v, expected the plain join for this domain", got)
	}
	if got := sa.JoinConsecutiveIter(sb); got != join {
		t.Errorf("consecutive-iteration join = %v, expected the plain join for this domain", got)
	}

	if !sa.Join(sa).Equals(sa) {
		t.Error("a ⊔ a ≠ a")
	}
	if !sa.Meet(sa).Equals(sa) {
		t.Error("a ⊓ a ≠ a")
	}
	if sa.Join(sa) != sa {
		t.Error("a ⊔ a interned to a different slot than a")
	}
}

func TestBottomTopAbsorbers(t *testing.T) {
	s := newTestSetup(t)

	base := s.sm.GetDefaultState()
	bottom := base.Set(s.domID, s.val(tBot))
	top := base.Set(s.domID, s.val(tTop))
	sa := base.Set(s.domID, s.val(tA))

	if !bottom.IsBottom() {
		t.Error("bottom state is not bottom")
	}
	if !top.IsTop() {
		t.Error("top state is not top")
	}
	if got := bottom.Join(sa); got != sa {
		t.Errorf("⊥ ⊔ a = %v, expected a", got)
	}
	if got := top.Meet(sa); got != sa {
		t.Errorf("⊤ ⊓ a = %v, expected a", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	s := newTestSetup(t)

	sa := s.sm.GetDefaultState().Set(s.domID, s.val(tA))
	n1 := sa.Normalize()
	n2 := n1.Normalize()
	if n1 != n2 {
		t.Error("normalize is not idempotent on interned states")
	}
}

// TestLeqAsymmetricKeys covers states with disjoint key sets: a key
// missing on one side stands for ⊥, and a surplus key on the other side
// must hold ⊤.
func TestLeqAsymmetricKeys(t *testing.T) {
	kinds := NewKindRegistry()
	am := NewAnalysisManager(newTestContext(), kinds)

	aKind := kinds.RegisterAnalysisKind("A", "test analysis")
	d1Kind := kinds.RegisterDomainKind("D1", "first domain")
	d2Kind := kinds.RegisterDomainKind("D2", "second domain")

	am.RegisterAnalysis(&testAnalysis{kind: aKind})
	for _, dk := range []DomainKind{d1Kind, d2Kind} {
		dk := dk
		am.AddDomainDependency(aKind, dk,
			func() AbsVal { return &testVal{kind: dk, v: tBot} },
			func() AbsVal { return &testVal{kind: dk, v: tBot} })
	}
	am.AddRequiredAnalysis(kinds.AnalysisID(aKind))
	am.ComputeAllRequiredAnalysesByDependencies()
	if err := am.ComputeFullOrderAnalysesAfterRegistry(); err != nil {
		t.Fatal(err)
	}

	sm := NewProgramStateManager(am, nil)
	d1 := kinds.DomainID(d1Kind)
	d2 := kinds.DomainID(d2Kind)

	empty := sm.GetDefaultState().Remove(d1).Remove(d2)

	tests := []struct {
		name     string
		x, y     ProgramStateRef
		expected bool
	}{
		{"{D1:a} ⊑ {D2:c}, a≠⊥", empty.Set(d1, &testVal{d1Kind, tA}), empty.Set(d2, &testVal{d2Kind, tA}), false},
		{"{D1:⊥} ⊑ {D2:⊤}", empty.Set(d1, &testVal{d1Kind, tBot}), empty.Set(d2, &testVal{d2Kind, tTop}), true},
		{"{D1:⊥} ⊑ {D2:c}, c≠⊤", empty.Set(d1, &testVal{d1Kind, tBot}), empty.Set(d2, &testVal{d2Kind, tA}), false},
		{"{D2:⊤} ⊑ {D1:⊥} symmetric", empty.Set(d2, &testVal{d2Kind, tTop}), empty.Set(d1, &testVal{d1Kind, tBot}), false},
		{"{} ⊑ {D2:⊤}", empty, empty.Set(d2, &testVal{d2Kind, tTop}), true},
		{"{} ⊑ {D2:c}, c≠⊤", empty, empty.Set(d2, &testVal{d2Kind, tA}), false},
	}

	for _, test := range tests {
		if got := test.x.Leq(test.y); got != test.expected {
			t.Errorf("%s: Leq = %v, expected %v", test.name, got, test.expected)
		}
	}
}

func TestLeqTransitive(t *testing.T) {
	s := newTestSetup(t)

	base := s.sm.GetDefaultState()
	bot := base.Set(s.domID, s.val(tBot))
	mid := base.Set(s.domID, s.val(tA))
	top := base.Set(s.domID, s.val(tTop))

	if !bot.Leq(mid) || !mid.Leq(top) || !bot.Leq(top) {
		t.Error("⊥ ⊑ a ⊑ ⊤ chain violated")
	}
	if top.Leq(mid) || mid.Leq(bot) {
		t.Error("order is not antisymmetric on the chain")
	}
}

func TestSExprMaps(t *testing.T) {
	s := newTestSetup(t)

	pkg := types.NewPackage("p", "p")
	obj := types.NewVar(token.NoPos, pkg, "x", types.Typ[types.Int])
	r, ok := s.rm.GetRegion(obj, nil)
	if !ok {
		t.Fatal("variable object yielded no region")
	}

	st := s.sm.GetDefaultState()
	if _, ok := st.GetRegionSExpr(r); ok {
		t.Error("fresh state binds a region expression")
	}

	e := sexpr.NewManager().RegionExpr(r)
	st2 := st.SetRegionSExpr(r, e)
	if st == st2 {
		t.Error("binding a region expression interned to the same slot")
	}
	if got, ok := st2.GetRegionSExpr(r); !ok || got != e {
		t.Error("bound region expression not found by identity")
	}
	if _, ok := st.GetRegionSExpr(r); ok {
		t.Error("receiver changed by SetRegionSExpr")
	}

	if st3 := st2.SetRegionSExpr(r, e); st3 != st2 {
		t.Error("re-binding the same expression interned to a new slot")
	}
}

func TestUnmodeledDeclHasNoRegion(t *testing.T) {
	s := newTestSetup(t)

	pkg := types.NewPackage("p", "p")
	fn := types.NewFunc(token.NoPos, pkg, "f", types.NewSignatureType(nil, nil, nil, nil, nil, false))
	if _, ok := s.sm.GetDefaultState().GetRegion(fn, nil); ok {
		t.Error("function object unexpectedly modeled by the region manager")
	}
}

func TestStatePoolReuse(t *testing.T) {
	s := newTestSetup(t)

	base := s.sm.GetDefaultState()
	sa := base.Set(s.domID, s.val(tA))
	before := s.sm.PoolSize()

	s.sm.Retain(sa)
	s.sm.Release(sa)
	if got := s.sm.PoolSize(); got != before-1 {
		t.Errorf("pool size after release = %d, expected %d", got, before-1)
	}

	// The recycled slot serves the next interned state.
	sb := base.Set(s.domID, s.val(tB))
	if sb == nil {
		t.Fatal("interning after release failed")
	}
	if got := s.sm.PoolSize(); got != before {
		t.Errorf("pool size after re-intern = %d, expected %d", got, before)
	}
}

func TestReleaseWithoutRetainPanics(t *testing.T) {
	s := newTestSetup(t)
	st := s.sm.GetDefaultState()

	defer func() {
		if recover() == nil {
			t.Error("expected a panic when releasing an unreferenced state")
		}
	}()
	s.sm.Release(st)
}

func TestInternUnregisteredDomainPanics(t *testing.T) {
	s := newTestSetup(t)
	st := s.sm.GetDefaultState()

	defer func() {
		if recover() == nil {
			t.Error("expected a panic when setting an unregistered domain")
		}
	}()
	st.Set(DomID(42), s.val(tA))
}

package domains

import (
	"testing"

	"github.com/MagicMotion/knight/analysis/dfa"
)

const itvKind = dfa.DomainKind(1)

func itv(lb, ub int64) *Interval { return NewInterval(itvKind, lb, ub) }

func itvBot() *Interval { return IntervalBottom(itvKind)().(*Interval) }

func itvTop() *Interval { return IntervalDefault(itvKind)().(*Interval) }

func TestIntervalJoin(t *testing.T) {
	tests := []struct {
		a, b, expected *Interval
	}{
		{itvBot(), itvBot(), itvBot()},
		{itvBot(), itvTop(), itvTop()},
		{itvTop(), itvBot(), itvTop()},
		{itvTop(), itvTop(), itvTop()},
		{itvBot(), itv(0, 0), itv(0, 0)},
		{itv(0, 0), itvBot(), itv(0, 0)},
		{itv(0, 0), itv(1, 1), itv(0, 1)},
		{itv(1, 1), itv(0, 0), itv(0, 1)},
		{itv(1, 2), itv(3, 4), itv(1, 4)},
		{itv(-1, 0), itv(0, 1), itv(-1, 1)},
		{itv(0, 1024), itv(0, posInf), itv(0, posInf)},
		{itv(negInf, -1024), itv(1024, posInf), itvTop()},
	}

	for _, test := range tests {
		res := test.a.Clone()
		res.JoinWith(test.b)
		if !res.Equals(test.expected) {
			t.Errorf("%s ⊔ %s = %s, expected %s", test.a, test.b, res, test.expected)
		}
		if !test.a.Leq(res) || !test.b.Leq(res) {
			t.Errorf("%s ⊔ %s = %s is not an upper bound", test.a, test.b, res)
		}
	}
}

func TestIntervalMeet(t *testing.T) {
	tests := []struct {
		a, b, expected *Interval
	}{
		{itvTop(), itv(0, 10), itv(0, 10)},
		{itv(0, 10), itvTop(), itv(0, 10)},
		{itv(0, 10), itv(5, 20), itv(5, 10)},
		{itv(0, 10), itv(20, 30), itvBot()},
		{itvBot(), itv(0, 10), itvBot()},
		{itv(0, 10), itvBot(), itvBot()},
	}

	for _, test := range tests {
		res := test.a.Clone()
		res.MeetWith(test.b)
		if !res.Equals(test.expected) {
			t.Errorf("%s ⊓ %s = %s, expected %s", test.a, test.b, res, test.expected)
		}
		if !res.Leq(test.a) || !res.Leq(test.b) {
			t.Errorf("%s ⊓ %s = %s is not a lower bound", test.a, test.b, res)
		}
	}
}

func TestIntervalWiden(t *testing.T) {
	tests := []struct {
		a, b, expected *Interval
	}{
		{itv(0, 0), itv(0, 1), itv(0, posInf)},
		{itv(0, 1), itv(-1, 1), itv(negInf, 1)},
		{itv(0, 1), itv(0, 1), itv(0, 1)},
		{itvBot(), itv(0, 1), itv(0, 1)},
		{itv(0, 1), itvBot(), itv(0, 1)},
	}

	for _, test := range tests {
		res := test.a.Clone()
		res.WidenWith(test.b)
		if !res.Equals(test.expected) {
			t.Errorf("%s ∇ %s = %s, expected %s", test.a, test.b, res, test.expected)
		}

		join := test.a.Clone()
		join.JoinWith(test.b)
		if !join.Leq(res) {
			t.Errorf("%s ∇ %s = %s is below the join %s", test.a, test.b, res, join)
		}
	}
}

// TestIntervalWidenStabilizes covers the termination guarantee: widening
// along a strictly ascending chain reaches a fixpoint in finitely many
// steps.
func TestIntervalWidenStabilizes(t *testing.T) {
	acc := dfa.AbsVal(itv(0, 0))
	steps := 0
	for ub := int64(1); ; ub++ {
		next := acc.Clone()
		next.WidenWith(itv(0, ub))
		if next.Equals(acc) {
			break
		}
		acc = next
		if steps++; steps > 8 {
			t.Fatalf("widening did not stabilize, last value %s", acc)
		}
	}
}

func TestIntervalNarrow(t *testing.T) {
	widened := itv(0, posInf)
	res := widened.Clone()
	res.NarrowWith(itv(0, 10))
	if !res.Equals(itv(0, 10)) {
		t.Errorf("%s ∆ %s = %s, expected %s", widened, itv(0, 10), res, itv(0, 10))
	}

	meet := widened.Clone()
	meet.MeetWith(itv(0, 10))
	if !meet.Leq(res) {
		t.Errorf("narrowing %s went below the meet %s", res, meet)
	}

	exact := itv(3, 5)
	res = exact.Clone()
	res.NarrowWith(itv(0, 10))
	if !res.Equals(exact) {
		t.Errorf("narrowing refined finite bounds: %s", res)
	}
}

func TestIntervalLeq(t *testing.T) {
	tests := []struct {
		a, b     *Interval
		expected bool
	}{
		{itvBot(), itv(0, 0), true},
		{itv(0, 0), itvBot(), false},
		{itv(0, 0), itvTop(), true},
		{itv(1, 2), itv(0, 3), true},
		{itv(0, 3), itv(1, 2), false},
		{itv(1, 2), itv(1, 2), true},
	}

	for _, test := range tests {
		if got := test.a.Leq(test.b); got != test.expected {
			t.Errorf("%s ⊑ %s = %v, expected %v", test.a, test.b, got, test.expected)
		}
	}
}

func TestIntervalNormalize(t *testing.T) {
	e := itv(3, 1)
	e.Normalize()
	if !e.IsBottom() {
		t.Errorf("normalizing an inverted interval gave %s, expected ⊥", e)
	}

	e2 := itv(1, 3)
	e2.Normalize()
	e3 := e2.Clone()
	e3.Normalize()
	if !e2.Equals(e3) {
		t.Error("normalize is not idempotent")
	}
}

func TestIntervalArith(t *testing.T) {
	tests := []struct {
		got, expected *Interval
	}{
		{IntervalAdd(itv(1, 2), itv(3, 4)), itv(4, 6)},
		{IntervalSub(itv(1, 2), itv(3, 4)), itv(-3, -1)},
		{IntervalNeg(itv(1, 2)), itv(-2, -1)},
		{IntervalAdd(itv(0, posInf), itv(1, 1)), itv(1, posInf)},
		{IntervalAdd(itvBot(), itv(1, 1)), itvBot()},
	}

	for _, test := range tests {
		if !test.got.Equals(test.expected) {
			t.Errorf("got %s, expected %s", test.got, test.expected)
		}
	}
}

package domains

import (
	"testing"

	"github.com/MagicMotion/knight/analysis/dfa"
)

const cstKind = dfa.DomainKind(2)

func cst(v int64) *Constant { return NewConstant(cstKind, v) }

func cstBot() *Constant { return ConstantBottom(cstKind)().(*Constant) }

func cstTop() *Constant { return ConstantDefault(cstKind)().(*Constant) }

func TestConstantJoin(t *testing.T) {
	tests := []struct {
		a, b, expected *Constant
	}{
		{cstBot(), cstBot(), cstBot()},
		{cstBot(), cst(1), cst(1)},
		{cst(1), cstBot(), cst(1)},
		{cst(1), cst(1), cst(1)},
		{cst(1), cst(2), cstTop()},
		{cst(1), cstTop(), cstTop()},
		{cstTop(), cst(1), cstTop()},
	}

	for _, test := range tests {
		res := test.a.Clone()
		res.JoinWith(test.b)
		if !res.Equals(test.expected) {
			t.Errorf("%s ⊔ %s = %s, expected %s", test.a, test.b, res, test.expected)
		}
	}
}

func TestConstantMeet(t *testing.T) {
	tests := []struct {
		a, b, expected *Constant
	}{
		{cstTop(), cst(1), cst(1)},
		{cst(1), cstTop(), cst(1)},
		{cst(1), cst(1), cst(1)},
		{cst(1), cst(2), cstBot()},
		{cstBot(), cst(1), cstBot()},
	}

	for _, test := range tests {
		res := test.a.Clone()
		res.MeetWith(test.b)
		if !res.Equals(test.expected) {
			t.Errorf("%s ⊓ %s = %s, expected %s", test.a, test.b, res, test.expected)
		}
	}
}

func TestConstantLeq(t *testing.T) {
	tests := []struct {
		a, b     *Constant
		expected bool
	}{
		{cstBot(), cst(1), true},
		{cst(1), cstTop(), true},
		{cst(1), cst(1), true},
		{cst(1), cst(2), false},
		{cstTop(), cst(1), false},
		{cst(1), cstBot(), false},
	}

	for _, test := range tests {
		if got := test.a.Leq(test.b); got != test.expected {
			t.Errorf("%s ⊑ %s = %v, expected %v", test.a, test.b, got, test.expected)
		}
	}
}

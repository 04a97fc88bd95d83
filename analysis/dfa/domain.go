package dfa

import "io"

// AbsVal is the contract every abstract domain value fulfills so program
// states can compose values uniformly.
//
// Values follow a mutate-on-clone discipline: the state algebra clones a
// value before applying any *With operation, and a value that has been
// stored in an interned state is treated as immutable from then on.
//
// Implementations must keep the lattice laws:
//
//   - Leq is a partial order and Equals(a, b) ⇔ Leq(a, b) ∧ Leq(b, a)
//   - JoinWith computes the least upper bound, MeetWith the greatest
//     lower bound
//   - WidenWith over-approximates JoinWith and stabilizes every ascending
//     chain in finitely many steps
//   - NarrowWith under-approximates, bounded below by MeetWith
//   - Normalize is idempotent and meaning-preserving
//   - Hash is consistent with Equals
type AbsVal interface {
	// Kind returns the domain kind the value belongs to.
	Kind() DomainKind

	// Clone returns an independently mutable copy.
	Clone() AbsVal

	// CloneShared returns a copy that may be shared between states.
	// Domains backed by persistent structures may return the receiver.
	CloneShared() AbsVal

	// JoinWith joins the receiver with other, in place.
	JoinWith(other AbsVal)
	// JoinWithAtLoopHead joins at a loop head; most domains delegate
	// to JoinWith.
	JoinWithAtLoopHead(other AbsVal)
	// JoinConsecutiveIterWith joins the states of two consecutive loop
	// iterations; most domains delegate to JoinWith.
	JoinConsecutiveIterWith(other AbsVal)
	// WidenWith widens the receiver with other, in place.
	WidenWith(other AbsVal)
	// MeetWith meets the receiver with other, in place.
	MeetWith(other AbsVal)
	// NarrowWith narrows the receiver with other, in place.
	NarrowWith(other AbsVal)

	Leq(other AbsVal) bool
	Equals(other AbsVal) bool

	IsBottom() bool
	IsTop() bool
	SetToBottom()
	SetToTop()

	// Normalize canonicalizes the internal representation.
	Normalize()

	Hash() uint32
	Dump(w io.Writer)
}

// DefaultValFn produces the initial value of a domain: the identity for
// join, typically bottom or a well-defined starting point.
type DefaultValFn func() AbsVal

// BottomValFn produces the least element of a domain.
type BottomValFn func() AbsVal

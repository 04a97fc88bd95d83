package domains

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/MagicMotion/knight/analysis/dfa"
	"github.com/MagicMotion/knight/analysis/region"
	"github.com/MagicMotion/knight/utils"

	"github.com/benbjohnson/immutable"
)

type envRegionHasher struct{}

func (envRegionHasher) Hash(r *region.MemRegion) uint32   { return r.Hash() }
func (envRegionHasher) Equal(a, b *region.MemRegion) bool { return a == b }

// EnvMap is a non-relational environment domain: a map from memory
// regions to values of an underlying domain. A region without a binding
// is unconstrained, so bindings only ever encode knowledge; an
// environment holding a bottom value is unreachable as a whole.
//
// The table is persistent, so clones share structure and never mutate a
// published binding in place.
type EnvMap struct {
	kind  dfa.DomainKind
	table *immutable.Map[*region.MemRegion, dfa.AbsVal]
	bot   bool

	valDefault dfa.DefaultValFn
	valBottom  dfa.BottomValFn
}

func emptyEnvTable() *immutable.Map[*region.MemRegion, dfa.AbsVal] {
	return immutable.NewMap[*region.MemRegion, dfa.AbsVal](envRegionHasher{})
}

// NewEnvMap creates the unconstrained environment over the given value
// domain factories.
func NewEnvMap(kind dfa.DomainKind, valDefault dfa.DefaultValFn, valBottom dfa.BottomValFn) *EnvMap {
	return &EnvMap{
		kind:       kind,
		table:      emptyEnvTable(),
		valDefault: valDefault,
		valBottom:  valBottom,
	}
}

// EnvMapDefault returns the default-value factory of the domain: the
// empty, unconstrained environment.
func EnvMapDefault(kind dfa.DomainKind, valDefault dfa.DefaultValFn, valBottom dfa.BottomValFn) dfa.DefaultValFn {
	return func() dfa.AbsVal { return NewEnvMap(kind, valDefault, valBottom) }
}

// EnvMapBottom returns the bottom-value factory of the domain.
func EnvMapBottom(kind dfa.DomainKind, valDefault dfa.DefaultValFn, valBottom dfa.BottomValFn) dfa.BottomValFn {
	return func() dfa.AbsVal {
		e := NewEnvMap(kind, valDefault, valBottom)
		e.bot = true
		return e
	}
}

func (e *EnvMap) conv(other dfa.AbsVal) *EnvMap {
	o, ok := other.(*EnvMap)
	if !ok || o.kind != e.kind {
		panic("incompatible environment domains")
	}
	return o
}

// GetValue returns an owned copy of the binding of key, or the value
// domain's default when the key is unbound. On the unreachable
// environment the value domain's bottom is returned.
func (e *EnvMap) GetValue(key *region.MemRegion) dfa.AbsVal {
	if e.bot {
		return e.valBottom()
	}
	if v, ok := e.table.Get(key); ok {
		return v.Clone()
	}
	return e.valDefault()
}

// SetValue binds key to value. Binding a bottom value makes the whole
// environment unreachable; binding a top value forgets the key.
func (e *EnvMap) SetValue(key *region.MemRegion, value dfa.AbsVal) {
	switch {
	case e.bot:
	case value.IsBottom():
		e.SetToBottom()
	case value.IsTop():
		e.Forget(key)
	default:
		e.table = e.table.Set(key, value.CloneShared())
	}
}

// MeetValue refines the binding of key with value.
func (e *EnvMap) MeetValue(key *region.MemRegion, value dfa.AbsVal) {
	switch {
	case e.bot || value.IsTop():
	case value.IsBottom():
		e.SetToBottom()
	default:
		cur := e.GetValue(key)
		cur.MeetWith(value)
		if cur.IsBottom() {
			e.SetToBottom()
			return
		}
		e.table = e.table.Set(key, cur)
	}
}

// Forget drops the binding of key.
func (e *EnvMap) Forget(key *region.MemRegion) {
	if e.bot {
		return
	}
	e.table = e.table.Delete(key)
}

// ForEach calls do on every binding.
func (e *EnvMap) ForEach(do func(key *region.MemRegion, value dfa.AbsVal)) {
	for it := e.table.Iterator(); !it.Done(); {
		k, v, _ := it.Next()
		do(k, v)
	}
}

func (e *EnvMap) Kind() dfa.DomainKind { return e.kind }

func (e *EnvMap) Clone() dfa.AbsVal {
	c := *e
	return &c
}

func (e *EnvMap) CloneShared() dfa.AbsVal { return e.Clone() }

// pointwise combines overlapping bindings with op and keeps only keys
// bound on both sides; an unbound key is unconstrained, so any
// join-flavored combination with it yields no knowledge.
func (e *EnvMap) pointwise(o *EnvMap, op func(dst, src dfa.AbsVal)) {
	b := immutable.NewMapBuilder[*region.MemRegion, dfa.AbsVal](envRegionHasher{})
	for it := e.table.Iterator(); !it.Done(); {
		k, v, _ := it.Next()
		if vo, ok := o.table.Get(k); ok {
			c := v.Clone()
			op(c, vo)
			if !c.IsTop() {
				b.Set(k, c)
			}
		}
	}
	e.table = b.Map()
}

func (e *EnvMap) JoinWith(other dfa.AbsVal) {
	o := e.conv(other)
	if o.bot {
		return
	}
	if e.bot {
		e.bot = false
		e.table = o.table
		return
	}
	e.pointwise(o, func(dst, src dfa.AbsVal) { dst.JoinWith(src) })
}

func (e *EnvMap) JoinWithAtLoopHead(other dfa.AbsVal) {
	o := e.conv(other)
	if o.bot {
		return
	}
	if e.bot {
		e.bot = false
		e.table = o.table
		return
	}
	e.pointwise(o, func(dst, src dfa.AbsVal) { dst.JoinWithAtLoopHead(src) })
}

func (e *EnvMap) JoinConsecutiveIterWith(other dfa.AbsVal) {
	o := e.conv(other)
	if o.bot {
		return
	}
	if e.bot {
		e.bot = false
		e.table = o.table
		return
	}
	e.pointwise(o, func(dst, src dfa.AbsVal) { dst.JoinConsecutiveIterWith(src) })
}

func (e *EnvMap) WidenWith(other dfa.AbsVal) {
	o := e.conv(other)
	if o.bot {
		return
	}
	if e.bot {
		e.bot = false
		e.table = o.table
		return
	}
	e.pointwise(o, func(dst, src dfa.AbsVal) { dst.WidenWith(src) })
}

// meetwise combines bindings with op and keeps keys bound on either side.
func (e *EnvMap) meetwise(o *EnvMap, op func(dst, src dfa.AbsVal)) {
	table := e.table
	for it := o.table.Iterator(); !it.Done(); {
		k, vo, _ := it.Next()
		if v, ok := e.table.Get(k); ok {
			c := v.Clone()
			op(c, vo)
			if c.IsBottom() {
				e.SetToBottom()
				return
			}
			table = table.Set(k, c)
		} else {
			table = table.Set(k, vo.CloneShared())
		}
	}
	e.table = table
}

func (e *EnvMap) MeetWith(other dfa.AbsVal) {
	o := e.conv(other)
	if e.bot || o.bot {
		e.SetToBottom()
		return
	}
	e.meetwise(o, func(dst, src dfa.AbsVal) { dst.MeetWith(src) })
}

func (e *EnvMap) NarrowWith(other dfa.AbsVal) {
	o := e.conv(other)
	if e.bot || o.bot {
		e.SetToBottom()
		return
	}
	e.meetwise(o, func(dst, src dfa.AbsVal) { dst.NarrowWith(src) })
}

func (e *EnvMap) Leq(other dfa.AbsVal) bool {
	o := e.conv(other)
	if e.bot {
		return true
	}
	if o.bot {
		return false
	}
	for it := o.table.Iterator(); !it.Done(); {
		k, vo, _ := it.Next()
		v, ok := e.table.Get(k)
		if !ok {
			v = e.valDefault()
		}
		if !v.Leq(vo) {
			return false
		}
	}
	return true
}

func (e *EnvMap) Equals(other dfa.AbsVal) bool {
	o := e.conv(other)
	if e.bot || o.bot {
		return e.bot == o.bot
	}
	if e.table.Len() != o.table.Len() {
		return false
	}
	for it := e.table.Iterator(); !it.Done(); {
		k, v, _ := it.Next()
		vo, ok := o.table.Get(k)
		if !ok || !v.Equals(vo) {
			return false
		}
	}
	return true
}

func (e *EnvMap) IsBottom() bool { return e.bot }

func (e *EnvMap) IsTop() bool { return !e.bot && e.table.Len() == 0 }

func (e *EnvMap) SetToBottom() {
	e.bot = true
	e.table = emptyEnvTable()
}

func (e *EnvMap) SetToTop() {
	e.bot = false
	e.table = emptyEnvTable()
}

// Normalize normalizes every binding, collapsing to bottom when a
// binding turns out unreachable.
func (e *EnvMap) Normalize() {
	if e.bot {
		return
	}
	b := immutable.NewMapBuilder[*region.MemRegion, dfa.AbsVal](envRegionHasher{})
	for it := e.table.Iterator(); !it.Done(); {
		k, v, _ := it.Next()
		c := v.Clone()
		c.Normalize()
		if c.IsBottom() {
			e.SetToBottom()
			return
		}
		b.Set(k, c)
	}
	e.table = b.Map()
}

func (e *EnvMap) Hash() (h uint32) {
	if e.bot {
		return utils.HashCombine(uint32(e.kind), 1)
	}
	h = utils.HashCombine(uint32(e.kind))
	for it := e.table.Iterator(); !it.Done(); {
		k, v, _ := it.Next()
		h ^= utils.HashCombine(k.Hash(), v.Hash())
	}
	return h
}

func (e *EnvMap) String() string {
	if e.bot {
		return "⊥"
	}
	if e.table.Len() == 0 {
		return "⊤"
	}
	strs := make([]string, 0, e.table.Len())
	for it := e.table.Iterator(); !it.Done(); {
		k, v, _ := it.Next()
		var b strings.Builder
		fmt.Fprintf(&b, "%s ↦ ", k)
		v.Dump(&b)
		strs = append(strs, b.String())
	}
	sort.Strings(strs)
	return "{" + strings.Join(strs, ", ") + "}"
}

func (e *EnvMap) Dump(w io.Writer) {
	fmt.Fprint(w, e.String())
}

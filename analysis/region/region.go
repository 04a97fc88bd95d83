// Package region implements the memory model consumed by the analysis
// framework. A memory region stands for the storage of a declared object
// within a stack frame; regions are interned, so equal regions are
// pointer-identical and can serve as opaque map keys.
package region

import (
	"fmt"
	"go/types"
	"io"

	"github.com/MagicMotion/knight/analysis/proccfg"
	"github.com/MagicMotion/knight/utils"
	"github.com/MagicMotion/knight/utils/hmap"

	"github.com/spakin/disjoint"
)

// SpaceKind classifies the memory space a region lives in.
type SpaceKind uint8

const (
	StackLocal SpaceKind = iota
	StackArg
	Global
	Unknown
)

func (k SpaceKind) String() string {
	switch k {
	case StackLocal:
		return "local"
	case StackArg:
		return "arg"
	case Global:
		return "global"
	default:
		return "unknown"
	}
}

// MemRegion is the interned storage of a declared object in a frame.
type MemRegion struct {
	id    uint32
	obj   types.Object
	frame *StackFrame
	space SpaceKind
	alias *disjoint.Element
}

// Obj returns the declared object the region models.
func (r *MemRegion) Obj() types.Object { return r.obj }

// Frame returns the frame the region is scoped to; nil for globals.
func (r *MemRegion) Frame() *StackFrame { return r.frame }

// Space returns the memory space of the region.
func (r *MemRegion) Space() SpaceKind { return r.space }

// Hash returns a stable hash of the region.
func (r *MemRegion) Hash() uint32 { return utils.HashCombine(r.id, uint32(r.space)) }

func (r *MemRegion) String() string {
	return fmt.Sprintf("%s(%s)", r.space, r.obj.Name())
}

func (r *MemRegion) Dump(w io.Writer) {
	fmt.Fprint(w, r.String())
}

type regionKey struct {
	obj   types.Object
	frame *StackFrame
}

type regionKeyHasher struct{}

func (regionKeyHasher) Hash(k regionKey) uint32 {
	h := utils.PointerHasher[types.Object]{}.Hash(k.obj)
	if k.frame != nil {
		h = utils.HashCombine(h, utils.PointerHasher[*StackFrame]{}.Hash(k.frame))
	}
	return h
}

func (regionKeyHasher) Equal(a, b regionKey) bool { return a == b }

// Manager interns memory regions per (object, frame) pair and tracks
// may-alias classes between regions.
type Manager struct {
	regions *hmap.Map[regionKey, *MemRegion]
	nextID  uint32
}

func NewManager() *Manager {
	return &Manager{
		regions: hmap.NewMap[*MemRegion](regionKeyHasher{}),
	}
}

// GetRegion resolves the region of decl within frame. Only variable
// objects are modeled; every other declaration kind yields no region.
func (m *Manager) GetRegion(decl proccfg.DeclRef, frame *StackFrame) (*MemRegion, bool) {
	v, ok := decl.(*types.Var)
	if !ok {
		return nil, false
	}

	if v.IsField() {
		return nil, false
	}

	space := StackLocal
	switch {
	case v.Pkg() != nil && v.Parent() == v.Pkg().Scope():
		space = Global
		frame = nil
	case frame != nil && isParamOf(v, frame):
		space = StackArg
	}

	key := regionKey{obj: v, frame: frame}
	if r, ok := m.regions.GetOk(key); ok {
		return r, true
	}

	m.nextID++
	r := &MemRegion{
		id:    m.nextID,
		obj:   v,
		frame: frame,
		space: space,
		alias: disjoint.NewElement(),
	}
	r.alias.Data = r
	m.regions.Set(key, r)
	return r, true
}

func isParamOf(v *types.Var, frame *StackFrame) bool {
	params := frame.fn.Type.Params
	return params != nil && params.Pos() <= v.Pos() && v.Pos() <= params.End()
}

// Unify merges the alias classes of two regions.
func (m *Manager) Unify(a, b *MemRegion) {
	disjoint.Union(a.alias, b.alias)
}

// Representative returns the canonical region of r's alias class.
func (m *Manager) Representative(r *MemRegion) *MemRegion {
	return r.alias.Find().Data.(*MemRegion)
}

// SameClass reports whether two regions may alias.
func (m *Manager) SameClass(a, b *MemRegion) bool {
	return a.alias.Find() == b.alias.Find()
}

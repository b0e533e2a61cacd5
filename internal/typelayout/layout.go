package typelayout

import "sort"

// Repr controls field ordering and alignment rules for a struct/class layout.
type Repr int

const (
	ReprDefault Repr = iota // may reorder fields by descending alignment
	ReprC                   // preserves declaration order
)

// LayoutKind tags which of the four layout shapes a TypeLayout holds.
type LayoutKind int

const (
	LayoutStruct LayoutKind = iota
	LayoutClass
	LayoutUnion
	LayoutEnum
)

// Field is one member of a struct/class/union layout.
type Field struct {
	Name       string
	Type       *Ty
	DeclIndex  int  // declaration index; Index invariant: unique per layout
	Offset     *uint64 // nil until computed by back-end layout
	Readonly   bool
	ViewOf     string // for union views: the sibling field this field overlays
	MMIO       *MMIOAttrs
}

// MMIOAttrs carries memory-mapped-IO annotations for a field, when present.
type MMIOAttrs struct {
	Address  uint64
	Volatile bool
}

// AutoTraits is the auto-derived trait set computed from a layout's fields.
type AutoTraits struct {
	ThreadSafe bool
	Shareable  bool
	Copy       bool
}

// VTableSlot is one entry of a class's or trait's vtable.
type VTableSlot struct {
	Method string // method name
	Symbol string // canonical function symbol implementing the slot
}

// TypeLayout is one of Struct, Class, Union, or Enum.
type TypeLayout struct {
	Kind LayoutKind
	Name string

	Repr         Repr
	PackOverride *uint64 // packing override, if any
	AlignOverride *uint64

	Fields []Field

	Size  uint64 // known after back-end layout
	Align uint64

	Intrinsic   bool
	// Record marks value types with structural-equality semantics; the
	// body builder's readonly-write rule carves out local temps for them.
	Record      bool
	AutoTraits  AutoTraits
	DisposeSym  string // "" if none

	// Class-only.
	VTable      []VTableSlot
	BaseClass   string // "" if none
	Interfaces  []string

	// Enum-only.
	Discriminants []EnumVariant
}

// EnumVariant names one discriminant of an enum layout.
type EnumVariant struct {
	Name        string
	Discriminant int64
	PayloadType *Ty // nil for unit variants
}

// RequiresDrop is the per-layout component of the recursive drop
// requirement: a dispose symbol present, independent of fields.
func (l *TypeLayout) RequiresDrop() bool {
	return l.DisposeSym != ""
}

// Registry owns every monomorphized type's layout, keyed by canonical
// name, and computes layouts bottom-up from leaf types.
type Registry struct {
	layouts map[string]*TypeLayout
	// memoized recursive predicates
	dropCache  map[string]bool
	cloneCache map[string]bool
	cloneFns   map[string]bool // "{name}::Clone::Clone" existence, injected by caller
}

// NewRegistry returns an empty layout registry.
func NewRegistry() *Registry {
	return &Registry{
		layouts:    make(map[string]*TypeLayout),
		dropCache:  make(map[string]bool),
		cloneCache: make(map[string]bool),
		cloneFns:   make(map[string]bool),
	}
}

// Register inserts or replaces a layout by name.
func (r *Registry) Register(l *TypeLayout) {
	r.layouts[l.Name] = l
	delete(r.dropCache, l.Name)
	delete(r.cloneCache, l.Name)
}

// Lookup returns the layout for name, or nil if unknown.
func (r *Registry) Lookup(name string) *TypeLayout {
	return r.layouts[name]
}

// Names returns every registered layout's canonical name, in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.layouts))
	for name := range r.layouts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MarkCloneMethod records that the module defines "{name}::Clone::Clone",
// used by TypeRequiresClone. mir.MirModule.AddFunction calls this for
// every Clone registration, so the predicate stays in sync with the
// module however it was built.
func (r *Registry) MarkCloneMethod(name string) {
	r.cloneFns[name] = true
	r.cloneCache = make(map[string]bool)
}

// ComputeLayout assigns offsets, size, and align for the layout named
// name, recursing into field types it has not yet seen. Default repr may
// reorder fields by descending alignment; C repr preserves declaration
// order; both consumers read offsets back from the computed fields, so
// either choice stays self-consistent.
func (r *Registry) ComputeLayout(name string) *TypeLayout {
	l := r.layouts[name]
	if l == nil {
		return nil
	}
	if l.Size > 0 || len(l.Fields) == 0 {
		return l
	}
	if l.Kind == LayoutUnion {
		r.computeUnionLayout(l)
		return l
	}
	if l.Kind == LayoutEnum {
		r.computeEnumLayout(l)
		return l
	}

	order := make([]int, len(l.Fields))
	for i := range order {
		order[i] = i
	}
	if l.Repr == ReprDefault {
		sort.SliceStable(order, func(a, b int) bool {
			_, alignA := r.sizeAlignOf(l.Fields[order[a]].Type)
			_, alignB := r.sizeAlignOf(l.Fields[order[b]].Type)
			return alignA > alignB
		})
	}

	var cursor uint64
	var maxAlign uint64 = 1
	for _, idx := range order {
		f := &l.Fields[idx]
		size, align := r.sizeAlignOf(f.Type)
		if l.AlignOverride != nil {
			align = *l.AlignOverride
		}
		if l.PackOverride != nil && align > *l.PackOverride {
			align = *l.PackOverride
		}
		if align == 0 {
			align = 1
		}
		cursor = alignUp(cursor, align)
		off := cursor
		f.Offset = &off
		cursor += size
		if align > maxAlign {
			maxAlign = align
		}
	}
	if l.PackOverride != nil && maxAlign > *l.PackOverride {
		maxAlign = *l.PackOverride
	}
	l.Size = alignUp(cursor, maxAlign)
	l.Align = maxAlign
	return l
}

func (r *Registry) computeUnionLayout(l *TypeLayout) {
	var size, align uint64 = 0, 1
	for i := range l.Fields {
		f := &l.Fields[i]
		fs, fa := r.sizeAlignOf(f.Type)
		if fs > size {
			size = fs
		}
		if fa > align {
			align = fa
		}
		zero := uint64(0)
		f.Offset = &zero
	}
	l.Size = alignUp(size, align)
	l.Align = align
}

func (r *Registry) computeEnumLayout(l *TypeLayout) {
	// Discriminant (i32) plus the largest payload, payload-aligned.
	var payloadSize, payloadAlign uint64 = 0, 1
	for _, v := range l.Discriminants {
		if v.PayloadType == nil {
			continue
		}
		s, a := r.sizeAlignOf(v.PayloadType)
		if s > payloadSize {
			payloadSize = s
		}
		if a > payloadAlign {
			payloadAlign = a
		}
	}
	discSize, discAlign := uint64(4), uint64(4)
	align := discAlign
	if payloadAlign > align {
		align = payloadAlign
	}
	payloadOffset := alignUp(discSize, payloadAlign)
	l.Size = alignUp(payloadOffset+payloadSize, align)
	l.Align = align
}

// sizeAlignOf resolves the (size, align) of a Ty, recursing through named
// types into the registry and through aggregates into their elements.
func (r *Registry) sizeAlignOf(t *Ty) (size, align uint64) {
	if t == nil {
		return 0, 1
	}
	switch t.Kind {
	case TyPrimitive:
		p := primitiveRegistry[t.Prim]
		return p.Size, p.Align
	case TyNamed:
		l := r.ComputeLayout(t.Name)
		if l == nil {
			return 0, 1
		}
		return l.Size, l.Align
	case TyTuple:
		var cursor, maxAlign uint64 = 0, 1
		for _, e := range t.Elems {
			s, a := r.sizeAlignOf(e)
			cursor = alignUp(cursor, a) + s
			if a > maxAlign {
				maxAlign = a
			}
		}
		return alignUp(cursor, maxAlign), maxAlign
	case TyArray:
		s, a := r.sizeAlignOf(t.Elem)
		return s * uint64(t.Rank), a
	case TyVec:
		return 24, 8 // {ptr, len, cap}
	case TySpan, TyReadonlySpan:
		return 16, 8 // {ptr, len}
	case TyVector:
		s, a := r.sizeAlignOf(t.Elem)
		return s * uint64(t.Lanes), a
	case TyPointer, TyReference, TyFunction:
		return 8, 8
	case TyNullable:
		s, a := r.sizeAlignOf(t.Elem)
		return s + 1, a // tag byte after the payload
	case TyRc, TyArc:
		return 8, 8 // header pointer
	case TyTraitObject:
		return 16, 8 // {data ptr, vtable ptr}
	default:
		return 0, 1
	}
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// TypeRequiresDrop is recursive: a type requires drop if it has a declared
// dispose symbol or any field's type (through arrays, vecs, tuples, and
// named type layouts) requires drop.
func (r *Registry) TypeRequiresDrop(name string) bool {
	if v, ok := r.dropCache[name]; ok {
		return v
	}
	r.dropCache[name] = false // break cycles conservatively
	l := r.layouts[name]
	if l == nil {
		return false
	}
	if l.RequiresDrop() {
		r.dropCache[name] = true
		return true
	}
	for _, f := range l.Fields {
		if r.tyRequiresDrop(f.Type) {
			r.dropCache[name] = true
			return true
		}
	}
	if l.Kind == LayoutEnum {
		for _, v := range l.Discriminants {
			if r.tyRequiresDrop(v.PayloadType) {
				r.dropCache[name] = true
				return true
			}
		}
	}
	return false
}

func (r *Registry) tyRequiresDrop(t *Ty) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TyNamed:
		return r.TypeRequiresDrop(t.Name)
	case TyArray, TyVec, TySpan:
		return r.tyRequiresDrop(t.Elem)
	case TyTuple:
		for _, e := range t.Elems {
			if r.tyRequiresDrop(e) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// TypeRequiresClone is recursive like the drop rule: a type requires
// clone glue if it declares a Clone::Clone method (recorded via
// MarkCloneMethod) or any field's type (through arrays, vecs, tuples,
// and named layouts) requires it. Types with neither are trivially
// cloneable — a memcpy suffices, no glue needed.
func (r *Registry) TypeRequiresClone(name string) bool {
	if v, ok := r.cloneCache[name]; ok {
		return v
	}
	r.cloneCache[name] = false // break cycles conservatively
	l := r.layouts[name]
	if l == nil {
		return false
	}
	if r.cloneFns[name] {
		r.cloneCache[name] = true
		return true
	}
	for _, f := range l.Fields {
		if r.tyRequiresClone(f.Type) {
			r.cloneCache[name] = true
			return true
		}
	}
	return false
}

func (r *Registry) tyRequiresClone(t *Ty) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TyNamed:
		return r.TypeRequiresClone(t.Name)
	case TyArray, TyVec, TySpan:
		return r.tyRequiresClone(t.Elem)
	case TyTuple:
		for _, e := range t.Elems {
			if r.tyRequiresClone(e) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

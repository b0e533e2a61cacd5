// Package typelayout computes byte-level layout for monomorphized types
// and a stable 64-bit type identity from a canonical name.
package typelayout

import "fmt"

// TyKind tags the variant a Ty holds.
type TyKind int

const (
	TyUnknown TyKind = iota
	TyNamed
	TyPrimitive
	TyTuple
	TyArray
	TyVec
	TySpan
	TyReadonlySpan
	TyVector // SIMD
	TyPointer
	TyReference
	TyNullable
	TyRc
	TyArc
	TyTraitObject
	TyFunction
)

// Primitive enumerates the primitive leaf types with static (size, align).
type Primitive int

const (
	PrimUnit Primitive = iota
	PrimBool
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimF32
	PrimF64
	PrimDecimal
	PrimString
	PrimStr
	PrimChar
)

// primitiveRegistry gives (size, align) for every primitive leaf type.
// Decimal follows a 128-bit (16-byte) representation, the
// common layout for a scaled-integer decimal; string/str are fat pointers
// (ptr+len), 16 bytes on 64-bit targets.
var primitiveRegistry = map[Primitive]struct{ Size, Align uint64 }{
	PrimUnit:    {0, 1},
	PrimBool:    {1, 1},
	PrimI8:      {1, 1},
	PrimI16:     {2, 2},
	PrimI32:     {4, 4},
	PrimI64:     {8, 8},
	PrimI128:    {16, 16},
	PrimU8:      {1, 1},
	PrimU16:     {2, 2},
	PrimU32:     {4, 4},
	PrimU64:     {8, 8},
	PrimU128:    {16, 16},
	PrimF32:     {4, 4},
	PrimF64:     {8, 8},
	PrimDecimal: {16, 16},
	PrimString:  {16, 8},
	PrimStr:     {16, 8},
	PrimChar:    {4, 4},
}

// GenArg is either a type argument or a const generic argument.
type GenArg struct {
	Type  *Ty
	Const *ConstArg // mutually exclusive with Type
}

// ConstArg is a const generic argument (e.g. an array rank or a fixed length).
type ConstArg struct {
	Value int64
}

// Ty is the tagged variant over the source language's type grammar that
// the core consumes from the (out-of-scope) type checker.
type Ty struct {
	Kind TyKind

	// TyNamed
	Name     string
	GenArgs  []GenArg

	// TyPrimitive
	Prim Primitive

	// TyTuple
	Elems []*Ty

	// TyArray / TyVec / TySpan / TyReadonlySpan / TyVector / TyPointer /
	// TyReference / TyNullable / TyRc / TyArc: single element type
	Elem *Ty
	Rank int  // array rank
	Lanes int // SIMD vector lane count

	// TyPointer / TyReference
	Mutable bool

	// TyTraitObject
	Traits []string

	// TyFunction
	Params []*Ty
	Ret    *Ty
}

// CanonicalName returns the canonical string name used as the layout and
// identity lookup key.
func (t *Ty) CanonicalName() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TyNamed:
		if len(t.GenArgs) == 0 {
			return t.Name
		}
		s := t.Name + "<"
		for i, g := range t.GenArgs {
			if i > 0 {
				s += ", "
			}
			if g.Type != nil {
				s += g.Type.CanonicalName()
			} else if g.Const != nil {
				s += fmt.Sprintf("%d", g.Const.Value)
			}
		}
		return s + ">"
	case TyPrimitive:
		return primitiveName(t.Prim)
	case TyTuple:
		s := "("
		for i, e := range t.Elems {
			if i > 0 {
				s += ", "
			}
			s += e.CanonicalName()
		}
		return s + ")"
	case TyArray:
		return fmt.Sprintf("[%s; rank=%d]", t.Elem.CanonicalName(), t.Rank)
	case TyVec:
		return fmt.Sprintf("Vec<%s>", t.Elem.CanonicalName())
	case TySpan:
		return fmt.Sprintf("Span<%s>", t.Elem.CanonicalName())
	case TyReadonlySpan:
		return fmt.Sprintf("ReadOnlySpan<%s>", t.Elem.CanonicalName())
	case TyVector:
		return fmt.Sprintf("Vector<%s,%d>", t.Elem.CanonicalName(), t.Lanes)
	case TyPointer:
		if t.Mutable {
			return "*mut " + t.Elem.CanonicalName()
		}
		return "*const " + t.Elem.CanonicalName()
	case TyReference:
		if t.Mutable {
			return "&mut " + t.Elem.CanonicalName()
		}
		return "&" + t.Elem.CanonicalName()
	case TyNullable:
		return t.Elem.CanonicalName() + "?"
	case TyRc:
		return "Rc<" + t.Elem.CanonicalName() + ">"
	case TyArc:
		return "Arc<" + t.Elem.CanonicalName() + ">"
	case TyTraitObject:
		s := "dyn "
		for i, tr := range t.Traits {
			if i > 0 {
				s += " + "
			}
			s += tr
		}
		return s
	case TyFunction:
		s := "fn("
		for i, p := range t.Params {
			if i > 0 {
				s += ", "
			}
			s += p.CanonicalName()
		}
		s += ") -> "
		if t.Ret != nil {
			s += t.Ret.CanonicalName()
		} else {
			s += "()"
		}
		return s
	default:
		return "<unknown>"
	}
}

func primitiveName(p Primitive) string {
	switch p {
	case PrimUnit:
		return "()"
	case PrimBool:
		return "bool"
	case PrimI8:
		return "i8"
	case PrimI16:
		return "i16"
	case PrimI32:
		return "i32"
	case PrimI64:
		return "i64"
	case PrimI128:
		return "i128"
	case PrimU8:
		return "u8"
	case PrimU16:
		return "u16"
	case PrimU32:
		return "u32"
	case PrimU64:
		return "u64"
	case PrimU128:
		return "u128"
	case PrimF32:
		return "f32"
	case PrimF64:
		return "f64"
	case PrimDecimal:
		return "decimal"
	case PrimString:
		return "string"
	case PrimStr:
		return "str"
	case PrimChar:
		return "char"
	default:
		return "?"
	}
}

// IsIntrinsicPrimitive reports whether t is a primitive leaf type.
func (t *Ty) IsIntrinsicPrimitive() bool {
	return t != nil && t.Kind == TyPrimitive
}

// PrimitiveByName resolves a canonical primitive name ("bool", "i32",
// ...) back to its Primitive tag. Intrinsic type layouts are registered
// under these names; the backends use this to recover the machine type.
func PrimitiveByName(name string) (Primitive, bool) {
	for p := PrimUnit; p <= PrimChar; p++ {
		if primitiveName(p) == name {
			return p, true
		}
	}
	return 0, false
}

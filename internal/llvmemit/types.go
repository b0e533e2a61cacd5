package llvmemit

import (
	"fmt"
	"sort"

	"github.com/llir/llvm/ir/types"

	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// typeMapper lowers typelayout.Ty values to LLVM types, interning named
// struct definitions so every mention of "Demo::Point" shares one
// %"Demo::Point" type def. Struct fields are emitted in offset order
// when the registry computed offsets, declaration order otherwise, and
// fieldOrder records the decl-index -> emitted-position mapping the GEP
// lowering consults.
type typeMapper struct {
	layouts *typelayout.Registry

	named      map[string]*types.StructType
	fieldOrder map[string][]int // type name -> emitted position per decl index

	// onNew is invoked once per fresh named struct so the emitter can
	// register a module-level type def for it.
	onNew func(name string, st *types.StructType)

	stringTy *types.StructType // %__chx_string = { i8*, i64 }
	spanTy   *types.StructType // %__chx_span = { i8*, i64 }
	vecTy    *types.StructType // %__chx_vec = { i8*, i64, i64 }
	dynTy    *types.StructType // %__chx_dyn = { i8*, i8* }
}

func newTypeMapper(layouts *typelayout.Registry) *typeMapper {
	return &typeMapper{
		layouts:    layouts,
		named:      make(map[string]*types.StructType),
		fieldOrder: make(map[string][]int),
		stringTy:   types.NewStruct(types.I8Ptr, types.I64),
		spanTy:     types.NewStruct(types.I8Ptr, types.I64),
		vecTy:      types.NewStruct(types.I8Ptr, types.I64, types.I64),
		dynTy:      types.NewStruct(types.I8Ptr, types.I8Ptr),
	}
}

// valueType lowers t for use as a value (locals, fields, aggregates).
// Unit lowers to an empty struct so it stays storable; returnType treats
// it as void instead.
func (tm *typeMapper) valueType(t *typelayout.Ty) types.Type {
	if t == nil {
		return types.NewStruct()
	}
	switch t.Kind {
	case typelayout.TyPrimitive:
		return tm.primType(t.Prim)
	case typelayout.TyNamed:
		return tm.namedType(t.Name)
	case typelayout.TyTuple:
		fields := make([]types.Type, len(t.Elems))
		for i, e := range t.Elems {
			fields[i] = tm.valueType(e)
		}
		return types.NewStruct(fields...)
	case typelayout.TyArray:
		return types.NewArray(uint64(t.Rank), tm.valueType(t.Elem))
	case typelayout.TyVec:
		return tm.vecTy
	case typelayout.TySpan, typelayout.TyReadonlySpan:
		return tm.spanTy
	case typelayout.TyVector:
		return types.NewVector(uint64(t.Lanes), tm.valueType(t.Elem))
	case typelayout.TyPointer, typelayout.TyReference:
		return types.NewPointer(tm.valueType(t.Elem))
	case typelayout.TyNullable:
		return types.NewStruct(tm.valueType(t.Elem), types.I8)
	case typelayout.TyRc, typelayout.TyArc:
		return types.I8Ptr // header pointer
	case typelayout.TyTraitObject:
		return tm.dynTy
	case typelayout.TyFunction:
		params := make([]types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = tm.valueType(p)
		}
		return types.NewPointer(types.NewFunc(tm.returnType(t.Ret), params...))
	default:
		return types.I8Ptr
	}
}

// returnType lowers t for use as a function return: unit and nil lower
// to void.
func (tm *typeMapper) returnType(t *typelayout.Ty) types.Type {
	if t == nil || (t.Kind == typelayout.TyPrimitive && t.Prim == typelayout.PrimUnit) {
		return types.Void
	}
	return tm.valueType(t)
}

func (tm *typeMapper) primType(p typelayout.Primitive) types.Type {
	switch p {
	case typelayout.PrimUnit:
		return types.NewStruct()
	case typelayout.PrimBool:
		return types.I1
	case typelayout.PrimI8, typelayout.PrimU8:
		return types.I8
	case typelayout.PrimI16, typelayout.PrimU16:
		return types.I16
	case typelayout.PrimI32, typelayout.PrimU32, typelayout.PrimChar:
		return types.I32
	case typelayout.PrimI64, typelayout.PrimU64:
		return types.I64
	case typelayout.PrimI128, typelayout.PrimU128, typelayout.PrimDecimal:
		return types.I128
	case typelayout.PrimF32:
		return types.Float
	case typelayout.PrimF64:
		return types.Double
	case typelayout.PrimString, typelayout.PrimStr:
		return tm.stringTy
	default:
		return types.I8
	}
}

// namedType returns (building on first use) the struct type def for a
// registered layout. Unknown names map to an empty (opaque) struct;
// classes with vtables get a leading i8* slot conventionally reserved for
// the vtable pointer.
func (tm *typeMapper) namedType(name string) types.Type {
	if st, ok := tm.named[name]; ok {
		return st
	}
	l := tm.layouts.Lookup(name)
	if l == nil {
		// Opaque to this module: address-only usage.
		st := types.NewStruct()
		tm.named[name] = st
		return st
	}
	if l.Intrinsic {
		if p, ok := typelayout.PrimitiveByName(name); ok {
			return tm.primType(p)
		}
	}

	// Reserve the slot before recursing so self-referential layouts
	// terminate; fields referring back to the type see the (incomplete)
	// struct pointer-compatible shape.
	st := types.NewStruct()
	tm.named[name] = st
	if tm.onNew != nil {
		tm.onNew(name, st)
	}

	if l.Kind == typelayout.LayoutEnum {
		st.Fields = tm.enumFields(l)
		return st
	}

	order := emissionOrder(l)
	fields := make([]types.Type, 0, len(l.Fields)+1)
	positions := make([]int, len(l.Fields))
	base := 0
	if l.Kind == typelayout.LayoutClass && len(l.VTable) > 0 {
		fields = append(fields, types.I8Ptr)
		base = 1
	}
	if l.Kind == typelayout.LayoutUnion {
		// Unions lower to their largest member as raw bytes.
		size := l.Size
		if size == 0 {
			tm.layouts.ComputeLayout(name)
			size = l.Size
		}
		st.Fields = []types.Type{types.NewArray(size, types.I8)}
		return st
	}
	for pos, declIdx := range order {
		fields = append(fields, tm.valueType(l.Fields[declIdx].Type))
		positions[declIdx] = base + pos
	}
	st.Fields = fields
	tm.fieldOrder[name] = positions
	return st
}

// enumFields lowers an enum to { i32 discriminant, [payload x i8] }.
func (tm *typeMapper) enumFields(l *typelayout.TypeLayout) []types.Type {
	var payload uint64
	for _, v := range l.Discriminants {
		if v.PayloadType == nil {
			continue
		}
		if s := tm.sizeOf(v.PayloadType); s > payload {
			payload = s
		}
	}
	if payload == 0 {
		return []types.Type{types.I32}
	}
	return []types.Type{types.I32, types.NewArray(payload, types.I8)}
}

func (tm *typeMapper) sizeOf(t *typelayout.Ty) uint64 {
	switch t.Kind {
	case typelayout.TyNamed:
		if l := tm.layouts.ComputeLayout(t.Name); l != nil {
			return l.Size
		}
		return 0
	case typelayout.TyPrimitive:
		switch tm.primType(t.Prim) {
		case types.I8:
			return 1
		case types.I16:
			return 2
		case types.I32, types.Float:
			return 4
		case types.I64, types.Double:
			return 8
		case types.I128:
			return 16
		default:
			return 16
		}
	default:
		return 8
	}
}

// fieldPosition maps a MIR Field(declIndex) projection to the emitted
// struct position for the named type.
func (tm *typeMapper) fieldPosition(typeName string, declIndex int) (int, error) {
	tm.namedType(typeName)
	order, ok := tm.fieldOrder[typeName]
	if !ok || declIndex >= len(order) {
		return 0, fmt.Errorf("type %s has no field at declaration index %d", typeName, declIndex)
	}
	return order[declIndex], nil
}

// emissionOrder returns decl indices sorted by computed offset when the
// registry assigned offsets, declaration order otherwise. Emitting in
// offset order keeps struct GEPs consistent with the layout the rest of
// the pipeline reports.
func emissionOrder(l *typelayout.TypeLayout) []int {
	order := make([]int, len(l.Fields))
	for i := range order {
		order[i] = i
	}
	hasOffsets := true
	for _, f := range l.Fields {
		if f.Offset == nil {
			hasOffsets = false
			break
		}
	}
	if hasOffsets {
		sort.SliceStable(order, func(a, b int) bool {
			return *l.Fields[order[a]].Offset < *l.Fields[order[b]].Offset
		})
	}
	return order
}

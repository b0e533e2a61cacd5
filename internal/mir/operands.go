package mir

import "github.com/chic-lang/chicc-core/internal/typelayout"

// ProjectionKind tags a Place's path elements.
type ProjectionKind int

const (
	ProjDeref ProjectionKind = iota
	ProjField
	ProjFieldNamed
	ProjIndex
	ProjConstantIndex
)

// Projection is one step in a Place's path from its base local.
type Projection struct {
	Kind  ProjectionKind
	Field int     // ProjField
	Name  string  // ProjFieldNamed
	Index LocalID // ProjIndex: the local holding the index value
	Const int64   // ProjConstantIndex
}

// Place is a path to a storage location: a local plus projections.
type Place struct {
	Local       LocalID
	Projections []Projection
}

// Field appends a numeric-field projection and returns the extended place.
func (p Place) Field(i int) Place {
	return Place{Local: p.Local, Projections: append(append([]Projection{}, p.Projections...), Projection{Kind: ProjField, Field: i})}
}

// Deref appends a deref projection.
func (p Place) Deref() Place {
	return Place{Local: p.Local, Projections: append(append([]Projection{}, p.Projections...), Projection{Kind: ProjDeref})}
}

// Index appends an index projection through the local holding the index.
func (p Place) Index(idx LocalID) Place {
	return Place{Local: p.Local, Projections: append(append([]Projection{}, p.Projections...), Projection{Kind: ProjIndex, Index: idx})}
}

// ConstIndex appends a constant-index projection.
func (p Place) ConstIndex(i int64) Place {
	return Place{Local: p.Local, Projections: append(append([]Projection{}, p.Projections...), Projection{Kind: ProjConstantIndex, Const: i})}
}

// BorrowKind distinguishes shared vs. mutable borrows.
type BorrowKind int

const (
	BorrowShared BorrowKind = iota
	BorrowMutable
)

// ConstKind tags the literal shape a ConstOperand carries.
type ConstKind int

const (
	ConstUnit ConstKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstString
	ConstStringLitRef // interned string literal index
	ConstSymbol       // function/global symbol reference
	ConstEnumDiscr    // enum discriminant constant (used for rounding/vectorize defaults)
	ConstZero         // zero value of a type
)

// ConstOperand is a compile-time-known value.
type ConstOperand struct {
	Kind    ConstKind
	Int     int64
	Float   float64
	Str     string
	LitIdx  int
	Symbol  string
	EnumTy  string // enum type name, for ConstEnumDiscr
	Variant string // discriminant name, for ConstEnumDiscr
	Type    *typelayout.Ty
}

// OperandKind tags an Operand's variant.
type OperandKind int

const (
	OpCopy OperandKind = iota
	OpMove
	OpBorrow
	OpConst
	OpMmio
	OpPending
)

// Operand is a value an Rvalue/Call/terminator consumes.
//
// Pending is the sentinel emitted when lowering hits a diagnostic it
// cannot recover a real operand from; it lets the body builder keep
// producing a body shape that downstream passes can still traverse
// structurally, rather than aborting the whole function.
type Operand struct {
	Kind    OperandKind
	Place   Place
	Borrow  BorrowKind
	Const   ConstOperand
	Mmio    *mmioBox // only set when Kind == OpMmio; see MmioOperand below
}

// mmioBox boxes the recursive Mmio{address Operand} case so Operand stays
// a plain (non-recursive-by-value) struct.
type mmioBox struct {
	Address Operand
	Width   int
}

// MmioOperand builds an Mmio operand reading width bytes at address.
func MmioOperand(address Operand, width int) Operand {
	return Operand{Kind: OpMmio, Mmio: &mmioBox{Address: address, Width: width}}
}

// Copy builds a Copy(place) operand.
func Copy(p Place) Operand { return Operand{Kind: OpCopy, Place: p} }

// Move builds a Move(place) operand.
func Move(p Place) Operand { return Operand{Kind: OpMove, Place: p} }

// Const builds a Const(...) operand.
func Const(c ConstOperand) Operand { return Operand{Kind: OpConst, Const: c} }

// Pending builds the Pending sentinel operand.
func Pending() Operand { return Operand{Kind: OpPending} }

// IsPending reports whether op is the Pending sentinel.
func (op Operand) IsPending() bool { return op.Kind == OpPending }

// RvalueKind tags an Rvalue's variant.
type RvalueKind int

const (
	RvUse RvalueKind = iota
	RvLen
	RvUnary
	RvBinary
	RvAggregate
	RvAddressOf
	RvSpanStackAlloc
	RvCast
	RvStringInterpolate
	RvNumericIntrinsic
	RvDecimalIntrinsic
	RvAtomicLoad
	RvAtomicRmw
	RvAtomicCompareExchange
	RvStaticLoad
	RvStaticRef
)

// UnOp / BinOp enumerate the unary/binary operators an Rvalue may carry.
type UnOp int

const (
	UnNeg UnOp = iota
	UnNot
)

type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
)

// RoundingMode mirrors DecimalRoundingMode's discriminant space; TiesToEven
// is discriminant 0.
type RoundingMode int

const (
	RoundTiesToEven RoundingMode = iota
	RoundTowardZero
	RoundTowardPositive
	RoundTowardNegative
)

// VectorizeHint mirrors DecimalVectorizeHint.
type VectorizeHint int

const (
	VectorizeNoneDefault VectorizeHint = iota
	VectorizeForceDecimal
)

// DecimalIntrinsicKind enumerates the decimal-intrinsic operation kinds.
type DecimalIntrinsicKind int

const (
	DecAdd DecimalIntrinsicKind = iota
	DecSub
	DecMul
	DecDiv
	DecRem
	DecFma
)

// NumericIntrinsicKind enumerates the numeric-intrinsic operation kinds.
type NumericIntrinsicKind int

const (
	NumTryAdd NumericIntrinsicKind = iota
	NumTrySub
	NumTryMul
	NumRotateLeft
	NumRotateRight
	NumLeadingZeros
	NumTrailingZeros
	NumPopCount
)

// NumericWidth enumerates the integer widths a numeric intrinsic may act on.
type NumericWidth int

const (
	NumW8 NumericWidth = iota
	NumW16
	NumW32
	NumW64
	NumW128
	NumWPointer
)

// AtomicOrdering mirrors the runtime's ordering encoding.
type AtomicOrdering int

const (
	OrderRelaxed AtomicOrdering = iota
	OrderAcquire
	OrderRelease
	OrderAcqRel
	OrderSeqCst
)

// AggregateKind tags what shape RvAggregate constructs.
type AggregateKind int

const (
	AggStruct AggregateKind = iota
	AggTuple
	AggArray
	AggEnumVariant
)

// CastKind tags the conversion an RvCast performs.
type CastKind int

const (
	CastNumeric CastKind = iota
	CastPointer
	CastBitwise
	CastWiden
	CastNarrow
)

// Rvalue is the right-hand side of an Assign statement.
type Rvalue struct {
	Kind RvalueKind

	// RvUse
	Use Operand

	// RvLen
	LenOf Place

	// RvUnary
	UnOp  UnOp
	UnArg Operand

	// RvBinary
	BinOpKind BinOp
	Lhs, Rhs  Operand
	Rounding  *Operand // present only for checked/rounding binary ops

	// RvAggregate
	AggKind   AggregateKind
	AggType   *typelayout.Ty
	AggFields []Operand
	Variant   string // AggEnumVariant

	// RvAddressOf
	AddressOfPlace Place
	AddressMutable bool

	// RvSpanStackAlloc
	SpanElement *typelayout.Ty
	SpanLength  Operand
	SpanSource  *Operand // nil when allocating from a length only

	// RvCast
	CastKindTag CastKind
	CastOperand Operand
	CastSource  *typelayout.Ty
	CastTarget  *typelayout.Ty

	// RvStringInterpolate
	Segments []InterpSegment

	// RvDecimalIntrinsic
	DecKind    DecimalIntrinsicKind
	DecLhs     Operand
	DecRhs     Operand
	DecAddend  *Operand // present only for Fma
	DecRounding Operand
	DecVectorize Operand

	// RvNumericIntrinsic
	NumKind   NumericIntrinsicKind
	NumWidth  NumericWidth
	NumSigned bool
	NumArgs   []Operand
	NumOut    *Place // destination place when requires_out

	// RvAtomicLoad / RvAtomicRmw / RvAtomicCompareExchange
	AtomicAddr     Operand
	AtomicOrder    AtomicOrdering
	AtomicRmwOp    BinOp
	AtomicExchange bool // Exchange: swap without applying AtomicRmwOp
	AtomicOperand  Operand
	AtomicExpected Operand
	AtomicDesired  Operand
	AtomicSuccess  AtomicOrdering
	AtomicFailure  AtomicOrdering

	// RvStaticLoad / RvStaticRef
	StaticName string
}

// InterpSegment is one piece of a string-interpolation template: either a
// literal chunk or an operand to format.
type InterpSegment struct {
	Literal string
	IsExpr  bool
	Expr    Operand
}

// UseRvalue builds the common `Use(operand)` rvalue.
func UseRvalue(op Operand) Rvalue { return Rvalue{Kind: RvUse, Use: op} }

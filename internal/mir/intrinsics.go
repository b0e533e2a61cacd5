package mir

import (
	"strings"

	"github.com/chic-lang/chicc-core/internal/ast"
	"github.com/chic-lang/chicc-core/internal/diag"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// decimalRoundingSource / decimalVectorizeSource describe where an
// intrinsic suffix's descriptor pulls its rounding-mode / vectorize-hint
// operand from: either a fixed
// default, or "argument at index N".
type decimalRoundingSource struct {
	isDefault bool
	argIndex  int
}

type decimalVectorizeSource struct {
	isDefault    bool
	forceDecimal bool
	argIndex     int
}

// decimalIntrinsicDescriptor is one entry of the static suffix map.
type decimalIntrinsicDescriptor struct {
	Kind            DecimalIntrinsicKind
	DecimalArgCount int
	Rounding        decimalRoundingSource
	Vectorize       decimalVectorizeSource
}

// decimalIntrinsicTable matches canonical call-site suffixes under
// Std::Numeric::Decimal::Intrinsics::* exactly; unrecognised suffixes fall
// through to ordinary call lowering.
var decimalIntrinsicTable = map[string]decimalIntrinsicDescriptor{
	"Add": {
		Kind: DecAdd, DecimalArgCount: 2,
		Rounding:  decimalRoundingSource{isDefault: true},
		Vectorize: decimalVectorizeSource{isDefault: true},
	},
	"AddWithOptions": {
		Kind: DecAdd, DecimalArgCount: 2,
		Rounding:  decimalRoundingSource{argIndex: 2},
		Vectorize: decimalVectorizeSource{argIndex: 3},
	},
	"Sub": {
		Kind: DecSub, DecimalArgCount: 2,
		Rounding:  decimalRoundingSource{isDefault: true},
		Vectorize: decimalVectorizeSource{isDefault: true},
	},
	"SubWithOptions": {
		Kind: DecSub, DecimalArgCount: 2,
		Rounding:  decimalRoundingSource{argIndex: 2},
		Vectorize: decimalVectorizeSource{argIndex: 3},
	},
	"Mul": {
		Kind: DecMul, DecimalArgCount: 2,
		Rounding:  decimalRoundingSource{isDefault: true},
		Vectorize: decimalVectorizeSource{isDefault: true},
	},
	"Div": {
		Kind: DecDiv, DecimalArgCount: 2,
		Rounding:  decimalRoundingSource{isDefault: true},
		Vectorize: decimalVectorizeSource{isDefault: true},
	},
	"Rem": {
		Kind: DecRem, DecimalArgCount: 2,
		Rounding:  decimalRoundingSource{isDefault: true},
		Vectorize: decimalVectorizeSource{isDefault: true},
	},
	"Fma": {
		Kind: DecFma, DecimalArgCount: 3,
		Rounding:  decimalRoundingSource{isDefault: true},
		Vectorize: decimalVectorizeSource{isDefault: true},
	},
	"FmaWithOptions": {
		Kind: DecFma, DecimalArgCount: 3,
		Rounding:  decimalRoundingSource{argIndex: 3},
		Vectorize: decimalVectorizeSource{argIndex: 4},
	},
}

const decimalIntrinsicPrefix = "Std::Numeric::Decimal::Intrinsics::"

// LowerDecimalIntrinsic matches symbol against the known suffix map and,
// on a hit, emits a DecimalIntrinsic rvalue assigned to a fresh temp.
// It returns (operand, true) on a match or
// (zero, false) if symbol isn't a recognised decimal intrinsic.
func (b *BodyBuilder) LowerDecimalIntrinsic(symbol string, args []Operand, span ast.Span) (Operand, bool) {
	if !strings.HasPrefix(symbol, decimalIntrinsicPrefix) {
		return Operand{}, false
	}
	suffix := strings.TrimPrefix(symbol, decimalIntrinsicPrefix)
	desc, ok := decimalIntrinsicTable[suffix]
	if !ok {
		return Operand{}, false
	}
	if len(args) < desc.DecimalArgCount {
		b.diagnose(diag.MIR002, "decimal intrinsic "+symbol+" called with too few arguments", span)
		return Pending(), true
	}

	rv := Rvalue{Kind: RvDecimalIntrinsic}
	rv.DecKind = desc.Kind
	rv.DecLhs = args[0]
	rv.DecRhs = args[1]
	if desc.DecimalArgCount == 3 {
		addend := args[2]
		rv.DecAddend = &addend
	}

	if desc.Rounding.isDefault {
		rv.DecRounding = Const(ConstOperand{Kind: ConstEnumDiscr, EnumTy: "DecimalRoundingMode", Variant: "TiesToEven", Int: int64(RoundTiesToEven)})
	} else if desc.Rounding.argIndex < len(args) {
		rv.DecRounding = args[desc.Rounding.argIndex]
	}

	if desc.Vectorize.isDefault {
		rv.DecVectorize = Const(ConstOperand{Kind: ConstEnumDiscr, EnumTy: "DecimalVectorizeHint", Variant: "NoneDefault", Int: int64(VectorizeNoneDefault)})
	} else if desc.Vectorize.argIndex < len(args) {
		rv.DecVectorize = args[desc.Vectorize.argIndex]
	}

	dest := b.CreateTemp(decimalIntrinsicResultTy(), span)
	place := Place{Local: dest}
	b.PushStatement(StorageLive(dest), span)
	b.PushStatement(Assign(place, rv), span)
	return Copy(place), true
}

// decimalIntrinsicResultTy is the hint type assigned to a DecimalIntrinsic
// temp — a named "DecimalIntrinsicResult" marker the type checker already
// resolved to the concrete Decimal width upstream; the core only needs a
// stable name to record on the temp.
func decimalIntrinsicResultTy() *typelayout.Ty {
	return &typelayout.Ty{Kind: typelayout.TyNamed, Name: "DecimalIntrinsicResult"}
}

// numericIntrinsicDescriptor is one entry of the static symbol map for
// Std::{Int,UInt,SByte,...}::{TryAdd,Rotate,...} intrinsics.
type numericIntrinsicDescriptor struct {
	Kind         NumericIntrinsicKind
	Width        NumericWidth
	Signed       bool
	OperandCount int
	RequiresOut  bool
}

var numericIntrinsicTable = map[string]numericIntrinsicDescriptor{
	"Std::Int::TryAdd":            {NumTryAdd, NumW32, true, 2, true},
	"Std::Int::TrySub":            {NumTrySub, NumW32, true, 2, true},
	"Std::Int::TryMul":            {NumTryMul, NumW32, true, 2, true},
	"Std::Int::RotateLeft":        {NumRotateLeft, NumW32, true, 2, false},
	"Std::Int::RotateRight":       {NumRotateRight, NumW32, true, 2, false},
	"Std::UInt::TryAdd":           {NumTryAdd, NumW32, false, 2, true},
	"Std::UInt::TrySub":           {NumTrySub, NumW32, false, 2, true},
	"Std::UInt::TryMul":           {NumTryMul, NumW32, false, 2, true},
	"Std::UInt::RotateLeft":       {NumRotateLeft, NumW32, false, 2, false},
	"Std::UInt::RotateRight":      {NumRotateRight, NumW32, false, 2, false},
	"Std::SByte::TryAdd":          {NumTryAdd, NumW8, true, 2, true},
	"Std::SByte::TrySub":          {NumTrySub, NumW8, true, 2, true},
	"Std::Long::TryAdd":           {NumTryAdd, NumW64, true, 2, true},
	"Std::Long::TrySub":           {NumTrySub, NumW64, true, 2, true},
	"Std::Long::RotateLeft":       {NumRotateLeft, NumW64, true, 2, false},
	"Std::ULong::TryAdd":          {NumTryAdd, NumW64, false, 2, true},
	"Std::Int::LeadingZeroCount":  {NumLeadingZeros, NumW32, true, 1, false},
	"Std::Int::TrailingZeroCount": {NumTrailingZeros, NumW32, true, 1, false},
	"Std::Int::PopCount":          {NumPopCount, NumW32, true, 1, false},
}

// LowerNumericIntrinsic matches symbol against the known symbol map. When
// the descriptor's RequiresOut is set, the last call argument must already
// be a Place carrying the `out` modifier — the caller passes outPlace to
// assert this; lowering fails with a diagnostic if it's nil.
func (b *BodyBuilder) LowerNumericIntrinsic(symbol string, args []Operand, outPlace *Place, span ast.Span) (Operand, bool) {
	desc, ok := numericIntrinsicTable[symbol]
	if !ok {
		return Operand{}, false
	}
	if desc.RequiresOut && outPlace == nil {
		b.diagnose(diag.MIR003, "numeric intrinsic "+symbol+" requires an `out` argument", span)
		return Pending(), true
	}
	rv := Rvalue{
		Kind:      RvNumericIntrinsic,
		NumKind:   desc.Kind,
		NumWidth:  desc.Width,
		NumSigned: desc.Signed,
		NumArgs:   args,
		NumOut:    outPlace,
	}
	// Try* yields the success flag; the other kinds yield a value of the
	// operand width.
	resultTy := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimBool}
	if !desc.RequiresOut {
		resultTy = &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: numericResultPrim(desc.Width, desc.Signed)}
	}
	dest := b.CreateTemp(resultTy, span)
	place := Place{Local: dest}
	b.PushStatement(StorageLive(dest), span)
	b.PushStatement(Assign(place, rv), span)
	return Copy(place), true
}

// numericResultPrim maps a numeric-intrinsic width back to the primitive
// the result temp is typed at.
func numericResultPrim(w NumericWidth, signed bool) typelayout.Primitive {
	switch w {
	case NumW8:
		if signed {
			return typelayout.PrimI8
		}
		return typelayout.PrimU8
	case NumW16:
		if signed {
			return typelayout.PrimI16
		}
		return typelayout.PrimU16
	case NumW32:
		if signed {
			return typelayout.PrimI32
		}
		return typelayout.PrimU32
	case NumW128:
		if signed {
			return typelayout.PrimI128
		}
		return typelayout.PrimU128
	default:
		if signed {
			return typelayout.PrimI64
		}
		return typelayout.PrimU64
	}
}

const spanStackAllocSymbol = "Std::Span::Span::StackAlloc"

// LowerSpanIntrinsic lowers Std::Span::Span::StackAlloc<T>(length|source)
// to a SpanStackAlloc rvalue.
func (b *BodyBuilder) LowerSpanIntrinsic(symbol string, elem *typelayout.Ty, args []Operand, span ast.Span) (Operand, bool) {
	if symbol != spanStackAllocSymbol {
		return Operand{}, false
	}
	if len(args) == 0 {
		b.diagnose(diag.MIR004, "Span::StackAlloc requires a length or source argument", span)
		return Pending(), true
	}
	rv := Rvalue{Kind: RvSpanStackAlloc, SpanElement: elem}
	if len(args) >= 2 {
		rv.SpanLength = args[0]
		src := args[1]
		rv.SpanSource = &src
	} else {
		rv.SpanLength = args[0]
	}
	dest := b.CreateTemp(&typelayout.Ty{Kind: typelayout.TySpan, Elem: elem}, span)
	place := Place{Local: dest}
	b.PushStatement(StorageLive(dest), span)
	b.PushStatement(Assign(place, rv), span)
	return Copy(place), true
}

// LowerZeroInitIntrinsic lowers ZeroInit(out x) to a StmtZeroInit and
// ZeroInitRaw(ptr,len) to a StmtZeroInitRaw.
func (b *BodyBuilder) LowerZeroInitIntrinsic(symbol string, outPlace *Place, outType *typelayout.Ty, rawPtr, rawLen *Operand, span ast.Span) bool {
	switch symbol {
	case "ZeroInit":
		if outPlace == nil {
			b.diagnose(diag.MIR003, "ZeroInit requires an `out` argument", span)
			return true
		}
		b.PushStatement(Statement{Kind: StmtZeroInit, InitPlace: *outPlace, InitType: outType}, span)
		return true
	case "ZeroInitRaw":
		if rawPtr == nil || rawLen == nil {
			b.diagnose(diag.MIR004, "ZeroInitRaw requires (ptr, len) arguments", span)
			return true
		}
		b.PushStatement(Statement{Kind: StmtZeroInitRaw, RawPointer: *rawPtr, RawLen: *rawLen}, span)
		return true
	default:
		return false
	}
}

// atomicOrderTable recognises the ordering literal names the front end
// hands down for Std::Sync::Atomic*::{Load,Store,...} and Fence calls.
var atomicOrderTable = map[string]AtomicOrdering{
	"Relaxed": OrderRelaxed,
	"Acquire": OrderAcquire,
	"Release": OrderRelease,
	"AcqRel":  OrderAcqRel,
	"SeqCst":  OrderSeqCst,
}

const atomicSymbolPrefix = "Std::Sync::Atomic"

// LowerAtomicCall recognises Std::Sync::Atomic*::{Load,Store,Exchange,
// FetchAdd,...} and emits the matching Atomic* rvalue, and recognises
// Std::Sync::Fence(order) emitting a StmtAtomicFence.
func (b *BodyBuilder) LowerAtomicCall(symbol string, args []Operand, orderName string, span ast.Span) (Operand, bool) {
	if symbol == "Std::Sync::Fence" {
		order, ok := atomicOrderTable[orderName]
		if !ok {
			b.diagnose(diag.MIR005, "unrecognised atomic ordering "+orderName, span)
			order = OrderSeqCst
		}
		b.PushStatement(Statement{Kind: StmtAtomicFence, FenceOrder: order}, span)
		return Operand{}, true
	}
	if !strings.HasPrefix(symbol, atomicSymbolPrefix) {
		return Operand{}, false
	}
	parts := strings.Split(symbol, "::")
	method := parts[len(parts)-1]
	order, ok := atomicOrderTable[orderName]
	if !ok {
		order = OrderSeqCst
	}
	if len(args) == 0 {
		return Operand{}, false
	}
	addr := args[0]
	switch method {
	case "Load":
		dest := b.CreateTemp(nil, span)
		place := Place{Local: dest}
		rv := Rvalue{Kind: RvAtomicLoad, AtomicAddr: addr, AtomicOrder: order}
		b.PushStatement(StorageLive(dest), span)
		b.PushStatement(Assign(place, rv), span)
		return Copy(place), true
	case "Store":
		if len(args) < 2 {
			return Operand{}, false
		}
		b.PushStatement(Statement{Kind: StmtAtomicStore, AtomicAddr: addr, AtomicValue: args[1], AtomicOrder: order}, span)
		return Operand{}, true
	case "Exchange", "FetchAdd", "FetchSub", "FetchAnd", "FetchOr", "FetchXor":
		if len(args) < 2 {
			return Operand{}, false
		}
		dest := b.CreateTemp(nil, span)
		place := Place{Local: dest}
		rv := Rvalue{Kind: RvAtomicRmw, AtomicAddr: addr, AtomicOperand: args[1], AtomicOrder: order}
		if method == "Exchange" {
			rv.AtomicExchange = true
		} else {
			rv.AtomicRmwOp = rmwOpFor(method)
		}
		b.PushStatement(StorageLive(dest), span)
		b.PushStatement(Assign(place, rv), span)
		return Copy(place), true
	case "CompareExchange":
		if len(args) < 3 {
			return Operand{}, false
		}
		dest := b.CreateTemp(nil, span)
		place := Place{Local: dest}
		rv := Rvalue{
			Kind: RvAtomicCompareExchange, AtomicAddr: addr,
			AtomicExpected: args[1], AtomicDesired: args[2],
			AtomicSuccess: order, AtomicFailure: OrderRelaxed,
		}
		b.PushStatement(StorageLive(dest), span)
		b.PushStatement(Assign(place, rv), span)
		return Copy(place), true
	default:
		return Operand{}, false
	}
}

func rmwOpFor(method string) BinOp {
	switch method {
	case "FetchSub":
		return BinSub
	case "FetchAnd":
		return BinAnd
	case "FetchOr":
		return BinOr
	case "FetchXor":
		return BinXor
	default:
		return BinAdd
	}
}

// LowerEqGlueForType returns a symbol constant referring to __cl_eq__Name
// if the module already contains (or will contain, post-monomorphization)
// that glue, else the zero Operand and false.
func (b *BodyBuilder) LowerEqGlueForType(name string) (Operand, bool) {
	symbol := "__cl_eq__" + strings.ReplaceAll(name, "::", "__")
	if b.Module.Has(symbol) {
		return Const(ConstOperand{Kind: ConstSymbol, Symbol: symbol}), true
	}
	for _, g := range b.Module.GlueEntries {
		if g.Kind == GlueEq && g.TypeName == name {
			return Const(ConstOperand{Kind: ConstSymbol, Symbol: g.Symbol}), true
		}
	}
	return Operand{}, false
}

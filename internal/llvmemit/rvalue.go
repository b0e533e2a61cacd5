package llvmemit

import (
	"strconv"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/chic-lang/chicc-core/internal/diag"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/rt"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// lowerRvalue produces the value of rv. destTy/destLL describe the
// assignment destination (used to type constants and aggregates). A nil
// return with nil error means the rvalue stored its result through an
// out-pointer and the caller has nothing to store.
func (lo *funcLowering) lowerRvalue(rv *mir.Rvalue, destTy *typelayout.Ty, destLL types.Type) (value.Value, error) {
	switch rv.Kind {
	case mir.RvUse:
		return lo.loadOperand(rv.Use, destLL)

	case mir.RvLen:
		return lo.lowerLen(rv.LenOf)

	case mir.RvUnary:
		return lo.lowerUnary(rv, destLL)

	case mir.RvBinary:
		return lo.lowerBinary(rv, destLL)

	case mir.RvAggregate:
		return lo.lowerAggregate(rv, destTy, destLL)

	case mir.RvAddressOf:
		addr, _, err := lo.placeAddr(rv.AddressOfPlace)
		if err != nil {
			return nil, err
		}
		return addr, nil

	case mir.RvSpanStackAlloc:
		return lo.lowerSpanStackAlloc(rv)

	case mir.RvCast:
		return lo.lowerCast(rv)

	case mir.RvStringInterpolate:
		return lo.lowerStringInterpolate(rv, destLL)

	case mir.RvNumericIntrinsic:
		return lo.lowerNumericIntrinsic(rv)

	case mir.RvDecimalIntrinsic:
		return lo.lowerDecimalIntrinsic(rv)

	case mir.RvAtomicLoad:
		addr, err := lo.loadOperand(rv.AtomicAddr, types.I8Ptr)
		if err != nil {
			return nil, err
		}
		elem := intTypeOr(destLL, types.I64)
		typed := lo.cur.NewBitCast(lo.asI8Ptr(addr), types.NewPointer(elem))
		ld := lo.cur.NewLoad(elem, typed)
		ld.Atomic = true
		ld.Ordering = atomicOrdering(rv.AtomicOrder)
		return ld, nil

	case mir.RvAtomicRmw:
		return lo.lowerAtomicRmw(rv, destLL)

	case mir.RvAtomicCompareExchange:
		return lo.lowerCmpXchg(rv, destLL)

	case mir.RvStaticLoad:
		g := lo.e.staticByName(rv.StaticName)
		if g == nil {
			return nil, codegenError(diag.LLVM001, "%s: load of unknown static %s", lo.fn.Name, rv.StaticName)
		}
		return lo.cur.NewLoad(g.ContentType, g), nil

	case mir.RvStaticRef:
		g := lo.e.staticByName(rv.StaticName)
		if g == nil {
			return nil, codegenError(diag.LLVM001, "%s: ref of unknown static %s", lo.fn.Name, rv.StaticName)
		}
		return g, nil

	default:
		return nil, codegenError(diag.LLVM001, "%s: unsupported rvalue kind %d", lo.fn.Name, rv.Kind)
	}
}

func (lo *funcLowering) lowerLen(p mir.Place) (value.Value, error) {
	addr, ty, err := lo.placeAddr(p)
	if err != nil {
		return nil, err
	}
	if ty == nil {
		return nil, codegenError(diag.LLVM001, "%s: len of untyped place", lo.fn.Name)
	}
	switch ty.Kind {
	case typelayout.TyArray:
		return constant.NewInt(types.I64, int64(ty.Rank)), nil
	case typelayout.TySpan, typelayout.TyReadonlySpan, typelayout.TyVec, typelayout.TyPrimitive:
		// Span/vec/string shims all keep the length in slot 1.
		st := lo.e.tm.valueType(ty)
		zero := constant.NewInt(types.I32, 0)
		one := constant.NewInt(types.I32, 1)
		lenAddr := lo.cur.NewGetElementPtr(st, addr, zero, one)
		return lo.cur.NewLoad(types.I64, lenAddr), nil
	default:
		return nil, codegenError(diag.LLVM001, "%s: len of non-sequence type", lo.fn.Name)
	}
}

func (lo *funcLowering) lowerUnary(rv *mir.Rvalue, destLL types.Type) (value.Value, error) {
	x, err := lo.loadOperand(rv.UnArg, destLL)
	if err != nil {
		return nil, err
	}
	switch rv.UnOp {
	case mir.UnNeg:
		if _, ok := x.Type().(*types.FloatType); ok {
			return lo.cur.NewFSub(constant.NewFloat(x.Type().(*types.FloatType), 0), x), nil
		}
		return lo.cur.NewSub(constant.NewInt(intTypeOr(x.Type(), types.I64), 0), x), nil
	case mir.UnNot:
		it := intTypeOr(x.Type(), types.I1)
		return lo.cur.NewXor(x, constant.NewInt(it, -1)), nil
	default:
		return nil, codegenError(diag.LLVM001, "%s: unsupported unary op", lo.fn.Name)
	}
}

func (lo *funcLowering) lowerBinary(rv *mir.Rvalue, destLL types.Type) (value.Value, error) {
	// Comparisons yield i1; pick the operand width from the lhs place
	// type where available, else the destination.
	operandHint := destLL
	if lt := lo.operandTy(rv.Lhs); lt != nil {
		operandHint = lo.e.tm.valueType(lt)
	}
	x, err := lo.loadOperand(rv.Lhs, operandHint)
	if err != nil {
		return nil, err
	}
	y, err := lo.loadOperand(rv.Rhs, x.Type())
	if err != nil {
		return nil, err
	}
	y = lo.coerce(y, x.Type())

	_, isFloat := x.Type().(*types.FloatType)
	signed := signedOperand(lo.operandTy(rv.Lhs))

	switch rv.BinOpKind {
	case mir.BinAdd:
		if isFloat {
			return lo.cur.NewFAdd(x, y), nil
		}
		return lo.cur.NewAdd(x, y), nil
	case mir.BinSub:
		if isFloat {
			return lo.cur.NewFSub(x, y), nil
		}
		return lo.cur.NewSub(x, y), nil
	case mir.BinMul:
		if isFloat {
			return lo.cur.NewFMul(x, y), nil
		}
		return lo.cur.NewMul(x, y), nil
	case mir.BinDiv:
		if isFloat {
			return lo.cur.NewFDiv(x, y), nil
		}
		if signed {
			return lo.cur.NewSDiv(x, y), nil
		}
		return lo.cur.NewUDiv(x, y), nil
	case mir.BinRem:
		if isFloat {
			return lo.cur.NewFRem(x, y), nil
		}
		if signed {
			return lo.cur.NewSRem(x, y), nil
		}
		return lo.cur.NewURem(x, y), nil
	case mir.BinAnd:
		return lo.cur.NewAnd(x, y), nil
	case mir.BinOr:
		return lo.cur.NewOr(x, y), nil
	case mir.BinXor:
		return lo.cur.NewXor(x, y), nil
	case mir.BinShl:
		return lo.cur.NewShl(x, y), nil
	case mir.BinShr:
		if signed {
			return lo.cur.NewAShr(x, y), nil
		}
		return lo.cur.NewLShr(x, y), nil
	case mir.BinEq, mir.BinNe, mir.BinLt, mir.BinLe, mir.BinGt, mir.BinGe:
		if isFloat {
			return lo.cur.NewFCmp(fpred(rv.BinOpKind), x, y), nil
		}
		return lo.cur.NewICmp(ipred(rv.BinOpKind, signed), x, y), nil
	default:
		return nil, codegenError(diag.LLVM001, "%s: unsupported binary op", lo.fn.Name)
	}
}

func signedOperand(t *typelayout.Ty) bool {
	if t == nil || t.Kind != typelayout.TyPrimitive {
		return true
	}
	switch t.Prim {
	case typelayout.PrimU8, typelayout.PrimU16, typelayout.PrimU32,
		typelayout.PrimU64, typelayout.PrimU128, typelayout.PrimBool,
		typelayout.PrimChar:
		return false
	default:
		return true
	}
}

func ipred(op mir.BinOp, signed bool) enum.IPred {
	switch op {
	case mir.BinEq:
		return enum.IPredEQ
	case mir.BinNe:
		return enum.IPredNE
	case mir.BinLt:
		if signed {
			return enum.IPredSLT
		}
		return enum.IPredULT
	case mir.BinLe:
		if signed {
			return enum.IPredSLE
		}
		return enum.IPredULE
	case mir.BinGt:
		if signed {
			return enum.IPredSGT
		}
		return enum.IPredUGT
	default:
		if signed {
			return enum.IPredSGE
		}
		return enum.IPredUGE
	}
}

func fpred(op mir.BinOp) enum.FPred {
	switch op {
	case mir.BinEq:
		return enum.FPredOEQ
	case mir.BinNe:
		return enum.FPredONE
	case mir.BinLt:
		return enum.FPredOLT
	case mir.BinLe:
		return enum.FPredOLE
	case mir.BinGt:
		return enum.FPredOGT
	default:
		return enum.FPredOGE
	}
}

// lowerAggregate builds struct/tuple/array/enum-variant values through a
// scratch alloca, field stores, and a final load.
func (lo *funcLowering) lowerAggregate(rv *mir.Rvalue, destTy *typelayout.Ty, destLL types.Type) (value.Value, error) {
	aggTy := rv.AggType
	if aggTy == nil {
		aggTy = destTy
	}
	ll := lo.e.tm.valueType(aggTy)
	scratch := lo.cur.NewAlloca(ll)
	lo.cur.NewStore(constant.NewZeroInitializer(ll), scratch)
	zero := constant.NewInt(types.I32, 0)

	switch rv.AggKind {
	case mir.AggEnumVariant:
		if aggTy == nil || aggTy.Kind != typelayout.TyNamed {
			return nil, codegenError(diag.LLVM001, "%s: enum aggregate with no named type", lo.fn.Name)
		}
		l := lo.e.m.Layouts.Lookup(aggTy.Name)
		if l == nil {
			return nil, codegenError(diag.LLVM001, "%s: enum aggregate for unknown layout %s", lo.fn.Name, aggTy.Name)
		}
		disc := int64(-1)
		for _, v := range l.Discriminants {
			if v.Name == rv.Variant {
				disc = v.Discriminant
				break
			}
		}
		if disc < 0 {
			return nil, codegenError(diag.LLVM001, "%s: %s has no variant %q", lo.fn.Name, aggTy.Name, rv.Variant)
		}
		discAddr := lo.cur.NewGetElementPtr(ll, scratch, zero, zero)
		lo.cur.NewStore(constant.NewInt(types.I32, disc), discAddr)
		// Variant payload fields copy into the raw payload area.
		if len(rv.AggFields) > 0 {
			one := constant.NewInt(types.I32, 1)
			payloadAddr := lo.cur.NewGetElementPtr(ll, scratch, zero, one)
			for i, f := range rv.AggFields {
				v, err := lo.loadOperand(f, nil)
				if err != nil {
					return nil, err
				}
				typed := lo.cur.NewBitCast(payloadAddr, types.NewPointer(v.Type()))
				at := lo.cur.NewGetElementPtr(v.Type(), typed, constant.NewInt(types.I64, int64(i)))
				lo.cur.NewStore(v, at)
			}
		}
	default:
		for i, f := range rv.AggFields {
			fieldAddr, fieldTy, err := lo.fieldAddrOfAgg(scratch, aggTy, ll, i)
			if err != nil {
				return nil, err
			}
			v, err := lo.loadOperand(f, fieldTy)
			if err != nil {
				return nil, err
			}
			lo.cur.NewStore(lo.coerce(v, fieldTy), fieldAddr)
		}
	}
	return lo.cur.NewLoad(ll, scratch), nil
}

// fieldAddrOfAgg addresses field i of an aggregate under construction.
func (lo *funcLowering) fieldAddrOfAgg(base value.Value, aggTy *typelayout.Ty, ll types.Type, i int) (value.Value, types.Type, error) {
	zero := constant.NewInt(types.I32, 0)
	switch {
	case aggTy != nil && aggTy.Kind == typelayout.TyNamed:
		pos, err := lo.e.tm.fieldPosition(aggTy.Name, i)
		if err != nil {
			return nil, nil, codegenError(diag.LLVM001, "%s: %v", lo.fn.Name, err)
		}
		l := lo.e.m.Layouts.Lookup(aggTy.Name)
		gep := lo.cur.NewGetElementPtr(ll, base, zero, constant.NewInt(types.I32, int64(pos)))
		return gep, lo.e.tm.valueType(l.Fields[i].Type), nil
	case aggTy != nil && aggTy.Kind == typelayout.TyTuple:
		gep := lo.cur.NewGetElementPtr(ll, base, zero, constant.NewInt(types.I32, int64(i)))
		return gep, lo.e.tm.valueType(aggTy.Elems[i]), nil
	case aggTy != nil && aggTy.Kind == typelayout.TyArray:
		gep := lo.cur.NewGetElementPtr(ll, base, constant.NewInt(types.I64, 0), constant.NewInt(types.I64, int64(i)))
		return gep, lo.e.tm.valueType(aggTy.Elem), nil
	default:
		return nil, nil, codegenError(diag.LLVM001, "%s: aggregate of unsupported type", lo.fn.Name)
	}
}

// lowerSpanStackAlloc allocates the span's backing storage on the stack
// and builds the {ptr, len} pair, copying from the source span when one
// is given.
func (lo *funcLowering) lowerSpanStackAlloc(rv *mir.Rvalue) (value.Value, error) {
	length, err := lo.loadOperand(rv.SpanLength, types.I64)
	if err != nil {
		return nil, err
	}
	elemLL := lo.e.tm.valueType(rv.SpanElement)
	buf := lo.cur.NewAlloca(elemLL)
	buf.NElems = lo.coerce(length, types.I64)
	raw := lo.cur.NewBitCast(buf, types.I8Ptr)

	if rv.SpanSource != nil {
		src, err := lo.loadOperand(*rv.SpanSource, lo.e.tm.spanTy)
		if err != nil {
			return nil, err
		}
		srcPtr := lo.cur.NewExtractValue(src, 0)
		memcpyFn, _ := lo.e.declareRuntime(rt.SymMemcpy)
		sizeOfElem := constant.NewInt(types.I64, int64(lo.e.tm.sizeOf(rv.SpanElement)))
		byteLen := lo.cur.NewMul(lo.coerce(length, types.I64), sizeOfElem)
		lo.cur.NewCall(memcpyFn, raw, srcPtr, byteLen)
	}

	scratch := lo.cur.NewAlloca(lo.e.tm.spanTy)
	zero := constant.NewInt(types.I32, 0)
	one := constant.NewInt(types.I32, 1)
	lo.cur.NewStore(raw, lo.cur.NewGetElementPtr(lo.e.tm.spanTy, scratch, zero, zero))
	lo.cur.NewStore(lo.coerce(length, types.I64), lo.cur.NewGetElementPtr(lo.e.tm.spanTy, scratch, zero, one))
	return lo.cur.NewLoad(lo.e.tm.spanTy, scratch), nil
}

func (lo *funcLowering) lowerCast(rv *mir.Rvalue) (value.Value, error) {
	target := lo.e.tm.valueType(rv.CastTarget)
	x, err := lo.loadOperand(rv.CastOperand, lo.e.tm.valueType(rv.CastSource))
	if err != nil {
		return nil, err
	}
	have := x.Type()
	if have.Equal(target) {
		return x, nil
	}

	hi, haveInt := have.(*types.IntType)
	wi, wantInt := target.(*types.IntType)
	_, haveFloat := have.(*types.FloatType)
	wf, wantFloat := target.(*types.FloatType)
	_, havePtr := have.(*types.PointerType)
	_, wantPtr := target.(*types.PointerType)

	switch {
	case haveInt && wantInt:
		if hi.BitSize < wi.BitSize {
			if rv.CastKindTag == mir.CastWiden || !signedOperand(rv.CastSource) {
				return lo.cur.NewZExt(x, wi), nil
			}
			return lo.cur.NewSExt(x, wi), nil
		}
		if hi.BitSize > wi.BitSize {
			return lo.cur.NewTrunc(x, wi), nil
		}
		return x, nil // same width, different nominal type
	case haveInt && wantFloat:
		if signedOperand(rv.CastSource) {
			return lo.cur.NewSIToFP(x, wf), nil
		}
		return lo.cur.NewUIToFP(x, wf), nil
	case haveFloat && wantInt:
		if signedOperand(rv.CastTarget) {
			return lo.cur.NewFPToSI(x, wi), nil
		}
		return lo.cur.NewFPToUI(x, wi), nil
	case haveFloat && wantFloat:
		if have.Equal(types.Float) {
			return lo.cur.NewFPExt(x, wf), nil
		}
		return lo.cur.NewFPTrunc(x, wf), nil
	case havePtr && wantPtr:
		return lo.cur.NewBitCast(x, target), nil
	case havePtr && wantInt:
		return lo.cur.NewPtrToInt(x, wi), nil
	case haveInt && wantPtr:
		return lo.cur.NewIntToPtr(x, target), nil
	default:
		return nil, codegenError(diag.LLVM001, "%s: unsupported cast", lo.fn.Name)
	}
}

// lowerStringInterpolate concatenates segments left to right through the
// runtime string shim: literals become fresh strings, expression
// segments are assumed pre-formatted to string by the front end.
func (lo *funcLowering) lowerStringInterpolate(rv *mir.Rvalue, destLL types.Type) (value.Value, error) {
	strTy := lo.e.tm.stringTy
	acc := lo.cur.NewAlloca(strTy)
	lo.cur.NewStore(constant.NewZeroInitializer(strTy), acc)

	newFn, _ := lo.e.declareRuntime(rt.SymStringNew)
	catFn, _ := lo.e.declareRuntime(rt.SymStringCat)

	for _, seg := range rv.Segments {
		piece := lo.cur.NewAlloca(strTy)
		if seg.IsExpr {
			v, err := lo.loadOperand(seg.Expr, strTy)
			if err != nil {
				return nil, err
			}
			lo.cur.NewStore(lo.coerce(v, strTy), piece)
		} else {
			data, err := lo.e.constValue(mir.ConstOperand{Kind: mir.ConstString, Str: seg.Literal}, nil)
			if err != nil {
				return nil, err
			}
			lo.cur.NewCall(newFn,
				lo.cur.NewBitCast(piece, types.I8Ptr),
				data,
				constant.NewInt(types.I64, int64(len(seg.Literal))))
		}
		lo.cur.NewCall(catFn,
			lo.cur.NewBitCast(acc, types.I8Ptr),
			lo.cur.NewBitCast(acc, types.I8Ptr),
			lo.cur.NewBitCast(piece, types.I8Ptr))
	}
	return lo.cur.NewLoad(strTy, acc), nil
}

func (lo *funcLowering) lowerAtomicRmw(rv *mir.Rvalue, destLL types.Type) (value.Value, error) {
	addr, err := lo.loadOperand(rv.AtomicAddr, types.I8Ptr)
	if err != nil {
		return nil, err
	}
	elem := intTypeOr(destLL, types.I64)
	x, err := lo.loadOperand(rv.AtomicOperand, elem)
	if err != nil {
		return nil, err
	}
	typed := lo.cur.NewBitCast(lo.asI8Ptr(addr), types.NewPointer(elem))
	op := enum.AtomicOpXChg
	if !rv.AtomicExchange {
		switch rv.AtomicRmwOp {
		case mir.BinSub:
			op = enum.AtomicOpSub
		case mir.BinAnd:
			op = enum.AtomicOpAnd
		case mir.BinOr:
			op = enum.AtomicOpOr
		case mir.BinXor:
			op = enum.AtomicOpXor
		default:
			op = enum.AtomicOpAdd
		}
	}
	return lo.cur.NewAtomicRMW(op, typed, lo.coerce(x, elem), atomicOrdering(rv.AtomicOrder)), nil
}

func (lo *funcLowering) lowerCmpXchg(rv *mir.Rvalue, destLL types.Type) (value.Value, error) {
	addr, err := lo.loadOperand(rv.AtomicAddr, types.I8Ptr)
	if err != nil {
		return nil, err
	}
	elem := intTypeOr(destLL, types.I64)
	expected, err := lo.loadOperand(rv.AtomicExpected, elem)
	if err != nil {
		return nil, err
	}
	desired, err := lo.loadOperand(rv.AtomicDesired, elem)
	if err != nil {
		return nil, err
	}
	typed := lo.cur.NewBitCast(lo.asI8Ptr(addr), types.NewPointer(elem))
	pair := lo.cur.NewCmpXchg(typed,
		lo.coerce(expected, elem), lo.coerce(desired, elem),
		atomicOrdering(rv.AtomicSuccess), atomicOrdering(rv.AtomicFailure))
	// The destination receives the loaded value; success lands in element 1
	// of the pair for callers that extract it.
	return lo.cur.NewExtractValue(pair, 0), nil
}

// lowerNumericIntrinsic maps Try* to llvm.*.with.overflow, rotates to
// funnel shifts, and the bit-count kinds to their llvm intrinsics. Try*
// stores the wrapped result through NumOut and yields the success bool.
func (lo *funcLowering) lowerNumericIntrinsic(rv *mir.Rvalue) (value.Value, error) {
	it := numericIntType(rv.NumWidth)
	suffix := "i" + strconv.Itoa(int(it.BitSize))

	loadArg := func(i int) (value.Value, error) {
		if i >= len(rv.NumArgs) {
			return nil, codegenError(diag.LLVM001, "%s: numeric intrinsic missing argument %d", lo.fn.Name, i)
		}
		v, err := lo.loadOperand(rv.NumArgs[i], it)
		if err != nil {
			return nil, err
		}
		return lo.coerce(v, it), nil
	}

	switch rv.NumKind {
	case mir.NumTryAdd, mir.NumTrySub, mir.NumTryMul:
		base := map[mir.NumericIntrinsicKind]string{
			mir.NumTryAdd: "add", mir.NumTrySub: "sub", mir.NumTryMul: "mul",
		}[rv.NumKind]
		sign := "u"
		if rv.NumSigned {
			sign = "s"
		}
		pairTy := types.NewStruct(it, types.I1)
		f := lo.e.declareIntrinsic("llvm."+sign+base+".with.overflow."+suffix, pairTy, it, it)
		x, err := loadArg(0)
		if err != nil {
			return nil, err
		}
		y, err := loadArg(1)
		if err != nil {
			return nil, err
		}
		pair := lo.cur.NewCall(f, x, y)
		if rv.NumOut != nil {
			outAddr, _, err := lo.placeAddr(*rv.NumOut)
			if err != nil {
				return nil, err
			}
			lo.cur.NewStore(lo.cur.NewExtractValue(pair, 0), outAddr)
		}
		overflow := lo.cur.NewExtractValue(pair, 1)
		return lo.cur.NewXor(overflow, constant.NewInt(types.I1, 1)), nil

	case mir.NumRotateLeft, mir.NumRotateRight:
		name := "llvm.fshl." + suffix
		if rv.NumKind == mir.NumRotateRight {
			name = "llvm.fshr." + suffix
		}
		f := lo.e.declareIntrinsic(name, it, it, it, it)
		x, err := loadArg(0)
		if err != nil {
			return nil, err
		}
		amt, err := loadArg(1)
		if err != nil {
			return nil, err
		}
		return lo.cur.NewCall(f, x, x, amt), nil

	case mir.NumLeadingZeros, mir.NumTrailingZeros:
		name := "llvm.ctlz." + suffix
		if rv.NumKind == mir.NumTrailingZeros {
			name = "llvm.cttz." + suffix
		}
		f := lo.e.declareIntrinsic(name, it, it, types.I1)
		x, err := loadArg(0)
		if err != nil {
			return nil, err
		}
		return lo.cur.NewCall(f, x, constant.NewBool(false)), nil

	case mir.NumPopCount:
		f := lo.e.declareIntrinsic("llvm.ctpop."+suffix, it, it)
		x, err := loadArg(0)
		if err != nil {
			return nil, err
		}
		return lo.cur.NewCall(f, x), nil

	default:
		return nil, codegenError(diag.LLVM001, "%s: unsupported numeric intrinsic", lo.fn.Name)
	}
}

// lowerDecimalIntrinsic calls the runtime decimal kernel for the
// operation, passing the rounding-mode and vectorize-hint discriminants.
func (lo *funcLowering) lowerDecimalIntrinsic(rv *mir.Rvalue) (value.Value, error) {
	sym := map[mir.DecimalIntrinsicKind]string{
		mir.DecAdd: rt.SymDecimalAdd,
		mir.DecSub: rt.SymDecimalSub,
		mir.DecMul: rt.SymDecimalMul,
		mir.DecDiv: rt.SymDecimalDiv,
		mir.DecRem: rt.SymDecimalRem,
		mir.DecFma: rt.SymDecimalFma,
	}[rv.DecKind]

	lhs, err := lo.loadOperand(rv.DecLhs, types.I128)
	if err != nil {
		return nil, err
	}
	rhs, err := lo.loadOperand(rv.DecRhs, types.I128)
	if err != nil {
		return nil, err
	}
	rounding, err := lo.loadOperand(rv.DecRounding, types.I32)
	if err != nil {
		return nil, err
	}
	vectorize, err := lo.loadOperand(rv.DecVectorize, types.I32)
	if err != nil {
		return nil, err
	}
	args := []value.Value{lo.coerce(lhs, types.I128), lo.coerce(rhs, types.I128)}
	if rv.DecKind == mir.DecFma {
		if rv.DecAddend == nil {
			return nil, codegenError(diag.LLVM001, "%s: decimal fma without addend", lo.fn.Name)
		}
		addend, err := lo.loadOperand(*rv.DecAddend, types.I128)
		if err != nil {
			return nil, err
		}
		args = append(args, lo.coerce(addend, types.I128))
	}
	args = append(args, lo.coerce(rounding, types.I32), lo.coerce(vectorize, types.I32))
	return lo.runtimeCall(sym, args...)
}

func numericIntType(w mir.NumericWidth) *types.IntType {
	switch w {
	case mir.NumW8:
		return types.I8
	case mir.NumW16:
		return types.I16
	case mir.NumW32:
		return types.I32
	case mir.NumW128:
		return types.I128
	default:
		return types.I64
	}
}


package llvmemit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/chic-lang/chicc-core/internal/diag"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// funcLowering is the per-function lowering state: one alloca per MIR
// local, one ir block per MIR block, plus the mapping between them.
type funcLowering struct {
	e  *Emitter
	fn *mir.MirFunction
	f  *ir.Func

	locals   []value.Value    // alloca slot per LocalID
	localTys []*typelayout.Ty // static type per LocalID
	blocks   []*ir.Block      // ir block per BlockID

	cur *ir.Block
}

// defineFunction attaches a body to a function shell. Extern-bound and
// body-less functions stay declarations (their linkage untouched so they
// render as external declarations); dynamic externs are handled by the
// FFI stub pass instead.
func (e *Emitter) defineFunction(fn *mir.MirFunction) error {
	if fn.Body == nil || (fn.Extern != nil && fn.Extern.Kind != mir.ExternNone) {
		return nil
	}
	f := e.funcs[fn.Name]
	if e.opts.multiversionEligible(fn) {
		return e.defineMultiversion(fn, f)
	}
	f.Linkage = e.linkageFor(fn)
	e.defined[fn.Name] = true
	return e.lowerBody(fn, f)
}

// lowerBody lowers fn's MIR body into f.
func (e *Emitter) lowerBody(fn *mir.MirFunction, f *ir.Func) error {
	lo := &funcLowering{e: e, fn: fn, f: f}

	entry := f.NewBlock("entry")
	lo.cur = entry

	// One alloca per local; params spill into their arg slots so every
	// MIR place is address-based.
	for i, decl := range fn.Body.Locals {
		t := decl.Type
		if t == nil && decl.Kind == mir.LocalReturnSlot {
			t = fn.Sig.Return
		}
		if t == nil && decl.Kind == mir.LocalArg && i-1 < len(fn.Sig.Params) {
			t = fn.Sig.Params[i-1]
		}
		lo.localTys = append(lo.localTys, t)
		slot := entry.NewAlloca(e.tm.valueType(t))
		lo.locals = append(lo.locals, slot)
	}
	for i := 0; i < fn.Body.ArgCount && i < len(f.Params); i++ {
		entry.NewStore(f.Params[i], lo.locals[i+1])
	}

	for range fn.Body.Blocks {
		lo.blocks = append(lo.blocks, f.NewBlock(""))
	}
	entry.NewBr(lo.blocks[0])

	for i := range fn.Body.Blocks {
		lo.cur = lo.blocks[i]
		mb := &fn.Body.Blocks[i]
		for si := range mb.Statements {
			if err := lo.lowerStatement(&mb.Statements[si]); err != nil {
				return err
			}
		}
		if err := lo.lowerTerminator(mb.Terminator); err != nil {
			return err
		}
	}
	return nil
}

// placeAddr computes the address of a place, tracking the static type
// through each projection so struct GEPs resolve field positions.
func (lo *funcLowering) placeAddr(p mir.Place) (value.Value, *typelayout.Ty, error) {
	if int(p.Local) >= len(lo.locals) {
		return nil, nil, codegenError(diag.LLVM001, "%s: place references unknown local %d", lo.fn.Name, p.Local)
	}
	addr := lo.locals[p.Local]
	ty := lo.localTys[p.Local]
	for _, proj := range p.Projections {
		switch proj.Kind {
		case mir.ProjDeref:
			if ty == nil || (ty.Kind != typelayout.TyPointer && ty.Kind != typelayout.TyReference) {
				return nil, nil, codegenError(diag.LLVM001, "%s: deref of non-pointer place", lo.fn.Name)
			}
			addr = lo.cur.NewLoad(lo.e.tm.valueType(ty), addr)
			ty = ty.Elem
		case mir.ProjField, mir.ProjFieldNamed:
			declIdx := proj.Field
			if proj.Kind == mir.ProjFieldNamed {
				idx, err := lo.fieldIndexByName(ty, proj.Name)
				if err != nil {
					return nil, nil, err
				}
				declIdx = idx
			}
			fieldAddr, fieldTy, err := lo.fieldAddr(addr, ty, declIdx)
			if err != nil {
				return nil, nil, err
			}
			addr, ty = fieldAddr, fieldTy
		case mir.ProjIndex, mir.ProjConstantIndex:
			var idx value.Value
			if proj.Kind == mir.ProjIndex {
				idx = lo.cur.NewLoad(lo.e.tm.valueType(lo.localTys[proj.Index]), lo.locals[proj.Index])
			} else {
				idx = constant.NewInt(types.I64, proj.Const)
			}
			elemAddr, elemTy, err := lo.indexAddr(addr, ty, idx)
			if err != nil {
				return nil, nil, err
			}
			addr, ty = elemAddr, elemTy
		}
	}
	return addr, ty, nil
}

func (lo *funcLowering) fieldIndexByName(ty *typelayout.Ty, name string) (int, error) {
	if ty == nil || ty.Kind != typelayout.TyNamed {
		return 0, codegenError(diag.LLVM001, "%s: named-field access on non-named type", lo.fn.Name)
	}
	l := lo.e.m.Layouts.Lookup(ty.Name)
	if l == nil {
		return 0, codegenError(diag.LLVM001, "%s: no layout for %s", lo.fn.Name, ty.Name)
	}
	for i, f := range l.Fields {
		if f.Name == name {
			return i, nil
		}
	}
	return 0, codegenError(diag.LLVM001, "%s: %s has no field %q", lo.fn.Name, ty.Name, name)
}

func (lo *funcLowering) fieldAddr(addr value.Value, ty *typelayout.Ty, declIdx int) (value.Value, *typelayout.Ty, error) {
	zero := constant.NewInt(types.I32, 0)
	switch {
	case ty != nil && ty.Kind == typelayout.TyNamed:
		l := lo.e.m.Layouts.Lookup(ty.Name)
		if l == nil || declIdx >= len(l.Fields) {
			return nil, nil, codegenError(diag.LLVM001, "%s: %s has no field %d", lo.fn.Name, ty.Name, declIdx)
		}
		pos, err := lo.e.tm.fieldPosition(ty.Name, declIdx)
		if err != nil {
			return nil, nil, codegenError(diag.LLVM001, "%s: %v", lo.fn.Name, err)
		}
		st := lo.e.tm.namedType(ty.Name)
		gep := lo.cur.NewGetElementPtr(st, addr, zero, constant.NewInt(types.I32, int64(pos)))
		return gep, l.Fields[declIdx].Type, nil
	case ty != nil && ty.Kind == typelayout.TyTuple:
		if declIdx >= len(ty.Elems) {
			return nil, nil, codegenError(diag.LLVM001, "%s: tuple has no element %d", lo.fn.Name, declIdx)
		}
		st := lo.e.tm.valueType(ty)
		gep := lo.cur.NewGetElementPtr(st, addr, zero, constant.NewInt(types.I32, int64(declIdx)))
		return gep, ty.Elems[declIdx], nil
	default:
		return nil, nil, codegenError(diag.LLVM001, "%s: field access on unsupported type", lo.fn.Name)
	}
}

func (lo *funcLowering) indexAddr(addr value.Value, ty *typelayout.Ty, idx value.Value) (value.Value, *typelayout.Ty, error) {
	if ty == nil {
		return nil, nil, codegenError(diag.LLVM001, "%s: index into untyped place", lo.fn.Name)
	}
	switch ty.Kind {
	case typelayout.TyArray:
		arrTy := lo.e.tm.valueType(ty)
		zero := constant.NewInt(types.I64, 0)
		return lo.cur.NewGetElementPtr(arrTy, addr, zero, idx), ty.Elem, nil
	case typelayout.TySpan, typelayout.TyReadonlySpan, typelayout.TyVec:
		// Data pointer lives in slot 0 of the shim struct.
		st := lo.e.tm.valueType(ty)
		zero := constant.NewInt(types.I32, 0)
		dataPtrAddr := lo.cur.NewGetElementPtr(st, addr, zero, zero)
		raw := lo.cur.NewLoad(types.I8Ptr, dataPtrAddr)
		elemTy := lo.e.tm.valueType(ty.Elem)
		typed := lo.cur.NewBitCast(raw, types.NewPointer(elemTy))
		return lo.cur.NewGetElementPtr(elemTy, typed, idx), ty.Elem, nil
	default:
		return nil, nil, codegenError(diag.LLVM001, "%s: index into non-indexable type", lo.fn.Name)
	}
}

// loadOperand materializes an operand as an SSA value. expect is the
// LLVM type a constant operand should materialize at (constants carry no
// width of their own); nil defers to the operand's own typing.
func (lo *funcLowering) loadOperand(op mir.Operand, expect types.Type) (value.Value, error) {
	switch op.Kind {
	case mir.OpCopy, mir.OpMove:
		addr, ty, err := lo.placeAddr(op.Place)
		if err != nil {
			return nil, err
		}
		return lo.cur.NewLoad(lo.e.tm.valueType(ty), addr), nil
	case mir.OpBorrow:
		addr, _, err := lo.placeAddr(op.Place)
		if err != nil {
			return nil, err
		}
		return addr, nil
	case mir.OpConst:
		c, err := lo.e.constValue(op.Const, expect)
		if err != nil {
			return nil, err
		}
		return c, nil
	case mir.OpMmio:
		addr, err := lo.loadOperand(op.Mmio.Address, types.I64)
		if err != nil {
			return nil, err
		}
		intTy := mmioIntType(op.Mmio.Width)
		ptr := lo.cur.NewIntToPtr(addr, types.NewPointer(intTy))
		ld := lo.cur.NewLoad(intTy, ptr)
		ld.Volatile = true
		return ld, nil
	case mir.OpPending:
		// Diagnosed upstream; materialize a zero so the module stays
		// structurally valid for serialisation (never executed).
		if expect == nil {
			expect = types.I64
		}
		return constant.NewZeroInitializer(expect), nil
	default:
		return nil, codegenError(diag.LLVM001, "%s: unsupported operand kind %d", lo.fn.Name, op.Kind)
	}
}

// operandTy reports the static type of a place-backed operand, nil for
// constants and sentinels.
func (lo *funcLowering) operandTy(op mir.Operand) *typelayout.Ty {
	if op.Kind == mir.OpCopy || op.Kind == mir.OpMove {
		if int(op.Place.Local) < len(lo.localTys) && len(op.Place.Projections) == 0 {
			return lo.localTys[op.Place.Local]
		}
	}
	if op.Kind == mir.OpConst {
		return op.Const.Type
	}
	return nil
}

// constValue lowers a compile-time constant at the expected LLVM type.
func (e *Emitter) constValue(c mir.ConstOperand, expect types.Type) (constant.Constant, error) {
	intType := func() *types.IntType {
		if it, ok := expect.(*types.IntType); ok {
			return it
		}
		return types.I64
	}
	switch c.Kind {
	case mir.ConstUnit:
		return constant.NewZeroInitializer(types.NewStruct()), nil
	case mir.ConstBool:
		if expect == nil {
			expect = types.I1
		}
		v := int64(0)
		if c.Int != 0 {
			v = 1
		}
		return constant.NewInt(intTypeOr(expect, types.I1), v), nil
	case mir.ConstInt, mir.ConstEnumDiscr:
		return constant.NewInt(intType(), c.Int), nil
	case mir.ConstFloat:
		ft, ok := expect.(*types.FloatType)
		if !ok {
			ft = types.Double
		}
		return constant.NewFloat(ft, c.Float), nil
	case mir.ConstString:
		return e.cstring(c.Str), nil
	case mir.ConstStringLitRef:
		if c.LitIdx >= len(e.literals) {
			return nil, codegenError(diag.LLVM001, "string literal index %d out of range", c.LitIdx)
		}
		g := e.literals[c.LitIdx]
		arr := g.Init.(*constant.CharArray)
		zero := constant.NewInt(types.I64, 0)
		return constant.NewGetElementPtr(arr.Typ, g, zero, zero), nil
	case mir.ConstSymbol:
		f, ok := e.funcs[c.Symbol]
		if !ok {
			return nil, codegenError(diag.LLVM001, "referenced symbol %s has no known signature", c.Symbol)
		}
		return funcAsPtr(f), nil
	case mir.ConstZero:
		if expect == nil {
			expect = types.I64
		}
		return constant.NewZeroInitializer(expect), nil
	default:
		return nil, codegenError(diag.LLVM001, "unsupported constant kind %d", c.Kind)
	}
}

func intTypeOr(t types.Type, fallback *types.IntType) *types.IntType {
	if it, ok := t.(*types.IntType); ok {
		return it
	}
	return fallback
}

func mmioIntType(width int) *types.IntType {
	switch width {
	case 1:
		return types.I8
	case 2:
		return types.I16
	case 8:
		return types.I64
	default:
		return types.I32
	}
}

// newBlock appends a fresh ir block; the caller decides when it becomes
// current.
func (lo *funcLowering) newBlock() *ir.Block {
	return lo.f.NewBlock("")
}

func (lo *funcLowering) runtimeCall(symbol string, args ...value.Value) (value.Value, error) {
	f, ok := lo.e.declareRuntime(symbol)
	if !ok {
		return nil, codegenError(diag.LLVM001, "%s: runtime symbol %s has no known signature", lo.fn.Name, symbol)
	}
	return lo.cur.NewCall(f, args...), nil
}

// asI8Ptr coerces v to i8*.
func (lo *funcLowering) asI8Ptr(v value.Value) value.Value {
	t := v.Type()
	if t.Equal(types.I8Ptr) {
		return v
	}
	if _, ok := t.(*types.PointerType); ok {
		return lo.cur.NewBitCast(v, types.I8Ptr)
	}
	if _, ok := t.(*types.IntType); ok {
		return lo.cur.NewIntToPtr(v, types.I8Ptr)
	}
	return lo.cur.NewBitCast(v, types.I8Ptr)
}

func atomicOrdering(o mir.AtomicOrdering) enum.AtomicOrdering {
	switch o {
	case mir.OrderRelaxed:
		return enum.AtomicOrderingMonotonic
	case mir.OrderAcquire:
		return enum.AtomicOrderingAcquire
	case mir.OrderRelease:
		return enum.AtomicOrderingRelease
	case mir.OrderAcqRel:
		return enum.AtomicOrderingAcquireRelease
	default:
		return enum.AtomicOrderingSequentiallyConsistent
	}
}

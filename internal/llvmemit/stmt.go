package llvmemit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/chic-lang/chicc-core/internal/diag"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/rt"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

func (lo *funcLowering) lowerStatement(st *mir.Statement) error {
	switch st.Kind {
	case mir.StmtAssign:
		return lo.lowerAssign(st)

	case mir.StmtStorageLive, mir.StmtStorageDead, mir.StmtRetag,
		mir.StmtEnterUnsafe, mir.StmtExitUnsafe, mir.StmtNop:
		// Liveness and borrow-model bookkeeping carries no machine
		// semantics at this level.
		return nil

	case mir.StmtDrop, mir.StmtDeferDrop:
		return lo.lowerDrop(st)

	case mir.StmtBorrow:
		src, _, err := lo.placeAddr(st.BorrowPlace)
		if err != nil {
			return err
		}
		dest, destTy, err := lo.placeAddr(st.BorrowDest)
		if err != nil {
			return err
		}
		lo.cur.NewStore(lo.coerce(src, lo.e.tm.valueType(destTy)), dest)
		return nil

	case mir.StmtDefaultInit, mir.StmtZeroInit:
		addr, ty, err := lo.placeAddr(st.InitPlace)
		if err != nil {
			return err
		}
		initTy := st.InitType
		if initTy == nil {
			initTy = ty
		}
		lo.cur.NewStore(constant.NewZeroInitializer(lo.e.tm.valueType(initTy)), addr)
		return nil

	case mir.StmtZeroInitRaw:
		ptr, err := lo.loadOperand(st.RawPointer, types.I8Ptr)
		if err != nil {
			return err
		}
		length, err := lo.loadOperand(st.RawLen, types.I64)
		if err != nil {
			return err
		}
		memset := lo.e.declareIntrinsic("llvm.memset.p0i8.i64", types.Void,
			types.I8Ptr, types.I8, types.I64, types.I1)
		lo.cur.NewCall(memset, lo.asI8Ptr(ptr), constant.NewInt(types.I8, 0), length, constant.NewBool(false))
		return nil

	case mir.StmtAtomicStore:
		addr, err := lo.loadOperand(st.AtomicAddr, types.I8Ptr)
		if err != nil {
			return err
		}
		val, err := lo.loadOperand(st.AtomicValue, types.I64)
		if err != nil {
			return err
		}
		typed := lo.cur.NewBitCast(lo.asI8Ptr(addr), types.NewPointer(val.Type()))
		store := lo.cur.NewStore(val, typed)
		store.Atomic = true
		store.Ordering = atomicOrdering(st.AtomicOrder)
		return nil

	case mir.StmtAtomicFence:
		lo.cur.NewFence(atomicOrdering(st.FenceOrder))
		return nil

	case mir.StmtAssert:
		cond, err := lo.loadOperand(st.AssertCond, types.I1)
		if err != nil {
			return err
		}
		ok := lo.newBlock()
		fail := lo.newBlock()
		lo.cur.NewCondBr(cond, ok, fail)
		lo.cur = fail
		if _, err := lo.runtimeCall(rt.SymPanic, constant.NewInt(types.I32, 101)); err != nil {
			return err
		}
		lo.cur.NewUnreachable()
		lo.cur = ok
		return nil

	case mir.StmtMmioStore:
		addr, err := lo.loadOperand(st.MmioAddr, types.I64)
		if err != nil {
			return err
		}
		intTy := mmioIntType(st.MmioWidth)
		val, err := lo.loadOperand(st.MmioValue, intTy)
		if err != nil {
			return err
		}
		ptr := lo.cur.NewIntToPtr(addr, types.NewPointer(intTy))
		store := lo.cur.NewStore(lo.coerce(val, intTy), ptr)
		store.Volatile = true
		return nil

	case mir.StmtStaticStore:
		g := lo.e.staticByName(st.StaticName)
		if g == nil {
			return codegenError(diag.LLVM001, "%s: store to unknown static %s", lo.fn.Name, st.StaticName)
		}
		val, err := lo.loadOperand(st.StaticValue, g.ContentType)
		if err != nil {
			return err
		}
		lo.cur.NewStore(lo.coerce(val, g.ContentType), g)
		return nil

	case mir.StmtInlineAsm:
		return lo.lowerInlineAsm(st)

	case mir.StmtGpuEnqueue, mir.StmtGpuCopy, mir.StmtGpuEvent:
		sym := rt.SymGpuEnqueue
		if st.Kind == mir.StmtGpuCopy {
			sym = rt.SymGpuCopy
		} else if st.Kind == mir.StmtGpuEvent {
			sym = rt.SymGpuEvent
		}
		_, err := lo.runtimeCall(sym, constant.NewNull(types.I8Ptr))
		return err

	default:
		return codegenError(diag.LLVM001, "%s: unsupported statement kind %d", lo.fn.Name, st.Kind)
	}
}

func (lo *funcLowering) lowerAssign(st *mir.Statement) error {
	dest, destTy, err := lo.placeAddr(st.Dest)
	if err != nil {
		return err
	}
	destLL := lo.e.tm.valueType(destTy)
	v, err := lo.lowerRvalue(&st.Rhs, destTy, destLL)
	if err != nil {
		return err
	}
	if v == nil {
		return nil // rvalue wrote through its own out-pointer
	}
	lo.cur.NewStore(lo.coerce(v, destLL), dest)
	return nil
}

// lowerDrop calls the drop glue for the local's static type when it
// requires drop; otherwise the statement is inert.
func (lo *funcLowering) lowerDrop(st *mir.Statement) error {
	ty := st.DropType
	if ty == nil && int(st.Local) < len(lo.localTys) {
		ty = lo.localTys[st.Local]
	}
	name := dropTypeName(ty)
	if name == "" || !lo.e.m.Layouts.TypeRequiresDrop(name) {
		return nil
	}
	symbol := "__cl_drop__" + mangleSymbol(name)
	f, ok := lo.e.funcs[symbol]
	if !ok {
		return codegenError(diag.LLVM001, "%s: drop of %s references missing glue %s", lo.fn.Name, name, symbol)
	}
	addr := lo.locals[st.Local]
	lo.cur.NewCall(f, lo.coerce(addr, f.Params[0].Type()))
	return nil
}

// dropTypeName unwraps pointers to reach the named type a Drop statement
// targets.
func dropTypeName(ty *typelayout.Ty) string {
	for ty != nil && (ty.Kind == typelayout.TyPointer || ty.Kind == typelayout.TyReference) {
		ty = ty.Elem
	}
	if ty != nil && ty.Kind == typelayout.TyNamed {
		return ty.Name
	}
	return ""
}

func (lo *funcLowering) lowerInlineAsm(st *mir.Statement) error {
	params := make([]types.Type, len(st.AsmInputs))
	args := make([]value.Value, len(st.AsmInputs))
	for i, in := range st.AsmInputs {
		v, err := lo.loadOperand(in, types.I64)
		if err != nil {
			return err
		}
		args[i] = v
		params[i] = v.Type()
	}
	sig := types.NewFunc(types.Void, params...)
	asm := ir.NewInlineAsm(types.NewPointer(sig), st.AsmTemplate, asmConstraint(len(st.AsmInputs)))
	asm.SideEffect = true
	lo.cur.NewCall(asm, args...)
	return nil
}

// asmConstraint builds an "r,r,..." input constraint list.
func asmConstraint(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "r"
	}
	return s
}

// staticByName finds a module static's global by symbol.
func (e *Emitter) staticByName(name string) *ir.Global {
	for _, g := range e.mod.Globals {
		if g.Name() == name {
			return g
		}
	}
	return nil
}

// coerce inserts the cast needed to store v at type want; same-type
// values pass through.
func (lo *funcLowering) coerce(v value.Value, want types.Type) value.Value {
	have := v.Type()
	if have.Equal(want) {
		return v
	}
	_, havePtr := have.(*types.PointerType)
	_, wantPtr := want.(*types.PointerType)
	switch {
	case havePtr && wantPtr:
		return lo.cur.NewBitCast(v, want)
	case havePtr:
		if it, ok := want.(*types.IntType); ok {
			return lo.cur.NewPtrToInt(v, it)
		}
	case wantPtr:
		if _, ok := have.(*types.IntType); ok {
			return lo.cur.NewIntToPtr(v, want)
		}
	default:
		hi, hok := have.(*types.IntType)
		wi, wok := want.(*types.IntType)
		if hok && wok {
			if hi.BitSize < wi.BitSize {
				return lo.cur.NewZExt(v, wi)
			}
			return lo.cur.NewTrunc(v, wi)
		}
	}
	return v
}

package llvmemit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/chic-lang/chicc-core/internal/diag"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/rt"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

func (lo *funcLowering) lowerTerminator(t mir.Terminator) error {
	switch term := t.(type) {
	case mir.Goto:
		lo.cur.NewBr(lo.blocks[term.Target])
		return nil

	case mir.Return:
		retTy := lo.e.tm.returnType(lo.fn.Sig.Return)
		if retTy.Equal(types.Void) {
			lo.cur.NewRet(nil)
			return nil
		}
		v := lo.cur.NewLoad(retTy, lo.locals[0])
		lo.cur.NewRet(v)
		return nil

	case mir.SwitchInt:
		disc, err := lo.loadOperand(term.Discriminant, nil)
		if err != nil {
			return err
		}
		it := intTypeOr(disc.Type(), types.I64)
		cases := make([]*ir.Case, len(term.Arms))
		for i, arm := range term.Arms {
			cases[i] = ir.NewCase(constant.NewInt(it, arm.Value), lo.blocks[arm.Target])
		}
		lo.cur.NewSwitch(disc, lo.blocks[term.Otherwise], cases...)
		return nil

	case mir.Match:
		return lo.lowerMatch(term)

	case mir.Call:
		return lo.lowerCall(term)

	case mir.Yield:
		if _, err := lo.runtimeCall(rt.SymYield); err != nil {
			return err
		}
		lo.cur.NewBr(lo.blocks[term.Resume])
		return nil

	case mir.Await:
		futAddr, futTy, err := lo.placeAddr(term.Future)
		if err != nil {
			return err
		}
		fut := lo.cur.NewLoad(lo.e.tm.valueType(futTy), futAddr)
		destAddr, _, err := lo.placeAddr(term.Destination)
		if err != nil {
			return err
		}
		if _, err := lo.runtimeCall(rt.SymAwaitBlocking, lo.asI8Ptr(fut), lo.asI8Ptr(destAddr)); err != nil {
			return err
		}
		lo.cur.NewBr(lo.blocks[term.Resume])
		return nil

	case mir.Throw:
		payload, err := lo.loadOperand(term.Payload, types.I8Ptr)
		if err != nil {
			return err
		}
		if _, err := lo.runtimeCall(rt.SymThrow, lo.asI8Ptr(payload), constant.NewInt(types.I64, int64(term.TypeID))); err != nil {
			return err
		}
		lo.cur.NewBr(lo.blocks[term.Unwind])
		return nil

	case mir.Panic:
		if _, err := lo.runtimeCall(rt.SymPanic, constant.NewInt(types.I32, int64(term.Code))); err != nil {
			return err
		}
		lo.cur.NewUnreachable()
		return nil

	case mir.Unreachable:
		lo.cur.NewUnreachable()
		return nil

	default:
		return codegenError(diag.LLVM001, "%s: unsupported terminator %T", lo.fn.Name, t)
	}
}

// lowerMatch switches on the enum discriminant at slot 0 of the
// scrutinee. Payload bindings were projected by the front end; the
// terminator itself only dispatches.
func (lo *funcLowering) lowerMatch(term mir.Match) error {
	addr, ty, err := lo.placeAddr(term.Scrutinee)
	if err != nil {
		return err
	}
	if ty == nil || ty.Kind != typelayout.TyNamed {
		return codegenError(diag.LLVM001, "%s: match on non-enum place", lo.fn.Name)
	}
	l := lo.e.m.Layouts.Lookup(ty.Name)
	if l == nil || l.Kind != typelayout.LayoutEnum {
		return codegenError(diag.LLVM001, "%s: match scrutinee %s is not an enum", lo.fn.Name, ty.Name)
	}
	st := lo.e.tm.namedType(ty.Name)
	zero := constant.NewInt(types.I32, 0)
	discAddr := lo.cur.NewGetElementPtr(st, addr, zero, zero)
	disc := lo.cur.NewLoad(types.I32, discAddr)

	discOf := func(variant string) (int64, bool) {
		for _, v := range l.Discriminants {
			if v.Name == variant {
				return v.Discriminant, true
			}
		}
		return 0, false
	}

	var defaultBlk *ir.Block
	if term.Otherwise != nil {
		defaultBlk = lo.blocks[*term.Otherwise]
	} else {
		defaultBlk = lo.newBlock()
		defaultBlk.NewUnreachable()
	}
	cases := make([]*ir.Case, 0, len(term.Arms))
	for _, arm := range term.Arms {
		d, ok := discOf(arm.Variant)
		if !ok {
			return codegenError(diag.LLVM001, "%s: %s has no variant %q", lo.fn.Name, ty.Name, arm.Variant)
		}
		cases = append(cases, ir.NewCase(constant.NewInt(types.I32, d), lo.blocks[arm.Target]))
	}
	lo.cur.NewSwitch(disc, defaultBlk, cases...)
	return nil
}

// lowerCall lowers a Call terminator: direct for symbol callees,
// indirect through a loaded function pointer otherwise, with the
// pending-exception check branching to the unwind block.
func (lo *funcLowering) lowerCall(term mir.Call) error {
	var callee value.Value
	var paramTys []types.Type
	var retTy types.Type

	if term.Func.Kind == mir.OpConst && term.Func.Const.Kind == mir.ConstSymbol {
		symbol := term.Func.Const.Symbol
		f, ok := lo.e.funcs[symbol]
		if !ok {
			if rf, rok := lo.e.declareRuntime(symbol); rok {
				f = rf
			} else {
				return codegenError(diag.LLVM001, "%s: call references symbol %s with no known signature", lo.fn.Name, symbol)
			}
		}
		callee = f
		for _, p := range f.Params {
			paramTys = append(paramTys, p.Type())
		}
		retTy = f.Sig.RetType
	} else {
		fnVal, err := lo.loadOperand(term.Func, types.I8Ptr)
		if err != nil {
			return err
		}
		fnTy := lo.calleeType(term)
		callee = lo.cur.NewBitCast(lo.asI8Ptr(fnVal), types.NewPointer(fnTy))
		paramTys = fnTy.Params
		retTy = fnTy.RetType
	}

	args := make([]value.Value, len(term.Args))
	for i, a := range term.Args {
		var hint types.Type
		if i < len(paramTys) {
			hint = paramTys[i]
		}
		v, err := lo.loadOperand(a, hint)
		if err != nil {
			return err
		}
		if hint != nil {
			v = lo.coerce(v, hint)
		}
		args[i] = v
	}

	result := lo.cur.NewCall(callee, args...)
	if retTy != nil && !retTy.Equal(types.Void) {
		destAddr, destTy, err := lo.placeAddr(term.Destination)
		if err != nil {
			return err
		}
		lo.cur.NewStore(lo.coerce(result, lo.e.tm.valueType(destTy)), destAddr)
	}

	if term.Unwind != nil {
		pending, err := lo.runtimeCall(rt.SymHasPendingException)
		if err != nil {
			return err
		}
		cond := lo.cur.NewICmp(enum.IPredNE, pending, constant.NewInt(types.I32, 0))
		lo.cur.NewCondBr(cond, lo.blocks[*term.Unwind], lo.blocks[term.Target])
		return nil
	}
	lo.cur.NewBr(lo.blocks[term.Target])
	return nil
}

// calleeType reconstructs an indirect callee's function type from the
// call site's operand shapes.
func (lo *funcLowering) calleeType(term mir.Call) *types.FuncType {
	// Prefer the static function type when the operand's place carries one.
	if t := lo.operandTy(term.Func); t != nil && t.Kind == typelayout.TyFunction {
		pt := lo.e.tm.valueType(t).(*types.PointerType)
		if ft, ok := pt.ElemType.(*types.FuncType); ok {
			return ft
		}
	}
	params := make([]types.Type, len(term.Args))
	for i, a := range term.Args {
		if t := lo.operandTy(a); t != nil {
			params[i] = lo.e.tm.valueType(t)
		} else {
			params[i] = types.I64
		}
	}
	var ret types.Type = types.Void
	if int(term.Destination.Local) < len(lo.localTys) {
		if dt := lo.localTys[term.Destination.Local]; dt != nil {
			ret = lo.e.tm.returnType(dt)
		}
	}
	return types.NewFunc(ret, params...)
}

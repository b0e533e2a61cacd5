package monomorphize

import (
	"github.com/chic-lang/chicc-core/internal/ast"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// synthesizeHash builds __cl_hash__T(value: ptr<T>) -> u64 when the target
// symbol doesn't already exist. If T carries GetHashCode, the body calls
// it (it returns int) and casts the result through uint to u64. For
// intrinsic primitives: integers cast through the matching unsigned width
// to u64; bool switches on the byte to yield 0 or 1; char casts the
// codepoint to u64. Floats, decimals, and strings are rejected — no
// intrinsic glue is emitted for them.
func synthesizeHash(m *mir.MirModule, name string) (mir.SynthesizedGlue, bool) {
	symbol := glueSymbol(mir.GlueHash, name)
	if m.Has(symbol) {
		return mir.SynthesizedGlue{}, false
	}

	userMethod := name + "::GetHashCode"
	hasUser := m.Has(userMethod)
	prim, isPrim := typelayout.PrimitiveByName(name)
	if !hasUser {
		if !isPrim || !hashablePrimitive(prim) {
			return mir.SynthesizedGlue{}, false
		}
	}

	u64 := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimU64}
	fn := &mir.MirFunction{
		Name: symbol,
		Kind: mir.FuncRegular,
		Sig: mir.FuncSignature{
			Params: []*typelayout.Ty{ptrTo(name)},
			Return: u64,
			ABITag: mir.ABIExternC,
		},
	}
	fn.Body = mir.NewBody(u64, 1)
	b := mir.NewBodyBuilder(m, fn)
	span := ast.Span{Start: ast.Synthetic, End: ast.Synthetic}

	value := mir.Place{Local: 1}
	ret := mir.Place{Local: 0}

	switch {
	case hasUser:
		i32 := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimI32}
		u32 := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimU32}
		hashTmp := b.CreateTemp(i32, span)
		hashPlace := mir.Place{Local: hashTmp}
		b.PushStatement(mir.StorageLive(hashTmp), span)
		next := fn.Body.NewBlock()
		fn.Body.SetTerminator(mir.Call{
			Func:        mir.Const(mir.ConstOperand{Kind: mir.ConstSymbol, Symbol: userMethod}),
			Args:        []mir.Operand{mir.Copy(value.Deref())},
			Destination: hashPlace,
			Target:      next,
			Dispatch:    mir.DispatchStatic,
		})
		fn.Body.SetCurrentBlock(next)
		// int -> uint -> u64: the intermediate unsigned cast pins the sign
		// extension behaviour (negative hash codes zero-extend, not sign-extend).
		wideTmp := b.CreateTemp(u32, span)
		widePlace := mir.Place{Local: wideTmp}
		b.PushStatement(mir.Assign(widePlace, mir.Rvalue{
			Kind: mir.RvCast, CastKindTag: mir.CastBitwise,
			CastOperand: mir.Copy(hashPlace), CastSource: i32, CastTarget: u32,
		}), span)
		b.PushStatement(mir.Assign(ret, mir.Rvalue{
			Kind: mir.RvCast, CastKindTag: mir.CastWiden,
			CastOperand: mir.Copy(widePlace), CastSource: u32, CastTarget: u64,
		}), span)
		fn.Body.SetTerminator(mir.Return{})

	case prim == typelayout.PrimBool:
		zeroBlk := fn.Body.NewBlock()
		oneBlk := fn.Body.NewBlock()
		fn.Body.SetTerminator(mir.SwitchInt{
			Discriminant: mir.Copy(value.Deref()),
			Arms:         []mir.SwitchIntArm{{Value: 0, Target: zeroBlk}},
			Otherwise:    oneBlk,
		})
		fn.Body.SetCurrentBlock(zeroBlk)
		b.PushStatement(mir.Assign(ret, mir.UseRvalue(mir.Const(mir.ConstOperand{Kind: mir.ConstInt, Int: 0, Type: u64}))), span)
		fn.Body.SetTerminator(mir.Return{})
		fn.Body.SetCurrentBlock(oneBlk)
		b.PushStatement(mir.Assign(ret, mir.UseRvalue(mir.Const(mir.ConstOperand{Kind: mir.ConstInt, Int: 1, Type: u64}))), span)
		fn.Body.SetTerminator(mir.Return{})

	default:
		// Integers cast through the matching unsigned width; char casts its
		// codepoint (already unsigned 32-bit) straight to u64.
		srcTy := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: prim}
		unsignedPrim, needsReinterpret := unsignedCounterpart(prim)
		from := srcTy
		operand := mir.Copy(value.Deref())
		if needsReinterpret {
			uTy := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: unsignedPrim}
			reTmp := b.CreateTemp(uTy, span)
			rePlace := mir.Place{Local: reTmp}
			b.PushStatement(mir.Assign(rePlace, mir.Rvalue{
				Kind: mir.RvCast, CastKindTag: mir.CastBitwise,
				CastOperand: operand, CastSource: srcTy, CastTarget: uTy,
			}), span)
			from = uTy
			operand = mir.Copy(rePlace)
		}
		b.PushStatement(mir.Assign(ret, mir.Rvalue{
			Kind: mir.RvCast, CastKindTag: mir.CastWiden,
			CastOperand: operand, CastSource: from, CastTarget: u64,
		}), span)
		fn.Body.SetTerminator(mir.Return{})
	}

	idx := m.AddFunction(fn)
	record(m, mir.GlueHash, name, symbol, idx)
	return m.GlueEntries[len(m.GlueEntries)-1], true
}

// hashablePrimitive reports whether intrinsic hash glue exists for p.
// Floats, decimals, and strings have no intrinsic glue.
func hashablePrimitive(p typelayout.Primitive) bool {
	switch p {
	case typelayout.PrimF32, typelayout.PrimF64, typelayout.PrimDecimal,
		typelayout.PrimString, typelayout.PrimStr, typelayout.PrimUnit:
		return false
	default:
		return true
	}
}

// unsignedCounterpart maps a signed integer primitive to the unsigned
// primitive of the same width. Unsigned inputs (and char) need no
// reinterpret step before widening.
func unsignedCounterpart(p typelayout.Primitive) (typelayout.Primitive, bool) {
	switch p {
	case typelayout.PrimI8:
		return typelayout.PrimU8, true
	case typelayout.PrimI16:
		return typelayout.PrimU16, true
	case typelayout.PrimI32:
		return typelayout.PrimU32, true
	case typelayout.PrimI64:
		return typelayout.PrimU64, true
	case typelayout.PrimI128:
		return typelayout.PrimU128, true
	default:
		return p, false
	}
}

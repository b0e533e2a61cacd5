package monomorphize

import (
	"github.com/chic-lang/chicc-core/internal/ast"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// synthesizeEq builds __cl_eq__T(left: ptr<T>, right: ptr<T>) -> i32 when
// the target symbol doesn't already exist. If T carries op_Equality, the
// body calls it and returns 1/0 via a SwitchInt. If T is an enum with no
// op_Equality, the body compares the two discriminants directly with
// BinOp::Eq.
func synthesizeEq(m *mir.MirModule, name string) (mir.SynthesizedGlue, bool) {
	symbol := glueSymbol(mir.GlueEq, name)
	if m.Has(symbol) {
		return mir.SynthesizedGlue{}, false
	}
	layout := m.Layouts.Lookup(name)

	i32 := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimI32}
	fn := &mir.MirFunction{
		Name: symbol,
		Kind: mir.FuncRegular,
		Sig: mir.FuncSignature{
			Params: []*typelayout.Ty{ptrTo(name), ptrTo(name)},
			Return: i32,
			ABITag: mir.ABIExternC,
		},
	}
	fn.Body = mir.NewBody(i32, 2)
	b := mir.NewBodyBuilder(m, fn)
	span := ast.Span{Start: ast.Synthetic, End: ast.Synthetic}

	left := mir.Place{Local: 1}
	right := mir.Place{Local: 2}

	if userMethod := name + "::op_Equality"; m.Has(userMethod) {
		// left/right are ptr<T>; op_Equality takes T by value, so deref first.
		dest := b.CreateTemp(&typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimBool}, span)
		destPlace := mir.Place{Local: dest}
		next := fn.Body.NewBlock()
		fn.Body.SetTerminator(mir.Call{
			Func:        mir.Const(mir.ConstOperand{Kind: mir.ConstSymbol, Symbol: userMethod}),
			Args:        []mir.Operand{mir.Copy(left.Deref()), mir.Copy(right.Deref())},
			Destination: destPlace,
			Target:      next,
			Dispatch:    mir.DispatchStatic,
		})
		fn.Body.SetCurrentBlock(next)
		trueBlk := fn.Body.NewBlock()
		falseBlk := fn.Body.NewBlock()
		fn.Body.SetTerminator(mir.SwitchInt{
			Discriminant: mir.Copy(destPlace),
			Arms:         []mir.SwitchIntArm{{Value: 1, Target: trueBlk}},
			Otherwise:    falseBlk,
		})
		fn.Body.SetCurrentBlock(trueBlk)
		b.PushStatement(mir.Assign(mir.Place{Local: 0}, mir.UseRvalue(mir.Const(mir.ConstOperand{Kind: mir.ConstInt, Int: 1}))), span)
		fn.Body.SetTerminator(mir.Return{})
		fn.Body.SetCurrentBlock(falseBlk)
		b.PushStatement(mir.Assign(mir.Place{Local: 0}, mir.UseRvalue(mir.Const(mir.ConstOperand{Kind: mir.ConstInt, Int: 0}))), span)
		fn.Body.SetTerminator(mir.Return{})
	} else if layout != nil && layout.Kind == typelayout.LayoutEnum {
		eqTmp := b.CreateTemp(&typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimBool}, span)
		eqPlace := mir.Place{Local: eqTmp}
		b.PushStatement(mir.Assign(eqPlace, mir.Rvalue{
			Kind: mir.RvBinary, BinOpKind: mir.BinEq,
			Lhs: mir.Copy(left.Deref()), Rhs: mir.Copy(right.Deref()),
		}), span)
		trueBlk := fn.Body.NewBlock()
		falseBlk := fn.Body.NewBlock()
		fn.Body.SetTerminator(mir.SwitchInt{
			Discriminant: mir.Copy(eqPlace),
			Arms:         []mir.SwitchIntArm{{Value: 1, Target: trueBlk}},
			Otherwise:    falseBlk,
		})
		fn.Body.SetCurrentBlock(trueBlk)
		b.PushStatement(mir.Assign(mir.Place{Local: 0}, mir.UseRvalue(mir.Const(mir.ConstOperand{Kind: mir.ConstInt, Int: 1}))), span)
		fn.Body.SetTerminator(mir.Return{})
		fn.Body.SetCurrentBlock(falseBlk)
		b.PushStatement(mir.Assign(mir.Place{Local: 0}, mir.UseRvalue(mir.Const(mir.ConstOperand{Kind: mir.ConstInt, Int: 0}))), span)
		fn.Body.SetTerminator(mir.Return{})
	} else {
		// Intrinsic primitive fallback: byte-wise equality via BinOp::Eq on
		// the dereferenced values, same shape as the enum case.
		eqTmp := b.CreateTemp(&typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimBool}, span)
		eqPlace := mir.Place{Local: eqTmp}
		b.PushStatement(mir.Assign(eqPlace, mir.Rvalue{
			Kind: mir.RvBinary, BinOpKind: mir.BinEq,
			Lhs: mir.Copy(left.Deref()), Rhs: mir.Copy(right.Deref()),
		}), span)
		trueBlk := fn.Body.NewBlock()
		falseBlk := fn.Body.NewBlock()
		fn.Body.SetTerminator(mir.SwitchInt{
			Discriminant: mir.Copy(eqPlace),
			Arms:         []mir.SwitchIntArm{{Value: 1, Target: trueBlk}},
			Otherwise:    falseBlk,
		})
		fn.Body.SetCurrentBlock(trueBlk)
		b.PushStatement(mir.Assign(mir.Place{Local: 0}, mir.UseRvalue(mir.Const(mir.ConstOperand{Kind: mir.ConstInt, Int: 1}))), span)
		fn.Body.SetTerminator(mir.Return{})
		fn.Body.SetCurrentBlock(falseBlk)
		b.PushStatement(mir.Assign(mir.Place{Local: 0}, mir.UseRvalue(mir.Const(mir.ConstOperand{Kind: mir.ConstInt, Int: 0}))), span)
		fn.Body.SetTerminator(mir.Return{})
	}

	idx := m.AddFunction(fn)
	record(m, mir.GlueEq, name, symbol, idx)
	return m.GlueEntries[len(m.GlueEntries)-1], true
}

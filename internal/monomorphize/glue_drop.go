package monomorphize

import (
	"github.com/chic-lang/chicc-core/internal/ast"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/rt"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// synthesizeDrop builds __cl_drop__T(value: ptr<T>) -> () when the target
// symbol doesn't already exist. The body calls the type's dispose symbol
// (if declared) and then drops every field whose type requires drop, in
// declaration order, recursing through tuples, fixed-rank arrays, vecs,
// and spans the same way the registry's drop predicate does — candidate
// selection and the emitted body must agree on what gets dropped.
func synthesizeDrop(m *mir.MirModule, name string) (mir.SynthesizedGlue, bool) {
	symbol := glueSymbol(mir.GlueDrop, name)
	if m.Has(symbol) {
		return mir.SynthesizedGlue{}, false
	}
	layout := m.Layouts.Lookup(name)

	fn := &mir.MirFunction{
		Name: symbol,
		Kind: mir.FuncRegular,
		Sig: mir.FuncSignature{
			Params: []*typelayout.Ty{ptrTo(name)},
			Return: nil,
			ABITag: mir.ABIExternC,
		},
	}
	fn.Body = mir.NewBody(nil, 1)
	fn.Body.Locals[1].Type = ptrTo(name)
	b := mir.NewBodyBuilder(m, fn)
	span := ast.Span{Start: ast.Synthetic, End: ast.Synthetic}

	value := mir.Place{Local: 1}

	if layout != nil && layout.DisposeSym != "" {
		next := fn.Body.NewBlock()
		fn.Body.SetTerminator(mir.Call{
			Func:        mir.Const(mir.ConstOperand{Kind: mir.ConstSymbol, Symbol: layout.DisposeSym}),
			Args:        []mir.Operand{mir.Copy(value.Deref())},
			Destination: mir.Place{Local: 0}, // dispose returns unit
			Target:      next,
			Dispatch:    mir.DispatchStatic,
		})
		fn.Body.SetCurrentBlock(next)
	}

	if layout != nil {
		for i, f := range layout.Fields {
			if !tyNeedsDrop(m, f.Type) {
				continue
			}
			emitDropForPlace(m, b, value.Deref().Field(i), f.Type, span)
		}
	}

	fn.Body.SetTerminator(mir.Return{})

	idx := m.AddFunction(fn)
	record(m, mir.GlueDrop, name, symbol, idx)
	return m.GlueEntries[len(m.GlueEntries)-1], true
}

// tyNeedsDrop mirrors the registry's recursive drop rule over the same
// type shapes, so the glue body drops exactly what AnalyseModule flagged.
func tyNeedsDrop(m *mir.MirModule, t *typelayout.Ty) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case typelayout.TyNamed:
		return m.Layouts.TypeRequiresDrop(t.Name)
	case typelayout.TyArray, typelayout.TyVec, typelayout.TySpan:
		return tyNeedsDrop(m, t.Elem)
	case typelayout.TyTuple:
		for _, e := range t.Elems {
			if tyNeedsDrop(m, e) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// emitDropForPlace appends the statements and blocks dropping one place
// of type t: named types call their glue symbol, tuples and fixed-rank
// arrays recurse element by element, vecs hand the header to the runtime
// vec shim (which dispatches through its stored drop_fn), and spans loop
// over their runtime length.
func emitDropForPlace(m *mir.MirModule, b *mir.BodyBuilder, place mir.Place, t *typelayout.Ty, span ast.Span) {
	switch t.Kind {
	case typelayout.TyNamed:
		emitDropCall(b, glueSymbol(mir.GlueDrop, t.Name), place)
	case typelayout.TyTuple:
		for i, e := range t.Elems {
			if tyNeedsDrop(m, e) {
				emitDropForPlace(m, b, place.Field(i), e, span)
			}
		}
	case typelayout.TyArray:
		for i := 0; i < t.Rank; i++ {
			emitDropForPlace(m, b, place.ConstIndex(int64(i)), t.Elem, span)
		}
	case typelayout.TyVec:
		emitDropCall(b, rt.SymVecDrop, place)
	case typelayout.TySpan:
		emitSpanDropLoop(m, b, place, t.Elem, span)
	}
}

// emitDropCall closes the current block with a call to symbol taking a
// mutable borrow of place, continuing in a fresh block.
func emitDropCall(b *mir.BodyBuilder, symbol string, place mir.Place) {
	next := b.Body.NewBlock()
	b.Body.SetTerminator(mir.Call{
		Func:        mir.Const(mir.ConstOperand{Kind: mir.ConstSymbol, Symbol: symbol}),
		Args:        []mir.Operand{{Kind: mir.OpBorrow, Borrow: mir.BorrowMutable, Place: place}},
		Destination: mir.Place{Local: 0},
		Target:      next,
		Dispatch:    mir.DispatchStatic,
	})
	b.Body.SetCurrentBlock(next)
}

// emitSpanDropLoop drops every element of a span whose length is only
// known at run time: idx = 0; while idx < len(span) { drop span[idx];
// idx++ }.
func emitSpanDropLoop(m *mir.MirModule, b *mir.BodyBuilder, place mir.Place, elem *typelayout.Ty, span ast.Span) {
	u64 := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimU64}
	boolTy := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimBool}

	idx := b.CreateTemp(u64, span)
	length := b.CreateTemp(u64, span)
	cond := b.CreateTemp(boolTy, span)
	idxPlace := mir.Place{Local: idx}
	lenPlace := mir.Place{Local: length}
	condPlace := mir.Place{Local: cond}

	b.PushStatement(mir.StorageLive(idx), span)
	b.PushStatement(mir.Assign(idxPlace, mir.UseRvalue(mir.Const(mir.ConstOperand{Kind: mir.ConstInt, Int: 0, Type: u64}))), span)

	head := b.Body.NewBlock()
	body := b.Body.NewBlock()
	exit := b.Body.NewBlock()
	b.Body.SetTerminator(mir.Goto{Target: head})

	b.Body.SetCurrentBlock(head)
	b.PushStatement(mir.Assign(lenPlace, mir.Rvalue{Kind: mir.RvLen, LenOf: place}), span)
	b.PushStatement(mir.Assign(condPlace, mir.Rvalue{
		Kind: mir.RvBinary, BinOpKind: mir.BinLt,
		Lhs: mir.Copy(idxPlace), Rhs: mir.Copy(lenPlace),
	}), span)
	b.Body.SetTerminator(mir.SwitchInt{
		Discriminant: mir.Copy(condPlace),
		Arms:         []mir.SwitchIntArm{{Value: 1, Target: body}},
		Otherwise:    exit,
	})

	b.Body.SetCurrentBlock(body)
	emitDropForPlace(m, b, place.Index(idx), elem, span)
	b.PushStatement(mir.Assign(idxPlace, mir.Rvalue{
		Kind: mir.RvBinary, BinOpKind: mir.BinAdd,
		Lhs: mir.Copy(idxPlace), Rhs: mir.Const(mir.ConstOperand{Kind: mir.ConstInt, Int: 1, Type: u64}),
	}), span)
	b.Body.SetTerminator(mir.Goto{Target: head})

	b.Body.SetCurrentBlock(exit)
}

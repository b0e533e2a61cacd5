package monomorphize

import (
	"github.com/chic-lang/chicc-core/internal/ast"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// synthesizeClone builds __cl_clone__T(dest: ptr<T>, src: ptr<T>) -> ()
// when the target symbol doesn't already exist. The body calls
// T::Clone::Clone(*src) into a temp, then assigns *dest = move(temp).
func synthesizeClone(m *mir.MirModule, name string) (mir.SynthesizedGlue, bool) {
	symbol := glueSymbol(mir.GlueClone, name)
	if m.Has(symbol) {
		return mir.SynthesizedGlue{}, false
	}
	userMethod := name + "::Clone::Clone"
	if !m.Has(userMethod) {
		// AnalyseModule only nominates types whose Clone::Clone exists, so
		// this is unreachable from the normal pipeline; a direct caller
		// gets a clean refusal instead of glue with a dangling callee.
		return mir.SynthesizedGlue{}, false
	}

	fn := &mir.MirFunction{
		Name: symbol,
		Kind: mir.FuncRegular,
		Sig: mir.FuncSignature{
			Params: []*typelayout.Ty{ptrTo(name), ptrTo(name)},
			Return: nil,
			ABITag: mir.ABIExternC,
		},
	}
	fn.Body = mir.NewBody(nil, 2)
	b := mir.NewBodyBuilder(m, fn)
	span := ast.Span{Start: ast.Synthetic, End: ast.Synthetic}

	dest := mir.Place{Local: 1}
	src := mir.Place{Local: 2}

	tmp := b.CreateTemp(&typelayout.Ty{Kind: typelayout.TyNamed, Name: name}, span)
	tmpPlace := mir.Place{Local: tmp}
	b.PushStatement(mir.StorageLive(tmp), span)
	next := fn.Body.NewBlock()
	fn.Body.SetTerminator(mir.Call{
		Func:        mir.Const(mir.ConstOperand{Kind: mir.ConstSymbol, Symbol: userMethod}),
		Args:        []mir.Operand{mir.Copy(src.Deref())},
		Destination: tmpPlace,
		Target:      next,
		Dispatch:    mir.DispatchStatic,
	})
	fn.Body.SetCurrentBlock(next)
	b.PushStatement(mir.Assign(dest.Deref(), mir.UseRvalue(mir.Move(tmpPlace))), span)
	b.EmitStorageDead(tmp, span)
	fn.Body.SetTerminator(mir.Return{})

	idx := m.AddFunction(fn)
	record(m, mir.GlueClone, name, symbol, idx)
	return m.GlueEntries[len(m.GlueEntries)-1], true
}

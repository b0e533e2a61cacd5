package mir

import (
	"testing"

	"github.com/chic-lang/chicc-core/internal/ast"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

func newTestBuilder(t *testing.T) *BodyBuilder {
	t.Helper()
	m := NewModule()
	fn := &MirFunction{Name: "Demo::Calc", Kind: FuncRegular}
	fn.Body = NewBody(nil, 0)
	m.AddFunction(fn)
	return NewBodyBuilder(m, fn)
}

func TestLowerDecimalIntrinsic_AddWithOptions(t *testing.T) {
	b := newTestBuilder(t)
	a := Copy(Place{Local: 1})
	bb := Copy(Place{Local: 2})
	rounding := Copy(Place{Local: 3})
	vec := Copy(Place{Local: 4})

	op, matched := b.LowerDecimalIntrinsic(
		"Std::Numeric::Decimal::Intrinsics::AddWithOptions",
		[]Operand{a, bb, rounding, vec},
		ast.Span{},
	)
	if !matched {
		t.Fatal("expected AddWithOptions to match the decimal intrinsic table")
	}
	if op.Kind != OpCopy {
		t.Fatalf("expected a Copy(place) result operand, got kind %v", op.Kind)
	}

	blk := b.Body.Blocks[0]
	var assign *Statement
	for i := range blk.Statements {
		if blk.Statements[i].Kind == StmtAssign && blk.Statements[i].Rhs.Kind == RvDecimalIntrinsic {
			assign = &blk.Statements[i]
		}
	}
	if assign == nil {
		t.Fatal("expected a DecimalIntrinsic assignment statement")
	}
	rv := assign.Rhs
	if rv.DecKind != DecAdd {
		t.Errorf("kind = %v, want DecAdd", rv.DecKind)
	}
	if rv.DecAddend != nil {
		t.Errorf("2-arg Add must not carry an addend")
	}
	if rv.DecRounding.Kind != OpCopy || rv.DecRounding.Place.Local != 3 {
		t.Errorf("rounding operand should be argument at index 2 verbatim, got %+v", rv.DecRounding)
	}
	if rv.DecVectorize.Kind != OpCopy || rv.DecVectorize.Place.Local != 4 {
		t.Errorf("vectorize operand should be argument at index 3 verbatim, got %+v", rv.DecVectorize)
	}
}

func TestLowerDecimalIntrinsic_DefaultsToTiesToEven(t *testing.T) {
	b := newTestBuilder(t)
	op, matched := b.LowerDecimalIntrinsic(
		"Std::Numeric::Decimal::Intrinsics::Add",
		[]Operand{Copy(Place{Local: 1}), Copy(Place{Local: 2})},
		ast.Span{},
	)
	if !matched {
		t.Fatal("expected Add to match")
	}
	if op.Kind != OpCopy {
		t.Fatalf("unexpected operand kind %v", op.Kind)
	}
	blk := b.Body.Blocks[0]
	rv := blk.Statements[len(blk.Statements)-1].Rhs
	if rv.DecRounding.Kind != OpConst || rv.DecRounding.Const.Int != int64(RoundTiesToEven) {
		t.Errorf("default rounding should be the TiesToEven constant (discriminant 0)")
	}
}

func TestLowerDecimalIntrinsic_UnrecognisedSuffixFallsThrough(t *testing.T) {
	b := newTestBuilder(t)
	_, matched := b.LowerDecimalIntrinsic("Std::Numeric::Decimal::Intrinsics::Bogus", nil, ast.Span{})
	if matched {
		t.Fatal("unrecognised suffix must fall through to ordinary call lowering")
	}
}

func TestLowerEqGlueForType_FoundAndMissing(t *testing.T) {
	b := newTestBuilder(t)
	if _, ok := b.LowerEqGlueForType("Demo::Color"); ok {
		t.Fatal("expected no glue before synthesis")
	}
	b.Module.AddGlue(SynthesizedGlue{Kind: GlueEq, TypeName: "Demo::Color", Symbol: "__cl_eq__Demo__Color"})
	op, ok := b.LowerEqGlueForType("Demo::Color")
	if !ok {
		t.Fatal("expected glue to be found after synthesis")
	}
	if op.Const.Symbol != "__cl_eq__Demo__Color" {
		t.Errorf("symbol = %q, want __cl_eq__Demo__Color", op.Const.Symbol)
	}
}

func TestPushStatement_RejectsReadonlyWriteOutsideConstructor(t *testing.T) {
	m := NewModule()
	layout := typeLayoutForTest()
	m.Layouts.Register(&layout)
	fn := &MirFunction{Name: "Demo::Mutate", Kind: FuncRegular}
	fn.Body = NewBody(nil, 1)
	fn.Body.Locals = append(fn.Body.Locals, LocalDecl{Kind: LocalArg, Type: namedTy("Demo::Point")})
	m.AddFunction(fn)
	b := NewBodyBuilder(m, fn)

	dest := Place{Local: LocalID(len(fn.Body.Locals) - 1)}.Field(0)
	b.PushStatement(Assign(dest, UseRvalue(Const(ConstOperand{Kind: ConstInt, Int: 1}))), ast.Span{})

	if len(b.Diagnostics) != 1 || b.Diagnostics[0].Code != "MIR001" {
		t.Fatalf("expected one MIR001 diagnostic, got %+v", b.Diagnostics)
	}
}

func TestLowerAtomicCall_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		args     int
		wantKind RvalueKind
		exchange bool
	}{
		{"load", "Std::Sync::AtomicInt::Load", 1, RvAtomicLoad, false},
		{"fetch add", "Std::Sync::AtomicInt::FetchAdd", 2, RvAtomicRmw, false},
		{"exchange swaps without an rmw op", "Std::Sync::AtomicInt::Exchange", 2, RvAtomicRmw, true},
		{"compare exchange", "Std::Sync::AtomicInt::CompareExchange", 3, RvAtomicCompareExchange, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t)
			args := make([]Operand, tt.args)
			for i := range args {
				args[i] = Copy(Place{Local: LocalID(i + 1)})
			}
			op, matched := b.LowerAtomicCall(tt.symbol, args, "SeqCst", ast.Span{})
			if !matched {
				t.Fatalf("%s must match the atomic table", tt.symbol)
			}
			if op.Kind != OpCopy {
				t.Fatalf("result operand kind = %v", op.Kind)
			}
			blk := b.Body.Blocks[0]
			rv := blk.Statements[len(blk.Statements)-1].Rhs
			if rv.Kind != tt.wantKind {
				t.Fatalf("rvalue kind = %v, want %v", rv.Kind, tt.wantKind)
			}
			if rv.Kind == RvAtomicRmw && rv.AtomicExchange != tt.exchange {
				t.Errorf("AtomicExchange = %v, want %v", rv.AtomicExchange, tt.exchange)
			}
			if rv.Kind == RvAtomicLoad && rv.AtomicOrder != OrderSeqCst {
				t.Errorf("ordering = %v, want SeqCst", rv.AtomicOrder)
			}
		})
	}
}

func TestLowerAtomicCall_StoreAndFence(t *testing.T) {
	b := newTestBuilder(t)
	if _, matched := b.LowerAtomicCall("Std::Sync::AtomicInt::Store",
		[]Operand{Copy(Place{Local: 1}), Copy(Place{Local: 2})}, "Release", ast.Span{}); !matched {
		t.Fatal("Store must match")
	}
	if _, matched := b.LowerAtomicCall("Std::Sync::Fence", nil, "Acquire", ast.Span{}); !matched {
		t.Fatal("Fence must match")
	}
	blk := b.Body.Blocks[0]
	if blk.Statements[0].Kind != StmtAtomicStore || blk.Statements[0].AtomicOrder != OrderRelease {
		t.Errorf("first statement = %+v, want AtomicStore Release", blk.Statements[0])
	}
	if blk.Statements[1].Kind != StmtAtomicFence || blk.Statements[1].FenceOrder != OrderAcquire {
		t.Errorf("second statement = %+v, want AtomicFence Acquire", blk.Statements[1])
	}
}

func TestLowerNumericIntrinsic_RequiresOut(t *testing.T) {
	b := newTestBuilder(t)
	op, matched := b.LowerNumericIntrinsic("Std::Int::TryAdd",
		[]Operand{Copy(Place{Local: 1}), Copy(Place{Local: 2})}, nil, ast.Span{})
	if !matched {
		t.Fatal("TryAdd must match the numeric table")
	}
	if !op.IsPending() {
		t.Error("missing out argument must lower to the Pending sentinel")
	}
	if len(b.Diagnostics) != 1 || b.Diagnostics[0].Code != "MIR003" {
		t.Fatalf("expected one MIR003 diagnostic, got %+v", b.Diagnostics)
	}
}

func TestLowerSpanIntrinsic_LengthAndSource(t *testing.T) {
	b := newTestBuilder(t)
	elem := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimU8}
	op, matched := b.LowerSpanIntrinsic("Std::Span::Span::StackAlloc", elem,
		[]Operand{Copy(Place{Local: 1}), Copy(Place{Local: 2})}, ast.Span{})
	if !matched || op.Kind != OpCopy {
		t.Fatalf("StackAlloc lowering = %v matched=%v", op.Kind, matched)
	}
	blk := b.Body.Blocks[0]
	rv := blk.Statements[len(blk.Statements)-1].Rhs
	if rv.Kind != RvSpanStackAlloc || rv.SpanSource == nil {
		t.Fatalf("rvalue = %+v, want SpanStackAlloc with source", rv.Kind)
	}
	if _, matched := b.LowerSpanIntrinsic("Std::Span::Span::Slice", elem, nil, ast.Span{}); matched {
		t.Error("non-StackAlloc span symbols fall through to ordinary call lowering")
	}
}

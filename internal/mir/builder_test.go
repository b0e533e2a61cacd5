package mir

import (
	"testing"

	"github.com/chic-lang/chicc-core/internal/ast"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// builderModule registers a plain struct and a record, both with a
// readonly field at declaration index 0 and a mutable one at index 1.
func builderModule() *MirModule {
	m := NewModule()
	i32 := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimI32}
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind: typelayout.LayoutStruct,
		Name: "Demo::Point",
		Fields: []typelayout.Field{
			{Name: "x", Type: i32, DeclIndex: 0, Readonly: true},
			{Name: "y", Type: i32, DeclIndex: 1},
		},
	})
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind:   typelayout.LayoutStruct,
		Name:   "Demo::Sample",
		Record: true,
		Fields: []typelayout.Field{
			{Name: "value", Type: i32, DeclIndex: 0, Readonly: true},
		},
	})
	return m
}

// builderFor registers a function named name of the given kind with one
// arg local and one temp, both typed at owner, and returns its builder.
func builderFor(m *MirModule, name string, kind FuncKind, owner string) (*BodyBuilder, Place, Place) {
	fn := &MirFunction{Name: name, Kind: kind}
	fn.Body = NewBody(nil, 1)
	fn.Body.Locals[1].Type = namedTy(owner)
	m.AddFunction(fn)
	b := NewBodyBuilder(m, fn)
	arg := Place{Local: 1}
	tmp := Place{Local: b.CreateTemp(namedTy(owner), ast.Span{})}
	return b, arg, tmp
}

func TestPushStatement_ReadonlyWriteIntegrity(t *testing.T) {
	tests := []struct {
		name     string
		fnName   string
		kind     FuncKind
		owner    string
		destTemp bool // write through the temp instead of the arg
		field    int
		wantDiag bool
	}{
		{"constructor writes readonly field", "Demo::Point::Point", FuncConstructor, "Demo::Point", false, 0, false},
		{"method write to readonly field rejected", "Demo::Point::Mutate", FuncRegular, "Demo::Point", false, 0, true},
		{"method write to mutable field allowed", "Demo::Point::Mutate2", FuncRegular, "Demo::Point", false, 1, false},
		{"record method writes readonly field of a temp", "Demo::Sample::With", FuncRegular, "Demo::Sample", true, 0, false},
		{"record method write to readonly arg rejected", "Demo::Sample::Mutate", FuncRegular, "Demo::Sample", false, 0, true},
		{"non-record temp write still rejected", "Demo::Point::Mutate3", FuncRegular, "Demo::Point", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := builderModule()
			b, arg, tmp := builderFor(m, tt.fnName, tt.kind, tt.owner)
			dest := arg
			if tt.destTemp {
				dest = tmp
			}
			b.PushStatement(Assign(dest.Field(tt.field), UseRvalue(Const(ConstOperand{Kind: ConstInt, Int: 1}))), ast.Span{})
			if tt.wantDiag {
				if len(b.Diagnostics) != 1 || b.Diagnostics[0].Code != "MIR001" {
					t.Fatalf("expected one MIR001 diagnostic, got %+v", b.Diagnostics)
				}
			} else if len(b.Diagnostics) != 0 {
				t.Fatalf("expected no diagnostics, got %+v", b.Diagnostics)
			}
		})
	}
}

func TestPushStatement_FreeFunctionHasNoOwner(t *testing.T) {
	m := builderModule()
	fn := &MirFunction{Name: "Main", Kind: FuncRegular}
	fn.Body = NewBody(nil, 0)
	m.AddFunction(fn)
	b := NewBodyBuilder(m, fn)
	tmp := b.CreateTemp(&typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimI32}, ast.Span{})
	b.PushStatement(Assign(Place{Local: tmp}, UseRvalue(Const(ConstOperand{Kind: ConstInt, Int: 1}))), ast.Span{})
	if len(b.Diagnostics) != 0 {
		t.Fatalf("free functions carry no readonly constraints, got %+v", b.Diagnostics)
	}
}

func TestCreateTemp_AllocatesFreshLocals(t *testing.T) {
	m := builderModule()
	b, _, _ := builderFor(m, "Demo::Point::Calc", FuncRegular, "Demo::Point")
	before := len(b.Body.Locals)
	a := b.CreateTemp(namedTy("Demo::Point"), ast.Span{})
	c := b.CreateTemp(nil, ast.Span{})
	if a == c || int(a) != before || int(c) != before+1 {
		t.Fatalf("temps = %d, %d, want %d, %d", a, c, before, before+1)
	}
	if b.Body.Locals[a].Kind != LocalTemp {
		t.Error("CreateTemp must allocate LocalTemp slots")
	}
}

func TestOperandToPlace_Shapes(t *testing.T) {
	m := builderModule()
	b, arg, _ := builderFor(m, "Demo::Point::Use", FuncRegular, "Demo::Point")

	// Copy/Move of an existing place pass through untouched.
	if got := b.OperandToPlace(Copy(arg), namedTy("Demo::Point"), ast.Span{}); got.Local != arg.Local {
		t.Fatalf("Copy place = local %d, want %d", got.Local, arg.Local)
	}
	stmtsBefore := len(b.Body.Blocks[0].Statements)

	// A constant materializes a temp: StorageLive then Assign.
	i32 := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimI32}
	place := b.OperandToPlace(Const(ConstOperand{Kind: ConstInt, Int: 7}), i32, ast.Span{})
	stmts := b.Body.Blocks[0].Statements
	if len(stmts) != stmtsBefore+2 {
		t.Fatalf("expected StorageLive + Assign, got %d new statements", len(stmts)-stmtsBefore)
	}
	if stmts[len(stmts)-2].Kind != StmtStorageLive || stmts[len(stmts)-1].Kind != StmtAssign {
		t.Fatalf("statement kinds = %v, %v", stmts[len(stmts)-2].Kind, stmts[len(stmts)-1].Kind)
	}
	if stmts[len(stmts)-1].Dest.Local != place.Local {
		t.Error("assignment must target the materialized temp")
	}

	b.EmitStorageDead(place.Local, ast.Span{})
	last := b.Body.Blocks[0].Statements
	if last[len(last)-1].Kind != StmtStorageDead || last[len(last)-1].Local != place.Local {
		t.Error("EmitStorageDead must append StorageDead for the local")
	}
}

package mir

import (
	"testing"

	"github.com/chic-lang/chicc-core/internal/typelayout"
)

func namedTy(name string) *typelayout.Ty {
	return &typelayout.Ty{Kind: typelayout.TyNamed, Name: name}
}

func typeLayoutForTest() typelayout.TypeLayout {
	return typelayout.TypeLayout{
		Kind: typelayout.LayoutStruct,
		Name: "Demo::Point",
		Fields: []typelayout.Field{
			{Name: "x", Type: &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimI32}, DeclIndex: 0, Readonly: true},
			{Name: "y", Type: &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimI32}, DeclIndex: 1},
		},
	}
}

func TestAddFunction_AssignsStableIDs(t *testing.T) {
	m := NewModule()
	a := &MirFunction{Name: "Demo::A"}
	b := &MirFunction{Name: "Demo::B"}
	if id := m.AddFunction(a); id != 0 {
		t.Fatalf("first function id = %d, want 0", id)
	}
	if id := m.AddFunction(b); id != 1 {
		t.Fatalf("second function id = %d, want 1", id)
	}
	if m.Lookup("Demo::A") != a || m.Lookup("Demo::B") != b {
		t.Error("Lookup must return the registered functions")
	}
	if m.Lookup("Demo::C") != nil {
		t.Error("unknown names must resolve to nil")
	}
}

func TestAddFunction_PanicsOnDuplicateName(t *testing.T) {
	m := NewModule()
	m.AddFunction(&MirFunction{Name: "Demo::A"})
	defer func() {
		if recover() == nil {
			t.Error("duplicate function name must panic")
		}
	}()
	m.AddFunction(&MirFunction{Name: "Demo::A"})
}

func TestInternString_Deduplicates(t *testing.T) {
	m := NewModule()
	a := m.InternString("hello")
	b := m.InternString("world")
	if a == b {
		t.Fatal("distinct literals must get distinct indices")
	}
	if m.InternString("hello") != a {
		t.Error("re-interning must return the original index")
	}
	if len(m.StringLiterals) != 2 {
		t.Errorf("literal table has %d entries, want 2", len(m.StringLiterals))
	}
}

func TestGlueByKind_Filters(t *testing.T) {
	m := NewModule()
	m.AddGlue(SynthesizedGlue{Kind: GlueDrop, TypeName: "A", Symbol: "__cl_drop__A"})
	m.AddGlue(SynthesizedGlue{Kind: GlueEq, TypeName: "A", Symbol: "__cl_eq__A"})
	m.AddGlue(SynthesizedGlue{Kind: GlueDrop, TypeName: "B", Symbol: "__cl_drop__B"})
	drops := m.GlueByKind(GlueDrop)
	if len(drops) != 2 || drops[0].TypeName != "A" || drops[1].TypeName != "B" {
		t.Fatalf("drop glue = %+v", drops)
	}
	if len(m.GlueByKind(GlueHash)) != 0 {
		t.Error("no hash glue recorded")
	}
}

func TestNewBody_ShapeInvariants(t *testing.T) {
	body := NewBody(namedTy("Demo::T"), 2)
	if body.Locals[0].Kind != LocalReturnSlot {
		t.Error("local 0 must be the return slot")
	}
	if len(body.Locals) != 3 {
		t.Fatalf("expected ret + 2 args, got %d locals", len(body.Locals))
	}
	if body.CurrentBlock() != 0 || len(body.Blocks) != 1 {
		t.Error("block 0 must be the entry block")
	}
	next := body.NewBlock()
	if next != 1 || body.CurrentBlock() != 0 {
		t.Error("NewBlock must not switch the current block")
	}
}

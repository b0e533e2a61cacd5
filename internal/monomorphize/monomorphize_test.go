package monomorphize

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/typelayout"
	"github.com/chic-lang/chicc-core/testutil"
)

func registerEnum(m *mir.MirModule, name string) {
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind: typelayout.LayoutEnum,
		Name: name,
		Discriminants: []typelayout.EnumVariant{
			{Name: "Red", Discriminant: 0},
			{Name: "Green", Discriminant: 1},
		},
	})
}

func registerIntrinsic(m *mir.MirModule, name string) {
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind:      typelayout.LayoutStruct,
		Name:      name,
		Intrinsic: true,
	})
}

func addStubFunction(m *mir.MirModule, name string) {
	fn := &mir.MirFunction{Name: name, Kind: mir.FuncRegular}
	fn.Body = mir.NewBody(nil, 0)
	fn.Body.SetTerminator(mir.Return{})
	m.AddFunction(fn)
}

func TestAnalyseModule_Classification(t *testing.T) {
	m := mir.NewModule()
	registerEnum(m, "Color")
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind:       typelayout.LayoutStruct,
		Name:       "Demo::File",
		DisposeSym: "Demo::File::Dispose",
	})
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind: typelayout.LayoutStruct,
		Name: "Demo::Key",
	})
	addStubFunction(m, "Demo::Key::GetHashCode")
	addStubFunction(m, "Demo::Key::op_Equality")

	s := AnalyseModule(m)

	if diff := cmp.Diff([]string{"Demo::File"}, s.DropCandidates); diff != "" {
		t.Errorf("drop candidates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Demo::Key"}, s.HashCandidates); diff != "" {
		t.Errorf("hash candidates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Color", "Demo::Key"}, s.EqCandidates); diff != "" {
		t.Errorf("eq candidates mismatch (-want +got):\n%s", diff)
	}
	if len(s.CloneCandidates) != 0 {
		t.Errorf("no Clone::Clone registered, clone candidates should be empty, got %v", s.CloneCandidates)
	}
}

// The full classification summary for the same module is pinned as a
// golden file; regenerate with UPDATE_GOLDENS=true go test ./...
func TestAnalyseModule_GoldenSummary(t *testing.T) {
	m := mir.NewModule()
	registerEnum(m, "Color")
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind:       typelayout.LayoutStruct,
		Name:       "Demo::File",
		DisposeSym: "Demo::File::Dispose",
	})
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind: typelayout.LayoutStruct,
		Name: "Demo::Key",
	})
	addStubFunction(m, "Demo::Key::GetHashCode")
	addStubFunction(m, "Demo::Key::op_Equality")

	testutil.CompareWithGolden(t, "analyse", "classification", AnalyseModule(m))
}

// Scenario: an enum layout with no op_Equality gets __cl_eq__Color whose
// body compares the dereferenced discriminants with BinOp Eq and returns
// 1/0 via a SwitchInt.
func TestSynthesizeEq_EnumDiscriminantCompare(t *testing.T) {
	m := mir.NewModule()
	registerEnum(m, "Color")

	added := SynthesizeAll(m, AnalyseModule(m))
	if len(added) != 1 {
		t.Fatalf("expected exactly one synthesized entry, got %d", len(added))
	}
	g := added[0]
	if g.Symbol != "__cl_eq__Color" {
		t.Errorf("symbol = %q, want __cl_eq__Color", g.Symbol)
	}
	if g.TypeIdentity != typelayout.TypeIdentity("Color") {
		t.Errorf("recorded identity should be TypeIdentity(Color)")
	}

	fn := m.Functions[g.FunctionIdx]
	if fn.Name != g.Symbol {
		t.Errorf("function_index must point at a function named the recorded symbol")
	}
	if fn.Sig.ABITag != mir.ABIExternC {
		t.Errorf("glue must use extern-C ABI")
	}
	if len(fn.Sig.Params) != 2 || fn.Sig.Params[0].Kind != typelayout.TyPointer {
		t.Fatalf("signature must be (ptr<Color>, ptr<Color>)")
	}

	entry := fn.Body.Blocks[0]
	var sawEq bool
	for _, st := range entry.Statements {
		if st.Kind == mir.StmtAssign && st.Rhs.Kind == mir.RvBinary && st.Rhs.BinOpKind == mir.BinEq {
			sawEq = true
		}
	}
	if !sawEq {
		t.Error("entry block must compare discriminants with BinOp Eq")
	}
	if _, ok := entry.Terminator.(mir.SwitchInt); !ok {
		t.Errorf("entry must terminate in SwitchInt, got %T", entry.Terminator)
	}
}

func TestSynthesizeClone_CallsUserMethod(t *testing.T) {
	m := mir.NewModule()
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind:       typelayout.LayoutStruct,
		Name:       "Demo::Buf",
		DisposeSym: "Demo::Buf::Dispose",
	})
	// Registering the Clone method is enough: AddFunction records it with
	// the layout registry, no separate marking step.
	addStubFunction(m, "Demo::Buf::Clone::Clone")

	s := AnalyseModule(m)
	if diff := cmp.Diff([]string{"Demo::Buf"}, s.CloneCandidates); diff != "" {
		t.Fatalf("clone candidates mismatch (-want +got):\n%s", diff)
	}
	added := SynthesizeAll(m, s)

	var clone *mir.MirFunction
	for _, g := range added {
		if g.Kind == mir.GlueClone {
			clone = m.Functions[g.FunctionIdx]
		}
	}
	if clone == nil {
		t.Fatal("expected a clone glue function")
	}
	if len(clone.Sig.Params) != 2 {
		t.Fatalf("clone glue takes (dest, src), got %d params", len(clone.Sig.Params))
	}
	call, ok := clone.Body.Blocks[0].Terminator.(mir.Call)
	if !ok {
		t.Fatalf("clone entry must terminate in a Call, got %T", clone.Body.Blocks[0].Terminator)
	}
	if call.Func.Const.Symbol != "Demo::Buf::Clone::Clone" {
		t.Errorf("clone glue must call the user Clone::Clone, calls %q", call.Func.Const.Symbol)
	}
}

func TestSynthesizeHash_IntrinsicRules(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		want     bool
	}{
		{"signed int reinterprets then widens", "i32", true},
		{"bool switches on the byte", "bool", true},
		{"char widens the codepoint", "char", true},
		{"float rejected", "f64", false},
		{"decimal rejected", "decimal", false},
		{"string rejected", "string", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mir.NewModule()
			registerIntrinsic(m, tt.typeName)
			_, ok := synthesizeHash(m, tt.typeName)
			if ok != tt.want {
				t.Fatalf("synthesizeHash(%s) emitted=%v, want %v", tt.typeName, ok, tt.want)
			}
			if tt.want && !m.Has("__cl_hash__"+tt.typeName) {
				t.Errorf("expected __cl_hash__%s to be registered", tt.typeName)
			}
		})
	}
}

func TestSynthesizeHash_UserGetHashCodeCastsThroughUint(t *testing.T) {
	m := mir.NewModule()
	m.Layouts.Register(&typelayout.TypeLayout{Kind: typelayout.LayoutStruct, Name: "Demo::Key"})
	addStubFunction(m, "Demo::Key::GetHashCode")

	g, ok := synthesizeHash(m, "Demo::Key")
	if !ok {
		t.Fatal("expected hash glue for a type with GetHashCode")
	}
	fn := m.Functions[g.FunctionIdx]
	call, ok := fn.Body.Blocks[0].Terminator.(mir.Call)
	if !ok || call.Func.Const.Symbol != "Demo::Key::GetHashCode" {
		t.Fatalf("hash glue must call GetHashCode first")
	}
	// The resume block must widen through u32 into the u64 return slot.
	resume := fn.Body.Blocks[call.Target]
	var casts int
	for _, st := range resume.Statements {
		if st.Kind == mir.StmtAssign && st.Rhs.Kind == mir.RvCast {
			casts++
		}
	}
	if casts != 2 {
		t.Errorf("expected the int->uint->u64 double cast, got %d casts", casts)
	}
}

// Scenario: a struct whose droppable state hides inside aggregate fields
// (tuple, fixed-rank array, vec, span) gets glue that reaches every
// element — the same shapes the registry's drop predicate recurses
// through when nominating the type.
func TestSynthesizeDrop_RecursesThroughAggregateFields(t *testing.T) {
	m := mir.NewModule()
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind:       typelayout.LayoutStruct,
		Name:       "Demo::File",
		DisposeSym: "Demo::File::Dispose",
	})
	fileTy := &typelayout.Ty{Kind: typelayout.TyNamed, Name: "Demo::File"}
	i32 := &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimI32}
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind: typelayout.LayoutStruct,
		Name: "Demo::Holder",
		Fields: []typelayout.Field{
			{Name: "pair", Type: &typelayout.Ty{Kind: typelayout.TyTuple, Elems: []*typelayout.Ty{fileTy, i32}}, DeclIndex: 0},
			{Name: "arr", Type: &typelayout.Ty{Kind: typelayout.TyArray, Elem: fileTy, Rank: 2}, DeclIndex: 1},
			{Name: "files", Type: &typelayout.Ty{Kind: typelayout.TyVec, Elem: fileTy}, DeclIndex: 2},
			{Name: "view", Type: &typelayout.Ty{Kind: typelayout.TySpan, Elem: fileTy}, DeclIndex: 3},
		},
	})

	s := AnalyseModule(m)
	if diff := cmp.Diff([]string{"Demo::File", "Demo::Holder"}, s.DropCandidates); diff != "" {
		t.Fatalf("drop candidates mismatch (-want +got):\n%s", diff)
	}
	SynthesizeAll(m, s)

	glue := m.Lookup("__cl_drop__Demo__Holder")
	if glue == nil {
		t.Fatal("expected drop glue for Demo::Holder")
	}
	var elemDrops, vecDrops, loops int
	for _, blk := range glue.Body.Blocks {
		switch term := blk.Terminator.(type) {
		case mir.Call:
			switch term.Func.Const.Symbol {
			case "__cl_drop__Demo__File":
				elemDrops++
			case "chic_rt_vec_drop":
				vecDrops++
			}
		case mir.SwitchInt:
			loops++
		}
	}
	// Tuple slot 0, array elements 0 and 1, and the span loop body each
	// reach the element glue.
	if elemDrops != 4 {
		t.Errorf("element drop calls = %d, want 4", elemDrops)
	}
	if vecDrops != 1 {
		t.Errorf("vec drop calls = %d, want 1", vecDrops)
	}
	if loops != 1 {
		t.Errorf("span drop loops = %d, want 1", loops)
	}
}

// Running monomorphization twice over the same module must add nothing the
// second time: every candidate is recognised as already present.
func TestSynthesizeAll_Idempotent(t *testing.T) {
	m := mir.NewModule()
	registerEnum(m, "Color")
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind:       typelayout.LayoutStruct,
		Name:       "Demo::File",
		DisposeSym: "Demo::File::Dispose",
	})
	addStubFunction(m, "Demo::File::GetHashCode")
	addStubFunction(m, "Demo::File::op_Equality")

	first := SynthesizeAll(m, AnalyseModule(m))
	if len(first) == 0 {
		t.Fatal("first run must synthesize something")
	}
	second := SynthesizeAll(m, AnalyseModule(m))
	if len(second) != 0 {
		t.Fatalf("second run must add zero symbols, added %d", len(second))
	}
}

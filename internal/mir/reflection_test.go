package mir

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chic-lang/chicc-core/internal/typelayout"
)

func TestReflectionTables_RoundTrip(t *testing.T) {
	m := NewModule()
	layout := typeLayoutForTest()
	m.Layouts.Register(&layout)
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind: typelayout.LayoutEnum,
		Name: "Color",
		Discriminants: []typelayout.EnumVariant{
			{Name: "Red", Discriminant: 0},
		},
	})
	fn := &MirFunction{Name: "Demo::Point::Translate", Kind: FuncRegular}
	fn.Body = NewBody(nil, 0)
	m.AddFunction(fn)

	collected := CollectReflectionTables(m)
	if len(collected.Types) != 2 {
		t.Fatalf("expected 2 reflected types, got %d", len(collected.Types))
	}
	if collected.Types[0].FullName != "Color" || collected.Types[1].FullName != "Demo::Point" {
		t.Fatalf("types must be sorted by full_name, got %v, %v",
			collected.Types[0].FullName, collected.Types[1].FullName)
	}
	if got := collected.Types[1].Methods; len(got) != 1 || got[0] != "Demo::Point::Translate" {
		t.Fatalf("methods = %v", got)
	}

	data, err := SerializeReflectionTables(collected)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DeserializeReflectionTables(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(collected, back); diff != "" {
		t.Errorf("round trip mismatch (-orig +back):\n%s", diff)
	}
}

func TestReflectionTables_TypeIDMatchesIdentity(t *testing.T) {
	m := NewModule()
	m.Layouts.Register(&typelayout.TypeLayout{Kind: typelayout.LayoutStruct, Name: "Demo::T"})
	collected := CollectReflectionTables(m)
	if collected.Types[0].TypeID != uint64(typelayout.TypeIdentity("Demo::T")) {
		t.Error("reflection type_id must equal TypeIdentity of the canonical name")
	}
}

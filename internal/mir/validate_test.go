package mir

import (
	"testing"

	"github.com/chic-lang/chicc-core/internal/typelayout"
)

func TestValidate_CleanBodyPasses(t *testing.T) {
	m := NewModule()
	fn := &MirFunction{Name: "Demo::Ok"}
	fn.Body = NewBody(&typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimI32}, 0)
	next := fn.Body.NewBlock()
	fn.Body.SetTerminator(Goto{Target: next})
	fn.Body.SetCurrentBlock(next)
	fn.Body.SetTerminator(Return{})
	m.AddFunction(fn)

	if reports := m.Validate(); len(reports) != 0 {
		t.Fatalf("clean body must validate, got %+v", reports)
	}
}

func TestValidate_FlagsOutOfRangeEdge(t *testing.T) {
	m := NewModule()
	fn := &MirFunction{Name: "Demo::Bad"}
	fn.Body = NewBody(nil, 0)
	fn.Body.SetTerminator(Goto{Target: 99})
	m.AddFunction(fn)

	reports := m.Validate()
	if len(reports) != 1 || reports[0].Code != "MIR006" {
		t.Fatalf("expected one MIR006, got %+v", reports)
	}
}

func TestValidate_FlagsMissingReturnSlot(t *testing.T) {
	m := NewModule()
	fn := &MirFunction{Name: "Demo::NoRet"}
	fn.Body = &MirBody{
		Locals: []LocalDecl{{Kind: LocalTemp}},
		Blocks: []BasicBlock{{Terminator: Return{}}},
	}
	m.AddFunction(fn)
	if reports := m.Validate(); len(reports) != 1 {
		t.Fatalf("expected a return-slot violation, got %+v", reports)
	}
}

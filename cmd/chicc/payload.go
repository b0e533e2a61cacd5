package main

import (
	"fmt"

	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// mirPayload is the serialised hand-off shape the (out-of-scope) front
// end writes for the core driver: layouts, function signatures, and the
// entry designation. The payload carries no bodies: each non-extern
// function gets a stub body that returns immediately and extern functions
// stay body-less, so glue analysis and table emission can run standalone.
type mirPayload struct {
	Entry     string          `json:"entry,omitempty"`
	Library   bool            `json:"library,omitempty"`
	Layouts   []layoutPayload `json:"layouts"`
	Functions []funcPayload   `json:"functions"`
	TestCases []testPayload   `json:"testcases,omitempty"`
}

type layoutPayload struct {
	Name    string         `json:"name"`
	Kind    string         `json:"kind"` // struct | class | union | enum
	Dispose string         `json:"dispose,omitempty"`
	Fields  []fieldPayload `json:"fields,omitempty"`
	Enum    []variantPayload `json:"variants,omitempty"`
	Intrinsic bool         `json:"intrinsic,omitempty"`
	Record  bool           `json:"record,omitempty"`
}

type fieldPayload struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Readonly bool   `json:"readonly,omitempty"`
}

type variantPayload struct {
	Name         string `json:"name"`
	Discriminant int64  `json:"discriminant"`
}

type funcPayload struct {
	Name   string   `json:"name"`
	Params []string `json:"params,omitempty"`
	Return string   `json:"return,omitempty"`
	Async  bool     `json:"async,omitempty"`

	ExternLibrary    string `json:"extern_library,omitempty"`
	ExternSymbol     string `json:"extern_symbol,omitempty"`
	ExternConvention string `json:"extern_convention,omitempty"`
	ExternBinding    string `json:"extern_binding,omitempty"` // lazy | eager
	ExternOptional   bool   `json:"extern_optional,omitempty"`
}

type testPayload struct {
	Name     string `json:"name"`
	Function string `json:"function"`
	Async    bool   `json:"async,omitempty"`
}

// parseTy resolves a canonical type string: primitives by name, a
// trailing "*" as a pointer, anything else as a named type.
func parseTy(s string) *typelayout.Ty {
	if s == "" {
		return nil
	}
	if s[len(s)-1] == '*' {
		return &typelayout.Ty{Kind: typelayout.TyPointer, Elem: parseTy(s[:len(s)-1])}
	}
	if p, ok := typelayout.PrimitiveByName(s); ok {
		return &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: p}
	}
	return &typelayout.Ty{Kind: typelayout.TyNamed, Name: s}
}

func (p *mirPayload) build() (*mir.MirModule, error) {
	m := mir.NewModule()
	m.EntryFunction = p.Entry
	m.SuppressStartup = p.Library

	for _, lp := range p.Layouts {
		l := &typelayout.TypeLayout{Name: lp.Name, DisposeSym: lp.Dispose, Intrinsic: lp.Intrinsic, Record: lp.Record}
		switch lp.Kind {
		case "struct", "":
			l.Kind = typelayout.LayoutStruct
		case "class":
			l.Kind = typelayout.LayoutClass
		case "union":
			l.Kind = typelayout.LayoutUnion
		case "enum":
			l.Kind = typelayout.LayoutEnum
		default:
			return nil, fmt.Errorf("layout %s: unknown kind %q", lp.Name, lp.Kind)
		}
		for i, f := range lp.Fields {
			l.Fields = append(l.Fields, typelayout.Field{
				Name: f.Name, Type: parseTy(f.Type), DeclIndex: i, Readonly: f.Readonly,
			})
		}
		for _, v := range lp.Enum {
			l.Discriminants = append(l.Discriminants, typelayout.EnumVariant{
				Name: v.Name, Discriminant: v.Discriminant,
			})
		}
		m.Layouts.Register(l)
	}

	for _, fp := range p.Functions {
		fn := &mir.MirFunction{
			Name:  fp.Name,
			Kind:  mir.FuncRegular,
			Async: fp.Async,
		}
		for _, param := range fp.Params {
			fn.Sig.Params = append(fn.Sig.Params, parseTy(param))
		}
		fn.Sig.Return = parseTy(fp.Return)
		if fp.ExternLibrary != "" {
			kind := mir.ExternDynamicLazy
			if fp.ExternBinding == "eager" {
				kind = mir.ExternDynamicEager
			}
			fn.Extern = &mir.ExternBinding{
				Kind:       kind,
				Library:    fp.ExternLibrary,
				Symbol:     fp.ExternSymbol,
				Convention: fp.ExternConvention,
				Optional:   fp.ExternOptional,
			}
		} else {
			fn.Body = mir.NewBody(fn.Sig.Return, len(fn.Sig.Params))
			for i, t := range fn.Sig.Params {
				fn.Body.Locals[i+1].Type = t
			}
			fn.Body.SetTerminator(mir.Return{})
		}
		if fp.Async {
			fn.AsyncPlan = &mir.AsyncLoweringArtifact{
				PollSymbol: fp.Name + "::__poll",
				DropSymbol: fp.Name + "::__drop",
			}
		}
		m.AddFunction(fn)
	}

	for _, tp := range p.TestCases {
		fn := m.Lookup(tp.Function)
		if fn == nil {
			return nil, fmt.Errorf("testcase %s references unknown function %s", tp.Name, tp.Function)
		}
		m.TestCases = append(m.TestCases, mir.TestCase{Name: tp.Name, Function: fn.ID, Async: tp.Async})
	}
	return m, nil
}

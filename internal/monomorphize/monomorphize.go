// Package monomorphize walks a finalized mir.MirModule and synthesizes
// missing drop, clone, hash, and equality thunks so every concrete
// aggregate type has ABI-visible symbols at known names.
package monomorphize

import (
	"sort"

	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// Summary is the result of AnalyseModule: four sorted, deduplicated lists
// of type canonical names eligible for each glue kind.
type Summary struct {
	DropCandidates  []string
	CloneCandidates []string
	HashCandidates  []string
	EqCandidates    []string
}

// AnalyseModule classifies every registered type layout into the four
// candidate lists.
func AnalyseModule(m *mir.MirModule) Summary {
	var s Summary
	for name, layout := range allLayouts(m) {
		if m.Layouts.TypeRequiresDrop(name) {
			s.DropCandidates = append(s.DropCandidates, name)
		}
		if m.Layouts.TypeRequiresClone(name) && m.Has(name+"::Clone::Clone") {
			s.CloneCandidates = append(s.CloneCandidates, name)
		}
		if m.Has(name+"::GetHashCode") || isIntrinsicName(m, name) {
			s.HashCandidates = append(s.HashCandidates, name)
		}
		if layout.Kind == typelayout.LayoutEnum || m.Has(name+"::op_Equality") || isIntrinsicName(m, name) {
			s.EqCandidates = append(s.EqCandidates, name)
		}
	}
	sort.Strings(s.DropCandidates)
	sort.Strings(s.CloneCandidates)
	sort.Strings(s.HashCandidates)
	sort.Strings(s.EqCandidates)
	return s
}

// allLayouts exposes the registry's layouts for iteration.
func allLayouts(m *mir.MirModule) map[string]*typelayout.TypeLayout {
	out := make(map[string]*typelayout.TypeLayout)
	for _, name := range m.Layouts.Names() {
		if l := m.Layouts.Lookup(name); l != nil {
			out[name] = l
		}
	}
	return out
}

func isIntrinsicName(m *mir.MirModule, name string) bool {
	if l := m.Layouts.Lookup(name); l != nil {
		return l.Intrinsic
	}
	return false
}

// SynthesizeAll runs glue synthesis for every candidate in s against m,
// skipping any type whose target symbol already exists (idempotent: a
// second run over the same module adds zero new symbols). It returns the newly synthesized entries (empty
// on the second run).
func SynthesizeAll(m *mir.MirModule, s Summary) []mir.SynthesizedGlue {
	var added []mir.SynthesizedGlue
	for _, name := range s.DropCandidates {
		if g, ok := synthesizeDrop(m, name); ok {
			added = append(added, g)
		}
	}
	for _, name := range s.CloneCandidates {
		if g, ok := synthesizeClone(m, name); ok {
			added = append(added, g)
		}
	}
	for _, name := range s.HashCandidates {
		if g, ok := synthesizeHash(m, name); ok {
			added = append(added, g)
		}
	}
	for _, name := range s.EqCandidates {
		if g, ok := synthesizeEq(m, name); ok {
			added = append(added, g)
		}
	}
	return added
}

func glueSymbol(kind mir.GlueKind, name string) string {
	mangled := mangle(name)
	switch kind {
	case mir.GlueDrop:
		return "__cl_drop__" + mangled
	case mir.GlueClone:
		return "__cl_clone__" + mangled
	case mir.GlueHash:
		return "__cl_hash__" + mangled
	case mir.GlueEq:
		return "__cl_eq__" + mangled
	default:
		return "__cl_glue__" + mangled
	}
}

// mangle turns a canonical "::"-separated name into the double-underscore
// form the emitted symbols use (e.g. "Demo::Type" -> "Demo__Type"),
// the form the emitted tables key their entries by.
func mangle(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == ':' && i+1 < len(name) && name[i+1] == ':' {
			out = append(out, '_', '_')
			i++
			continue
		}
		out = append(out, name[i])
	}
	return string(out)
}

func ptrTo(name string) *typelayout.Ty {
	return &typelayout.Ty{Kind: typelayout.TyPointer, Elem: &typelayout.Ty{Kind: typelayout.TyNamed, Name: name}}
}

func record(m *mir.MirModule, kind mir.GlueKind, name, symbol string, idx mir.FuncID) {
	m.AddGlue(mir.SynthesizedGlue{
		Kind:         kind,
		TypeName:     name,
		Symbol:       symbol,
		FunctionIdx:  idx,
		TypeIdentity: typelayout.TypeIdentity(name),
	})
}

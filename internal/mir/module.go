package mir

import (
	"strings"

	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// StaticVar is a module-level global.
type StaticVar struct {
	Name       string
	Type       *typelayout.Ty
	Init       *ConstOperand // nil for zero-initialized statics
	ThreadLocal bool
	Extern     bool
	Weak       bool
	Exported   bool
}

// TraitVTable is the slot layout for one trait implemented by one type.
type TraitVTable struct {
	Trait string
	Impl  string
	Slots []VTableSlotRef
}

// VTableSlotRef names the function symbol filling one trait-method slot.
type VTableSlotRef struct {
	Method string
	Symbol string
}

// ClassVTable is the slot layout for one class, including inherited slots.
type ClassVTable struct {
	Class string
	Slots []VTableSlotRef
}

// DefaultArgBinding records a default-argument expression bound at a call
// site that omitted it, keyed by (function, param index).
type DefaultArgBinding struct {
	Function string
	ParamIdx int
	Value    ConstOperand
}

// InterfaceDefaultBinding records an interface method with a default body
// that a concrete implementer did not override.
type InterfaceDefaultBinding struct {
	Implementer string
	Interface   string
	Method      string
	Function    string // canonical symbol of the default body
}

// TestCase records one `testcase`-kind function for the test executor's
// startup descriptor.
type TestCase struct {
	Name     string
	Function FuncID
	Async    bool
}

// Export names a symbol the module makes visible to other translation
// units / the native entrypoint.
type Export struct {
	Symbol string
	Public bool
}

// GlueKind tags which of the four synthesized glue kinds an entry is.
type GlueKind int

const (
	GlueDrop GlueKind = iota
	GlueClone
	GlueHash
	GlueEq
)

// SynthesizedGlue records one glue function monomorphization added:
// one record per synthesized drop/clone/hash/eq thunk.
type SynthesizedGlue struct {
	Kind         GlueKind
	TypeName     string
	Symbol       string
	FunctionIdx  FuncID
	TypeIdentity typelayout.TypeID
}

// MirModule owns every function, static, layout, and vtable produced for
// one compilation. Invariants: function names
// unique; function indices stable once assigned; vtable slot methods
// reference functions by canonical symbol.
type MirModule struct {
	Functions []*MirFunction
	byName    map[string]FuncID

	Statics []StaticVar

	Layouts *typelayout.Registry

	TraitVTables []TraitVTable
	ClassVTables []ClassVTable

	AsyncPlans map[string]*AsyncLoweringArtifact // keyed by function name

	StringLiterals []string
	litIndex       map[string]int

	DefaultArgs       []DefaultArgBinding
	InterfaceDefaults []InterfaceDefaultBinding
	TestCases         []TestCase
	Exports           []Export

	GlueEntries []SynthesizedGlue

	// EntryFunction is the canonical name of the program entry point, if any.
	EntryFunction string
	// SuppressStartup drops the startup descriptor and native main from
	// library builds.
	SuppressStartup bool
}

// NewModule returns an empty MirModule ready for function registration.
func NewModule() *MirModule {
	return &MirModule{
		byName:     make(map[string]FuncID),
		Layouts:    typelayout.NewRegistry(),
		AsyncPlans: make(map[string]*AsyncLoweringArtifact),
		litIndex:   make(map[string]int),
	}
}

// cloneMethodSuffix marks a user-declared Clone implementation; the
// layout registry's clone predicate keys off its presence.
const cloneMethodSuffix = "::Clone::Clone"

// AddFunction registers fn, assigning it a stable FuncID. Panics if the
// name is already registered — function names are unique by invariant.
// A "{T}::Clone::Clone" registration also records T's clone method with
// the layout registry, so TypeRequiresClone sees every user Clone no
// matter which path built the module.
func (m *MirModule) AddFunction(fn *MirFunction) FuncID {
	if _, exists := m.byName[fn.Name]; exists {
		panic("mir: duplicate function name " + fn.Name)
	}
	id := FuncID(len(m.Functions))
	fn.ID = id
	m.Functions = append(m.Functions, fn)
	m.byName[fn.Name] = id
	if strings.HasSuffix(fn.Name, cloneMethodSuffix) {
		m.Layouts.MarkCloneMethod(strings.TrimSuffix(fn.Name, cloneMethodSuffix))
	}
	return id
}

// Lookup returns the function named name, or nil.
func (m *MirModule) Lookup(name string) *MirFunction {
	id, ok := m.byName[name]
	if !ok {
		return nil
	}
	return m.Functions[id]
}

// Has reports whether a function named name is registered.
func (m *MirModule) Has(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// InternString returns the index of s in the module's interned-literal
// table, adding it if not already present.
func (m *MirModule) InternString(s string) int {
	if idx, ok := m.litIndex[s]; ok {
		return idx
	}
	idx := len(m.StringLiterals)
	m.StringLiterals = append(m.StringLiterals, s)
	m.litIndex[s] = idx
	return idx
}

// AddGlue records a synthesized glue entry (appended by monomorphize after
// it registers the function itself via AddFunction).
func (m *MirModule) AddGlue(g SynthesizedGlue) {
	m.GlueEntries = append(m.GlueEntries, g)
}

// GlueByKind returns every recorded glue entry of the given kind, in the
// order they were synthesized.
func (m *MirModule) GlueByKind(kind GlueKind) []SynthesizedGlue {
	var out []SynthesizedGlue
	for _, g := range m.GlueEntries {
		if g.Kind == kind {
			out = append(out, g)
		}
	}
	return out
}

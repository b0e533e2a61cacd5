package mir

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// ReflectionField is one field of a reflected type.
type ReflectionField struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Offset *uint64 `json:"offset,omitempty"`
}

// ReflectionType is the serialisable description of one registered type:
// what the runtime's reflection surface exposes about it.
type ReflectionType struct {
	FullName string            `json:"full_name"`
	TypeID   uint64            `json:"type_id"`
	Kind     string            `json:"kind"` // struct | class | union | enum
	Size     uint64            `json:"size"`
	Align    uint64            `json:"align"`
	Fields   []ReflectionField `json:"fields,omitempty"`
	Methods  []string          `json:"methods,omitempty"`
}

// ReflectionTables is the full reflection payload for one module.
type ReflectionTables struct {
	Types []ReflectionType `json:"types"`
}

// CollectReflectionTables walks the module's layout registry and function
// table and builds the reflection payload, sorted by full_name so the
// serialised form is deterministic.
func CollectReflectionTables(m *MirModule) ReflectionTables {
	var out ReflectionTables
	for _, name := range m.Layouts.Names() {
		l := m.Layouts.Lookup(name)
		if l == nil {
			continue
		}
		rt := ReflectionType{
			FullName: name,
			TypeID:   uint64(typelayout.TypeIdentity(name)),
			Kind:     layoutKindName(l.Kind),
			Size:     l.Size,
			Align:    l.Align,
		}
		for _, f := range l.Fields {
			rt.Fields = append(rt.Fields, ReflectionField{
				Name:   f.Name,
				Type:   f.Type.CanonicalName(),
				Offset: f.Offset,
			})
		}
		for _, fn := range m.Functions {
			if strings.HasPrefix(fn.Name, name+"::") {
				rt.Methods = append(rt.Methods, fn.Name)
			}
		}
		sort.Strings(rt.Methods)
		out.Types = append(out.Types, rt)
	}
	sort.Slice(out.Types, func(i, j int) bool {
		return out.Types[i].FullName < out.Types[j].FullName
	})
	return out
}

func layoutKindName(k typelayout.LayoutKind) string {
	switch k {
	case typelayout.LayoutStruct:
		return "struct"
	case typelayout.LayoutClass:
		return "class"
	case typelayout.LayoutUnion:
		return "union"
	case typelayout.LayoutEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// SerializeReflectionTables renders the tables as deterministic JSON.
func SerializeReflectionTables(t ReflectionTables) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// DeserializeReflectionTables parses a payload produced by
// SerializeReflectionTables, re-sorting by full_name defensively in case
// the payload was edited by hand.
func DeserializeReflectionTables(data []byte) (ReflectionTables, error) {
	var t ReflectionTables
	if err := json.Unmarshal(data, &t); err != nil {
		return ReflectionTables{}, err
	}
	sort.Slice(t.Types, func(i, j int) bool {
		return t.Types[i].FullName < t.Types[j].FullName
	})
	return t, nil
}

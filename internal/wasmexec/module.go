// Package wasmexec loads a compiled WebAssembly 1.0 module and executes
// exported functions under a linear-memory model, a chic_rt host-import
// bridge, and a cooperative async scheduler. It is a
// correctness reference, not a production JIT: allocations never reuse
// addresses and execution is strictly single-threaded.
package wasmexec

import (
	"bytes"
	"fmt"
)

// ValType is a WASM value type byte.
type ValType byte

const (
	ValI32 ValType = 0x7f
	ValI64 ValType = 0x7e
	ValF32 ValType = 0x7d
	ValF64 ValType = 0x7c
)

// FuncType is one entry of the type section.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import is one entry of the import section. Only function imports are
// dispatched; others are rejected at load time.
type Import struct {
	Module  string
	Name    string
	TypeIdx uint32
}

// Export names one exported function.
type Export struct {
	Name    string
	Kind    byte
	Index   uint32
}

// Global is one module global with its decoded initial value.
type Global struct {
	Type    ValType
	Mutable bool
	Init    uint64
}

// DataSegment is one active data segment with its decoded base offset.
type DataSegment struct {
	Offset uint32
	Data   []byte
}

// Code is one function body: local declarations plus the expression.
type Code struct {
	Locals []ValType
	Body   []byte
}

// ElemSegment maps table slots to function indices (table 0 only).
type ElemSegment struct {
	Offset  uint32
	Indices []uint32
}

// Module is the decoded binary, ready for execution.
type Module struct {
	Types     []FuncType
	Imports   []Import
	FuncTypes []uint32 // type index per module-defined function
	Globals   []Global
	Exports   []Export
	Start     *uint32
	Codes     []Code
	Data      []DataSegment
	Elements  []ElemSegment
	Table     []uint32 // flattened table 0
	MemPages  uint32   // initial page count
}

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// section ids per the WebAssembly 1.0 binary format.
const (
	secCustom   = 0
	secType     = 1
	secImport   = 2
	secFunction = 3
	secTable    = 4
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secStart    = 8
	secElement  = 9
	secCode     = 10
	secData     = 11
)

// DecodeModule parses a standard WebAssembly 1.0 binary
// ("\0asm\x01\0\0\0" header).
func DecodeModule(bin []byte) (*Module, error) {
	if len(bin) < 8 || !bytes.Equal(bin[:8], wasmMagic) {
		return nil, &ExecutionError{Message: "malformed module: bad magic or version"}
	}
	m := &Module{MemPages: 1}
	off := 8
	for off < len(bin) {
		id := bin[off]
		off++
		size, next, err := decodeU32(bin, off)
		if err != nil {
			return nil, decodeErr("section size", err)
		}
		off = next
		if off+int(size) > len(bin) {
			return nil, &ExecutionError{Message: "malformed module: section extends past end"}
		}
		body := bin[off : off+int(size)]
		off += int(size)

		switch id {
		case secCustom:
			// skipped
		case secType:
			if err := m.decodeTypeSection(body); err != nil {
				return nil, err
			}
		case secImport:
			if err := m.decodeImportSection(body); err != nil {
				return nil, err
			}
		case secFunction:
			if err := m.decodeFunctionSection(body); err != nil {
				return nil, err
			}
		case secTable:
			// size limits only; the element section fills table 0
		case secMemory:
			if err := m.decodeMemorySection(body); err != nil {
				return nil, err
			}
		case secGlobal:
			if err := m.decodeGlobalSection(body); err != nil {
				return nil, err
			}
		case secExport:
			if err := m.decodeExportSection(body); err != nil {
				return nil, err
			}
		case secStart:
			idx, _, err := decodeU32(body, 0)
			if err != nil {
				return nil, decodeErr("start index", err)
			}
			m.Start = &idx
		case secElement:
			if err := m.decodeElementSection(body); err != nil {
				return nil, err
			}
		case secCode:
			if err := m.decodeCodeSection(body); err != nil {
				return nil, err
			}
		case secData:
			if err := m.decodeDataSection(body); err != nil {
				return nil, err
			}
		default:
			return nil, &ExecutionError{Message: fmt.Sprintf("malformed module: unknown section id %d", id)}
		}
	}
	if len(m.FuncTypes) != len(m.Codes) {
		return nil, &ExecutionError{Message: "malformed module: function and code sections disagree"}
	}
	m.flattenTable()
	return m, nil
}

func decodeErr(what string, err error) error {
	return &ExecutionError{Message: fmt.Sprintf("malformed module: %s: %v", what, err)}
}

func (m *Module) decodeTypeSection(b []byte) error {
	count, off, err := decodeU32(b, 0)
	if err != nil {
		return decodeErr("type count", err)
	}
	for i := uint32(0); i < count; i++ {
		if off >= len(b) || b[off] != 0x60 {
			return &ExecutionError{Message: "malformed module: expected func type"}
		}
		off++
		var ft FuncType
		var n uint32
		n, off, err = decodeU32(b, off)
		if err != nil {
			return decodeErr("param count", err)
		}
		for j := uint32(0); j < n; j++ {
			ft.Params = append(ft.Params, ValType(b[off]))
			off++
		}
		n, off, err = decodeU32(b, off)
		if err != nil {
			return decodeErr("result count", err)
		}
		for j := uint32(0); j < n; j++ {
			ft.Results = append(ft.Results, ValType(b[off]))
			off++
		}
		m.Types = append(m.Types, ft)
	}
	return nil
}

func (m *Module) decodeImportSection(b []byte) error {
	count, off, err := decodeU32(b, 0)
	if err != nil {
		return decodeErr("import count", err)
	}
	for i := uint32(0); i < count; i++ {
		var mod, name string
		mod, off, err = decodeName(b, off)
		if err != nil {
			return err
		}
		name, off, err = decodeName(b, off)
		if err != nil {
			return err
		}
		kind := b[off]
		off++
		if kind != 0 {
			return &ExecutionError{Message: fmt.Sprintf("unsupported non-function import %s.%s", mod, name)}
		}
		var tidx uint32
		tidx, off, err = decodeU32(b, off)
		if err != nil {
			return decodeErr("import type index", err)
		}
		m.Imports = append(m.Imports, Import{Module: mod, Name: name, TypeIdx: tidx})
	}
	return nil
}

func decodeName(b []byte, off int) (string, int, error) {
	n, off, err := decodeU32(b, off)
	if err != nil {
		return "", off, decodeErr("name length", err)
	}
	if off+int(n) > len(b) {
		return "", off, &ExecutionError{Message: "malformed module: name extends past section"}
	}
	return string(b[off : off+int(n)]), off + int(n), nil
}

func (m *Module) decodeFunctionSection(b []byte) error {
	count, off, err := decodeU32(b, 0)
	if err != nil {
		return decodeErr("function count", err)
	}
	for i := uint32(0); i < count; i++ {
		var tidx uint32
		tidx, off, err = decodeU32(b, off)
		if err != nil {
			return decodeErr("function type index", err)
		}
		m.FuncTypes = append(m.FuncTypes, tidx)
	}
	return nil
}

func (m *Module) decodeMemorySection(b []byte) error {
	count, off, err := decodeU32(b, 0)
	if err != nil || count == 0 {
		return nil
	}
	flags := b[off]
	off++
	min, _, err := decodeU32(b, off)
	if err != nil {
		return decodeErr("memory min", err)
	}
	_ = flags
	m.MemPages = min
	if m.MemPages == 0 {
		m.MemPages = 1
	}
	return nil
}

// decodeConstExpr evaluates the restricted constant expressions the 1.0
// format allows in global and segment initializers.
func decodeConstExpr(b []byte, off int) (uint64, int, error) {
	op := b[off]
	off++
	var v uint64
	var err error
	switch op {
	case 0x41: // i32.const
		var x int32
		x, off, err = decodeS32(b, off)
		v = uint64(uint32(x))
	case 0x42: // i64.const
		var x int64
		x, off, err = decodeS64(b, off)
		v = uint64(x)
	case 0x23: // global.get — resolves to 0 for the reference executor
		_, off, err = decodeU32(b, off)
	default:
		return 0, off, &ExecutionError{Message: fmt.Sprintf("unsupported const expr opcode 0x%x", op)}
	}
	if err != nil {
		return 0, off, decodeErr("const expr", err)
	}
	if off >= len(b) || b[off] != 0x0b {
		return 0, off, &ExecutionError{Message: "malformed const expr: missing end"}
	}
	return v, off + 1, nil
}

func (m *Module) decodeGlobalSection(b []byte) error {
	count, off, err := decodeU32(b, 0)
	if err != nil {
		return decodeErr("global count", err)
	}
	for i := uint32(0); i < count; i++ {
		g := Global{Type: ValType(b[off])}
		off++
		g.Mutable = b[off] == 1
		off++
		g.Init, off, err = decodeConstExpr(b, off)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, g)
	}
	return nil
}

func (m *Module) decodeExportSection(b []byte) error {
	count, off, err := decodeU32(b, 0)
	if err != nil {
		return decodeErr("export count", err)
	}
	for i := uint32(0); i < count; i++ {
		var name string
		name, off, err = decodeName(b, off)
		if err != nil {
			return err
		}
		kind := b[off]
		off++
		var idx uint32
		idx, off, err = decodeU32(b, off)
		if err != nil {
			return decodeErr("export index", err)
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Index: idx})
	}
	return nil
}

func (m *Module) decodeElementSection(b []byte) error {
	count, off, err := decodeU32(b, 0)
	if err != nil {
		return decodeErr("element count", err)
	}
	for i := uint32(0); i < count; i++ {
		_, off, err = decodeU32(b, off) // table index, 0 in 1.0
		if err != nil {
			return decodeErr("element table index", err)
		}
		var base uint64
		base, off, err = decodeConstExpr(b, off)
		if err != nil {
			return err
		}
		var n uint32
		n, off, err = decodeU32(b, off)
		if err != nil {
			return decodeErr("element func count", err)
		}
		seg := ElemSegment{Offset: uint32(base)}
		for j := uint32(0); j < n; j++ {
			var fidx uint32
			fidx, off, err = decodeU32(b, off)
			if err != nil {
				return decodeErr("element func index", err)
			}
			seg.Indices = append(seg.Indices, fidx)
		}
		m.Elements = append(m.Elements, seg)
	}
	return nil
}

func (m *Module) decodeCodeSection(b []byte) error {
	count, off, err := decodeU32(b, 0)
	if err != nil {
		return decodeErr("code count", err)
	}
	for i := uint32(0); i < count; i++ {
		var size uint32
		size, off, err = decodeU32(b, off)
		if err != nil {
			return decodeErr("code size", err)
		}
		end := off + int(size)
		if end > len(b) {
			return &ExecutionError{Message: "malformed module: code extends past section"}
		}
		body := b[off:end]
		var code Code
		var declCount uint32
		var o int
		declCount, o, err = decodeU32(body, 0)
		if err != nil {
			return decodeErr("local decl count", err)
		}
		for j := uint32(0); j < declCount; j++ {
			var repeat uint32
			repeat, o, err = decodeU32(body, o)
			if err != nil {
				return decodeErr("local repeat", err)
			}
			vt := ValType(body[o])
			o++
			for k := uint32(0); k < repeat; k++ {
				code.Locals = append(code.Locals, vt)
			}
		}
		code.Body = body[o:]
		m.Codes = append(m.Codes, code)
		off = end
	}
	return nil
}

func (m *Module) decodeDataSection(b []byte) error {
	count, off, err := decodeU32(b, 0)
	if err != nil {
		return decodeErr("data count", err)
	}
	for i := uint32(0); i < count; i++ {
		_, off, err = decodeU32(b, off) // memory index, 0 in 1.0
		if err != nil {
			return decodeErr("data memory index", err)
		}
		var base uint64
		base, off, err = decodeConstExpr(b, off)
		if err != nil {
			return err
		}
		var n uint32
		n, off, err = decodeU32(b, off)
		if err != nil {
			return decodeErr("data length", err)
		}
		if off+int(n) > len(b) {
			return &ExecutionError{Message: "malformed module: data extends past section"}
		}
		m.Data = append(m.Data, DataSegment{Offset: uint32(base), Data: b[off : off+int(n)]})
		off += int(n)
	}
	return nil
}

// flattenTable resolves element segments into the flat table 0 used by
// call_indirect.
func (m *Module) flattenTable() {
	var max uint32
	for _, seg := range m.Elements {
		if end := seg.Offset + uint32(len(seg.Indices)); end > max {
			max = end
		}
	}
	m.Table = make([]uint32, max)
	for _, seg := range m.Elements {
		copy(m.Table[seg.Offset:], seg.Indices)
	}
}

// NumImports returns the count of imported functions; module-defined
// function index space begins after them.
func (m *Module) NumImports() int { return len(m.Imports) }

// ExportedFunc finds an exported function's index by name.
func (m *Module) ExportedFunc(name string) (uint32, bool) {
	for _, e := range m.Exports {
		if e.Name == name && e.Kind == 0 {
			return e.Index, true
		}
	}
	return 0, false
}

// TypeOfFunc returns the function type for a function index spanning the
// import + module space.
func (m *Module) TypeOfFunc(idx uint32) (FuncType, bool) {
	if int(idx) < len(m.Imports) {
		t := m.Imports[idx].TypeIdx
		if int(t) < len(m.Types) {
			return m.Types[t], true
		}
		return FuncType{}, false
	}
	mi := int(idx) - len(m.Imports)
	if mi < len(m.FuncTypes) && int(m.FuncTypes[mi]) < len(m.Types) {
		return m.Types[m.FuncTypes[mi]], true
	}
	return FuncType{}, false
}

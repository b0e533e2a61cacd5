package rt

import (
	"sync"
)

// DropEntry mirrors the emitted { i64 type_id, ptr drop_fn } C-layout
// struct; the function reference travels as an opaque address (a native
// pointer, or a WASM function-table index on the interpreter side).
type DropEntry struct {
	TypeID uint64
	DropFn uint64
}

// HashEntry has the same shape; the function is (const ptr) -> u64.
type HashEntry struct {
	TypeID uint64
	HashFn uint64
}

// EqEntry has the same shape; the function is (const ptr, const ptr) -> i32.
type EqEntry struct {
	TypeID uint64
	EqFn   uint64
}

// TypeMetadataEntry mirrors { i64 type_id, i64 size, i64 align,
// ptr drop_fn, ptr variance_array, i64 variance_len, i32 flags }.
type TypeMetadataEntry struct {
	TypeID      uint64
	Size        uint64
	Align       uint64
	DropFn      uint64
	VarianceArr uint64
	VarianceLen uint64
	Flags       uint32
}

// InterfaceDefaultEntry mirrors { ptr implementer_name, ptr interface_name,
// ptr method_name, ptr function }; names are materialized strings on the
// host side.
type InterfaceDefaultEntry struct {
	Implementer string
	Interface   string
	Method      string
	Function    uint64
}

// Invoker dispatches an installed function reference; the WASM
// interpreter installs one that calls into the loaded module, a native
// harness would install a cgo trampoline.
type Invoker func(fn uint64, args ...uint64) (uint64, error)

// Tables is the process-wide dispatch-table set. Installed exactly once
// per process by the ctor-registered init functions; reads are lock-free
// after install (the mutex guards only installation, and Reset exists so
// tests can reinstall).
type Tables struct {
	mu sync.Mutex

	drop map[uint64]DropEntry
	hash map[uint64]HashEntry
	eq   map[uint64]EqEntry
	meta map[uint64]TypeMetadataEntry

	ifaceDefaults []InterfaceDefaultEntry

	invoker Invoker
}

// NewTables returns an empty table set.
func NewTables() *Tables {
	return &Tables{
		drop: make(map[uint64]DropEntry),
		hash: make(map[uint64]HashEntry),
		eq:   make(map[uint64]EqEntry),
		meta: make(map[uint64]TypeMetadataEntry),
	}
}

// Default is the process-wide table set the install symbols target.
var Default = NewTables()

// InstallDropTable stores entries keyed by type_id; last installation wins.
func (t *Tables) InstallDropTable(entries []DropEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.drop[e.TypeID] = e
	}
}

// InstallHashTable stores entries keyed by type_id; last installation wins.
func (t *Tables) InstallHashTable(entries []HashEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.hash[e.TypeID] = e
	}
}

// InstallEqTable stores entries keyed by type_id; last installation wins.
func (t *Tables) InstallEqTable(entries []EqEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.eq[e.TypeID] = e
	}
}

// InstallTypeMetadataTable stores entries keyed by type_id.
func (t *Tables) InstallTypeMetadataTable(entries []TypeMetadataEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.meta[e.TypeID] = e
	}
}

// InstallInterfaceDefaults appends default-method bindings.
func (t *Tables) InstallInterfaceDefaults(entries []InterfaceDefaultEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ifaceDefaults = append(t.ifaceDefaults, entries...)
}

// SetInvoker installs the dispatch callback used by the *Invoke methods.
func (t *Tables) SetInvoker(inv Invoker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invoker = inv
}

// DropResolve returns the drop entry for typeID, if installed.
func (t *Tables) DropResolve(typeID uint64) (DropEntry, bool) {
	e, ok := t.drop[typeID]
	return e, ok
}

// HashResolve returns the hash entry for typeID, if installed.
func (t *Tables) HashResolve(typeID uint64) (HashEntry, bool) {
	e, ok := t.hash[typeID]
	return e, ok
}

// EqResolve returns the eq entry for typeID, if installed.
func (t *Tables) EqResolve(typeID uint64) (EqEntry, bool) {
	e, ok := t.eq[typeID]
	return e, ok
}

// TypeMetadataResolve returns the metadata entry for typeID, if installed.
func (t *Tables) TypeMetadataResolve(typeID uint64) (TypeMetadataEntry, bool) {
	e, ok := t.meta[typeID]
	return e, ok
}

// InterfaceDefault looks up a default-method binding.
func (t *Tables) InterfaceDefault(implementer, iface, method string) (InterfaceDefaultEntry, bool) {
	for _, e := range t.ifaceDefaults {
		if e.Implementer == implementer && e.Interface == iface && e.Method == method {
			return e, true
		}
	}
	return InterfaceDefaultEntry{}, false
}

// DropInvoke resolves and dispatches the drop function for typeID.
func (t *Tables) DropInvoke(typeID, valuePtr uint64) error {
	e, ok := t.DropResolve(typeID)
	if !ok || t.invoker == nil {
		return nil // no drop registered: dropping is a no-op
	}
	_, err := t.invoker(e.DropFn, valuePtr)
	return err
}

// HashInvoke resolves and dispatches the hash function for typeID.
func (t *Tables) HashInvoke(typeID, valuePtr uint64) (uint64, bool, error) {
	e, ok := t.HashResolve(typeID)
	if !ok || t.invoker == nil {
		return 0, false, nil
	}
	h, err := t.invoker(e.HashFn, valuePtr)
	return h, true, err
}

// EqInvoke resolves and dispatches the equality function for typeID,
// returning the 0/1 result.
func (t *Tables) EqInvoke(typeID, leftPtr, rightPtr uint64) (bool, bool, error) {
	e, ok := t.EqResolve(typeID)
	if !ok || t.invoker == nil {
		return false, false, nil
	}
	r, err := t.invoker(e.EqFn, leftPtr, rightPtr)
	return r != 0, true, err
}

// Reset clears every table. Tests only; production installs once and
// never clears.
func (t *Tables) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drop = make(map[uint64]DropEntry)
	t.hash = make(map[uint64]HashEntry)
	t.eq = make(map[uint64]EqEntry)
	t.meta = make(map[uint64]TypeMetadataEntry)
	t.ifaceDefaults = nil
	t.invoker = nil
}

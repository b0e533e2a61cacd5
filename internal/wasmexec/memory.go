package wasmexec

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ExecutionError is the single trap type for WASM execution:
// fatal to the current execution, not to the process.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

// LinearMemoryHeapBase is where host-side allocations start; the region
// below it belongs to the module's data segments and shadow stack.
const LinearMemoryHeapBase uint32 = 1 << 20

// wasmPageSize is the WebAssembly page granule.
const wasmPageSize = 64 * 1024

// trapf raises a bounds/type trap carrying the current wasm context
// (function + call stack).
func (x *Executor) trapf(format string, args ...any) error {
	ctx := ""
	if len(x.callStack) > 0 {
		ctx = fmt.Sprintf(" in %s (stack: %s)", x.callStack[len(x.callStack)-1], strings.Join(x.callStack, " > "))
	}
	return &ExecutionError{Message: fmt.Sprintf(format, args...) + ctx}
}

func (x *Executor) checkRange(addr, n uint32) error {
	if uint64(addr)+uint64(n) > uint64(len(x.mem)) {
		return x.trapf("linear memory access out of range: [%d, %d) of %d", addr, uint64(addr)+uint64(n), len(x.mem))
	}
	return nil
}

// ReadU8 reads one byte with bounds checking.
func (x *Executor) ReadU8(addr uint32) (byte, error) {
	if err := x.checkRange(addr, 1); err != nil {
		return 0, err
	}
	return x.mem[addr], nil
}

// ReadU32 reads a little-endian u32.
func (x *Executor) ReadU32(addr uint32) (uint32, error) {
	if err := x.checkRange(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(x.mem[addr:]), nil
}

// ReadU64 reads a little-endian u64.
func (x *Executor) ReadU64(addr uint32) (uint64, error) {
	if err := x.checkRange(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(x.mem[addr:]), nil
}

// ReadBytes copies n bytes out of linear memory.
func (x *Executor) ReadBytes(addr, n uint32) ([]byte, error) {
	if err := x.checkRange(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, x.mem[addr:addr+n])
	return out, nil
}

// StoreU8 writes one byte.
func (x *Executor) StoreU8(addr uint32, v byte) error {
	if err := x.checkRange(addr, 1); err != nil {
		return err
	}
	x.mem[addr] = v
	return nil
}

// StoreU32 writes a little-endian u32.
func (x *Executor) StoreU32(addr uint32, v uint32) error {
	if err := x.checkRange(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(x.mem[addr:], v)
	return nil
}

// StoreU64 writes a little-endian u64.
func (x *Executor) StoreU64(addr uint32, v uint64) error {
	if err := x.checkRange(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(x.mem[addr:], v)
	return nil
}

// StoreBytes copies data into linear memory.
func (x *Executor) StoreBytes(addr uint32, data []byte) error {
	if err := x.checkRange(addr, uint32(len(data))); err != nil {
		return err
	}
	copy(x.mem[addr:], data)
	return nil
}

// Fill sets n bytes at addr to v.
func (x *Executor) Fill(addr, n uint32, v byte) error {
	if err := x.checkRange(addr, n); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		x.mem[addr+i] = v
	}
	return nil
}

// Alloc advances the heap cursor, aligning up to align. Addresses are
// never reused: no free list.
func (x *Executor) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	base := alignUp32(x.heap, align)
	end := uint64(base) + uint64(size)
	if end > uint64(len(x.mem)) {
		// Grow in whole pages up to the limit of the backing slice model.
		needed := int((end + wasmPageSize - 1) / wasmPageSize * wasmPageSize)
		if needed > 1<<31 {
			return 0, x.trapf("allocation of %d bytes exhausts linear memory", size)
		}
		grown := make([]byte, needed)
		copy(grown, x.mem)
		x.mem = grown
	}
	x.heap = uint32(end)
	return base, nil
}

func alignUp32(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

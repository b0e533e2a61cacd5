package wasmexec

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/chic-lang/chicc-core/internal/rt"
)

// Executor owns the loaded module, linear memory, globals, the heap
// cursor, host handle tables, the async node map, and the call stack
// used by traps and tracing.
type Executor struct {
	mod     *Module
	mem     []byte
	globals []uint64
	heap    uint32

	callStack []string
	trace     *Trace

	hostIO *HostIO

	layout    AsyncLayout
	nodes     map[uint32]*asyncNode
	ready     []uint32
	exception rt.ExceptionSlot

	threadIDs *rt.ThreadRegistry

	coverageHook func(uint64)

	currentImport string

	tables *rt.Tables
	arcs   map[uint32]*arcMeta

	borrows map[borrowKey]int
}

// NewExecutor loads a decoded module: memory sized from its page count,
// data segments copied in, globals initialized, the async layout derived.
// The start function (if any) is not executed; Call drives execution.
func NewExecutor(mod *Module, opts ...Option) (*Executor, error) {
	pages := mod.MemPages
	if uint64(pages)*wasmPageSize < uint64(LinearMemoryHeapBase)+wasmPageSize {
		pages = LinearMemoryHeapBase/wasmPageSize + 1
	}
	x := &Executor{
		mod:       mod,
		mem:       make([]byte, int(pages)*wasmPageSize),
		heap:      LinearMemoryHeapBase,
		layout:    DeriveAsyncLayout(4, 4, nil),
		nodes:     make(map[uint32]*asyncNode),
		threadIDs: rt.NewThreadRegistry(),
		trace:     NewTrace(),
		hostIO:    NewHostIO(),
		tables:    rt.NewTables(),
	}
	for _, g := range mod.Globals {
		x.globals = append(x.globals, g.Init)
	}
	for _, seg := range mod.Data {
		if err := x.StoreBytes(seg.Offset, seg.Data); err != nil {
			return nil, err
		}
	}
	for _, imp := range mod.Imports {
		if !x.importResolvable(imp) {
			return nil, &ExecutionError{Message: fmt.Sprintf("unresolved import %s.%s", imp.Module, imp.Name)}
		}
	}
	for _, o := range opts {
		o(x)
	}
	return x, nil
}

// Option configures an Executor at load time.
type Option func(*Executor)

// WithCoverageHook forwards chic_rt.coverage_hit ids.
func WithCoverageHook(hook func(uint64)) Option {
	return func(x *Executor) { x.coverageHook = hook }
}

// WithAsyncLayoutOverrides replaces derived async layout fields.
func WithAsyncLayoutOverrides(ov *AsyncLayoutOverrides) Option {
	return func(x *Executor) { x.layout = DeriveAsyncLayout(4, 4, ov) }
}

// WithHostIO replaces the default host IO delegate.
func WithHostIO(h *HostIO) Option {
	return func(x *Executor) { x.hostIO = h }
}

// Trace returns the recorded trace.
func (x *Executor) Trace() *Trace { return x.trace }

// Result is one execution's outcome: the returned values plus the
// recorded trace and captured stdio.
type Result struct {
	Values []uint64
	Trace  *Trace
	Stdout []byte
	Stderr []byte
}

// Call executes the exported function name with args.
func (x *Executor) Call(name string, args ...uint64) (*Result, error) {
	idx, ok := x.mod.ExportedFunc(name)
	if !ok {
		return nil, &ExecutionError{Message: fmt.Sprintf("no exported function %q", name)}
	}
	vals, err := x.callFunction(idx, args)
	if err != nil {
		return &Result{Trace: x.trace, Stdout: x.hostIO.Stdout(), Stderr: x.hostIO.Stderr()}, err
	}
	// An entry returning a future pointer hands off to the scheduler.
	if len(vals) == 1 && x.isFuturePointer(uint32(vals[0])) {
		res, err := x.awaitFutureBlocking(uint32(vals[0]), 8)
		if err != nil {
			return &Result{Trace: x.trace}, err
		}
		vals = []uint64{res}
	}
	return &Result{Values: vals, Trace: x.trace, Stdout: x.hostIO.Stdout(), Stderr: x.hostIO.Stderr()}, nil
}

// callFunction dispatches a function index to either the host bridge or
// the bytecode interpreter.
func (x *Executor) callFunction(idx uint32, args []uint64) ([]uint64, error) {
	if int(idx) < len(x.mod.Imports) {
		imp := x.mod.Imports[idx]
		prev := x.currentImport
		x.currentImport = imp.Module + "." + imp.Name
		x.trace.Enter(x.currentImport)
		out, err := x.hostCall(imp, args)
		x.trace.Exit(x.currentImport)
		x.currentImport = prev
		return out, err
	}

	mi := int(idx) - len(x.mod.Imports)
	if mi >= len(x.mod.Codes) {
		return nil, x.trapf("call to out-of-range function index %d", idx)
	}
	ft, _ := x.mod.TypeOfFunc(idx)
	code := &x.mod.Codes[mi]

	name := fmt.Sprintf("func[%d]", idx)
	for _, e := range x.mod.Exports {
		if e.Kind == 0 && e.Index == idx {
			name = e.Name
			break
		}
	}
	x.callStack = append(x.callStack, name)
	x.trace.Enter(name)
	defer func() {
		x.callStack = x.callStack[:len(x.callStack)-1]
		x.trace.Exit(name)
	}()

	locals := make([]uint64, len(ft.Params)+len(code.Locals))
	copy(locals, args)
	frame := &frame{x: x, code: code.Body, locals: locals}
	if err := frame.run(); err != nil {
		return nil, err
	}
	if n := len(ft.Results); n > 0 {
		if len(frame.stack) < n {
			return nil, x.trapf("function %s returned %d values, expected %d", name, len(frame.stack), n)
		}
		return frame.stack[len(frame.stack)-n:], nil
	}
	return nil, nil
}

// frame is one interpreter activation.
type frame struct {
	x      *Executor
	code   []byte
	locals []uint64
	stack  []uint64
}

func (f *frame) push(v uint64)  { f.stack = append(f.stack, v) }
func (f *frame) pop() uint64 {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}
func (f *frame) pop32() uint32 { return uint32(f.pop()) }

// ctrl is one entry of the structured-control stack.
type ctrl struct {
	opcode   byte // 0x02 block, 0x03 loop, 0x04 if
	start    int  // offset of the first instruction inside
	end      int  // offset just past the matching end
	elseAt   int  // offset just past the else, for if
	stackLen int
}

// run interprets the body until the outermost end.
func (f *frame) run() error {
	var control []ctrl
	pc := 0
	code := f.code

	branch := func(depth uint32) error {
		if int(depth) >= len(control) {
			// br out of the function body: terminate.
			pc = len(code)
			return nil
		}
		target := control[len(control)-1-int(depth)]
		control = control[:len(control)-1-int(depth)]
		if target.opcode == 0x03 { // loop: jump back, re-push
			pc = target.start
			control = append(control, target)
		} else {
			pc = target.end
		}
		return nil
	}

	for pc < len(code) {
		op := code[pc]
		pc++
		switch op {
		case 0x00: // unreachable
			return f.x.trapf("unreachable executed")
		case 0x01: // nop
		case 0x02, 0x03: // block, loop
			_, next, err := readBlockType(code, pc)
			if err != nil {
				return err
			}
			end, _, err := f.matchEnd(next)
			if err != nil {
				return err
			}
			control = append(control, ctrl{opcode: op, start: next, end: end, stackLen: len(f.stack)})
			pc = next
		case 0x04: // if
			_, next, err := readBlockType(code, pc)
			if err != nil {
				return err
			}
			end, elseAt, err := f.matchEnd(next)
			if err != nil {
				return err
			}
			cond := f.pop32()
			c := ctrl{opcode: op, start: next, end: end, elseAt: elseAt, stackLen: len(f.stack)}
			control = append(control, c)
			if cond != 0 {
				pc = next
			} else if elseAt > 0 {
				pc = elseAt
			} else {
				pc = end
				control = control[:len(control)-1]
			}
		case 0x05: // else: falls out of the taken if-arm
			if len(control) == 0 {
				return f.x.trapf("else outside if")
			}
			top := control[len(control)-1]
			control = control[:len(control)-1]
			pc = top.end
		case 0x0b: // end
			if len(control) > 0 {
				control = control[:len(control)-1]
			}
		case 0x0c: // br
			depth, next, err := decodeU32(code, pc)
			if err != nil {
				return err
			}
			pc = next
			if err := branch(depth); err != nil {
				return err
			}
		case 0x0d: // br_if
			depth, next, err := decodeU32(code, pc)
			if err != nil {
				return err
			}
			pc = next
			if f.pop32() != 0 {
				if err := branch(depth); err != nil {
					return err
				}
			}
		case 0x0e: // br_table
			count, next, err := decodeU32(code, pc)
			if err != nil {
				return err
			}
			targets := make([]uint32, count)
			for i := range targets {
				targets[i], next, err = decodeU32(code, next)
				if err != nil {
					return err
				}
			}
			var dflt uint32
			dflt, next, err = decodeU32(code, next)
			if err != nil {
				return err
			}
			pc = next
			sel := f.pop32()
			depth := dflt
			if int(sel) < len(targets) {
				depth = targets[sel]
			}
			if err := branch(depth); err != nil {
				return err
			}
		case 0x0f: // return
			pc = len(code)
		case 0x10: // call
			idx, next, err := decodeU32(code, pc)
			if err != nil {
				return err
			}
			pc = next
			if err := f.invoke(idx); err != nil {
				return err
			}
		case 0x11: // call_indirect
			_, next, err := decodeU32(code, pc) // type index
			if err != nil {
				return err
			}
			_, next, err = decodeU32(code, next) // table index
			if err != nil {
				return err
			}
			pc = next
			slot := f.pop32()
			if int(slot) >= len(f.x.mod.Table) {
				return f.x.trapf("call_indirect slot %d out of table range", slot)
			}
			if err := f.invoke(f.x.mod.Table[slot]); err != nil {
				return err
			}
		case 0x1a: // drop
			f.pop()
		case 0x1b: // select
			c := f.pop32()
			b := f.pop()
			a := f.pop()
			if c != 0 {
				f.push(a)
			} else {
				f.push(b)
			}
		case 0x20: // local.get
			i, next, err := decodeU32(code, pc)
			if err != nil {
				return err
			}
			pc = next
			f.push(f.locals[i])
		case 0x21: // local.set
			i, next, err := decodeU32(code, pc)
			if err != nil {
				return err
			}
			pc = next
			f.locals[i] = f.pop()
		case 0x22: // local.tee
			i, next, err := decodeU32(code, pc)
			if err != nil {
				return err
			}
			pc = next
			f.locals[i] = f.stack[len(f.stack)-1]
		case 0x23: // global.get
			i, next, err := decodeU32(code, pc)
			if err != nil {
				return err
			}
			pc = next
			f.push(f.x.globals[i])
		case 0x24: // global.set
			i, next, err := decodeU32(code, pc)
			if err != nil {
				return err
			}
			pc = next
			f.x.globals[i] = f.pop()
		case 0x41: // i32.const
			v, next, err := decodeS32(code, pc)
			if err != nil {
				return err
			}
			pc = next
			f.push(uint64(uint32(v)))
		case 0x42: // i64.const
			v, next, err := decodeS64(code, pc)
			if err != nil {
				return err
			}
			pc = next
			f.push(uint64(v))
		case 0x43: // f32.const
			if pc+4 > len(code) {
				return f.x.trapf("truncated f32.const")
			}
			f.push(uint64(leU32(code[pc:])))
			pc += 4
		case 0x44: // f64.const
			if pc+8 > len(code) {
				return f.x.trapf("truncated f64.const")
			}
			f.push(leU64(code[pc:]))
			pc += 8
		default:
			newPC, err := f.execSimple(op, code, pc)
			if err != nil {
				return err
			}
			pc = newPC
		}
	}
	return nil
}

func (f *frame) invoke(idx uint32) error {
	ft, ok := f.x.mod.TypeOfFunc(idx)
	if !ok {
		return f.x.trapf("call to function %d with unknown type", idx)
	}
	n := len(ft.Params)
	if len(f.stack) < n {
		return f.x.trapf("call to function %d with insufficient operands", idx)
	}
	args := make([]uint64, n)
	copy(args, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	out, err := f.x.callFunction(idx, args)
	if err != nil {
		return err
	}
	f.stack = append(f.stack, out...)
	return nil
}

// matchEnd scans from off for the end of the current structured block,
// also reporting the offset past a same-depth else (0 when absent).
func (f *frame) matchEnd(off int) (end int, elseAt int, err error) {
	depth := 0
	code := f.code
	for off < len(code) {
		op := code[off]
		off++
		switch op {
		case 0x02, 0x03, 0x04:
			_, off, err = readBlockType(code, off)
			if err != nil {
				return 0, 0, err
			}
			depth++
		case 0x05:
			if depth == 0 {
				elseAt = off
			}
		case 0x0b:
			if depth == 0 {
				return off, elseAt, nil
			}
			depth--
		default:
			off, err = skipImmediates(code, op, off)
			if err != nil {
				return 0, 0, err
			}
		}
	}
	return 0, 0, &ExecutionError{Message: "malformed body: unterminated block"}
}

func readBlockType(code []byte, off int) (byte, int, error) {
	if off >= len(code) {
		return 0, off, &ExecutionError{Message: "malformed body: missing block type"}
	}
	return code[off], off + 1, nil
}

// skipImmediates advances past op's immediates without executing.
func skipImmediates(code []byte, op byte, off int) (int, error) {
	var err error
	switch {
	case op == 0x0e: // br_table
		var count uint32
		count, off, err = decodeU32(code, off)
		if err != nil {
			return off, err
		}
		for i := uint32(0); i <= count; i++ {
			_, off, err = decodeU32(code, off)
			if err != nil {
				return off, err
			}
		}
		return off, nil
	case op == 0x11: // call_indirect: type + table
		_, off, err = decodeU32(code, off)
		if err != nil {
			return off, err
		}
		_, off, err = decodeU32(code, off)
		return off, err
	case op == 0x41:
		_, off, err = decodeS32(code, off)
		return off, err
	case op == 0x42:
		_, off, err = decodeS64(code, off)
		return off, err
	case op == 0x43:
		return off + 4, nil
	case op == 0x44:
		return off + 8, nil
	case op >= 0x28 && op <= 0x3e: // loads/stores: align + offset
		_, off, err = decodeU32(code, off)
		if err != nil {
			return off, err
		}
		_, off, err = decodeU32(code, off)
		return off, err
	case op == 0x3f || op == 0x40: // memory.size/grow: memory index
		return off + 1, nil
	case op >= 0x0c && op <= 0x0d, op == 0x10,
		op >= 0x20 && op <= 0x24: // br, br_if, call, locals, globals
		_, off, err = decodeU32(code, off)
		return off, err
	default:
		return off, nil
	}
}

// execSimple handles memory access, comparisons, arithmetic, and
// conversions — every opcode without control-flow significance.
func (f *frame) execSimple(op byte, code []byte, pc int) (int, error) {
	x := f.x
	memarg := func() (uint32, int, error) {
		_, next, err := decodeU32(code, pc) // align hint, unused
		if err != nil {
			return 0, pc, err
		}
		off, next, err := decodeU32(code, next)
		if err != nil {
			return 0, pc, err
		}
		return off, next, nil
	}

	switch op {
	// Memory loads.
	case 0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f, 0x30, 0x31, 0x32, 0x33, 0x34, 0x35:
		off, next, err := memarg()
		if err != nil {
			return pc, err
		}
		addr := f.pop32() + off
		var v uint64
		switch op {
		case 0x28, 0x2a: // i32.load, f32.load
			u, err := x.ReadU32(addr)
			if err != nil {
				return pc, err
			}
			v = uint64(u)
		case 0x29, 0x2b: // i64.load, f64.load
			u, err := x.ReadU64(addr)
			if err != nil {
				return pc, err
			}
			v = u
		case 0x2c: // i32.load8_s
			b, err := x.ReadU8(addr)
			if err != nil {
				return pc, err
			}
			v = uint64(uint32(int32(int8(b))))
		case 0x2d: // i32.load8_u
			b, err := x.ReadU8(addr)
			if err != nil {
				return pc, err
			}
			v = uint64(b)
		case 0x2e: // i32.load16_s
			lo, err := x.ReadBytes(addr, 2)
			if err != nil {
				return pc, err
			}
			v = uint64(uint32(int32(int16(uint16(lo[0]) | uint16(lo[1])<<8))))
		case 0x2f: // i32.load16_u
			lo, err := x.ReadBytes(addr, 2)
			if err != nil {
				return pc, err
			}
			v = uint64(uint16(lo[0]) | uint16(lo[1])<<8)
		case 0x30: // i64.load8_s
			b, err := x.ReadU8(addr)
			if err != nil {
				return pc, err
			}
			v = uint64(int64(int8(b)))
		case 0x31: // i64.load8_u
			b, err := x.ReadU8(addr)
			if err != nil {
				return pc, err
			}
			v = uint64(b)
		case 0x32: // i64.load16_s
			lo, err := x.ReadBytes(addr, 2)
			if err != nil {
				return pc, err
			}
			v = uint64(int64(int16(uint16(lo[0]) | uint16(lo[1])<<8)))
		case 0x33: // i64.load16_u
			lo, err := x.ReadBytes(addr, 2)
			if err != nil {
				return pc, err
			}
			v = uint64(uint16(lo[0]) | uint16(lo[1])<<8)
		case 0x34: // i64.load32_s
			u, err := x.ReadU32(addr)
			if err != nil {
				return pc, err
			}
			v = uint64(int64(int32(u)))
		case 0x35: // i64.load32_u
			u, err := x.ReadU32(addr)
			if err != nil {
				return pc, err
			}
			v = uint64(u)
		}
		f.push(v)
		return next, nil

	// Memory stores.
	case 0x36, 0x37, 0x38, 0x39, 0x3a, 0x3b, 0x3c, 0x3d, 0x3e:
		off, next, err := memarg()
		if err != nil {
			return pc, err
		}
		v := f.pop()
		addr := f.pop32() + off
		switch op {
		case 0x36, 0x38: // i32.store, f32.store
			err = x.StoreU32(addr, uint32(v))
		case 0x37, 0x39: // i64.store, f64.store
			err = x.StoreU64(addr, v)
		case 0x3a, 0x3c: // *.store8
			err = x.StoreU8(addr, byte(v))
		case 0x3b, 0x3d: // *.store16
			err = x.StoreBytes(addr, []byte{byte(v), byte(v >> 8)})
		case 0x3e: // i64.store32
			err = x.StoreU32(addr, uint32(v))
		}
		if err != nil {
			return pc, err
		}
		return next, nil

	case 0x3f: // memory.size
		f.push(uint64(len(x.mem) / wasmPageSize))
		return pc + 1, nil
	case 0x40: // memory.grow
		delta := f.pop32()
		old := len(x.mem) / wasmPageSize
		grown := make([]byte, (old+int(delta))*wasmPageSize)
		copy(grown, x.mem)
		x.mem = grown
		f.push(uint64(old))
		return pc + 1, nil

	// i32 comparisons.
	case 0x45: // i32.eqz
		f.push(b2u(f.pop32() == 0))
		return pc, nil
	case 0x46, 0x47, 0x48, 0x49, 0x4a, 0x4b, 0x4c, 0x4d, 0x4e, 0x4f:
		b := f.pop32()
		a := f.pop32()
		var r bool
		switch op {
		case 0x46:
			r = a == b
		case 0x47:
			r = a != b
		case 0x48:
			r = int32(a) < int32(b)
		case 0x49:
			r = a < b
		case 0x4a:
			r = int32(a) > int32(b)
		case 0x4b:
			r = a > b
		case 0x4c:
			r = int32(a) <= int32(b)
		case 0x4d:
			r = a <= b
		case 0x4e:
			r = int32(a) >= int32(b)
		case 0x4f:
			r = a >= b
		}
		f.push(b2u(r))
		return pc, nil

	// i64 comparisons.
	case 0x50: // i64.eqz
		f.push(b2u(f.pop() == 0))
		return pc, nil
	case 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59, 0x5a:
		b := f.pop()
		a := f.pop()
		var r bool
		switch op {
		case 0x51:
			r = a == b
		case 0x52:
			r = a != b
		case 0x53:
			r = int64(a) < int64(b)
		case 0x54:
			r = a < b
		case 0x55:
			r = int64(a) > int64(b)
		case 0x56:
			r = a > b
		case 0x57:
			r = int64(a) <= int64(b)
		case 0x58:
			r = a <= b
		case 0x59:
			r = int64(a) >= int64(b)
		case 0x5a:
			r = a >= b
		}
		f.push(b2u(r))
		return pc, nil

	// f64 comparisons. f32 comparison opcodes are not handled and trap as
	// unsupported.
	case 0x61, 0x62, 0x63, 0x64, 0x65, 0x66:
		b := math.Float64frombits(f.pop())
		a := math.Float64frombits(f.pop())
		var r bool
		switch op {
		case 0x61:
			r = a == b
		case 0x62:
			r = a != b
		case 0x63:
			r = a < b
		case 0x64:
			r = a > b
		case 0x65:
			r = a <= b
		case 0x66:
			r = a >= b
		}
		f.push(b2u(r))
		return pc, nil

	// i32 arithmetic.
	case 0x67: // i32.clz
		f.push(uint64(bits.LeadingZeros32(f.pop32())))
		return pc, nil
	case 0x68: // i32.ctz
		f.push(uint64(bits.TrailingZeros32(f.pop32())))
		return pc, nil
	case 0x69: // i32.popcnt
		f.push(uint64(bits.OnesCount32(f.pop32())))
		return pc, nil
	case 0x6a, 0x6b, 0x6c, 0x6d, 0x6e, 0x6f, 0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78:
		b := f.pop32()
		a := f.pop32()
		var r uint32
		switch op {
		case 0x6a:
			r = a + b
		case 0x6b:
			r = a - b
		case 0x6c:
			r = a * b
		case 0x6d:
			if b == 0 {
				return pc, x.trapf("integer division by zero")
			}
			r = uint32(int32(a) / int32(b))
		case 0x6e:
			if b == 0 {
				return pc, x.trapf("integer division by zero")
			}
			r = a / b
		case 0x6f:
			if b == 0 {
				return pc, x.trapf("integer division by zero")
			}
			r = uint32(int32(a) % int32(b))
		case 0x70:
			if b == 0 {
				return pc, x.trapf("integer division by zero")
			}
			r = a % b
		case 0x71:
			r = a & b
		case 0x72:
			r = a | b
		case 0x73:
			r = a ^ b
		case 0x74:
			r = a << (b % 32)
		case 0x75:
			r = uint32(int32(a) >> (b % 32))
		case 0x76:
			r = a >> (b % 32)
		case 0x77:
			r = bits.RotateLeft32(a, int(b%32))
		case 0x78:
			r = bits.RotateLeft32(a, -int(b%32))
		}
		f.push(uint64(r))
		return pc, nil

	// i64 arithmetic.
	case 0x79:
		f.push(uint64(bits.LeadingZeros64(f.pop())))
		return pc, nil
	case 0x7a:
		f.push(uint64(bits.TrailingZeros64(f.pop())))
		return pc, nil
	case 0x7b:
		f.push(uint64(bits.OnesCount64(f.pop())))
		return pc, nil
	case 0x7c, 0x7d, 0x7e, 0x7f, 0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89, 0x8a:
		b := f.pop()
		a := f.pop()
		var r uint64
		switch op {
		case 0x7c:
			r = a + b
		case 0x7d:
			r = a - b
		case 0x7e:
			r = a * b
		case 0x7f:
			if b == 0 {
				return pc, x.trapf("integer division by zero")
			}
			r = uint64(int64(a) / int64(b))
		case 0x80:
			if b == 0 {
				return pc, x.trapf("integer division by zero")
			}
			r = a / b
		case 0x81:
			if b == 0 {
				return pc, x.trapf("integer division by zero")
			}
			r = uint64(int64(a) % int64(b))
		case 0x82:
			if b == 0 {
				return pc, x.trapf("integer division by zero")
			}
			r = a % b
		case 0x83:
			r = a & b
		case 0x84:
			r = a | b
		case 0x85:
			r = a ^ b
		case 0x86:
			r = a << (b % 64)
		case 0x87:
			r = uint64(int64(a) >> (b % 64))
		case 0x88:
			r = a >> (b % 64)
		case 0x89:
			r = bits.RotateLeft64(a, int(b%64))
		case 0x8a:
			r = bits.RotateLeft64(a, -int(b%64))
		}
		f.push(r)
		return pc, nil

	// f64 arithmetic (the back end emits doubles). f32 arithmetic opcodes
	// are not handled and trap as unsupported.
	case 0xa0, 0xa1, 0xa2, 0xa3:
		b := math.Float64frombits(f.pop())
		a := math.Float64frombits(f.pop())
		var r float64
		switch op {
		case 0xa0:
			r = a + b
		case 0xa1:
			r = a - b
		case 0xa2:
			r = a * b
		case 0xa3:
			r = a / b
		}
		f.push(math.Float64bits(r))
		return pc, nil

	// Conversions.
	case 0xa7: // i32.wrap_i64
		f.push(uint64(uint32(f.pop())))
		return pc, nil
	case 0xac: // i64.extend_i32_s
		f.push(uint64(int64(int32(f.pop32()))))
		return pc, nil
	case 0xad: // i64.extend_i32_u
		f.push(uint64(f.pop32()))
		return pc, nil
	case 0xb7: // f64.convert_i32_s
		f.push(math.Float64bits(float64(int32(f.pop32()))))
		return pc, nil
	case 0xb8: // f64.convert_i32_u
		f.push(math.Float64bits(float64(f.pop32())))
		return pc, nil
	case 0xaa: // i32.trunc_f64_s
		f.push(uint64(uint32(int32(math.Float64frombits(f.pop())))))
		return pc, nil

	default:
		return pc, x.trapf("unsupported opcode 0x%02x", op)
	}
}

func b2u(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leU64(b []byte) uint64 {
	return uint64(leU32(b)) | uint64(leU32(b[4:]))<<32
}

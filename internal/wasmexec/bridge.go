package wasmexec

import (
	"github.com/chic-lang/chicc-core/internal/rt"
)

// Arc/Rc header field offsets under the wasm32 model. The header spans
// 24 bytes; payload_ptr = header + align_up(24, payload_align). The header narrows type_id to its low 32 bits; the full
// 64-bit identity is retained host-side per allocation.
const (
	arcStrongOff = 0
	arcWeakOff   = 4
	arcSizeOff   = 8
	arcAlignOff  = 12
	arcDropFnOff = 16
	arcTypeIDOff = 20
	arcHeaderLen = 24
)

const maxStrong = ^uint32(0)

// arcMeta is the host-side record per Arc allocation.
type arcMeta struct {
	typeID uint64
}

// importResolvable reports whether the bridge can dispatch an import.
// Imports under chic_rt, env, or any user-declared module route through
// hostCall; anything else fails the load.
func (x *Executor) importResolvable(imp Import) bool {
	switch imp.Module {
	case "chic_rt", "env":
		return true
	default:
		return x.hostIO.HasUserModule(imp.Module)
	}
}

// hostCall dispatches one host import.
func (x *Executor) hostCall(imp Import, args []uint64) ([]uint64, error) {
	if imp.Module != "chic_rt" && imp.Module != "env" {
		return x.hostIO.CallUserImport(imp.Module, imp.Name, args)
	}

	arg := func(i int) uint32 {
		if i < len(args) {
			return uint32(args[i])
		}
		return 0
	}

	switch imp.Name {
	case "arc_new", "rc_new":
		status, err := x.arcNew(arg(0), arg(1), arg(2), arg(3), arg(4), args)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(uint32(status))}, nil

	case "arc_clone", "rc_clone":
		status, err := x.arcClone(arg(0), arg(1))
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(uint32(status))}, nil

	case "arc_drop", "rc_drop":
		if err := x.arcDrop(arg(0)); err != nil {
			return nil, err
		}
		return nil, nil

	case "arc_get", "rc_get":
		p, err := x.arcPayload(arg(0))
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(p)}, nil

	case "arc_get_mut", "rc_get_mut":
		p, err := x.arcPayloadMut(arg(0))
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(p)}, nil

	case "arc_downgrade":
		if err := x.arcDowngrade(arg(0), arg(1)); err != nil {
			return nil, err
		}
		return nil, nil

	case "weak_clone":
		if err := x.weakAdjust(arg(1), 1); err != nil {
			return nil, err
		}
		hdr, err := x.ReadU32(arg(1))
		if err != nil {
			return nil, err
		}
		return nil, x.StoreU32(arg(0), hdr)

	case "weak_drop":
		return nil, x.weakAdjust(arg(0), ^uint32(0))

	case "weak_upgrade":
		p, err := x.weakUpgrade(arg(0), arg(1))
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(p)}, nil

	case "arc_strong_count":
		n, err := x.headerField(arg(0), arcStrongOff)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(n)}, nil

	case "arc_weak_count":
		n, err := x.headerField(arg(0), arcWeakOff)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(n)}, nil

	case "object_new":
		p, err := x.objectNew(args[0])
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(p)}, nil

	case "alloc":
		p, err := x.Alloc(arg(0), arg(1))
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(p)}, nil

	case "panic":
		return nil, x.trapf("chic_rt.panic(%d)", arg(0))

	case "abort":
		return nil, x.trapf("chic_rt.abort(%d)", arg(0))

	case "coverage_hit":
		if x.coverageHook != nil {
			x.coverageHook(args[0])
		}
		return nil, nil

	case "yield":
		return nil, x.pollReady()

	case "async_cancel":
		return nil, x.cancelFuture(arg(0))

	case "throw":
		x.exception.Throw(args[0], args[1])
		return nil, nil

	case "has_pending_exception":
		return []uint64{b2u(x.exception.HasPending())}, nil

	case "take_pending_exception":
		e, ok := x.exception.Take()
		if !ok {
			return []uint64{0}, nil
		}
		return []uint64{e.Payload}, nil

	case "peek_pending_exception":
		e, ok := x.exception.Peek()
		if !ok {
			return []uint64{0}, nil
		}
		return []uint64{e.Payload}, nil

	case "clear_pending_exception":
		x.exception.Clear()
		return nil, nil

	case "abort_unhandled_exception":
		if err := x.exception.AbortUnhandled(); err != nil {
			return nil, x.trapf("unhandled exception: %v", err)
		}
		return nil, nil

	case "thread_current_id":
		return []uint64{1}, nil

	case "borrow_record":
		x.recordBorrow(arg(0))
		return nil, nil

	case "borrow_release":
		return nil, x.releaseBorrow(arg(0))

	case "trace_enter":
		name, err := x.readCString(arg(0))
		if err != nil {
			return nil, err
		}
		x.trace.Enter(name)
		return nil, nil

	case "trace_exit":
		name, err := x.readCString(arg(0))
		if err != nil {
			return nil, err
		}
		x.trace.Exit(name)
		return nil, nil

	default:
		if out, handled, err := x.hostIOCall(imp.Name, args); handled {
			return out, err
		}
		return nil, x.trapf("unresolved host import %s.%s", imp.Module, imp.Name)
	}
}

// arcNew allocates header+payload, sets strong=weak=1, stores descriptor
// fields and the copied payload, and writes the header address to *dest.
// Returns 0 on success, -2 on OOM.
func (x *Executor) arcNew(dest, src, size, align, dropFn uint32, args []uint64) (int32, error) {
	payloadOff := alignUp32(arcHeaderLen, align)
	header, err := x.Alloc(payloadOff+size, 4)
	if err != nil {
		return -2, nil
	}
	var typeID uint64
	if len(args) >= 6 {
		typeID = args[5]
	}
	if err := x.StoreU32(header+arcStrongOff, 1); err != nil {
		return 0, err
	}
	if err := x.StoreU32(header+arcWeakOff, 1); err != nil {
		return 0, err
	}
	if err := x.StoreU32(header+arcSizeOff, size); err != nil {
		return 0, err
	}
	if err := x.StoreU32(header+arcAlignOff, align); err != nil {
		return 0, err
	}
	if err := x.StoreU32(header+arcDropFnOff, dropFn); err != nil {
		return 0, err
	}
	if err := x.StoreU32(header+arcTypeIDOff, uint32(typeID)); err != nil {
		return 0, err
	}
	if x.arcs == nil {
		x.arcs = make(map[uint32]*arcMeta)
	}
	x.arcs[header] = &arcMeta{typeID: typeID}

	if src != 0 && size > 0 {
		payload, err := x.ReadBytes(src, size)
		if err != nil {
			return 0, err
		}
		if err := x.StoreBytes(header+payloadOff, payload); err != nil {
			return 0, err
		}
	}
	return 0, x.StoreU32(dest, header)
}

// arcClone loads the header pointer from *src, increments strong
// (refusing at u32 max), and writes the same header into *dest.
func (x *Executor) arcClone(dest, src uint32) (int32, error) {
	header, err := x.ReadU32(src)
	if err != nil {
		return 0, err
	}
	strong, err := x.ReadU32(header + arcStrongOff)
	if err != nil {
		return 0, err
	}
	if strong == maxStrong {
		return -1, nil
	}
	if err := x.StoreU32(header+arcStrongOff, strong+1); err != nil {
		return 0, err
	}
	return 0, x.StoreU32(dest, header)
}

// arcDrop decrements strong. Memory is never freed — the interpreter is
// a correctness reference.
func (x *Executor) arcDrop(target uint32) error {
	header, err := x.ReadU32(target)
	if err != nil {
		return err
	}
	strong, err := x.ReadU32(header + arcStrongOff)
	if err != nil {
		return err
	}
	if strong == 0 {
		return x.trapf("arc_drop on dead arc at %d", header)
	}
	return x.StoreU32(header+arcStrongOff, strong-1)
}

// arcPayload returns header + align_up(24, align).
func (x *Executor) arcPayload(src uint32) (uint32, error) {
	header, err := x.ReadU32(src)
	if err != nil {
		return 0, err
	}
	align, err := x.ReadU32(header + arcAlignOff)
	if err != nil {
		return 0, err
	}
	return header + alignUp32(arcHeaderLen, align), nil
}

// arcPayloadMut returns the payload pointer iff strong==weak==1, else 0.
func (x *Executor) arcPayloadMut(src uint32) (uint32, error) {
	header, err := x.ReadU32(src)
	if err != nil {
		return 0, err
	}
	strong, err := x.ReadU32(header + arcStrongOff)
	if err != nil {
		return 0, err
	}
	weak, err := x.ReadU32(header + arcWeakOff)
	if err != nil {
		return 0, err
	}
	if strong != 1 || weak != 1 {
		return 0, nil
	}
	align, err := x.ReadU32(header + arcAlignOff)
	if err != nil {
		return 0, err
	}
	return header + alignUp32(arcHeaderLen, align), nil
}

func (x *Executor) arcDowngrade(dest, src uint32) error {
	header, err := x.ReadU32(src)
	if err != nil {
		return err
	}
	weak, err := x.ReadU32(header + arcWeakOff)
	if err != nil {
		return err
	}
	if err := x.StoreU32(header+arcWeakOff, weak+1); err != nil {
		return err
	}
	return x.StoreU32(dest, header)
}

// weakAdjust adds delta to the weak count of the header referenced by a
// weak handle.
func (x *Executor) weakAdjust(handle uint32, delta uint32) error {
	header, err := x.ReadU32(handle)
	if err != nil {
		return err
	}
	weak, err := x.ReadU32(header + arcWeakOff)
	if err != nil {
		return err
	}
	return x.StoreU32(header+arcWeakOff, weak+delta)
}

// weakUpgrade returns 1 when the target is still alive, taking a strong
// reference and writing the header into *dest; it returns 0 otherwise.
func (x *Executor) weakUpgrade(dest, src uint32) (uint32, error) {
	header, err := x.ReadU32(src)
	if err != nil {
		return 0, err
	}
	strong, err := x.ReadU32(header + arcStrongOff)
	if err != nil {
		return 0, err
	}
	if strong == 0 {
		return 0, nil
	}
	if err := x.StoreU32(header+arcStrongOff, strong+1); err != nil {
		return 0, err
	}
	if err := x.StoreU32(dest, header); err != nil {
		return 0, err
	}
	return 1, nil
}

func (x *Executor) headerField(src, off uint32) (uint32, error) {
	header, err := x.ReadU32(src)
	if err != nil {
		return 0, err
	}
	return x.ReadU32(header + off)
}

// objectNew allocates a fresh aligned zeroed block of (size, align) from
// the installed type metadata.
func (x *Executor) objectNew(typeID uint64) (uint32, error) {
	meta, ok := x.tables.TypeMetadataResolve(typeID)
	if !ok {
		return 0, x.trapf("object_new for unregistered type id %#x", typeID)
	}
	p, err := x.Alloc(uint32(meta.Size), uint32(meta.Align))
	if err != nil {
		return 0, err
	}
	if err := x.Fill(p, uint32(meta.Size), 0); err != nil {
		return 0, err
	}
	return p, nil
}

// readCString reads a NUL-terminated string out of linear memory.
func (x *Executor) readCString(addr uint32) (string, error) {
	var out []byte
	for {
		b, err := x.ReadU8(addr)
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
		addr++
		if len(out) > 1<<16 {
			return "", x.trapf("unterminated C string at %d", addr)
		}
	}
}

// InstallTypeMetadata registers type metadata with the executor's table
// set (the wasm module's ctor path calls the install import; tests call
// this directly).
func (x *Executor) InstallTypeMetadata(entries []rt.TypeMetadataEntry) {
	x.tables.InstallTypeMetadataTable(entries)
}

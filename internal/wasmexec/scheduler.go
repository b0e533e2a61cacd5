package wasmexec

import (
	"github.com/chic-lang/chicc-core/internal/rt"
)

// asyncNode is the per-future record of the scheduler's node map,
// keyed by future pointer.
type asyncNode struct {
	waiters      []uint32
	completed    bool
	faulted      bool
	cancelled    bool
	queued       bool
	resultOffset uint32
	borrows      int
}

// nodeFor returns (creating on demand) the async node of a future.
func (x *Executor) nodeFor(future uint32) *asyncNode {
	if n, ok := x.nodes[future]; ok {
		return n
	}
	n := &asyncNode{}
	x.nodes[future] = n
	return n
}

// isFuturePointer reports whether a returned value plausibly points at a
// future header the scheduler should drive: a heap pointer whose vtable
// slot is non-zero.
func (x *Executor) isFuturePointer(p uint32) bool {
	if p < LinearMemoryHeapBase || uint64(p)+uint64(x.layout.FlagsOffset)+4 > uint64(len(x.mem)) {
		return false
	}
	vt, err := x.ReadU32(p + x.layout.VTableOffset)
	return err == nil && vt != 0
}

// futureFlags reads the header flags word.
func (x *Executor) futureFlags(future uint32) (uint32, error) {
	return x.ReadU32(future + x.layout.FlagsOffset)
}

// cancelFuture sets FUTURE_FLAG_CANCELLED; the next poll short-circuits
// to ready without executing user code.
func (x *Executor) cancelFuture(future uint32) error {
	flags, err := x.futureFlags(future)
	if err != nil {
		return err
	}
	x.nodeFor(future).cancelled = true
	return x.StoreU32(future+x.layout.FlagsOffset, flags|rt.FutureFlagCancelled)
}

// Enqueue marks a future ready to be polled on the next sweep.
func (x *Executor) Enqueue(future uint32) {
	n := x.nodeFor(future)
	if !n.queued && !n.completed {
		n.queued = true
		x.ready = append(x.ready, future)
	}
}

// pollFuture invokes the poll slot of the future's async vtable. The
// vtable is { ptr poll_fn, ptr drop_fn }; poll_fn is a table index into
// the module's function table taking the future pointer.
func (x *Executor) pollFuture(future uint32) error {
	flags, err := x.futureFlags(future)
	if err != nil {
		return err
	}
	if flags&rt.FutureFlagCancelled != 0 {
		// Short-circuit to ready; the result slot is left untouched.
		n := x.nodeFor(future)
		n.completed = true
		n.cancelled = true
		return x.StoreU32(future+x.layout.FlagsOffset, flags|rt.FutureFlagReady)
	}
	vtAddr, err := x.ReadU32(future + x.layout.VTableOffset)
	if err != nil {
		return err
	}
	pollSlot, err := x.ReadU32(vtAddr)
	if err != nil {
		return err
	}
	if int(pollSlot) >= len(x.mod.Table) {
		return x.trapf("async vtable poll slot %d outside function table", pollSlot)
	}
	x.trace.Await(future)
	_, err = x.callFunction(x.mod.Table[pollSlot], []uint64{uint64(future)})
	if err != nil {
		x.nodeFor(future).faulted = true
		return err
	}
	flags, err = x.futureFlags(future)
	if err != nil {
		return err
	}
	if flags&rt.FutureFlagReady != 0 {
		x.nodeFor(future).completed = true
	}
	return nil
}

// pollReady drains one sweep of the ready queue: every queued future is
// polled at least once, keeping the progress guarantee even when one of
// them traps — the first error is returned after the sweep completes
// (the faulted future's node already carries its flag).
func (x *Executor) pollReady() error {
	queue := x.ready
	x.ready = nil
	var firstErr error
	for _, fut := range queue {
		x.nodes[fut].queued = false
		if err := x.pollFuture(fut); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// awaitFutureBlocking polls the future until ready, dequeueing and
// polling other ready futures while it pends. No ready and no queued
// futures with the target still pending is a deadlock trap.
func (x *Executor) awaitFutureBlocking(future uint32, resultLen uint32) (uint64, error) {
	for {
		if err := x.pollFuture(future); err != nil {
			return 0, err
		}
		flags, err := x.futureFlags(future)
		if err != nil {
			return 0, err
		}
		if flags&rt.FutureFlagReady != 0 {
			if flags&rt.FutureFlagCancelled != 0 {
				return 0, nil
			}
			return x.readResult(future, resultLen)
		}
		if len(x.ready) == 0 {
			return 0, x.trapf("async deadlock: future %d pending with no ready or queued futures", future)
		}
		if err := x.pollReady(); err != nil {
			return 0, err
		}
	}
}

// readResult reads the completed future's result from the offset the
// async layout computes for its length.
func (x *Executor) readResult(future uint32, resultLen uint32) (uint64, error) {
	off := x.layout.ResultOffset(resultLen, resultAlignFor(resultLen))
	switch {
	case resultLen == 0:
		return 0, nil
	case resultLen == 1:
		b, err := x.ReadU8(future + off)
		return uint64(b), err
	case resultLen <= 4:
		v, err := x.ReadU32(future + off)
		return uint64(v), err
	default:
		return x.ReadU64(future + off)
	}
}

func resultAlignFor(resultLen uint32) uint32 {
	switch {
	case resultLen >= 8:
		return 8
	case resultLen >= 4:
		return 4
	case resultLen >= 2:
		return 2
	default:
		return 1
	}
}

package rt

import "sync"

// AllocatorVTable is the installable allocator hook set behind
// chic_rt_allocator_install. A nil function falls back to the default
// allocator of whichever host embeds the runtime.
type AllocatorVTable struct {
	Alloc       func(size, align uint64) uint64
	AllocZeroed func(size, align uint64) uint64
	Realloc     func(ptr, oldSize, newSize, align uint64) uint64
	Free        func(ptr, size, align uint64)
}

// AllocStats is the telemetry snapshot chic_rt_alloc_stats reports.
type AllocStats struct {
	AllocCalls   uint64
	FreeCalls    uint64
	BytesAlloced uint64
	BytesFreed   uint64
	LiveBytes    uint64
	PeakBytes    uint64
}

// Allocator tracks the installed vtable and telemetry counters.
type Allocator struct {
	mu     sync.Mutex
	vtable *AllocatorVTable
	stats  AllocStats
}

// Install replaces the allocator vtable; the previous one is returned so
// a caller can restore it.
func (a *Allocator) Install(v *AllocatorVTable) *AllocatorVTable {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.vtable
	a.vtable = v
	return prev
}

// RecordAlloc accounts one allocation of size bytes.
func (a *Allocator) RecordAlloc(size uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.AllocCalls++
	a.stats.BytesAlloced += size
	a.stats.LiveBytes += size
	if a.stats.LiveBytes > a.stats.PeakBytes {
		a.stats.PeakBytes = a.stats.LiveBytes
	}
}

// RecordFree accounts one free of size bytes.
func (a *Allocator) RecordFree(size uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.FreeCalls++
	a.stats.BytesFreed += size
	if a.stats.LiveBytes >= size {
		a.stats.LiveBytes -= size
	} else {
		a.stats.LiveBytes = 0
	}
}

// Stats returns a telemetry snapshot.
func (a *Allocator) Stats() AllocStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// VTable returns the installed vtable, or nil for the default allocator.
func (a *Allocator) VTable() *AllocatorVTable {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.vtable
}

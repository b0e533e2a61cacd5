package rt

import (
	"sync"

	"github.com/chic-lang/chicc-core/internal/diag"
)

// PendingException is the thread-local pending-exception slot's content:
// a pointer-sized payload plus the exception's type identity.
type PendingException struct {
	Payload uint64
	TypeID  uint64
}

// ExceptionSlot models one thread's pending-exception slot. The WASM
// interpreter is single-threaded and owns exactly one; a native harness
// would hold one per OS thread.
type ExceptionSlot struct {
	mu      sync.Mutex
	pending *PendingException
}

// Throw sets the slot. An already-pending exception is overwritten, the
// same way the native runtime's thread-local store is.
func (s *ExceptionSlot) Throw(payload, typeID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &PendingException{Payload: payload, TypeID: typeID}
}

// HasPending reports whether an exception is in flight.
func (s *ExceptionSlot) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Peek returns the pending exception without clearing it.
func (s *ExceptionSlot) Peek() (PendingException, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingException{}, false
	}
	return *s.pending, true
}

// Take returns and clears the pending exception.
func (s *ExceptionSlot) Take() (PendingException, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingException{}, false
	}
	e := *s.pending
	s.pending = nil
	return e, true
}

// Clear drops any pending exception.
func (s *ExceptionSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

// AbortUnhandled is called when a pending exception reaches the
// outermost boundary; it returns the RT002 report the caller surfaces
// before terminating execution.
func (s *ExceptionSlot) AbortUnhandled() error {
	e, ok := s.Take()
	if !ok {
		return nil
	}
	r := diag.New(diag.RT002, "unhandled exception reached the outermost boundary", nil)
	r.Data["payload"] = e.Payload
	r.Data["type_id"] = e.TypeID
	return diag.Wrap(r)
}

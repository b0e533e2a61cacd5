package wasmexec

import (
	"encoding/json"
	"os"
	"sync"
)

// TraceEventKind tags one recorded event.
type TraceEventKind string

const (
	TraceCall   TraceEventKind = "call"
	TraceReturn TraceEventKind = "return"
	TraceAwait  TraceEventKind = "await"
)

// TraceEvent records one call/return or scheduler await. Seq substitutes for wall-clock time so traces are
// deterministic across runs.
type TraceEvent struct {
	Kind   TraceEventKind `json:"kind"`
	Name   string         `json:"name,omitempty"`
	Future uint32         `json:"future,omitempty"`
	Depth  int            `json:"depth"`
	Seq    uint64         `json:"seq"`
}

// Trace accumulates events for one execution.
type Trace struct {
	mu     sync.Mutex
	events []TraceEvent
	depth  int
	seq    uint64
}

// NewTrace returns an empty trace.
func NewTrace() *Trace { return &Trace{} }

// Enter records a call event.
func (t *Trace) Enter(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.events = append(t.events, TraceEvent{Kind: TraceCall, Name: name, Depth: t.depth, Seq: t.seq})
	t.depth++
}

// Exit records a return event.
func (t *Trace) Exit(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	if t.depth > 0 {
		t.depth--
	}
	t.events = append(t.events, TraceEvent{Kind: TraceReturn, Name: name, Depth: t.depth, Seq: t.seq})
}

// Await records a scheduler poll of a future.
func (t *Trace) Await(future uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.events = append(t.events, TraceEvent{Kind: TraceAwait, Future: future, Depth: t.depth, Seq: t.seq})
}

// Events returns a snapshot of the recorded events.
func (t *Trace) Events() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceEvent(nil), t.events...)
}

// chromeEvent is the chrome://tracing JSON event shape ("name", "ph",
// "ts", "pid", "tid", "args").
type chromeEvent struct {
	Name string         `json:"name"`
	Ph   string         `json:"ph"`
	Ts   uint64         `json:"ts"`
	Pid  int            `json:"pid"`
	Tid  int            `json:"tid"`
	Args map[string]any `json:"args,omitempty"`
}

// ChromeTraceJSON renders the trace as a chrome-trace-compatible event
// array. Call events map to "B" (begin), returns to "E" (end), awaits to
// instant events.
func (t *Trace) ChromeTraceJSON() ([]byte, error) {
	events := t.Events()
	out := make([]chromeEvent, 0, len(events))
	for _, e := range events {
		ce := chromeEvent{Name: e.Name, Ts: e.Seq, Pid: 1, Tid: 1}
		switch e.Kind {
		case TraceCall:
			ce.Ph = "B"
		case TraceReturn:
			ce.Ph = "E"
		case TraceAwait:
			ce.Ph = "i"
			ce.Name = "await"
			ce.Args = map[string]any{"future": e.Future}
		}
		out = append(out, ce)
	}
	return json.Marshal(out)
}

// Flush writes the chrome trace to path, the behaviour behind
// chic_rt_trace_flush.
func (t *Trace) Flush(path string) error {
	data, err := t.ChromeTraceJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

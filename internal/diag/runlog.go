package diag

import "time"

// RunLog records the structured phase trace a compilation accumulates,
// independent of any single diagnostic: a chronological list of phase
// enter/exit events with duration and diagnostic counts, kept separate
// from per-Report data so tooling can answer "how long did
// monomorphization take" without parsing diagnostic text.
type RunLog struct {
	Entries []RunLogEntry
}

// RunLogEntry is one phase's contribution to the run log.
type RunLogEntry struct {
	Phase         string        // "mir", "monomorphize", "llvm", "wasm"
	Entered       time.Time
	Duration      time.Duration
	Diagnostics   int
	FunctionCount int // functions touched during this phase, when applicable
}

// NewRunLog returns an empty log.
func NewRunLog() *RunLog {
	return &RunLog{}
}

// Begin starts timing a phase and returns a function to call on completion.
//
//	done := log.Begin("llvm")
//	defer done(len(module.Functions), 0)
func (l *RunLog) Begin(phase string) func(functionCount, diagnostics int) {
	start := time.Now()
	entered := start
	return func(functionCount, diagnostics int) {
		l.Entries = append(l.Entries, RunLogEntry{
			Phase:         phase,
			Entered:       entered,
			Duration:      time.Since(start),
			Diagnostics:   diagnostics,
			FunctionCount: functionCount,
		})
	}
}

// TotalDiagnostics sums the diagnostic counts recorded across all phases.
func (l *RunLog) TotalDiagnostics() int {
	total := 0
	for _, e := range l.Entries {
		total += e.Diagnostics
	}
	return total
}

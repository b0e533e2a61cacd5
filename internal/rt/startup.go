package rt

import "sync"

// EntryDescriptor is the entry slice of the startup descriptor: the
// program entry's function reference plus its flags word.
type EntryDescriptor struct {
	EntryFn uint64
	Flags   uint32
}

// TestCaseDescriptor is one testcase slot in the startup descriptor.
type TestCaseDescriptor struct {
	Fn    uint64
	Name  string
	Flags uint32
}

// StartupDescriptor is the host-side mirror of the fixed-symbol
// __chic_startup_descriptor global. Version must equal
// StartupDescriptorVersion or the snapshot is rejected.
type StartupDescriptor struct {
	Version   uint32
	Entry     EntryDescriptor
	TestCases []TestCaseDescriptor
}

// CallEntry runs a synchronous entry function; CallEntryAsync starts an
// async entry and returns a task reference the completion hook polls to
// an exit code. Both are installed by whichever executor hosts the
// runtime (the WASM interpreter, or a test harness).
type (
	CallEntry          func(fn uint64, flags uint32, argc uint32, argv, envp uint64) int32
	CallEntryAsync     func(fn uint64, flags uint32, argc uint32, argv, envp uint64) (task uint64)
	CompleteEntryAsync func(task uint64, flags uint32) int32
	RunTestCase        func(tc TestCaseDescriptor) int32
)

// Startup models the runtime's startup state: the stored process
// arguments, the run-tests flag, and the installed descriptor.
type Startup struct {
	mu sync.Mutex

	descriptor *StartupDescriptor

	argc uint32
	argv uint64
	envp uint64

	runTests bool

	callEntry     CallEntry
	callAsync     CallEntryAsync
	completeAsync CompleteEntryAsync
	runTestCase   RunTestCase
}

// InstallDescriptor stores the descriptor; a version other than
// StartupDescriptorVersion is ignored, leaving no descriptor installed.
func (s *Startup) InstallDescriptor(d *StartupDescriptor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == nil || d.Version != StartupDescriptorVersion {
		return false
	}
	s.descriptor = d
	return true
}

// StoreState records argc/argv/envp, mirroring chic_rt_startup_store_state.
func (s *Startup) StoreState(argc uint32, argv, envp uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.argc, s.argv, s.envp = argc, argv, envp
}

// SetRunTests toggles the run-tests flag the native main consults.
func (s *Startup) SetRunTests(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runTests = v
}

// HasRunTestsFlag mirrors chic_rt_startup_has_run_tests_flag.
func (s *Startup) HasRunTestsFlag() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runTests
}

// DescriptorSnapshot returns a copy of the installed descriptor.
func (s *Startup) DescriptorSnapshot() (StartupDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.descriptor == nil {
		return StartupDescriptor{}, false
	}
	d := *s.descriptor
	d.TestCases = append([]TestCaseDescriptor(nil), s.descriptor.TestCases...)
	return d, true
}

// InstallHooks wires the executor callbacks Run dispatches through.
func (s *Startup) InstallHooks(entry CallEntry, async CallEntryAsync, complete CompleteEntryAsync, test RunTestCase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callEntry = entry
	s.callAsync = async
	s.completeAsync = complete
	s.runTestCase = test
}

// Run reproduces the native main wrapper's dispatch: tests
// first when flagged, then async vs sync entry on the descriptor's flags
// word, 0 when no entry is defined.
func (s *Startup) Run() int32 {
	if s.HasRunTestsFlag() {
		return s.TestExecutorRunAll()
	}
	snapshot, ok := s.DescriptorSnapshot()
	if !ok || snapshot.Entry.EntryFn == 0 {
		return 0
	}
	s.mu.Lock()
	callEntry, callAsync, completeAsync := s.callEntry, s.callAsync, s.completeAsync
	argc, argv, envp := s.argc, s.argv, s.envp
	s.mu.Unlock()

	if snapshot.Entry.Flags&EntryFlagAsync != 0 {
		if callAsync == nil || completeAsync == nil {
			return 0
		}
		task := callAsync(snapshot.Entry.EntryFn, snapshot.Entry.Flags, argc, argv, envp)
		return completeAsync(task, snapshot.Entry.Flags)
	}
	if callEntry == nil {
		return 0
	}
	return callEntry(snapshot.Entry.EntryFn, snapshot.Entry.Flags, argc, argv, envp)
}

// TestExecutorRunAll mirrors chic_rt_test_executor_run_all: run every
// testcase in descriptor order and report the count of failures as the
// exit code (0 when all pass).
func (s *Startup) TestExecutorRunAll() int32 {
	snapshot, ok := s.DescriptorSnapshot()
	if !ok {
		return 0
	}
	s.mu.Lock()
	runTest := s.runTestCase
	s.mu.Unlock()
	if runTest == nil {
		return 0
	}
	var failures int32
	for _, tc := range snapshot.TestCases {
		if runTest(tc) != 0 {
			failures++
		}
	}
	return failures
}

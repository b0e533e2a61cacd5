package rt

import (
	"errors"
	"testing"

	"github.com/chic-lang/chicc-core/internal/diag"
)

func TestTables_LastInstallWins(t *testing.T) {
	tables := NewTables()
	tables.InstallDropTable([]DropEntry{{TypeID: 7, DropFn: 100}})
	tables.InstallDropTable([]DropEntry{{TypeID: 7, DropFn: 200}})

	e, ok := tables.DropResolve(7)
	if !ok || e.DropFn != 200 {
		t.Fatalf("last installation must win, got %+v ok=%v", e, ok)
	}
	if _, ok := tables.DropResolve(8); ok {
		t.Error("unknown type_id must not resolve")
	}
}

func TestTables_InvokeDispatchesThroughInvoker(t *testing.T) {
	tables := NewTables()
	tables.InstallEqTable([]EqEntry{{TypeID: 3, EqFn: 42}})
	var gotFn uint64
	tables.SetInvoker(func(fn uint64, args ...uint64) (uint64, error) {
		gotFn = fn
		if len(args) != 2 {
			t.Fatalf("eq invoke must pass two pointers, got %d", len(args))
		}
		return 1, nil
	})

	eq, found, err := tables.EqInvoke(3, 0x10, 0x20)
	if err != nil || !found || !eq {
		t.Fatalf("EqInvoke = (%v,%v,%v)", eq, found, err)
	}
	if gotFn != 42 {
		t.Errorf("invoked fn = %d, want 42", gotFn)
	}
}

func TestExceptionSlot_ThrowTakeClear(t *testing.T) {
	var slot ExceptionSlot
	if slot.HasPending() {
		t.Fatal("fresh slot must be empty")
	}
	slot.Throw(0xdead, 0x1234)
	if !slot.HasPending() {
		t.Fatal("Throw must set the slot")
	}
	peeked, _ := slot.Peek()
	if peeked.Payload != 0xdead || peeked.TypeID != 0x1234 {
		t.Fatalf("Peek = %+v", peeked)
	}
	if !slot.HasPending() {
		t.Error("Peek must not clear the slot")
	}
	taken, ok := slot.Take()
	if !ok || taken != peeked {
		t.Fatalf("Take = %+v ok=%v", taken, ok)
	}
	if slot.HasPending() {
		t.Error("Take must clear the slot")
	}
}

func TestExceptionSlot_AbortUnhandledReportsRT002(t *testing.T) {
	var slot ExceptionSlot
	slot.Throw(1, 2)
	err := slot.AbortUnhandled()
	rep, ok := diag.AsReport(err)
	if !ok || rep.Code != diag.RT002 {
		t.Fatalf("expected an RT002 report, got %v", err)
	}
}

func TestResolver_OptionalAndRequiredFailures(t *testing.T) {
	fail := func(path, symbol string) (uint64, error) { return 0, errors.New("not found") }
	r := NewResolver(fail)

	fn, err := r.Resolve(FFIDescriptor{Library: "user32", Symbol: "MessageBoxW", Optional: true})
	if err != nil || fn != 0 {
		t.Fatalf("optional failure must yield (0, nil), got (%d, %v)", fn, err)
	}

	_, err = r.Resolve(FFIDescriptor{Library: "user32", Symbol: "MessageBoxW"})
	rep, ok := diag.AsReport(err)
	if !ok || rep.Code != diag.RT001 {
		t.Fatalf("required failure must report RT001, got %v", err)
	}
}

func TestResolver_SearchPathAndPattern(t *testing.T) {
	var probed []string
	load := func(path, symbol string) (uint64, error) {
		probed = append(probed, path)
		if path == "/opt/native/libm.so" {
			return 0xabc, nil
		}
		return 0, errors.New("no")
	}
	r := NewResolver(load)
	r.AddSearchPath("/opt/native")

	fn, err := r.Resolve(FFIDescriptor{Library: "m", Symbol: "cos"})
	if err != nil || fn != 0xabc {
		t.Fatalf("Resolve = (%d, %v)", fn, err)
	}
	if probed[0] != "/opt/native/libm.so" {
		t.Errorf("search paths must be probed first, probed %v", probed)
	}

	// Cached on second resolve: the loader must not run again.
	probed = nil
	if fn, _ := r.Resolve(FFIDescriptor{Library: "m", Symbol: "cos"}); fn != 0xabc {
		t.Fatal("cached resolve changed value")
	}
	if len(probed) != 0 {
		t.Errorf("second resolve must hit the cache, probed %v", probed)
	}
}

func TestArcPayloadOffset(t *testing.T) {
	tests := []struct {
		align uint32
		want  uint32
	}{
		{1, 24},
		{4, 24},
		{8, 24},
		{16, 32},
	}
	for _, tt := range tests {
		if got := ArcPayloadOffset(tt.align); got != tt.want {
			t.Errorf("ArcPayloadOffset(%d) = %d, want %d", tt.align, got, tt.want)
		}
	}
}

func TestInlineCapacity(t *testing.T) {
	if got := InlineCapacity(8); got != 8 {
		t.Errorf("InlineCapacity(8) = %d, want 8", got)
	}
	if got := InlineCapacity(65); got != 0 {
		t.Errorf("elements larger than the inline region must spill, got %d", got)
	}
	if got := InlineCapacity(0); got != 0 {
		t.Errorf("zero-size elements never use inline storage, got %d", got)
	}
}

func TestStartup_EntryDispatch(t *testing.T) {
	var s Startup
	var syncCalled, asyncCalled bool
	s.InstallHooks(
		func(fn uint64, flags uint32, argc uint32, argv, envp uint64) int32 {
			syncCalled = true
			return 7
		},
		func(fn uint64, flags uint32, argc uint32, argv, envp uint64) uint64 {
			asyncCalled = true
			return 0x100
		},
		func(task uint64, flags uint32) int32 {
			if task != 0x100 {
				t.Errorf("completion must receive the task from call_entry_async")
			}
			return 9
		},
		nil,
	)

	if !s.InstallDescriptor(&StartupDescriptor{
		Version: StartupDescriptorVersion,
		Entry:   EntryDescriptor{EntryFn: 0x40, Flags: EntryFlagAsync | EntryFlagRetI32},
	}) {
		t.Fatal("descriptor with version 1 must install")
	}
	if code := s.Run(); code != 9 {
		t.Fatalf("async entry exit code = %d, want 9", code)
	}
	if !asyncCalled || syncCalled {
		t.Error("async entry must not take the sync path")
	}

	s.InstallDescriptor(&StartupDescriptor{
		Version: StartupDescriptorVersion,
		Entry:   EntryDescriptor{EntryFn: 0x40, Flags: EntryFlagRetI32},
	})
	if code := s.Run(); code != 7 {
		t.Fatalf("sync entry exit code = %d, want 7", code)
	}
}

func TestStartup_RejectsWrongVersion(t *testing.T) {
	var s Startup
	if s.InstallDescriptor(&StartupDescriptor{Version: 2}) {
		t.Fatal("descriptor version must equal 1")
	}
	if code := s.Run(); code != 0 {
		t.Fatalf("no descriptor installed: exit code = %d, want 0", code)
	}
}

func TestStartup_TestExecutorCountsFailures(t *testing.T) {
	var s Startup
	s.InstallDescriptor(&StartupDescriptor{
		Version: StartupDescriptorVersion,
		TestCases: []TestCaseDescriptor{
			{Fn: 1, Name: "a"},
			{Fn: 2, Name: "b"},
			{Fn: 3, Name: "c", Flags: TestCaseFlagAsync},
		},
	})
	s.SetRunTests(true)
	s.InstallHooks(nil, nil, nil, func(tc TestCaseDescriptor) int32 {
		if tc.Name == "b" {
			return 1
		}
		return 0
	})
	if code := s.Run(); code != 1 {
		t.Fatalf("one failing testcase must yield exit code 1, got %d", code)
	}
}

func TestThreadRegistry(t *testing.T) {
	r := NewThreadRegistry()
	id1 := r.Spawn()
	id2 := r.Spawn()
	if id1 != 1 || id2 != 2 {
		t.Fatalf("ids = %d,%d, want 1,2", id1, id2)
	}
	if !r.Join(id1) || r.Join(id1) {
		t.Error("join must succeed once per spawn")
	}
	if !r.Alive(id2) {
		t.Error("unjoined thread must stay alive")
	}
}

func TestAllocatorStats(t *testing.T) {
	var a Allocator
	a.RecordAlloc(100)
	a.RecordAlloc(50)
	a.RecordFree(100)
	st := a.Stats()
	if st.LiveBytes != 50 || st.PeakBytes != 150 || st.AllocCalls != 2 || st.FreeCalls != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

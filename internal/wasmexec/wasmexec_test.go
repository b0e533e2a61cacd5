package wasmexec

import (
	"strings"
	"testing"

	"github.com/chic-lang/chicc-core/testutil"
)

// binBuilder assembles a minimal WebAssembly 1.0 binary for tests.
type binBuilder struct {
	buf []byte
}

func u32leb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			return append(out, b)
		}
	}
}

func (b *binBuilder) section(id byte, body []byte) {
	b.buf = append(b.buf, id)
	b.buf = append(b.buf, u32leb(uint32(len(body)))...)
	b.buf = append(b.buf, body...)
}

func (b *binBuilder) bytes() []byte {
	return append(append([]byte{}, wasmMagic...), b.buf...)
}

func vec(items ...[]byte) []byte {
	out := u32leb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func funcType(params, results []ValType) []byte {
	out := []byte{0x60}
	out = append(out, u32leb(uint32(len(params)))...)
	for _, p := range params {
		out = append(out, byte(p))
	}
	out = append(out, u32leb(uint32(len(results)))...)
	for _, r := range results {
		out = append(out, byte(r))
	}
	return out
}

func exportFunc(name string, idx uint32) []byte {
	out := u32leb(uint32(len(name)))
	out = append(out, name...)
	out = append(out, 0x00)
	return append(out, u32leb(idx)...)
}

func codeBody(locals []ValType, body []byte) []byte {
	inner := u32leb(uint32(len(locals)))
	for _, l := range locals {
		inner = append(inner, 0x01, byte(l))
	}
	inner = append(inner, body...)
	out := u32leb(uint32(len(inner)))
	return append(out, inner...)
}

// answerModule exports "answer" returning i32 42, plus "add" adding its
// two parameters.
func answerModule() []byte {
	var b binBuilder
	b.section(secType, vec(
		funcType(nil, []ValType{ValI32}),
		funcType([]ValType{ValI32, ValI32}, []ValType{ValI32}),
	))
	b.section(secFunction, vec(u32leb(0), u32leb(1)))
	b.section(secExport, vec(exportFunc("answer", 0), exportFunc("add", 1)))
	b.section(secCode, vec(
		codeBody(nil, []byte{0x41, 42, 0x0b}),
		codeBody(nil, []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}),
	))
	return b.bytes()
}

func TestLEB128RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 16384, 0xffffffff} {
		got, off, err := decodeU32(u32leb(v), 0)
		if err != nil || got != v {
			t.Fatalf("decodeU32(%d) = %d, %v", v, got, err)
		}
		if off != len(u32leb(v)) {
			t.Fatalf("decodeU32(%d) consumed %d of %d bytes", v, off, len(u32leb(v)))
		}
	}
	neg, _, err := decodeS32([]byte{0x7f}, 0)
	if err != nil || neg != -1 {
		t.Fatalf("decodeS32(0x7f) = %d, %v, want -1", neg, err)
	}
	if _, _, err := decodeU32([]byte{0x80, 0x80}, 0); err == nil {
		t.Error("truncated varint must error")
	}
}

func TestDecodeModule_RejectsBadMagic(t *testing.T) {
	_, err := DecodeModule([]byte{1, 2, 3, 4})
	if err == nil || !strings.Contains(err.Error(), "magic") {
		t.Fatalf("bad magic must be rejected, got %v", err)
	}
}

func TestExecute_ConstAndAdd(t *testing.T) {
	mod, err := DecodeModule(answerModule())
	if err != nil {
		t.Fatal(err)
	}
	x, err := NewExecutor(mod)
	if err != nil {
		t.Fatal(err)
	}
	res, err := x.Call("answer")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Values) != 1 || res.Values[0] != 42 {
		t.Fatalf("answer() = %v, want [42]", res.Values)
	}
	res, err = x.Call("add", 40, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Values[0] != 42 {
		t.Fatalf("add(40,2) = %v", res.Values)
	}
}

func TestExecute_TraceRecordsCalls(t *testing.T) {
	mod, _ := DecodeModule(answerModule())
	x, _ := NewExecutor(mod)
	if _, err := x.Call("answer"); err != nil {
		t.Fatal(err)
	}
	events := x.Trace().Events()
	if len(events) < 2 || events[0].Kind != TraceCall || events[0].Name != "answer" {
		t.Fatalf("trace = %+v", events)
	}
}

func TestMemory_BoundsTrapCarriesContext(t *testing.T) {
	mod, _ := DecodeModule(answerModule())
	x, _ := NewExecutor(mod)
	x.callStack = append(x.callStack, "Demo::Main")
	_, err := x.ReadU32(uint32(len(x.mem)))
	if err == nil {
		t.Fatal("out-of-range read must trap")
	}
	if !strings.Contains(err.Error(), "Demo::Main") {
		t.Errorf("trap must carry the wasm context, got %q", err.Error())
	}
}

func TestAlloc_AlignsAndNeverReuses(t *testing.T) {
	mod, _ := DecodeModule(answerModule())
	x, _ := NewExecutor(mod)
	a, err := x.Alloc(10, 8)
	if err != nil {
		t.Fatal(err)
	}
	if a%8 != 0 || a < LinearMemoryHeapBase {
		t.Fatalf("allocation %d must be 8-aligned above the heap base", a)
	}
	b, _ := x.Alloc(1, 1)
	if b < a+10 {
		t.Fatalf("allocations must monotonically advance: %d then %d", a, b)
	}
}

func chicImport(name string) Import {
	return Import{Module: "chic_rt", Name: name}
}

// Scenario: arc_new/arc_clone/arc_strong_count/arc_drop round-trip with
// strong counts 1 -> 2 -> 1 and identical payload pointers across clones.
func TestArcRoundTrip(t *testing.T) {
	mod, _ := DecodeModule(answerModule())
	x, _ := NewExecutor(mod)

	const destA, destB, src = 64, 72, 128
	payload := []byte("abcdefghijklmnopqrstuvwx") // 24 bytes
	if err := x.StoreBytes(src, payload); err != nil {
		t.Fatal(err)
	}

	out, err := x.hostCall(chicImport("arc_new"), []uint64{destA, src, 24, 8, 0, 0x1234})
	if err != nil || out[0] != 0 {
		t.Fatalf("arc_new = %v, %v", out, err)
	}
	header, _ := x.ReadU32(destA)

	// Payload lives at header + align_up(24, 8) = header + 24 and holds
	// the copied bytes.
	got, err := x.ReadBytes(header+24, 24)
	if err != nil || string(got) != string(payload) {
		t.Fatalf("payload = %q, %v", got, err)
	}

	out, err = x.hostCall(chicImport("arc_get"), []uint64{destA})
	if err != nil || uint32(out[0]) != header+24 {
		t.Fatalf("arc_get = %v, want %d", out, header+24)
	}

	if out, err = x.hostCall(chicImport("arc_clone"), []uint64{destB, destA}); err != nil || out[0] != 0 {
		t.Fatalf("arc_clone = %v, %v", out, err)
	}
	headerB, _ := x.ReadU32(destB)
	if headerB != header {
		t.Fatal("clone must alias the same header")
	}

	out, _ = x.hostCall(chicImport("arc_strong_count"), []uint64{destA})
	if out[0] != 2 {
		t.Fatalf("strong count after clone = %d, want 2", out[0])
	}

	if _, err = x.hostCall(chicImport("arc_drop"), []uint64{destB}); err != nil {
		t.Fatal(err)
	}
	out, _ = x.hostCall(chicImport("arc_strong_count"), []uint64{destA})
	if out[0] != 1 {
		t.Fatalf("strong count after drop = %d, want 1", out[0])
	}

	pa, _ := x.hostCall(chicImport("arc_get"), []uint64{destA})
	pb, _ := x.hostCall(chicImport("arc_get"), []uint64{destB})
	if pa[0] != pb[0] {
		t.Error("pointers returned through the two clones must be identical")
	}
}

func TestArcGetMut_RefusesShared(t *testing.T) {
	mod, _ := DecodeModule(answerModule())
	x, _ := NewExecutor(mod)
	const destA, destB = 64, 72
	if _, err := x.hostCall(chicImport("arc_new"), []uint64{destA, 0, 8, 4, 0, 1}); err != nil {
		t.Fatal(err)
	}
	out, _ := x.hostCall(chicImport("arc_get_mut"), []uint64{destA})
	if out[0] == 0 {
		t.Fatal("unique arc must yield a mutable payload pointer")
	}
	if _, err := x.hostCall(chicImport("arc_clone"), []uint64{destB, destA}); err != nil {
		t.Fatal(err)
	}
	out, _ = x.hostCall(chicImport("arc_get_mut"), []uint64{destA})
	if out[0] != 0 {
		t.Fatal("shared arc must refuse arc_get_mut")
	}
}

func TestWeak_DowngradeUpgradeCounts(t *testing.T) {
	mod, _ := DecodeModule(answerModule())
	x, _ := NewExecutor(mod)
	const strong, weak, upgraded = 64, 72, 80
	if _, err := x.hostCall(chicImport("arc_new"), []uint64{strong, 0, 8, 4, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := x.hostCall(chicImport("arc_downgrade"), []uint64{weak, strong}); err != nil {
		t.Fatal(err)
	}
	out, _ := x.hostCall(chicImport("arc_weak_count"), []uint64{strong})
	if out[0] != 2 {
		t.Fatalf("weak count after downgrade = %d, want 2", out[0])
	}
	out, _ = x.hostCall(chicImport("weak_upgrade"), []uint64{upgraded, weak})
	if out[0] != 1 {
		t.Fatal("upgrade of a live target must succeed")
	}
	out, _ = x.hostCall(chicImport("arc_strong_count"), []uint64{strong})
	if out[0] != 2 {
		t.Fatalf("strong count after upgrade = %d, want 2", out[0])
	}
}

func TestPanicImportTraps(t *testing.T) {
	mod, _ := DecodeModule(answerModule())
	x, _ := NewExecutor(mod)
	_, err := x.hostCall(chicImport("panic"), []uint64{7})
	if err == nil || !strings.Contains(err.Error(), "panic(7)") {
		t.Fatalf("panic must trap with its code, got %v", err)
	}
}

func TestCoverageHitForwards(t *testing.T) {
	mod, _ := DecodeModule(answerModule())
	var got []uint64
	x, _ := NewExecutor(mod, WithCoverageHook(func(id uint64) { got = append(got, id) }))
	if _, err := x.hostCall(chicImport("coverage_hit"), []uint64{9}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 9 {
		t.Fatalf("coverage hook got %v", got)
	}
}

func TestUnresolvedImportFailsLoad(t *testing.T) {
	var b binBuilder
	b.section(secType, vec(funcType(nil, nil)))
	imp := u32leb(3)
	imp = append(imp, "bad"...)
	imp = append(imp, u32leb(4)...)
	imp = append(imp, "name"...)
	imp = append(imp, 0x00)
	imp = append(imp, u32leb(0)...)
	b.section(secImport, vec(imp))
	mod, err := DecodeModule(b.bytes())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewExecutor(mod); err == nil || !strings.Contains(err.Error(), "unresolved import") {
		t.Fatalf("unknown import module must fail the load, got %v", err)
	}
}

func TestAsyncLayout_Derivation(t *testing.T) {
	l := DeriveAsyncLayout(4, 4, nil)
	if l.VTableOffset != 4 || l.ExecutorContextOffset != 8 || l.FlagsOffset != 12 {
		t.Fatalf("header offsets = %+v", l)
	}
	if l.FutureCompletedOffset != 16 {
		t.Errorf("completed offset = %d, want 16", l.FutureCompletedOffset)
	}
	if l.TaskFlagsOffset != 16 || l.TaskInnerFutureOffset != 20 {
		t.Errorf("task offsets = %d/%d, want 16/20", l.TaskFlagsOffset, l.TaskInnerFutureOffset)
	}
	// Pointer size clamps to [1, 4] for wasm32.
	if c := DeriveAsyncLayout(8, 8, nil); c.PtrSize != 4 {
		t.Errorf("ptr size must clamp to 4, got %d", c.PtrSize)
	}
	// Small results overload the bool slot; larger ones align past it.
	if off := l.ResultOffset(1, 1); off != l.FutureCompletedOffset {
		t.Errorf("1-byte result offset = %d, want %d", off, l.FutureCompletedOffset)
	}
	if off := l.ResultOffset(4, 4); off != 20 {
		t.Errorf("4-byte result offset = %d, want 20", off)
	}
	override := uint32(32)
	if o := DeriveAsyncLayout(4, 4, &AsyncLayoutOverrides{FutureCompletedOffset: &override}); o.FutureCompletedOffset != 32 {
		t.Error("overrides must replace derived fields")
	}
}

// pollModule exports a poll function (table slot 0) that marks its
// future ready and writes result 7.
func pollModule() []byte {
	var b binBuilder
	b.section(secType, vec(funcType([]ValType{ValI32}, []ValType{ValI32})))
	b.section(secFunction, vec(u32leb(0)))
	// table section: one funcref table, min 1
	b.section(secTable, []byte{0x01, 0x70, 0x00, 0x01})
	b.section(secExport, vec(exportFunc("poll", 0)))
	// element: table[0] = func 0
	elem := u32leb(1)
	elem = append(elem, u32leb(0)...)          // table index
	elem = append(elem, 0x41, 0x00, 0x0b)      // i32.const 0; end
	elem = append(elem, u32leb(1)...)          // one func
	elem = append(elem, u32leb(0)...)          // func index 0
	b.section(secElement, elem)
	b.section(secCode, vec(codeBody(nil, []byte{
		0x20, 0x00, // local.get 0 (future)
		0x41, 0x01, // i32.const 1 (READY)
		0x36, 0x02, 0x0c, // i32.store align=2 offset=12 (flags)
		0x20, 0x00, // local.get 0
		0x41, 0x07, // i32.const 7
		0x36, 0x02, 0x14, // i32.store align=2 offset=20 (result)
		0x41, 0x00, // i32.const 0
		0x0b,
	})))
	return b.bytes()
}

func TestScheduler_AwaitFutureBlocking(t *testing.T) {
	mod, err := DecodeModule(pollModule())
	if err != nil {
		t.Fatal(err)
	}
	x, err := NewExecutor(mod)
	if err != nil {
		t.Fatal(err)
	}

	// Future header on the heap: vtable at vt with poll slot 0.
	vt, _ := x.Alloc(8, 4)
	if err := x.StoreU32(vt, 0); err != nil { // poll = table slot 0
		t.Fatal(err)
	}
	fut, _ := x.Alloc(32, 4)
	if err := x.StoreU32(fut+4, vt); err != nil { // vtable pointer
		t.Fatal(err)
	}

	res, err := x.awaitFutureBlocking(fut, 4)
	if err != nil {
		t.Fatal(err)
	}
	if res != 7 {
		t.Fatalf("await result = %d, want 7", res)
	}
}

func TestScheduler_CancelledFutureShortCircuits(t *testing.T) {
	mod, _ := DecodeModule(pollModule())
	x, _ := NewExecutor(mod)

	fut, _ := x.Alloc(32, 4)
	// Deliberately no vtable: a cancelled future must never poll user code.
	if err := x.cancelFuture(fut); err != nil {
		t.Fatal(err)
	}
	res, err := x.awaitFutureBlocking(fut, 4)
	if err != nil {
		t.Fatal(err)
	}
	if res != 0 {
		t.Fatalf("cancelled future result slot must be untouched, got %d", res)
	}
	if !x.nodeFor(fut).cancelled {
		t.Error("node must record cancellation")
	}
}

// Borrows are tracked per (id, function, frame depth): releases must
// come from the frame that recorded them, and stacked re-borrows drain
// one at a time.
func TestBorrowRecords_KeyedByFrame(t *testing.T) {
	mod, _ := DecodeModule(answerModule())
	x, _ := NewExecutor(mod)

	x.callStack = append(x.callStack, "Demo::Outer")
	x.recordBorrow(5)
	x.recordBorrow(5)
	if got := x.liveBorrows(5); got != 2 {
		t.Fatalf("live borrows = %d, want 2", got)
	}

	// A release from a deeper frame must not match the outer record.
	x.callStack = append(x.callStack, "Demo::Inner")
	if err := x.releaseBorrow(5); err == nil {
		t.Fatal("release from the wrong frame must trap")
	}
	x.callStack = x.callStack[:1]

	if err := x.releaseBorrow(5); err != nil {
		t.Fatal(err)
	}
	if err := x.releaseBorrow(5); err != nil {
		t.Fatal(err)
	}
	if got := x.liveBorrows(5); got != 0 {
		t.Fatalf("live borrows after release = %d, want 0", got)
	}
	if err := x.releaseBorrow(5); err == nil {
		t.Fatal("double release must trap")
	}
}

func TestHostIO_StdoutCapture(t *testing.T) {
	mod, _ := DecodeModule(answerModule())
	x, _ := NewExecutor(mod)
	x.hostIO.CaptureStdio(true, true)
	if err := x.StoreBytes(256, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	out, handled, err := x.hostIOCall("write", []uint64{1, 256, 5})
	if !handled || err != nil || out[0] != 5 {
		t.Fatalf("write = %v/%v/%v", out, handled, err)
	}
	if string(x.hostIO.Stdout()) != "hello" {
		t.Fatalf("captured stdout = %q", x.hostIO.Stdout())
	}
}

func TestTrace_ChromeJSONShape(t *testing.T) {
	tr := NewTrace()
	tr.Enter("App::Main")
	tr.Await(0x100)
	tr.Exit("App::Main")
	data, err := tr.ChromeTraceJSON()
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"ph":"B"`, `"ph":"E"`, `"ph":"i"`, `"name":"App::Main"`, `"future":256`} {
		if !strings.Contains(s, want) {
			t.Errorf("chrome trace missing %s in %s", want, s)
		}
	}
}

// The chrome trace of a real execution is pinned as a golden file;
// regenerate with UPDATE_GOLDENS=true go test ./...
func TestTrace_GoldenChromeEvents(t *testing.T) {
	mod, err := DecodeModule(answerModule())
	if err != nil {
		t.Fatal(err)
	}
	x, err := NewExecutor(mod)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := x.Call("answer"); err != nil {
		t.Fatal(err)
	}
	data, err := x.Trace().ChromeTraceJSON()
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertGoldenJSON(t, "trace", "answer_call", data)
}

package llvmemit

import (
	"strings"
	"testing"

	"github.com/chic-lang/chicc-core/internal/diag"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/monomorphize"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

func i32Ty() *typelayout.Ty {
	return &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimI32}
}

func namedTy(name string) *typelayout.Ty {
	return &typelayout.Ty{Kind: typelayout.TyNamed, Name: name}
}

// stubFunction registers a minimal defined function.
func stubFunction(m *mir.MirModule, name string, params []*typelayout.Ty, ret *typelayout.Ty) *mir.MirFunction {
	fn := &mir.MirFunction{
		Name: name,
		Kind: mir.FuncRegular,
		Sig:  mir.FuncSignature{Params: params, Return: ret},
	}
	fn.Body = mir.NewBody(ret, len(params))
	for i, p := range params {
		fn.Body.Locals[i+1].Type = p
	}
	fn.Body.SetTerminator(mir.Return{})
	m.AddFunction(fn)
	return fn
}

// Scenario: two drop-glue entries produce a two-element
// @__chic_drop_entries table, an init function registering it, and a
// global_ctors entry at priority 65535.
func TestEmit_DropTable(t *testing.T) {
	m := mir.NewModule()
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind: typelayout.LayoutStruct, Name: "Demo::Type", DisposeSym: "Demo::Type::Dispose",
	})
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind: typelayout.LayoutStruct, Name: "Demo::Status", DisposeSym: "Demo::Status::Dispose",
	})
	stubFunction(m, "Demo::Type::Dispose", []*typelayout.Ty{namedTy("Demo::Type")}, nil)
	stubFunction(m, "Demo::Status::Dispose", []*typelayout.Ty{namedTy("Demo::Status")}, nil)
	monomorphize.SynthesizeAll(m, monomorphize.AnalyseModule(m))

	out, err := Emit(m, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"__chic_drop_entries",
		"__chic_init_drop_table",
		"chic_rt_install_drop_table",
		"__cl_drop__Demo__Type",
		"__cl_drop__Demo__Status",
		"llvm.global_ctors",
		"65535",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("emitted IR missing %q", want)
		}
	}
	if !strings.Contains(out, "linkonce_odr") {
		t.Error("glue definitions must be linkonce_odr")
	}
	if !strings.Contains(out, "i64 2") {
		t.Error("drop-table init must register length 2")
	}
}

// Scenario: a lazy dynamic extern gets a descriptor constant and a stub
// that resolves, bitcasts, and tail-calls through.
func TestEmit_DynamicFFIStub(t *testing.T) {
	m := mir.NewModule()
	fn := &mir.MirFunction{
		Name: "Interop::MessageBox",
		Kind: mir.FuncRegular,
		Sig: mir.FuncSignature{
			Params: []*typelayout.Ty{{Kind: typelayout.TyPointer, Elem: &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimU8}}},
			Return: i32Ty(),
		},
		Extern: &mir.ExternBinding{
			Kind:       mir.ExternDynamicLazy,
			Library:    "user32",
			Symbol:     "MessageBoxW",
			Convention: "system",
		},
	}
	m.AddFunction(fn)

	out, err := Emit(m, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"chic_ffi_descriptor",
		"__chic_ffi_descriptor_Interop__MessageBox",
		"chic_rt_ffi_resolve",
		"user32",
		"MessageBoxW",
		"tail call",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("emitted IR missing %q", want)
		}
	}
}

func TestEmit_VariadicDynamicExternRejected(t *testing.T) {
	m := mir.NewModule()
	m.AddFunction(&mir.MirFunction{
		Name: "Interop::Printf",
		Sig:  mir.FuncSignature{Return: i32Ty(), Variadic: true},
		Extern: &mir.ExternBinding{
			Kind: mir.ExternDynamicLazy, Library: "c", Symbol: "printf",
		},
	})
	_, err := Emit(m, Options{})
	rep, ok := diag.AsReport(err)
	if !ok || rep.Code != diag.LLVM003 {
		t.Fatalf("expected LLVM003, got %v", err)
	}
}

// Scenario: an async entry dispatches through call_entry_async and
// complete_entry_async; the sync entry call must not appear.
func TestEmit_AsyncEntryDispatch(t *testing.T) {
	m := mir.NewModule()
	task := &typelayout.Ty{Kind: typelayout.TyNamed, Name: "Task", GenArgs: []typelayout.GenArg{{Type: i32Ty()}}}
	fn := stubFunction(m, "App::Main", nil, task)
	fn.Async = true
	fn.AsyncPlan = &mir.AsyncLoweringArtifact{
		PollSymbol: "App::Main::__poll",
		DropSymbol: "App::Main::__drop",
	}
	m.EntryFunction = "App::Main"

	out, err := Emit(m, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"define i32 @main(",
		"chic_rt_startup_store_state",
		"chic_rt_startup_call_entry_async",
		"chic_rt_startup_complete_entry_async",
		"__chic_program_main",
		"__chic_startup_descriptor",
		"__async_vtable_App__Main",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("emitted IR missing %q", want)
		}
	}
	if strings.Contains(out, "@chic_rt_startup_call_entry(") {
		t.Error("async entry must not reference the sync entry path")
	}
}

func TestEmit_SyncEntryAndExitCode(t *testing.T) {
	m := mir.NewModule()
	stubFunction(m, "App::Main", nil, i32Ty())
	m.EntryFunction = "App::Main"

	out, err := Emit(m, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "chic_rt_startup_call_entry(") {
		t.Error("sync entry must dispatch through chic_rt_startup_call_entry")
	}
	if strings.Contains(out, "call_entry_async") {
		t.Error("sync entry must not reference the async path")
	}
	if !strings.Contains(out, "chic_rt_test_executor_run_all") {
		t.Error("main must branch to the test executor on the run-tests flag")
	}
}

func TestEmit_UnsupportedEntryReturnType(t *testing.T) {
	m := mir.NewModule()
	stubFunction(m, "App::Main", nil, &typelayout.Ty{Kind: typelayout.TyPrimitive, Prim: typelayout.PrimF64})
	m.EntryFunction = "App::Main"
	_, err := Emit(m, Options{})
	rep, ok := diag.AsReport(err)
	if !ok || rep.Code != diag.LLVM002 {
		t.Fatalf("expected LLVM002, got %v", err)
	}
}

// The startup descriptor is defined exactly once for executables and
// collapses to an extern_weak declaration for libraries.
func TestEmit_StartupDescriptorPresence(t *testing.T) {
	m := mir.NewModule()
	stubFunction(m, "App::Main", nil, i32Ty())
	m.EntryFunction = "App::Main"

	exe, err := Emit(m, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(exe, "@__chic_startup_descriptor =") != 1 {
		t.Error("executable must define the startup descriptor exactly once")
	}

	lib, err := Emit(m, Options{IsLibrary: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lib, "extern_weak") {
		t.Error("library must declare the startup descriptor extern_weak")
	}
	if strings.Contains(lib, "define i32 @main(") {
		t.Error("library must not define a native main")
	}
}

// The set of declared-only symbols must be disjoint from the defined set.
func TestEmit_ExternDefinedDisjoint(t *testing.T) {
	m := mir.NewModule()
	m.Layouts.Register(&typelayout.TypeLayout{
		Kind: typelayout.LayoutStruct, Name: "Demo::Type", DisposeSym: "Demo::Type::Dispose",
	})
	stubFunction(m, "Demo::Type::Dispose", []*typelayout.Ty{namedTy("Demo::Type")}, nil)
	stubFunction(m, "App::Main", nil, i32Ty())
	m.EntryFunction = "App::Main"
	monomorphize.SynthesizeAll(m, monomorphize.AnalyseModule(m))

	out, err := Emit(m, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defined := map[string]bool{}
	declared := map[string]bool{}
	for _, line := range strings.Split(out, "\n") {
		if name, ok := symbolOfLine(line, "define "); ok {
			defined[name] = true
		}
		if name, ok := symbolOfLine(line, "declare "); ok {
			declared[name] = true
		}
	}
	for name := range declared {
		if defined[name] {
			t.Errorf("symbol %s is both declared extern and defined", name)
		}
	}
	if len(defined) == 0 || len(declared) == 0 {
		t.Fatalf("expected both defined and declared symbols, got %d/%d", len(defined), len(declared))
	}
}

func symbolOfLine(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	at := strings.Index(line, "@")
	if at < 0 {
		return "", false
	}
	rest := line[at+1:]
	end := strings.IndexAny(rest, "( ")
	if end < 0 {
		return rest, true
	}
	return rest[:end], true
}

func TestEmit_MultiversionDispatcher(t *testing.T) {
	m := mir.NewModule()
	fn := stubFunction(m, "Demo::Kernel", []*typelayout.Ty{i32Ty()}, i32Ty())
	fn.OptHints = map[string]bool{"multiversion": true}

	out, err := Emit(m, Options{
		Tiers: []Tier{
			{Name: "baseline"},
			{Name: "avx2", Features: "+avx2"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Demo::Kernel.__baseline",
		"Demo::Kernel.__avx2",
		"Demo::Kernel.__selected",
		"chic_rt_cpu_supports",
		"target-features",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("emitted IR missing %q", want)
		}
	}
}

// Apple triples strip SVE tiers before emission.
func TestEmit_AppleStripsSVETiers(t *testing.T) {
	m := mir.NewModule()
	fn := stubFunction(m, "Demo::Kernel", nil, i32Ty())
	fn.OptHints = map[string]bool{"multiversion": true}

	out, err := Emit(m, Options{
		TargetTriple: "arm64-apple-macosx13.0.0",
		Tiers: []Tier{
			{Name: "baseline"},
			{Name: "neon", Features: "+neon"},
			{Name: "sve2", Features: "+sve2"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "sve2") {
		t.Error("SVE tiers must be stripped on Apple triples")
	}
	if !strings.Contains(out, "Demo::Kernel.__neon") {
		t.Error("non-SVE tiers must survive on Apple triples")
	}
}

func TestEmit_TargetTripleAndMetadata(t *testing.T) {
	m := mir.NewModule()
	out, err := Emit(m, Options{TargetTriple: "wasm32-unknown-unknown"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `target triple = "wasm32-unknown-unknown"`) {
		t.Error("missing target triple directive")
	}
	if !strings.Contains(out, "!llvm.module.flags") || !strings.Contains(out, "!llvm.ident") {
		t.Error("missing module flags / ident metadata")
	}
}

func TestEmit_MissingSignatureIsFatal(t *testing.T) {
	m := mir.NewModule()
	fn := stubFunction(m, "Demo::Caller", nil, i32Ty())
	next := fn.Body.NewBlock()
	fn.Body.SetCurrentBlock(0)
	fn.Body.SetTerminator(mir.Call{
		Func:        mir.Const(mir.ConstOperand{Kind: mir.ConstSymbol, Symbol: "Demo::Missing"}),
		Destination: mir.Place{Local: 0},
		Target:      next,
	})
	fn.Body.SetCurrentBlock(next)
	fn.Body.SetTerminator(mir.Return{})

	_, err := Emit(m, Options{})
	rep, ok := diag.AsReport(err)
	if !ok || rep.Code != diag.LLVM001 {
		t.Fatalf("expected LLVM001, got %v", err)
	}
}

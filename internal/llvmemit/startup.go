package llvmemit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/chic-lang/chicc-core/internal/diag"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/rt"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// emitStartup renders the startup descriptor and native main for
// executables. Libraries and suppressed
// builds already received the extern_weak fallback.
func (e *Emitter) emitStartup() error {
	if e.opts.IsLibrary || e.opts.SuppressStartup {
		return nil
	}
	if e.m.EntryFunction == "" && len(e.m.TestCases) == 0 {
		return nil
	}

	entryFn, entryFlags, err := e.entryDescriptor()
	if err != nil {
		return err
	}

	// Testcase array.
	var testsBase constant.Constant = constant.NewNull(types.I8Ptr)
	testCount := int64(len(e.m.TestCases))
	if testCount > 0 {
		entries := make([]constant.Constant, len(e.m.TestCases))
		for i, tc := range e.m.TestCases {
			if int(tc.Function) >= len(e.m.Functions) {
				return codegenError(diag.LLVM001, "testcase %s references unknown function index %d", tc.Name, tc.Function)
			}
			f := e.funcs[e.m.Functions[tc.Function].Name]
			flags := int64(0)
			if tc.Async {
				flags |= int64(rt.TestCaseFlagAsync)
			}
			entries[i] = constant.NewStruct(e.testcaseTy,
				funcAsPtr(f),
				e.cstring(tc.Name),
				constant.NewInt(types.I64, int64(len(tc.Name))),
				constant.NewInt(types.I32, flags))
		}
		arrTy := types.NewArray(uint64(len(entries)), e.testcaseTy)
		tg := e.mod.NewGlobalDef("__chic_testcases", constant.NewArray(arrTy, entries...))
		tg.Linkage = enum.LinkageInternal
		tg.Immutable = true
		zero := constant.NewInt(types.I64, 0)
		testsBase = constant.NewBitCast(constant.NewGetElementPtr(arrTy, tg, zero, zero), types.I8Ptr)
	}

	// { u32 version; u32 pad; { ptr, u32, u32 } entry; { ptr, u64 } tests }
	entryDescTy := types.NewStruct(types.I8Ptr, types.I32, types.I32)
	testsSliceTy := types.NewStruct(types.I8Ptr, types.I64)
	descTy := types.NewStruct(types.I32, types.I32, entryDescTy, testsSliceTy)
	e.mod.NewTypeDef("__chx_startup_descriptor", descTy)

	desc := constant.NewStruct(descTy,
		constant.NewInt(types.I32, int64(rt.StartupDescriptorVersion)),
		constant.NewInt(types.I32, 0),
		constant.NewStruct(entryDescTy,
			entryFn,
			constant.NewInt(types.I32, int64(entryFlags)),
			constant.NewInt(types.I32, 0)),
		constant.NewStruct(testsSliceTy, testsBase, constant.NewInt(types.I64, testCount)))
	dg := e.mod.NewGlobalDef(rt.SymStartupDescriptor, desc)
	dg.Immutable = true

	return e.emitNativeMain(entryFlags)
}

// entryDescriptor resolves the entry function (wrapped as
// __chic_program_main) and computes the entry flags word. A missing
// entry yields a null pointer with zero flags (tests-only binaries).
func (e *Emitter) entryDescriptor() (constant.Constant, uint32, error) {
	if e.m.EntryFunction == "" {
		return constant.NewNull(types.I8Ptr), 0, nil
	}
	entry := e.m.Lookup(e.m.EntryFunction)
	if entry == nil {
		return nil, 0, codegenError(diag.LLVM001, "entry function %s is not defined in this module", e.m.EntryFunction)
	}
	flags, err := e.entryFlags(entry)
	if err != nil {
		return nil, 0, err
	}
	wrapper := e.emitProgramMain(entry)
	return funcAsPtr(wrapper), flags, nil
}

// entryFlags classifies the entry signature.
// Anything but i32/bool/unit (or their Task<> wrappers for async
// entries) is an unsupported entry return type.
func (e *Emitter) entryFlags(entry *mir.MirFunction) (uint32, error) {
	var flags uint32
	if entry.Async {
		flags |= rt.EntryFlagAsync
	}
	ret := entry.Sig.Return
	if entry.Async {
		ret = unwrapTask(ret)
	}
	switch {
	case ret == nil || (ret.Kind == typelayout.TyPrimitive && ret.Prim == typelayout.PrimUnit):
		flags |= rt.EntryFlagRetVoid
	case ret.Kind == typelayout.TyPrimitive && ret.Prim == typelayout.PrimI32:
		flags |= rt.EntryFlagRetI32
	case ret.Kind == typelayout.TyPrimitive && ret.Prim == typelayout.PrimBool:
		flags |= rt.EntryFlagRetBool
	default:
		return 0, codegenError(diag.LLVM002, "unsupported entry return type %s", ret.CanonicalName())
	}
	if len(entry.Sig.Params) >= 1 {
		flags |= rt.EntryFlagParamArgs
	}
	if len(entry.Sig.Params) >= 2 {
		flags |= rt.EntryFlagParamEnv
	}
	return flags, nil
}

// unwrapTask peels Task<T> / named future wrappers off an async entry's
// declared return type.
func unwrapTask(t *typelayout.Ty) *typelayout.Ty {
	if t != nil && t.Kind == typelayout.TyNamed && len(t.GenArgs) == 1 && t.GenArgs[0].Type != nil {
		return t.GenArgs[0].Type
	}
	return t
}

// emitProgramMain defines the fixed-name __chic_program_main wrapper the
// startup calls dispatch through.
func (e *Emitter) emitProgramMain(entry *mir.MirFunction) *ir.Func {
	if f, ok := e.funcs[rt.SymProgramMain]; ok {
		return f
	}
	target := e.funcs[entry.Name]
	params := make([]*ir.Param, len(target.Params))
	paramVals := make([]value.Value, len(target.Params))
	for i, p := range target.Params {
		np := ir.NewParam("", p.Type())
		params[i] = np
		paramVals[i] = np
	}
	f := e.mod.NewFunc(rt.SymProgramMain, target.Sig.RetType, params...)
	blk := f.NewBlock("entry")
	call := blk.NewCall(target, paramVals...)
	call.Tail = enum.TailTail
	if target.Sig.RetType.Equal(types.Void) {
		blk.NewRet(nil)
	} else {
		blk.NewRet(call)
	}
	e.funcs[rt.SymProgramMain] = f
	e.defined[rt.SymProgramMain] = true
	return f
}

// emitNativeMain renders the i32 @main(i32, ptr, ptr) wrapper.
func (e *Emitter) emitNativeMain(entryFlags uint32) error {
	if _, exists := e.funcs["main"]; exists {
		return codegenError(diag.LLVM004, "module already defines a main symbol")
	}
	argc := ir.NewParam("argc", types.I32)
	argv := ir.NewParam("argv", types.I8Ptr)
	envp := ir.NewParam("envp", types.I8Ptr)
	f := e.mod.NewFunc("main", types.I32, argc, argv, envp)
	e.funcs["main"] = f
	e.defined["main"] = true
	blk := f.NewBlock("entry")

	if initMeta, ok := e.funcs["__chic_init_type_metadata"]; ok {
		blk.NewCall(initMeta)
	}
	store, _ := e.declareRuntime(rt.SymStartupStoreState)
	blk.NewCall(store, argc, argv, envp)

	hasTests, _ := e.declareRuntime(rt.SymStartupHasRunTestsFlag)
	testFlag := blk.NewCall(hasTests)
	runTests := blk.NewICmp(enum.IPredNE, testFlag, constant.NewInt(types.I32, 0))
	testsBlk := f.NewBlock("run.tests")
	entryBlk := f.NewBlock("run.entry")
	blk.NewCondBr(runTests, testsBlk, entryBlk)

	runAll, _ := e.declareRuntime(rt.SymTestExecutorRunAll)
	testsBlk.NewRet(testsBlk.NewCall(runAll))

	snapshot, _ := e.declareRuntime(rt.SymStartupDescriptorSnapshot)
	entryBlk.NewCall(snapshot)

	programMain, hasEntry := e.funcs[rt.SymProgramMain]
	if !hasEntry {
		entryBlk.NewRet(constant.NewInt(types.I32, 0))
		return nil
	}
	entryPtr := entryBlk.NewBitCast(programMain, types.I8Ptr)
	flagsConst := constant.NewInt(types.I32, int64(entryFlags))

	if entryFlags&rt.EntryFlagAsync != 0 {
		callAsync, _ := e.declareRuntime(rt.SymStartupCallEntryAsync)
		complete, _ := e.declareRuntime(rt.SymStartupCompleteEntryAsync)
		task := entryBlk.NewCall(callAsync, entryPtr, flagsConst, argc, argv, envp)
		entryBlk.NewRet(entryBlk.NewCall(complete, task, flagsConst))
		return nil
	}
	callEntry, _ := e.declareRuntime(rt.SymStartupCallEntry)
	entryBlk.NewRet(entryBlk.NewCall(callEntry, entryPtr, flagsConst, argc, argv, envp))
	return nil
}

// Package llvmemit walks a finalized mir.MirModule and produces a single
// self-contained LLVM-IR text module: signatures, functions,
// vtables, static globals, drop/hash/eq/type-metadata tables, dynamic FFI
// stubs, CPU-multiversion dispatchers, a startup descriptor, and a native
// main. The module is built with llir/llvm's ir package and rendered via
// its String method; any condition that would produce invalid IR halts
// emission with a typed error — partial IR is never returned.
package llvmemit

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/chic-lang/chicc-core/internal/diag"
	"github.com/chic-lang/chicc-core/internal/mir"
)

// Tier is one ISA level of a CPU multi-versioning profile.
type Tier struct {
	Name     string // e.g. "baseline", "avx2", "sve2"
	Features string // LLVM target-features string, e.g. "+avx2"
}

// Options configures one emission.
type Options struct {
	TargetTriple string
	// IsLibrary suppresses the startup descriptor definition and native
	// main, emitting the extern_weak fallback instead.
	IsLibrary bool
	// SuppressStartup drops startup metadata even for executables.
	SuppressStartup bool
	// Tiers enables multiversion dispatch for eligible functions when more
	// than one tier is listed; the first tier is the baseline.
	Tiers []Tier
}

// Emitter holds the in-flight state of one module emission.
type Emitter struct {
	mod  *ir.Module
	m    *mir.MirModule
	opts Options
	tm   *typeMapper

	// funcs maps every declared-or-defined symbol to its ir function;
	// defined marks the subset with bodies in this module, keeping the
	// extern set disjoint from the defined set.
	funcs   map[string]*ir.Func
	defined map[string]bool

	literals []*ir.Global
	ctors    []*ir.Func

	dropEntryTy  *types.StructType
	ffiDescTy    *types.StructType
	metaEntryTy  *types.StructType
	ifaceEntryTy *types.StructType
	testcaseTy   *types.StructType

	cstrCount int
}

// Emit produces the LLVM IR text for m, or a codegen error.
func Emit(m *mir.MirModule, opts Options) (string, error) {
	if opts.TargetTriple == "" {
		opts.TargetTriple = "x86_64-unknown-linux-gnu"
	}
	if m.SuppressStartup {
		opts.SuppressStartup = true
	}
	e := &Emitter{
		mod:     ir.NewModule(),
		m:       m,
		opts:    opts,
		funcs:   make(map[string]*ir.Func),
		defined: make(map[string]bool),
	}
	e.mod.TargetTriple = opts.TargetTriple
	e.tm = newTypeMapper(m.Layouts)
	e.tm.onNew = func(name string, st *types.StructType) {
		e.mod.NewTypeDef(name, st)
	}
	e.mod.NewTypeDef("__chx_string", e.tm.stringTy)
	e.mod.NewTypeDef("__chx_span", e.tm.spanTy)
	e.mod.NewTypeDef("__chx_vec", e.tm.vecTy)
	e.mod.NewTypeDef("__chx_dyn", e.tm.dynTy)
	e.dropEntryTy = types.NewStruct(types.I64, types.I8Ptr)
	e.mod.NewTypeDef("__chx_drop_entry", e.dropEntryTy)
	e.metaEntryTy = types.NewStruct(types.I64, types.I64, types.I64, types.I8Ptr, types.I8Ptr, types.I64, types.I32)
	e.mod.NewTypeDef("__chx_type_metadata_entry", e.metaEntryTy)
	e.ifaceEntryTy = types.NewStruct(types.I8Ptr, types.I8Ptr, types.I8Ptr, types.I8Ptr)
	e.mod.NewTypeDef("__chx_iface_default_entry", e.ifaceEntryTy)
	e.ffiDescTy = types.NewStruct(types.I8Ptr, types.I8Ptr, types.I32, types.I32, types.I1)
	e.mod.NewTypeDef("chic_ffi_descriptor", e.ffiDescTy)
	e.testcaseTy = types.NewStruct(types.I8Ptr, types.I8Ptr, types.I64, types.I32)
	e.mod.NewTypeDef("__chx_testcase", e.testcaseTy)

	// Shells for every module function first: vtables, tables, and call
	// lowering all reference functions by symbol before bodies exist.
	for _, fn := range m.Functions {
		if _, err := e.functionShell(fn); err != nil {
			return "", err
		}
	}

	e.emitStringLiterals()
	e.emitTraitVTables()
	e.emitAsyncVTables()
	e.emitClassVTables()
	if err := e.emitInterfaceDefaults(); err != nil {
		return "", err
	}
	if err := e.emitStatics(); err != nil {
		return "", err
	}
	e.emitStartupFallback()
	if err := e.emitFFIStubs(); err != nil {
		return "", err
	}
	for _, fn := range m.Functions {
		if err := e.defineFunction(fn); err != nil {
			return "", err
		}
	}
	if err := e.emitGlueTables(); err != nil {
		return "", err
	}
	if err := e.emitStartup(); err != nil {
		return "", err
	}
	e.emitGlobalCtors()

	var sb strings.Builder
	sb.WriteString(e.mod.String())
	e.appendModuleMetadata(&sb)
	return sb.String(), nil
}

// codegenError builds the single typed error that aborts emission.
func codegenError(code, format string, args ...any) error {
	return diag.Wrap(diag.New(code, fmt.Sprintf(format, args...), nil))
}

// functionShell creates (once) the ir.Func for a MIR function with its
// lowered signature. Bodies are attached by defineFunction.
func (e *Emitter) functionShell(fn *mir.MirFunction) (*ir.Func, error) {
	if f, ok := e.funcs[fn.Name]; ok {
		return f, nil
	}
	params := make([]*ir.Param, len(fn.Sig.Params))
	for i, p := range fn.Sig.Params {
		params[i] = ir.NewParam(fmt.Sprintf("arg%d", i), e.tm.valueType(p))
	}
	f := e.mod.NewFunc(fn.Name, e.tm.returnType(fn.Sig.Return), params...)
	if fn.Sig.Variadic {
		f.Sig.Variadic = true
	}
	e.funcs[fn.Name] = f
	return f, nil
}

// linkageFor applies the function linkage policy: glue gets
// linkonce_odr, weak-marked functions weak, module-private internal,
// exported external. No dso_local preemption specifier is set on any of
// them.
func (e *Emitter) linkageFor(fn *mir.MirFunction) enum.Linkage {
	if strings.HasPrefix(fn.Name, "__cl_drop__") ||
		strings.HasPrefix(fn.Name, "__cl_clone__") ||
		strings.HasPrefix(fn.Name, "__cl_hash__") ||
		strings.HasPrefix(fn.Name, "__cl_eq__") {
		return enum.LinkageLinkOnceODR
	}
	if fn.WeakImport {
		return enum.LinkageWeak
	}
	if e.isExported(fn.Name) {
		return enum.LinkageExternal
	}
	return enum.LinkageInternal
}

func (e *Emitter) isExported(symbol string) bool {
	if symbol == e.m.EntryFunction {
		return true
	}
	for _, ex := range e.m.Exports {
		if ex.Symbol == symbol {
			return true
		}
	}
	return false
}

// cstring interns a NUL-terminated byte constant and returns an i8*
// pointing at its first byte.
func (e *Emitter) cstring(s string) constant.Constant {
	arr := constant.NewCharArrayFromString(s + "\x00")
	g := e.mod.NewGlobalDef(fmt.Sprintf(".cstr.%d", e.cstrCount), arr)
	e.cstrCount++
	g.Linkage = enum.LinkagePrivate
	g.Immutable = true
	zero := constant.NewInt(types.I64, 0)
	return constant.NewGetElementPtr(arr.Typ, g, zero, zero)
}

// emitStringLiterals defines one private constant per interned literal,
// in interning order.
func (e *Emitter) emitStringLiterals() {
	for i, s := range e.m.StringLiterals {
		arr := constant.NewCharArrayFromString(s)
		g := e.mod.NewGlobalDef(fmt.Sprintf(".str.%d", i), arr)
		g.Linkage = enum.LinkagePrivate
		g.Immutable = true
		e.literals = append(e.literals, g)
	}
}

// funcAsPtr bitcasts a function constant to i8* for storage in vtables
// and descriptor tables.
func funcAsPtr(f *ir.Func) constant.Constant {
	return constant.NewBitCast(f, types.I8Ptr)
}

// slotFuncs resolves vtable slot symbols to functions, declaring unknown
// symbols with an opaque void(i8*) signature (virtual thunks defined in
// sibling translation units).
func (e *Emitter) slotFuncs(slots []mir.VTableSlotRef) []constant.Constant {
	out := make([]constant.Constant, len(slots))
	for i, slot := range slots {
		f, ok := e.funcs[slot.Symbol]
		if !ok {
			f = e.mod.NewFunc(slot.Symbol, types.Void, ir.NewParam("", types.I8Ptr))
			e.funcs[slot.Symbol] = f
		}
		out[i] = funcAsPtr(f)
	}
	return out
}

func (e *Emitter) emitTraitVTables() {
	for _, vt := range e.m.TraitVTables {
		arrTy := types.NewArray(uint64(len(vt.Slots)), types.I8Ptr)
		g := e.mod.NewGlobalDef(
			fmt.Sprintf("__vtable_%s__%s", mangleSymbol(vt.Trait), mangleSymbol(vt.Impl)),
			constant.NewArray(arrTy, e.slotFuncs(vt.Slots)...))
		g.Linkage = enum.LinkageInternal
		g.Immutable = true
	}
}

func (e *Emitter) emitClassVTables() {
	for _, vt := range e.m.ClassVTables {
		arrTy := types.NewArray(uint64(len(vt.Slots)), types.I8Ptr)
		g := e.mod.NewGlobalDef(
			fmt.Sprintf("__vtable_class_%s", mangleSymbol(vt.Class)),
			constant.NewArray(arrTy, e.slotFuncs(vt.Slots)...))
		g.Linkage = enum.LinkageLinkOnceODR
		g.Immutable = true
	}
}

// emitAsyncVTables defines one { ptr poll, ptr drop } pair per async
// function.
func (e *Emitter) emitAsyncVTables() {
	pairTy := types.NewStruct(types.I8Ptr, types.I8Ptr)
	for _, fn := range e.m.Functions {
		if !fn.Async || fn.AsyncPlan == nil {
			continue
		}
		poll := e.asyncHook(fn.AsyncPlan.PollSymbol, types.I32)
		drop := e.asyncHook(fn.AsyncPlan.DropSymbol, types.Void)
		g := e.mod.NewGlobalDef("__async_vtable_"+mangleSymbol(fn.Name),
			constant.NewStruct(pairTy, funcAsPtr(poll), funcAsPtr(drop)))
		g.Linkage = enum.LinkageInternal
		g.Immutable = true
	}
}

// asyncHook resolves a poll/drop symbol, declaring it with the canonical
// (frame*) signature when the async-lowering pass scheduled it for a
// later translation unit.
func (e *Emitter) asyncHook(symbol string, ret types.Type) *ir.Func {
	if f, ok := e.funcs[symbol]; ok {
		return f
	}
	f := e.mod.NewFunc(symbol, ret, ir.NewParam("frame", types.I8Ptr))
	e.funcs[symbol] = f
	return f
}

// emitInterfaceDefaults builds the default-method table and its init
// function, registered via chic_rt_install_interface_defaults.
func (e *Emitter) emitInterfaceDefaults() error {
	if len(e.m.InterfaceDefaults) == 0 {
		return nil
	}
	entries := make([]constant.Constant, 0, len(e.m.InterfaceDefaults))
	for _, b := range e.m.InterfaceDefaults {
		f, ok := e.funcs[b.Function]
		if !ok {
			return codegenError(diag.LLVM001, "interface default %s.%s for %s references unknown function %s",
				b.Interface, b.Method, b.Implementer, b.Function)
		}
		entries = append(entries, constant.NewStruct(e.ifaceEntryTy,
			e.cstring(b.Implementer), e.cstring(b.Interface), e.cstring(b.Method), funcAsPtr(f)))
	}
	arrTy := types.NewArray(uint64(len(entries)), e.ifaceEntryTy)
	table := e.mod.NewGlobalDef("__chic_iface_default_entries", constant.NewArray(arrTy, entries...))
	table.Linkage = enum.LinkageInternal
	table.Immutable = true

	init := e.mod.NewFunc("__chic_init_interface_defaults", types.Void)
	init.Linkage = enum.LinkageInternal
	blk := init.NewBlock("entry")
	install, _ := e.declareRuntime("chic_rt_install_interface_defaults")
	blk.NewCall(install,
		blk.NewBitCast(table, types.I8Ptr),
		constant.NewInt(types.I64, int64(len(entries))))
	blk.NewRet(nil)
	e.ctors = append(e.ctors, init)
	return nil
}

// emitStatics lowers module statics: extern declarations keep external
// (or extern_weak) linkage, definitions are internal unless exported,
// and thread-local statics carry the TLS model.
func (e *Emitter) emitStatics() error {
	for i := range e.m.Statics {
		sv := &e.m.Statics[i]
		ty := e.tm.valueType(sv.Type)
		var g *ir.Global
		if sv.Extern {
			g = e.mod.NewGlobal(sv.Name, ty)
			if sv.Weak {
				g.Linkage = enum.LinkageExternWeak
			} else {
				g.Linkage = enum.LinkageExternal
			}
		} else {
			var init constant.Constant = constant.NewZeroInitializer(ty)
			if sv.Init != nil {
				c, err := e.constValue(*sv.Init, ty)
				if err != nil {
					return err
				}
				init = c
			}
			g = e.mod.NewGlobalDef(sv.Name, init)
			if sv.Exported {
				g.Linkage = enum.LinkageExternal
			} else {
				g.Linkage = enum.LinkageInternal
			}
		}
		if sv.ThreadLocal {
			g.TLSModel = enum.TLSModelGeneric
		}
	}
	return nil
}

// emitStartupFallback declares the extern_weak startup-descriptor symbol
// for library builds.
func (e *Emitter) emitStartupFallback() {
	if !e.opts.IsLibrary && !e.opts.SuppressStartup {
		return
	}
	g := e.mod.NewGlobal("__chic_startup_descriptor", types.I8)
	g.Linkage = enum.LinkageExternWeak
}

// emitGlobalCtors emits the llvm.global_ctors appending array with every
// collected init function at priority 65535.
func (e *Emitter) emitGlobalCtors() {
	if len(e.ctors) == 0 {
		return
	}
	ctorTy := types.NewStruct(types.I32, types.NewPointer(types.NewFunc(types.Void)), types.I8Ptr)
	entries := make([]constant.Constant, len(e.ctors))
	for i, f := range e.ctors {
		entries[i] = constant.NewStruct(ctorTy,
			constant.NewInt(types.I32, 65535),
			f,
			constant.NewNull(types.I8Ptr))
	}
	arrTy := types.NewArray(uint64(len(entries)), ctorTy)
	g := e.mod.NewGlobalDef("llvm.global_ctors", constant.NewArray(arrTy, entries...))
	g.Linkage = enum.LinkageAppending
}

// appendModuleMetadata appends the module-flags and ident metadata. llir's metadata model is bypassed here: the two trailer
// lines are fixed text.
func (e *Emitter) appendModuleMetadata(sb *strings.Builder) {
	sb.WriteString("\n!llvm.module.flags = !{!0, !1}\n")
	sb.WriteString("!llvm.ident = !{!2}\n\n")
	sb.WriteString("!0 = !{i32 1, !\"wchar_size\", i32 4}\n")
	sb.WriteString("!1 = !{i32 7, !\"PIC Level\", i32 2}\n")
	sb.WriteString("!2 = !{!\"chicc core\"}\n")
}

// mangleSymbol rewrites "::" to "__" for symbol-name positions, the same
// scheme the glue synthesizer uses.
func mangleSymbol(name string) string {
	return strings.ReplaceAll(name, "::", "__")
}

package llvmemit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/chic-lang/chicc-core/internal/diag"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/rt"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// emitGlueTables builds the drop/eq/hash entry arrays, the type-metadata
// table, and one init function per table that registers it with the
// runtime.
func (e *Emitter) emitGlueTables() error {
	if err := e.emitGlueEntryTable(mir.GlueDrop, "__chic_drop_entries", "__chic_init_drop_table", rt.SymInstallDropTable); err != nil {
		return err
	}
	if err := e.emitGlueEntryTable(mir.GlueEq, "__chic_eq_entries", "__chic_init_eq_table", rt.SymInstallEqTable); err != nil {
		return err
	}
	if err := e.emitGlueEntryTable(mir.GlueHash, "__chic_hash_entries", "__chic_init_hash_table", rt.SymInstallHashTable); err != nil {
		return err
	}
	return e.emitTypeMetadataTable()
}

// emitGlueEntryTable renders one { i64 type_id, ptr fn } table plus its
// ctor-registered init function.
func (e *Emitter) emitGlueEntryTable(kind mir.GlueKind, tableName, initName, installSym string) error {
	entries := e.m.GlueByKind(kind)
	if len(entries) == 0 {
		return nil
	}
	consts := make([]constant.Constant, len(entries))
	for i, g := range entries {
		f, ok := e.funcs[g.Symbol]
		if !ok {
			return codegenError(diag.LLVM001, "glue entry for %s references missing symbol %s", g.TypeName, g.Symbol)
		}
		consts[i] = constant.NewStruct(e.dropEntryTy,
			constant.NewInt(types.I64, int64(g.TypeIdentity)),
			funcAsPtr(f))
	}
	arrTy := types.NewArray(uint64(len(consts)), e.dropEntryTy)
	table := e.mod.NewGlobalDef(tableName, constant.NewArray(arrTy, consts...))
	table.Linkage = enum.LinkageInternal
	table.Immutable = true

	e.ctors = append(e.ctors, e.tableInit(initName, installSym, table, len(consts)))
	return nil
}

// tableInit defines an init function calling install(table, len).
func (e *Emitter) tableInit(name, installSym string, table *ir.Global, count int) *ir.Func {
	init := e.mod.NewFunc(name, types.Void)
	init.Linkage = enum.LinkageInternal
	blk := init.NewBlock("entry")
	install, _ := e.declareRuntime(installSym)
	blk.NewCall(install,
		blk.NewBitCast(table, types.I8Ptr),
		constant.NewInt(types.I64, int64(count)))
	blk.NewRet(nil)
	return init
}

// emitTypeMetadataTable renders one metadata entry per registered layout:
// identity, size, align, drop glue (null when the type needs none),
// variance (unused by this unit), and flags (bit 0 = intrinsic).
func (e *Emitter) emitTypeMetadataTable() error {
	names := e.m.Layouts.Names()
	if len(names) == 0 {
		return nil
	}
	dropBySymbolised := make(map[string]*ir.Func)
	for _, g := range e.m.GlueByKind(mir.GlueDrop) {
		if f, ok := e.funcs[g.Symbol]; ok {
			dropBySymbolised[g.TypeName] = f
		}
	}

	consts := make([]constant.Constant, 0, len(names))
	for _, name := range names {
		l := e.m.Layouts.ComputeLayout(name)
		if l == nil {
			continue
		}
		var dropFn constant.Constant = constant.NewNull(types.I8Ptr)
		if f, ok := dropBySymbolised[name]; ok {
			dropFn = funcAsPtr(f)
		}
		flags := int64(0)
		if l.Intrinsic {
			flags |= 1
		}
		consts = append(consts, constant.NewStruct(e.metaEntryTy,
			constant.NewInt(types.I64, int64(typelayout.TypeIdentity(name))),
			constant.NewInt(types.I64, int64(l.Size)),
			constant.NewInt(types.I64, int64(l.Align)),
			dropFn,
			constant.NewNull(types.I8Ptr),
			constant.NewInt(types.I64, 0),
			constant.NewInt(types.I32, flags)))
	}
	if len(consts) == 0 {
		return nil
	}
	arrTy := types.NewArray(uint64(len(consts)), e.metaEntryTy)
	table := e.mod.NewGlobalDef("__chic_type_metadata_entries", constant.NewArray(arrTy, consts...))
	table.Linkage = enum.LinkageInternal
	table.Immutable = true
	e.ctors = append(e.ctors, e.tableInit("__chic_init_type_metadata", rt.SymInstallTypeMetadataTable, table, len(consts)))
	return nil
}

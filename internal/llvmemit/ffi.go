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
)

// ffiConvention encodes the descriptor's calling-convention tag.
func ffiConvention(name string) int64 {
	switch name {
	case "system":
		return int64(rt.FFIConventionSystem)
	case "stdcall":
		return int64(rt.FFIConventionStdcall)
	default:
		return int64(rt.FFIConventionC)
	}
}

// emitFFIStubs defines one %chic_ffi_descriptor constant and one stub per
// dynamically bound extern function.
// Eagerly bound descriptors additionally get a ctor-registered resolver.
func (e *Emitter) emitFFIStubs() error {
	var eagerDescs []*ir.Global
	for _, fn := range e.m.Functions {
		if fn.Extern == nil || (fn.Extern.Kind != mir.ExternDynamicLazy && fn.Extern.Kind != mir.ExternDynamicEager) {
			continue
		}
		if fn.Sig.Variadic {
			return codegenError(diag.LLVM003, "dynamic extern %s is variadic; variadic dynamic externs are rejected", fn.Name)
		}
		desc, err := e.emitFFIDescriptor(fn)
		if err != nil {
			return err
		}
		if fn.Extern.Kind == mir.ExternDynamicEager {
			eagerDescs = append(eagerDescs, desc)
		}
		if err := e.emitFFIStub(fn, desc); err != nil {
			return err
		}
	}
	if len(eagerDescs) > 0 {
		init := e.mod.NewFunc("__chic_ffi_eager_init", types.Void)
		init.Linkage = enum.LinkageInternal
		blk := init.NewBlock("entry")
		resolve, _ := e.declareRuntime(rt.SymFFIResolve)
		for _, d := range eagerDescs {
			blk.NewCall(resolve, blk.NewBitCast(d, types.I8Ptr))
		}
		blk.NewRet(nil)
		e.ctors = append(e.ctors, init)
	}
	return nil
}

func (e *Emitter) emitFFIDescriptor(fn *mir.MirFunction) (*ir.Global, error) {
	symbolName := fn.Extern.Symbol
	if symbolName == "" {
		symbolName = fn.Name
	}
	binding := int64(rt.FFIBindingLazy)
	if fn.Extern.Kind == mir.ExternDynamicEager {
		binding = int64(rt.FFIBindingEager)
	}
	desc := constant.NewStruct(e.ffiDescTy,
		e.cstring(fn.Extern.Library),
		e.cstring(symbolName),
		constant.NewInt(types.I32, ffiConvention(fn.Extern.Convention)),
		constant.NewInt(types.I32, binding),
		constant.NewBool(fn.Extern.Optional))
	g := e.mod.NewGlobalDef("__chic_ffi_descriptor_"+mangleSymbol(fn.Name), desc)
	g.Linkage = enum.LinkageInternal
	g.Immutable = true
	return g, nil
}

// emitFFIStub gives the extern its body: resolve the descriptor, null-
// check when optional, bitcast to the concrete signature, tail-call
// through with the received arguments.
func (e *Emitter) emitFFIStub(fn *mir.MirFunction, desc *ir.Global) error {
	f := e.funcs[fn.Name]
	f.Linkage = e.linkageFor(fn)
	e.defined[fn.Name] = true

	blk := f.NewBlock("entry")
	resolve, _ := e.declareRuntime(rt.SymFFIResolve)
	raw := blk.NewCall(resolve, blk.NewBitCast(desc, types.I8Ptr))

	retTy := f.Sig.RetType
	paramTys := make([]types.Type, len(f.Params))
	args := make([]value.Value, len(f.Params))
	for i, p := range f.Params {
		paramTys[i] = p.Type()
		args[i] = p
	}
	concrete := types.NewPointer(types.NewFunc(retTy, paramTys...))

	callBlk := f.NewBlock("resolved")
	if fn.Extern.Optional {
		missBlk := f.NewBlock("missing")
		isNull := blk.NewICmp(enum.IPredEQ, raw, constant.NewNull(types.I8Ptr))
		blk.NewCondBr(isNull, missBlk, callBlk)
		if retTy.Equal(types.Void) {
			missBlk.NewRet(nil)
		} else {
			missBlk.NewRet(constant.NewZeroInitializer(retTy))
		}
	} else {
		blk.NewBr(callBlk)
	}

	typed := callBlk.NewBitCast(raw, concrete)
	call := callBlk.NewCall(typed, args...)
	call.Tail = enum.TailTail
	if retTy.Equal(types.Void) {
		callBlk.NewRet(nil)
	} else {
		callBlk.NewRet(call)
	}
	return nil
}

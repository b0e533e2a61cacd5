package llvmemit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/chic-lang/chicc-core/internal/rt"
)

// runtimeSig describes one chic_rt_* extern's LLVM signature.
type runtimeSig struct {
	ret      types.Type
	params   []types.Type
	variadic bool
}

// runtimeSigs is the signature table for every runtime symbol the
// emitter may reference. Declarations are created on demand — only
// symbols actually called end up declared in the module.
var runtimeSigs = map[string]runtimeSig{
	rt.SymAlloc:       {ret: types.I8Ptr, params: []types.Type{types.I64, types.I64}},
	rt.SymAllocZeroed: {ret: types.I8Ptr, params: []types.Type{types.I64, types.I64}},
	rt.SymRealloc:     {ret: types.I8Ptr, params: []types.Type{types.I8Ptr, types.I64, types.I64, types.I64}},
	rt.SymFree:        {ret: types.Void, params: []types.Type{types.I8Ptr, types.I64, types.I64}},
	rt.SymMemcpy:      {ret: types.I8Ptr, params: []types.Type{types.I8Ptr, types.I8Ptr, types.I64}},
	rt.SymMemmove:     {ret: types.I8Ptr, params: []types.Type{types.I8Ptr, types.I8Ptr, types.I64}},
	rt.SymMemset:      {ret: types.I8Ptr, params: []types.Type{types.I8Ptr, types.I32, types.I64}},

	rt.SymArcNew:         {ret: types.I32, params: []types.Type{types.I8Ptr, types.I8Ptr, types.I64, types.I64, types.I8Ptr, types.I64}},
	rt.SymArcClone:       {ret: types.I32, params: []types.Type{types.I8Ptr, types.I8Ptr}},
	rt.SymArcDrop:        {ret: types.Void, params: []types.Type{types.I8Ptr}},
	rt.SymArcGet:         {ret: types.I8Ptr, params: []types.Type{types.I8Ptr}},
	rt.SymArcGetMut:      {ret: types.I8Ptr, params: []types.Type{types.I8Ptr}},
	rt.SymArcDowngrade:   {ret: types.Void, params: []types.Type{types.I8Ptr, types.I8Ptr}},
	rt.SymArcStrongCount: {ret: types.I32, params: []types.Type{types.I8Ptr}},
	rt.SymArcWeakCount:   {ret: types.I32, params: []types.Type{types.I8Ptr}},
	rt.SymObjectNew:      {ret: types.I8Ptr, params: []types.Type{types.I64}},

	rt.SymStringNew: {ret: types.Void, params: []types.Type{types.I8Ptr, types.I8Ptr, types.I64}},
	rt.SymStringCat: {ret: types.Void, params: []types.Type{types.I8Ptr, types.I8Ptr, types.I8Ptr}},
	rt.SymVecDrop:   {ret: types.Void, params: []types.Type{types.I8Ptr}},

	rt.SymInstallDropTable:         {ret: types.Void, params: []types.Type{types.I8Ptr, types.I64}},
	rt.SymInstallHashTable:         {ret: types.Void, params: []types.Type{types.I8Ptr, types.I64}},
	rt.SymInstallEqTable:           {ret: types.Void, params: []types.Type{types.I8Ptr, types.I64}},
	rt.SymInstallTypeMetadataTable: {ret: types.Void, params: []types.Type{types.I8Ptr, types.I64}},
	rt.SymInstallInterfaceDefaults: {ret: types.Void, params: []types.Type{types.I8Ptr, types.I64}},

	rt.SymThrow:                   {ret: types.Void, params: []types.Type{types.I8Ptr, types.I64}},
	rt.SymHasPendingException:     {ret: types.I32, params: nil},
	rt.SymAbortUnhandledException: {ret: types.Void, params: nil},

	rt.SymFFIResolve:    {ret: types.I8Ptr, params: []types.Type{types.I8Ptr}},
	rt.SymHostFFIPanic:  {ret: types.Void, params: []types.Type{types.I8Ptr}},
	rt.SymPanic:         {ret: types.Void, params: []types.Type{types.I32}},
	rt.SymAbort:         {ret: types.Void, params: []types.Type{types.I32}},
	rt.SymCoverageHit:   {ret: types.Void, params: []types.Type{types.I64}},
	rt.SymYield:         {ret: types.Void, params: nil},
	rt.SymAwaitBlocking: {ret: types.Void, params: []types.Type{types.I8Ptr, types.I8Ptr}},
	rt.SymCPUSupports:   {ret: types.I32, params: []types.Type{types.I8Ptr}},
	rt.SymGpuEnqueue:    {ret: types.Void, params: []types.Type{types.I8Ptr}},
	rt.SymGpuCopy:       {ret: types.Void, params: []types.Type{types.I8Ptr}},
	rt.SymGpuEvent:      {ret: types.Void, params: []types.Type{types.I8Ptr}},

	rt.SymDecimalAdd: {ret: types.I128, params: []types.Type{types.I128, types.I128, types.I32, types.I32}},
	rt.SymDecimalSub: {ret: types.I128, params: []types.Type{types.I128, types.I128, types.I32, types.I32}},
	rt.SymDecimalMul: {ret: types.I128, params: []types.Type{types.I128, types.I128, types.I32, types.I32}},
	rt.SymDecimalDiv: {ret: types.I128, params: []types.Type{types.I128, types.I128, types.I32, types.I32}},
	rt.SymDecimalRem: {ret: types.I128, params: []types.Type{types.I128, types.I128, types.I32, types.I32}},
	rt.SymDecimalFma: {ret: types.I128, params: []types.Type{types.I128, types.I128, types.I128, types.I32, types.I32}},

	rt.SymStartupStoreState:         {ret: types.Void, params: []types.Type{types.I32, types.I8Ptr, types.I8Ptr}},
	rt.SymStartupHasRunTestsFlag:    {ret: types.I32, params: nil},
	rt.SymTestExecutorRunAll:        {ret: types.I32, params: nil},
	rt.SymStartupDescriptorSnapshot: {ret: types.I8Ptr, params: nil},
	rt.SymStartupCallEntry:          {ret: types.I32, params: []types.Type{types.I8Ptr, types.I32, types.I32, types.I8Ptr, types.I8Ptr}},
	rt.SymStartupCallEntryAsync:     {ret: types.I8Ptr, params: []types.Type{types.I8Ptr, types.I32, types.I32, types.I8Ptr, types.I8Ptr}},
	rt.SymStartupCompleteEntryAsync: {ret: types.I32, params: []types.Type{types.I8Ptr, types.I32}},
}

// declareRuntime returns (declaring on first use) the extern for a
// runtime symbol, or false for a symbol outside the contract.
func (e *Emitter) declareRuntime(symbol string) (*ir.Func, bool) {
	if f, ok := e.funcs[symbol]; ok {
		return f, true
	}
	sig, ok := runtimeSigs[symbol]
	if !ok {
		return nil, false
	}
	params := make([]*ir.Param, len(sig.params))
	for i, p := range sig.params {
		params[i] = ir.NewParam("", p)
	}
	f := e.mod.NewFunc(symbol, sig.ret, params...)
	if sig.variadic {
		f.Sig.Variadic = true
	}
	e.funcs[symbol] = f
	return f, true
}

// declareIntrinsic declares an llvm.* intrinsic on first use.
func (e *Emitter) declareIntrinsic(name string, ret types.Type, params ...types.Type) *ir.Func {
	if f, ok := e.funcs[name]; ok {
		return f
	}
	ps := make([]*ir.Param, len(params))
	for i, p := range params {
		ps[i] = ir.NewParam("", p)
	}
	f := e.mod.NewFunc(name, ret, ps...)
	e.funcs[name] = f
	return f
}

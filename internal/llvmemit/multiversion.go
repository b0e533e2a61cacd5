package llvmemit

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/rt"
)

// multiversionEligible reports whether fn should get per-tier bodies and
// a dispatcher: the function opted in via its optimization hints and the
// profile carries more than one tier.
func (o *Options) multiversionEligible(fn *mir.MirFunction) bool {
	return fn.OptHints["multiversion"] && len(o.Tiers) > 1
}

// effectiveTiers strips SVE tiers on Apple triples, matching the source
// toolchain's unconditional behaviour.
func (e *Emitter) effectiveTiers() []Tier {
	if !strings.Contains(e.opts.TargetTriple, "apple") {
		return e.opts.Tiers
	}
	out := make([]Tier, 0, len(e.opts.Tiers))
	for _, t := range e.opts.Tiers {
		if strings.Contains(strings.ToLower(t.Name), "sve") {
			continue
		}
		out = append(out, t)
	}
	return out
}

// defineMultiversion emits one definition per ISA tier plus a dispatcher
// under the original name. The dispatcher probes CPU features on first
// call, caches the selected implementation in a function-local static
// pointer, and tail-calls it thereafter.
func (e *Emitter) defineMultiversion(fn *mir.MirFunction, dispatcher *ir.Func) error {
	tiers := e.effectiveTiers()
	if len(tiers) <= 1 {
		dispatcher.Linkage = e.linkageFor(fn)
		e.defined[fn.Name] = true
		return e.lowerBody(fn, dispatcher)
	}

	impls := make([]*ir.Func, len(tiers))
	for i, tier := range tiers {
		params := make([]*ir.Param, len(dispatcher.Params))
		for pi, p := range dispatcher.Params {
			params[pi] = ir.NewParam("", p.Type())
		}
		impl := e.mod.NewFunc(fn.Name+".__"+tier.Name, dispatcher.Sig.RetType, params...)
		impl.Linkage = enum.LinkageInternal
		if tier.Features != "" {
			impl.FuncAttrs = append(impl.FuncAttrs, ir.AttrPair{Key: "target-features", Value: tier.Features})
		}
		e.funcs[impl.Name()] = impl
		e.defined[impl.Name()] = true
		if err := e.lowerBody(fn, impl); err != nil {
			return err
		}
		impls[i] = impl
	}

	dispatcher.Linkage = e.linkageFor(fn)
	e.defined[fn.Name] = true

	fnPtrTy := types.NewPointer(dispatcher.Sig)
	cache := e.mod.NewGlobalDef(fn.Name+".__selected", constant.NewNull(fnPtrTy))
	cache.Linkage = enum.LinkageInternal

	entry := dispatcher.NewBlock("entry")
	cached := entry.NewLoad(fnPtrTy, cache)
	isNull := entry.NewICmp(enum.IPredEQ, cached, constant.NewNull(fnPtrTy))
	probeBlk := dispatcher.NewBlock("probe")
	callBlk := dispatcher.NewBlock("dispatch")
	entry.NewCondBr(isNull, probeBlk, callBlk)

	// Probe tiers from most specific (last) to baseline (first); the
	// first supported tier wins. The baseline needs no probe.
	supports, _ := e.declareRuntime(rt.SymCPUSupports)
	cur := probeBlk
	for i := len(impls) - 1; i >= 1; i-- {
		hit := dispatcher.NewBlock("pick." + tiers[i].Name)
		miss := dispatcher.NewBlock("miss." + tiers[i].Name)
		probe := cur.NewCall(supports, e.cstring(tiers[i].Name))
		ok := cur.NewICmp(enum.IPredNE, probe, constant.NewInt(types.I32, 0))
		cur.NewCondBr(ok, hit, miss)
		hit.NewStore(impls[i], cache)
		hit.NewBr(callBlk)
		cur = miss
	}
	cur.NewStore(impls[0], cache)
	cur.NewBr(callBlk)

	selected := callBlk.NewLoad(fnPtrTy, cache)
	args := make([]value.Value, len(dispatcher.Params))
	for i, p := range dispatcher.Params {
		args[i] = p
	}
	call := callBlk.NewCall(selected, args...)
	call.Tail = enum.TailTail
	if dispatcher.Sig.RetType.Equal(types.Void) {
		callBlk.NewRet(nil)
	} else {
		callBlk.NewRet(call)
	}
	return nil
}

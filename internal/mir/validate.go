package mir

import (
	"fmt"

	"github.com/chic-lang/chicc-core/internal/diag"
)

// Validate checks the structural invariants over every
// function body: local 0 is the return slot, block 0 is entry, every
// block has exactly one terminator, and every edge stays inside the
// function. Violations accumulate as MIR006 reports rather than
// stopping at the first.
func (m *MirModule) Validate() []*diag.Report {
	var out []*diag.Report
	bad := func(fn *MirFunction, format string, args ...any) {
		out = append(out, diag.New(diag.MIR006, fn.Name+": "+fmt.Sprintf(format, args...), nil))
	}
	for _, fn := range m.Functions {
		if fn.Body == nil {
			continue
		}
		b := fn.Body
		if len(b.Locals) == 0 || b.Locals[0].Kind != LocalReturnSlot {
			bad(fn, "local 0 must be the return slot")
		}
		if len(b.Blocks) == 0 {
			bad(fn, "body has no entry block")
			continue
		}
		for i := range b.Blocks {
			blk := &b.Blocks[i]
			if blk.Terminator == nil {
				bad(fn, "block %d has no terminator", i)
				continue
			}
			for _, succ := range blk.Terminator.Successors() {
				if int(succ) >= len(b.Blocks) || succ < 0 {
					bad(fn, "block %d branches to nonexistent block %d", i, succ)
				}
			}
		}
	}
	return out
}

package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Render writes a human-readable, terminal-colored rendering of a Report
// to w. This is the sink the CLI front end (cmd/chicc) uses for diagnostics
// surfaced by components C/D/E; it never changes the Report's JSON shape.
func Render(w io.Writer, r *Report) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "%s %s: %s\n", red(r.Code), bold(r.Phase), r.Message)
	if r.Span != nil {
		fmt.Fprintf(w, "  %s %s\n", cyan("at"), r.Span.String())
	}
	if r.Fix != nil {
		fmt.Fprintf(w, "  %s %s\n", yellow("fix:"), r.Fix.Description)
	}
}

// RenderAll renders a batch of accumulated MIR lowering diagnostics in
// order; used after body building completes, since lowering continues
// past most diagnostics rather than aborting on the first one.
func RenderAll(w io.Writer, reports []*Report) {
	for _, r := range reports {
		Render(w, r)
	}
}

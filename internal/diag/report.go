package diag

import (
	"encoding/json"
	"errors"

	"github.com/chic-lang/chicc-core/internal/ast"
)

// Report is the canonical structured diagnostic type for the core. All
// error builders across components C/D/E return a *Report, wrapped as a
// ReportError so structured data survives errors.As() unwrapping.
type Report struct {
	Schema  string         `json:"schema"`         // Always "chicc.diag/v1"
	Code    string         `json:"code"`           // Error code (MIR001, LLVM002, ...)
	Phase   string         `json:"phase"`          // Phase: "mir", "llvm", "wasm", ...
	Message string         `json:"message"`        // Human-readable message
	Span    *ast.Span      `json:"span,omitempty"` // Source span, if the diagnostic has one
	Data    map[string]any `json:"data,omitempty"` // Structured data (sorted keys on marshal)
	Fix     *Fix           `json:"fix,omitempty"`  // Suggested fix, if any
}

// Fix describes a mechanical suggestion attached to a Report.
type Fix struct {
	Description string `json:"description"`
	Replacement string `json:"replacement,omitempty"`
}

// ReportError wraps a Report as an error.
type ReportError struct {
	Rep *Report
}

func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown diagnostic"
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// AsReport extracts a Report from an error chain, if present.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// Wrap wraps a Report as an error.
func Wrap(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// New builds a Report, filling Schema and Phase from the code.
func New(code, message string, span *ast.Span) *Report {
	return &Report{
		Schema:  "chicc.diag/v1",
		Code:    code,
		Phase:   Phase(code),
		Message: message,
		Span:    span,
		Data:    map[string]any{},
	}
}

// ToJSON renders the report as deterministic JSON.
func (r *Report) ToJSON(compact bool) (string, error) {
	if compact {
		b, err := json.Marshal(r)
		return string(b), err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	return string(b), err
}

// Package diag provides centralized error code definitions for the chicc
// core. All error codes follow a consistent phase-prefixed taxonomy so a
// driver can route and filter them without parsing the message text.
package diag

// Error code constants organized by phase. Each constant represents a
// specific condition raised by one of the core's components.
const (
	// ============================================================================
	// MIR body-builder diagnostics (MIR###)
	// ============================================================================

	// MIR001 indicates an assignment to a readonly field outside a constructor
	MIR001 = "MIR001"

	// MIR002 indicates a decimal intrinsic call with fewer arguments than its descriptor needs
	MIR002 = "MIR002"

	// MIR003 indicates a numeric intrinsic call missing a required `out` argument
	MIR003 = "MIR003"

	// MIR004 indicates a malformed span-intrinsic call (StackAlloc with neither length nor source)
	MIR004 = "MIR004"

	// MIR005 indicates an atomic call naming an unrecognised ordering
	MIR005 = "MIR005"

	// MIR006 indicates a basic block left without a terminator
	MIR006 = "MIR006"

	// ============================================================================
	// Monomorphization / glue synthesis diagnostics (MONO###)
	// ============================================================================

	// MONO001 indicates a clone candidate with no Clone::Clone method
	MONO001 = "MONO001"

	// MONO002 indicates an eq candidate that is neither an enum nor carries op_Equality
	MONO002 = "MONO002"

	// MONO003 indicates a hash candidate whose intrinsic type has no glue (float/decimal/string)
	MONO003 = "MONO003"

	// MONO004 indicates glue synthesis was requested for a symbol that already exists
	MONO004 = "MONO004"

	// ============================================================================
	// LLVM codegen diagnostics (LLVM###)
	// ============================================================================

	// LLVM001 indicates a call references a symbol with no known signature
	LLVM001 = "LLVM001"

	// LLVM002 indicates an unsupported entry-point return type
	LLVM002 = "LLVM002"

	// LLVM003 indicates a variadic dynamic FFI extern (rejected)
	LLVM003 = "LLVM003"

	// LLVM004 indicates a duplicate native `main` definition
	LLVM004 = "LLVM004"

	// ============================================================================
	// WASM interpreter trap diagnostics (WASM###)
	// ============================================================================

	// WASM001 indicates an out-of-bounds linear-memory access
	WASM001 = "WASM001"

	// WASM002 indicates an unresolved import at load time
	WASM002 = "WASM002"

	// WASM003 indicates a scheduler deadlock (no ready or queued futures)
	WASM003 = "WASM003"

	// WASM004 indicates a malformed module header/section
	WASM004 = "WASM004"

	// ============================================================================
	// Runtime ABI / FFI diagnostics (RT###)
	// ============================================================================

	// RT001 indicates a required FFI binding failed to resolve
	RT001 = "RT001"

	// RT002 indicates an unhandled exception reached the outermost boundary
	RT002 = "RT002"

	// RT003 indicates strong-count overflow on arc_clone
	RT003 = "RT003"
)

// Phase returns the human-readable phase name for a code's prefix, used
// when populating Report.Phase.
func Phase(code string) string {
	switch {
	case len(code) >= 3 && code[:3] == "MIR":
		return "mir"
	case len(code) >= 4 && code[:4] == "MONO":
		return "monomorphize"
	case len(code) >= 4 && code[:4] == "LLVM":
		return "llvm"
	case len(code) >= 4 && code[:4] == "WASM":
		return "wasm"
	case len(code) >= 2 && code[:2] == "RT":
		return "runtime"
	default:
		return "unknown"
	}
}

// Package mir is the three-address, block-structured intermediate
// representation shared by the monomorphization pass and the LLVM
// emitter. A MirModule is an arena: every cross-reference
// between functions, types, and vtables is an index or a canonical string,
// never a pointer, which keeps the cyclic ownership between MIR and type
// layouts (functions name types that resolve through the layout table;
// layouts hold function symbols for drop/clone hooks) acyclic in Go terms.
package mir

import (
	"github.com/chic-lang/chicc-core/internal/ast"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// FuncID indexes a MirFunction within a MirModule. Stable once assigned.
type FuncID int

// LocalID indexes a LocalDecl within a MirBody. Local 0 is always the
// return slot.
type LocalID int

// BlockID indexes a BasicBlock within a MirBody. Block 0 is always entry.
type BlockID int

// FuncKind distinguishes ordinary functions from constructors and test
// cases, used by the state-machine-integrity check on readonly fields and
// by the test executor's descriptor emission.
type FuncKind int

const (
	FuncRegular FuncKind = iota
	FuncConstructor
	FuncTestCase
)

// ABI tags the calling convention a function's signature was declared
// with, consumed by the LLVM emitter's FFI stub and multiversion logic.
type ABI int

const (
	ABIDefault ABI = iota
	ABIExternC
	ABISystem
)

// Effects is a bitset of declared side-effect capabilities a function
// carries; the core treats these as opaque tags handed down by the
// (out-of-scope) type checker and threads them through unchanged.
type Effects uint32

// FuncSignature is the ordered parameter/return/ABI contract of a function.
type FuncSignature struct {
	Params     []*typelayout.Ty
	Return     *typelayout.Ty
	ABITag     ABI
	Effects    Effects
	Variadic   bool
}

// ExternBinding describes a dynamic or static FFI binding for a function
// whose body is empty.
type ExternBindingKind int

const (
	ExternNone ExternBindingKind = iota
	ExternStatic
	ExternDynamicLazy
	ExternDynamicEager
)

type ExternBinding struct {
	Kind       ExternBindingKind
	Library    string
	Symbol     string
	Convention string // "c", "system", "stdcall", ...
	Optional   bool
}

// MirFunction is one function body plus its signature and metadata.
type MirFunction struct {
	ID   FuncID
	Name string // canonical, "::"-separated
	Kind FuncKind

	Sig FuncSignature

	Body *MirBody

	Async        bool
	AsyncPlan    *AsyncLoweringArtifact
	Generator    bool

	Span ast.Span

	// OptHints carries back-end optimization hints (e.g. multiversioning
	// eligibility, inline preference) opaque to this package.
	OptHints map[string]bool

	Extern      *ExternBinding
	WeakImport  bool
}

// LocalKind distinguishes the return slot, argument locals, and temporaries.
type LocalKind int

const (
	LocalReturnSlot LocalKind = iota
	LocalArg
	LocalTemp
)

// ParamMode describes how a parameter local is passed: by value, by
// reference, or with an `out` modifier (numeric-intrinsic lowering
// requires `out` parameters).
type ParamMode int

const (
	ParamByValue ParamMode = iota
	ParamByRef
	ParamOut
)

// LocalDecl is one slot in a MirBody's local table.
type LocalDecl struct {
	Name string
	Type *typelayout.Ty
	Mode ParamMode
	Kind LocalKind
}

// AsyncLoweringArtifact describes the generated poll/drop function
// symbols, the state variable, suspension points, and frame fields for an
// async function.
type AsyncLoweringArtifact struct {
	PollSymbol  string
	DropSymbol  string
	StateLocal  LocalID
	Suspensions []SuspensionPoint
	Captured    []LocalID // locals (and args) that survive a suspension
	FrameFields []FrameField
}

// SuspensionPoint records one `await` site's resume block.
type SuspensionPoint struct {
	State      int
	AwaitBlock BlockID
	ResumeBlock BlockID
}

// FrameField is one field of the synthesized async state-machine frame.
type FrameField struct {
	Name string
	Type *typelayout.Ty
}

// MirBody is the block-structured body of a non-extern MirFunction.
// Invariant: block 0 is entry; every block has
// exactly one terminator; local 0 is always the return slot.
type MirBody struct {
	ArgCount int
	Locals   []LocalDecl
	Blocks   []BasicBlock

	AsyncMeta *AsyncBodyMeta

	// curBlock is the block currently being appended to while the body is
	// built.
	curBlock BlockID
}

// AsyncBodyMeta is the body-level counterpart of AsyncLoweringArtifact,
// describing the frame type and state count directly on the body so the
// LLVM emitter does not need to re-derive it from the function's plan.
type AsyncBodyMeta struct {
	FrameType    string
	StateCount   int
	Suspensions  []SuspensionPoint
	CapturedArgs []LocalID
}

// BasicBlock is a straight-line sequence of statements ending in exactly
// one terminator.
type BasicBlock struct {
	ID         BlockID
	Statements []Statement
	Terminator Terminator
}

// NewBody returns an empty body with local 0 pre-allocated as the return
// slot and a single entry block (block 0) with a placeholder Unreachable
// terminator, to be replaced as the builder lowers the function.
func NewBody(returnType *typelayout.Ty, argCount int) *MirBody {
	b := &MirBody{
		ArgCount: argCount,
		Locals: []LocalDecl{
			{Name: "__ret", Type: returnType, Kind: LocalReturnSlot},
		},
	}
	for i := 0; i < argCount; i++ {
		b.Locals = append(b.Locals, LocalDecl{Kind: LocalArg})
	}
	b.Blocks = append(b.Blocks, BasicBlock{ID: 0, Terminator: Unreachable{}})
	b.curBlock = 0
	return b
}

// CurrentBlock returns the id of the block new statements append to.
func (b *MirBody) CurrentBlock() BlockID { return b.curBlock }

// SetCurrentBlock redirects subsequent PushStatement/SetTerminator calls.
func (b *MirBody) SetCurrentBlock(id BlockID) { b.curBlock = id }

// NewBlock appends a fresh empty block and returns its id, without
// switching the current block.
func (b *MirBody) NewBlock() BlockID {
	id := BlockID(len(b.Blocks))
	b.Blocks = append(b.Blocks, BasicBlock{ID: id, Terminator: Unreachable{}})
	return id
}

// SetTerminator replaces the current block's terminator.
func (b *MirBody) SetTerminator(t Terminator) {
	b.Blocks[b.curBlock].Terminator = t
}

// Block returns a pointer to the block with id.
func (b *MirBody) Block(id BlockID) *BasicBlock { return &b.Blocks[id] }

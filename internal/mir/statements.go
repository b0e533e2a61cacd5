package mir

import "github.com/chic-lang/chicc-core/internal/typelayout"

// StmtKind tags a Statement's variant.
type StmtKind int

const (
	StmtAssign StmtKind = iota
	StmtStorageLive
	StmtStorageDead
	StmtDrop
	StmtBorrow
	StmtRetag
	StmtDeferDrop
	StmtDefaultInit
	StmtZeroInit
	StmtZeroInitRaw
	StmtAtomicStore
	StmtAtomicFence
	StmtEnterUnsafe
	StmtExitUnsafe
	StmtAssert
	StmtMmioStore
	StmtStaticStore
	StmtInlineAsm
	StmtGpuEnqueue
	StmtGpuCopy
	StmtGpuEvent
	StmtNop
)

// Statement is one non-control-flow operation within a basic block.
type Statement struct {
	Kind StmtKind

	// StmtAssign
	Dest  Place
	Rhs   Rvalue

	// StmtStorageLive / StmtStorageDead / StmtDrop / StmtDeferDrop
	Local LocalID

	// StmtDrop: the static type of Local, resolved at MIR-build time so
	// monomorphization doesn't need to re-derive it from the body.
	DropType *typelayout.Ty

	// StmtBorrow
	BorrowDest Place
	BorrowKindTag BorrowKind
	BorrowPlace Place

	// StmtRetag: re-validates a borrow after a move; carries the place only.
	RetagPlace Place

	// StmtDefaultInit / StmtZeroInit
	InitPlace Place
	InitType  *typelayout.Ty

	// StmtZeroInitRaw
	RawPointer Operand
	RawLen     Operand

	// StmtAtomicStore
	AtomicAddr  Operand
	AtomicValue Operand
	AtomicOrder AtomicOrdering

	// StmtAtomicFence
	FenceOrder AtomicOrdering

	// StmtAssert
	AssertCond Operand
	AssertMsg  string

	// StmtMmioStore
	MmioAddr  Operand
	MmioValue Operand
	MmioWidth int

	// StmtStaticStore
	StaticName  string
	StaticValue Operand

	// StmtInlineAsm
	AsmTemplate string
	AsmInputs   []Operand
	AsmOutputs  []Place

	// StmtGpuEnqueue / StmtGpuCopy / StmtGpuEvent: opaque payload, the GPU
	// back end (out of scope for this core) interprets Data structurally.
	GpuOp   string
	GpuData map[string]any
}

// Assign builds a StmtAssign.
func Assign(dest Place, rhs Rvalue) Statement {
	return Statement{Kind: StmtAssign, Dest: dest, Rhs: rhs}
}

// StorageLive builds a StmtStorageLive.
func StorageLive(local LocalID) Statement {
	return Statement{Kind: StmtStorageLive, Local: local}
}

// StorageDead builds a StmtStorageDead.
func StorageDead(local LocalID) Statement {
	return Statement{Kind: StmtStorageDead, Local: local}
}

// Drop builds a StmtDrop for local of the given static type.
func Drop(local LocalID, t *typelayout.Ty) Statement {
	return Statement{Kind: StmtDrop, Local: local, DropType: t}
}

// Nop builds a no-op statement, used as a placeholder when lowering must
// emit something syntactically valid but semantically inert (e.g. in place
// of a Pending-sourced assignment).
func Nop() Statement { return Statement{Kind: StmtNop} }

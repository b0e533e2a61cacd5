package mir

import (
	"strings"

	"github.com/chic-lang/chicc-core/internal/ast"
	"github.com/chic-lang/chicc-core/internal/diag"
	"github.com/chic-lang/chicc-core/internal/typelayout"
)

// BodyBuilder accumulates a MirBody for one MirFunction, providing the
// operations the (out-of-scope) front end calls while lowering a typed
// function to MIR.
type BodyBuilder struct {
	Module      *MirModule
	Function    *MirFunction
	Body        *MirBody
	Diagnostics []*diag.Report

	// constructorOf is the type name this function constructs, non-empty
	// only when Function.Kind == FuncConstructor; used by the readonly-
	// field integrity check.
	constructorOf string
	// ownerIsRecord marks the owning type as a record, which additionally
	// permits readonly writes to local temps.
	ownerIsRecord bool
}

// NewBodyBuilder starts building fn's body, which must already have been
// created via NewBody and assigned to fn.Body. The owning type is the
// prefix of the canonical name before the last "::" (the final segment
// is the method or constructor name); its layout's Record flag drives
// the readonly-write exception for record methods.
func NewBodyBuilder(module *MirModule, fn *MirFunction) *BodyBuilder {
	owner := ""
	if i := strings.LastIndex(fn.Name, "::"); i > 0 {
		owner = fn.Name[:i]
	}
	b := &BodyBuilder{
		Module:   module,
		Function: fn,
		Body:     fn.Body,
	}
	if fn.Kind == FuncConstructor {
		b.constructorOf = owner
	}
	if l := module.Layouts.Lookup(owner); l != nil && l.Record {
		b.ownerIsRecord = true
	}
	return b
}

// diagnose records a Report without aborting lowering.
func (b *BodyBuilder) diagnose(code, message string, span ast.Span) {
	b.Diagnostics = append(b.Diagnostics, diag.New(code, message, &span))
}

// CreateTemp allocates a fresh temp local of type t and returns its id.
func (b *BodyBuilder) CreateTemp(t *typelayout.Ty, span ast.Span) LocalID {
	id := LocalID(len(b.Body.Locals))
	b.Body.Locals = append(b.Body.Locals, LocalDecl{Type: t, Kind: LocalTemp})
	_ = span // retained for signature parity; spans aren't stored per-local
	return id
}

// PushStatement appends stmt to the current block, after validating a
// readonly-field write against the state-machine-integrity rule: writes
// to a readonly field are rejected unless the current function is a
// constructor of the owning type, or (for record types) the destination
// is a local temp.
func (b *BodyBuilder) PushStatement(stmt Statement, span ast.Span) {
	if stmt.Kind == StmtAssign {
		if field, owner, ok := b.readonlyFieldWrite(stmt.Dest); ok {
			allowed := owner == b.constructorOf
			if !allowed && b.ownerIsRecord && b.isLocalTemp(stmt.Dest.Local) {
				allowed = true
			}
			if !allowed {
				b.diagnose(diag.MIR001, "assignment to readonly field "+field+" of "+owner+" outside its constructor", span)
			}
		}
	}
	blk := &b.Body.Blocks[b.Body.curBlock]
	blk.Statements = append(blk.Statements, stmt)
}

func (b *BodyBuilder) isLocalTemp(l LocalID) bool {
	return int(l) < len(b.Body.Locals) && b.Body.Locals[l].Kind == LocalTemp
}

// readonlyFieldWrite inspects dest for a Field/FieldNamed projection into a
// type this builder knows to be readonly, returning (fieldName, ownerType, true).
func (b *BodyBuilder) readonlyFieldWrite(dest Place) (string, string, bool) {
	if len(dest.Projections) == 0 {
		return "", "", false
	}
	baseTy := b.localType(dest.Local)
	if baseTy == nil || baseTy.Kind != typelayout.TyNamed {
		return "", "", false
	}
	layout := b.Module.Layouts.Lookup(baseTy.Name)
	if layout == nil {
		return "", "", false
	}
	for _, proj := range dest.Projections {
		switch proj.Kind {
		case ProjField:
			if proj.Field < len(layout.Fields) && layout.Fields[proj.Field].Readonly {
				return layout.Fields[proj.Field].Name, layout.Name, true
			}
		case ProjFieldNamed:
			for _, f := range layout.Fields {
				if f.Name == proj.Name && f.Readonly {
					return f.Name, layout.Name, true
				}
			}
		}
	}
	return "", "", false
}

func (b *BodyBuilder) localType(l LocalID) *typelayout.Ty {
	if int(l) >= len(b.Body.Locals) {
		return nil
	}
	return b.Body.Locals[l].Type
}

// OperandToPlace materializes a temp and an assignment if op is a value
// (Const/Borrow/Mmio/Pending), or returns the existing place directly if
// op is already Copy/Move of a place.
func (b *BodyBuilder) OperandToPlace(op Operand, t *typelayout.Ty, span ast.Span) Place {
	if op.Kind == OpCopy || op.Kind == OpMove {
		return op.Place
	}
	tmp := b.CreateTemp(t, span)
	place := Place{Local: tmp}
	b.PushStatement(StorageLive(tmp), span)
	b.PushStatement(Assign(place, UseRvalue(op)), span)
	return place
}

// EmitStorageDead emits a StorageDead(local) statement.
func (b *BodyBuilder) EmitStorageDead(local LocalID, span ast.Span) {
	b.PushStatement(StorageDead(local), span)
}

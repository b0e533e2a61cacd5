// Package ast carries the minimal source-position vocabulary the core
// shares with the (out-of-scope) front end: a typed AST and full lexer
// live upstream of this module and hand the core spans, not nodes.
package ast

import "fmt"

// Pos is a single point in a source file, as handed down by the front end.
type Pos struct {
	Line   int
	Column int
	File   string
	Offset int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Span is a half-open range [Start, End) in a source file. Generated code
// with no surface origin uses Synthetic positions.
type Span struct {
	Start Pos
	End   Pos
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// Synthetic is the Pos (file "<synthetic>", zero line and column) used for
// compiler-generated code (glue functions, lowering temporaries) that has
// no surface origin.
var Synthetic = Pos{File: "<synthetic>"}

package diag

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPhaseMapping(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{MIR001, "mir"},
		{MONO002, "monomorphize"},
		{LLVM003, "llvm"},
		{WASM004, "wasm"},
		{RT001, "runtime"},
		{"XYZ1", "unknown"},
	}
	for _, tt := range tests {
		if got := Phase(tt.code); got != tt.want {
			t.Errorf("Phase(%s) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestAsReport_UnwrapsThroughChain(t *testing.T) {
	rep := New(LLVM002, "unsupported entry return type", nil)
	wrapped := errors.Join(errors.New("outer"), Wrap(rep))
	got, ok := AsReport(wrapped)
	if !ok || got.Code != LLVM002 {
		t.Fatalf("AsReport = %+v, %v", got, ok)
	}
	if _, ok := AsReport(errors.New("plain")); ok {
		t.Error("plain errors carry no report")
	}
}

func TestReport_JSONShape(t *testing.T) {
	rep := New(WASM001, "out of range", nil)
	rep.Data["addr"] = 42
	out, err := rep.ToJSON(true)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"schema":"chicc.diag/v1"`, `"code":"WASM001"`, `"phase":"wasm"`, `"addr":42`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON missing %s: %s", want, out)
		}
	}
}

func TestRender_IncludesCodeAndFix(t *testing.T) {
	var buf bytes.Buffer
	rep := New(MIR001, "assignment to readonly field", nil)
	rep.Fix = &Fix{Description: "move the write into the constructor"}
	Render(&buf, rep)
	s := buf.String()
	if !strings.Contains(s, "MIR001") || !strings.Contains(s, "constructor") {
		t.Fatalf("rendered: %q", s)
	}
}

func TestRunLog_RecordsPhases(t *testing.T) {
	log := NewRunLog()
	done := log.Begin("llvm")
	done(12, 3)
	if len(log.Entries) != 1 {
		t.Fatal("expected one entry")
	}
	e := log.Entries[0]
	if e.Phase != "llvm" || e.FunctionCount != 12 || e.Diagnostics != 3 {
		t.Fatalf("entry = %+v", e)
	}
	if log.TotalDiagnostics() != 3 {
		t.Error("TotalDiagnostics must sum entries")
	}
}

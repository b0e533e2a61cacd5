package typelayout

import "testing"

func prim(p Primitive) *Ty { return &Ty{Kind: TyPrimitive, Prim: p} }

func TestTypeIdentity_Deterministic(t *testing.T) {
	a := TypeIdentity("Demo::Type")
	b := TypeIdentity("Demo::Type")
	if a != b {
		t.Fatalf("identity must be deterministic: %x != %x", a, b)
	}
	if a == TypeIdentity("Demo::Other") {
		t.Error("distinct canonical names should not collide in practice")
	}
	if a == 0 {
		t.Error("identity of a realistic name should be nonzero")
	}
}

func TestTypeIdentity_NFCNormalization(t *testing.T) {
	// U+00E9 (precomposed) vs U+0065 U+0301 (combining): byte-different,
	// Unicode-equivalent canonical names must hash identically.
	if TypeIdentity("Café") != TypeIdentity("Café") {
		t.Error("NFC-equivalent names must share an identity")
	}
}

func TestExceptionTypeIdentity_AliasesNormalize(t *testing.T) {
	want := ExceptionTypeIdentity("System::Error")
	for _, alias := range []string{"Exception", "System::Exception", "Std::Exception", "Error", "Std::Error"} {
		if got := ExceptionTypeIdentity(alias); got != want {
			t.Errorf("alias %q = %x, want the System::Error identity %x", alias, got, want)
		}
	}
	if ExceptionTypeIdentity("Demo::MyError") == want {
		t.Error("non-alias exception types keep their own identity")
	}
}

func TestComputeLayout_ReprCPreservesDeclarationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&TypeLayout{
		Kind: LayoutStruct,
		Name: "Demo::Packet",
		Repr: ReprC,
		Fields: []Field{
			{Name: "flag", Type: prim(PrimBool), DeclIndex: 0},
			{Name: "value", Type: prim(PrimI64), DeclIndex: 1},
			{Name: "tag", Type: prim(PrimU16), DeclIndex: 2},
		},
	})
	l := r.ComputeLayout("Demo::Packet")
	offs := []uint64{*l.Fields[0].Offset, *l.Fields[1].Offset, *l.Fields[2].Offset}
	if offs[0] != 0 || offs[1] != 8 || offs[2] != 16 {
		t.Fatalf("ReprC offsets = %v, want [0 8 16]", offs)
	}
	if l.Size != 24 || l.Align != 8 {
		t.Errorf("size/align = %d/%d, want 24/8", l.Size, l.Align)
	}
}

func TestComputeLayout_DefaultReprReordersByAlignment(t *testing.T) {
	r := NewRegistry()
	r.Register(&TypeLayout{
		Kind: LayoutStruct,
		Name: "Demo::Packed",
		Fields: []Field{
			{Name: "flag", Type: prim(PrimBool), DeclIndex: 0},
			{Name: "value", Type: prim(PrimI64), DeclIndex: 1},
		},
	})
	l := r.ComputeLayout("Demo::Packed")
	if *l.Fields[1].Offset != 0 || *l.Fields[0].Offset != 8 {
		t.Fatalf("default repr must place the i64 first, offsets flag=%d value=%d",
			*l.Fields[0].Offset, *l.Fields[1].Offset)
	}
	if l.Size != 16 {
		t.Errorf("size = %d, want 16", l.Size)
	}
}

func TestComputeLayout_PackOverrideLowersAlignment(t *testing.T) {
	pack := uint64(1)
	r := NewRegistry()
	r.Register(&TypeLayout{
		Kind:         LayoutStruct,
		Name:         "Demo::Wire",
		Repr:         ReprC,
		PackOverride: &pack,
		Fields: []Field{
			{Name: "a", Type: prim(PrimU8), DeclIndex: 0},
			{Name: "b", Type: prim(PrimU32), DeclIndex: 1},
		},
	})
	l := r.ComputeLayout("Demo::Wire")
	if *l.Fields[1].Offset != 1 {
		t.Fatalf("packed(1) u32 offset = %d, want 1", *l.Fields[1].Offset)
	}
	if l.Size != 5 || l.Align != 1 {
		t.Errorf("size/align = %d/%d, want 5/1", l.Size, l.Align)
	}
}

func TestComputeLayout_UnionOverlaysFields(t *testing.T) {
	r := NewRegistry()
	r.Register(&TypeLayout{
		Kind: LayoutUnion,
		Name: "Demo::Raw",
		Fields: []Field{
			{Name: "bits", Type: prim(PrimU64), DeclIndex: 0},
			{Name: "halves", Type: &Ty{Kind: TyTuple, Elems: []*Ty{prim(PrimU32), prim(PrimU32)}}, DeclIndex: 1},
		},
	})
	l := r.ComputeLayout("Demo::Raw")
	if *l.Fields[0].Offset != 0 || *l.Fields[1].Offset != 0 {
		t.Fatal("union fields overlay at offset 0")
	}
	if l.Size != 8 || l.Align != 8 {
		t.Errorf("size/align = %d/%d, want 8/8", l.Size, l.Align)
	}
}

func TestTypeRequiresDrop_Recursive(t *testing.T) {
	r := NewRegistry()
	r.Register(&TypeLayout{
		Kind:       LayoutStruct,
		Name:       "Demo::File",
		DisposeSym: "Demo::File::Dispose",
	})
	r.Register(&TypeLayout{
		Kind: LayoutStruct,
		Name: "Demo::Holder",
		Fields: []Field{
			{Name: "file", Type: &Ty{Kind: TyNamed, Name: "Demo::File"}, DeclIndex: 0},
		},
	})
	r.Register(&TypeLayout{
		Kind: LayoutStruct,
		Name: "Demo::Batch",
		Fields: []Field{
			{Name: "items", Type: &Ty{Kind: TyVec, Elem: &Ty{Kind: TyNamed, Name: "Demo::Holder"}}, DeclIndex: 0},
		},
	})
	r.Register(&TypeLayout{
		Kind: LayoutStruct,
		Name: "Demo::Plain",
		Fields: []Field{
			{Name: "n", Type: prim(PrimI32), DeclIndex: 0},
		},
	})

	for name, want := range map[string]bool{
		"Demo::File":   true,
		"Demo::Holder": true, // through the named field
		"Demo::Batch":  true, // through Vec<Holder>
		"Demo::Plain":  false,
	} {
		if got := r.TypeRequiresDrop(name); got != want {
			t.Errorf("TypeRequiresDrop(%s) = %v, want %v", name, got, want)
		}
	}
}

func TestTypeRequiresClone_MethodAndFieldRecursion(t *testing.T) {
	r := NewRegistry()
	r.Register(&TypeLayout{Kind: LayoutStruct, Name: "Demo::Buf"})
	r.Register(&TypeLayout{
		Kind: LayoutStruct,
		Name: "Demo::Holder",
		Fields: []Field{
			{Name: "buf", Type: &Ty{Kind: TyNamed, Name: "Demo::Buf"}, DeclIndex: 0},
		},
	})
	r.Register(&TypeLayout{
		Kind: LayoutStruct,
		Name: "Demo::Plain",
		Fields: []Field{
			{Name: "n", Type: prim(PrimI32), DeclIndex: 0},
		},
	})

	if r.TypeRequiresClone("Demo::Buf") {
		t.Error("no Clone::Clone recorded: memcpy suffices, no glue")
	}
	r.MarkCloneMethod("Demo::Buf")
	if !r.TypeRequiresClone("Demo::Buf") {
		t.Error("MarkCloneMethod must flip the predicate (and drop the memo)")
	}
	if !r.TypeRequiresClone("Demo::Holder") {
		t.Error("clone requirement must recurse through named fields")
	}
	if r.TypeRequiresClone("Demo::Plain") {
		t.Error("trivially cloneable types must not require glue")
	}
}

func TestTypeRequiresDrop_CycleTerminates(t *testing.T) {
	r := NewRegistry()
	r.Register(&TypeLayout{
		Kind: LayoutStruct,
		Name: "Demo::Node",
		Fields: []Field{
			{Name: "next", Type: &Ty{Kind: TyNamed, Name: "Demo::Node"}, DeclIndex: 0},
		},
	})
	if r.TypeRequiresDrop("Demo::Node") {
		t.Error("self-referential type with no dispose must not require drop")
	}
}

func TestCanonicalName_Shapes(t *testing.T) {
	tests := []struct {
		ty   *Ty
		want string
	}{
		{&Ty{Kind: TyNamed, Name: "Demo::Map", GenArgs: []GenArg{
			{Type: prim(PrimString)},
			{Const: &ConstArg{Value: 4}},
		}}, "Demo::Map<string, 4>"},
		{&Ty{Kind: TyTuple, Elems: []*Ty{prim(PrimI32), prim(PrimBool)}}, "(i32, bool)"},
		{&Ty{Kind: TyArc, Elem: &Ty{Kind: TyNamed, Name: "Demo::T"}}, "Arc<Demo::T>"},
		{&Ty{Kind: TyPointer, Mutable: true, Elem: prim(PrimU8)}, "*mut u8"},
		{&Ty{Kind: TyNullable, Elem: prim(PrimI64)}, "i64?"},
		{&Ty{Kind: TyTraitObject, Traits: []string{"Display", "Debug"}}, "dyn Display + Debug"},
	}
	for _, tt := range tests {
		if got := tt.ty.CanonicalName(); got != tt.want {
			t.Errorf("CanonicalName = %q, want %q", got, tt.want)
		}
	}
}

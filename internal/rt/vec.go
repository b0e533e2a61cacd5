package rt

// Vec and string inline-storage contract.
// Vec headers expose len/cap/ptr/elem_size/elem_align/drop_fn and carry
// inline storage for small element payloads; strings use a small-string
// representation tagged in the length word.
const (
	// VecInlineMaxBytes caps inline vec storage: at most 64 bytes, and the
	// inline region must hold at least one element or the vec spills.
	VecInlineMaxBytes = 64

	// VecInlineTag is the cap-word bit marking inline storage.
	VecInlineTag uint32 = 0x8000_0000

	// StringInlineMaxBytes caps the small-string representation.
	StringInlineMaxBytes = 32

	// StringInlineTag marks an inline string in its length word.
	StringInlineTag uint32 = 0x8000_0000
)

// VecHeader is the host-side view of the runtime vec shim. Field order
// follows the original shim: len, cap, then pointer-or-inline storage.
type VecHeader struct {
	Len       uint32
	Cap       uint32 // VecInlineTag set when Inline holds the elements
	Ptr       uint32 // heap pointer when not inline
	ElemSize  uint32
	ElemAlign uint32
	DropFn    uint32
	Inline    [VecInlineMaxBytes]byte
}

// IsInline reports whether the vec's elements live in the header.
func (v *VecHeader) IsInline() bool { return v.Cap&VecInlineTag != 0 }

// InlineCapacity returns how many elements fit inline for elemSize, or 0
// if inline storage cannot hold even one element.
func InlineCapacity(elemSize uint32) uint32 {
	if elemSize == 0 || elemSize > VecInlineMaxBytes {
		return 0
	}
	return VecInlineMaxBytes / elemSize
}

// StringIsInline reports whether a string length word marks inline storage.
func StringIsInline(lenWord uint32) bool { return lenWord&StringInlineTag != 0 }

// StringInlineLen extracts the byte length from an inline length word.
func StringInlineLen(lenWord uint32) uint32 { return lenWord &^ StringInlineTag }

// ArcHeaderSize is the wasm32 Arc/Rc header byte size:
// u32 strong + u32 weak + u32 size + u32 align + ptr(4) drop_fn + u32
// type_id (the low 32 bits of the 64-bit identity), with 4-byte field
// alignment.
const ArcHeaderSize = 24

// ArcPayloadOffset returns the payload's offset from the header start:
// align_up(header_end, payload_align).
func ArcPayloadOffset(align uint32) uint32 {
	return AlignUp32(ArcHeaderSize, align)
}

// AlignUp32 rounds v up to the next multiple of align (align 0 and 1
// pass through).
func AlignUp32(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

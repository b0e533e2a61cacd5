package typelayout

import (
	"encoding/binary"

	"golang.org/x/text/unicode/norm"
	"lukechampine.com/blake3"
)

// TypeID is the stable 64-bit identity used as the dispatch-table lookup
// key throughout the runtime ABI.
type TypeID uint64

// typeIdentity is deterministic: blake3(canonical_name).as_bytes()[0..8]
// interpreted little-endian. Collisions are not handled; the
// canonical-name hash is assumed collision-free for realistic programs.
//
// Before hashing, the canonical name is NFC-normalized so that Unicode-
// equivalent-but-byte-different canonical names (e.g. a generic argument
// whose identifier uses a combining diacritic vs. its precomposed form)
// hash identically, so the identity is stable across front ends that
// disagree on Unicode normal form.
func TypeIdentity(canonicalName string) TypeID {
	normalized := norm.NFC.String(canonicalName)
	sum := blake3.Sum256([]byte(normalized))
	return TypeID(binary.LittleEndian.Uint64(sum[:8]))
}

// ExceptionTypeIdentity computes the identity used for exception payload
// dispatch. The aliases Exception,
// System::Exception, Std::Exception, Error, and Std::Error all normalize
// to System::Error before hashing, so a handler written against any one
// spelling catches throws using any other.
func ExceptionTypeIdentity(canonicalName string) TypeID {
	switch canonicalName {
	case "Exception", "System::Exception", "Std::Exception", "Error", "Std::Error":
		canonicalName = "System::Error"
	}
	return TypeIdentity(canonicalName)
}

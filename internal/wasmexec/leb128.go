package wasmexec

import "errors"

var errLEBOverflow = errors.New("leb128: varint overflows its width")
var errLEBTruncated = errors.New("leb128: truncated varint")

// decodeU32 reads an unsigned LEB128 u32 from buf at off, returning the
// value and the offset past it.
func decodeU32(buf []byte, off int) (uint32, int, error) {
	var result uint32
	var shift uint
	for i := 0; i < 5; i++ {
		if off >= len(buf) {
			return 0, off, errLEBTruncated
		}
		b := buf[off]
		off++
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, off, nil
		}
		shift += 7
	}
	return 0, off, errLEBOverflow
}

// decodeU64 reads an unsigned LEB128 u64.
func decodeU64(buf []byte, off int) (uint64, int, error) {
	var result uint64
	var shift uint
	for i := 0; i < 10; i++ {
		if off >= len(buf) {
			return 0, off, errLEBTruncated
		}
		b := buf[off]
		off++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, off, nil
		}
		shift += 7
	}
	return 0, off, errLEBOverflow
}

// decodeS32 reads a signed LEB128 s32.
func decodeS32(buf []byte, off int) (int32, int, error) {
	var result int32
	var shift uint
	for i := 0; i < 5; i++ {
		if off >= len(buf) {
			return 0, off, errLEBTruncated
		}
		b := buf[off]
		off++
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 32 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, off, nil
		}
	}
	return 0, off, errLEBOverflow
}

// decodeS64 reads a signed LEB128 s64.
func decodeS64(buf []byte, off int) (int64, int, error) {
	var result int64
	var shift uint
	for i := 0; i < 10; i++ {
		if off >= len(buf) {
			return 0, off, errLEBTruncated
		}
		b := buf[off]
		off++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, off, nil
		}
	}
	return 0, off, errLEBOverflow
}

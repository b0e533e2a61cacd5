package wasmexec

// AsyncLayout describes where the scheduler finds the pieces of a future
// header and its completion/result slots. All
// offsets are derived from the module's pointer model at load time and
// may be overridden field by field.
type AsyncLayout struct {
	PtrSize  uint32
	PtrAlign uint32

	FutureHeaderStateOffset uint32
	VTableOffset            uint32
	ExecutorContextOffset   uint32
	FlagsOffset             uint32

	FutureCompletedOffset uint32

	TaskFlagsOffset       uint32
	TaskInnerFutureOffset uint32
}

// AsyncLayoutOverrides optionally pins individual fields; nil pointers
// keep the derived value.
type AsyncLayoutOverrides struct {
	PtrSize                 *uint32
	PtrAlign                *uint32
	FutureHeaderStateOffset *uint32
	VTableOffset            *uint32
	ExecutorContextOffset   *uint32
	FlagsOffset             *uint32
	FutureCompletedOffset   *uint32
	TaskFlagsOffset         *uint32
	TaskInnerFutureOffset   *uint32
}

const (
	boolSize  = 1
	boolAlign = 1
	uintSize  = 4
)

// DeriveAsyncLayout computes the layout from the pointer size/alignment
// the module's isize/usize metadata reports, clamped to [1, 4] for
// wasm32.
func DeriveAsyncLayout(ptrSize, ptrAlign uint32, ov *AsyncLayoutOverrides) AsyncLayout {
	clamp := func(v uint32) uint32 {
		if v < 1 {
			return 1
		}
		if v > 4 {
			return 4
		}
		return v
	}
	l := AsyncLayout{
		PtrSize:  clamp(ptrSize),
		PtrAlign: clamp(ptrAlign),
	}
	headerSize := 4 * l.PtrSize
	l.FutureHeaderStateOffset = 0
	l.VTableOffset = l.PtrSize
	l.ExecutorContextOffset = 2 * l.PtrSize
	l.FlagsOffset = 3 * l.PtrSize
	l.FutureCompletedOffset = alignUp32(headerSize, boolAlign)
	l.TaskFlagsOffset = headerSize
	l.TaskInnerFutureOffset = alignUp32(headerSize+uintSize, l.PtrAlign)

	if ov != nil {
		apply := func(dst *uint32, src *uint32) {
			if src != nil {
				*dst = *src
			}
		}
		apply(&l.PtrSize, ov.PtrSize)
		apply(&l.PtrAlign, ov.PtrAlign)
		apply(&l.FutureHeaderStateOffset, ov.FutureHeaderStateOffset)
		apply(&l.VTableOffset, ov.VTableOffset)
		apply(&l.ExecutorContextOffset, ov.ExecutorContextOffset)
		apply(&l.FlagsOffset, ov.FlagsOffset)
		apply(&l.FutureCompletedOffset, ov.FutureCompletedOffset)
		apply(&l.TaskFlagsOffset, ov.TaskFlagsOffset)
		apply(&l.TaskInnerFutureOffset, ov.TaskInnerFutureOffset)
	}
	return l
}

// ResultOffset computes where a future's result of resultLen bytes with
// resultAlign alignment lives: results small enough for the bool slot
// overload FutureCompletedOffset; larger results start past the
// completed flag, aligned up.
func (l AsyncLayout) ResultOffset(resultLen, resultAlign uint32) uint32 {
	if resultLen <= boolSize {
		return l.FutureCompletedOffset
	}
	if resultAlign == 0 {
		resultAlign = 1
	}
	return alignUp32(l.FutureCompletedOffset+boolSize, resultAlign)
}

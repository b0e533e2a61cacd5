package rt

// Startup entry-descriptor flag bits. Bit positions are ABI: both
// backends and the startup dispatch read the same word.
const (
	EntryFlagAsync     uint32 = 1 << 0
	EntryFlagRetI32    uint32 = 1 << 1
	EntryFlagRetBool   uint32 = 1 << 2
	EntryFlagRetVoid   uint32 = 1 << 3
	EntryFlagParamArgs uint32 = 1 << 4
	EntryFlagParamEnv  uint32 = 1 << 5
)

// Testcase descriptor flags: bit 0 marks an async testcase.
const TestCaseFlagAsync uint32 = 1 << 0

// Future header flags word bits, observable at flags_offset in every
// awaitable object.
const (
	FutureFlagReady     uint32 = 1 << 0
	FutureFlagCancelled uint32 = 1 << 1
	FutureFlagFaulted   uint32 = 1 << 2
)

// StartupDescriptorVersion is the only version the runtime accepts.
const StartupDescriptorVersion uint32 = 1

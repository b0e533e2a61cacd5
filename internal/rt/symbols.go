// Package rt models the runtime ABI surface both backends target: the
// canonical chic_rt_* extern symbols, the process-wide dispatch tables,
// the pending-exception slot, the FFI resolver, and the startup
// descriptor contract. The LLVM emitter declares these
// symbols; the WASM interpreter implements them as host imports; this
// package is the single source of truth for their names and semantics.
package rt

// Memory group.
const (
	SymAlloc            = "chic_rt_alloc"
	SymAllocZeroed      = "chic_rt_alloc_zeroed"
	SymRealloc          = "chic_rt_realloc"
	SymFree             = "chic_rt_free"
	SymMemcpy           = "chic_rt_memcpy"
	SymMemmove          = "chic_rt_memmove"
	SymMemset           = "chic_rt_memset"
	SymAllocatorInstall = "chic_rt_allocator_install"
	SymAllocStats       = "chic_rt_alloc_stats"
)

// Reference-counting group. Arc, Rc, and Weak share the same header
// layout; Rc differs from Arc only in thread-safety guarantees invisible
// to the ABI.
const (
	SymArcNew         = "chic_rt_arc_new"
	SymArcClone       = "chic_rt_arc_clone"
	SymArcDrop        = "chic_rt_arc_drop"
	SymArcGet         = "chic_rt_arc_get"
	SymArcGetMut      = "chic_rt_arc_get_mut"
	SymArcDowngrade   = "chic_rt_arc_downgrade"
	SymArcStrongCount = "chic_rt_arc_strong_count"
	SymArcWeakCount   = "chic_rt_arc_weak_count"
	SymRcNew          = "chic_rt_rc_new"
	SymRcClone        = "chic_rt_rc_clone"
	SymRcDrop         = "chic_rt_rc_drop"
	SymRcGet          = "chic_rt_rc_get"
	SymRcGetMut       = "chic_rt_rc_get_mut"
	SymRcDowngrade    = "chic_rt_rc_downgrade"
	SymWeakClone      = "chic_rt_weak_clone"
	SymWeakDrop       = "chic_rt_weak_drop"
	SymWeakUpgrade    = "chic_rt_weak_upgrade"
	SymObjectNew      = "chic_rt_object_new"
)

// Container group.
const (
	SymVecNew     = "chic_rt_vec_new"
	SymVecPush    = "chic_rt_vec_push"
	SymVecPop     = "chic_rt_vec_pop"
	SymVecLen     = "chic_rt_vec_len"
	SymVecCap     = "chic_rt_vec_cap"
	SymVecPtr     = "chic_rt_vec_ptr"
	SymVecDrop    = "chic_rt_vec_drop"
	SymArrayNew   = "chic_rt_array_new"
	SymArrayLen   = "chic_rt_array_len"
	SymArrayPtr   = "chic_rt_array_ptr"
	SymStringNew  = "chic_rt_string_new"
	SymStringLen  = "chic_rt_string_len"
	SymStringPtr  = "chic_rt_string_ptr"
	SymStringCat  = "chic_rt_string_concat"
	SymStringDrop = "chic_rt_string_drop"
	SymSpanSlice  = "chic_rt_span_slice"
	SymSpanLen    = "chic_rt_span_len"
)

// Atomics and sync group. Orderings travel as u8 per OrderingEncoding.
const (
	SymAtomicLoadPrefix  = "chic_rt_atomic_"
	SymMutexNew          = "chic_rt_mutex_new"
	SymMutexLock         = "chic_rt_mutex_lock"
	SymMutexUnlock       = "chic_rt_mutex_unlock"
	SymMutexDrop         = "chic_rt_mutex_drop"
	SymRwLockNew         = "chic_rt_rwlock_new"
	SymRwLockReadLock    = "chic_rt_rwlock_read_lock"
	SymRwLockWriteLock   = "chic_rt_rwlock_write_lock"
	SymRwLockUnlock      = "chic_rt_rwlock_unlock"
	SymCondvarNew        = "chic_rt_condvar_new"
	SymCondvarWait       = "chic_rt_condvar_wait"
	SymCondvarNotifyOne  = "chic_rt_condvar_notify_one"
	SymCondvarNotifyAll  = "chic_rt_condvar_notify_all"
	SymOnceNew           = "chic_rt_once_new"
	SymOnceCall          = "chic_rt_once_call"
	SymThreadSpawn       = "chic_rt_thread_spawn"
	SymThreadJoin        = "chic_rt_thread_join"
	SymThreadCurrentID   = "chic_rt_thread_current_id"
	SymYield             = "chic_rt_yield"
	SymAsyncCancel       = "chic_rt_async_cancel"
)

// Dispatch-table group.
const (
	SymInstallDropTable         = "chic_rt_install_drop_table"
	SymInstallHashTable         = "chic_rt_install_hash_table"
	SymInstallEqTable           = "chic_rt_install_eq_table"
	SymInstallTypeMetadataTable = "chic_rt_install_type_metadata_table"
	SymInstallInterfaceDefaults = "chic_rt_install_interface_defaults"
	SymDropResolve              = "chic_rt_drop_resolve"
	SymDropInvoke               = "chic_rt_drop_invoke"
	SymHashResolve              = "chic_rt_hash_resolve"
	SymHashInvoke               = "chic_rt_hash_invoke"
	SymEqResolve                = "chic_rt_eq_resolve"
	SymEqInvoke                 = "chic_rt_eq_invoke"
	SymTypeMetadataResolve      = "chic_rt_type_metadata_resolve"
)

// Exception group.
const (
	SymThrow                   = "chic_rt_throw"
	SymHasPendingException     = "chic_rt_has_pending_exception"
	SymPeekPendingException    = "chic_rt_peek_pending_exception"
	SymTakePendingException    = "chic_rt_take_pending_exception"
	SymClearPendingException   = "chic_rt_clear_pending_exception"
	SymAbortUnhandledException = "chic_rt_abort_unhandled_exception"
)

// FFI group.
const (
	SymFFIResolve           = "chic_rt_ffi_resolve"
	SymFFIEagerResolve      = "chic_rt_ffi_eager_resolve"
	SymFFIAddSearchPath     = "chic_rt_ffi_add_search_path"
	SymFFISetDefaultPattern = "chic_rt_ffi_set_default_pattern"
	SymHostFFIPanic         = "chic_rt_host_ffi_panic"
)

// Startup and test-executor group.
const (
	SymTestExecutorRunAll        = "chic_rt_test_executor_run_all"
	SymStartupStoreState         = "chic_rt_startup_store_state"
	SymStartupHasRunTestsFlag    = "chic_rt_startup_has_run_tests_flag"
	SymStartupDescriptorSnapshot = "chic_rt_startup_descriptor_snapshot"
	SymStartupCallEntry          = "chic_rt_startup_call_entry"
	SymStartupCallEntryAsync     = "chic_rt_startup_call_entry_async"
	SymStartupCompleteEntryAsync = "chic_rt_startup_complete_entry_async"
	SymInstallIfaceDefaultsInit  = "__chic_install_interface_defaults"
	SymStartupDescriptor         = "__chic_startup_descriptor"
	SymProgramMain               = "__chic_program_main"
)

// Decimal group: the runtime hosts the scaled-integer decimal kernels
// the DecimalIntrinsic rvalues lower to.
const (
	SymDecimalAdd = "chic_rt_decimal_add"
	SymDecimalSub = "chic_rt_decimal_sub"
	SymDecimalMul = "chic_rt_decimal_mul"
	SymDecimalDiv = "chic_rt_decimal_div"
	SymDecimalRem = "chic_rt_decimal_rem"
	SymDecimalFma = "chic_rt_decimal_fma"
)

// Misc group.
const (
	SymPanic         = "chic_rt_panic"
	SymAbort         = "chic_rt_abort"
	SymCoverageHit   = "chic_rt_coverage_hit"
	SymTraceEnter    = "chic_rt_trace_enter"
	SymTraceExit     = "chic_rt_trace_exit"
	SymTraceFlush    = "chic_rt_trace_flush"
	SymAwaitBlocking = "chic_rt_await_blocking"
	SymCPUSupports   = "chic_rt_cpu_supports"
	SymGpuEnqueue    = "chic_rt_gpu_enqueue"
	SymGpuCopy       = "chic_rt_gpu_copy"
	SymGpuEvent      = "chic_rt_gpu_event"
)

// OrderingEncoding maps the source-level memory-ordering names to the u8
// values the ABI carries.
var OrderingEncoding = map[string]uint8{
	"Relaxed": 0,
	"Acquire": 1,
	"Release": 2,
	"AcqRel":  3,
	"SeqCst":  4,
}

package rt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chic-lang/chicc-core/internal/diag"
)

// FFIBinding distinguishes lazy (first-call) from eager (ctor-time)
// resolution of a dynamic extern.
type FFIBinding int32

const (
	FFIBindingLazy FFIBinding = iota
	FFIBindingEager
)

// FFIConvention is the calling-convention tag carried in the emitted
// %chic_ffi_descriptor.
type FFIConvention int32

const (
	FFIConventionC FFIConvention = iota
	FFIConventionSystem
	FFIConventionStdcall
)

// FFIDescriptor mirrors { ptr library_cstr, ptr symbol_cstr,
// i32 convention, i32 binding, i1 optional }.
type FFIDescriptor struct {
	Library    string
	Symbol     string
	Convention FFIConvention
	Binding    FFIBinding
	Optional   bool
}

// LoadSymbol is the platform hook a Resolver uses to open a library and
// look up one symbol; tests and the WASM host bridge install fakes.
type LoadSymbol func(libraryPath, symbol string) (uint64, error)

// Resolver owns the FFI search-path list and default library-name
// pattern, protected by its own lock.
type Resolver struct {
	mu          sync.Mutex
	searchPaths []string
	pattern     string // e.g. "lib{}.so"; "{}" is replaced by the library name
	load        LoadSymbol
	cache       map[string]uint64
}

// NewResolver returns a resolver with the default platform pattern.
func NewResolver(load LoadSymbol) *Resolver {
	return &Resolver{
		pattern: "lib{}.so",
		load:    load,
		cache:   make(map[string]uint64),
	}
}

// AddSearchPath appends a directory to probe before the system loader.
func (r *Resolver) AddSearchPath(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchPaths = append(r.searchPaths, dir)
}

// SetDefaultPattern replaces the library-name pattern.
func (r *Resolver) SetDefaultPattern(pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pattern = pattern
}

// Resolve looks up desc, caching the result. Optional bindings that fail
// return (0, nil); required bindings return the RT001 report the stub
// turns into chic_rt_host_ffi_panic.
func (r *Resolver) Resolve(desc FFIDescriptor) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := desc.Library + "\x00" + desc.Symbol
	if fn, ok := r.cache[key]; ok {
		return fn, nil
	}
	if r.load == nil {
		return r.fail(desc, "no symbol loader installed")
	}

	candidates := r.candidatePaths(desc.Library)
	var lastErr error
	for _, path := range candidates {
		fn, err := r.load(path, desc.Symbol)
		if err == nil {
			r.cache[key] = fn
			return fn, nil
		}
		lastErr = err
	}
	msg := "unresolved"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return r.fail(desc, msg)
}

func (r *Resolver) fail(desc FFIDescriptor, cause string) (uint64, error) {
	if desc.Optional {
		return 0, nil
	}
	rep := diag.New(diag.RT001, fmt.Sprintf("failed to resolve %s!%s: %s", desc.Library, desc.Symbol, cause), nil)
	rep.Data["library"] = desc.Library
	rep.Data["symbol"] = desc.Symbol
	return 0, diag.Wrap(rep)
}

// candidatePaths expands the library name through the pattern and each
// search path, falling back to the bare patterned name for the system
// loader. Names that already look like paths pass through untouched.
func (r *Resolver) candidatePaths(library string) []string {
	if strings.ContainsAny(library, "/\\") {
		return []string{library}
	}
	name := strings.ReplaceAll(r.pattern, "{}", library)
	out := make([]string, 0, len(r.searchPaths)+2)
	for _, dir := range r.searchPaths {
		out = append(out, dir+"/"+name)
	}
	out = append(out, name, library)
	return out
}

// EagerResolve resolves every descriptor up front; the first required
// failure aborts, matching the ctor-registered eager init path.
func (r *Resolver) EagerResolve(descs []FFIDescriptor) error {
	for _, d := range descs {
		if _, err := r.Resolve(d); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/chic-lang/chicc-core/internal/config"
	"github.com/chic-lang/chicc-core/internal/diag"
	"github.com/chic-lang/chicc-core/internal/llvmemit"
	"github.com/chic-lang/chicc-core/internal/mir"
	"github.com/chic-lang/chicc-core/internal/monomorphize"
	"github.com/chic-lang/chicc-core/internal/wasmexec"
)

var (
	// Version info - set by ldflags during build
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	// Color output
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "Print version information")
		helpFlag    = flag.Bool("help", false, "Show help")
		configPath  = flag.String("config", "", "Path to chicc.yaml (default: probe upward from cwd)")
		libraryFlag = flag.Bool("library", false, "Emit a library unit (no startup descriptor, no native main)")
		outFlag     = flag.String("o", "", "Output path (default: stdout)")
	)

	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}
	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	cfg, err := config.Load(*configPath, ".")
	if err != nil {
		fail("loading config", err)
	}

	command := flag.Arg(0)
	switch command {
	case "glue":
		if flag.NArg() < 2 {
			usage("chicc glue <module.mir.json>")
		}
		runGlue(flag.Arg(1))

	case "emit-llvm", "build":
		if flag.NArg() < 2 {
			usage("chicc " + command + " <module.mir.json>")
		}
		runEmit(flag.Arg(1), cfg, *libraryFlag, *outFlag)

	case "run-wasm":
		if flag.NArg() < 2 {
			usage("chicc run-wasm <module.wasm> [entry]")
		}
		entry := "_start"
		if flag.NArg() >= 3 {
			entry = flag.Arg(2)
		}
		runWasm(flag.Arg(1), entry, cfg)

	case "wasm-debug":
		if flag.NArg() < 2 {
			usage("chicc wasm-debug <module.wasm>")
		}
		runWasmDebug(flag.Arg(1), cfg)

	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("Error"), command)
		printHelp()
		os.Exit(1)
	}
}

func usage(line string) {
	fmt.Fprintf(os.Stderr, "%s: missing argument\nUsage: %s\n", red("Error"), line)
	os.Exit(1)
}

func fail(what string, err error) {
	if rep, ok := diag.AsReport(err); ok {
		out, _ := rep.ToJSON(false)
		fmt.Fprintf(os.Stderr, "%s %s:\n%s\n", red("Error"), what, out)
	} else {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", red("Error"), what, err)
	}
	os.Exit(1)
}

// loadMIR reads the front end's serialised MirModule hand-off. The front
// end (out of scope here) writes the module as JSON; this driver only
// needs the pieces the core consumes.
func loadMIR(path string) (*mir.MirModule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload mirPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload.build()
}

func runGlue(path string) {
	m, err := loadMIR(path)
	if err != nil {
		fail("loading MIR", err)
	}
	summary := monomorphize.AnalyseModule(m)
	added := monomorphize.SynthesizeAll(m, summary)
	fmt.Printf("%s %d drop, %d clone, %d hash, %d eq candidates\n", bold("analysed:"),
		len(summary.DropCandidates), len(summary.CloneCandidates),
		len(summary.HashCandidates), len(summary.EqCandidates))
	for _, g := range added {
		fmt.Printf("  %s %s (type %s, id %#x)\n", green("+"), g.Symbol, g.TypeName, uint64(g.TypeIdentity))
	}
}

func runEmit(path string, cfg *config.Config, library bool, out string) {
	m, err := loadMIR(path)
	if err != nil {
		fail("loading MIR", err)
	}
	runLog := diag.NewRunLog()

	done := runLog.Begin("monomorphize")
	monomorphize.SynthesizeAll(m, monomorphize.AnalyseModule(m))
	done(len(m.Functions), 0)

	tiers := make([]llvmemit.Tier, len(cfg.Tiers))
	for i, t := range cfg.Tiers {
		tiers[i] = llvmemit.Tier{Name: t.Name, Features: t.Features}
	}
	done = runLog.Begin("llvm")
	ir, err := llvmemit.Emit(m, llvmemit.Options{
		TargetTriple: cfg.TargetTriple,
		IsLibrary:    library,
		Tiers:        tiers,
	})
	done(len(m.Functions), 0)
	if err != nil {
		fail("emitting LLVM IR", err)
	}
	for _, e := range runLog.Entries {
		fmt.Fprintf(os.Stderr, "%s %-12s %6dms  %d functions\n",
			cyan("phase"), e.Phase, e.Duration.Milliseconds(), e.FunctionCount)
	}
	if out == "" {
		fmt.Print(ir)
		return
	}
	if err := os.WriteFile(out, []byte(ir), 0644); err != nil {
		fail("writing output", err)
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", green("wrote"), out)
}

func newExecutor(path string, cfg *config.Config) *wasmexec.Executor {
	bin, err := os.ReadFile(path)
	if err != nil {
		fail("reading module", err)
	}
	mod, err := wasmexec.DecodeModule(bin)
	if err != nil {
		fail("decoding module", err)
	}
	hostIO := wasmexec.NewHostIO()
	hostIO.CaptureStdio(cfg.HostIO.CaptureStdout, cfg.HostIO.CaptureStderr)
	x, err := wasmexec.NewExecutor(mod, wasmexec.WithHostIO(hostIO))
	if err != nil {
		fail("loading module", err)
	}
	return x
}

func runWasm(path, entry string, cfg *config.Config) {
	x := newExecutor(path, cfg)
	res, err := x.Call(entry)
	if err != nil {
		fail("executing "+entry, err)
	}
	if len(res.Stdout) > 0 {
		os.Stdout.Write(res.Stdout)
	}
	if len(res.Stderr) > 0 {
		os.Stderr.Write(res.Stderr)
	}
	if len(res.Values) > 0 {
		fmt.Printf("%s %d\n", cyan("result:"), res.Values[0])
		os.Exit(int(int32(uint32(res.Values[0]))))
	}
}

func printVersion() {
	fmt.Printf("chicc %s (%s, built %s)\n", Version, Commit, BuildTime)
}

func printHelp() {
	fmt.Println(bold("chicc - chic language compiler core driver"))
	fmt.Println()
	fmt.Println("Usage: chicc [flags] <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  glue <module.mir.json>       Analyse and synthesize drop/clone/hash/eq glue")
	fmt.Println("  emit-llvm <module.mir.json>  Emit the LLVM IR module to stdout (or -o)")
	fmt.Println("  build <module.mir.json>      Alias of emit-llvm")
	fmt.Println("  run-wasm <mod.wasm> [entry]  Execute a WASM module under the interpreter")
	fmt.Println("  wasm-debug <mod.wasm>        Interactive stepper over the interpreter's trace")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -config path   Explicit chicc.yaml (default: probe upward)")
	fmt.Println("  -library       Emit a library unit")
	fmt.Println("  -o path        Output path for emit-llvm")
	fmt.Println("  -version       Print version information")
}

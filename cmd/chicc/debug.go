package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chic-lang/chicc-core/internal/config"
	"github.com/chic-lang/chicc-core/internal/wasmexec"
)

// runWasmDebug is an interactive stepper over the interpreter's trace:
// call an export, then walk the recorded events, inspect memory, and
// flush chrome traces.
func runWasmDebug(path string, cfg *config.Config) {
	x := newExecutor(path, cfg)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := filepath.Join(os.TempDir(), ".chicc_debug_history")
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Printf("%s %s\n", bold("chicc wasm-debug"), path)
	fmt.Println("Commands: call <export> [args], events [n], mem <addr> <len>, flush <path>, help, quit")

	var cursor int
	for {
		input, err := line.Prompt("wasm> ")
		if err != nil {
			fmt.Println()
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		parts := strings.Fields(input)
		switch parts[0] {
		case "quit", "exit", "q":
			return

		case "help", "?":
			fmt.Println("  call <export> [int args]  invoke an exported function")
			fmt.Println("  events [n]                show the next n trace events (default 10)")
			fmt.Println("  mem <addr> <len>          hex-dump linear memory")
			fmt.Println("  flush <path>              write the chrome trace JSON")
			fmt.Println("  quit                      leave the stepper")

		case "call":
			if len(parts) < 2 {
				fmt.Printf("%s: call <export> [args]\n", red("usage"))
				continue
			}
			var args []uint64
			ok := true
			for _, a := range parts[2:] {
				var v uint64
				if _, err := fmt.Sscanf(a, "%d", &v); err != nil {
					fmt.Printf("%s: bad argument %q\n", red("error"), a)
					ok = false
					break
				}
				args = append(args, v)
			}
			if !ok {
				continue
			}
			res, err := x.Call(parts[1], args...)
			if err != nil {
				fmt.Printf("%s %v\n", red("trap:"), err)
				continue
			}
			fmt.Printf("%s %v\n", green("=>"), res.Values)
			if len(res.Stdout) > 0 {
				fmt.Printf("%s %q\n", cyan("stdout:"), res.Stdout)
			}

		case "events":
			n := 10
			if len(parts) >= 2 {
				fmt.Sscanf(parts[1], "%d", &n)
			}
			events := x.Trace().Events()
			for ; cursor < len(events) && n > 0; cursor, n = cursor+1, n-1 {
				e := events[cursor]
				indent := strings.Repeat("  ", e.Depth)
				switch e.Kind {
				case wasmexec.TraceCall:
					fmt.Printf("%4d %s%s %s\n", e.Seq, indent, green(">"), e.Name)
				case wasmexec.TraceReturn:
					fmt.Printf("%4d %s%s %s\n", e.Seq, indent, cyan("<"), e.Name)
				case wasmexec.TraceAwait:
					fmt.Printf("%4d %s%s future %#x\n", e.Seq, indent, bold("~"), e.Future)
				}
			}
			if cursor >= len(events) {
				fmt.Println("(end of trace)")
			}

		case "mem":
			if len(parts) != 3 {
				fmt.Printf("%s: mem <addr> <len>\n", red("usage"))
				continue
			}
			var addr, length uint32
			fmt.Sscanf(parts[1], "%d", &addr)
			fmt.Sscanf(parts[2], "%d", &length)
			data, err := x.ReadBytes(addr, length)
			if err != nil {
				fmt.Printf("%s %v\n", red("trap:"), err)
				continue
			}
			for i := 0; i < len(data); i += 16 {
				end := i + 16
				if end > len(data) {
					end = len(data)
				}
				fmt.Printf("%08x  %x\n", addr+uint32(i), data[i:end])
			}

		case "flush":
			if len(parts) != 2 {
				fmt.Printf("%s: flush <path>\n", red("usage"))
				continue
			}
			if err := x.Trace().Flush(parts[1]); err != nil {
				fmt.Printf("%s %v\n", red("error:"), err)
				continue
			}
			fmt.Printf("%s %s\n", green("wrote"), parts[1])

		default:
			fmt.Printf("%s: unknown command %q (try help)\n", red("error"), parts[0])
		}
	}
}

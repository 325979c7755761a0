// Command v06e loads a ROM image into the 8080 core and either runs it to
// a cycle budget or drops into an interactive debugger REPL.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vec06c/devkit/pkg/cpu"
	"github.com/vec06c/devkit/pkg/debugger"
	"github.com/vec06c/devkit/pkg/memory"
)

var (
	loadAddrHex string
	debugMode   bool
	cycleBudget uint64
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "v06e [rom file]",
	Short: "Vector-06C-class 8080 emulator and debugger",
	Long: `v06e - Vector-06C-class 8080 emulator and debugger

Loads a ROM image (and its adjacent .debug.json, if present) into the
banked memory and 8080 core and either runs it to a cycle budget or, with
--debug, drops into an interactive "dbg>" REPL built on pkg/debugger's
headless stepping and breakpoint API.`,
	Args: cobra.ExactArgs(1),
	Run:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&loadAddrHex, "address", "a", "0100", "load address in hex (e.g. 0x0100, $0100, 0100)")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "drop into the interactive debugger instead of running to completion")
	rootCmd.Flags().Uint64Var(&cycleBudget, "cycles", 10_000_000, "cycle budget for non-debug runs (safety stop)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose execution info")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "v06e: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) {
	romFile := args[0]
	loadAddr, err := parseHexAddress(loadAddrHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "v06e: invalid -a address %q: %v\n", loadAddrHex, err)
		os.Exit(1)
	}

	rom, err := os.ReadFile(romFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "v06e: reading %s: %v\n", romFile, err)
		os.Exit(1)
	}

	mem := memory.New()
	mem.LoadAt(loadAddr, rom)
	c := cpu.New(mem)
	c.PC = loadAddr
	dbg := debugger.New(c, mem)

	if labels, ok := loadDebugIndexLabels(romFile); ok && verbose {
		fmt.Printf("Loaded %d labels from adjacent debug index\n", len(labels))
	}

	if verbose {
		fmt.Printf("ROM:   %s (%d bytes)\n", romFile, len(rom))
		fmt.Printf("Load:  $%04X\n", loadAddr)
	}

	if debugMode {
		runREPL(dbg)
		return
	}

	var consumed uint64
	for consumed < cycleBudget && !c.Halted {
		consumed += c.Step()
	}

	if verbose {
		fmt.Printf("Stopped after %d cycles (halted=%v)\n", consumed, c.Halted)
		fmt.Printf("PC=$%04X SP=$%04X A=$%02X BC=$%04X DE=$%04X HL=$%04X\n",
			c.PC, c.SP, c.A, c.BC(), c.DE(), c.HL())
	}
}

// loadDebugIndexLabels reads the `<rom>.debug.json` sibling if present,
// returning its label table.
func loadDebugIndexLabels(romFile string) (map[string]string, bool) {
	ext := filepath.Ext(romFile)
	base := strings.TrimSuffix(romFile, ext)
	path := base + ".debug.json"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var idx struct {
		Labels map[string]string `json:"labels"`
	}
	if json.Unmarshal(data, &idx) != nil {
		return nil, false
	}
	return idx.Labels, true
}

func parseHexAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s = s[2:]
	case strings.HasPrefix(s, "$"), strings.HasPrefix(s, "#"):
		s = s[1:]
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// runREPL drives pkg/debugger's headless API from a "dbg>" prompt, in the
// teacher's own command-loop style.
func runREPL(dbg *debugger.Debugger) {
	scanner := bufio.NewScanner(os.Stdin)
	printState(dbg)

	for {
		fmt.Print("dbg> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			parts = []string{"s"}
		}

		switch parts[0] {
		case "h", "help", "?":
			printHelp()
		case "s", "step":
			cycles, _, _ := dbg.StepInto()
			fmt.Printf("stepped (%d cycles)\n", cycles)
			printState(dbg)
		case "n", "next":
			cycles, _, _ := dbg.StepOver()
			fmt.Printf("stepped over (%d cycles)\n", cycles)
			printState(dbg)
		case "o", "out":
			cycles, _, _ := dbg.StepOut()
			fmt.Printf("stepped out (%d cycles)\n", cycles)
			printState(dbg)
		case "c", "continue":
			_, _, _, hit := dbg.Continue()
			if hit != nil {
				fmt.Printf("stopped at breakpoint $%04X\n", hit.Addr)
			} else {
				fmt.Println("halted")
			}
			printState(dbg)
		case "b", "break":
			if len(parts) < 2 {
				listBreakpoints(dbg)
				continue
			}
			addr, err := parseHexAddress(parts[1])
			if err != nil {
				fmt.Printf("bad address: %v\n", err)
				continue
			}
			dbg.BreakpointAdd(addr, true)
			fmt.Printf("breakpoint set at $%04X\n", addr)
		case "d", "delete":
			dbg.BreakpointDelAll()
			fmt.Println("all breakpoints cleared")
		case "r", "regs":
			printState(dbg)
		case "m", "mem":
			if len(parts) < 2 {
				fmt.Println("usage: mem <hex addr>")
				continue
			}
			addr, err := parseHexAddress(parts[1])
			if err != nil {
				fmt.Printf("bad address: %v\n", err)
				continue
			}
			printMemory(dbg, addr)
		case "q", "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q (try 'help')\n", parts[0])
		}
	}
}

func printHelp() {
	fmt.Println("commands: step(s) next(n) out(o) continue(c) break(b addr) delete(d) regs(r) mem(m addr) quit(q)")
}

func listBreakpoints(dbg *debugger.Debugger) {
	if len(dbg.Breakpoints()) == 0 {
		fmt.Println("no breakpoints set")
		return
	}
	for addr, bp := range dbg.Breakpoints() {
		fmt.Printf("  $%04X enabled=%v autoDel=%v\n", addr, bp.Enabled, bp.AutoDel)
	}
}

func printState(dbg *debugger.Debugger) {
	c := dbg.CPU
	fmt.Printf("PC=$%04X SP=$%04X A=$%02X BC=$%04X DE=$%04X HL=$%04X [S%s Z%s AC%s P%s CY%s] halted=%v\n",
		c.PC, c.SP, c.A, c.BC(), c.DE(), c.HL(),
		flagChar(c.FlagS), flagChar(c.FlagZ), flagChar(c.FlagAC), flagChar(c.FlagP), flagChar(c.FlagCY),
		c.Halted)
}

func flagChar(set bool) string {
	if set {
		return "1"
	}
	return "0"
}

func printMemory(dbg *debugger.Debugger, addr uint16) {
	data := dbg.Mem.DumpMain(addr, 16)
	fmt.Printf("$%04X: ", addr)
	for _, b := range data {
		fmt.Printf("%02X ", b)
	}
	fmt.Println()
}

// Command v06a assembles a Vector-06C-class 8080 source file (or a Project
// file naming one) into a ROM image, an adjacent debug-index, and
// optionally a listing and symbol file.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vec06c/devkit/pkg/asm"
	"github.com/vec06c/devkit/pkg/project"
)

func main() {
	var (
		outputFile  = flag.String("o", "", "output ROM file (default: input with .bin extension)")
		listingFile = flag.String("l", "", "generate a listing file")
		symbolFile  = flag.String("s", "", "generate a symbol file")
		verbose     = flag.Bool("v", false, "verbose output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "v06a - Vector-06C 8080 assembler\n\n")
		fmt.Fprintf(os.Stderr, "Usage: v06a [options] <project.json|source.a80>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)

	asmPath, romPath, debugPath, err := resolveInput(input, *outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "v06a: %v\n", err)
		os.Exit(2)
	}

	if *verbose {
		fmt.Printf("Source: %s\n", asmPath)
		fmt.Printf("ROM:    %s\n", romPath)
		fmt.Printf("Debug:  %s\n", debugPath)
	}

	a := &asm.Assembler{ProjectDir: filepath.Dir(asmPath)}
	result, ferr := a.AssembleFile(asm.OSFileReader{}, asmPath)
	if ferr != nil {
		fmt.Fprintln(os.Stderr, ferr.Error())
		os.Exit(2)
	}

	for _, w := range result.Warnings {
		printDiagnostic(w)
	}
	if result.HasFatalErrors() {
		for _, e := range result.Errors {
			printDiagnostic(e)
		}
		os.Exit(2)
	}

	if err := os.WriteFile(romPath, result.Binary, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "v06a: writing ROM %s: %v\n", romPath, err)
		os.Exit(2)
	}
	if err := writeDebugIndex(debugPath, result); err != nil {
		fmt.Fprintf(os.Stderr, "v06a: writing debug index %s: %v\n", debugPath, err)
		os.Exit(2)
	}
	if *listingFile != "" {
		if err := writeListing(*listingFile, result); err != nil {
			fmt.Fprintf(os.Stderr, "v06a: writing listing %s: %v\n", *listingFile, err)
			os.Exit(2)
		}
	}
	if *symbolFile != "" {
		if err := writeSymbols(*symbolFile, result); err != nil {
			fmt.Fprintf(os.Stderr, "v06a: writing symbols %s: %v\n", *symbolFile, err)
			os.Exit(2)
		}
	}

	if *verbose {
		fmt.Printf("Assembled %d bytes at origin $%04X\n", len(result.Binary), result.Origin)
	}
}

// resolveInput accepts either a Project file or a bare .a80 source file and
// returns the resolved source/ROM/debug-index paths.
func resolveInput(input, outputOverride string) (asmPath, romPath, debugPath string, err error) {
	if strings.HasSuffix(strings.ToLower(input), ".json") || strings.HasSuffix(strings.ToLower(input), ".v06proj") {
		p, perr := project.Load(input)
		if perr != nil {
			return "", "", "", perr
		}
		asmPath, romPath, debugPath = p.AsmPath, p.RomPath, p.DebugPath
	} else {
		asmPath = input
		ext := filepath.Ext(asmPath)
		base := strings.TrimSuffix(asmPath, ext)
		romPath = base + ".bin"
		debugPath = base + ".debug.json"
	}
	if outputOverride != "" {
		romPath = outputOverride
	}
	return asmPath, romPath, debugPath, nil
}

// printDiagnostic prints a compiler-style `<absolute-path>:<line>: message`
// diagnostic (AsmError.Error()) followed by the offending source line, per
// spec.md §6. It re-reads from e.Origin.File rather than the top-level
// input, so a diagnostic inside an .include'd file still shows the right
// line.
func printDiagnostic(e *asm.AsmError) {
	fmt.Fprintln(os.Stderr, e.Error())
	if text, ok := sourceLine(e.Origin.File, e.Origin.Line); ok {
		fmt.Fprintf(os.Stderr, "    %s\n", text)
	}
}

func sourceLine(path string, n int) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	i := 0
	for scanner.Scan() {
		i++
		if i == n {
			return scanner.Text(), true
		}
	}
	return "", false
}

func writeDebugIndex(path string, result *asm.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return result.DebugIndex.WriteJSON(f)
}

func writeListing(path string, result *asm.Result) error {
	var lines []string
	lines = append(lines, fmt.Sprintf("; origin $%04X, %d bytes", result.Origin, len(result.Binary)))
	for key, addrs := range result.DebugIndex.LineAddresses {
		lines = append(lines, fmt.Sprintf("%-20s %s", key, strings.Join(addrs, ",")))
	}
	sort.Strings(lines[1:])
	for _, p := range result.Printed {
		lines = append(lines, "; "+p)
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

func writeSymbols(path string, result *asm.Result) error {
	var lines []string
	for name, addr := range result.DebugIndex.Labels {
		lines = append(lines, fmt.Sprintf("%-24s %s", name, addr))
	}
	for name, addr := range result.DebugIndex.Consts {
		lines = append(lines, fmt.Sprintf("%-24s %s  (const)", name, addr))
	}
	sort.Strings(lines)
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

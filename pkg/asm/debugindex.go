package asm

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// DebugIndex is the JSON artifact an external debugger consumes to map
// addresses back to source (component F, spec.md §4.F/§6): every label and
// constant's resolved value, every macro's parameter list, every source
// line's emitted address(es) — a line inside a macro or .loop body can map
// to more than one address, one per expansion — and every DB/DS span.
type DebugIndex struct {
	ProjectDir    string                  `json:"projectDir,omitempty"`
	Labels        map[string]string       `json:"labels"`
	Consts        map[string]string       `json:"consts"`
	Macros        map[string]MacroDebug   `json:"macros"`
	LineAddresses map[string][]string     `json:"lineAddresses"`
	DataLines     map[string][]DataSpanJSON `json:"dataLines"`
	Breakpoints   []string                `json:"breakpoints,omitempty"`
}

// MacroDebug is a macro's shape, for a debugger that wants to show
// expansion parameters on hover.
type MacroDebug struct {
	Params []string `json:"params"`
	Origin string   `json:"origin"`
}

// DataSpanJSON is the wire form of DataSpan: Start as hex text rather than a
// bare number, matching Labels/Consts.
type DataSpanJSON struct {
	Start      string `json:"start"`
	ByteLength int    `json:"byteLength"`
	UnitBytes  int    `json:"unitBytes"`
}

func hexAddr(v uint16) string {
	return fmt.Sprintf("0x%04X", v)
}

// lineKeyOf formats a Line's debug-index key. When projectDir is known
// (spec.md §4.F: "relative paths are preserved when a projectDir is
// known"), the file is expressed relative to it rather than however it was
// reached through include expansion; a path that isn't actually inside
// projectDir, or the synthetic "<string>" origin AssembleString uses,
// falls back to Origin.File unchanged.
func lineKeyOf(l *Line, projectDir string) string {
	return fmt.Sprintf("%s:%d", relativeTo(l.Origin.File, projectDir), l.Origin.Line)
}

func relativeTo(file, projectDir string) string {
	if projectDir == "" || file == "<string>" {
		return file
	}
	rel, err := filepath.Rel(projectDir, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return file
	}
	return rel
}

// BuildDebugIndex assembles the DebugIndex from the completed symbol table
// and the Pass-2 emitter's line/address bookkeeping. Called only once
// assembly has succeeded (spec.md §7: the index is written on success
// only).
func BuildDebugIndex(st *SymbolTable, lines []*Line, e *emitCtx, projectDir string) *DebugIndex {
	idx := &DebugIndex{
		ProjectDir:    projectDir,
		Labels:        map[string]string{},
		Consts:        map[string]string{},
		Macros:        map[string]MacroDebug{},
		LineAddresses: map[string][]string{},
		DataLines:     map[string][]DataSpanJSON{},
	}

	for name, sym := range st.globals {
		switch sym.Kind {
		case SymConstant:
			idx.Consts[name] = hexAddr(sym.Value)
		default:
			idx.Labels[name] = hexAddr(sym.Value)
		}
	}
	for _, def := range st.AllLocals() {
		idx.Labels[def.UniqueName] = hexAddr(def.Addr)
	}
	for name, m := range st.macros {
		idx.Macros[name] = MacroDebug{Params: m.Params, Origin: fmt.Sprintf("%s:%d", relativeTo(m.Origin.File, projectDir), m.Origin.Line)}
	}

	for srcIdx, addrs := range e.lineAddr {
		if srcIdx < 0 || srcIdx >= len(lines) {
			continue
		}
		key := lineKeyOf(lines[srcIdx], projectDir)
		for _, a := range addrs {
			idx.LineAddresses[key] = append(idx.LineAddresses[key], hexAddr(a))
		}
	}
	for srcIdx, spans := range e.dataLines {
		if srcIdx < 0 || srcIdx >= len(lines) {
			continue
		}
		key := lineKeyOf(lines[srcIdx], projectDir)
		for _, s := range spans {
			idx.DataLines[key] = append(idx.DataLines[key], DataSpanJSON{Start: hexAddr(s.Start), ByteLength: s.ByteLength, UnitBytes: s.UnitBytes})
		}
	}
	return idx
}

// WriteJSON serialises the index the way a debugger expects to read it
// back: pretty-printed, stable key order via Go's sorted-map marshalling.
func (idx *DebugIndex) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(idx)
}

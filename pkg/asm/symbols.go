package asm

import "strconv"

// LocalDef is one definition of a `@name` local label within a scope.
// Every definition gets a globally unique integer suffix at definition
// time (spec.md §3) so the debug index's label table never collides, even
// though the base name "@loop" may be reused in every scope.
type LocalDef struct {
	SourceIndex int // index into the classified line slice, for ordering
	Addr        uint16
	UniqueName  string // e.g. "@loop.7", used as the debug-index key
	Origin      Origin
}

// SymbolTable holds every symbol variant: global labels/constants share one
// namespace (global label names are unique, spec.md §3), local labels are
// scope-keyed, and macros are tracked in their own registry since they
// carry parameter lists and a body line range instead of a value.
type SymbolTable struct {
	globals      map[string]*Symbol
	locals       map[string]map[string][]*LocalDef // scopeKey -> "@name" -> defs
	macros       map[string]*MacroDef
	localCounter int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		globals: make(map[string]*Symbol),
		locals:  make(map[string]map[string][]*LocalDef),
		macros:  make(map[string]*MacroDef),
	}
}

// DefineGlobal registers a label or constant. Redefinition of either kind
// is a DuplicateLabel error naming the prior origin (spec.md §4.D).
func (st *SymbolTable) DefineGlobal(name string, kind SymbolKind, value uint16, origin Origin) *AsmError {
	if prior, exists := st.globals[name]; exists {
		return newErr(ErrDuplicateLabel, origin, "label '%s' already defined at %s:%d", name, prior.Origin.File, prior.Origin.Line)
	}
	st.globals[name] = &Symbol{Name: name, Kind: kind, Value: value, Origin: origin}
	return nil
}

// Global looks up a previously defined global label or constant.
func (st *SymbolTable) Global(name string) (*Symbol, bool) {
	s, ok := st.globals[name]
	return s, ok
}

// DefineLocal registers a new definition of a `@name` local label within
// scopeKey, returning its globally unique debug-index name.
func (st *SymbolTable) DefineLocal(scopeKey, name string, sourceIndex int, addr uint16, origin Origin) string {
	if st.locals[scopeKey] == nil {
		st.locals[scopeKey] = make(map[string][]*LocalDef)
	}
	st.localCounter++
	unique := name + "." + strconv.Itoa(st.localCounter)
	def := &LocalDef{SourceIndex: sourceIndex, Addr: addr, UniqueName: unique, Origin: origin}
	st.locals[scopeKey][name] = append(st.locals[scopeKey][name], def)
	return unique
}

// ResolveLocal finds the latest definition of `@name` within scopeKey whose
// SourceIndex is <= atSourceIndex, per the "latest definition at or before
// the referring line within the same scope" rule (spec.md §3).
func (st *SymbolTable) ResolveLocal(scopeKey, name string, atSourceIndex int) (*LocalDef, bool) {
	defs := st.locals[scopeKey][name]
	var best *LocalDef
	for _, d := range defs {
		if d.SourceIndex <= atSourceIndex && (best == nil || d.SourceIndex > best.SourceIndex) {
			best = d
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// AllLocals returns every local-label definition across every scope, for
// the debug-index writer.
func (st *SymbolTable) AllLocals() []*LocalDef {
	var out []*LocalDef
	for _, byName := range st.locals {
		for _, defs := range byName {
			out = append(out, defs...)
		}
	}
	return out
}

func isLocalRef(name string) bool {
	return len(name) > 1 && name[0] == '@'
}

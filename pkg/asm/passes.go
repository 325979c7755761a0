package asm

import (
	"strconv"
	"strings"
)

// Assembler drives the whole pipeline: include expansion (A), lexing (B),
// macro/loop/if expansion (C), symbol resolution (D), and the two
// addressing/emission passes (E). Unlike the teacher's single classic
// "reprocess every raw line twice" structure, expansion and address
// assignment happen together in one forward walk (ExpandAndAssignAddresses)
// because an 8080 instruction's byte length never depends on an operand's
// resolved value — only Pass-2 (Emit) needs the final symbol table. This
// still satisfies spec.md §4.E's two-pass contract: expand-and-size plays
// the role of Pass-1, Emit plays the role of Pass-2.
type Assembler struct {
	ProjectDir string // optional, used to relativize debug-index file keys
}

// Result is the external contract: the assembled ROM, the debug index, and
// every diagnostic collected along the way.
type Result struct {
	Binary     []byte
	Origin     uint16
	Errors     []*AsmError
	Warnings   []*AsmError
	Printed    []string
	DebugIndex *DebugIndex
}

// HasFatalErrors reports whether assembly failed (spec.md §7: the debug
// index is written only on success).
func (r *Result) HasFatalErrors() bool {
	for _, e := range r.Errors {
		if !e.Kind.IsWarning() {
			return true
		}
	}
	return false
}

// AssembleFile runs the full pipeline against a root source file.
func (a *Assembler) AssembleFile(fr FileReader, rootFile string) (*Result, error) {
	raw, ferr := ExpandIncludes(fr, rootFile)
	if ferr != nil {
		ae, _ := ferr.(*AsmError)
		return &Result{Errors: []*AsmError{ae}}, ferr
	}
	return a.assembleRaw(raw), nil
}

// AssembleString runs the pipeline over an in-memory root source, useful
// for tests that don't want a real FileReader.
func (a *Assembler) AssembleString(source string) *Result {
	raw := stringToRawLines(source)
	return a.assembleRaw(raw)
}

func stringToRawLines(source string) []RawLine {
	var out []RawLine
	for i, text := range strings.Split(source, "\n") {
		out = append(out, RawLine{Text: text, Origin: Origin{File: "<string>", Line: i + 1}})
	}
	return out
}

func (a *Assembler) assembleRaw(raw []RawLine) *Result {
	lines := ClassifyLines(raw)

	ctx := &expandCtx{
		st:    NewSymbolTable(),
		lines: lines,
	}
	if len(lines) > 0 {
		ctx.bumpScope(lines[0].Origin.File)
	}
	ctx.walk(lines, -1)

	res := &Result{Errors: ctx.errs, Printed: ctx.prints, Origin: ctx.origin}
	for _, e := range res.Errors {
		if e.Kind.IsWarning() {
			res.Warnings = append(res.Warnings, e)
		}
	}
	if res.HasFatalErrors() {
		return res
	}

	emitter := &emitCtx{st: ctx.st, base: ctx.origin, lineAddr: map[int][]uint16{}, dataLines: map[int][]DataSpan{}}
	for _, el := range ctx.expanded {
		emitter.emit(el)
	}
	res.Errors = append(res.Errors, emitter.errs...)
	for _, e := range emitter.errs {
		if e.Kind.IsWarning() {
			res.Warnings = append(res.Warnings, e)
		}
	}
	if res.HasFatalErrors() {
		return res
	}

	res.Binary = emitter.output
	res.DebugIndex = BuildDebugIndex(ctx.st, lines, emitter, a.ProjectDir)
	return res
}

// expandCtx carries the mutable state of the expand-and-size walk
// (components C/D/E.Pass1 merged, see the Assembler doc comment).
type expandCtx struct {
	st               *SymbolTable
	lines            []*Line
	currentAddr      uint16
	origin           uint16
	originSet        bool
	directiveCounter int
	scopeFile        string
	scopeKey         string
	expandSuffix     int
	errs             []*AsmError
	prints           []string
	expanded         []*ExpandedLine

	// curSourceIndex, together with scopeKey, backs the SymbolLookup
	// implementation (evalAdapter below) for whichever line is presently
	// being processed.
	curSourceIndex int
}

func (c *expandCtx) bumpScope(file string) {
	c.directiveCounter++
	c.scopeFile = file
	c.scopeKey = file + "#" + strconv.Itoa(c.directiveCounter)
}

func (c *expandCtx) nextSuffix() int {
	c.expandSuffix++
	return c.expandSuffix
}

func (c *expandCtx) fail(kind ErrKind, origin Origin, format string, args ...interface{}) {
	c.errs = append(c.errs, newErr(kind, origin, format, args...))
}

// walk processes a (possibly nested, e.g. a macro/loop body) slice of
// lines. overrideSourceIndex, when >= 0, forces every ExpandedLine produced
// here to report that source index instead of its own Line.Index — this is
// how a macro invocation's source line ends up mapped to the address of
// the expansion's first emitted byte (spec.md §4.C).
func (c *expandCtx) walk(lines []*Line, overrideSourceIndex int) {
	for i := 0; i < len(lines); i++ {
		l := lines[i]

		if overrideSourceIndex < 0 && l.Origin.File != c.scopeFile {
			c.bumpScope(l.Origin.File)
		}

		if l.IsBlank {
			continue
		}

		if l.Label != "" {
			c.defineLabelHere(l)
		}

		switch l.Directive {
		case "":
			if l.Mnemonic == "" {
				continue
			}
			if def, ok := c.st.macros[l.Mnemonic]; ok {
				c.expandMacroInvocation(def, l)
				continue
			}
			c.emitInstructionLine(l, overrideSourceIndex)
			continue

		case "=", "EQU":
			c.defineConstant(l)
			continue

		case ".ORG":
			c.handleOrg(l)
			continue

		case ".ALIGN":
			c.handleAlign(l)
			continue

		case "DB":
			c.emitDB(l, overrideSourceIndex)
			continue

		case "DS":
			c.emitDS(l, overrideSourceIndex)
			continue

		case ".PRINT":
			c.handlePrint(l)
			continue

		case ".INCLUDE":
			// already resolved by the include expander (component A); a
			// leftover directive here means it appeared somewhere the
			// expander didn't recognise (e.g. inside a macro body).
			continue

		case ".MACRO":
			def, endIdx, err := captureMacroBody(lines, i)
			if err != nil {
				c.errs = append(c.errs, err)
				return
			}
			key := strings.ToUpper(def.Name)
			if _, exists := c.st.macros[key]; !exists {
				c.st.macros[key] = def
			}
			i = endIdx
			continue

		case ".ENDMACRO", ".ENDIF", ".ENDLOOP":
			// stray terminator with no matching opener; ignore defensively.
			continue

		case ".IF":
			c.handleIf(lines, i, &i)
			continue

		case ".LOOP":
			c.handleLoop(lines, i, &i)
			continue

		default:
			continue
		}
	}
}

func (c *expandCtx) defineLabelHere(l *Line) {
	if isLocalRef(l.Label) {
		c.st.DefineLocal(c.scopeKey, l.Label, l.Index, c.currentAddr, l.Origin)
		return
	}
	if err := c.st.DefineGlobal(l.Label, SymLabel, c.currentAddr, l.Origin); err != nil {
		c.errs = append(c.errs, err)
	}
}

func (c *expandCtx) defineConstant(l *Line) {
	if len(l.Operands) != 2 {
		c.fail(ErrBadOperand, l.Origin, "malformed constant definition")
		return
	}
	name, exprText := l.Operands[0], l.Operands[1]
	c.curSourceIndex = l.Index
	v, err := EvalExpr(exprText, (*evalAdapter)(c))
	if err != nil {
		c.fail(ErrUndefinedSymbol, l.Origin, "%s", err.Error())
		return
	}
	if dErr := c.st.DefineGlobal(name, SymConstant, uint16(v&0xFFFF), l.Origin); dErr != nil {
		c.errs = append(c.errs, dErr)
	}
}

func (c *expandCtx) handleOrg(l *Line) {
	if len(l.Operands) != 1 {
		c.fail(ErrBadOrg, l.Origin, ".org requires exactly one operand")
		return
	}
	c.curSourceIndex = l.Index
	addr, _, err := EvalAddr(l.Operands[0], (*evalAdapter)(c))
	if err != nil {
		c.fail(ErrBadOrg, l.Origin, "%s", err.Error())
		return
	}
	c.currentAddr = addr
	if !c.originSet {
		c.origin = addr
		c.originSet = true
	}
	c.bumpScope(c.scopeFile)
}

func (c *expandCtx) handleAlign(l *Line) {
	if len(l.Operands) != 1 {
		c.fail(ErrBadAlign, l.Origin, ".align requires exactly one operand")
		return
	}
	c.curSourceIndex = l.Index
	n, err := EvalExpr(l.Operands[0], (*evalAdapter)(c))
	if err != nil {
		c.fail(ErrBadAlign, l.Origin, "%s", err.Error())
		return
	}
	if !isPowerOfTwo(n) {
		c.fail(ErrBadAlign, l.Origin, ".align operand %d is not a power of two", n)
		return
	}
	c.currentAddr = alignUp(c.currentAddr, n)
}

func (c *expandCtx) handlePrint(l *Line) {
	if len(l.Operands) == 0 {
		return
	}
	msg, _ := stringLiteral(l.Operands[0])
	c.prints = append(c.prints, msg)
}

func (c *expandCtx) emitInstructionLine(l *Line, overrideSourceIndex int) {
	size, _, kind := InstrSize(l.Mnemonic, l.Operands)
	if kind != ErrNone {
		c.fail(kind, l.Origin, "%s", mnemonicErrMessage(kind, l.Mnemonic))
		return
	}
	srcIdx := l.Index
	if overrideSourceIndex >= 0 {
		srcIdx = overrideSourceIndex
	}
	c.expanded = append(c.expanded, &ExpandedLine{
		SourceIndex: srcIdx, ScopeKey: c.scopeKey, Addr: c.currentAddr, Line: l, Size: size,
	})
	c.currentAddr += uint16(size)
}

func (c *expandCtx) emitDB(l *Line, overrideSourceIndex int) {
	if len(l.Operands) == 0 {
		c.fail(ErrBadDB, l.Origin, "DB requires at least one operand")
		return
	}
	size := 0
	for _, op := range l.Operands {
		size += dbOperandSize(op)
	}
	srcIdx := l.Index
	if overrideSourceIndex >= 0 {
		srcIdx = overrideSourceIndex
	}
	c.expanded = append(c.expanded, &ExpandedLine{SourceIndex: srcIdx, ScopeKey: c.scopeKey, Addr: c.currentAddr, Line: l, Size: size})
	c.currentAddr += uint16(size)
}

func (c *expandCtx) emitDS(l *Line, overrideSourceIndex int) {
	c.curSourceIndex = l.Index
	size, err := dsSize(l.Operands, (*evalAdapter)(c))
	if err != nil {
		c.errs = append(c.errs, err)
		return
	}
	srcIdx := l.Index
	if overrideSourceIndex >= 0 {
		srcIdx = overrideSourceIndex
	}
	c.expanded = append(c.expanded, &ExpandedLine{SourceIndex: srcIdx, ScopeKey: c.scopeKey, Addr: c.currentAddr, Line: l, Size: size})
	c.currentAddr += uint16(size)
}

func (c *expandCtx) handleIf(lines []*Line, openIdx int, i *int) {
	l := lines[openIdx]
	if len(l.Operands) == 0 {
		c.fail(ErrBadOperand, l.Origin, ".if requires a condition expression")
		*i = openIdx
		return
	}
	c.curSourceIndex = l.Index
	cond, err := EvalExpr(l.Operands[0], (*evalAdapter)(c))
	body, endIdx, cerr := captureBlock(lines, openIdx, ".IF", ".ENDIF", ErrUnterminatedIf)
	if cerr != nil {
		c.errs = append(c.errs, cerr)
		*i = len(lines)
		return
	}
	*i = endIdx
	if err != nil {
		c.fail(ErrUndefinedSymbol, l.Origin, "%s", err.Error())
		return
	}
	if cond != 0 {
		c.walk(body, -1)
	}
}

func (c *expandCtx) handleLoop(lines []*Line, openIdx int, i *int) {
	l := lines[openIdx]
	if len(l.Operands) == 0 {
		c.fail(ErrBadOperand, l.Origin, ".loop requires a repeat count")
		*i = openIdx
		return
	}
	c.curSourceIndex = l.Index
	n, err := EvalExpr(l.Operands[0], (*evalAdapter)(c))
	body, endIdx, cerr := captureBlock(lines, openIdx, ".LOOP", ".ENDLOOP", ErrUnterminatedLoop)
	if cerr != nil {
		c.errs = append(c.errs, cerr)
		*i = len(lines)
		return
	}
	*i = endIdx
	if err != nil {
		c.fail(ErrUndefinedSymbol, l.Origin, "%s", err.Error())
		return
	}
	for iter := int64(0); iter < n; iter++ {
		suffix := c.nextSuffix()
		c.bumpScope(c.scopeFile)
		expanded := expandMacroBody(body, nil, nil, l, suffix)
		c.walk(expanded, l.Index)
	}
}

func (c *expandCtx) expandMacroInvocation(def *MacroDef, l *Line) {
	if len(l.Operands) != len(def.Params) {
		c.fail(ErrBadOperand, l.Origin, "macro '%s' expects %d argument(s), got %d", def.Name, len(def.Params), len(l.Operands))
		return
	}
	suffix := c.nextSuffix()
	c.bumpScope(c.scopeFile)
	expanded := expandMacroBody(def.Body, def.Params, l.Operands, l, suffix)
	c.walk(expanded, l.Index)
}

func mnemonicErrMessage(kind ErrKind, mnemonic string) string {
	switch kind {
	case ErrInvalidMovMM:
		return "MOV M,M is not a valid instruction"
	case ErrUnknownOpcode:
		return "unknown opcode or macro: " + mnemonic
	default:
		return "bad operand for " + mnemonic
	}
}

// evalAdapter lets *expandCtx satisfy SymbolLookup using its "currently
// processed line" bookkeeping (curSourceIndex/scopeKey).
type evalAdapter expandCtx

func (e *evalAdapter) CurrentAddr() uint16 { return (*expandCtx)(e).currentAddr }

func (e *evalAdapter) LookupValue(name string) (uint16, bool, error) {
	c := (*expandCtx)(e)
	if isLocalRef(name) {
		def, ok := c.st.ResolveLocal(c.scopeKey, name, c.curSourceIndex)
		if !ok {
			return 0, false, nil
		}
		return def.Addr, true, nil
	}
	sym, ok := c.st.Global(name)
	if !ok {
		return 0, false, nil
	}
	return sym.Value, true, nil
}

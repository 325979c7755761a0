package asm

// emitCtx drives Pass-2 (component E): walking the already-sized,
// already-addressed ExpandedLine sequence and producing final bytes now
// that the symbol table is complete and every forward reference resolves.
type emitCtx struct {
	st        *SymbolTable
	base      uint16 // address of Result.Binary[0], the first .org seen
	output    []byte
	errs      []*AsmError
	lineAddr  map[int][]uint16
	dataLines map[int][]DataSpan
}

// ensureCapacity grows output so that offset addr-base is writable,
// zero-filling any gap left by a non-contiguous .org jump.
func (e *emitCtx) ensureCapacity(addr uint16, size int) int {
	offset := int(addr) - int(e.base)
	if offset < 0 {
		offset = 0
	}
	for len(e.output) < offset {
		e.output = append(e.output, 0)
	}
	if offset+size > len(e.output) {
		e.output = append(e.output, make([]byte, offset+size-len(e.output))...)
	}
	return offset
}

func (e *emitCtx) emit(el *ExpandedLine) {
	e.lineAddr[el.SourceIndex] = append(e.lineAddr[el.SourceIndex], el.Addr)
	if el.Size == 0 {
		return
	}

	l := el.Line
	lookup := &emitLookup{st: e.st, scopeKey: el.ScopeKey, sourceIndex: el.SourceIndex, addr: el.Addr}
	offset := e.ensureCapacity(el.Addr, el.Size)

	switch l.Directive {
	case "DB":
		pos := offset
		for _, op := range l.Operands {
			bytes, warns, err := dbOperandBytes(op, lookup)
			if err != nil {
				e.fail(err, l.Origin)
				return
			}
			for _, w := range warns {
				e.warn(w, l.Origin)
			}
			copy(e.output[pos:], bytes)
			pos += len(bytes)
		}
		e.dataLines[el.SourceIndex] = append(e.dataLines[el.SourceIndex], DataSpan{Start: el.Addr, ByteLength: el.Size, UnitBytes: 1})
		return

	case "DS":
		fill, err := dsFillValue(l.Operands, lookup)
		if err != nil {
			e.fail(err, l.Origin)
			return
		}
		for i := 0; i < el.Size; i++ {
			e.output[offset+i] = fill
		}
		e.dataLines[el.SourceIndex] = append(e.dataLines[el.SourceIndex], DataSpan{Start: el.Addr, ByteLength: el.Size, UnitBytes: 1})
		return
	}

	if l.Mnemonic == "" {
		return
	}

	bytes, warns, err := EncodeInstr(l.Mnemonic, l.Operands, lookup)
	if err != nil {
		e.fail(err, l.Origin)
		return
	}
	for _, w := range warns {
		e.warn(w, l.Origin)
	}
	if len(bytes) != el.Size {
		e.fail(&AsmError{Kind: ErrBadOperand, Message: "encoded length disagrees with sized length for " + l.Mnemonic}, l.Origin)
		return
	}
	copy(e.output[offset:], bytes)
}

func (e *emitCtx) fail(ae *AsmError, origin Origin) {
	if (ae.Origin == Origin{}) {
		ae.Origin = origin
	}
	e.errs = append(e.errs, ae)
}

func (e *emitCtx) warn(ae *AsmError, origin Origin) {
	if (ae.Origin == Origin{}) {
		ae.Origin = origin
	}
	e.errs = append(e.errs, ae)
}

// emitLookup resolves symbols during Pass-2, where every label (including
// ones defined later in the source) is already in the symbol table.
type emitLookup struct {
	st          *SymbolTable
	scopeKey    string
	sourceIndex int
	addr        uint16
}

func (l *emitLookup) CurrentAddr() uint16 { return l.addr }

func (l *emitLookup) LookupValue(name string) (uint16, bool, error) {
	if isLocalRef(name) {
		def, ok := l.st.ResolveLocal(l.scopeKey, name, l.sourceIndex)
		if !ok {
			return 0, false, nil
		}
		return def.Addr, true, nil
	}
	sym, ok := l.st.Global(name)
	if !ok {
		return 0, false, nil
	}
	return sym.Value, true, nil
}

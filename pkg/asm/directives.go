package asm

import (
	"fmt"
	"strings"
)

// isPowerOfTwo reports whether n is a positive power of two, per .align's
// requirement (spec.md §4.B: "n must be a power of two; otherwise
// BadAlign").
func isPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}

// alignUp rounds addr up to the next multiple of n (a power of two).
func alignUp(addr uint16, n int64) uint16 {
	m := uint16(n)
	rem := addr % m
	if rem == 0 {
		return addr
	}
	return addr + (m - rem)
}

// stringLiteral reports whether tok is a single-quoted string literal and
// returns its content, per spec.md §4.B: "strings in single quotes expand
// to one byte per character".
func stringLiteral(tok string) (string, bool) {
	tok = strings.TrimSpace(tok)
	if len(tok) >= 2 && tok[0] == '\'' && tok[len(tok)-1] == '\'' {
		return tok[1 : len(tok)-1], true
	}
	return "", false
}

// dbOperandSize returns the number of bytes one DB operand contributes,
// without evaluating numeric expressions (a string literal contributes one
// byte per character, everything else contributes exactly one byte).
func dbOperandSize(tok string) int {
	if s, ok := stringLiteral(tok); ok {
		return len(s)
	}
	return 1
}

// dbOperandBytes evaluates one DB operand into its final bytes during
// emission (component E's Pass-2).
func dbOperandBytes(tok string, lookup SymbolLookup) ([]byte, []*AsmError, *AsmError) {
	if s, ok := stringLiteral(tok); ok {
		return []byte(s), nil, nil
	}
	v, warn, err := EvalImm8(tok, lookup)
	if err != nil {
		return nil, nil, &AsmError{Kind: ErrBadDB, Message: err.Error()}
	}
	var warnings []*AsmError
	appendWarn(&warnings, warn)
	return []byte{v}, warnings, nil
}

// dsSize evaluates a `DS n` directive's reserved byte count. n must not
// forward-reference a symbol (spec.md §4.D disallows forward constant
// references), so this can be evaluated immediately wherever DS appears.
func dsSize(operands []string, lookup SymbolLookup) (int, *AsmError) {
	if len(operands) == 0 {
		return 0, &AsmError{Kind: ErrBadDS, Message: "DS requires a size operand"}
	}
	v, err := EvalExpr(operands[0], lookup)
	if err != nil {
		return 0, &AsmError{Kind: ErrBadDS, Message: err.Error()}
	}
	if v < 0 || v > 0xFFFF {
		return 0, &AsmError{Kind: ErrBadDS, Message: fmt.Sprintf("DS size out of range: %d", v)}
	}
	return int(v), nil
}

// dsFillValue returns the fill byte for `DS n,fill` (default 0; fill is a
// supplement beyond spec.md's bare "DS n", matching original_source's
// "reserve n bytes" semantics more completely).
func dsFillValue(operands []string, lookup SymbolLookup) (byte, *AsmError) {
	if len(operands) < 2 {
		return 0, nil
	}
	v, _, err := EvalImm8(operands[1], lookup)
	if err != nil {
		return 0, &AsmError{Kind: ErrBadDS, Message: err.Error()}
	}
	return v, nil
}

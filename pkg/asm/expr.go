package asm

import (
	"fmt"
	"strconv"
	"strings"
)

// SymbolLookup resolves a name (global label/constant or `@local` label
// reference) to its numeric value for expression evaluation. It is
// implemented by *evalAdapter in passes.go and *emitLookup in emit.go so the
// evaluator itself stays free of scope/pass bookkeeping.
type SymbolLookup interface {
	LookupValue(name string) (uint16, bool, error)
	CurrentAddr() uint16
}

// evalTerm parses one term: a numeric literal, `$` (current address), a
// bare symbol name, or an `@local` reference.
func evalTerm(term string, lookup SymbolLookup) (int64, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return 0, fmt.Errorf("empty term in expression")
	}
	if term == "$" {
		return int64(lookup.CurrentAddr()), nil
	}
	if v, ok, err := parseLiteral(term); ok {
		return v, err
	}
	if len(term) >= 3 && term[0] == '\'' && term[len(term)-1] == '\'' {
		return int64(term[1]), nil
	}
	v, found, err := lookup.LookupValue(term)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("undefined symbol: %s", term)
	}
	return int64(v), nil
}

// parseLiteral recognises decimal, 0x-hex, $-hex, b-binary and %-binary
// literals, per spec.md §3's Expression term grammar. ok is false when the
// string isn't shaped like a literal at all (so the caller falls through
// to symbol lookup).
func parseLiteral(s string) (int64, bool, error) {
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseUint(s[2:], 16, 32)
		return int64(v), true, wrapLiteralErr(s, err)
	case strings.HasPrefix(s, "$"):
		if len(s) == 1 {
			return 0, false, nil // bare "$" handled by caller as current address
		}
		v, err := strconv.ParseUint(s[1:], 16, 32)
		return int64(v), true, wrapLiteralErr(s, err)
	case strings.HasPrefix(s, "%"):
		v, err := strconv.ParseUint(s[1:], 2, 32)
		return int64(v), true, wrapLiteralErr(s, err)
	case (s[0] == 'b' || s[0] == 'B') && len(s) > 1 && isBinaryDigits(s[1:]):
		v, err := strconv.ParseUint(s[1:], 2, 32)
		return int64(v), true, wrapLiteralErr(s, err)
	case isAllDigits(s):
		v, err := strconv.ParseUint(s, 10, 32)
		return int64(v), true, wrapLiteralErr(s, err)
	default:
		return 0, false, nil
	}
}

func wrapLiteralErr(s string, err error) error {
	if err != nil {
		return fmt.Errorf("invalid numeric literal %q: %w", s, err)
	}
	return nil
}

func isBinaryDigits(s string) bool {
	for _, r := range s {
		if r != '0' && r != '1' {
			return false
		}
	}
	return len(s) > 0
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// splitExprTerms walks expr left to right, splitting on top-level '+' and
// '-' operators. There is no operator precedence and no parentheses, per
// spec.md §3 — this is a deliberately small grammar.
func splitExprTerms(expr string) (terms []string, ops []byte) {
	var cur strings.Builder
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		if (ch == '+' || ch == '-') && cur.Len() > 0 {
			terms = append(terms, cur.String())
			ops = append(ops, ch)
			cur.Reset()
			continue
		}
		cur.WriteByte(ch)
	}
	if cur.Len() > 0 {
		terms = append(terms, cur.String())
	}
	return terms, ops
}

// EvalExpr evaluates expr left-to-right over +/- without masking, so the
// caller can detect truncation before narrowing to an address or immediate
// width.
func EvalExpr(expr string, lookup SymbolLookup) (int64, error) {
	terms, ops := splitExprTerms(expr)
	if len(terms) == 0 {
		return 0, fmt.Errorf("empty expression")
	}
	first, err := evalTerm(terms[0], lookup)
	if err != nil {
		return 0, err
	}
	acc := first
	for i, op := range ops {
		v, err := evalTerm(terms[i+1], lookup)
		if err != nil {
			return 0, err
		}
		if op == '+' {
			acc += v
		} else {
			acc -= v
		}
	}
	return acc, nil
}

// EvalAddr evaluates expr and masks the result to 16 bits (address
// context). Values outside 0..0xFFFF produce a Truncated warning.
func EvalAddr(expr string, lookup SymbolLookup) (uint16, *AsmError, error) {
	v, err := EvalExpr(expr, lookup)
	if err != nil {
		return 0, nil, err
	}
	masked := uint16(v & 0xFFFF)
	var warn *AsmError
	if v < 0 || v > 0xFFFF {
		warn = &AsmError{Kind: ErrTruncated, Message: fmt.Sprintf("value %d truncated to address 0x%04X", v, masked)}
	}
	return masked, warn, nil
}

// EvalImm8 evaluates expr and masks the result to 8 bits (immediate
// context). Values outside 0..0xFF produce a Truncated warning.
func EvalImm8(expr string, lookup SymbolLookup) (uint8, *AsmError, error) {
	v, err := EvalExpr(expr, lookup)
	if err != nil {
		return 0, nil, err
	}
	masked := uint8(v & 0xFF)
	var warn *AsmError
	if v < 0 || v > 0xFF {
		warn = &AsmError{Kind: ErrTruncated, Message: fmt.Sprintf("value %d truncated to byte 0x%02X", v, masked)}
	}
	return masked, warn, nil
}

package asm

import (
	"strconv"
	"strings"
)

// MacroDef is a macro definition captured verbatim at classification time,
// post-include, pre-expansion (spec.md §4.C).
type MacroDef struct {
	Name    string
	Params  []string
	Body    []*Line
	Origin  Origin
}

// captureMacroBody parses a `.macro name(p1,p2,...)` header starting at
// lines[start] and consumes lines up to and including the matching
// `.endmacro`, returning the definition and the index of that terminator.
func captureMacroBody(lines []*Line, start int) (*MacroDef, int, *AsmError) {
	header := lines[start]
	name, params, err := parseMacroHeader(header)
	if err != nil {
		return nil, 0, newErr(ErrBadOperand, header.Origin, "%s", err.Error())
	}

	def := &MacroDef{Name: name, Params: params, Origin: header.Origin}
	depth := 1
	for i := start + 1; i < len(lines); i++ {
		l := lines[i]
		if l.Directive == ".MACRO" {
			depth++
		} else if l.Directive == ".ENDMACRO" {
			depth--
			if depth == 0 {
				return def, i, nil
			}
		}
		def.Body = append(def.Body, l)
	}
	return nil, 0, newErr(ErrUnterminatedMacro, header.Origin, "unterminated .macro '%s'", name)
}

// parseMacroHeader parses "name(p1,p2)" or "name p1,p2" operand forms.
func parseMacroHeader(header *Line) (string, []string, error) {
	if len(header.Operands) == 0 {
		return "", nil, errBadOperand("'.macro' requires a name")
	}
	spec := strings.Join(header.Operands, ",")
	name := spec
	var paramStr string
	if open := strings.IndexByte(spec, '('); open >= 0 {
		name = strings.TrimSpace(spec[:open])
		close := strings.IndexByte(spec, ')')
		if close < open {
			return "", nil, errBadOperand("unbalanced parens in .macro header")
		}
		paramStr = spec[open+1 : close]
	} else {
		first := splitFirstToken(header.Operands[0])
		name = first.first
		paramStr = strings.Join(append([]string{first.rest}, header.Operands[1:]...), ",")
	}

	var params []string
	if strings.TrimSpace(paramStr) != "" {
		for _, p := range strings.Split(paramStr, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				params = append(params, p)
			}
		}
	}
	return name, params, nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
func errBadOperand(msg string) error { return simpleErr(msg) }

// captureBlock finds the matching terminator (".ENDIF" or ".ENDLOOP") for a
// block opened at lines[start], honouring nesting of same-kind blocks.
func captureBlock(lines []*Line, start int, openDirective, closeDirective string, unterminated ErrKind) ([]*Line, int, *AsmError) {
	depth := 1
	var body []*Line
	for i := start + 1; i < len(lines); i++ {
		l := lines[i]
		if l.Directive == openDirective {
			depth++
		} else if l.Directive == closeDirective {
			depth--
			if depth == 0 {
				return body, i, nil
			}
		}
		body = append(body, l)
	}
	return nil, 0, newErr(unterminated, lines[start].Origin, "unterminated '%s'", openDirective)
}

// rewriteLocalLabels rewrites every `@name` token (label definition or
// reference) in operands/directive-args to the globally unique
// "name.<suffix>" form, per spec.md §4.C: macro and loop expansions make
// their internal local labels collision-proof by textual rename rather
// than by scope-key lookup (unlike top-level `@name` usage, which is
// resolved through the scope-key mechanism in symbols.go).
func rewriteLocalLabels(l *Line, suffix int) *Line {
	out := &Line{
		Index: l.Index, Origin: l.Origin, Raw: l.Raw, IsBlank: l.IsBlank,
		Directive: l.Directive, Mnemonic: l.Mnemonic, Comment: l.Comment,
	}
	out.Label = rewriteLocalToken(l.Label, suffix)
	out.Operands = make([]string, len(l.Operands))
	for i, op := range l.Operands {
		out.Operands[i] = rewriteLocalWord(op, suffix)
	}
	return out
}

func rewriteLocalToken(tok string, suffix int) string {
	if isLocalRef(tok) {
		return localSuffixedName(tok, suffix)
	}
	return tok
}

// rewriteLocalWord scans free-form operand/expression text for `@ident`
// occurrences and rewrites each one in place.
func rewriteLocalWord(s string, suffix int) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '@' {
			j := i + 1
			for j < len(s) && (isAlpha(rune(s[j])) || isDigit(rune(s[j])) || s[j] == '_') {
				j++
			}
			if j > i+1 {
				b.WriteString(localSuffixedName(s[i:j], suffix))
				i = j
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func localSuffixedName(name string, suffix int) string {
	base := strings.TrimPrefix(name, "@")
	return base + "." + strconv.Itoa(suffix)
}

// substituteWord replaces whole-word occurrences of `param` with `value`
// in free-form text, matching word boundaries by hand (no regexp), in the
// teacher's own hand-rolled-scanner style.
func substituteWord(s, param, value string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if matchesWordAt(s, i, param) {
			b.WriteString(value)
			i += len(param)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func matchesWordAt(s string, i int, word string) bool {
	if i+len(word) > len(s) || s[i:i+len(word)] != word {
		return false
	}
	if i > 0 && isWordChar(s[i-1]) {
		return false
	}
	end := i + len(word)
	if end < len(s) && isWordChar(s[end]) {
		return false
	}
	return true
}

func isWordChar(b byte) bool {
	return isAlpha(rune(b)) || isDigit(rune(b)) || b == '_' || b == '@'
}

// expandMacroBody substitutes arguments and rewrites local labels for one
// macro invocation (or one `.loop` iteration sharing the same mechanism).
func expandMacroBody(body []*Line, params, args []string, invocation *Line, suffix int) []*Line {
	out := make([]*Line, len(body))
	for i, l := range body {
		rewritten := rewriteLocalLabels(l, suffix)
		for pi, p := range params {
			if pi >= len(args) {
				break
			}
			rewritten.Label = substituteWord(rewritten.Label, p, args[pi])
			for oi, op := range rewritten.Operands {
				rewritten.Operands[oi] = substituteWord(op, p, args[pi])
			}
		}
		out[i] = rewritten
	}
	return out
}

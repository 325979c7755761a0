package asm

import (
	"fmt"
	"strings"
)

// regCode8 maps an 8080 register operand to its 3-bit field value (Table 1:
// r is one of B,C,D,E,H,L,M,A with codes 0..7).
var regCode8 = map[string]byte{
	"B": 0, "C": 1, "D": 2, "E": 3, "H": 4, "L": 5, "M": 6, "A": 7,
}

// rpCode maps a register-pair operand to its 2-bit field value for
// LXI/INX/DCX/DAD (rp is one of B,D,H,SP; B=BC, D=DE, H=HL).
var rpCode = map[string]byte{
	"B": 0, "BC": 0,
	"D": 1, "DE": 1,
	"H": 2, "HL": 2,
	"SP": 3,
}

// pushPopCode maps the register-pair operand of PUSH/POP, which uses PSW
// in place of SP.
var pushPopCode = map[string]byte{
	"B": 0, "BC": 0,
	"D": 1, "DE": 1,
	"H": 2, "HL": 2,
	"PSW": 3,
}

// ccCode maps a condition mnemonic to its 3-bit field value.
var ccCode = map[string]byte{
	"NZ": 0, "Z": 1, "NC": 2, "C": 3, "PO": 4, "PE": 5, "P": 6, "M": 7,
}

func upperOps(ops []string) []string {
	out := make([]string, len(ops))
	for i, o := range ops {
		out[i] = strings.ToUpper(strings.TrimSpace(o))
	}
	return out
}

// InstrSize returns the byte length of an instruction per Table 1, without
// evaluating any operand expression — 8080 instruction size depends only
// on its mnemonic/operand *shape*, never on a forward-referenced value, so
// sizing never needs the symbol table.
func InstrSize(mnemonic string, operands []string) (int, *AsmError, ErrKind) {
	ops := upperOps(operands)
	switch mnemonic {
	case "NOP", "HLT", "RLC", "RRC", "RAL", "RAR", "DAA", "STC", "CMC", "CMA",
		"XCHG", "XTHL", "SPHL", "PCHL", "EI", "DI", "RET":
		return 1, nil, ErrNone
	case "MOV":
		if len(ops) != 2 {
			return 0, nil, ErrBadOperand
		}
		if _, ok := regCode8[ops[0]]; !ok {
			return 0, nil, ErrBadOperand
		}
		if _, ok := regCode8[ops[1]]; !ok {
			return 0, nil, ErrBadOperand
		}
		if ops[0] == "M" && ops[1] == "M" {
			return 0, nil, ErrInvalidMovMM
		}
		return 1, nil, ErrNone
	case "MVI":
		return 2, nil, ErrNone
	case "LXI":
		return 3, nil, ErrNone
	case "LDA", "STA", "LHLD", "SHLD", "JMP", "CALL":
		return 3, nil, ErrNone
	case "LDAX", "STAX":
		return 1, nil, ErrNone
	case "INR", "DCR", "INX", "DCX", "DAD":
		return 1, nil, ErrNone
	case "ADD", "ADC", "SUB", "SBB", "ANA", "XRA", "ORA", "CMP":
		return 1, nil, ErrNone
	case "ADI", "ACI", "SUI", "SBI", "ANI", "XRI", "ORI", "CPI":
		return 2, nil, ErrNone
	case "PUSH", "POP":
		return 1, nil, ErrNone
	case "IN", "OUT":
		return 2, nil, ErrNone
	case "RST":
		return 1, nil, ErrNone
	default:
		if isConditionalBranch(mnemonic) {
			if strings.HasPrefix(mnemonic, "J") || strings.HasPrefix(mnemonic, "C") {
				return 3, nil, ErrNone
			}
			return 1, nil, ErrNone // R<cc>
		}
		return 0, nil, ErrUnknownOpcode
	}
}

// isConditionalBranch recognises Jcc/Ccc/Rcc mnemonics formed from a
// condition-code suffix (e.g. JNZ, CZ, RPE).
func isConditionalBranch(mnemonic string) bool {
	for _, prefix := range []string{"J", "C", "R"} {
		if strings.HasPrefix(mnemonic, prefix) {
			if _, ok := ccCode[strings.TrimPrefix(mnemonic, prefix)]; ok {
				return true
			}
		}
	}
	return false
}

// EncodeInstr evaluates operands and emits the instruction's bytes, per
// Table 1's opcode patterns.
func EncodeInstr(mnemonic string, operands []string, lookup SymbolLookup) ([]byte, []*AsmError, *AsmError) {
	ops := upperOps(operands)
	var warnings []*AsmError

	switch mnemonic {
	case "NOP":
		return []byte{0x00}, nil, nil
	case "HLT":
		return []byte{0x76}, nil, nil
	case "RLC":
		return []byte{0x07}, nil, nil
	case "RRC":
		return []byte{0x0F}, nil, nil
	case "RAL":
		return []byte{0x17}, nil, nil
	case "RAR":
		return []byte{0x1F}, nil, nil
	case "DAA":
		return []byte{0x27}, nil, nil
	case "STC":
		return []byte{0x37}, nil, nil
	case "CMC":
		return []byte{0x3F}, nil, nil
	case "CMA":
		return []byte{0x2F}, nil, nil
	case "XCHG":
		return []byte{0xEB}, nil, nil
	case "XTHL":
		return []byte{0xE3}, nil, nil
	case "SPHL":
		return []byte{0xF9}, nil, nil
	case "PCHL":
		return []byte{0xE9}, nil, nil
	case "EI":
		return []byte{0xFB}, nil, nil
	case "DI":
		return []byte{0xF3}, nil, nil
	case "RET":
		return []byte{0xC9}, nil, nil

	case "MOV":
		d, ok1 := regCode8[ops[0]]
		s, ok2 := regCode8[ops[1]]
		if !ok1 || !ok2 {
			return nil, nil, errOperand(mnemonic, operands)
		}
		if d == 6 && s == 6 {
			return nil, nil, &AsmError{Kind: ErrInvalidMovMM, Message: "MOV M,M is not a valid instruction (that encoding is HLT)"}
		}
		return []byte{0x40 | d<<3 | s}, nil, nil

	case "MVI":
		r, ok := regCode8[ops[0]]
		if !ok {
			return nil, nil, errOperand(mnemonic, operands)
		}
		v, w, err := EvalImm8(operands[1], lookup)
		if err != nil {
			return nil, nil, wrapEval(err)
		}
		appendWarn(&warnings, w)
		return []byte{0x06 | r<<3, v}, warnings, nil

	case "LXI":
		rp, ok := rpCode[ops[0]]
		if !ok {
			return nil, nil, errOperand(mnemonic, operands)
		}
		v, w, err := EvalAddr(operands[1], lookup)
		if err != nil {
			return nil, nil, wrapEval(err)
		}
		appendWarn(&warnings, w)
		return []byte{0x01 | rp<<4, byte(v), byte(v >> 8)}, warnings, nil

	case "LDA", "STA", "LHLD", "SHLD":
		v, w, err := EvalAddr(operands[0], lookup)
		if err != nil {
			return nil, nil, wrapEval(err)
		}
		appendWarn(&warnings, w)
		base := map[string]byte{"LDA": 0x3A, "STA": 0x32, "LHLD": 0x2A, "SHLD": 0x22}[mnemonic]
		return []byte{base, byte(v), byte(v >> 8)}, warnings, nil

	case "LDAX", "STAX":
		base, ok := map[string]map[string]byte{
			"LDAX": {"B": 0x0A, "BC": 0x0A, "D": 0x1A, "DE": 0x1A},
			"STAX": {"B": 0x02, "BC": 0x02, "D": 0x12, "DE": 0x12},
		}[mnemonic][ops[0]]
		if !ok {
			return nil, nil, errOperand(mnemonic, operands)
		}
		return []byte{base}, nil, nil

	case "INR", "DCR":
		r, ok := regCode8[ops[0]]
		if !ok {
			return nil, nil, errOperand(mnemonic, operands)
		}
		if mnemonic == "INR" {
			return []byte{0x04 | r<<3}, nil, nil
		}
		return []byte{0x05 | r<<3}, nil, nil

	case "INX", "DCX":
		rp, ok := rpCode[ops[0]]
		if !ok {
			return nil, nil, errOperand(mnemonic, operands)
		}
		if mnemonic == "INX" {
			return []byte{0x03 | rp<<4}, nil, nil
		}
		return []byte{0x0B | rp<<4}, nil, nil

	case "DAD":
		rp, ok := rpCode[ops[0]]
		if !ok {
			return nil, nil, errOperand(mnemonic, operands)
		}
		return []byte{0x09 | rp<<4}, nil, nil

	case "ADD", "ADC", "SUB", "SBB", "ANA", "XRA", "ORA", "CMP":
		r, ok := regCode8[ops[0]]
		if !ok {
			return nil, nil, errOperand(mnemonic, operands)
		}
		base := map[string]byte{"ADD": 0x80, "ADC": 0x88, "SUB": 0x90, "SBB": 0x98, "ANA": 0xA0, "XRA": 0xA8, "ORA": 0xB0, "CMP": 0xB8}[mnemonic]
		return []byte{base | r}, nil, nil

	case "ADI", "ACI", "SUI", "SBI", "ANI", "XRI", "ORI", "CPI":
		v, w, err := EvalImm8(operands[0], lookup)
		if err != nil {
			return nil, nil, wrapEval(err)
		}
		appendWarn(&warnings, w)
		base := map[string]byte{"ADI": 0xC6, "ACI": 0xCE, "SUI": 0xD6, "SBI": 0xDE, "ANI": 0xE6, "XRI": 0xEE, "ORI": 0xF6, "CPI": 0xFE}[mnemonic]
		return []byte{base, v}, warnings, nil

	case "JMP", "CALL":
		v, w, err := EvalAddr(operands[0], lookup)
		if err != nil {
			return nil, nil, wrapEval(err)
		}
		appendWarn(&warnings, w)
		if mnemonic == "JMP" {
			return []byte{0xC3, byte(v), byte(v >> 8)}, warnings, nil
		}
		return []byte{0xCD, byte(v), byte(v >> 8)}, warnings, nil

	case "PUSH", "POP":
		rp, ok := pushPopCode[ops[0]]
		if !ok {
			return nil, nil, errOperand(mnemonic, operands)
		}
		if mnemonic == "PUSH" {
			return []byte{0xC5 | rp<<4}, nil, nil
		}
		return []byte{0xC1 | rp<<4}, nil, nil

	case "IN", "OUT":
		v, w, err := EvalImm8(operands[0], lookup)
		if err != nil {
			return nil, nil, wrapEval(err)
		}
		appendWarn(&warnings, w)
		if mnemonic == "IN" {
			return []byte{0xDB, v}, warnings, nil
		}
		return []byte{0xD3, v}, warnings, nil

	case "RST":
		n, w, err := EvalImm8(operands[0], lookup)
		if err != nil {
			return nil, nil, wrapEval(err)
		}
		appendWarn(&warnings, w)
		if n > 7 {
			return nil, nil, &AsmError{Kind: ErrBadOperand, Message: fmt.Sprintf("RST operand must be 0..7, got %d", n)}
		}
		return []byte{0xC7 | n<<3}, warnings, nil

	default:
		if isConditionalBranch(mnemonic) {
			return encodeConditional(mnemonic, operands, lookup)
		}
		return nil, nil, &AsmError{Kind: ErrUnknownOpcode, Message: fmt.Sprintf("unknown opcode: %s", mnemonic)}
	}
}

func encodeConditional(mnemonic string, operands []string, lookup SymbolLookup) ([]byte, []*AsmError, *AsmError) {
	prefix := mnemonic[:1]
	cc, ok := ccCode[mnemonic[1:]]
	if !ok {
		return nil, nil, &AsmError{Kind: ErrUnknownOpcode, Message: fmt.Sprintf("unknown opcode: %s", mnemonic)}
	}
	switch prefix {
	case "R":
		return []byte{0xC0 | cc<<3}, nil, nil
	case "J":
		v, w, err := EvalAddr(operands[0], lookup)
		if err != nil {
			return nil, nil, wrapEval(err)
		}
		var warnings []*AsmError
		appendWarn(&warnings, w)
		return []byte{0xC2 | cc<<3, byte(v), byte(v >> 8)}, warnings, nil
	case "C":
		v, w, err := EvalAddr(operands[0], lookup)
		if err != nil {
			return nil, nil, wrapEval(err)
		}
		var warnings []*AsmError
		appendWarn(&warnings, w)
		return []byte{0xC4 | cc<<3, byte(v), byte(v >> 8)}, warnings, nil
	}
	return nil, nil, &AsmError{Kind: ErrUnknownOpcode, Message: fmt.Sprintf("unknown opcode: %s", mnemonic)}
}

func errOperand(mnemonic string, operands []string) *AsmError {
	return &AsmError{Kind: ErrBadOperand, Message: fmt.Sprintf("bad operand(s) for %s: %s", mnemonic, strings.Join(operands, ","))}
}

func wrapEval(err error) *AsmError {
	return &AsmError{Kind: ErrUndefinedSymbol, Message: err.Error()}
}

func appendWarn(dst *[]*AsmError, w *AsmError) {
	if w != nil {
		*dst = append(*dst, w)
	}
}

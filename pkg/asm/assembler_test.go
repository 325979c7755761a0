package asm

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// mapFileReader backs AssembleFile in tests without touching disk.
type mapFileReader map[string]string

func (m mapFileReader) ReadFile(path string) (string, error) {
	if s, ok := m[path]; ok {
		return s, nil
	}
	return "", fmt.Errorf("not found: %s", path)
}

func TestAssemblerInstructions(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected []byte
	}{
		{
			name:     "simple NOP",
			source:   ".org 0x8000\nNOP\n",
			expected: []byte{0x00},
		},
		{
			name:     "MOV and MVI",
			source:   ".org 0x8000\nMOV A,B\nMVI B,42\n",
			expected: []byte{0x78, 0x06, 0x2A},
		},
		{
			name:     "LXI and arithmetic",
			source:   ".org 0x8000\nLXI H,0x1234\nADD B\nSUB C\nINR A\nDCR B\n",
			expected: []byte{0x21, 0x34, 0x12, 0x80, 0x91, 0x3C, 0x05},
		},
		{
			name:     "jumps and call",
			source:   ".org 0x8000\nJMP 0x1234\nCALL 0x1234\nRET\n",
			expected: []byte{0xC3, 0x34, 0x12, 0xCD, 0x34, 0x12, 0xC9},
		},
		{
			name:     "conditional branch family",
			source:   ".org 0x8000\nJNZ 0x8010\nCZ 0x8020\nRPE\n",
			expected: []byte{0xC2, 0x10, 0x80, 0xCC, 0x20, 0x80, 0xE8},
		},
		{
			name:     "push pop with PSW",
			source:   ".org 0x8000\nPUSH H\nPOP PSW\n",
			expected: []byte{0xE5, 0xF1},
		},
		{
			name:     "rst",
			source:   ".org 0x8000\nRST 7\n",
			expected: []byte{0xFF},
		},
		{
			name:     "forward reference resolves",
			source:   ".org 0x8000\nJMP target\nNOP\ntarget: HLT\n",
			expected: []byte{0xC3, 0x04, 0x80, 0x00, 0x76},
		},
		{
			name:     "DB mixes strings and numbers",
			source:   ".org 0x8000\nDB 'hi',0x00,1+2\n",
			expected: []byte{'h', 'i', 0x00, 3},
		},
		{
			name:     "DS reserves zero-filled bytes",
			source:   ".org 0x8000\nDS 3\nNOP\n",
			expected: []byte{0x00, 0x00, 0x00, 0x00},
		},
		{
			name:     "DS with fill value",
			source:   ".org 0x8000\nDS 2,0xFF\n",
			expected: []byte{0xFF, 0xFF},
		},
		{
			name:     "equ constant used in operand",
			source:   "PORT = 0x05\n.org 0x8000\nOUT PORT\n",
			expected: []byte{0xD3, 0x05},
		},
		{
			name:     "align pads to boundary",
			source:   ".org 0x8001\n.align 4\nNOP\n",
			expected: []byte{0x00, 0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Assembler{}
			res := a.AssembleString(tt.source)
			if res.HasFatalErrors() {
				t.Fatalf("unexpected errors: %v", res.Errors)
			}
			if !bytes.Equal(res.Binary, tt.expected) {
				t.Errorf("got % X, want % X", res.Binary, tt.expected)
			}
		})
	}
}

func TestAssemblerErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kind   ErrKind
	}{
		{name: "undefined symbol", source: ".org 0x8000\nJMP nowhere\n", kind: ErrUndefinedSymbol},
		{name: "duplicate label", source: ".org 0x8000\nfoo: NOP\nfoo: NOP\n", kind: ErrDuplicateLabel},
		{name: "mov m,m invalid", source: ".org 0x8000\nMOV M,M\n", kind: ErrInvalidMovMM},
		{name: "unknown opcode", source: ".org 0x8000\nFROB A,B\n", kind: ErrUnknownOpcode},
		{name: "bad align", source: ".org 0x8000\n.align 3\n", kind: ErrBadAlign},
		{name: "unterminated macro", source: ".macro foo\nNOP\n", kind: ErrUnterminatedMacro},
		{name: "unterminated loop", source: ".loop 3\nNOP\n", kind: ErrUnterminatedLoop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Assembler{}
			res := a.AssembleString(tt.source)
			if !res.HasFatalErrors() {
				t.Fatalf("expected a fatal error of kind %s, got none", tt.kind)
			}
			found := false
			for _, e := range res.Errors {
				if e.Kind == tt.kind {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error kind %s, got %v", tt.kind, res.Errors)
			}
		})
	}
}

func TestAssemblerTruncationIsWarningNotFatal(t *testing.T) {
	a := &Assembler{}
	res := a.AssembleString(".org 0x8000\nMVI A,0x1FF\n")
	if res.HasFatalErrors() {
		t.Fatalf("truncation should warn, not fail: %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a Truncated warning")
	}
	if res.Warnings[0].Kind != ErrTruncated {
		t.Errorf("got warning kind %s, want Truncated", res.Warnings[0].Kind)
	}
}

func TestAssemblerMacroExpansion(t *testing.T) {
	source := `
.macro double(x)
MVI A,x
ADD A
.endmacro
.org 0x8000
double 5
double 7
`
	a := &Assembler{}
	res := a.AssembleString(source)
	if res.HasFatalErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	want := []byte{0x3E, 5, 0x87, 0x3E, 7, 0x87}
	if !bytes.Equal(res.Binary, want) {
		t.Errorf("got % X, want % X", res.Binary, want)
	}
}

func TestAssemblerLoopExpansion(t *testing.T) {
	source := ".org 0x8000\n.loop 3\nNOP\n.endloop\n"
	a := &Assembler{}
	res := a.AssembleString(source)
	if res.HasFatalErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	want := []byte{0x00, 0x00, 0x00}
	if !bytes.Equal(res.Binary, want) {
		t.Errorf("got % X, want % X", res.Binary, want)
	}
}

func TestAssemblerIfDirective(t *testing.T) {
	source := "FLAG = 1\n.org 0x8000\n.if FLAG\nNOP\n.endif\n.if 0\nHLT\n.endif\nRET\n"
	a := &Assembler{}
	res := a.AssembleString(source)
	if res.HasFatalErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	want := []byte{0x00, 0xC9}
	if !bytes.Equal(res.Binary, want) {
		t.Errorf("got % X, want % X", res.Binary, want)
	}
}

// TestAssemblerLocalLabelScope exercises the property that two @loop labels
// separated by an .org resolve independently within their own scope and
// never cross into each other (spec.md local-label testable property).
func TestAssemblerLocalLabelScope(t *testing.T) {
	source := `
.org 0x8000
@loop: NOP
JMP @loop
.org 0x9000
@loop: HLT
JMP @loop
`
	a := &Assembler{}
	res := a.AssembleString(source)
	if res.HasFatalErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	// first scope: NOP then JMP back to 0x8000
	if !bytes.Equal(res.Binary[0:4], []byte{0x00, 0xC3, 0x00, 0x80}) {
		t.Errorf("first scope mismatch: % X", res.Binary[0:4])
	}
}

func TestAssemblerDebugIndexRecordsLineAddresses(t *testing.T) {
	source := ".org 0x8000\nstart: NOP\nHLT\n"
	a := &Assembler{}
	res := a.AssembleString(source)
	if res.HasFatalErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if res.DebugIndex == nil {
		t.Fatal("expected a debug index on success")
	}
	if res.DebugIndex.Labels["start"] != "0x8000" {
		t.Errorf("got label start=%s, want 0x8000", res.DebugIndex.Labels["start"])
	}
	if got := res.DebugIndex.LineAddresses["<string>:3"]; len(got) != 1 || got[0] != "0x8001" {
		t.Errorf("got line 3 (HLT) addresses %v, want [0x8001]", got)
	}
}

func TestAssemblerMacroInvocationMapsToFirstExpandedAddress(t *testing.T) {
	source := `
.macro pair(n)
MVI A,n
NOP
.endmacro
.org 0x8000
pair 1
`
	a := &Assembler{}
	res := a.AssembleString(source)
	if res.HasFatalErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	// The invocation line ("pair 1") is classified line index 6 (0-based,
	// counting the leading blank line from the raw string literal), i.e.
	// source line 7; its first address is the expansion's first byte.
	addrs := res.DebugIndex.LineAddresses["<string>:7"]
	if len(addrs) == 0 || addrs[0] != "0x8000" {
		t.Errorf("expected the invocation line to map first to 0x8000, got %v", res.DebugIndex.LineAddresses)
	}
}

// TestAssemblerDebugIndexKeysAreRelativeToProjectDir exercises spec.md
// §4.F: once ProjectDir is known, debug-index keys are expressed relative
// to it rather than as the full path include expansion reached them
// through.
func TestAssemblerDebugIndexKeysAreRelativeToProjectDir(t *testing.T) {
	fr := mapFileReader{
		"/project/main.a80":     ".org 0x8000\n.include \"lib/math.a80\"\nHLT\n",
		"/project/lib/math.a80": "NOP\n",
	}
	a := &Assembler{ProjectDir: "/project"}
	res, err := a.AssembleFile(fr, "/project/main.a80")
	if err != nil {
		t.Fatal(err)
	}
	if res.HasFatalErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	var keys []string
	for key := range res.DebugIndex.LineAddresses {
		keys = append(keys, key)
	}

	wantPrefixes := []string{"main.a80:", filepath.Join("lib", "math.a80") + ":"}
	for _, want := range wantPrefixes {
		found := false
		for _, key := range keys {
			if strings.HasPrefix(key, want) {
				found = true
			}
			if strings.HasPrefix(key, "/project/") {
				t.Errorf("key %q still carries the absolute projectDir prefix, want it stripped", key)
			}
		}
		if !found {
			t.Errorf("expected a debug-index key with prefix %q, got %v", want, keys)
		}
	}
}

// TestAsmErrorFormatsAbsolutePath exercises spec.md §6's literal
// "<absolute-path>:<line>: <message>" diagnostic contract.
func TestAsmErrorFormatsAbsolutePath(t *testing.T) {
	e := &AsmError{Kind: ErrUnknownOpcode, Origin: Origin{File: "rel/main.a80", Line: 3}, Message: "bad opcode FOO"}
	got := e.Error()
	if !filepath.IsAbs(strings.SplitN(got, ":", 2)[0]) {
		t.Errorf("expected an absolute path in %q", got)
	}
	if !strings.HasSuffix(got, filepath.Join("rel", "main.a80")+":3: bad opcode FOO") {
		t.Errorf("got %q, want it to end with rel/main.a80:3: bad opcode FOO", got)
	}
}

// TestAsmErrorLeavesSyntheticStringOriginAlone confirms AssembleString's
// "<string>" origin isn't mangled into a bogus cwd-anchored path.
func TestAsmErrorLeavesSyntheticStringOriginAlone(t *testing.T) {
	e := &AsmError{Kind: ErrBadOperand, Origin: Origin{File: "<string>", Line: 1}, Message: "bad operand"}
	want := "<string>:1: bad operand"
	if got := e.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

package asm

import "testing"

func TestParseMacroHeaderParenForm(t *testing.T) {
	header := &Line{Operands: []string{"double(x,y)"}}
	name, params, err := parseMacroHeader(header)
	if err != nil {
		t.Fatal(err)
	}
	if name != "double" {
		t.Errorf("got name %q, want double", name)
	}
	if len(params) != 2 || params[0] != "x" || params[1] != "y" {
		t.Errorf("got params %v, want [x y]", params)
	}
}

func TestParseMacroHeaderSpaceForm(t *testing.T) {
	header := &Line{Operands: []string{"double", "x", "y"}}
	name, params, err := parseMacroHeader(header)
	if err != nil {
		t.Fatal(err)
	}
	if name != "double" {
		t.Errorf("got name %q, want double", name)
	}
	if len(params) != 2 || params[0] != "x" || params[1] != "y" {
		t.Errorf("got params %v, want [x y]", params)
	}
}

func TestRewriteLocalWordRewritesEachOccurrence(t *testing.T) {
	got := rewriteLocalWord("JMP @loop+@end-1", 7)
	want := "JMP loop.7+end.7-1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSubstituteWordRespectsBoundaries(t *testing.T) {
	got := substituteWord("MVI A,x", "x", "42")
	if got != "MVI A,42" {
		t.Errorf("got %q", got)
	}
	// "xx" must not be substituted as two copies of "x".
	got = substituteWord("MVI A,xx", "x", "42")
	if got != "MVI A,xx" {
		t.Errorf("word-boundary violation: got %q", got)
	}
}

// TestMacroIdempotence exercises the property that two invocations of the
// same macro at different call sites produce identical body bytes but
// distinct, non-colliding local labels.
func TestMacroIdempotence(t *testing.T) {
	source := `
.macro spin(n)
@wait: MVI A,n
JMP @wait
.endmacro
.org 0x8000
spin 1
spin 2
`
	a := &Assembler{}
	res := a.AssembleString(source)
	if res.HasFatalErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	// Each expansion: MVI A,n (2 bytes) + JMP back to its own @wait (3 bytes) = 5 bytes.
	want := []byte{
		0x3E, 0x01, 0xC3, 0x00, 0x80, // first spin(1): @wait at 0x8000, JMP 0x8000
		0x3E, 0x02, 0xC3, 0x05, 0x80, // second spin(2): @wait at 0x8005, JMP 0x8005
	}
	if len(res.Binary) != len(want) {
		t.Fatalf("got %d bytes, want %d: % X", len(res.Binary), len(want), res.Binary)
	}
	for i := range want {
		if res.Binary[i] != want[i] {
			t.Errorf("byte %d: got 0x%02X, want 0x%02X (full: % X)", i, res.Binary[i], want[i], res.Binary)
			break
		}
	}
}

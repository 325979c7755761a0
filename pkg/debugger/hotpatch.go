package debugger

import "github.com/vec06c/devkit/pkg/memory"

// HotPatch diffs old against new, byte by byte, and writes each differing
// span of new into mem at loadOffset+index, returning the number of
// contiguous differing spans and the total bytes changed (spec.md §4.I).
// It touches only Memory: CPU registers and the breakpoint table are
// untouched by construction, since neither is passed in.
func HotPatch(mem *memory.Memory, old, new []byte, loadOffset uint16) (spans int, bytesChanged int) {
	inSpan := false
	for i := 0; i < len(new); i++ {
		differs := true
		if i < len(old) {
			differs = old[i] != new[i]
		}
		if !differs {
			inSpan = false
			continue
		}
		mem.Write(loadOffset+uint16(i), new[i], memory.CodeData)
		bytesChanged++
		if !inSpan {
			spans++
			inSpan = true
		}
	}
	return spans, bytesChanged
}

package asm

import (
	"fmt"
	"os"
)

// readFile reads a source file from disk, wrapping os-level errors the same
// way the teacher's own z80asm.ReadFile does.
func readFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return string(content), nil
}

// Package project loads the Project file that anchors a v06a/v06e
// invocation: the assembler source, optional ROM/debug-index output paths,
// and a small settings block (spec.md §6).
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings holds the optional per-project toggles named in spec.md §6.
type Settings struct {
	RomHotReload bool `json:"RomHotReload"`
}

// Project is the `{ name, asmPath, romPath?, debugPath?, settings? }`
// record of spec.md §6. AsmPath/RomPath/DebugPath may be given relative to
// the project file itself; Load joins them onto the project file's
// directory, so they are absolute whenever the project file's path is.
type Project struct {
	Name      string   `json:"name"`
	AsmPath   string   `json:"asmPath"`
	RomPath   string   `json:"romPath,omitempty"`
	DebugPath string   `json:"debugPath,omitempty"`
	Settings  Settings `json:"settings,omitempty"`
}

// Load reads and decodes the project file at path, then resolves every
// relative field against the project file's own directory.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project: reading %s: %w", path, err)
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("project: parsing %s: %w", path, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("project: %s: missing required field \"name\"", path)
	}
	if p.AsmPath == "" {
		return nil, fmt.Errorf("project: %s: missing required field \"asmPath\"", path)
	}

	dir := filepath.Dir(path)
	p.AsmPath = anchor(dir, p.AsmPath)
	if p.RomPath != "" {
		p.RomPath = anchor(dir, p.RomPath)
	} else {
		p.RomPath = defaultOutput(p.AsmPath, ".bin")
	}
	if p.DebugPath != "" {
		p.DebugPath = anchor(dir, p.DebugPath)
	} else {
		p.DebugPath = defaultOutput(p.AsmPath, ".debug.json")
	}
	return &p, nil
}

// anchor resolves a possibly-relative path against dir, leaving an
// already-absolute path untouched.
func anchor(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// defaultOutput derives an output path from the source path by swapping
// its extension, mirroring the CLI's own default-output-name convention.
func defaultOutput(asmPath, newExt string) string {
	ext := filepath.Ext(asmPath)
	return asmPath[:len(asmPath)-len(ext)] + newExt
}

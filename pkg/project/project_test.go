package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempProject(t *testing.T, dir, json string) string {
	t.Helper()
	path := filepath.Join(dir, "game.v06proj")
	if err := os.WriteFile(path, []byte(json), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := writeTempProject(t, dir, `{
		"name": "demo",
		"asmPath": "src/main.a80",
		"settings": { "RomHotReload": true }
	}`)

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantAsm := filepath.Join(dir, "src/main.a80")
	if p.AsmPath != wantAsm {
		t.Errorf("got AsmPath=%s, want %s", p.AsmPath, wantAsm)
	}
	wantRom := filepath.Join(dir, "src/main.bin")
	if p.RomPath != wantRom {
		t.Errorf("got default RomPath=%s, want %s", p.RomPath, wantRom)
	}
	wantDebug := filepath.Join(dir, "src/main.debug.json")
	if p.DebugPath != wantDebug {
		t.Errorf("got default DebugPath=%s, want %s", p.DebugPath, wantDebug)
	}
	if !p.Settings.RomHotReload {
		t.Error("expected RomHotReload to decode true")
	}
}

func TestLoadHonorsExplicitOutputPaths(t *testing.T) {
	dir := t.TempDir()
	path := writeTempProject(t, dir, `{
		"name": "demo",
		"asmPath": "main.a80",
		"romPath": "out/demo.rom",
		"debugPath": "out/demo.dbg.json"
	}`)

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.RomPath != filepath.Join(dir, "out/demo.rom") {
		t.Errorf("got RomPath=%s", p.RomPath)
	}
	if p.DebugPath != filepath.Join(dir, "out/demo.dbg.json") {
		t.Errorf("got DebugPath=%s", p.DebugPath)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	dir := t.TempDir()

	path := writeTempProject(t, dir, `{ "asmPath": "main.a80" }`)
	if _, err := Load(path); err == nil {
		t.Error("expected an error for a project file missing \"name\"")
	}

	path2 := filepath.Join(dir, "noasm.v06proj")
	os.WriteFile(path2, []byte(`{ "name": "demo" }`), 0644)
	if _, err := Load(path2); err == nil {
		t.Error("expected an error for a project file missing \"asmPath\"")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeTempProject(t, dir, `{ not json `)
	if _, err := Load(path); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

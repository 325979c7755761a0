package facade

import (
	"testing"

	"github.com/vec06c/devkit/pkg/cpu"
	"github.com/vec06c/devkit/pkg/debugger"
	"github.com/vec06c/devkit/pkg/memory"
)

func newTestFacade(rom []byte, loadAt uint16) *Facade {
	mem := memory.New()
	mem.LoadAt(loadAt, rom)
	c := cpu.New(mem)
	c.PC = loadAt
	dbg := debugger.New(c, mem)
	return New(mem, c, dbg, rom, loadAt)
}

func TestDispatchGetCPUState(t *testing.T) {
	f := newTestFacade([]byte{0x00}, 0x0100)
	f.CPU.A = 0x42
	resp, err := f.Dispatch(&GetCPUStateReq{})
	if err != nil {
		t.Fatal(err)
	}
	state := resp.(*GetCPUStateResp).State
	if state.A != 0x42 || state.PC != 0x0100 {
		t.Errorf("got %+v", state)
	}
}

func TestDispatchSetAndGetMemRange(t *testing.T) {
	f := newTestFacade([]byte{0x00}, 0x0100)
	_, err := f.Dispatch(&SetMemReq{Addr: 0x2000, Data: []byte{1, 2, 3}, Space: memory.CodeData})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := f.Dispatch(&GetMemRangeReq{Start: 0x2000, Len: 3})
	if err != nil {
		t.Fatal(err)
	}
	data := resp.(*GetMemRangeResp).Data
	if len(data) != 3 || data[0] != 1 || data[1] != 2 || data[2] != 3 {
		t.Errorf("got %v, want [1 2 3]", data)
	}
}

func TestDispatchExecuteInstr(t *testing.T) {
	f := newTestFacade([]byte{0x3E, 0x05}, 0x0100) // MVI A,5
	resp, err := f.Dispatch(&ExecuteInstrReq{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.(*ExecuteInstrResp).Cycles != 7 {
		t.Errorf("got %d cycles, want 7", resp.(*ExecuteInstrResp).Cycles)
	}
	if f.CPU.A != 5 {
		t.Errorf("got A=%d, want 5", f.CPU.A)
	}
}

func TestDispatchExecuteFrameNoBreaksIgnoresBreakpoints(t *testing.T) {
	f := newTestFacade([]byte{0x00, 0x00, 0x00, 0x00}, 0x0100)
	f.Dbg.BreakpointAdd(0x0101, true)
	resp, err := f.Dispatch(&ExecuteFrameNoBreaksReq{CycleBudget: 16})
	if err != nil {
		t.Fatal(err)
	}
	if resp.(*ExecuteFrameNoBreaksResp).CyclesConsumed < 16 {
		t.Errorf("expected the frame to ignore the breakpoint and run the full budget, got %+v", resp)
	}
}

func TestDispatchBreakpointAddAndDelAll(t *testing.T) {
	f := newTestFacade([]byte{0x00}, 0x0100)
	resp, err := f.Dispatch(&DebugBreakpointAddReq{Addr: 0x0200, Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.(*DebugBreakpointAddResp).Breakpoint.Addr != 0x0200 {
		t.Errorf("got %+v", resp)
	}
	if _, err := f.Dispatch(&DebugBreakpointDelAllReq{}); err != nil {
		t.Fatal(err)
	}
	if len(f.Dbg.Breakpoints()) != 0 {
		t.Error("expected DelAll to clear the breakpoint table")
	}
}

func TestDispatchGetInstr(t *testing.T) {
	f := newTestFacade([]byte{0xC3, 0x34, 0x12}, 0x0100) // JMP 0x1234
	resp, err := f.Dispatch(&GetInstrReq{Addr: 0x0100})
	if err != nil {
		t.Fatal(err)
	}
	got := resp.(*GetInstrResp)
	want := []byte{0xC3, 0x34, 0x12}
	if len(got.Bytes) != len(want) {
		t.Fatalf("got %d bytes, want %d", len(got.Bytes), len(want))
	}
	for i := range want {
		if got.Bytes[i] != want[i] {
			t.Errorf("byte %d: got 0x%02X, want 0x%02X", i, got.Bytes[i], want[i])
		}
	}
}

func TestDispatchRestartReloadsROM(t *testing.T) {
	f := newTestFacade([]byte{0x3E, 0x05}, 0x0100)
	f.Dispatch(&ExecuteInstrReq{})
	f.Mem.Write(0x0100, 0xFF, memory.CodeData)
	resp, err := f.Dispatch(&RestartReq{})
	if err != nil {
		t.Fatal(err)
	}
	_ = resp
	if f.CPU.A != 0 {
		t.Errorf("expected Reset to clear A, got %d", f.CPU.A)
	}
	if f.CPU.PC != 0x0100 {
		t.Errorf("got PC=0x%04X, want 0x0100", f.CPU.PC)
	}
	if got := f.Mem.Read(0x0100, memory.CodeData); got != 0x3E {
		t.Errorf("expected the ROM image to be reloaded, got 0x%02X", got)
	}
}

func TestDispatchUnknownRequestErrors(t *testing.T) {
	f := newTestFacade([]byte{0x00}, 0x0100)
	if _, err := f.Dispatch(struct{ Request }{}); err == nil {
		t.Error("expected an error for an unrecognized request type")
	}
}

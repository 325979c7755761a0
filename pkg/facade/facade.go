// Package facade exposes the CPU, Memory, and Debugger behind a single
// synchronous request/response dispatcher, per spec.md §4.J. Rather than
// the teacher's stringly-tagged `switch parts[0]` command loop, every
// capability is its own concrete request type implementing the Request
// sum type, carrying its own response type — callers (an editor
// extension, a test harness) get compile-time checked payloads instead of
// parsing command strings.
package facade

import (
	"fmt"

	"github.com/vec06c/devkit/pkg/cpu"
	"github.com/vec06c/devkit/pkg/debugger"
	"github.com/vec06c/devkit/pkg/memory"
)

// Facade owns one CPU+Memory+Debugger instance and dispatches requests
// against it. Per spec.md §5, it is not safe for concurrent use.
type Facade struct {
	CPU *cpu.CPU
	Mem *memory.Memory
	Dbg *debugger.Debugger

	romImage  []byte
	romOffset uint16
}

// New wires a Facade around a freshly constructed CPU/Memory/Debugger
// triple, recording the ROM image and its load offset for REQ_RESTART.
func New(mem *memory.Memory, c *cpu.CPU, dbg *debugger.Debugger, rom []byte, romOffset uint16) *Facade {
	return &Facade{CPU: c, Mem: mem, Dbg: dbg, romImage: rom, romOffset: romOffset}
}

// Request is the sum type of every capability the façade exposes. It is
// deliberately closed: Dispatch's type switch has a default case, so an
// unrecognized concrete type fails at the call site instead of silently
// doing nothing.
type Request interface{ isRequest() }

// Response is the sum type of every request's result.
type Response interface{ isResponse() }

// --- REQ_GET_CPU_STATE ---

type GetCPUStateReq struct{}

func (*GetCPUStateReq) isRequest() {}

type CPUState struct {
	PC, SP                              uint16
	A, B, C, D, E, H, L                 byte
	FlagS, FlagZ, FlagAC, FlagP, FlagCY bool
	Halted                              bool
	Cycles                              uint64
}

type GetCPUStateResp struct{ State CPUState }

func (*GetCPUStateResp) isResponse() {}

// --- REQ_GET_MEM_RANGE ---

type GetMemRangeReq struct {
	Start uint16
	Len   uint16
}

func (*GetMemRangeReq) isRequest() {}

type GetMemRangeResp struct{ Data []byte }

func (*GetMemRangeResp) isResponse() {}

// --- REQ_SET_MEM ---

type SetMemReq struct {
	Addr  uint16
	Data  []byte
	Space memory.AddressSpace
}

func (*SetMemReq) isRequest() {}

type SetMemResp struct{ BytesWritten int }

func (*SetMemResp) isResponse() {}

// --- REQ_RESTART ---

type RestartReq struct{}

func (*RestartReq) isRequest() {}

type RestartResp struct{}

func (*RestartResp) isResponse() {}

// --- REQ_EXECUTE_INSTR ---

type ExecuteInstrReq struct{}

func (*ExecuteInstrReq) isRequest() {}

type ExecuteInstrResp struct {
	Cycles uint64
	Reads  []uint16
	Writes []uint16
}

func (*ExecuteInstrResp) isResponse() {}

// --- REQ_EXECUTE_FRAME_NO_BREAKS ---

// ExecuteFrameNoBreaksReq runs a fixed cycle budget while ignoring the
// breakpoint table entirely, for a host that just wants to advance one
// display frame's worth of execution.
type ExecuteFrameNoBreaksReq struct{ CycleBudget uint64 }

func (*ExecuteFrameNoBreaksReq) isRequest() {}

type ExecuteFrameNoBreaksResp struct{ CyclesConsumed uint64 }

func (*ExecuteFrameNoBreaksResp) isResponse() {}

// --- REQ_DEBUG_BREAKPOINT_ADD / _DEL_ALL ---

type DebugBreakpointAddReq struct {
	Addr    uint16
	Enabled bool
}

func (*DebugBreakpointAddReq) isRequest() {}

type DebugBreakpointAddResp struct{ Breakpoint debugger.Breakpoint }

func (*DebugBreakpointAddResp) isResponse() {}

type DebugBreakpointDelAllReq struct{}

func (*DebugBreakpointDelAllReq) isRequest() {}

type DebugBreakpointDelAllResp struct{}

func (*DebugBreakpointDelAllResp) isResponse() {}

// --- REQ_GET_INSTR ---

type GetInstrReq struct{ Addr uint16 }

func (*GetInstrReq) isRequest() {}

type GetInstrResp struct {
	Addr  uint16
	Bytes []byte
}

func (*GetInstrResp) isResponse() {}

// --- REQ_DEBUG_MEM_ACCESS_LOG_GET ---

type DebugMemAccessLogGetReq struct{}

func (*DebugMemAccessLogGetReq) isRequest() {}

type DebugMemAccessLogGetResp struct {
	Reads  []uint16
	Writes []uint16
}

func (*DebugMemAccessLogGetResp) isResponse() {}

// Dispatch runs req synchronously against the façade's CPU/Memory/Debugger
// and returns its response, or an error for a request type Dispatch
// doesn't recognize.
func (f *Facade) Dispatch(req Request) (Response, error) {
	switch r := req.(type) {
	case *GetCPUStateReq:
		return f.getCPUState(), nil
	case *GetMemRangeReq:
		return f.getMemRange(r), nil
	case *SetMemReq:
		return f.setMem(r), nil
	case *RestartReq:
		return f.restart(), nil
	case *ExecuteInstrReq:
		return f.executeInstr(), nil
	case *ExecuteFrameNoBreaksReq:
		return f.executeFrameNoBreaks(r), nil
	case *DebugBreakpointAddReq:
		return f.breakpointAdd(r), nil
	case *DebugBreakpointDelAllReq:
		f.Dbg.BreakpointDelAll()
		return &DebugBreakpointDelAllResp{}, nil
	case *GetInstrReq:
		return f.getInstr(r), nil
	case *DebugMemAccessLogGetReq:
		reads, writes := f.Dbg.AccessLogWindow()
		return &DebugMemAccessLogGetResp{Reads: reads, Writes: writes}, nil
	default:
		return nil, fmt.Errorf("facade: unhandled request type %T", req)
	}
}

func (f *Facade) getCPUState() *GetCPUStateResp {
	c := f.CPU
	return &GetCPUStateResp{State: CPUState{
		PC: c.PC, SP: c.SP,
		A: c.A, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		FlagS: c.FlagS, FlagZ: c.FlagZ, FlagAC: c.FlagAC, FlagP: c.FlagP, FlagCY: c.FlagCY,
		Halted: c.Halted, Cycles: c.Cycles,
	}}
}

func (f *Facade) getMemRange(r *GetMemRangeReq) *GetMemRangeResp {
	return &GetMemRangeResp{Data: f.Mem.DumpMain(r.Start, r.Len)}
}

func (f *Facade) setMem(r *SetMemReq) *SetMemResp {
	for i, b := range r.Data {
		f.Mem.Write(r.Addr+uint16(i), b, r.Space)
	}
	return &SetMemResp{BytesWritten: len(r.Data)}
}

func (f *Facade) restart() *RestartResp {
	f.CPU.Reset()
	f.Mem.LoadAt(f.romOffset, f.romImage)
	f.CPU.PC = f.romOffset
	return &RestartResp{}
}

func (f *Facade) executeInstr() *ExecuteInstrResp {
	cycles, reads, writes := f.Dbg.StepInto()
	return &ExecuteInstrResp{Cycles: cycles, Reads: reads, Writes: writes}
}

func (f *Facade) executeFrameNoBreaks(r *ExecuteFrameNoBreaksReq) *ExecuteFrameNoBreaksResp {
	var consumed uint64
	for consumed < r.CycleBudget && !f.CPU.Halted {
		consumed += f.CPU.Step()
	}
	return &ExecuteFrameNoBreaksResp{CyclesConsumed: consumed}
}

func (f *Facade) breakpointAdd(r *DebugBreakpointAddReq) *DebugBreakpointAddResp {
	bp := f.Dbg.BreakpointAdd(r.Addr, r.Enabled)
	return &DebugBreakpointAddResp{Breakpoint: *bp}
}

func (f *Facade) getInstr(r *GetInstrReq) *GetInstrResp {
	length := cpu.InstrLength(f.Mem.Read(r.Addr, memory.CodeData))
	bytes := make([]byte, length)
	for i := 0; i < length; i++ {
		bytes[i] = f.Mem.Read(r.Addr+uint16(i), memory.CodeData)
	}
	return &GetInstrResp{Addr: r.Addr, Bytes: bytes}
}

// Package debugger provides headless debugging primitives over a CPU and
// its Memory: breakpoints, step-into/step-over/step-out control, and a
// memory-access log for UI highlighting. It has no interactive loop of its
// own — cmd/v06e wraps this API in a thin REPL.
package debugger

import (
	"github.com/vec06c/devkit/pkg/cpu"
	"github.com/vec06c/devkit/pkg/memory"
)

// Breakpoint is one entry of the debugger's address-keyed breakpoint
// table (spec's "{ addr, enabled, autoDel, optional comment }").
type Breakpoint struct {
	Addr    uint16
	Enabled bool
	AutoDel bool
	Comment string
}

// maxRunSteps bounds stepOver/stepOut/Continue so a breakpoint that's
// never reached (e.g. a return address the program never revisits) can't
// hang the debugger forever.
const maxRunSteps = 1_000_000

// Debugger wraps a CPU and Memory with breakpoint and step-control state.
type Debugger struct {
	CPU *cpu.CPU
	Mem *memory.Memory

	breakpoints map[uint16]*Breakpoint

	accumReads  map[uint16]struct{}
	accumWrites map[uint16]struct{}
}

// New returns a Debugger with no breakpoints set.
func New(c *cpu.CPU, mem *memory.Memory) *Debugger {
	return &Debugger{
		CPU:         c,
		Mem:         mem,
		breakpoints: map[uint16]*Breakpoint{},
		accumReads:  map[uint16]struct{}{},
		accumWrites: map[uint16]struct{}{},
	}
}

// BreakpointAdd inserts or updates the breakpoint at addr; idempotent on
// address, per spec.md §4.I.
func (d *Debugger) BreakpointAdd(addr uint16, enabled bool) *Breakpoint {
	if bp, ok := d.breakpoints[addr]; ok {
		bp.Enabled = enabled
		return bp
	}
	bp := &Breakpoint{Addr: addr, Enabled: enabled}
	d.breakpoints[addr] = bp
	return bp
}

// BreakpointDelAll clears every breakpoint, user-set and one-shot alike.
func (d *Debugger) BreakpointDelAll() {
	d.breakpoints = map[uint16]*Breakpoint{}
}

// Breakpoints returns the current breakpoint table for inspection.
func (d *Debugger) Breakpoints() map[uint16]*Breakpoint {
	return d.breakpoints
}

// hitBreakpoint reports the enabled breakpoint at the CPU's current PC, if
// any, removing it first when it is autoDel.
func (d *Debugger) hitBreakpoint() (*Breakpoint, bool) {
	bp, ok := d.breakpoints[d.CPU.PC]
	if !ok || !bp.Enabled {
		return nil, false
	}
	if bp.AutoDel {
		delete(d.breakpoints, bp.Addr)
	}
	return bp, true
}

// step executes exactly one instruction and returns its cycle cost along
// with the data addresses it read and wrote, excluding instruction fetch
// (spec.md §4.I's memoryAccessLog). The accumulated access-log window is
// updated as a side effect.
func (d *Debugger) step() (cycles uint64, reads, writes []uint16) {
	d.Mem.AccessLog() // drop anything left over from a prior peek
	cycles = d.CPU.Step()
	rawReads, rawWrites := d.Mem.AccessLog()
	fetched := make(map[uint16]bool, len(d.CPU.FetchAddrs()))
	for _, a := range d.CPU.FetchAddrs() {
		fetched[a] = true
	}
	for _, a := range rawReads {
		if !fetched[a] {
			reads = append(reads, a)
			d.accumReads[a] = struct{}{}
		}
	}
	writes = rawWrites
	for _, a := range writes {
		d.accumWrites[a] = struct{}{}
	}
	return cycles, reads, writes
}

// StepInto runs exactly one instruction.
func (d *Debugger) StepInto() (cycles uint64, reads, writes []uint16) {
	return d.step()
}

// instrLenIfCallOrRST reports the byte length of the instruction at op if
// it is CALL or one of the eight RST variants, the only opcodes stepOver
// treats specially.
func instrLenIfCallOrRST(op byte) (length int, ok bool) {
	if op == 0xCD {
		return 3, true
	}
	if op&0xC7 == 0xC7 {
		return 1, true
	}
	return 0, false
}

// StepOver runs one instruction, but if it is a CALL or RST, runs until
// control returns to just past it instead of descending into the callee
// (spec.md §4.I).
func (d *Debugger) StepOver() (cycles uint64, reads, writes []uint16) {
	op := d.Mem.Read(d.CPU.PC, memory.CodeData)
	d.Mem.AccessLog() // discard the peek's own footprint

	length, isCall := instrLenIfCallOrRST(op)
	if !isCall {
		return d.step()
	}

	target := d.CPU.PC + uint16(length)
	d.breakpoints[target] = &Breakpoint{Addr: target, Enabled: true, AutoDel: true}
	return d.runUntilStop()
}

// StepOut runs until the current function returns to its caller, by
// one-shotting a breakpoint at the address on top of the stack.
func (d *Debugger) StepOut() (cycles uint64, reads, writes []uint16) {
	lo := d.Mem.Read(d.CPU.SP, memory.Stack)
	hi := d.Mem.Read(d.CPU.SP+1, memory.Stack)
	d.Mem.AccessLog() // discard the peek's own footprint

	target := uint16(hi)<<8 | uint16(lo)
	d.breakpoints[target] = &Breakpoint{Addr: target, Enabled: true, AutoDel: true}
	return d.runUntilStop()
}

// runUntilStop steps until an enabled breakpoint fires, the CPU halts, or
// maxRunSteps is exceeded, accumulating cycles and access-log entries
// across every step taken.
func (d *Debugger) runUntilStop() (totalCycles uint64, allReads, allWrites []uint16) {
	for i := 0; i < maxRunSteps; i++ {
		c, r, w := d.step()
		totalCycles += c
		allReads = append(allReads, r...)
		allWrites = append(allWrites, w...)
		if _, hit := d.hitBreakpoint(); hit {
			break
		}
		if d.CPU.Halted {
			break
		}
	}
	return
}

// Continue runs until an enabled breakpoint fires or the CPU halts,
// checking for a breakpoint at the current PC before executing anything
// (spec.md §4.I: "breakpoint evaluation happens before fetching the
// instruction").
func (d *Debugger) Continue() (totalCycles uint64, allReads, allWrites []uint16, hit *Breakpoint) {
	if bp, ok := d.hitBreakpoint(); ok {
		return 0, nil, nil, bp
	}
	for i := 0; i < maxRunSteps; i++ {
		c, r, w := d.step()
		totalCycles += c
		allReads = append(allReads, r...)
		allWrites = append(allWrites, w...)
		if d.CPU.Halted {
			return totalCycles, allReads, allWrites, nil
		}
		if bp, ok := d.hitBreakpoint(); ok {
			return totalCycles, allReads, allWrites, bp
		}
	}
	return totalCycles, allReads, allWrites, nil
}

// AccessLogWindow drains the addresses read and written since the last
// call, for UI highlighting across however many steps happened in between.
func (d *Debugger) AccessLogWindow() (reads, writes []uint16) {
	for a := range d.accumReads {
		reads = append(reads, a)
	}
	for a := range d.accumWrites {
		writes = append(writes, a)
	}
	d.accumReads = map[uint16]struct{}{}
	d.accumWrites = map[uint16]struct{}{}
	return reads, writes
}

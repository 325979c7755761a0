package cpu

import "github.com/vec06c/devkit/pkg/memory"

// execute decodes and runs one opcode already fetched from PC-1, returning
// its cycle cost. Irregular single-byte opcodes are matched first; the
// remaining opcode space decodes by Table 1's regular bit-field patterns
// (quadrant by quadrant) rather than one case per encoding, since the 8080
// instruction set is built almost entirely from a handful of such fields.
func (c *CPU) execute(op byte) uint64 {
	switch op {
	case 0x00: // NOP
		return 4
	case 0x07: // RLC
		cy := c.A&0x80 != 0
		c.A = c.A<<1 | b2u(cy)
		c.FlagCY = cy
		return 4
	case 0x0F: // RRC
		cy := c.A&0x01 != 0
		c.A = c.A>>1 | b2u(cy)<<7
		c.FlagCY = cy
		return 4
	case 0x17: // RAL
		cy := c.A&0x80 != 0
		c.A = c.A<<1 | b2u(c.FlagCY)
		c.FlagCY = cy
		return 4
	case 0x1F: // RAR
		cy := c.A&0x01 != 0
		c.A = c.A>>1 | b2u(c.FlagCY)<<7
		c.FlagCY = cy
		return 4
	case 0x27: // DAA
		c.daa()
		return 4
	case 0x2F: // CMA
		c.A = ^c.A
		return 4
	case 0x37: // STC
		c.FlagCY = true
		return 4
	case 0x3F: // CMC
		c.FlagCY = !c.FlagCY
		return 4
	case 0x22: // SHLD addr
		addr := c.fetchWord()
		c.mem.Write(addr, c.L, memory.CodeData)
		c.mem.Write(addr+1, c.H, memory.CodeData)
		return 16
	case 0x2A: // LHLD addr
		addr := c.fetchWord()
		c.L = c.mem.Read(addr, memory.CodeData)
		c.H = c.mem.Read(addr+1, memory.CodeData)
		return 16
	case 0x32: // STA addr
		addr := c.fetchWord()
		c.mem.Write(addr, c.A, memory.CodeData)
		return 13
	case 0x3A: // LDA addr
		addr := c.fetchWord()
		c.A = c.mem.Read(addr, memory.CodeData)
		return 13
	case 0x76: // HLT
		c.Halted = true
		return 7
	case 0xC3: // JMP addr
		c.PC = c.fetchWord()
		return 10
	case 0xC9: // RET
		c.PC = c.pop16()
		return 10
	case 0xCD: // CALL addr
		addr := c.fetchWord()
		c.push16(c.PC)
		c.PC = addr
		return 17
	case 0xD3: // OUT port
		port := c.fetchByte()
		c.OutFunc(port, c.A)
		return 10
	case 0xDB: // IN port
		port := c.fetchByte()
		c.A = c.InFunc(port)
		return 10
	case 0xE3: // XTHL
		lo := c.mem.Read(c.SP, memory.Stack)
		hi := c.mem.Read(c.SP+1, memory.Stack)
		c.mem.Write(c.SP, c.L, memory.Stack)
		c.mem.Write(c.SP+1, c.H, memory.Stack)
		c.L, c.H = lo, hi
		return 18
	case 0xE9: // PCHL
		c.PC = c.HL()
		return 5
	case 0xEB: // XCHG
		c.H, c.L, c.D, c.E = c.D, c.E, c.H, c.L
		return 4
	case 0xF3: // DI
		c.IFF = false
		return 4
	case 0xF9: // SPHL
		c.SP = c.HL()
		return 5
	case 0xFB: // EI
		c.IFF = true
		return 4
	}

	switch {
	case op&0xC0 == 0x40: // MOV r,r'  01 ddd sss
		d, s := (op>>3)&0x07, op&0x07
		v := c.reg(s)
		c.setReg(d, v)
		if d == 6 || s == 6 {
			return 7
		}
		return 5

	case op&0xC0 == 0x80: // ALU A,r  10 aaa sss
		code, s := (op>>3)&0x07, op&0x07
		cost := uint64(4)
		if s == 6 {
			cost = 7
		}
		c.aluOp(code, c.reg(s))
		return cost

	case op&0xC7 == 0x04: // INR r  00 rrr 100
		r := (op >> 3) & 0x07
		c.setReg(r, c.inr8(c.reg(r)))
		if r == 6 {
			return 10
		}
		return 5

	case op&0xC7 == 0x05: // DCR r  00 rrr 101
		r := (op >> 3) & 0x07
		c.setReg(r, c.dcr8(c.reg(r)))
		if r == 6 {
			return 10
		}
		return 5

	case op&0xC7 == 0x06: // MVI r,d8  00 rrr 110
		r := (op >> 3) & 0x07
		v := c.fetchByte()
		c.setReg(r, v)
		if r == 6 {
			return 10
		}
		return 7

	case op&0xC7 == 0xC6: // ALU A,d8  11 aaa 110
		code := (op >> 3) & 0x07
		v := c.fetchByte()
		c.aluOp(code, v)
		return 7

	case op&0xC7 == 0xC7: // RST n  11 nnn 111
		n := (op >> 3) & 0x07
		c.push16(c.PC)
		c.PC = uint16(n) * 8
		return 11

	case op&0xC7 == 0xC0: // Rcc  11 ccc 000
		cc := (op >> 3) & 0x07
		if c.condTrue(cc) {
			c.PC = c.pop16()
			return 11
		}
		return 5

	case op&0xC7 == 0xC2: // Jcc addr  11 ccc 010
		cc := (op >> 3) & 0x07
		addr := c.fetchWord()
		if c.condTrue(cc) {
			c.PC = addr
		}
		return 10

	case op&0xC7 == 0xC4: // Ccc addr  11 ccc 100
		cc := (op >> 3) & 0x07
		addr := c.fetchWord()
		if c.condTrue(cc) {
			c.push16(c.PC)
			c.PC = addr
			return 17
		}
		return 11

	case op&0xCF == 0x01: // LXI rp,d16  00 rp0 001
		rp := (op >> 4) & 0x03
		c.setRp(rp, c.fetchWord())
		return 10

	case op&0xCF == 0x03: // INX rp  00 rp0 011
		rp := (op >> 4) & 0x03
		c.setRp(rp, c.rp(rp)+1)
		return 5

	case op&0xCF == 0x0B: // DCX rp  00 rp0 1011
		rp := (op >> 4) & 0x03
		c.setRp(rp, c.rp(rp)-1)
		return 5

	case op&0xCF == 0x09: // DAD rp  00 rp1 001
		rp := (op >> 4) & 0x03
		sum := uint32(c.HL()) + uint32(c.rp(rp))
		c.FlagCY = sum > 0xFFFF
		c.SetHL(uint16(sum))
		return 10

	case op&0xCF == 0x02: // STAX B/D  00 rp0 010
		rp := (op >> 4) & 0x03
		c.mem.Write(c.rp(rp), c.A, memory.CodeData)
		return 7

	case op&0xCF == 0x0A: // LDAX B/D  00 rp0 1010
		rp := (op >> 4) & 0x03
		c.A = c.mem.Read(c.rp(rp), memory.CodeData)
		return 7

	case op&0xCF == 0xC5: // PUSH rp  11 rp0 101
		rp := (op >> 4) & 0x03
		c.push16(c.pushPopGet(rp))
		return 11

	case op&0xCF == 0xC1: // POP rp  11 rp0 001
		rp := (op >> 4) & 0x03
		c.pushPopSet(rp, c.pop16())
		return 10
	}

	c.Faults = append(c.Faults, Fault{PC: c.PC - 1, Opcode: op})
	return 4
}

// aluOp dispatches the eight ADD/ADC/SUB/SBB/ANA/XRA/ORA/CMP operations
// that share the 10 aaa sss and 11 aaa 110 encodings.
func (c *CPU) aluOp(code byte, v byte) {
	switch code {
	case 0:
		c.A = c.addSet(c.A, v, false)
	case 1:
		c.A = c.addSet(c.A, v, c.FlagCY)
	case 2:
		c.A = c.subSet(c.A, v, false)
	case 3:
		c.A = c.subSet(c.A, v, c.FlagCY)
	case 4:
		c.A = c.andSet(c.A, v)
	case 5:
		c.A = c.xorSet(c.A, v)
	case 6:
		c.A = c.orSet(c.A, v)
	case 7:
		c.subSet(c.A, v, false) // CMP: flags only, A unchanged
	}
}

func b2u(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// InstrLength returns the byte length of the instruction encoded by op,
// for callers (the façade's disassembly request) that need to know how
// many bytes to show without executing anything.
func InstrLength(op byte) int {
	switch op {
	case 0x22, 0x2A, 0x32, 0x3A, 0xC3, 0xCD:
		return 3
	case 0xD3, 0xDB:
		return 2
	}
	switch {
	case op&0xC0 == 0x40, op&0xC0 == 0x80:
		return 1
	case op&0xC7 == 0x06, op&0xC7 == 0xC6:
		return 2
	case op&0xC7 == 0xC2, op&0xC7 == 0xC4:
		return 3
	case op&0xCF == 0x01:
		return 3
	}
	return 1
}

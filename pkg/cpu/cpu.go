package cpu

import (
	"errors"
	"fmt"
)

// Hack platform memory map.
const (
	ROMSize      = 32768
	RAMSize      = 32768
	ScreenBase   = 0x4000 // 8K words, 512x256 pixels, one bit each
	ScreenWords  = 8192
	KeyboardAddr = 0x6000
	MaxConstant  = 0x7FFF // largest value an A-instruction can load
)

// Virtual registers at the bottom of RAM.
const (
	RegSP   uint16 = 0
	RegLCL  uint16 = 1
	RegARG  uint16 = 2
	RegTHIS uint16 = 3
	RegTHAT uint16 = 4
)

// StackBase is the first cell of the VM stack.
const StackBase = 256

// Jump bits of a C-instruction.
const (
	jumpGT uint16 = 0b001
	jumpEQ uint16 = 0b010
	jumpLT uint16 = 0b100
	jumpMP uint16 = 0b111
)

// ErrCycleLimit is returned by Run when the program did not stop in time.
var ErrCycleLimit = errors.New("cycle limit reached")

type CPU struct {
	ROM [ROMSize]uint16
	RAM [RAMSize]uint16

	A  uint16
	D  uint16
	PC uint16

	Halted bool
	Cycles uint64

	// StopOnLoop halts the CPU when it reaches the conventional end-of-program
	// idiom: an unconditional jump to the A-instruction that loaded its target.
	StopOnLoop bool

	programLen int
}

// NewCPU creates a CPU with empty ROM and RAM and loop detection enabled.
func NewCPU() *CPU {
	return &CPU{StopOnLoop: true}
}

// Load copies a program into ROM and resets the registers. Execution past
// the last loaded word halts the CPU.
func (c *CPU) Load(program []uint16) error {
	if len(program) > ROMSize {
		return fmt.Errorf("program too large for ROM: %d words > %d words", len(program), ROMSize)
	}
	c.ROM = [ROMSize]uint16{}
	copy(c.ROM[:], program)
	c.programLen = len(program)
	c.Reset()
	return nil
}

// ProgramLen is the number of words loaded into ROM.
func (c *CPU) ProgramLen() int { return c.programLen }

// Reset clears the registers and cycle counter; RAM is left untouched.
func (c *CPU) Reset() {
	c.A, c.D, c.PC = 0, 0, 0
	c.Halted = false
	c.Cycles = 0
}

// EncodeCompute builds a C-instruction from its a+c bits, dest and jump fields.
func EncodeCompute(comp, dest, jump uint16) uint16 {
	return 0xE000 | (comp&0x7F)<<6 | (dest&0x07)<<3 | (jump & 0x07)
}

// alu evaluates the six control bits zx nx zy ny f no.
func alu(x, y, ctrl uint16) uint16 {
	if ctrl&0b100000 != 0 {
		x = 0
	}
	if ctrl&0b010000 != 0 {
		x = ^x
	}
	if ctrl&0b001000 != 0 {
		y = 0
	}
	if ctrl&0b000100 != 0 {
		y = ^y
	}
	var out uint16
	if ctrl&0b000010 != 0 {
		out = x + y
	} else {
		out = x & y
	}
	if ctrl&0b000001 != 0 {
		out = ^out
	}
	return out
}

func (c *CPU) ReadMem(addr uint16) uint16 {
	return c.RAM[addr&(RAMSize-1)]
}

func (c *CPU) WriteMem(addr uint16, val uint16) {
	c.RAM[addr&(RAMSize-1)] = val
}

// SetKey publishes the code of the key currently held, 0 for none.
func (c *CPU) SetKey(code uint16) {
	c.RAM[KeyboardAddr] = code
}

func (c *CPU) Step() {
	if c.Halted {
		return
	}
	if int(c.PC) >= c.programLen {
		c.Halted = true
		return
	}

	instr := c.ROM[c.PC]
	c.Cycles++

	if instr&0x8000 == 0 {
		c.A = instr
		c.PC++
		return
	}

	comp := (instr >> 6) & 0x7F
	dest := (instr >> 3) & 0x07
	jump := instr & 0x07

	addr := c.A
	y := c.A
	if comp&0x40 != 0 {
		y = c.ReadMem(addr)
	}
	out := alu(c.D, y, comp&0x3F)

	if dest&0b001 != 0 {
		c.WriteMem(addr, out)
	}
	if dest&0b100 != 0 {
		c.A = out
	}
	if dest&0b010 != 0 {
		c.D = out
	}

	s := int16(out)
	taken := (jump&jumpLT != 0 && s < 0) ||
		(jump&jumpEQ != 0 && s == 0) ||
		(jump&jumpGT != 0 && s > 0)
	if !taken {
		c.PC++
		return
	}

	if c.StopOnLoop && jump == jumpMP && addr+1 == c.PC && int(addr) < ROMSize && c.ROM[addr] == addr {
		c.PC = addr
		c.Halted = true
		return
	}
	c.PC = addr
}

// Run executes until the CPU halts. maxCycles of zero means no limit.
func (c *CPU) Run(maxCycles uint64) error {
	for !c.Halted {
		if maxCycles > 0 && c.Cycles >= maxCycles {
			return fmt.Errorf("%w after %d cycles (PC=%d)", ErrCycleLimit, c.Cycles, c.PC)
		}
		c.Step()
	}
	return nil
}

// StackPointer is the value of the SP register.
func (c *CPU) StackPointer() uint16 { return c.RAM[RegSP] }

// Stack returns the signed contents of the VM stack from its base up to SP.
func (c *CPU) Stack() []int16 {
	sp := int(c.StackPointer())
	if sp <= StackBase || sp > ScreenBase {
		return nil
	}
	out := make([]int16, 0, sp-StackBase)
	for _, w := range c.RAM[StackBase:sp] {
		out = append(out, int16(w))
	}
	return out
}

// StackTop returns the value just below SP.
func (c *CPU) StackTop() (int16, bool) {
	sp := c.StackPointer()
	if sp == 0 {
		return 0, false
	}
	return int16(c.ReadMem(sp - 1)), true
}

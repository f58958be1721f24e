package translator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCommand is returned when a command reaching the generator could
// not have been produced by the parser.
var ErrInvalidCommand = errors.New("invalid command")

// Fixed RAM layout of the target machine.
const (
	stackBase = 256 // first free cell above the static area
	tempBase  = 5   // R5..R12
	frameSize = 5   // return address + LCL ARG THIS THAT
)

// Op classifies one emitted assembly line.
type Op int

const (
	OpAddress Op = iota // @value or @symbol
	OpCompute           // dest=comp;jump
	OpLabel             // (SYMBOL), occupies no ROM address
	OpComment           // // text, occupies no ROM address
)

// Instruction is one line of Hack assembly.
type Instruction struct {
	Op   Op
	Text string
}

func (in Instruction) String() string {
	switch in.Op {
	case OpAddress:
		return "@" + in.Text
	case OpLabel:
		return "(" + in.Text + ")"
	case OpComment:
		return "// " + in.Text
	default:
		return in.Text
	}
}

// BootstrapMode selects whether the prologue is emitted.
type BootstrapMode int

const (
	BootstrapAuto   BootstrapMode = iota // only when the entry function is declared
	BootstrapAlways                      // unconditionally
	BootstrapNever                       // bare command sequence
)

// ParseBootstrapMode maps "auto", "always" and "never" to a mode.
func ParseBootstrapMode(s string) (BootstrapMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return BootstrapAuto, nil
	case "always":
		return BootstrapAlways, nil
	case "never":
		return BootstrapNever, nil
	}
	return BootstrapAuto, fmt.Errorf("unknown bootstrap mode %q", s)
}

// DefaultEntry is the function the bootstrap calls when none is configured.
const DefaultEntry = "Sys.init"

// Options tune code generation. The zero value is usable.
type Options struct {
	Bootstrap BootstrapMode
	Entry     string // entry function; DefaultEntry when empty

	// Annotate precedes each command's code with a comment holding its VM text.
	Annotate bool

	// NumericJumps resolves comparison branch targets to ROM addresses
	// instead of emitting location markers for the assembler.
	NumericJumps bool
}

func (o Options) entry() string {
	if o.Entry == "" {
		return DefaultEntry
	}
	return o.Entry
}

type fixup struct {
	at     int // index into code
	marker string
}

// Context is the emission state of one whole-program translation. It must
// see every unit of the program, in order, so that return-address markers
// and the bootstrap stay globally consistent.
type Context struct {
	opts Options
	code []Instruction

	addr     int            // ROM address of the next emitted instruction
	returns  map[string]int // per-callee return marker counter
	compares int

	marks  map[string]int // resolved internal markers (NumericJumps)
	fixups []fixup

	bootstrapped bool
}

// NewContext creates a fresh emission context.
func NewContext(opts Options) *Context {
	return &Context{
		opts:    opts,
		returns: make(map[string]int),
		marks:   make(map[string]int),
	}
}

// Address is the ROM address the next instruction will occupy.
func (c *Context) Address() int { return c.addr }

func (c *Context) emit(op Op, text string) {
	c.code = append(c.code, Instruction{Op: op, Text: text})
	if op == OpAddress || op == OpCompute {
		c.addr++
	}
}

// at loads A with a value or symbol.
func (c *Context) at(symbol string) { c.emit(OpAddress, symbol) }

// atInt loads A with a non-negative literal.
func (c *Context) atInt(n int) { c.emit(OpAddress, strconv.Itoa(n)) }

func (c *Context) op(text string) { c.emit(OpCompute, text) }

func (c *Context) label(symbol string) { c.emit(OpLabel, symbol) }

// pushD writes D to the top of stack and advances SP.
func (c *Context) pushD() {
	c.at("SP")
	c.op("A=M")
	c.op("M=D")
	c.at("SP")
	c.op("M=M+1")
}

// popD moves SP down one cell and loads that cell into D, leaving A on it.
func (c *Context) popD() {
	c.at("SP")
	c.op("AM=M-1")
	c.op("D=M")
}

// atTop points A at the current top of stack without moving SP.
func (c *Context) atTop() {
	c.at("SP")
	c.op("A=M-1")
}

// jumpTo loads A with the address of an internal marker. With NumericJumps
// the address is a placeholder patched when the marker is placed.
func (c *Context) jumpTo(marker string) {
	if !c.opts.NumericJumps {
		c.at(marker)
		return
	}
	c.fixups = append(c.fixups, fixup{at: len(c.code), marker: marker})
	c.at("")
}

// place binds an internal marker to the current address.
func (c *Context) place(marker string) {
	if !c.opts.NumericJumps {
		c.label(marker)
		return
	}
	c.marks[marker] = c.addr
}

// Bootstrap emits the prologue: SP = 256, then call the entry function with
// no arguments. It may be emitted once, before any command.
func (c *Context) Bootstrap() error {
	if c.bootstrapped {
		return errors.New("bootstrap already emitted")
	}
	if len(c.code) > 0 {
		return errors.New("bootstrap must precede every command")
	}
	if entry := c.opts.entry(); !ValidName(entry) {
		return fmt.Errorf("%w: entry function %q", ErrInvalidCommand, entry)
	}
	c.bootstrapped = true
	c.atInt(stackBase)
	c.op("D=A")
	c.at("SP")
	c.op("M=D")
	c.call(c.opts.entry(), 0)
	return nil
}

// Emit appends the code for one command.
func (c *Context) Emit(cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("%w: nil command", ErrInvalidCommand)
	}
	if c.opts.Annotate {
		c.emit(OpComment, cmd.String())
	}

	switch n := cmd.(type) {
	case *Arithmetic:
		return c.arithmetic(n)
	case *StackOp:
		if n.Action == Push {
			return c.push(n)
		}
		return c.pop(n)
	case *Label:
		if !isIdentifier(n.Name) {
			return invalid(cmd)
		}
		c.label(qualify(n.Scope, n.Name))
	case *Goto:
		if !isIdentifier(n.Name) {
			return invalid(cmd)
		}
		c.at(qualify(n.Scope, n.Name))
		c.op("0;JMP")
	case *IfGoto:
		if !isIdentifier(n.Name) {
			return invalid(cmd)
		}
		c.popD()
		c.at(qualify(n.Scope, n.Name))
		c.op("D;JNE")
	case *Function:
		if !ValidName(n.Name) || n.Locals < 0 || n.Locals > maxWord {
			return invalid(cmd)
		}
		c.label(n.Name)
		for i := 0; i < n.Locals; i++ {
			c.at("SP")
			c.op("A=M")
			c.op("M=0")
			c.at("SP")
			c.op("M=M+1")
		}
	case *Call:
		if !ValidName(n.Name) || n.Args < 0 || n.Args > maxArgs {
			return invalid(cmd)
		}
		c.call(n.Name, n.Args)
	case *Return:
		c.ret()
	default:
		return invalid(cmd)
	}
	return nil
}

func invalid(cmd Command) error {
	return fmt.Errorf("%w: %s", ErrInvalidCommand, cmd)
}

var binaryComp = map[ArithOp]string{
	Add: "M=D+M",
	Sub: "M=M-D",
	And: "M=D&M",
	Or:  "M=D|M",
}

var unaryComp = map[ArithOp]string{
	Neg: "M=-M",
	Not: "M=!M",
}

var compareJump = map[ArithOp]string{
	Eq: "D;JEQ",
	Lt: "D;JLT",
	Gt: "D;JGT",
}

func (c *Context) arithmetic(a *Arithmetic) error {
	if comp, ok := binaryComp[a.Op]; ok {
		c.popD()
		c.op("A=A-1")
		c.op(comp)
		return nil
	}
	if comp, ok := unaryComp[a.Op]; ok {
		c.atTop()
		c.op(comp)
		return nil
	}
	if jump, ok := compareJump[a.Op]; ok {
		c.compare(jump)
		return nil
	}
	return invalid(a)
}

// compare leaves -1 (true) or 0 (false) in place of the two operands.
func (c *Context) compare(jump string) {
	n := c.compares
	c.compares++
	isTrue := fmt.Sprintf("CMP$true$%d", n)
	end := fmt.Sprintf("CMP$end$%d", n)

	c.popD()
	c.op("A=A-1")
	c.op("D=M-D")
	c.jumpTo(isTrue)
	c.op(jump)

	c.atTop()
	c.op("M=0")
	c.jumpTo(end)
	c.op("0;JMP")

	c.place(isTrue)
	c.atTop()
	c.op("M=-1")
	c.place(end)
}

var segmentBase = map[SegmentKind]string{
	Local:    "LCL",
	Argument: "ARG",
	This:     "THIS",
	That:     "THAT",
}

// fixedCell returns the symbol of a directly addressed segment cell.
func fixedCell(s *StackOp) (string, bool) {
	switch s.Segment.Kind {
	case Temp:
		return strconv.Itoa(tempBase + s.Index), true
	case Pointer:
		if s.Index == 0 {
			return "THIS", true
		}
		return "THAT", true
	case Static:
		return s.Segment.Scope + "." + strconv.Itoa(s.Index), true
	}
	return "", false
}

func validStackOp(s *StackOp) bool {
	if s.Index < 0 || s.Index > maxWord {
		return false
	}
	switch s.Segment.Kind {
	case Constant:
		return s.Action == Push
	case Temp:
		return s.Index <= 7
	case Pointer:
		return s.Index <= 1
	case Static:
		return isIdentifier(s.Segment.Scope)
	case Local, Argument, This, That:
		return true
	}
	return false
}

func (c *Context) push(s *StackOp) error {
	if !validStackOp(s) {
		return invalid(s)
	}
	if s.Segment.Kind == Constant {
		c.atInt(s.Index)
		c.op("D=A")
		c.pushD()
		return nil
	}
	if cell, ok := fixedCell(s); ok {
		c.at(cell)
	} else {
		c.atIndexed(segmentBase[s.Segment.Kind], s.Index)
	}
	c.op("D=M")
	c.pushD()
	return nil
}

// atIndexed points A at base[index] using D as scratch.
func (c *Context) atIndexed(base string, index int) {
	c.at(base)
	switch index {
	case 0:
		c.op("A=M")
	case 1:
		c.op("A=M+1")
	default:
		c.op("D=M")
		c.atInt(index)
		c.op("A=D+A")
	}
}

// pointerWalkLimit is the largest index popped by stepping A from the base
// cell; beyond it the destination is computed into R13 first.
const pointerWalkLimit = 6

func (c *Context) pop(s *StackOp) error {
	if !validStackOp(s) {
		return invalid(s)
	}
	if cell, ok := fixedCell(s); ok {
		c.popD()
		c.at(cell)
		c.op("M=D")
		return nil
	}

	base := segmentBase[s.Segment.Kind]
	if s.Index <= pointerWalkLimit {
		c.popD()
		c.at(base)
		c.op("A=M")
		for i := 0; i < s.Index; i++ {
			c.op("A=A+1")
		}
		c.op("M=D")
		return nil
	}

	c.at(base)
	c.op("D=M")
	c.atInt(s.Index)
	c.op("D=D+A")
	c.at("R13")
	c.op("M=D")
	c.popD()
	c.at("R13")
	c.op("A=M")
	c.op("M=D")
	return nil
}

// call pushes the return marker and the caller's frame, repositions ARG and
// LCL, and jumps to the callee.
func (c *Context) call(name string, args int) {
	ret := fmt.Sprintf("%s$ret$%d", name, c.returns[name])
	c.returns[name]++

	c.at(ret)
	c.op("D=A")
	c.pushD()
	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		c.at(reg)
		c.op("D=M")
		c.pushD()
	}

	c.at("SP")
	c.op("D=M")
	c.atInt(frameSize + args)
	c.op("D=D-A")
	c.at("ARG")
	c.op("M=D")

	c.at("SP")
	c.op("D=M")
	c.at("LCL")
	c.op("M=D")

	c.at(name)
	c.op("0;JMP")
	c.label(ret)
}

// ret copies the return value over the caller's first argument, restores the
// caller's frame from below LCL and jumps to the saved return address.
func (c *Context) ret() {
	// R13 = frame base, R14 = return address
	c.at("LCL")
	c.op("D=M")
	c.at("R13")
	c.op("M=D")
	c.atInt(frameSize)
	c.op("A=D-A")
	c.op("D=M")
	c.at("R14")
	c.op("M=D")

	c.popD()
	c.at("ARG")
	c.op("A=M")
	c.op("M=D")

	c.at("ARG")
	c.op("D=M+1")
	c.at("SP")
	c.op("M=D")

	for _, reg := range []string{"THAT", "THIS", "ARG", "LCL"} {
		c.at("R13")
		c.op("AM=M-1")
		c.op("D=M")
		c.at(reg)
		c.op("M=D")
	}

	c.at("R14")
	c.op("A=M")
	c.op("0;JMP")
}

// Finish patches placeholder addresses and returns the instruction list.
func (c *Context) Finish() ([]Instruction, error) {
	for _, f := range c.fixups {
		addr, ok := c.marks[f.marker]
		if !ok {
			return nil, fmt.Errorf("unresolved marker %s", f.marker)
		}
		c.code[f.at].Text = strconv.Itoa(addr)
	}
	c.fixups = nil

	out := make([]Instruction, len(c.code))
	copy(out, c.code)
	return out, nil
}

// Declares reports whether cmds contain a function named name.
func Declares(cmds []Command, name string) bool {
	for _, cmd := range cmds {
		if f, ok := cmd.(*Function); ok && f.Name == name {
			return true
		}
	}
	return false
}

// Generate translates a merged, unit-ordered command sequence in one pass.
//
// With BootstrapAlways the output starts with exactly one bootstrap prologue
// calling the entry function, declared or not. BootstrapAuto emits the same
// prologue only when cmds declare the entry, so single-file tests without one
// run from their first command. BootstrapNever never emits it.
func Generate(cmds []Command, opts Options) ([]Instruction, error) {
	c := NewContext(opts)

	bootstrap := opts.Bootstrap == BootstrapAlways ||
		(opts.Bootstrap == BootstrapAuto && Declares(cmds, opts.entry()))
	if bootstrap {
		if err := c.Bootstrap(); err != nil {
			return nil, err
		}
	}

	for _, cmd := range cmds {
		if err := c.Emit(cmd); err != nil {
			return nil, err
		}
	}
	return c.Finish()
}

// Render serializes instructions as newline-terminated assembly text.
func Render(code []Instruction) string {
	var sb strings.Builder
	for _, in := range code {
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

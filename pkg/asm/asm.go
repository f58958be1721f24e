package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"hackvm/pkg/cpu"
)

// compTable maps a computation mnemonic to its a-bit and c1..c6 bits.
var compTable = map[string]uint16{
	"0":   0b0_101010,
	"1":   0b0_111111,
	"-1":  0b0_111010,
	"D":   0b0_001100,
	"A":   0b0_110000,
	"!D":  0b0_001101,
	"!A":  0b0_110001,
	"-D":  0b0_001111,
	"-A":  0b0_110011,
	"D+1": 0b0_011111,
	"A+1": 0b0_110111,
	"D-1": 0b0_001110,
	"A-1": 0b0_110010,
	"D+A": 0b0_000010,
	"D-A": 0b0_010011,
	"A-D": 0b0_000111,
	"D&A": 0b0_000000,
	"D|A": 0b0_010101,
	"M":   0b1_110000,
	"!M":  0b1_110001,
	"-M":  0b1_110011,
	"M+1": 0b1_110111,
	"M-1": 0b1_110010,
	"D+M": 0b1_000010,
	"D-M": 0b1_010011,
	"M-D": 0b1_000111,
	"D&M": 0b1_000000,
	"D|M": 0b1_010101,
}

// commutative spellings accepted in addition to the canonical table.
var compAliases = map[string]string{
	"A+D": "D+A",
	"M+D": "D+M",
	"A&D": "D&A",
	"M&D": "D&M",
	"A|D": "D|A",
	"M|D": "D|M",
	"1+D": "D+1",
	"1+A": "A+1",
	"1+M": "M+1",
}

var jumpTable = map[string]uint16{
	"":    0b000,
	"JGT": 0b001,
	"JEQ": 0b010,
	"JGE": 0b011,
	"JLT": 0b100,
	"JNE": 0b101,
	"JLE": 0b110,
	"JMP": 0b111,
}

// predefined symbols of the Hack platform.
var predefined = map[string]uint16{
	"SP":     0,
	"LCL":    1,
	"ARG":    2,
	"THIS":   3,
	"THAT":   4,
	"SCREEN": cpu.ScreenBase,
	"KBD":    cpu.KeyboardAddr,
}

func init() {
	for i := uint16(0); i < 16; i++ {
		predefined[fmt.Sprintf("R%d", i)] = i
	}
}

// Predefined reports whether name is one of the platform's built-in symbols.
func Predefined(name string) bool {
	_, ok := predefined[name]
	return ok
}

// VariableBase is where the assembler starts allocating variable symbols.
const VariableBase = 16

type Assembler struct {
	symbols map[string]uint16
	nextVar uint16
}

type parsedLine struct {
	lineNo int
	label  string // (LABEL)
	addr   string // @value
	dest   string
	comp   string
	jump   string
}

func (p parsedLine) empty() bool {
	return p.label == "" && p.addr == "" && p.comp == ""
}

func NewAssembler() *Assembler {
	a := &Assembler{
		symbols: make(map[string]uint16, len(predefined)),
		nextVar: VariableBase,
	}
	for k, v := range predefined {
		a.symbols[k] = v
	}
	return a
}

// Assemble translates Hack assembly into ROM words. The returned map gives
// the source line of every ROM address.
func Assemble(code string) ([]uint16, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]uint16, map[uint16]int, error) {
	lines := strings.Split(code, "\n")

	parsed := make([]parsedLine, 0, len(lines))
	for i, raw := range lines {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return nil, nil, err
		}
		if !p.empty() {
			parsed = append(parsed, p)
		}
	}

	if err := a.pass1(parsed); err != nil {
		return nil, nil, err
	}
	return a.pass2(parsed)
}

// pass1 binds every (LABEL) to the ROM address of the next instruction.
func (a *Assembler) pass1(lines []parsedLine) error {
	var address uint32

	for _, p := range lines {
		if p.label != "" {
			if address > cpu.ROMSize {
				return fmt.Errorf("label '%s' on line %d points past ROM", p.label, p.lineNo)
			}
			if _, exists := a.symbols[p.label]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", p.label, p.lineNo)
			}
			a.symbols[p.label] = uint16(address)
			continue
		}

		if address+1 > cpu.ROMSize {
			return fmt.Errorf("program too large near line %d", p.lineNo)
		}
		address++
	}

	return nil
}

func (a *Assembler) pass2(lines []parsedLine) ([]uint16, map[uint16]int, error) {
	program := make([]uint16, 0, len(lines))
	sourceMap := make(map[uint16]int)

	for _, p := range lines {
		if p.label != "" {
			continue
		}

		sourceMap[uint16(len(program))] = p.lineNo

		if p.addr != "" {
			val, err := a.resolve(p.addr, p.lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, val)
			continue
		}

		instr, err := encodeCompute(p)
		if err != nil {
			return nil, nil, err
		}
		program = append(program, instr)
	}

	return program, sourceMap, nil
}

// resolve turns an @ operand into a 15-bit value, allocating a RAM cell for
// symbols seen for the first time.
func (a *Assembler) resolve(token string, lineNo int) (uint16, error) {
	if token[0] >= '0' && token[0] <= '9' {
		value, err := strconv.ParseUint(token, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid constant '%s' on line %d", token, lineNo)
		}
		if value > cpu.MaxConstant {
			return 0, fmt.Errorf("constant out of range on line %d: %s", lineNo, token)
		}
		return uint16(value), nil
	}

	if !isIdentifier(token) {
		return 0, fmt.Errorf("invalid symbol '%s' on line %d", token, lineNo)
	}
	if addr, ok := a.symbols[token]; ok {
		return addr, nil
	}
	if a.nextVar >= cpu.ScreenBase {
		return 0, fmt.Errorf("out of variable space at '%s' on line %d", token, lineNo)
	}
	addr := a.nextVar
	a.symbols[token] = addr
	a.nextVar++
	return addr, nil
}

// Symbol returns the address bound to a label, predefined symbol or variable.
func (a *Assembler) Symbol(name string) (uint16, bool) {
	addr, ok := a.symbols[name]
	return addr, ok
}

func encodeCompute(p parsedLine) (uint16, error) {
	comp := p.comp
	if alias, ok := compAliases[comp]; ok {
		comp = alias
	}
	bits, ok := compTable[comp]
	if !ok {
		return 0, fmt.Errorf("invalid computation '%s' on line %d", p.comp, p.lineNo)
	}

	var dest uint16
	for _, r := range p.dest {
		var bit uint16
		switch r {
		case 'A':
			bit = 0b100
		case 'D':
			bit = 0b010
		case 'M':
			bit = 0b001
		default:
			return 0, fmt.Errorf("invalid destination '%s' on line %d", p.dest, p.lineNo)
		}
		if dest&bit != 0 {
			return 0, fmt.Errorf("invalid destination '%s' on line %d", p.dest, p.lineNo)
		}
		dest |= bit
	}

	jump, ok := jumpTable[p.jump]
	if !ok {
		return 0, fmt.Errorf("invalid jump '%s' on line %d", p.jump, p.lineNo)
	}

	return cpu.EncodeCompute(bits, dest, jump), nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}
	line = strings.Join(strings.Fields(line), "")

	switch {
	case strings.HasPrefix(line, "("):
		if !strings.HasSuffix(line, ")") {
			return p, fmt.Errorf("invalid label on line %d", lineNo)
		}
		label := line[1 : len(line)-1]
		if !isIdentifier(label) {
			return p, fmt.Errorf("invalid label '%s' on line %d", label, lineNo)
		}
		p.label = label

	case strings.HasPrefix(line, "@"):
		p.addr = line[1:]
		if p.addr == "" {
			return p, fmt.Errorf("missing address on line %d", lineNo)
		}

	default:
		rest := line
		if eq := strings.IndexByte(rest, '='); eq >= 0 {
			p.dest = rest[:eq]
			rest = rest[eq+1:]
			if p.dest == "" {
				return p, fmt.Errorf("empty destination on line %d", lineNo)
			}
		}
		if semi := strings.IndexByte(rest, ';'); semi >= 0 {
			p.jump = rest[semi+1:]
			rest = rest[:semi]
		}
		p.comp = rest
		if p.comp == "" {
			return p, fmt.Errorf("missing computation on line %d", lineNo)
		}
	}

	return p, nil
}

func stripComments(line string) string {
	if cut := strings.Index(line, "//"); cut >= 0 {
		return line[:cut]
	}
	return line
}

// isIdentifier reports whether s is a Hack symbol: letters, digits, '_',
// '.', '$' and ':' not starting with a digit.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && !strings.ContainsRune("_.$:", r) {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("_.$:", r) {
			return false
		}
	}

	return true
}

// FormatHack renders ROM words in the textual .hack format, one 16-digit
// binary word per line.
func FormatHack(program []uint16) string {
	var sb strings.Builder
	for _, w := range program {
		fmt.Fprintf(&sb, "%016b\n", w)
	}
	return sb.String()
}

// ParseHack reads the textual .hack format back into ROM words.
func ParseHack(text string) ([]uint16, error) {
	var program []uint16
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if len(line) != 16 {
			return nil, fmt.Errorf("line %d: expected 16 binary digits, got %q", i+1, line)
		}
		w, err := strconv.ParseUint(line, 2, 16)
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", i+1, err)
		}
		program = append(program, uint16(w))
	}
	return program, nil
}

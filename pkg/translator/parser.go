package translator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hackvm/pkg/asm"
)

// maxWord is the largest value an A-instruction can load.
const maxWord = 32767

// SyntaxError reports a line the parser could not classify or whose operands
// are malformed. Translation stops at the first one.
type SyntaxError struct {
	Scope string // unit the line came from
	Line  int    // 1-based; 0 when the unit itself is rejected
	Text  string // offending line with comments stripped
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Scope, e.Msg)
	}
	return fmt.Sprintf("%s line %d: %s: %q", e.Scope, e.Line, e.Msg, e.Text)
}

// ErrSyntax is matched by every *SyntaxError through errors.Is.
var ErrSyntax = errors.New("vm syntax error")

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// commandKind is the shape of a keyword's operand list.
type commandKind int

const (
	kindArithmetic commandKind = iota
	kindPush
	kindPop
	kindLabel
	kindGoto
	kindIfGoto
	kindFunction
	kindCall
	kindReturn
)

var keywords = map[string]commandKind{
	"add":      kindArithmetic,
	"sub":      kindArithmetic,
	"and":      kindArithmetic,
	"or":       kindArithmetic,
	"eq":       kindArithmetic,
	"lt":       kindArithmetic,
	"gt":       kindArithmetic,
	"neg":      kindArithmetic,
	"not":      kindArithmetic,
	"push":     kindPush,
	"pop":      kindPop,
	"label":    kindLabel,
	"goto":     kindGoto,
	"if-goto":  kindIfGoto,
	"function": kindFunction,
	"call":     kindCall,
	"return":   kindReturn,
}

// operandCounts is the exact number of operands each kind accepts.
var operandCounts = map[commandKind]int{
	kindArithmetic: 0,
	kindPush:       2,
	kindPop:        2,
	kindLabel:      1,
	kindGoto:       1,
	kindIfGoto:     1,
	kindFunction:   2,
	kindCall:       2,
	kindReturn:     0,
}

// Parser holds the state of a single pass over one translation unit.
type Parser struct {
	scope    string // unit scope: owns static cells and top-level labels
	function string // innermost function declared so far
	line     int
	text     string
}

func newParser(scope string) *Parser {
	return &Parser{scope: scope}
}

// Parse converts the text of one translation unit into its command sequence.
// scope names the unit (usually the file name without extension); it
// qualifies static cells and labels that appear before any function.
//
// Parse is pure: independent units may be parsed concurrently.
func Parse(src, scope string) ([]Command, error) {
	return newParser(scope).parse(src)
}

func (p *Parser) parse(src string) ([]Command, error) {
	if !isIdentifier(p.scope) {
		return nil, p.errorf("invalid scope name %q", p.scope)
	}

	var cmds []Command
	for i, raw := range strings.Split(src, "\n") {
		p.line = i + 1
		p.text = stripComment(raw)
		if p.text == "" {
			continue
		}
		cmd, err := p.parseLine(strings.Fields(p.text))
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return &SyntaxError{
		Scope: p.scope,
		Line:  p.line,
		Text:  p.text,
		Msg:   fmt.Sprintf(format, args...),
	}
}

func (p *Parser) parseLine(fields []string) (Command, error) {
	keyword, operands := fields[0], fields[1:]

	kind, ok := keywords[keyword]
	if !ok {
		return nil, p.errorf("unknown command %q", keyword)
	}
	if want := operandCounts[kind]; len(operands) != want {
		return nil, p.errorf("%s expects %d operand(s), got %d", keyword, want, len(operands))
	}

	switch kind {
	case kindArithmetic:
		return p.parseArithmetic(keyword), nil
	case kindPush:
		return p.parseStackOp(Push, operands[0], operands[1])
	case kindPop:
		return p.parseStackOp(Pop, operands[0], operands[1])
	case kindLabel, kindGoto, kindIfGoto:
		return p.parseBranch(kind, operands[0])
	case kindFunction:
		return p.parseFunction(operands[0], operands[1])
	case kindCall:
		return p.parseCall(operands[0], operands[1])
	case kindReturn:
		return &Return{}, nil
	}
	return nil, p.errorf("unknown command %q", keyword)
}

func (p *Parser) parseArithmetic(keyword string) Command {
	for op, name := range arithNames {
		if name == keyword {
			return &Arithmetic{Op: ArithOp(op)}
		}
	}
	panic("translator: keyword table out of sync with arithmetic operators")
}

func (p *Parser) parseStackOp(action StackAction, segWord, indexWord string) (Command, error) {
	kind, ok := lookupSegment(segWord)
	if !ok {
		return nil, p.errorf("unknown segment %q", segWord)
	}
	index, err := p.parseCount(indexWord, "index")
	if err != nil {
		return nil, err
	}

	switch {
	case kind == Constant && action == Pop:
		return nil, p.errorf("cannot pop into the constant segment")
	case kind == Temp && index > 7:
		return nil, p.errorf("temp index %d out of range 0..7", index)
	case kind == Pointer && index > 1:
		return nil, p.errorf("pointer index %d out of range 0..1", index)
	}

	seg := Segment{Kind: kind}
	if kind == Static {
		seg.Scope = p.scope
	}
	return &StackOp{Action: action, Segment: seg, Index: index}, nil
}

func (p *Parser) parseBranch(kind commandKind, name string) (Command, error) {
	if !isIdentifier(name) {
		return nil, p.errorf("invalid label %q", name)
	}
	scope := p.scope
	if p.function != "" {
		scope = p.function
	}
	switch kind {
	case kindLabel:
		return &Label{Name: name, Scope: scope}, nil
	case kindGoto:
		return &Goto{Name: name, Scope: scope}, nil
	default:
		return &IfGoto{Name: name, Scope: scope}, nil
	}
}

func (p *Parser) parseFunction(name, countWord string) (Command, error) {
	if problem := nameProblem(name); problem != "" {
		return nil, p.errorf("function name %q %s", name, problem)
	}
	locals, err := p.parseCount(countWord, "local count")
	if err != nil {
		return nil, err
	}
	p.function = name
	return &Function{Name: name, Locals: locals}, nil
}

func (p *Parser) parseCall(name, countWord string) (Command, error) {
	if problem := nameProblem(name); problem != "" {
		return nil, p.errorf("function name %q %s", name, problem)
	}
	args, err := p.parseCount(countWord, "argument count")
	if err != nil {
		return nil, err
	}
	if args > maxArgs {
		return nil, p.errorf("argument count %d out of range 0..%d", args, maxArgs)
	}
	return &Call{Name: name, Args: args}, nil
}

// maxArgs keeps the ARG offset of a call, args plus the saved frame, loadable
// by one A-instruction.
const maxArgs = maxWord - frameSize

// nameProblem describes why name cannot name a function, or returns "".
// Function names become assembler labels, so they must not shadow a platform
// symbol or take the Scope.i shape of a static cell.
func nameProblem(name string) string {
	if !isIdentifier(name) {
		return "is not a valid identifier"
	}
	if asm.Predefined(name) {
		return "collides with a platform symbol"
	}
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 && isDigits(name[dot+1:]) {
		return "has the form of a static variable"
	}
	return ""
}

// ValidName reports whether name may be declared or called as a function.
func ValidName(name string) bool { return nameProblem(name) == "" }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseCount accepts an unsigned decimal in 0..maxWord. Signs, hex and
// anything larger than one A-instruction can load are rejected.
func (p *Parser) parseCount(word, what string) (int, error) {
	for _, r := range word {
		if r < '0' || r > '9' {
			return 0, p.errorf("invalid %s %q", what, word)
		}
	}
	n, err := strconv.Atoi(word)
	if err != nil || n > maxWord {
		return 0, p.errorf("%s %q out of range 0..%d", what, word, maxWord)
	}
	return n, nil
}

func stripComment(line string) string {
	if cut := strings.Index(line, "//"); cut >= 0 {
		line = line[:cut]
	}
	return strings.TrimSpace(line)
}

// isIdentifier reports whether s is a VM symbol: ASCII letters, digits, '_', '.'
// and ':' not starting with a digit. '$' is reserved for generated symbols.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '.', r == ':':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

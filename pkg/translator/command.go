package translator

import "fmt"

// Command is implemented by every parsed VM instruction.
// Commands are immutable once the parser has produced them.
type Command interface {
	commandNode()
	String() string
}

// ArithOp identifies one of the nine stack arithmetic/logic commands.
type ArithOp int

const (
	Add ArithOp = iota // x + y
	Sub                // x - y
	And                // x & y
	Or                 // x | y
	Eq                 // x == y
	Lt                 // x < y
	Gt                 // x > y
	Neg                // -y
	Not                // !y
)

var arithNames = [...]string{
	Add: "add",
	Sub: "sub",
	And: "and",
	Or:  "or",
	Eq:  "eq",
	Lt:  "lt",
	Gt:  "gt",
	Neg: "neg",
	Not: "not",
}

func (op ArithOp) String() string {
	if op < 0 || int(op) >= len(arithNames) {
		return fmt.Sprintf("ArithOp(%d)", int(op))
	}
	return arithNames[op]
}

// Unary reports whether the operator takes a single operand.
func (op ArithOp) Unary() bool { return op == Neg || op == Not }

// Comparison reports whether the operator produces a boolean sentinel.
func (op ArithOp) Comparison() bool { return op == Eq || op == Lt || op == Gt }

// StackAction is the direction of a push/pop command.
type StackAction int

const (
	Push StackAction = iota
	Pop
)

func (a StackAction) String() string {
	if a == Pop {
		return "pop"
	}
	return "push"
}

// SegmentKind names a virtual memory segment.
type SegmentKind int

const (
	Constant SegmentKind = iota // literal value, push only
	Local                       // LCL + index
	Argument                    // ARG + index
	This                        // THIS + index
	That                        // THAT + index
	Temp                        // RAM[5..12]
	Pointer                     // 0 -> THIS, 1 -> THAT
	Static                      // per-scope fixed cell
)

var segmentKeywords = [...]string{
	Constant: "constant",
	Local:    "local",
	Argument: "argument",
	This:     "this",
	That:     "that",
	Temp:     "temp",
	Pointer:  "pointer",
	Static:   "static",
}

// lookupSegment maps a segment keyword to its kind.
func lookupSegment(word string) (SegmentKind, bool) {
	for kind, name := range segmentKeywords {
		if name == word {
			return SegmentKind(kind), true
		}
	}
	return 0, false
}

func (k SegmentKind) String() string {
	if k < 0 || int(k) >= len(segmentKeywords) {
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
	return segmentKeywords[k]
}

// Segment is a segment kind plus, for Static, the scope that owns its cells.
type Segment struct {
	Kind  SegmentKind
	Scope string // only meaningful for Static
}

func (s Segment) String() string { return s.Kind.String() }

// Arithmetic is one of add, sub, and, or, eq, lt, gt, neg, not.
//
//	add
//	^^^  Arithmetic{Op: Add}
type Arithmetic struct {
	Op ArithOp
}

func (*Arithmetic) commandNode()     {}
func (a *Arithmetic) String() string { return a.Op.String() }

// StackOp moves a value between the stack and a segment cell.
//
//	push local 2
//	     ^^^^^ ^  StackOp{Action: Push, Segment: Segment{Kind: Local}, Index: 2}
type StackOp struct {
	Action  StackAction
	Segment Segment
	Index   int
}

func (*StackOp) commandNode() {}
func (s *StackOp) String() string {
	return fmt.Sprintf("%s %s %d", s.Action, s.Segment, s.Index)
}

// Label declares a jump target inside Scope.
type Label struct {
	Name  string
	Scope string
}

func (*Label) commandNode()     {}
func (l *Label) String() string { return "label " + l.Name }

// Goto unconditionally transfers control to a label in Scope.
type Goto struct {
	Name  string
	Scope string
}

func (*Goto) commandNode()     {}
func (g *Goto) String() string { return "goto " + g.Name }

// IfGoto pops the top of stack and jumps to the label when it is nonzero.
type IfGoto struct {
	Name  string
	Scope string
}

func (*IfGoto) commandNode()     {}
func (g *IfGoto) String() string { return "if-goto " + g.Name }

// Function declares a function entry point with Locals zeroed cells.
type Function struct {
	Name   string
	Locals int
}

func (*Function) commandNode() {}
func (f *Function) String() string {
	return fmt.Sprintf("function %s %d", f.Name, f.Locals)
}

// Call invokes Name after Args arguments have been pushed.
type Call struct {
	Name string
	Args int
}

func (*Call) commandNode() {}
func (c *Call) String() string {
	return fmt.Sprintf("call %s %d", c.Name, c.Args)
}

// Return hands the top of stack back to the caller and restores its frame.
type Return struct{}

func (*Return) commandNode()   {}
func (*Return) String() string { return "return" }

// qualify joins a label name with its scope; an empty scope leaves it bare.
func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "$" + name
}

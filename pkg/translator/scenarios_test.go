package translator_test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"hackvm/pkg/cpu"
	"hackvm/pkg/translator"
)

var bare = translator.Options{Bootstrap: translator.BootstrapNever}

const sumProgram = `
function Sys.init 0
push constant 3000
pop pointer 0
push constant 4000
pop pointer 1
push constant 4
push constant 5
call Sum 2
label END
goto END
`

const sumFunction = `
function Sum 0
push constant 1234
pop pointer 0
push constant 5678
pop pointer 1
push argument 0
push argument 1
add
return
`

const factorial = `
// fact(n) = n * fact(n-1), fact(n) = 1 for n <= 1
function Main.fact 0
push argument 0
push constant 1
gt
if-goto RECURSE
push constant 1
return
label RECURSE
push argument 0
push argument 0
push constant 1
sub
call Main.fact 1
call Main.mult 2
return

// mult(x, y) by repeated addition
function Main.mult 1
push constant 0
pop local 0
label LOOP
push argument 1
push constant 0
eq
if-goto DONE
push local 0
push argument 0
add
pop local 0
push argument 1
push constant 1
sub
pop argument 1
goto LOOP
label DONE
push local 0
return
`

var _ = Describe("Arithmetic", func() {
	It("leaves 7 + 8 = 15 on top of the stack", func() {
		m := execute([]translator.Unit{unit("Main", "push constant 7\npush constant 8\nadd")}, bare, nil)
		Expect(m.top()).To(Equal(int16(15)))
		Expect(m.cpu.StackPointer()).To(Equal(uint16(cpu.StackBase + 1)))
	})

	It("leaves true for 3 < 5", func() {
		m := execute([]translator.Unit{unit("Main", "push constant 3\npush constant 5\nlt")}, bare, nil)
		Expect(m.top()).To(Equal(int16(-1)))
	})

	It("leaves false for 5 < 3", func() {
		m := execute([]translator.Unit{unit("Main", "push constant 5\npush constant 3\nlt")}, bare, nil)
		Expect(m.top()).To(Equal(int16(0)))
	})

	It("wraps around on 16-bit overflow", func() {
		m := execute([]translator.Unit{unit("Main", "push constant 32767\npush constant 1\nadd")}, bare, nil)
		Expect(m.top()).To(Equal(int16(-32768)))
	})

	It("compares across the sign boundary", func() {
		src := "push constant 0\npush constant 1\nsub\npush constant 1\nlt"
		m := execute([]translator.Unit{unit("Main", src)}, bare, nil)
		Expect(m.top()).To(Equal(int16(-1)))
	})
})

var _ = Describe("Push and pop", func() {
	DescribeTable("round-trips a value through every addressable cell",
		func(segment string, index int) {
			src := fmt.Sprintf("push constant 1234\npop %s %d\npush %s %d", segment, index, segment, index)
			m := execute([]translator.Unit{unit("Main", src)}, bare, func(c *cpu.CPU) {
				c.RAM[cpu.RegLCL] = 300
				c.RAM[cpu.RegARG] = 400
				c.RAM[cpu.RegTHIS] = 3000
				c.RAM[cpu.RegTHAT] = 3010
			})
			Expect(m.top()).To(Equal(int16(1234)))
			Expect(m.cpu.StackPointer()).To(Equal(uint16(cpu.StackBase + 1)))
		},
		Entry("local 0", "local", 0),
		Entry("local 1", "local", 1),
		Entry("local 7", "local", 7),
		Entry("local 12", "local", 12),
		Entry("argument 0", "argument", 0),
		Entry("argument 6", "argument", 6),
		Entry("this 3", "this", 3),
		Entry("that 0", "that", 0),
		Entry("that 20", "that", 20),
		Entry("temp 0", "temp", 0),
		Entry("temp 7", "temp", 7),
		Entry("pointer 0", "pointer", 0),
		Entry("pointer 1", "pointer", 1),
		Entry("static 0", "static", 0),
		Entry("static 9", "static", 9),
	)

	DescribeTable("push followed by pop of the same cell is a no-op",
		func(segment string, index int, addr int) {
			src := fmt.Sprintf("push %s %d\npop %s %d", segment, index, segment, index)
			m := execute([]translator.Unit{unit("Main", src)}, bare, func(c *cpu.CPU) {
				c.RAM[cpu.RegLCL] = 300
				c.RAM[cpu.RegARG] = 400
				c.RAM[cpu.RegTHIS] = 3000
				c.RAM[cpu.RegTHAT] = 3010
				if addr > 4 {
					c.RAM[addr] = 0xBEEF
				}
			})
			Expect(m.cpu.StackPointer()).To(Equal(uint16(cpu.StackBase)))
			if addr > 4 {
				Expect(m.cpu.RAM[addr]).To(Equal(uint16(0xBEEF)))
			}
			Expect(m.reg(cpu.RegTHIS)).To(Equal(uint16(3000)))
			Expect(m.reg(cpu.RegTHAT)).To(Equal(uint16(3010)))
		},
		Entry("local 2", "local", 2, 302),
		Entry("argument 9", "argument", 9, 409),
		Entry("this 1", "this", 1, 3001),
		Entry("that 4", "that", 4, 3014),
		Entry("temp 3", "temp", 3, 8),
		Entry("pointer 0", "pointer", 0, 3),
		Entry("pointer 1", "pointer", 1, 4),
	)

	It("keeps static cells of different scopes apart", func() {
		m := execute([]translator.Unit{
			unit("Foo", "push constant 11\npop static 0"),
			unit("Bar", "push constant 22\npop static 0"),
		}, bare, nil)

		foo, bar := m.symbol("Foo.0"), m.symbol("Bar.0")
		Expect(foo).NotTo(Equal(bar))
		Expect(m.cpu.RAM[foo]).To(Equal(uint16(11)))
		Expect(m.cpu.RAM[bar]).To(Equal(uint16(22)))
	})

	It("allocates static cells from RAM 16 in first-use order", func() {
		m := execute([]translator.Unit{
			unit("A", "push static 3\npop static 1"),
			unit("B", "push static 0"),
		}, bare, nil)
		Expect(m.symbol("A.3")).To(Equal(uint16(16)))
		Expect(m.symbol("A.1")).To(Equal(uint16(17)))
		Expect(m.symbol("B.0")).To(Equal(uint16(18)))
	})
})

var _ = Describe("Function calls", func() {
	It("returns 9 from Sum and restores the caller's frame", func() {
		m := execute([]translator.Unit{
			unit("Sys", sumProgram),
			unit("Sum", sumFunction),
		}, translator.Options{}, nil)

		// Bootstrap frame: ARG=256, LCL=261; two arguments collapse into one result.
		Expect(m.top()).To(Equal(int16(9)))
		Expect(m.cpu.StackPointer()).To(Equal(uint16(262)))
		Expect(m.reg(cpu.RegLCL)).To(Equal(uint16(261)))
		Expect(m.reg(cpu.RegARG)).To(Equal(uint16(256)))
		Expect(m.reg(cpu.RegTHIS)).To(Equal(uint16(3000)))
		Expect(m.reg(cpu.RegTHAT)).To(Equal(uint16(4000)))
	})

	It("computes factorial(5) = 120 recursively", func() {
		sys := "function Sys.init 0\npush constant 5\ncall Main.fact 1\nlabel END\ngoto END"
		m := execute([]translator.Unit{
			unit("Sys", sys),
			unit("Main", factorial),
		}, translator.Options{}, nil)

		Expect(m.top()).To(Equal(int16(120)))
		Expect(m.cpu.StackPointer()).To(Equal(uint16(262)))
	})

	It("returns to the right call site for repeated calls", func() {
		sys := `
function Sys.init 0
call Counter.next 0
call Counter.next 0
call Counter.next 0
add
add
label END
goto END
`
		counter := `
function Counter.next 0
push static 0
push constant 1
add
pop static 0
push static 0
return
`
		m := execute([]translator.Unit{unit("Sys", sys), unit("Counter", counter)}, translator.Options{}, nil)
		Expect(m.top()).To(Equal(int16(6)))
		Expect(m.cpu.RAM[m.symbol("Counter.0")]).To(Equal(uint16(3)))
	})

	It("emits one return marker per call site", func() {
		src := strings.Repeat("call Counter.next 0\n", 4)
		text, err := translator.Translate(context.Background(), []translator.Unit{unit("Main", src)}, bare)
		Expect(err).NotTo(HaveOccurred())
		for n := 0; n < 4; n++ {
			Expect(strings.Count(text, fmt.Sprintf("(Counter.next$ret$%d)\n", n))).To(Equal(1))
		}
	})

	It("zero-initialises locals", func() {
		src := "function Sys.init 3\npush local 0\npush local 1\npush local 2\nadd\nadd\nlabel END\ngoto END"
		m := execute([]translator.Unit{unit("Sys", src)}, translator.Options{}, func(c *cpu.CPU) {
			for i := 256; i < 300; i++ {
				c.RAM[i] = 0xFFFF
			}
		})
		Expect(m.top()).To(Equal(int16(0)))
	})

	It("keeps labels of different functions apart", func() {
		src := `
function Sys.init 0
call Main.one 0
call Main.two 0
add
label END
goto END
function Main.one 0
goto SKIP
push constant 100
return
label SKIP
push constant 1
return
function Main.two 0
goto SKIP
push constant 200
return
label SKIP
push constant 2
return
`
		m := execute([]translator.Unit{unit("Main", src)}, translator.Options{}, nil)
		Expect(m.top()).To(Equal(int16(3)))
	})
})

var _ = Describe("Translate", func() {
	units := []translator.Unit{unit("Sys", sumProgram), unit("Sum", sumFunction), unit("Main", factorial)}

	It("is deterministic", func() {
		first, err := translator.Translate(context.Background(), units, translator.Options{})
		Expect(err).NotTo(HaveOccurred())
		for i := 0; i < 10; i++ {
			again, err := translator.Translate(context.Background(), units, translator.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(first))
		}
	})

	It("merges many concurrently parsed units in order", func() {
		var many []translator.Unit
		for i := 0; i < 64; i++ {
			many = append(many, unit(fmt.Sprintf("U%d", i), fmt.Sprintf("push constant %d\npop static 0", i)))
		}
		parsed, err := translator.ParseUnits(context.Background(), many)
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(HaveLen(64))

		merged := translator.Merge(parsed)
		Expect(merged).To(HaveLen(128))
		for i := 0; i < 64; i++ {
			Expect(merged[2*i].String()).To(Equal(fmt.Sprintf("push constant %d", i)))
		}
	})

	It("emits the bootstrap only when Sys.init is declared", func() {
		with, err := translator.Translate(context.Background(), units, translator.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(with).To(HavePrefix("@256\nD=A\n@SP\nM=D\n"))

		without, err := translator.Translate(context.Background(), units[1:], translator.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(without).NotTo(ContainSubstring("@256"))
	})

	It("produces the same result with numeric comparison jumps", func() {
		sys := "function Sys.init 0\npush constant 6\ncall Main.fact 1\nlabel END\ngoto END"
		opts := translator.Options{NumericJumps: true}
		m := execute([]translator.Unit{unit("Sys", sys), unit("Main", factorial)}, opts, nil)

		Expect(m.text).NotTo(ContainSubstring("CMP$"))
		Expect(m.top()).To(Equal(int16(720)))
	})

	It("fails with no output on a syntax error", func() {
		text, err := translator.Translate(context.Background(), []translator.Unit{
			unit("Good", "push constant 1"),
			unit("Bad", "push constant 1\npush nowhere 2"),
		}, translator.Options{})

		Expect(text).To(BeEmpty())
		Expect(err).To(MatchError(translator.ErrSyntax))

		var se *translator.SyntaxError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Scope).To(Equal("Bad"))
		Expect(se.Line).To(Equal(2))
	})

	It("reports the first malformed unit in unit order", func() {
		body := strings.Repeat("push constant 1\npop temp 0\n", 1000)
		var many []translator.Unit
		for i := 0; i < 16; i++ {
			many = append(many, unit(fmt.Sprintf("U%d", i), body+"push nowhere 1"))
		}
		for run := 0; run < 50; run++ {
			_, err := translator.ParseUnits(context.Background(), many)
			var se *translator.SyntaxError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Scope).To(Equal("U0"))
			Expect(se.Line).To(Equal(2001))
		}
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := translator.Translate(ctx, units, translator.Options{})
		Expect(err).To(MatchError(context.Canceled))
	})
})

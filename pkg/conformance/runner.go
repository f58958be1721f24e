package conformance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"hackvm/pkg/asm"
	"hackvm/pkg/cpu"
	"hackvm/pkg/translator"
)

// DefaultCycles bounds a test program that sets no cycle limit of its own.
const DefaultCycles = 1_000_000

// TestResult represents the outcome of running a single test
type TestResult struct {
	Test       LoadedTest
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
	Cycles     uint64
}

// Runner executes conformance tests through the whole toolchain:
// translate, assemble, load, run, compare.
type Runner struct {
	MaxCycles uint64
}

// NewRunner creates a runner with the default cycle limit
func NewRunner() *Runner {
	return &Runner{MaxCycles: DefaultCycles}
}

// Run executes a single test case
func (r *Runner) Run(ctx context.Context, test LoadedTest) TestResult {
	if skipped, reason := test.Test.IsSkipped(); skipped {
		return TestResult{Test: test, Skipped: true, SkipReason: reason}
	}

	fail := func(format string, args ...any) TestResult {
		return TestResult{Test: test, Error: fmt.Errorf(format, args...)}
	}

	mode, err := translator.ParseBootstrapMode(test.Test.Bootstrap)
	if err != nil {
		return fail("%v", err)
	}

	units := make([]translator.Unit, len(test.Test.Units))
	for i, u := range test.Test.Units {
		units[i] = translator.Unit{Scope: u.Scope, Source: u.Source}
	}

	text, err := translator.Translate(ctx, units, translator.Options{
		Bootstrap:    mode,
		NumericJumps: test.Test.NumericJumps,
	})
	if want := test.Test.Expect.Error; want != "" {
		if err == nil {
			return fail("expected translation to fail with %q", want)
		}
		if !strings.Contains(err.Error(), want) {
			return fail("translation error %q does not contain %q", err, want)
		}
		return TestResult{Test: test, Passed: true}
	}
	if err != nil {
		return fail("translate: %w", err)
	}

	program, _, err := asm.Assemble(text)
	if err != nil {
		return fail("assemble: %w", err)
	}

	c := cpu.NewCPU()
	if err := c.Load(program); err != nil {
		return fail("load: %w", err)
	}
	c.RAM[cpu.RegSP] = cpu.StackBase
	for addr, val := range test.Test.RAM {
		if addr < 0 || addr >= cpu.RAMSize {
			return fail("initial ram address %d out of range", addr)
		}
		c.RAM[addr] = uint16(val)
	}

	cycles := test.Test.Cycles
	if cycles == 0 {
		cycles = r.MaxCycles
	}
	if err := c.Run(cycles); err != nil {
		return fail("run: %w", err)
	}

	if mismatches := check(c, test.Test.Expect); len(mismatches) > 0 {
		return TestResult{
			Test:   test,
			Error:  fmt.Errorf("%s", strings.Join(mismatches, "; ")),
			Cycles: c.Cycles,
		}
	}
	return TestResult{Test: test, Passed: true, Cycles: c.Cycles}
}

// check compares the machine against the expectation and describes every
// difference, in a stable order.
func check(c *cpu.CPU, want Expectation) []string {
	var mismatches []string

	addrs := make([]int, 0, len(want.RAM))
	for addr := range want.RAM {
		addrs = append(addrs, addr)
	}
	sort.Ints(addrs)
	for _, addr := range addrs {
		if addr < 0 || addr >= cpu.RAMSize {
			mismatches = append(mismatches, fmt.Sprintf("expected ram address %d out of range", addr))
			continue
		}
		if got := c.RAM[addr]; got != uint16(want.RAM[addr]) {
			mismatches = append(mismatches, fmt.Sprintf("RAM[%d] = %d, want %d", addr, int16(got), want.RAM[addr]))
		}
	}

	if want.SP != nil {
		if got := int(c.StackPointer()); got != *want.SP {
			mismatches = append(mismatches, fmt.Sprintf("SP = %d, want %d", got, *want.SP))
		}
	}

	if want.StackTop != nil {
		top, ok := c.StackTop()
		if !ok || uint16(top) != uint16(*want.StackTop) {
			mismatches = append(mismatches, fmt.Sprintf("stack top = %d, want %d", top, *want.StackTop))
		}
	}

	if want.Stack != nil {
		got := c.Stack()
		same := len(got) == len(want.Stack)
		for i := 0; same && i < len(got); i++ {
			same = uint16(got[i]) == uint16(want.Stack[i])
		}
		if !same {
			mismatches = append(mismatches, fmt.Sprintf("stack = %v, want %v", got, want.Stack))
		}
	}

	return mismatches
}

// RunAll executes all loaded tests in order
func (r *Runner) RunAll(ctx context.Context, tests []LoadedTest) []TestResult {
	results := make([]TestResult, len(tests))
	for i, test := range tests {
		results[i] = r.Run(ctx, test)
	}
	return results
}

// SummaryStats computes statistics from test results
type SummaryStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ComputeStats generates statistics from test results
func ComputeStats(results []TestResult) SummaryStats {
	stats := SummaryStats{Total: len(results)}
	for _, r := range results {
		if r.Skipped {
			stats.Skipped++
		} else if r.Passed {
			stats.Passed++
		} else {
			stats.Failed++
		}
	}
	return stats
}

// FormatStats returns a human-readable summary
func FormatStats(stats SummaryStats) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)",
		stats.Passed, stats.Failed, stats.Skipped, stats.Total)
}

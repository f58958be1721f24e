package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pterm/pterm"

	"hackvm/pkg/asm"
	"hackvm/pkg/conformance"
	"hackvm/pkg/config"
	"hackvm/pkg/cpu"
	"hackvm/pkg/logging"
	"hackvm/pkg/translator"
	"hackvm/pkg/utils"
)

type runOptions struct {
	Cycles     uint64
	Snapshot   string
	Screenshot string
	Assembly   string
	Hack       string
}

// buildMachine translates and assembles the program at path and loads it
// into a fresh CPU with SP at the stack base. The assembly and machine code
// are written out when opts names files for them.
func buildMachine(ctx context.Context, cfg *config.Config, path string, opts runOptions) (*cpu.CPU, error) {
	units, err := utils.LoadUnits([]string{path})
	if err != nil {
		return nil, err
	}

	parsed, err := translator.ParseUnits(ctx, units)
	if err != nil {
		return nil, err
	}
	program := translator.Merge(parsed)
	topts := cfg.Translate.Options()
	if topts.Bootstrap == translator.BootstrapAuto && !translator.Declares(program, cfg.Translate.Entry) {
		logging.LogWarning("Translate", fmt.Sprintf("no %s declared; running from the first command", cfg.Translate.Entry))
	}

	code, err := translator.Generate(program, topts)
	if err != nil {
		return nil, err
	}
	text := translator.Render(code)
	if opts.Assembly != "" {
		if err := os.WriteFile(opts.Assembly, []byte(text), 0o644); err != nil {
			return nil, err
		}
	}

	words, _, err := asm.Assemble(text)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	logging.LogInfo("Assemble", fmt.Sprintf("%d units, %d words", len(units), len(words)))
	if opts.Hack != "" {
		if err := os.WriteFile(opts.Hack, []byte(asm.FormatHack(words)), 0o644); err != nil {
			return nil, err
		}
	}
	return loadWords(cfg, words)
}

// loadWords puts a program into a fresh CPU with SP at the stack base.
func loadWords(cfg *config.Config, words []uint16) (*cpu.CPU, error) {
	vm := cpu.NewCPU()
	vm.StopOnLoop = cfg.Emulator.StopOnLoop
	if err := vm.Load(words); err != nil {
		return nil, err
	}
	vm.RAM[cpu.RegSP] = cpu.StackBase
	return vm, nil
}

func execRun(ctx context.Context, cfg *config.Config, path string, opts runOptions, out io.Writer) error {
	vm, err := buildMachine(ctx, cfg, path, opts)
	if err != nil {
		return err
	}
	return runAndReport(cfg, vm, opts, out)
}

// execResume continues from a snapshot, or starts a .hack machine code file
// from reset.
func execResume(cfg *config.Config, path string, opts runOptions, out io.Writer) error {
	if filepath.Ext(path) == hackExt {
		text, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		words, err := asm.ParseHack(string(text))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		vm, err := loadWords(cfg, words)
		if err != nil {
			return err
		}
		logging.LogInfo("Resume", fmt.Sprintf("%d words from %s", len(words), path))
		return runAndReport(cfg, vm, opts, out)
	}

	vm := cpu.NewCPU()
	if err := vm.RestoreFromFile(path); err != nil {
		return err
	}
	logging.LogInfo("Resume", fmt.Sprintf("PC=%d after %d cycles", vm.PC, vm.Cycles))
	return runAndReport(cfg, vm, opts, out)
}

const hackExt = ".hack"

// runAndReport runs vm for at most opts.Cycles more cycles, prints the final
// state and writes the requested artifacts. Hitting the cycle limit is only a
// warning: the state reached so far is still reported and saved.
func runAndReport(cfg *config.Config, vm *cpu.CPU, opts runOptions, out io.Writer) error {
	limit := opts.Cycles
	if limit > 0 {
		limit += vm.Cycles
	}
	if err := vm.Run(limit); err != nil {
		if !errors.Is(err, cpu.ErrCycleLimit) {
			return err
		}
		logging.LogWarning("Run", err.Error())
	}

	if err := report(out, vm, cfg.Emulator.DumpStack); err != nil {
		return err
	}

	if opts.Snapshot != "" {
		if err := vm.SnapshotToFile(opts.Snapshot); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		logging.LogInfo("Snapshot", opts.Snapshot)
	}
	if opts.Screenshot != "" {
		if err := vm.SaveScreenshot(opts.Screenshot, cfg.Screen.Scale); err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
		logging.LogInfo("Screenshot", opts.Screenshot)
	}
	return nil
}

// report prints the registers and the top depth stack entries, newest first.
func report(out io.Writer, vm *cpu.CPU, depth int) error {
	state := "running"
	if vm.Halted {
		state = "halted"
	}
	fmt.Fprintf(out, "%s after %d cycles: PC=%d A=%d D=%d\n", state, vm.Cycles, vm.PC, vm.A, int16(vm.D))

	data := pterm.TableData{{"Register", "Value"}}
	for i, name := range []string{"SP", "LCL", "ARG", "THIS", "THAT"} {
		data = append(data, []string{name, strconv.Itoa(int(vm.RAM[i]))})
	}
	stack := vm.Stack()
	for i := 0; i < depth && i < len(stack); i++ {
		addr := len(stack) - 1 - i
		data = append(data, []string{
			fmt.Sprintf("RAM[%d]", cpu.StackBase+addr),
			strconv.Itoa(int(stack[addr])),
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, table)
	return err
}

func execTest(ctx context.Context, cfg *config.Config, dir string) error {
	tests, err := conformance.LoadSuites(dir)
	if err != nil {
		return err
	}

	runner := conformance.NewRunner()
	if cfg.Emulator.MaxCycles > 0 {
		runner.MaxCycles = cfg.Emulator.MaxCycles
	}
	results := runner.RunAll(ctx, tests)

	for _, r := range results {
		name := r.Test.File + "/" + r.Test.Test.Name
		switch {
		case r.Skipped:
			logging.LogInfo("Skip", name+": "+r.SkipReason)
		case !r.Passed:
			logging.LogWarning("Fail", name+": "+r.Error.Error())
		default:
			logging.LogInfo("Pass", fmt.Sprintf("%s (%d cycles)", name, r.Cycles))
		}
	}

	stats := conformance.ComputeStats(results)
	logging.PrintInfoMessage("Conformance", conformance.FormatStats(stats))
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d tests failed", stats.Failed, stats.Total)
	}
	return nil
}

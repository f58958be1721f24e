// Command console runs VM programs headless on the Hack emulator.
//
//	console run prog/ --cycles 100000 --snapshot out.zip
//	console test pkg/conformance/testdata
//	console resume out.zip
//	console resume prog.hack
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ComedicChimera/olive"
	"github.com/tebeka/atexit"

	"hackvm/pkg/config"
	"hackvm/pkg/logging"
	"hackvm/pkg/utils"
)

// Version is reported by the version subcommand.
const Version = "0.3.0"

func main() {
	atexit.Exit(execute(os.Args))
}

// execute parses the command line and dispatches to a subcommand. It returns
// the process exit code.
func execute(args []string) int {
	cli := olive.NewCLI("console", "console translates and runs VM programs on the Hack emulator", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the log level", false, []string{"silent", "error", "warning", "verbose"})
	logLvlArg.SetDefaultValue("warning")
	cli.AddStringArg("config", "c", "path to the configuration file", false)

	runCmd := cli.AddSubcommand("run", "translate, assemble and run a program", true)
	runCmd.AddPrimaryArg("path", "a .vm file or a directory of them", true)
	runCmd.AddStringArg("cycles", "n", "maximum cycles to run, 0 for no limit", false)
	runCmd.AddStringArg("snapshot", "s", "write a machine snapshot when the run ends", false)
	runCmd.AddStringArg("screenshot", "p", "write the screen as a PNG when the run ends", false)
	runCmd.AddStringArg("asm", "a", "write the generated assembly to a file", false)
	runCmd.AddStringArg("hack", "b", "write the machine code as a .hack file", false)

	resumeCmd := cli.AddSubcommand("resume", "continue a run from a machine snapshot or a .hack file", true)
	resumeCmd.AddPrimaryArg("snapshot-path", "the snapshot or .hack file to load", true)
	resumeCmd.AddStringArg("cycles", "n", "maximum cycles to run, 0 for no limit", false)
	resumeCmd.AddStringArg("snapshot", "s", "write a machine snapshot when the run ends", false)
	resumeCmd.AddStringArg("screenshot", "p", "write the screen as a PNG when the run ends", false)

	testCmd := cli.AddSubcommand("test", "run YAML conformance suites", true)
	testCmd.AddPrimaryArg("dir", "the directory holding the suites", true)

	cli.AddSubcommand("config", "print the effective configuration", false)
	cli.AddSubcommand("version", "print the console version", false)

	result, err := olive.ParseArgs(cli, args)
	if err != nil {
		logging.PrintErrorMessage("CLI Usage Error", err)
		return 2
	}

	logging.Initialize(result.Arguments["loglevel"].(string))

	configPath, explicit := config.FileName, false
	if v, ok := result.Arguments["config"]; ok {
		configPath, explicit = v.(string), true
	}
	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		logging.PrintErrorMessage("Config Error", err)
		return 1
	}

	ctx := context.Background()
	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "run":
		path, _ := subResult.PrimaryArg()
		opts, err := runOptionsFrom(subResult, cfg)
		if err != nil {
			logging.PrintErrorMessage("CLI Usage Error", err)
			return 2
		}
		if err := execRun(ctx, cfg, path, opts, os.Stdout); err != nil {
			logging.LogError("Run", err)
		}
	case "resume":
		path, _ := subResult.PrimaryArg()
		opts, err := runOptionsFrom(subResult, cfg)
		if err != nil {
			logging.PrintErrorMessage("CLI Usage Error", err)
			return 2
		}
		if err := execResume(cfg, path, opts, os.Stdout); err != nil {
			logging.LogError("Resume", err)
		}
	case "test":
		dir, _ := subResult.PrimaryArg()
		if err := execTest(ctx, cfg, dir); err != nil {
			logging.LogError("Conformance", err)
		}
	case "config":
		buff, err := cfg.Encode()
		if err != nil {
			logging.LogError("Config Error", err)
			break
		}
		if _, err := os.Stdout.Write(buff); err != nil {
			logging.LogError("Config Error", err)
		}
	case "version":
		logging.PrintInfoMessage("Console Version", Version)
	}

	if !logging.ShouldProceed() {
		return 1
	}
	return 0
}

// loadConfig reads the configuration at path. A missing default file is
// silent; a missing file named on the command line gets a warning.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); explicit && errors.Is(err, os.ErrNotExist) {
		logging.PrintWarningMessage("Config", fmt.Sprintf("%s not found, using defaults", path))
	}
	return config.Load(path)
}

// runOptionsFrom reads the run flags over the configured defaults.
func runOptionsFrom(result *olive.ArgParseResult, cfg *config.Config) (runOptions, error) {
	opts := runOptions{Cycles: cfg.Emulator.MaxCycles}

	if v, ok := result.Arguments["cycles"]; ok {
		n, err := strconv.ParseUint(v.(string), 10, 64)
		if err != nil {
			return opts, fmt.Errorf("--cycles: %w", err)
		}
		opts.Cycles = n
	}
	for name, dst := range map[string]*string{
		"snapshot":   &opts.Snapshot,
		"screenshot": &opts.Screenshot,
		"asm":        &opts.Assembly,
		"hack":       &opts.Hack,
	} {
		v, ok := result.Arguments[name]
		if !ok {
			continue
		}
		path, err := outputPath(v.(string))
		if err != nil {
			return opts, fmt.Errorf("--%s: %w", name, err)
		}
		*dst = path
	}
	return opts, nil
}

// outputPath resolves an artifact path and checks that its directory exists,
// so a typo fails before the run instead of after it.
func outputPath(p string) (string, error) {
	full, parent, err := utils.GetPathInfo(p)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(parent)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", parent)
	}
	return full, nil
}

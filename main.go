// Command hackvm translates VM source files into one Hack assembly program.
//
//	hackvm Main.vm Sys.vm > prog.asm
//	hackvm prog/ > prog.asm
//
// Each argument is a .vm file or a directory of them; a file's scope is its
// base name. The assembly goes to standard output, diagnostics to standard
// error.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tebeka/atexit"

	"hackvm/pkg/logging"
	"hackvm/pkg/translator"
	"hackvm/pkg/utils"
)

func main() {
	logging.Initialize("warning")
	atexit.Exit(run(context.Background(), os.Args[1:], os.Stdout))
}

// run translates the given paths and writes the program to out. It returns
// the process exit code.
func run(ctx context.Context, args []string, out io.Writer) int {
	if len(args) == 0 {
		logging.PrintErrorMessage("Usage", errors.New("hackvm <file.vm | dir>..."))
		return 2
	}

	units, err := utils.LoadUnits(args)
	if err != nil {
		logging.LogError("Input Error", err)
		return 1
	}

	parsed, err := translator.ParseUnits(ctx, units)
	if err != nil {
		logging.LogError("Translate", err)
		return 1
	}
	program := translator.Merge(parsed)

	if !translator.Declares(program, translator.DefaultEntry) {
		logging.LogWarning("Translate", fmt.Sprintf("no %s declared; emitting without a bootstrap", translator.DefaultEntry))
	}

	code, err := translator.Generate(program, translator.Options{})
	if err != nil {
		logging.LogError("Generate", err)
		return 1
	}

	if _, err := io.WriteString(out, translator.Render(code)); err != nil {
		logging.LogError("Output Error", err)
		return 1
	}
	return 0
}

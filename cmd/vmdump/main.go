// Command vmdump prints every stage of the pipeline for one VM unit: the
// parsed commands, the generated assembly and the assembled words, then the
// words again in .hack file form.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/tebeka/atexit"

	"hackvm/pkg/asm"
	"hackvm/pkg/logging"
	"hackvm/pkg/translator"
	"hackvm/pkg/utils"
)

const testSource = `push constant 7
push constant 8
add
`

func main() {
	src, scope := testSource, "Test"
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			logging.PrintErrorMessage("Read Error", err)
			atexit.Exit(1)
		}
		src, scope = string(data), utils.ScopeName(os.Args[1])
	}

	if err := dump(os.Stdout, src, scope); err != nil {
		logging.LogError("vmdump", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func dump(w io.Writer, src, scope string) error {
	cmds, err := translator.Parse(src, scope)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Commands (%d)\n", len(cmds))
	for _, cmd := range cmds {
		fmt.Fprintln(w, " ", cmd)
	}
	fmt.Fprintln(w)

	code, err := translator.Generate(cmds, translator.Options{Annotate: true})
	if err != nil {
		return err
	}
	text := translator.Render(code)

	fmt.Fprintln(w, "Generated Assembly")
	fmt.Fprint(w, text)
	fmt.Fprintln(w)

	a := asm.NewAssembler()
	words, sourceMap, err := a.Assemble(text)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Machine Code (%d words)\n", len(words))
	for addr, word := range words {
		fmt.Fprintf(w, "  %5d  %016b  line %d\n", addr, word, sourceMap[uint16(addr)])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Hack File")
	_, err = io.WriteString(w, asm.FormatHack(words))
	return err
}

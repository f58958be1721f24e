package logging

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"hackvm/pkg/translator"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

// PrintErrorMessage prints a standard Go error regardless of the log level.
func PrintErrorMessage(tag string, err error) {
	logger.m.Lock()
	defer logger.m.Unlock()
	printTagged(logger.out, ErrorStyleBG, ErrorColorFG, tag, err.Error())
}

// PrintWarningMessage prints a warning regardless of the log level.
func PrintWarningMessage(tag, msg string) {
	logger.m.Lock()
	defer logger.m.Unlock()
	printTagged(logger.out, WarnStyleBG, WarnColorFG, tag, msg)
}

// PrintInfoMessage prints an informational message regardless of the log level.
func PrintInfoMessage(tag, msg string) {
	logger.m.Lock()
	defer logger.m.Unlock()
	printTagged(logger.out, InfoStyleBG, InfoColorFG, tag, msg)
}

func printTagged(w io.Writer, style *pterm.Style, color pterm.Color, tag, msg string) {
	fmt.Fprint(w, style.Sprint(tag))
	fmt.Fprintln(w, color.Sprint(" "+msg))
}

// -----------------------------------------------------------------------------

type errorMessage struct {
	tag string
	err error
}

func (*errorMessage) level() int { return LogLevelError }

func (em *errorMessage) display(w io.Writer) {
	printTagged(w, ErrorStyleBG, ErrorColorFG, em.tag, em.err.Error())
}

type textMessage struct {
	tag, msg string
	lvl      int
}

func (tm *textMessage) level() int { return tm.lvl }

func (tm *textMessage) display(w io.Writer) {
	if tm.lvl == LogLevelWarning {
		printTagged(w, WarnStyleBG, WarnColorFG, tm.tag, tm.msg)
		return
	}
	printTagged(w, InfoStyleBG, InfoColorFG, tm.tag, tm.msg)
}

type syntaxMessage struct {
	err *translator.SyntaxError
}

func (*syntaxMessage) level() int { return LogLevelError }

// display shows a banner naming the unit, the offending line with its number
// and a row of carets under it, then the message.
func (sm *syntaxMessage) display(w io.Writer) {
	const kind = "Syntax Error"

	fmt.Fprint(w, "\n-- ")
	fmt.Fprint(w, ErrorStyleBG.Sprint(kind))
	fmt.Fprint(w, " ")

	bannerLen := pterm.GetTerminalWidth() / 2
	if bannerLen > 50 {
		bannerLen = 50
	}
	dashCount := bannerLen - len(sm.err.Scope) - len(kind) - 1
	if dashCount < 2 {
		dashCount = 2
	}
	fmt.Fprint(w, strings.Repeat("-", dashCount)+" ")
	fmt.Fprintln(w, InfoColorFG.Sprint(sm.err.Scope))

	if sm.err.Line > 0 {
		lineNumber := strconv.Itoa(sm.err.Line)
		gutter := strings.Repeat(" ", len(lineNumber)+1)

		fmt.Fprint(w, InfoColorFG.Sprint(lineNumber+" "))
		fmt.Fprintln(w, "|  "+sm.err.Text)
		fmt.Fprint(w, gutter+"|  ")
		fmt.Fprintln(w, ErrorColorFG.Sprint(strings.Repeat("^", len(sm.err.Text))))
	}

	fmt.Fprintln(w, sm.err.Msg)
	fmt.Fprintln(w)
}

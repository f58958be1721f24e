package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hackvm/pkg/config"
	"hackvm/pkg/cpu"
	"hackvm/pkg/logging"
)

const sumProgram = `
function Sys.init 0
push constant 3
push constant 4
call Sys.sum 2
label HALT
goto HALT
function Sys.sum 0
push argument 0
push argument 1
add
return
`

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Sys.vm"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func silence(t *testing.T) *bytes.Buffer {
	t.Helper()
	logging.Initialize("warning")
	buf := new(bytes.Buffer)
	logging.SetOutput(buf)
	return buf
}

func TestExecRunReportsStack(t *testing.T) {
	silence(t)
	dir := writeProgram(t, sumProgram)
	cfg := config.Default()
	asmPath := filepath.Join(t.TempDir(), "out.asm")

	var out bytes.Buffer
	opts := runOptions{Cycles: 10000, Assembly: asmPath}
	if err := execRun(context.Background(), cfg, dir, opts, &out); err != nil {
		t.Fatalf("execRun: %v", err)
	}

	text := out.String()
	if !strings.HasPrefix(text, "halted after") {
		t.Errorf("report should start with the halt state:\n%s", text)
	}
	// Sys.init frame occupies 256..260, the sum lands at 261.
	if !strings.Contains(text, "RAM[261]") || !strings.Contains(text, "7") {
		t.Errorf("report missing the returned sum:\n%s", text)
	}

	written, err := os.ReadFile(asmPath)
	if err != nil {
		t.Fatalf("assembly not written: %v", err)
	}
	if !strings.Contains(string(written), "(Sys.sum)") {
		t.Errorf("assembly file lacks the function label")
	}
}

func TestCycleLimitIsAWarning(t *testing.T) {
	logs := silence(t)
	dir := writeProgram(t, `
function Sys.init 0
label SPIN
push constant 1
if-goto SPIN
`)

	var out bytes.Buffer
	if err := execRun(context.Background(), config.Default(), dir, runOptions{Cycles: 500}, &out); err != nil {
		t.Fatalf("execRun: %v", err)
	}
	if !strings.Contains(logs.String(), "cycle limit") {
		t.Errorf("expected a cycle limit warning:\n%s", logs)
	}
	if !strings.HasPrefix(out.String(), "running after 500 cycles") {
		t.Errorf("unexpected report:\n%s", out.String())
	}
}

func TestSnapshotAndResume(t *testing.T) {
	silence(t)
	dir := writeProgram(t, sumProgram)
	cfg := config.Default()
	tmp := t.TempDir()
	snap := filepath.Join(tmp, "mid.zip")

	var out bytes.Buffer
	if err := execRun(context.Background(), cfg, dir, runOptions{Cycles: 40, Snapshot: snap}, &out); err != nil {
		t.Fatalf("execRun: %v", err)
	}

	restored := cpu.NewCPU()
	if err := restored.RestoreFromFile(snap); err != nil {
		t.Fatalf("snapshot unreadable: %v", err)
	}
	if restored.Halted || restored.Cycles != 40 {
		t.Fatalf("snapshot state: halted=%v cycles=%d", restored.Halted, restored.Cycles)
	}

	out.Reset()
	shot := filepath.Join(tmp, "screen.png")
	if err := execResume(cfg, snap, runOptions{Cycles: 10000, Screenshot: shot}, &out); err != nil {
		t.Fatalf("execResume: %v", err)
	}
	if !strings.HasPrefix(out.String(), "halted after") || !strings.Contains(out.String(), "RAM[261]") {
		t.Errorf("resumed run did not finish:\n%s", out.String())
	}
	if _, err := os.Stat(shot); err != nil {
		t.Errorf("screenshot not written: %v", err)
	}
}

func TestHackOutputAndResume(t *testing.T) {
	silence(t)
	dir := writeProgram(t, sumProgram)
	cfg := config.Default()
	hack := filepath.Join(t.TempDir(), "prog.hack")

	var out bytes.Buffer
	if err := execRun(context.Background(), cfg, dir, runOptions{Cycles: 10, Hack: hack}, &out); err != nil {
		t.Fatalf("execRun: %v", err)
	}
	text, err := os.ReadFile(hack)
	if err != nil {
		t.Fatalf("machine code not written: %v", err)
	}
	for i, line := range strings.Split(strings.TrimSpace(string(text)), "\n") {
		if len(line) != 16 || strings.Trim(line, "01") != "" {
			t.Fatalf("line %d: %q is not a binary word", i+1, line)
		}
	}

	out.Reset()
	if err := execResume(cfg, hack, runOptions{Cycles: 10000}, &out); err != nil {
		t.Fatalf("execResume: %v", err)
	}
	if !strings.HasPrefix(out.String(), "halted after") || !strings.Contains(out.String(), "RAM[261]") {
		t.Errorf("program loaded from machine code did not finish:\n%s", out.String())
	}
}

func TestResumeBadHack(t *testing.T) {
	silence(t)
	hack := filepath.Join(t.TempDir(), "bad.hack")
	if err := os.WriteFile(hack, []byte("0000000000000010\n12\n"), 0644); err != nil {
		t.Fatal(err)
	}
	err := execResume(config.Default(), hack, runOptions{}, new(bytes.Buffer))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("execResume error = %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	got, err := outputPath(filepath.Join(dir, "sub", "..", "out.zip"))
	if err != nil {
		t.Fatalf("outputPath: %v", err)
	}
	if got != filepath.Join(dir, "out.zip") {
		t.Errorf("outputPath = %q", got)
	}

	if _, err := outputPath(filepath.Join(dir, "missing", "out.zip")); err == nil {
		t.Error("a missing directory should be rejected")
	}
	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := outputPath(filepath.Join(file, "out.zip")); err == nil {
		t.Error("a file used as a directory should be rejected")
	}
}

func TestLoadConfigMissing(t *testing.T) {
	logs := silence(t)
	missing := filepath.Join(t.TempDir(), "nope.toml")

	cfg, err := loadConfig(missing, false)
	if err != nil || cfg.Translate.Entry != "Sys.init" {
		t.Fatalf("loadConfig = %v, %v", cfg, err)
	}
	if logs.Len() != 0 {
		t.Errorf("default file should be silent:\n%s", logs)
	}

	if _, err := loadConfig(missing, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "using defaults") {
		t.Errorf("expected a warning for a named file:\n%s", logs)
	}
}

func TestExecRunSyntaxError(t *testing.T) {
	silence(t)
	dir := writeProgram(t, "function Sys.init 0\npush nowhere 1\n")

	var out bytes.Buffer
	err := execRun(context.Background(), config.Default(), dir, runOptions{}, &out)
	if err == nil || !strings.Contains(err.Error(), `unknown segment "nowhere"`) {
		t.Errorf("execRun error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be reported on failure:\n%s", out.String())
	}
}

func TestExecTestSuites(t *testing.T) {
	logs := silence(t)
	if err := execTest(context.Background(), config.Default(), "../../pkg/conformance/testdata"); err != nil {
		t.Fatalf("execTest: %v\n%s", err, logs)
	}
	if !strings.Contains(logs.String(), "0 failed") {
		t.Errorf("summary missing:\n%s", logs)
	}
}

func TestReportDepth(t *testing.T) {
	vm := cpu.NewCPU()
	vm.RAM[cpu.RegSP] = cpu.StackBase + 4
	for i := 0; i < 4; i++ {
		vm.RAM[cpu.StackBase+i] = uint16(10 + i)
	}

	var out bytes.Buffer
	if err := report(&out, vm, 2); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	if !strings.Contains(text, "RAM[259]") || !strings.Contains(text, "RAM[258]") {
		t.Errorf("top two entries missing:\n%s", text)
	}
	if strings.Contains(text, "RAM[257]") {
		t.Errorf("depth 2 should hide deeper entries:\n%s", text)
	}
}

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"hackvm/pkg/translator"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate(): %v", err)
	}
	if cfg.Translate.Entry != "Sys.init" {
		t.Errorf("Entry = %q; want Sys.init", cfg.Translate.Entry)
	}
	if cfg.Emulator.MaxCycles != 5_000_000 {
		t.Errorf("MaxCycles = %d; want 5000000", cfg.Emulator.MaxCycles)
	}
}

func TestParseOverrides(t *testing.T) {
	src := `
[translate]
entry = "Main.main"
bootstrap = "always"
annotate = true

[emulator]
max-cycles = 1000
stop-on-loop = false

[screen]
scale = 3
`
	cfg, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := Default()
	want.Translate.Entry = "Main.main"
	want.Translate.Bootstrap = translator.BootstrapAlways
	want.Translate.Annotate = true
	want.Emulator.MaxCycles = 1000
	want.Emulator.StopOnLoop = false
	want.Screen.Scale = 3

	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("Parse() = %+v; want %+v", cfg, want)
	}

	opts := cfg.Translate.Options()
	if opts.Entry != "Main.main" || opts.Bootstrap != translator.BootstrapAlways || !opts.Annotate {
		t.Errorf("Options() = %+v", opts)
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Parse(nil) = %+v; want defaults", cfg)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"BadBootstrap", "[translate]\nbootstrap = \"sometimes\"", "bootstrap mode"},
		{"EmptyEntry", "[translate]\nentry = \"\"", "entry"},
		{"DollarEntry", "[translate]\nentry = \"a$b\"", "entry"},
		{"DashEntry", "[translate]\nentry = \"a-b\"", "not a valid function name"},
		{"PlatformEntry", "[translate]\nentry = \"R13\"", "not a valid function name"},
		{"StaticShapedEntry", "[translate]\nentry = \"Foo.0\"", "not a valid function name"},
		{"NegativeCycles", "[emulator]\nmax-cycles = -5", "max-cycles"},
		{"NegativeDump", "[emulator]\ndump-stack = -1", "dump-stack"},
		{"ScaleTooLarge", "[screen]\nscale = 9", "screen.scale"},
		{"ZeroSteps", "[screen]\nsteps-per-frame = 0", "steps-per-frame"},
		{"WrongType", "[screen]\nscale = \"big\"", ""},
		{"Malformed", "[screen\nscale = 1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q should mention %q", err, tt.msg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("[emulator]\ndump-stack = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Emulator.DumpStack != 2 {
		t.Errorf("DumpStack = %d; want 2", cfg.Emulator.DumpStack)
	}

	if err := os.WriteFile(path, []byte("[screen]\nscale = 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = Load(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("Load error should name the file, got %v", err)
	}
}

func TestEncode(t *testing.T) {
	cfg := Default()
	cfg.Translate.Bootstrap = translator.BootstrapNever
	cfg.Screen.Title = "Pong"

	buff, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(buff)
	for _, want := range []string{"[translate]", "bootstrap = \"never\"", "[screen]", "title = \"Pong\""} {
		if !strings.Contains(text, want) {
			t.Errorf("encoded config missing %q:\n%s", want, text)
		}
	}

	back, err := Parse(buff)
	if err != nil {
		t.Fatalf("Parse(Encode()): %v", err)
	}
	if !reflect.DeepEqual(back, cfg) {
		t.Errorf("Parse(Encode()) = %+v; want %+v", back, cfg)
	}
}

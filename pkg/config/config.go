// Package config loads hackvm.toml, the settings file shared by the
// emulator front ends.
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/pelletier/go-toml"

	"hackvm/pkg/translator"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "hackvm.toml"

// tomlConfigFile is the configuration file as it is encoded in TOML. Every
// field is optional; absent keys keep their defaults.
type tomlConfigFile struct {
	Translate *tomlTranslate `toml:"translate"`
	Emulator  *tomlEmulator  `toml:"emulator"`
	Screen    *tomlScreen    `toml:"screen"`
}

type tomlTranslate struct {
	Entry        *string `toml:"entry"`
	Bootstrap    *string `toml:"bootstrap"`
	Annotate     *bool   `toml:"annotate"`
	NumericJumps *bool   `toml:"numeric-jumps"`
}

type tomlEmulator struct {
	MaxCycles  *int64 `toml:"max-cycles"`
	StopOnLoop *bool  `toml:"stop-on-loop"`
	DumpStack  *int64 `toml:"dump-stack"`
}

type tomlScreen struct {
	Scale         *int64  `toml:"scale"`
	Title         *string `toml:"title"`
	StepsPerFrame *int64  `toml:"steps-per-frame"`
}

// Config is the decoded and validated configuration.
type Config struct {
	Translate Translate
	Emulator  Emulator
	Screen    Screen
}

// Translate holds the code generation settings.
type Translate struct {
	Entry        string
	Bootstrap    translator.BootstrapMode
	Annotate     bool
	NumericJumps bool
}

// Options converts the settings into generator options.
func (t Translate) Options() translator.Options {
	return translator.Options{
		Bootstrap:    t.Bootstrap,
		Entry:        t.Entry,
		Annotate:     t.Annotate,
		NumericJumps: t.NumericJumps,
	}
}

// Emulator holds the CPU run settings. MaxCycles of zero disables the limit.
type Emulator struct {
	MaxCycles  uint64
	StopOnLoop bool
	DumpStack  int
}

// Screen holds the desktop window settings.
type Screen struct {
	Scale         int
	Title         string
	StepsPerFrame int
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Translate: Translate{
			Entry:     translator.DefaultEntry,
			Bootstrap: translator.BootstrapAuto,
		},
		Emulator: Emulator{
			MaxCycles:  5_000_000,
			StopOnLoop: true,
			DumpStack:  8,
		},
		Screen: Screen{
			Scale:         2,
			Title:         "Hack",
			StepsPerFrame: 30000,
		},
	}
}

// Load reads and validates the configuration at path. A missing file is not
// an error: the defaults are returned.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	defer f.Close()

	buff, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(buff)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults and validates the result.
func Parse(buff []byte) (*Config, error) {
	tcf := &tomlConfigFile{}
	if err := toml.Unmarshal(buff, tcf); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := cfg.merge(tcf); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge moves every key present in the file over the defaults.
func (c *Config) merge(tcf *tomlConfigFile) error {
	if t := tcf.Translate; t != nil {
		if t.Entry != nil {
			c.Translate.Entry = *t.Entry
		}
		if t.Bootstrap != nil {
			mode, err := translator.ParseBootstrapMode(*t.Bootstrap)
			if err != nil {
				return err
			}
			c.Translate.Bootstrap = mode
		}
		if t.Annotate != nil {
			c.Translate.Annotate = *t.Annotate
		}
		if t.NumericJumps != nil {
			c.Translate.NumericJumps = *t.NumericJumps
		}
	}

	if e := tcf.Emulator; e != nil {
		if e.MaxCycles != nil {
			if *e.MaxCycles < 0 {
				return fmt.Errorf("max-cycles must not be negative, got %d", *e.MaxCycles)
			}
			c.Emulator.MaxCycles = uint64(*e.MaxCycles)
		}
		if e.StopOnLoop != nil {
			c.Emulator.StopOnLoop = *e.StopOnLoop
		}
		if e.DumpStack != nil {
			c.Emulator.DumpStack = int(*e.DumpStack)
		}
	}

	if s := tcf.Screen; s != nil {
		if s.Scale != nil {
			c.Screen.Scale = int(*s.Scale)
		}
		if s.Title != nil {
			c.Screen.Title = *s.Title
		}
		if s.StepsPerFrame != nil {
			c.Screen.StepsPerFrame = int(*s.StepsPerFrame)
		}
	}
	return nil
}

// Validate checks value ranges that the TOML types alone cannot express.
func (c *Config) Validate() error {
	if c.Translate.Entry == "" {
		return errors.New("translate.entry must not be empty")
	}
	if !translator.ValidName(c.Translate.Entry) {
		return fmt.Errorf("translate.entry %q is not a valid function name", c.Translate.Entry)
	}
	if c.Emulator.DumpStack < 0 {
		return fmt.Errorf("emulator.dump-stack must not be negative, got %d", c.Emulator.DumpStack)
	}
	if c.Screen.Scale < 1 || c.Screen.Scale > 8 {
		return fmt.Errorf("screen.scale must be in 1..8, got %d", c.Screen.Scale)
	}
	if c.Screen.StepsPerFrame < 1 {
		return fmt.Errorf("screen.steps-per-frame must be positive, got %d", c.Screen.StepsPerFrame)
	}
	return nil
}

var bootstrapNames = map[translator.BootstrapMode]string{
	translator.BootstrapAuto:   "auto",
	translator.BootstrapAlways: "always",
	translator.BootstrapNever:  "never",
}

// Encode renders the configuration back into TOML, every key explicit.
func (c *Config) Encode() ([]byte, error) {
	bootstrap := bootstrapNames[c.Translate.Bootstrap]
	maxCycles := int64(c.Emulator.MaxCycles)
	dumpStack := int64(c.Emulator.DumpStack)
	scale := int64(c.Screen.Scale)
	steps := int64(c.Screen.StepsPerFrame)

	return toml.Marshal(tomlConfigFile{
		Translate: &tomlTranslate{
			Entry:        &c.Translate.Entry,
			Bootstrap:    &bootstrap,
			Annotate:     &c.Translate.Annotate,
			NumericJumps: &c.Translate.NumericJumps,
		},
		Emulator: &tomlEmulator{
			MaxCycles:  &maxCycles,
			StopOnLoop: &c.Emulator.StopOnLoop,
			DumpStack:  &dumpStack,
		},
		Screen: &tomlScreen{
			Scale:         &scale,
			Title:         &c.Screen.Title,
			StepsPerFrame: &steps,
		},
	})
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ComedicChimera/olive"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/tebeka/atexit"

	"hackvm/pkg/asm"
	"hackvm/pkg/config"
	"hackvm/pkg/cpu"
	"hackvm/pkg/logging"
	"hackvm/pkg/translator"
	"hackvm/pkg/utils"
)

// Key codes the Hack keyboard register reports for non-printing keys.
var specialKeys = []struct {
	key  ebiten.Key
	code uint16
}{
	{ebiten.KeyEnter, 128},
	{ebiten.KeyBackspace, 129},
	{ebiten.KeyArrowLeft, 130},
	{ebiten.KeyArrowUp, 131},
	{ebiten.KeyArrowRight, 132},
	{ebiten.KeyArrowDown, 133},
	{ebiten.KeyHome, 134},
	{ebiten.KeyEnd, 135},
	{ebiten.KeyPageUp, 136},
	{ebiten.KeyPageDown, 137},
	{ebiten.KeyInsert, 138},
	{ebiten.KeyDelete, 139},
	{ebiten.KeyEscape, 140},
	{ebiten.KeyF1, 141},
	{ebiten.KeyF2, 142},
	{ebiten.KeyF3, 143},
	{ebiten.KeyF4, 144},
	{ebiten.KeyF5, 145},
	{ebiten.KeyF6, 146},
	{ebiten.KeyF7, 147},
	{ebiten.KeyF8, 148},
	{ebiten.KeyF9, 149},
	{ebiten.KeyF10, 150},
	{ebiten.KeyF11, 151},
	{ebiten.KeyF12, 152},
}

func specialKeyCode(k ebiten.Key) (uint16, bool) {
	for _, sk := range specialKeys {
		if sk.key == k {
			return sk.code, true
		}
	}
	return 0, false
}

type Game struct {
	vm            *cpu.CPU
	screenImg     *ebiten.Image // reused 512×256 canvas
	stepsPerFrame int

	held    uint16 // printable character of the key still held down
	pressed []ebiten.Key
	chars   []rune
}

// keyCode returns the value for the keyboard register: a special key when
// one is down, else the last character typed while any key stays pressed.
func (g *Game) keyCode() uint16 {
	g.pressed = inpututil.AppendPressedKeys(g.pressed[:0])
	if len(g.pressed) == 0 {
		g.held = 0
		return 0
	}
	for _, k := range g.pressed {
		if code, ok := specialKeyCode(k); ok {
			return code
		}
	}
	g.chars = ebiten.AppendInputChars(g.chars[:0])
	if n := len(g.chars); n > 0 && g.chars[n-1] < 128 {
		g.held = uint16(g.chars[n-1])
	}
	return g.held
}

func (g *Game) Update() error {
	g.vm.SetKey(g.keyCode())

	for i := 0; i < g.stepsPerFrame; i++ {
		if g.vm.Halted {
			break
		}
		g.vm.Step()
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.screenImg == nil {
		g.screenImg = ebiten.NewImage(cpu.ScreenWidth, cpu.ScreenHeight)
	}
	g.screenImg.WritePixels(g.vm.GetFramebufferRGBA())
	screen.DrawImage(g.screenImg, nil)

	if g.vm.Halted {
		x, y := ebiten.CursorPosition()
		status := fmt.Sprintf("halted after %d cycles", g.vm.Cycles)
		if x >= 0 && x < cpu.ScreenWidth && y >= 0 && y < cpu.ScreenHeight {
			addr := cpu.ScreenWordAddr(x, y)
			status += fmt.Sprintf("  RAM[%d]=%04X", addr, g.vm.RAM[addr])
		}
		ebitenutil.DebugPrint(screen, status)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return cpu.ScreenWidth, cpu.ScreenHeight
}

// loadProgram translates and assembles the program at path into a ready CPU.
func loadProgram(cfg *config.Config, path string) (*cpu.CPU, error) {
	units, err := utils.LoadUnits([]string{path})
	if err != nil {
		return nil, err
	}
	text, err := translator.Translate(context.Background(), units, cfg.Translate.Options())
	if err != nil {
		return nil, err
	}
	words, _, err := asm.Assemble(text)
	if err != nil {
		return nil, err
	}

	vm := cpu.NewCPU()
	vm.StopOnLoop = cfg.Emulator.StopOnLoop
	if err := vm.Load(words); err != nil {
		return nil, err
	}
	vm.RAM[cpu.RegSP] = cpu.StackBase
	return vm, nil
}

func main() {
	cli := olive.NewCLI("desktop", "desktop runs a VM program with the Hack screen and keyboard", true)
	cli.AddPrimaryArg("path", "a .vm file or a directory of them", true)
	cli.AddStringArg("config", "c", "path to the configuration file", false)
	cli.AddStringArg("snapshot", "s", "write a machine snapshot on exit", false)

	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		logging.PrintErrorMessage("CLI Usage Error", err)
		atexit.Exit(2)
	}

	configPath := config.FileName
	if v, ok := result.Arguments["config"]; ok {
		configPath = v.(string)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logging.PrintErrorMessage("Config Error", err)
		atexit.Exit(1)
	}

	path, _ := result.PrimaryArg()
	vm, err := loadProgram(cfg, path)
	if err != nil {
		logging.LogError("Load", err)
		atexit.Exit(1)
	}

	if v, ok := result.Arguments["snapshot"]; ok {
		snapPath := v.(string)
		atexit.Register(func() {
			if err := vm.SnapshotToFile(snapPath); err != nil {
				logging.PrintErrorMessage("Snapshot", err)
			}
		})
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(cpu.ScreenWidth*cfg.Screen.Scale, cpu.ScreenHeight*cfg.Screen.Scale)
	ebiten.SetWindowTitle(cfg.Screen.Title)

	game := &Game{vm: vm, stepsPerFrame: cfg.Screen.StepsPerFrame}
	if err := ebiten.RunGame(game); err != nil {
		logging.PrintErrorMessage("Window", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

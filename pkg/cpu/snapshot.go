package cpu

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// snapshotState is the human-readable part of a machine snapshot.
type snapshotState struct {
	A          uint16    `yaml:"a"`
	D          uint16    `yaml:"d"`
	PC         uint16    `yaml:"pc"`
	Halted     bool      `yaml:"halted"`
	Cycles     uint64    `yaml:"cycles"`
	StopOnLoop bool      `yaml:"stop-on-loop"`
	ProgramLen int       `yaml:"program-len"`
	SP         uint16    `yaml:"sp"`
	LCL        uint16    `yaml:"lcl"`
	ARG        uint16    `yaml:"arg"`
	THIS       uint16    `yaml:"this"`
	THAT       uint16    `yaml:"that"`
	Stack      []int16   `yaml:"stack,flow"`
	Taken      time.Time `yaml:"taken"`
}

// SnapshotToBytes serialises the machine into an in-memory ZIP archive:
// state.yaml plus little-endian ram.bin and rom.bin images.
func (c *CPU) SnapshotToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := snapshotState{
		A:          c.A,
		D:          c.D,
		PC:         c.PC,
		Halted:     c.Halted,
		Cycles:     c.Cycles,
		StopOnLoop: c.StopOnLoop,
		ProgramLen: c.programLen,
		SP:         c.RAM[RegSP],
		LCL:        c.RAM[RegLCL],
		ARG:        c.RAM[RegARG],
		THIS:       c.RAM[RegTHIS],
		THAT:       c.RAM[RegTHAT],
		Stack:      c.Stack(),
		Taken:      time.Now().UTC(),
	}

	stateYAML, err := yaml.Marshal(&state)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	if err := writeZipEntry(zw, "state.yaml", stateYAML); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "ram.bin", uint16SliceToLE(c.RAM[:])); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "rom.bin", uint16SliceToLE(c.ROM[:c.programLen])); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes applies a snapshot produced by SnapshotToBytes.
func (c *CPU) RestoreFromBytes(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	stateYAML, err := readZipEntry(fileMap, "state.yaml")
	if err != nil {
		return err
	}
	var state snapshotState
	if err := yaml.Unmarshal(stateYAML, &state); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}
	if state.ProgramLen < 0 || state.ProgramLen > ROMSize {
		return fmt.Errorf("snapshot program length %d out of range", state.ProgramLen)
	}

	rom, err := readZipEntry(fileMap, "rom.bin")
	if err != nil {
		return err
	}
	ram, err := readZipEntry(fileMap, "ram.bin")
	if err != nil {
		return err
	}

	var romWords [ROMSize]uint16
	if err := leToUint16Slice(rom, romWords[:state.ProgramLen]); err != nil {
		return fmt.Errorf("rom.bin: %w", err)
	}
	var ramWords [RAMSize]uint16
	if err := leToUint16Slice(ram, ramWords[:]); err != nil {
		return fmt.Errorf("ram.bin: %w", err)
	}

	c.ROM = romWords
	c.RAM = ramWords

	c.A = state.A
	c.D = state.D
	c.PC = state.PC
	c.Halted = state.Halted
	c.Cycles = state.Cycles
	c.StopOnLoop = state.StopOnLoop
	c.programLen = state.ProgramLen
	return nil
}

// SnapshotToFile writes the snapshot archive to the given file path.
func (c *CPU) SnapshotToFile(path string) error {
	data, err := c.SnapshotToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a snapshot archive from the given file path.
func (c *CPU) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func uint16SliceToLE(src []uint16) []byte {
	out := make([]byte, len(src)*2)
	for i, v := range src {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

// leToUint16Slice fills dst from src, which must hold exactly len(dst) words.
func leToUint16Slice(src []byte, dst []uint16) error {
	if len(src) != 2*len(dst) {
		return fmt.Errorf("expected %d bytes, got %d", 2*len(dst), len(src))
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint16(src[i*2:])
	}
	return nil
}

package conformance

// TestSuite represents a complete YAML test file
type TestSuite struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Tests       []TestCase `yaml:"tests"`
}

// Unit is one named VM source of a test program
type Unit struct {
	Scope  string `yaml:"scope"`
	Source string `yaml:"source"`
}

// TestCase represents a single program within a suite
type TestCase struct {
	Name         string      `yaml:"name"`
	Description  string      `yaml:"description,omitempty"`
	Skip         interface{} `yaml:"skip,omitempty"`      // bool or string
	Units        []Unit      `yaml:"units"`               // translated in order
	Bootstrap    string      `yaml:"bootstrap,omitempty"` // auto|always|never
	NumericJumps bool        `yaml:"numeric-jumps,omitempty"`
	RAM          map[int]int `yaml:"ram,omitempty"`    // cells set before the run
	Cycles       uint64      `yaml:"cycles,omitempty"` // 0 uses the runner default
	Expect       Expectation `yaml:"expect"`
}

// Expectation defines the machine state expected once the program stops
type Expectation struct {
	RAM      map[int]int `yaml:"ram,omitempty"`       // exact cell values, signed or unsigned
	StackTop *int        `yaml:"stack-top,omitempty"` // value just below SP
	SP       *int        `yaml:"sp,omitempty"`
	Stack    []int       `yaml:"stack,omitempty"` // whole stack from 256 up to SP
	Error    string      `yaml:"error,omitempty"` // translation must fail with this text
}

// IsSkipped returns true if this test should be skipped
func (tc *TestCase) IsSkipped() (bool, string) {
	if tc.Skip == nil {
		return false, ""
	}

	switch v := tc.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
		return false, ""
	case string:
		return true, v
	default:
		return false, ""
	}
}

package conformance

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadedTest represents a test with its source file path
type LoadedTest struct {
	File  string
	Suite TestSuite
	Test  TestCase
}

// LoadSuites walks dir and loads every test case of every .yaml file, in
// lexical file order.
func LoadSuites(dir string) ([]LoadedTest, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("conformance directory: %w", err)
	}

	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var loaded []LoadedTest
	for _, path := range files {
		relPath, _ := filepath.Rel(dir, path)

		tests, err := loadTestFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", relPath, err)
		}
		for _, test := range tests {
			test.File = relPath
			loaded = append(loaded, test)
		}
	}
	return loaded, nil
}

// loadTestFile parses a single YAML file and returns all test cases
func loadTestFile(path string) ([]LoadedTest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var suite TestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, err
	}
	if suite.Name == "" {
		return nil, fmt.Errorf("suite has no name")
	}

	var tests []LoadedTest
	for i, test := range suite.Tests {
		if test.Name == "" {
			return nil, fmt.Errorf("test %d of suite %s has no name", i, suite.Name)
		}
		if len(test.Units) == 0 {
			return nil, fmt.Errorf("test %s has no units", test.Name)
		}
		tests = append(tests, LoadedTest{
			Suite: suite,
			Test:  test,
		})
	}

	return tests, nil
}

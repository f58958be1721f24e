package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hackvm/pkg/translator"
)

// SourceExt is the extension of VM source files.
const SourceExt = ".vm"

// GetPathInfo cleans p into an absolute path and returns it with the
// directory that would hold it.
func GetPathInfo(p string) (fullPath, parentDir string, err error) {
	if p == "" {
		return "", "", fmt.Errorf("empty path")
	}
	if fullPath, err = filepath.Abs(p); err != nil {
		return "", "", err
	}
	return fullPath, filepath.Dir(fullPath), nil
}

// ScopeName derives a unit scope from a file path: the base name without
// its extension, so "prog/Main.vm" becomes "Main".
func ScopeName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExpandPaths replaces every directory argument with the .vm files directly
// inside it, sorted by name. File arguments are kept in argument order
// whatever their extension.
func ExpandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == SourceExt {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%s: no %s files", arg, SourceExt)
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

// LoadUnits expands args and reads each file as one translation unit.
func LoadUnits(args []string) ([]translator.Unit, error) {
	paths, err := ExpandPaths(args)
	if err != nil {
		return nil, err
	}

	units := make([]translator.Unit, 0, len(paths))
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		units = append(units, translator.Unit{Scope: ScopeName(path), Source: string(src)})
	}
	return units, nil
}

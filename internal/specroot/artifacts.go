package specroot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// OutputsDir holds the phase artifacts of a spec root.
const OutputsDir = "outputs"

// OutputsChecker answers gate artifact checks against a spec root's
// outputs directory.
type OutputsChecker struct {
	dir string
}

// NewOutputsChecker creates a checker for the given spec root.
func NewOutputsChecker(specDir string) *OutputsChecker {
	return &OutputsChecker{dir: filepath.Join(specDir, OutputsDir)}
}

// Exists reports whether the named artifact is present. Names with path
// separators never match: artifacts are flat files under outputs/.
func (c *OutputsChecker) Exists(name string) bool {
	if name == "" || name != filepath.Base(name) {
		return false
	}
	info, err := os.Stat(filepath.Join(c.dir, name))
	return err == nil && !info.IsDir()
}

// List returns the artifact names under outputs/, sorted.
func (c *OutputsChecker) List() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

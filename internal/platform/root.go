package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFile is the project configuration file name.
const ConfigFile = "fieldbook.yaml"

// ErrNoRoot is returned by FindRoot when no project marker exists between
// the start directory and the filesystem root.
var ErrNoRoot = errors.New("fieldbook project root not found")

// rootMarkers identify a project root: the config file, or a .fieldbook
// directory next to a store.
var rootMarkers = []struct {
	name string
	dir  bool
}{
	{ConfigFile, false},
	{".fieldbook", true},
}

// FindRoot walks up from startDir and returns the absolute path of the first
// directory holding a project marker.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if isProjectRoot(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w above %s", ErrNoRoot, startDir)
		}
		dir = parent
	}
}

func isProjectRoot(dir string) bool {
	for _, m := range rootMarkers {
		info, err := os.Stat(filepath.Join(dir, m.name))
		if err == nil && info.IsDir() == m.dir {
			return true
		}
	}
	return false
}

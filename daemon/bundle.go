package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveBundleExecutable maps a launch path to the executable to
// spawn. A plain file resolves to itself. A directory-structured
// artifact resolves to its entry point: first Contents/MacOS/<stem>,
// then bin/<stem>, then <stem> at the bundle root, where <stem> is the
// bundle name without its extension.
func ResolveBundleExecutable(path string) (exe string, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if !info.IsDir() {
		exe = path
		return
	}

	base := filepath.Base(filepath.Clean(path))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	candidates := []string{
		filepath.Join(path, "Contents", "MacOS", stem),
		filepath.Join(path, "bin", stem),
		filepath.Join(path, stem),
	}
	for _, candidate := range candidates {
		info, statErr := os.Stat(candidate)
		if statErr == nil && info.Mode().IsRegular() {
			exe = candidate
			return
		}
	}
	err = fmt.Errorf("no executable entry point in bundle %s", path)
	return
}

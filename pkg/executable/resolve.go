package executable

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotExecutable is returned by Resolve for a missing or non-executable
// program.
var ErrNotExecutable = errors.New("not an executable")

// Resolve locates a program. Names containing a path separator are taken
// relative to cwd and must be executable files; bare names are first looked
// up in cwd and then in PATH.
func Resolve(name, cwd string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty program name: %w", ErrNotExecutable)
	}
	candidate := name
	if !filepath.IsAbs(candidate) && cwd != "" {
		candidate = filepath.Join(cwd, name)
	}
	if IsExecutable(candidate) {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			return candidate, nil
		}
		return abs, nil
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return "", fmt.Errorf("program %q: %w", name, ErrNotExecutable)
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("program %q: %w", name, ErrNotExecutable)
	}
	return path, nil
}

// IsExecutable reports whether path is a regular file with an execute bit.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}

// Package safepath confines operator-supplied paths to a base directory.
package safepath

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ErrPathSecurity is returned when a path resolves outside the permitted base.
var ErrPathSecurity = errors.New("path escapes permitted base directory")

// Resolve returns the absolute, symlink-free form of p and verifies it lies
// within base. p may be absolute or relative to the working directory, and
// does not need to exist yet; its nearest existing ancestor is resolved instead.
func Resolve(base, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathSecurity)
	}
	absBase, err := realPath(base)
	if err != nil {
		return "", fmt.Errorf("resolve base %s: %w", base, err)
	}
	absPath, err := realPath(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s is not inside %s", ErrPathSecurity, p, absBase)
	}
	return absPath, nil
}

// realPath makes p absolute and evaluates symlinks on the longest existing prefix.
func realPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	var tail []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}

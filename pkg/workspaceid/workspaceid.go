// Package workspaceid validates and canonicalizes the workspacePath used
// to identify a fabric instance's workspace, so the same on-disk directory
// always resolves to the same string regardless of symlinks or how it was
// spelled on the command line.
package workspaceid

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Canonicalize resolves path to an absolute, symlink-evaluated form
// suitable for use as an Instance Record's workspacePath. It supports
// tilde expansion for paths starting with ~/.
//
// If the path doesn't exist yet, Canonicalize falls back to resolving as
// much of the path as does exist and joining the remainder unevaluated,
// rather than failing — a workspace directory may not have been created
// yet when an instance first starts.
func Canonicalize(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("workspace path cannot be empty")
	}

	expanded, err := expandTilde(path)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	abs = filepath.Clean(abs)

	return resolveSymlinks(abs), nil
}

func expandTilde(path string) (string, error) {
	if path == "~" {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand ~: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// resolveSymlinks evaluates symlinks in path, walking up to the nearest
// existing ancestor when path itself doesn't exist yet and reapplying the
// non-existent suffix unevaluated.
func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	var suffix []string
	current := path
	for {
		dir := filepath.Dir(current)
		if dir == current {
			return path
		}

		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			result := filepath.Join(resolved, filepath.Base(current))
			for i := len(suffix) - 1; i >= 0; i-- {
				result = filepath.Join(result, suffix[i])
			}
			return result
		}

		suffix = append(suffix, filepath.Base(current))
		current = dir
	}
}

// IsWithin reports whether candidate is equal to or nested under root.
// Both must already be canonicalized (e.g. via Canonicalize) for the
// comparison to be meaningful.
func IsWithin(root, candidate string) bool {
	if candidate == root {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(candidate, strings.TrimSuffix(root, sep)+sep)
}

// DisplayName derives a human label for a canonicalized workspace path —
// its base name, or the full path if the base name would be ambiguous
// ("/", ".").
func DisplayName(canonicalPath string) string {
	base := filepath.Base(canonicalPath)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return canonicalPath
	}
	return base
}

package snapshot

import (
	"path/filepath"
	"strings"
)

// CleanPath normalizes a path for display and sorting: separators become
// forward slashes and the Windows extended-length prefix is dropped.
func CleanPath(path string) string {
	path = strings.TrimPrefix(path, `\\?\`)
	return filepath.ToSlash(path)
}

// relPath returns the cleaned path of target relative to root, falling back
// to the cleaned absolute path when the two do not share a prefix.
func relPath(root, target string) string {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return CleanPath(target)
	}
	return CleanPath(rel)
}

// extOf returns the extension of name without the leading dot, preserving case.
func extOf(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}

package unzip

import (
	"fmt"
	"path/filepath"
	"strings"
)

// safeJoin resolves a ZIP member name against outputRoot, rejecting
// names that escape the root or are absolute. The check is purely
// lexical: components are normalized with no filesystem access and no
// symlink resolution.
//
// The single leading "./" stripping mirrors the semantics exercised by
// rclone's TestStripDotSlashPrefix: only one leading "./" segment is
// removed (so "././file" becomes "./file", still subject to the
// normalization below), and "../" is never stripped since it is the
// traversal attempt this function exists to catch.
func safeJoin(outputRoot, name string) (string, error) {
	cleanName := strings.TrimPrefix(name, "./")

	if filepath.IsAbs(cleanName) {
		return "", fmt.Errorf("%w: %q is absolute", ErrPathUnsafe, name)
	}

	// filepath.Clean collapses ".." components lexically. Any ".."
	// that survives cleaning walks above the joined root.
	joined := filepath.Join(outputRoot, cleanName)
	root := filepath.Clean(outputRoot)

	rel, err := filepath.Rel(root, joined)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrPathUnsafe, name, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes output root", ErrPathUnsafe, name)
	}

	return joined, nil
}

package unzip

import (
	"errors"
	"path/filepath"
	"testing"
)

// TestSafeJoin exercises the path-traversal-relevant member name shapes
// from the original fuzz harness's FilenameSegment enumeration (plain
// names, ".", "..", empty segments), plus the "./" stripping semantics
// rclone's TestStripDotSlashPrefix documents.
func TestSafeJoin(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")

	cases := []struct {
		name    string
		member  string
		wantErr bool
	}{
		{"plain file", "hello.txt", false},
		{"nested path", "a/b/c.bin", false},
		{"leading dot-slash stripped", "./hello.txt", false},
		{"double leading dot-slash only strips one", "././hello.txt", false},
		{"dot-slash directory becomes root", "./", false},
		{"parent traversal rejected", "../evil.txt", true},
		{"nested parent traversal rejected", "a/../../evil.txt", true},
		{"absolute path rejected", "/etc/passwd", true},
		{"pure parent segment rejected", "..", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dest, err := safeJoin(root, tc.member)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("safeJoin(%q) = %q, nil; want ErrPathUnsafe", tc.member, dest)
				}
				if !errors.Is(err, ErrPathUnsafe) {
					t.Fatalf("safeJoin(%q) error = %v; want ErrPathUnsafe", tc.member, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("safeJoin(%q) unexpected error: %v", tc.member, err)
			}
			rel, err := filepath.Rel(root, dest)
			if err != nil || rel == ".." || (len(rel) >= 3 && rel[:3] == "../") {
				t.Fatalf("safeJoin(%q) = %q escapes root %q", tc.member, dest, root)
			}
		})
	}
}

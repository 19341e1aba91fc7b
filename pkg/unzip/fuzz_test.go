package unzip

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/DebianArch64/ripunzip/internal/testutil"
)

// FuzzUnzipAgainstBaseline checks a differential property: for any
// archive the standard library's own reader accepts, this engine's
// output tree must match the standard library's own extraction
// byte-for-byte.
func FuzzUnzipAgainstBaseline(f *testing.F) {
	seed, err := testutil.BuildZip([]testutil.ArchiveEntry{
		{Name: "a.txt", Data: []byte("hello")},
		{Name: "dir/b.bin", Data: bytes.Repeat([]byte{0x7f}, 37)},
	})
	if err != nil {
		f.Fatal(err)
	}
	f.Add(seed)
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		baseline, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			// Not a ZIP the baseline accepts; this engine MUST NOT
			// succeed on a structurally malformed archive either.
			badPath := filepath.Join(t.TempDir(), "in.zip")
			if err := os.WriteFile(badPath, data, 0o644); err != nil {
				t.Fatal(err)
			}
			e, openErr := OpenFile(badPath, Options{OutputDirectory: filepath.Join(t.TempDir(), "engine")}, nil)
			if openErr != nil {
				return
			}
			defer e.Close()
			if e.Unzip(context.Background(), NullReporter{}) == nil {
				t.Fatalf("engine extracted an archive the baseline rejected: %v", err)
			}
			return
		}

		root := t.TempDir()
		baselineOut := filepath.Join(root, "baseline")
		engineOut := filepath.Join(root, "engine")

		if extractBaseline(baseline, baselineOut) != nil {
			// Baseline itself failed on a member (e.g. it accepted the
			// central directory but rejected a compressed payload);
			// the differential property only constrains agreement
			// when the baseline fully succeeds.
			return
		}

		zipPath := filepath.Join(root, "in.zip")
		if err := os.WriteFile(zipPath, data, 0o644); err != nil {
			t.Fatal(err)
		}

		e, err := OpenFile(zipPath, Options{OutputDirectory: engineOut}, nil)
		if err != nil {
			t.Fatalf("engine failed to open an archive the baseline accepted: %v", err)
		}
		defer e.Close()

		if err := e.Unzip(context.Background(), NullReporter{}); err != nil {
			t.Fatalf("engine failed to extract an archive the baseline extracted: %v", err)
		}

		requireSameTree(t, baselineOut, engineOut)
	})
}

func extractBaseline(r *zip.Reader, outDir string) error {
	for _, f := range r.File {
		dest, err := safeJoin(outDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(dest)
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

func requireSameTree(t *testing.T, a, b string) {
	t.Helper()
	var aFiles []string
	_ = filepath.WalkDir(a, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(a, path)
		aFiles = append(aFiles, rel)
		return nil
	})

	for _, rel := range aFiles {
		wantBytes, err := os.ReadFile(filepath.Join(a, rel))
		if err != nil {
			t.Fatalf("reading baseline output %s: %v", rel, err)
		}
		gotBytes, err := os.ReadFile(filepath.Join(b, rel))
		if err != nil {
			t.Fatalf("engine output missing %s: %v", rel, err)
		}
		if !bytes.Equal(wantBytes, gotBytes) {
			t.Fatalf("content mismatch for %s", rel)
		}
	}

	bCount := 0
	_ = filepath.WalkDir(b, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			bCount++
		}
		return nil
	})
	if bCount != len(aFiles) {
		t.Fatalf("engine produced %d files, baseline produced %d", bCount, len(aFiles))
	}
}

package testutil

import (
	"archive/zip"
	"bytes"
)

// ArchiveEntry describes one member to write into a test fixture
// archive. A trailing "/" in Name produces a directory entry.
type ArchiveEntry struct {
	Name string
	Data []byte
}

// BuildZip writes entries into an in-memory ZIP archive using the
// standard library's writer (kept deliberately independent from
// klauspost/compress/zip, the library pkg/unzip reads with, so tests
// exercise interop between the two implementations).
func BuildZip(entries []ArchiveEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.Create(e.Name)
		if err != nil {
			return nil, err
		}
		if len(e.Name) == 0 || e.Name[len(e.Name)-1] != '/' {
			if _, err := fw.Write(e.Data); err != nil {
				return nil, err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

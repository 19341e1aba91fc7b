package unzip

import "io"

// Source is the length-aware reader contract: an
// underlying readable, seekable stream that also exposes its total
// byte length. Parallel access requires computing offsets from the
// end (the ZIP central directory sits relative to end-of-file), so a
// source that cannot report its length cannot back the engine.
//
// Implementations: a local *os.File (length from Stat); the
// RangedHttpReader (length from the server's Content-Length, or from
// Content-Range when it falls back to a ranged GET probe).
type Source interface {
	io.Reader
	io.Seeker
	// Len returns the source's total length. Resolved once at
	// construction; failure to resolve it is fatal for the caller.
	Len() (int64, error)
}

// fileSource adapts *os.File to Source, caching the size obtained via
// Stat at construction.
type fileSource struct {
	f    io.ReadSeekCloser
	size int64
}

func newFileSource(f io.ReadSeekCloser, size int64) *fileSource {
	return &fileSource{f: f, size: size}
}

func (s *fileSource) Read(p []byte) (int, error)           { return s.f.Read(p) }
func (s *fileSource) Seek(off int64, w int) (int64, error) { return s.f.Seek(off, w) }
func (s *fileSource) Len() (int64, error)                  { return s.size, nil }
func (s *fileSource) Close() error                         { return s.f.Close() }

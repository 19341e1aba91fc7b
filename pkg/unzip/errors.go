package unzip

import "errors"

// Error kinds the engine may report: source construction, archive
// parsing, one member's extraction, filesystem setup, an unsafe member
// path, and a mid-stream HTTP failure, plus two more specific
// construction failures (no known length, no range support).
var (
	// ErrSourceOpen is returned when the local file or remote object
	// backing the archive cannot be opened.
	ErrSourceOpen = errors.New("unzip: source could not be opened")

	// ErrArchiveMalformed is returned when the ZIP central directory or
	// a member header is rejected by the archive library.
	ErrArchiveMalformed = errors.New("unzip: archive is malformed")

	// ErrMemberExtract is returned when decompression of a member fails.
	ErrMemberExtract = errors.New("unzip: member extraction failed")

	// ErrFilesystemCreate is returned when the output directory or a
	// destination file cannot be created.
	ErrFilesystemCreate = errors.New("unzip: could not create filesystem entry")

	// ErrPathUnsafe is returned when a member name would escape the
	// output root or is an absolute path.
	ErrPathUnsafe = errors.New("unzip: member path escapes output root")

	// ErrHTTPTransient is returned when a network read fails mid-stream.
	ErrHTTPTransient = errors.New("unzip: transient HTTP error")

	// ErrNoLength is returned when a source's total length cannot be
	// determined at construction time.
	ErrNoLength = errors.New("unzip: source length could not be determined")

	// ErrRangeUnsupported is returned when a remote server does not
	// honor byte-range requests.
	ErrRangeUnsupported = errors.New("unzip: server does not support range requests")
)

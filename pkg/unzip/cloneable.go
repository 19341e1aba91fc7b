package unzip

import (
	"fmt"
	"io"
	"sync"
)

// sharedSource is the state shared by every clone of a
// CloneableSeekableReader: the underlying Source plus the mutex that
// serializes the seek+read transactions performed on it.
type sharedSource struct {
	mu     sync.Mutex
	src    Source
	length int64
	lenErr error
	lenSet bool
}

func (s *sharedSource) lengthLocked() (int64, error) {
	if !s.lenSet {
		s.length, s.lenErr = s.src.Len()
		s.lenSet = true
	}
	return s.length, s.lenErr
}

// CloneableSeekableReader wraps a single underlying Source and hands
// out clones, each with an independent logical cursor, that share the
// source under one mutex. This lets N concurrent extraction workers
// read disjoint byte ranges without each holding its own file
// descriptor or HTTP connection.
type CloneableSeekableReader struct {
	shared *sharedSource
	pos    int64
}

// NewCloneableSeekableReader takes ownership of src and returns the
// first handle over it. Length is cached lazily on first need, not at
// construction.
func NewCloneableSeekableReader(src Source) *CloneableSeekableReader {
	return &CloneableSeekableReader{shared: &sharedSource{src: src}}
}

// Clone returns a new handle sharing the underlying source, positioned
// at the same offset as the caller at the time Clone is invoked.
// Clones are cheap: no new descriptor or connection is opened.
func (r *CloneableSeekableReader) Clone() *CloneableSeekableReader {
	return &CloneableSeekableReader{shared: r.shared, pos: r.pos}
}

// Read acquires the lock, seeks the underlying source to this clone's
// position, issues one read, advances the position by what was
// actually read, and releases the lock. Short reads are propagated
// verbatim; callers must be prepared for them, matching io.Reader's
// general contract.
func (r *CloneableSeekableReader) Read(p []byte) (int, error) {
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()

	length, err := r.shared.lengthLocked()
	if err == nil && r.pos >= length {
		return 0, io.EOF
	}

	if _, err := r.shared.src.Seek(r.pos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("cloneable: seek to %d: %w", r.pos, err)
	}
	n, err := r.shared.src.Read(p)
	if n > 0 {
		r.pos += int64(n)
	}
	return n, err
}

// Seek performs pure arithmetic on this clone's logical position; it
// never touches the underlying source except to resolve the total
// length on a SeekEnd, which is cached under the lock on first use.
// Seeking past the end is permitted (mirrors io.Seeker semantics for
// files); the next Read then returns io.EOF. Seeking to a negative
// absolute position fails.
func (r *CloneableSeekableReader) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = r.pos
	case io.SeekEnd:
		r.shared.mu.Lock()
		length, err := r.shared.lengthLocked()
		r.shared.mu.Unlock()
		if err != nil {
			return 0, fmt.Errorf("cloneable: resolve length: %w", err)
		}
		base = length
	default:
		return 0, fmt.Errorf("cloneable: invalid whence %d", whence)
	}

	next, overflow := addChecked(base, offset)
	if overflow {
		return 0, fmt.Errorf("cloneable: seek arithmetic overflow (base=%d offset=%d)", base, offset)
	}
	if next < 0 {
		return 0, fmt.Errorf("cloneable: negative position %d: %w", next, io.ErrSeekNegative)
	}

	r.pos = next
	return r.pos, nil
}

// Len returns the underlying source's total length, resolving and
// caching it under the lock on first use.
func (r *CloneableSeekableReader) Len() (int64, error) {
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()
	return r.shared.lengthLocked()
}

// ReadAt satisfies io.ReaderAt by performing the seek+read protocol at
// an explicit offset under the shared lock, without disturbing any
// clone's own logical position. This is what lets the shared source be
// handed to Go's archive/zip-compatible readers, which require
// io.ReaderAt rather than Read+Seek: each of the library's internal
// section readers becomes, in effect, an independent cursor over the
// shared source, while ReadAt still serializes the underlying I/O
// through one mutex exactly as Read does.
func (r *CloneableSeekableReader) ReadAt(p []byte, off int64) (int, error) {
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()

	length, err := r.shared.lengthLocked()
	if err == nil && off >= length {
		return 0, io.EOF
	}

	if _, err := r.shared.src.Seek(off, io.SeekStart); err != nil {
		return 0, fmt.Errorf("cloneable: seek to %d: %w", off, err)
	}

	total := 0
	for total < len(p) {
		n, err := r.shared.src.Read(p[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				return total, io.EOF
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// addChecked adds a and b as signed 64-bit integers, reporting
// overflow instead of silently wrapping.
func addChecked(a, b int64) (sum int64, overflow bool) {
	sum = a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, true
	}
	return sum, false
}

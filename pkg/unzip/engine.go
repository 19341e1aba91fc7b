// Package unzip implements the parallel unzip engine: a mechanism that
// lets many worker goroutines concurrently read disjoint byte ranges
// from a single underlying ZIP archive, decompress each member, and
// materialize it to the filesystem, whether the archive is a local
// file or a remote HTTP object read via ranged requests.
package unzip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// UnzipEngine drives extraction of one archive. One instance is used
// per invocation; construct it with OpenFile or OpenURI.
type UnzipEngine struct {
	shared   *CloneableSeekableReader
	zr       *zip.Reader
	closer   io.Closer
	opts     Options
	log      *logrus.Entry
	reporter Reporter
}

// OpenFile constructs an engine over a local archive. The file handle
// and a CloneableSeekableReader wrapping it are held for the engine's
// lifetime and released by Close.
func OpenFile(path string, opts Options, log *logrus.Entry) (*UnzipEngine, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}

	src := newFileSource(f, info.Size())
	shared := NewCloneableSeekableReader(src)

	return newEngine(shared, src, opts, log)
}

// OpenURI constructs an engine over a remote archive, read via ranged
// HTTP GETs. client may be nil to use http.DefaultClient.
func OpenURI(ctx context.Context, uri string, client *http.Client, opts Options, log *logrus.Entry) (*UnzipEngine, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	reader, err := NewRangedHttpReader(ctx, client, uri, opts.ReadaheadLimit, log)
	if err != nil {
		return nil, err
	}
	reader.OnInsufficientReadahead(func() {
		log.Warn("readahead limit exceeded; consider raising --readahead-limit")
	})

	shared := NewCloneableSeekableReader(reader)
	return newEngine(shared, reader, opts, log)
}

func newEngine(shared *CloneableSeekableReader, closer io.Closer, opts Options, log *logrus.Entry) (*UnzipEngine, error) {
	if opts.OutputDirectory == "" {
		wd, err := os.Getwd()
		if err != nil {
			closer.Close()
			return nil, fmt.Errorf("%w: %w", ErrFilesystemCreate, err)
		}
		opts.OutputDirectory = wd
	}

	length, err := shared.Len()
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%w: %w", ErrNoLength, err)
	}

	zr, err := zip.NewReader(shared, length)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%w: %w", ErrArchiveMalformed, err)
	}

	return &UnzipEngine{
		shared:   shared,
		zr:       zr,
		closer:   closer,
		opts:     opts,
		log:      log,
		reporter: NullReporter{},
	}, nil
}

// Close releases the underlying source (file handle or HTTP stream).
func (e *UnzipEngine) Close() error {
	return e.closer.Close()
}

// Unzip performs the engine's single public operation:
// ensure the output directory exists, enumerate members, report the
// total byte count once, dispatch member extraction across a worker
// pool (or serially when Options.SingleThreaded is set), and surface
// the first fatal error encountered.
func (e *UnzipEngine) Unzip(ctx context.Context, reporter Reporter) error {
	if reporter == nil {
		reporter = NullReporter{}
	}
	e.reporter = reporter

	root := e.opts.outputRoot()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrFilesystemCreate, err)
	}

	var total int64
	for _, f := range e.zr.File {
		if !isDirEntry(f) {
			total += int64(f.UncompressedSize64)
		}
	}
	reporter.TotalBytesExpected(total)

	if e.opts.SingleThreaded {
		for _, f := range e.zr.File {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.extractMember(root, f, reporter); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.workerCount())

	for _, f := range e.zr.File {
		f := f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return e.extractMember(root, f, reporter)
		})
	}

	return g.Wait()
}

func isDirEntry(f *zip.File) bool {
	if f.FileInfo().IsDir() {
		return true
	}
	return len(f.Name) > 0 && f.Name[len(f.Name)-1] == '/'
}

func (e *UnzipEngine) extractMember(root string, f *zip.File, reporter Reporter) error {
	dest, err := safeJoin(root, f.Name)
	if err != nil {
		return err
	}

	reporter.ExtractionStarting(f.Name)

	if isDirEntry(f) {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrFilesystemCreate, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrFilesystemCreate, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMemberExtract, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFilesystemCreate, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, &progressCountingReader{r: rc, report: reporter.BytesExtracted}); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMemberExtract, f.Name, err)
	}

	reporter.ExtractionFinished(f.Name)
	return nil
}

// progressCountingReader wraps an io.Reader, invoking report with the
// number of bytes passed through on each Read. Only the single worker
// owning this member ever touches it, and it keeps no state of its own;
// BytesExtracted itself must still tolerate concurrent callers from
// other workers' members.
type progressCountingReader struct {
	r      io.Reader
	report func(int64)
}

func (p *progressCountingReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.report(int64(n))
	}
	return n, err
}

// countingReporter is a NullReporter that also sums the BytesExtracted
// deltas atomically into total, for tests that want to confirm the sum
// of reported deltas without wiring a full Reporter.
type countingReporter struct {
	NullReporter
	total int64
}

func (c *countingReporter) BytesExtracted(delta int64) {
	atomic.AddInt64(&c.total, delta)
}

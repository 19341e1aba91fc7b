package unzip

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// defaultReadaheadDiscard bounds how many bytes a forward seek will
// silently discard from the active stream before this reader gives up
// and opens a fresh ranged GET instead. It applies when ReadaheadLimit
// is zero.
const defaultReadaheadDiscard = 4 << 20 // 4 MiB

// RangedHttpReader presents a Source (seek+read, known length) over a
// remote object using ranged HTTP GETs. It holds at most
// one open stream at a time; forward seeks within the read-ahead
// window advance by discarding, seeks outside the window reopen a new
// stream at the target offset.
//
// RangedHttpReader is not safe for concurrent use by itself: callers
// are expected to reach it only through a CloneableSeekableReader,
// which already serializes access with a mutex.
type RangedHttpReader struct {
	client *http.Client
	url    string
	log    *logrus.Entry
	ctx    context.Context

	length       int64
	etag         string
	lastModified string

	readaheadLimit int64 // 0 == defaultReadaheadDiscard

	pos    int64 // logical cursor position
	stream *bufio.Reader
	body   io.ReadCloser
	// streamPos is the offset of the next byte the open stream will
	// yield. Equal to pos while no discard/seek has desynced them
	// (it never does; streamPos == pos whenever stream != nil).
	streamPos int64

	warnedOnce              bool
	onInsufficientReadahead func()
}

// NewRangedHttpReader issues a HEAD request (falling back to a ranged
// GET if HEAD is rejected) to resolve length and range support, then
// returns a reader positioned at offset 0. readaheadLimit bounds the
// internal discard window in bytes; 0 selects defaultReadaheadDiscard.
func NewRangedHttpReader(ctx context.Context, client *http.Client, url string, readaheadLimit int64, log *logrus.Entry) (*RangedHttpReader, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if ctx == nil {
		ctx = context.Background()
	}

	length, etag, lastModified, rangeOK, err := probeResource(ctx, client, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	if !rangeOK {
		return nil, fmt.Errorf("%w: %s", ErrRangeUnsupported, url)
	}

	return &RangedHttpReader{
		client:         client,
		url:            url,
		log:            log,
		ctx:            ctx,
		length:         length,
		etag:           etag,
		lastModified:   lastModified,
		readaheadLimit: readaheadLimit,
	}, nil
}

// OnInsufficientReadahead registers a callback invoked the first time
// a seek is forced to reopen a stream because it fell outside the
// read-ahead window. Only the first occurrence triggers it.
func (r *RangedHttpReader) OnInsufficientReadahead(f func()) {
	r.onInsufficientReadahead = f
}

// probeResource resolves length, validators, and range support for
// url. It tries HEAD first; servers that reject HEAD outright (405) or
// simply answer it with something other than 200 fall back to a
// single-byte ranged GET, whose 206 response carries both the total
// length (via Content-Range) and proof of range support in one round
// trip.
func probeResource(ctx context.Context, client *http.Client, url string) (length int64, etag, lastModified string, rangeOK bool, err error) {
	length, etag, lastModified, rangeOK, err = probeHead(ctx, client, url)
	if err == nil {
		return length, etag, lastModified, rangeOK, nil
	}
	return probeRangedGet(ctx, client, url)
}

func probeHead(ctx context.Context, client *http.Client, url string) (int64, string, string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, "", "", false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", "", false, fmt.Errorf("HEAD %s: unexpected status %s", url, resp.Status)
	}
	if resp.ContentLength < 0 {
		return 0, "", "", false, fmt.Errorf("HEAD %s: no Content-Length", url)
	}
	return resp.ContentLength, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), supportsRange(resp.Header), nil
}

func probeRangedGet(ctx context.Context, client *http.Client, url string) (int64, string, string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", "", false, err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return 0, "", "", false, fmt.Errorf("GET %s: server does not support ranged requests (status %s)", url, resp.Status)
	}

	_, _, total, ok := parseContentRange(resp.Header.Get("Content-Range"))
	if !ok || total < 0 {
		return 0, "", "", false, fmt.Errorf("GET %s: Content-Range did not report a total length", url)
	}

	return total, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), true, nil
}

// Len implements Source.
func (r *RangedHttpReader) Len() (int64, error) { return r.length, nil }

// Seek implements Source. Only io.SeekStart is meaningful here because
// CloneableSeekableReader always calls Seek(pos, io.SeekStart) before
// a Read; the other whence values are supported for interface
// completeness.
func (r *RangedHttpReader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		target = r.length + offset
	default:
		return 0, fmt.Errorf("httpreader: invalid whence %d", whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("httpreader: negative position %d", target)
	}

	if target == r.pos {
		return r.pos, nil
	}

	if r.stream != nil && target >= r.streamPos && target-r.streamPos <= r.discardBound() {
		if err := r.discardTo(target); err != nil {
			return 0, err
		}
		r.pos = target
		return r.pos, nil
	}

	// Outside the window, or a backward seek: reopen.
	if r.stream != nil {
		r.notifyInsufficientReadahead()
	}
	r.closeStream()
	r.pos = target
	return r.pos, nil
}

// discardBound returns how far ahead a seek may land before Seek gives
// up on discarding and reopens a new stream instead. A caller-supplied
// readaheadLimit always wins when set: raising it past the 4 MiB
// default is the whole point of the option, trading memory for fewer
// reopened streams.
func (r *RangedHttpReader) discardBound() int64 {
	if r.readaheadLimit > 0 {
		return r.readaheadLimit
	}
	return defaultReadaheadDiscard
}

func (r *RangedHttpReader) notifyInsufficientReadahead() {
	if r.warnedOnce {
		return
	}
	r.warnedOnce = true
	r.log.Warn("seek exceeded read-ahead window; opening a new HTTP stream")
	if r.onInsufficientReadahead != nil {
		r.onInsufficientReadahead()
	}
}

func (r *RangedHttpReader) discardTo(target int64) error {
	n := target - r.streamPos
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r.stream, n); err != nil {
		r.closeStream()
		return fmt.Errorf("%w: discarding to offset %d: %w", ErrHTTPTransient, target, err)
	}
	r.streamPos = target
	return nil
}

func (r *RangedHttpReader) closeStream() {
	if r.body != nil {
		r.body.Close()
	}
	r.body = nil
	r.stream = nil
}

// Read implements Source. It opens a stream at r.pos if none is open,
// then reads from it, advancing both the stream and logical position.
func (r *RangedHttpReader) Read(p []byte) (int, error) {
	if r.pos >= r.length {
		return 0, io.EOF
	}
	if r.stream == nil {
		if err := r.openStream(r.pos); err != nil {
			return 0, err
		}
	}

	n, err := r.stream.Read(p)
	if n > 0 {
		r.pos += int64(n)
		r.streamPos += int64(n)
	}
	if err != nil {
		r.closeStream()
		if err == io.EOF {
			return n, io.EOF
		}
		return n, fmt.Errorf("%w: %w", ErrHTTPTransient, err)
	}
	return n, nil
}

func (r *RangedHttpReader) openStream(offset int64) error {
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	if r.etag != "" && !isWeakETag(r.etag) {
		req.Header.Set("If-Range", r.etag)
	} else if r.lastModified != "" {
		req.Header.Set("If-Range", r.lastModified)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHTTPTransient, err)
	}
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("%w: GET %s: unexpected status %s", ErrHTTPTransient, r.url, resp.Status)
	}
	if resp.StatusCode == http.StatusPartialContent {
		if start, _, _, ok := parseContentRange(resp.Header.Get("Content-Range")); ok && start != offset {
			resp.Body.Close()
			return fmt.Errorf("%w: server returned range starting at %d, requested %d", ErrHTTPTransient, start, offset)
		}
	}

	r.body = resp.Body
	r.stream = bufio.NewReaderSize(resp.Body, 64*1024)
	r.streamPos = offset
	return nil
}

// Close releases the currently open stream, if any.
func (r *RangedHttpReader) Close() error {
	r.closeStream()
	return nil
}

// supportsRange reports whether a response's Accept-Ranges header
// names the "bytes" unit. Only thing probeHead needs this for: the
// ranged-GET fallback in probeRangedGet instead infers range support
// directly from getting back a 206.
func supportsRange(h http.Header) bool {
	for _, unit := range strings.Split(h.Get("Accept-Ranges"), ",") {
		if strings.EqualFold(strings.TrimSpace(unit), "bytes") {
			return true
		}
	}
	return false
}

// isWeakETag reports whether an ETag is a weak validator (W/"..."),
// which RFC 7232 §2.1 forbids using in If-Range.
func isWeakETag(etag string) bool {
	return strings.HasPrefix(etag, "W/") || strings.HasPrefix(etag, "w/")
}

// parseContentRange parses a "Content-Range: bytes start-end/total"
// response header. total is -1 when the server reports it as "*"
// (unknown), and ok is false for anything this reader doesn't
// recognize as a single satisfiable byte range.
func parseContentRange(header string) (start, end, total int64, ok bool) {
	header = strings.TrimSpace(header)
	const prefix = "bytes "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return 0, 0, -1, false
	}

	rangeAndTotal := strings.SplitN(header[len(prefix):], "/", 2)
	if len(rangeAndTotal) != 2 {
		return 0, 0, -1, false
	}
	bounds := strings.SplitN(rangeAndTotal[0], "-", 2)
	if len(bounds) != 2 {
		return 0, 0, -1, false
	}

	var err error
	if start, err = strconv.ParseInt(strings.TrimSpace(bounds[0]), 10, 64); err != nil {
		return 0, 0, -1, false
	}
	if end, err = strconv.ParseInt(strings.TrimSpace(bounds[1]), 10, 64); err != nil {
		return 0, 0, -1, false
	}

	totalField := strings.TrimSpace(rangeAndTotal[1])
	if totalField == "*" {
		return start, end, -1, true
	}
	if total, err = strconv.ParseInt(totalField, 10, 64); err != nil {
		return 0, 0, -1, false
	}
	return start, end, total, true
}

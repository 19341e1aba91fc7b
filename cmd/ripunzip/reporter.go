package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/DebianArch64/ripunzip/pkg/unzip"
)

// terminalReporter renders the unzip.Reporter contract as a terminal
// progress bar via schollz/progressbar, the same library
// other_examples/nicholas-fedor-goUpdater and
// other_examples/autobrr-mkbrr use for download/extract progress.
type terminalReporter struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	total   int64
	written int64
	current atomic.Value // string
}

func newTerminalReporter() *terminalReporter {
	r := &terminalReporter{}
	r.current.Store("")
	return r
}

func (r *terminalReporter) TotalBytesExpected(total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
	r.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("extracting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *terminalReporter) ExtractionStarting(name string) {
	r.current.Store(name)
}

func (r *terminalReporter) BytesExtracted(delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written += delta
	if r.bar != nil {
		_ = r.bar.Add64(delta)
	}
}

func (r *terminalReporter) ExtractionFinished(name string) {}

func (r *terminalReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	fmt.Fprintf(os.Stderr, "\nextracted %d bytes\n", r.written)
}

var _ unzip.Reporter = (*terminalReporter)(nil)

package unzip

import "runtime"

// Options carries the small set of knobs the engine accepts.
type Options struct {
	// OutputDirectory is the destination root. Empty means the current
	// working directory at engine construction.
	OutputDirectory string

	// SingleThreaded forces serial extraction on the calling goroutine,
	// and for remote sources also caps the ranged HTTP reader to a
	// single stream, avoiding redundant bandwidth use when concurrent
	// decompression would not help.
	SingleThreaded bool

	// ReadaheadLimit bounds, in bytes, how far ahead a forward seek on
	// the RangedHttpReader is served by discarding from the open stream
	// before a new ranged GET is opened instead. Zero selects the 4 MiB
	// default; there is no unbounded setting. Only meaningful for remote
	// sources.
	ReadaheadLimit int64

	// Concurrency overrides the worker pool size. Zero means
	// runtime.GOMAXPROCS(0).
	Concurrency int
}

func (o Options) workerCount() int {
	if o.SingleThreaded {
		return 1
	}
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) outputRoot() string {
	if o.OutputDirectory == "" {
		return "."
	}
	return o.OutputDirectory
}

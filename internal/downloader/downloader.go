// Package downloader drives the retrieval-assembly-archival pipeline: it
// walks the paginated listing, assembles each admitted publication page by
// page into a PDF artifact, and hands the results to the archive writer.
package downloader

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"freepub/downloader/internal/client"
	"freepub/downloader/internal/domain"
	"freepub/downloader/internal/imaging"
	"freepub/downloader/internal/ledger"
	"freepub/downloader/internal/metrics"
	"freepub/downloader/internal/pdf"

	log "github.com/sirupsen/logrus"
)

// StrategyFactory builds a session-scoped image acquisition strategy. The
// aborted callback lets the strategy observe the session's abort flag at
// every attempt.
type StrategyFactory func(aborted func() bool) *imaging.Strategy

// BuilderFactory builds one document builder per publication.
type BuilderFactory func() pdf.Builder

// Options control output routing and progress reporting for one download.
type Options struct {
	// Sink receives container bytes incrementally when more than one
	// publication is produced. When nil the container is buffered in
	// memory and returned whole.
	Sink io.Writer
	// OnProgress, when set, receives two-level progress reports.
	OnProgress domain.ProgressFunc
}

// Result is the finished output of a download operation.
type Result struct {
	// Filename is the artifact name (single publication) or the generated
	// container name.
	Filename string
	// Bytes holds the artifact or buffered container; nil when the
	// container was streamed to the sink.
	Bytes []byte
	// Streamed reports that container bytes went to the sink.
	Streamed bool
}

// Downloader runs one sequential download operation at a time. The abort
// flag is reset at the start of every operation and set by Cancel; it is
// read at every suspension point of the running operation.
type Downloader struct {
	client      client.ListingClient
	newStrategy StrategyFactory
	newBuilder  BuilderFactory
	metrics     *metrics.Metrics

	busy  atomic.Bool
	abort atomic.Bool
}

// New wires a Downloader from its collaborators.
func New(c client.ListingClient, newStrategy StrategyFactory, newBuilder BuilderFactory, m *metrics.Metrics) *Downloader {
	return &Downloader{
		client:      c,
		newStrategy: newStrategy,
		newBuilder:  newBuilder,
		metrics:     m,
	}
}

// Cancel requests cooperative cancellation of the running operation. The
// operation terminates with ErrCancelled as soon as its current suspension
// point returns.
func (d *Downloader) Cancel() {
	d.abort.Store(true)
}

// Download runs one operation to completion. A second call while one is
// running fails with ErrBusy.
func (d *Downloader) Download(ctx context.Context, req domain.DownloadRequest, opts Options) (*Result, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer d.busy.Store(false)
	d.abort.Store(false)

	aborted := func() bool { return d.abort.Load() }
	s := &session{
		d:      d,
		req:    req,
		opts:   opts,
		ledger: ledger.New(),
		images: d.newStrategy(aborted),
	}

	start := time.Now()
	res, err := s.run(ctx)
	switch {
	case err == nil:
		d.metrics.ObserveDownload("ok", time.Since(start))
		log.Infof("✅ Download of %q finished: %s (%d publication(s))", req.Term, res.Filename, s.done)
	case errors.Is(err, domain.ErrCancelled):
		d.metrics.ObserveDownload("cancelled", time.Since(start))
		log.Warnf("🛑 Download of %q cancelled after %d publication(s)", req.Term, s.done)
	default:
		d.metrics.ObserveDownload("error", time.Since(start))
		log.Errorf("❌ Download of %q failed: %v", req.Term, err)
	}
	return res, err
}

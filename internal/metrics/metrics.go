// Package metrics bundles Prometheus collectors for the download pipeline on
// a dedicated registry, so tests and embedders never fight over the global one.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all pipeline collectors. A nil *Metrics is valid and turns
// every recording call into a no-op.
type Metrics struct {
	Registry         *prometheus.Registry
	ListingRequests  *prometheus.CounterVec
	ImageFetches     *prometheus.CounterVec
	FetchRetries     prometheus.Counter
	ArtifactsBuilt   prometheus.Counter
	ArchiveBytes     prometheus.Counter
	Downloads        *prometheus.CounterVec
	DownloadDuration prometheus.Histogram
}

// New constructs and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	listing := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freepub_listing_requests_total",
			Help: "Listing, search, detail and service-catalog requests by operation and result.",
		},
		[]string{"operation", "result"},
	)
	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freepub_page_image_fetches_total",
			Help: "Page image fetch attempts by acquisition path and result.",
		},
		[]string{"path", "result"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "freepub_fetch_retries_total",
			Help: "Page image fetch retries scheduled after a failed attempt.",
		},
	)
	artifacts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "freepub_artifacts_built_total",
			Help: "Finished document artifacts produced.",
		},
	)
	archiveBytes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "freepub_archive_bytes_total",
			Help: "Container bytes emitted to the output sink or buffer.",
		},
	)
	downloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freepub_downloads_total",
			Help: "Completed download operations by result.",
		},
		[]string{"result"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "freepub_download_duration_seconds",
			Help:    "Wall-clock duration of download operations.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	registry.MustRegister(listing, fetches, retries, artifacts, archiveBytes, downloads, duration)

	return &Metrics{
		Registry:         registry,
		ListingRequests:  listing,
		ImageFetches:     fetches,
		FetchRetries:     retries,
		ArtifactsBuilt:   artifacts,
		ArchiveBytes:     archiveBytes,
		Downloads:        downloads,
		DownloadDuration: duration,
	}
}

// IncListing records one listing-API request outcome.
func (m *Metrics) IncListing(operation, result string) {
	if m == nil {
		return
	}
	m.ListingRequests.WithLabelValues(operation, result).Inc()
}

// IncImageFetch records one page-image fetch attempt outcome for a path.
func (m *Metrics) IncImageFetch(path, result string) {
	if m == nil {
		return
	}
	m.ImageFetches.WithLabelValues(path, result).Inc()
}

// IncFetchRetry counts a retry attempt within the acquisition strategy.
func (m *Metrics) IncFetchRetry() {
	if m == nil {
		return
	}
	m.FetchRetries.Inc()
}

// IncArtifact counts a finished artifact.
func (m *Metrics) IncArtifact() {
	if m == nil {
		return
	}
	m.ArtifactsBuilt.Inc()
}

// AddArchiveBytes accumulates container output size.
func (m *Metrics) AddArchiveBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ArchiveBytes.Add(float64(n))
}

// ObserveDownload records the outcome and duration of one operation.
func (m *Metrics) ObserveDownload(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(result).Inc()
	m.DownloadDuration.Observe(d.Seconds())
}

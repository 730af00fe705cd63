package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"freepub/downloader/internal/client"
	"freepub/downloader/internal/config"
	"freepub/downloader/internal/domain"
	"freepub/downloader/internal/downloader"
	"freepub/downloader/internal/imaging"
	"freepub/downloader/internal/metrics"
	"freepub/downloader/internal/pdf"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// Container holds all initialized components
type Container struct {
	Config     *config.Config
	Client     client.ListingClient
	Downloader *downloader.Downloader
	Metrics    *metrics.Metrics
}

// New creates a new container with all dependencies initialized
func New(cfg *config.Config) (*Container, error) {
	if cfg.Download.SourceURL == "" || cfg.Download.Term == "" {
		return nil, fmt.Errorf("download.source_url and download.term must be configured")
	}

	m := metrics.New()

	rps := cfg.Backend.MaxRequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	rl := ratelimit.New(rps)

	timeout := time.Duration(cfg.Backend.Timeout) * time.Second

	// Listing calls fail fast and image retries are owned by the
	// acquisition strategy, so neither client retries on its own.
	listingHTTP := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.Backend.UserAgent).
		SetHeader("Accept", "application/json")
	imageHTTP := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.Backend.UserAgent).
		SetHeader("Accept", "image/*,*/*;q=0.8")

	listingClient := client.New(listingHTTP, rl, cfg.Backend.Endpoint, m)

	relayEndpoints := cfg.Backend.RelayEndpoints
	if len(relayEndpoints) == 0 && cfg.Backend.Endpoint != "" {
		relayEndpoints = []string{cfg.Backend.Endpoint}
	}
	direct := imaging.NewDirectSource(imageHTTP, rl, m)
	relay := imaging.NewRelaySource(imageHTTP, rl, relayEndpoints, m)
	newStrategy := func(aborted func() bool) *imaging.Strategy {
		return imaging.NewStrategy(direct, relay, cfg.Backend.MaxRetries, aborted, m)
	}

	dl := downloader.New(listingClient, newStrategy, pdf.New, m)

	return &Container{
		Config:     cfg,
		Client:     listingClient,
		Downloader: dl,
		Metrics:    m,
	}, nil
}

// Run executes the configured download while serving metrics
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", c.Config.Server.Host, c.Config.Server.Port),
		Handler: mux,
	}

	g.Go(func() error {
		log.Infof("Serving metrics on http://%s/metrics", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return c.download(ctx)
	})

	return g.Wait()
}

func (c *Container) download(ctx context.Context) error {
	cfg := c.Config
	req := domain.DownloadRequest{
		SourceURL: cfg.Download.SourceURL,
		Term:      cfg.Download.Term,
		IsSearch:  cfg.Download.Search,
		AllowList: cfg.Download.AllowList,
		DenyList:  cfg.Download.DenyList,
	}
	opts := downloader.Options{OnProgress: logProgress}

	var sink *os.File
	if cfg.Output.Streaming {
		f, err := os.CreateTemp(cfg.Output.Dir, "freepub_*.zip.partial")
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		sink = f
		opts.Sink = f
	}

	res, err := c.Downloader.Download(ctx, req, opts)

	if sink != nil {
		if closeErr := sink.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", closeErr)
		}
		if err != nil || res == nil || !res.Streamed {
			// Partial or unused sink files never survive the operation.
			_ = os.Remove(sink.Name())
		}
	}
	if err != nil {
		return err
	}

	path := filepath.Join(cfg.Output.Dir, res.Filename)
	if res.Streamed {
		if err := os.Rename(sink.Name(), path); err != nil {
			return fmt.Errorf("failed to move container into place: %w", err)
		}
	} else {
		if err := os.WriteFile(path, res.Bytes, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", res.Filename, err)
		}
	}
	log.Infof("💾 Saved %s", path)
	return nil
}

func logProgress(p domain.Progress) {
	switch {
	case p.Stage == domain.StageArchiving:
		log.Debugf("📦 Archiving %s: %d%%", p.Title, p.PagePercent)
	case p.Page == p.PageCount:
		log.Infof("📄 %s: %d/%d pages, overall %d%%", p.Title, p.Page, p.PageCount, p.OverallPercent)
	default:
		log.Debugf("📄 %s: page %d/%d (%d%%), overall %d%%",
			p.Title, p.Page, p.PageCount, p.PagePercent, p.OverallPercent)
	}
}

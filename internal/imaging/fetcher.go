// Package imaging acquires remote page images through two interchangeable
// paths: a direct fetch of the image URL and a backend relay that returns
// already-rasterized bytes when the origin blocks direct loads.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/url"
	"strings"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"freepub/downloader/internal/domain"
	"freepub/downloader/internal/metrics"

	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

const relayMimeType = "image/jpeg"

// Source fetches one page image from a URL.
type Source interface {
	Name() string
	Fetch(ctx context.Context, pageURL string) (*domain.PageImage, error)
}

type directSource struct {
	httpClient *resty.Client
	rl         ratelimit.Limiter
	metrics    *metrics.Metrics
}

// NewDirectSource fetches page images straight from their origin URL.
func NewDirectSource(httpClient *resty.Client, rl ratelimit.Limiter, m *metrics.Metrics) Source {
	return &directSource{httpClient: httpClient, rl: rl, metrics: m}
}

func (s *directSource) Name() string { return "direct" }

func (s *directSource) Fetch(ctx context.Context, pageURL string) (*domain.PageImage, error) {
	return fetchImage(ctx, s.httpClient, s.rl, pageURL, pageURL)
}

type relaySource struct {
	httpClient *resty.Client
	rl         ratelimit.Limiter
	endpoints  *endpointRing
	metrics    *metrics.Metrics
}

// NewRelaySource fetches page images through the backend image relay,
// rotating across the configured relay endpoints.
func NewRelaySource(httpClient *resty.Client, rl ratelimit.Limiter, endpoints []string, m *metrics.Metrics) Source {
	return &relaySource{
		httpClient: httpClient,
		rl:         rl,
		endpoints:  newEndpointRing(endpoints),
		metrics:    m,
	}
}

func (s *relaySource) Name() string { return "relay" }

func (s *relaySource) Fetch(ctx context.Context, pageURL string) (*domain.PageImage, error) {
	endpoint := s.endpoints.Next()
	if endpoint == "" {
		return nil, fmt.Errorf("file %q: no relay endpoint configured", pageURL)
	}
	relayURL := fmt.Sprintf("%s/imgdata.php?url=%s&type=%s",
		strings.TrimSuffix(endpoint, "/"), url.QueryEscape(pageURL), url.QueryEscape(relayMimeType))
	return fetchImage(ctx, s.httpClient, s.rl, relayURL, pageURL)
}

func fetchImage(ctx context.Context, httpClient *resty.Client, rl ratelimit.Limiter, fetchURL, pageURL string) (*domain.PageImage, error) {
	rl.Take()

	resp, err := httpClient.R().SetContext(ctx).Get(fetchURL)
	if err != nil {
		return nil, fmt.Errorf("file %q: %w", pageURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("file %q: HTTP %d %s", pageURL, resp.StatusCode(), resp.Status())
	}
	return decodeImage(pageURL, resp.Bytes())
}

// decodeImage validates the payload as an image and reads its pixel
// dimensions without a full decode.
func decodeImage(pageURL string, data []byte) (*domain.PageImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("file %q: not a decodable image: %w", pageURL, err)
	}
	return &domain.PageImage{
		Bytes:  data,
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: strings.ToUpper(format),
	}, nil
}

// endpointRing hands out relay endpoints in round-robin order.
type endpointRing struct {
	endpoints []string
	current   int
	mutex     sync.Mutex
}

func newEndpointRing(endpoints []string) *endpointRing {
	return &endpointRing{endpoints: endpoints}
}

func (r *endpointRing) Next() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.endpoints) == 0 {
		return ""
	}
	endpoint := r.endpoints[r.current]
	r.current = (r.current + 1) % len(r.endpoints)
	return endpoint
}

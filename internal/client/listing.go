package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"freepub/downloader/internal/domain"
	"freepub/downloader/internal/metrics"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// Default paging for the public Search/List operations. The download walker
// omits size so the backend applies its own page size.
const (
	DefaultInitialPage = 0
	DefaultPageSize    = 10
)

// ListingClient talks to the backend listing/search and service-catalog API.
type ListingClient interface {
	// Services returns the catalog of available sources.
	Services(ctx context.Context) ([]domain.Service, error)
	// Search queries publications matching a free-text term. size <= 0
	// leaves the page size to the backend.
	Search(ctx context.Context, sourceURL, term string, page, size int) (*domain.Listing, error)
	// List queries publications by URL term; with a single publication URL
	// it returns that publication's full metadata.
	List(ctx context.Context, sourceURL, term string, page, size int) (*domain.Listing, error)
}

type listingClient struct {
	httpClient *resty.Client
	rl         ratelimit.Limiter
	endpoint   string
	metrics    *metrics.Metrics
}

// New builds a ListingClient. The resty client must not retry on its own:
// listing calls fail fast and retries belong to the image acquisition
// strategy only.
func New(httpClient *resty.Client, rl ratelimit.Limiter, endpoint string, m *metrics.Metrics) ListingClient {
	return &listingClient{
		httpClient: httpClient,
		rl:         rl,
		endpoint:   endpoint,
		metrics:    m,
	}
}

func (c *listingClient) Services(ctx context.Context) ([]domain.Service, error) {
	c.rl.Take()

	resp, err := c.httpClient.R().SetContext(ctx).Get(c.endpoint)
	if err != nil {
		c.metrics.IncListing("services", "error")
		return nil, &CatalogError{Err: err}
	}
	if resp.IsError() {
		c.metrics.IncListing("services", "error")
		return nil, &CatalogError{Detail: httpDetail(resp)}
	}

	var services []domain.Service
	if err := json.Unmarshal(resp.Bytes(), &services); err != nil {
		c.metrics.IncListing("services", "error")
		return nil, &CatalogError{Detail: "malformed response", Err: err}
	}

	c.metrics.IncListing("services", "ok")
	log.Debugf("Service catalog returned %d sources", len(services))
	return services, nil
}

func (c *listingClient) Search(ctx context.Context, sourceURL, term string, page, size int) (*domain.Listing, error) {
	return c.query(ctx, sourceURL, "search", term, page, size)
}

func (c *listingClient) List(ctx context.Context, sourceURL, term string, page, size int) (*domain.Listing, error) {
	return c.query(ctx, sourceURL, "url", term, page, size)
}

func (c *listingClient) query(ctx context.Context, sourceURL, field, term string, page, size int) (*domain.Listing, error) {
	c.rl.Take()

	form := map[string]string{
		field:  term,
		"page": strconv.Itoa(page),
	}
	if size > 0 {
		form["size"] = strconv.Itoa(size)
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(form).
		Post(sourceURL)
	if err != nil {
		c.metrics.IncListing(field, "error")
		return nil, &ListingError{Term: term, Err: err}
	}
	if resp.IsError() {
		c.metrics.IncListing(field, "error")
		return nil, &ListingError{Term: term, Detail: httpDetail(resp)}
	}

	var listing domain.Listing
	if err := json.Unmarshal(resp.Bytes(), &listing); err != nil {
		c.metrics.IncListing(field, "error")
		return nil, &ListingError{Term: term, Detail: "malformed response", Err: err}
	}

	c.metrics.IncListing(field, "ok")
	log.Debugf("Listing page %d for %q returned %d publications (total %d)",
		page, term, len(listing.Publications), listing.Total)
	return &listing, nil
}

// httpDetail extracts the backend's error message from an error response
// body, falling back to the HTTP status line.
func httpDetail(resp *resty.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Bytes(), &body); err == nil && body.Error != "" {
		return fmt.Sprintf("%s (HTTP %d)", body.Error, resp.StatusCode())
	}
	return fmt.Sprintf("HTTP %d %s", resp.StatusCode(), resp.Status())
}

package imaging

import (
	"context"
	"errors"
	"fmt"

	"freepub/downloader/internal/domain"
	"freepub/downloader/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// MaxRetry bounds the attempts per acquisition path before switching to the
// other path.
const MaxRetry = 3

// FetchError means both acquisition paths exhausted their retries for one
// page image.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("error getting file %q: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Strategy selects between the direct and relay sources with a sticky
// preference bit. The bit persists across pages of one publication and is
// reset to "prefer direct" at the first page of each new publication, so
// every item re-attempts the cheaper path. A Strategy belongs to a single
// download session and is not safe for concurrent use.
type Strategy struct {
	direct       Source
	relay        Source
	maxRetry     int
	preferDirect bool
	aborted      func() bool
	metrics      *metrics.Metrics
}

// NewStrategy builds a session-scoped strategy. aborted is polled before
// every attempt; maxRetry <= 0 falls back to MaxRetry.
func NewStrategy(direct, relay Source, maxRetry int, aborted func() bool, m *metrics.Metrics) *Strategy {
	if maxRetry <= 0 {
		maxRetry = MaxRetry
	}
	if aborted == nil {
		aborted = func() bool { return false }
	}
	return &Strategy{
		direct:       direct,
		relay:        relay,
		maxRetry:     maxRetry,
		preferDirect: true,
		aborted:      aborted,
		metrics:      m,
	}
}

// FetchPage acquires one page image. firstPageOfItem resets the sticky
// preference to the direct path before fetching.
func (s *Strategy) FetchPage(ctx context.Context, pageURL string, firstPageOfItem bool) (*domain.PageImage, error) {
	if firstPageOfItem {
		s.preferDirect = true
	}

	preferred, fallback := s.relay, s.direct
	if s.preferDirect {
		preferred, fallback = s.direct, s.relay
	}

	img, firstErr := s.attempt(ctx, preferred, pageURL)
	if firstErr == nil {
		return img, nil
	}
	if errors.Is(firstErr, domain.ErrCancelled) {
		return nil, firstErr
	}

	// The preferred path is exhausted; subsequent pages of this
	// publication start on the other path.
	s.preferDirect = !s.preferDirect
	log.Debugf("Acquisition path %s exhausted for %q, switching to %s",
		preferred.Name(), pageURL, fallback.Name())

	img, secondErr := s.attempt(ctx, fallback, pageURL)
	if secondErr == nil {
		return img, nil
	}
	if errors.Is(secondErr, domain.ErrCancelled) {
		return nil, secondErr
	}
	return nil, &FetchError{URL: pageURL, Err: errors.Join(firstErr, secondErr)}
}

func (s *Strategy) attempt(ctx context.Context, src Source, pageURL string) (*domain.PageImage, error) {
	var lastErr error
	for try := 0; try < s.maxRetry; try++ {
		if s.aborted() || ctx.Err() != nil {
			return nil, domain.ErrCancelled
		}
		if try > 0 {
			s.metrics.IncFetchRetry()
			log.Debugf("Retrying %s fetch of %q (attempt %d/%d)", src.Name(), pageURL, try+1, s.maxRetry)
		}
		img, err := src.Fetch(ctx, pageURL)
		if err == nil {
			s.metrics.IncImageFetch(src.Name(), "ok")
			return img, nil
		}
		s.metrics.IncImageFetch(src.Name(), "error")
		lastErr = err
	}
	return nil, lastErr
}

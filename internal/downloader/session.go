package downloader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"freepub/downloader/internal/archive"
	"freepub/downloader/internal/domain"
	"freepub/downloader/internal/imaging"
	"freepub/downloader/internal/ledger"
	"freepub/downloader/internal/pdf"

	log "github.com/sirupsen/logrus"
)

// session holds the state of one download operation: the dedup ledger, the
// sticky acquisition strategy, the archive under construction, and the
// progress counters. It is created per Download call and discarded on
// completion.
type session struct {
	d      *Downloader
	req    domain.DownloadRequest
	opts   Options
	ledger *ledger.Ledger
	images *imaging.Strategy

	archive     *archive.Writer
	requested   int
	done        int
	lastOverall int
}

func (s *session) aborted() bool { return s.d.abort.Load() }

func (s *session) checkAbort(ctx context.Context) error {
	if s.aborted() || ctx.Err() != nil {
		return domain.ErrCancelled
	}
	return nil
}

// run walks listing pages in order, feeding each page's publications through
// admission, assembly and archival until the requested count is produced or
// the source is exhausted. Any failure aborts the whole walk; partial
// archives are never exposed.
func (s *session) run(ctx context.Context) (*Result, error) {
	for page := 0; ; page++ {
		if err := s.checkAbort(ctx); err != nil {
			return nil, err
		}

		listing, err := s.list(ctx, page)
		if err != nil {
			return nil, err
		}
		if listing.Publications == nil {
			return nil, &NotFoundError{Term: s.req.Term}
		}

		if page == 0 {
			s.requested = ledger.Requested(listing.Total, s.req.AllowList, s.req.DenyList)
			log.Infof("🔄 Downloading %q: %d publication(s) requested (declared total %d)",
				s.req.Term, s.requested, listing.Total)
			if s.requested > 1 {
				s.openArchive()
			}
		}

		if len(listing.Publications) == 0 {
			// The source over-reported its total: flush whatever has
			// been archived. With a single requested publication and
			// nothing produced the term simply has no admissible match.
			if s.requested == 1 && s.done == 0 {
				return nil, &NotFoundError{Term: s.req.Term}
			}
			log.Warnf("Source exhausted after %d of %d publication(s)", s.done, s.requested)
			return s.finalizeArchive()
		}

		for _, pub := range listing.Publications {
			if err := s.checkAbort(ctx); err != nil {
				return nil, err
			}
			if !s.ledger.Admit(pub.ID.String(), s.req.AllowList, s.req.DenyList) {
				log.Debugf("Skipping publication %q (duplicate or filtered)", pub.ID)
				continue
			}

			full, err := s.resolve(ctx, listing, pub)
			if err != nil {
				return nil, err
			}
			art, err := s.assemble(ctx, full)
			if err != nil {
				return nil, err
			}
			s.done++
			s.d.metrics.IncArtifact()

			if s.requested == 1 {
				return &Result{Filename: art.Filename, Bytes: art.Bytes}, nil
			}
			if err := s.archive.Add(*art); err != nil {
				return nil, err
			}
			s.d.metrics.AddArchiveBytes(len(art.Bytes))
			if s.done >= s.requested {
				return s.finalizeArchive()
			}
		}
	}
}

func (s *session) list(ctx context.Context, page int) (*domain.Listing, error) {
	if s.req.IsSearch {
		return s.d.client.Search(ctx, s.req.SourceURL, s.req.Term, page, 0)
	}
	return s.d.client.List(ctx, s.req.SourceURL, s.req.Term, page, 0)
}

// resolve fills in page metadata missing from search results with a
// dependent single-publication listing call, and inherits the listing
// envelope's username/publisher where the publication carries none.
func (s *session) resolve(ctx context.Context, listing *domain.Listing, pub domain.Publication) (domain.Publication, error) {
	if pub.Pages.Count <= 0 || pub.Pages.URL == "" {
		detail, err := s.d.client.List(ctx, s.req.SourceURL, pub.URL, 0, 0)
		if err != nil {
			return pub, err
		}
		if detail == nil || len(detail.Publications) == 0 {
			return pub, &NotFoundError{Term: pub.URL}
		}
		resolved := detail.Publications[0]
		if resolved.Username == "" {
			resolved.Username = detail.Username
		}
		if resolved.Publisher == "" {
			resolved.Publisher = detail.Publisher
		}
		pub = resolved
	}
	if pub.Username == "" {
		pub.Username = listing.Username
	}
	if pub.Publisher == "" {
		pub.Publisher = listing.Publisher
	}
	return pub, nil
}

// assemble drives the document builder through the publication's pages in
// strictly ascending order, one outstanding fetch at a time.
func (s *session) assemble(ctx context.Context, pub domain.Publication) (*domain.Artifact, error) {
	pages := pub.Pages.Count
	s.reportPage(pub.Title, 0, pages)

	builder := s.d.newBuilder()
	for page := 1; page <= pages; page++ {
		if err := s.checkAbort(ctx); err != nil {
			return nil, err
		}

		img, err := s.images.FetchPage(ctx, pub.PageURL(page), page == 1)
		if err != nil {
			if errors.Is(err, domain.ErrCancelled) {
				return nil, domain.ErrCancelled
			}
			return nil, &PageFetchError{Page: page, ID: pub.ID.String(), Err: err}
		}

		if page == 1 {
			err = builder.Open(pdf.Meta{
				Title:    pub.Title,
				Subject:  pub.Description,
				Author:   pub.Author(),
				Keywords: pub.Keywords(),
			}, *img)
		} else {
			err = builder.AddPage(*img)
		}
		if err != nil {
			return nil, fmt.Errorf("error generating PDF for publication %q: %w", pub.ID, err)
		}

		s.reportPage(pub.Title, page, pages)
	}

	if err := s.checkAbort(ctx); err != nil {
		return nil, err
	}
	raw, err := builder.Finalize()
	if err != nil {
		return nil, fmt.Errorf("error generating PDF for publication %q: %w", pub.ID, err)
	}
	log.Debugf("Assembled %q: %d page(s), %d bytes", pub.Title, builder.PageCount(), len(raw))
	return &domain.Artifact{Filename: documentFilename(pub.Title), Bytes: raw}, nil
}

func (s *session) openArchive() {
	s.archive = archive.New(s.opts.Sink, s.aborted, s.archiveProgress)
}

func (s *session) finalizeArchive() (*Result, error) {
	name := containerFilename(time.Now())
	blob, err := s.archive.Finalize(containerComment)
	if err != nil {
		return nil, err
	}
	if s.archive.Streaming() {
		s.d.metrics.AddArchiveBytes(int(s.archive.BytesWritten()))
		return &Result{Filename: name, Streamed: true}, nil
	}
	return &Result{Filename: name, Bytes: blob}, nil
}

// reportPage publishes two-level fetch progress after each page. Overall
// percent interpolates the current publication's page fraction between
// completed publication counts: monotonic, bounded, and refining as pages
// complete.
func (s *session) reportPage(title string, page, pages int) {
	if s.opts.OnProgress == nil {
		return
	}
	if pages < 1 {
		pages = 1
	}
	if page > pages {
		page = pages
	}
	s.opts.OnProgress(domain.Progress{
		Item:           min(s.done+1, max(s.requested, 1)),
		TotalItems:     s.requested,
		OverallPercent: s.overallPercent(float64(page) / float64(pages)),
		Title:          title,
		Page:           page,
		PageCount:      pages,
		PagePercent:    int(math.Round(float64(page) * 100 / float64(pages))),
		Stage:          domain.StageFetching,
	})
}

// archiveProgress relays per-chunk container progress under the archiving
// stage tag so callers can tell fetching from archiving.
func (s *session) archiveProgress(name string, percent int) {
	if s.opts.OnProgress == nil {
		return
	}
	s.opts.OnProgress(domain.Progress{
		Item:           s.done,
		TotalItems:     s.requested,
		OverallPercent: s.lastOverall,
		Title:          name,
		PagePercent:    percent,
		Stage:          domain.StageArchiving,
	})
}

func (s *session) overallPercent(pageFraction float64) int {
	if s.requested < 1 {
		return 0
	}
	percent := int(math.Round((float64(s.done) + pageFraction) * 100 / float64(s.requested)))
	if percent > 100 {
		percent = 100
	}
	if percent < s.lastOverall {
		percent = s.lastOverall
	}
	s.lastOverall = percent
	return percent
}

package downloader

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a Download is requested while another one is
// still running on the same Downloader. The caller must wait for or cancel
// the running operation first.
var ErrBusy = errors.New("download already in progress")

// NotFoundError means the listing returned no usable publications for the
// term before the requested total was reached.
type NotFoundError struct {
	Term string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("error getting publications %q: not found", e.Term)
}

// PageFetchError means image acquisition exhausted both paths for one page.
type PageFetchError struct {
	Page int
	ID   string
	Err  error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("error getting page %d for publication %q: %v", e.Page, e.ID, e.Err)
}

func (e *PageFetchError) Unwrap() error { return e.Err }

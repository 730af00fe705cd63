package client

import "fmt"

// ListingError reports a transport or decode failure talking to the
// listing/search API. Term carries the offending search term or URL.
type ListingError struct {
	Term   string
	Detail string
	Err    error
}

func (e *ListingError) Error() string {
	msg := fmt.Sprintf("error listing publications %q", e.Term)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ListingError) Unwrap() error { return e.Err }

// CatalogError reports a failure retrieving the service catalog.
type CatalogError struct {
	Detail string
	Err    error
}

func (e *CatalogError) Error() string {
	msg := "error getting service list"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CatalogError) Unwrap() error { return e.Err }

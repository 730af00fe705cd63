package domain

import "errors"

// ErrCancelled is surfaced by every component once a cancel request has been
// observed at a suspension point.
var ErrCancelled = errors.New("cancelled")

// PageImage holds one fetched page image. It is transient: never kept past
// assembly of the current publication.
type PageImage struct {
	Bytes  []byte
	Width  int
	Height int
	Format string // "JPEG" or "PNG"
}

// Artifact is the finished document output for one publication.
type Artifact struct {
	Filename string
	Bytes    []byte
}

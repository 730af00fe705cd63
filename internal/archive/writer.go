// Package archive accumulates finished artifacts into a ZIP container,
// either buffered in memory or streamed entry-by-entry to an output sink so
// memory stays bounded regardless of how many artifacts are archived.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"freepub/downloader/internal/domain"
)

// chunkSize bounds how much of an entry is handed to the sink per write, so
// the sink's own backpressure gates how fast container bytes are produced
// and the abort flag is observed between writes.
const chunkSize = 256 * 1024

// Error reports a failed container write.
type Error struct {
	Entry string
	Err   error
}

func (e *Error) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive write failed for entry %q: %v", e.Entry, e.Err)
	}
	return fmt.Sprintf("archive write failed: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ProgressFunc reports an entry name and the percent written within it.
type ProgressFunc func(name string, percent int)

// Writer builds one container. With a nil sink entries accumulate in memory
// and Finalize returns the whole blob; with a sink every entry's chunks are
// flushed as the encoder emits them and Finalize returns nil bytes.
type Writer struct {
	zw      *zip.Writer
	buf     *bytes.Buffer
	counter *countingWriter
	names   map[string]struct{}
	count   int
	aborted func() bool
	onChunk ProgressFunc
	now     func() time.Time
}

// New builds a Writer. aborted and onChunk may be nil.
func New(sink io.Writer, aborted func() bool, onChunk ProgressFunc) *Writer {
	w := &Writer{
		names:   make(map[string]struct{}),
		aborted: aborted,
		onChunk: onChunk,
		now:     time.Now,
	}
	if sink == nil {
		w.buf = &bytes.Buffer{}
		w.counter = &countingWriter{w: w.buf}
	} else {
		w.counter = &countingWriter{w: sink}
	}
	w.zw = zip.NewWriter(w.counter)
	return w
}

// Streaming reports whether entries go to an external sink.
func (w *Writer) Streaming() bool { return w.buf == nil }

// Count returns how many entries have been added.
func (w *Writer) Count() int { return w.count }

// BytesWritten returns how many container bytes have been produced so far.
func (w *Writer) BytesWritten() int64 { return w.counter.n }

// Add writes one artifact as a compressed entry. A filename already present
// in the container gets a timestamp-derived disambiguator before the
// extension. The abort flag is checked before every chunk.
func (w *Writer) Add(art domain.Artifact) error {
	name := art.Filename
	if _, dup := w.names[name]; dup {
		name = disambiguate(name, w.now())
	}
	w.names[name] = struct{}{}

	entry, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.now(),
	})
	if err != nil {
		return &Error{Entry: name, Err: err}
	}

	total := len(art.Bytes)
	for off := 0; off < total; off += chunkSize {
		if w.aborted != nil && w.aborted() {
			return domain.ErrCancelled
		}
		end := min(off+chunkSize, total)
		if _, err := entry.Write(art.Bytes[off:end]); err != nil {
			return &Error{Entry: name, Err: err}
		}
		if w.onChunk != nil {
			w.onChunk(name, end*100/total)
		}
	}
	if total == 0 && w.onChunk != nil {
		w.onChunk(name, 100)
	}

	w.count++
	return nil
}

// Finalize closes the container. The returned bytes are nil in streaming
// mode; buffered mode returns the complete blob.
func (w *Writer) Finalize(comment string) ([]byte, error) {
	if comment != "" {
		if err := w.zw.SetComment(comment); err != nil {
			return nil, &Error{Err: err}
		}
	}
	if err := w.zw.Close(); err != nil {
		return nil, &Error{Err: err}
	}
	if w.buf != nil {
		return w.buf.Bytes(), nil
	}
	return nil, nil
}

// disambiguate appends an uppercase hex-millisecond suffix before the
// extension, mirroring how container filenames are generated.
func disambiguate(name string, now time.Time) string {
	ext := ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext = name[i:]
		name = name[:i]
	}
	return name + "_" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 16)) + ext
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"time"

	"freepub/downloader/internal/domain"
)

func TestBufferedRoundTrip(t *testing.T) {
	w := New(nil, nil, nil)
	if w.Streaming() {
		t.Fatal("nil sink must select buffered mode")
	}

	entries := map[string]string{
		"first.pdf":  "alpha",
		"second.pdf": "beta",
	}
	for name, body := range entries {
		if err := w.Add(domain.Artifact{Filename: name, Bytes: []byte(body)}); err != nil {
			t.Fatalf("Add %s failed: %v", name, err)
		}
	}
	if w.Count() != 2 {
		t.Errorf("Count = %d, want 2", w.Count())
	}

	blob, err := w.Finalize("made with care")
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		t.Fatalf("reading container: %v", err)
	}
	if zr.Comment != "made with care" {
		t.Errorf("comment = %q, want %q", zr.Comment, "made with care")
	}
	if len(zr.File) != 2 {
		t.Fatalf("container has %d entries, want 2", len(zr.File))
	}
	for _, f := range zr.File {
		want, ok := entries[f.Name]
		if !ok {
			t.Errorf("unexpected entry %q", f.Name)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil || string(got) != want {
			t.Errorf("entry %s = %q, %v; want %q", f.Name, got, err, want)
		}
	}
}

func TestDuplicateFilenamesAreDisambiguated(t *testing.T) {
	w := New(nil, nil, nil)
	w.now = func() time.Time { return time.UnixMilli(0xABC) }

	for i := 0; i < 2; i++ {
		if err := w.Add(domain.Artifact{Filename: "dup.pdf", Bytes: []byte("x")}); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}
	blob, err := w.Finalize("")
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		t.Fatalf("reading container: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("container has %d entries, want 2", len(zr.File))
	}
	if zr.File[0].Name != "dup.pdf" {
		t.Errorf("first entry = %q, want dup.pdf", zr.File[0].Name)
	}
	second := zr.File[1].Name
	if second != "dup_ABC.pdf" {
		t.Errorf("second entry = %q, want dup_ABC.pdf", second)
	}
}

func TestStreamingWritesToSink(t *testing.T) {
	var sink bytes.Buffer
	w := New(&sink, nil, nil)
	if !w.Streaming() {
		t.Fatal("sink must select streaming mode")
	}

	// Incompressible payload so entry bytes reach the sink before close.
	payload := make([]byte, 3*chunkSize+17)
	rnd := rand.New(rand.NewSource(1))
	rnd.Read(payload)

	if err := w.Add(domain.Artifact{Filename: "a.pdf", Bytes: payload}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if sink.Len() == 0 {
		t.Error("no bytes reached the sink before Finalize")
	}

	blob, err := w.Finalize("c")
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if blob != nil {
		t.Errorf("streaming Finalize returned %d bytes, want nil", len(blob))
	}
	if w.BytesWritten() != int64(sink.Len()) {
		t.Errorf("BytesWritten = %d, sink holds %d", w.BytesWritten(), sink.Len())
	}

	zr, err := zip.NewReader(bytes.NewReader(sink.Bytes()), int64(sink.Len()))
	if err != nil {
		t.Fatalf("sink does not hold a valid container: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "a.pdf" {
		t.Errorf("unexpected entries: %v", zr.File)
	}
}

func TestAddObservesAbort(t *testing.T) {
	w := New(nil, func() bool { return true }, nil)
	err := w.Add(domain.Artifact{Filename: "a.pdf", Bytes: []byte("x")})
	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestAddReportsChunkProgress(t *testing.T) {
	var names []string
	var percents []int
	w := New(nil, nil, func(name string, percent int) {
		names = append(names, name)
		percents = append(percents, percent)
	})

	if err := w.Add(domain.Artifact{Filename: "big.pdf", Bytes: make([]byte, 2*chunkSize+1)}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(percents) != 3 {
		t.Fatalf("got %d progress calls, want 3", len(percents))
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Errorf("progress not monotonic: %v", percents)
		}
	}
	if percents[len(percents)-1] != 100 {
		t.Errorf("final percent = %d, want 100", percents[len(percents)-1])
	}
	if strings.Join(names, ",") != "big.pdf,big.pdf,big.pdf" {
		t.Errorf("names = %v", names)
	}
}

package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"freepub/downloader/internal/domain"
)

func pageImage(t *testing.T, w, h int) domain.PageImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return domain.PageImage{Bytes: buf.Bytes(), Width: w, Height: h, Format: "PNG"}
}

func TestBuilderProducesDocument(t *testing.T) {
	b := New()
	meta := Meta{Title: "Dogs Monthly", Subject: "Dogs", Author: "Kennel Press", Keywords: "dogs pets"}

	if err := b.Open(meta, pageImage(t, 40, 60)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := b.AddPage(pageImage(t, 60, 40)); err != nil {
		t.Fatalf("AddPage failed: %v", err)
	}
	if err := b.AddPage(pageImage(t, 40, 60)); err != nil {
		t.Fatalf("AddPage failed: %v", err)
	}

	if got := b.PageCount(); got != 3 {
		t.Errorf("PageCount = %d, want 3 (first page included, no placeholder)", got)
	}

	raw, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Errorf("output does not start with %%PDF header")
	}
}

func TestBuilderSinglePage(t *testing.T) {
	b := New()
	if err := b.Open(Meta{Title: "One"}, pageImage(t, 30, 30)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := b.PageCount(); got != 1 {
		t.Errorf("PageCount = %d, want 1", got)
	}
	raw, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if len(raw) == 0 {
		t.Error("empty document")
	}
}

func TestBuilderIsOrdered(t *testing.T) {
	b := New()
	if err := b.AddPage(pageImage(t, 10, 10)); err == nil {
		t.Error("AddPage before Open must fail")
	}
	if _, err := b.Finalize(); err == nil {
		t.Error("Finalize before Open must fail")
	}
	if err := b.Open(Meta{}, pageImage(t, 10, 10)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := b.Open(Meta{}, pageImage(t, 10, 10)); err == nil {
		t.Error("second Open must fail")
	}
}

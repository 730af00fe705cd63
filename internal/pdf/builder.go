// Package pdf adapts the document-builder capability: a sequence of page
// images becomes one finished PDF artifact with metadata.
package pdf

import (
	"bytes"
	"errors"
	"fmt"

	"freepub/downloader/internal/domain"

	"github.com/go-pdf/fpdf"
)

// CreatorName is stamped into every generated document's properties.
const CreatorName = "Free Publication Downloader"

// Meta carries the document properties set once at open time from the
// owning publication.
type Meta struct {
	Title    string
	Subject  string
	Author   string
	Keywords string
}

// Builder assembles one document page by page. Open must be called exactly
// once with the first real page; the document is sized from that page, so no
// placeholder page ever reaches the output.
type Builder interface {
	Open(meta Meta, first domain.PageImage) error
	AddPage(img domain.PageImage) error
	Finalize() ([]byte, error)
	PageCount() int
}

// New returns an empty document builder. One builder serves one publication.
func New() Builder { return &builder{} }

type builder struct {
	doc   *fpdf.Fpdf
	pages int
}

func (b *builder) Open(meta Meta, first domain.PageImage) error {
	if b.doc != nil {
		return errors.New("document already opened")
	}
	b.doc = fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: float64(first.Width), Ht: float64(first.Height)},
	})
	// Full-bleed page images: no margins, and no automatic page break that
	// would spill a blank trailing page.
	b.doc.SetMargins(0, 0, 0)
	b.doc.SetAutoPageBreak(false, 0)
	b.doc.SetTitle(meta.Title, true)
	b.doc.SetSubject(meta.Subject, true)
	b.doc.SetAuthor(meta.Author, true)
	b.doc.SetKeywords(meta.Keywords, true)
	b.doc.SetCreator(CreatorName, true)
	return b.AddPage(first)
}

func (b *builder) AddPage(img domain.PageImage) error {
	if b.doc == nil {
		return errors.New("document not opened")
	}

	w, h := float64(img.Width), float64(img.Height)
	// Orientation is chosen per page from that page's aspect ratio.
	orientation := "P"
	if img.Width > img.Height {
		orientation = "L"
	}
	b.doc.AddPageFormat(orientation, fpdf.SizeType{Wd: w, Ht: h})
	b.pages++

	name := fmt.Sprintf("page_%d", b.pages)
	opts := fpdf.ImageOptions{ImageType: img.Format}
	b.doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Bytes))
	b.doc.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")

	if b.doc.Err() {
		return fmt.Errorf("page %d: %w", b.pages, b.doc.Error())
	}
	return nil
}

func (b *builder) Finalize() ([]byte, error) {
	if b.doc == nil {
		return nil, errors.New("document not opened")
	}
	var buf bytes.Buffer
	if err := b.doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("generating document: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *builder) PageCount() int { return b.pages }

// Package pdftest provides in-memory documents and a minimal PDF writer for
// tests.
package pdftest

import (
	"context"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/spreadmap/internal/assets"
	"github.com/MeKo-Tech/spreadmap/internal/geometry"
	"github.com/MeKo-Tech/spreadmap/internal/pdf"
)

// Page is a fake page with fixed runs.
type Page struct {
	Num           int
	Width, Height float64
	Runs          []pdf.TextRun
	Err           error
}

func (p *Page) Number() int { return p.Num }

func (p *Page) Size() (float64, float64) { return p.Width, p.Height }

func (p *Page) TextRuns() ([]pdf.TextRun, error) { return p.Runs, p.Err }

// Document is a fake document. Closed counts Close calls.
type Document struct {
	Pages  []*Page
	Closed int
}

func (d *Document) NumPages() int { return len(d.Pages) }

func (d *Document) Page(n int) (pdf.Page, error) {
	if n < 1 || n > len(d.Pages) {
		return nil, fmt.Errorf("%w: %d", pdf.ErrPageOutOfRange, n)
	}
	return d.Pages[n-1], nil
}

func (d *Document) Close() error {
	d.Closed++
	return nil
}

// Opener serves documents from a map; unknown ids are missing assets.
// Opens counts calls per id.
type Opener struct {
	Docs  map[string]*Document
	Opens map[string]int
}

// NewOpener creates an Opener over docs.
func NewOpener(docs map[string]*Document) *Opener {
	return &Opener{Docs: docs, Opens: make(map[string]int)}
}

// Open implements pdf.Opener.
func (o *Opener) Open(_ context.Context, assetID string) (pdf.Document, error) {
	o.Opens[assetID]++
	doc, ok := o.Docs[assetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", assets.ErrAssetMissing, assetID)
	}
	return doc, nil
}

// Run builds a text run at (x, y) with the given size, each rune 0.5em wide.
func Run(text string, x, y, size float64) pdf.TextRun {
	return pdf.TextRun{
		Text: text,
		Rect: geometry.PdfRect{X: x, Y: y, Width: float64(len([]rune(text))) * size / 2, Height: size},
	}
}

// Text is one string placed on a generated page.
type Text struct {
	X, Y, Size float64
	S          string
}

// PageSpec describes one page of a generated PDF.
type PageSpec struct {
	Width, Height float64
	Texts         []Text
}

// BuildPDF writes a minimal PDF with Helvetica text. Every glyph is
// 500/1000 em wide so positions are predictable.
func BuildPDF(pages ...PageSpec) []byte {
	widths := strings.TrimSpace(strings.Repeat("500 ", 95))
	objs := []string{
		"", // catalog, filled below
		"", // page tree, filled below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding " +
			"/FirstChar 32 /LastChar 126 /Widths [" + widths + "] >>",
	}
	var kids []string
	for _, p := range pages {
		var content strings.Builder
		for _, t := range p.Texts {
			fmt.Fprintf(&content, "BT /F1 %g Tf %g %g Td (%s) Tj ET\n", t.Size, t.X, t.Y, escape(t.S))
		}
		pageNum := len(objs) + 1
		contentNum := pageNum + 1
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", p.Width, p.Height, contentNum),
			fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		)
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNum))
	}
	objs[0] = "<< /Type /Catalog /Pages 2 0 R >>"
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f\r\n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return []byte(b.String())
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

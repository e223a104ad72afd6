package pdf

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/dslipak/pdf"

	"github.com/MeKo-Tech/spreadmap/internal/geometry"
)

// Letter size, used when a page carries no readable MediaBox.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

type textDocument struct {
	r *pdf.Reader
}

// OpenText parses a PDF from memory for text-layer access.
func OpenText(data []byte) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	return &textDocument{r: r}, nil
}

func (d *textDocument) NumPages() int { return d.r.NumPage() }

func (d *textDocument) Page(n int) (pg Page, err error) {
	if n < 1 || n > d.r.NumPage() {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, n, d.r.NumPage())
	}
	defer func() {
		if r := recover(); r != nil {
			pg, err = nil, fmt.Errorf("read page %d: %v", n, r)
		}
	}()
	p := d.r.Page(n)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d is null", n)
	}
	w, h := mediaBox(p)
	return &textPage{page: p, number: n, width: w, height: h}, nil
}

// Close is a no-op; the reader holds no OS resources.
func (d *textDocument) Close() error { return nil }

type textPage struct {
	page          pdf.Page
	number        int
	width, height float64

	once sync.Once
	runs []TextRun
	err  error
}

func (p *textPage) Number() int { return p.number }

func (p *textPage) Size() (float64, float64) { return p.width, p.height }

// TextRuns decodes the content stream once and merges its glyphs into runs.
func (p *textPage) TextRuns() ([]TextRun, error) {
	p.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				p.err = fmt.Errorf("decode page %d text: %v", p.number, r)
			}
		}()
		p.runs = mergeGlyphs(p.page.Content().Text)
	})
	return p.runs, p.err
}

// mediaBox walks the page tree for an inherited MediaBox.
func mediaBox(p pdf.Page) (float64, float64) {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() != 4 {
			continue
		}
		w := box.Index(2).Float64() - box.Index(0).Float64()
		h := box.Index(3).Float64() - box.Index(1).Float64()
		if w > 0 && h > 0 {
			return w, h
		}
	}
	return defaultPageWidth, defaultPageHeight
}

type runBuilder struct {
	sb         strings.Builder
	x, y, maxX float64
	size       float64
}

func (b *runBuilder) run() TextRun {
	return TextRun{
		Text: b.sb.String(),
		Rect: geometry.PdfRect{X: b.x, Y: b.y, Width: b.maxX - b.x, Height: b.size},
	}
}

// accepts reports whether g continues the run on the same baseline.
func (b *runBuilder) accepts(g pdf.Text) bool {
	size := math.Max(g.FontSize, 1)
	if math.Abs(g.Y-b.y) > 0.1*size || math.Abs(g.FontSize-b.size) > 0.5 {
		return false
	}
	gap := g.X - b.maxX
	return gap >= -0.5*size && gap <= 0.5*size
}

// mergeGlyphs joins consecutive glyphs that share a baseline into runs.
func mergeGlyphs(glyphs []pdf.Text) []TextRun {
	var (
		out []TextRun
		cur *runBuilder
	)
	flush := func() {
		if cur != nil && strings.TrimSpace(cur.sb.String()) != "" {
			out = append(out, cur.run())
		}
		cur = nil
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if cur != nil && cur.accepts(g) {
			text := cur.sb.String()
			if g.X-cur.maxX > 0.2*g.FontSize && !strings.HasSuffix(text, " ") && !strings.HasPrefix(g.S, " ") {
				cur.sb.WriteByte(' ')
			}
			cur.sb.WriteString(g.S)
			cur.maxX = math.Max(cur.maxX, g.X+g.W)
			continue
		}
		flush()
		cur = &runBuilder{x: g.X, y: g.Y, maxX: g.X + g.W, size: g.FontSize}
		cur.sb.WriteString(g.S)
	}
	flush()
	return out
}

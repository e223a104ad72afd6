package pdf_test

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/spreadmap/internal/assets"
	"github.com/MeKo-Tech/spreadmap/internal/geometry"
	"github.com/MeKo-Tech/spreadmap/internal/pdf"
	"github.com/MeKo-Tech/spreadmap/internal/pdf/pdftest"
)

func spreadPDF() []byte {
	return pdftest.BuildPDF(pdftest.PageSpec{
		Width: 1200, Height: 800,
		Texts: []pdftest.Text{
			{X: 100, Y: 700, Size: 12, S: "SAVE 20%"},
			{X: 100, Y: 680, Size: 12, S: "12345"},
			{X: 700, Y: 700, Size: 12, S: "Other"},
		},
	})
}

func TestOpenText_RunsAndSize(t *testing.T) {
	doc, err := pdf.OpenText(spreadPDF())
	require.NoError(t, err)
	defer doc.Close()
	require.Equal(t, 1, doc.NumPages())

	page, err := doc.Page(1)
	require.NoError(t, err)
	w, h := page.Size()
	assert.InDelta(t, 1200.0, w, 1e-9)
	assert.InDelta(t, 800.0, h, 1e-9)

	runs, err := page.TextRuns()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "SAVE 20%", runs[0].Text)
	assert.InDelta(t, 100.0, runs[0].Rect.X, 1e-6)
	assert.InDelta(t, 700.0, runs[0].Rect.Y, 1e-6)
	assert.InDelta(t, 48.0, runs[0].Rect.Width, 1e-6)
	assert.InDelta(t, 12.0, runs[0].Rect.Height, 1e-6)

	text, err := pdf.ExtractRegion(page, geometry.PdfRect{X: 90, Y: 670, Width: 100, Height: 50})
	require.NoError(t, err)
	assert.Equal(t, "SAVE 20% 12345", text)

	lines, err := pdf.ExtractRegionLines(page, geometry.PdfRect{X: 90, Y: 670, Width: 100, Height: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"SAVE 20%", "12345"}, lines)

	_, err = doc.Page(2)
	assert.ErrorIs(t, err, pdf.ErrPageOutOfRange)
}

func TestOpenText_Garbage(t *testing.T) {
	_, err := pdf.OpenText([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestRunIndex_LayoutOrderAndStrictOverlap(t *testing.T) {
	runs := []pdf.TextRun{
		pdftest.Run("second-line", 100, 680, 12),
		pdftest.Run("right", 200, 700, 12),
		pdftest.Run("left", 100, 701, 12),
		pdftest.Run("touching", 100, 750, 10),
	}
	ix := pdf.NewRunIndex(runs)
	assert.Equal(t, 4, ix.Len())

	// The region's top edge is exactly the bottom of "touching".
	region := geometry.PdfRect{X: 50, Y: 650, Width: 300, Height: 100}
	assert.Equal(t, "left right second-line", ix.Text(region))

	assert.Empty(t, ix.Text(geometry.PdfRect{X: 0, Y: 0, Width: 10, Height: 10}))
}

func TestRunIndex_Lines(t *testing.T) {
	ix := pdf.NewRunIndex([]pdf.TextRun{
		pdftest.Run("Also available in 500g", 100, 640, 10),
		pdftest.Run("20%", 160, 700, 12),
		pdftest.Run("SAVE", 100, 701, 12),
		pdftest.Run("  ", 100, 670, 12),
		pdftest.Run("Brand X", 100, 670, 12),
	})
	region := geometry.PdfRect{X: 50, Y: 600, Width: 300, Height: 150}

	assert.Equal(t, []string{"SAVE 20%", "Brand X", "Also available in 500g"}, ix.Lines(region))
	assert.Equal(t, "SAVE 20% Brand X Also available in 500g", ix.Text(region))
	assert.Empty(t, ix.Lines(geometry.PdfRect{X: 900, Y: 0, Width: 10, Height: 10}))
}

func TestRunIndex_Empty(t *testing.T) {
	ix := pdf.NewRunIndex(nil)
	assert.Empty(t, ix.Text(geometry.PdfRect{Width: 100, Height: 100}))
}

func TestDocumentCache(t *testing.T) {
	ctx := context.Background()
	doc := &pdftest.Document{Pages: []*pdftest.Page{
		{Num: 1, Width: 1200, Height: 800, Runs: []pdf.TextRun{pdftest.Run("12345", 10, 10, 10)}},
	}}
	opener := pdftest.NewOpener(map[string]*pdftest.Document{"a": doc})
	cache := pdf.NewDocumentCache(opener.Open)

	for range 3 {
		ix, err := cache.Index(ctx, "a", 1)
		require.NoError(t, err)
		assert.Equal(t, 1, ix.Len())
	}
	assert.Equal(t, 1, opener.Opens["a"])
	assert.Equal(t, 1, cache.Len())

	_, err := cache.Page(ctx, "a", 2)
	assert.ErrorIs(t, err, pdf.ErrPageOutOfRange)

	_, err = cache.Open(ctx, "missing")
	assert.ErrorIs(t, err, assets.ErrAssetMissing)
	_, err = cache.Open(ctx, "missing")
	assert.ErrorIs(t, err, assets.ErrAssetMissing)
	assert.Equal(t, 2, opener.Opens["missing"], "failed opens are retried")

	require.NoError(t, cache.Invalidate("a"))
	assert.Equal(t, 1, doc.Closed)
	_, err = cache.Index(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, opener.Opens["a"])

	require.NoError(t, cache.CloseAll())
	assert.Equal(t, 2, doc.Closed)
	assert.Equal(t, 0, cache.Len())
}

func TestTextExtractor(t *testing.T) {
	doc := &pdftest.Document{Pages: []*pdftest.Page{{
		Num: 1, Width: 600, Height: 800,
		Runs: []pdf.TextRun{
			pdftest.Run("Brand X", 100, 500, 10),
			pdftest.Run("(12345)", 100, 480, 10),
		},
	}}}
	cache := pdf.NewDocumentCache(pdftest.NewOpener(map[string]*pdftest.Document{"a": doc}).Open)
	text, err := pdf.NewTextExtractor(cache).ExtractRegion(context.Background(), "a", 1,
		geometry.PdfRect{X: 90, Y: 470, Width: 100, Height: 50})
	require.NoError(t, err)
	assert.Equal(t, "Brand X (12345)", text)
}

func TestAssetOpener(t *testing.T) {
	ctx := context.Background()
	store := assets.NewFSStore(afero.NewMemMapFs(), "/assets")
	require.NoError(t, store.Put(ctx, "spread", spreadPDF()))
	require.NoError(t, store.Put(ctx, "junk", []byte("junk")))

	open := pdf.AssetOpener(store, pdf.Credentials{})
	doc, err := open(ctx, "spread")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.NumPages())

	_, err = open(ctx, "nope")
	assert.ErrorIs(t, err, assets.ErrAssetMissing)

	_, err = open(ctx, "junk")
	require.Error(t, err)
	assert.NotErrorIs(t, err, assets.ErrAssetMissing)
}

func TestIsPasswordError(t *testing.T) {
	assert.False(t, pdf.IsPasswordError(nil))
	assert.True(t, pdf.IsPasswordError(errors.New("encrypted PDF: invalid password")))
	assert.False(t, pdf.IsPasswordError(errors.New("malformed xref")))
}

func TestPageCount(t *testing.T) {
	n, err := pdf.PageCount(pdftest.BuildPDF(
		pdftest.PageSpec{Width: 600, Height: 800},
		pdftest.PageSpec{Width: 600, Height: 800},
	), pdf.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

type fakeRenderer struct {
	name string
	err  error
}

func (f fakeRenderer) Name() string { return f.name }

func (f fakeRenderer) Render(_ context.Context, _ []byte, _ int, opts pdf.RenderOptions) (pdf.Rendered, error) {
	if f.err != nil {
		return pdf.Rendered{}, f.err
	}
	return pdf.Rendered{
		Image:    image.NewGray(image.Rect(0, 0, 4, 4)),
		Viewport: geometry.Viewport{Scale: opts.Scale, PageWidth: 4, PageHeight: 4},
	}, nil
}

func TestChainRenderer(t *testing.T) {
	ctx := context.Background()
	chain := pdf.ChainRenderer{
		fakeRenderer{name: "broken", err: errors.New("no mupdf")},
		fakeRenderer{name: "ok"},
	}
	out, err := chain.Render(ctx, nil, 1, pdf.RenderOptions{Scale: 2})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out.Viewport.Scale, 1e-9)

	_, err = pdf.ChainRenderer{fakeRenderer{name: "a", err: errors.New("boom")}}.Render(ctx, nil, 1, pdf.RenderOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: boom")

	_, err = pdf.ChainRenderer{}.Render(ctx, nil, 1, pdf.RenderOptions{})
	assert.Error(t, err)
}

func TestNewRenderer(t *testing.T) {
	for _, name := range []string{"", "auto", "fitz", "embedded"} {
		r, err := pdf.NewRenderer(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, r.Name())
	}
	_, err := pdf.NewRenderer("ghostscript")
	assert.Error(t, err)
}

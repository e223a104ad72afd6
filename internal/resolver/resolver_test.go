package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/spreadmap/internal/assets"
	"github.com/MeKo-Tech/spreadmap/internal/export"
	"github.com/MeKo-Tech/spreadmap/internal/geometry"
	"github.com/MeKo-Tech/spreadmap/internal/pdf"
	"github.com/MeKo-Tech/spreadmap/internal/pdf/pdftest"
	"github.com/MeKo-Tech/spreadmap/internal/tile"
)

func box(id string, x, y float64, order int, include bool) export.ExportBox {
	b := export.ExportBox{
		PdfRect: geometry.PdfRect{X: x, Y: y, Width: 200, Height: 150},
		RectID:  id,
		Include: &include,
	}
	if order > 0 {
		b.OrderIndex = &order
	}
	return b
}

// testExports is spread 2 on a 1200pt page: three ordered boxes on the left
// half (listed out of order), one right, one excluded left and one unordered.
func testExports() export.Map {
	return export.Map{{
		PdfID:        "pdf-2",
		Filename:     "Weekly-P02.pdf",
		SpreadNumber: 2,
		Pages: export.NewPages(export.PageExport{
			PageNumber: 1,
			PageWidth:  1200,
			PageHeight: 800,
			Boxes: []export.ExportBox{
				box("L2", 50, 300, 2, true),
				box("R1", 700, 500, 4, true),
				box("L1", 50, 500, 1, true),
				box("Lx", 300, 500, 3, false),
				box("L3", 300, 300, 5, true),
				box("Lu", 300, 100, 0, true),
			},
		}),
	}}
}

func newTestResolver(docs map[string]*pdftest.Document) (*Resolver, *pdftest.Opener) {
	if docs == nil {
		docs = map[string]*pdftest.Document{
			"pdf-2": {Pages: []*pdftest.Page{{Num: 1, Width: 1200, Height: 800}}},
		}
	}
	opener := pdftest.NewOpener(docs)
	return New(testExports(), pdf.NewDocumentCache(opener.Open)), opener
}

func TestFilenameAddressing(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		ok       bool
		want     Address
	}{
		{"scenario", "offer-p03-box02-misc.png", true, Address{Page: 3, Box: 2, Spread: 2, Half: HalfLeft}},
		{"middle segment", "offer-p03-x-box02-misc.png", true, Address{Page: 3, Box: 2, Spread: 2, Half: HalfLeft}},
		{"even page", "a-p4-box01-b.jpg", true, Address{Page: 4, Box: 1, Spread: 2, Half: HalfRight}},
		{"upper case", "A-P01-BOX03-Z.PNG", true, Address{Page: 1, Box: 3, Spread: 1, Half: HalfLeft}},
		{"page zero", "a-p00-box01-b.png", false, Address{}},
		{"box zero", "a-p01-box00-b.png", false, Address{}},
		{"no trailing dash", "a-p01-box01.png", false, Address{}},
		{"plain", "tile.png", false, Address{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FilenameAddressing{}.Parse(tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_FilenameMapping(t *testing.T) {
	r, _ := newTestResolver(nil)

	m, err := r.Resolve(context.Background(), &tile.Tile{OriginalFileName: "offer-p03-box02-misc.png"})
	require.NoError(t, err)
	assert.Equal(t, "L2", m.RectID)
	assert.Equal(t, "pdf-2", m.PdfID)
	assert.Equal(t, "Weekly-P02.pdf", m.PdfFilename)
	assert.Equal(t, 2, m.SpreadNumber)
	assert.Equal(t, HalfLeft, m.Half)
	assert.Equal(t, 2, m.BoxIndex)
	assert.InDelta(t, 300.0, m.Rect.Y, 1e-9)

	mapping := m.Mapping()
	assert.Equal(t, "L2", mapping.RectID)
	assert.Equal(t, HalfLeft, mapping.Half)

	m, err = r.Resolve(context.Background(), &tile.Tile{OriginalFileName: "offer-p04-box01-misc.png"})
	require.NoError(t, err)
	assert.Equal(t, "R1", m.RectID)
	assert.Equal(t, HalfRight, m.Half)
}

func TestResolve_Failures(t *testing.T) {
	tests := []struct {
		name    string
		tile    tile.Tile
		docs    map[string]*pdftest.Document
		code    string
		reason  string
		wrapped error
	}{
		{
			name:   "stale rect id does not fall back to filename",
			tile:   tile.Tile{MatchedRectID: "gone", OriginalFileName: "offer-p03-box02-misc.png"},
			code:   CodeRectNotFound,
			reason: "Matched rect not found in export",
		},
		{
			name:   "unparsable filename",
			tile:   tile.Tile{OriginalFileName: "offer.png"},
			code:   CodeMissingMapping,
			reason: "Missing page/box mapping",
		},
		{
			name:   "no export for spread",
			tile:   tile.Tile{OriginalFileName: "offer-p09-box01-a.png"},
			code:   CodeNoExport,
			reason: "No pdf export for spreadIndex 5",
		},
		{
			name:    "asset missing",
			tile:    tile.Tile{OriginalFileName: "offer-p03-box01-a.png"},
			docs:    map[string]*pdftest.Document{},
			code:    CodeAssetMissing,
			reason:  "PDF asset missing",
			wrapped: assets.ErrAssetMissing,
		},
		{
			name:   "left bucket too short",
			tile:   tile.Tile{OriginalFileName: "offer-p03-box04-a.png"},
			code:   CodeNoRect,
			reason: "No rect for box (L:3 R:1)",
		},
		{
			name:   "right bucket too short",
			tile:   tile.Tile{OriginalFileName: "offer-p04-box02-a.png"},
			code:   CodeNoRect,
			reason: "No rect for box (L:3 R:1)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestResolver(tt.docs)
			_, err := r.Resolve(context.Background(), &tt.tile)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMappingUnresolved)

			me, ok := AsMappingError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, me.Code)
			assert.Equal(t, tt.reason, me.Reason)
			if tt.wrapped != nil {
				assert.ErrorIs(t, err, tt.wrapped)
			}
		})
	}
}

func TestResolve_StaleRectIDSkipsFilename(t *testing.T) {
	r, opener := newTestResolver(nil)
	_, err := r.Resolve(context.Background(), &tile.Tile{MatchedRectID: "gone", OriginalFileName: "offer-p03-box02-misc.png"})
	require.Error(t, err)
	assert.Empty(t, opener.Opens, "no document is opened for a stale rect id")
}

func TestResolve_ByRectID(t *testing.T) {
	r, _ := newTestResolver(nil)

	m, err := r.Resolve(context.Background(), &tile.Tile{MatchedRectID: "L3", OriginalFileName: "unrelated.png"})
	require.NoError(t, err)
	assert.Equal(t, "L3", m.RectID)
	assert.Equal(t, HalfLeft, m.Half)
	assert.Equal(t, 3, m.BoxIndex)
	assert.Equal(t, 1, m.PageNumber)

	m, err = r.Resolve(context.Background(), &tile.Tile{MatchedRectID: "R1"})
	require.NoError(t, err)
	assert.Equal(t, HalfRight, m.Half)
	assert.Equal(t, 1, m.BoxIndex)
}

func TestResolve_DocumentWidthFallback(t *testing.T) {
	exports := testExports()
	pe, _ := exports[0].Pages.First()
	pe.PageWidth = 0
	exports[0].Pages = export.NewPages(pe)

	// A 600pt wide document puts x=300 boxes (center 400) on the right.
	opener := pdftest.NewOpener(map[string]*pdftest.Document{
		"pdf-2": {Pages: []*pdftest.Page{{Num: 1, Width: 600, Height: 800}}},
	})
	r := New(exports, pdf.NewDocumentCache(opener.Open))
	_, err := r.Resolve(context.Background(), &tile.Tile{OriginalFileName: "x-p01-box03-y.png"})
	me, ok := AsMappingError(err)
	require.True(t, ok)
	assert.Equal(t, "No rect for box (L:2 R:2)", me.Reason)
}

func TestResolve_CustomAddressing(t *testing.T) {
	r, _ := newTestResolver(nil)
	r = New(testExports(), r.docs, WithAddressing(fixedAddressing{AddressFor(3, 1)}))
	m, err := r.Resolve(context.Background(), &tile.Tile{OriginalFileName: "whatever"})
	require.NoError(t, err)
	assert.Equal(t, "L1", m.RectID)
}

func TestResolve_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _ := newTestResolver(nil)
	_, err := r.Resolve(ctx, &tile.Tile{OriginalFileName: "offer-p03-box02-misc.png"})
	assert.True(t, errors.Is(err, context.Canceled))
	_, ok := AsMappingError(err)
	assert.False(t, ok)
}

type fixedAddressing struct{ a Address }

func (f fixedAddressing) Parse(string) (Address, bool) { return f.a, true }

// Package resolver finds the export region a catalogue tile belongs to.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/MeKo-Tech/spreadmap/internal/export"
	"github.com/MeKo-Tech/spreadmap/internal/geometry"
	"github.com/MeKo-Tech/spreadmap/internal/pdf"
	"github.com/MeKo-Tech/spreadmap/internal/tile"
)

// Operator-facing failure reasons.
const (
	ReasonRectNotFound     = "Matched rect not found in export"
	ReasonMissingMapping   = "Missing page/box mapping"
	ReasonAssetMissing     = "PDF asset missing"
	ReasonInvalidGeometry  = "Invalid region geometry"
	ReasonExtractionFailed = "Extraction failed"
)

// ReasonNoExport formats the missing-export reason.
func ReasonNoExport(spread int) string {
	return fmt.Sprintf("No pdf export for spreadIndex %d", spread)
}

// ReasonNoRect formats the short-bucket reason.
func ReasonNoRect(left, right int) string {
	return fmt.Sprintf("No rect for box (L:%d R:%d)", left, right)
}

// Match is a resolved region.
type Match struct {
	PdfID        string
	PdfFilename  string
	SpreadNumber int
	PageNumber   int
	Half         string
	BoxIndex     int
	RectID       string
	Rect         geometry.PdfRect
}

// Mapping returns the provenance recorded on the tile.
func (m Match) Mapping() tile.Mapping {
	return tile.Mapping{
		RectID:       m.RectID,
		PdfFilename:  m.PdfFilename,
		SpreadNumber: m.SpreadNumber,
		Half:         m.Half,
		BoxIndex:     m.BoxIndex,
	}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAddressing replaces the filename addressing scheme.
func WithAddressing(a Addressing) Option {
	return func(r *Resolver) { r.addressing = a }
}

// Resolver maps tiles onto export regions. The document cache is shared
// with text extraction for the same run.
type Resolver struct {
	exports    export.Map
	docs       *pdf.DocumentCache
	addressing Addressing
}

// New creates a Resolver.
func New(exports export.Map, docs *pdf.DocumentCache, opts ...Option) *Resolver {
	r := &Resolver{exports: exports, docs: docs, addressing: FilenameAddressing{}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve tries the tile's recorded rect id first; a stale id fails without
// falling back to its filename. Otherwise the filename address is used.
// Failures are *MappingError.
func (r *Resolver) Resolve(ctx context.Context, t *tile.Tile) (Match, error) {
	if t.MatchedRectID != "" {
		return r.byRectID(ctx, t.MatchedRectID)
	}

	addr, ok := r.addressing.Parse(t.OriginalFileName)
	if !ok {
		return Match{}, newMappingError(CodeMissingMapping, ReasonMissingMapping, nil)
	}
	entry, ok := r.exports.BySpread(addr.Spread)
	if !ok {
		return Match{}, newMappingError(CodeNoExport, ReasonNoExport(addr.Spread), nil)
	}

	pe, _ := entry.Pages.First()
	pageNumber := max(pe.PageNumber, 1)
	page, err := r.docs.Page(ctx, entry.PdfID, pageNumber)
	if err != nil {
		if ctx.Err() != nil {
			return Match{}, ctx.Err()
		}
		return Match{}, newMappingError(CodeAssetMissing, ReasonAssetMissing, err)
	}

	left, right := buckets(pe, midX(pe, page))
	bucket := left
	if addr.Half == HalfRight {
		bucket = right
	}
	if addr.Box > len(bucket) {
		return Match{}, newMappingError(CodeNoRect, ReasonNoRect(len(left), len(right)), nil)
	}
	box := bucket[addr.Box-1]
	if err := box.PdfRect.Validate(); err != nil {
		return Match{}, newMappingError(CodeInvalidGeometry, ReasonInvalidGeometry, err)
	}

	slog.Debug("tile resolved by filename",
		"tile", t.ID, "spread", addr.Spread, "half", addr.Half, "box", addr.Box, "pdf_id", entry.PdfID)
	return Match{
		PdfID:        entry.PdfID,
		PdfFilename:  entry.Filename,
		SpreadNumber: entry.SpreadNumber,
		PageNumber:   pageNumber,
		Half:         addr.Half,
		BoxIndex:     addr.Box,
		RectID:       box.RectID,
		Rect:         box.PdfRect,
	}, nil
}

func (r *Resolver) byRectID(ctx context.Context, rectID string) (Match, error) {
	ref, ok := r.exports.FindRect(rectID)
	if !ok {
		return Match{}, newMappingError(CodeRectNotFound, ReasonRectNotFound, nil)
	}
	page, err := r.docs.Page(ctx, ref.Entry.PdfID, max(ref.Page.PageNumber, 1))
	if err != nil {
		if ctx.Err() != nil {
			return Match{}, ctx.Err()
		}
		return Match{}, newMappingError(CodeAssetMissing, ReasonAssetMissing, err)
	}
	if err := ref.Box.PdfRect.Validate(); err != nil {
		return Match{}, newMappingError(CodeInvalidGeometry, ReasonInvalidGeometry, err)
	}

	mid := midX(ref.Page, page)
	half := HalfLeft
	if ref.Box.CenterX() >= mid {
		half = HalfRight
	}
	m := Match{
		PdfID:        ref.Entry.PdfID,
		PdfFilename:  ref.Entry.Filename,
		SpreadNumber: ref.Entry.SpreadNumber,
		PageNumber:   max(ref.Page.PageNumber, 1),
		Half:         half,
		RectID:       rectID,
		Rect:         ref.Box.PdfRect,
	}
	left, right := buckets(ref.Page, mid)
	bucket := left
	if half == HalfRight {
		bucket = right
	}
	for i, b := range bucket {
		if b.RectID == rectID {
			m.BoxIndex = i + 1
		}
	}
	return m, nil
}

// midX prefers the exported page width over the document's.
func midX(pe export.PageExport, page pdf.Page) float64 {
	if pe.PageWidth > 0 {
		return pe.PageWidth / 2
	}
	w, _ := page.Size()
	return w / 2
}

// buckets splits the included, ordered boxes by horizontal center and sorts
// each side by order index.
func buckets(pe export.PageExport, mid float64) (left, right []export.ExportBox) {
	for _, b := range pe.Boxes {
		if !b.Included() || !b.Ordered() {
			continue
		}
		if b.CenterX() < mid {
			left = append(left, b)
		} else {
			right = append(right, b)
		}
	}
	byOrder := func(s []export.ExportBox) {
		sort.SliceStable(s, func(i, j int) bool { return *s[i].OrderIndex < *s[j].OrderIndex })
	}
	byOrder(left)
	byOrder(right)
	return left, right
}

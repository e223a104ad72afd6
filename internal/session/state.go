// Package session keeps the operator's detection work per PDF and page and
// mirrors every change to a durable Store.
package session

import (
	"github.com/MeKo-Tech/spreadmap/internal/detector"
	"github.com/MeKo-Tech/spreadmap/internal/geometry"
	"github.com/MeKo-Tech/spreadmap/internal/ordering"
)

// PageDetectionState is the persisted record for one PDF page.
type PageDetectionState struct {
	Boxes               []detector.DetectedRegion `json:"boxes"`
	RectConfigs         ordering.Configs          `json:"rectConfigs"`
	OrderingFinished    bool                      `json:"orderingFinished"`
	CurrentOrderCounter int                       `json:"currentOrderCounter"`
	PaddingPx           float64                   `json:"paddingPx"`
	Viewport            *geometry.Viewport        `json:"viewport,omitempty"`
}

// Clone returns a deep copy.
func (p *PageDetectionState) Clone() *PageDetectionState {
	if p == nil {
		return nil
	}
	c := *p
	c.Boxes = append([]detector.DetectedRegion(nil), p.Boxes...)
	c.RectConfigs = p.RectConfigs.Clone()
	if p.Viewport != nil {
		vp := *p.Viewport
		c.Viewport = &vp
	}
	return &c
}

// OrderBoxes returns the page's regions as top-left-origin boxes for ordering.
func (p *PageDetectionState) OrderBoxes() []ordering.Box {
	var pageHeight float64
	if p.Viewport != nil {
		pageHeight = p.Viewport.PageHeight
	}
	boxes := make([]ordering.Box, len(p.Boxes))
	for i, b := range p.Boxes {
		boxes[i] = ordering.BoxFromPdf(i, b.Rect, pageHeight)
	}
	return boxes
}

// Padding returns the effective padding for region idx in canvas pixels.
func (p *PageDetectionState) Padding(idx int) float64 {
	if rc, ok := p.RectConfigs[idx]; ok && rc.PaddingOverride != nil {
		return *rc.PaddingOverride
	}
	return p.PaddingPx
}

// PdfEntry is one uploaded PDF with its per-page detection state.
// UploadIndex is the 1-based upload order used as a spread-number fallback.
type PdfEntry struct {
	ID           string                      `json:"id"`
	Name         string                      `json:"name"`
	PageCount    int                         `json:"pageCount"`
	SelectedPage int                         `json:"selectedPage"`
	UploadIndex  int                         `json:"uploadIndex"`
	Pages        map[int]*PageDetectionState `json:"pages"`
}

// Clone returns a deep copy.
func (e *PdfEntry) Clone() PdfEntry {
	c := *e
	c.Pages = make(map[int]*PageDetectionState, len(e.Pages))
	for n, p := range e.Pages {
		c.Pages[n] = p.Clone()
	}
	return c
}

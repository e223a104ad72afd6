// Package export projects per-page detection state into the spread export
// map consumed by extraction.
package export

import (
	"regexp"
	"slices"
	"strconv"

	"github.com/MeKo-Tech/spreadmap/internal/geometry"
	"github.com/MeKo-Tech/spreadmap/internal/ordering"
	"github.com/MeKo-Tech/spreadmap/internal/session"
)

var spreadPattern = regexp.MustCompile(`P(\d{1,2})`)

// ExportBox is a region in PDF points plus the fields tile matching relies on.
type ExportBox struct {
	geometry.PdfRect
	RectID     string `json:"rectId,omitempty"`
	Include    *bool  `json:"include,omitempty"`
	OrderIndex *int   `json:"orderIndex,omitempty"`
}

// Included reports whether the box was accepted. Boxes written without the
// flag count as included.
func (b ExportBox) Included() bool { return b.Include == nil || *b.Include }

// Ordered reports whether the box has a resolved reading position.
func (b ExportBox) Ordered() bool { return b.OrderIndex != nil }

// PageExport holds the boxes of one page.
type PageExport struct {
	PageNumber int         `json:"pageNumber"`
	PageWidth  float64     `json:"pageWidth,omitempty"`
	PageHeight float64     `json:"pageHeight,omitempty"`
	Boxes      []ExportBox `json:"boxes"`
}

// SpreadExportEntry is the export of one PDF.
type SpreadExportEntry struct {
	PdfID        string `json:"pdfId"`
	Filename     string `json:"filename"`
	SpreadNumber int    `json:"spreadNumber"`
	Pages        Pages  `json:"pages"`
}

// SpreadNumber parses P<NN> from filename, falling back to the 1-based
// upload position.
func SpreadNumber(filename string, uploadIndex int) int {
	if m := spreadPattern.FindStringSubmatch(filename); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return uploadIndex
}

// Project converts a PDF entry into its export. uploadIndex overrides the
// entry's own upload position when positive.
func Project(entry session.PdfEntry, uploadIndex int) SpreadExportEntry {
	if uploadIndex <= 0 {
		uploadIndex = entry.UploadIndex
	}
	out := SpreadExportEntry{
		PdfID:        entry.ID,
		Filename:     entry.Name,
		SpreadNumber: SpreadNumber(entry.Name, uploadIndex),
	}

	numbers := make([]int, 0, len(entry.Pages))
	for n := range entry.Pages {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)
	for _, n := range numbers {
		if st := entry.Pages[n]; st != nil {
			out.Pages.Set(projectPage(n, st))
		}
	}
	return out
}

// ProjectAll exports entries using each entry's upload position.
func ProjectAll(entries []session.PdfEntry) Map {
	m := make(Map, 0, len(entries))
	for _, e := range entries {
		m = append(m, Project(e, 0))
	}
	return m
}

func projectPage(number int, st *session.PageDetectionState) PageExport {
	pe := PageExport{PageNumber: number, Boxes: make([]ExportBox, 0, len(st.Boxes))}
	if st.Viewport != nil {
		pe.PageWidth = st.Viewport.PageWidth
		pe.PageHeight = st.Viewport.PageHeight
	}

	positions := ordering.Positions(st.OrderBoxes(), st.RectConfigs)
	for idx, region := range st.Boxes {
		rc, ok := st.RectConfigs[idx]
		include := !ok || rc.Include
		box := ExportBox{
			PdfRect: padded(region.Rect, st.Padding(idx), st.Viewport),
			RectID:  rc.RectID,
			Include: &include,
		}
		if pos, ok := positions[idx]; ok {
			box.OrderIndex = &pos
		}
		pe.Boxes = append(pe.Boxes, box)
	}
	return pe
}

func padded(r geometry.PdfRect, padding float64, vp *geometry.Viewport) geometry.PdfRect {
	if vp == nil {
		return r
	}
	return geometry.PadPdfRect(r, padding, *vp)
}

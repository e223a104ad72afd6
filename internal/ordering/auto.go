package ordering

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/spreadmap/internal/geometry"
)

// RowTolerance is the fraction of the median region height within which
// center-y values join the current row.
const RowTolerance = 0.4

// Box is a region in top-left-origin coordinates.
type Box struct {
	Index  int
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (b Box) centerY() float64 { return b.Y + b.Height/2 }

// BoxFromPdf flips a PDF-space rect into a top-left-origin Box.
func BoxFromPdf(index int, r geometry.PdfRect, pageHeight float64) Box {
	return Box{Index: index, X: r.X, Y: pageHeight - r.Y - r.Height, Width: r.Width, Height: r.Height}
}

// AutoOrder returns box indices in reading order: rows top to bottom, left to
// right within a row. Boxes are visited once by center-y; a box joins the
// current row while its center-y stays within RowTolerance x median height of
// the row's running average.
func AutoOrder(boxes []Box) []int {
	if len(boxes) == 0 {
		return nil
	}
	sorted := make([]Box, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].centerY(), sorted[j].centerY()
		if ci != cj {
			return ci < cj
		}
		return sorted[i].X < sorted[j].X
	})

	threshold := RowTolerance * medianHeight(sorted)

	var rows [][]Box
	var row []Box
	var rowSum float64
	for _, b := range sorted {
		cy := b.centerY()
		if len(row) > 0 && math.Abs(cy-rowSum/float64(len(row))) >= threshold {
			rows = append(rows, row)
			row, rowSum = nil, 0
		}
		row = append(row, b)
		rowSum += cy
	}
	rows = append(rows, row)

	out := make([]int, 0, len(boxes))
	for _, r := range rows {
		sort.SliceStable(r, func(i, j int) bool { return r[i].X < r[j].X })
		for _, b := range r {
			out = append(out, b.Index)
		}
	}
	return out
}

func medianHeight(boxes []Box) float64 {
	hs := make([]float64, len(boxes))
	for i, b := range boxes {
		hs[i] = b.Height
	}
	sort.Float64s(hs)
	n := len(hs)
	if n%2 == 1 {
		return hs[n/2]
	}
	return (hs[n/2-1] + hs[n/2]) / 2
}

// Resolve returns the final order of included regions. When any included
// region has a manual order index, only the manually ordered regions are
// returned, sorted by index; otherwise AutoOrder decides.
func Resolve(boxes []Box, c Configs) []int {
	included := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		if rc, ok := c[b.Index]; ok && rc.Include {
			included = append(included, b)
		}
	}
	if !c.HasManualOrder() {
		return AutoOrder(included)
	}

	manual := make([]Box, 0, len(included))
	for _, b := range included {
		if c[b.Index].OrderIndex != nil {
			manual = append(manual, b)
		}
	}
	sort.SliceStable(manual, func(i, j int) bool {
		return *c[manual[i].Index].OrderIndex < *c[manual[j].Index].OrderIndex
	})
	out := make([]int, len(manual))
	for i, b := range manual {
		out[i] = b.Index
	}
	return out
}

// Positions maps region index to its 1-based position in the resolved order.
func Positions(boxes []Box, c Configs) map[int]int {
	order := Resolve(boxes, c)
	pos := make(map[int]int, len(order))
	for i, idx := range order {
		pos[idx] = i + 1
	}
	return pos
}

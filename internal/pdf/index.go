package pdf

import (
	"sort"
	"strings"

	"github.com/tidwall/rtree"

	"github.com/MeKo-Tech/spreadmap/internal/geometry"
)

// RunIndex answers region queries over a page's text runs.
type RunIndex struct {
	tree rtree.RTreeG[int]
	runs []TextRun
}

// NewRunIndex indexes runs by their bounding boxes.
func NewRunIndex(runs []TextRun) *RunIndex {
	ix := &RunIndex{runs: runs}
	for i, r := range runs {
		ix.tree.Insert(
			[2]float64{r.Rect.X, r.Rect.Y},
			[2]float64{r.Rect.MaxX(), r.Rect.MaxY()},
			i,
		)
	}
	return ix
}

// Len returns the number of indexed runs.
func (ix *RunIndex) Len() int { return len(ix.runs) }

// Overlapping returns the runs strictly overlapping rect in layout order:
// lines top to bottom, runs left to right within a line.
func (ix *RunIndex) Overlapping(rect geometry.PdfRect) []TextRun {
	return layoutOrder(ix.search(rect))
}

func (ix *RunIndex) search(rect geometry.PdfRect) []TextRun {
	var hits []TextRun
	ix.tree.Search(
		[2]float64{rect.X, rect.Y},
		[2]float64{rect.MaxX(), rect.MaxY()},
		func(_, _ [2]float64, i int) bool {
			// The tree matches touching boxes too.
			if geometry.Overlaps(ix.runs[i].Rect, rect) {
				hits = append(hits, ix.runs[i])
			}
			return true
		},
	)
	return hits
}

// Text joins the overlapping runs with single spaces.
func (ix *RunIndex) Text(rect geometry.PdfRect) string {
	return strings.Join(strings.Fields(strings.Join(ix.Lines(rect), " ")), " ")
}

// Lines returns the overlapping runs grouped into layout lines, top to
// bottom. Runs within a line are joined with single spaces; empty lines are
// dropped.
func (ix *RunIndex) Lines(rect geometry.PdfRect) []string {
	var out []string
	for _, line := range layoutLines(ix.search(rect)) {
		parts := make([]string, 0, len(line))
		for _, r := range line {
			parts = append(parts, r.Text)
		}
		if s := strings.Join(strings.Fields(strings.Join(parts, " ")), " "); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// layoutOrder flattens layoutLines.
func layoutOrder(runs []TextRun) []TextRun {
	out := make([]TextRun, 0, len(runs))
	for _, line := range layoutLines(runs) {
		out = append(out, line...)
	}
	return out
}

// layoutLines groups runs into lines by their top edge and sorts each line
// by x.
func layoutLines(runs []TextRun) [][]TextRun {
	if len(runs) == 0 {
		return nil
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Rect.MaxY() > runs[j].Rect.MaxY()
	})

	var out [][]TextRun
	line := []TextRun{runs[0]}
	top := runs[0].Rect.MaxY()
	for _, r := range runs[1:] {
		tol := 0.5 * min(r.Rect.Height, line[0].Rect.Height)
		if top-r.Rect.MaxY() <= tol {
			line = append(line, r)
			continue
		}
		out = append(out, sortLine(line))
		line = []TextRun{r}
		top = r.Rect.MaxY()
	}
	return append(out, sortLine(line))
}

func sortLine(line []TextRun) []TextRun {
	sort.SliceStable(line, func(i, j int) bool { return line[i].Rect.X < line[j].Rect.X })
	return line
}

// ExtractRegion returns the text of page inside rect.
func ExtractRegion(page Page, rect geometry.PdfRect) (string, error) {
	runs, err := page.TextRuns()
	if err != nil {
		return "", err
	}
	return NewRunIndex(runs).Text(rect), nil
}

// ExtractRegionLines returns the layout lines of page inside rect.
func ExtractRegionLines(page Page, rect geometry.PdfRect) ([]string, error) {
	runs, err := page.TextRuns()
	if err != nil {
		return nil, err
	}
	return NewRunIndex(runs).Lines(rect), nil
}

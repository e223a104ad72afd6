package support

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/spreadmap/internal/batch"
	"github.com/MeKo-Tech/spreadmap/internal/export"
	"github.com/MeKo-Tech/spreadmap/internal/geometry"
	"github.com/MeKo-Tech/spreadmap/internal/pdf/pdftest"
	"github.com/MeKo-Tech/spreadmap/internal/tile"
)

// tableRows returns the data rows of table keyed by header cell.
func tableRows(table *godog.Table) []map[string]string {
	if table == nil || len(table.Rows) < 2 {
		return nil
	}
	header := table.Rows[0].Cells
	rows := make([]map[string]string, 0, len(table.Rows)-1)
	for _, r := range table.Rows[1:] {
		row := make(map[string]string, len(header))
		for i, c := range r.Cells {
			row[header[i].Value] = c.Value
		}
		rows = append(rows, row)
	}
	return rows
}

func atof(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func (testCtx *TestContext) aSpreadExport(spread int, filename string, table *godog.Table) error {
	pdfID := strings.TrimSuffix(filename, ".pdf")
	var boxes []export.ExportBox
	for _, row := range tableRows(table) {
		x, err := atof(row["x"])
		if err != nil {
			return err
		}
		y, err := atof(row["y"])
		if err != nil {
			return err
		}
		box := export.ExportBox{
			PdfRect: geometry.PdfRect{X: x, Y: y, Width: boxWidth, Height: boxHeight},
			RectID:  row["rectId"],
		}
		if inc, ok := row["include"]; ok && inc != "" {
			b := inc == "yes" || inc == "true"
			box.Include = &b
		}
		if o := strings.TrimSpace(row["order"]); o != "" && o != "-" {
			n, err := strconv.Atoi(o)
			if err != nil {
				return fmt.Errorf("invalid order %q", o)
			}
			box.OrderIndex = &n
		}
		boxes = append(boxes, box)
	}
	testCtx.Exports = append(testCtx.Exports, export.SpreadExportEntry{
		PdfID:        pdfID,
		Filename:     filename,
		SpreadNumber: spread,
		Pages: export.NewPages(export.PageExport{
			PageNumber: 1, PageWidth: pageWidth, PageHeight: pageHeight, Boxes: boxes,
		}),
	})
	testCtx.document(pdfID)
	return nil
}

func (testCtx *TestContext) thePDFHasText(filename, text string, x, y int) error {
	doc := testCtx.document(strings.TrimSuffix(filename, ".pdf"))
	page := doc.Pages[0]
	page.Runs = append(page.Runs, pdftest.Run(text, float64(x), float64(y), textSize))
	return nil
}

func (testCtx *TestContext) thePDFAssetIsMissing(filename string) error {
	delete(testCtx.Docs, strings.TrimSuffix(filename, ".pdf"))
	return nil
}

func (testCtx *TestContext) aProjectWithTiles(table *godog.Table) error {
	for _, row := range tableRows(table) {
		t := &tile.Tile{
			ID:               row["id"],
			OriginalFileName: row["filename"],
			MatchedRectID:    strings.TrimSpace(row["rectId"]),
		}
		if plus := splitList(row["plus"]); plus != nil {
			t.LinkBuilderState.Plus = plus
		}
		testCtx.Project.Tiles = append(testCtx.Project.Tiles, t)
	}
	return nil
}

func (testCtx *TestContext) iRunBatchExtraction(ctx context.Context) error {
	return testCtx.run(ctx)
}

func (testCtx *TestContext) theRunShouldSucceed() error {
	if testCtx.LastRunErr != nil {
		return fmt.Errorf("expected run to succeed, got %v", testCtx.LastRunErr)
	}
	if testCtx.LastSummary.State != batch.Succeeded {
		return fmt.Errorf("expected state succeeded, got %s", testCtx.LastSummary.State)
	}
	return nil
}

func (testCtx *TestContext) theSummaryShouldReport(processed, missing int) error {
	s := testCtx.LastSummary
	if s.Processed != processed || s.Missing != missing {
		return fmt.Errorf("expected processed=%d missing=%d, got %s", processed, missing, s)
	}
	return nil
}

func (testCtx *TestContext) theSummaryShouldCountPLUs(withPLUs, total int) error {
	s := testCtx.LastSummary
	if s.WithPLUs != withPLUs || s.TotalPLUs != total {
		return fmt.Errorf("expected %d tiles with %d PLUs, got %s", withPLUs, total, s)
	}
	return nil
}

func (testCtx *TestContext) theSummaryShouldCountReason(code string, n int) error {
	if got := testCtx.LastSummary.MissingReasons[code]; got != n {
		return fmt.Errorf("expected %d missing with %s, got %d (%v)", n, code, got, testCtx.LastSummary.MissingReasons)
	}
	return nil
}

func (testCtx *TestContext) tileShouldHavePLUs(id, list string) error {
	t, ok := testCtx.tile(id)
	if !ok {
		return fmt.Errorf("unknown tile %q", id)
	}
	want := splitList(list)
	if !slices.Equal(t.LinkBuilderState.Plus, want) {
		return fmt.Errorf("tile %s: expected PLUs %v, got %v", id, want, t.LinkBuilderState.Plus)
	}
	return nil
}

func (testCtx *TestContext) tileShouldHaveAutoFlags(id, list string) error {
	t, ok := testCtx.tile(id)
	if !ok {
		return fmt.Errorf("unknown tile %q", id)
	}
	var want []bool
	for _, v := range splitList(list) {
		want = append(want, v == "true")
	}
	if !slices.Equal(t.ExtractedPluFlags, want) {
		return fmt.Errorf("tile %s: expected flags %v, got %v", id, want, t.ExtractedPluFlags)
	}
	return nil
}

func (testCtx *TestContext) tileShouldBeMissing(id, reason string) error {
	t, ok := testCtx.tile(id)
	if !ok {
		return fmt.Errorf("unknown tile %q", id)
	}
	if !t.Missing() || t.PdfMappingReason != reason {
		return fmt.Errorf("tile %s: expected missing with %q, got status=%q reason=%q",
			id, reason, t.PdfMappingStatus, t.PdfMappingReason)
	}
	return nil
}

func (testCtx *TestContext) tileShouldBeMapped(id string, spread int, half string, box int, rectID string) error {
	t, ok := testCtx.tile(id)
	if !ok {
		return fmt.Errorf("unknown tile %q", id)
	}
	if t.Missing() {
		return fmt.Errorf("tile %s is missing: %s", id, t.PdfMappingReason)
	}
	if t.MappedSpreadNumber != spread || t.MappedHalf != half || t.MappedBoxIndex != box || t.MatchedRectID != rectID {
		return fmt.Errorf("tile %s: expected spread %d %s box %d rect %s, got spread %d %s box %d rect %s",
			id, spread, half, box, rectID, t.MappedSpreadNumber, t.MappedHalf, t.MappedBoxIndex, t.MatchedRectID)
	}
	return nil
}

func (testCtx *TestContext) tileShouldHaveText(id, text string) error {
	t, ok := testCtx.tile(id)
	if !ok {
		return fmt.Errorf("unknown tile %q", id)
	}
	if t.ExtractedText != text {
		return fmt.Errorf("tile %s: expected text %q, got %q", id, text, t.ExtractedText)
	}
	return nil
}

// RegisterBatchSteps registers export, project and batch run steps.
func (testCtx *TestContext) RegisterBatchSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a spread export for spread (\d+) from "([^"]*)" with boxes:$`, testCtx.aSpreadExport)
	sc.Step(`^the PDF "([^"]*)" has text "([^"]*)" at (\d+),(\d+)$`, testCtx.thePDFHasText)
	sc.Step(`^the PDF asset "([^"]*)" is missing$`, testCtx.thePDFAssetIsMissing)
	sc.Step(`^a project with tiles:$`, testCtx.aProjectWithTiles)

	sc.Step(`^I run batch extraction$`, testCtx.iRunBatchExtraction)
	sc.Step(`^I run batch extraction again$`, testCtx.iRunBatchExtraction)

	sc.Step(`^the run should succeed$`, testCtx.theRunShouldSucceed)
	sc.Step(`^the summary should report (\d+) processed and (\d+) missing$`, testCtx.theSummaryShouldReport)
	sc.Step(`^the summary should count (\d+) tiles? with (\d+) PLUs?$`, testCtx.theSummaryShouldCountPLUs)
	sc.Step(`^the summary should count (\d+) missing as "([^"]*)"$`,
		func(n int, code string) error { return testCtx.theSummaryShouldCountReason(code, n) })

	sc.Step(`^tile "([^"]*)" should have PLUs "([^"]*)"$`, testCtx.tileShouldHavePLUs)
	sc.Step(`^tile "([^"]*)" should have auto-extracted flags "([^"]*)"$`, testCtx.tileShouldHaveAutoFlags)
	sc.Step(`^tile "([^"]*)" should be missing with reason "([^"]*)"$`, testCtx.tileShouldBeMissing)
	sc.Step(`^tile "([^"]*)" should be mapped to spread (\d+) (left|right) box (\d+) rect "([^"]*)"$`,
		testCtx.tileShouldBeMapped)
	sc.Step(`^tile "([^"]*)" should have extracted text "([^"]*)"$`, testCtx.tileShouldHaveText)
}

// Package support holds the godog step definitions for the extraction
// feature suite. Everything runs in-process against fixture documents.
package support

import (
	"context"
	"strings"

	"github.com/MeKo-Tech/spreadmap/internal/batch"
	"github.com/MeKo-Tech/spreadmap/internal/export"
	"github.com/MeKo-Tech/spreadmap/internal/offer"
	"github.com/MeKo-Tech/spreadmap/internal/pdf/pdftest"
	"github.com/MeKo-Tech/spreadmap/internal/tile"
)

const (
	pageWidth  = 1200
	pageHeight = 800
	boxWidth   = 200
	boxHeight  = 150
	textSize   = 10
)

// TestContext holds the state of one scenario.
type TestContext struct {
	Brands  []string
	Exports export.Map
	Docs    map[string]*pdftest.Document
	Project *tile.Project

	LastSummary batch.Summary
	LastRunErr  error
	Runs        int

	LastPLUs  []string
	LastOffer offer.Offer

	orch *batch.Orchestrator
}

// NewTestContext creates an empty scenario context.
func NewTestContext() *TestContext {
	return &TestContext{
		Docs:    map[string]*pdftest.Document{},
		Project: &tile.Project{ID: "scenario"},
	}
}

func (testCtx *TestContext) parser() *offer.Parser {
	return offer.NewParser(offer.Dictionary{Brands: testCtx.Brands})
}

func (testCtx *TestContext) orchestrator() *batch.Orchestrator {
	if testCtx.orch == nil {
		opener := pdftest.NewOpener(testCtx.Docs)
		testCtx.orch = batch.New(opener.Open, testCtx.parser())
	}
	return testCtx.orch
}

func (testCtx *TestContext) document(pdfID string) *pdftest.Document {
	doc, ok := testCtx.Docs[pdfID]
	if !ok {
		doc = &pdftest.Document{Pages: []*pdftest.Page{{Num: 1, Width: pageWidth, Height: pageHeight}}}
		testCtx.Docs[pdfID] = doc
	}
	return doc
}

func (testCtx *TestContext) tile(id string) (*tile.Tile, bool) {
	for _, t := range testCtx.Project.Tiles {
		if t != nil && t.ID == id {
			return t, true
		}
	}
	return nil, false
}

func (testCtx *TestContext) run(ctx context.Context) error {
	testCtx.LastSummary, testCtx.LastRunErr = testCtx.orchestrator().Run(ctx, testCtx.Project, testCtx.Exports)
	testCtx.Runs++
	return nil
}

// splitList parses a comma separated cell; "" and "-" are empty.
func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

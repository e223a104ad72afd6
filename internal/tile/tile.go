// Package tile holds the catalogue tile record that extraction writes into.
package tile

import (
	"github.com/MeKo-Tech/spreadmap/internal/offer"
	"github.com/MeKo-Tech/spreadmap/internal/plu"
)

// StatusMissing marks a tile whose region could not be resolved.
const StatusMissing = "missing"

// LinkBuilderState carries the PLU slots of a tile.
type LinkBuilderState struct {
	Plus []string `json:"plus"`
}

// Tile is one catalogue advertisement unit. ExtractedPluFlags[i] is true
// while LinkBuilderState.Plus[i] holds an auto-extracted value.
type Tile struct {
	ID                 string           `json:"id"`
	OriginalFileName   string           `json:"originalFileName"`
	ImageKey           string           `json:"imageKey,omitempty"`
	MatchedRectID      string           `json:"matchedRectId,omitempty"`
	ExtractedText      string           `json:"extractedText,omitempty"`
	LinkBuilderState   LinkBuilderState `json:"linkBuilderState"`
	ExtractedPluFlags  []bool           `json:"extractedPluFlags,omitempty"`
	Offer              *offer.Offer     `json:"offer,omitempty"`
	PdfMappingStatus   string           `json:"pdfMappingStatus,omitempty"`
	PdfMappingReason   string           `json:"pdfMappingReason,omitempty"`
	MappedPdfFilename  string           `json:"mappedPdfFilename,omitempty"`
	MappedSpreadNumber int              `json:"mappedSpreadNumber,omitempty"`
	MappedHalf         string           `json:"mappedHalf,omitempty"`
	MappedBoxIndex     int              `json:"mappedBoxIndex,omitempty"`
}

// Mapping is the provenance of a successful region match.
type Mapping struct {
	RectID       string
	PdfFilename  string
	SpreadNumber int
	Half         string
	BoxIndex     int
}

// Extraction is everything one successful run writes into a tile.
type Extraction struct {
	Mapping Mapping
	Text    string
	PLUs    []string
	Offer   offer.Offer
}

// Missing reports whether the last run could not resolve the tile.
func (t *Tile) Missing() bool { return t.PdfMappingStatus == StatusMissing }

// ApplyExtraction records a successful match. Diagnostic fields are cleared,
// text and offer are replaced, and PLU slots are filled only when codes were
// found. It returns the number of slots filled.
func (t *Tile) ApplyExtraction(e Extraction, maxSlots int) int {
	t.PdfMappingStatus = ""
	t.PdfMappingReason = ""
	t.MappedPdfFilename = e.Mapping.PdfFilename
	t.MappedSpreadNumber = e.Mapping.SpreadNumber
	t.MappedHalf = e.Mapping.Half
	t.MappedBoxIndex = e.Mapping.BoxIndex
	if e.Mapping.RectID != "" {
		t.MatchedRectID = e.Mapping.RectID
	}
	t.ExtractedText = e.Text
	o := e.Offer
	t.Offer = &o

	if len(e.PLUs) == 0 {
		return 0
	}
	t.LinkBuilderState.Plus, t.ExtractedPluFlags = plu.Fill(t.LinkBuilderState.Plus, t.ExtractedPluFlags, e.PLUs, maxSlots)
	return len(t.LinkBuilderState.Plus)
}

// MarkMissing records a failed resolution. Only the status, reason and match
// provenance change; PLU slots, text and offer keep their previous values.
func (t *Tile) MarkMissing(reason string) {
	t.PdfMappingStatus = StatusMissing
	t.PdfMappingReason = reason
	t.MappedPdfFilename = ""
	t.MappedSpreadNumber = 0
	t.MappedHalf = ""
	t.MappedBoxIndex = 0
}

// SetPLU stores an operator-typed value in slot i and clears its
// auto-extracted flag.
func (t *Tile) SetPLU(i int, value string) {
	if i < 0 {
		return
	}
	for len(t.LinkBuilderState.Plus) <= i {
		t.LinkBuilderState.Plus = append(t.LinkBuilderState.Plus, "")
	}
	for len(t.ExtractedPluFlags) <= i {
		t.ExtractedPluFlags = append(t.ExtractedPluFlags, false)
	}
	t.LinkBuilderState.Plus[i] = value
	t.ExtractedPluFlags[i] = false
}

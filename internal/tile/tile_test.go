package tile

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/spreadmap/internal/offer"
	"github.com/MeKo-Tech/spreadmap/internal/testutil"
)

func sampleExtraction() Extraction {
	return Extraction{
		Mapping: Mapping{RectID: "r-1", PdfFilename: "P02.pdf", SpreadNumber: 2, Half: "left", BoxIndex: 2},
		Text:    "Crunchy Oats SAVE 20% Brand X (12345) each",
		PLUs:    []string{"12345"},
		Offer:   offer.Offer{Brand: "Brand X", Title: "20% Off Brand X Crunchy Oats"},
	}
}

func TestApplyExtraction_ClearsDiagnostics(t *testing.T) {
	tl := &Tile{ID: "t1"}
	tl.MarkMissing("Missing page/box mapping")
	require.True(t, tl.Missing())

	n := tl.ApplyExtraction(sampleExtraction(), 4)
	assert.Equal(t, 1, n)
	assert.False(t, tl.Missing())
	assert.Empty(t, tl.PdfMappingReason)
	assert.Equal(t, "r-1", tl.MatchedRectID)
	assert.Equal(t, "P02.pdf", tl.MappedPdfFilename)
	assert.Equal(t, 2, tl.MappedSpreadNumber)
	assert.Equal(t, "left", tl.MappedHalf)
	assert.Equal(t, 2, tl.MappedBoxIndex)
	assert.Equal(t, []string{"12345"}, tl.LinkBuilderState.Plus)
	assert.Equal(t, []bool{true}, tl.ExtractedPluFlags)
	require.NotNil(t, tl.Offer)
	assert.Equal(t, "Brand X", tl.Offer.Brand)
}

func TestApplyExtraction_Idempotent(t *testing.T) {
	tl := &Tile{ID: "t1"}
	tl.ApplyExtraction(sampleExtraction(), 4)
	first, err := json.Marshal(tl)
	require.NoError(t, err)

	tl.ApplyExtraction(sampleExtraction(), 4)
	second, err := json.Marshal(tl)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestApplyExtraction_NoPLUsLeavesSlots(t *testing.T) {
	tl := &Tile{ID: "t1"}
	tl.SetPLU(0, "999999")
	e := sampleExtraction()
	e.PLUs = nil

	assert.Zero(t, tl.ApplyExtraction(e, 4))
	assert.Equal(t, []string{"999999"}, tl.LinkBuilderState.Plus)
	assert.Equal(t, []bool{false}, tl.ExtractedPluFlags)
	assert.Equal(t, e.Text, tl.ExtractedText)
}

func TestMarkMissing_LeavesOutputs(t *testing.T) {
	tl := &Tile{ID: "t1"}
	tl.ApplyExtraction(sampleExtraction(), 4)
	tl.MarkMissing("PDF asset missing")

	assert.Equal(t, StatusMissing, tl.PdfMappingStatus)
	assert.Equal(t, "PDF asset missing", tl.PdfMappingReason)
	assert.Empty(t, tl.MappedPdfFilename)
	assert.Zero(t, tl.MappedBoxIndex)
	assert.Equal(t, []string{"12345"}, tl.LinkBuilderState.Plus)
	assert.NotNil(t, tl.Offer)
}

func TestSetPLU_ClearsFlag(t *testing.T) {
	tl := &Tile{ID: "t1"}
	tl.ApplyExtraction(Extraction{PLUs: []string{"1111", "2222"}}, 4)
	require.Equal(t, []bool{true, true}, tl.ExtractedPluFlags)

	tl.SetPLU(1, "3333")
	assert.Equal(t, []string{"1111", "3333"}, tl.LinkBuilderState.Plus)
	assert.Equal(t, []bool{true, false}, tl.ExtractedPluFlags)

	tl.SetPLU(3, "4444")
	assert.Equal(t, []string{"1111", "3333", "", "4444"}, tl.LinkBuilderState.Plus)
	assert.Equal(t, []bool{true, false, false, false}, tl.ExtractedPluFlags)
}

func TestTileJSONFieldNames(t *testing.T) {
	tl := &Tile{ID: "t1", OriginalFileName: "a-p01-box01-.png"}
	tl.MarkMissing("Missing page/box mapping")
	data, err := json.Marshal(tl)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "t1",
		"originalFileName": "a-p01-box01-.png",
		"linkBuilderState": {"plus": null},
		"pdfMappingStatus": "missing",
		"pdfMappingReason": "Missing page/box mapping"
	}`, string(data))
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	fs := testutil.NewMemFs(t)
	store := NewFileStore(fs, "/projects")

	_, err := store.Load(ctx, "p1")
	require.ErrorIs(t, err, ErrProjectNotFound)

	p := &Project{ID: "p1", Name: "Week 12", Tiles: []*Tile{{ID: "a", OriginalFileName: "x-p01-box01-.png"}}}
	require.NoError(t, store.Save(ctx, p))

	got, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)

	_, err = store.Load(ctx, "../etc")
	require.Error(t, err)
}

func TestFileStore_CorruptFileRecovers(t *testing.T) {
	fs := testutil.NewMemFs(t)
	testutil.WriteFile(t, fs, "/projects/bad.json", []byte("{not json"))

	p, err := NewFileStore(fs, "/projects").Load(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, "bad", p.ID)
	assert.Empty(t, p.Tiles)
}

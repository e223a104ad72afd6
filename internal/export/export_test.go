package export

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/spreadmap/internal/detector"
	"github.com/MeKo-Tech/spreadmap/internal/geometry"
	"github.com/MeKo-Tech/spreadmap/internal/ordering"
	"github.com/MeKo-Tech/spreadmap/internal/session"
)

func intPtr(v int) *int { return &v }

func sampleEntry() session.PdfEntry {
	vp := geometry.Viewport{Scale: 1, PageWidth: 1200, PageHeight: 800}
	regions := []detector.DetectedRegion{
		{Rect: geometry.PdfRect{X: 700, Y: 500, Width: 300, Height: 200}},
		{Rect: geometry.PdfRect{X: 100, Y: 500, Width: 300, Height: 200}},
		{Rect: geometry.PdfRect{X: 100, Y: 100, Width: 300, Height: 200}},
	}
	return session.PdfEntry{
		ID:          "pdf-1",
		Name:        "Weekly-P04-final.pdf",
		PageCount:   1,
		UploadIndex: 3,
		Pages: map[int]*session.PageDetectionState{
			1: {
				Boxes: regions,
				RectConfigs: ordering.Configs{
					0: {Include: true, RectID: "r0"},
					1: {Include: true, RectID: "r1"},
					2: {Include: false, RectID: "r2"},
				},
				CurrentOrderCounter: 1,
				Viewport:            &vp,
			},
		},
	}
}

func TestSpreadNumber(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		upload   int
		want     int
	}{
		{"two digits", "Weekly-P04-final.pdf", 9, 4},
		{"one digit", "P7.pdf", 9, 7},
		{"no marker", "weekly.pdf", 2, 2},
		{"lowercase is not a marker", "weekly-p05.pdf", 2, 2},
		{"zero falls back", "P00.pdf", 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpreadNumber(tt.filename, tt.upload))
		})
	}
}

func TestProject(t *testing.T) {
	got := Project(sampleEntry(), 0)

	assert.Equal(t, "pdf-1", got.PdfID)
	assert.Equal(t, "Weekly-P04-final.pdf", got.Filename)
	assert.Equal(t, 4, got.SpreadNumber)
	require.Equal(t, 1, got.Pages.Len())

	page, ok := got.Pages.Get(1)
	require.True(t, ok)
	assert.InDelta(t, 1200.0, page.PageWidth, 1e-9)
	assert.InDelta(t, 800.0, page.PageHeight, 1e-9)
	require.Len(t, page.Boxes, 3)

	// Auto order over the included boxes: left then right in the top row.
	require.NotNil(t, page.Boxes[1].OrderIndex)
	assert.Equal(t, 1, *page.Boxes[1].OrderIndex)
	require.NotNil(t, page.Boxes[0].OrderIndex)
	assert.Equal(t, 2, *page.Boxes[0].OrderIndex)
	assert.Nil(t, page.Boxes[2].OrderIndex)
	assert.False(t, page.Boxes[2].Included())
	assert.Equal(t, "r2", page.Boxes[2].RectID)
}

func TestProject_ManualOrderAndPadding(t *testing.T) {
	entry := sampleEntry()
	st := entry.Pages[1]
	st.PaddingPx = 10
	st.RectConfigs[0] = ordering.RegionConfig{Include: true, RectID: "r0", OrderIndex: intPtr(1)}

	page, _ := Project(entry, 0).Pages.Get(1)
	require.NotNil(t, page.Boxes[0].OrderIndex)
	assert.Equal(t, 1, *page.Boxes[0].OrderIndex)
	assert.Nil(t, page.Boxes[1].OrderIndex, "partial manual order is not blended")

	b := page.Boxes[1].PdfRect
	assert.InDelta(t, 90.0, b.X, 1e-9)
	assert.InDelta(t, 490.0, b.Y, 1e-9)
	assert.InDelta(t, 320.0, b.Width, 1e-9)
	assert.InDelta(t, 220.0, b.Height, 1e-9)
}

func TestProject_UploadFallback(t *testing.T) {
	entry := sampleEntry()
	entry.Name = "weekly.pdf"
	assert.Equal(t, 3, Project(entry, 0).SpreadNumber)
	assert.Equal(t, 6, Project(entry, 6).SpreadNumber)
}

func TestPages_UnmarshalShapes(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []int
	}{
		{"array", `[{"pageNumber":2,"boxes":[]},{"pageNumber":1,"boxes":[]}]`, []int{1, 2}},
		{"object", `{"3":{"boxes":[]},"1":{"boxes":[]}}`, []int{1, 3}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Pages
			require.NoError(t, json.Unmarshal([]byte(tt.json), &p))
			var got []int
			for _, pe := range p.All() {
				got = append(got, pe.PageNumber)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	var p Pages
	assert.Error(t, json.Unmarshal([]byte(`{"x":{}}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`"pages"`), &p))
}

func TestEntry_JSONShape(t *testing.T) {
	data, err := json.Marshal(Project(sampleEntry(), 0))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "pdf-1", raw["pdfId"])
	pages, ok := raw["pages"].([]any)
	require.True(t, ok)
	box := pages[0].(map[string]any)["boxes"].([]any)[1].(map[string]any)
	assert.Equal(t, "r1", box["rectId"])
	assert.EqualValues(t, 1, box["orderIndex"])
	assert.EqualValues(t, 100, box["x"])
	assert.Equal(t, true, box["include"])
}

func TestMap_Lookup(t *testing.T) {
	m := ProjectAll([]session.PdfEntry{sampleEntry()})

	e, ok := m.BySpread(4)
	require.True(t, ok)
	assert.Equal(t, "pdf-1", e.PdfID)
	_, ok = m.BySpread(5)
	assert.False(t, ok)

	ref, ok := m.FindRect("r1")
	require.True(t, ok)
	assert.Equal(t, 1, ref.BoxIndex)
	assert.Equal(t, 1, ref.Page.PageNumber)
	assert.Equal(t, "pdf-1", ref.Entry.PdfID)

	_, ok = m.FindRect("gone")
	assert.False(t, ok)
	_, ok = m.FindRect("")
	assert.False(t, ok)
}

func TestSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := ProjectAll([]session.PdfEntry{sampleEntry()})
	require.NoError(t, Save(fs, "export.json", m))

	loaded, err := Load(fs, "export.json")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	page, ok := loaded[0].Pages.First()
	require.True(t, ok)
	assert.Len(t, page.Boxes, 3)

	missing, err := Load(fs, "nope.json")
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte("[{"), 0o644))
	corrupt, err := Load(fs, "bad.json")
	require.NoError(t, err)
	assert.Empty(t, corrupt)
}

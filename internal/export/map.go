package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
)

// Map is the full spread export, one entry per PDF.
type Map []SpreadExportEntry

// RectRef locates a box inside the map.
type RectRef struct {
	Entry    *SpreadExportEntry
	Page     PageExport
	Box      ExportBox
	BoxIndex int
}

// BySpread returns the first entry with the given spread number.
func (m Map) BySpread(n int) (*SpreadExportEntry, bool) {
	for i := range m {
		if m[i].SpreadNumber == n {
			return &m[i], true
		}
	}
	return nil, false
}

// FindRect looks up a box by its rect id.
func (m Map) FindRect(rectID string) (RectRef, bool) {
	if rectID == "" {
		return RectRef{}, false
	}
	for i := range m {
		for _, pe := range m[i].Pages.All() {
			for bi, b := range pe.Boxes {
				if b.RectID == rectID {
					return RectRef{Entry: &m[i], Page: pe, Box: b, BoxIndex: bi}, true
				}
			}
		}
	}
	return RectRef{}, false
}

// Load reads an export file. A missing file is an empty map; a corrupt one
// is logged and also treated as empty.
func Load(fs afero.Fs, name string) (Map, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Map{}, nil
		}
		return nil, fmt.Errorf("read export: %w", err)
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Warn("corrupt export file, starting empty", "path", name, "error", err)
		return Map{}, nil
	}
	return m, nil
}

// Save writes an export file via a temp file and rename.
func Save(fs afero.Fs, name string, m Map) error {
	if m == nil {
		m = Map{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	tmp := name + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if err := fs.Rename(tmp, name); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	return nil
}

package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/spreadmap/internal/tile"
)

// State of an orchestrator run.
type State int

const (
	Idle State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for _, c := range []State{Idle, Running, Succeeded, Failed} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Summary is reported once per run. MissingReasons counts missing tiles by
// failure code.
type Summary struct {
	Processed      int            `json:"processed"`
	WithPLUs       int            `json:"withPlus"`
	TotalPLUs      int            `json:"totalPlus"`
	Missing        int            `json:"missing"`
	MissingReasons map[string]int `json:"missingReasons,omitempty"`
	Duration       time.Duration  `json:"durationNs"`
	State          State          `json:"state"`
	Aborted        bool           `json:"aborted,omitempty"`
}

func (s Summary) clone() Summary {
	s.MissingReasons = maps.Clone(s.MissingReasons)
	return s
}

// String renders a one-line summary for operators.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d processed, %d with PLUs, %d PLUs filled, %d missing",
		s.State, s.Processed, s.WithPLUs, s.TotalPLUs, s.Missing)
	if len(s.MissingReasons) > 0 {
		codes := slices.Sorted(maps.Keys(s.MissingReasons))
		parts := make([]string, len(codes))
		for i, c := range codes {
			parts[i] = fmt.Sprintf("%s=%d", c, s.MissingReasons[c])
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if s.Aborted {
		b.WriteString(", aborted")
	}
	return b.String()
}

// FormatReport renders the summary and per-tile outcome as text, json or csv.
func FormatReport(s Summary, tiles []*tile.Tile, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(s, tiles)
	case "csv":
		return formatCSV(tiles)
	default:
		return formatText(s, tiles), nil
	}
}

func formatJSON(s Summary, tiles []*tile.Tile) (string, error) {
	report := struct {
		Summary Summary      `json:"summary"`
		Tiles   []*tile.Tile `json:"tiles"`
	}{s, tiles}
	bts, err := json.MarshalIndent(report, "", "  ")
	return string(bts), err
}

func formatCSV(tiles []*tile.Tile) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	rows := [][]string{{"tile", "file", "status", "reason", "pdf", "spread", "half", "box", "plus"}}
	for _, t := range tiles {
		if t == nil {
			continue
		}
		status := "ok"
		if t.Missing() {
			status = tile.StatusMissing
		}
		rows = append(rows, []string{
			t.ID,
			t.OriginalFileName,
			status,
			t.PdfMappingReason,
			t.MappedPdfFilename,
			strconv.Itoa(t.MappedSpreadNumber),
			t.MappedHalf,
			strconv.Itoa(t.MappedBoxIndex),
			strings.Join(t.LinkBuilderState.Plus, " "),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return b.String(), nil
}

func formatText(s Summary, tiles []*tile.Tile) string {
	var b strings.Builder
	for _, t := range tiles {
		if t == nil {
			continue
		}
		if t.Missing() {
			fmt.Fprintf(&b, "%s\tmissing\t%s\n", t.OriginalFileName, t.PdfMappingReason)
			continue
		}
		fmt.Fprintf(&b, "%s\t%s#%d %s\t%s\n", t.OriginalFileName, t.MappedPdfFilename,
			t.MappedBoxIndex, t.MappedHalf, strings.Join(t.LinkBuilderState.Plus, ","))
	}
	b.WriteString(s.String())
	b.WriteByte('\n')
	return b.String()
}

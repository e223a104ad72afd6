package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/spreadmap/internal/detector"
	"github.com/MeKo-Tech/spreadmap/internal/geometry"
	"github.com/MeKo-Tech/spreadmap/internal/ordering"
)

var (
	// ErrUnknownPDF is returned when an id does not name a loaded PDF.
	ErrUnknownPDF = errors.New("unknown pdf")
	// ErrNoActivePage is returned by page mutations before Select.
	ErrNoActivePage = errors.New("no active page")
	// ErrPageOutOfRange is returned when selecting a page the PDF does not have.
	ErrPageOutOfRange = errors.New("page out of range")
)

// Option configures a Session.
type Option func(*Session)

// WithIDFunc overrides the rect id generator.
func WithIDFunc(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

// WithDefaultPadding sets the padding given to newly created pages.
func WithDefaultPadding(px float64) Option {
	return func(s *Session) { s.defaultPadding = px }
}

// Session owns the loaded PDFs and the active (PDF, page). One operator
// edits one page at a time; the last write wins.
type Session struct {
	mu             sync.Mutex
	store          Store
	entries        map[string]*PdfEntry
	activePDF      string
	activePage     int
	newID          func() string
	defaultPadding float64
}

// Open loads all persisted entries from store.
func Open(ctx context.Context, store Store, opts ...Option) (*Session, error) {
	s := &Session{
		store:   store,
		entries: make(map[string]*PdfEntry),
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	loaded, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	for _, e := range loaded {
		if e.Pages == nil {
			e.Pages = make(map[int]*PageDetectionState)
		}
		s.entries[e.ID] = e
	}
	slog.Debug("session opened", "pdfs", len(s.entries))
	return s, nil
}

// AddPDF registers a PDF. Re-adding a known id updates its name and page
// count and keeps its pages.
func (s *Session) AddPDF(ctx context.Context, id, name string, pageCount int) (PdfEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		e = &PdfEntry{
			ID:          id,
			UploadIndex: s.nextUploadIndex(),
			Pages:       make(map[int]*PageDetectionState),
		}
		s.entries[id] = e
	}
	e.Name = name
	e.PageCount = pageCount
	if err := s.store.Save(ctx, e); err != nil {
		return PdfEntry{}, err
	}
	return e.Clone(), nil
}

func (s *Session) nextUploadIndex() int {
	n := 0
	for _, e := range s.entries {
		n = max(n, e.UploadIndex)
	}
	return n + 1
}

// RemovePDF forgets a PDF and its pages.
func (s *Session) RemovePDF(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPDF, id)
	}
	delete(s.entries, id)
	if s.activePDF == id {
		s.activePDF, s.activePage = "", 0
	}
	return s.store.Delete(ctx, id)
}

// Select makes (pdfID, page) active. The outgoing page is flushed first.
// The page's state is created on first selection.
func (s *Session) Select(ctx context.Context, pdfID string, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[pdfID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPDF, pdfID)
	}
	if page < 1 || (e.PageCount > 0 && page > e.PageCount) {
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, e.PageCount)
	}
	if out, ok := s.entries[s.activePDF]; ok {
		if err := s.store.Save(ctx, out); err != nil {
			return fmt.Errorf("flush %s page %d: %w", s.activePDF, s.activePage, err)
		}
	}

	if st, ok := e.Pages[page]; !ok || st == nil {
		e.Pages[page] = &PageDetectionState{
			RectConfigs:         ordering.Configs{},
			CurrentOrderCounter: 1,
			PaddingPx:           s.defaultPadding,
		}
	}
	e.SelectedPage = page
	s.activePDF, s.activePage = pdfID, page
	return s.store.Save(ctx, e)
}

// Active returns the active PDF id and page number.
func (s *Session) Active() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePDF, s.activePage
}

// Flush persists the active PDF.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[s.activePDF]; ok {
		return s.store.Save(ctx, e)
	}
	return nil
}

// Page returns a copy of the active page state.
func (s *Session) Page() (PageDetectionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, st, err := s.activeState()
	if err != nil {
		return PageDetectionState{}, false
	}
	return *st.Clone(), true
}

// Entry returns a copy of one PDF entry.
func (s *Session) Entry(id string) (PdfEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return PdfEntry{}, false
	}
	return e.Clone(), true
}

// Entries returns copies of all entries in upload order.
func (s *Session) Entries() []PdfEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PdfEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadIndex < out[j].UploadIndex })
	return out
}

// SetDetection replaces the active page's regions after a detect or
// re-render. All region configs and ordering are reset and every region gets
// a fresh rect id.
func (s *Session) SetDetection(ctx context.Context, regions []detector.DetectedRegion, vp geometry.Viewport) error {
	if err := vp.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, func(st *PageDetectionState) error {
		st.Boxes = append([]detector.DetectedRegion(nil), regions...)
		st.RectConfigs = ordering.NewConfigs(len(regions), s.newID)
		st.CurrentOrderCounter = 1
		st.OrderingFinished = false
		st.Viewport = &vp
		return nil
	})
}

// ToggleInclude flips whether region idx is accepted.
func (s *Session) ToggleInclude(ctx context.Context, idx int) error {
	return s.mutate(ctx, func(st *PageDetectionState) error {
		if err := checkIndex(st, idx); err != nil {
			return err
		}
		st.RectConfigs = ordering.ToggleInclude(st.RectConfigs, idx)
		return nil
	})
}

// AdjustPadding nudges the padding override of region idx by delta pixels.
func (s *Session) AdjustPadding(ctx context.Context, idx int, delta float64) error {
	return s.mutate(ctx, func(st *PageDetectionState) error {
		if err := checkIndex(st, idx); err != nil {
			return err
		}
		st.RectConfigs = ordering.AdjustPadding(st.RectConfigs, idx, delta, st.PaddingPx)
		return nil
	})
}

// SetPadding sets the page-wide default padding.
func (s *Session) SetPadding(ctx context.Context, px float64) error {
	if px < 0 {
		return fmt.Errorf("padding must be non-negative, got %g", px)
	}
	return s.mutate(ctx, func(st *PageDetectionState) error {
		st.PaddingPx = px
		return nil
	})
}

// AssignOrder gives region idx the next manual order index. It reports
// false when the region is excluded or already assigned.
func (s *Session) AssignOrder(ctx context.Context, idx int) (bool, error) {
	var assigned bool
	err := s.mutate(ctx, func(st *PageDetectionState) error {
		if err := checkIndex(st, idx); err != nil {
			return err
		}
		st.RectConfigs, st.CurrentOrderCounter, assigned = ordering.AssignNext(st.RectConfigs, idx, st.CurrentOrderCounter)
		return nil
	})
	return assigned, err
}

// UndoOrder rolls back the last manual assignment.
func (s *Session) UndoOrder(ctx context.Context) error {
	return s.mutate(ctx, func(st *PageDetectionState) error {
		st.RectConfigs, st.CurrentOrderCounter = ordering.UndoLast(st.RectConfigs, st.CurrentOrderCounter)
		return nil
	})
}

// ResetOrder clears all manual order indices.
func (s *Session) ResetOrder(ctx context.Context) error {
	return s.mutate(ctx, func(st *PageDetectionState) error {
		st.RectConfigs, st.CurrentOrderCounter = ordering.ResetOrder(st.RectConfigs)
		st.OrderingFinished = false
		return nil
	})
}

// ApplyAutoOrder replaces manual indices with the automatic reading order.
func (s *Session) ApplyAutoOrder(ctx context.Context) ([]int, error) {
	var order []int
	err := s.mutate(ctx, func(st *PageDetectionState) error {
		cfg, counter := ordering.ResetOrder(st.RectConfigs)
		order = ordering.Resolve(st.OrderBoxes(), cfg)
		for _, idx := range order {
			cfg, counter, _ = ordering.AssignNext(cfg, idx, counter)
		}
		st.RectConfigs, st.CurrentOrderCounter = cfg, counter
		return nil
	})
	return order, err
}

// SetOrderingFinished marks the page's ordering as done (or reopens it).
func (s *Session) SetOrderingFinished(ctx context.Context, finished bool) error {
	return s.mutate(ctx, func(st *PageDetectionState) error {
		st.OrderingFinished = finished
		return nil
	})
}

// mutate applies fn to a copy of the active page and keeps the copy only
// once the store has accepted it.
func (s *Session) mutate(ctx context.Context, fn func(st *PageDetectionState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, st, err := s.activeState()
	if err != nil {
		return err
	}
	next := st.Clone()
	if err := fn(next); err != nil {
		return err
	}
	e.Pages[s.activePage] = next
	if err := s.store.Save(ctx, e); err != nil {
		e.Pages[s.activePage] = st
		return fmt.Errorf("persist %s page %d: %w", e.ID, s.activePage, err)
	}
	return nil
}

func (s *Session) activeState() (*PdfEntry, *PageDetectionState, error) {
	e, ok := s.entries[s.activePDF]
	if !ok {
		return nil, nil, ErrNoActivePage
	}
	st, ok := e.Pages[s.activePage]
	if !ok || st == nil {
		return nil, nil, ErrNoActivePage
	}
	return e, st, nil
}

func checkIndex(st *PageDetectionState, idx int) error {
	if idx < 0 || idx >= len(st.Boxes) {
		return fmt.Errorf("region %d out of range (page has %d)", idx, len(st.Boxes))
	}
	return nil
}

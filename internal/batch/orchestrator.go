// Package batch runs extraction over every tile of a project.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/MeKo-Tech/spreadmap/internal/export"
	"github.com/MeKo-Tech/spreadmap/internal/offer"
	"github.com/MeKo-Tech/spreadmap/internal/pdf"
	"github.com/MeKo-Tech/spreadmap/internal/plu"
	"github.com/MeKo-Tech/spreadmap/internal/resolver"
	"github.com/MeKo-Tech/spreadmap/internal/tile"
)

// DefaultMaxPLUSlots caps auto-filled PLU slots per tile.
const DefaultMaxPLUSlots = 10

var (
	// ErrAlreadyRunning is returned by Run while another run is active.
	ErrAlreadyRunning = errors.New("batch extraction already running")
	// ErrAborted is returned when a run stops before its last tile.
	ErrAborted = errors.New("batch extraction aborted")
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxPLUSlots caps how many PLU slots a tile receives. Zero or less
// means no cap.
func WithMaxPLUSlots(n int) Option {
	return func(o *Orchestrator) { o.maxSlots = n }
}

// WithProgress sets the default progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(o *Orchestrator) { o.progress = cb }
}

// Orchestrator drives resolve, text, PLU and offer extraction per tile.
// Only one run may be active at a time.
type Orchestrator struct {
	open     pdf.Opener
	parser   *offer.Parser
	maxSlots int
	progress ProgressCallback

	sem     *semaphore.Weighted
	aborted atomic.Bool

	mu    sync.Mutex
	state State
	last  *Summary
}

// New creates an Orchestrator that opens PDFs with open.
func New(open pdf.Opener, parser *offer.Parser, opts ...Option) *Orchestrator {
	if parser == nil {
		parser = offer.NewParser(offer.Dictionary{})
	}
	o := &Orchestrator{
		open:     open,
		parser:   parser,
		maxSlots: DefaultMaxPLUSlots,
		progress: NoOpProgressCallback{},
		sem:      semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current run state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// LastSummary returns the summary of the most recent finished run.
func (o *Orchestrator) LastSummary() (Summary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Summary{}, false
	}
	return o.last.clone(), true
}

// Abort asks the active run to stop before its next tile.
func (o *Orchestrator) Abort() {
	o.aborted.Store(true)
}

// Run extracts every tile of project in order against exports, using the
// orchestrator's default progress callback.
func (o *Orchestrator) Run(ctx context.Context, project *tile.Project, exports export.Map) (Summary, error) {
	return o.RunWithProgress(ctx, project, exports, o.progress)
}

// RunWithProgress is Run with an explicit progress callback. Tile failures
// are recorded on the tiles; only a cancelled run or an unexpected failure
// outside tile processing returns an error, and tiles already processed
// keep their results.
func (o *Orchestrator) RunWithProgress(ctx context.Context, project *tile.Project, exports export.Map, progress ProgressCallback) (summary Summary, err error) {
	if !o.sem.TryAcquire(1) {
		return Summary{}, ErrAlreadyRunning
	}
	defer o.sem.Release(1)

	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	o.aborted.Store(false)
	o.setState(Running)
	start := time.Now()
	summary = Summary{State: Running, MissingReasons: map[string]int{}}

	cache := pdf.NewDocumentCache(o.open)
	defer func() {
		if cerr := cache.CloseAll(); cerr != nil {
			slog.Warn("closing pdf cache", "error", cerr)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("batch extraction crashed", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("batch extraction failed: %v", r)
		}
		summary.Duration = time.Since(start)
		summary.State = Succeeded
		if err != nil {
			summary.State = Failed
		}
		o.finish(summary)
		progress.OnComplete(summary)
	}()

	if project == nil {
		return summary, errors.New("no project")
	}
	res := resolver.New(exports, cache)
	text := pdf.NewTextExtractor(cache)

	total := len(project.Tiles)
	progress.OnStart(total)
	slog.Info("batch extraction started", "project", project.ID, "tiles", total)

	for i, t := range project.Tiles {
		if cerr := ctx.Err(); cerr != nil || o.aborted.Load() {
			summary.Aborted = true
			return summary, abortError(cerr)
		}
		if t == nil {
			progress.OnProgress(i+1, total)
			continue
		}
		if cerr := o.processTile(ctx, t, res, text, &summary); cerr != nil {
			summary.Aborted = true
			return summary, abortError(cerr)
		}
		if t.Missing() {
			progress.OnError(i+1, errors.New(t.PdfMappingReason))
		}
		progress.OnProgress(i+1, total)
	}
	return summary, nil
}

func abortError(cause error) error {
	if cause == nil {
		return ErrAborted
	}
	return fmt.Errorf("%w: %w", ErrAborted, cause)
}

func (o *Orchestrator) finish(s Summary) {
	o.mu.Lock()
	o.state = s.State
	saved := s.clone()
	o.last = &saved
	o.mu.Unlock()

	runsTotal.WithLabelValues(s.State.String()).Inc()
	runDuration.Observe(s.Duration.Seconds())
	slog.Info("batch extraction finished",
		"state", s.State.String(),
		"processed", s.Processed,
		"with_plus", s.WithPLUs,
		"plus", s.TotalPLUs,
		"missing", s.Missing,
		"aborted", s.Aborted,
	)
}

// processTile updates one tile. It returns an error only when the context
// ends mid-tile, in which case the tile is left untouched.
func (o *Orchestrator) processTile(ctx context.Context, t *tile.Tile, res *resolver.Resolver, text *pdf.TextExtractor, s *Summary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tile extraction panicked", "tile", t.ID, "panic", r)
			o.markMissing(t, &resolver.MappingError{
				Code:   resolver.CodeExtractionFailed,
				Reason: resolver.ReasonExtractionFailed,
				Err:    fmt.Errorf("panic: %v", r),
			}, s)
			err = nil
		}
	}()

	m, err := res.Resolve(ctx, t)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		me, ok := resolver.AsMappingError(err)
		if !ok {
			me = &resolver.MappingError{Code: resolver.CodeExtractionFailed, Reason: resolver.ReasonExtractionFailed, Err: err}
		}
		o.markMissing(t, me, s)
		return nil
	}

	lines, err := text.ExtractRegionLines(ctx, m.PdfID, m.PageNumber, m.Rect)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.markMissing(t, &resolver.MappingError{
			Code:   resolver.CodeExtractionFailed,
			Reason: resolver.ReasonExtractionFailed,
			Err:    err,
		}, s)
		return nil
	}

	// The offer parser works on layout lines; the stored text is one line.
	body := strings.Join(lines, " ")
	filled := t.ApplyExtraction(tile.Extraction{
		Mapping: m.Mapping(),
		Text:    body,
		PLUs:    plu.Extract(body),
		Offer:   o.parser.Parse(strings.Join(lines, "\n")),
	}, o.maxSlots)

	s.Processed++
	if filled > 0 {
		s.WithPLUs++
		s.TotalPLUs += filled
		plusFilledTotal.Add(float64(filled))
	}
	tilesTotal.WithLabelValues("resolved").Inc()
	slog.Debug("tile extracted", "tile", t.ID, "rect", m.RectID, "plus", filled)
	return nil
}

func (o *Orchestrator) markMissing(t *tile.Tile, me *resolver.MappingError, s *Summary) {
	t.MarkMissing(me.Reason)
	s.Missing++
	s.MissingReasons[me.Code]++
	tilesTotal.WithLabelValues("missing").Inc()
	missingTotal.WithLabelValues(me.Code).Inc()
	slog.Debug("tile missing", "tile", t.ID, "reason", me.Reason, "error", me.Err)
}

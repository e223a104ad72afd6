package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ProgressCallback receives progress from a batch run. Calls happen on the
// run's goroutine in tile order.
type ProgressCallback interface {
	// OnStart is called once with the number of tiles.
	OnStart(total int)

	// OnProgress is called after each tile.
	OnProgress(current, total int)

	// OnComplete is called once with the run's summary.
	OnComplete(summary Summary)

	// OnError is called for each tile left missing.
	OnError(current int, err error)
}

// NoOpProgressCallback ignores all progress.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete(Summary)  {}
func (NoOpProgressCallback) OnError(int, error)  {}

// LogProgressCallback logs progress with slog every interval tiles.
type LogProgressCallback struct {
	logger    *slog.Logger
	level     slog.Level
	interval  int
	lastLog   int
	startTime time.Time
}

// NewLogProgressCallback creates a log-based progress reporter.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, interval: 10}
}

// WithInterval sets how often progress is logged.
func (l *LogProgressCallback) WithInterval(interval int) *LogProgressCallback {
	l.interval = max(interval, 1)
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, "extraction started", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	l.logger.Log(context.Background(), l.level, "extraction progress",
		"current", current,
		"total", total,
		"percent", fmt.Sprintf("%.1f", float64(current)/float64(max(total, 1))*100),
		"elapsed", time.Since(l.startTime).Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete(s Summary) {
	l.logger.Log(context.Background(), l.level, "extraction finished",
		"state", s.State.String(),
		"processed", s.Processed,
		"missing", s.Missing,
		"plus", s.TotalPLUs,
		"elapsed", s.Duration.Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnError(current int, err error) {
	l.logger.Log(context.Background(), slog.LevelWarn, "tile missing", "tile", current, "reason", err.Error())
}

// MultiProgressCallback fans progress out to several callbacks.
type MultiProgressCallback struct {
	callbacks []ProgressCallback
}

// NewMultiProgressCallback combines callbacks; nil entries are skipped.
func NewMultiProgressCallback(callbacks ...ProgressCallback) *MultiProgressCallback {
	m := &MultiProgressCallback{}
	for _, cb := range callbacks {
		m.Add(cb)
	}
	return m
}

// Add appends another callback.
func (m *MultiProgressCallback) Add(cb ProgressCallback) {
	if cb != nil {
		m.callbacks = append(m.callbacks, cb)
	}
}

func (m *MultiProgressCallback) OnStart(total int) {
	for _, cb := range m.callbacks {
		cb.OnStart(total)
	}
}

func (m *MultiProgressCallback) OnProgress(current, total int) {
	for _, cb := range m.callbacks {
		cb.OnProgress(current, total)
	}
}

func (m *MultiProgressCallback) OnComplete(s Summary) {
	for _, cb := range m.callbacks {
		cb.OnComplete(s)
	}
}

func (m *MultiProgressCallback) OnError(current int, err error) {
	for _, cb := range m.callbacks {
		cb.OnError(current, err)
	}
}

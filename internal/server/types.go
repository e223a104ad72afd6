package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/MeKo-Tech/spreadmap/internal/batch"
	"github.com/MeKo-Tech/spreadmap/internal/export"
	"github.com/MeKo-Tech/spreadmap/internal/offer"
	"github.com/MeKo-Tech/spreadmap/internal/tile"
)

// ExportSource returns the current spread exports.
type ExportSource func(ctx context.Context) (export.Map, error)

// Server holds the HTTP server state and dependencies.
type Server struct {
	projects   tile.Store
	exports    ExportSource
	orch       *batch.Orchestrator
	parser     *offer.Parser
	hub        *progressHub
	corsOrigin string
}

// Config holds server dependencies and settings.
type Config struct {
	CORSOrigin   string
	Projects     tile.Store
	Exports      ExportSource
	Orchestrator *batch.Orchestrator
	Parser       *offer.Parser
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	State   string `json:"state"`
	Time    string `json:"time"`
}

// ExtractRequest starts a batch run on a stored project.
type ExtractRequest struct {
	ProjectID string `json:"projectId"`
}

// ExtractResponse reports a finished batch run.
type ExtractResponse struct {
	Success bool           `json:"success"`
	Summary *batch.Summary `json:"summary,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// StatusResponse reports the orchestrator state and the last summary.
type StatusResponse struct {
	State       string         `json:"state"`
	LastSummary *batch.Summary `json:"lastSummary,omitempty"`
}

// PLURequest carries raw tile text.
type PLURequest struct {
	Text string `json:"text"`
}

// PLUResponse is the extraction result for posted text.
type PLUResponse struct {
	Plus  []string    `json:"plus"`
	Offer offer.Offer `json:"offer"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a server. Projects, Exports and Orchestrator are required.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Projects == nil || cfg.Exports == nil || cfg.Orchestrator == nil {
		return nil, errors.New("server needs a project store, an export source and an orchestrator")
	}
	parser := cfg.Parser
	if parser == nil {
		parser = offer.NewParser(offer.Dictionary{})
	}
	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return &Server{
		projects:   cfg.Projects,
		exports:    cfg.Exports,
		orch:       cfg.Orchestrator,
		parser:     parser,
		hub:        newProgressHub(),
		corsOrigin: origin,
	}, nil
}

// Close disconnects all progress subscribers.
func (s *Server) Close() error {
	s.hub.closeAll()
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	for _, r := range []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"/health", s.healthHandler},
		{"/extract", s.extractHandler},
		{"/extract/abort", s.abortHandler},
		{"/plu", s.pluHandler},
	} {
		mux.HandleFunc(r.pattern, s.route(r.pattern, r.handler))
	}
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/ws/extract", s.progressWebSocketHandler)
}

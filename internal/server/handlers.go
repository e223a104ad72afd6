package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/spreadmap/internal/batch"
	"github.com/MeKo-Tech/spreadmap/internal/plu"
	"github.com/MeKo-Tech/spreadmap/internal/tile"
	"github.com/MeKo-Tech/spreadmap/internal/version"
)

const maxBodyBytes = 1 << 20

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.String(),
		State:   s.orch.State().String(),
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// extractHandler reports the batch state on GET and runs a batch on POST.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.extractStatus(w)
	case http.MethodPost:
		s.extractRun(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) extractStatus(w http.ResponseWriter) {
	resp := StatusResponse{State: s.orch.State().String()}
	if last, ok := s.orch.LastSummary(); ok {
		resp.LastSummary = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) extractRun(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" {
		writeError(w, "projectId is required", http.StatusBadRequest)
		return
	}
	if s.orch.State() == batch.Running {
		writeError(w, batch.ErrAlreadyRunning.Error(), http.StatusConflict)
		return
	}

	// A dropped client does not cancel the run; use /extract/abort.
	ctx := context.WithoutCancel(r.Context())

	project, err := s.projects.Load(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, tile.ErrProjectNotFound) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, "Failed to load project: "+err.Error(), http.StatusInternalServerError)
		return
	}
	exports, err := s.exports(ctx)
	if err != nil {
		writeError(w, "Failed to load spread exports: "+err.Error(), http.StatusInternalServerError)
		return
	}

	summary, runErr := s.orch.RunWithProgress(ctx, project, exports, s.hub)
	if errors.Is(runErr, batch.ErrAlreadyRunning) {
		writeError(w, runErr.Error(), http.StatusConflict)
		return
	}
	if err := s.projects.Save(ctx, project); err != nil {
		slog.Error("Failed to save project after extraction", "project", project.ID, "error", err)
		writeError(w, "Failed to save project: "+err.Error(), http.StatusInternalServerError)
		return
	}

	switch {
	case runErr == nil:
		extractRunsTotal.WithLabelValues("succeeded").Inc()
		writeJSON(w, http.StatusOK, ExtractResponse{Success: true, Summary: &summary})
	case errors.Is(runErr, batch.ErrAborted):
		extractRunsTotal.WithLabelValues("aborted").Inc()
		writeJSON(w, http.StatusOK, ExtractResponse{Success: false, Summary: &summary, Error: runErr.Error()})
	default:
		extractRunsTotal.WithLabelValues("failed").Inc()
		writeJSON(w, http.StatusInternalServerError, ExtractResponse{Success: false, Summary: &summary, Error: runErr.Error()})
	}
}

// abortHandler asks the active batch run to stop.
func (s *Server) abortHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.orch.Abort()
	writeJSON(w, http.StatusAccepted, StatusResponse{State: s.orch.State().String()})
}

// pluHandler extracts PLU codes and an offer summary from posted text.
func (s *Server) pluHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req PLURequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	codes := plu.Extract(req.Text)
	if codes == nil {
		codes = []string{}
	}
	pluRequestCodes.Observe(float64(len(codes)))
	writeJSON(w, http.StatusOK, PLUResponse{Plus: codes, Offer: s.parser.Parse(req.Text)})
}

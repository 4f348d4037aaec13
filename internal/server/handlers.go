package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/komyaka/wordstat/internal/config"
	"github.com/komyaka/wordstat/internal/engine"
	"github.com/komyaka/wordstat/internal/export"
	"github.com/komyaka/wordstat/internal/models"
)

// startRunRequest wraps models.RunRequest with pointer fields so omitted
// max_depth and top_n fall back to the configured defaults.
type startRunRequest struct {
	Seeds    []string `json:"seeds"`
	MaxDepth *int     `json:"max_depth"`
	TopN     *int     `json:"top_n"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.cfgMu.Lock()
	expand := s.cfg.Expand
	s.cfgMu.Unlock()

	runReq := models.RunRequest{
		Seeds:    req.Seeds,
		MaxDepth: expand.MaxDepth,
		TopN:     expand.TopN,
	}
	if req.MaxDepth != nil {
		runReq.MaxDepth = *req.MaxDepth
	}
	if req.TopN != nil {
		runReq.TopN = *req.TopN
	}

	s.logger.Debug("start run request",
		zap.Int("seeds", len(runReq.Seeds)),
		zap.Int("max_depth", runReq.MaxDepth),
		zap.Int("top_n", runReq.TopN),
	)
	// Detached from the request context: a run outlives the request that
	// started it.
	run, err := s.runner.Start(context.Background(), runReq)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID,
		"status": string(run.Status()),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runner.List()
	out := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		out = append(out, runSummary(run))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": out})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runner.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	s.respondJSON(w, http.StatusOK, runSummary(run))
}

func runSummary(run *engine.Run) map[string]interface{} {
	out := map[string]interface{}{
		"run_id":     run.ID,
		"status":     string(run.Status()),
		"started_at": run.StartedAt.Format(time.RFC3339),
		"results":    len(run.Results()),
	}
	if t := run.FinishedAt(); !t.IsZero() {
		out["finished_at"] = t.Format(time.RFC3339)
	}
	return out
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("cancel run request", zap.String("run_id", id))
	if !s.runner.Cancel(id) {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"run_id": id, "status": "cancelling"})
}

func (s *Server) handleRunResults(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runner.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	results := run.Results()
	if results == nil {
		results = []models.KeywordRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  run.ID,
		"status":  string(run.Status()),
		"results": results,
	})
}

func (s *Server) handleRunExport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runner.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if !run.Status().Terminal() {
		s.respondError(w, http.StatusConflict, "run is still in progress")
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "keywords-"+run.ID+".xlsx"))
		if err := export.Excel(w, run.Results()); err != nil {
			s.logger.Error("excel export failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	case "tsv":
		w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "keywords-"+run.ID+".tsv"))
		if err := export.TSV(w, run.Results()); err != nil {
			s.logger.Error("tsv export failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	default:
		s.respondError(w, http.StatusBadRequest, "unknown format (want xlsx or tsv)")
	}
}

// handleRunEvents streams the run's events as server-sent events, starting
// with the backlog, until the run reaches a terminal state or the client
// disconnects.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runner.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	backlog, live, unsubscribe := run.Subscribe()
	defer unsubscribe()

	for _, e := range backlog {
		if err := writeSSE(w, e); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-live:
			if !open {
				return
			}
			if err := writeSSE(w, e); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, e interface{}) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

type limitsRequest struct {
	PerSecond int  `json:"per_second"`
	PerHour   int  `json:"per_hour"`
	PerDay    int  `json:"per_day"`
	Persist   bool `json:"persist,omitempty"`
}

func (s *Server) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.limiter.Stats())
}

func (s *Server) handleUpdateLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("update limits request",
		zap.Int("per_second", req.PerSecond),
		zap.Int("per_hour", req.PerHour),
		zap.Int("per_day", req.PerDay),
	)
	if err := s.limiter.Configure(req.PerSecond, req.PerHour, req.PerDay); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Persist && s.configPath != "" {
		s.cfgMu.Lock()
		s.cfg.Limits.PerSecond = req.PerSecond
		s.cfg.Limits.PerHour = req.PerHour
		s.cfg.Limits.PerDay = req.PerDay
		err := config.Save(s.configPath, s.cfg)
		s.cfgMu.Unlock()
		if err != nil {
			s.logger.Warn("failed to persist limits", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, s.limiter.Stats())
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.respondError(w, http.StatusNotImplemented, "cache not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, s.cache.Stats(r.Context()))
}

func (s *Server) handleCacheSweep(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.respondError(w, http.StatusNotImplemented, "cache not enabled")
		return
	}
	removed := s.cache.SweepExpired(r.Context())
	s.respondJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.respondError(w, http.StatusNotImplemented, "cache not enabled")
		return
	}
	s.cache.Clear(r.Context())
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

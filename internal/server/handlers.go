package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/rankpress/internal/imageio"
	"github.com/hyperjump/rankpress/internal/models"
	"github.com/hyperjump/rankpress/internal/runner"
	"github.com/hyperjump/rankpress/internal/storage"
	"github.com/hyperjump/rankpress/internal/svd"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.respondError(w, http.StatusNotImplemented, "runs not enabled")
		return
	}
	var req models.RunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	s.logger.Debug("run request", zap.String("path", req.Path), zap.Ints("ranks", req.Ranks))
	run, err := s.runner.Run(r.Context(), req.Path, req.Ranks)
	if err != nil {
		s.logger.Error("run failed", zap.Error(err))
		s.respondError(w, runErrorStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, run)
}

// runErrorStatus maps caller mistakes to 4xx and everything else to 500.
func runErrorStatus(err error) int {
	switch {
	case errors.Is(err, svd.ErrInvalidRank), errors.Is(err, runner.ErrNoValidRanks):
		return http.StatusBadRequest
	case errors.Is(err, imageio.ErrNoImage):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	limit = min(limit, maxListLimit)

	var runs []*models.Run
	if imageID := r.URL.Query().Get("image_id"); imageID != "" {
		runs, err = s.storage.ListRunsByImage(r.Context(), imageID)
	} else {
		runs, err = s.storage.ListRuns(r.Context(), offset, limit)
	}
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":   runs,
		"offset": offset,
		"limit":  limit,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.storage.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "run not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete run request", zap.String("id", id))
	if err := s.storage.DeleteRun(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runCount, err := s.storage.CountRuns(r.Context())
	if err != nil {
		s.logger.Error("status: count runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"runs": runCount,
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"figures_dir":    s.config.Input.FiguresDir,
			"compressed_dir": s.config.Output.CompressedDir,
			"metrics_path":   s.config.Output.MetricsPath,
			"report_format":  s.config.Output.ReportFormat,
			"ranks":          s.config.Compression.Ranks,
			"workers":        s.config.Compression.Workers,
			"database_path":  s.config.Storage.DatabasePath,
		}
		paths := append([]string{
			s.config.Output.OriginalDir,
			s.config.Output.CompressedDir,
			s.config.Output.MetricsPath,
		}, storage.DatabaseFiles(s.config.Storage.DatabasePath)...)
		diskBytes, err := storage.DiskUsageBytes(paths...)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

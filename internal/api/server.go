package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vidflow/internal/config"
	"vidflow/internal/gateway"
	"vidflow/internal/models"
	"vidflow/internal/search"
	"vidflow/internal/storage"
	"vidflow/internal/util"
	"vidflow/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

// SearchEngine is the read side the server exposes under /search/.
type SearchEngine interface {
	Keyword(ctx context.Context, q search.KeywordQuery) ([]models.SearchHit, error)
	Semantic(ctx context.Context, q search.SemanticQuery) ([]models.SearchHit, error)
	Hybrid(ctx context.Context, q search.HybridQuery) ([]models.SearchHit, error)
	Title(ctx context.Context, q search.TitleQuery) ([]models.SearchHit, error)
	Similar(ctx context.Context, q search.SimilarQuery) ([]models.SearchHit, error)
}

type Server struct {
	cfg      config.Config
	db       *storage.DB
	jobRepo  *storage.JobRepo
	engine   SearchEngine
	temporal tclient.Client
	log      *slog.Logger
}

func NewServer(cfg config.Config, log *slog.Logger) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	var gw gateway.Gateway
	if cfg.GatewayMode == "remote" {
		gw = gateway.NewRemoteGateway(cfg.GatewayEndpoint, cfg.GatewayEmbedEndpoint, cfg.GatewayAPIKey)
	} else {
		gw = gateway.NewMockGateway(cfg.Tunables.EmbedDim)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	return &Server{
		cfg:      cfg,
		db:       db,
		jobRepo:  storage.NewJobRepo(db),
		engine:   search.NewEngine(db, gw, cfg.Tunables, log),
		temporal: tc,
		log:      log,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/videos/events", s.handleVideoEvent)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleJobScoped)
	mux.HandleFunc("/search/", s.handleSearch)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "database unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleVideoEvent accepts an upload announcement and starts an ingestion
// workflow for it. The job row itself is created by the workflow so a job
// only exists once Temporal accepted the run.
func (s *Server) handleVideoEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		VideoID    string            `json:"video_id"`
		Title      string            `json:"title"`
		StorageRef models.StorageRef `json:"storage_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.VideoID = strings.TrimSpace(req.VideoID)
	if req.VideoID == "" || req.StorageRef.Bucket == "" || req.StorageRef.Key == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("video_id and storage_ref are required"))
		return
	}

	jobID := uuid.NewString()
	we, err := s.startIngest(r.Context(), jobID, req.VideoID, req.Title, req.StorageRef)
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      jobID,
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
	})
}

func (s *Server) startIngest(ctx context.Context, jobID, videoID, title string, ref models.StorageRef) (tclient.WorkflowRun, error) {
	tun := s.cfg.Tunables
	return s.temporal.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       "ingest-" + jobID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.IngestWorkflow, workflows.IngestInput{
		JobID:      jobID,
		VideoID:    videoID,
		Title:      title,
		StorageRef: ref,
		Retry: workflows.RetrySettings{
			MaxAttempts:  tun.Retry.MaxAttempts,
			InitialDelay: tun.InitialDelay(),
			MaxDelay:     tun.MaxDelay(),
		},
		Timeouts: workflows.StageTimeouts{
			Extract: tun.ExtractTimeout(),
			Index:   tun.IndexTimeout(),
		},
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	videoID := strings.TrimSpace(r.URL.Query().Get("video_id"))
	if videoID == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("video_id query parameter is required"))
		return
	}
	jobs, err := s.jobRepo.ListJobsByVideo(r.Context(), videoID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleJobScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	jobID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleJobStatus(w, r, jobID)
		return
	}
	if len(parts) == 2 && parts[1] == "retry" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleJobRetry(w, r, jobID)
		return
	}
	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	// Prefer the live workflow view; fall back to the job row once the
	// workflow has closed or been evicted.
	if s.temporal != nil {
		resp, err := s.temporal.QueryWorkflow(r.Context(), "ingest-"+jobID, "", workflows.QueryGetJobStatus)
		if err == nil {
			var status workflows.JobStatus
			if err := resp.Get(&status); err == nil {
				writeJSON(w, http.StatusOK, status)
				return
			}
		}
	}
	job, err := s.jobRepo.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleJobRetry starts a fresh job for the same video. Jobs are never
// resurrected in place, so only failed jobs qualify.
func (s *Server) handleJobRetry(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := s.jobRepo.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if job.Stage != models.StageFailed {
		writeErr(w, http.StatusConflict, fmt.Errorf("job %s is %s, only failed jobs can be retried", jobID, job.Stage))
		return
	}

	newJobID := uuid.NewString()
	we, err := s.startIngest(r.Context(), newJobID, job.VideoID, job.Title, job.StorageRef)
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      newJobID,
		"retry_of":    jobID,
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
	})
}

// searchResponse is the uniform envelope for every search mode.
type searchResponse struct {
	Success bool               `json:"success"`
	Total   int                `json:"total"`
	Results []models.SearchHit `json:"results"`
	Error   string             `json:"error,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	mode := strings.Trim(strings.TrimPrefix(r.URL.Path, "/search/"), "/")

	var (
		hits []models.SearchHit
		err  error
	)
	switch mode {
	case "keyword":
		var q search.KeywordQuery
		if err = decode(r, &q); err == nil {
			hits, err = s.engine.Keyword(r.Context(), q)
		}
	case "semantic":
		var q search.SemanticQuery
		if err = decode(r, &q); err == nil {
			hits, err = s.engine.Semantic(r.Context(), q)
		}
	case "hybrid":
		var q search.HybridQuery
		if err = decode(r, &q); err == nil {
			hits, err = s.engine.Hybrid(r.Context(), q)
		}
	case "title":
		var q search.TitleQuery
		if err = decode(r, &q); err == nil {
			hits, err = s.engine.Title(r.Context(), q)
		}
	case "similar":
		var q search.SimilarQuery
		if err = decode(r, &q); err == nil {
			hits, err = s.engine.Similar(r.Context(), q)
		}
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("unknown search mode %q", mode))
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, util.ErrValidation):
			// Rejected before any store access.
			writeJSON(w, http.StatusBadRequest, searchResponse{Results: []models.SearchHit{}, Error: err.Error()})
		case errors.Is(err, util.ErrNotFound):
			writeJSON(w, http.StatusNotFound, searchResponse{Results: []models.SearchHit{}, Error: err.Error()})
		default:
			// Runtime failures travel in the envelope so callers can tell
			// "query failed" from "no matches".
			s.log.Error("search failed", "mode", mode, "error", err)
			writeJSON(w, http.StatusOK, searchResponse{Results: []models.SearchHit{}, Error: err.Error()})
		}
		return
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Success: true, Total: len(hits), Results: hits})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid json: %v: %w", err, util.ErrValidation)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, code, map[string]any{
		"error": map[string]any{"message": msg},
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

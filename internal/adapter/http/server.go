package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cwygoda/sts/internal/domain"
	"github.com/cwygoda/sts/internal/logger"
)

// DefaultLimit is the number of runs listed when no limit is given.
const DefaultLimit = 20

// Server is the read-only HTTP view of the run history.
type Server struct {
	svc    *domain.HistoryService
	mux    *http.ServeMux
	server *http.Server
}

// NewServer builds the read-only history API bound to addr.
func NewServer(svc *domain.HistoryService, addr string) *Server {
	s := &Server{
		svc: svc,
		mux: http.NewServeMux(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /runs", s.handleListRuns)
	s.mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// runResponse is the JSON form of a run.
type runResponse struct {
	ID         string            `json:"id"`
	Direction  string            `json:"direction"`
	SourceDir  string            `json:"source_dir"`
	TargetDir  string            `json:"target_dir"`
	Total      int               `json:"total"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Incomplete bool              `json:"incomplete"`
	StartedAt  string            `json:"started_at"`
	FinishedAt string            `json:"finished_at,omitempty"`
	ElapsedMS  int64             `json:"elapsed_ms"`
	Failures   []failureResponse `json:"failures,omitempty"`
}

type failureResponse struct {
	Path   string   `json:"path"`
	Flags  string   `json:"flags"`
	Stages []string `json:"stages"`
}

type apiError struct {
	Message string `json:"error"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.svc.Recent(r.Context(), limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidLimit) {
			fail(w, http.StatusBadRequest, "invalid limit")
			return
		}
		logger.Error.Printf("list runs error: %v", err)
		fail(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, runToResponse(run))
	}
	respond(w, http.StatusOK, resp)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			fail(w, http.StatusNotFound, "run not found")
			return
		}
		logger.Error.Printf("get run error: %v", err)
		fail(w, http.StatusInternalServerError, "internal error")
		return
	}

	respond(w, http.StatusOK, runToResponse(*run))
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func fail(w http.ResponseWriter, status int, msg string) {
	respond(w, status, apiError{Message: msg})
}

func runToResponse(run domain.RunSummary) runResponse {
	resp := runResponse{
		ID:         run.ID,
		Direction:  string(run.Direction),
		SourceDir:  run.SourceDir,
		TargetDir:  run.TargetDir,
		Total:      run.Total,
		Succeeded:  run.Succeeded,
		Failed:     run.Failed,
		Incomplete: run.Incomplete,
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
		ElapsedMS:  run.Elapsed().Milliseconds(),
	}
	if !run.FinishedAt.IsZero() {
		resp.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	for _, f := range run.Failures {
		resp.Failures = append(resp.Failures, failureResponse{
			Path:   f.Path,
			Flags:  f.Flags.String(),
			Stages: f.Flags.Names(),
		})
	}
	return resp
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP dispatches to the route table without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

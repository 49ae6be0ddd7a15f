// Package api serves the task endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mohans/kaiamate/orchestrator"
	"github.com/mohans/kaiamate/task"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 10 << 20

// TaskService is the task lifecycle as the HTTP layer sees it.
type TaskService interface {
	Create(ctx context.Context, req orchestrator.CreateRequest) (*orchestrator.Receipt, error)
	Status(ctx context.Context, id string) (*orchestrator.StatusView, error)
	UserTasks(ctx context.Context, wallet string, limit int) ([]*task.Task, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

// Options configures a Server.
type Options struct {
	CORSOrigin  string
	Environment string
	RateLimit   RateLimit
	// Metrics, when set, is served at GET /metrics.
	Metrics http.Handler
	Logger  *slog.Logger
	Now     func() time.Time
}

// Server is the HTTP API server.
type Server struct {
	tasks   TaskService
	opts    Options
	logger  *slog.Logger
	mux     *http.ServeMux
	limiter *clientLimiter
	handler http.Handler
}

// New creates a new Server.
func New(tasks TaskService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		tasks:  tasks,
		opts:   opts,
		logger: opts.Logger.With("component", "api"),
		mux:    http.NewServeMux(),
	}
	s.limiter = newClientLimiter(opts.RateLimit)
	s.routes()
	s.handler = s.recoverer(s.logRequests(s.cors(s.rateLimit(s.mux))))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks
	s.mux.HandleFunc("POST /api/tasks/execute", s.handleExecute)
	s.mux.HandleFunc("GET /api/tasks/status/{taskId}", s.handleStatus)
	s.mux.HandleFunc("GET /api/tasks/user/{walletAddress}", s.handleUserTasks)
	s.mux.HandleFunc("POST /api/tasks/cancel/{taskId}", s.handleCancel)
	s.mux.HandleFunc("GET /api/tasks/templates", s.handleTemplates)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.opts.Metrics != nil {
		s.mux.Handle("GET /metrics", s.opts.Metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "OK",
		"timestamp":   s.opts.Now().UTC().Format(time.RFC3339Nano),
		"environment": s.opts.Environment,
	})
}

// envelope is the response body of every task endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json", "error", err)
	}
}

func writeData(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

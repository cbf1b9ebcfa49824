// Package httpapi exposes the swap, transfer and goal operations over
// HTTP with a JSON error envelope keyed by apperr kinds.
package httpapi

import (
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"solana-dca-engine/internal/goals"
	"solana-dca-engine/internal/observability"
	"solana-dca-engine/internal/orchestrator"
)

// Server holds the handlers for the v1 API surface.
type Server struct {
	orch      *orchestrator.Orchestrator
	goals     *goals.Service
	authToken string
	logger    *log.Logger
}

// Options configures a Server.
type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Goals        *goals.Service

	// AuthToken guards mutating endpoints when non-empty. An empty
	// token disables the check, for local development only.
	AuthToken string

	Logger *log.Logger
}

// NewServer validates options and builds a Server.
func NewServer(opts Options) (*Server, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if opts.Goals == nil {
		return nil, fmt.Errorf("goals service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[httpapi] ", log.LstdFlags)
	}
	return &Server{
		orch:      opts.Orchestrator,
		goals:     opts.Goals,
		authToken: opts.AuthToken,
		logger:    logger,
	}, nil
}

// Handler builds the route table. Mutating endpoints sit behind the
// bearer-token check; reads are open but owner-scoped.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /v1/swap", s.instrument("/v1/swap", s.requireAuth(s.handleSwap)))
	mux.Handle("POST /v1/transfer", s.instrument("/v1/transfer", s.requireAuth(s.handleTransfer)))

	mux.Handle("POST /v1/goals", s.instrument("/v1/goals", s.requireAuth(s.handleCreateGoal)))
	mux.Handle("GET /v1/goals", s.instrument("/v1/goals", http.HandlerFunc(s.handleListGoals)))
	mux.Handle("GET /v1/goals/{id}", s.instrument("/v1/goals/{id}", http.HandlerFunc(s.handleGetGoal)))
	mux.Handle("PATCH /v1/goals/{id}/status", s.instrument("/v1/goals/{id}/status", s.requireAuth(s.handleGoalStatus)))
	mux.Handle("DELETE /v1/goals/{id}", s.instrument("/v1/goals/{id}", s.requireAuth(s.handleDeleteGoal)))

	return mux
}

// requireAuth enforces the static bearer token in constant time.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			writeError(w, errUnauthorized)
			return
		}
		next(w, r)
	})
}

// instrument records the request duration histogram per route.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		observability.RecordRequest(route, strconv.Itoa(sw.status), time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Copyright 2025 Chimera Labs
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the REST and WebSocket surface of the
// platform: mission and lead management, the content calendar,
// fulfillment projects, the activity log, manual job submission, and
// live log streaming.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"chimera/platform/agents"
	"chimera/platform/llm"
	"chimera/platform/queue"
	"chimera/platform/shared/logger"
	"chimera/platform/store"
)

// Storage is the persistence surface the handlers depend on.
// *store.Store satisfies it.
type Storage interface {
	Ping(ctx context.Context) error
	SystemStats(ctx context.Context) (*store.SystemStats, error)
	CreateMission(ctx context.Context, m *store.Mission) error
	GetMission(ctx context.Context, id string) (*store.Mission, error)
	ListMissions(ctx context.Context) ([]*store.Mission, error)
	UpdateMissionStatus(ctx context.Context, id, status, errorMessage string) error
	ListLeads(ctx context.Context, missionID string) ([]*store.Lead, error)
	GetLead(ctx context.Context, id string) (*store.Lead, error)
	UpdateLeadStatus(ctx context.Context, id, status string, score int, notes string) error
	ListConversationsByLead(ctx context.Context, leadID string) ([]*store.Conversation, error)
	ListUnreadConversations(ctx context.Context) ([]*store.Conversation, error)
	ListContent(ctx context.Context, missionID, status string) ([]*store.Content, error)
	UpdateContentStatus(ctx context.Context, id, status string, publishedDate *time.Time) error
	ListFulfillmentProjects(ctx context.Context, leadID, status string) ([]*store.FulfillmentProject, error)
	GetFulfillmentProject(ctx context.Context, id string) (*store.FulfillmentProject, error)
	ListActivities(ctx context.Context, agentName string, limit int) ([]*store.AgentActivity, error)
}

// JobQueue is the dispatcher surface the handlers depend on.
// *queue.Dispatcher satisfies it.
type JobQueue interface {
	Submit(ctx context.Context, job *agents.Job) error
	Stats(ctx context.Context) (*queue.Stats, error)
}

// LLMStatus reports provider routing health for the status endpoint.
// *llm.Router satisfies it. May be nil when no providers are
// configured.
type LLMStatus interface {
	IsHealthy() bool
	Status() map[string]llm.ProviderStatus
}

// Server wires the HTTP surface over storage, the job queue, and the
// agent registry.
type Server struct {
	cfg      *Config
	store    Storage
	jobs     JobQueue
	registry *agents.Registry
	llm      LLMStatus
	hub      *LogHub
	log      *logger.Logger
	started  time.Time
}

// NewServer creates the server and its WebSocket log hub.
func NewServer(cfg *Config, storage Storage, jobs JobQueue, registry *agents.Registry, llmStatus LLMStatus) *Server {
	return &Server{
		cfg:      cfg,
		store:    storage,
		jobs:     jobs,
		registry: registry,
		llm:      llmStatus,
		hub:      NewLogHub(),
		log:      logger.New("server"),
		started:  time.Now(),
	}
}

// Handler builds the full route table wrapped in CORS, request-ID, and
// metrics middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/ws/logs", s.hub.HandleLogs)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	api.HandleFunc("/missions", s.handleCreateMission).Methods("POST")
	api.HandleFunc("/missions", s.handleListMissions).Methods("GET")
	api.HandleFunc("/missions/{id}", s.handleGetMission).Methods("GET")
	api.HandleFunc("/missions/{id}/start", s.handleStartMission).Methods("POST")
	api.HandleFunc("/missions/{id}/pause", s.handlePauseMission).Methods("POST")
	api.HandleFunc("/missions/{id}/resume", s.handleResumeMission).Methods("POST")

	api.HandleFunc("/leads", s.handleListLeads).Methods("GET")
	api.HandleFunc("/leads/{id}", s.handleGetLead).Methods("GET")
	api.HandleFunc("/leads/{id}/status", s.handleUpdateLeadStatus).Methods("PUT")
	api.HandleFunc("/leads/{id}/conversations", s.handleLeadConversations).Methods("GET")
	api.HandleFunc("/conversations/unread", s.handleUnreadConversations).Methods("GET")

	api.HandleFunc("/content", s.handleListContent).Methods("GET")
	api.HandleFunc("/content/{id}/status", s.handleUpdateContentStatus).Methods("PUT")

	api.HandleFunc("/projects", s.handleListProjects).Methods("GET")
	api.HandleFunc("/projects/{id}", s.handleGetProject).Methods("GET")

	api.HandleFunc("/agents", s.handleListAgents).Methods("GET")
	api.HandleFunc("/activities", s.handleListActivities).Methods("GET")
	api.HandleFunc("/jobs", s.handleSubmitJob).Methods("POST")

	r.Use(requestIDMiddleware)
	r.Use(s.observeMiddleware)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully so in-flight requests complete.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on port %s", s.cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// requestIDMiddleware assigns every request an ID, echoed in the
// X-Request-ID response header.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), requestID)))
	})
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID assigned by the middleware, or ""
// outside a request.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// statusRecorder captures the response code for the metrics middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps WebSocket upgrades working through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}

// observeMiddleware records request metrics and emits a structured log
// entry per request, which the log hub also streams to /ws/logs.
func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)

		observeRequest(route, recorder.status, duration)
		if route != "/metrics" && route != "/ws/logs" {
			s.log.InfoWithDuration("", RequestID(r.Context()),
				fmt.Sprintf("%s %s -> %d", r.Method, route, recorder.status),
				float64(duration.Milliseconds()), nil)
		}
	})
}

func sendJSONResponse(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Server] Failed to encode response: %v", err)
	}
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	sendJSONResponse(w, statusCode, map[string]string{"error": message})
}

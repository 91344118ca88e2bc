package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hadikhanhk786/live-class/internal/classroom"
	"github.com/hadikhanhk786/live-class/pkg/interfaces"
	"github.com/hadikhanhk786/live-class/pkg/types"
)

// Server is the REST surface: classroom directory management, durable
// history queries and live presence snapshots. No business logic lives
// here — only HTTP handling and JSON serialization.
type Server struct {
	coordinator *classroom.Coordinator
	directory   interfaces.ClassDirectory
	history     interfaces.HistoryStore
	health      interfaces.HealthChecker
	router      *http.ServeMux
}

// NewServer creates the API server with its dependencies injected.
func NewServer(coordinator *classroom.Coordinator, directory interfaces.ClassDirectory, history interfaces.HistoryStore, health interfaces.HealthChecker) *Server {
	s := &Server{
		coordinator: coordinator,
		directory:   directory,
		history:     history,
		health:      health,
		router:      http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/classes", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleClasses))))
	s.router.Handle("/api/classes/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleClassByName))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleClasses serves POST /api/classes and GET /api/classes.
func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createClass(w, r)
	case http.MethodGet:
		s.listClasses(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleClassByName serves GET /api/classes/{name} and
// GET /api/classes/{name}/history.
func (s *Server) handleClassByName(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/classes/")
	parts := strings.Split(path, "/")
	name := parts[0]
	if name == "" {
		s.sendError(w, "Classroom name required", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1:
		s.getClass(w, r, name)
	case len(parts) == 2 && parts[1] == "history":
		s.getHistory(w, r, name)
	default:
		s.sendError(w, "Not found", http.StatusNotFound)
	}
}

type CreateClassRequest struct {
	Name string `json:"name"`
}

type ClassSummary struct {
	Name      string `json:"name"`
	Lifecycle string `json:"lifecycle"`
	Teachers  int    `json:"teachers"`
	Students  int    `json:"students"`
}

type ListClassesResponse struct {
	Classes []ClassSummary `json:"classes"`
}

type HistoryResponse struct {
	Classroom string         `json:"classroom"`
	Events    []*types.Event `json:"events"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Storage     string         `json:"storage"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// createClass registers a classroom name so participants can join it.
func (s *Server) createClass(w http.ResponseWriter, r *http.Request) {
	var req CreateClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if !types.IsValidClassName(req.Name) {
		s.sendError(w, types.ErrInvalidClassName.Error(), http.StatusBadRequest)
		return
	}

	if err := s.directory.CreateClass(r.Context(), req.Name); err != nil {
		if errors.Is(err, interfaces.ErrClassExists) {
			s.sendError(w, "Classroom already exists", http.StatusConflict)
		} else {
			s.sendError(w, "Failed to create classroom", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"name": req.Name})
}

// listClasses returns every registered classroom with its live state.
// Classrooms nobody has joined yet report lifecycle "created" with empty
// membership.
func (s *Server) listClasses(w http.ResponseWriter, r *http.Request) {
	names, err := s.directory.ListClasses(r.Context())
	if err != nil {
		s.sendError(w, "Failed to list classrooms", http.StatusInternalServerError)
		return
	}

	summaries := make([]ClassSummary, 0, len(names))
	for _, name := range names {
		summary := ClassSummary{Name: name, Lifecycle: types.LifecycleCreated}
		if snap, ok := s.coordinator.Snapshot(name); ok {
			summary.Lifecycle = snap.Lifecycle
			summary.Teachers = len(snap.Presence.Teachers)
			summary.Students = len(snap.Presence.Students)
		}
		summaries = append(summaries, summary)
	}

	_ = json.NewEncoder(w).Encode(ListClassesResponse{Classes: summaries})
}

// getClass returns the live snapshot for one classroom.
func (s *Server) getClass(w http.ResponseWriter, r *http.Request, name string) {
	exists, err := s.directory.Exists(r.Context(), name)
	if err != nil {
		s.sendError(w, "Failed to check classroom", http.StatusInternalServerError)
		return
	}
	if !exists {
		s.sendError(w, "Classroom not found", http.StatusNotFound)
		return
	}

	snap, ok := s.coordinator.Snapshot(name)
	if !ok {
		snap = &classroom.ClassSnapshot{
			Classroom: name,
			Lifecycle: types.LifecycleCreated,
			Presence:  &types.Presence{Teachers: []string{}, Students: []string{}},
		}
	}

	_ = json.NewEncoder(w).Encode(snap)
}

// getHistory returns the durable event history for one classroom.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request, name string) {
	exists, err := s.directory.Exists(r.Context(), name)
	if err != nil {
		s.sendError(w, "Failed to check classroom", http.StatusInternalServerError)
		return
	}
	if !exists {
		s.sendError(w, "Classroom not found", http.StatusNotFound)
		return
	}

	events, err := s.history.LoadHistory(r.Context(), name)
	if err != nil {
		s.sendError(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*types.Event{}
	}

	_ = json.NewEncoder(w).Encode(HistoryResponse{Classroom: name, Events: events})
}

// healthCheck reports storage connectivity and live counters.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	storageStatus := "healthy"
	if err := s.health.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		storageStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Storage:     storageStatus,
		Connections: s.coordinator.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

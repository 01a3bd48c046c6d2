package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtlprog/tasksync/internal/broadcast"
	"github.com/mtlprog/tasksync/internal/handler/dto"
	"github.com/mtlprog/tasksync/internal/middleware"
	"github.com/mtlprog/tasksync/internal/repository"
	"github.com/mtlprog/tasksync/internal/service"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool           *pgxpool.Pool
	hub            *broadcast.Hub
	taskService    *service.TaskService
	historyService *service.HistoryService
	upgrader       websocket.Upgrader
}

// New creates a new Handler instance with all dependencies. Events are
// published to hub; opts are passed to both services.
func New(pool *pgxpool.Pool, hub *broadcast.Hub, opts ...service.Option) *Handler {
	// Create repositories
	taskRepo := repository.NewTaskRepository(pool)
	actionRepo := repository.NewActionRecordRepository(pool)

	// Create services
	opts = append([]service.Option{service.WithPublisher(hub)}, opts...)
	taskService := service.NewTaskService(pool, taskRepo, actionRepo, opts...)
	historyService := service.NewHistoryService(pool, taskRepo, actionRepo, opts...)

	return &Handler{
		pool:           pool,
		hub:            hub,
		taskService:    taskService,
		historyService: historyService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Realtime channel
	mux.HandleFunc("GET /ws", h.handleWebSocket)

	// Tasks
	mux.HandleFunc("GET /api/v1/tasks", h.handleListTasks)
	mux.HandleFunc("POST /api/v1/tasks", h.handleCreateTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}", h.handleGetTask)
	mux.HandleFunc("PUT /api/v1/tasks/{id}", h.handleUpdateTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", h.handleDeleteTask)

	// History
	mux.HandleFunc("POST /api/v1/history/undo", h.handleUndo)
	mux.HandleFunc("POST /api/v1/history/redo", h.handleRedo)
	mux.HandleFunc("GET /api/v1/history", h.handleHistory)
	mux.HandleFunc("GET /api/v1/history/stats", h.handleHistoryStats)
}

// Router returns the full HTTP handler: routes plus middleware.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return middleware.Actor(middleware.Metrics(mux))
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pool.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleWebSocket upgrades the connection and attaches it to the hub.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("failed to upgrade to websocket",
			"error", err,
			"remote_addr", r.RemoteAddr,
		)
		return
	}
	h.hub.Attach(conn)
}

// Ping checks if the database is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps a service error to a response.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// decodeBody decodes an optional JSON body. An empty body leaves dst untouched.
// Returns false if the body is malformed (error already sent to client).
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

// resolveActor returns the X-Actor identity, falling back to the username
// sent in the body. Both are trimmed the same way.
func resolveActor(r *http.Request, bodyUsername string) string {
	if actor := middleware.ActorFromContext(r.Context()); actor != "" {
		return actor
	}
	return strings.TrimSpace(bodyUsername)
}

// extractTaskID extracts and validates task ID from path parameter.
// Returns (taskID, true) if valid, ("", false) if invalid (error already sent to client).
func extractTaskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return "", false
	}

	if _, err := uuid.Parse(taskID); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task_id must be a valid UUID")
		return "", false
	}

	return taskID, true
}

package handler

import (
	"net/http"

	"github.com/mtlprog/tasksync/internal/handler/dto"
	"github.com/mtlprog/tasksync/internal/service"
)

// handleListTasks returns every task.
// @Summary List tasks
// @Description Returns all tasks, newest first
// @Tags tasks
// @Produce json
// @Success 200 {object} dto.TasksListResponse
// @Router /tasks [get]
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskService.ListTasks(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewTasksListResponse(tasks))
}

// handleCreateTask creates a new task.
// @Summary Create a new task
// @Description Creates a task owned by the acting user and records a CREATE action.
// @Tags tasks
// @Accept json
// @Produce json
// @Param X-Actor header string false "Acting username"
// @Param request body dto.CreateTaskRequest true "Task creation request"
// @Success 201 {object} domain.Task
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks [post]
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), service.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		PerformedBy: resolveActor(r, req.Username),
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// handleGetTask returns a single task.
// @Summary Get task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id} [get]
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(r.Context(), taskID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// handleUpdateTask overwrites the provided fields of a task.
// @Summary Update task
// @Description Updates title, description or completion and records an UPDATE action.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param X-Actor header string false "Acting username"
// @Param request body dto.UpdateTaskRequest true "Fields to change"
// @Success 200 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks/{id} [put]
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := h.taskService.UpdateTask(r.Context(), taskID, service.UpdateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		PerformedBy: resolveActor(r, req.Username),
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// handleDeleteTask removes a task.
// @Summary Delete task
// @Description Deletes a task and records a DELETE action holding its last state.
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Param X-Actor header string false "Acting username"
// @Success 200 {object} domain.Deletion
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id} [delete]
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.ActorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	deletion, err := h.taskService.DeleteTask(r.Context(), taskID, resolveActor(r, req.Username))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, deletion)
}

package handlers

import (
	"net/http"
	"time"

	"devboard/internal/handlers/dto"
	"devboard/internal/logger"
	"devboard/internal/models/task"
	"devboard/internal/service"

	"go.uber.org/zap"
)

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	tasks, err := h.tasks.FindAll(r.Context(), actor)
	h.respond(w, r, http.StatusOK, list(tasks), err, "list_tasks")
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err, "get_task")
		return
	}
	t, err := h.tasks.FindOne(r.Context(), actor, id)
	h.respond(w, r, http.StatusOK, t, err, "get_task")
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var request dto.CreateTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	t, err := h.tasks.Create(r.Context(), actor, request.ToInput())
	if t != nil {
		logger.Info("HTTP_OUT: task created",
			zap.String("task_id", t.UUID.String()),
			zap.Duration("ms", time.Since(start)))
	}
	h.respond(w, r, http.StatusCreated, t, err, "create_task")
}

// UpdateTask applies a partial update. Only keys present in the body are touched,
// and an explicit null clears an optional field.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err, "update_task")
		return
	}
	var p task.Patch
	if !decodeJSON(w, r, &p) {
		return
	}

	t, err := h.tasks.Update(r.Context(), actor, id, p)
	h.respond(w, r, http.StatusOK, t, err, "update_task")
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err, "delete_task")
		return
	}

	err = h.tasks.Remove(r.Context(), actor, id)
	h.respond(w, r, http.StatusOK, map[string]string{"message": "task deleted"}, err, "delete_task")
}

func (h *Handler) TaskStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	stats, err := h.tasks.GetTasksByStatus(r.Context(), actor)
	h.respond(w, r, http.StatusOK, stats, err, "task_stats")
}

func (h *Handler) UpcomingTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	days, err := queryInt(r, "days", service.DefaultUpcomingDays)
	if err != nil {
		h.handleError(w, r, err, "upcoming_tasks")
		return
	}
	tasks, err := h.tasks.GetUpcomingTasks(r.Context(), actor, days)
	h.respond(w, r, http.StatusOK, list(tasks), err, "upcoming_tasks")
}

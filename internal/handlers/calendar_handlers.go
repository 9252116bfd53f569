package handlers

import (
	"net/http"

	"devboard/internal/handlers/dto"
	"devboard/internal/models/calendar"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "startDate")
	if err != nil {
		h.handleError(w, r, err, "list_events")
		return
	}
	to, err := queryTime(r, "endDate")
	if err != nil {
		h.handleError(w, r, err, "list_events")
		return
	}
	events, err := h.calendar.FindAll(r.Context(), from, to)
	h.respond(w, r, http.StatusOK, list(events), err, "list_events")
}

func (h *Handler) ListEventsByType(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "startDate")
	if err != nil {
		h.handleError(w, r, err, "list_events_by_type")
		return
	}
	to, err := queryTime(r, "endDate")
	if err != nil {
		h.handleError(w, r, err, "list_events_by_type")
		return
	}
	eventType := calendar.EventType(chi.URLParam(r, "eventType"))
	events, err := h.calendar.FindByType(r.Context(), eventType, from, to)
	h.respond(w, r, http.StatusOK, list(events), err, "list_events_by_type")
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err, "get_event")
		return
	}
	e, err := h.calendar.FindOne(r.Context(), id)
	h.respond(w, r, http.StatusOK, e, err, "get_event")
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var request dto.CreateEventRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	e, err := h.calendar.Create(r.Context(), actor, request.ToInput())
	h.respond(w, r, http.StatusCreated, e, err, "create_event")
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err, "update_event")
		return
	}
	var p calendar.Patch
	if !decodeJSON(w, r, &p) {
		return
	}
	e, err := h.calendar.Update(r.Context(), actor, id, p)
	h.respond(w, r, http.StatusOK, e, err, "update_event")
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err, "delete_event")
		return
	}
	err = h.calendar.Remove(r.Context(), actor, id)
	h.respond(w, r, http.StatusOK, map[string]string{"message": "calendar event deleted"}, err, "delete_event")
}

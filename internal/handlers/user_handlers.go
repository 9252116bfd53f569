package handlers

import (
	"net/http"

	"devboard/internal/handlers/dto"
	"devboard/internal/models/user"
	"devboard/internal/service"
)

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.FindAll(r.Context())
	h.respond(w, r, http.StatusOK, list(users), err, "list_users")
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err, "get_user")
		return
	}
	u, err := h.users.FindOne(r.Context(), id)
	h.respond(w, r, http.StatusOK, u, err, "get_user")
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	u, err := h.users.Me(r.Context(), actor)
	h.respond(w, r, http.StatusOK, u, err, "me")
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var request dto.CreateUserRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	u, err := h.users.Create(r.Context(), actor, request.ToInput())
	h.respond(w, r, http.StatusCreated, u, err, "create_user")
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err, "update_user")
		return
	}
	var p user.Patch
	if !decodeJSON(w, r, &p) {
		return
	}
	if p.Empty() {
		h.handleError(w, r, service.NewValidationError("body", "at least one field is required"), "update_user")
		return
	}
	u, err := h.users.Update(r.Context(), actor, id, p)
	h.respond(w, r, http.StatusOK, u, err, "update_user")
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err, "delete_user")
		return
	}
	err = h.users.Remove(r.Context(), actor, id)
	h.respond(w, r, http.StatusOK, map[string]string{"message": "user deleted"}, err, "delete_user")
}

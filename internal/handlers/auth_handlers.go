package handlers

import (
	"net/http"

	"devboard/internal/handlers/dto"
	"devboard/internal/middleware"
	"devboard/internal/service"
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var request dto.LoginRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if request.Email == "" || request.Password == "" {
		h.handleError(w, r, service.NewValidationError("email", "email and password are required"), "login")
		return
	}
	res, err := h.auth.Login(r.Context(), request.Email, request.Password)
	if err != nil && h.metrics != nil && isUnauthorized(err) {
		h.metrics.AuthFailures.WithLabelValues("bad_credentials").Inc()
	}
	h.respond(w, r, http.StatusOK, res, err, "login")
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var request dto.RefreshRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if request.RefreshToken == "" {
		h.handleError(w, r, service.NewValidationError("refreshToken", "is required"), "refresh")
		return
	}
	pair, err := h.auth.Refresh(r.Context(), request.RefreshToken)
	if err != nil && h.metrics != nil && isUnauthorized(err) {
		h.metrics.AuthFailures.WithLabelValues("bad_refresh_token").Inc()
	}
	h.respond(w, r, http.StatusOK, pair, err, "refresh")
}

// Logout always succeeds once the caller is authenticated.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), middleware.ClaimsFrom(r.Context()))
	responseWithMessage(w, http.StatusOK, "logged out")
}

package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"devboard/internal/models/audit"
	"devboard/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func page(r *http.Request) (int, int, error) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		return 0, 0, err
	}
	take, err := queryInt(r, "take", 0)
	if err != nil {
		return 0, 0, err
	}
	return skip, take, nil
}

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	skip, take, err := page(r)
	if err != nil {
		h.handleError(w, r, err, "list_audit")
		return
	}
	entries, err := h.audit.FindAll(r.Context(), actor, skip, take)
	h.respond(w, r, http.StatusOK, list(entries), err, "list_audit")
}

func (h *Handler) AuditByEntity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	entries, err := h.audit.FindByEntity(r.Context(), actor, chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, list(entries), err, "audit_by_entity")
}

func (h *Handler) AuditByUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	userID, err := parseID(r, "id")
	if err != nil {
		h.handleError(w, r, err, "audit_by_user")
		return
	}
	skip, take, err := page(r)
	if err != nil {
		h.handleError(w, r, err, "audit_by_user")
		return
	}
	entries, err := h.audit.FindByUser(r.Context(), actor, userID, skip, take)
	h.respond(w, r, http.StatusOK, list(entries), err, "audit_by_user")
}

func (h *Handler) AuditByAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	skip, take, err := page(r)
	if err != nil {
		h.handleError(w, r, err, "audit_by_action")
		return
	}
	entries, err := h.audit.FindByAction(r.Context(), actor, chi.URLParam(r, "action"), skip, take)
	h.respond(w, r, http.StatusOK, list(entries), err, "audit_by_action")
}

// ExportAudit streams the full audit log, optionally filtered by userId, action,
// entityType and entityId, as a file download.
func (h *Handler) ExportAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	format, err := service.ParseExportFormat(q.Get("format"))
	if err != nil {
		h.handleError(w, r, err, "export_audit")
		return
	}
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
	}
	if raw := q.Get("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.handleError(w, r, service.NewValidationError("userId", "must be a valid UUID"), "export_audit")
			return
		}
		filter.UserID = &id
	}

	var buf bytes.Buffer
	if err := h.audit.Export(r.Context(), actor, &buf, format, filter); err != nil {
		h.handleError(w, r, err, "export_audit")
		return
	}

	filename := fmt.Sprintf("audit-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

package handlers

import (
	"errors"
	"net/http"

	"devboard/internal/logger"
	"devboard/internal/middleware"
	"devboard/internal/service"

	"go.uber.org/zap"
)

const codeInternal = "INTERNAL_ERROR"

// AuditWarningHeader is set on successful responses whose audit entry could not be written.
const AuditWarningHeader = "X-Audit-Warning"

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeForbidden:
		return http.StatusForbidden
	case service.CodeUnauthorized:
		return http.StatusUnauthorized
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeVersionConflict, service.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func handleBusinessError(w http.ResponseWriter, r *http.Request, err error) bool {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		return false
	}
	statusCode := mapBusinessErrorToHTTP(businessErr.Code)

	logger.Warn("HTTP: business error",
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("error_code", businessErr.Code),
		zap.String("message", businessErr.Message),
		zap.Int("http_status", statusCode))

	responseWithError(w, statusCode, businessErr.Code, businessErr.Message, businessErr.Details)
	return true
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	if handleBusinessError(w, r, err) {
		return
	}
	logger.Error("HTTP: service error", err,
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("operation", operation))
	responseWithError(w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
}

// respond writes body with status, or the error response for err. An *AuditFailure
// still yields the success response, flagged with AuditWarningHeader.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, body any, err error, operation string) {
	if err != nil && !h.auditFailed(w, r, err) {
		h.handleError(w, r, err, operation)
		return
	}
	responseWithJSON(w, status, body)
}

func (h *Handler) auditFailed(w http.ResponseWriter, r *http.Request, err error) bool {
	var failure *service.AuditFailure
	if !errors.As(err, &failure) {
		return false
	}
	logger.Error("HTTP: audit entry not written", failure.Err,
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("action", failure.Action),
		zap.String("entity_id", failure.EntityID))
	if h.metrics != nil {
		h.metrics.AuditWriteFailures.WithLabelValues(failure.Action).Inc()
	}
	w.Header().Set(AuditWarningHeader, "audit entry for "+failure.Action+" was not recorded")
	return true
}

func isUnauthorized(err error) bool {
	var businessErr *service.BusinessError
	return errors.As(err, &businessErr) && businessErr.Code == service.CodeUnauthorized
}

package middleware

import (
	"context"
	"errors"
	"net/http"

	"devboard/internal/auth"
	"devboard/internal/logger"
	"devboard/internal/models/user"
	"devboard/internal/service"

	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*user.User, *auth.Claims, error)
}

// FailureCounter receives one call per rejected request, labelled by reason.
type FailureCounter func(reason string)

type authKey struct{}

type principal struct {
	user   *user.User
	claims *auth.Claims
}

// Authenticate requires a valid bearer access token and loads the caller into the context.
func Authenticate(a Authenticator, onFailure FailureCounter) func(http.Handler) http.Handler {
	if onFailure == nil {
		onFailure = func(string) {}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				onFailure("missing_token")
				writeError(w, http.StatusUnauthorized, service.CodeUnauthorized, "missing bearer token", nil)
				return
			}

			u, claims, err := a.Authenticate(r.Context(), token)
			if err != nil {
				var busErr *service.BusinessError
				if errors.As(err, &busErr) {
					onFailure("invalid_token")
					logger.Warn("HTTP: authentication rejected",
						zap.String("request_id", GetRequestID(r.Context())),
						zap.String("reason", busErr.Message))
					writeError(w, http.StatusUnauthorized, busErr.Code, busErr.Message, nil)
					return
				}
				logger.Error("HTTP: authentication failed", err,
					zap.String("request_id", GetRequestID(r.Context())))
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
				return
			}

			ctx := context.WithValue(r.Context(), authKey{}, principal{user: u, claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFrom returns the authenticated caller. ok is false outside Authenticate.
func ActorFrom(ctx context.Context) (user.Actor, bool) {
	p, ok := ctx.Value(authKey{}).(principal)
	if !ok {
		return user.Actor{}, false
	}
	return p.user.Actor(), true
}

func UserFrom(ctx context.Context) *user.User {
	if p, ok := ctx.Value(authKey{}).(principal); ok {
		return p.user
	}
	return nil
}

func ClaimsFrom(ctx context.Context) *auth.Claims {
	if p, ok := ctx.Value(authKey{}).(principal); ok {
		return p.claims
	}
	return nil
}

// WithPrincipal is used by tests and internal callers that authenticate out of band.
func WithPrincipal(ctx context.Context, u *user.User, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, authKey{}, principal{user: u, claims: claims})
}

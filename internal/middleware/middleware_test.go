package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"devboard/internal/auth"
	"devboard/internal/models/user"
	"devboard/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*user.User, *auth.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*user.User), args.Get(1).(*auth.Claims), args.Error(2)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	})
}

func TestLogging_PassesStatusThrough(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "short and stout", w.Body.String())
}

func TestClientInfo(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		wantIP string
	}{
		{name: "peer address", remote: "10.0.0.1:5555", wantIP: "10.0.0.1"},
		{name: "forwarded for", header: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.1:5555", wantIP: "203.0.113.7"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "198.51.100.2"}, remote: "10.0.0.1:5555", wantIP: "198.51.100.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got service.ClientInfo
			h := ClientInfo(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = service.ClientInfoFrom(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set("User-Agent", "devboard-test")
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.wantIP, got.IPAddress)
			assert.Equal(t, "devboard-test", got.UserAgent)
		})
	}
}

func TestLimiter_WindowResets(t *testing.T) {
	l := newLimiter(2)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	remaining, _, ok := l.allow("a", now)
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
	_, _, ok = l.allow("a", now)
	assert.True(t, ok)
	_, _, ok = l.allow("a", now)
	assert.False(t, ok)

	_, _, ok = l.allow("b", now)
	assert.True(t, ok, "limits are per key")

	_, _, ok = l.allow("a", now.Add(61*time.Second))
	assert.True(t, ok)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1000"

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"])
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestAuthenticate(t *testing.T) {
	u := &user.User{ID: uuid.New(), Role: user.RoleDeveloper, IsActive: true}
	claims := &auth.Claims{}

	tests := []struct {
		name           string
		authorization  string
		setupMock      func(*MockAuthenticator)
		expectedStatus int
		expectedReason string
	}{
		{
			name:          "success",
			authorization: "Bearer good",
			setupMock: func(m *MockAuthenticator) {
				m.On("Authenticate", mock.Anything, "good").Return(u, claims, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing header",
			setupMock:      func(m *MockAuthenticator) {},
			expectedStatus: http.StatusUnauthorized,
			expectedReason: "missing_token",
		},
		{
			name:          "rejected token",
			authorization: "Bearer bad",
			setupMock: func(m *MockAuthenticator) {
				m.On("Authenticate", mock.Anything, "bad").Return(nil, nil, service.NewUnauthorized("invalid or expired token"))
			},
			expectedStatus: http.StatusUnauthorized,
			expectedReason: "invalid_token",
		},
		{
			name:          "store failure",
			authorization: "Bearer any",
			setupMock: func(m *MockAuthenticator) {
				m.On("Authenticate", mock.Anything, "any").Return(nil, nil, errors.New("connection refused"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockAuthenticator)
			tt.setupMock(m)

			var reasons []string
			var actor user.Actor
			h := Authenticate(m, func(reason string) { reasons = append(reasons, reason) })(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					actor, _ = ActorFrom(r.Context())
					assert.Same(t, claims, ClaimsFrom(r.Context()))
				}))

			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, u.Actor(), actor)
			}
			if tt.expectedReason != "" {
				assert.Equal(t, []string{tt.expectedReason}, reasons)
			}
			m.AssertExpectations(t)
		})
	}
}

func TestActorFrom_Unauthenticated(t *testing.T) {
	_, ok := ActorFrom(context.Background())
	assert.False(t, ok)
	assert.Nil(t, UserFrom(context.Background()))
}

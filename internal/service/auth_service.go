package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"devboard/internal/auth"
	"devboard/internal/logger"
	"devboard/internal/models/audit"
	"devboard/internal/models/user"
	repo "devboard/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "invalid email or password"

type TokenIssuer interface {
	Issue(*user.User) (auth.TokenPair, error)
	Parse(token string, want auth.TokenType) (*auth.Claims, error)
}

type LoginResult struct {
	auth.TokenPair
	User *user.User `json:"user"`
}

type AuthService struct {
	users   UserRepository
	issuer  TokenIssuer
	revoker auth.Revoker
	audit   AuditLogger
}

func NewAuthService(users UserRepository, issuer TokenIssuer, revoker auth.Revoker, audit AuditLogger) *AuthService {
	return &AuthService{users: users, issuer: issuer, revoker: revoker, audit: audit}
}

// Login checks credentials and issues a token pair. Unknown email, wrong password and
// inactive account all produce the same UNAUTHORIZED error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: login for unknown email")
			return nil, NewUnauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil || !u.IsActive {
		logger.Info("Service: login rejected", zap.String("user_id", u.ID.String()))
		return nil, NewUnauthorized(invalidCredentials)
	}

	pair, err := s.issuer.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	res := &LoginResult{TokenPair: pair, User: u}
	details := audit.Map(map[string]audit.Value{"email": audit.String(u.Email)})
	return res, record(ctx, s.audit, u.ID, audit.ActionLogin, audit.EntityUser, u.ID.String(), details)
}

// Refresh rotates a refresh token: the presented one is claimed (revoked atomically)
// and a new pair is issued, so a refresh token yields at most one new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.issuer.Parse(refreshToken, auth.TypeRefresh)
	if err != nil {
		return auth.TokenPair{}, NewUnauthorized("invalid refresh token")
	}
	u, err := s.activeUser(ctx, claims)
	if err != nil {
		return auth.TokenPair{}, err
	}

	claimed, err := s.revoker.Claim(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("claim refresh token: %w", err)
	}
	if !claimed {
		return auth.TokenPair{}, NewUnauthorized("refresh token has been revoked")
	}
	pair, err := s.issuer.Issue(u)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	return pair, nil
}

// Logout revokes the access token. Failures are logged and never reported to the caller.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) {
	if claims == nil {
		return
	}
	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		logger.Error("Service: failed to revoke token on logout", err, zap.String("user_id", claims.Subject))
	}
}

// Authenticate validates an access token and reloads its user, so a role change or
// deactivation takes effect on the next request.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*user.User, *auth.Claims, error) {
	claims, err := s.issuer.Parse(accessToken, auth.TypeAccess)
	if err != nil {
		return nil, nil, NewUnauthorized("invalid or expired token")
	}
	if s.isRevoked(ctx, claims.ID) {
		return nil, nil, NewUnauthorized("token has been revoked")
	}
	u, err := s.activeUser(ctx, claims)
	if err != nil {
		return nil, nil, err
	}
	return u, claims, nil
}

func (s *AuthService) activeUser(ctx context.Context, claims *auth.Claims) (*user.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, NewUnauthorized("invalid token subject")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewUnauthorized("user no longer exists")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !u.IsActive {
		return nil, NewUnauthorized("user is inactive")
	}
	return u, nil
}

// isRevoked reports false when the revocation store cannot be reached.
func (s *AuthService) isRevoked(ctx context.Context, jti string) bool {
	revoked, err := s.revoker.IsRevoked(ctx, jti)
	if err != nil {
		logger.Error("Service: revocation lookup failed", err)
		return false
	}
	return revoked
}

package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"quiz-forms-service/internal/app"
	"quiz-forms-service/internal/domain"
)

// Authenticator verifies bearer tokens issued by the external identity
// provider and resolves them to local users.
type Authenticator struct {
	secret   []byte
	issuer   string
	identity *app.IdentityService
	logger   *slog.Logger
}

func NewAuthenticator(secret, issuer string, identity *app.IdentityService, logger *slog.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, identity: identity, logger: logger}
}

type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Principal verifies raw and returns its identity claims.
func (a *Authenticator) Principal(raw string) (domain.Principal, error) {
	if raw == "" || len(a.secret) == 0 {
		return domain.Principal{}, domain.ErrNotAuthenticated
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrNotAuthenticated, err)
	}
	return domain.Principal{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// Require rejects requests without a valid token and stores the resolved
// identity on the request context.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.Principal(tokenFromRequest(r))
		if err != nil {
			a.logger.Debug("token rejected", "path", r.URL.Path, "err", err)
			writeError(w, domain.ErrNotAuthenticated)
			return
		}
		user, err := a.identity.Resolve(r.Context(), principal)
		if err != nil {
			if !errors.Is(err, domain.ErrNotAuthenticated) {
				a.logger.Error("identity resolve failed", "op", "resolve_identity", "external_id", principal.ID, "err", err)
				err = domain.ErrPersistenceFailed
			}
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, identity{principal: principal, user: user})
		next(w, r.WithContext(ctx))
	}
}

type identityKey struct{}

type identity struct {
	principal domain.Principal
	user      domain.User
}

func identityFrom(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(identityKey{}).(identity)
	return id, ok
}

// tokenFromRequest reads the Authorization header, falling back to the
// access_token query parameter for websocket upgrades.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

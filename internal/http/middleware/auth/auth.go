// Package auth resolves the calling actor of a request.
package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// Header names used when no JWT secret is configured.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

type ctxKey struct{}

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFrom returns the actor stored by the middleware.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(domain.Actor)
	return a, ok
}

// Middleware authenticates requests. With a secret it expects an HS256 bearer
// token with sub and role claims; without one it trusts the X-Actor headers,
// which is meant for deployments behind an authenticating gateway.
type Middleware struct {
	secret []byte
	logger logx.Logger
}

// New creates a new Middleware.
func New(secret string, logger logx.Logger) *Middleware {
	if logger == nil {
		logger = logx.Nop()
	}
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &Middleware{secret: key, logger: logger}
}

// Handler returns chi-style middleware.
func (m *Middleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, err := m.Resolve(r)
			if err != nil {
				m.logger.Info("unauthenticated request",
					logx.String("path", r.URL.Path),
					logx.Err(err),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":"unauthorized"}`)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
		})
	}
}

// Resolve extracts the actor of r. Browsers cannot set headers on websocket
// upgrades, so the token may also come in the access_token query parameter.
func (m *Middleware) Resolve(r *http.Request) (domain.Actor, error) {
	if m.secret == nil {
		return actorFromHeaders(r)
	}

	raw := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if raw == "" {
		raw = r.URL.Query().Get("access_token")
	}
	if raw == "" {
		return domain.Actor{}, errors.New("missing bearer token")
	}
	return m.parse(raw)
}

func (m *Middleware) parse(raw string) (domain.Actor, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Actor{}, err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return domain.Actor{}, err
	}
	role, _ := claims["role"].(string)
	return toActor(sub, role)
}

func actorFromHeaders(r *http.Request) (domain.Actor, error) {
	return toActor(r.Header.Get(HeaderActorID), r.Header.Get(HeaderActorRole))
}

func toActor(rawID, rawRole string) (domain.Actor, error) {
	role := domain.ActorRole(strings.ToLower(strings.TrimSpace(rawRole)))
	if !role.Valid() {
		return domain.Actor{}, errors.New("unknown role")
	}
	rawID = strings.TrimSpace(rawID)
	if role == domain.RoleSystem && rawID == "" {
		return domain.Actor{Role: role}, nil
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return domain.Actor{}, errors.New("invalid subject")
	}
	return domain.Actor{Role: role, ID: id}, nil
}

package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/http/middleware/auth"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

// run returns the status and the actor seen by the next handler.
func run(m *auth.Middleware, r *http.Request) (int, domain.Actor) {
	var seen domain.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	m.Handler()(next).ServeHTTP(w, r)
	return w.Code, seen
}

func TestMiddleware_JWT(t *testing.T) {
	t.Parallel()

	m := auth.New(secret, nil)
	valid := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub":  "42",
		"role": "courier",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		actor  domain.Actor
	}{
		{
			name:   "bearer header",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) },
			status: http.StatusNoContent,
			actor:  domain.Actor{Role: domain.RoleCourier, ID: 42},
		},
		{
			name: "query parameter",
			setup: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("access_token", valid)
				r.URL.RawQuery = q.Encode()
			},
			status: http.StatusNoContent,
			actor:  domain.Actor{Role: domain.RoleCourier, ID: 42},
		},
		{
			name:   "missing token",
			setup:  func(*http.Request) {},
			status: http.StatusUnauthorized,
		},
		{
			name: "wrong key",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "42", "role": "courier"}))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "expired",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
					"sub": "42", "role": "courier", "exp": time.Now().Add(-time.Minute).Unix(),
				}))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "other algorithm",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{"sub": "42", "role": "courier"}))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "unknown role",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "42", "role": "admin"}))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "headers are ignored when a secret is set",
			setup: func(r *http.Request) {
				r.Header.Set(auth.HeaderActorID, "42")
				r.Header.Set(auth.HeaderActorRole, "courier")
			},
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
			tt.setup(r)

			status, actor := run(m, r)
			require.Equal(t, tt.status, status)
			require.Equal(t, tt.actor, actor)
		})
	}
}

func TestMiddleware_Headers(t *testing.T) {
	t.Parallel()

	m := auth.New("", nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(auth.HeaderActorID, "7")
	r.Header.Set(auth.HeaderActorRole, "Customer")
	status, actor := run(m, r)
	require.Equal(t, http.StatusNoContent, status)
	require.Equal(t, domain.Actor{Role: domain.RoleCustomer, ID: 7}, actor)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(auth.HeaderActorRole, "system")
	status, actor = run(m, r)
	require.Equal(t, http.StatusNoContent, status)
	require.Equal(t, domain.Actor{Role: domain.RoleSystem}, actor)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(auth.HeaderActorID, "-1")
	r.Header.Set(auth.HeaderActorRole, "courier")
	status, _ = run(m, r)
	require.Equal(t, http.StatusUnauthorized, status)
}

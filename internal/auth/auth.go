// Package auth validates bearer tokens issued by the external identity
// provider and exposes the caller's identity through the request
// context. Token issuing stays out of scope; claims are trusted
// verbatim once the signature checks out.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/diewo77/sav-suite/internal/httpx"
)

const (
	RoleClient         = "Client"
	RoleResponsableSAV = "ResponsableSAV"
)

type ctxKey string

const (
	claimsCtxKey = ctxKey("claims")
	tokenCtxKey  = ctxKey("token")
)

// Claims is the subset of the identity token the services rely on.
type Claims struct {
	UserID string
	Role   string
}

// WithClaims stores the caller identity in context. Exposed for tests
// and for the middleware below.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, c)
}

// FromContext extracts the caller identity.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey).(Claims)
	return c, ok
}

// WithToken stores the raw bearer token for propagation to the lookup
// clients (the sibling services validate it themselves).
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey, token)
}

// TokenFromContext returns the raw bearer token, or "".
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenCtxKey).(string)
	return t
}

// Middleware parses the Authorization header. An absent or invalid
// token leaves the request anonymous; RequireAuth rejects later.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")
			if c, ok := parseToken(raw, secret); ok {
				ctx := WithClaims(r.Context(), c)
				ctx = WithToken(ctx, raw)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseToken(raw, secret string) (Claims, bool) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Claims{}, false
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, false
	}
	uid, _ := mc["uid"].(string)
	role, _ := mc["role"].(string)
	if uid == "" {
		return Claims{}, false
	}
	return Claims{UserID: uid, Role: role}, true
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows only callers carrying one of the given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := FromContext(r.Context())
			if !ok {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			for _, role := range roles {
				if c.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		})
	}
}

// Package middleware provides HTTP middlewares for bearer tokens, request
// logging, metrics and tracing.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const tokenKey ctxKey = "token"

// BearerToken copies the token from an "Authorization: Bearer <token>"
// header into the request context. Requests without one pass through
// unchanged; the handlers decide how to treat a missing token.
func BearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := parseBearer(r.Header.Get("Authorization")); ok {
			r = r.WithContext(context.WithValue(r.Context(), tokenKey, token))
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromContext returns the bearer token stored by BearerToken, or an
// empty string if there is none.
func TokenFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(tokenKey).(string); ok {
		return s
	}
	return ""
}

func parseBearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

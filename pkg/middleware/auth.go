package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"tinysubs/pkg/address"
	"tinysubs/pkg/hash"
	"tinysubs/pkg/jwt"
)

type contextKey string

// CallerKey holds the authenticated caller address in the request context.
const CallerKey contextKey = "caller"

// Caller returns the address set by JWTAuth.
func Caller(ctx context.Context) (address.Address, bool) {
	a, ok := ctx.Value(CallerKey).(address.Address)
	return a, ok
}

// JWTAuth requires a bearer token and stores its subject as the caller.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				WriteError(w, http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
				return
			}
			caller, err := jwt.ParseToken(secret, token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CallerKey, caller)))
		})
	}
}

// BasicAuth guards a handler with a username and a bcrypt password hash.
func BasicAuth(username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				!hash.CheckPassword(passwordHash, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey string

const (
	RequestIDKey  ctxKey = "request_id"
	RequestHeader        = "X-Request-ID"
)

// RequestIdMiddleware reuses the caller's X-Request-ID or mints one, stores
// it in the request context and echoes it on the response.
func RequestIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get(RequestHeader)
		if requestId == "" {
			requestId = uuid.New().String()
		}

		w.Header().Set(RequestHeader, requestId)
		ctx := context.WithValue(r.Context(), RequestIDKey, requestId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id stored by RequestIdMiddleware, or "unknown".
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return "unknown"
}

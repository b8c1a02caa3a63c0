package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const correlationHeader = "X-Correlation-ID"

type contextKey struct{}

var correlationIDKey contextKey

// CorrelationID attaches a correlation ID to every request. An ID supplied
// by the caller via X-Correlation-ID is honored; otherwise a fresh UUID is
// minted. The ID is echoed on the response so a webhook delivery can be
// matched to the pipeline's log lines.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(correlationHeader, id)
		ctx := context.WithValue(r.Context(), correlationIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID returns the request's correlation ID, or "" when the
// middleware is not installed.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"finreg/pkg/requestcontext"
)

// requestIDHeader is honored when the caller already carries an ID, for
// example a gateway in front of this service.
const requestIDHeader = "X-Request-ID"

// RequestID ensures every request carries a request ID in its context and
// echoes it back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

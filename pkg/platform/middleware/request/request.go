// Package request provides request-id middleware. Every request carries an
// id, either supplied by the caller or generated here, so log lines and audit
// events from one request correlate.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"quorum/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// Middleware ensures a request id is present in the context and echoed back
// on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(headerRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

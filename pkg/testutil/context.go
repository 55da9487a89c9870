package testutil

import (
	"net/http"
	"time"

	"finreg/pkg/requestcontext"
)

// WithActor stamps the acting identity onto a request the way the actor
// middleware would: in the X-Actor header and in the request context.
// Handlers under test attribute mutations to this identity without
// running the full middleware chain.
func WithActor(req *http.Request, actor string) *http.Request {
	req.Header.Set("X-Actor", actor)
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithRequestTime pins the request-scoped clock, mirroring the request
// time middleware. Time-dependent assertions (review schedules, alert
// windows) become exact instead of racing the wall clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

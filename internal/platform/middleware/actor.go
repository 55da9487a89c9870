package middleware

import (
	"net/http"
	"strings"

	"finreg/pkg/requestcontext"
)

// actorHeader identifies the person or system performing the request. The
// value is an opaque string taken at face value; authenticating it belongs
// to the perimeter in front of this service.
const actorHeader = "X-Actor"

// Actor copies the caller identity from the request header into the context
// so services can attribute mutations without threading it through every
// signature.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(actorHeader))
		if actor == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := requestcontext.WithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

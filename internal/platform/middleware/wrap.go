package middleware

import "net/http"

// statusWriter captures the status code written by a handler so logging and
// metrics middleware can report it after the fact.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	// Handlers that never call WriteHeader implicitly send 200.
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "finreg/pkg/domain-errors"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("storage error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeStorage, "db failed: connection reset"))

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
		}
		body := decodeBody(t, w)
		if body["error"] != "storage_error" {
			t.Fatalf("expected error code storage_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for storage errors")
		}
	})

	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
		body := decodeBody(t, w)
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("validation error carries the rule messages", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Validation([]string{"Entity name is required", "License number is required"}))

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
		}
		body := decodeBody(t, w)
		details, ok := body["details"].([]any)
		if !ok || len(details) != 2 {
			t.Fatalf("expected two detail messages, got %v", body["details"])
		}
		if details[0] != "Entity name is required" {
			t.Fatalf("expected ordered details, got %v", details)
		}
	})

	t.Run("status mapping", func(t *testing.T) {
		cases := []struct {
			code dErrors.Code
			want int
		}{
			{dErrors.CodeNotFound, http.StatusNotFound},
			{dErrors.CodeInvalidTransition, http.StatusConflict},
			{dErrors.CodeAlreadyProcessed, http.StatusConflict},
			{dErrors.CodeConflict, http.StatusConflict},
			{dErrors.CodeInvalidInput, http.StatusBadRequest},
			{dErrors.CodeBadRequest, http.StatusBadRequest},
			{dErrors.CodeTimeout, http.StatusServiceUnavailable},
			{dErrors.CodeImmutable, http.StatusInternalServerError},
		}
		for _, tc := range cases {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(tc.code, "boom"))
			if w.Code != tc.want {
				t.Fatalf("code %s: expected status %d, got %d", tc.code, tc.want, w.Code)
			}
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
		body := decodeBody(t, w)
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})
}

type stubRequest struct {
	Name string `json:"name"`
}

func (r *stubRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.Default()

	t.Run("valid body decodes", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Meridian"}`))

		req, ok := DecodeAndPrepare[stubRequest](w, r, logger, r.Context(), "req-1")
		if !ok {
			t.Fatalf("expected ok, response was %d %s", w.Code, w.Body.String())
		}
		if req.Name != "Meridian" {
			t.Fatalf("expected decoded name, got %q", req.Name)
		}
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))

		_, ok := DecodeAndPrepare[stubRequest](w, r, logger, r.Context(), "req-2")
		if ok {
			t.Fatal("expected decode failure")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("validation failure writes the error", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"  "}`))

		_, ok := DecodeAndPrepare[stubRequest](w, r, logger, r.Context(), "req-3")
		if ok {
			t.Fatal("expected validation failure")
		}
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
		}
	})
}

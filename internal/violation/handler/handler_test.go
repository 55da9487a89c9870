package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	alertservice "finreg/internal/alert/service"
	alertmem "finreg/internal/alert/store/memory"
	"finreg/internal/audit"
	auditmem "finreg/internal/audit/store/memory"
	entityhandler "finreg/internal/entity/handler"
	entityservice "finreg/internal/entity/service"
	entitymem "finreg/internal/entity/store/memory"
	"finreg/internal/platform/middleware"
	"finreg/internal/violation/models"
	"finreg/internal/violation/service"
	violationmem "finreg/internal/violation/store/memory"
	txcontext "finreg/pkg/platform/tx"
)

const testActor = "examiner.lee"

type errorBody struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description"`
	Details          []string `json:"details"`
}

func TestRecordViolationViaHandler(t *testing.T) {
	router := newComplianceRouter(t)
	entityID := registerEntity(t, router, "Meridian Trust Bank")

	rec := doJSON(t, router, http.MethodPost, "/violations", violationPayload(entityID, "MEDIUM"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 recording violation, got %d: %s", rec.Code, rec.Body.String())
	}

	var violation models.Violation
	if err := json.NewDecoder(rec.Body).Decode(&violation); err != nil {
		t.Fatalf("failed to decode violation: %v", err)
	}
	if violation.ID.IsNil() {
		t.Fatalf("expected generated violation id")
	}
	if violation.Status != "UNDER_REVIEW" {
		t.Fatalf("expected new violation to open UNDER_REVIEW, got %s", violation.Status)
	}
	if !violation.FollowUpRequired {
		t.Fatalf("expected follow-up required on a new violation")
	}
	if violation.ReportedBy != testActor {
		t.Fatalf("expected reporter defaulted to actor, got %q", violation.ReportedBy)
	}
	if violation.ViolationDate.IsZero() {
		t.Fatalf("expected violation date defaulted to recording time")
	}
}

func TestCriticalViolationEscalatesEntity(t *testing.T) {
	router := newComplianceRouter(t)
	entityID := registerEntity(t, router, "Harbor National Bank")

	rec := doJSON(t, router, http.MethodPost, "/violations", violationPayload(entityID, "CRITICAL"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	entityRec := doJSON(t, router, http.MethodGet, "/entities/"+entityID, nil)
	if entityRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching entity, got %d", entityRec.Code)
	}
	var entity struct {
		RiskLevel        string `json:"risk_level"`
		ComplianceStatus string `json:"compliance_status"`
	}
	if err := json.NewDecoder(entityRec.Body).Decode(&entity); err != nil {
		t.Fatalf("failed to decode entity: %v", err)
	}
	if entity.RiskLevel != "CRITICAL" {
		t.Fatalf("expected risk forced to CRITICAL, got %s", entity.RiskLevel)
	}
	if entity.ComplianceStatus != "NON_COMPLIANT" {
		t.Fatalf("expected compliant entity downgraded, got %s", entity.ComplianceStatus)
	}
}

func TestRecordValidationReturnsOrderedMessages(t *testing.T) {
	router := newComplianceRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/violations", map[string]any{})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty violation, got %d: %s", rec.Code, rec.Body.String())
	}

	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	want := []string{"Entity id is required", "Violation type is required", "Severity is required"}
	if len(body.Details) != len(want) {
		t.Fatalf("expected %d failures, got %v", len(want), body.Details)
	}
	for i, msg := range want {
		if body.Details[i] != msg {
			t.Fatalf("expected %q at position %d, got %v", msg, i, body.Details)
		}
	}
}

func TestRecordAgainstUnknownEntity(t *testing.T) {
	router := newComplianceRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/violations", violationPayload(uuid.NewString(), "HIGH"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown entity, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestResolveViolationWorkflow(t *testing.T) {
	router := newComplianceRouter(t)
	entityID := registerEntity(t, router, "Crescent City MSB")
	violationID := recordViolation(t, router, entityID, "MEDIUM")

	rec := doJSON(t, router, http.MethodPost, "/violations/"+violationID+"/resolve",
		map[string]string{"notes": "Deficiency remediated and verified on site"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 resolving violation, got %d: %s", rec.Code, rec.Body.String())
	}

	var resolved models.Violation
	if err := json.NewDecoder(rec.Body).Decode(&resolved); err != nil {
		t.Fatalf("failed to decode violation: %v", err)
	}
	if resolved.Status != "RESOLVED" {
		t.Fatalf("expected RESOLVED, got %s", resolved.Status)
	}
	if resolved.ResolutionNotes != "Deficiency remediated and verified on site" {
		t.Fatalf("expected resolution notes kept, got %q", resolved.ResolutionNotes)
	}
	if resolved.ResolutionDate == nil {
		t.Fatalf("expected resolution date set")
	}
	if resolved.FollowUpRequired {
		t.Fatalf("expected follow-up cleared on resolution")
	}

	rec = doJSON(t, router, http.MethodPost, "/violations/"+violationID+"/resolve",
		map[string]string{"notes": "Again"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 resolving twice, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Error != "already_processed" {
		t.Fatalf("expected already_processed, got %q", body.Error)
	}
}

func TestPaymentWorkflow(t *testing.T) {
	router := newComplianceRouter(t)
	entityID := registerEntity(t, router, "Lakeside Mutual Insurance")
	violationID := recordViolation(t, router, entityID, "HIGH")

	rec := doJSON(t, router, http.MethodPost, "/violations/"+violationID+"/payment",
		map[string]string{"payment_date": "2026-09-01"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 recording payment, got %d: %s", rec.Code, rec.Body.String())
	}

	var paid models.Violation
	if err := json.NewDecoder(rec.Body).Decode(&paid); err != nil {
		t.Fatalf("failed to decode violation: %v", err)
	}
	if !paid.FinePaid {
		t.Fatalf("expected fine marked paid")
	}
	if paid.PaymentDate == nil {
		t.Fatalf("expected payment date set")
	}
	if paid.Status != "UNDER_REVIEW" {
		t.Fatalf("payment must not change violation status, got %s", paid.Status)
	}

	rec = doJSON(t, router, http.MethodPost, "/violations/"+violationID+"/payment",
		map[string]string{"payment_date": "2026-09-02"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 paying twice, got %d", rec.Code)
	}
}

func TestPaymentRequiresAFine(t *testing.T) {
	router := newComplianceRouter(t)
	entityID := registerEntity(t, router, "Meridian Trust Bank")

	payload := violationPayload(entityID, "LOW")
	payload["fine_amount"] = 0
	rec := doJSON(t, router, http.MethodPost, "/violations", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var violation struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&violation); err != nil {
		t.Fatalf("failed to decode violation: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/violations/"+violation.ID+"/payment",
		map[string]string{"payment_date": "2026-09-01"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 paying a fine-less violation, got %d", rec.Code)
	}
}

func TestViolationListFilters(t *testing.T) {
	router := newComplianceRouter(t)
	entityID := registerEntity(t, router, "Harbor National Bank")
	first := recordViolation(t, router, entityID, "MEDIUM")
	recordViolation(t, router, entityID, "HIGH")

	rec := doJSON(t, router, http.MethodPost, "/violations/"+first+"/resolve",
		map[string]string{"notes": "Settled"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 resolving, got %d", rec.Code)
	}

	if got := listCount(t, router, "/violations?entity_id="+entityID); got != 2 {
		t.Fatalf("expected 2 violations for entity, got %d", got)
	}
	if got := listCount(t, router, "/violations?entity_id="+entityID+"&active=true"); got != 1 {
		t.Fatalf("expected 1 active violation, got %d", got)
	}
	if got := listCount(t, router, "/violations?status=RESOLVED"); got != 1 {
		t.Fatalf("expected 1 resolved violation, got %d", got)
	}
	if got := listCount(t, router, "/violations?severity=HIGH"); got != 1 {
		t.Fatalf("expected 1 high violation, got %d", got)
	}
	if got := listCount(t, router, "/violations"); got != 1 {
		t.Fatalf("expected 1 active violation overall, got %d", got)
	}
	// The resolved violation still carries its unpaid fine.
	if got := listCount(t, router, "/violations/unpaid-fines?entity_id="+entityID); got != 2 {
		t.Fatalf("expected 2 unpaid fines, got %d", got)
	}
}

func TestOverdueQueryValidation(t *testing.T) {
	router := newComplianceRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/violations/overdue", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without window, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/violations/overdue?older_than_days=soon", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer window, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/violations/overdue?older_than_days=30", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid window, got %d", rec.Code)
	}
}

// ===== Helpers =====

func newComplianceRouter(t *testing.T) http.Handler {
	t.Helper()

	entities := entitymem.NewInMemoryStore()
	violations := violationmem.NewInMemoryStore()
	alerts := alertmem.NewInMemoryStore()
	auditLog := audit.NewLog(auditmem.NewInMemoryStore())
	sharedTx := txcontext.NewInMemoryRunner()

	alertSvc := alertservice.New(alerts, entities, violations, auditLog,
		alertservice.WithStoreTx(sharedTx))
	entitySvc := entityservice.New(entities, violations, auditLog, alertSvc,
		entityservice.WithStoreTx(sharedTx))
	violationSvc := service.New(violations, entitySvc, auditLog, alertSvc,
		service.WithStoreTx(sharedTx))
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Actor)
	entityhandler.New(entitySvc, logger).Register(r)
	New(violationSvc, logger).Register(r)
	return r
}

func registerEntity(t *testing.T, router http.Handler, name string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/entities", map[string]any{
		"name":              name,
		"type":              "BANK",
		"license_number":    "NY-BNK-50021",
		"compliance_status": "COMPLIANT",
		"risk_level":        "MEDIUM",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering %s, got %d: %s", name, rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode register response: %v", err)
	}
	return created.ID
}

func violationPayload(entityID, severity string) map[string]any {
	return map[string]any{
		"entity_id":   entityID,
		"type":        "CAPITAL_RESERVE_SHORTFALL",
		"description": "Reserves below the statutory floor",
		"severity":    severity,
		"fine_amount": 75000,
	}
}

func recordViolation(t *testing.T, router http.Handler, entityID, severity string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/violations", violationPayload(entityID, severity))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 recording violation, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode violation response: %v", err)
	}
	return created.ID
}

func doJSON(t *testing.T, router http.Handler, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", testActor)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func listCount(t *testing.T, router http.Handler, target string) int {
	t.Helper()

	rec := doJSON(t, router, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing %s, got %d: %s", target, rec.Code, rec.Body.String())
	}
	var resp ViolationListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	return resp.Count
}

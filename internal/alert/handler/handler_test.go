package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"finreg/internal/alert/models"
	"finreg/internal/alert/service"
	alertmem "finreg/internal/alert/store/memory"
	"finreg/internal/audit"
	auditmem "finreg/internal/audit/store/memory"
	entityhandler "finreg/internal/entity/handler"
	entityservice "finreg/internal/entity/service"
	entitymem "finreg/internal/entity/store/memory"
	"finreg/internal/platform/middleware"
	violationhandler "finreg/internal/violation/handler"
	violationservice "finreg/internal/violation/service"
	violationmem "finreg/internal/violation/store/memory"
	txcontext "finreg/pkg/platform/tx"
)

const testActor = "officer.novak"

func TestRegistrationRaisesAlert(t *testing.T) {
	router := newAlertRouter(t)
	entityID := registerEntity(t, router, "Meridian Trust Bank")

	alerts := listAlerts(t, router, "/alerts")
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert after registration, got %d", len(alerts))
	}
	alert := alerts[0]
	if alert.Type != "NEW_REGISTRATION" {
		t.Fatalf("expected NEW_REGISTRATION, got %s", alert.Type)
	}
	if alert.Priority != "MEDIUM" {
		t.Fatalf("expected MEDIUM priority, got %s", alert.Priority)
	}
	if alert.EntityID.String() != entityID {
		t.Fatalf("expected alert for entity %s, got %s", entityID, alert.EntityID)
	}
	if openCount(t, router) != 1 {
		t.Fatalf("expected 1 open alert")
	}
}

func TestHighViolationFillsPriorityQueue(t *testing.T) {
	router := newAlertRouter(t)
	entityID := registerEntity(t, router, "Harbor National Bank")
	violationID := recordViolation(t, router, entityID, "HIGH")

	// Registration (MEDIUM) plus the violation cascade: the violation
	// alert itself, the risk escalation and the status downgrade.
	alerts := listAlerts(t, router, "/alerts")
	if len(alerts) != 4 {
		t.Fatalf("expected 4 unresolved alerts, got %d", len(alerts))
	}

	high := listAlerts(t, router, "/alerts?high_priority=true")
	if len(high) != 3 {
		t.Fatalf("expected 3 high-priority alerts, got %d", len(high))
	}
	for _, alert := range high {
		if alert.Priority != "HIGH" && alert.Priority != "URGENT" {
			t.Fatalf("expected only HIGH and URGENT in the queue, got %s", alert.Priority)
		}
	}

	var violationAlert *models.AlertNotification
	for _, alert := range high {
		if alert.Type == "VIOLATION" {
			violationAlert = alert
		}
	}
	if violationAlert == nil {
		t.Fatalf("expected a VIOLATION alert in the queue")
	}
	if violationAlert.ViolationID.String() != violationID {
		t.Fatalf("expected alert to reference violation %s, got %s", violationID, violationAlert.ViolationID)
	}

	byEntity := listAlerts(t, router, "/alerts?entity_id="+entityID)
	if len(byEntity) != 4 {
		t.Fatalf("expected 4 alerts for the entity, got %d", len(byEntity))
	}
}

func TestAcknowledgeWorkflow(t *testing.T) {
	router := newAlertRouter(t)
	registerEntity(t, router, "Crescent City MSB")
	alertID := listAlerts(t, router, "/alerts")[0].ID.String()

	rec := doJSON(t, router, http.MethodPost, "/alerts/"+alertID+"/acknowledge", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 acknowledging, got %d: %s", rec.Code, rec.Body.String())
	}
	var acked models.AlertNotification
	if err := json.NewDecoder(rec.Body).Decode(&acked); err != nil {
		t.Fatalf("failed to decode alert: %v", err)
	}
	if !acked.Acknowledged {
		t.Fatalf("expected alert acknowledged")
	}
	if acked.AcknowledgedBy != testActor {
		t.Fatalf("expected acknowledged_by %q, got %q", testActor, acked.AcknowledgedBy)
	}
	if acked.AcknowledgedAt == nil {
		t.Fatalf("expected acknowledged_at set")
	}

	if openCount(t, router) != 0 {
		t.Fatalf("acknowledged alert must leave the open count")
	}
	if len(listAlerts(t, router, "/alerts")) != 1 {
		t.Fatalf("acknowledged alert stays unresolved")
	}

	rec = doJSON(t, router, http.MethodPost, "/alerts/"+alertID+"/acknowledge", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 acknowledging twice, got %d", rec.Code)
	}
}

func TestResolveWorkflow(t *testing.T) {
	router := newAlertRouter(t)
	registerEntity(t, router, "Lakeside Mutual Insurance")
	alertID := listAlerts(t, router, "/alerts")[0].ID.String()

	rec := doJSON(t, router, http.MethodPost, "/alerts/"+alertID+"/resolve",
		map[string]string{"notes": "Onboarding review completed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 resolving, got %d: %s", rec.Code, rec.Body.String())
	}
	var resolved models.AlertNotification
	if err := json.NewDecoder(rec.Body).Decode(&resolved); err != nil {
		t.Fatalf("failed to decode alert: %v", err)
	}
	if !resolved.Resolved {
		t.Fatalf("expected alert resolved")
	}
	if resolved.Notes != "Onboarding review completed" {
		t.Fatalf("expected notes kept, got %q", resolved.Notes)
	}
	if resolved.ResolvedAt == nil {
		t.Fatalf("expected resolved_at set")
	}

	if len(listAlerts(t, router, "/alerts")) != 0 {
		t.Fatalf("resolved alert must leave the unresolved list")
	}

	rec = doJSON(t, router, http.MethodPost, "/alerts/"+alertID+"/resolve",
		map[string]string{"notes": "Again"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 resolving twice, got %d", rec.Code)
	}
}

func TestAcknowledgeRequiresActor(t *testing.T) {
	router := newAlertRouter(t)
	registerEntity(t, router, "Meridian Trust Bank")
	alertID := listAlerts(t, router, "/alerts")[0].ID.String()

	req := httptest.NewRequest(http.MethodPost, "/alerts/"+alertID+"/acknowledge", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without actor, got %d", rec.Code)
	}
}

func TestLicenseExpirySweep(t *testing.T) {
	router := newAlertRouter(t)
	expiry := time.Now().UTC().AddDate(0, 0, 10).Format("2006-01-02")
	registerEntityExpiring(t, router, "Harbor National Bank", expiry)

	resp := runSweep(t, router, "/alerts/sweeps/license-expiring")
	if resp.Rule != "license_expiring" {
		t.Fatalf("expected license_expiring rule, got %s", resp.Rule)
	}
	if resp.AlertsCreated != 1 {
		t.Fatalf("expected 1 alert created, got %d", resp.AlertsCreated)
	}

	resp = runSweep(t, router, "/alerts/sweeps/license-expiring")
	if resp.AlertsCreated != 0 {
		t.Fatalf("re-running the sweep must not duplicate, got %d", resp.AlertsCreated)
	}

	var expiring *models.AlertNotification
	for _, alert := range listAlerts(t, router, "/alerts") {
		if alert.Type == "LICENSE_EXPIRING" {
			expiring = alert
		}
	}
	if expiring == nil {
		t.Fatalf("expected a LICENSE_EXPIRING alert")
	}
	if expiring.Priority != "HIGH" {
		t.Fatalf("expected HIGH priority ten days out, got %s", expiring.Priority)
	}
}

func TestReviewDueSweepIsQuietForFreshEntities(t *testing.T) {
	router := newAlertRouter(t)
	registerEntity(t, router, "Crescent City MSB")

	resp := runSweep(t, router, "/alerts/sweeps/review-due")
	if resp.Rule != "review_due" {
		t.Fatalf("expected review_due rule, got %s", resp.Rule)
	}
	if resp.AlertsCreated != 0 {
		t.Fatalf("fresh entities owe no review, got %d alerts", resp.AlertsCreated)
	}
}

func TestOverdueViolationSweep(t *testing.T) {
	router := newAlertRouter(t)
	entityID := registerEntity(t, router, "Lakeside Mutual Insurance")
	violationID := recordViolation(t, router, entityID, "MEDIUM")

	resp := runSweep(t, router, "/alerts/sweeps/overdue-violations?days_overdue=0")
	if resp.AlertsCreated != 1 {
		t.Fatalf("expected 1 overdue alert, got %d", resp.AlertsCreated)
	}

	resp = runSweep(t, router, "/alerts/sweeps/overdue-violations?days_overdue=0")
	if resp.AlertsCreated != 0 {
		t.Fatalf("re-running the sweep must not duplicate, got %d", resp.AlertsCreated)
	}

	var overdue *models.AlertNotification
	for _, alert := range listAlerts(t, router, "/alerts") {
		if alert.Type == "OVERDUE_VIOLATION" {
			overdue = alert
		}
	}
	if overdue == nil {
		t.Fatalf("expected an OVERDUE_VIOLATION alert")
	}
	if overdue.ViolationID.String() != violationID {
		t.Fatalf("expected alert to reference violation %s, got %s", violationID, overdue.ViolationID)
	}
	if overdue.Priority != "MEDIUM" {
		t.Fatalf("expected priority to follow severity, got %s", overdue.Priority)
	}

	rec := doJSON(t, router, http.MethodPost, "/alerts/sweeps/overdue-violations?days_overdue=soon", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-integer window, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/alerts/sweeps/overdue-violations?days_overdue=-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a negative window, got %d", rec.Code)
	}
}

func TestAlertLookupErrors(t *testing.T) {
	router := newAlertRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/alerts/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown alert, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/alerts/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed alert id, got %d", rec.Code)
	}
}

// ===== Helpers =====

func newAlertRouter(t *testing.T) http.Handler {
	t.Helper()

	entities := entitymem.NewInMemoryStore()
	violations := violationmem.NewInMemoryStore()
	alerts := alertmem.NewInMemoryStore()
	auditLog := audit.NewLog(auditmem.NewInMemoryStore())
	sharedTx := txcontext.NewInMemoryRunner()

	alertSvc := service.New(alerts, entities, violations, auditLog,
		service.WithStoreTx(sharedTx))
	entitySvc := entityservice.New(entities, violations, auditLog, alertSvc,
		entityservice.WithStoreTx(sharedTx))
	violationSvc := violationservice.New(violations, entitySvc, auditLog, alertSvc,
		violationservice.WithStoreTx(sharedTx))
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Actor)
	entityhandler.New(entitySvc, logger).Register(r)
	violationhandler.New(violationSvc, logger).Register(r)
	New(alertSvc, logger).Register(r)
	return r
}

func registerEntity(t *testing.T, router http.Handler, name string) string {
	t.Helper()
	return registerEntityExpiring(t, router, name, "2031-01-15")
}

func registerEntityExpiring(t *testing.T, router http.Handler, name, expiry string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/entities", map[string]any{
		"name":              name,
		"type":              "BANK",
		"license_number":    "NY-BNK-50021",
		"license_expiry":    expiry,
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

func recordViolation(t *testing.T, router http.Handler, entityID, severity string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/violations", map[string]any{
		"entity_id":   entityID,
		"type":        "AML_PROGRAM_DEFICIENCY",
		"severity":    severity,
		"fine_amount": 50000,
	})
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

func listAlerts(t *testing.T, router http.Handler, target string) []*models.AlertNotification {
	t.Helper()

	rec := doJSON(t, router, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing %s, got %d: %s", target, rec.Code, rec.Body.String())
	}
	var resp AlertListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode alert list: %v", err)
	}
	if resp.Count != len(resp.Alerts) {
		t.Fatalf("count %d does not match %d alerts", resp.Count, len(resp.Alerts))
	}
	return resp.Alerts
}

func openCount(t *testing.T, router http.Handler) int {
	t.Helper()

	rec := doJSON(t, router, http.MethodGet, "/alerts/count-open", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 counting open alerts, got %d", rec.Code)
	}
	var resp CountOpenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode count: %v", err)
	}
	return resp.Count
}

func runSweep(t *testing.T, router http.Handler, target string) SweepResponse {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from sweep %s, got %d: %s", target, rec.Code, rec.Body.String())
	}
	var resp SweepResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode sweep response: %v", err)
	}
	return resp
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

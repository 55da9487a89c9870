package handler

import "finreg/internal/alert/models"

// AlertListResponse wraps an alert collection with its size.
type AlertListResponse struct {
	Alerts []*models.AlertNotification `json:"alerts"`
	Count  int                         `json:"count"`
}

// NewAlertListResponse builds a list response; an empty result is an
// empty array, never null.
func NewAlertListResponse(alerts []*models.AlertNotification) AlertListResponse {
	if alerts == nil {
		alerts = []*models.AlertNotification{}
	}
	return AlertListResponse{Alerts: alerts, Count: len(alerts)}
}

// CountOpenResponse reports how many alerts are neither acknowledged nor
// resolved.
type CountOpenResponse struct {
	Count int `json:"count"`
}

// SweepResponse reports the outcome of one rule sweep.
type SweepResponse struct {
	Rule          string `json:"rule"`
	AlertsCreated int    `json:"alerts_created"`
}

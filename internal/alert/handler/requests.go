package handler

import (
	"strings"

	dErrors "finreg/pkg/domain-errors"
)

// ResolveAlertRequest carries the closing notes for an alert resolution.
type ResolveAlertRequest struct {
	Notes string `json:"notes"`
}

// Validate normalizes the notes. Empty notes are allowed; many alerts
// resolve themselves once the underlying condition clears.
func (r *ResolveAlertRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}

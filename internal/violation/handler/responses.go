package handler

import "finreg/internal/violation/models"

// ViolationListResponse wraps a set of violations with its size.
type ViolationListResponse struct {
	Violations []*models.Violation `json:"violations"`
	Count      int                 `json:"count"`
}

// NewViolationListResponse builds a list response, normalizing nil slices
// to empty JSON arrays.
func NewViolationListResponse(violations []*models.Violation) ViolationListResponse {
	if violations == nil {
		violations = []*models.Violation{}
	}
	return ViolationListResponse{Violations: violations, Count: len(violations)}
}

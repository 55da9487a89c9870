package handler

import "finreg/internal/audit"

// AuditListResponse wraps a trail query result with its size.
type AuditListResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

// NewAuditListResponse builds a list response; an empty result is an
// empty array, never null.
func NewAuditListResponse(entries []audit.Entry) AuditListResponse {
	if entries == nil {
		entries = []audit.Entry{}
	}
	return AuditListResponse{Entries: entries, Count: len(entries)}
}

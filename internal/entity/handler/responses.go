package handler

import (
	"finreg/internal/entity/models"
	id "finreg/pkg/domain"
)

// EntityListResponse wraps a set of entities with its size so clients do
// not have to count.
type EntityListResponse struct {
	Entities []*models.Entity `json:"entities"`
	Count    int              `json:"count"`
}

// NewEntityListResponse builds a list response, normalizing nil slices to
// empty JSON arrays.
func NewEntityListResponse(entities []*models.Entity) EntityListResponse {
	if entities == nil {
		entities = []*models.Entity{}
	}
	return EntityListResponse{Entities: entities, Count: len(entities)}
}

// ScoreResponse is the HTTP response for GET /entities/{entityID}/score.
type ScoreResponse struct {
	EntityID   id.EntityID `json:"entity_id"`
	Score      int         `json:"score"`
	MonthsBack int         `json:"months_back"`
}

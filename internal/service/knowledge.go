package service

import (
	"context"

	"conversation-analytics/backend/internal/rollup"
	"conversation-analytics/backend/pkg/query"
)

// KnowledgeFilter narrows knowledge to one contact and/or session
type KnowledgeFilter struct {
	ContactID *int64
	SessionID *int64
}

// KnowledgeService serves extracted facts grouped by session
type KnowledgeService struct {
	db query.Querier
}

// NewKnowledgeService creates a knowledge service
func NewKnowledgeService(db query.Querier) *KnowledgeService {
	return &KnowledgeService{db: db}
}

// Grouped returns the tenant's knowledge entries grouped by session
func (s *KnowledgeService) Grouped(ctx context.Context, companyID int64, f KnowledgeFilter) ([]rollup.KnowledgeGroup, error) {
	where := query.NewBuilder(query.Raw("k.company_id = ?", companyID))
	query.Eq(where, "k.contact_id", f.ContactID)
	query.Eq(where, "k.session_id", f.SessionID)

	rows, err := query.List[rollup.KnowledgeRow](ctx, s.db, query.Select(
		`k.id, k.session_id, k.contact_id, k.key, k.value, k.created_at,
		s.status AS session_status, s.created_at AS session_created_at`,
		"knowledge k JOIN sessions s ON s.id = k.session_id AND s.company_id = k.company_id",
		where,
		"ORDER BY k.created_at ASC, k.id ASC",
	)...)
	if err != nil {
		return nil, storageErr(err)
	}
	return rollup.GroupKnowledge(rows), nil
}

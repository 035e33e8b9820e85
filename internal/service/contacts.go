package service

import (
	"context"
	"time"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/rollup"
	"conversation-analytics/backend/pkg/query"
)

const contactColumns = `c.id, c.name, c.phone_number, c.email, c.created_at,
	agg.session_count, agg.active_sessions,
	ls.id AS latest_session_id, ls.status AS latest_status,
	lm.content AS last_message_content, lm.sender AS last_message_sender, lm.created_at AS last_message_at`

// contactFrom scopes every lateral lookup to the tenant; the three
// placeholders all take the company id.
const contactFrom = `contacts c
	JOIN LATERAL (
		SELECT COUNT(*) AS session_count,
			COUNT(*) FILTER (WHERE s.status IN (0, 1, 2)) AS active_sessions
		FROM sessions s WHERE s.contact_id = c.id AND s.company_id = ?
	) agg ON agg.session_count > 0
	LEFT JOIN LATERAL (
		SELECT s.id, s.status FROM sessions s
		WHERE s.contact_id = c.id AND s.company_id = ?
		ORDER BY s.created_at DESC, s.id DESC LIMIT 1
	) ls ON TRUE
	LEFT JOIN LATERAL (
		SELECT m.content, m.sender, m.created_at FROM conversations m
		JOIN sessions s ON s.id = m.session_id
		WHERE s.contact_id = c.id AND s.company_id = ?
		ORDER BY m.created_at DESC, m.id DESC LIMIT 1
	) lm ON TRUE`

type contactRow struct {
	ID              int64                 `db:"id"`
	Name            *string               `db:"name"`
	PhoneNumber     *string               `db:"phone_number"`
	Email           *string               `db:"email"`
	CreatedAt       time.Time             `db:"created_at"`
	SessionCount    int64                 `db:"session_count"`
	ActiveSessions  int64                 `db:"active_sessions"`
	LatestSessionID *int64                `db:"latest_session_id"`
	LatestStatus    *models.SessionStatus `db:"latest_status"`
	LastContent     *string               `db:"last_message_content"`
	LastSender      *models.Sender        `db:"last_message_sender"`
	LastMessageAt   *time.Time            `db:"last_message_at"`
}

// ContactSummary is a contact rolled up over its sessions with one tenant
type ContactSummary struct {
	ContactRef
	CreatedAt         time.Time             `json:"created_at"`
	SessionCount      int64                 `json:"session_count"`
	ActiveSessions    int64                 `json:"active_sessions"`
	LatestSessionID   *int64                `json:"latest_session_id"`
	LatestStatus      *models.SessionStatus `json:"latest_status"`
	LatestStatusLabel string                `json:"latest_status_label,omitempty"`
	LastMessage       *MessagePreview       `json:"last_message"`
	LastActivity      time.Time             `json:"last_activity"`
}

func (r contactRow) view() ContactSummary {
	v := ContactSummary{
		ContactRef: ContactRef{
			ID:          r.ID,
			Name:        r.Name,
			PhoneNumber: r.PhoneNumber,
			Email:       r.Email,
		},
		CreatedAt:       r.CreatedAt,
		SessionCount:    r.SessionCount,
		ActiveSessions:  r.ActiveSessions,
		LatestSessionID: r.LatestSessionID,
		LatestStatus:    r.LatestStatus,
		LastMessage:     preview(nil, r.LastSender, r.LastContent, r.LastMessageAt),
		LastActivity:    rollup.LastActivity(r.LastMessageAt, r.CreatedAt),
	}
	if r.LatestStatus != nil {
		v.LatestStatusLabel = r.LatestStatus.String()
	}
	return v
}

// ContactFilter narrows the contact list. Status matches the latest session.
type ContactFilter struct {
	Search string
	Status *models.SessionStatus
	Page   query.Page
}

// ContactService serves per-contact rollups
type ContactService struct {
	db query.Querier
}

// NewContactService creates a contact service
func NewContactService(db query.Querier) *ContactService {
	return &ContactService{db: db}
}

// List returns contacts with at least one session under the tenant, ordered
// by their most recent activity.
func (s *ContactService) List(ctx context.Context, companyID int64, f ContactFilter) (query.Result[ContactSummary], error) {
	where := query.NewBuilder().
		Contains(f.Search, "c.name", "c.phone_number", "c.email")
	query.Eq(where, "ls.status", f.Status)

	q := query.PageQuery{
		Columns:  query.Expr{SQL: contactColumns},
		From:     query.Raw(contactFrom, companyID, companyID, companyID),
		Where:    where,
		OrderBy:  "GREATEST(COALESCE(lm.created_at, c.created_at), c.created_at) DESC, c.id DESC",
		CountKey: "c.id",
	}

	res, err := query.Paginate[contactRow](ctx, s.db, q, f.Page)
	if err != nil {
		return query.Result[ContactSummary]{}, storageErr(err)
	}
	return query.MapResult(res, contactRow.view), nil
}

package service

import (
	"context"
	"time"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/rollup"
	"conversation-analytics/backend/pkg/query"

	"golang.org/x/sync/errgroup"
)

// conversationColumns projects one session with its contact, latest message,
// message count and lead flags. The latest message and the count are
// correlated per session so the join never multiplies rows.
const conversationColumns = `s.id AS session_id, s.contact_id, s.company_id, s.status, s.leads_id,
	s.created_at, s.updated_at,
	c.name AS contact_name, c.phone_number AS contact_phone, c.email AS contact_email,
	lm.id AS last_message_id, lm.sender AS last_message_sender,
	lm.content AS last_message_content, lm.created_at AS last_message_at,
	(SELECT COUNT(*) FROM conversations mc WHERE mc.session_id = s.id) AS message_count,
	lt.id AS transfer_id, ld.id AS discard_id`

const conversationFrom = `sessions s
	JOIN contacts c ON c.id = s.contact_id
	LEFT JOIN LATERAL (
		SELECT m.id, m.sender, m.content, m.created_at FROM conversations m
		WHERE m.session_id = s.id ORDER BY m.created_at DESC, m.id DESC LIMIT 1
	) lm ON TRUE
	LEFT JOIN lead_transfers lt ON lt.lead_id = s.leads_id
	LEFT JOIN lead_discards ld ON ld.lead_id = s.leads_id`

type conversationRow struct {
	SessionID     int64                `db:"session_id"`
	ContactID     int64                `db:"contact_id"`
	CompanyID     int64                `db:"company_id"`
	Status        models.SessionStatus `db:"status"`
	LeadsID       *int64               `db:"leads_id"`
	CreatedAt     time.Time            `db:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at"`
	ContactName   *string              `db:"contact_name"`
	ContactPhone  *string              `db:"contact_phone"`
	ContactEmail  *string              `db:"contact_email"`
	LastMessageID *int64               `db:"last_message_id"`
	LastSender    *models.Sender       `db:"last_message_sender"`
	LastContent   *string              `db:"last_message_content"`
	LastMessageAt *time.Time           `db:"last_message_at"`
	MessageCount  int64                `db:"message_count"`
	TransferID    *int64               `db:"transfer_id"`
	DiscardID     *int64               `db:"discard_id"`
}

// Conversation is a session rolled up with its contact and latest activity
type Conversation struct {
	SessionID    int64                `json:"session_id"`
	CompanyID    int64                `json:"company_id"`
	Status       models.SessionStatus `json:"status"`
	StatusLabel  string               `json:"status_label"`
	IsActive     bool                 `json:"is_active"`
	LeadID       *int64               `json:"lead_id"`
	Transferred  bool                 `json:"transferred"`
	Discarded    bool                 `json:"discarded"`
	Contact      ContactRef           `json:"contact"`
	LastMessage  *MessagePreview      `json:"last_message"`
	MessageCount int64                `json:"message_count"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func (r conversationRow) view() Conversation {
	transferred, discarded := rollup.LeadFlags(r.TransferID, r.DiscardID)
	return Conversation{
		SessionID:   r.SessionID,
		CompanyID:   r.CompanyID,
		Status:      r.Status,
		StatusLabel: r.Status.String(),
		IsActive:    r.Status.IsActive(),
		LeadID:      r.LeadsID,
		Transferred: transferred,
		Discarded:   discarded,
		Contact: ContactRef{
			ID:          r.ContactID,
			Name:        r.ContactName,
			PhoneNumber: r.ContactPhone,
			Email:       r.ContactEmail,
		},
		LastMessage:  preview(r.LastMessageID, r.LastSender, r.LastContent, r.LastMessageAt),
		MessageCount: r.MessageCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// ConversationFilter narrows the conversation list
type ConversationFilter struct {
	Search string
	Status *models.SessionStatus
	Page   query.Page
}

// ConversationService serves session rollups and message history
type ConversationService struct {
	db query.Querier
}

// NewConversationService creates a conversation service
func NewConversationService(db query.Querier) *ConversationService {
	return &ConversationService{db: db}
}

// List returns the tenant's sessions, most recently active first
func (s *ConversationService) List(ctx context.Context, companyID int64, f ConversationFilter) (query.Result[Conversation], error) {
	where := query.NewBuilder(query.Raw("s.company_id = ?", companyID)).
		Contains(f.Search, "c.name", "c.phone_number", "c.email")
	query.Eq(where, "s.status", f.Status)

	q := query.PageQuery{
		Columns:  query.Expr{SQL: conversationColumns},
		From:     query.Expr{SQL: conversationFrom},
		Where:    where,
		OrderBy:  "COALESCE(lm.created_at, s.created_at) DESC, s.id DESC",
		CountKey: "s.id",
	}

	res, err := query.Paginate[conversationRow](ctx, s.db, q, f.Page)
	if err != nil {
		return query.Result[Conversation]{}, storageErr(err)
	}
	return query.MapResult(res, conversationRow.view), nil
}

// Get returns one session of the tenant
func (s *ConversationService) Get(ctx context.Context, companyID, sessionID int64) (Conversation, error) {
	where := query.NewBuilder(
		query.Raw("s.company_id = ?", companyID),
		query.Raw("s.id = ?", sessionID),
	)
	row, err := query.One[conversationRow](ctx, s.db, query.Select(conversationColumns, conversationFrom, where)...)
	if err != nil {
		return Conversation{}, notFound(err, "Session")
	}
	return row.view(), nil
}

// MessagePage is a window of a session's messages in chronological order
type MessagePage struct {
	SessionID int64            `json:"session_id"`
	Messages  []models.Message `json:"messages"`
	Total     int64            `json:"total"`
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
	HasMore   bool             `json:"hasMore"`
}

type messageRow struct {
	ID         int64         `db:"id"`
	SessionID  int64         `db:"session_id"`
	Sender     models.Sender `db:"sender"`
	Content    string        `db:"content"`
	ExternalID *string       `db:"external_id"`
	CreatedAt  time.Time     `db:"created_at"`
}

// Messages returns a session's messages oldest first. A session outside the
// tenant is reported as not found.
func (s *ConversationService) Messages(ctx context.Context, companyID, sessionID int64, limit, offset int) (MessagePage, error) {
	var (
		total int64
		rows  []messageRow
	)

	countSQL, countArgs := query.Compose(query.Raw(
		"SELECT (SELECT COUNT(*) FROM conversations m WHERE m.session_id = s.id) FROM sessions s WHERE s.id = ? AND s.company_id = ?",
		sessionID, companyID))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.QueryRow(gctx, countSQL, countArgs...).Scan(&total)
	})
	g.Go(func() error {
		where := query.NewBuilder(
			query.Raw("s.company_id = ?", companyID),
			query.Raw("m.session_id = ?", sessionID),
		)
		parts := query.Select("m.id, m.session_id, m.sender, m.content, m.external_id, m.created_at",
			"conversations m JOIN sessions s ON s.id = m.session_id", where,
			"ORDER BY m.created_at ASC, m.id ASC")
		var err error
		rows, err = query.List[messageRow](gctx, s.db, append(parts, query.Raw(" LIMIT ? OFFSET ?", limit, offset))...)
		return err
	})
	if err := g.Wait(); err != nil {
		return MessagePage{}, notFound(err, "Session")
	}

	messages := make([]models.Message, len(rows))
	for i, r := range rows {
		messages[i] = models.Message(r)
	}
	return MessagePage{
		SessionID: sessionID,
		Messages:  messages,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
		HasMore:   int64(offset+len(rows)) < total,
	}, nil
}

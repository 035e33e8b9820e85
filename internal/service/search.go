package service

import (
	"context"
	"time"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/rollup"
	"conversation-analytics/backend/pkg/query"

	"golang.org/x/sync/errgroup"
)

type contactHitRow struct {
	ID          int64     `db:"id"`
	Name        *string   `db:"name"`
	PhoneNumber *string   `db:"phone_number"`
	Email       *string   `db:"email"`
	CreatedAt   time.Time `db:"created_at"`
}

// ConversationHit is a message matching a search, with its session and contact
type ConversationHit struct {
	SessionID     int64                `json:"session_id"`
	SessionStatus models.SessionStatus `json:"session_status"`
	Contact       ContactRef           `json:"contact"`
	Message       MessagePreview       `json:"message"`
}

type conversationHitRow struct {
	MessageID     int64                `db:"message_id"`
	SessionID     int64                `db:"session_id"`
	SessionStatus models.SessionStatus `db:"session_status"`
	Sender        models.Sender        `db:"sender"`
	Content       string               `db:"content"`
	CreatedAt     time.Time            `db:"created_at"`
	ContactID     int64                `db:"contact_id"`
	ContactName   *string              `db:"contact_name"`
	ContactPhone  *string              `db:"contact_phone"`
	ContactEmail  *string              `db:"contact_email"`
}

func (r conversationHitRow) hit() ConversationHit {
	return ConversationHit{
		SessionID:     r.SessionID,
		SessionStatus: r.SessionStatus,
		Contact: ContactRef{
			ID:          r.ContactID,
			Name:        r.ContactName,
			PhoneNumber: r.ContactPhone,
			Email:       r.ContactEmail,
		},
		Message: MessagePreview{
			ID:        r.MessageID,
			Sender:    r.Sender,
			Summary:   rollup.Summary(r.Content, summaryLength),
			CreatedAt: r.CreatedAt,
		},
	}
}

// GlobalResults bundles every search target, each limited independently
type GlobalResults struct {
	Contacts      []models.Contact   `json:"contacts"`
	Conversations []ConversationHit  `json:"conversations"`
	Leads         []LeadView         `json:"leads"`
	Stock         []models.StockItem `json:"stock"`
}

// SearchService runs tenant-scoped free-text searches. Terms shorter than
// the minimum are rejected before any statement is issued.
type SearchService struct {
	db    query.Querier
	stock *StockService
}

// NewSearchService creates a search service
func NewSearchService(db query.Querier) *SearchService {
	return &SearchService{db: db, stock: NewStockService(db)}
}

func limitClause(limit int) query.Expr {
	return query.Raw(" LIMIT ?", limit)
}

// Contacts matches name, phone or email among the tenant's contacts
func (s *SearchService) Contacts(ctx context.Context, companyID int64, q string, limit int) ([]models.Contact, error) {
	term, err := query.SearchTerm(q)
	if err != nil {
		return nil, err
	}
	return s.contacts(ctx, companyID, term, limit)
}

func (s *SearchService) contacts(ctx context.Context, companyID int64, term string, limit int) ([]models.Contact, error) {
	where := query.NewBuilder(query.Raw("cc.company_id = ?", companyID)).
		Contains(term, "c.name", "c.phone_number", "c.email")
	parts := query.Select("c.id, c.name, c.phone_number, c.email, c.created_at",
		"contacts c JOIN contact_companies cc ON cc.contact_id = c.id", where,
		"ORDER BY c.created_at DESC, c.id DESC")
	rows, err := query.List[contactHitRow](ctx, s.db, append(parts, limitClause(limit))...)
	if err != nil {
		return nil, storageErr(err)
	}
	contacts := make([]models.Contact, len(rows))
	for i, r := range rows {
		contacts[i] = models.Contact(r)
	}
	return contacts, nil
}

// Conversations matches message content within the tenant's sessions
func (s *SearchService) Conversations(ctx context.Context, companyID int64, q string, limit int) ([]ConversationHit, error) {
	term, err := query.SearchTerm(q)
	if err != nil {
		return nil, err
	}
	return s.conversations(ctx, companyID, term, limit)
}

func (s *SearchService) conversations(ctx context.Context, companyID int64, term string, limit int) ([]ConversationHit, error) {
	where := query.NewBuilder(query.Raw("s.company_id = ?", companyID)).
		Contains(term, "m.content")
	parts := query.Select(`m.id AS message_id, s.id AS session_id, s.status AS session_status,
		m.sender, m.content, m.created_at,
		c.id AS contact_id, c.name AS contact_name, c.phone_number AS contact_phone, c.email AS contact_email`,
		"conversations m JOIN sessions s ON s.id = m.session_id JOIN contacts c ON c.id = s.contact_id", where,
		"ORDER BY m.created_at DESC, m.id DESC")
	rows, err := query.List[conversationHitRow](ctx, s.db, append(parts, limitClause(limit))...)
	if err != nil {
		return nil, storageErr(err)
	}
	hits := make([]ConversationHit, len(rows))
	for i, r := range rows {
		hits[i] = r.hit()
	}
	return hits, nil
}

// Leads matches lead metadata and the lead's contact
func (s *SearchService) Leads(ctx context.Context, companyID int64, q string, limit int) ([]LeadView, error) {
	term, err := query.SearchTerm(q)
	if err != nil {
		return nil, err
	}
	return s.leads(ctx, companyID, term, limit)
}

func (s *SearchService) leads(ctx context.Context, companyID int64, term string, limit int) ([]LeadView, error) {
	where := query.NewBuilder(query.Raw("l.company_id = ?", companyID)).
		Contains(term, "c.name", "c.phone_number", "c.email", "l.source", "l.channel", "l.location")
	parts := query.Select(leadColumns, leadFrom, where, "ORDER BY l.created_at DESC, l.id DESC")
	rows, err := query.List[leadRow](ctx, s.db, append(parts, limitClause(limit))...)
	if err != nil {
		return nil, storageErr(err)
	}
	views := make([]LeadView, len(rows))
	for i, r := range rows {
		views[i] = r.view()
	}
	return views, nil
}

// Stock matches brand, model, category or location in the tenant's inventory
func (s *SearchService) Stock(ctx context.Context, companyID int64, q string, limit int) ([]models.StockItem, error) {
	term, err := query.SearchTerm(q)
	if err != nil {
		return nil, err
	}
	return s.stockItems(ctx, companyID, term, limit)
}

func (s *SearchService) stockItems(ctx context.Context, companyID int64, term string, limit int) ([]models.StockItem, error) {
	name, err := s.stock.companyName(ctx, companyID)
	if err != nil {
		return nil, err
	}
	where := query.NewBuilder(query.Raw("st.company_name = ?", name)).
		Contains(term, "st.brand", "st.model", "st.category", "st.location")
	parts := query.Select(stockColumns, "stock st", where, "ORDER BY st.created_at DESC, st.id DESC")
	rows, err := query.List[stockRow](ctx, s.db, append(parts, limitClause(limit))...)
	if err != nil {
		return nil, storageErr(err)
	}
	items := make([]models.StockItem, len(rows))
	for i, r := range rows {
		items[i] = r.item()
	}
	return items, nil
}

// Global runs every search concurrently; any failure fails the whole search
func (s *SearchService) Global(ctx context.Context, companyID int64, q string, limit int) (GlobalResults, error) {
	term, err := query.SearchTerm(q)
	if err != nil {
		return GlobalResults{}, err
	}

	var out GlobalResults
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Contacts, err = s.contacts(gctx, companyID, term, limit)
		return err
	})
	g.Go(func() (err error) {
		out.Conversations, err = s.conversations(gctx, companyID, term, limit)
		return err
	})
	g.Go(func() (err error) {
		out.Leads, err = s.leads(gctx, companyID, term, limit)
		return err
	})
	g.Go(func() (err error) {
		out.Stock, err = s.stockItems(gctx, companyID, term, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return GlobalResults{}, err
	}
	return out, nil
}

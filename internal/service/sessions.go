package service

import (
	"context"
	"time"

	"conversation-analytics/backend/internal/models"
	apperrors "conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/query"

	"gorm.io/gorm"
)

type sessionRow struct {
	ID            int64                `db:"id"`
	CompanyID     int64                `db:"company_id"`
	ContactID     int64                `db:"contact_id"`
	Status        models.SessionStatus `db:"status"`
	LeadsID       *int64               `db:"leads_id"`
	CreatedAt     time.Time            `db:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at"`
	ContactName   *string              `db:"contact_name"`
	ContactPhone  *string              `db:"contact_phone"`
	MessageCount  int64                `db:"message_count"`
	LastMessageAt *time.Time           `db:"last_message_at"`
}

// SessionSummary is a session with light contact and activity details
type SessionSummary struct {
	models.Session
	StatusLabel   string     `json:"status_label"`
	IsActive      bool       `json:"is_active"`
	ContactName   *string    `json:"contact_name"`
	ContactPhone  *string    `json:"contact_phone"`
	MessageCount  int64      `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

func (r sessionRow) view() SessionSummary {
	return SessionSummary{
		Session: models.Session{
			ID:        r.ID,
			CompanyID: r.CompanyID,
			ContactID: r.ContactID,
			Status:    r.Status,
			LeadsID:   r.LeadsID,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
		StatusLabel:   r.Status.String(),
		IsActive:      r.Status.IsActive(),
		ContactName:   r.ContactName,
		ContactPhone:  r.ContactPhone,
		MessageCount:  r.MessageCount,
		LastMessageAt: r.LastMessageAt,
	}
}

// SessionFilter narrows the session list
type SessionFilter struct {
	Status *models.SessionStatus
	Range  DateRange
	Page   query.Page
}

// SessionService lists sessions and applies explicit status transitions
type SessionService struct {
	db  query.Querier
	orm *gorm.DB
}

// NewSessionService creates a session service
func NewSessionService(db query.Querier, orm *gorm.DB) *SessionService {
	return &SessionService{db: db, orm: orm}
}

// List returns the tenant's sessions, newest first
func (s *SessionService) List(ctx context.Context, companyID int64, f SessionFilter) (query.Result[SessionSummary], error) {
	where := query.NewBuilder(query.Raw("s.company_id = ?", companyID))
	query.Eq(where, "s.status", f.Status)
	where.When(!f.Range.From.IsZero(), "s.created_at >= ?", f.Range.From)
	where.When(!f.Range.To.IsZero(), "s.created_at < ?", f.Range.To)

	q := query.PageQuery{
		Columns: query.Expr{SQL: `s.id, s.company_id, s.contact_id, s.status, s.leads_id, s.created_at, s.updated_at,
			c.name AS contact_name, c.phone_number AS contact_phone,
			(SELECT COUNT(*) FROM conversations m WHERE m.session_id = s.id) AS message_count,
			(SELECT MAX(m.created_at) FROM conversations m WHERE m.session_id = s.id) AS last_message_at`},
		From:     query.Expr{SQL: "sessions s JOIN contacts c ON c.id = s.contact_id"},
		Where:    where,
		OrderBy:  "s.created_at DESC, s.id DESC",
		CountKey: "s.id",
	}

	res, err := query.Paginate[sessionRow](ctx, s.db, q, f.Page)
	if err != nil {
		return query.Result[SessionSummary]{}, storageErr(err)
	}
	return query.MapResult(res, sessionRow.view), nil
}

// UpdateStatus sets a session's status. Any of the five states may be set
// from any other; a session outside the tenant is not found.
func (s *SessionService) UpdateStatus(ctx context.Context, companyID, sessionID int64, status models.SessionStatus) (models.Session, error) {
	if !status.Valid() {
		return models.Session{}, apperrors.BadRequestWithDetails(apperrors.CodeInvalidStatus,
			"status must be an integer between 0 and 4", map[string]any{"status": int(status)})
	}

	var session models.Session
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Session{}).
			Where("id = ? AND company_id = ?", sessionID, companyID).
			Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ? AND company_id = ?", sessionID, companyID).First(&session).Error
	})
	if err != nil {
		return models.Session{}, notFound(err, "Session")
	}
	return session, nil
}

package service

import (
	"context"
	"time"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/rollup"
	"conversation-analytics/backend/pkg/query"
)

const leadColumns = `l.id, l.contact_id, l.company_id, l.source, l.channel, l.location, l.created_at,
	c.name AS contact_name, c.phone_number AS contact_phone, c.email AS contact_email,
	lt.id AS transfer_id, lt.session_id AS transfer_session_id, lt.summary AS transfer_summary,
	lt.crm_id, lt.created_at AS transferred_at,
	ld.id AS discard_id, ld.session_id AS discard_session_id, ld.summary AS discard_summary,
	ld.created_at AS discarded_at`

const leadFrom = `leads l
	JOIN contacts c ON c.id = l.contact_id
	LEFT JOIN lead_transfers lt ON lt.lead_id = l.id
	LEFT JOIN lead_discards ld ON ld.lead_id = l.id`

type leadRow struct {
	ID                int64      `db:"id"`
	ContactID         int64      `db:"contact_id"`
	CompanyID         int64      `db:"company_id"`
	Source            *string    `db:"source"`
	Channel           *string    `db:"channel"`
	Location          *string    `db:"location"`
	CreatedAt         time.Time  `db:"created_at"`
	ContactName       *string    `db:"contact_name"`
	ContactPhone      *string    `db:"contact_phone"`
	ContactEmail      *string    `db:"contact_email"`
	TransferID        *int64     `db:"transfer_id"`
	TransferSessionID *int64     `db:"transfer_session_id"`
	TransferSummary   *string    `db:"transfer_summary"`
	CRMID             *string    `db:"crm_id"`
	TransferredAt     *time.Time `db:"transferred_at"`
	DiscardID         *int64     `db:"discard_id"`
	DiscardSessionID  *int64     `db:"discard_session_id"`
	DiscardSummary    *string    `db:"discard_summary"`
	DiscardedAt       *time.Time `db:"discarded_at"`
}

// LeadTransferInfo is the optional transfer extension of a lead
type LeadTransferInfo struct {
	ID        int64     `json:"id"`
	SessionID *int64    `json:"session_id"`
	Summary   *string   `json:"summary"`
	CRMID     *string   `json:"crm_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LeadDiscardInfo is the optional discard extension of a lead
type LeadDiscardInfo struct {
	ID        int64     `json:"id"`
	SessionID *int64    `json:"session_id"`
	Summary   *string   `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// LeadView is a lead with its contact and derived status
type LeadView struct {
	models.Lead
	Contact     ContactRef        `json:"contact"`
	Transferred bool              `json:"transferred"`
	Discarded   bool              `json:"discarded"`
	Status      models.LeadStatus `json:"status"`
	Transfer    *LeadTransferInfo `json:"transfer,omitempty"`
	Discard     *LeadDiscardInfo  `json:"discard,omitempty"`
}

func (r leadRow) view() LeadView {
	transferred, discarded := rollup.LeadFlags(r.TransferID, r.DiscardID)
	v := LeadView{
		Lead: models.Lead{
			ID:        r.ID,
			ContactID: r.ContactID,
			CompanyID: r.CompanyID,
			Source:    r.Source,
			Channel:   r.Channel,
			Location:  r.Location,
			CreatedAt: r.CreatedAt,
		},
		Contact: ContactRef{
			ID:          r.ContactID,
			Name:        r.ContactName,
			PhoneNumber: r.ContactPhone,
			Email:       r.ContactEmail,
		},
		Transferred: transferred,
		Discarded:   discarded,
		Status:      rollup.LeadStatusOf(transferred, discarded),
	}
	if transferred {
		v.Transfer = &LeadTransferInfo{
			ID:        *r.TransferID,
			SessionID: r.TransferSessionID,
			Summary:   r.TransferSummary,
			CRMID:     r.CRMID,
		}
		if r.TransferredAt != nil {
			v.Transfer.CreatedAt = *r.TransferredAt
		}
	}
	if discarded {
		v.Discard = &LeadDiscardInfo{
			ID:        *r.DiscardID,
			SessionID: r.DiscardSessionID,
			Summary:   r.DiscardSummary,
		}
		if r.DiscardedAt != nil {
			v.Discard.CreatedAt = *r.DiscardedAt
		}
	}
	return v
}

// LeadFilter narrows the lead list
type LeadFilter struct {
	Status models.LeadStatus
	Search string
	Range  DateRange
	Page   query.Page
}

// LeadService serves leads with their transfer/discard extensions
type LeadService struct {
	db query.Querier
}

// NewLeadService creates a lead service
func NewLeadService(db query.Querier) *LeadService {
	return &LeadService{db: db}
}

// List returns the tenant's leads. Transferred and discarded lists are
// ordered by the time of that event, the rest by lead creation.
func (s *LeadService) List(ctx context.Context, companyID int64, f LeadFilter) (query.Result[LeadView], error) {
	where := query.NewBuilder(query.Raw("l.company_id = ?", companyID))
	orderBy := "l.created_at DESC, l.id DESC"
	switch f.Status {
	case models.LeadTransferred:
		where.Where("lt.id IS NOT NULL")
		orderBy = "lt.created_at DESC, l.id DESC"
	case models.LeadDiscarded:
		where.Where("ld.id IS NOT NULL")
		orderBy = "ld.created_at DESC, l.id DESC"
	case models.LeadPending:
		where.Where("lt.id IS NULL AND ld.id IS NULL")
	}
	where.Contains(f.Search, "c.name", "c.phone_number", "c.email", "l.source", "l.channel", "l.location")
	where.When(!f.Range.From.IsZero(), "l.created_at >= ?", f.Range.From)
	where.When(!f.Range.To.IsZero(), "l.created_at < ?", f.Range.To)

	q := query.PageQuery{
		Columns:  query.Expr{SQL: leadColumns},
		From:     query.Expr{SQL: leadFrom},
		Where:    where,
		OrderBy:  orderBy,
		CountKey: "l.id",
	}

	res, err := query.Paginate[leadRow](ctx, s.db, q, f.Page)
	if err != nil {
		return query.Result[LeadView]{}, storageErr(err)
	}
	return query.MapResult(res, leadRow.view), nil
}

// Get returns one lead of the tenant
func (s *LeadService) Get(ctx context.Context, companyID, leadID int64) (LeadView, error) {
	where := query.NewBuilder(
		query.Raw("l.company_id = ?", companyID),
		query.Raw("l.id = ?", leadID),
	)
	row, err := query.One[leadRow](ctx, s.db, query.Select(leadColumns, leadFrom, where)...)
	if err != nil {
		return LeadView{}, notFound(err, "Lead")
	}
	return row.view(), nil
}

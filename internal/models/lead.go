package models

import "time"

// Lead is a sales-qualification record for a contact within a company
type Lead struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	ContactID int64     `json:"contact_id" gorm:"index"`
	CompanyID int64     `json:"company_id" gorm:"index"`
	Source    *string   `json:"source"`
	Channel   *string   `json:"channel"`
	Location  *string   `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (Lead) TableName() string {
	return "leads"
}

// LeadTransfer records a lead handed over to a CRM
type LeadTransfer struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	LeadID    int64     `json:"lead_id" gorm:"uniqueIndex"`
	SessionID *int64    `json:"session_id"`
	Summary   *string   `json:"summary"`
	CRMID     *string   `json:"crm_id" gorm:"column:crm_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (LeadTransfer) TableName() string {
	return "lead_transfers"
}

// LeadDiscard records a lead that was dropped
type LeadDiscard struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	LeadID    int64     `json:"lead_id" gorm:"uniqueIndex"`
	SessionID *int64    `json:"session_id"`
	Summary   *string   `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (LeadDiscard) TableName() string {
	return "lead_discards"
}

// LeadStatus is derived from the optional transfer and discard records
type LeadStatus string

const (
	LeadTransferred LeadStatus = "transferred"
	LeadDiscarded   LeadStatus = "discarded"
	LeadPending     LeadStatus = "pending"
)

// ParseLeadStatus accepts the three filter values
func ParseLeadStatus(s string) (LeadStatus, bool) {
	switch LeadStatus(s) {
	case LeadTransferred, LeadDiscarded, LeadPending:
		return LeadStatus(s), true
	}
	return "", false
}

package models

import (
	"fmt"
	"time"
)

// SessionStatus is the qualification state of a conversation thread.
// Transitions are caller driven; any state may be set explicitly.
type SessionStatus int

const (
	SessionNew SessionStatus = iota
	SessionActive
	SessionQualifying
	SessionCompleted
	SessionAbandoned
)

var sessionStatusNames = [...]string{"new", "active", "qualifying", "completed", "abandoned"}

// Valid reports whether s is one of the five known states
func (s SessionStatus) Valid() bool {
	return s >= SessionNew && s <= SessionAbandoned
}

// IsActive reports whether the conversation is still open (new, active or qualifying)
func (s SessionStatus) IsActive() bool {
	return s >= SessionNew && s <= SessionQualifying
}

func (s SessionStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("SessionStatus(%d)", int(s))
	}
	return sessionStatusNames[s]
}

// ActiveSessionStatuses lists the states counted as active
var ActiveSessionStatuses = []SessionStatus{SessionNew, SessionActive, SessionQualifying}

// Session is a conversation thread between a contact and a company
type Session struct {
	ID        int64         `json:"id" gorm:"primaryKey"`
	CompanyID int64         `json:"company_id" gorm:"index;not null"`
	ContactID int64         `json:"contact_id" gorm:"index;not null"`
	Status    SessionStatus `json:"status"`
	LeadsID   *int64        `json:"leads_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TableName overrides the table name
func (Session) TableName() string {
	return "sessions"
}

package models

import "time"

// KnowledgeEntry is a key/value fact captured during a session
type KnowledgeEntry struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	ContactID int64     `json:"contact_id"`
	SessionID int64     `json:"session_id" gorm:"index"`
	CompanyID int64     `json:"company_id" gorm:"index"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (KnowledgeEntry) TableName() string {
	return "knowledge"
}

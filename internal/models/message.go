package models

import "time"

// Sender identifies which side wrote a message
type Sender int

const (
	// SenderContact is an inbound message from the customer
	SenderContact Sender = iota
	// SenderAgent is an outbound message from the company side
	SenderAgent
)

func (s Sender) String() string {
	switch s {
	case SenderContact:
		return "contact"
	case SenderAgent:
		return "agent"
	}
	return "unknown"
}

// Message is one line of a session, stored in the conversations table
type Message struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	SessionID  int64     `json:"session_id" gorm:"index;not null"`
	Sender     Sender    `json:"sender"`
	Content    string    `json:"content"`
	ExternalID *string   `json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName overrides the table name
func (Message) TableName() string {
	return "conversations"
}

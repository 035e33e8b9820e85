package service

import (
	"time"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/rollup"
	apperrors "conversation-analytics/backend/pkg/errors"
)

// summaryLength bounds message previews in list views
const summaryLength = 120

// storageErr maps a storage failure onto the application taxonomy
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.FromStorage(err)
}

// notFound wraps a storage error, replacing a missing row with a resource-specific message
func notFound(err error, resource string) error {
	appErr := apperrors.FromStorage(err)
	if appErr.Code == apperrors.CodeNotFound {
		return apperrors.NewNotFoundError(apperrors.CodeNotFound, resource+" not found").WithCause(err)
	}
	return appErr
}

// DateRange is a half-open [From, To) interval
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether no bound is set
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// ContactRef is the contact embedded in other views
type ContactRef struct {
	ID          int64   `json:"id"`
	Name        *string `json:"name"`
	PhoneNumber *string `json:"phone_number"`
	Email       *string `json:"email"`
}

// MessagePreview is the latest message of a session or contact
type MessagePreview struct {
	ID        int64         `json:"id,omitempty"`
	Sender    models.Sender `json:"sender"`
	Summary   string        `json:"summary"`
	CreatedAt time.Time     `json:"created_at"`
}

func preview(id *int64, sender *models.Sender, content *string, at *time.Time) *MessagePreview {
	if at == nil || content == nil {
		return nil
	}
	p := &MessagePreview{Summary: rollup.Summary(*content, summaryLength), CreatedAt: *at}
	if id != nil {
		p.ID = *id
	}
	if sender != nil {
		p.Sender = *sender
	}
	return p
}

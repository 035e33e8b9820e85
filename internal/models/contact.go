package models

import "time"

// Contact is a customer. Contacts are shared across tenants through
// contact_companies and are never owned by a single company.
type Contact struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Name        *string   `json:"name"`
	PhoneNumber *string   `json:"phone_number"`
	Email       *string   `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName overrides the table name
func (Contact) TableName() string {
	return "contacts"
}

// ContactCompany links a contact to a tenant
type ContactCompany struct {
	ContactID int64 `gorm:"primaryKey"`
	CompanyID int64 `gorm:"primaryKey"`
}

// TableName overrides the table name
func (ContactCompany) TableName() string {
	return "contact_companies"
}

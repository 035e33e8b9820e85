package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Company is a tenant. Every tenant-scoped read filters by its id, except
// stock which is matched on Name.
type Company struct {
	ID         int64          `json:"id" gorm:"primaryKey"`
	Name       string         `json:"name" gorm:"uniqueIndex;not null"`
	Context    string         `json:"context"`
	DealerInfo datatypes.JSON `json:"dealer_info" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TableName overrides the table name
func (Company) TableName() string {
	return "companies"
}

// BeforeSave normalises the name and defaults dealer info to an empty object
func (c *Company) BeforeSave(tx *gorm.DB) error {
	c.Name = strings.TrimSpace(c.Name)
	if len(c.DealerInfo) == 0 {
		c.DealerInfo = datatypes.JSON(`{}`)
	}
	return nil
}

// CompanyDependents counts the rows that block deleting a company
type CompanyDependents struct {
	Contacts int64 `json:"contacts"`
	Sessions int64 `json:"sessions"`
	Leads    int64 `json:"leads"`
}

// Any reports whether at least one dependent row exists
func (d CompanyDependents) Any() bool {
	return d.Contacts > 0 || d.Sessions > 0 || d.Leads > 0
}

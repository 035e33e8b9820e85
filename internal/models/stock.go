package models

import (
	"time"

	"gorm.io/datatypes"
)

// StockItem is an inventory vehicle. It is scoped by company name rather
// than id.
type StockItem struct {
	ID           int64          `json:"id" gorm:"primaryKey"`
	CompanyName  string         `json:"company_name" gorm:"index"`
	Brand        *string        `json:"brand"`
	Model        *string        `json:"model"`
	Year         *int           `json:"year"`
	Price        *float64       `json:"price"`
	Mileage      *float64       `json:"mileage"`
	Category     *string        `json:"category"`
	FuelType     *string        `json:"fuel_type"`
	Transmission *string        `json:"transmission"`
	Location     *string        `json:"location"`
	MediaURLs    datatypes.JSON `json:"media_urls" gorm:"column:media_urls;type:jsonb"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName overrides the table name
func (StockItem) TableName() string {
	return "stock"
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Service is an entry of the agency's service catalog
type Service struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VATPercent  decimal.Decimal `json:"vat_percent"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ServiceRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	VATPercent  *decimal.Decimal `json:"vat_percent"`
	Active      *bool            `json:"active"`
}

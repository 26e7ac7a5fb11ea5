package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceOrigin string

const (
	// InvoiceFromBudget invoices come from confirming a budget; their source rows are deleted
	InvoiceFromBudget InvoiceOrigin = "budget"
	// InvoiceDirect invoices stamp their source rows with the invoice id and keep them
	InvoiceDirect InvoiceOrigin = "direct"
)

type Invoice struct {
	ID        int             `json:"id"`
	ProjectID int             `json:"project_id"`
	BudgetID  *int            `json:"budget_id"`
	Number    string          `json:"number"`
	Origin    InvoiceOrigin   `json:"origin"`
	Items     []LineItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	VAT       decimal.Decimal `json:"vat"`
	Total     decimal.Decimal `json:"total"`
	IssuedAt  time.Time       `json:"issued_at"`
	CreatedBy *int            `json:"created_by"`
}

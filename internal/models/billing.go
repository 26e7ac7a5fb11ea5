package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BudgetStatus string

const (
	BudgetPending   BudgetStatus = "pending"
	BudgetConfirmed BudgetStatus = "confirmado"
	BudgetDenied    BudgetStatus = "denegado"
)

type LineSource string

const (
	SourceService LineSource = "service"
	SourceManual  LineSource = "manual"
)

// ProjectService is a catalog service attached to a project with its own price, quantity and VAT
type ProjectService struct {
	ID          int             `json:"id"`
	ProjectID   int             `json:"project_id"`
	ServiceID   int             `json:"service_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	VATPercent  decimal.Decimal `json:"vat_percent"`
	InvoiceID   *int            `json:"invoice_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Locked reports whether the row has been invoiced and is read-only
func (s *ProjectService) Locked() bool {
	return s.InvoiceID != nil
}

// BudgetLine is an ad-hoc billable line on a project
type BudgetLine struct {
	ID          int             `json:"id"`
	ProjectID   int             `json:"project_id"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	VATPercent  decimal.Decimal `json:"vat_percent"`
	InvoiceID   *int            `json:"invoice_id"`
	CreatedBy   *int            `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (l *BudgetLine) Locked() bool {
	return l.InvoiceID != nil
}

// LineItem is one frozen row of a budget or invoice snapshot
type LineItem struct {
	Source      LineSource      `json:"source"`
	SourceID    int             `json:"source_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VATPercent  decimal.Decimal `json:"vat_percent"`
	Base        decimal.Decimal `json:"base"`
	VATAmount   decimal.Decimal `json:"vat_amount"`
	Total       decimal.Decimal `json:"total"`
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	VAT      decimal.Decimal `json:"vat"`
	Total    decimal.Decimal `json:"total"`
}

// Budget is an immutable snapshot of a project's unbilled lines
type Budget struct {
	ID        int             `json:"id"`
	ProjectID int             `json:"project_id"`
	Number    string          `json:"number"`
	Status    BudgetStatus    `json:"status"`
	Items     []LineItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	VAT       decimal.Decimal `json:"vat"`
	Total     decimal.Decimal `json:"total"`
	CreatedBy *int            `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
	DecidedBy *int            `json:"decided_by"`
	DecidedAt *time.Time      `json:"decided_at"`
}

// ProjectLines is the draft side of a project's billing
type ProjectLines struct {
	Services      []*ProjectService `json:"services"`
	BudgetLines   []*BudgetLine     `json:"budget_lines"`
	PendingBudget *Budget           `json:"pending_budget"`
	Draft         Totals            `json:"draft_totals"`
}

type AddProjectServiceRequest struct {
	ServiceID  int              `json:"service_id"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
	Quantity   *decimal.Decimal `json:"quantity"`
	VATPercent *decimal.Decimal `json:"vat_percent"`
}

type UpdateProjectServiceRequest struct {
	Description *string          `json:"description"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	Quantity    *decimal.Decimal `json:"quantity"`
	VATPercent  *decimal.Decimal `json:"vat_percent"`
}

type BudgetLineRequest struct {
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	VATPercent  decimal.Decimal `json:"vat_percent"`
}

type GenerateBudgetRequest struct {
	// ReplacePending denies the current pending budget before generating a new one
	ReplacePending bool `json:"replace_pending"`
}

type DirectInvoiceRequest struct {
	ServiceIDs    []int `json:"service_ids"`
	BudgetLineIDs []int `json:"budget_line_ids"`
}

// BillingSummary is computed on every read and never stored
type BillingSummary struct {
	ProjectID     int             `json:"project_id"`
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Remaining     decimal.Decimal `json:"remaining"`
	PaidInFull    bool            `json:"paid_in_full"`
	InvoiceCount  int             `json:"invoice_count"`
	PaymentCount  int             `json:"payment_count"`
	PendingBudget *Budget         `json:"pending_budget"`
}

// BudgetResult is returned after generating a budget. DocumentError is set when the
// snapshot was stored but its PDF could not be archived.
type BudgetResult struct {
	Budget        *Budget      `json:"budget"`
	Denied        *Budget      `json:"denied,omitempty"`
	File          *ProjectFile `json:"file"`
	DocumentError string       `json:"document_error,omitempty"`
}

type InvoiceResult struct {
	Budget        *Budget      `json:"budget,omitempty"`
	Invoice       *Invoice     `json:"invoice"`
	File          *ProjectFile `json:"file"`
	DocumentError string       `json:"document_error,omitempty"`
}

type PaymentResult struct {
	Payment       *Payment        `json:"payment"`
	Summary       *BillingSummary `json:"summary"`
	File          *ProjectFile    `json:"file"`
	DocumentError string          `json:"document_error,omitempty"`
}

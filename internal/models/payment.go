package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentMobile       PaymentMethod = "mobile_pay"
	PaymentOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentBankTransfer, PaymentMobile, PaymentOther:
		return true
	}
	return false
}

// Label is the human-readable method printed on receipts
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentCash:
		return "Cash"
	case PaymentCard:
		return "Card"
	case PaymentBankTransfer:
		return "Bank transfer"
	case PaymentMobile:
		return "Mobile payment"
	default:
		return "Other"
	}
}

// Payment is a receipt against the project's invoiced total, not matched to lines
type Payment struct {
	ID          int             `json:"id"`
	ProjectID   int             `json:"project_id"`
	Number      string          `json:"number"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method"`
	Note        string          `json:"note"`
	ExternalRef string          `json:"external_ref,omitempty"`
	ReceivedAt  time.Time       `json:"received_at"`
	CreatedBy   *int            `json:"created_by"`

	// InvoicedToDate is the project's invoiced total when the payment was registered
	InvoicedToDate decimal.Decimal `json:"invoiced_to_date"`
}

type RegisterPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method PaymentMethod   `json:"method"`
	Note   string          `json:"note"`
	// ExternalRef is the gateway payment id for online payments
	ExternalRef string `json:"-"`
}

type OnlineOrder struct {
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	AmountMin int64           `json:"amount_minor"`
	Currency  string          `json:"currency"`
	KeyID     string          `json:"key_id"`
	ProjectID int             `json:"project_id"`
}

type VerifyOnlinePaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

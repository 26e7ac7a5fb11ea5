package billing

import "errors"

var (
	ErrLineLocked          = errors.New("line has been invoiced and can no longer change")
	ErrBudgetPending       = errors.New("project has a pending budget; confirm or deny it first")
	ErrPendingBudgetExists = errors.New("a pending budget already exists; generating a new one will deny it")
	ErrBudgetNotPending    = errors.New("budget is no longer pending")
	ErrNothingToBill       = errors.New("no unbilled lines to include")
	ErrNoInvoices          = errors.New("project has no invoices to apply a payment against")
	ErrInvalidAmount       = errors.New("payment amount must be greater than zero")
	ErrInvalidMethod       = errors.New("unknown payment method")
	ErrInvalidLine         = errors.New("invalid line")
	ErrWrongProject        = errors.New("line does not belong to this project")
	ErrActionInProgress    = errors.New("another billing action is in progress for this project")
)

package services

import (
	"errors"
	"fmt"

	"agency-crm/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrLoginTimeout       = errors.New("login timed out, please try again")
	ErrSelfAction         = errors.New("this action cannot be applied to your own account")

	ErrAliasLocked   = errors.New("alias cannot change once the project has budgets, invoices or payments")
	ErrProjectBilled = errors.New("project has budgets, invoices or payments and cannot be deleted")

	ErrNoTOTPSecret       = errors.New("2FA setup not initiated")
	ErrInvalidTOTPCode    = errors.New("invalid verification code")
	ErrTOTPNotEnabled     = errors.New("2FA is not enabled")
	ErrTOTPAlreadyEnabled = errors.New("2FA is already enabled")

	ErrOnlinePaymentsDisabled = errors.New("online payments are not configured")
	ErrInvalidSignature       = errors.New("invalid payment signature")
	ErrNothingToPay           = errors.New("project has no outstanding balance")
)

// invalid wraps models.ErrInvalidInput with the field-level reason
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

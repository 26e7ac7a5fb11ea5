package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"agency-crm/internal/billing"
	"agency-crm/internal/middleware"
	"agency-crm/internal/models"
	"agency-crm/internal/services"
	"agency-crm/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// statusFor maps domain errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, billing.ErrWrongProject):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict),
		errors.Is(err, billing.ErrLineLocked),
		errors.Is(err, billing.ErrBudgetPending),
		errors.Is(err, billing.ErrPendingBudgetExists),
		errors.Is(err, billing.ErrBudgetNotPending),
		errors.Is(err, billing.ErrActionInProgress),
		errors.Is(err, services.ErrSelfAction),
		errors.Is(err, services.ErrAliasLocked),
		errors.Is(err, services.ErrProjectBilled),
		errors.Is(err, services.ErrTOTPAlreadyEnabled):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, billing.ErrNothingToBill),
		errors.Is(err, billing.ErrNoInvoices),
		errors.Is(err, billing.ErrInvalidAmount),
		errors.Is(err, billing.ErrInvalidMethod),
		errors.Is(err, billing.ErrInvalidLine),
		errors.Is(err, services.ErrNothingToPay),
		errors.Is(err, services.ErrInvalidSignature),
		errors.Is(err, services.ErrNoTOTPSecret),
		errors.Is(err, services.ErrInvalidTOTPCode),
		errors.Is(err, services.ErrTOTPNotEnabled):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, services.ErrLoginTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrOnlinePaymentsDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError sends err as a JSON error. Internal errors are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", middleware.GetRequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		utils.Error(w, status, "internal server error")
		return
	}
	utils.Error(w, status, err.Error())
}

// pathID reads a positive integer route variable
func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", models.ErrInvalidInput, name)
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", models.ErrInvalidInput)
	}
	return nil
}

// queryInt reads an optional integer query parameter
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", models.ErrInvalidInput, name)
	}
	return &n, nil
}

func writePDF(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"agency-crm/internal/billing"
	"agency-crm/internal/models"
	"agency-crm/internal/services"
	"agency-crm/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("get project: %w", models.ErrNotFound), http.StatusNotFound},
		{billing.ErrWrongProject, http.StatusNotFound},
		{models.ErrConflict, http.StatusConflict},
		{billing.ErrLineLocked, http.StatusConflict},
		{billing.ErrPendingBudgetExists, http.StatusConflict},
		{billing.ErrActionInProgress, http.StatusConflict},
		{services.ErrSelfAction, http.StatusConflict},
		{services.ErrAliasLocked, http.StatusConflict},
		{services.ErrProjectBilled, http.StatusConflict},
		{fmt.Errorf("%w: name is required", models.ErrInvalidInput), http.StatusBadRequest},
		{billing.ErrNothingToBill, http.StatusBadRequest},
		{billing.ErrInvalidAmount, http.StatusBadRequest},
		{services.ErrInvalidTOTPCode, http.StatusBadRequest},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrAccountDisabled, http.StatusForbidden},
		{services.ErrLoginTimeout, http.StatusGatewayTimeout},
		{services.ErrOnlinePaymentsDisabled, http.StatusServiceUnavailable},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)

	rec := httptest.NewRecorder()
	writeError(rec, req, errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body utils.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)

	rec = httptest.NewRecorder()
	writeError(rec, req, billing.ErrLineLocked)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, billing.ErrLineLocked.Error(), body.Error)
}

func TestPathID(t *testing.T) {
	for _, tc := range []struct {
		raw string
		ok  bool
	}{{"12", true}, {"0", false}, {"-3", false}, {"abc", false}} {
		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": tc.raw})
		id, err := pathID(req, "id")
		if tc.ok {
			require.NoError(t, err)
			assert.Equal(t, 12, id)
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidInput, tc.raw)
		}
	}
}

func TestWritePDF(t *testing.T) {
	rec := httptest.NewRecorder()
	writePDF(rec, "Invoice_WEB_F-WEB-0001_2026-03-01.pdf", []byte("%PDF-1.3"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Invoice_WEB_F-WEB-0001_2026-03-01.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "8", rec.Header().Get("Content-Length"))
}

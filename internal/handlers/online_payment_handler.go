package handlers

import (
	"net/http"

	"agency-crm/internal/middleware"
	"agency-crm/internal/models"
	"agency-crm/internal/services"
	"agency-crm/pkg/utils"
)

type OnlinePaymentHandler struct {
	Service *services.OnlinePaymentService
}

func NewOnlinePaymentHandler(s *services.OnlinePaymentService) *OnlinePaymentHandler {
	return &OnlinePaymentHandler{Service: s}
}

// Status tells the front end whether to offer the online checkout
func (h *OnlinePaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"enabled":  h.Service.Enabled(),
		"key_id":   h.Service.KeyID,
		"currency": h.Service.Currency,
	})
}

func (h *OnlinePaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	order, err := h.Service.CreateOrder(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, order)
}

func (h *OnlinePaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.VerifyOnlinePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	res, err := h.Service.Verify(r.Context(), projectID, &req, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

package handlers

import (
	"net/http"

	"agency-crm/internal/middleware"
	"agency-crm/internal/models"
	"agency-crm/internal/services"
	"agency-crm/pkg/utils"

	"github.com/gorilla/mux"
)

type PreferenceHandler struct {
	Service *services.PreferenceService
}

func NewPreferenceHandler(s *services.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{Service: s}
}

func (h *PreferenceHandler) GetColumns(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	pref, err := h.Service.Columns(r.Context(), userID, mux.Vars(r)["table"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, pref)
}

func (h *PreferenceHandler) SaveColumns(w http.ResponseWriter, r *http.Request) {
	var req models.ColumnPreferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	pref, err := h.Service.SaveColumns(r.Context(), userID, mux.Vars(r)["table"], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, pref)
}

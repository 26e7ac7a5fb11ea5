package handlers

import (
	"net/http"

	"agency-crm/internal/services"
	"agency-crm/pkg/utils"
)

type CalendarHandler struct {
	Service *services.CalendarService
}

func NewCalendarHandler(s *services.CalendarService) *CalendarHandler {
	return &CalendarHandler{Service: s}
}

// Events serves GET /api/calendar?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *CalendarHandler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.Service.Events(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, events)
}

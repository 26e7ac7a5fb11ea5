package handlers

import (
	"net/http"

	"agency-crm/internal/middleware"
	"agency-crm/internal/models"
	"agency-crm/internal/repositories"
	"agency-crm/internal/services"
	"agency-crm/pkg/utils"
)

type LeadHandler struct {
	Service *services.LeadService
}

func NewLeadHandler(s *services.LeadService) *LeadHandler {
	return &LeadHandler{Service: s}
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	assigned, err := queryInt(r, "assigned_to")
	if err != nil {
		writeError(w, r, err)
		return
	}

	leads, err := h.Service.List(r.Context(), repositories.LeadFilter{
		Status:     r.URL.Query().Get("status"),
		AssignedTo: assigned,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, leads)
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.LeadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	lead, err := h.Service.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, lead)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	lead, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.LeadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	lead, err := h.Service.Update(r.Context(), id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Convert turns the lead into a project and returns the project
func (h *LeadHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.ConvertLeadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	project, err := h.Service.Convert(r.Context(), id, &req, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, project)
}

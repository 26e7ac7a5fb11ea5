package handlers

import (
	"net/http"

	"agency-crm/internal/health"
	"agency-crm/pkg/utils"
)

type HealthHandler struct {
	checker *health.HealthChecker
}

func NewHealthHandler(checker *health.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// BasicHealth is 503 only when the database is unreachable
func (h *HealthHandler) BasicHealth(w http.ResponseWriter, r *http.Request) {
	status := h.checker.CheckBasic(r.Context())
	utils.JSON(w, statusCode(status), status)
}

// DetailedHealth adds object storage and host stats
func (h *HealthHandler) DetailedHealth(w http.ResponseWriter, r *http.Request) {
	status := h.checker.CheckDetailed(r.Context())
	utils.JSON(w, statusCode(status), status)
}

func statusCode(s health.HealthStatus) int {
	if s.Status == "unhealthy" {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

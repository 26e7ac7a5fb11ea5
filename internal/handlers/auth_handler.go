package handlers

import (
	"context"
	"net/http"

	"agency-crm/internal/cache"
	"agency-crm/internal/middleware"
	"agency-crm/internal/models"
	"agency-crm/internal/services"
	"agency-crm/pkg/utils"
)

type AuthHandler struct {
	Service *services.UserService
}

func NewAuthHandler(s *services.UserService) *AuthHandler {
	return &AuthHandler{Service: s}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

// Verify2FA completes the second login step with a TOTP code
func (h *AuthHandler) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req models.TOTPVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Service.VerifyLogin2FA(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		utils.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	utils.JSON(w, http.StatusOK, h.Service.Session(r.Context(), claims))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.GetClaimsFromContext(r.Context()); ok {
		h.Service.Logout(r.Context(), claims)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================
// 2FA management for the signed-in user
// ============================================

func (h *AuthHandler) SetupTOTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	res, err := h.Service.TOTP.GenerateSetup(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *AuthHandler) EnableTOTP(w http.ResponseWriter, r *http.Request) {
	h.totpCode(w, r, h.Service.TOTP.Enable)
}

func (h *AuthHandler) DisableTOTP(w http.ResponseWriter, r *http.Request) {
	h.totpCode(w, r, h.Service.TOTP.Disable)
}

func (h *AuthHandler) totpCode(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID int, code string) error) {
	var req models.TOTPCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	if err := apply(r.Context(), userID, req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	cache.InvalidateProfile(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

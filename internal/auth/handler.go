package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sebuszqo/SledHockey/internal/admin"
)

type Handler struct {
	authService  Service
	respondJSON  func(w http.ResponseWriter, status int, payload interface{})
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string)
}

func NewHandler(
	authService Service,
	respondJSON func(w http.ResponseWriter, status int, payload interface{}),
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string),
) *Handler {
	if authService == nil || respondJSON == nil || respondError == nil {
		panic("Service and response functions must not be nil")
	}
	return &Handler{
		authService:  authService,
		respondJSON:  respondJSON,
		respondError: respondError,
	}
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmailOrLogin string `json:"email_or_login"`
		Password     string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EmailOrLogin == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.authService.Login(r.Context(), req.EmailOrLogin, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if result.TwoFactorRequired() {
		h.respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "success",
			"message": "Two-factor authentication required",
			"data": map[string]string{
				"session_token": result.SessionToken,
			},
		})
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]string{
			"access_token": result.AccessToken,
		},
	})
}

func (h *Handler) HandleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string `json:"session_token"`
		Code         string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionToken == "" || req.Code == "" {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	accessToken, err := h.authService.VerifyTwoFactor(r.Context(), req.SessionToken, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSessionToken), errors.Is(err, ErrExpiredSessionToken), errors.Is(err, ErrInvalid2FACode):
			h.respondError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, ErrTwoFactorNotEnabled), errors.Is(err, admin.ErrAdminNotFound):
			h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			h.respondError(w, http.StatusInternalServerError, "Could not verify two-factor authentication")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]string{
			"access_token": accessToken,
		},
	})
}

func (h *Handler) HandleRegisterTwoFactor(w http.ResponseWriter, r *http.Request) {
	adminID, ok := AdminIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	otpURI, err := h.authService.RegisterTwoFactor(r.Context(), adminID)
	if err != nil {
		if errors.Is(err, ErrTwoFactorAlreadyEnabled) {
			h.respondError(w, http.StatusConflict, "Two-factor authentication is already enabled")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Could not register two-factor authentication")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Two-factor authentication initiated. Please verify to enable.",
		"data": map[string]string{
			"otp_uri": otpURI,
		},
	})
}

func (h *Handler) HandleVerifyTwoFactorRegistration(w http.ResponseWriter, r *http.Request) {
	adminID, ok := AdminIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	code, ok := decodeCode(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.authService.VerifyTwoFactorRegistration(r.Context(), adminID, code)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalid2FACode):
			h.respondError(w, http.StatusUnauthorized, "Invalid 2fa code")
		case errors.Is(err, ErrTwoFactorAlreadyEnabled):
			h.respondError(w, http.StatusConflict, "Two-factor authentication is already enabled")
		case errors.Is(err, ErrTwoFactorNotRegistered):
			h.respondError(w, http.StatusBadRequest, "Two-factor authentication has not been registered")
		default:
			h.respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Two-factor authentication enabled",
	})
}

func (h *Handler) HandleDisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	adminID, ok := AdminIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	code, ok := decodeCode(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.authService.DisableTwoFactor(r.Context(), adminID, code)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalid2FACode):
			h.respondError(w, http.StatusUnauthorized, "Invalid 2fa code")
		case errors.Is(err, ErrTwoFactorNotEnabled):
			h.respondError(w, http.StatusBadRequest, "Two-factor authentication is not enabled")
		default:
			h.respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Two-factor authentication disabled",
	})
}

func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	adminID, ok := AdminIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	profile, err := h.authService.Profile(r.Context(), adminID)
	if err != nil {
		if errors.Is(err, admin.ErrAdminNotFound) {
			h.respondError(w, http.StatusNotFound, "Admin not found")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   profile,
	})
}

func decodeCode(r *http.Request) (string, bool) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		return "", false
	}
	return req.Code, true
}

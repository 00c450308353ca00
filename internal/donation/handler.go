package donation

import (
	"encoding/json"
	"errors"
	"github.com/sebuszqo/SledHockey/internal/config"
	"github.com/sebuszqo/SledHockey/internal/logging"
	"github.com/sebuszqo/SledHockey/internal/payment"
	"github.com/sebuszqo/SledHockey/internal/validation"
	log "github.com/sirupsen/logrus"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	maxRequestBody = 16 << 10
	maxWebhookBody = 64 << 10
)

// ClientSettings is what the donation form needs before it can render.
type ClientSettings struct {
	PublishableKey   string            `json:"publishableKey"`
	Currency         string            `json:"currency"`
	Presets          []float64         `json:"presets"`
	DefaultPreset    float64           `json:"defaultPreset"`
	DefaultRecurring bool              `json:"defaultRecurring"`
	MaxAmount        float64           `json:"maxAmount"`
	Appearance       config.Appearance `json:"appearance"`
}

type Handler struct {
	service      Service
	settings     ClientSettings
	respondJSON  func(w http.ResponseWriter, status int, payload interface{})
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string)
}

func NewHandler(
	service Service,
	settings ClientSettings,
	respondJSON func(w http.ResponseWriter, status int, payload interface{}),
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string),
) *Handler {
	if service == nil || respondJSON == nil || respondError == nil {
		panic("Service and response functions must not be nil")
	}
	return &Handler{
		service:      service,
		settings:     settings,
		respondJSON:  respondJSON,
		respondError: respondError,
	}
}

// functionError is the {error} body the donation form renders verbatim.
func (h *Handler) functionError(w http.ResponseWriter, status int, message string, fields ...map[string]string) {
	payload := map[string]interface{}{"error": message}
	if len(fields) > 0 && len(fields[0]) > 0 {
		payload["fields"] = fields[0]
	}
	h.respondJSON(w, status, payload)
}

func (h *Handler) CreateDonationPayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.functionError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.service.CreatePayment(r.Context(), req)
	if err != nil {
		var validationErrs *validation.Errors
		var fieldErr *validation.Error
		var gatewayErr *payment.Error
		switch {
		case errors.As(err, &validationErrs):
			h.functionError(w, http.StatusBadRequest, strings.Join(validationErrs.Messages(), "; "), validationErrs.Fields())
		case errors.As(err, &fieldErr):
			h.functionError(w, http.StatusBadRequest, fieldErr.Msg, map[string]string{fieldErr.Field: fieldErr.Msg})
		case errors.As(err, &gatewayErr):
			h.functionError(w, gatewayStatus(gatewayErr, http.StatusBadRequest), gatewayErr.Message)
		case errors.Is(err, ErrPaymentUnavailable):
			h.functionError(w, http.StatusBadGateway, "Failed to create payment")
		default:
			logging.Component("donation").WithError(err).Error("create donation payment")
			h.functionError(w, http.StatusInternalServerError, "Failed to create payment")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, session)
}

type intentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

type cancelRequest struct {
	ClientSecret string `json:"clientSecret"`
}

func (h *Handler) ConfirmPaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.functionError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status, err := h.service.ConfirmPaymentStatus(r.Context(), req.PaymentIntentID)
	if err != nil {
		h.intentError(w, err, "Failed to confirm payment status")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"status": status})
}

func (h *Handler) CancelDonationPayment(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.functionError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.CancelPayment(r.Context(), req.ClientSecret); err != nil {
		h.intentError(w, err, "Failed to cancel payment")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"status": StatusCanceled})
}

func (h *Handler) intentError(w http.ResponseWriter, err error, fallback string) {
	var gatewayErr *payment.Error
	switch {
	case errors.Is(err, ErrInvalidIntentID):
		h.functionError(w, http.StatusBadRequest, "Invalid payment intent id")
	case errors.Is(err, ErrDonationNotFound):
		h.functionError(w, http.StatusNotFound, "Donation not found")
	case errors.Is(err, ErrAlreadyFinalized):
		h.functionError(w, http.StatusConflict, "Donation is already finalized")
	case errors.Is(err, ErrClientSecretMismatch):
		h.functionError(w, http.StatusForbidden, "Payment does not belong to this session")
	case errors.As(err, &gatewayErr):
		h.functionError(w, gatewayStatus(gatewayErr, http.StatusBadGateway), gatewayErr.Message)
	default:
		logging.Component("donation").WithError(err).Error(fallback)
		h.functionError(w, http.StatusInternalServerError, fallback)
	}
}

// gatewayStatus maps a processor error to the status the donor sees. Card
// errors are 402 and processor outages are 502.
func gatewayStatus(err *payment.Error, fallback int) int {
	status := fallback
	switch {
	case err.Card:
		status = http.StatusPaymentRequired
	case err.StatusCode == http.StatusNotFound:
		status = http.StatusNotFound
	case err.StatusCode == http.StatusTooManyRequests || err.StatusCode >= 500:
		status = http.StatusBadGateway
	}
	logging.Component("donation").WithFields(log.Fields{
		"op":          err.Op,
		"status_code": err.StatusCode,
		"card":        err.Card,
	}).Warn(err.Message)
	return status
}

func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.functionError(w, http.StatusRequestEntityTooLarge, "Webhook payload too large")
		return
	}

	err = h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"received": true})
	case errors.Is(err, payment.ErrInvalidSignature), errors.Is(err, payment.ErrMalformedEvent):
		h.functionError(w, http.StatusBadRequest, "Invalid webhook event")
	case errors.Is(err, ErrWebhookNotConfigured):
		h.functionError(w, http.StatusServiceUnavailable, "Webhook is not configured")
	default:
		logging.Component("donation").WithError(err).Error("webhook processing failed")
		h.functionError(w, http.StatusInternalServerError, "Webhook processing failed")
	}
}

func (h *Handler) GetRecentDonations(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid limit value")
		return
	}

	donations, err := h.service.RecentDonations(r.Context(), limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve donations")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Donations retrieved successfully.",
		"data":    donations,
	})
}

func (h *Handler) GetDonationConfig(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.settings)
}

func (h *Handler) ListDonations(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid limit value")
		return
	}

	donations, err := h.service.ListDonations(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		if validation.IsValidationError(err) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve donations")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Donations retrieved successfully.",
		"data":    donations,
	})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("invalid limit")
	}
	return limit, nil
}

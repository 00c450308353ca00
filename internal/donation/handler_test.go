package donation

import (
	"encoding/json"
	"errors"
	"github.com/sebuszqo/SledHockey/internal/config"
	"github.com/sebuszqo/SledHockey/internal/payment"
	"github.com/sebuszqo/SledHockey/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string, errors ...[]string) {
	payload := map[string]interface{}{
		"status":  "error",
		"message": message,
		"code":    status,
	}
	if len(errors) > 0 && len(errors[0]) > 0 {
		payload["errors"] = errors[0]
	}
	respondJSON(w, status, payload)
}

func newTestHandler(svc Service) *Handler {
	return NewHandler(svc, ClientSettings{
		PublishableKey:   "pk_test_123",
		Currency:         "usd",
		Presets:          Presets,
		DefaultPreset:    DefaultPreset,
		DefaultRecurring: DefaultRecurring,
		Appearance:       config.DefaultAppearance(),
	}, respondJSON, respondError)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&body))
	return body
}

func TestCreateDonationPayment_Success(t *testing.T) {
	mockService := &MockService{session: &PaymentSession{ClientSecret: "cs_test", PaymentIntentID: "pi_1"}}
	body := `{"amount":25,"donorInfo":{"name":"Pat","email":"pat@example.com","playerName":"Sam"},"donationType":"recurring","isRecurring":true,"campaignId":null}`
	req := httptest.NewRequest(http.MethodPost, "/create-donation-payment", strings.NewReader(body))
	w := httptest.NewRecorder()

	newTestHandler(mockService).CreateDonationPayment(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "cs_test", resp["clientSecret"])
	assert.Equal(t, "pi_1", resp["paymentIntentId"])
	assert.Equal(t, "Sam", mockService.lastRequest.DonorInfo.PlayerName)
	assert.Equal(t, TypeRecurring, mockService.lastRequest.DonationType)
	assert.Nil(t, mockService.lastRequest.CampaignID)
}

func TestCreateDonationPayment_ValidationError(t *testing.T) {
	errs := &validation.Errors{}
	errs.Add(validation.NewError("email", MsgInvalidEmail))
	mockService := &MockService{err: errs}
	req := httptest.NewRequest(http.MethodPost, "/create-donation-payment", strings.NewReader(`{"amount":25}`))
	w := httptest.NewRecorder()

	newTestHandler(mockService).CreateDonationPayment(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, MsgInvalidEmail, resp["error"])
	assert.Equal(t, map[string]interface{}{"email": MsgInvalidEmail}, resp["fields"])
}

func TestCreateDonationPayment_CardErrorIsVerbatim(t *testing.T) {
	mockService := &MockService{err: &payment.Error{Message: "Your card was declined.", Card: true}}
	req := httptest.NewRequest(http.MethodPost, "/create-donation-payment", strings.NewReader(`{"amount":25}`))
	w := httptest.NewRecorder()

	newTestHandler(mockService).CreateDonationPayment(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "Your card was declined.", decode(t, w)["error"])
}

func TestCreateDonationPayment_InternalError(t *testing.T) {
	mockService := &MockService{err: errors.New("db down")}
	req := httptest.NewRequest(http.MethodPost, "/create-donation-payment", strings.NewReader(`{"amount":25}`))
	w := httptest.NewRecorder()

	newTestHandler(mockService).CreateDonationPayment(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to create payment", decode(t, w)["error"])
}

func TestCreateDonationPayment_InvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/create-donation-payment", strings.NewReader(`{`))
	w := httptest.NewRecorder()

	newTestHandler(&MockService{}).CreateDonationPayment(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", decode(t, w)["error"])
}

func TestConfirmPaymentStatus_Handler(t *testing.T) {
	mockService := &MockService{status: StatusSucceeded}
	req := httptest.NewRequest(http.MethodPost, "/confirm-payment-status", strings.NewReader(`{"paymentIntentId":"pi_1"}`))
	w := httptest.NewRecorder()

	newTestHandler(mockService).ConfirmPaymentStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "succeeded", decode(t, w)["status"])
	assert.Equal(t, "pi_1", mockService.lastIntent)
}

func TestConfirmPaymentStatus_HandlerErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrInvalidIntentID, http.StatusBadRequest},
		{ErrDonationNotFound, http.StatusNotFound},
		{&payment.Error{Message: "No such payment_intent"}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/confirm-payment-status", strings.NewReader(`{"paymentIntentId":"pi_1"}`))
		w := httptest.NewRecorder()

		newTestHandler(&MockService{err: tt.err}).ConfirmPaymentStatus(w, req)

		assert.Equal(t, tt.status, w.Code, tt.err.Error())
	}
}

func TestCancelDonationPayment_PassesClientSecret(t *testing.T) {
	mockService := &MockService{}
	req := httptest.NewRequest(http.MethodPost, "/cancel-donation-payment", strings.NewReader(`{"clientSecret":"pi_1_secret_abc"}`))
	w := httptest.NewRecorder()

	newTestHandler(mockService).CancelDonationPayment(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pi_1_secret_abc", mockService.lastIntent)
}

func TestCancelDonationPayment_HandlerErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrAlreadyFinalized, http.StatusConflict},
		{ErrClientSecretMismatch, http.StatusForbidden},
		{ErrInvalidIntentID, http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/cancel-donation-payment", strings.NewReader(`{"clientSecret":"pi_1_secret_abc"}`))
		w := httptest.NewRecorder()

		newTestHandler(&MockService{err: tt.err}).CancelDonationPayment(w, req)

		assert.Equal(t, tt.status, w.Code, tt.err.Error())
	}
}

func TestGatewayStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *payment.Error
		want int
	}{
		{"card error", &payment.Error{Op: "create payment intent", Card: true, StatusCode: http.StatusPaymentRequired}, http.StatusPaymentRequired},
		{"unknown intent", &payment.Error{Op: "get payment intent", StatusCode: http.StatusNotFound}, http.StatusNotFound},
		{"rate limited", &payment.Error{Op: "create payment intent", StatusCode: http.StatusTooManyRequests}, http.StatusBadGateway},
		{"processor outage", &payment.Error{Op: "cancel payment intent", StatusCode: http.StatusServiceUnavailable}, http.StatusBadGateway},
		{"invalid request", &payment.Error{Op: "create payment intent", StatusCode: http.StatusBadRequest}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gatewayStatus(tt.err, http.StatusBadRequest))
		})
	}
}

func TestStripeWebhook_Handler(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{nil, http.StatusOK},
		{payment.ErrInvalidSignature, http.StatusBadRequest},
		{ErrWebhookNotConfigured, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/stripe-webhook", strings.NewReader(`{}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		w := httptest.NewRecorder()

		newTestHandler(&MockService{err: tt.err}).StripeWebhook(w, req)

		assert.Equal(t, tt.status, w.Code)
	}
}

func TestGetDonationConfig(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/donations/config", nil)
	w := httptest.NewRecorder()

	newTestHandler(&MockService{}).GetDonationConfig(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "pk_test_123", resp["publishableKey"])
	assert.Equal(t, true, resp["defaultRecurring"])
	assert.Len(t, resp["presets"], 5)
	appearance := resp["appearance"].(map[string]interface{})
	assert.Equal(t, "stripe", appearance["theme"])
}

func TestGetRecentDonations_InvalidLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/donations/recent?limit=abc", nil)
	w := httptest.NewRecorder()

	newTestHandler(&MockService{}).GetRecentDonations(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid limit value", decode(t, w)["message"])
}

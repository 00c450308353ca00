package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sebuszqo/SledHockey/internal/donation"
	"github.com/sebuszqo/SledHockey/internal/payment"
	"github.com/sebuszqo/SledHockey/internal/roster"
	"github.com/tidwall/gjson"
)

const maxResponseBody = 1 << 20

// APIError is a non-2xx answer from the donation service. Message is the
// server's own text, suitable for showing to the donor as is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// APIClient talks to the donation endpoints over HTTP. Every call is bounded
// by the client timeout.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) CreatePayment(ctx context.Context, req donation.CreatePaymentRequest) (*donation.PaymentSession, error) {
	var session donation.PaymentSession
	if err := c.do(ctx, http.MethodPost, "/create-donation-payment", req, &session); err != nil {
		return nil, err
	}
	if session.ClientSecret == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "Payment server returned no client secret"}
	}
	if session.PaymentIntentID == "" {
		if id, err := payment.IntentIDFromClientSecret(session.ClientSecret); err == nil {
			session.PaymentIntentID = id
		}
	}
	return &session, nil
}

func (c *APIClient) ConfirmPaymentStatus(ctx context.Context, intentID string) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, http.MethodPost, "/confirm-payment-status", map[string]string{"paymentIntentId": intentID}, &resp)
	return resp.Status, err
}

func (c *APIClient) CancelPayment(ctx context.Context, clientSecret string) error {
	return c.do(ctx, http.MethodPost, "/cancel-donation-payment", map[string]string{"clientSecret": clientSecret}, nil)
}

func (c *APIClient) SearchPlayers(ctx context.Context, query string) ([]roster.Player, error) {
	var resp struct {
		Data []roster.Player `json:"data"`
	}
	path := "/api/roster/players?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *APIClient) Settings(ctx context.Context) (*donation.ClientSettings, error) {
	var settings donation.ClientSettings
	if err := c.do(ctx, http.MethodGet, "/api/donations/config", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%s %s: could not read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: could not decode response: %w", method, path, err)
	}
	return nil
}

// errorMessage prefers the {error} body of the function endpoints and falls
// back to the {message} body of the API endpoints.
func errorMessage(raw []byte, status int) string {
	if gjson.ValidBytes(raw) {
		for _, path := range []string{"error", "error.message", "message"} {
			if v := gjson.GetBytes(raw, path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	return fmt.Sprintf("Request failed: %s", http.StatusText(status))
}

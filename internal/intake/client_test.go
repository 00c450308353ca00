package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sebuszqo/SledHockey/internal/config"
	"github.com/sebuszqo/SledHockey/internal/donation"
	"github.com/sebuszqo/SledHockey/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"function endpoint", http.StatusBadRequest, `{"error":"Amount must be positive"}`, "Amount must be positive"},
		{"nested error", http.StatusPaymentRequired, `{"error":{"message":"Your card was declined."}}`, "Your card was declined."},
		{"api endpoint", http.StatusNotFound, `{"status":"error","message":"Donation not found"}`, "Donation not found"},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, "Request failed: Bad Gateway"},
		{"empty body", http.StatusInternalServerError, ``, "Request failed: Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewAPIClient(server.URL, time.Second).CancelPayment(context.Background(), "pi_1_secret_x")

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.want, apiErr.Message)
		})
	}
}

func TestAPIClient_CancelPaymentSendsClientSecret(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cancel-donation-payment", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"clientSecret": "pi_1_secret_x"}, body)
		w.Write([]byte(`{"status":"canceled"}`))
	}))
	defer server.Close()

	assert.NoError(t, NewAPIClient(server.URL, time.Second).CancelPayment(context.Background(), "pi_1_secret_x"))
}

func TestAPIClient_CreatePaymentDerivesIntentID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/create-donation-payment", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"clientSecret":"pi_3Abc_secret_xyz"}`))
	}))
	defer server.Close()

	session, err := NewAPIClient(server.URL+"/", time.Second).CreatePayment(context.Background(), donation.CreatePaymentRequest{Amount: 10})

	require.NoError(t, err)
	assert.Equal(t, "pi_3Abc", session.PaymentIntentID)
}

func TestAPIClient_CreatePaymentWithoutSecret(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := NewAPIClient(server.URL, time.Second).CreatePayment(context.Background(), donation.CreatePaymentRequest{Amount: 10})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestAPIClient_SearchPlayersAndSettings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/roster/players", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "o'neil", r.URL.Query().Get("q"))
		w.Write([]byte(`{"status":"success","data":[{"id":"p1","first_name":"Sam","last_name":"O'Neil"}]}`))
	})
	mux.HandleFunc("GET /api/donations/config", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(donation.ClientSettings{
			PublishableKey: "pk_test",
			Currency:       "usd",
			Presets:        donation.Presets,
			DefaultPreset:  donation.DefaultPreset,
			Appearance:     config.DefaultAppearance(),
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	client := NewAPIClient(server.URL, time.Second)

	players, err := client.SearchPlayers(context.Background(), "o'neil")
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Sam O'Neil", players[0].FullName())

	settings, err := client.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pk_test", settings.PublishableKey)
	assert.Equal(t, donation.Presets, settings.Presets)
}

func TestReconciler_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"Failed to confirm payment status"}`))
			return
		}
		w.Write([]byte(`{"status":"succeeded"}`))
	}))
	defer server.Close()

	reconciler := NewReconciler(NewAPIClient(server.URL, time.Second), 10*time.Second)
	reconciler.Dispatch("pi_1")
	reconciler.Wait()

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestReconciler_ClientErrorsArePermanent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Donation not found"}`))
	}))
	defer server.Close()

	reconciler := NewReconciler(NewAPIClient(server.URL, time.Second), 10*time.Second)
	reconciler.Dispatch("pi_missing")
	reconciler.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type stubGateway struct {
	intent    *payment.Intent
	err       error
	confirmed string
	params    payment.ConfirmParams
}

func (g *stubGateway) CreateIntent(context.Context, payment.CreateIntentParams) (*payment.Intent, error) {
	return g.intent, g.err
}

func (g *stubGateway) GetIntent(context.Context, string) (*payment.Intent, error) {
	return g.intent, g.err
}

func (g *stubGateway) CancelIntent(context.Context, string) (*payment.Intent, error) {
	return g.intent, g.err
}

func (g *stubGateway) ConfirmIntent(_ context.Context, intentID string, p payment.ConfirmParams) (*payment.Intent, error) {
	g.confirmed, g.params = intentID, p
	return g.intent, g.err
}

func TestGatewayConfirmer(t *testing.T) {
	t.Run("succeeded", func(t *testing.T) {
		gateway := &stubGateway{intent: &payment.Intent{ID: "pi_9", Status: payment.StatusSucceeded}}
		confirmer := &GatewayConfirmer{Gateway: gateway, PaymentMethod: "pm_card_visa", ReturnURL: "https://example.org/thanks"}

		result, err := confirmer.ConfirmPayment(context.Background(), "pi_9_secret_abc", ConfirmOptions{ReceiptEmail: "pat@example.com", Redirect: RedirectIfRequired})

		require.NoError(t, err)
		assert.Equal(t, ConfirmResult{IntentID: "pi_9", Status: payment.StatusSucceeded}, result)
		assert.Equal(t, "pi_9", gateway.confirmed)
		assert.Equal(t, payment.ConfirmParams{PaymentMethod: "pm_card_visa", ReceiptEmail: "pat@example.com", ReturnURL: "https://example.org/thanks"}, gateway.params)
	})

	t.Run("card error message is passed through", func(t *testing.T) {
		gateway := &stubGateway{err: &payment.Error{Op: "confirm", Message: "Your card was declined.", Card: true}}
		confirmer := &GatewayConfirmer{Gateway: gateway, PaymentMethod: "pm_card_chargeDeclined"}

		_, err := confirmer.ConfirmPayment(context.Background(), "pi_9_secret_abc", ConfirmOptions{})

		require.Error(t, err)
		assert.Equal(t, "Your card was declined.", err.Error())
	})

	t.Run("failed attempt", func(t *testing.T) {
		gateway := &stubGateway{intent: &payment.Intent{ID: "pi_9", Status: payment.StatusRequiresPaymentMethod, FailureMessage: "Insufficient funds."}}
		confirmer := &GatewayConfirmer{Gateway: gateway}

		_, err := confirmer.ConfirmPayment(context.Background(), "pi_9_secret_abc", ConfirmOptions{})

		require.Error(t, err)
		assert.Equal(t, "Insufficient funds.", err.Error())
	})

	t.Run("malformed secret", func(t *testing.T) {
		_, err := (&GatewayConfirmer{Gateway: &stubGateway{}}).ConfirmPayment(context.Background(), "cs_test", ConfirmOptions{})
		assert.ErrorIs(t, err, payment.ErrMalformedClientSecret)
	})
}

func TestFloatingButton_Dismissal(t *testing.T) {
	store := NewMemoryStore()
	opened := 0
	button := NewFloatingButton(store, func() (*Flow, error) {
		opened++
		return NewFlow(Floating(config.DefaultAppearance()), Options{Intents: &fakeIntents{}, Confirmer: &mockConfirmer{}})
	})

	assert.True(t, button.Visible())
	flow, err := button.Open()
	require.NoError(t, err)
	assert.Equal(t, StepAmount, flow.Snapshot().Step)

	button.Dismiss()
	assert.False(t, button.Visible())
	_, err = button.Open()
	assert.ErrorIs(t, err, ErrDismissed)

	// a second button over the same store sees the dismissal
	other := NewFloatingButton(store, nil)
	assert.False(t, other.Visible())

	button.Reset()
	assert.True(t, other.Visible())
	assert.Equal(t, 1, opened)
}

func TestPresentationByName(t *testing.T) {
	appearances := config.AppearanceSet{
		Default: config.DefaultAppearance(),
		Presentation: map[string]config.Appearance{
			"embedded": {Theme: "flat"},
		},
	}

	modal, ok := PresentationByName("modal", appearances)
	require.True(t, ok)
	assert.Equal(t, LayoutThreeStep, modal.Layout)
	assert.Equal(t, DefaultAutoCloseDelay, modal.AutoCloseDelay)

	embedded, ok := PresentationByName("embedded", appearances)
	require.True(t, ok)
	assert.Equal(t, LayoutTwoStep, embedded.Layout)
	assert.Zero(t, embedded.AutoCloseDelay)
	assert.Equal(t, "flat", embedded.Appearance.Theme)

	_, ok = PresentationByName("popup", appearances)
	assert.False(t, ok)
}

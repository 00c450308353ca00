package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
)

const testSecret = "whsec_test_secret"

func sign(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func intentEvent(t *testing.T, eventType, intentID, status string) []byte {
	t.Helper()
	payload := `{"object":"event","api_version":"2022-11-15"}`
	var err error
	for path, value := range map[string]interface{}{
		"id":                 "evt_1",
		"type":               eventType,
		"data.object.id":     intentID,
		"data.object.object": "payment_intent",
		"data.object.status": status,
		"data.object.amount": 2500,
	} {
		payload, err = sjson.Set(payload, path, value)
		require.NoError(t, err)
	}
	return []byte(payload)
}

func TestParseIntentEvent_Succeeded(t *testing.T) {
	payload := intentEvent(t, "payment_intent.succeeded", "pi_1", "succeeded")

	event, err := ParseIntentEvent(payload, sign(t, payload, testSecret), testSecret)

	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.EventID)
	assert.Equal(t, "pi_1", event.IntentID)
	assert.Equal(t, StatusSucceeded, event.Status)
	assert.Empty(t, event.FailureMessage)
}

func TestParseIntentEvent_PaymentFailedCarriesMessage(t *testing.T) {
	payload := intentEvent(t, "payment_intent.payment_failed", "pi_2", "requires_payment_method")
	raw, err := sjson.SetBytes(payload, "data.object.last_payment_error.message", "Your card was declined.")
	require.NoError(t, err)

	event, err := ParseIntentEvent(raw, sign(t, raw, testSecret), testSecret)

	require.NoError(t, err)
	assert.Equal(t, StatusRequiresPaymentMethod, event.Status)
	assert.Equal(t, "Your card was declined.", event.FailureMessage)
}

func TestParseIntentEvent_BadSignature(t *testing.T) {
	payload := intentEvent(t, "payment_intent.succeeded", "pi_1", "succeeded")

	_, err := ParseIntentEvent(payload, sign(t, payload, "whsec_other"), testSecret)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseIntentEvent_UnhandledType(t *testing.T) {
	payload := intentEvent(t, "charge.refunded", "pi_1", "succeeded")

	_, err := ParseIntentEvent(payload, sign(t, payload, testSecret), testSecret)

	assert.ErrorIs(t, err, ErrUnhandledEvent)
}

func TestParseIntentEvent_MissingObject(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{}}`)

	_, err := ParseIntentEvent(payload, sign(t, payload, testSecret), testSecret)

	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestIntentIDFromClientSecret(t *testing.T) {
	id, err := IntentIDFromClientSecret("pi_3Nabc_secret_XyZ")
	require.NoError(t, err)
	assert.Equal(t, "pi_3Nabc", id)

	_, err = IntentIDFromClientSecret("cs_test")
	assert.ErrorIs(t, err, ErrMalformedClientSecret)
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(2500), ToCents(25))
	assert.Equal(t, int64(1299), ToCents(12.99))
	assert.Equal(t, int64(1), ToCents(0.01))
	assert.Equal(t, int64(0), ToCents(-3))
}

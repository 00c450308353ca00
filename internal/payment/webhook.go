package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
	"github.com/tidwall/gjson"
)

var (
	ErrInvalidSignature = errors.New("webhook signature is invalid")
	ErrUnhandledEvent   = errors.New("webhook event type is not handled")
	ErrMalformedEvent   = errors.New("webhook event is malformed")
)

// IntentEvent is the part of a processor webhook this service acts on.
type IntentEvent struct {
	EventID        string
	Type           string
	IntentID       string
	Status         IntentStatus
	FailureMessage string
}

var handledEvents = map[string]bool{
	"payment_intent.succeeded":      true,
	"payment_intent.payment_failed": true,
	"payment_intent.canceled":       true,
	"payment_intent.processing":     true,
}

// ParseIntentEvent verifies the Stripe-Signature header and extracts the payment
// intent carried by the event.
func ParseIntentEvent(payload []byte, signature, secret string) (*IntentEvent, error) {
	if err := webhook.ValidatePayload(payload, signature, secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !gjson.ValidBytes(payload) {
		return nil, ErrMalformedEvent
	}

	eventType := gjson.GetBytes(payload, "type").String()
	if !handledEvents[eventType] {
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, eventType)
	}

	object := gjson.GetBytes(payload, "data.object")
	if !object.Exists() {
		return nil, ErrMalformedEvent
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal([]byte(object.Raw), &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if pi.ID == "" {
		return nil, ErrMalformedEvent
	}

	event := &IntentEvent{
		EventID:  gjson.GetBytes(payload, "id").String(),
		Type:     eventType,
		IntentID: pi.ID,
		Status:   IntentStatus(pi.Status),
	}
	if pi.LastPaymentError != nil {
		event.FailureMessage = pi.LastPaymentError.Msg
	}
	return event, nil
}

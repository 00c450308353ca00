package donation

import "errors"

var (
	ErrDonationNotFound     = errors.New("donation not found")
	ErrInvalidIntentID      = errors.New("payment intent id is not valid")
	ErrClientSecretMismatch = errors.New("client secret does not match the payment intent")
	ErrAlreadyFinalized     = errors.New("donation is already finalized")
	ErrWebhookNotConfigured = errors.New("webhook secret is not configured")
	ErrPaymentUnavailable   = errors.New("payment processor is unavailable")
)

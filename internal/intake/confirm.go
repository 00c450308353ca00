package intake

import (
	"context"
	"errors"

	"github.com/sebuszqo/SledHockey/internal/payment"
)

// RedirectIfRequired leaves the flow only when the payment method demands it.
const RedirectIfRequired = "if_required"

type ConfirmOptions struct {
	ReceiptEmail string
	Redirect     string
}

type ConfirmResult struct {
	IntentID    string
	Status      payment.IntentStatus
	RedirectURL string
}

// Confirmer confirms a payment against the processor given its client secret.
// A returned error's text is shown to the donor verbatim.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, clientSecret string, opts ConfirmOptions) (ConfirmResult, error)
}

// GatewayConfirmer confirms server side with a fixed payment method. It backs
// the CLI smoke test, where there is no browser to collect card details.
type GatewayConfirmer struct {
	Gateway       payment.Gateway
	PaymentMethod string
	ReturnURL     string
}

func (c *GatewayConfirmer) ConfirmPayment(ctx context.Context, clientSecret string, opts ConfirmOptions) (ConfirmResult, error) {
	intentID, err := payment.IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return ConfirmResult{}, err
	}

	// with if_required a card payment stays in flow and the return URL is only
	// followed for methods that need a redirect
	intent, err := c.Gateway.ConfirmIntent(ctx, intentID, payment.ConfirmParams{
		PaymentMethod: c.PaymentMethod,
		ReceiptEmail:  opts.ReceiptEmail,
		ReturnURL:     c.ReturnURL,
	})
	if err != nil {
		var gatewayErr *payment.Error
		if errors.As(err, &gatewayErr) {
			return ConfirmResult{}, errors.New(gatewayErr.Message)
		}
		return ConfirmResult{}, err
	}
	if intent.Status == payment.StatusRequiresPaymentMethod && intent.FailureMessage != "" {
		return ConfirmResult{}, errors.New(intent.FailureMessage)
	}

	return ConfirmResult{
		IntentID:    intent.ID,
		Status:      intent.Status,
		RedirectURL: intent.RedirectURL,
	}, nil
}

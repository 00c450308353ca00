package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

type IntentStatus string

const (
	StatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	StatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	StatusRequiresAction        IntentStatus = "requires_action"
	StatusProcessing            IntentStatus = "processing"
	StatusRequiresCapture       IntentStatus = "requires_capture"
	StatusCanceled              IntentStatus = "canceled"
	StatusSucceeded             IntentStatus = "succeeded"
)

var ErrMalformedClientSecret = errors.New("client secret is malformed")

// Error carries the processor's message, which is safe to show to the donor.
type Error struct {
	Op         string
	Message    string
	Card       bool
	StatusCode int
}

func (e *Error) Error() string {
	return e.Message
}

type CreateIntentParams struct {
	DonationID   string
	AmountCents  int64
	Currency     string
	ReceiptEmail string
	DonorName    string
	DonorPhone   string
	Recurring    bool
	Description  string
	Metadata     map[string]string
}

type ConfirmParams struct {
	PaymentMethod string
	ReceiptEmail  string
	ReturnURL     string
}

type Intent struct {
	ID             string
	ClientSecret   string
	Status         IntentStatus
	AmountCents    int64
	Currency       string
	FailureMessage string
	RedirectURL    string
	Metadata       map[string]string
}

type Gateway interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) (*Intent, error)
	ConfirmIntent(ctx context.Context, intentID string, params ConfirmParams) (*Intent, error)
}

type stripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &stripeGateway{api: api}
}

func (g *stripeGateway) CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(p.AmountCents),
		Currency:     stripe.String(p.Currency),
		ReceiptEmail: stripe.String(p.ReceiptEmail),
		Description:  stripe.String(p.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("donation-" + p.DonationID)
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	if p.Recurring {
		// save the card on a customer for future off-session charges
		customerParams := &stripe.CustomerParams{
			Email: stripe.String(p.ReceiptEmail),
			Name:  stripe.String(p.DonorName),
		}
		if p.DonorPhone != "" {
			customerParams.Phone = stripe.String(p.DonorPhone)
		}
		customerParams.Context = ctx
		customerParams.SetIdempotencyKey("donor-" + p.DonationID)
		customer, err := g.api.Customers.New(customerParams)
		if err != nil {
			return nil, wrapStripeError("create customer", err)
		}
		params.Customer = stripe.String(customer.ID)
		params.SetupFutureUsage = stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession))
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeError("create payment intent", err)
	}
	return fromStripe(pi), nil
}

func (g *stripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, wrapStripeError("get payment intent", err)
	}
	return fromStripe(pi), nil
}

func (g *stripeGateway) CancelIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Cancel(intentID, params)
	if err != nil {
		return nil, wrapStripeError("cancel payment intent", err)
	}
	return fromStripe(pi), nil
}

func (g *stripeGateway) ConfirmIntent(ctx context.Context, intentID string, p ConfirmParams) (*Intent, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	if p.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(p.PaymentMethod)
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	if p.ReturnURL != "" {
		params.ReturnURL = stripe.String(p.ReturnURL)
	}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return nil, wrapStripeError("confirm payment intent", err)
	}
	return fromStripe(pi), nil
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       IntentStatus(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		intent.FailureMessage = pi.LastPaymentError.Msg
	}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		intent.RedirectURL = pi.NextAction.RedirectToURL.URL
	}
	return intent
}

func wrapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &Error{
			Op:         op,
			Message:    stripeErr.Msg,
			Card:       stripeErr.Type == stripe.ErrorTypeCard,
			StatusCode: stripeErr.HTTPStatusCode,
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IntentIDFromClientSecret returns the "pi_..." prefix of a client secret.
func IntentIDFromClientSecret(clientSecret string) (string, error) {
	id, _, found := strings.Cut(clientSecret, "_secret_")
	if !found || !strings.HasPrefix(id, "pi_") {
		return "", ErrMalformedClientSecret
	}
	return id, nil
}

// ToCents converts an amount in currency units to the smallest currency unit.
func ToCents(amount float64) int64 {
	if amount <= 0 {
		return 0
	}
	return int64(math.Round(amount * 100))
}

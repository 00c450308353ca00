package donation

import (
	"github.com/sebuszqo/SledHockey/internal/payment"
	"time"
)

type DonationType string

const (
	TypeRecurring DonationType = "recurring"
	TypeOneTime   DonationType = "one-time"
)

// TypeFor maps the recurring flag onto the donation type discriminator.
func TypeFor(recurring bool) DonationType {
	if recurring {
		return TypeRecurring
	}
	return TypeOneTime
}

type Status string

const (
	StatusPending        Status = "pending"
	StatusProcessing     Status = "processing"
	StatusRequiresAction Status = "requires_action"
	StatusSucceeded      Status = "succeeded"
	StatusFailed         Status = "failed"
	StatusCanceled       Status = "canceled"
)

// Terminal statuses are never overwritten.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusCanceled
}

func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusRequiresAction, StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// StatusFromIntent maps a processor intent status onto the donation lifecycle.
func StatusFromIntent(status payment.IntentStatus, failureMessage string) Status {
	switch status {
	case payment.StatusSucceeded:
		return StatusSucceeded
	case payment.StatusProcessing:
		return StatusProcessing
	case payment.StatusRequiresAction:
		return StatusRequiresAction
	case payment.StatusCanceled:
		return StatusCanceled
	case payment.StatusRequiresPaymentMethod:
		if failureMessage != "" {
			return StatusFailed
		}
	}
	return StatusPending
}

type DonorInfo struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CompanyName string `json:"companyName"`
	PlayerName  string `json:"playerName"`
	IsAnonymous bool   `json:"isAnonymous"`
	Message     string `json:"message"`
	IsRecurring bool   `json:"isRecurring"`
}

type Donation struct {
	ID              string       `json:"id"`
	PaymentIntentID string       `json:"payment_intent_id"`
	Amount          float64      `json:"amount"`
	Currency        string       `json:"currency"`
	Type            DonationType `json:"donation_type"`
	Status          Status       `json:"status"`
	Donor           DonorInfo    `json:"donor"`
	CampaignID      *string      `json:"campaign_id,omitempty"`
	EventTag        *string      `json:"event_tag,omitempty"`
	FailureMessage  string       `json:"failure_message,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	ConfirmedAt     *time.Time   `json:"confirmed_at,omitempty"`
}

type CreatePaymentRequest struct {
	Amount       float64      `json:"amount"`
	DonorInfo    DonorInfo    `json:"donorInfo"`
	DonationType DonationType `json:"donationType"`
	IsRecurring  bool         `json:"isRecurring"`
	CampaignID   *string      `json:"campaignId"`
	EventTag     *string      `json:"eventTag,omitempty"`
}

type PaymentSession struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	DonationID      string `json:"donationId"`
}

// PublicDonation is a donor wall entry.
type PublicDonation struct {
	DonorName     string    `json:"donorName"`
	Amount        float64   `json:"amount"`
	HonoreePlayer string    `json:"honoreePlayer,omitempty"`
	Message       string    `json:"message,omitempty"`
	ConfirmedAt   time.Time `json:"confirmedAt"`
}

// StatusUpdate is applied by payment intent id.
type StatusUpdate struct {
	PaymentIntentID string
	Status          Status
	FailureMessage  string
	At              time.Time
}

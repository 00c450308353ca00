package donation

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/sebuszqo/SledHockey/internal/logging"
	"github.com/sebuszqo/SledHockey/internal/payment"
	"github.com/sebuszqo/SledHockey/internal/validation"
	log "github.com/sirupsen/logrus"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50
	defaultListLimit   = 50
	maxListLimit       = 200
	sweepBatchSize     = 100
	anonymousDonor     = "Anonymous"
)

type Service interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentSession, error)
	ConfirmPaymentStatus(ctx context.Context, intentID string) (Status, error)
	CancelPayment(ctx context.Context, clientSecret string) error
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	SweepAbandoned(ctx context.Context, olderThan time.Duration) (int, error)
	RecentDonations(ctx context.Context, limit int) ([]PublicDonation, error)
	ListDonations(ctx context.Context, status string, limit int) ([]Donation, error)
}

type Options struct {
	Currency      string
	MaxAmount     float64
	WebhookSecret string
}

type service struct {
	repo    Repository
	gateway payment.Gateway
	opts    Options
	now     func() time.Time
	logger  *log.Entry
}

func NewDonationService(repo Repository, gateway payment.Gateway, opts Options) Service {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	return &service{
		repo:    repo,
		gateway: gateway,
		opts:    opts,
		now:     time.Now,
		logger:  logging.Component("donation"),
	}
}

func (s *service) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentSession, error) {
	if req.DonationType == "" {
		req.DonationType = TypeFor(req.IsRecurring)
	}
	req.DonorInfo.Name = strings.TrimSpace(req.DonorInfo.Name)
	req.DonorInfo.Email = strings.TrimSpace(req.DonorInfo.Email)
	req.DonorInfo.IsRecurring = req.IsRecurring

	errs := &validation.Errors{}
	errs.Add(ValidateRequest(req, s.opts.MaxAmount))
	campaignID, err := normalizeCampaignID(req.CampaignID)
	errs.Add(err)
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	d := &Donation{
		ID:         uuid.NewString(),
		Amount:     math.Round(req.Amount*100) / 100,
		Currency:   s.opts.Currency,
		Type:       req.DonationType,
		Status:     StatusPending,
		Donor:      req.DonorInfo,
		CampaignID: campaignID,
		EventTag:   normalizeTag(req.EventTag),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, payment.CreateIntentParams{
		DonationID:   d.ID,
		AmountCents:  payment.ToCents(d.Amount),
		Currency:     d.Currency,
		ReceiptEmail: d.Donor.Email,
		DonorName:    d.Donor.Name,
		DonorPhone:   d.Donor.Phone,
		Recurring:    d.Type == TypeRecurring,
		Description:  description(d),
		Metadata:     metadata(d),
	})
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, d.ID, err.Error()); markErr != nil {
			s.logger.WithError(markErr).WithField("donation_id", d.ID).Warn("could not mark donation failed")
		}
		var gatewayErr *payment.Error
		if errors.As(err, &gatewayErr) {
			return nil, err
		}
		s.logger.WithError(err).WithField("donation_id", d.ID).Error("payment intent creation failed")
		return nil, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	if err := s.repo.AttachIntent(ctx, d.ID, intent.ID); err != nil {
		// the sweeper only sees intents recorded on a donation
		if _, cancelErr := s.gateway.CancelIntent(ctx, intent.ID); cancelErr != nil {
			s.logger.WithError(cancelErr).WithField("intent_id", intent.ID).Warn("could not cancel unrecorded payment intent")
		}
		if markErr := s.repo.MarkFailed(ctx, d.ID, "payment intent could not be recorded"); markErr != nil {
			s.logger.WithError(markErr).WithField("donation_id", d.ID).Warn("could not mark donation failed")
		}
		return nil, err
	}

	s.logger.WithFields(log.Fields{
		"donation_id": d.ID,
		"intent_id":   intent.ID,
		"type":        d.Type,
		"amount":      d.Amount,
	}).Info("donation payment created")

	return &PaymentSession{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		DonationID:      d.ID,
	}, nil
}

func (s *service) ConfirmPaymentStatus(ctx context.Context, intentID string) (Status, error) {
	if !validIntentID(intentID) {
		return "", ErrInvalidIntentID
	}
	d, err := s.repo.GetByIntentID(ctx, intentID)
	if err != nil {
		return "", err
	}
	if d.Status.Terminal() {
		return d.Status, nil
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return "", err
	}
	status := StatusFromIntent(intent.Status, intent.FailureMessage)
	if err := s.apply(ctx, intentID, status, intent.FailureMessage, "reconciliation"); err != nil {
		return "", err
	}
	return status, nil
}

// CancelPayment cancels an unconfirmed intent on behalf of the donor, who proves
// ownership with the intent's client secret.
func (s *service) CancelPayment(ctx context.Context, clientSecret string) error {
	intentID, err := payment.IntentIDFromClientSecret(clientSecret)
	if err != nil || !validIntentID(intentID) {
		return ErrInvalidIntentID
	}
	d, err := s.repo.GetByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	if d.Status.Terminal() || d.Status == StatusProcessing {
		return ErrAlreadyFinalized
	}
	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(intent.ClientSecret), []byte(clientSecret)) != 1 {
		return ErrClientSecretMismatch
	}
	return s.cancel(ctx, intentID, "donor")
}

func (s *service) cancel(ctx context.Context, intentID, source string) error {
	intent, err := s.gateway.CancelIntent(ctx, intentID)
	if err != nil {
		return err
	}
	status := StatusFromIntent(intent.Status, intent.FailureMessage)
	return s.apply(ctx, intentID, status, intent.FailureMessage, source)
}

func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.opts.WebhookSecret == "" {
		return ErrWebhookNotConfigured
	}
	event, err := payment.ParseIntentEvent(payload, signature, s.opts.WebhookSecret)
	if errors.Is(err, payment.ErrUnhandledEvent) {
		s.logger.Debug(err.Error())
		return nil
	}
	if err != nil {
		return err
	}

	status := StatusFromIntent(event.Status, event.FailureMessage)
	return s.apply(ctx, event.IntentID, status, event.FailureMessage, "webhook")
}

func (s *service) apply(ctx context.Context, intentID string, status Status, failureMessage, source string) error {
	if status == StatusPending {
		return nil
	}
	changed, err := s.repo.ApplyStatus(ctx, StatusUpdate{
		PaymentIntentID: intentID,
		Status:          status,
		FailureMessage:  failureMessage,
		At:              s.now().UTC(),
	})
	if err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{
		"intent_id": intentID,
		"status":    status,
		"source":    source,
		"changed":   changed,
	}).Info("donation status applied")
	return nil
}

func (s *service) SweepAbandoned(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("sweep age must be positive, got %s", olderThan)
	}
	stale, err := s.repo.ListStalePending(ctx, s.now().Add(-olderThan), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	canceled := 0
	for _, d := range stale {
		if err := ctx.Err(); err != nil {
			return canceled, err
		}
		if err := s.cancel(ctx, d.PaymentIntentID, "sweeper"); err != nil {
			s.logger.WithError(err).WithField("intent_id", d.PaymentIntentID).Warn("could not cancel abandoned intent")
			continue
		}
		canceled++
	}
	if canceled > 0 {
		s.logger.WithField("count", canceled).Info("abandoned payment intents canceled")
	}
	return canceled, nil
}

func (s *service) RecentDonations(ctx context.Context, limit int) ([]PublicDonation, error) {
	limit = clampLimit(limit, defaultRecentLimit, maxRecentLimit)
	donations, err := s.repo.ListSucceeded(ctx, limit)
	if err != nil {
		return nil, err
	}

	wall := make([]PublicDonation, 0, len(donations))
	for _, d := range donations {
		entry := PublicDonation{
			DonorName:     d.Donor.Name,
			Amount:        d.Amount,
			HonoreePlayer: d.Donor.PlayerName,
			Message:       d.Donor.Message,
		}
		if d.Donor.IsAnonymous {
			entry.DonorName = anonymousDonor
		}
		if d.ConfirmedAt != nil {
			entry.ConfirmedAt = *d.ConfirmedAt
		}
		wall = append(wall, entry)
	}
	return wall, nil
}

func (s *service) ListDonations(ctx context.Context, status string, limit int) ([]Donation, error) {
	if status != "" && !IsValidStatus(status) {
		return nil, validation.NewError("status", "Invalid donation status")
	}
	return s.repo.List(ctx, Status(status), clampLimit(limit, defaultListLimit, maxListLimit))
}

func normalizeCampaignID(id *string) (*string, error) {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(strings.TrimSpace(*id))
	if err != nil {
		return nil, validation.NewError("campaignId", "Campaign id is not valid")
	}
	normalized := parsed.String()
	return &normalized, nil
}

func normalizeTag(tag *string) *string {
	if tag == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*tag)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func validIntentID(id string) bool {
	return strings.HasPrefix(id, "pi_") && len(id) > len("pi_")
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func description(d *Donation) string {
	if d.Type == TypeRecurring {
		return "Monthly donation to the sled hockey program"
	}
	return "Donation to the sled hockey program"
}

func metadata(d *Donation) map[string]string {
	md := map[string]string{
		"donation_id":   d.ID,
		"donation_type": string(d.Type),
		"donor_name":    d.Donor.Name,
		"is_anonymous":  strconv.FormatBool(d.Donor.IsAnonymous),
	}
	if d.Donor.CompanyName != "" {
		md["company_name"] = d.Donor.CompanyName
	}
	if d.Donor.PlayerName != "" {
		md["honoree_player"] = d.Donor.PlayerName
	}
	if d.CampaignID != nil {
		md["campaign_id"] = *d.CampaignID
	}
	if d.EventTag != nil {
		md["event_tag"] = *d.EventTag
	}
	return md
}

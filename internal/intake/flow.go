package intake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sebuszqo/SledHockey/internal/config"
	"github.com/sebuszqo/SledHockey/internal/donation"
	"github.com/sebuszqo/SledHockey/internal/logging"
	"github.com/sebuszqo/SledHockey/internal/payment"
	"github.com/sebuszqo/SledHockey/internal/roster"
	"github.com/sebuszqo/SledHockey/internal/validation"
	log "github.com/sirupsen/logrus"
)

type Step string

const (
	StepAmount  Step = "amount"
	StepInfo    Step = "info"
	StepPayment Step = "payment"
	StepSuccess Step = "success"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomePending   Outcome = "pending"
	OutcomeFailed    Outcome = "failed"
)

// IntentPolicy decides what happens to an outstanding payment intent when the
// donor goes back and submits the info step again.
type IntentPolicy int

const (
	// ReuseUnchanged keeps the intent when nothing that went into it changed,
	// and cancels it otherwise.
	ReuseUnchanged IntentPolicy = iota
	// CancelStale always cancels the outstanding intent and creates a new one.
	CancelStale
)

const networkErrorMessage = "We could not reach the payment server. Please try again."

var (
	ErrBusy          = errors.New("a request is already in flight")
	ErrWrongStep     = errors.New("operation is not allowed at this step")
	ErrUnknownPreset = errors.New("amount is not one of the preset amounts")
	ErrNoIntent      = errors.New("no payment intent has been created")
)

type IntentService interface {
	CreatePayment(ctx context.Context, req donation.CreatePaymentRequest) (*donation.PaymentSession, error)
	// CancelPayment takes the client secret, which proves the caller started the payment.
	CancelPayment(ctx context.Context, clientSecret string) error
}

type RosterLookup interface {
	SearchPlayers(ctx context.Context, query string) ([]roster.Player, error)
}

type Dispatcher interface {
	Dispatch(intentID string)
}

// Options wires a Flow. Roster and Reconciler are optional.
type Options struct {
	Intents    IntentService
	Confirmer  Confirmer
	Reconciler Dispatcher
	Roster     RosterLookup
	Policy     IntentPolicy
	CampaignID string
	EventTag   string
	OnComplete func()
	After      func(time.Duration) <-chan time.Time
}

// State is a copy of the flow's visible state.
type State struct {
	Step          Step
	Layout        Layout
	Preset        float64
	CustomAmount  string
	DisplayAmount float64
	Recurring     bool
	Donor         donation.DonorInfo
	FieldErrors   map[string]string
	FormError     string
	Busy          bool
	IntentID      string
	PendingStatus payment.IntentStatus
}

// PaymentElement is what the hosted payment form is mounted with.
type PaymentElement struct {
	ClientSecret string
	Appearance   config.Appearance
}

// intentKey holds every input that went into a payment intent.
type intentKey struct {
	amount     float64
	recurring  bool
	donor      donation.DonorInfo
	campaignID string
	eventTag   string
}

type intentSession struct {
	clientSecret string
	intentID     string
	key          intentKey
	confirmed    bool
}

// Flow is the donation intake state machine. It is safe for concurrent use;
// while a network call is in flight every mutating operation returns ErrBusy.
type Flow struct {
	mu           sync.Mutex
	presentation Presentation
	opts         Options
	logger       *log.Entry

	step          Step
	preset        float64
	custom        string
	recurring     bool
	donor         donation.DonorInfo
	fieldErrors   map[string]string
	formError     string
	busy          bool
	pendingStatus payment.IntentStatus
	session       *intentSession
}

func NewFlow(presentation Presentation, opts Options) (*Flow, error) {
	if opts.Intents == nil || opts.Confirmer == nil {
		return nil, errors.New("intake: intent service and confirmer are required")
	}
	if opts.After == nil {
		opts.After = time.After
	}
	if opts.OnComplete == nil {
		opts.OnComplete = func() {}
	}
	f := &Flow{
		presentation: presentation,
		opts:         opts,
		logger:       logging.Component("intake").WithField("presentation", presentation.Name),
	}
	f.reset()
	return f, nil
}

func (f *Flow) reset() {
	f.step = f.presentation.firstStep()
	f.preset = donation.DefaultPreset
	f.custom = ""
	f.recurring = donation.DefaultRecurring
	f.donor = donation.DonorInfo{}
	f.fieldErrors = map[string]string{}
	f.formError = ""
	f.busy = false
	f.pendingStatus = ""
	f.session = nil
}

func (f *Flow) amountStep() Step {
	return f.presentation.firstStep()
}

// editable must be called with f.mu held.
func (f *Flow) editable(step Step) error {
	if f.busy {
		return ErrBusy
	}
	if f.step != step {
		return ErrWrongStep
	}
	return nil
}

func (f *Flow) SelectPreset(amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(f.amountStep()); err != nil {
		return err
	}
	if !donation.IsPreset(amount) {
		return ErrUnknownPreset
	}
	f.preset = amount
	f.custom = ""
	delete(f.fieldErrors, "amount")
	return nil
}

func (f *Flow) SetCustomAmount(raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(f.amountStep()); err != nil {
		return err
	}
	f.custom = raw
	delete(f.fieldErrors, "amount")
	return nil
}

func (f *Flow) SetRecurring(recurring bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(f.amountStep()); err != nil {
		return err
	}
	f.recurring = recurring
	return nil
}

func (f *Flow) DisplayAmount() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return donation.DisplayAmount(f.preset, f.custom)
}

// ContinueFromAmount advances the three-step layout from amount to info.
func (f *Flow) ContinueFromAmount() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presentation.Layout != LayoutThreeStep {
		return ErrWrongStep
	}
	if err := f.editable(StepAmount); err != nil {
		return err
	}
	if err := donation.ValidateAmountInput(f.preset, f.custom); err != nil {
		f.recordValidation(err)
		return err
	}
	f.step = StepInfo
	return nil
}

func (f *Flow) SetDonor(info donation.DonorInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(StepInfo); err != nil {
		return err
	}
	f.donor = info
	delete(f.fieldErrors, "name")
	delete(f.fieldErrors, "email")
	return nil
}

// SubmitInfo validates the info step and obtains a payment intent. On failure
// the flow stays on info with the server's message as the form error.
func (f *Flow) SubmitInfo(ctx context.Context) error {
	f.mu.Lock()
	if err := f.editable(StepInfo); err != nil {
		f.mu.Unlock()
		return err
	}
	f.formError = ""

	errs := &validation.Errors{}
	errs.Add(donation.ValidateAmountInput(f.preset, f.custom))
	errs.Add(donation.ValidateDonor(f.donor))
	if err := errs.ErrOrNil(); err != nil {
		f.recordValidation(err)
		f.mu.Unlock()
		return err
	}

	key := f.currentKey()
	var stale *intentSession
	if f.session != nil {
		if f.opts.Policy == ReuseUnchanged && f.session.key == key {
			f.step = StepPayment
			f.mu.Unlock()
			return nil
		}
		stale = f.session
		f.session = nil
	}
	req := f.request(key)
	f.busy = true
	f.mu.Unlock()

	if stale != nil {
		f.cancelIntent(ctx, stale)
	}
	session, err := f.opts.Intents.CreatePayment(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		f.formError = userMessage(err)
		f.logger.WithError(err).Warn("payment intent creation failed")
		return err
	}
	f.session = &intentSession{
		clientSecret: session.ClientSecret,
		intentID:     session.PaymentIntentID,
		key:          key,
	}
	f.step = StepPayment
	return nil
}

// Back moves payment to info, and info to amount in the three-step layout.
// An outstanding intent is kept; the intent policy settles it on resubmit.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrBusy
	}
	switch {
	case f.step == StepPayment:
		f.step = StepInfo
	case f.step == StepInfo && f.presentation.Layout == LayoutThreeStep:
		f.step = StepAmount
	default:
		return ErrWrongStep
	}
	f.formError = ""
	f.pendingStatus = ""
	return nil
}

// SubmitPayment confirms the payment with the processor. A confirm error stays
// on payment with the processor's message. A succeeded intent dispatches
// reconciliation, waits the success delay, moves to success and then runs the
// completion callback after the auto-close delay. Any other status is reported
// as pending and nothing further happens.
func (f *Flow) SubmitPayment(ctx context.Context) (Outcome, error) {
	f.mu.Lock()
	if err := f.editable(StepPayment); err != nil {
		f.mu.Unlock()
		return OutcomeFailed, err
	}
	if f.session == nil {
		f.mu.Unlock()
		return OutcomeFailed, ErrNoIntent
	}
	f.busy = true
	f.formError = ""
	f.pendingStatus = ""
	clientSecret := f.session.clientSecret
	intentID := f.session.intentID
	email := f.session.key.donor.Email
	f.mu.Unlock()

	result, err := f.opts.Confirmer.ConfirmPayment(ctx, clientSecret, ConfirmOptions{
		ReceiptEmail: email,
		Redirect:     RedirectIfRequired,
	})

	f.mu.Lock()
	if err != nil {
		f.busy = false
		f.formError = err.Error()
		f.mu.Unlock()
		return OutcomeFailed, err
	}
	if result.Status != payment.StatusSucceeded {
		f.busy = false
		f.pendingStatus = result.Status
		f.mu.Unlock()
		return OutcomePending, nil
	}
	if result.IntentID != "" {
		intentID = result.IntentID
	}
	f.session.confirmed = true
	f.mu.Unlock()

	if f.opts.Reconciler != nil && intentID != "" {
		f.opts.Reconciler.Dispatch(intentID)
	}
	f.logger.WithField("intent_id", intentID).Info("donation payment succeeded")

	f.wait(ctx, f.presentation.SuccessDelay)
	f.mu.Lock()
	f.step = StepSuccess
	f.busy = false
	f.mu.Unlock()

	f.wait(ctx, f.presentation.AutoCloseDelay)
	f.opts.OnComplete()
	return OutcomeSucceeded, nil
}

// Abandon resets the flow and cancels an outstanding unconfirmed intent. The
// cancel is best effort: the flow is reset even when it fails.
func (f *Flow) Abandon(ctx context.Context) error {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	s := f.session
	f.reset()
	f.mu.Unlock()

	if s == nil || s.confirmed || s.clientSecret == "" {
		return nil
	}
	return f.cancelIntent(ctx, s)
}

func (f *Flow) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	fieldErrors := make(map[string]string, len(f.fieldErrors))
	for k, v := range f.fieldErrors {
		fieldErrors[k] = v
	}
	state := State{
		Step:          f.step,
		Layout:        f.presentation.Layout,
		Preset:        f.preset,
		CustomAmount:  f.custom,
		DisplayAmount: donation.DisplayAmount(f.preset, f.custom),
		Recurring:     f.recurring,
		Donor:         f.donor,
		FieldErrors:   fieldErrors,
		FormError:     f.formError,
		Busy:          f.busy,
		PendingStatus: f.pendingStatus,
	}
	if f.session != nil {
		state.IntentID = f.session.intentID
	}
	return state
}

// PaymentElement is available only on the payment step.
func (f *Flow) PaymentElement() (PaymentElement, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepPayment || f.session == nil {
		return PaymentElement{}, false
	}
	return PaymentElement{
		ClientSecret: f.session.clientSecret,
		Appearance:   f.presentation.Appearance,
	}, true
}

// HonoreeSuggestions returns player names for the honoree type-ahead. Without a
// roster, or when the lookup fails, there are no suggestions.
func (f *Flow) HonoreeSuggestions(ctx context.Context, query string) []string {
	if f.opts.Roster == nil {
		return []string{}
	}
	players, err := f.opts.Roster.SearchPlayers(ctx, query)
	if err != nil {
		f.logger.WithError(err).Debug("roster lookup failed")
		return []string{}
	}
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.FullName())
	}
	return names
}

func (f *Flow) currentKey() intentKey {
	donor := f.donor
	donor.IsRecurring = f.recurring
	return intentKey{
		amount:     donation.DisplayAmount(f.preset, f.custom),
		recurring:  f.recurring,
		donor:      donor,
		campaignID: f.opts.CampaignID,
		eventTag:   f.opts.EventTag,
	}
}

func (f *Flow) request(key intentKey) donation.CreatePaymentRequest {
	req := donation.CreatePaymentRequest{
		Amount:       key.amount,
		DonorInfo:    key.donor,
		DonationType: donation.TypeFor(key.recurring),
		IsRecurring:  key.recurring,
	}
	if key.campaignID != "" {
		id := key.campaignID
		req.CampaignID = &id
	}
	if key.eventTag != "" {
		tag := key.eventTag
		req.EventTag = &tag
	}
	return req
}

func (f *Flow) cancelIntent(ctx context.Context, s *intentSession) error {
	if err := f.opts.Intents.CancelPayment(ctx, s.clientSecret); err != nil {
		f.logger.WithError(err).WithField("intent_id", s.intentID).Warn("could not cancel outstanding payment intent")
		return err
	}
	return nil
}

// recordValidation must be called with f.mu held.
func (f *Flow) recordValidation(err error) {
	var errs *validation.Errors
	var fieldErr *validation.Error
	switch {
	case errors.As(err, &errs):
		for field, msg := range errs.Fields() {
			f.fieldErrors[field] = msg
		}
	case errors.As(err, &fieldErr):
		f.fieldErrors[fieldErr.Field] = fieldErr.Msg
	}
}

func (f *Flow) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-f.opts.After(d):
	case <-ctx.Done():
	}
}

func userMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var gatewayErr *payment.Error
	if errors.As(err, &gatewayErr) {
		return gatewayErr.Message
	}
	var errs *validation.Errors
	if errors.As(err, &errs) && len(errs.Errors) > 0 {
		return errs.Errors[0].Error()
	}
	return networkErrorMessage
}

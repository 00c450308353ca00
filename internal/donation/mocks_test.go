package donation

import (
	"context"
	"errors"
	"github.com/sebuszqo/SledHockey/internal/payment"
	"sort"
	"sync"
	"time"
)

type MockRepository struct {
	mu        sync.Mutex
	donations map[string]*Donation
	createErr error
	attachErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{donations: map[string]*Donation{}}
}

func (m *MockRepository) Create(_ context.Context, d *Donation) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *d
	m.donations[d.ID] = &stored
	return nil
}

func (m *MockRepository) AttachIntent(_ context.Context, donationID, intentID string) error {
	if m.attachErr != nil {
		return m.attachErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[donationID]
	if !ok {
		return ErrDonationNotFound
	}
	d.PaymentIntentID = intentID
	return nil
}

func (m *MockRepository) MarkFailed(_ context.Context, donationID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[donationID]
	if !ok {
		return ErrDonationNotFound
	}
	d.Status = StatusFailed
	d.FailureMessage = message
	return nil
}

func (m *MockRepository) GetByIntentID(_ context.Context, intentID string) (*Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.donations {
		if d.PaymentIntentID == intentID {
			copied := *d
			return &copied, nil
		}
	}
	return nil, ErrDonationNotFound
}

func (m *MockRepository) ApplyStatus(_ context.Context, u StatusUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.donations {
		if d.PaymentIntentID != u.PaymentIntentID {
			continue
		}
		if d.Status.Terminal() || d.Status == u.Status {
			return false, nil
		}
		d.Status = u.Status
		d.FailureMessage = u.FailureMessage
		d.UpdatedAt = u.At
		if u.Status == StatusSucceeded && d.ConfirmedAt == nil {
			at := u.At
			d.ConfirmedAt = &at
		}
		return true, nil
	}
	return false, nil
}

func (m *MockRepository) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]Donation, error) {
	return m.filter(func(d *Donation) bool {
		return (d.Status == StatusPending || d.Status == StatusRequiresAction || d.Status == StatusFailed) &&
			d.PaymentIntentID != "" && d.CreatedAt.Before(createdBefore)
	}, limit), nil
}

func (m *MockRepository) ListSucceeded(_ context.Context, limit int) ([]Donation, error) {
	return m.filter(func(d *Donation) bool { return d.Status == StatusSucceeded }, limit), nil
}

func (m *MockRepository) List(_ context.Context, status Status, limit int) ([]Donation, error) {
	return m.filter(func(d *Donation) bool { return status == "" || d.Status == status }, limit), nil
}

func (m *MockRepository) filter(keep func(*Donation) bool, limit int) []Donation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Donation{}
	for _, d := range m.donations {
		if keep(d) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *MockRepository) only() *Donation {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.donations {
		return d
	}
	return nil
}

type MockGateway struct {
	created   []payment.CreateIntentParams
	canceled  []string
	intents   map[string]*payment.Intent
	createErr error
	cancelErr error
	nextID    int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{intents: map[string]*payment.Intent{}}
}

func (m *MockGateway) CreateIntent(_ context.Context, p payment.CreateIntentParams) (*payment.Intent, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, p)
	m.nextID++
	id := "pi_" + string(rune('0'+m.nextID))
	intent := &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret_abc",
		Status:       payment.StatusRequiresPaymentMethod,
		AmountCents:  p.AmountCents,
		Currency:     p.Currency,
		Metadata:     p.Metadata,
	}
	m.intents[id] = intent
	return intent, nil
}

func (m *MockGateway) GetIntent(_ context.Context, intentID string) (*payment.Intent, error) {
	intent, ok := m.intents[intentID]
	if !ok {
		return nil, &payment.Error{Op: "get payment intent", Message: "No such payment_intent"}
	}
	return intent, nil
}

func (m *MockGateway) CancelIntent(_ context.Context, intentID string) (*payment.Intent, error) {
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	intent, ok := m.intents[intentID]
	if !ok {
		return nil, errors.New("unknown intent")
	}
	m.canceled = append(m.canceled, intentID)
	intent.Status = payment.StatusCanceled
	return intent, nil
}

func (m *MockGateway) ConfirmIntent(_ context.Context, intentID string, _ payment.ConfirmParams) (*payment.Intent, error) {
	intent, ok := m.intents[intentID]
	if !ok {
		return nil, errors.New("unknown intent")
	}
	intent.Status = payment.StatusSucceeded
	return intent, nil
}

type MockService struct {
	session     *PaymentSession
	status      Status
	err         error
	lastRequest CreatePaymentRequest
	lastIntent  string
	recent      []PublicDonation
	listed      []Donation
}

func (m *MockService) CreatePayment(_ context.Context, req CreatePaymentRequest) (*PaymentSession, error) {
	m.lastRequest = req
	return m.session, m.err
}

func (m *MockService) ConfirmPaymentStatus(_ context.Context, intentID string) (Status, error) {
	m.lastIntent = intentID
	return m.status, m.err
}

func (m *MockService) CancelPayment(_ context.Context, clientSecret string) error {
	m.lastIntent = clientSecret
	return m.err
}

func (m *MockService) HandleWebhook(_ context.Context, _ []byte, _ string) error {
	return m.err
}

func (m *MockService) SweepAbandoned(_ context.Context, _ time.Duration) (int, error) {
	return 0, m.err
}

func (m *MockService) RecentDonations(_ context.Context, _ int) ([]PublicDonation, error) {
	return m.recent, m.err
}

func (m *MockService) ListDonations(_ context.Context, _ string, _ int) ([]Donation, error) {
	return m.listed, m.err
}

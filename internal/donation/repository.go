package donation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Repository interface {
	Create(ctx context.Context, d *Donation) error
	AttachIntent(ctx context.Context, donationID, intentID string) error
	MarkFailed(ctx context.Context, donationID, message string) error
	GetByIntentID(ctx context.Context, intentID string) (*Donation, error)
	ApplyStatus(ctx context.Context, update StatusUpdate) (bool, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]Donation, error)
	ListSucceeded(ctx context.Context, limit int) ([]Donation, error)
	List(ctx context.Context, status Status, limit int) ([]Donation, error)
}

type repository struct {
	db *sql.DB
}

func NewDonationRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const donationColumns = `id, COALESCE(payment_intent_id, ''), amount, currency, donation_type, status,
	donor_name, donor_email, donor_phone, company_name, honoree_player, is_anonymous, message,
	campaign_id, event_tag, failure_message, created_at, updated_at, confirmed_at`

func (r *repository) Create(ctx context.Context, d *Donation) error {
	query := `INSERT INTO donations
		(id, amount, currency, donation_type, status, donor_name, donor_email, donor_phone,
		 company_name, honoree_player, is_anonymous, message, campaign_id, event_tag, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.Amount, d.Currency, string(d.Type), string(d.Status),
		d.Donor.Name, d.Donor.Email, d.Donor.Phone, d.Donor.CompanyName, d.Donor.PlayerName,
		d.Donor.IsAnonymous, d.Donor.Message, d.CampaignID, d.EventTag, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("could not insert donation: %w", err)
	}
	return nil
}

func (r *repository) AttachIntent(ctx context.Context, donationID, intentID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE donations SET payment_intent_id = $2, updated_at = NOW() WHERE id = $1`,
		donationID, intentID)
	if err != nil {
		return fmt.Errorf("could not attach payment intent: %w", err)
	}
	return expectRow(res)
}

func (r *repository) MarkFailed(ctx context.Context, donationID, message string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE donations SET status = 'failed', failure_message = $2, updated_at = NOW()
		 WHERE id = $1 AND status NOT IN ('succeeded', 'canceled')`,
		donationID, message)
	if err != nil {
		return fmt.Errorf("could not mark donation failed: %w", err)
	}
	return expectRow(res)
}

func (r *repository) GetByIntentID(ctx context.Context, intentID string) (*Donation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+donationColumns+` FROM donations WHERE payment_intent_id = $1`, intentID)
	d, err := scanDonation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDonationNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ApplyStatus is keyed by payment intent id and never leaves a terminal status,
// so concurrent webhook and reconciliation updates converge. It reports whether
// a row changed.
func (r *repository) ApplyStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE donations
		 SET status = $2::text,
		     failure_message = $3,
		     updated_at = $4,
		     confirmed_at = CASE WHEN $2::text = 'succeeded' THEN COALESCE(confirmed_at, $4) ELSE confirmed_at END
		 WHERE payment_intent_id = $1
		   AND status NOT IN ('succeeded', 'canceled')
		   AND status <> $2::text`,
		u.PaymentIntentID, string(u.Status), u.FailureMessage, u.At)
	if err != nil {
		return false, fmt.Errorf("could not update donation status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]Donation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+donationColumns+` FROM donations
		 WHERE status IN ('pending', 'requires_action', 'failed')
		   AND payment_intent_id IS NOT NULL
		   AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list stale donations: %w", err)
	}
	return collect(rows)
}

func (r *repository) ListSucceeded(ctx context.Context, limit int) ([]Donation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+donationColumns+` FROM donations
		 WHERE status = 'succeeded'
		 ORDER BY confirmed_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list donations: %w", err)
	}
	return collect(rows)
}

func (r *repository) List(ctx context.Context, status Status, limit int) ([]Donation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+donationColumns+` FROM donations
		 WHERE ($1::text = '' OR status = $1::text)
		 ORDER BY created_at DESC
		 LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("could not list donations: %w", err)
	}
	return collect(rows)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDonation(s scanner) (*Donation, error) {
	var (
		d           Donation
		campaignID  sql.NullString
		eventTag    sql.NullString
		confirmedAt sql.NullTime
	)
	err := s.Scan(&d.ID, &d.PaymentIntentID, &d.Amount, &d.Currency, &d.Type, &d.Status,
		&d.Donor.Name, &d.Donor.Email, &d.Donor.Phone, &d.Donor.CompanyName, &d.Donor.PlayerName,
		&d.Donor.IsAnonymous, &d.Donor.Message, &campaignID, &eventTag, &d.FailureMessage,
		&d.CreatedAt, &d.UpdatedAt, &confirmedAt)
	if err != nil {
		return nil, err
	}
	if campaignID.Valid {
		d.CampaignID = &campaignID.String
	}
	if eventTag.Valid {
		d.EventTag = &eventTag.String
	}
	if confirmedAt.Valid {
		d.ConfirmedAt = &confirmedAt.Time
	}
	d.Donor.IsRecurring = d.Type == TypeRecurring
	return &d, nil
}

func collect(rows *sql.Rows) ([]Donation, error) {
	defer rows.Close()
	donations := []Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}
	return donations, rows.Err()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDonationNotFound
	}
	return nil
}

package intake

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sebuszqo/SledHockey/internal/logging"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultReconcileMaxElapsed = 30 * time.Second
	reconcileAttemptTimeout    = 10 * time.Second
)

type StatusReporter interface {
	ConfirmPaymentStatus(ctx context.Context, intentID string) (string, error)
}

// Reconciler reports a client-side payment success to the server so the
// donation record does not wait on a delayed webhook.
//
// Delivery is at least once: a dispatch may reach the server more than once,
// and may race the processor webhook. The receiving endpoint must be
// idempotent on the payment intent id, leaving a final donation untouched.
// Failures are logged and never reach the donor.
type Reconciler struct {
	reporter   StatusReporter
	maxElapsed time.Duration
	logger     *log.Entry
	wg         sync.WaitGroup
}

func NewReconciler(reporter StatusReporter, maxElapsed time.Duration) *Reconciler {
	if maxElapsed <= 0 {
		maxElapsed = DefaultReconcileMaxElapsed
	}
	return &Reconciler{
		reporter:   reporter,
		maxElapsed: maxElapsed,
		logger:     logging.Component("reconcile"),
	}
}

// Dispatch returns immediately; the report runs in the background.
func (r *Reconciler) Dispatch(intentID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(intentID)
	}()
}

// Wait blocks until every dispatched report has finished or given up.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

func (r *Reconciler) run(intentID string) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = r.maxElapsed

	attempts := 0
	operation := func() error {
		attempts++
		ctx, cancel := context.WithTimeout(context.Background(), reconcileAttemptTimeout)
		defer cancel()

		_, err := r.reporter.ConfirmPaymentStatus(ctx, intentID)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}

	entry := r.logger.WithField("intent_id", intentID)
	if err := backoff.Retry(operation, b); err != nil {
		entry.WithError(err).WithField("attempts", attempts).Warn("payment status reconciliation failed")
		return
	}
	entry.WithField("attempts", attempts).Debug("payment status reconciled")
}

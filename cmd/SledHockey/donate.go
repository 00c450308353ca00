package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sebuszqo/SledHockey/internal/config"
	"github.com/sebuszqo/SledHockey/internal/donation"
	"github.com/sebuszqo/SledHockey/internal/intake"
	"github.com/sebuszqo/SledHockey/internal/payment"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type donateOptions struct {
	presentation  string
	amount        string
	oneTime       bool
	donor         donation.DonorInfo
	paymentMethod string
	returnURL     string
	campaignID    string
	eventTag      string
	after         func(time.Duration) <-chan time.Time
}

func donateCmd(cfg func() *config.Config) *cobra.Command {
	opts := donateOptions{}

	cmd := &cobra.Command{
		Use:   "donate",
		Short: "Run a test donation end to end against a running server",
		Long: `Drive the donation intake flow against API_BASE_URL and confirm the
payment server side with a Stripe test payment method.

Examples:
  sledhockey donate --name "Pat Doe" --email pat@example.com
  sledhockey donate --amount 12.50 --one-time --player "Sam Ice" --presentation embedded`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			if c.Stripe.SecretKey == "" {
				return config.ErrMissingStripeSecret
			}
			client := intake.NewAPIClient(c.Client.APIBaseURL, c.Client.Timeout)
			confirmer := &intake.GatewayConfirmer{
				Gateway:       payment.NewStripeGateway(c.Stripe.SecretKey),
				PaymentMethod: opts.paymentMethod,
				ReturnURL:     opts.returnURL,
			}
			return runDonate(cmd.Context(), cmd.OutOrStdout(), client, confirmer, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.presentation, "presentation", "modal", "modal, embedded or floating")
	f.StringVar(&opts.amount, "amount", "", "preset or custom amount (defaults to the default preset)")
	f.BoolVar(&opts.oneTime, "one-time", false, "make a one-time instead of a monthly donation")
	f.StringVar(&opts.donor.Name, "name", "", "donor name")
	f.StringVar(&opts.donor.Email, "email", "", "donor email")
	f.StringVar(&opts.donor.Phone, "phone", "", "donor phone")
	f.StringVar(&opts.donor.CompanyName, "company", "", "company name")
	f.StringVar(&opts.donor.PlayerName, "player", "", "player to honor")
	f.StringVar(&opts.donor.Message, "message", "", "message for the team")
	f.BoolVar(&opts.donor.IsAnonymous, "anonymous", false, "hide the donor name on the donor wall")
	f.StringVar(&opts.paymentMethod, "payment-method", "pm_card_visa", "Stripe test payment method")
	f.StringVar(&opts.returnURL, "return-url", "https://example.org/donate/complete", "return URL for redirect-based methods")
	f.StringVar(&opts.campaignID, "campaign", "", "campaign goal id")
	f.StringVar(&opts.eventTag, "event", "", "event tag")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	return cmd
}

type donateClient interface {
	intake.IntentService
	intake.RosterLookup
	intake.StatusReporter
	Settings(ctx context.Context) (*donation.ClientSettings, error)
}

func runDonate(ctx context.Context, out io.Writer, client donateClient, confirmer intake.Confirmer, opts donateOptions) error {
	settings, err := client.Settings(ctx)
	if err != nil {
		return fmt.Errorf("could not load donation settings: %w", err)
	}
	presentation, ok := intake.PresentationByName(opts.presentation, config.AppearanceSet{Default: settings.Appearance})
	if !ok {
		return fmt.Errorf("unknown presentation %q", opts.presentation)
	}

	reconciler := intake.NewReconciler(client, 0)
	defer reconciler.Wait()

	flow, err := intake.NewFlow(presentation, intake.Options{
		Intents:    client,
		Confirmer:  confirmer,
		Reconciler: reconciler,
		Roster:     client,
		CampaignID: opts.campaignID,
		EventTag:   opts.eventTag,
		After:      opts.after,
		OnComplete: func() { fmt.Fprintln(out, "thank you for supporting the team") },
	})
	if err != nil {
		return err
	}

	if err := chooseAmount(flow, opts.amount); err != nil {
		return err
	}
	if err := flow.SetRecurring(!opts.oneTime); err != nil {
		return err
	}
	if presentation.Layout == intake.LayoutThreeStep {
		if err := flow.ContinueFromAmount(); err != nil {
			return describe(flow, err)
		}
	}

	if opts.donor.PlayerName != "" {
		suggestions := flow.HonoreeSuggestions(ctx, opts.donor.PlayerName)
		if !containsFold(suggestions, opts.donor.PlayerName) {
			log.WithField("suggestions", suggestions).Warn("honoree is not on the active roster")
		}
	}
	if err := flow.SetDonor(opts.donor); err != nil {
		return err
	}
	if err := flow.SubmitInfo(ctx); err != nil {
		return describe(flow, err)
	}

	state := flow.Snapshot()
	fmt.Fprintf(out, "payment intent %s created for $%.2f (%s)\n", state.IntentID, state.DisplayAmount, donation.TypeFor(state.Recurring))

	outcome, err := flow.SubmitPayment(ctx)
	switch outcome {
	case intake.OutcomeSucceeded:
		fmt.Fprintln(out, "payment succeeded")
		return nil
	case intake.OutcomePending:
		fmt.Fprintf(out, "payment is %s\n", flow.Snapshot().PendingStatus)
		return nil
	}
	return describe(flow, err)
}

func chooseAmount(flow *intake.Flow, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if amount, err := strconv.ParseFloat(raw, 64); err == nil && donation.IsPreset(amount) {
		return flow.SelectPreset(amount)
	}
	return flow.SetCustomAmount(raw)
}

// describe prefers the message the form would show over the raw error.
func describe(flow *intake.Flow, err error) error {
	state := flow.Snapshot()
	if state.FormError != "" {
		return errors.New(state.FormError)
	}
	if len(state.FieldErrors) > 0 {
		parts := make([]string, 0, len(state.FieldErrors))
		for field, msg := range state.FieldErrors {
			parts = append(parts, field+": "+msg)
		}
		sort.Strings(parts)
		return errors.New(strings.Join(parts, "; "))
	}
	return err
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

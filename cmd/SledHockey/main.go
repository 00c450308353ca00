package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sebuszqo/SledHockey/internal/admin"
	"github.com/sebuszqo/SledHockey/internal/config"
	database "github.com/sebuszqo/SledHockey/internal/db"
	"github.com/sebuszqo/SledHockey/internal/donation"
	"github.com/sebuszqo/SledHockey/internal/logging"
	"github.com/sebuszqo/SledHockey/internal/payment"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "sledhockey",
		Short:         "Donation service for the sled hockey team",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("could not load configuration: %w", err)
			}
			logging.Setup(loaded.Logging)
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	configFn := func() *config.Config { return cfg }
	root.AddCommand(serveCmd(configFn))
	root.AddCommand(migrateCmd(configFn))
	root.AddCommand(sweepCmd(configFn))
	root.AddCommand(createAdminCmd(configFn))
	root.AddCommand(donateCmd(configFn))
	return root
}

func serveCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the abandoned-intent sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg())
		},
	}
}

func migrateCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbService, err := openDatabase(cfg())
			if err != nil {
				return err
			}
			defer dbService.Close()
			return dbService.Migrate(cmd.Context())
		},
	}
}

func sweepCmd(cfg func() *config.Config) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep-intents",
		Short: "Cancel payment intents left pending longer than the TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			if c.Stripe.SecretKey == "" {
				return config.ErrMissingStripeSecret
			}
			dbService, err := openDatabase(c)
			if err != nil {
				return err
			}
			defer dbService.Close()

			ttl := c.Donation.PendingIntentTTL
			if olderThan > 0 {
				ttl = olderThan
			}
			service := donation.NewDonationService(
				donation.NewDonationRepository(dbService.DB),
				payment.NewStripeGateway(c.Stripe.SecretKey),
				donation.Options{Currency: c.Stripe.Currency, MaxAmount: c.Donation.MaxAmount},
			)
			canceled, err := service.SweepAbandoned(cmd.Context(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "canceled %d abandoned payment intents\n", canceled)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override PENDING_INTENT_TTL")
	return cmd
}

func createAdminCmd(cfg func() *config.Config) *cobra.Command {
	var email, login, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a back-office admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			dbService, err := openDatabase(cfg())
			if err != nil {
				return err
			}
			defer dbService.Close()

			service := admin.NewAdminService(admin.NewAdminRepository(dbService.DB), admin.DefaultBcryptCost)
			created, err := service.CreateAdmin(cmd.Context(), email, login, password)
			if err != nil {
				return fmt.Errorf("could not create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", created.Login, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&login, "login", "", "admin login")
	cmd.Flags().StringVar(&password, "password", "", "admin password (defaults to $ADMIN_PASSWORD)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("login")
	return cmd
}

func openDatabase(cfg *config.Config) (*database.DBService, error) {
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, err
	}
	dbService, err := database.NewDBService(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("could not initialize database: %w", err)
	}
	log.Debug("database connection established")
	return dbService, nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sebuszqo/SledHockey/internal/admin"
	"github.com/sebuszqo/SledHockey/internal/auth"
	"github.com/sebuszqo/SledHockey/internal/config"
	database "github.com/sebuszqo/SledHockey/internal/db"
	"github.com/sebuszqo/SledHockey/internal/donation"
	"github.com/sebuszqo/SledHockey/internal/goal"
	"github.com/sebuszqo/SledHockey/internal/logging"
	"github.com/sebuszqo/SledHockey/internal/payment"
	"github.com/sebuszqo/SledHockey/internal/progress"
	"github.com/sebuszqo/SledHockey/internal/roster"
	log "github.com/sirupsen/logrus"
)

type Response struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string, errors ...[]string) {
	payload := map[string]interface{}{
		"status":  "error",
		"message": message,
		"code":    status,
	}
	if len(errors) > 0 && len(errors[0]) > 0 {
		payload["errors"] = errors[0]
	}
	respondJSON(w, status, payload)
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusNotFound, Response{Message: "Path not found"})
}

type healthChecker interface {
	Health(ctx context.Context) map[string]string
}

type Server struct {
	router          http.Handler
	authService     auth.Service
	authHandler     *auth.Handler
	donationHandler *donation.Handler
	goalHandler     *goal.Handler
	rosterHandler   roster.Handler
	widgetHandler   *progress.WidgetHandler
	health          healthChecker
	allowedOrigins  []string
}

func NewServer(
	authService auth.Service,
	authHandler *auth.Handler,
	donationHandler *donation.Handler,
	goalHandler *goal.Handler,
	rosterHandler roster.Handler,
	widgetHandler *progress.WidgetHandler,
	health healthChecker,
	allowedOrigins []string,
) *Server {
	return &Server{
		authService:     authService,
		authHandler:     authHandler,
		donationHandler: donationHandler,
		goalHandler:     goalHandler,
		rosterHandler:   rosterHandler,
		widgetHandler:   widgetHandler,
		health:          health,
		allowedOrigins:  allowedOrigins,
	}
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	stats := s.health.Health(ctx)
	if stats["status"] != "up" {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) RegisterRoutes() {
	protect := s.authService.JWTAccessTokenMiddleware()

	// Public API routes
	publicRoutes := http.NewServeMux()
	publicRoutes.Handle("GET /api/ready", http.HandlerFunc(s.handleReady))
	publicRoutes.Handle("GET /api/donations/progress", http.HandlerFunc(s.goalHandler.GetProgress))
	publicRoutes.Handle("GET /api/donations/recent", http.HandlerFunc(s.donationHandler.GetRecentDonations))
	publicRoutes.Handle("GET /api/donations/config", http.HandlerFunc(s.donationHandler.GetDonationConfig))
	publicRoutes.Handle("GET /api/roster/players", http.HandlerFunc(s.rosterHandler.SearchPlayers))
	publicRoutes.Handle("POST /api/admin/login", http.HandlerFunc(s.authHandler.HandleLogin))
	publicRoutes.Handle("POST /api/admin/2fa/verify", http.HandlerFunc(s.authHandler.HandleVerifyTwoFactor))

	// Protected routes (using JWT Access Token Middleware)
	protectedRoutes := http.NewServeMux()
	protectedRoutes.Handle("GET /api/protected/profile", protect(http.HandlerFunc(s.authHandler.HandleProfile)))
	protectedRoutes.Handle("POST /api/protected/2fa/register", protect(http.HandlerFunc(s.authHandler.HandleRegisterTwoFactor)))
	protectedRoutes.Handle("POST /api/protected/2fa/verify-registration", protect(http.HandlerFunc(s.authHandler.HandleVerifyTwoFactorRegistration)))
	protectedRoutes.Handle("DELETE /api/protected/2fa/disable", protect(http.HandlerFunc(s.authHandler.HandleDisableTwoFactor)))
	protectedRoutes.Handle("GET /api/protected/donations", protect(http.HandlerFunc(s.donationHandler.ListDonations)))
	protectedRoutes.Handle("GET /api/protected/goals", protect(http.HandlerFunc(s.goalHandler.ListGoals)))
	protectedRoutes.Handle("POST /api/protected/goals", protect(http.HandlerFunc(s.goalHandler.CreateGoal)))
	protectedRoutes.Handle("DELETE /api/protected/goals/{goalID}", protect(http.HandlerFunc(s.goalHandler.DeactivateGoal)))

	// Donation form endpoints keep their function-style paths
	mainRouter := http.NewServeMux()
	mainRouter.Handle("POST /create-donation-payment", http.HandlerFunc(s.donationHandler.CreateDonationPayment))
	mainRouter.Handle("POST /confirm-payment-status", http.HandlerFunc(s.donationHandler.ConfirmPaymentStatus))
	mainRouter.Handle("POST /cancel-donation-payment", http.HandlerFunc(s.donationHandler.CancelDonationPayment))
	mainRouter.Handle("POST /stripe-webhook", http.HandlerFunc(s.donationHandler.StripeWebhook))
	mainRouter.Handle("GET /widgets/progress", s.widgetHandler)

	mainRouter.Handle("/api/", publicRoutes)
	mainRouter.Handle("/api/protected/", protectedRoutes)
	mainRouter.Handle("/", http.HandlerFunc(notFoundHandler))

	s.router = logging.Middleware(corsMiddleware(s.allowedOrigins)(mainRouter))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// corsMiddleware allows the donation form to be embedded on other sites. A "*"
// entry allows any origin. Preflight requests are answered here.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(origin, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("missing configuration, update to start server: %w", err)
	}
	if cfg.Stripe.WebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET is not set, the webhook endpoint will reject events")
	}

	dbService, err := database.NewDBService(cfg.Database)
	if err != nil {
		return fmt.Errorf("could not initialize database: %w", err)
	}
	defer dbService.Close()
	if err := dbService.Migrate(ctx); err != nil {
		return err
	}

	appearances, err := config.LoadAppearance(cfg.AppearanceFile)
	if err != nil {
		return err
	}

	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey)

	donationService := donation.NewDonationService(
		donation.NewDonationRepository(dbService.DB),
		gateway,
		donation.Options{
			Currency:      cfg.Stripe.Currency,
			MaxAmount:     cfg.Donation.MaxAmount,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		},
	)
	donationHandler := donation.NewHandler(donationService, donation.ClientSettings{
		PublishableKey:   cfg.Stripe.PublishableKey,
		Currency:         cfg.Stripe.Currency,
		Presets:          donation.Presets,
		DefaultPreset:    donation.DefaultPreset,
		DefaultRecurring: donation.DefaultRecurring,
		MaxAmount:        cfg.Donation.MaxAmount,
		Appearance:       appearances.Default,
	}, respondJSON, respondError)

	goalService := goal.NewGoalService(goal.NewGoalRepository(dbService.DB))
	goalHandler := goal.NewHandler(goalService, respondJSON, respondError)
	widgetHandler := progress.NewWidgetHandler(goalService)

	rosterService := roster.NewRosterService(roster.NewRosterRepository(dbService.DB))
	rosterHandler := roster.NewRosterHandler(rosterService, respondJSON, respondError)

	jwtManager, err := auth.NewJWTManager(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	sessionManager := auth.NewSessionManager()
	sessionManager.StartSessionTokenCleanup(ctx, time.Minute)
	adminService := admin.NewAdminService(admin.NewAdminRepository(dbService.DB), admin.DefaultBcryptCost)
	authService := auth.NewAuthService(adminService, sessionManager, jwtManager, auth.Authenticator{Issuer: cfg.Auth.Issuer})
	authHandler := auth.NewHandler(authService, respondJSON, respondError)

	server := NewServer(authService, authHandler, donationHandler, goalHandler, rosterHandler, widgetHandler, dbService, cfg.HTTP.AllowedOrigins)
	server.RegisterRoutes()

	scheduler, err := StartSweepScheduler(donationService, cfg.Donation)
	if err != nil {
		return fmt.Errorf("scheduler didn't start: %w", err)
	}
	defer func() { <-scheduler.Stop().Done() }()

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      server,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("server starting")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

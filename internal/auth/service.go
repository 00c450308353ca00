package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sebuszqo/SledHockey/internal/admin"
	"github.com/sebuszqo/SledHockey/internal/logging"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrInternalError           = errors.New("internal server error")
	ErrTwoFactorNotEnabled     = errors.New("two factor auth is not enabled")
	ErrTwoFactorAlreadyEnabled = errors.New("two factor auth already enabled")
	ErrTwoFactorNotRegistered  = errors.New("two factor auth has not been registered")
	ErrInvalid2FACode          = errors.New("2fa code is invalid")
)

// LoginResult holds either an access token or, when a second factor is
// required, a session token to exchange at the TOTP step.
type LoginResult struct {
	Admin        *admin.Admin
	AccessToken  string
	SessionToken string
}

func (r *LoginResult) TwoFactorRequired() bool {
	return r.SessionToken != ""
}

type Service interface {
	Login(ctx context.Context, emailOrLogin, password string) (*LoginResult, error)
	VerifyTwoFactor(ctx context.Context, sessionToken, code string) (string, error)
	RegisterTwoFactor(ctx context.Context, adminID string) (string, error)
	VerifyTwoFactorRegistration(ctx context.Context, adminID, code string) error
	DisableTwoFactor(ctx context.Context, adminID, code string) error
	Profile(ctx context.Context, adminID string) (*admin.Admin, error)
	JWTAccessTokenMiddleware() func(http.Handler) http.Handler
}

type service struct {
	adminService   admin.Service
	sessionManager SessionManagerInterface
	jwtManager     JWTManagerInterface
	authenticator  Authenticator
	logger         *log.Entry
}

func NewAuthService(adminService admin.Service, sessionManager SessionManagerInterface, jwtManager JWTManagerInterface, authenticator Authenticator) Service {
	return &service{
		adminService:   adminService,
		sessionManager: sessionManager,
		jwtManager:     jwtManager,
		authenticator:  authenticator,
		logger:         logging.Component("auth"),
	}
}

func (s *service) Login(ctx context.Context, emailOrLogin, password string) (*LoginResult, error) {
	existing, err := s.adminService.GetAdminByLoginOrEmail(ctx, emailOrLogin)
	if err != nil {
		if errors.Is(err, admin.ErrAdminNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.WithError(err).Error("could not load admin for login")
		return nil, ErrInternalError
	}
	if !existing.PasswordMatches(password) {
		s.logger.WithField("admin_id", existing.ID).Warn("admin login with wrong password")
		return nil, ErrInvalidCredentials
	}

	if existing.TwoFactorEnabled {
		sessionToken, err := s.sessionManager.GenerateSessionToken(existing.ID, defaultSessionTokenDuration)
		if err != nil {
			s.logger.WithError(err).Error("could not issue session token")
			return nil, ErrInternalError
		}
		return &LoginResult{Admin: existing, SessionToken: sessionToken}, nil
	}

	accessToken, err := s.issueAccessToken(existing.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Admin: existing, AccessToken: accessToken}, nil
}

// VerifyTwoFactor exchanges a login session token plus a TOTP code for an
// access token. The session token is single use.
func (s *service) VerifyTwoFactor(ctx context.Context, sessionToken, code string) (string, error) {
	adminID, err := s.sessionManager.VerifySessionToken(sessionToken)
	if err != nil {
		return "", err
	}
	existing, err := s.loadAdmin(ctx, adminID)
	if err != nil {
		return "", err
	}
	if !existing.TwoFactorEnabled {
		return "", ErrTwoFactorNotEnabled
	}
	if !s.authenticator.VerifyCode(existing.TOTPSecret, code) {
		return "", ErrInvalid2FACode
	}

	s.sessionManager.DeleteSessionToken(sessionToken)
	return s.issueAccessToken(existing.ID)
}

// RegisterTwoFactor stores a new TOTP secret and returns its otpauth URI. The
// second factor is enforced only after VerifyTwoFactorRegistration.
func (s *service) RegisterTwoFactor(ctx context.Context, adminID string) (string, error) {
	existing, err := s.loadAdmin(ctx, adminID)
	if err != nil {
		return "", err
	}
	if existing.TwoFactorEnabled {
		return "", ErrTwoFactorAlreadyEnabled
	}

	otpURI, secret, err := s.authenticator.GenerateSecret(existing.Email)
	if err != nil {
		s.logger.WithError(err).Error("could not generate totp secret")
		return "", ErrInternalError
	}
	if err := s.adminService.SaveTOTPSecret(ctx, adminID, secret); err != nil {
		s.logger.WithError(err).Error("could not save totp secret")
		return "", ErrInternalError
	}
	return otpURI, nil
}

func (s *service) VerifyTwoFactorRegistration(ctx context.Context, adminID, code string) error {
	existing, err := s.loadAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	if existing.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}
	if existing.TOTPSecret == "" {
		return ErrTwoFactorNotRegistered
	}
	if !s.authenticator.VerifyCode(existing.TOTPSecret, code) {
		return ErrInvalid2FACode
	}
	if err := s.adminService.EnableTwoFactor(ctx, adminID); err != nil {
		s.logger.WithError(err).Error("could not enable two factor auth")
		return ErrInternalError
	}
	s.logger.WithField("admin_id", adminID).Info("two factor auth enabled")
	return nil
}

func (s *service) DisableTwoFactor(ctx context.Context, adminID, code string) error {
	existing, err := s.loadAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	if !existing.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}
	if !s.authenticator.VerifyCode(existing.TOTPSecret, code) {
		return ErrInvalid2FACode
	}
	if err := s.adminService.DisableTwoFactor(ctx, adminID); err != nil {
		s.logger.WithError(err).Error("could not disable two factor auth")
		return ErrInternalError
	}
	s.logger.WithField("admin_id", adminID).Info("two factor auth disabled")
	return nil
}

func (s *service) Profile(ctx context.Context, adminID string) (*admin.Admin, error) {
	return s.loadAdmin(ctx, adminID)
}

func (s *service) loadAdmin(ctx context.Context, adminID string) (*admin.Admin, error) {
	existing, err := s.adminService.GetAdminByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, admin.ErrAdminNotFound) {
			return nil, admin.ErrAdminNotFound
		}
		s.logger.WithError(err).Error("could not load admin")
		return nil, ErrInternalError
	}
	return existing, nil
}

func (s *service) issueAccessToken(adminID string) (string, error) {
	token, err := s.jwtManager.GenerateAccessJWT(adminID, defaultJWTDuration)
	if err != nil {
		s.logger.WithError(fmt.Errorf("jwt: %w", err)).Error("could not issue access token")
		return "", ErrInternalError
	}
	return token, nil
}

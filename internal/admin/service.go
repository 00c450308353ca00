package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/sebuszqo/SledHockey/internal/logging"
	"github.com/sebuszqo/SledHockey/internal/validation"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxEmailLength    = 254
	minEmailLength    = 3
	maxLoginLength    = 30
	minLoginLength    = 5
	minPasswordLength = 10
	DefaultBcryptCost = 12
)

var (
	ErrAdminNotFound      = errors.New("admin not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrLoginAlreadyExists = errors.New("login already exists")
)

type Admin struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Login            string    `json:"login"`
	PasswordHash     string    `json:"-"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	TOTPSecret       string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PasswordMatches reports whether password is the admin's password.
func (a *Admin) PasswordMatches(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

type Service interface {
	CreateAdmin(ctx context.Context, email, login, password string) (*Admin, error)
	GetAdminByID(ctx context.Context, id string) (*Admin, error)
	GetAdminByLoginOrEmail(ctx context.Context, loginOrEmail string) (*Admin, error)
	SaveTOTPSecret(ctx context.Context, id, secret string) error
	EnableTwoFactor(ctx context.Context, id string) error
	DisableTwoFactor(ctx context.Context, id string) error
}

type service struct {
	repo       Repository
	bcryptCost int
	logger     *log.Entry
}

// NewAdminService hashes passwords with bcryptCost, or DefaultBcryptCost when
// it is zero.
func NewAdminService(repo Repository, bcryptCost int) Service {
	if bcryptCost == 0 {
		bcryptCost = DefaultBcryptCost
	}
	return &service{
		repo:       repo,
		bcryptCost: bcryptCost,
		logger:     logging.Component("admin"),
	}
}

func validateAccount(email, login, password string) error {
	errs := &validation.Errors{}
	if len(email) > maxEmailLength || len(email) < minEmailLength {
		errs.Add(validation.NewError("email", fmt.Sprintf("email must be between %d and %d characters", minEmailLength, maxEmailLength)))
	} else if err := checkmail.ValidateFormat(email); err != nil {
		errs.Add(validation.NewError("email", "email address is not valid"))
	}
	if len(login) > maxLoginLength || len(login) < minLoginLength {
		errs.Add(validation.NewError("login", fmt.Sprintf("login must be between %d and %d characters", minLoginLength, maxLoginLength)))
	} else if strings.Contains(login, "@") {
		errs.Add(validation.NewError("login", "login must not contain '@'"))
	}
	if len(password) < minPasswordLength {
		errs.Add(validation.NewError("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength)))
	}
	return errs.ErrOrNil()
}

func (s *service) CreateAdmin(ctx context.Context, email, login, password string) (*Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	login = strings.TrimSpace(login)
	if err := validateAccount(email, login, password); err != nil {
		return nil, err
	}

	existing, err := s.repo.existsByLoginOrEmail(ctx, login, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Email == email {
			return nil, ErrEmailAlreadyExists
		}
		return nil, ErrLoginAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("could not hash password: %w", err)
	}

	a := &Admin{Email: email, Login: login, PasswordHash: string(hash)}
	if err := s.repo.createAdmin(ctx, a); err != nil {
		return nil, err
	}
	s.logger.WithField("admin_id", a.ID).Info("admin account created")
	return a, nil
}

func (s *service) GetAdminByID(ctx context.Context, id string) (*Admin, error) {
	return s.repo.getByID(ctx, id)
}

func (s *service) GetAdminByLoginOrEmail(ctx context.Context, loginOrEmail string) (*Admin, error) {
	loginOrEmail = strings.TrimSpace(loginOrEmail)
	if strings.Contains(loginOrEmail, "@") {
		loginOrEmail = strings.ToLower(loginOrEmail)
	}
	return s.repo.getByLoginOrEmail(ctx, loginOrEmail)
}

// SaveTOTPSecret stores a secret awaiting confirmation; two-factor login stays
// off until EnableTwoFactor.
func (s *service) SaveTOTPSecret(ctx context.Context, id, secret string) error {
	return s.repo.saveTOTPSecret(ctx, id, secret)
}

func (s *service) EnableTwoFactor(ctx context.Context, id string) error {
	return s.repo.setTwoFactorEnabled(ctx, id, true)
}

func (s *service) DisableTwoFactor(ctx context.Context, id string) error {
	if err := s.repo.setTwoFactorEnabled(ctx, id, false); err != nil {
		return err
	}
	return s.repo.saveTOTPSecret(ctx, id, "")
}

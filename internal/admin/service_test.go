package admin

import (
	"context"
	"fmt"
	"testing"

	"github.com/sebuszqo/SledHockey/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type MockRepository struct {
	admins map[string]*Admin
	nextID int
}

func newMockRepository() *MockRepository {
	return &MockRepository{admins: map[string]*Admin{}}
}

func (m *MockRepository) createAdmin(_ context.Context, a *Admin) error {
	m.nextID++
	a.ID = fmt.Sprintf("admin-%d", m.nextID)
	stored := *a
	m.admins[a.ID] = &stored
	return nil
}

func (m *MockRepository) getByID(_ context.Context, id string) (*Admin, error) {
	if a, ok := m.admins[id]; ok {
		found := *a
		return &found, nil
	}
	return nil, ErrAdminNotFound
}

func (m *MockRepository) getByLoginOrEmail(_ context.Context, loginOrEmail string) (*Admin, error) {
	for _, a := range m.admins {
		if a.Email == loginOrEmail || a.Login == loginOrEmail {
			found := *a
			return &found, nil
		}
	}
	return nil, ErrAdminNotFound
}

func (m *MockRepository) existsByLoginOrEmail(_ context.Context, login, email string) (*Admin, error) {
	for _, a := range m.admins {
		if a.Email == email || a.Login == login {
			found := *a
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MockRepository) saveTOTPSecret(_ context.Context, id, secret string) error {
	a, ok := m.admins[id]
	if !ok {
		return ErrAdminNotFound
	}
	a.TOTPSecret = secret
	return nil
}

func (m *MockRepository) setTwoFactorEnabled(_ context.Context, id string, enabled bool) error {
	a, ok := m.admins[id]
	if !ok {
		return ErrAdminNotFound
	}
	a.TwoFactorEnabled = enabled
	return nil
}

func TestCreateAdmin(t *testing.T) {
	repo := newMockRepository()
	svc := NewAdminService(repo, bcrypt.MinCost)

	a, err := svc.CreateAdmin(context.Background(), " Coach@Example.com ", "coachpat", "correct-horse")

	require.NoError(t, err)
	assert.Equal(t, "coach@example.com", a.Email)
	assert.NotEqual(t, "correct-horse", a.PasswordHash)
	assert.True(t, a.PasswordMatches("correct-horse"))
	assert.False(t, a.PasswordMatches("wrong-password"))
	assert.False(t, a.TwoFactorEnabled)
}

func TestCreateAdmin_Validation(t *testing.T) {
	svc := NewAdminService(newMockRepository(), bcrypt.MinCost)

	_, err := svc.CreateAdmin(context.Background(), "not-an-email", "pat", "short")

	var errs *validation.Errors
	require.ErrorAs(t, err, &errs)
	fields := errs.Fields()
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "login")
	assert.Contains(t, fields, "password")
}

func TestCreateAdmin_Duplicates(t *testing.T) {
	svc := NewAdminService(newMockRepository(), bcrypt.MinCost)
	_, err := svc.CreateAdmin(context.Background(), "coach@example.com", "coachpat", "correct-horse")
	require.NoError(t, err)

	_, err = svc.CreateAdmin(context.Background(), "coach@example.com", "another", "correct-horse")
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)

	_, err = svc.CreateAdmin(context.Background(), "other@example.com", "coachpat", "correct-horse")
	assert.ErrorIs(t, err, ErrLoginAlreadyExists)
}

func TestGetAdminByLoginOrEmail(t *testing.T) {
	svc := NewAdminService(newMockRepository(), bcrypt.MinCost)
	created, err := svc.CreateAdmin(context.Background(), "coach@example.com", "coachpat", "correct-horse")
	require.NoError(t, err)

	byEmail, err := svc.GetAdminByLoginOrEmail(context.Background(), "COACH@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byLogin, err := svc.GetAdminByLoginOrEmail(context.Background(), "coachpat")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byLogin.ID)

	_, err = svc.GetAdminByLoginOrEmail(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrAdminNotFound)
}

func TestTwoFactorLifecycle(t *testing.T) {
	repo := newMockRepository()
	svc := NewAdminService(repo, bcrypt.MinCost)
	a, err := svc.CreateAdmin(context.Background(), "coach@example.com", "coachpat", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, svc.SaveTOTPSecret(context.Background(), a.ID, "JBSWY3DPEHPK3PXP"))
	stored, _ := svc.GetAdminByID(context.Background(), a.ID)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", stored.TOTPSecret)

	require.NoError(t, svc.EnableTwoFactor(context.Background(), a.ID))
	stored, _ = svc.GetAdminByID(context.Background(), a.ID)
	assert.True(t, stored.TwoFactorEnabled)

	require.NoError(t, svc.DisableTwoFactor(context.Background(), a.ID))
	stored, _ = svc.GetAdminByID(context.Background(), a.ID)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Empty(t, stored.TOTPSecret)

	assert.ErrorIs(t, svc.EnableTwoFactor(context.Background(), "missing"), ErrAdminNotFound)
}

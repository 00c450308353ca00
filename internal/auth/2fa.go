package auth

import (
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const defaultIssuer = "SledHockey"

// Authenticator issues and checks TOTP secrets for authenticator apps.
type Authenticator struct {
	Issuer string
}

// GenerateSecret uses SHA1 for authenticator app compatibility. It returns the
// otpauth URI to show as a QR code and the base32 secret to store.
func (a Authenticator) GenerateSecret(accountName string) (string, string, error) {
	issuer := a.Issuer
	if issuer == "" {
		issuer = defaultIssuer
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("could not generate totp secret: %w", err)
	}
	return key.URL(), key.Secret(), nil
}

func (a Authenticator) VerifyCode(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}

package security

import (
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// TOTPKey is a freshly generated authenticator secret.
type TOTPKey struct {
	Secret string
	URL    string
}

// TOTP generates and checks time-based one-time passwords.
type TOTP interface {
	Generate(accountName string) (*TOTPKey, error)
	Validate(code, secret string) bool
}

type totpProvider struct {
	issuer string
	now    func() time.Time
}

func NewTOTP(issuer string) TOTP {
	return &totpProvider{issuer: issuer, now: time.Now}
}

func (p *totpProvider) Generate(accountName string) (*TOTPKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp key: %w", err)
	}
	return &TOTPKey{Secret: key.Secret(), URL: key.URL()}, nil
}

func (p *totpProvider) Validate(code, secret string) bool {
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}

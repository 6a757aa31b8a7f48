package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TokenSigner mints a bearer token for an authenticated role.
type TokenSigner func(role string, ttl time.Duration) (string, error)

// AuthService gates the admin surfaces behind a single shared password whose
// bcrypt hash is supplied through configuration. When no hash is configured
// the admin surfaces stay open, matching deployments that sit behind their
// own access control.
type AuthService struct {
	passHash  []byte
	signToken TokenSigner
	tokenTTL  time.Duration
}

func NewAuthService(passHash string, signer TokenSigner) *AuthService {
	var hash []byte
	if strings.TrimSpace(passHash) != "" {
		hash = []byte(passHash)
	}
	return &AuthService{
		passHash:  hash,
		signToken: signer,
		tokenTTL:  12 * time.Hour,
	}
}

// Enabled reports whether an admin password hash is configured.
func (s *AuthService) Enabled() bool { return len(s.passHash) > 0 }

// Login checks the password against the configured hash and returns a signed
// admin token.
func (s *AuthService) Login(password string) (string, error) {
	if !s.Enabled() {
		return "", NewNotConfiguredError("admin login is not configured")
	}
	if strings.TrimSpace(password) == "" {
		return "", NewInvalidError("password required")
	}
	if err := bcrypt.CompareHashAndPassword(s.passHash, []byte(password)); err != nil {
		return "", NewUnauthorizedError("invalid credentials")
	}
	if s.signToken == nil {
		return "", NewNotConfiguredError("token signer not configured")
	}
	token, err := s.signToken("admin", s.tokenTTL)
	if err != nil {
		return "", err
	}
	return token, nil
}

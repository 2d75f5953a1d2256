// Package license implements developer-program license issuance with
// one-time-reveal tokens.
package license

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roboskills/skillhub/models"
)

// tokenBytes is the raw token entropy. 32 bytes is well above the 128-bit
// floor.
const tokenBytes = 32

// KindAlreadyActive is the stable error kind for idempotent re-activation.
const KindAlreadyActive = "already_active"

// ErrInvalidToken is returned when a presented token matches no active
// license.
var ErrInvalidToken = errors.New("invalid or revoked license token")

// Store is the persistence collaborator for licenses.
type Store interface {
	// ActiveLicense returns the user's non-revoked license, or nil when the
	// user has none.
	ActiveLicense(ctx context.Context, userID string) (*models.DeveloperLicense, error)
	CreateLicense(ctx context.Context, lic *models.DeveloperLicense) error
	// LicenseByHash returns the license with the given token hash, or nil.
	LicenseByHash(ctx context.Context, hash string) (*models.DeveloperLicense, error)
	RevokeLicense(ctx context.Context, id string, at time.Time) error
}

// AlreadyActiveError signals that the user already holds an active license.
// It is an idempotent no-op outcome, not a failure requiring rollback.
type AlreadyActiveError struct {
	UserID   string    `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("user %s already holds an active license issued %s", e.UserID, e.IssuedAt.Format(time.RFC3339))
}

// Kind returns the stable error kind identifier.
func (e *AlreadyActiveError) Kind() string { return KindAlreadyActive }

// Activation is the one-time activation response. RawToken is never persisted
// and never retrievable again.
type Activation struct {
	License  *models.DeveloperLicense `json:"license"`
	RawToken string                   `json:"raw_token"`
}

// Service issues and validates developer licenses.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a license service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Activate enrolls a user in the developer program. The raw token is returned
// exactly once; only its sha256 hash is stored. If the user already holds an
// active license, AlreadyActiveError is returned and no new token is issued.
func (s *Service) Activate(ctx context.Context, userID string) (*Activation, error) {
	existing, err := s.store.ActiveLicense(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing license: %w", err)
	}
	if existing != nil {
		return nil, &AlreadyActiveError{UserID: userID, IssuedAt: existing.IssuedAt}
	}

	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	rawToken := hex.EncodeToString(raw)

	lic := &models.DeveloperLicense{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: HashToken(rawToken),
		Lifetime:  true,
		IssuedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateLicense(ctx, lic); err != nil {
		return nil, fmt.Errorf("failed to store license: %w", err)
	}

	s.logger.Info("developer license issued", "license_id", lic.ID, "user_id", userID)
	return &Activation{License: lic, RawToken: rawToken}, nil
}

// Validate resolves a raw token to its active license. Revoked licenses fail
// all checks.
func (s *Service) Validate(ctx context.Context, rawToken string) (*models.DeveloperLicense, error) {
	hash := HashToken(rawToken)
	lic, err := s.store.LicenseByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to look up license: %w", err)
	}
	if lic == nil || !lic.Active() {
		return nil, ErrInvalidToken
	}
	// The lookup already matched on the hash; the constant-time compare
	// keeps the final check independent of the store implementation.
	if subtle.ConstantTimeCompare([]byte(lic.TokenHash), []byte(hash)) != 1 {
		return nil, ErrInvalidToken
	}
	return lic, nil
}

// Revoke permanently invalidates a license. One-way; there is no un-revoke.
func (s *Service) Revoke(ctx context.Context, licenseID string) error {
	if err := s.store.RevokeLicense(ctx, licenseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to revoke license: %w", err)
	}
	s.logger.Info("developer license revoked", "license_id", licenseID)
	return nil
}

// HashToken returns the hex sha256 digest stored at rest for a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/authgate/internal/models"
	pkgauth "github.com/BradenHooton/authgate/pkg/auth"
)

// AccountReader loads accounts by id or normalized email
type AccountReader interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

// CredentialVerifier checks an email/password pair. It never counts
// attempts; the orchestrator feeds the LockoutGuard.
type CredentialVerifier struct {
	accounts AccountReader
	guard    LockoutGuard
	hasher   *pkgauth.Hasher
}

func NewCredentialVerifier(accounts AccountReader, guard LockoutGuard, hasher *pkgauth.Hasher) *CredentialVerifier {
	return &CredentialVerifier{accounts: accounts, guard: guard, hasher: hasher}
}

// Verify returns the account when the credentials are correct and the
// account may log in. A locked identity is rejected before the password is
// looked at, so a correct password does not reveal itself during lockout.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*models.Account, error) {
	email = models.NormalizeEmail(email)

	locked, err := v.guard.IsLocked(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check lockout: %w", err)
	}
	if locked {
		return nil, models.ErrAccountLocked
	}

	account, err := v.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			v.hasher.CompareDummy(password)
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if !v.hasher.Matches(account.PasswordHash, password) {
		return nil, models.ErrInvalidCredentials
	}

	// Only a caller holding the password learns that the account is disabled
	if !account.IsActive {
		return nil, models.ErrAccountDisabled
	}

	return account, nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/models"
	pkgauth "github.com/BradenHooton/authgate/pkg/auth"
)

// BackupCodeRepository stores hashed backup codes
type BackupCodeRepository interface {
	InsertBatch(ctx context.Context, accountID string, hashes []string) error
	ReplaceUnused(ctx context.Context, accountID string, hashes []string) error
	ListUnused(ctx context.Context, accountID string) ([]*models.BackupCode, error)
	MarkUsed(ctx context.Context, id string, now time.Time) (bool, error)
	CountUnused(ctx context.Context, accountID string) (int, error)
	DeleteUsedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteForAccount(ctx context.Context, accountID string, createdBefore time.Time) (int64, error)
}

// BackupCodeService issues and consumes single-use backup codes
type BackupCodeService struct {
	repo      BackupCodeRepository
	hasher    *pkgauth.Hasher
	count     int
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewBackupCodeService(repo BackupCodeRepository, cfg models.AuthConfig, logger *slog.Logger) *BackupCodeService {
	count := cfg.BackupCodeCount
	if count <= 0 {
		count = 10
	}
	return &BackupCodeService{
		repo:      repo,
		hasher:    pkgauth.NewHasher(cfg.BackupCodeHashCost),
		count:     count,
		retention: cfg.UsedBackupCodeRetention,
		logger:    logger,
		now:       time.Now,
	}
}

// newBatch returns plaintext codes and their hashes
func (s *BackupCodeService) newBatch(count int) ([]string, []string, error) {
	if count <= 0 {
		count = s.count
	}
	codes, err := auth.GenerateBackupCodes(count)
	if err != nil {
		return nil, nil, err
	}

	hashes := make([]string, len(codes))
	for i, code := range codes {
		hashes[i], err = s.hasher.Hash(code)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to hash backup code: %w", err)
		}
	}
	return codes, hashes, nil
}

// Generate adds a batch of count codes (default count when <= 0). The
// plaintext codes are returned once and never stored.
func (s *BackupCodeService) Generate(ctx context.Context, accountID string, count int) ([]string, error) {
	codes, hashes, err := s.newBatch(count)
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertBatch(ctx, accountID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}

// Regenerate replaces every unused code with a fresh batch. Used codes are
// kept for the audit trail until the retention sweep removes them.
func (s *BackupCodeService) Regenerate(ctx context.Context, accountID string) ([]string, error) {
	codes, hashes, err := s.newBatch(s.count)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceUnused(ctx, accountID, hashes); err != nil {
		return nil, fmt.Errorf("failed to replace backup codes: %w", err)
	}
	return codes, nil
}

// Consume spends a matching unused code. It returns false when no code
// matches or when a concurrent request consumed the same code first.
func (s *BackupCodeService) Consume(ctx context.Context, accountID, code string) (bool, error) {
	code = auth.NormalizeBackupCode(code)
	if len(code) != auth.BackupCodeLength {
		return false, nil
	}

	unused, err := s.repo.ListUnused(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to load backup codes: %w", err)
	}

	for _, bc := range unused {
		if !s.hasher.Matches(bc.CodeHash, code) {
			continue
		}
		ok, err := s.repo.MarkUsed(ctx, bc.ID, s.now())
		if err != nil {
			return false, fmt.Errorf("failed to consume backup code: %w", err)
		}
		if !ok {
			s.logger.WarnContext(ctx, "backup code consumed concurrently", slog.String("account_id", accountID))
		}
		return ok, nil
	}
	return false, nil
}

func (s *BackupCodeService) RemainingCount(ctx context.Context, accountID string) (int, error) {
	return s.repo.CountUnused(ctx, accountID)
}

// RetentionSweep deletes used codes older than the retention window
func (s *BackupCodeService) RetentionSweep(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	return s.repo.DeleteUsedBefore(ctx, s.now().Add(-s.retention))
}

// PurgeAccount removes an account's codes issued at or before createdBefore
func (s *BackupCodeService) PurgeAccount(ctx context.Context, accountID string, createdBefore time.Time) (int64, error) {
	return s.repo.DeleteForAccount(ctx, accountID, createdBefore)
}

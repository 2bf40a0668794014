package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/google/uuid"

	"github.com/BradenHooton/authgate/internal/models"
)

// MemoryStore is an in-memory stand-in for the Postgres schema. Every
// operation runs under one mutex, which gives the guarded updates of the SQL
// repositories (used=false, is_active=true, ON CONFLICT DO NOTHING) the same
// compare-and-swap behavior.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]*models.Account
	factors  map[string]*models.MFAFactor
	codes    map[string]*models.BackupCode
	sessions map[string]*models.Session
	revoked  map[string]time.Time
	events   []*models.AuthEvent
	attempts []*models.LoginAttempt
	cleanups map[string]models.MFACleanupJob

	// FailEventWrites makes audit inserts fail
	FailEventWrites bool
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:      now,
		accounts: make(map[string]*models.Account),
		factors:  make(map[string]*models.MFAFactor),
		codes:    make(map[string]*models.BackupCode),
		sessions: make(map[string]*models.Session),
		revoked:  make(map[string]time.Time),
		cleanups: make(map[string]models.MFACleanupJob),
	}
}

func (s *MemoryStore) Accounts() *MemoryAccountRepository       { return &MemoryAccountRepository{s} }
func (s *MemoryStore) Factors() *MemoryFactorRepository         { return &MemoryFactorRepository{s} }
func (s *MemoryStore) BackupCodes() *MemoryBackupCodeRepository { return &MemoryBackupCodeRepository{s} }
func (s *MemoryStore) Sessions() *MemorySessionRepository       { return &MemorySessionRepository{s} }
func (s *MemoryStore) Blacklist() *MemoryBlacklistRepository    { return &MemoryBlacklistRepository{s} }
func (s *MemoryStore) Events() *MemoryEventRepository           { return &MemoryEventRepository{s} }
func (s *MemoryStore) Attempts() *MemoryAttemptRepository       { return &MemoryAttemptRepository{s} }

// EventsOfType returns a snapshot of recorded audit events of one type
func (s *MemoryStore) EventsOfType(eventType string) []models.AuthEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuthEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, *e)
		}
	}
	return out
}

// IsRevoked reports whether jti is on the blacklist
func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[jti]
	return ok, nil
}

// PendingCleanups returns the queued MFA cleanup jobs
func (s *MemoryStore) PendingCleanups() []models.MFACleanupJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MFACleanupJob, 0, len(s.cleanups))
	for _, j := range s.cleanups {
		out = append(out, j)
	}
	return out
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	return &c
}

func cloneSession(sess *models.Session) *models.Session {
	c := *sess
	return &c
}

// ============================================================================
// Accounts
// ============================================================================

type MemoryAccountRepository struct{ s *MemoryStore }

func (r *MemoryAccountRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, models.ErrNotFound
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a := r.byEmail(email); a != nil {
		return cloneAccount(a), nil
	}
	return nil, models.ErrNotFound
}

func (r *MemoryAccountRepository) byEmail(email string) *models.Account {
	email = models.NormalizeEmail(email)
	for _, a := range r.s.accounts {
		if a.Email == email {
			return a
		}
	}
	return nil
}

func (r *MemoryAccountRepository) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.byEmail(account.Email) != nil {
		return nil, models.ErrConflict
	}
	a := cloneAccount(account)
	a.ID = uuid.NewString()
	a.Email = models.NormalizeEmail(a.Email)
	a.CreatedAt = r.s.now()
	a.UpdatedAt = a.CreatedAt
	r.s.accounts[a.ID] = a
	return cloneAccount(a), nil
}

// Put stores account as-is, for seeding tests
func (r *MemoryAccountRepository) Put(account *models.Account) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accounts[account.ID] = cloneAccount(account)
}

func (r *MemoryAccountRepository) Deactivate(_ context.Context, id string, revokedBy string) ([]*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	a.IsActive = false

	now := r.s.now()
	revoked := make([]*models.Session, 0)
	for _, sess := range r.s.sessions {
		if sess.AccountID != id || !sess.IsActive {
			continue
		}
		sess.IsActive = false
		sess.RevokedAt = &now
		by := revokedBy
		sess.RevokedBy = &by
		revoked = append(revoked, cloneSession(sess))
	}
	return revoked, nil
}

func (r *MemoryAccountRepository) IncrementFailedAttempts(_ context.Context, email string, limit int, cooloff time.Duration, now time.Time) (*models.LockoutState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.byEmail(email)
	if a == nil {
		return nil, models.ErrNotFound
	}

	until := now.Add(cooloff)
	switch {
	case a.LockedUntil != nil && !a.LockedUntil.After(now):
		a.FailedAttemptCount = 1
		a.LockedUntil = nil
		if limit <= 1 {
			a.LockedUntil = &until
		}
	default:
		a.FailedAttemptCount++
		if a.FailedAttemptCount >= limit {
			a.LockedUntil = &until
		}
	}
	return &models.LockoutState{FailedAttempts: a.FailedAttemptCount, LockedUntil: a.LockedUntil}, nil
}

func (r *MemoryAccountRepository) ResetFailedAttempts(_ context.Context, email string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.byEmail(email)
	if a == nil || a.IsLocked(now) {
		return nil
	}
	a.FailedAttemptCount = 0
	a.LockedUntil = nil
	return nil
}

func (r *MemoryAccountRepository) GetLockout(_ context.Context, email string) (*models.LockoutState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.byEmail(email)
	if a == nil {
		return nil, models.ErrNotFound
	}
	return &models.LockoutState{FailedAttempts: a.FailedAttemptCount, LockedUntil: a.LockedUntil}, nil
}

// ============================================================================
// MFA factors and cleanup jobs
// ============================================================================

type MemoryFactorRepository struct{ s *MemoryStore }

func (r *MemoryFactorRepository) Create(_ context.Context, factor *models.MFAFactor) (*models.MFAFactor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[factor.AccountID]; !ok {
		return nil, models.ErrNotFound
	}
	f := *factor
	f.ID = uuid.NewString()
	if f.Name == "" {
		f.Name = "Authenticator"
	}
	f.CreatedAt = r.s.now()
	r.s.factors[f.ID] = &f
	out := f
	return &out, nil
}

func (r *MemoryFactorRepository) GetByID(_ context.Context, id string) (*models.MFAFactor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.factors[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *f
	return &out, nil
}

func (r *MemoryFactorRepository) ListConfirmed(_ context.Context, accountID string) ([]*models.MFAFactor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.MFAFactor, 0)
	for _, f := range r.s.factors {
		if f.AccountID == accountID && f.Confirmed {
			c := *f
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *MemoryFactorRepository) Confirm(_ context.Context, factorID, accountID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.factors[factorID]
	if !ok || f.AccountID != accountID || f.Confirmed {
		return models.ErrNotFound
	}
	f.Confirmed = true
	f.ConfirmedAt = &now
	if a, ok := r.s.accounts[accountID]; ok {
		a.MFAEnrolled = true
	}
	return nil
}

func (r *MemoryFactorRepository) DisableAll(_ context.Context, accountID string, _ time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, f := range r.s.factors {
		if f.AccountID == accountID && f.Confirmed {
			delete(r.s.factors, id)
			n++
		}
	}
	if a, ok := r.s.accounts[accountID]; ok {
		a.MFAEnrolled = false
	}
	return n, nil
}

func (r *MemoryFactorRepository) TouchLastUsed(_ context.Context, factorID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.factors[factorID]
	if !ok {
		return models.ErrNotFound
	}
	f.LastUsedAt = &now
	return nil
}

func (r *MemoryFactorRepository) DeleteUnconfirmedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, f := range r.s.factors {
		if !f.Confirmed && f.CreatedAt.Before(cutoff) {
			delete(r.s.factors, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryFactorRepository) DeleteUnconfirmedForAccount(_ context.Context, accountID string, createdBefore time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, f := range r.s.factors {
		if f.AccountID == accountID && !f.Confirmed && !f.CreatedAt.After(createdBefore) {
			delete(r.s.factors, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryFactorRepository) ScheduleCleanup(_ context.Context, job models.MFACleanupJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.cleanups[job.AccountID] = job
	return nil
}

func (r *MemoryFactorRepository) ClaimDueCleanups(_ context.Context, now time.Time, limit int) ([]models.MFACleanupJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	jobs := make([]models.MFACleanupJob, 0)
	for id, job := range r.s.cleanups {
		if len(jobs) >= limit {
			break
		}
		if !job.RunAfter.After(now) {
			jobs = append(jobs, job)
			delete(r.s.cleanups, id)
		}
	}
	return jobs, nil
}

// ============================================================================
// Backup codes
// ============================================================================

type MemoryBackupCodeRepository struct{ s *MemoryStore }

func (r *MemoryBackupCodeRepository) insert(accountID string, hashes []string) {
	now := r.s.now()
	for _, h := range hashes {
		id := uuid.NewString()
		r.s.codes[id] = &models.BackupCode{ID: id, AccountID: accountID, CodeHash: h, CreatedAt: now}
	}
}

func (r *MemoryBackupCodeRepository) InsertBatch(_ context.Context, accountID string, hashes []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.insert(accountID, hashes)
	return nil
}

func (r *MemoryBackupCodeRepository) ReplaceUnused(_ context.Context, accountID string, hashes []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.codes {
		if c.AccountID == accountID && !c.Used {
			delete(r.s.codes, id)
		}
	}
	r.insert(accountID, hashes)
	return nil
}

func (r *MemoryBackupCodeRepository) ListUnused(_ context.Context, accountID string) ([]*models.BackupCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.BackupCode, 0)
	for _, c := range r.s.codes {
		if c.AccountID == accountID && !c.Used {
			cc := *c
			out = append(out, &cc)
		}
	}
	return out, nil
}

func (r *MemoryBackupCodeRepository) MarkUsed(_ context.Context, id string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.codes[id]
	if !ok || c.Used {
		return false, nil
	}
	c.Used = true
	c.UsedAt = &now
	return true, nil
}

func (r *MemoryBackupCodeRepository) CountUnused(_ context.Context, accountID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, c := range r.s.codes {
		if c.AccountID == accountID && !c.Used {
			n++
		}
	}
	return n, nil
}

func (r *MemoryBackupCodeRepository) DeleteUsedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.codes {
		if c.Used && c.UsedAt != nil && c.UsedAt.Before(cutoff) {
			delete(r.s.codes, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryBackupCodeRepository) DeleteForAccount(_ context.Context, accountID string, createdBefore time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.codes {
		if c.AccountID == accountID && !c.CreatedAt.After(createdBefore) {
			delete(r.s.codes, id)
			n++
		}
	}
	return n, nil
}

// ============================================================================
// Sessions
// ============================================================================

type MemorySessionRepository struct{ s *MemoryStore }

func (r *MemorySessionRepository) Create(_ context.Context, sess *models.Session) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := cloneSession(sess)
	c.ID = uuid.NewString()
	c.IsActive = true
	r.s.sessions[c.ID] = c
	return cloneSession(c), nil
}

func (r *MemorySessionRepository) GetByID(_ context.Context, id string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[id]; ok {
		return cloneSession(sess), nil
	}
	return nil, models.ErrNotFound
}

func (r *MemorySessionRepository) GetByRefreshJTI(_ context.Context, jti string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.RefreshJTI == jti {
			return cloneSession(sess), nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemorySessionRepository) ListActive(_ context.Context, accountID string, now time.Time) ([]*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Session, 0)
	for _, sess := range r.s.sessions {
		if sess.AccountID == accountID && sess.IsActive && sess.ExpiresAt.After(now) {
			out = append(out, cloneSession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (r *MemorySessionRepository) Revoke(_ context.Context, id, accountID, revokedBy string, now time.Time) (*models.Session, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || sess.AccountID != accountID {
		return nil, false, models.ErrNotFound
	}
	if !sess.IsActive {
		return cloneSession(sess), false, nil
	}
	sess.IsActive = false
	sess.RevokedAt = &now
	by := revokedBy
	sess.RevokedBy = &by
	return cloneSession(sess), true, nil
}

func (r *MemorySessionRepository) RevokeAll(_ context.Context, accountID string, exceptIDs []string, revokedBy string, now time.Time) ([]*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	skip := make(map[string]bool, len(exceptIDs))
	for _, id := range exceptIDs {
		skip[id] = true
	}
	out := make([]*models.Session, 0)
	for _, sess := range r.s.sessions {
		if sess.AccountID != accountID || !sess.IsActive || skip[sess.ID] {
			continue
		}
		sess.IsActive = false
		sess.RevokedAt = &now
		by := revokedBy
		sess.RevokedBy = &by
		out = append(out, cloneSession(sess))
	}
	return out, nil
}

func (r *MemorySessionRepository) Touch(_ context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[id]; ok && sess.IsActive {
		sess.LastActivity = now
	}
	return nil
}

func (r *MemorySessionRepository) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sess := range r.s.sessions {
		if sess.IsActive && sess.ExpiresAt.Before(now) {
			sess.IsActive = false
			sess.RevokedAt = &now
			by := models.RevokedBySystem
			sess.RevokedBy = &by
			n++
		}
	}
	return n, nil
}

// ============================================================================
// Token blacklist
// ============================================================================

type MemoryBlacklistRepository struct{ s *MemoryStore }

func (r *MemoryBlacklistRepository) Revoke(_ context.Context, jti, _, _ string, expiresAt time.Time, _ string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.revoked[jti]; !ok {
		r.s.revoked[jti] = expiresAt
	}
	return nil
}

func (r *MemoryBlacklistRepository) RevokeMany(_ context.Context, jtis []string, expiries []time.Time, _, _ string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, jti := range jtis {
		if _, ok := r.s.revoked[jti]; !ok {
			r.s.revoked[jti] = expiries[i]
		}
	}
	return nil
}

func (r *MemoryBlacklistRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return r.s.IsRevoked(ctx, jti)
}

// RotateRefresh mirrors the SQL transaction: the blacklist insert and the
// session swap both happen or neither does.
func (r *MemoryBlacklistRepository) RotateRefresh(_ context.Context, rot models.RefreshRotation, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.revoked[rot.OldJTI]; ok {
		return models.ErrTokenRevoked
	}

	var target *models.Session
	for _, sess := range r.s.sessions {
		if sess.RefreshJTI == rot.OldJTI && sess.AccountID == rot.AccountID && sess.IsActive {
			target = sess
			break
		}
	}
	if target == nil {
		return models.ErrTokenRevoked
	}

	r.s.revoked[rot.OldJTI] = rot.OldExpiresAt
	target.RefreshJTI = rot.NewJTI
	target.LastActivity = now
	target.ExpiresAt = rot.NewExpiresAt
	return nil
}

func (r *MemoryBlacklistRepository) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for jti, exp := range r.s.revoked {
		if exp.Before(now) {
			delete(r.s.revoked, jti)
			n++
		}
	}
	return n, nil
}

// ============================================================================
// Audit events and login attempts
// ============================================================================

type MemoryEventRepository struct{ s *MemoryStore }

func (r *MemoryEventRepository) Create(_ context.Context, event *models.AuthEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailEventWrites {
		return models.ErrInternalServer
	}
	e := *event
	e.ID = uuid.NewString()
	r.s.events = append(r.s.events, &e)
	return nil
}

func (r *MemoryEventRepository) CountFailures(_ context.Context, accountID, eventType string, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, e := range r.s.events {
		if e.AccountID != nil && *e.AccountID == accountID && e.EventType == eventType &&
			!e.Success && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryEventRepository) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*models.AuthEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.AuthEvent, 0)
	for i := len(r.s.events) - 1; i >= 0; i-- {
		e := r.s.events[i]
		if e.AccountID != nil && *e.AccountID == accountID {
			c := *e
			out = append(out, &c)
		}
	}
	if offset >= len(out) {
		return []*models.AuthEvent{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type MemoryAttemptRepository struct{ s *MemoryStore }

func (r *MemoryAttemptRepository) RecordAttempt(_ context.Context, attempt *models.LoginAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := *attempt
	a.ID = uuid.NewString()
	a.CreatedAt = r.s.now()
	r.s.attempts = append(r.s.attempts, &a)
	return nil
}

func (r *MemoryAttemptRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.attempts[:0]
	var n int64
	for _, a := range r.s.attempts {
		if a.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	r.s.attempts = kept
	return n, nil
}

// ============================================================================
// Function-field mocks
// ============================================================================

// MockLockoutGuard implements LockoutGuard for testing
type MockLockoutGuard struct {
	RecordFailureFunc func(ctx context.Context, identity string) error
	RecordSuccessFunc func(ctx context.Context, identity string) error
	IsLockedFunc      func(ctx context.Context, identity string) (bool, error)
}

func (m *MockLockoutGuard) RecordFailure(ctx context.Context, identity string) error {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, identity)
	}
	return nil
}

func (m *MockLockoutGuard) RecordSuccess(ctx context.Context, identity string) error {
	if m.RecordSuccessFunc != nil {
		return m.RecordSuccessFunc(ctx, identity)
	}
	return nil
}

func (m *MockLockoutGuard) IsLocked(ctx context.Context, identity string) (bool, error) {
	if m.IsLockedFunc != nil {
		return m.IsLockedFunc(ctx, identity)
	}
	return false, nil
}

// MockNotifier implements SecurityNotifier for testing
type MockNotifier struct {
	NotifyMFADisabledFunc func(ctx context.Context, email string) error
	NotifyNewSessionFunc  func(ctx context.Context, email, device string) error
}

func (m *MockNotifier) NotifyMFADisabled(ctx context.Context, email string) error {
	if m.NotifyMFADisabledFunc != nil {
		return m.NotifyMFADisabledFunc(ctx, email)
	}
	return nil
}

func (m *MockNotifier) NotifyNewSession(ctx context.Context, email, device string) error {
	if m.NotifyNewSessionFunc != nil {
		return m.NotifyNewSessionFunc(ctx, email, device)
	}
	return nil
}

// MockSESClient implements SESClient for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-test")}, nil
}

// MockDeviceResolver implements DeviceResolver for testing
type MockDeviceResolver struct {
	ResolveFunc func(ip, userAgent string) (models.DeviceInfo, models.LocationInfo)
}

func (m *MockDeviceResolver) Resolve(ip, userAgent string) (models.DeviceInfo, models.LocationInfo) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ip, userAgent)
	}
	return ParseUserAgent(userAgent), models.LocationInfo{}
}

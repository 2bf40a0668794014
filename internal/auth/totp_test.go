package auth

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTOTPManager(t *testing.T) *TOTPManager {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	tm, err := NewTOTPManager(key, "authgate")
	require.NoError(t, err)
	return tm
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    TOTPPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

// ============================================================================
// Constructor Tests (2 tests)
// ============================================================================

func TestTOTPManager_NewTOTPManager_ValidKey(t *testing.T) {
	tm := newTestTOTPManager(t)
	assert.NotNil(t, tm)
}

func TestTOTPManager_NewTOTPManager_InvalidKeyLength(t *testing.T) {
	for _, length := range []int{0, 16, 24, 31, 33, 64} {
		tm, err := NewTOTPManager(make([]byte, length), "authgate")
		assert.Error(t, err)
		assert.Nil(t, tm)
		assert.Contains(t, err.Error(), "must be exactly 32 bytes")
	}
}

// ============================================================================
// Secret Generation Tests (2 tests)
// ============================================================================

func TestTOTPManager_GenerateSecret(t *testing.T) {
	tm := newTestTOTPManager(t)

	gen, err := tm.GenerateSecret("a@x.com")
	require.NoError(t, err)

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(gen.Secret)
	require.NoError(t, err)
	assert.Len(t, raw, TOTPSecretSize)

	assert.True(t, strings.HasPrefix(gen.ProvisioningURI, "otpauth://totp/"))
	assert.Contains(t, gen.ProvisioningURI, "issuer=authgate")
	assert.True(t, strings.HasPrefix(gen.QRCode, "data:image/png;base64,"))
	assert.Len(t, gen.Nonce, 12)

	plain, err := tm.DecryptSecret(gen.Encrypted, gen.Nonce)
	require.NoError(t, err)
	assert.Equal(t, gen.Secret, string(plain))
}

func TestTOTPManager_GenerateSecret_Unique(t *testing.T) {
	tm := newTestTOTPManager(t)

	a, err := tm.GenerateSecret("a@x.com")
	require.NoError(t, err)
	b, err := tm.GenerateSecret("a@x.com")
	require.NoError(t, err)

	assert.NotEqual(t, a.Secret, b.Secret)
}

// ============================================================================
// Encryption Tests (3 tests)
// ============================================================================

func TestTOTPManager_DecryptSecret_TamperedCiphertext(t *testing.T) {
	tm := newTestTOTPManager(t)

	enc, nonce, err := tm.EncryptSecret([]byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	enc[0] ^= 0xFF

	_, err = tm.DecryptSecret(enc, nonce)
	assert.Error(t, err)
}

func TestTOTPManager_DecryptSecret_WrongKey(t *testing.T) {
	a := newTestTOTPManager(t)
	b := newTestTOTPManager(t)

	enc, nonce, err := a.EncryptSecret([]byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)

	_, err = b.DecryptSecret(enc, nonce)
	assert.Error(t, err)
}

func TestTOTPManager_DecryptSecret_WrongNonceLength(t *testing.T) {
	tm := newTestTOTPManager(t)

	enc, _, err := tm.EncryptSecret([]byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)

	_, err = tm.DecryptSecret(enc, []byte{1, 2, 3})
	assert.Error(t, err)
}

// ============================================================================
// Validation Tests (5 tests)
// ============================================================================

func TestTOTPManager_ValidateCode_Current(t *testing.T) {
	tm := newTestTOTPManager(t)
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	tm.SetClock(func() time.Time { return now })

	gen, err := tm.GenerateSecret("a@x.com")
	require.NoError(t, err)

	assert.True(t, tm.ValidateCode(gen.Secret, codeAt(t, gen.Secret, now)))
}

func TestTOTPManager_ValidateCode_Skew(t *testing.T) {
	tm := newTestTOTPManager(t)
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	tm.SetClock(func() time.Time { return now })

	gen, err := tm.GenerateSecret("a@x.com")
	require.NoError(t, err)

	assert.True(t, tm.ValidateCode(gen.Secret, codeAt(t, gen.Secret, now.Add(-30*time.Second))))
	assert.True(t, tm.ValidateCode(gen.Secret, codeAt(t, gen.Secret, now.Add(30*time.Second))))
}

func TestTOTPManager_ValidateCode_OutsideWindow(t *testing.T) {
	tm := newTestTOTPManager(t)
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	tm.SetClock(func() time.Time { return now })

	gen, err := tm.GenerateSecret("a@x.com")
	require.NoError(t, err)

	assert.False(t, tm.ValidateCode(gen.Secret, codeAt(t, gen.Secret, now.Add(-5*time.Minute))))
}

func TestTOTPManager_ValidateCode_Malformed(t *testing.T) {
	tm := newTestTOTPManager(t)

	gen, err := tm.GenerateSecret("a@x.com")
	require.NoError(t, err)

	for _, code := range []string{"", "12345", "1234567", "abcdef"} {
		assert.False(t, tm.ValidateCode(gen.Secret, code), code)
	}
}

func TestTOTPManager_ValidateCode_WrongSecret(t *testing.T) {
	tm := newTestTOTPManager(t)
	now := time.Now()
	tm.SetClock(func() time.Time { return now })

	a, err := tm.GenerateSecret("a@x.com")
	require.NoError(t, err)
	b, err := tm.GenerateSecret("a@x.com")
	require.NoError(t, err)

	assert.False(t, tm.ValidateCode(b.Secret, codeAt(t, a.Secret, now)))
}

// ============================================================================
// Backup Code Tests (3 tests)
// ============================================================================

func TestGenerateBackupCodes_CountAndCharset(t *testing.T) {
	codes, err := GenerateBackupCodes(10)
	require.NoError(t, err)
	assert.Len(t, codes, 10)

	for _, code := range codes {
		assert.Len(t, code, BackupCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(backupCodeCharset, r), "unexpected char %q", r)
		}
	}
}

func TestGenerateBackupCodes_Unique(t *testing.T) {
	codes, err := GenerateBackupCodes(100)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, c := range codes {
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}
}

func TestNormalizeBackupCode(t *testing.T) {
	assert.Equal(t, "ABCD2345", NormalizeBackupCode("abcd-2345"))
	assert.Equal(t, "ABCD2345", NormalizeBackupCode(" abcd 2345 "))
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/authgate/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssuedToken is a signed token plus the identifiers needed to track it
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

// NewTokenManager creates a new TokenManager. Only HMAC algorithms are accepted.
func NewTokenManager(secret, algorithm string) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	return &TokenManager{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}, nil
}

// SetClock replaces the time source used for issuing and validating tokens
func (tm *TokenManager) SetClock(now func() time.Time) {
	tm.now = now
}

// Now returns the manager's current time
func (tm *TokenManager) Now() time.Time {
	return tm.now()
}

// GenerateToken creates an access or refresh token with a fresh JTI
func (tm *TokenManager) GenerateToken(tokenType, userID, email string, rememberMe bool, ttl time.Duration) (*IssuedToken, error) {
	now := tm.now()
	jti := uuid.New().String()
	expiresAt := now.Add(ttl)

	claims := &models.TokenClaims{
		Type:       tokenType,
		UserID:     userID,
		Email:      email,
		RememberMe: rememberMe,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(tm.method, claims).SignedString(tm.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return &IssuedToken{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// ValidateToken verifies an access or refresh token and returns its claims.
// Errors are models.ErrTokenExpired or models.ErrTokenMalformed.
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, tm.keyFunc, tm.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenMalformed, err)
	}

	if claims.Type != models.TokenTypeAccess && claims.Type != models.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: unexpected token type %q", models.ErrTokenMalformed, claims.Type)
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or jti", models.ErrTokenMalformed)
	}

	return claims, nil
}

// GeneratePendingToken creates the stateless MFA challenge token
func (tm *TokenManager) GeneratePendingToken(userID string, rememberMe bool, ttl time.Duration) (string, error) {
	now := tm.now()

	claims := &models.MFAPendingClaims{
		Type:       models.TokenTypeMFAPending,
		UserID:     userID,
		MFAPending: true,
		RememberMe: rememberMe,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(tm.method, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign mfa token: %w", err)
	}
	return signed, nil
}

// ValidatePendingToken verifies an MFA challenge token.
// Errors are models.ErrMFAExpiredToken or models.ErrMFAInvalidToken.
func (tm *TokenManager) ValidatePendingToken(tokenString string) (*models.MFAPendingClaims, error) {
	claims := &models.MFAPendingClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, tm.keyFunc, tm.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrMFAExpiredToken
		}
		return nil, models.ErrMFAInvalidToken
	}

	if claims.Type != models.TokenTypeMFAPending || !claims.MFAPending || claims.UserID == "" {
		return nil, models.ErrMFAInvalidToken
	}

	return claims, nil
}

func (tm *TokenManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return tm.secret, nil
}

func (tm *TokenManager) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{tm.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	}
}

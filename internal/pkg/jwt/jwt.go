package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"classroom-api/internal/core/domain"
)

// MinSecretLength is the minimum HS256 key size in bytes
const MinSecretLength = 32

// Extra claim keys
const (
	ClaimStage      = "stage"
	ClaimAuthMethod = "amr"

	StageOTPPending = "otp_pending"
	AuthMethodOTP   = "otp"
)

// Claims represents the JWT claims
type Claims struct {
	Role  string            `json:"role"`
	Extra map[string]string `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// SignerConfig holds the key material for a Signer
type SignerConfig struct {
	Secret string
	Issuer string
}

// Signer issues and verifies HS256 tokens with a fixed key
type Signer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewSigner creates a signer; the secret must be at least MinSecretLength bytes
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes (got %d)", MinSecretLength, len(cfg.Secret))
	}
	return &Signer{
		key:    []byte(cfg.Secret),
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// Issue generates a signed token for subject valid for ttl
func (s *Signer) Issue(subject, role string, ttl time.Duration, extra map[string]string) (string, error) {
	now := s.now()
	claims := Claims{
		Role:  role,
		Extra: extra,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// Verify validates a token and returns its claims.
// Errors are domain.ErrInvalidSignature, domain.ErrExpired or domain.ErrMalformed.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domain.ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, domain.ErrInvalidSignature
		default:
			return nil, domain.ErrMalformed
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, domain.ErrMalformed
	}

	return claims, nil
}

// Get returns an extra claim value
func (c *Claims) Get(key string) string {
	if c.Extra == nil {
		return ""
	}
	return c.Extra[key]
}

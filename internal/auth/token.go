package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer is the iss claim of every archer token
const TokenIssuer = "archery-analyzer"

// MinSecretLen is the shortest accepted signing secret
const MinSecretLen = 16

var (
	ErrSecretTooShort = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLen)
	ErrMissingArcher  = errors.New("archer id is required")
	ErrInvalidToken   = errors.New("invalid token")
)

// ArcherClaims identifies the archer a token was issued to
type ArcherClaims struct {
	jwt.RegisteredClaims
	ArcherID string `json:"archer_id"`
}

// Token is a signed archer token
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ArcherID    string    `json:"archer_id"`
}

// Issuer signs and validates HS256 archer tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates a token issuer
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for archerID
func (i *Issuer) Issue(archerID string) (*Token, error) {
	if archerID == "" {
		return nil, ErrMissingArcher
	}

	now := i.now()
	expires := now.Add(i.ttl)
	claims := &ArcherClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   archerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		ArcherID: archerID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   time.Unix(expires.Unix(), 0).UTC(),
		ArcherID:    archerID,
	}, nil
}

// Validate parses tokenString and returns the archer it was issued to
func (i *Issuer) Validate(tokenString string) (string, error) {
	claims := &ArcherClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ArcherID == "" {
		return "", ErrInvalidToken
	}
	return claims.ArcherID, nil
}

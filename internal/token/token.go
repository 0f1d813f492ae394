package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose restricts a token to the flow it was issued for. A verification
// token must never pass as a reset or session token.
type Purpose string

const (
	PurposeVerify  Purpose = "verify"
	PurposeReset   Purpose = "reset"
	PurposeSession Purpose = "session"
)

var (
	// ErrInvalid is returned for malformed or tampered tokens, and for
	// tokens presented to a flow they were not issued for.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned when the signature checks out but the token
	// has passed its expiry. Claims are still returned alongside it so
	// callers can offer a resend path.
	ErrExpired = errors.New("token expired")
)

// Claims is the signed payload carried by every issued token
type Claims struct {
	UserID  string  `json:"uid"`
	Purpose Purpose `json:"purpose"`
	IsAdmin bool    `json:"isAdmin,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and verifies signed tokens. The signing key is injected
// once at construction and never read from the environment here.
type Service struct {
	secret []byte
	now    func() time.Time
}

// NewService creates a token service with the given signing secret.
// A nil clock defaults to time.Now.
func NewService(secret string, clock func() time.Time) (*Service, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{secret: []byte(secret), now: clock}, nil
}

// Issue produces a signed token binding the user identity to a purpose,
// expiring ttl from now
func (s *Service) Issue(userID string, purpose Purpose, isAdmin bool, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("token: user id is required")
	}
	now := s.now()
	claims := &Claims{
		UserID:  userID,
		Purpose: purpose,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature integrity first, then expiry. On ErrExpired the
// decoded claims are returned too; on ErrInvalid they are nil. A purpose
// mismatch is reported as ErrInvalid.
func (s *Service) Verify(raw string, want Purpose) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && claims.UserID != "" && claims.Purpose == want {
			return claims, ErrExpired
		}
		return nil, ErrInvalid
	}
	if claims.UserID == "" || claims.Purpose != want {
		return nil, ErrInvalid
	}
	return claims, nil
}

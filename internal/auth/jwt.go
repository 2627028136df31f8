package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hostelattendance/internal/apperr"
	"hostelattendance/internal/identity"
)

// Token is a signed access token and its expiry.
type Token struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Claims represents JWT payload. Subject carries the person id.
type Claims struct {
	Role    identity.Role `json:"role"`
	BadgeID string        `json:"student_id,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token was issued to an admin.
func (c Claims) IsAdmin() bool { return c.Role == identity.RoleAdmin }

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	name string
	key  []byte
	ttl  time.Duration
	now  func() time.Time
}

// NewIssuer creates an issuer. ttl defaults to one day.
func NewIssuer(name, key string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{name: name, key: []byte(key), ttl: ttl, now: time.Now}
}

// Issue issues a signed access token for p.
func (i *Issuer) Issue(p identity.Person) (Token, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		Role:    p.Role,
		BadgeID: p.BadgeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.name,
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims. Every failure is Unauthorized.
func (i *Issuer) Parse(tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return Claims{}, &apperr.Error{Code: apperr.CodeUnauthorized, Message: "invalid token", Err: err}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return Claims{}, apperr.Unauthorized("invalid token")
	}
	if i.name != "" && claims.Issuer != i.name {
		return Claims{}, apperr.Unauthorized("issuer mismatch")
	}
	return *claims, nil
}

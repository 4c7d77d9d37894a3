package session

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
)

type claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// JWTProvider issues and verifies HS256 session tokens
type JWTProvider struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTProvider creates a provider signing with secret
func NewJWTProvider(secret, issuer string, ttl time.Duration) *JWTProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTProvider{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a signed token for user
func (p *JWTProvider) Issue(user User) (string, error) {
	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	})

	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign session token")
	}
	return signed, nil
}

// Parse verifies a token and returns its session
func (p *JWTProvider) Parse(tokenStr string) (*Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, apperrors.Authentication("invalid session token").WithCause(err)
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, apperrors.Authentication("invalid session subject").WithCause(err)
	}

	return &Session{
		User:      User{ID: id, Name: c.Name},
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// GetSession implements Provider
func (p *JWTProvider) GetSession(header http.Header) (*Session, error) {
	token := ExtractToken(header)
	if token == "" {
		return nil, nil
	}
	return p.Parse(token)
}

package backend

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceSubject is the token subject used when a call carries no user.
const ServiceSubject = "template-studio"

type userKey struct{}

// WithUserID marks ctx so backend calls made with it act on behalf of userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID returns the user a call acts for.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// TokenSigner mints the short-lived HS256 credentials the backend expects.
type TokenSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenSigner(secret, issuer string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenSigner{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Sign returns a token for subject.
func (s *TokenSigner) Sign(subject string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	return token.SignedString(s.secret)
}

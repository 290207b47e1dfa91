package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken indicates a store call was attempted without a token.
var ErrNoToken = errors.New("no auth token available")

type tokenKey struct{}

// WithToken binds a bearer token to ctx for downstream clients.
func WithToken(ctx context.Context, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token bound by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	token, ok := ctx.Value(tokenKey{}).(string)
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

// StaticToken is a token handed over by the identity provider.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// Claims carried by tokens minted for the chat store.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTSource mints short lived HS256 tokens for a fixed user. Tokens are
// cached until shortly before expiry.
type JWTSource struct {
	secret []byte
	userID string
	name   string
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current string
	expires time.Time
}

// NewJWTSource constructs a token source for userID.
func NewJWTSource(secret, userID, name string, ttl time.Duration) (*JWTSource, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret must be provided")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id must be provided")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTSource{
		secret: []byte(secret),
		userID: strings.TrimSpace(userID),
		name:   strings.TrimSpace(name),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (s *JWTSource) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.current != "" && now.Add(30*time.Second).Before(s.expires) {
		return s.current, nil
	}

	expires := now.Add(s.ttl)
	claims := Claims{
		Name: s.name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.current = signed
	s.expires = expires
	return signed, nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

const issuer = "mrtoast"

// Claims binds a session token to one seat in one game.
type Claims struct {
	GameID   string `json:"gid"`
	PlayerID string `json:"pid"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Signer mints and verifies the session tokens handed out on join.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret []byte, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: secret, ttl: ttl}
}

// Mint returns a signed token for one seat in one game.
func (s *Signer) Mint(gameID, playerID, name string, now time.Time) (string, error) {
	claims := Claims{
		GameID:   gameID,
		PlayerID: playerID,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns its claims.
func (s *Signer) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.GameID == "" || claims.PlayerID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

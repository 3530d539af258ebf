package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential is returned for missing, malformed or expired tokens.
var ErrInvalidCredential = errors.New("invalid credential")

// TokenVerifier resolves a bearer credential to a user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (int, error)
}

// Claims are the token claims issued by the identity provider.
type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens issued by the identity provider.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a JWTVerifier.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token and returns the user id. The id is
// taken from the user_id claim, falling back to a numeric subject.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (int, error) {
	if token == "" {
		return 0, ErrInvalidCredential
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidCredential
		}
		return v.secret, nil
	})
	if err != nil {
		return 0, ErrInvalidCredential
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return 0, ErrInvalidCredential
	}

	if claims.UserID != 0 {
		return claims.UserID, nil
	}
	if id, err := strconv.Atoi(claims.Subject); err == nil && id != 0 {
		return id, nil
	}
	return 0, ErrInvalidCredential
}

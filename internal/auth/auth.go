package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

// ClaimsKey is the request-context key under which the authentication middleware
// stores the verified claims.
const ClaimsKey ctxKey = 1

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Claims carries the authenticated caller's identity. Subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Keys signs and verifies session tokens with an HMAC secret.
type Keys struct {
	secret []byte
}

func NewKeys(secret string) (*Keys, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is empty")
	}
	return &Keys{secret: []byte(secret)}, nil
}

// GenerateToken issues a signed session token for the given user.
func (k *Keys) GenerateToken(userID, role string) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(72 * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(k.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a session token and returns its claims.
func (k *Keys) ValidateToken(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return k.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return Claims{}, fmt.Errorf("invalid token")
	}
	return claims, nil
}

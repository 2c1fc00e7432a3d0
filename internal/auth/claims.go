package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the permission level carried by a token.
type Role string

// Roles in ascending order of privilege.
const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
)

var (
	// ErrTokenInvalid covers bad signatures, expired tokens and missing claims.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrInvalidRole is returned for a role name that is not defined.
	ErrInvalidRole = errors.New("invalid role")
)

// ParseRole converts a role name. An empty name is an operator.
func ParseRole(name string) (Role, error) {
	switch Role(name) {
	case "", RoleOperator:
		return RoleOperator, nil
	case RoleViewer:
		return RoleViewer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, name)
}

// CanControl reports whether the role may issue commands.
func (r Role) CanControl() bool {
	return r == RoleOperator
}

// Claims extends JWT standard claims with the bridge role.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// GenerateToken creates a signed token for subject. A zero ttl issues a
// token without expiry, for long-running automation clients.
func GenerateToken(subject string, role Role, secret string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrTokenInvalid)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
		Role: role,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns its claims. It checks the
// signature, expiry, subject and role.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	if _, err := ParseRole(string(claims.Role)); err != nil || claims.Role == "" {
		return nil, fmt.Errorf("%w: missing or unknown role", ErrTokenInvalid)
	}

	return claims, nil
}

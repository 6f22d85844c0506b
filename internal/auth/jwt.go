package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/incial/crm-api/internal/config"
	"github.com/incial/crm-api/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidRole  = errors.New("token carries no valid role")
)

// rolePrefix is stripped from role claims issued as ROLE_<name>
const rolePrefix = "ROLE_"

// Claims are the token claims read by the API
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTValidator validates HS256 bearer tokens
type JWTValidator struct {
	secret []byte
	issuer string
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.AuthConfig) *JWTValidator {
	return &JWTValidator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// ValidateToken validates a JWT token and returns user context
func (v *JWTValidator) ValidateToken(tokenString string) (*UserContext, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	role := ParseRole(claims.Role)
	if !role.IsValid() || role == domain.RoleSystem {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, claims.Role)
	}

	return &UserContext{
		UserID:      sub,
		DisplayName: claims.Name,
		Email:       claims.Email,
		Role:        role,
	}, nil
}

// IssueToken signs a token for the given user. Used by tooling and tests.
func (v *JWTValidator) IssueToken(user *UserContext, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  rolePrefix + string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ParseRole normalizes a role claim, accepting an optional ROLE_ prefix
func ParseRole(raw string) domain.UserRoleType {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	return domain.UserRoleType(strings.TrimPrefix(raw, rolePrefix))
}

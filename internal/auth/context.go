package auth

import (
	"context"

	"github.com/incial/crm-api/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      string
	DisplayName string
	Email       string
	Role        domain.UserRoleType
}

type contextKey string

const (
	userContextKey contextKey = "userContext"
	clientIPKey    contextKey = "clientIP"
)

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// HasAnyRole checks if the user acts with one of roles
func (u *UserContext) HasAnyRole(roles ...domain.UserRoleType) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// WithClientIP records the caller's address for audit entries
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the caller's address, or "" outside a request
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

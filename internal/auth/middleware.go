package auth

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/incial/crm-api/internal/config"
	"github.com/incial/crm-api/internal/domain"
	"go.uber.org/zap"
)

// APIServiceUser is the identity attached to requests authenticated by API key
const APIServiceUser = "api-service"

// Middleware handles authentication for HTTP requests
type Middleware struct {
	jwtValidator *JWTValidator
	apiKey       string
	logger       *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(cfg *config.Config, logger *zap.Logger) *Middleware {
	return &Middleware{
		jwtValidator: NewJWTValidator(&cfg.Auth),
		apiKey:       cfg.ApiKey.Value,
		logger:       logger,
	}
}

// Validator exposes the token validator, e.g. for issuing tokens in tooling
func (m *Middleware) Validator() *JWTValidator {
	return m.jwtValidator
}

// Authenticate accepts an x-api-key header or a Bearer token and stores the
// caller in the request context
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := WithClientIP(r.Context(), clientIP(r))

		if apiKey := r.Header.Get("x-api-key"); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userCtx := &UserContext{
				UserID:      APIServiceUser,
				DisplayName: "API Service",
				Role:        domain.RoleSuperAdmin,
			}
			m.logger.Debug("request authenticated",
				zap.String("path", r.URL.Path),
				zap.String("auth_type", "api_key"),
				zap.Duration("auth_duration", time.Since(start)))

			next.ServeHTTP(w, r.WithContext(WithUserContext(ctx, userCtx)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized: missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "Unauthorized: invalid authorization header format", http.StatusUnauthorized)
			return
		}

		userCtx, err := m.jwtValidator.ValidateToken(parts[1])
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err))
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}

		m.logger.Debug("request authenticated",
			zap.String("path", r.URL.Path),
			zap.String("auth_type", "jwt"),
			zap.String("user_id", userCtx.UserID),
			zap.String("role", string(userCtx.Role)),
			zap.Duration("auth_duration", time.Since(start)))

		next.ServeHTTP(w, r.WithContext(WithUserContext(ctx, userCtx)))
	})
}

// RequireRole middleware ensures user has one of roles
func (m *Middleware) RequireRole(roles ...domain.UserRoleType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, "Forbidden: no user context", http.StatusForbidden)
				return
			}
			if !userCtx.HasAnyRole(roles...) {
				m.logger.Info("role check failed",
					zap.String("path", r.URL.Path),
					zap.String("user_id", userCtx.UserID),
					zap.String("role", string(userCtx.Role)))
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) validateAPIKey(key string) bool {
	if m.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1
}

// clientIP returns the host part of RemoteAddr; chi's RealIP runs first
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

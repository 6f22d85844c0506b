package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
	"github.com/incial/crm-api/internal/auth"
	"github.com/incial/crm-api/internal/config"
	"go.uber.org/zap"
)

// RateLimiter holds rate limiting middleware and configuration
type RateLimiter struct {
	cfg            *config.RateLimitConfig
	logger         *zap.Logger
	ipLimiter      func(http.Handler) http.Handler
	userLimiter    func(http.Handler) http.Handler
	whitelistIPs   map[string]bool
	whitelistPaths []string
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(cfg *config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		cfg:            cfg,
		logger:         logger,
		whitelistIPs:   make(map[string]bool, len(cfg.WhitelistIPs)),
		whitelistPaths: cfg.WhitelistPaths,
	}
	for _, ip := range cfg.WhitelistIPs {
		rl.whitelistIPs[ip] = true
	}

	rl.ipLimiter = httprate.Limit(
		cfg.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rl.rateLimitExceededHandler),
	)
	rl.userLimiter = httprate.Limit(
		cfg.RequestsPerMinuteAuth,
		time.Minute,
		httprate.WithKeyFuncs(rl.keyByUserOrIP),
		httprate.WithLimitHandler(rl.rateLimitExceededHandler),
	)

	logger.Info("rate limiter initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute),
		zap.Int("requests_per_minute_auth", cfg.RequestsPerMinuteAuth))

	return rl
}

func (rl *RateLimiter) exempt(r *http.Request) bool {
	return rl.isPathWhitelisted(r.URL.Path) || rl.whitelistIPs[clientIP(r)]
}

// LimitByIP limits anonymous traffic per client address. Mount before auth.
func (rl *RateLimiter) LimitByIP(next http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}
	limited := rl.ipLimiter(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.exempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

// LimitByUser limits authenticated traffic per caller. Mount after auth.
func (rl *RateLimiter) LimitByUser(next http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}
	limited := rl.userLimiter(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.exempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) keyByUserOrIP(r *http.Request) (string, error) {
	if user, ok := auth.FromContext(r.Context()); ok && user != nil {
		return "user:" + user.UserID, nil
	}
	return "ip:" + clientIP(r), nil
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// isPathWhitelisted matches exact paths and "/prefix/*" entries
func (rl *RateLimiter) isPathWhitelisted(path string) bool {
	for _, wp := range rl.whitelistPaths {
		if wp == path {
			return true
		}
		if prefix, ok := strings.CutSuffix(wp, "/*"); ok && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (rl *RateLimiter) rateLimitExceededHandler(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if user, ok := auth.FromContext(r.Context()); ok && user != nil {
		userID = user.UserID
	}

	rl.logger.Warn("rate limit exceeded",
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
		zap.String("client_ip", clientIP(r)),
		zap.String("user_id", userID))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "60")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"type":"rate_limited","title":"Too Many Requests","status":429,"detail":"Too many requests. Please try again later."}`))
}

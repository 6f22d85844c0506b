package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
	"github.com/incial/crm-api/internal/config"
	"go.uber.org/zap"
)

// isDevelopment reports whether environment allows permissive defaults
func isDevelopment(environment string) bool {
	switch environment {
	case "", "development", "local", "test":
		return true
	}
	return false
}

// CORS returns a CORS middleware configured from the application config.
// The request id and download headers are always exposed.
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	exposed := append([]string{}, cfg.ExposedHeaders...)
	for _, h := range []string{"X-Request-ID", "Content-Disposition", "Location"} {
		if !slices.Contains(exposed, h) {
			exposed = append(exposed, h)
		}
	}

	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   exposed,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	allowAny := func(r *http.Request, origin string) bool { return origin != "" }

	switch {
	case slices.Contains(cfg.AllowedOrigins, "*"):
		if !isDevelopment(environment) {
			logger.Warn("CORS configured with wildcard origin outside development",
				zap.String("environment", environment))
		}
		options.AllowOriginFunc = allowAny
	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		logger.Info("CORS configured with explicit origins", zap.Strings("origins", cfg.AllowedOrigins))
	case isDevelopment(environment):
		options.AllowOriginFunc = allowAny
		logger.Info("CORS allows all origins in development mode")
	default:
		// An empty AllowedOrigins would mean "*" to go-chi/cors
		options.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
		logger.Warn("CORS has no allowed origins; cross-origin requests will be denied",
			zap.String("environment", environment))
	}

	return cors.Handler(options)
}

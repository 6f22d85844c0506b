package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/incial/crm-api/internal/auth"
	"github.com/incial/crm-api/internal/logger"
	"go.uber.org/zap"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// requestTrace is shared by every handler of one request so that the
// identity resolved deep in the chain reaches the access log
type requestTrace struct {
	id     string
	userID string
	role   string
}

type contextKey string

const traceKey contextKey = "requestTrace"

// RequestID returns the id assigned to the current request, or ""
func RequestID(ctx context.Context) string {
	if t, ok := ctx.Value(traceKey).(*requestTrace); ok {
		return t.id
	}
	return ""
}

// Logging middleware logs HTTP requests
func Logging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			trace := &requestTrace{id: requestID}
			r = r.WithContext(context.WithValue(r.Context(), traceKey, trace))

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			reqLog := logger.WithRequest(log, r.Method, r.URL.Path, requestID)
			if trace.userID != "" {
				reqLog = logger.WithUser(reqLog, trace.userID, trace.role)
			}

			reqLog.Info(
				fmt.Sprintf("%s %-30s -> %3d (%s)",
					r.Method,
					r.URL.Path,
					rw.statusCode,
					duration.Truncate(time.Microsecond),
				),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status_code", rw.statusCode),
				zap.Int64("response_size", rw.written),
				zap.Duration("duration", duration),
			)
		})
	}
}

// TagUser copies the authenticated identity into the access log entry and
// the Sentry scope. Mount it after authentication.
func TagUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := auth.FromContext(r.Context()); ok && user != nil {
			if t, ok := r.Context().Value(traceKey).(*requestTrace); ok {
				t.userID = user.UserID
				t.role = string(user.Role)
			}
			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.Scope().SetUser(sentry.User{ID: user.UserID, Email: user.Email})
				hub.Scope().SetTag("role", string(user.Role))
			}
		}
		next.ServeHTTP(w, r)
	})
}

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driving"
)

type contextKey int

const operatorContextKey contextKey = iota

// Guard authenticates console requests and enforces the admin gate on
// management routes.
type Guard struct {
	auth   driving.AuthService
	logger *slog.Logger
}

// NewGuard creates the authentication guard.
func NewGuard(auth driving.AuthService, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{auth: auth, logger: logger}
}

// Authenticate resolves the bearer token into the operator making the
// request and stores it on the context.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		operator, err := g.auth.ValidateToken(r.Context(), token)
		if err != nil {
			g.logger.Debug("token rejected", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, rejectionMessage(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(withOperator(r.Context(), operator)))
	})
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session not found"
	default:
		return "invalid token"
	}
}

// RequireAdmin gates a route on the admin role. The console only has
// two roles, so a dedicated check stands in for a role matcher.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator := OperatorFrom(r.Context())
		switch {
		case operator == nil:
			writeError(w, http.StatusUnauthorized, "unauthorized")
		case !operator.IsAdmin():
			writeError(w, http.StatusForbidden, "admin access required")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func withOperator(ctx context.Context, operator *domain.AuthContext) context.Context {
	return context.WithValue(ctx, operatorContextKey, operator)
}

// OperatorFrom returns the authenticated operator, or nil on an
// unauthenticated request.
func OperatorFrom(ctx context.Context) *domain.AuthContext {
	operator, _ := ctx.Value(operatorContextKey).(*domain.AuthContext)
	return operator
}

// bearerToken pulls the token out of the Authorization header. The
// scheme comparison is case-insensitive per RFC 7235.
func bearerToken(r *http.Request) string {
	const prefix = "bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Middleware wraps a handler with cross-cutting behavior.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so the first argument runs outermost.
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// RequestLog emits one log line per request with status and duration.
func RequestLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Recover turns handler panics into a 500 instead of dropping the
// connection.
func Recover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panic", "path", r.URL.Path, "panic", rec)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS admits the configured console origins. An entry of "*" admits
// any origin.
func CORS(origins []string) Middleware {
	allowed := make(map[string]bool, len(origins))
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && (wildcard || allowed[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

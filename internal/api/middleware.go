package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"leadpilot-backend/internal/auth"
	"leadpilot-backend/internal/handlers"
	"leadpilot-backend/internal/metrics"
	"leadpilot-backend/internal/ratelimit"
	"leadpilot-backend/pkg/httputil"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// --- JWT Middleware ---

// JwtAuthMiddleware verifies the bearer token and injects the user id, tenant
// id and role into the request context.
func JwtAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				httputil.RespondError(w, http.StatusUnauthorized, "Malformed Authorization header (Expected: Bearer <token>)")
				return
			}

			claims, err := auth.ParseToken(parts[1], jwtSecret)
			if err != nil {
				log.Debug().Err(err).Msg("[Auth Middleware] rejected token")
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					httputil.RespondError(w, http.StatusUnauthorized, "Token has expired")
				case errors.Is(err, jwt.ErrTokenMalformed):
					httputil.RespondError(w, http.StatusUnauthorized, "Malformed token")
				default:
					httputil.RespondError(w, http.StatusUnauthorized, "Invalid token")
				}
				return
			}

			if claims.UserID == uuid.Nil || claims.TenantID == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "Invalid token claims (missing IDs)")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), claims)))
		})
	}
}

// OptionalJwtAuth authenticates requests that carry an Authorization header
// and passes anonymous ones through untouched.
func OptionalJwtAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		authed := JwtAuthMiddleware(jwtSecret)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			authed.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects callers whose token role is not in roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := auth.GetRoleFromContext(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.RespondError(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

// --- Rate limiting ---

const maxChatBody = 1 << 20

// RateLimitMiddleware limits chat requests per tenant key and client IP.
// The body is buffered to read tenant_key and then handed on unchanged.
// Limiter errors fail open.
func RateLimitMiddleware(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxChatBody))
			r.Body.Close()
			if err != nil {
				httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var peek struct {
				TenantKey string `json:"tenant_key"`
			}
			_ = json.Unmarshal(body, &peek)

			key := ratelimit.Key(peek.TenantKey, handlers.ClientIP(r))
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("[RateLimit] limiter unavailable, allowing request")
			} else if !allowed {
				metrics.RecordRateLimited()
				w.Header().Set("Retry-After", "60")
				httputil.RespondError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Request logging ---

// RequestLogger logs one line per request through zerolog.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("[HTTP] request")
		}()
		next.ServeHTTP(ww, r)
	})
}

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/sitefence/internal/auth"
	"github.com/FairForge/sitefence/internal/logging"
	"github.com/FairForge/sitefence/internal/secrets"
)

const requestIDHeader = "X-Request-ID"

// Middleware is a function that wraps an HTTP handler
type Middleware func(http.Handler) http.Handler

// RateLimitMiddleware rejects requests over the server-wide limit with 429
func RateLimitMiddleware(limiter *RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%g", limiter.limit))

			if !limiter.Allow() {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiter.Remaining()))
			next.ServeHTTP(w, r)
		})
	}
}

// requestID reuses an incoming X-Request-ID or assigns a new one, echoes it
// and attaches a request-scoped logger.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		ctx = context.WithValue(ctx, loggerKey, logging.WithRequest(s.logger, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.loggerFrom(r.Context()).Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", s.clock.Since(start)),
		)
	})
}

// requireAuth runs the basic auth gate against the admin secret. The secret
// resolver it opens is left on the context for the handler to reuse.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolver := secrets.NewResolver(s.sessions().Secrets)
		if err := s.authorize(r, resolver); err != nil {
			w.WriteHeader(auth.StatusCode(err))
			return
		}
		ctx := context.WithValue(r.Context(), secretsKey, resolver)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) authorize(r *http.Request, resolver *secrets.Resolver) error {
	err := s.gate.Authorize(r.Context(), r.Header.Get("Authorization"), resolver.Func(s.config.Secrets.AdminSecretName))
	if err != nil {
		s.loggerFrom(r.Context()).Warn("request rejected by auth gate",
			zap.String("path", r.URL.Path),
			zap.Int("status", auth.StatusCode(err)),
			zap.Error(err))
	}
	return err
}

// internal/api/context_keys.go
package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/FairForge/sitefence/internal/secrets"
)

// Context key types to avoid collisions
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
	secretsKey   contextKey = "secrets"
)

// RequestID returns the id assigned to the request, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) loggerFrom(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return s.logger
}

func secretsFrom(ctx context.Context) *secrets.Resolver {
	r, _ := ctx.Value(secretsKey).(*secrets.Resolver)
	return r
}

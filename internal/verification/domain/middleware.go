package domain

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) VerifyMint(ctx context.Context, id string) (*MintResult, error) {
	start := time.Now()
	res, err := m.next.VerifyMint(ctx, id)
	attrs := []any{"id", id, "duration", time.Since(start), "error", err}
	if res != nil {
		attrs = append(attrs, "verified", res.Verified)
	}
	m.logger.Info("VerifyMint", attrs...)
	return res, err
}

func (m *loggingMiddleware) VerifyCollection(ctx context.Context, address string) (*CollectionResult, error) {
	start := time.Now()
	res, err := m.next.VerifyCollection(ctx, address)
	attrs := []any{"address", address, "duration", time.Since(start), "error", err}
	if res != nil {
		attrs = append(attrs, "matchType", res.MatchType)
	}
	m.logger.Info("VerifyCollection", attrs...)
	return res, err
}

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

func (m *loggingMiddleware) Resolve(ctx context.Context) (*Collection, error) {
	start := time.Now()
	c, err := m.next.Resolve(ctx)
	attrs := []any{"duration", time.Since(start), "error", err}
	if c != nil {
		attrs = append(attrs, "address", c.Address, "source", c.Source)
	}
	m.logger.Debug("Resolve", attrs...)
	return c, err
}

func (m *loggingMiddleware) Current(ctx context.Context) (*Collection, error) {
	start := time.Now()
	c, err := m.next.Current(ctx)
	m.logger.Debug("Current",
		"duration", time.Since(start),
		"error", err,
	)
	return c, err
}

func (m *loggingMiddleware) Get(ctx context.Context, address string) (*Collection, error) {
	start := time.Now()
	c, err := m.next.Get(ctx, address)
	m.logger.Debug("Get",
		"address", address,
		"duration", time.Since(start),
		"error", err,
	)
	return c, err
}

func (m *loggingMiddleware) List(ctx context.Context) ([]Collection, error) {
	start := time.Now()
	list, err := m.next.List(ctx)
	m.logger.Debug("List",
		"count", len(list),
		"duration", time.Since(start),
		"error", err,
	)
	return list, err
}

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

func (m *loggingMiddleware) Mint(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result, err := m.next.Mint(ctx, req)
	attrs := []any{
		"recipient", req.RecipientAddress,
		"explicitTokenId", req.TokenID != nil,
		"duration", time.Since(start),
		"error", err,
	}
	if result != nil {
		attrs = append(attrs, "mintId", result.MintID, "tokenId", result.TokenID, "status", result.Status)
	}
	m.logger.Info("Mint", attrs...)
	return result, err
}

func (m *loggingMiddleware) Resume(ctx context.Context, id string) (*Result, error) {
	start := time.Now()
	result, err := m.next.Resume(ctx, id)
	attrs := []any{"mintId", id, "duration", time.Since(start), "error", err}
	if result != nil {
		attrs = append(attrs, "status", result.Status)
	}
	m.logger.Info("Resume", attrs...)
	return result, err
}

func (m *loggingMiddleware) Get(ctx context.Context, id string) (*Mint, error) {
	start := time.Now()
	mint, err := m.next.Get(ctx, id)
	m.logger.Debug("Get",
		"mintId", id,
		"duration", time.Since(start),
		"error", err,
	)
	return mint, err
}

func (m *loggingMiddleware) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	start := time.Now()
	result, err := m.next.List(ctx, filter, pagination)
	m.logger.Debug("List",
		"filter", filter,
		"limit", pagination.Limit,
		"duration", time.Since(start),
		"error", err,
	)
	return result, err
}

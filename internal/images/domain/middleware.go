package domain

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	data, err := m.next.Generate(ctx, prompt)
	m.logger.Info("Generate",
		"promptLength", len(prompt),
		"imageBytes", len(data),
		"duration", time.Since(start),
		"error", err,
	)
	return data, err
}

func (m *loggingMiddleware) Save(ctx context.Context, imageData, fileName string) (*SaveResult, error) {
	start := time.Now()
	result, err := m.next.Save(ctx, imageData, fileName)
	attrs := []any{"fileName", fileName, "duration", time.Since(start), "error", err}
	if result != nil {
		attrs = append(attrs, "cid", result.CID)
	}
	m.logger.Info("Save", attrs...)
	return result, err
}

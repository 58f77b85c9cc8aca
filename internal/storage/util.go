package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	// fixed width so that TEXT timestamps sort chronologically
	sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// goose keeps its base FS and dialect in package state
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// runMigrations applies the embedded migrations in dir for the given goose dialect.
func runMigrations(ctx context.Context, db *sql.DB, fsys fs.FS, dialect, dir string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

// page trims a Limit+1 query result and derives the next cursor from the last kept item.
func page[T any](items []T, limit int, cursor func(T) string) *PaginatedResult[T] {
	if items == nil {
		items = []T{}
	}
	result := &PaginatedResult[T]{Data: items}
	if len(items) > limit {
		result.Data = items[:limit]
		result.HasMore = true
		result.NextCursor = cursor(result.Data[limit-1])
	}
	return result
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pendergraft/mintforge/internal/config"
)

// CollectionStore handles deployed collection records
type CollectionStore interface {
	SaveCollection(ctx context.Context, c *Collection) error
	GetCollectionByKey(ctx context.Context, key string) (*Collection, error)
	GetCollection(ctx context.Context, address string) (*Collection, error)
	ListCollections(ctx context.Context) ([]Collection, error)
}

// MintStore handles mint records
type MintStore interface {
	CreateMint(ctx context.Context, m *Mint) error
	UpdateMint(ctx context.Context, m *Mint) error
	GetMint(ctx context.Context, id string) (*Mint, error)
	GetMintByToken(ctx context.Context, collectionAddress string, tokenID uint64) (*Mint, error)
	DeleteMint(ctx context.Context, id string) error
	ListMints(ctx context.Context, filter MintFilter, pagination PaginationParams) (*PaginatedResult[Mint], error)
	MaxTokenID(ctx context.Context, collectionAddress string) (uint64, error)
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	CollectionStore
	MintStore

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}

// Collection is a deployed LSP8 collection contract.
// Key is the stable identifier the collection was resolved under.
type Collection struct {
	ID        string
	Key       string
	Address   string
	ChainID   int64
	Name      string
	Symbol    string
	Owner     string
	TxHash    string
	Source    string // "config", "deployed"
	CreatedAt time.Time
}

// Mint is the recorded progress of a single token mint.
// Attributes holds the JSON encoded attribute list.
type Mint struct {
	ID                string
	CollectionAddress string
	ChainID           int64
	Recipient         string
	TokenID           uint64
	TokenIDHex        string
	Name              string
	Description       string
	Attributes        string
	MediaType         string
	Status            string
	ImageCID          string
	ImageHash         string
	MetadataCID       string
	MetadataHash      string
	VerifiableURI     string
	MintTxHash        string
	DataTxHash        string
	GlobalDataTxHash  string
	Error             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StatusFailed selects mints with a recorded error when used as a filter.
const StatusFailed = "failed"

// MintFilter contains filter options for listing mints
type MintFilter struct {
	Collection string
	Recipient  string
	Status     string
}

// PaginationParams contains pagination options
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
	PrevCursor string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pendergraft/mintforge/internal/storage/migrations"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// A single writer connection turns concurrent inserts into queued ones instead of SQLITE_BUSY
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db, migrations.SQLite, "sqlite3", "sqlite"); err != nil {
		return err
	}
	s.logger.Debug("sqlite migrations applied")
	return nil
}

// isSQLiteConflict reports whether err is a UNIQUE or PRIMARY KEY violation
func isSQLiteConflict(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// ============ Collections ============

const sqliteCollectionColumns = `id, collection_key, address, chain_id, name, symbol, owner, tx_hash, source, created_at`

// SaveCollection stores a resolved collection
func (s *SQLiteStore) SaveCollection(ctx context.Context, c *Collection) error {
	if c.ID == "" {
		c.ID = generateID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO collections (` + sqliteCollectionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Key, c.Address, c.ChainID, c.Name, c.Symbol, c.Owner, c.TxHash, c.Source, formatTime(c.CreatedAt))
	if isSQLiteConflict(err) {
		return fmt.Errorf("%w: collection %s", ErrConflict, c.Key)
	}
	return err
}

// GetCollectionByKey retrieves a collection by its stable identifier
func (s *SQLiteStore) GetCollectionByKey(ctx context.Context, key string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteCollectionColumns+` FROM collections WHERE collection_key = ?`, key)
	return scanSQLiteCollection(row)
}

// GetCollection retrieves a collection by contract address (case-insensitive)
func (s *SQLiteStore) GetCollection(ctx context.Context, address string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteCollectionColumns+` FROM collections WHERE lower(address) = lower(?)`, address)
	return scanSQLiteCollection(row)
}

// ListCollections lists all collections, oldest first
func (s *SQLiteStore) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteCollectionColumns+` FROM collections ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := []Collection{}
	for rows.Next() {
		c, err := scanSQLiteCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, *c)
	}
	return collections, rows.Err()
}

func scanSQLiteCollection(row interface{ Scan(...any) error }) (*Collection, error) {
	var c Collection
	var createdAt string
	err := row.Scan(&c.ID, &c.Key, &c.Address, &c.ChainID, &c.Name, &c.Symbol, &c.Owner, &c.TxHash, &c.Source, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ============ Mints ============

const sqliteMintColumns = `id, collection_address, chain_id, recipient, token_id, token_id_hex, name, description,
	attributes, media_type, status, image_cid, image_hash, metadata_cid,
	metadata_hash, verifiable_uri, mint_tx_hash, data_tx_hash, global_data_tx_hash, error, created_at, updated_at`

// CreateMint inserts a new mint record. A second mint of the same token id
// in a collection returns ErrConflict.
func (s *SQLiteStore) CreateMint(ctx context.Context, m *Mint) error {
	if m.ID == "" {
		m.ID = generateID()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.TokenID > math.MaxInt64 {
		return fmt.Errorf("%w: token %d", ErrOutOfRange, m.TokenID)
	}
	if m.Attributes == "" {
		m.Attributes = "[]"
	}

	query := `INSERT INTO mints (` + sqliteMintColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.CollectionAddress, m.ChainID, m.Recipient, int64(m.TokenID), m.TokenIDHex, m.Name, m.Description,
		m.Attributes, m.MediaType, m.Status, m.ImageCID, m.ImageHash, m.MetadataCID,
		m.MetadataHash, m.VerifiableURI, m.MintTxHash, m.DataTxHash, m.GlobalDataTxHash, m.Error,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if isSQLiteConflict(err) {
		return fmt.Errorf("%w: token %d in %s", ErrConflict, m.TokenID, m.CollectionAddress)
	}
	return err
}

// UpdateMint persists the progress fields of a mint
func (s *SQLiteStore) UpdateMint(ctx context.Context, m *Mint) error {
	m.UpdatedAt = time.Now().UTC()
	query := `UPDATE mints SET status = ?, image_cid = ?, image_hash = ?,
		metadata_cid = ?, metadata_hash = ?, verifiable_uri = ?, mint_tx_hash = ?, data_tx_hash = ?,
		global_data_tx_hash = ?, error = ?, updated_at = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		m.Status, m.ImageCID, m.ImageHash,
		m.MetadataCID, m.MetadataHash, m.VerifiableURI, m.MintTxHash, m.DataTxHash,
		m.GlobalDataTxHash, m.Error, formatTime(m.UpdatedAt), m.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMint retrieves a mint by id
func (s *SQLiteStore) GetMint(ctx context.Context, id string) (*Mint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteMintColumns+` FROM mints WHERE id = ?`, id)
	return scanSQLiteMint(row)
}

// ListMints lists mints newest first. The cursor is the id of the last mint of the previous page.
func (s *SQLiteStore) ListMints(ctx context.Context, filter MintFilter, pagination PaginationParams) (*PaginatedResult[Mint], error) {
	limit := normalizeLimit(pagination.Limit)

	var where []string
	var args []any
	if filter.Collection != "" {
		where = append(where, "lower(collection_address) = lower(?)")
		args = append(args, filter.Collection)
	}
	if filter.Recipient != "" {
		where = append(where, "lower(recipient) = lower(?)")
		args = append(args, filter.Recipient)
	}
	switch filter.Status {
	case "":
	case StatusFailed:
		where = append(where, "error <> ''")
	default:
		where = append(where, "status = ? AND error = ''")
		args = append(args, filter.Status)
	}
	if pagination.Cursor != "" {
		where = append(where, "(created_at, id) < (SELECT created_at, id FROM mints WHERE id = ?)")
		args = append(args, pagination.Cursor)
	}

	query := `SELECT ` + sqliteMintColumns + ` FROM mints`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mints []Mint
	for rows.Next() {
		m, err := scanSQLiteMint(rows)
		if err != nil {
			return nil, err
		}
		mints = append(mints, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page(mints, limit, func(m Mint) string { return m.ID }), nil
}

// GetMintByToken retrieves the mint that claimed tokenID in a collection
func (s *SQLiteStore) GetMintByToken(ctx context.Context, collectionAddress string, tokenID uint64) (*Mint, error) {
	if tokenID > math.MaxInt64 {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteMintColumns+` FROM mints WHERE collection_address = ? AND token_id = ?`,
		collectionAddress, int64(tokenID),
	)
	return scanSQLiteMint(row)
}

// DeleteMint removes a mint record
func (s *SQLiteStore) DeleteMint(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mints WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MaxTokenID returns the highest recorded token id for a collection, or 0
func (s *SQLiteStore) MaxTokenID(ctx context.Context, collectionAddress string) (uint64, error) {
	var max int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(token_id), 0) FROM mints WHERE lower(collection_address) = lower(?)`,
		collectionAddress,
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	return uint64(max), nil
}

func scanSQLiteMint(row interface{ Scan(...any) error }) (*Mint, error) {
	var m Mint
	var tokenID int64
	var createdAt, updatedAt string
	err := row.Scan(
		&m.ID, &m.CollectionAddress, &m.ChainID, &m.Recipient, &tokenID, &m.TokenIDHex, &m.Name, &m.Description,
		&m.Attributes, &m.MediaType, &m.Status, &m.ImageCID, &m.ImageHash, &m.MetadataCID,
		&m.MetadataHash, &m.VerifiableURI, &m.MintTxHash, &m.DataTxHash, &m.GlobalDataTxHash, &m.Error,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.TokenID = uint64(tokenID)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

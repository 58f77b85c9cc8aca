package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pendergraft/mintforge/internal/storage/migrations"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db, migrations.Postgres, "pgx", "postgres"); err != nil {
		return err
	}
	s.logger.Debug("postgres migrations applied")
	return nil
}

func isPgConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// ============ Collections ============

const pgCollectionColumns = `id::text, collection_key, address, chain_id, name, symbol, owner, tx_hash, source, created_at`

// SaveCollection stores a resolved collection
func (s *PostgresStore) SaveCollection(ctx context.Context, c *Collection) error {
	if c.ID == "" {
		c.ID = generateID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO collections (id, collection_key, address, chain_id, name, symbol, owner, tx_hash, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Key, c.Address, c.ChainID, c.Name, c.Symbol, c.Owner, c.TxHash, c.Source, c.CreatedAt)
	if isPgConflict(err) {
		return fmt.Errorf("%w: collection %s", ErrConflict, c.Key)
	}
	return err
}

// GetCollectionByKey retrieves a collection by its stable identifier
func (s *PostgresStore) GetCollectionByKey(ctx context.Context, key string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pgCollectionColumns+` FROM collections WHERE collection_key = $1`, key)
	return scanPgCollection(row)
}

// GetCollection retrieves a collection by contract address (case-insensitive)
func (s *PostgresStore) GetCollection(ctx context.Context, address string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pgCollectionColumns+` FROM collections WHERE lower(address) = lower($1)`, address)
	return scanPgCollection(row)
}

// ListCollections lists all collections, oldest first
func (s *PostgresStore) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pgCollectionColumns+` FROM collections ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := []Collection{}
	for rows.Next() {
		c, err := scanPgCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, *c)
	}
	return collections, rows.Err()
}

func scanPgCollection(row interface{ Scan(...any) error }) (*Collection, error) {
	var c Collection
	err := row.Scan(&c.ID, &c.Key, &c.Address, &c.ChainID, &c.Name, &c.Symbol, &c.Owner, &c.TxHash, &c.Source, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ============ Mints ============

const pgMintColumns = `id::text, collection_address, chain_id, recipient, token_id, token_id_hex, name, description,
	attributes::text, media_type, status, image_cid, image_hash, metadata_cid,
	metadata_hash, verifiable_uri, mint_tx_hash, data_tx_hash, global_data_tx_hash, error, created_at, updated_at`

// CreateMint inserts a new mint record. A second mint of the same token id
// in a collection returns ErrConflict.
func (s *PostgresStore) CreateMint(ctx context.Context, m *Mint) error {
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

	query := `
		INSERT INTO mints (id, collection_address, chain_id, recipient, token_id, token_id_hex, name, description,
			attributes, media_type, status, image_cid, image_hash, metadata_cid,
			metadata_hash, verifiable_uri, mint_tx_hash, data_tx_hash, global_data_tx_hash, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.CollectionAddress, m.ChainID, m.Recipient, int64(m.TokenID), m.TokenIDHex, m.Name, m.Description,
		m.Attributes, m.MediaType, m.Status, m.ImageCID, m.ImageHash, m.MetadataCID,
		m.MetadataHash, m.VerifiableURI, m.MintTxHash, m.DataTxHash, m.GlobalDataTxHash, m.Error,
		m.CreatedAt, m.UpdatedAt,
	)
	if isPgConflict(err) {
		return fmt.Errorf("%w: token %d in %s", ErrConflict, m.TokenID, m.CollectionAddress)
	}
	return err
}

// UpdateMint persists the progress fields of a mint
func (s *PostgresStore) UpdateMint(ctx context.Context, m *Mint) error {
	m.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE mints SET status = $1, image_cid = $2, image_hash = $3,
			metadata_cid = $4, metadata_hash = $5, verifiable_uri = $6, mint_tx_hash = $7, data_tx_hash = $8,
			global_data_tx_hash = $9, error = $10, updated_at = $11
		WHERE id = $12
	`
	res, err := s.db.ExecContext(ctx, query,
		m.Status, m.ImageCID, m.ImageHash,
		m.MetadataCID, m.MetadataHash, m.VerifiableURI, m.MintTxHash, m.DataTxHash,
		m.GlobalDataTxHash, m.Error, m.UpdatedAt, m.ID,
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
func (s *PostgresStore) GetMint(ctx context.Context, id string) (*Mint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pgMintColumns+` FROM mints WHERE id = $1`, id)
	return scanPgMint(row)
}

// ListMints lists mints newest first. The cursor is the id of the last mint of the previous page.
func (s *PostgresStore) ListMints(ctx context.Context, filter MintFilter, pagination PaginationParams) (*PaginatedResult[Mint], error) {
	limit := normalizeLimit(pagination.Limit)

	var where []string
	var args []any
	argIdx := 1
	if filter.Collection != "" {
		where = append(where, fmt.Sprintf("lower(collection_address) = lower($%d)", argIdx))
		args = append(args, filter.Collection)
		argIdx++
	}
	if filter.Recipient != "" {
		where = append(where, fmt.Sprintf("lower(recipient) = lower($%d)", argIdx))
		args = append(args, filter.Recipient)
		argIdx++
	}
	switch filter.Status {
	case "":
	case StatusFailed:
		where = append(where, "error <> ''")
	default:
		where = append(where, fmt.Sprintf("status = $%d AND error = ''", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if pagination.Cursor != "" {
		where = append(where, fmt.Sprintf("(created_at, id) < (SELECT created_at, id FROM mints WHERE id = $%d)", argIdx))
		args = append(args, pagination.Cursor)
		argIdx++
	}

	query := `SELECT ` + pgMintColumns + ` FROM mints`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIdx)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mints []Mint
	for rows.Next() {
		m, err := scanPgMint(rows)
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
func (s *PostgresStore) GetMintByToken(ctx context.Context, collectionAddress string, tokenID uint64) (*Mint, error) {
	if tokenID > math.MaxInt64 {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pgMintColumns+` FROM mints WHERE collection_address = $1 AND token_id = $2`,
		collectionAddress, int64(tokenID),
	)
	return scanPgMint(row)
}

// DeleteMint removes a mint record
func (s *PostgresStore) DeleteMint(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mints WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MaxTokenID returns the highest recorded token id for a collection, or 0
func (s *PostgresStore) MaxTokenID(ctx context.Context, collectionAddress string) (uint64, error) {
	var max int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(token_id), 0) FROM mints WHERE lower(collection_address) = lower($1)`,
		collectionAddress,
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	return uint64(max), nil
}

func scanPgMint(row interface{ Scan(...any) error }) (*Mint, error) {
	var m Mint
	var tokenID int64
	err := row.Scan(
		&m.ID, &m.CollectionAddress, &m.ChainID, &m.Recipient, &tokenID, &m.TokenIDHex, &m.Name, &m.Description,
		&m.Attributes, &m.MediaType, &m.Status, &m.ImageCID, &m.ImageHash, &m.MetadataCID,
		&m.MetadataHash, &m.VerifiableURI, &m.MintTxHash, &m.DataTxHash, &m.GlobalDataTxHash, &m.Error,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.TokenID = uint64(tokenID)
	return &m, nil
}

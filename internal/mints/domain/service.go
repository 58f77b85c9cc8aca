package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pendergraft/mintforge/internal/lsp4"
	"github.com/pendergraft/mintforge/internal/storage"
	"github.com/pendergraft/mintforge/internal/validation"
)

// Common errors returned by the mint service.
var (
	ErrInvalidRequest  = errors.New("invalid mint request")
	ErrInvalidAddress  = errors.New("invalid recipient address")
	ErrInvalidMedia    = errors.New("invalid media")
	ErrTokenTaken      = errors.New("token id already minted in collection")
	ErrTokensExhausted = errors.New("no token ids left in collection")
	ErrNotFound        = errors.New("mint not found")
	ErrNotResumable    = errors.New("mint cannot be resumed")
	ErrInProgress      = errors.New("mint is already running")

	// Pipeline step failures.
	ErrCollection = errors.New("resolving collection failed")
	ErrPinning    = errors.New("pinning failed")
	ErrMetadata   = errors.New("building metadata failed")
	ErrChain      = errors.New("chain transaction failed")
	ErrStore      = errors.New("recording mint failed")
)

const maxAllocateAttempts = 5

// Service defines the mint service interface.
type Service interface {
	// Mint runs the full pipeline for a new token.
	Mint(ctx context.Context, req Request) (*Result, error)

	// Resume continues a mint from its recorded status.
	Resume(ctx context.Context, id string) (*Result, error)

	// Get retrieves a mint record by id.
	Get(ctx context.Context, id string) (*Mint, error)

	// List lists mint records with filtering and pagination.
	List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error)
}

type service struct {
	store       storage.MintStore
	collections Collections
	pinner      Pinner
	chain       Chain
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time

	// serializes token id allocation within this process
	allocMu sync.Mutex
	running sync.Map
}

// NewService creates a new mint service.
func NewService(store storage.MintStore, collections Collections, pinner Pinner, chain Chain, cfg Config, logger *slog.Logger) Service {
	return &service{
		store:       store,
		collections: collections,
		pinner:      pinner,
		chain:       chain,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// input is a validated Request.
type input struct {
	recipient   string
	tokenID     *uint64
	name        string
	description string
	attributes  []lsp4.Attribute
	mediaType   string
	image       []byte
}

func validateRequest(req Request) (*input, error) {
	if req.RecipientAddress == "" {
		return nil, fmt.Errorf("%w: recipientAddress is required", ErrInvalidRequest)
	}
	if req.Metadata == nil {
		return nil, fmt.Errorf("%w: metadata is required", ErrInvalidRequest)
	}
	if err := validation.ValidateAddress(req.RecipientAddress); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	md := req.Metadata
	if err := validation.ValidateTokenName(md.Name); err != nil {
		return nil, fmt.Errorf("%w: metadata.%v", ErrInvalidRequest, err)
	}
	if strings.TrimSpace(md.MediaURL) == "" {
		return nil, fmt.Errorf("%w: metadata.mediaUrl is required", ErrInvalidRequest)
	}
	for _, a := range md.Attributes {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if req.TokenID != nil && *req.TokenID > math.MaxInt64 {
		return nil, fmt.Errorf("%w: tokenId out of range", ErrInvalidRequest)
	}

	image, err := validation.DecodeMedia(md.MediaURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}

	attrs := md.Attributes
	if attrs == nil {
		attrs = []lsp4.Attribute{}
	}
	return &input{
		recipient:   validation.ChecksumAddress(req.RecipientAddress),
		tokenID:     req.TokenID,
		name:        md.Name,
		description: md.Description,
		attributes:  attrs,
		mediaType:   validation.MediaType(md.MediaURL),
		image:       image,
	}, nil
}

// Mint runs the full pipeline for a new token.
func (s *service) Mint(ctx context.Context, req Request) (*Result, error) {
	in, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	collection, err := s.collections.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollection, err)
	}
	observeStage("collection", start)

	m := &Mint{
		CollectionAddress: collection.Address,
		ChainID:           collection.ChainID,
		Recipient:         in.recipient,
		Name:              in.name,
		Description:       in.description,
		Attributes:        in.attributes,
		MediaType:         in.mediaType,
		ImageHash:         lsp4.Keccak256(in.image).Hex(),
		Status:            StatusPending,
	}
	if err := s.claimToken(ctx, m, in.tokenID); err != nil {
		return nil, err
	}

	s.running.Store(m.ID, struct{}{})
	defer s.running.Delete(m.ID)

	if err := s.advance(ctx, m, in.image); err != nil {
		return s.result(m), err
	}
	return s.result(m), nil
}

// claimToken records the pending mint under an explicit or newly allocated token id.
func (s *service) claimToken(ctx context.Context, m *Mint, requested *uint64) error {
	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	if requested != nil {
		m.setTokenID(*requested)
		err := s.create(ctx, m)
		if errors.Is(err, storage.ErrConflict) {
			released, rerr := s.releaseAbandoned(ctx, m.CollectionAddress, *requested)
			if rerr != nil {
				return fmt.Errorf("%w: %v", ErrStore, rerr)
			}
			if released {
				err = s.create(ctx, m)
			}
		}
		if errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("%w: %d", ErrTokenTaken, *requested)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
		return nil
	}

	// another instance may allocate the same id; the unique index decides
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		max, err := s.store.MaxTokenID(ctx, m.CollectionAddress)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
		if max >= math.MaxInt64 {
			return ErrTokensExhausted
		}
		m.setTokenID(max + 1)
		err = s.create(ctx, m)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
	}
	return fmt.Errorf("%w: could not allocate a token id", ErrStore)
}

// releaseAbandoned deletes the claim on tokenID when it belongs to a mint that
// failed before its image was pinned. Nothing about such a mint reached IPFS or
// the chain, and it cannot be resumed.
func (s *service) releaseAbandoned(ctx context.Context, collection string, tokenID uint64) (bool, error) {
	existing, err := s.store.GetMintByToken(ctx, collection, tokenID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if existing.Status != StatusPending || existing.Error == "" || existing.ImageCID != "" {
		return false, nil
	}
	if _, busy := s.running.Load(existing.ID); busy {
		return false, nil
	}
	if err := s.store.DeleteMint(ctx, existing.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	s.logger.Info("released abandoned token claim", "mintId", existing.ID, "tokenId", tokenID)
	return true, nil
}

func (s *service) create(ctx context.Context, m *Mint) error {
	record := m.toStorage()
	if err := s.store.CreateMint(ctx, record); err != nil {
		return err
	}
	m.ID = record.ID
	m.CreatedAt = record.CreatedAt
	m.UpdatedAt = record.UpdatedAt
	return nil
}

// save persists m's progress.
func (s *service) save(ctx context.Context, m *Mint) error {
	record := m.toStorage()
	if err := s.store.UpdateMint(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	m.UpdatedAt = record.UpdatedAt
	return nil
}

// Resume continues a mint from its recorded status.
func (s *service) Resume(ctx context.Context, id string) (*Result, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == StatusCompleted {
		return s.result(m), nil
	}
	if m.Status == StatusPending {
		// the image bytes are not retained, so nothing can be pinned
		return nil, fmt.Errorf("%w: image was never pinned, submit the mint again", ErrNotResumable)
	}

	if _, busy := s.running.LoadOrStore(m.ID, struct{}{}); busy {
		return nil, ErrInProgress
	}
	defer s.running.Delete(m.ID)

	m.Error = ""
	if err := s.advance(ctx, m, nil); err != nil {
		return s.result(m), err
	}
	return s.result(m), nil
}

// Get retrieves a mint record by id.
func (s *service) Get(ctx context.Context, id string) (*Mint, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	record, err := s.store.GetMint(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting mint: %w", err)
	}
	return fromStorage(record)
}

// List lists mint records with filtering and pagination.
func (s *service) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	switch filter.Status {
	case "", StatusPending, StatusImagePinned, StatusMetadataPinned, StatusMinted, StatusCompleted, StatusFailed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, filter.Status)
	}
	if pagination.Cursor != "" {
		if _, err := uuid.Parse(pagination.Cursor); err != nil {
			return nil, fmt.Errorf("%w: invalid cursor", ErrInvalidRequest)
		}
	}

	page, err := s.store.ListMints(ctx, storage.MintFilter{
		Collection: filter.Collection,
		Recipient:  filter.Recipient,
		Status:     filter.Status,
	}, storage.PaginationParams{
		Limit:  pagination.Limit,
		Cursor: pagination.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("listing mints: %w", err)
	}

	result := &ListResult{
		Mints:      make([]Mint, 0, len(page.Data)),
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
	}
	for i := range page.Data {
		m, err := fromStorage(&page.Data[i])
		if err != nil {
			return nil, err
		}
		result.Mints = append(result.Mints, *m)
	}
	return result, nil
}

func (m *Mint) setTokenID(id uint64) {
	m.TokenID = id
	m.TokenIDHex = lsp4.TokenID(id).Hex()
}

func (m *Mint) toStorage() *storage.Mint {
	attrs, err := json.Marshal(m.Attributes)
	if err != nil || m.Attributes == nil {
		attrs = []byte("[]")
	}
	return &storage.Mint{
		ID:                m.ID,
		CollectionAddress: m.CollectionAddress,
		ChainID:           m.ChainID,
		Recipient:         m.Recipient,
		TokenID:           m.TokenID,
		TokenIDHex:        m.TokenIDHex,
		Name:              m.Name,
		Description:       m.Description,
		Attributes:        string(attrs),
		MediaType:         m.MediaType,
		Status:            m.Status,
		ImageCID:          m.ImageCID,
		ImageHash:         m.ImageHash,
		MetadataCID:       m.MetadataCID,
		MetadataHash:      m.MetadataHash,
		VerifiableURI:     m.VerifiableURI,
		MintTxHash:        m.MintTxHash,
		DataTxHash:        m.DataTxHash,
		GlobalDataTxHash:  m.GlobalDataTxHash,
		Error:             m.Error,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func fromStorage(r *storage.Mint) (*Mint, error) {
	attrs := []lsp4.Attribute{}
	dec := json.NewDecoder(strings.NewReader(r.Attributes))
	dec.UseNumber()
	if err := dec.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("decoding attributes of mint %s: %w", r.ID, err)
	}
	return &Mint{
		ID:                r.ID,
		CollectionAddress: r.CollectionAddress,
		ChainID:           r.ChainID,
		Recipient:         r.Recipient,
		TokenID:           r.TokenID,
		TokenIDHex:        r.TokenIDHex,
		Name:              r.Name,
		Description:       r.Description,
		Attributes:        attrs,
		MediaType:         r.MediaType,
		Status:            r.Status,
		ImageCID:          r.ImageCID,
		ImageHash:         r.ImageHash,
		MetadataCID:       r.MetadataCID,
		MetadataHash:      r.MetadataHash,
		VerifiableURI:     r.VerifiableURI,
		MintTxHash:        r.MintTxHash,
		DataTxHash:        r.DataTxHash,
		GlobalDataTxHash:  r.GlobalDataTxHash,
		Error:             r.Error,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

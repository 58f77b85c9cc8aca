package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pendergraft/mintforge/internal/observability/metrics"
	"github.com/pendergraft/mintforge/internal/storage"
	"github.com/pendergraft/mintforge/internal/validation"
)

// Common errors returned by the collection service.
var (
	ErrNotFound       = errors.New("collection not found")
	ErrInvalidAddress = errors.New("invalid address")
	ErrNoCode         = errors.New("no contract code at configured collection address")
	ErrDeploy         = errors.New("deploying collection failed")
	ErrChain          = errors.New("chain request failed")
)

// Service defines the collection service interface.
type Service interface {
	// Resolve returns the collection, loading or deploying it on first use.
	Resolve(ctx context.Context) (*Collection, error)

	// Current returns the collection if it has already been resolved or
	// persisted. It never deploys.
	Current(ctx context.Context) (*Collection, error)

	// Get retrieves a recorded collection by contract address.
	Get(ctx context.Context, address string) (*Collection, error)

	// List lists all recorded collections.
	List(ctx context.Context) ([]Collection, error)
}

type service struct {
	store  storage.CollectionStore
	chain  Chain
	cfg    Config
	key    string
	logger *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	current *Collection
}

// NewService creates a collection service for the configured collection.
func NewService(store storage.CollectionStore, chain Chain, cfg Config, logger *slog.Logger) Service {
	if cfg.Owner == "" {
		cfg.Owner = chain.Address()
	}
	return &service{
		store:  store,
		chain:  chain,
		cfg:    cfg,
		key:    Key(chain.ChainID(), cfg),
		logger: logger,
	}
}

// Key returns the stable identifier a collection is resolved under:
// chainId:name:symbol:owner, or chainId:address:<address> for an attached contract.
func Key(chainID int64, cfg Config) string {
	if cfg.Address != "" {
		return fmt.Sprintf("%d:address:%s", chainID, strings.ToLower(cfg.Address))
	}
	return fmt.Sprintf("%d:%s:%s:%s", chainID, cfg.Name, cfg.Symbol, strings.ToLower(cfg.Owner))
}

func (s *service) cached() *Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Resolve returns the collection, loading or deploying it on first use.
func (s *service) Resolve(ctx context.Context) (*Collection, error) {
	if c := s.cached(); c != nil {
		return c, nil
	}

	v, err, _ := s.group.Do(s.key, func() (any, error) {
		if c := s.cached(); c != nil {
			return c, nil
		}
		// a deployment outlives the request that triggered it
		c, err := s.resolve(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.current = c
		s.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Collection), nil
}

func (s *service) resolve(ctx context.Context) (*Collection, error) {
	stored, err := s.store.GetCollectionByKey(ctx, s.key)
	if err == nil {
		metrics.CollectionResolve("store")
		return fromStorage(stored), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("loading collection: %w", err)
	}

	record := &storage.Collection{
		Key:     s.key,
		ChainID: s.chain.ChainID(),
		Name:    s.cfg.Name,
		Symbol:  s.cfg.Symbol,
		Owner:   s.cfg.Owner,
	}

	if s.cfg.Address != "" {
		code, err := s.chain.GetCode(ctx, s.cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrChain, err)
		}
		if len(code) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoCode, s.cfg.Address)
		}
		record.Address = s.cfg.Address
		record.Source = SourceConfig
	} else {
		s.logger.Info("deploying collection", "name", s.cfg.Name, "symbol", s.cfg.Symbol, "owner", s.cfg.Owner)
		receipt, err := s.chain.Deploy(ctx, s.cfg.Name, s.cfg.Symbol, s.cfg.Owner)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeploy, err)
		}
		record.Address = validation.ChecksumAddress(receipt.ContractAddress)
		record.TxHash = receipt.TxHash
		record.Source = SourceDeployed
	}

	if err := s.store.SaveCollection(ctx, record); err != nil {
		if !errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("saving collection: %w", err)
		}
		// another instance recorded the key first
		winner, gerr := s.store.GetCollectionByKey(ctx, s.key)
		if gerr != nil {
			return nil, fmt.Errorf("saving collection: %w", err)
		}
		s.logger.Warn("collection recorded concurrently; discarding ours",
			"ours", record.Address,
			"recorded", winner.Address,
		)
		return fromStorage(winner), nil
	}

	metrics.CollectionResolve(record.Source)
	return fromStorage(record), nil
}

// Current returns the collection if it has already been resolved or persisted.
func (s *service) Current(ctx context.Context) (*Collection, error) {
	if c := s.cached(); c != nil {
		return c, nil
	}
	stored, err := s.store.GetCollectionByKey(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading collection: %w", err)
	}
	return fromStorage(stored), nil
}

// Get retrieves a recorded collection by contract address.
func (s *service) Get(ctx context.Context, address string) (*Collection, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	stored, err := s.store.GetCollection(ctx, address)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	return fromStorage(stored), nil
}

// List lists all recorded collections.
func (s *service) List(ctx context.Context) ([]Collection, error) {
	stored, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	collections := make([]Collection, 0, len(stored))
	for i := range stored {
		collections = append(collections, *fromStorage(&stored[i]))
	}
	return collections, nil
}

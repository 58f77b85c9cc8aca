// Package domain contains the business logic for resolving the collection
// contract that tokens are minted into.
package domain

import (
	"context"
	"time"

	"github.com/pendergraft/mintforge/internal/chains"
	"github.com/pendergraft/mintforge/internal/storage"
)

// Collection sources.
const (
	SourceConfig   = "config"
	SourceDeployed = "deployed"
)

// Collection is a resolved LSP8 collection contract.
type Collection struct {
	Key       string
	Address   string
	ChainID   int64
	Name      string
	Symbol    string
	Owner     string
	TxHash    string
	Source    string
	CreatedAt time.Time
}

// Config is the configured identity of the collection.
type Config struct {
	Address string // attach to an existing contract instead of deploying
	Name    string
	Symbol  string
	Owner   string // defaults to the admin address
}

// Chain is the subset of the contract gateway the resolver needs.
type Chain interface {
	Address() string
	ChainID() int64
	Deploy(ctx context.Context, name, symbol, owner string) (*chains.Receipt, error)
	GetCode(ctx context.Context, address string) ([]byte, error)
}

func fromStorage(c *storage.Collection) *Collection {
	return &Collection{
		Key:       c.Key,
		Address:   c.Address,
		ChainID:   c.ChainID,
		Name:      c.Name,
		Symbol:    c.Symbol,
		Owner:     c.Owner,
		TxHash:    c.TxHash,
		Source:    c.Source,
		CreatedAt: c.CreatedAt,
	}
}

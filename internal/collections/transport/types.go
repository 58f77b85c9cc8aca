// Package transport provides HTTP request/response types for the collections domain.
package transport

import (
	"time"

	"github.com/pendergraft/mintforge/internal/collections/domain"
)

// CollectionResponse is a collection as returned by the API.
type CollectionResponse struct {
	Address   string    `json:"address"`
	ChainID   int64     `json:"chainId"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Owner     string    `json:"owner"`
	TxHash    string    `json:"txHash,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// CollectionListResponse is the response for listing collections.
type CollectionListResponse struct {
	Data []CollectionResponse `json:"data"`
}

// FromDomain converts a domain collection to its response form.
func FromDomain(c *domain.Collection) CollectionResponse {
	return CollectionResponse{
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

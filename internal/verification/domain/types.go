// Package domain checks that minted tokens and the collection contract match
// what was recorded: pinned content against its hashes, on-chain metadata
// pointers against the pinned document, and runtime bytecode against the
// compiled artifact.
package domain

import (
	"context"

	collections "github.com/pendergraft/mintforge/internal/collections/domain"
	"github.com/pendergraft/mintforge/internal/lsp4"
	mints "github.com/pendergraft/mintforge/internal/mints/domain"
)

// Check names reported in a MintResult.
const (
	CheckImageHash     = "image_hash"
	CheckMetadataHash  = "metadata_hash"
	CheckMetadataImage = "metadata_image"
	CheckOnChainHash   = "onchain_hash"
	CheckOnChainURL    = "onchain_url"
)

// Check is the outcome of one comparison.
type Check struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

// MintResult is the result of verifying a mint.
type MintResult struct {
	MintID   string  `json:"mintId"`
	TokenID  uint64  `json:"tokenId"`
	Verified bool    `json:"verified"`
	Checks   []Check `json:"checks"`
}

// CollectionResult is the result of verifying a collection contract.
type CollectionResult struct {
	Address   string          `json:"address"`
	Verified  bool            `json:"verified"`
	MatchType string          `json:"matchType"` // "full", "partial", "none"
	Message   string          `json:"message"`
	Details   *BytecodeHashes `json:"details,omitempty"`
}

// BytecodeHashes are the keccak256 digests of the compared runtime code.
type BytecodeHashes struct {
	ExpectedBytecodeHash string `json:"expectedBytecodeHash,omitempty"`
	ActualBytecodeHash   string `json:"actualBytecodeHash,omitempty"`
}

// Mints looks up recorded mints.
type Mints interface {
	Get(ctx context.Context, id string) (*mints.Mint, error)
}

// Collections looks up recorded collections.
type Collections interface {
	Get(ctx context.Context, address string) (*collections.Collection, error)
}

// Content retrieves pinned content by CID.
type Content interface {
	Fetch(ctx context.Context, cid string) ([]byte, error)
}

// Chain reads contract state.
type Chain interface {
	GetDataForTokenID(ctx context.Context, contract string, tokenID, key lsp4.Bytes32) ([]byte, error)
	GetCode(ctx context.Context, address string) ([]byte, error)
}

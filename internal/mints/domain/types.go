// Package domain contains the mint pipeline: it pins a token's image and LSP4
// metadata, mints the token and attaches the metadata on-chain, recording each
// step so an interrupted mint can be resumed.
package domain

import (
	"context"
	"time"

	"github.com/pendergraft/mintforge/internal/chains"
	collections "github.com/pendergraft/mintforge/internal/collections/domain"
	"github.com/pendergraft/mintforge/internal/lsp4"
	"github.com/pendergraft/mintforge/internal/pinning"
)

// Mint statuses in pipeline order. A failed mint keeps the last status it
// reached and carries a non-empty Error.
const (
	StatusPending        = "pending"
	StatusImagePinned    = "image_pinned"
	StatusMetadataPinned = "metadata_pinned"
	StatusMinted         = "minted"
	StatusCompleted      = "completed"

	// StatusFailed is only used to filter listings.
	StatusFailed = "failed"
)

// Request is a request to mint one token.
type Request struct {
	RecipientAddress string
	TokenID          *uint64 // allocated when nil
	Metadata         *MetadataInput
}

// MetadataInput is the caller-supplied token metadata.
type MetadataInput struct {
	Name        string
	Description string
	MediaURL    string // base64 image, optionally a data URL
	Attributes  []lsp4.Attribute
}

// Mint is the recorded state of a mint.
type Mint struct {
	ID                string
	CollectionAddress string
	ChainID           int64
	Recipient         string
	TokenID           uint64
	TokenIDHex        string
	Name              string
	Description       string
	Attributes        []lsp4.Attribute
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

// Failed reports whether the last run of the pipeline stopped on an error.
func (m *Mint) Failed() bool {
	return m.Error != ""
}

// Result summarizes a finished mint.
type Result struct {
	Success          bool
	MintID           string
	Status           string
	TokenID          uint64
	TokenIDHex       string
	ImageURI         string
	ImageURL         string
	MetadataURI      string
	MetadataURL      string
	ContractAddress  string
	MintTxHash       string
	DataTxHash       string
	GlobalDataTxHash string
}

// ListFilter contains filter options for listing mints.
type ListFilter struct {
	Collection string
	Recipient  string
	Status     string
}

// PaginationParams contains pagination options.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// ListResult contains paginated mint results.
type ListResult struct {
	Mints      []Mint
	HasMore    bool
	NextCursor string
}

// Config holds the pipeline settings.
type Config struct {
	MintGasLimit        uint64
	WriteGlobalMetadata bool
}

// Collections resolves the collection tokens are minted into.
type Collections interface {
	Resolve(ctx context.Context) (*collections.Collection, error)
}

// Pinner stores image and metadata content.
type Pinner interface {
	PinFile(ctx context.Context, data []byte, fileName, contentType string) (*pinning.PinResult, error)
	PinJSON(ctx context.Context, doc []byte, fileName string) (*pinning.PinResult, error)
	GatewayURL(cid string) string
}

// Chain submits the collection transactions and waits for them to be mined.
type Chain interface {
	SubmitMint(ctx context.Context, contract, to string, tokenID lsp4.Bytes32, force bool, data []byte, gasLimit uint64) (string, error)
	SubmitSetDataForTokenID(ctx context.Context, contract string, tokenID, key lsp4.Bytes32, value []byte) (string, error)
	SubmitSetData(ctx context.Context, contract string, key lsp4.Bytes32, value []byte) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) (*chains.Receipt, error)
}

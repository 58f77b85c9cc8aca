// Package transport provides HTTP request/response types for the mints domain.
package transport

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pendergraft/mintforge/internal/lsp4"
	"github.com/pendergraft/mintforge/internal/mints/domain"
)

// MintRequest is the HTTP request body for minting a token.
type MintRequest struct {
	RecipientAddress string           `json:"recipientAddress"`
	TokenID          *json.Number     `json:"tokenId,omitempty"`
	Metadata         *MetadataRequest `json:"metadata"`
}

// MetadataRequest is the token metadata of a MintRequest. Image is accepted
// as an alias of MediaURL.
type MetadataRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	MediaURL    string           `json:"mediaUrl"`
	Image       string           `json:"image,omitempty"`
	Attributes  []lsp4.Attribute `json:"attributes"`
}

// ToDomain converts MintRequest to domain.Request.
func (r MintRequest) ToDomain() (domain.Request, error) {
	req := domain.Request{RecipientAddress: r.RecipientAddress}
	if r.TokenID != nil {
		id, err := strconv.ParseUint(r.TokenID.String(), 10, 64)
		if err != nil {
			return req, fmt.Errorf("%w: tokenId must be a non-negative integer", domain.ErrInvalidRequest)
		}
		req.TokenID = &id
	}
	if r.Metadata != nil {
		media := r.Metadata.MediaURL
		if media == "" {
			media = r.Metadata.Image
		}
		req.Metadata = &domain.MetadataInput{
			Name:        r.Metadata.Name,
			Description: r.Metadata.Description,
			MediaURL:    media,
			Attributes:  r.Metadata.Attributes,
		}
	}
	return req, nil
}

// ResultResponse is the summary of a mint run.
type ResultResponse struct {
	Success          bool   `json:"success"`
	MintID           string `json:"mintId"`
	Status           string `json:"status"`
	TokenID          uint64 `json:"tokenId"`
	TokenIDHex       string `json:"tokenIdHex"`
	ImageURI         string `json:"imageUri,omitempty"`
	ImageURL         string `json:"imageUrl,omitempty"`
	MetadataURI      string `json:"metadataUri,omitempty"`
	MetadataURL      string `json:"metadataUrl,omitempty"`
	ContractAddress  string `json:"contractAddress"`
	MintTxHash       string `json:"mintTxHash,omitempty"`
	DataTxHash       string `json:"dataTxHash,omitempty"`
	GlobalDataTxHash string `json:"globalDataTxHash,omitempty"`
}

// MintResponse is the response for a successful mint or resume.
type MintResponse struct {
	Success         bool           `json:"success"`
	Message         ResultResponse `json:"message"`
	ContractAddress string         `json:"contractAddress"`
	TokenID         uint64         `json:"tokenId"`
}

// MintRecord is a stored mint as returned by the API.
type MintRecord struct {
	ID                string           `json:"id"`
	CollectionAddress string           `json:"collectionAddress"`
	ChainID           int64            `json:"chainId"`
	Recipient         string           `json:"recipient"`
	TokenID           uint64           `json:"tokenId"`
	TokenIDHex        string           `json:"tokenIdHex"`
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	Attributes        []lsp4.Attribute `json:"attributes"`
	Status            string           `json:"status"`
	Failed            bool             `json:"failed"`
	ImageCID          string           `json:"imageCid,omitempty"`
	ImageHash         string           `json:"imageHash,omitempty"`
	MetadataCID       string           `json:"metadataCid,omitempty"`
	MetadataHash      string           `json:"metadataHash,omitempty"`
	VerifiableURI     string           `json:"verifiableUri,omitempty"`
	MintTxHash        string           `json:"mintTxHash,omitempty"`
	DataTxHash        string           `json:"dataTxHash,omitempty"`
	GlobalDataTxHash  string           `json:"globalDataTxHash,omitempty"`
	Error             string           `json:"error,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// MintListResponse is the response for listing mints.
type MintListResponse struct {
	Data       []MintRecord `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// Pagination contains pagination info.
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// FromResult converts a domain result.
func FromResult(r *domain.Result) ResultResponse {
	return ResultResponse{
		Success:          r.Success,
		MintID:           r.MintID,
		Status:           r.Status,
		TokenID:          r.TokenID,
		TokenIDHex:       r.TokenIDHex,
		ImageURI:         r.ImageURI,
		ImageURL:         r.ImageURL,
		MetadataURI:      r.MetadataURI,
		MetadataURL:      r.MetadataURL,
		ContractAddress:  r.ContractAddress,
		MintTxHash:       r.MintTxHash,
		DataTxHash:       r.DataTxHash,
		GlobalDataTxHash: r.GlobalDataTxHash,
	}
}

// FromMint converts a domain mint record.
func FromMint(m *domain.Mint) MintRecord {
	return MintRecord{
		ID:                m.ID,
		CollectionAddress: m.CollectionAddress,
		ChainID:           m.ChainID,
		Recipient:         m.Recipient,
		TokenID:           m.TokenID,
		TokenIDHex:        m.TokenIDHex,
		Name:              m.Name,
		Description:       m.Description,
		Attributes:        m.Attributes,
		Status:            m.Status,
		Failed:            m.Failed(),
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

package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pendergraft/mintforge/internal/chains/evm"
	collections "github.com/pendergraft/mintforge/internal/collections/domain"
	"github.com/pendergraft/mintforge/internal/lsp4"
	mints "github.com/pendergraft/mintforge/internal/mints/domain"
	"github.com/pendergraft/mintforge/internal/observability/metrics"
	"github.com/pendergraft/mintforge/internal/validation"
)

// Common errors returned by the verification service.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidAddress = errors.New("invalid address")
	ErrNotVerifiable  = errors.New("mint has no pinned metadata to verify")
	ErrNoArtifact     = errors.New("no deployed bytecode in collection artifact")
	ErrChain          = errors.New("chain request failed")
)

// Service defines the verification service interface.
type Service interface {
	// VerifyMint checks the pinned image and metadata of a mint against the
	// recorded hashes and the metadata pointer stored on-chain.
	VerifyMint(ctx context.Context, id string) (*MintResult, error)

	// VerifyCollection compares a collection's runtime code to the artifact.
	VerifyCollection(ctx context.Context, address string) (*CollectionResult, error)
}

type service struct {
	mints       Mints
	collections Collections
	content     Content
	chain       Chain
	deployed    string
	logger      *slog.Logger
}

// NewService creates a verification service. deployedBytecode is the runtime
// bytecode of the collection artifact.
func NewService(mints Mints, collections Collections, content Content, chain Chain, deployedBytecode string, logger *slog.Logger) Service {
	return &service{
		mints:       mints,
		collections: collections,
		content:     content,
		chain:       chain,
		deployed:    deployedBytecode,
		logger:      logger,
	}
}

func (s *service) VerifyMint(ctx context.Context, id string) (*MintResult, error) {
	m, err := s.mints.Get(ctx, id)
	if err != nil {
		if errors.Is(err, mints.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting mint: %w", err)
	}
	if m.ImageCID == "" || m.MetadataCID == "" {
		return nil, ErrNotVerifiable
	}

	res := &MintResult{MintID: m.ID, TokenID: m.TokenID}
	res.Checks = append(res.Checks, s.checkImage(ctx, m))
	res.Checks = append(res.Checks, s.checkMetadata(ctx, m)...)

	onChain, err := s.checkOnChain(ctx, m)
	if err != nil {
		return nil, err
	}
	res.Checks = append(res.Checks, onChain...)

	res.Verified = true
	for _, c := range res.Checks {
		if !c.Passed {
			res.Verified = false
			break
		}
	}
	metrics.Verification("mint", resultLabel(res.Verified))
	return res, nil
}

func (s *service) checkImage(ctx context.Context, m *mints.Mint) Check {
	c := Check{Name: CheckImageHash, Expected: m.ImageHash}
	data, err := s.content.Fetch(ctx, m.ImageCID)
	if err != nil {
		c.Message = fmt.Sprintf("fetching image %s: %v", m.ImageCID, err)
		return c
	}
	c.Actual = lsp4.Keccak256(data).Hex()
	c.Passed = strings.EqualFold(c.Actual, c.Expected)
	return c
}

// checkMetadata hashes the pinned document and checks that its icon points at
// the pinned image.
func (s *service) checkMetadata(ctx context.Context, m *mints.Mint) []Check {
	hash := Check{Name: CheckMetadataHash, Expected: m.MetadataHash}
	img := Check{Name: CheckMetadataImage, Expected: lsp4.IPFSURI(m.ImageCID) + " " + m.ImageHash}

	raw, err := s.content.Fetch(ctx, m.MetadataCID)
	if err != nil {
		hash.Message = fmt.Sprintf("fetching metadata %s: %v", m.MetadataCID, err)
		img.Message = hash.Message
		return []Check{hash, img}
	}
	hash.Actual = lsp4.Keccak256(raw).Hex()
	hash.Passed = strings.EqualFold(hash.Actual, hash.Expected)

	var doc lsp4.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		img.Message = fmt.Sprintf("decoding metadata: %v", err)
		return []Check{hash, img}
	}
	icons := doc.LSP4Metadata.Icon
	if len(icons) == 0 {
		img.Message = "metadata has no icon"
		return []Check{hash, img}
	}
	img.Actual = icons[0].URL + " " + icons[0].Verification.Data
	img.Passed = icons[0].URL == lsp4.IPFSURI(m.ImageCID) &&
		icons[0].Verification.Method == lsp4.MethodKeccak256Bytes &&
		strings.EqualFold(icons[0].Verification.Data, m.ImageHash)
	return []Check{hash, img}
}

// checkOnChain reads the token-scoped LSP4Metadata value and compares it with
// the pinned metadata. Chain errors abort verification rather than fail it.
func (s *service) checkOnChain(ctx context.Context, m *mints.Mint) ([]Check, error) {
	hash := Check{Name: CheckOnChainHash, Expected: m.MetadataHash}
	url := Check{Name: CheckOnChainURL, Expected: lsp4.IPFSURI(m.MetadataCID)}

	if m.MintTxHash == "" {
		hash.Message = "token has not been minted"
		url.Message = hash.Message
		return []Check{hash, url}, nil
	}

	value, err := s.chain.GetDataForTokenID(ctx, m.CollectionAddress, lsp4.TokenID(m.TokenID), lsp4.MetadataKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChain, err)
	}
	if len(value) == 0 {
		hash.Message = "no LSP4Metadata set for token"
		url.Message = hash.Message
		return []Check{hash, url}, nil
	}

	v, err := lsp4.DecodeVerifiableURI(value)
	if err != nil {
		hash.Message = err.Error()
		url.Message = hash.Message
		return []Check{hash, url}, nil
	}
	hash.Actual = v.Hash.Hex()
	hash.Passed = strings.EqualFold(hash.Actual, hash.Expected)
	url.Actual = v.URL
	url.Passed = v.URL == url.Expected
	return []Check{hash, url}, nil
}

func (s *service) VerifyCollection(ctx context.Context, address string) (*CollectionResult, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	col, err := s.collections.Get(ctx, address)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting collection: %w", err)
	}

	expected, err := evm.DecodeHex(s.deployed)
	if err != nil || len(expected) == 0 {
		return nil, ErrNoArtifact
	}

	code, err := s.chain.GetCode(ctx, col.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChain, err)
	}

	cmp := evm.CompareBytecode(code, expected)
	res := &CollectionResult{
		Address:   col.Address,
		Verified:  cmp.Match,
		MatchType: cmp.MatchType,
		Message:   cmp.Message,
		Details: &BytecodeHashes{
			ExpectedBytecodeHash: lsp4.Keccak256(expected).Hex(),
		},
	}
	if len(code) > 0 {
		res.Details.ActualBytecodeHash = lsp4.Keccak256(code).Hex()
	}

	s.logger.Debug("collection bytecode compared",
		"address", col.Address,
		"matchType", cmp.MatchType,
	)
	metrics.Verification("collection", resultLabel(res.Verified))
	return res, nil
}

func resultLabel(ok bool) string {
	if ok {
		return "verified"
	}
	return "failed"
}

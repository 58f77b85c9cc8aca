package domain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pendergraft/mintforge/internal/chains/evm"
	"github.com/pendergraft/mintforge/internal/lsp4"
	"github.com/pendergraft/mintforge/internal/observability/metrics"
	"github.com/pendergraft/mintforge/internal/validation"
)

// stageNames labels the work done to leave each status.
var stageNames = map[string]string{
	StatusPending:        "pin_image",
	StatusImagePinned:    "pin_metadata",
	StatusMetadataPinned: "mint",
	StatusMinted:         "write_metadata",
}

// advance runs the remaining stages for m's status. img is only needed while
// the mint is still pending. On failure the error is recorded on the mint.
func (s *service) advance(ctx context.Context, m *Mint, img []byte) error {
	for m.Status != StatusCompleted {
		stage := m.Status
		start := time.Now()

		var err error
		switch stage {
		case StatusPending:
			err = s.pinImage(ctx, m, img)
		case StatusImagePinned:
			err = s.pinMetadata(ctx, m)
		case StatusMetadataPinned:
			err = s.mintToken(ctx, m)
		case StatusMinted:
			err = s.writeMetadata(ctx, m)
		default:
			err = fmt.Errorf("%w: unknown status %q", ErrNotResumable, stage)
		}
		if err != nil {
			return s.fail(ctx, m, err)
		}
		observeStage(stageNames[stage], start)
	}

	metrics.Mint(StatusCompleted)
	s.logger.Info("mint completed",
		"mintId", m.ID,
		"tokenId", m.TokenID,
		"collection", m.CollectionAddress,
		"metadataCid", m.MetadataCID,
	)
	return nil
}

// fail records err on the mint. The mint keeps the last status it reached.
func (s *service) fail(ctx context.Context, m *Mint, err error) error {
	metrics.Mint(StatusFailed)
	m.Error = err.Error()
	if serr := s.save(context.WithoutCancel(ctx), m); serr != nil {
		s.logger.Error("recording mint failure", "mintId", m.ID, "error", serr)
	}
	return err
}

func (s *service) pinImage(ctx context.Context, m *Mint, img []byte) error {
	if len(img) == 0 {
		return fmt.Errorf("%w: image was never pinned", ErrNotResumable)
	}

	fileName := fmt.Sprintf("%s-%d.png", validation.SanitizeFileName(m.Name), s.now().UnixMilli())
	pinned, err := s.pinner.PinFile(ctx, img, fileName, m.MediaType)
	if err != nil {
		return fmt.Errorf("%w: image: %v", ErrPinning, err)
	}

	m.ImageCID = pinned.CID
	m.Status = StatusImagePinned
	return s.save(ctx, m)
}

// Document rebuilds the LSP4 metadata document from the recorded fields.
func (m *Mint) Document() (lsp4.Document, error) {
	digest, err := lsp4.ParseBytes32(m.ImageHash)
	if err != nil {
		return lsp4.Document{}, fmt.Errorf("image hash: %w", err)
	}
	img := lsp4.NewImage(m.ImageCID, digest)
	return lsp4.NewDocument(m.Name, m.Description, m.Attributes, img), nil
}

func (s *service) pinMetadata(ctx context.Context, m *Mint) error {
	doc, err := m.Document()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMetadata, err)
	}
	// serialize once; the same bytes are hashed and pinned
	raw, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMetadata, err)
	}

	fileName := fmt.Sprintf("%s-metadata-%d.json", validation.SanitizeFileName(m.Name), s.now().UnixMilli())
	pinned, err := s.pinner.PinJSON(ctx, raw, fileName)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", ErrPinning, err)
	}

	vuri := lsp4.NewJSONVerifiableURI(raw, lsp4.IPFSURI(pinned.CID))
	encoded, err := vuri.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMetadata, err)
	}

	m.MetadataCID = pinned.CID
	m.MetadataHash = vuri.Hash.Hex()
	m.VerifiableURI = "0x" + hex.EncodeToString(encoded)
	m.Status = StatusMetadataPinned
	return s.save(ctx, m)
}

func (s *service) mintToken(ctx context.Context, m *Mint) error {
	if m.MintTxHash == "" {
		txHash, err := s.chain.SubmitMint(ctx, m.CollectionAddress, m.Recipient, lsp4.TokenID(m.TokenID), true, nil, s.cfg.MintGasLimit)
		if err != nil {
			return fmt.Errorf("%w: mint: %v", ErrChain, err)
		}
		m.MintTxHash = txHash
		if err := s.save(ctx, m); err != nil {
			return err
		}
	}

	if err := s.wait(ctx, &m.MintTxHash); err != nil {
		return fmt.Errorf("%w: mint: %v", ErrChain, err)
	}
	m.Status = StatusMinted
	return s.save(ctx, m)
}

// writeMetadata attaches the encoded VerifiableURI to the token and, when
// enabled, writes the same value under the collection-wide key.
func (s *service) writeMetadata(ctx context.Context, m *Mint) error {
	value, err := hex.DecodeString(strings.TrimPrefix(m.VerifiableURI, "0x"))
	if err != nil || len(value) == 0 {
		return fmt.Errorf("%w: recorded VerifiableURI is invalid", ErrMetadata)
	}

	if m.DataTxHash == "" {
		txHash, err := s.chain.SubmitSetDataForTokenID(ctx, m.CollectionAddress, lsp4.TokenID(m.TokenID), lsp4.MetadataKey, value)
		if err != nil {
			return fmt.Errorf("%w: setDataForTokenId: %v", ErrChain, err)
		}
		m.DataTxHash = txHash
		if err := s.save(ctx, m); err != nil {
			return err
		}
	}
	if err := s.wait(ctx, &m.DataTxHash); err != nil {
		return fmt.Errorf("%w: setDataForTokenId: %v", ErrChain, err)
	}

	if s.cfg.WriteGlobalMetadata {
		if m.GlobalDataTxHash == "" {
			txHash, err := s.chain.SubmitSetData(ctx, m.CollectionAddress, lsp4.MetadataKey, value)
			if err != nil {
				return fmt.Errorf("%w: setData: %v", ErrChain, err)
			}
			m.GlobalDataTxHash = txHash
			if err := s.save(ctx, m); err != nil {
				return err
			}
		}
		if err := s.wait(ctx, &m.GlobalDataTxHash); err != nil {
			return fmt.Errorf("%w: setData: %v", ErrChain, err)
		}
	}

	m.Status = StatusCompleted
	m.Error = ""
	return s.save(ctx, m)
}

// wait blocks until the transaction is mined. A reverted transaction clears
// the recorded hash so that a resume submits it again.
func (s *service) wait(ctx context.Context, txHash *string) error {
	_, err := s.chain.WaitForReceipt(ctx, *txHash)
	if errors.Is(err, evm.ErrReverted) {
		*txHash = ""
	}
	return err
}

func observeStage(stage string, start time.Time) {
	metrics.MintStage(stage, time.Since(start))
}

// result summarizes m for callers.
func (s *service) result(m *Mint) *Result {
	r := &Result{
		Success:          m.Status == StatusCompleted && !m.Failed(),
		MintID:           m.ID,
		Status:           m.Status,
		TokenID:          m.TokenID,
		TokenIDHex:       m.TokenIDHex,
		ContractAddress:  m.CollectionAddress,
		MintTxHash:       m.MintTxHash,
		DataTxHash:       m.DataTxHash,
		GlobalDataTxHash: m.GlobalDataTxHash,
	}
	if m.ImageCID != "" {
		r.ImageURI = lsp4.IPFSURI(m.ImageCID)
		r.ImageURL = s.pinner.GatewayURL(m.ImageCID)
	}
	if m.MetadataCID != "" {
		r.MetadataURI = lsp4.IPFSURI(m.MetadataCID)
		r.MetadataURL = s.pinner.GatewayURL(m.MetadataCID)
	}
	return r
}

// Package domain contains the standalone image operations: generating an
// image from a prompt and pinning caller-supplied image data.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pendergraft/mintforge/internal/imagegen"
	"github.com/pendergraft/mintforge/internal/lsp4"
	"github.com/pendergraft/mintforge/internal/observability/metrics"
	"github.com/pendergraft/mintforge/internal/pinning"
	"github.com/pendergraft/mintforge/internal/validation"
)

// Common errors returned by the image service.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotConfigured  = errors.New("service not configured")
	ErrUpstream       = errors.New("upstream service failed")
)

const maxPromptLength = 32000

// Generator produces base64 image data from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Pinner stores image bytes.
type Pinner interface {
	PinFile(ctx context.Context, data []byte, fileName, contentType string) (*pinning.PinResult, error)
}

// SaveResult describes pinned image data.
type SaveResult struct {
	CID        string
	GatewayURL string
	URI        string
	Hash       lsp4.Bytes32 // keccak256 of the decoded bytes
	Size       int64
}

// Service defines the image service interface.
type Service interface {
	// Generate returns base64 image data for prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Save decodes base64 or data-URL image data and pins it under fileName.
	Save(ctx context.Context, imageData, fileName string) (*SaveResult, error)
}

type service struct {
	generator Generator
	pinner    Pinner
}

// NewService creates a new image service.
func NewService(generator Generator, pinner Pinner) Service {
	return &service{generator: generator, pinner: pinner}
}

// Generate returns base64 image data for prompt.
func (s *service) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: Prompt is required", ErrInvalidRequest)
	}
	if len(prompt) > maxPromptLength {
		return "", fmt.Errorf("%w: prompt too long (max %d chars)", ErrInvalidRequest, maxPromptLength)
	}

	data, err := s.generator.Generate(ctx, prompt)
	metrics.ImageGenerate(err)
	if err != nil {
		if errors.Is(err, imagegen.ErrNotConfigured) {
			return "", fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return data, nil
}

// Save decodes base64 or data-URL image data and pins it under fileName.
func (s *service) Save(ctx context.Context, imageData, fileName string) (*SaveResult, error) {
	if imageData == "" || strings.TrimSpace(fileName) == "" {
		return nil, fmt.Errorf("%w: Image data and file name are required", ErrInvalidRequest)
	}
	data, err := validation.DecodeMedia(imageData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	hash := lsp4.Keccak256(data)
	pinned, err := s.pinner.PinFile(ctx, data, validation.SanitizeFileName(fileName), validation.MediaType(imageData))
	if err != nil {
		if errors.Is(err, pinning.ErrNotConfigured) {
			return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return &SaveResult{
		CID:        pinned.CID,
		GatewayURL: pinned.GatewayURL,
		URI:        pinned.URI,
		Hash:       hash,
		Size:       pinned.Size,
	}, nil
}

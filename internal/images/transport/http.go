// Package transport provides HTTP handlers for the images domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/mintforge/internal/images/domain"
)

// Service defines the image service interface for HTTP transport.
type Service interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Save(ctx context.Context, imageData, fileName string) (*domain.SaveResult, error)
}

// Handler handles HTTP requests for images.
type Handler struct {
	svc Service
}

// NewHandler creates a new images HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the image routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/generate-image", h.handleGenerate)
	r.Post("/save-to-ipfs", h.handleSave)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	data, err := h.svc.Generate(r.Context(), req.Prompt)
	if err != nil {
		writeServiceError(w, err, "Failed to generate image")
		return
	}
	writeJSON(w, http.StatusOK, GenerateResponse{ImageData: data})
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	result, err := h.svc.Save(r.Context(), req.ImageData, req.FileName)
	if err != nil {
		writeServiceError(w, err, "Failed to save image to IPFS")
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{
		IPFSHash: result.CID,
		IPFSURL:  result.GatewayURL,
		IPFSURI:  result.URI,
		Hash:     result.Hash.Hex(),
		Size:     result.Size,
	})
}

func writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", message)
	case errors.Is(err, domain.ErrUpstream):
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", message)
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// Package transport provides HTTP handlers for the verification domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/mintforge/internal/verification/domain"
)

// Service defines the verification service interface for HTTP transport.
type Service interface {
	VerifyMint(ctx context.Context, id string) (*domain.MintResult, error)
	VerifyCollection(ctx context.Context, address string) (*domain.CollectionResult, error)
}

// Handler handles HTTP requests for verification.
type Handler struct {
	svc Service
}

// NewHandler creates a new verification HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterMintRoutes registers GET /{id}/verify on the mints router.
func (h *Handler) RegisterMintRoutes(r chi.Router) {
	r.Get("/{id}/verify", h.handleVerifyMint)
}

// RegisterCollectionRoutes registers GET /{address}/verify on the collections router.
func (h *Handler) RegisterCollectionRoutes(r chi.Router) {
	r.Get("/{address}/verify", h.handleVerifyCollection)
}

func (h *Handler) handleVerifyMint(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.VerifyMint(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeVerifyError(w, err, "Mint not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleVerifyCollection(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.VerifyCollection(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeVerifyError(w, err, "Collection not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeVerifyError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", notFound)
	case errors.Is(err, domain.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrNotVerifiable):
		writeError(w, http.StatusConflict, "NOT_VERIFIABLE", err.Error())
	case errors.Is(err, domain.ErrChain):
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Failed to read contract state")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify")
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

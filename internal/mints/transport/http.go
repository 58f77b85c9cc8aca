// Package transport provides HTTP handlers for the mints domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/mintforge/internal/mints/domain"
)

// Service defines the mint service interface for HTTP transport.
type Service interface {
	Mint(ctx context.Context, req domain.Request) (*domain.Result, error)
	Resume(ctx context.Context, id string) (*domain.Result, error)
	Get(ctx context.Context, id string) (*domain.Mint, error)
	List(ctx context.Context, filter domain.ListFilter, pagination domain.PaginationParams) (*domain.ListResult, error)
}

// Handler handles HTTP requests for mints.
type Handler struct {
	svc Service
}

// NewHandler creates a new mints HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterMintRoute registers POST / for minting.
func (h *Handler) RegisterMintRoute(r chi.Router) {
	r.Post("/", h.handleMint)
}

// RegisterRoutes registers the mint record routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/resume", h.handleResume)
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	var body MintRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	req, err := body.ToDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.svc.Mint(r.Context(), req)
	if err != nil {
		writeMintError(w, result, err)
		return
	}
	writeJSON(w, http.StatusOK, MintResponse{
		Success:         true,
		Message:         FromResult(result),
		ContractAddress: result.ContractAddress,
		TokenID:         result.TokenID,
	})
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMintError(w, result, err)
		return
	}
	writeJSON(w, http.StatusOK, MintResponse{
		Success:         true,
		Message:         FromResult(result),
		ContractAddress: result.ContractAddress,
		TokenID:         result.TokenID,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Mint not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get mint")
		return
	}
	writeJSON(w, http.StatusOK, FromMint(m))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	result, err := h.svc.List(r.Context(), domain.ListFilter{
		Collection: r.URL.Query().Get("collection"),
		Recipient:  r.URL.Query().Get("recipient"),
		Status:     r.URL.Query().Get("status"),
	}, domain.PaginationParams{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list mints")
		return
	}

	resp := MintListResponse{
		Data: make([]MintRecord, len(result.Mints)),
		Pagination: Pagination{
			Limit:      limit,
			HasMore:    result.HasMore,
			NextCursor: result.NextCursor,
		},
	}
	for i := range result.Mints {
		resp.Data[i] = FromMint(&result.Mints[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeMintError maps pipeline errors. Downstream failures carry the mint's
// id and last status so the caller can resume.
func writeMintError(w http.ResponseWriter, result *domain.Result, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidMedia):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Mint not found")
	case errors.Is(err, domain.ErrTokenTaken), errors.Is(err, domain.ErrTokensExhausted), errors.Is(err, domain.ErrInProgress):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, domain.ErrNotResumable):
		writeError(w, http.StatusConflict, "NOT_RESUMABLE", err.Error())
	default:
		details := map[string]any{"cause": err.Error()}
		if result != nil {
			details["mintId"] = result.MintID
			details["status"] = result.Status
			details["tokenId"] = result.TokenID
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error": map[string]any{
				"code":    mintErrorCode(err),
				"message": "Failed to mint NFT",
				"details": details,
			},
		})
	}
}

func mintErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrCollection):
		return "COLLECTION_ERROR"
	case errors.Is(err, domain.ErrPinning):
		return "PINNING_ERROR"
	case errors.Is(err, domain.ErrChain):
		return "CHAIN_ERROR"
	default:
		return "INTERNAL_ERROR"
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

// Package transport provides HTTP handlers for the collections domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/mintforge/internal/collections/domain"
)

// Service defines the collection service interface for HTTP transport.
type Service interface {
	Current(ctx context.Context) (*domain.Collection, error)
	Get(ctx context.Context, address string) (*domain.Collection, error)
	List(ctx context.Context) ([]domain.Collection, error)
}

// Handler handles HTTP requests for collections.
type Handler struct {
	svc Service
}

// NewHandler creates a new collections HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the collection routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/current", h.handleCurrent)
	r.Get("/{address}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	collections, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list collections")
		return
	}

	resp := CollectionListResponse{Data: make([]CollectionResponse, len(collections))}
	for i := range collections {
		resp.Data[i] = FromDomain(&collections[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Current(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Collection has not been resolved yet")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get collection")
		return
	}
	writeJSON(w, http.StatusOK, FromDomain(c))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAddress):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Collection not found")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get collection")
		}
		return
	}
	writeJSON(w, http.StatusOK, FromDomain(c))
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

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/mintforge/internal/verification/domain"
)

// mockService implements Service for testing
type mockService struct {
	mintErr       error
	collectionErr error
}

func (m *mockService) VerifyMint(ctx context.Context, id string) (*domain.MintResult, error) {
	if m.mintErr != nil {
		return nil, m.mintErr
	}
	return &domain.MintResult{
		MintID:   id,
		TokenID:  3,
		Verified: true,
		Checks:   []domain.Check{{Name: domain.CheckImageHash, Passed: true}},
	}, nil
}

func (m *mockService) VerifyCollection(ctx context.Context, address string) (*domain.CollectionResult, error) {
	if m.collectionErr != nil {
		return nil, m.collectionErr
	}
	return &domain.CollectionResult{Address: address, Verified: true, MatchType: "full"}, nil
}

func setupRouter(svc Service) *chi.Mux {
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Route("/api/mints", h.RegisterMintRoutes)
	r.Route("/api/collections", h.RegisterCollectionRoutes)
	return r
}

func TestHandler_VerifyMint(t *testing.T) {
	router := setupRouter(&mockService{})

	req := httptest.NewRequest("GET", "/api/mints/abc/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp domain.MintResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc", resp.MintID)
	assert.True(t, resp.Verified)
	assert.Len(t, resp.Checks, 1)
}

func TestHandler_VerifyCollection(t *testing.T) {
	router := setupRouter(&mockService{})

	req := httptest.NewRequest("GET", "/api/collections/0x1111111111111111111111111111111111111111/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp domain.CollectionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "full", resp.MatchType)
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"invalid address", fmt.Errorf("%w: bad checksum", domain.ErrInvalidAddress), http.StatusBadRequest, "INVALID_REQUEST"},
		{"not verifiable", domain.ErrNotVerifiable, http.StatusConflict, "NOT_VERIFIABLE"},
		{"chain", fmt.Errorf("%w: timeout", domain.ErrChain), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(&mockService{mintErr: tt.err, collectionErr: tt.err})

			for _, path := range []string{"/api/mints/abc/verify", "/api/collections/0xabc/verify"} {
				req := httptest.NewRequest("GET", path, nil)
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)

				assert.Equal(t, tt.status, rec.Code, path)

				var resp map[string]map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.code, resp["error"]["code"], path)
			}
		})
	}
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Mint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/mint" {
			t.Errorf("Expected path /api/mint, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %s", ct)
		}

		var req MintRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.TokenID == nil || *req.TokenID != 42 {
			t.Errorf("Expected tokenId 42, got %v", req.TokenID)
		}
		if req.Metadata == nil || req.Metadata.Name != "Gold Pass" {
			t.Errorf("Expected metadata name Gold Pass, got %+v", req.Metadata)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"contractAddress": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			"tokenId":         42,
			"message": map[string]any{
				"success":     true,
				"mintId":      "mint-1",
				"status":      "completed",
				"tokenId":     42,
				"metadataUri": "ipfs://QmMeta",
			},
		})
	}))
	defer server.Close()

	id := uint64(42)
	client := New(server.URL)
	resp, err := client.Mint(context.Background(), MintRequest{
		RecipientAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		TokenID:          &id,
		Metadata: &Metadata{
			Name:       "Gold Pass",
			MediaURL:   "data:image/png;base64,iVBORw0KGgo=",
			Attributes: []Attribute{{TraitType: "Tier", Value: "Gold"}},
		},
	})
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if resp.TokenID != 42 {
		t.Errorf("Mint().TokenID = %d, want 42", resp.TokenID)
	}
	if resp.Message.MintID != "mint-1" {
		t.Errorf("Mint().Message.MintID = %s, want mint-1", resp.Message.MintID)
	}
	if resp.Message.MetadataURI != "ipfs://QmMeta" {
		t.Errorf("Mint().Message.MetadataURI = %s, want ipfs://QmMeta", resp.Message.MetadataURI)
	}
}

func TestClient_MintFailureCarriesMintID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error": map[string]any{
				"code":    "CHAIN_ERROR",
				"message": "Failed to mint NFT",
				"details": map[string]any{"mintId": "mint-9", "status": "minted"},
			},
		})
	}))
	defer server.Close()

	_, err := New(server.URL).Mint(context.Background(), MintRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
	}
	if apiErr.Code != "CHAIN_ERROR" {
		t.Errorf("Code = %s, want CHAIN_ERROR", apiErr.Code)
	}
	if apiErr.MintID() != "mint-9" {
		t.Errorf("MintID() = %s, want mint-9", apiErr.MintID())
	}
}

func TestClient_ListMints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/mints" {
			t.Errorf("Expected path /api/mints, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("status") != "failed" || q.Get("limit") != "5" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		if q.Has("recipient") {
			t.Errorf("Empty recipient should not be sent")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "mint-1", "tokenId": 1, "status": "pinned_metadata", "failed": true},
			},
			"pagination": map[string]any{"limit": 5, "hasMore": true, "nextCursor": "abc"},
		})
	}))
	defer server.Close()

	resp, err := New(server.URL).ListMints(context.Background(), ListMintsOptions{Status: "failed", Limit: 5})
	if err != nil {
		t.Fatalf("ListMints() error = %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("ListMints() returned %d mints, want 1", len(resp.Data))
	}
	if !resp.Data[0].Failed {
		t.Errorf("ListMints()[0].Failed = false, want true")
	}
	if resp.Pagination.NextCursor != "abc" {
		t.Errorf("NextCursor = %s, want abc", resp.Pagination.NextCursor)
	}
}

func TestClient_MintRoutes(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/mints/mint-1":
			json.NewEncoder(w).Encode(map[string]any{"id": "mint-1", "tokenId": 7})
		case "/api/mints/mint-1/resume":
			if r.Header.Get("Content-Type") != "" {
				t.Errorf("Resume should not send a body")
			}
			json.NewEncoder(w).Encode(map[string]any{"success": true, "tokenId": 7})
		case "/api/mints/mint-1/verify":
			json.NewEncoder(w).Encode(map[string]any{
				"mintId":   "mint-1",
				"verified": false,
				"checks":   []map[string]any{{"name": "image_hash", "passed": false}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client := New(server.URL + "/")

	m, err := client.GetMint(ctx, "mint-1")
	if err != nil {
		t.Fatalf("GetMint() error = %v", err)
	}
	if m.TokenID != 7 {
		t.Errorf("GetMint().TokenID = %d, want 7", m.TokenID)
	}

	if _, err := client.ResumeMint(ctx, "mint-1"); err != nil {
		t.Fatalf("ResumeMint() error = %v", err)
	}

	v, err := client.VerifyMint(ctx, "mint-1")
	if err != nil {
		t.Fatalf("VerifyMint() error = %v", err)
	}
	if v.Verified || len(v.Checks) != 1 || v.Checks[0].Name != "image_hash" {
		t.Errorf("VerifyMint() = %+v", v)
	}

	want := []string{
		"GET /api/mints/mint-1",
		"POST /api/mints/mint-1/resume",
		"GET /api/mints/mint-1/verify",
	}
	if len(got) != len(want) {
		t.Fatalf("requests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestClient_Images(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)

		switch r.URL.Path {
		case "/api/generate-image":
			if body["prompt"] != "a cat" {
				t.Errorf("prompt = %s, want a cat", body["prompt"])
			}
			json.NewEncoder(w).Encode(map[string]string{"imageData": "aGVsbG8="})
		case "/api/save-to-ipfs":
			if body["fileName"] != "cat.png" {
				t.Errorf("fileName = %s, want cat.png", body["fileName"])
			}
			json.NewEncoder(w).Encode(map[string]any{
				"ipfsHash": "QmCat",
				"ipfsUri":  "ipfs://QmCat",
				"hash":     "0xabc",
			})
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client := New(server.URL)

	data, err := client.GenerateImage(ctx, "a cat")
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if data != "aGVsbG8=" {
		t.Errorf("GenerateImage() = %s, want aGVsbG8=", data)
	}

	pinned, err := client.SaveToIPFS(ctx, data, "cat.png")
	if err != nil {
		t.Fatalf("SaveToIPFS() error = %v", err)
	}
	if pinned.IPFSURI != "ipfs://QmCat" {
		t.Errorf("SaveToIPFS().IPFSURI = %s, want ipfs://QmCat", pinned.IPFSURI)
	}
}

func TestClient_Collections(t *testing.T) {
	const addr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/collections":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"address": addr, "source": "deployed"}},
			})
		case "/api/collections/current":
			json.NewEncoder(w).Encode(map[string]any{"address": addr, "chainId": 4201})
		case "/api/collections/" + addr + "/verify":
			json.NewEncoder(w).Encode(map[string]any{
				"address":   addr,
				"verified":  true,
				"matchType": "full",
				"details":   map[string]string{"expectedBytecodeHash": "0x01"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client := New(server.URL)

	list, err := client.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections() error = %v", err)
	}
	if len(list) != 1 || list[0].Source != "deployed" {
		t.Errorf("ListCollections() = %+v", list)
	}

	current, err := client.CurrentCollection(ctx)
	if err != nil {
		t.Fatalf("CurrentCollection() error = %v", err)
	}
	if current.ChainID != 4201 {
		t.Errorf("CurrentCollection().ChainID = %d, want 4201", current.ChainID)
	}

	v, err := client.VerifyCollection(ctx, addr)
	if err != nil {
		t.Fatalf("VerifyCollection() error = %v", err)
	}
	if !v.Verified || v.MatchType != "full" || v.Details == nil {
		t.Errorf("VerifyCollection() = %+v", v)
	}
}

func TestClient_ErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "NOT_FOUND",
				"message": "Mint not found",
			},
		})
	}))
	defer server.Close()

	_, err := New(server.URL).GetMint(context.Background(), "nonexistent")
	if err == nil {
		t.Fatal("Expected error for 404 response")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.Code != "NOT_FOUND" {
		t.Errorf("Expected code NOT_FOUND, got %s", apiErr.Code)
	}
}

func TestClient_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	err := New(server.URL).Health(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.Code != "HTTP_502" {
		t.Errorf("Code = %s, want HTTP_502", apiErr.Code)
	}
}

func TestClient_Options(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "mintforge-cli/1.0" {
			t.Errorf("User-Agent = %s, want mintforge-cli/1.0", ua)
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	hc := &http.Client{}
	client := New(server.URL, WithHTTPClient(hc), WithUserAgent("mintforge-cli/1.0"))
	if client.httpClient != hc {
		t.Error("WithHTTPClient() did not set the client")
	}
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
}

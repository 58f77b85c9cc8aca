package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collections "github.com/pendergraft/mintforge/internal/collections/domain"
	"github.com/pendergraft/mintforge/internal/lsp4"
	mints "github.com/pendergraft/mintforge/internal/mints/domain"
)

const collectionAddr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type mockMints struct {
	mints map[string]*mints.Mint
}

func (m *mockMints) Get(ctx context.Context, id string) (*mints.Mint, error) {
	if mint, ok := m.mints[id]; ok {
		return mint, nil
	}
	return nil, mints.ErrNotFound
}

type mockCollections struct {
	collections map[string]*collections.Collection
}

func (m *mockCollections) Get(ctx context.Context, address string) (*collections.Collection, error) {
	if c, ok := m.collections[strings.ToLower(address)]; ok {
		return c, nil
	}
	return nil, collections.ErrNotFound
}

type mockContent struct {
	blobs map[string][]byte
}

func (m *mockContent) Fetch(ctx context.Context, cid string) ([]byte, error) {
	if b, ok := m.blobs[cid]; ok {
		return b, nil
	}
	return nil, errors.New("content not found")
}

type mockChain struct {
	data    map[lsp4.Bytes32][]byte
	code    []byte
	readErr error
}

func (m *mockChain) GetDataForTokenID(ctx context.Context, contract string, tokenID, key lsp4.Bytes32) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if key != lsp4.MetadataKey {
		return nil, nil
	}
	return m.data[tokenID], nil
}

func (m *mockChain) GetCode(ctx context.Context, address string) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.code, nil
}

type fixture struct {
	mints   *mockMints
	content *mockContent
	chain   *mockChain
	svc     Service
}

// newFixture records a completed mint of token 7 whose content and on-chain
// pointer are all consistent.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	image := []byte("\x89PNG fake image bytes")
	imageHash := lsp4.Keccak256(image)
	doc := lsp4.NewDocument("Gold Pass", "x", []lsp4.Attribute{{TraitType: "Tier", Value: "Gold"}},
		lsp4.NewImage("QmImage", imageHash))
	raw, err := doc.Marshal()
	require.NoError(t, err)

	vu := lsp4.NewJSONVerifiableURI(raw, lsp4.IPFSURI("QmMeta"))
	encoded, err := vu.Encode()
	require.NoError(t, err)

	f := &fixture{
		mints: &mockMints{mints: map[string]*mints.Mint{
			"mint-1": {
				ID:                "mint-1",
				CollectionAddress: collectionAddr,
				TokenID:           7,
				Status:            mints.StatusCompleted,
				ImageCID:          "QmImage",
				ImageHash:         imageHash.Hex(),
				MetadataCID:       "QmMeta",
				MetadataHash:      vu.Hash.Hex(),
				MintTxHash:        "0xmint",
				DataTxHash:        "0xdata",
			},
			"pending": {ID: "pending", Status: mints.StatusPending},
		}},
		content: &mockContent{blobs: map[string][]byte{"QmImage": image, "QmMeta": raw}},
		chain:   &mockChain{data: map[lsp4.Bytes32][]byte{lsp4.TokenID(7): encoded}},
	}
	cols := &mockCollections{collections: map[string]*collections.Collection{
		strings.ToLower(collectionAddr): {Address: collectionAddr},
	}}
	f.svc = NewService(f.mints, cols, f.content, f.chain, "0x6080604052a264697066735822", slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func failedChecks(res *MintResult) []string {
	var names []string
	for _, c := range res.Checks {
		if !c.Passed {
			names = append(names, c.Name)
		}
	}
	return names
}

func TestVerifyMint(t *testing.T) {
	ctx := context.Background()

	t.Run("consistent mint verifies", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.VerifyMint(ctx, "mint-1")
		require.NoError(t, err)
		assert.True(t, res.Verified)
		assert.Len(t, res.Checks, 5)
		assert.Empty(t, failedChecks(res))
		assert.Equal(t, uint64(7), res.TokenID)
	})

	t.Run("tampered image", func(t *testing.T) {
		f := newFixture(t)
		f.content.blobs["QmImage"] = []byte("something else")
		res, err := f.svc.VerifyMint(ctx, "mint-1")
		require.NoError(t, err)
		assert.False(t, res.Verified)
		assert.Equal(t, []string{CheckImageHash}, failedChecks(res))
	})

	t.Run("tampered metadata", func(t *testing.T) {
		f := newFixture(t)
		f.content.blobs["QmMeta"] = append(f.content.blobs["QmMeta"], ' ')
		res, err := f.svc.VerifyMint(ctx, "mint-1")
		require.NoError(t, err)
		assert.Equal(t, []string{CheckMetadataHash}, failedChecks(res))
	})

	t.Run("unreachable content fails checks", func(t *testing.T) {
		f := newFixture(t)
		delete(f.content.blobs, "QmMeta")
		res, err := f.svc.VerifyMint(ctx, "mint-1")
		require.NoError(t, err)
		assert.Equal(t, []string{CheckMetadataHash, CheckMetadataImage}, failedChecks(res))
		assert.Contains(t, res.Checks[1].Message, "QmMeta")
	})

	t.Run("metadata not written on-chain", func(t *testing.T) {
		f := newFixture(t)
		delete(f.chain.data, lsp4.TokenID(7))
		res, err := f.svc.VerifyMint(ctx, "mint-1")
		require.NoError(t, err)
		assert.Equal(t, []string{CheckOnChainHash, CheckOnChainURL}, failedChecks(res))
	})

	t.Run("on-chain pointer to other document", func(t *testing.T) {
		f := newFixture(t)
		other, err := lsp4.NewJSONVerifiableURI([]byte(`{}`), "ipfs://QmOther").Encode()
		require.NoError(t, err)
		f.chain.data[lsp4.TokenID(7)] = other
		res, err := f.svc.VerifyMint(ctx, "mint-1")
		require.NoError(t, err)
		assert.Equal(t, []string{CheckOnChainHash, CheckOnChainURL}, failedChecks(res))
		assert.Equal(t, "ipfs://QmOther", res.Checks[4].Actual)
	})

	t.Run("chain error", func(t *testing.T) {
		f := newFixture(t)
		f.chain.readErr = errors.New("connection refused")
		_, err := f.svc.VerifyMint(ctx, "mint-1")
		assert.ErrorIs(t, err, ErrChain)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.VerifyMint(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nothing pinned yet", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.VerifyMint(ctx, "pending")
		assert.ErrorIs(t, err, ErrNotVerifiable)
	})
}

func TestVerifyCollection(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		code      []byte
		verified  bool
		matchType string
	}{
		{"exact", []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0xa2, 0x64, 0x69, 0x70, 0x66, 0x73, 0x58, 0x22}, true, "full"},
		{"metadata differs", []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0xa2, 0x64, 0x69, 0x70, 0x66, 0x73, 0x99}, true, "partial"},
		{"different code", []byte{0x60, 0x00}, false, "none"},
		{"no code", nil, false, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.chain.code = tt.code
			res, err := f.svc.VerifyCollection(ctx, collectionAddr)
			require.NoError(t, err)
			assert.Equal(t, tt.verified, res.Verified)
			assert.Equal(t, tt.matchType, res.MatchType)
			assert.NotEmpty(t, res.Details.ExpectedBytecodeHash)
		})
	}

	t.Run("invalid address", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.VerifyCollection(ctx, "0x123")
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})

	t.Run("unknown collection", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.VerifyCollection(ctx, "0x0000000000000000000000000000000000000001")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

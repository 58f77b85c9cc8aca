package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := NewSQLiteStore(dbPath, logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return store
}

func testMint(collection string, tokenID uint64) *Mint {
	return &Mint{
		CollectionAddress: collection,
		ChainID:           4201,
		Recipient:         "0x00000000000000000000000000000000000000aa",
		TokenID:           tokenID,
		TokenIDHex:        fmt.Sprintf("0x%064x", tokenID),
		Name:              "Gold Pass",
		Attributes:        `[{"trait_type":"Tier","value":"Gold"}]`,
		MediaType:         "image/png",
		Status:            "pending",
	}
}

func TestSQLiteStoreCollections(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	c := &Collection{
		Key:     "4201:LeMint:LMNFT:0xabc",
		Address: "0x1111111111111111111111111111111111111111",
		ChainID: 4201,
		Name:    "LeMint",
		Symbol:  "LMNFT",
		Owner:   "0xabc",
		TxHash:  "0xdead",
		Source:  "deployed",
	}

	t.Run("SaveAndGetByKey", func(t *testing.T) {
		if err := store.SaveCollection(ctx, c); err != nil {
			t.Fatalf("SaveCollection() error = %v", err)
		}
		if c.ID == "" {
			t.Error("SaveCollection() did not assign an ID")
		}

		got, err := store.GetCollectionByKey(ctx, c.Key)
		if err != nil {
			t.Fatalf("GetCollectionByKey() error = %v", err)
		}
		if got.Address != c.Address || got.TxHash != c.TxHash || got.ChainID != c.ChainID {
			t.Errorf("GetCollectionByKey() = %+v, want %+v", got, c)
		}
	})

	t.Run("GetByAddressIgnoresCase", func(t *testing.T) {
		got, err := store.GetCollection(ctx, "0x1111111111111111111111111111111111111111")
		if err != nil {
			t.Fatalf("GetCollection() error = %v", err)
		}
		if got.Key != c.Key {
			t.Errorf("GetCollection().Key = %v, want %v", got.Key, c.Key)
		}
	})

	t.Run("DuplicateKeyConflicts", func(t *testing.T) {
		dup := *c
		dup.ID = ""
		dup.Address = "0x2222222222222222222222222222222222222222"
		err := store.SaveCollection(ctx, &dup)
		if !errors.Is(err, ErrConflict) {
			t.Errorf("SaveCollection() error = %v, want ErrConflict", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.GetCollectionByKey(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetCollectionByKey() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		list, err := store.ListCollections(ctx)
		if err != nil {
			t.Fatalf("ListCollections() error = %v", err)
		}
		if len(list) != 1 {
			t.Errorf("ListCollections() returned %d collections, want 1", len(list))
		}
	})
}

func TestSQLiteStoreMints(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	collection := "0x1111111111111111111111111111111111111111"

	m := testMint(collection, 1)

	t.Run("CreateAndGet", func(t *testing.T) {
		if err := store.CreateMint(ctx, m); err != nil {
			t.Fatalf("CreateMint() error = %v", err)
		}
		got, err := store.GetMint(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetMint() error = %v", err)
		}
		if got.TokenID != 1 || got.Status != "pending" || got.Attributes != m.Attributes {
			t.Errorf("GetMint() = %+v", got)
		}
		if got.CreatedAt.IsZero() {
			t.Error("GetMint().CreatedAt is zero")
		}
	})

	t.Run("DuplicateTokenConflicts", func(t *testing.T) {
		err := store.CreateMint(ctx, testMint(collection, 1))
		if !errors.Is(err, ErrConflict) {
			t.Errorf("CreateMint() error = %v, want ErrConflict", err)
		}
	})

	t.Run("SameTokenOtherCollection", func(t *testing.T) {
		if err := store.CreateMint(ctx, testMint("0x3333333333333333333333333333333333333333", 1)); err != nil {
			t.Errorf("CreateMint() error = %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		m.Status = "image_pinned"
		m.ImageCID = "bafyimage"
		m.ImageHash = "0x01"
		m.MintTxHash = "0xmint"
		if err := store.UpdateMint(ctx, m); err != nil {
			t.Fatalf("UpdateMint() error = %v", err)
		}
		got, err := store.GetMint(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetMint() error = %v", err)
		}
		if got.Status != "image_pinned" || got.ImageCID != "bafyimage" || got.MintTxHash != "0xmint" {
			t.Errorf("GetMint() after update = %+v", got)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		missing := testMint(collection, 99)
		missing.ID = "does-not-exist"
		if err := store.UpdateMint(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateMint() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("MaxTokenID", func(t *testing.T) {
		if err := store.CreateMint(ctx, testMint(collection, 7)); err != nil {
			t.Fatalf("CreateMint() error = %v", err)
		}
		max, err := store.MaxTokenID(ctx, collection)
		if err != nil {
			t.Fatalf("MaxTokenID() error = %v", err)
		}
		if max != 7 {
			t.Errorf("MaxTokenID() = %d, want 7", max)
		}

		max, err = store.MaxTokenID(ctx, "0x4444444444444444444444444444444444444444")
		if err != nil {
			t.Fatalf("MaxTokenID() error = %v", err)
		}
		if max != 0 {
			t.Errorf("MaxTokenID() on empty collection = %d, want 0", max)
		}
	})

	t.Run("TokenIDOutOfRange", func(t *testing.T) {
		err := store.CreateMint(ctx, testMint(collection, math.MaxInt64+1))
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("CreateMint() error = %v, want ErrOutOfRange", err)
		}
		if err := store.CreateMint(ctx, testMint(collection, math.MaxInt64)); err != nil {
			t.Fatalf("CreateMint() at MaxInt64 error = %v", err)
		}
		max, err := store.MaxTokenID(ctx, collection)
		if err != nil {
			t.Fatalf("MaxTokenID() error = %v", err)
		}
		if max != math.MaxInt64 {
			t.Errorf("MaxTokenID() = %d, want %d", max, uint64(math.MaxInt64))
		}
	})

	t.Run("GetByTokenAndDelete", func(t *testing.T) {
		got, err := store.GetMintByToken(ctx, collection, 7)
		if err != nil {
			t.Fatalf("GetMintByToken() error = %v", err)
		}
		if got.TokenID != 7 {
			t.Errorf("GetMintByToken() = %+v", got)
		}
		if _, err := store.GetMintByToken(ctx, collection, 8); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetMintByToken() missing error = %v, want ErrNotFound", err)
		}

		if err := store.DeleteMint(ctx, got.ID); err != nil {
			t.Fatalf("DeleteMint() error = %v", err)
		}
		if err := store.DeleteMint(ctx, got.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteMint() twice error = %v, want ErrNotFound", err)
		}
		if err := store.CreateMint(ctx, testMint(collection, 7)); err != nil {
			t.Errorf("CreateMint() after delete error = %v", err)
		}
	})
}

func TestSQLiteStoreListMints(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	collection := "0x1111111111111111111111111111111111111111"

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		m := testMint(collection, uint64(i))
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i == 5 {
			m.Status = "completed"
		}
		if i == 4 {
			m.Status = "minted"
			m.Error = "chain: reverted"
		}
		if err := store.CreateMint(ctx, m); err != nil {
			t.Fatalf("CreateMint(%d) error = %v", i, err)
		}
	}

	t.Run("PagesNewestFirst", func(t *testing.T) {
		first, err := store.ListMints(ctx, MintFilter{}, PaginationParams{Limit: 2})
		if err != nil {
			t.Fatalf("ListMints() error = %v", err)
		}
		if len(first.Data) != 2 || !first.HasMore {
			t.Fatalf("ListMints() = %d items, hasMore %v", len(first.Data), first.HasMore)
		}
		if first.Data[0].TokenID != 5 || first.Data[1].TokenID != 4 {
			t.Errorf("ListMints() order = %d,%d, want 5,4", first.Data[0].TokenID, first.Data[1].TokenID)
		}

		second, err := store.ListMints(ctx, MintFilter{}, PaginationParams{Limit: 2, Cursor: first.NextCursor})
		if err != nil {
			t.Fatalf("ListMints() error = %v", err)
		}
		if len(second.Data) != 2 || second.Data[0].TokenID != 3 {
			t.Errorf("ListMints() second page = %+v", second.Data)
		}
	})

	t.Run("FilterByStatus", func(t *testing.T) {
		got, err := store.ListMints(ctx, MintFilter{Status: "completed"}, PaginationParams{})
		if err != nil {
			t.Fatalf("ListMints() error = %v", err)
		}
		if len(got.Data) != 1 || got.Data[0].TokenID != 5 {
			t.Errorf("ListMints(completed) = %+v", got.Data)
		}
	})

	t.Run("FilterFailed", func(t *testing.T) {
		got, err := store.ListMints(ctx, MintFilter{Status: StatusFailed}, PaginationParams{})
		if err != nil {
			t.Fatalf("ListMints() error = %v", err)
		}
		if len(got.Data) != 1 || got.Data[0].TokenID != 4 {
			t.Errorf("ListMints(failed) = %+v", got.Data)
		}

		got, err = store.ListMints(ctx, MintFilter{Status: "minted"}, PaginationParams{})
		if err != nil {
			t.Fatalf("ListMints() error = %v", err)
		}
		if len(got.Data) != 0 {
			t.Errorf("ListMints(minted) included a failed mint: %+v", got.Data)
		}
	})

	t.Run("FilterByRecipientAndCollection", func(t *testing.T) {
		got, err := store.ListMints(ctx, MintFilter{
			Collection: collection,
			Recipient:  "0x00000000000000000000000000000000000000AA",
		}, PaginationParams{Limit: 10})
		if err != nil {
			t.Fatalf("ListMints() error = %v", err)
		}
		if len(got.Data) != 5 || got.HasMore {
			t.Errorf("ListMints() = %d items, hasMore %v", len(got.Data), got.HasMore)
		}
	})
}

func TestSQLiteStoreConcurrentTokenClaims(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, conflicts int
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.CreateMint(ctx, testMint("0x1111111111111111111111111111111111111111", 42))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("CreateMint() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || conflicts != 7 {
		t.Errorf("created = %d, conflicts = %d, want 1 and 7", created, conflicts)
	}
}

func TestMigrateError(t *testing.T) {
	store := newTestSQLiteStore(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	if err := store.Migrate(context.Background()); err == nil {
		t.Error("Migrate() error = nil, want failure from goose")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestSQLiteStore(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

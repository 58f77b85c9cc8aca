package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pendergraft/mintforge/internal/chains"
	"github.com/pendergraft/mintforge/internal/chains/evm"
	collections "github.com/pendergraft/mintforge/internal/collections/domain"
	"github.com/pendergraft/mintforge/internal/lsp4"
	"github.com/pendergraft/mintforge/internal/pinning"
	"github.com/pendergraft/mintforge/internal/storage"
)

const collectionAddr = "0x1111111111111111111111111111111111111111"

// mockStore implements storage.MintStore for testing
type mockStore struct {
	mu    sync.Mutex
	mints map[string]storage.Mint
	seq   int
}

func newMockStore() *mockStore {
	return &mockStore{mints: make(map[string]storage.Mint)}
}

func (s *mockStore) CreateMint(ctx context.Context, m *storage.Mint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.mints {
		if existing.CollectionAddress == m.CollectionAddress && existing.TokenID == m.TokenID {
			return storage.ErrConflict
		}
	}
	s.seq++
	if m.ID == "" {
		m.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", s.seq)
	}
	m.CreatedAt = time.Unix(int64(s.seq), 0)
	m.UpdatedAt = m.CreatedAt
	s.mints[m.ID] = *m
	return nil
}

func (s *mockStore) UpdateMint(ctx context.Context, m *storage.Mint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mints[m.ID]; !ok {
		return storage.ErrNotFound
	}
	m.UpdatedAt = time.Now()
	s.mints[m.ID] = *m
	return nil
}

func (s *mockStore) GetMint(ctx context.Context, id string) (*storage.Mint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mints[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &m, nil
}

func (s *mockStore) ListMints(ctx context.Context, filter storage.MintFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Mint], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Mint
	for _, m := range s.mints {
		if filter.Status == storage.StatusFailed && m.Error == "" {
			continue
		}
		if filter.Status != "" && filter.Status != storage.StatusFailed && (m.Status != filter.Status || m.Error != "") {
			continue
		}
		if filter.Recipient != "" && m.Recipient != filter.Recipient {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return &storage.PaginatedResult[storage.Mint]{Data: out}, nil
}

func (s *mockStore) GetMintByToken(ctx context.Context, collectionAddress string, tokenID uint64) (*storage.Mint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.mints {
		if m.CollectionAddress == collectionAddress && m.TokenID == tokenID {
			return &m, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *mockStore) DeleteMint(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mints[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.mints, id)
	return nil
}

func (s *mockStore) MaxTokenID(ctx context.Context, collectionAddress string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max uint64
	for _, m := range s.mints {
		if m.CollectionAddress == collectionAddress && m.TokenID > max {
			max = m.TokenID
		}
	}
	return max, nil
}

// mockCollections implements Collections for testing
type mockCollections struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *mockCollections) Resolve(ctx context.Context) (*collections.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &collections.Collection{Address: collectionAddr, ChainID: 4201}, nil
}

// mockPinner implements Pinner with an in-memory content store
type mockPinner struct {
	mu      sync.Mutex
	content map[string][]byte
	names   []string
	types   []string
	failOn  string // "file" or "json"
}

func newMockPinner() *mockPinner {
	return &mockPinner{content: make(map[string][]byte)}
}

func (p *mockPinner) pin(kind string, data []byte, fileName, contentType string) (*pinning.PinResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn == kind {
		return nil, &pinning.APIError{Status: 500, Body: "pinning down"}
	}
	cid := fmt.Sprintf("bafy%s%d", kind, len(p.content)+1)
	p.content[cid] = append([]byte(nil), data...)
	p.names = append(p.names, fileName)
	p.types = append(p.types, contentType)
	return &pinning.PinResult{CID: cid, URI: lsp4.IPFSURI(cid), GatewayURL: p.GatewayURL(cid), Size: int64(len(data))}, nil
}

func (p *mockPinner) PinFile(ctx context.Context, data []byte, fileName, contentType string) (*pinning.PinResult, error) {
	return p.pin("file", data, fileName, contentType)
}

func (p *mockPinner) PinJSON(ctx context.Context, doc []byte, fileName string) (*pinning.PinResult, error) {
	return p.pin("json", doc, fileName, "application/json")
}

func (p *mockPinner) GatewayURL(cid string) string {
	return "https://gateway.test/ipfs/" + cid
}

func (p *mockPinner) Fetch(cid string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content[cid]
}

func (p *mockPinner) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.content)
}

// mockChain records submissions and confirmations in order
type mockChain struct {
	mu         sync.Mutex
	calls      []string
	txMethod   map[string]string
	minted     map[uint64]string
	tokenData  map[uint64][]byte
	globalData []byte
	nonce      int

	failSubmit map[string]error // by method, consumed once
	failWait   map[string]error // by method, consumed once
}

func newMockChain() *mockChain {
	return &mockChain{
		txMethod:   make(map[string]string),
		minted:     make(map[uint64]string),
		tokenData:  make(map[uint64][]byte),
		failSubmit: make(map[string]error),
		failWait:   make(map[string]error),
	}
}

func (c *mockChain) submit(method string) (string, error) {
	c.calls = append(c.calls, method)
	if err, ok := c.failSubmit[method]; ok {
		delete(c.failSubmit, method)
		return "", err
	}
	c.nonce++
	hash := fmt.Sprintf("0x%064x", c.nonce)
	c.txMethod[hash] = method
	return hash, nil
}

func (c *mockChain) SubmitMint(ctx context.Context, contract, to string, tokenID lsp4.Bytes32, force bool, data []byte, gasLimit uint64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, err := c.submit("mint")
	if err != nil {
		return "", err
	}
	id, _ := lsp4.TokenNumber(tokenID)
	c.minted[id] = to
	return hash, nil
}

func (c *mockChain) SubmitSetDataForTokenID(ctx context.Context, contract string, tokenID, key lsp4.Bytes32, value []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, err := c.submit("setDataForTokenId")
	if err != nil {
		return "", err
	}
	if key != lsp4.MetadataKey {
		return "", errors.New("unexpected data key")
	}
	id, _ := lsp4.TokenNumber(tokenID)
	c.tokenData[id] = value
	return hash, nil
}

func (c *mockChain) SubmitSetData(ctx context.Context, contract string, key lsp4.Bytes32, value []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, err := c.submit("setData")
	if err != nil {
		return "", err
	}
	c.globalData = value
	return hash, nil
}

func (c *mockChain) WaitForReceipt(ctx context.Context, txHash string) (*chains.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	method := c.txMethod[txHash]
	c.calls = append(c.calls, "wait:"+method)
	if err, ok := c.failWait[method]; ok {
		delete(c.failWait, method)
		if errors.Is(err, evm.ErrReverted) {
			return &chains.Receipt{TxHash: txHash}, err
		}
		return nil, err
	}
	return &chains.Receipt{TxHash: txHash, Success: true}, nil
}

func (c *mockChain) callLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *mockChain) count(method string) int {
	n := 0
	for _, call := range c.callLog() {
		if call == method {
			n++
		}
	}
	return n
}

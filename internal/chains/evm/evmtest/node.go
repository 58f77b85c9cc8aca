// Package evmtest provides an in-process JSON-RPC node that understands the
// collection contract calls, for tests of code built on the evm gateway.
package evmtest

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"

	"github.com/pendergraft/mintforge/internal/chains/evm"
	"github.com/pendergraft/mintforge/internal/lsp4"
)

// DefaultChainID is the chain id a new Node reports.
const DefaultChainID = 4201

// Call is a state-changing transaction the node accepted.
type Call struct {
	Method    string // deploy, mint, setDataForTokenId, setData
	From      string
	Contract  string
	TxHash    string
	Recipient string
	TokenID   lsp4.Bytes32
	Key       lsp4.Bytes32
	Value     []byte
	Force     bool
	Reverted  bool
}

type receipt struct {
	TransactionHash string  `json:"transactionHash"`
	BlockHash       string  `json:"blockHash"`
	BlockNumber     string  `json:"blockNumber"`
	From            string  `json:"from"`
	To              *string `json:"to"`
	ContractAddress *string `json:"contractAddress"`
	GasUsed         string  `json:"gasUsed"`
	Status          string  `json:"status"`
}

// Node is a fake Ethereum JSON-RPC endpoint backed by in-memory state.
type Node struct {
	ChainID int64

	// DeployedCode is the runtime code recorded for contracts created through the node.
	DeployedCode []byte

	server    *httptest.Server
	functions map[[4]byte]*abi.Entry

	mu           sync.Mutex
	receiptDelay int
	block        uint64
	nonces       map[string]uint64
	calls        []Call
	receipts     map[string]*receipt
	polls        map[string]int
	code         map[string][]byte
	minted       map[string]bool
	tokenData    map[string][]byte
	globalData   map[string][]byte
	revertNext   map[string]bool
	rpcErrors    map[string]string
}

// NewNode starts a node that is closed when the test ends.
func NewNode(t testing.TB) *Node {
	t.Helper()

	var a abi.ABI
	if err := json.Unmarshal([]byte(evm.CollectionABI), &a); err != nil {
		t.Fatalf("parsing collection ABI: %v", err)
	}
	fns := make(map[[4]byte]*abi.Entry)
	for _, e := range a.Functions() {
		var sel [4]byte
		copy(sel[:], e.FunctionSelectorBytes())
		fns[sel] = e
	}

	n := &Node{
		ChainID:      DefaultChainID,
		DeployedCode: []byte{0x60, 0x80, 0x60, 0x40, 0x52},
		functions:    fns,
		nonces:       make(map[string]uint64),
		receipts:     make(map[string]*receipt),
		polls:        make(map[string]int),
		code:         make(map[string][]byte),
		minted:       make(map[string]bool),
		tokenData:    make(map[string][]byte),
		globalData:   make(map[string][]byte),
		revertNext:   make(map[string]bool),
		rpcErrors:    make(map[string]string),
	}
	n.server = httptest.NewServer(n)
	t.Cleanup(n.server.Close)
	return n
}

// NewKey returns a random hex private key and its address.
func NewKey(t testing.TB) (privateKey, address string) {
	t.Helper()
	kp, err := secp256k1.GenerateSecp256k1KeyPair()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return hex.EncodeToString(kp.PrivateKeyBytes()), kp.Address.String()
}

// URL is the node's JSON-RPC endpoint.
func (n *Node) URL() string {
	return n.server.URL
}

// SetCode installs runtime code at address, as if a contract existed there.
func (n *Node) SetCode(address string, code []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.code[strings.ToLower(address)] = code
}

// SetReceiptDelay makes every receipt lookup return null polls times first.
func (n *Node) SetReceiptDelay(polls int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receiptDelay = polls
}

// RevertNext makes the next transaction calling method be mined with status 0.
func (n *Node) RevertNext(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.revertNext[method] = true
}

// FailRPC makes every call of an RPC method return a JSON-RPC error.
// An empty message clears the failure.
func (n *Node) FailRPC(method, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if message == "" {
		delete(n.rpcErrors, method)
		return
	}
	n.rpcErrors[method] = message
}

// Calls returns the accepted transactions in submission order.
func (n *Node) Calls() []Call {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Call(nil), n.calls...)
}

// CallsTo returns the accepted transactions for one method.
func (n *Node) CallsTo(method string) []Call {
	var out []Call
	for _, c := range n.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// TokenData returns the value stored by setDataForTokenId.
func (n *Node) TokenData(contract string, tokenID, key lsp4.Bytes32) []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokenData[tokenDataKey(contract, tokenID, key)]
}

// SetTokenData stores a token-scoped value directly.
func (n *Node) SetTokenData(contract string, tokenID, key lsp4.Bytes32, value []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokenData[tokenDataKey(contract, tokenID, key)] = value
}

// GlobalData returns the value stored by setData.
func (n *Node) GlobalData(contract string, key lsp4.Bytes32) []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.globalData[strings.ToLower(contract)+"|"+key.Hex()]
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := n.handle(r.Context(), req.Method, req.Params)
	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if err != nil {
		resp["error"] = rpcError{Code: -32000, Message: err.Error()}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *Node) handle(ctx context.Context, method string, params []json.RawMessage) (interface{}, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if msg, ok := n.rpcErrors[method]; ok {
		return nil, fmt.Errorf("%s", msg)
	}

	str := func(i int) string {
		var s string
		if i < len(params) {
			_ = json.Unmarshal(params[i], &s)
		}
		return s
	}

	switch method {
	case "eth_chainId":
		return hexUint(uint64(n.ChainID)), nil
	case "eth_getTransactionCount":
		return hexUint(n.nonces[strings.ToLower(str(0))]), nil
	case "eth_gasPrice":
		return "0x3b9aca00", nil
	case "eth_estimateGas":
		return "0x30d40", nil
	case "eth_getCode":
		return "0x" + hex.EncodeToString(n.code[strings.ToLower(str(0))]), nil
	case "eth_sendRawTransaction":
		return n.sendRawTransaction(ctx, str(0))
	case "eth_getTransactionReceipt":
		hash := strings.ToLower(str(0))
		rec, ok := n.receipts[hash]
		if !ok {
			return nil, nil
		}
		n.polls[hash]++
		if n.polls[hash] <= n.receiptDelay {
			return nil, nil
		}
		return rec, nil
	case "eth_call":
		if len(params) == 0 {
			return nil, fmt.Errorf("missing call object")
		}
		return n.call(params[0])
	default:
		return nil, fmt.Errorf("method %s not supported", method)
	}
}

func (n *Node) sendRawTransaction(ctx context.Context, rawHex string) (interface{}, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(rawHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid raw transaction: %v", err)
	}
	from, tx, err := ethsigner.RecoverRawTransaction(ctx, ethtypes.HexBytes0xPrefix(raw), n.ChainID)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %v", err)
	}
	sender := from.String()
	nonce := tx.Nonce.BigInt().Uint64()
	if nonce != n.nonces[sender] {
		return nil, fmt.Errorf("nonce mismatch: got %d, want %d", nonce, n.nonces[sender])
	}
	n.nonces[sender]++

	txHash := lsp4.Keccak256(raw).Hex()
	n.block++
	rec := &receipt{
		TransactionHash: txHash,
		BlockHash:       lsp4.Keccak256([]byte(txHash)).Hex(),
		BlockNumber:     hexUint(n.block),
		From:            sender,
		GasUsed:         "0x5208",
		Status:          "0x1",
	}
	call := Call{From: sender, TxHash: txHash}

	if tx.To == nil {
		addrHash := lsp4.Keccak256([]byte(sender), new(big.Int).SetUint64(nonce).Bytes())
		addr := "0x" + hex.EncodeToString(addrHash[12:])
		n.code[addr] = n.DeployedCode
		rec.ContractAddress = &addr
		call.Method = "deploy"
		call.Contract = addr
	} else {
		to := tx.To.String()
		rec.To = &to
		call.Contract = to
		if err := n.applyCall(&call, tx.Data); err != nil {
			return nil, err
		}
	}

	if n.revertNext[call.Method] {
		delete(n.revertNext, call.Method)
		call.Reverted = true
	}
	if call.Reverted {
		rec.Status = "0x0"
	} else {
		n.commit(call)
	}
	n.calls = append(n.calls, call)
	n.receipts[txHash] = rec
	return txHash, nil
}

// applyCall decodes the call data into c and decides whether the call reverts.
func (n *Node) applyCall(c *Call, data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("call data too short")
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	entry, ok := n.functions[sel]
	if !ok {
		return fmt.Errorf("unknown function selector 0x%x", sel)
	}
	cv, err := entry.DecodeCallData(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %v", entry.Name, err)
	}
	c.Method = entry.Name
	args := cv.Children

	switch entry.Name {
	case "mint":
		c.Recipient = addressValue(args[0].Value)
		copy(c.TokenID[:], bytesValue(args[1].Value))
		c.Force, _ = args[2].Value.(bool)
		c.Value = bytesValue(args[3].Value)
		c.Reverted = n.minted[tokenKey(c.Contract, c.TokenID)]
	case "setDataForTokenId":
		copy(c.TokenID[:], bytesValue(args[0].Value))
		copy(c.Key[:], bytesValue(args[1].Value))
		c.Value = bytesValue(args[2].Value)
		c.Reverted = !n.minted[tokenKey(c.Contract, c.TokenID)]
	case "setData":
		copy(c.Key[:], bytesValue(args[0].Value))
		c.Value = bytesValue(args[1].Value)
	default:
		return fmt.Errorf("%s is not a transaction", entry.Name)
	}
	if len(n.code[strings.ToLower(c.Contract)]) == 0 {
		c.Reverted = true
	}
	return nil
}

func (n *Node) commit(c Call) {
	switch c.Method {
	case "mint":
		n.minted[tokenKey(c.Contract, c.TokenID)] = true
	case "setDataForTokenId":
		n.tokenData[tokenDataKey(c.Contract, c.TokenID, c.Key)] = c.Value
	case "setData":
		n.globalData[strings.ToLower(c.Contract)+"|"+c.Key.Hex()] = c.Value
	}
}

func (n *Node) call(param json.RawMessage) (interface{}, error) {
	var tx struct {
		To   string `json:"to"`
		Data string `json:"data"`
	}
	if err := json.Unmarshal(param, &tx); err != nil {
		return nil, fmt.Errorf("invalid call object: %v", err)
	}
	data, err := hex.DecodeString(strings.TrimPrefix(tx.Data, "0x"))
	if err != nil || len(data) < 4 {
		return nil, fmt.Errorf("invalid call data")
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	entry, ok := n.functions[sel]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	cv, err := entry.DecodeCallData(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %v", entry.Name, err)
	}

	var value []byte
	switch entry.Name {
	case "getDataForTokenId":
		var tokenID, key lsp4.Bytes32
		copy(tokenID[:], bytesValue(cv.Children[0].Value))
		copy(key[:], bytesValue(cv.Children[1].Value))
		value = n.tokenData[tokenDataKey(tx.To, tokenID, key)]
	case "getData":
		var key lsp4.Bytes32
		copy(key[:], bytesValue(cv.Children[0].Value))
		value = n.globalData[strings.ToLower(tx.To)+"|"+key.Hex()]
	default:
		return nil, fmt.Errorf("execution reverted")
	}

	out, err := entry.Outputs.EncodeABIDataValues([]interface{}{"0x" + hex.EncodeToString(value)})
	if err != nil {
		return nil, err
	}
	return "0x" + hex.EncodeToString(out), nil
}

func tokenKey(contract string, tokenID lsp4.Bytes32) string {
	return strings.ToLower(contract) + "|" + tokenID.Hex()
}

func tokenDataKey(contract string, tokenID, key lsp4.Bytes32) string {
	return tokenKey(contract, tokenID) + "|" + key.Hex()
}

func hexUint(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func bytesValue(v interface{}) []byte {
	if b, ok := v.([]byte); ok {
		return b
	}
	return nil
}

func addressValue(v interface{}) string {
	switch a := v.(type) {
	case *big.Int:
		return fmt.Sprintf("0x%040x", a)
	case []byte:
		return "0x" + hex.EncodeToString(a)
	default:
		return strings.ToLower(fmt.Sprint(a))
	}
}

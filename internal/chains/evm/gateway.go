package evm

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-common/pkg/retry"
	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"golang.org/x/crypto/sha3"

	"github.com/pendergraft/mintforge/internal/chains"
	"github.com/pendergraft/mintforge/internal/lsp4"
	"github.com/pendergraft/mintforge/internal/observability/metrics"
)

var (
	ErrRPC             = errors.New("rpc call failed")
	ErrReverted        = errors.New("transaction reverted")
	ErrReceiptTimeout  = errors.New("timed out waiting for receipt")
	ErrNoDeployCode    = errors.New("no collection bytecode configured")
	ErrInvalidKey      = errors.New("invalid admin private key")
	errReceiptNotFound = errors.New("receipt not yet available")
)

// Config holds the gateway settings.
type Config struct {
	RPCURL            string
	PrivateKey        string
	ChainID           int64 // 0 asks the node
	GasEstimateFactor float64
	RPCTimeout        time.Duration
	ReceiptTimeout    time.Duration
	ReceiptPoll       time.Duration
	ReceiptPollMax    time.Duration

	// Extra constructor arguments for LSP8 contracts taking
	// (name, symbol, owner, lsp4TokenType, lsp8TokenIdFormat).
	TokenType     int64
	TokenIDFormat int64
}

// Gateway signs and submits collection contract transactions with a single
// admin key.
type Gateway struct {
	rpc               rpcbackend.RPC
	key               *secp256k1.KeyPair
	chainID           int64
	abi               *collectionABI
	artifact          *chains.Artifact
	gasEstimateFactor float64
	receiptTimeout    time.Duration
	poll              *retry.Retry
	tokenType         int64
	tokenIDFormat     int64
	logger            *slog.Logger

	// Serializes nonce lookup through submission.
	sendMu sync.Mutex
}

// LoadKey parses a hex-encoded secp256k1 private key.
func LoadKey(privateKey string) (*secp256k1.KeyPair, error) {
	b, err := DecodeHex(strings.TrimSpace(privateKey))
	if err != nil || len(b) != 32 {
		return nil, ErrInvalidKey
	}
	kp, err := secp256k1.NewSecp256k1KeyPair(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return kp, nil
}

// New connects to the node and prepares the signer. artifact may be nil when
// the collection is only ever attached by address.
func New(ctx context.Context, cfg Config, artifact *chains.Artifact, logger *slog.Logger) (*Gateway, error) {
	key, err := LoadKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	rest := resty.New().SetBaseURL(cfg.RPCURL)
	if cfg.RPCTimeout > 0 {
		rest.SetTimeout(cfg.RPCTimeout)
	}

	var rawABI json.RawMessage
	if artifact != nil {
		rawABI = artifact.ABI
	}
	parsed, err := parseCollectionABI(rawABI)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		rpc:               rpcbackend.NewRPCClient(rest),
		key:               key,
		chainID:           cfg.ChainID,
		abi:               parsed,
		artifact:          artifact,
		gasEstimateFactor: cfg.GasEstimateFactor,
		receiptTimeout:    cfg.ReceiptTimeout,
		tokenType:         cfg.TokenType,
		tokenIDFormat:     cfg.TokenIDFormat,
		logger:            logger,
		poll: &retry.Retry{
			InitialDelay: cfg.ReceiptPoll,
			MaximumDelay: cfg.ReceiptPollMax,
			Factor:       1.5,
		},
	}
	if g.gasEstimateFactor < 1.0 {
		g.gasEstimateFactor = 1.0
	}
	if g.receiptTimeout <= 0 {
		g.receiptTimeout = 2 * time.Minute
	}
	if g.poll.InitialDelay <= 0 {
		g.poll.InitialDelay = time.Second
	}
	if g.poll.MaximumDelay < g.poll.InitialDelay {
		g.poll.MaximumDelay = g.poll.InitialDelay
	}

	if g.chainID == 0 {
		var chainID ethtypes.HexUint64
		if err := g.call(ctx, &chainID, "eth_chainId"); err != nil {
			return nil, err
		}
		g.chainID = int64(chainID.Uint64())
	}
	return g, nil
}

// Address returns the admin account address.
func (g *Gateway) Address() string {
	return g.key.Address.String()
}

// ChainID returns the EIP-155 chain id transactions are signed for.
func (g *Gateway) ChainID() int64 {
	return g.chainID
}

// Artifact returns the collection artifact, or nil.
func (g *Gateway) Artifact() *chains.Artifact {
	return g.artifact
}

// Deploy creates a new collection contract owned by owner and waits for it to
// be mined.
func (g *Gateway) Deploy(ctx context.Context, name, symbol, owner string) (*chains.Receipt, error) {
	if g.artifact == nil || g.artifact.Bytecode == "" {
		return nil, ErrNoDeployCode
	}
	code, err := DecodeHex(g.artifact.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("decoding collection bytecode: %w", err)
	}

	data := code
	if ctor := g.abi.constructor; ctor != nil && len(ctor.Inputs) > 0 {
		args := []interface{}{name, symbol, owner}
		if len(ctor.Inputs) == 5 {
			args = append(args, big.NewInt(g.tokenType), big.NewInt(g.tokenIDFormat))
		}
		if len(ctor.Inputs) != len(args) {
			return nil, fmt.Errorf("unsupported collection constructor with %d inputs", len(ctor.Inputs))
		}
		encoded, err := ctor.Inputs.EncodeABIDataValues(args)
		if err != nil {
			return nil, fmt.Errorf("encoding constructor: %w", err)
		}
		data = append(append([]byte{}, code...), encoded...)
	}

	txHash, err := g.send(ctx, "deploy", nil, data, 0)
	if err != nil {
		return nil, err
	}
	receipt, err := g.WaitForReceipt(ctx, txHash)
	if err != nil {
		return receipt, err
	}
	if receipt.ContractAddress == "" {
		return receipt, fmt.Errorf("deployment %s: receipt has no contract address", txHash)
	}
	return receipt, nil
}

// SubmitMint sends mint(to, tokenId, force, data). A zero gasLimit estimates.
func (g *Gateway) SubmitMint(ctx context.Context, contract, to string, tokenID lsp4.Bytes32, force bool, data []byte, gasLimit uint64) (string, error) {
	callData, err := g.abi.functions[fnMint].EncodeCallDataValuesCtx(ctx, []interface{}{
		to, tokenID.Hex(), force, hexBytes(data),
	})
	if err != nil {
		return "", fmt.Errorf("encoding mint: %w", err)
	}
	return g.sendTo(ctx, fnMint, contract, callData, gasLimit)
}

// SubmitSetDataForTokenID writes a token-scoped ERC725Y value.
func (g *Gateway) SubmitSetDataForTokenID(ctx context.Context, contract string, tokenID, key lsp4.Bytes32, value []byte) (string, error) {
	callData, err := g.abi.functions[fnSetDataForTokenID].EncodeCallDataValuesCtx(ctx, []interface{}{
		tokenID.Hex(), key.Hex(), hexBytes(value),
	})
	if err != nil {
		return "", fmt.Errorf("encoding setDataForTokenId: %w", err)
	}
	return g.sendTo(ctx, fnSetDataForTokenID, contract, callData, 0)
}

// SubmitSetData writes a collection-wide ERC725Y value.
func (g *Gateway) SubmitSetData(ctx context.Context, contract string, key lsp4.Bytes32, value []byte) (string, error) {
	callData, err := g.abi.functions[fnSetData].EncodeCallDataValuesCtx(ctx, []interface{}{
		key.Hex(), hexBytes(value),
	})
	if err != nil {
		return "", fmt.Errorf("encoding setData: %w", err)
	}
	return g.sendTo(ctx, fnSetData, contract, callData, 0)
}

// GetDataForTokenID reads a token-scoped ERC725Y value.
func (g *Gateway) GetDataForTokenID(ctx context.Context, contract string, tokenID, key lsp4.Bytes32) ([]byte, error) {
	return g.readBytes(ctx, fnGetDataForTokenID, contract, tokenID.Hex(), key.Hex())
}

// GetData reads a collection-wide ERC725Y value.
func (g *Gateway) GetData(ctx context.Context, contract string, key lsp4.Bytes32) ([]byte, error) {
	return g.readBytes(ctx, fnGetData, contract, key.Hex())
}

// GetCode returns the runtime bytecode at address.
func (g *Gateway) GetCode(ctx context.Context, address string) ([]byte, error) {
	addr, err := ethtypes.NewAddress(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	var code ethtypes.HexBytes0xPrefix
	if err := g.call(ctx, &code, "eth_getCode", addr, "latest"); err != nil {
		return nil, err
	}
	return code, nil
}

func (g *Gateway) readBytes(ctx context.Context, fn, contract string, args ...interface{}) ([]byte, error) {
	entry := g.abi.functions[fn]
	to, err := ethtypes.NewAddress(contract)
	if err != nil {
		return nil, fmt.Errorf("invalid contract address %q: %w", contract, err)
	}
	callData, err := entry.EncodeCallDataValuesCtx(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", fn, err)
	}

	var res ethtypes.HexBytes0xPrefix
	tx := &ethsigner.Transaction{To: to, Data: callData}
	if err := g.call(ctx, &res, "eth_call", tx, "latest"); err != nil {
		return nil, err
	}

	cv, err := entry.Outputs.DecodeABIDataCtx(ctx, res, 0)
	if err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", fn, err)
	}
	if len(cv.Children) != 1 {
		return nil, fmt.Errorf("decoding %s result: expected 1 value, got %d", fn, len(cv.Children))
	}
	b, ok := cv.Children[0].Value.([]byte)
	if !ok {
		return nil, fmt.Errorf("decoding %s result: unexpected type %T", fn, cv.Children[0].Value)
	}
	return b, nil
}

func (g *Gateway) sendTo(ctx context.Context, method, contract string, data []byte, gasLimit uint64) (string, error) {
	to, err := ethtypes.NewAddress(contract)
	if err != nil {
		return "", fmt.Errorf("invalid contract address %q: %w", contract, err)
	}
	return g.send(ctx, method, to, data, gasLimit)
}

// send builds, signs and submits a legacy EIP-155 transaction.
func (g *Gateway) send(ctx context.Context, method string, to *ethtypes.Address0xHex, data []byte, gasLimit uint64) (txHash string, err error) {
	defer func() { metrics.RecordChainTx(method, err) }()

	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	from := g.Address()
	tx := &ethsigner.Transaction{
		From: json.RawMessage(fmt.Sprintf(`"%s"`, from)),
		To:   to,
		Data: ethtypes.HexBytes0xPrefix(data),
	}

	if err := g.call(ctx, &tx.Nonce, "eth_getTransactionCount", from, "pending"); err != nil {
		return "", err
	}
	if err := g.call(ctx, &tx.GasPrice, "eth_gasPrice"); err != nil {
		return "", err
	}

	if gasLimit > 0 {
		tx.GasLimit = ethtypes.NewHexInteger(new(big.Int).SetUint64(gasLimit))
	} else {
		var gasEstimate ethtypes.HexInteger
		if err := g.call(ctx, &gasEstimate, "eth_estimateGas", tx); err != nil {
			return "", err
		}
		gasLimitFactored := new(big.Float).SetInt(gasEstimate.BigInt())
		gasLimitFactored = gasLimitFactored.Mul(gasLimitFactored, big.NewFloat(g.gasEstimateFactor))
		limit, _ := gasLimitFactored.Int(nil)
		tx.GasLimit = ethtypes.NewHexInteger(limit)
	}

	sigPayload := tx.SignaturePayloadLegacyEIP155(g.chainID)
	hash := sha3.NewLegacyKeccak256()
	_, _ = hash.Write(sigPayload.Bytes())
	sig, err := g.key.SignDirect(hash.Sum(nil))
	if err != nil {
		return "", fmt.Errorf("signing %s: %w", method, err)
	}
	rawTX, err := tx.FinalizeLegacyEIP155WithSignature(sigPayload, sig, g.chainID)
	if err != nil {
		return "", fmt.Errorf("signing %s: %w", method, err)
	}

	var hashOut ethtypes.HexBytes0xPrefix
	if err := g.call(ctx, &hashOut, "eth_sendRawTransaction", ethtypes.HexBytes0xPrefix(rawTX)); err != nil {
		if addr, decoded, rerr := ethsigner.RecoverRawTransaction(ctx, rawTX, g.chainID); rerr == nil {
			g.logger.Error("transaction rejected", "method", method, "from", addr.String(), "nonce", decoded.Nonce.String(), "error", err)
		}
		return "", err
	}

	g.logger.Debug("transaction submitted", "method", method, "tx_hash", hashOut.String(), "nonce", tx.Nonce.String())
	return hashOut.String(), nil
}

func (g *Gateway) call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if rpcErr := g.rpc.CallRPC(ctx, result, method, params...); rpcErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrRPC, method, rpcErr.Error())
	}
	return nil
}

func hexBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

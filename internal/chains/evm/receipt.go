package evm

import (
	"context"
	"fmt"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"github.com/pendergraft/mintforge/internal/chains"
)

type txReceiptJSONRPC struct {
	BlockHash         ethtypes.HexBytes0xPrefix `json:"blockHash"`
	BlockNumber       *ethtypes.HexInteger      `json:"blockNumber"`
	ContractAddress   *ethtypes.Address0xHex    `json:"contractAddress"`
	CumulativeGasUsed *ethtypes.HexInteger      `json:"cumulativeGasUsed"`
	From              *ethtypes.Address0xHex    `json:"from"`
	GasUsed           *ethtypes.HexInteger      `json:"gasUsed"`
	Status            *ethtypes.HexInteger      `json:"status"`
	To                *ethtypes.Address0xHex    `json:"to"`
	TransactionHash   ethtypes.HexBytes0xPrefix `json:"transactionHash"`
}

func (r *txReceiptJSONRPC) toReceipt() *chains.Receipt {
	out := &chains.Receipt{
		TxHash:    r.TransactionHash.String(),
		BlockHash: r.BlockHash.String(),
		Success:   r.Status != nil && r.Status.BigInt().Sign() > 0,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.BigInt().Uint64()
	}
	if r.GasUsed != nil {
		out.GasUsed = r.GasUsed.BigInt().Uint64()
	}
	if r.From != nil {
		out.From = r.From.String()
	}
	if r.To != nil {
		out.To = r.To.String()
	}
	if r.ContractAddress != nil {
		out.ContractAddress = r.ContractAddress.String()
	}
	return out
}

// WaitForReceipt polls for the receipt of txHash until it is mined or the
// receipt timeout elapses. A mined but reverted transaction returns its receipt
// together with ErrReverted.
func (g *Gateway) WaitForReceipt(ctx context.Context, txHash string) (*chains.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, g.receiptTimeout)
	defer cancel()

	var mined *txReceiptJSONRPC
	err := g.poll.Do(ctx, "receipt "+txHash, func(attempt int) (bool, error) {
		var r *txReceiptJSONRPC
		if err := g.call(ctx, &r, "eth_getTransactionReceipt", txHash); err != nil {
			g.logger.Warn("receipt lookup failed", "tx_hash", txHash, "attempt", attempt, "error", err)
			return true, err
		}
		if r == nil || r.BlockNumber == nil {
			return true, errReceiptNotFound
		}
		mined = r
		return false, nil
	})
	if mined == nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrReceiptTimeout, txHash)
		}
		if err == nil {
			err = errReceiptNotFound
		}
		return nil, err
	}

	receipt := mined.toReceipt()
	if !receipt.Success {
		return receipt, fmt.Errorf("%w: %s", ErrReverted, txHash)
	}
	return receipt, nil
}

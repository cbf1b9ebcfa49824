// Package stub provides a configurable in-memory RPCClient for tests.
package stub

import (
	"context"
	"sync/atomic"

	"solana-dca-engine/internal/solana"
)

// RPCClient implements solana.RPCClient with canned or functional
// responses. Zero-value fields fall back to sane defaults.
type RPCClient struct {
	Blockhash   *solana.BlockhashResult
	BlockHeight uint64
	Fee         uint64

	// SendFunc overrides SendTransaction when set.
	SendFunc func(ctx context.Context, signedTxBase64 string) (string, error)
	// StatusFunc overrides GetSignatureStatus when set.
	StatusFunc func(ctx context.Context, signature string) (*solana.SignatureStatus, error)
	// TransactionFunc overrides GetTransaction when set; the default
	// reports the transaction as not indexed.
	TransactionFunc func(ctx context.Context, signature string) (*solana.TransactionDetail, error)

	SendCalls        atomic.Int64
	StatusCalls      atomic.Int64
	TransactionCalls atomic.Int64
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.BlockhashResult, error) {
	if c.Blockhash != nil {
		bh := *c.Blockhash
		return &bh, nil
	}
	return &solana.BlockhashResult{
		Blockhash:            "GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W",
		LastValidBlockHeight: 1000,
		Slot:                 1,
	}, nil
}

func (c *RPCClient) GetBlockHeight(_ context.Context) (uint64, error) {
	return c.BlockHeight, nil
}

func (c *RPCClient) SendTransaction(ctx context.Context, signedTxBase64 string) (string, error) {
	c.SendCalls.Add(1)
	if c.SendFunc != nil {
		return c.SendFunc(ctx, signedTxBase64)
	}
	return "stubsignature", nil
}

func (c *RPCClient) GetSignatureStatus(ctx context.Context, signature string) (*solana.SignatureStatus, error) {
	c.StatusCalls.Add(1)
	if c.StatusFunc != nil {
		return c.StatusFunc(ctx, signature)
	}
	return &solana.SignatureStatus{ConfirmationStatus: "confirmed"}, nil
}

func (c *RPCClient) GetFeeForMessage(_ context.Context, _ string) (uint64, error) {
	return c.Fee, nil
}

func (c *RPCClient) GetTransaction(ctx context.Context, signature string) (*solana.TransactionDetail, error) {
	c.TransactionCalls.Add(1)
	if c.TransactionFunc != nil {
		return c.TransactionFunc(ctx, signature)
	}
	return nil, nil
}

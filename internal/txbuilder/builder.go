// Package txbuilder assembles unsigned transactions anchored at the
// network's current freshness reference. Building is a pure computation
// over network state; nothing is persisted here.
package txbuilder

import (
	"context"
	"errors"
	"fmt"
	"log"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/router"
	"solana-dca-engine/internal/solana"
)

// Builder constructs unsigned transactions for client-side signing.
type Builder struct {
	rpc     solana.RPCClient
	routing router.RoutingClient
	logger  *log.Logger
}

// Options configures Builder.
type Options struct {
	RPC     solana.RPCClient
	Routing router.RoutingClient
	Logger  *log.Logger
}

// NewBuilder creates a transaction builder.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.RPC == nil {
		return nil, errors.New("rpc client is required")
	}
	if opts.Routing == nil {
		return nil, errors.New("routing client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[txbuilder] ", log.LstdFlags)
	}
	return &Builder{rpc: opts.RPC, routing: opts.Routing, logger: logger}, nil
}

// Anchor fetches the current freshness anchor.
func (b *Builder) Anchor(ctx context.Context) (*domain.Anchor, error) {
	res, err := b.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch latest blockhash: %w", err)
	}
	return &domain.Anchor{
		Blockhash:            res.Blockhash,
		LastValidBlockHeight: res.LastValidBlockHeight,
	}, nil
}

// BuildSwap asks the routing service to assemble the swap transaction
// for quote, anchored at a fresh blockhash, and returns it unsigned
// with a best-effort fee estimate.
func (b *Builder) BuildSwap(ctx context.Context, quote *domain.Quote, signerPubkey string) (*domain.UnsignedTransaction, error) {
	if quote == nil {
		return nil, errors.New("quote is required")
	}
	if signerPubkey == "" {
		return nil, errors.New("signer pubkey is required")
	}

	anchor, err := b.Anchor(ctx)
	if err != nil {
		return nil, err
	}

	txBase64, err := b.routing.BuildSwapTransaction(ctx, quote, signerPubkey, anchor.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("build swap transaction: %w", err)
	}

	return &domain.UnsignedTransaction{
		Base64:      txBase64,
		Anchor:      *anchor,
		FeeLamports: b.estimateFee(ctx, txBase64),
	}, nil
}

// BuildTransfer assembles an unsigned lamport transfer anchored at a
// fresh blockhash.
func (b *Builder) BuildTransfer(ctx context.Context, fromPubkey, toPubkey string, lamports uint64) (*domain.UnsignedTransaction, error) {
	if lamports == 0 {
		return nil, errors.New("lamports must be positive")
	}

	anchor, err := b.Anchor(ctx)
	if err != nil {
		return nil, err
	}

	txBase64, err := solana.BuildTransferTransaction(fromPubkey, toPubkey, lamports, anchor.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("build transfer transaction: %w", err)
	}

	return &domain.UnsignedTransaction{
		Base64:      txBase64,
		Anchor:      *anchor,
		FeeLamports: b.estimateFee(ctx, txBase64),
	}, nil
}

// estimateFee prices the transaction's message. The estimate is
// best-effort; a failure or an unpriceable message yields 0.
func (b *Builder) estimateFee(ctx context.Context, txBase64 string) uint64 {
	decoded, err := solana.DecodeTransaction(txBase64)
	if err != nil {
		b.logger.Printf("fee estimate skipped, undecodable transaction: %v", err)
		return 0
	}
	fee, err := b.rpc.GetFeeForMessage(ctx, decoded.MessageBase64())
	if err != nil {
		b.logger.Printf("fee estimate failed: %v", err)
		return 0
	}
	return fee
}

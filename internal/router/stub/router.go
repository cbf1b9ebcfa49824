// Package stub provides a configurable fake routing client for tests
// and dry-run wiring.
package stub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/router"
)

// Router is a RoutingClient that prices every quote at a fixed rate.
type Router struct {
	// OutPerIn scales the output amount per input unit (default 1.0).
	OutPerIn float64
	// QuoteTTL controls quote expiry (default 30s).
	QuoteTTL time.Duration

	// QuoteFunc, when set, overrides GetQuote entirely.
	QuoteFunc func(ctx context.Context, req router.QuoteRequest) (*domain.Quote, error)
	// SwapFunc, when set, overrides BuildSwapTransaction entirely.
	SwapFunc func(ctx context.Context, quote *domain.Quote, userPubkey, blockhash string) (string, error)

	QuoteCalls atomic.Int64
	SwapCalls  atomic.Int64
}

var _ router.RoutingClient = (*Router)(nil)

func (r *Router) GetQuote(ctx context.Context, req router.QuoteRequest) (*domain.Quote, error) {
	r.QuoteCalls.Add(1)
	if r.QuoteFunc != nil {
		return r.QuoteFunc(ctx, req)
	}

	rate := r.OutPerIn
	if rate == 0 {
		rate = 1.0
	}
	ttl := r.QuoteTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}

	out := uint64(float64(req.Amount) * rate)
	minOut := out - out*uint64(req.SlippageBps)/10000
	return &domain.Quote{
		QuoteID:      uuid.NewString(),
		InputMint:    req.InputMint,
		OutputMint:   req.OutputMint,
		InAmount:     req.Amount,
		OutAmount:    out,
		MinOutAmount: minOut,
		SlippageBps:  req.SlippageBps,
		ExpiresAt:    time.Now().UTC().Add(ttl),
		RoutePlan:    json.RawMessage(`[]`),
	}, nil
}

func (r *Router) BuildSwapTransaction(ctx context.Context, quote *domain.Quote, userPubkey, blockhash string) (string, error) {
	r.SwapCalls.Add(1)
	if r.SwapFunc != nil {
		return r.SwapFunc(ctx, quote, userPubkey, blockhash)
	}
	return base64.StdEncoding.EncodeToString([]byte("stub-swap-tx")), nil
}

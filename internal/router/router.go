// Package router talks to the external liquidity-routing service that
// prices swap routes and assembles swap transactions.
package router

import (
	"context"
	"errors"

	"solana-dca-engine/internal/domain"
)

// ErrNoRoute is returned when the service finds no viable route for
// the pair/amount. Terminal; retrying the same request will not help.
var ErrNoRoute = errors.New("no viable route")

// QuoteRequest describes the route being priced. Amount is in base
// units of the input mint.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

// RoutingClient is the boundary to the routing service.
type RoutingClient interface {
	// GetQuote prices a route. Returns ErrNoRoute when the pair cannot
	// be routed at this amount.
	GetQuote(ctx context.Context, req QuoteRequest) (*domain.Quote, error)

	// BuildSwapTransaction asks the service to assemble the swap
	// transaction for a quote, anchored at the given blockhash, with
	// userPubkey as fee payer. Returns the unsigned transaction base64.
	BuildSwapTransaction(ctx context.Context, quote *domain.Quote, userPubkey, blockhash string) (string, error)
}

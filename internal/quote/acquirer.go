// Package quote fetches priced routes from the liquidity-routing
// provider and classifies its failures into the engine's error kinds.
package quote

import (
	"context"
	"errors"
	"log"

	"solana-dca-engine/internal/apperr"
	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/router"
)

// Acquirer wraps a RoutingClient with input validation and error
// classification.
type Acquirer struct {
	routing router.RoutingClient
	logger  *log.Logger
}

// Options configures Acquirer.
type Options struct {
	Routing router.RoutingClient
	Logger  *log.Logger
}

// NewAcquirer creates a quote acquirer.
func NewAcquirer(opts Options) (*Acquirer, error) {
	if opts.Routing == nil {
		return nil, errors.New("routing client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[quote] ", log.LstdFlags)
	}
	return &Acquirer{routing: opts.Routing, logger: logger}, nil
}

// Acquire prices a route for amountBaseUnits of inputMint into
// outputMint at the given tolerance. A no-route answer is terminal;
// transport failures are retryable so the caller can re-run prepare.
func (a *Acquirer) Acquire(ctx context.Context, inputMint, outputMint string, amountBaseUnits uint64, toleranceBps int) (*domain.Quote, error) {
	if inputMint == "" || outputMint == "" {
		return nil, apperr.Validation("input and output mints are required")
	}
	if inputMint == outputMint {
		return nil, apperr.Validation("input and output mints must differ")
	}
	if amountBaseUnits == 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	if toleranceBps <= 0 {
		return nil, apperr.Validation("slippage tolerance must be positive, got %d bps", toleranceBps)
	}

	q, err := a.routing.GetQuote(ctx, router.QuoteRequest{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		Amount:      amountBaseUnits,
		SlippageBps: toleranceBps,
	})
	if err != nil {
		if errors.Is(err, router.ErrNoRoute) {
			a.logger.Printf("no route for %s -> %s amount=%d", inputMint, outputMint, amountBaseUnits)
			return nil, apperr.NoRoute("no viable route for requested pair")
		}
		return nil, &apperr.Error{
			Kind:      apperr.KindInternal,
			Message:   "quote request failed",
			Retryable: true,
			Err:       err,
		}
	}

	if q.OutAmount == 0 || q.MinOutAmount == 0 {
		return nil, apperr.NoRoute("provider returned an empty route")
	}
	if q.MinOutAmount > q.OutAmount {
		return nil, apperr.Internal("provider quote inconsistent: min out exceeds out", nil)
	}
	return q, nil
}

package domain

import (
	"encoding/json"
	"time"
)

// Asset describes a tradeable token and its declared decimal precision.
type Asset struct {
	Symbol   string `json:"symbol"`
	Mint     string `json:"mint"`
	Decimals int    `json:"decimals"`
}

// Quote is a priced route from the liquidity-routing provider.
// Amounts are in base units of the respective mints.
type Quote struct {
	QuoteID        string  `json:"quote_id"`
	InputMint      string  `json:"input_mint"`
	OutputMint     string  `json:"output_mint"`
	InAmount       uint64  `json:"in_amount"`
	OutAmount      uint64  `json:"out_amount"`
	MinOutAmount   uint64  `json:"min_out_amount"`
	PriceImpactPct float64 `json:"price_impact_pct"`
	SlippageBps    int     `json:"slippage_bps"`

	ExpiresAt time.Time `json:"expires_at"`

	// RoutePlan is the provider's opaque route description, passed back
	// verbatim when requesting the swap transaction.
	RoutePlan json.RawMessage `json:"route_plan,omitempty"`
}

// Anchor is the network freshness reference bounding how long an
// unsigned transaction remains executable.
type Anchor struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"last_valid_block_height"`
}

// UnsignedTransaction is a serialized transaction handed to the client
// for signing, together with its anchor and a best-effort fee estimate.
type UnsignedTransaction struct {
	Base64      string `json:"base64"`
	Anchor      Anchor `json:"anchor"`
	FeeLamports uint64 `json:"fee_lamports"`
}

// AuditEvent is one append-only audit trail entry. Every failure path,
// refresh and confirmation writes one before returning.
type AuditEvent struct {
	Timestamp time.Time
	BatchID   string
	Kind      RecordKind
	Phase     string
	Outcome   string
	Detail    string
}

// Audit phases.
const (
	PhasePrepare = "prepare"
	PhaseSubmit  = "submit"
	PhaseConfirm = "confirm"
	PhaseLedger  = "ledger"
)

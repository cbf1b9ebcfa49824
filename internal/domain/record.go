package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind identifies the on-chain step a TransactionRecord represents.
type RecordKind string

const (
	KindDepositSimulation RecordKind = "DEPOSIT_SIMULATION"
	KindIntermediateSwap  RecordKind = "INTERMEDIATE_SWAP"
	KindSwap              RecordKind = "SWAP"
	KindTransfer          RecordKind = "TRANSFER"
)

// Valid reports whether k is a known record kind.
func (k RecordKind) Valid() bool {
	switch k {
	case KindDepositSimulation, KindIntermediateSwap, KindSwap, KindTransfer:
		return true
	}
	return false
}

// RecordState is the submission/confirmation state of a record.
type RecordState string

const (
	StatePrepared  RecordState = "PREPARED"
	StateSubmitted RecordState = "SUBMITTED"
	StateConfirmed RecordState = "CONFIRMED"
	StateFailed    RecordState = "FAILED"
)

// TransactionRecord is one row per on-chain step of a batch.
// At most one record exists per (batch_id, kind); the storage layer
// enforces this with a unique constraint.
type TransactionRecord struct {
	ID       string
	BatchID  string
	GoalID   string
	Kind     RecordKind
	Provider string
	Network  string
	State    RecordState

	// TxHash is the network signature, set only after confirmation.
	TxHash *string

	AmountFiat  decimal.Decimal
	AmountAsset decimal.Decimal
	AssetMint   string

	Metadata RecordMetadata

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordMetadata is a tagged union of per-kind metadata shapes plus
// fields shared by every kind. Exactly one of Swap, Deposit, Transfer
// is expected to be set, matching the record kind.
type RecordMetadata struct {
	Swap     *SwapMetadata     `json:"swap,omitempty"`
	Deposit  *DepositMetadata  `json:"deposit,omitempty"`
	Transfer *TransferMetadata `json:"transfer,omitempty"`

	RefreshCount  int    `json:"refresh_count,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`

	// Extra carries forward-compatible fields that have no typed home yet.
	Extra map[string]string `json:"extra,omitempty"`
}

// SwapMetadata is the resumption state for SWAP and INTERMEDIATE_SWAP records.
// It must be sufficient to rebuild an execute request with no in-memory state.
type SwapMetadata struct {
	QuoteID      string `json:"quote_id"`
	InputMint    string `json:"input_mint"`
	OutputMint   string `json:"output_mint"`
	InAmount     uint64 `json:"in_amount"`
	OutAmount    uint64 `json:"out_amount"`
	MinOutAmount uint64 `json:"min_out_amount"`
	SlippageBps  int    `json:"slippage_bps"`
	SignerPubkey string `json:"signer_pubkey"`

	PriceImpactPct float64   `json:"price_impact_pct"`
	QuoteExpiresAt time.Time `json:"quote_expires_at"`

	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"last_valid_block_height"`
}

// DepositMetadata describes a simulated deposit entry.
type DepositMetadata struct {
	Simulated bool   `json:"simulated"`
	Source    string `json:"source,omitempty"`
}

// TransferMetadata is the resumption state for admin TRANSFER records.
type TransferMetadata struct {
	FromPubkey string `json:"from_pubkey"`
	ToPubkey   string `json:"to_pubkey"`
	Lamports   uint64 `json:"lamports"`

	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"last_valid_block_height"`
}

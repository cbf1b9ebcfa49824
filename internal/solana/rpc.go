package solana

import "context"

// RPCClient defines the Solana RPC HTTP surface used by the engine.
type RPCClient interface {
	// GetLatestBlockhash retrieves the current freshness anchor.
	GetLatestBlockhash(ctx context.Context) (*BlockhashResult, error)

	// GetBlockHeight retrieves the current block height.
	GetBlockHeight(ctx context.Context) (uint64, error)

	// SendTransaction submits a signed, base64-encoded transaction and
	// returns its signature.
	SendTransaction(ctx context.Context, signedTxBase64 string) (string, error)

	// GetSignatureStatus retrieves the confirmation status of a signature.
	// Returns nil if the network does not know the signature yet.
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)

	// GetFeeForMessage estimates the fee for a base64-encoded message.
	// Returns 0 if the network cannot price it against a current bank.
	GetFeeForMessage(ctx context.Context, messageBase64 string) (uint64, error)

	// GetTransaction retrieves a confirmed transaction's token balance
	// movements. Returns nil if the network has not indexed the
	// signature yet.
	GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error)
}

// BlockhashResult is the response of getLatestBlockhash.
type BlockhashResult struct {
	Blockhash            string
	LastValidBlockHeight uint64
	Slot                 uint64
}

// SignatureStatus is one entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	ConfirmationStatus string // "processed" | "confirmed" | "finalized"
	Err                interface{}
}

// Confirmed reports whether the status has reached at least the
// confirmed commitment without a transaction error.
func (s *SignatureStatus) Confirmed() bool {
	if s == nil || s.Err != nil {
		return false
	}
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// TransactionDetail is the token-balance view of getTransaction.
type TransactionDetail struct {
	Slot              uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// TokenBalance is one pre- or post-execution token account balance.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       uint64
}

// ReceivedAmount computes how many base units of mint the owner gained
// in the transaction, summed across the owner's token accounts. The
// second return is false when the post balances carry no entry for the
// owner/mint pair or the balance did not grow.
func (d *TransactionDetail) ReceivedAmount(owner, mint string) (uint64, bool) {
	if d == nil {
		return 0, false
	}
	var pre, post uint64
	found := false
	for _, b := range d.PreTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			pre += b.Amount
		}
	}
	for _, b := range d.PostTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			post += b.Amount
			found = true
		}
	}
	if !found || post <= pre {
		return 0, false
	}
	return post - pre, true
}

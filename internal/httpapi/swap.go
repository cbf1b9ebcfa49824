package httpapi

import (
	"net/http"
	"time"

	"solana-dca-engine/internal/apperr"
	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/orchestrator"
)

// swapRequest is the POST /v1/swap body for both modes.
type swapRequest struct {
	Mode    string `json:"mode"`
	BatchID string `json:"batchId,omitempty"`

	// quote mode
	GoalID          string `json:"goalId,omitempty"`
	InputMint       string `json:"inputMint,omitempty"`
	InputDecimals   int    `json:"inputDecimals,omitempty"`
	AmountBaseUnits uint64 `json:"amountBaseUnits,omitempty"`
	ToleranceBps    int    `json:"toleranceBps,omitempty"`
	SignerPubkey    string `json:"signerPubkey,omitempty"`

	// execute mode
	SignedTransaction string `json:"signedTransaction,omitempty"`
}

type quotePayload struct {
	QuoteID        string    `json:"quoteId"`
	InputMint      string    `json:"inputMint"`
	OutputMint     string    `json:"outputMint"`
	InAmount       uint64    `json:"inAmount"`
	OutAmount      uint64    `json:"outAmount"`
	MinOutAmount   uint64    `json:"minOutAmount"`
	PriceImpactPct float64   `json:"priceImpactPct"`
	SlippageBps    int       `json:"slippageBps"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

type unsignedPayload struct {
	Transaction          string `json:"transaction"`
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	FeeLamports          uint64 `json:"feeLamports"`
}

type preparedSwapResponse struct {
	BatchID             string          `json:"batchId"`
	Quote               quotePayload    `json:"quote"`
	UnsignedTransaction unsignedPayload `json:"unsignedTransaction"`
}

type executeSwapResponse struct {
	Success          bool   `json:"success"`
	NetworkReference string `json:"networkReference,omitempty"`
	GoalCompleted    bool   `json:"goalCompleted,omitempty"`

	Retryable bool   `json:"retryable,omitempty"`
	Code      string `json:"code,omitempty"`
	NextLeg   bool   `json:"nextLeg,omitempty"`

	NewQuote               *quotePayload    `json:"newQuote,omitempty"`
	NewUnsignedTransaction *unsignedPayload `json:"newUnsignedTransaction,omitempty"`
	NewSlippageBps         int              `json:"newSlippageBps,omitempty"`
	RefreshCount           int              `json:"refreshCount,omitempty"`
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	switch req.Mode {
	case "quote":
		s.handleSwapQuote(w, r, req)
	case "execute":
		s.handleSwapExecute(w, r, req)
	default:
		writeError(w, apperr.Validation("mode must be quote or execute, got %q", req.Mode))
	}
}

func (s *Server) handleSwapQuote(w http.ResponseWriter, r *http.Request, req swapRequest) {
	prepared, err := s.orch.PrepareSwap(r.Context(), orchestrator.PrepareSwapRequest{
		BatchID:         req.BatchID,
		GoalID:          req.GoalID,
		InputMint:       req.InputMint,
		InputDecimals:   req.InputDecimals,
		AmountBaseUnits: req.AmountBaseUnits,
		ToleranceBps:    req.ToleranceBps,
		SignerPubkey:    req.SignerPubkey,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, preparedSwapResponse{
		BatchID:             prepared.BatchID,
		Quote:               toQuotePayload(prepared.Quote),
		UnsignedTransaction: toUnsignedPayload(prepared.Unsigned),
	})
}

func (s *Server) handleSwapExecute(w http.ResponseWriter, r *http.Request, req swapRequest) {
	if req.BatchID == "" {
		writeError(w, apperr.Validation("batchId is required for execute mode"))
		return
	}
	if req.SignedTransaction == "" {
		writeError(w, apperr.Validation("signedTransaction is required for execute mode"))
		return
	}

	result, err := s.orch.ExecuteSwap(r.Context(), orchestrator.ExecuteSwapRequest{
		BatchID:           req.BatchID,
		SignedTransaction: req.SignedTransaction,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := executeSwapResponse{
		Success:          result.Success,
		NetworkReference: result.NetworkReference,
		GoalCompleted:    result.GoalCompleted,
		Retryable:        result.Retryable,
		Code:             string(result.Code),
		NextLeg:          result.NextLeg,
		NewSlippageBps:   result.NewSlippageBps,
		RefreshCount:     result.RefreshCount,
	}
	if result.NewQuote != nil {
		q := toQuotePayload(result.NewQuote)
		resp.NewQuote = &q
	}
	if result.NewUnsignedTransaction != nil {
		u := toUnsignedPayload(result.NewUnsignedTransaction)
		resp.NewUnsignedTransaction = &u
	}

	status := http.StatusOK
	if result.Retryable {
		// The client must sign a fresh payload before retrying.
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

func toQuotePayload(q *domain.Quote) quotePayload {
	return quotePayload{
		QuoteID:        q.QuoteID,
		InputMint:      q.InputMint,
		OutputMint:     q.OutputMint,
		InAmount:       q.InAmount,
		OutAmount:      q.OutAmount,
		MinOutAmount:   q.MinOutAmount,
		PriceImpactPct: q.PriceImpactPct,
		SlippageBps:    q.SlippageBps,
		ExpiresAt:      q.ExpiresAt,
	}
}

func toUnsignedPayload(u *domain.UnsignedTransaction) unsignedPayload {
	return unsignedPayload{
		Transaction:          u.Base64,
		Blockhash:            u.Anchor.Blockhash,
		LastValidBlockHeight: u.Anchor.LastValidBlockHeight,
		FeeLamports:          u.FeeLamports,
	}
}

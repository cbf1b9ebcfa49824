package httpapi

import (
	"net/http"

	"solana-dca-engine/internal/apperr"
	"solana-dca-engine/internal/orchestrator"
)

// transferRequest is the POST /v1/transfer body for both phases.
type transferRequest struct {
	Mode    string `json:"mode"`
	BatchID string `json:"batchId,omitempty"`

	// prepare mode
	FromPubkey string `json:"fromPubkey,omitempty"`
	ToPubkey   string `json:"toPubkey,omitempty"`
	Lamports   uint64 `json:"lamports,omitempty"`

	// submit mode
	SignedTransaction string `json:"signedTransaction,omitempty"`
}

type preparedTransferResponse struct {
	BatchID             string          `json:"batchId"`
	UnsignedTransaction unsignedPayload `json:"unsignedTransaction"`
}

type submitTransferResponse struct {
	Success          bool   `json:"success"`
	NetworkReference string `json:"networkReference,omitempty"`

	Retryable bool   `json:"retryable,omitempty"`
	Code      string `json:"code,omitempty"`

	RefreshedPayload *unsignedPayload `json:"refreshedPayload,omitempty"`
	RefreshCount     int              `json:"refreshCount,omitempty"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	switch req.Mode {
	case "prepare":
		s.handleTransferPrepare(w, r, req)
	case "submit":
		s.handleTransferSubmit(w, r, req)
	default:
		writeError(w, apperr.Validation("mode must be prepare or submit, got %q", req.Mode))
	}
}

func (s *Server) handleTransferPrepare(w http.ResponseWriter, r *http.Request, req transferRequest) {
	prepared, err := s.orch.PrepareTransfer(r.Context(), orchestrator.PrepareTransferRequest{
		BatchID:    req.BatchID,
		FromPubkey: req.FromPubkey,
		ToPubkey:   req.ToPubkey,
		Lamports:   req.Lamports,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, preparedTransferResponse{
		BatchID:             prepared.BatchID,
		UnsignedTransaction: toUnsignedPayload(prepared.Unsigned),
	})
}

func (s *Server) handleTransferSubmit(w http.ResponseWriter, r *http.Request, req transferRequest) {
	if req.BatchID == "" {
		writeError(w, apperr.Validation("batchId is required for submit mode"))
		return
	}
	if req.SignedTransaction == "" {
		writeError(w, apperr.Validation("signedTransaction is required for submit mode"))
		return
	}

	result, err := s.orch.SubmitTransfer(r.Context(), req.BatchID, req.SignedTransaction)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := submitTransferResponse{
		Success:          result.Success,
		NetworkReference: result.NetworkReference,
		Retryable:        result.Retryable,
		Code:             string(result.Code),
		RefreshCount:     result.RefreshCount,
	}
	if result.RefreshedPayload != nil {
		u := toUnsignedPayload(result.RefreshedPayload)
		resp.RefreshedPayload = &u
	}

	status := http.StatusOK
	if result.Retryable {
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

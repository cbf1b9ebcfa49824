package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"solana-dca-engine/internal/apperr"
	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/idhash"
	"solana-dca-engine/internal/observability"
	"solana-dca-engine/internal/storage"
)

// PrepareTransferRequest is the prepare-mode input of the transfer
// endpoint, the admin two-phase variant of the swap flow.
type PrepareTransferRequest struct {
	// BatchID correlates prepare and submit; generated when empty.
	BatchID string

	FromPubkey string
	ToPubkey   string
	Lamports   uint64
}

// PreparedTransfer is the prepare-mode response payload.
type PreparedTransfer struct {
	BatchID  string
	Record   *domain.TransactionRecord
	Unsigned *domain.UnsignedTransaction
}

// PrepareTransfer builds an unsigned lamport transfer under the
// idempotency guard. Replayed prepares return the stored payload.
func (o *Orchestrator) PrepareTransfer(ctx context.Context, req PrepareTransferRequest) (*PreparedTransfer, error) {
	if req.FromPubkey == "" || req.ToPubkey == "" {
		return nil, apperr.Validation("from and to pubkeys are required")
	}
	if req.FromPubkey == req.ToPubkey {
		return nil, apperr.Validation("from and to pubkeys must differ")
	}
	if req.Lamports == 0 {
		return nil, apperr.Validation("lamports must be positive")
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}

	var builtUnsigned *domain.UnsignedTransaction
	rec, created, err := o.guard.EnsureOnce(ctx, batchID, domain.KindTransfer, func(ctx context.Context) (*domain.TransactionRecord, error) {
		unsigned, berr := o.builder.BuildTransfer(ctx, req.FromPubkey, req.ToPubkey, req.Lamports)
		if berr != nil {
			o.auditEvent(ctx, batchID, domain.KindTransfer, domain.PhasePrepare, "build_failed", berr.Error())
			return nil, apperr.Internal("build transfer transaction", berr)
		}
		builtUnsigned = unsigned

		return &domain.TransactionRecord{
			ID:          idhash.ComputeRecordID(batchID, string(domain.KindTransfer)),
			BatchID:     batchID,
			Kind:        domain.KindTransfer,
			Provider:    "system",
			Network:     o.network,
			State:       domain.StatePrepared,
			AmountAsset: decimal.NewFromUint64(req.Lamports).Shift(-9),
			Metadata: domain.RecordMetadata{
				Transfer: &domain.TransferMetadata{
					FromPubkey:           req.FromPubkey,
					ToPubkey:             req.ToPubkey,
					Lamports:             req.Lamports,
					Blockhash:            unsigned.Anchor.Blockhash,
					LastValidBlockHeight: unsigned.Anchor.LastValidBlockHeight,
				},
				Extra: map[string]string{
					extraUnsignedTx:  unsigned.Base64,
					extraFeeLamports: strconv.FormatUint(unsigned.FeeLamports, 10),
				},
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	observability.RecordPrepare(string(domain.KindTransfer), prepareOutcome(created))

	if created {
		o.auditEvent(ctx, batchID, domain.KindTransfer, domain.PhasePrepare, "created",
			fmt.Sprintf("%d lamports %s -> %s", req.Lamports, req.FromPubkey, req.ToPubkey))
		return &PreparedTransfer{BatchID: batchID, Record: rec, Unsigned: builtUnsigned}, nil
	}
	return &PreparedTransfer{BatchID: batchID, Record: rec, Unsigned: transferUnsignedFromRecord(rec)}, nil
}

// SubmitTransferResult reports the outcome of the transfer submit
// phase. On anchor expiry RefreshedPayload carries a rebuilt unsigned
// transaction for a new signature.
type SubmitTransferResult struct {
	Success          bool
	Retryable        bool
	Code             apperr.Kind
	NetworkReference string

	RefreshedPayload *domain.UnsignedTransaction
	RefreshCount     int
}

// SubmitTransfer relays the signed transfer and drives it to a
// terminal state.
func (o *Orchestrator) SubmitTransfer(ctx context.Context, batchID, signedTxBase64 string) (*SubmitTransferResult, error) {
	if batchID == "" {
		return nil, apperr.Validation("batch id is required")
	}
	if signedTxBase64 == "" {
		return nil, apperr.Validation("signed transaction is required")
	}

	rec, err := o.records.GetByBatchAndKind(ctx, batchID, domain.KindTransfer)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("batch %s has no prepared transfer", batchID)
		}
		return nil, apperr.Internal("load transfer record", err)
	}

	signature, err := o.submitter.Execute(ctx, rec, signedTxBase64)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindExpired {
			observability.RecordSubmission("expired")
			return o.refreshTransfer(ctx, rec)
		}
		observability.RecordSubmission("failed")
		return nil, err
	}
	observability.RecordSubmission("confirmed")

	if rec.State != domain.StateConfirmed {
		rec.State = domain.StateConfirmed
		rec.TxHash = &signature
		if uerr := o.records.Update(ctx, rec); uerr != nil {
			return nil, apperr.Internal("stamp confirmed transfer", uerr)
		}
	}
	return &SubmitTransferResult{Success: true, NetworkReference: signature}, nil
}

// refreshTransfer rebuilds the transfer against a fresh anchor and
// returns it as a retryable payload.
func (o *Orchestrator) refreshTransfer(ctx context.Context, rec *domain.TransactionRecord) (*SubmitTransferResult, error) {
	m := rec.Metadata.Transfer
	unsigned, err := o.builder.BuildTransfer(ctx, m.FromPubkey, m.ToPubkey, m.Lamports)
	if err != nil {
		o.auditEvent(ctx, rec.BatchID, rec.Kind, domain.PhasePrepare, "rebuild_failed", err.Error())
		return nil, apperr.Internal("rebuild transfer transaction", err)
	}

	m.Blockhash = unsigned.Anchor.Blockhash
	m.LastValidBlockHeight = unsigned.Anchor.LastValidBlockHeight
	rec.Metadata.RefreshCount++
	if rec.Metadata.Extra == nil {
		rec.Metadata.Extra = make(map[string]string)
	}
	rec.Metadata.Extra[extraUnsignedTx] = unsigned.Base64
	rec.Metadata.Extra[extraFeeLamports] = strconv.FormatUint(unsigned.FeeLamports, 10)
	if err := o.records.Update(ctx, rec); err != nil {
		return nil, apperr.Internal("persist refreshed transfer", err)
	}
	observability.RecordAnchorRefresh()
	o.auditEvent(ctx, rec.BatchID, rec.Kind, domain.PhaseSubmit, "refreshed",
		fmt.Sprintf("refresh %d, new anchor %s", rec.Metadata.RefreshCount, m.Blockhash))

	return &SubmitTransferResult{
		Retryable:        true,
		Code:             apperr.KindExpired,
		RefreshedPayload: unsigned,
		RefreshCount:     rec.Metadata.RefreshCount,
	}, nil
}

// transferUnsignedFromRecord reconstructs the unsigned payload stored
// on a transfer record.
func transferUnsignedFromRecord(rec *domain.TransactionRecord) *domain.UnsignedTransaction {
	m := rec.Metadata.Transfer
	if m == nil || rec.Metadata.Extra == nil {
		return nil
	}
	txBase64, ok := rec.Metadata.Extra[extraUnsignedTx]
	if !ok {
		return nil
	}
	fee, _ := strconv.ParseUint(rec.Metadata.Extra[extraFeeLamports], 10, 64)
	return &domain.UnsignedTransaction{
		Base64: txBase64,
		Anchor: domain.Anchor{
			Blockhash:            m.Blockhash,
			LastValidBlockHeight: m.LastValidBlockHeight,
		},
		FeeLamports: fee,
	}
}

// Package submit drives a signed transaction from PREPARED through
// SUBMITTED to a terminal outcome. Records whose anchor expired are
// returned to PREPARED so the caller can refresh; confirmed swap
// records are left SUBMITTED for the ledger to stamp atomically.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"solana-dca-engine/internal/apperr"
	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/solana"
	"solana-dca-engine/internal/storage"
)

// Default tuning values.
const (
	DefaultSendRetries    = 3
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 2 * time.Second
)

// SignatureSubscriber delivers one-shot confirmation notifications.
// The channel is closed after its single value, or without a value on
// connection loss, in which case the submitter falls back to polling.
type SignatureSubscriber interface {
	SubscribeSignature(ctx context.Context, signature string) (<-chan solana.SignatureNotification, error)
}

// Submitter is the submission and confirmation state machine.
type Submitter struct {
	records    storage.RecordStore
	audit      storage.AuditStore
	rpc        solana.RPCClient
	subscriber SignatureSubscriber
	logger     *log.Logger

	sendRetries    int
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// Options configures Submitter.
type Options struct {
	Records storage.RecordStore
	Audit   storage.AuditStore
	RPC     solana.RPCClient
	// Subscriber is optional; without it confirmation is polling-only.
	Subscriber SignatureSubscriber
	Logger     *log.Logger

	SendRetries    int
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// NewSubmitter creates a submitter.
func NewSubmitter(opts Options) (*Submitter, error) {
	if opts.Records == nil {
		return nil, errors.New("record store is required")
	}
	if opts.Audit == nil {
		return nil, errors.New("audit store is required")
	}
	if opts.RPC == nil {
		return nil, errors.New("rpc client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[submit] ", log.LstdFlags)
	}
	s := &Submitter{
		records:        opts.Records,
		audit:          opts.Audit,
		rpc:            opts.RPC,
		subscriber:     opts.Subscriber,
		logger:         logger,
		sendRetries:    opts.SendRetries,
		confirmTimeout: opts.ConfirmTimeout,
		pollInterval:   opts.PollInterval,
	}
	if s.sendRetries <= 0 {
		s.sendRetries = DefaultSendRetries
	}
	if s.confirmTimeout <= 0 {
		s.confirmTimeout = DefaultConfirmTimeout
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	return s, nil
}

// Execute submits a signed transaction for rec and waits for its
// confirmation, returning the network signature. Re-executing an
// already-CONFIRMED record is a no-op returning the stored signature.
//
// On anchor expiry or slippage rejection the record is returned to
// PREPARED and a retryable error of the matching kind comes back; the
// caller refreshes or escalates and requests a fresh client signature.
func (s *Submitter) Execute(ctx context.Context, rec *domain.TransactionRecord, signedTxBase64 string) (string, error) {
	switch rec.State {
	case domain.StateConfirmed:
		if rec.TxHash != nil {
			return *rec.TxHash, nil
		}
		return "", apperr.Internal("record confirmed without network reference", nil)
	case domain.StateFailed:
		return "", apperr.Internal(fmt.Sprintf("record already failed: %s", rec.Metadata.FailureReason), nil)
	}

	anchor, signer, err := resumptionState(rec)
	if err != nil {
		return "", apperr.Validation("%v", err)
	}

	decoded, err := solana.DecodeTransaction(signedTxBase64)
	if err != nil {
		return "", apperr.Validation("malformed signed transaction: %v", err)
	}
	if err := decoded.VerifySignerSignature(signer); err != nil {
		return "", apperr.Validation("signature verification failed: %v", err)
	}
	if decoded.RecentBlockhash != anchor.Blockhash {
		return "", apperr.Validation("signed transaction anchored at %s, expected %s; re-run prepare", decoded.RecentBlockhash, anchor.Blockhash)
	}

	// Preflight expiry check before spending a send attempt.
	height, err := s.rpc.GetBlockHeight(ctx)
	if err == nil && height > anchor.LastValidBlockHeight {
		return "", s.expire(ctx, rec, domain.PhaseSubmit, fmt.Sprintf("anchor expired: height %d past %d", height, anchor.LastValidBlockHeight))
	}

	if rec.State == domain.StatePrepared {
		rec.State = domain.StateSubmitted
		if err := s.records.Update(ctx, rec); err != nil {
			return "", apperr.Internal("persist submitted state", err)
		}
	}

	signature, err := s.send(ctx, rec, signedTxBase64)
	if err != nil {
		return "", err
	}

	if err := s.confirm(ctx, rec, signature, anchor); err != nil {
		return "", err
	}

	s.auditEvent(ctx, rec, domain.PhaseConfirm, "confirmed", signature)
	return signature, nil
}

// send relays the transaction with a bounded retry loop. Only transport
// errors are retried; the node's rejections are classified immediately.
func (s *Submitter) send(ctx context.Context, rec *domain.TransactionRecord, signedTxBase64 string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.sendRetries; attempt++ {
		signature, err := s.rpc.SendTransaction(ctx, signedTxBase64)
		if err == nil {
			return signature, nil
		}
		lastErr = err

		var rpcErr *solana.RPCError
		if errors.As(err, &rpcErr) {
			msg := rpcErrorText(rpcErr)
			switch {
			case isExpirySignature(msg):
				return "", s.expire(ctx, rec, domain.PhaseSubmit, msg)
			case isSlippageSignature(msg):
				return "", s.rejectSlippage(ctx, rec, msg)
			default:
				return "", s.fail(ctx, rec, domain.PhaseSubmit, msg)
			}
		}

		s.logger.Printf("send attempt %d/%d for batch %s failed: %v", attempt, s.sendRetries, rec.BatchID, err)
	}

	// The transaction may or may not have reached the network; the
	// record stays SUBMITTED so a re-execute resumes safely (identical
	// signed bytes carry an identical signature).
	s.auditEvent(ctx, rec, domain.PhaseSubmit, "send_exhausted", lastErr.Error())
	return "", &apperr.Error{
		Kind:      apperr.KindInternal,
		Message:   fmt.Sprintf("submission failed after %d attempts", s.sendRetries),
		Retryable: true,
		Err:       lastErr,
	}
}

// confirm waits for the signature to reach confirmed commitment,
// watching the anchor's validity window the whole time.
func (s *Submitter) confirm(ctx context.Context, rec *domain.TransactionRecord, signature string, anchor *domain.Anchor) error {
	ctx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	var notifCh <-chan solana.SignatureNotification
	if s.subscriber != nil {
		ch, err := s.subscriber.SubscribeSignature(ctx, signature)
		if err != nil {
			s.logger.Printf("signature subscribe failed, polling only: %v", err)
		} else {
			notifCh = ch
		}
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Outcome unknown; stay SUBMITTED for a later resume.
			s.auditEvent(ctx, rec, domain.PhaseConfirm, "timeout", signature)
			return &apperr.Error{
				Kind:      apperr.KindInternal,
				Message:   "confirmation timed out",
				Retryable: true,
				Err:       ctx.Err(),
			}

		case notif, ok := <-notifCh:
			if !ok {
				// Connection lost before the notification; keep polling.
				notifCh = nil
				continue
			}
			if notif.Err != nil {
				return s.classifyTxError(ctx, rec, notif.Err)
			}
			return nil

		case <-ticker.C:
			status, err := s.rpc.GetSignatureStatus(ctx, signature)
			if err != nil {
				s.logger.Printf("status poll for %s failed: %v", signature, err)
				continue
			}
			if status == nil {
				height, herr := s.rpc.GetBlockHeight(ctx)
				if herr == nil && height > anchor.LastValidBlockHeight {
					return s.expire(ctx, rec, domain.PhaseConfirm, fmt.Sprintf("anchor expired unconfirmed: height %d past %d", height, anchor.LastValidBlockHeight))
				}
				continue
			}
			if status.Err != nil {
				return s.classifyTxError(ctx, rec, status.Err)
			}
			if status.Confirmed() {
				return nil
			}
		}
	}
}

// classifyTxError maps an on-chain transaction error to the taxonomy.
func (s *Submitter) classifyTxError(ctx context.Context, rec *domain.TransactionRecord, txErr interface{}) error {
	msg := txErrorText(txErr)
	if isSlippageSignature(msg) {
		return s.rejectSlippage(ctx, rec, msg)
	}
	return s.fail(ctx, rec, domain.PhaseConfirm, msg)
}

// expire returns the record to PREPARED and reports a retryable
// anchor-expiry error. The refresh itself (new anchor, new unsigned
// transaction, refresh counter) is the caller's job.
func (s *Submitter) expire(ctx context.Context, rec *domain.TransactionRecord, phase, reason string) error {
	rec.State = domain.StatePrepared
	if err := s.records.Update(ctx, rec); err != nil {
		return apperr.Internal("persist expiry rollback", err)
	}
	s.auditEvent(ctx, rec, phase, "expired", reason)
	return apperr.Expired("transaction validity window elapsed", nil)
}

// rejectSlippage returns the record to PREPARED and reports a
// slippage-exceeded error for the caller's escalation policy.
func (s *Submitter) rejectSlippage(ctx context.Context, rec *domain.TransactionRecord, reason string) error {
	rec.State = domain.StatePrepared
	if err := s.records.Update(ctx, rec); err != nil {
		return apperr.Internal("persist slippage rollback", err)
	}
	s.auditEvent(ctx, rec, domain.PhaseSubmit, "slippage", reason)
	return apperr.Slippage("execution exceeded slippage tolerance", nil)
}

// fail marks the record FAILED with the raw reason persisted for audit.
func (s *Submitter) fail(ctx context.Context, rec *domain.TransactionRecord, phase, reason string) error {
	rec.State = domain.StateFailed
	rec.Metadata.FailureReason = reason
	if err := s.records.Update(ctx, rec); err != nil {
		return apperr.Internal("persist failed state", err)
	}
	s.auditEvent(ctx, rec, phase, "failed", reason)
	return apperr.Internal("transaction rejected by network", errors.New(reason))
}

func (s *Submitter) auditEvent(ctx context.Context, rec *domain.TransactionRecord, phase, outcome, detail string) {
	// Audit writes must not mask the primary outcome; use a detached
	// context so a caller timeout does not drop the trail entry.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := s.audit.Append(actx, &domain.AuditEvent{
		Timestamp: time.Now().UTC(),
		BatchID:   rec.BatchID,
		Kind:      rec.Kind,
		Phase:     phase,
		Outcome:   outcome,
		Detail:    detail,
	})
	if err != nil {
		s.logger.Printf("audit append failed for batch %s: %v", rec.BatchID, err)
	}
}

// resumptionState extracts the anchor and expected signer persisted on
// the record. All context needed by submit lives in the record; nothing
// survives in memory between prepare and submit.
func resumptionState(rec *domain.TransactionRecord) (*domain.Anchor, string, error) {
	switch {
	case rec.Metadata.Swap != nil:
		m := rec.Metadata.Swap
		if m.Blockhash == "" || m.SignerPubkey == "" {
			return nil, "", fmt.Errorf("record %s has incomplete swap metadata", rec.ID)
		}
		return &domain.Anchor{Blockhash: m.Blockhash, LastValidBlockHeight: m.LastValidBlockHeight}, m.SignerPubkey, nil
	case rec.Metadata.Transfer != nil:
		m := rec.Metadata.Transfer
		if m.Blockhash == "" || m.FromPubkey == "" {
			return nil, "", fmt.Errorf("record %s has incomplete transfer metadata", rec.ID)
		}
		return &domain.Anchor{Blockhash: m.Blockhash, LastValidBlockHeight: m.LastValidBlockHeight}, m.FromPubkey, nil
	}
	return nil, "", fmt.Errorf("record %s carries no submittable metadata", rec.ID)
}

func rpcErrorText(err *solana.RPCError) string {
	if len(err.Data) > 0 {
		return fmt.Sprintf("%s (data: %s)", err.Message, string(err.Data))
	}
	return err.Message
}

func txErrorText(txErr interface{}) string {
	raw, err := json.Marshal(txErr)
	if err != nil {
		return fmt.Sprintf("%v", txErr)
	}
	return string(raw)
}

// isExpirySignature matches the node's anchor-expiry rejections.
func isExpirySignature(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "blockhash not found") ||
		strings.Contains(m, "blockhashnotfound") ||
		strings.Contains(m, "block height exceeded")
}

// isSlippageSignature matches slippage-tolerance rejections, including
// the router program's custom error code 0x1771.
func isSlippageSignature(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "slippage") ||
		strings.Contains(m, "0x1771") ||
		strings.Contains(m, `"custom":6001`)
}

package submit

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"solana-dca-engine/internal/apperr"
	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/idhash"
	"solana-dca-engine/internal/solana"
	"solana-dca-engine/internal/solana/stub"
	"solana-dca-engine/internal/storage/memory"
)

const (
	testBlockhash = "GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W"
	testRecipient = "8pM1DN3RiT8vbom5u1sNryaNT1nyL8CTTW3b5PwWXRBH"
	lastValid     = uint64(1000)
)

type fixture struct {
	submitter *Submitter
	records   *memory.RecordStore
	rpc       *stub.RPCClient
	rec       *domain.TransactionRecord
	signedTx  string
	signer    string
}

// newFixture builds a PREPARED transfer record with a matching signed
// transaction and a submitter over memory stores.
func newFixture(t *testing.T, rpc *stub.RPCClient) *fixture {
	t.Helper()

	seed := make([]byte, ed25519.SeedSize)
	copy(seed, []byte("submitter-test-seed"))
	priv := ed25519.NewKeyFromSeed(seed)
	signer := base58.Encode(priv.Public().(ed25519.PublicKey))

	unsigned, err := solana.BuildTransferTransaction(signer, testRecipient, 1_000_000, testBlockhash)
	if err != nil {
		t.Fatalf("build transfer: %v", err)
	}
	decoded, err := solana.DecodeTransaction(unsigned)
	if err != nil {
		t.Fatalf("decode transfer: %v", err)
	}
	sig := ed25519.Sign(priv, decoded.Message)
	raw := append([]byte{1}, sig...)
	raw = append(raw, decoded.Message...)
	signedTx := base64.StdEncoding.EncodeToString(raw)

	records := memory.NewRecordStore()
	rec := &domain.TransactionRecord{
		ID:      idhash.ComputeRecordID("batch-1", string(domain.KindTransfer)),
		BatchID: "batch-1",
		Kind:    domain.KindTransfer,
		State:   domain.StatePrepared,
		Metadata: domain.RecordMetadata{
			Transfer: &domain.TransferMetadata{
				FromPubkey:           signer,
				ToPubkey:             testRecipient,
				Lamports:             1_000_000,
				Blockhash:            testBlockhash,
				LastValidBlockHeight: lastValid,
			},
		},
	}
	if err := records.Insert(context.Background(), rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	sub, err := NewSubmitter(Options{
		Records:        records,
		Audit:          memory.NewAuditStore(),
		RPC:            rpc,
		ConfirmTimeout: 2 * time.Second,
		PollInterval:   5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}
	return &fixture{submitter: sub, records: records, rpc: rpc, rec: rec, signedTx: signedTx, signer: signer}
}

func (f *fixture) storedState(t *testing.T) domain.RecordState {
	t.Helper()
	stored, err := f.records.GetByID(context.Background(), f.rec.ID)
	if err != nil {
		t.Fatalf("reload record: %v", err)
	}
	return stored.State
}

func TestExecute_ConfirmsViaPolling(t *testing.T) {
	f := newFixture(t, &stub.RPCClient{BlockHeight: 500})

	signature, err := f.submitter.Execute(context.Background(), f.rec, f.signedTx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if signature != "stubsignature" {
		t.Errorf("signature = %q, want stubsignature", signature)
	}
	if got := f.storedState(t); got != domain.StateSubmitted {
		t.Errorf("state = %s, want SUBMITTED until confirmation is stamped", got)
	}
}

func TestExecute_IdempotentOnConfirmed(t *testing.T) {
	f := newFixture(t, &stub.RPCClient{BlockHeight: 500})

	hash := "existingsignature"
	f.rec.State = domain.StateConfirmed
	f.rec.TxHash = &hash

	signature, err := f.submitter.Execute(context.Background(), f.rec, f.signedTx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if signature != hash {
		t.Errorf("signature = %q, want stored %q", signature, hash)
	}
	if f.rpc.SendCalls.Load() != 0 {
		t.Errorf("SendCalls = %d, want 0 for confirmed record", f.rpc.SendCalls.Load())
	}
}

func TestExecute_PreflightExpiry(t *testing.T) {
	f := newFixture(t, &stub.RPCClient{BlockHeight: lastValid + 1})

	_, err := f.submitter.Execute(context.Background(), f.rec, f.signedTx)
	if apperr.KindOf(err) != apperr.KindExpired {
		t.Fatalf("kind = %s, want %s (err=%v)", apperr.KindOf(err), apperr.KindExpired, err)
	}
	if !apperr.IsRetryable(err) {
		t.Error("expiry must be retryable")
	}
	if f.rpc.SendCalls.Load() != 0 {
		t.Errorf("SendCalls = %d, want 0 when anchor already expired", f.rpc.SendCalls.Load())
	}
	if got := f.storedState(t); got != domain.StatePrepared {
		t.Errorf("state = %s, want PREPARED after expiry", got)
	}
}

func TestExecute_SendExpirySignature(t *testing.T) {
	rpc := &stub.RPCClient{
		BlockHeight: 500,
		SendFunc: func(ctx context.Context, tx string) (string, error) {
			return "", &solana.RPCError{Code: -32002, Message: "Transaction simulation failed: Blockhash not found"}
		},
	}
	f := newFixture(t, rpc)

	_, err := f.submitter.Execute(context.Background(), f.rec, f.signedTx)
	if apperr.KindOf(err) != apperr.KindExpired {
		t.Fatalf("kind = %s, want %s", apperr.KindOf(err), apperr.KindExpired)
	}
	if got := f.storedState(t); got != domain.StatePrepared {
		t.Errorf("state = %s, want PREPARED", got)
	}
}

func TestExecute_SendSlippageSignature(t *testing.T) {
	rpc := &stub.RPCClient{
		BlockHeight: 500,
		SendFunc: func(ctx context.Context, tx string) (string, error) {
			return "", &solana.RPCError{Code: -32002, Message: "custom program error: 0x1771"}
		},
	}
	f := newFixture(t, rpc)

	_, err := f.submitter.Execute(context.Background(), f.rec, f.signedTx)
	if apperr.KindOf(err) != apperr.KindSlippage {
		t.Fatalf("kind = %s, want %s", apperr.KindOf(err), apperr.KindSlippage)
	}
	if !apperr.IsRetryable(err) {
		t.Error("slippage must be retryable")
	}
	if got := f.storedState(t); got != domain.StatePrepared {
		t.Errorf("state = %s, want PREPARED", got)
	}
}

func TestExecute_SendTerminalRejection(t *testing.T) {
	rpc := &stub.RPCClient{
		BlockHeight: 500,
		SendFunc: func(ctx context.Context, tx string) (string, error) {
			return "", &solana.RPCError{Code: -32002, Message: "insufficient funds for fee"}
		},
	}
	f := newFixture(t, rpc)

	_, err := f.submitter.Execute(context.Background(), f.rec, f.signedTx)
	if apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("kind = %s, want %s", apperr.KindOf(err), apperr.KindInternal)
	}
	if apperr.IsRetryable(err) {
		t.Error("terminal rejection must not be retryable")
	}

	stored, err := f.records.GetByID(context.Background(), f.rec.ID)
	if err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if stored.State != domain.StateFailed {
		t.Errorf("state = %s, want FAILED", stored.State)
	}
	if stored.Metadata.FailureReason == "" {
		t.Error("failure reason not persisted")
	}
}

func TestExecute_TransportErrorsRetriedThenRetryable(t *testing.T) {
	rpc := &stub.RPCClient{
		BlockHeight: 500,
		SendFunc: func(ctx context.Context, tx string) (string, error) {
			return "", context.DeadlineExceeded
		},
	}
	f := newFixture(t, rpc)

	_, err := f.submitter.Execute(context.Background(), f.rec, f.signedTx)
	if !apperr.IsRetryable(err) {
		t.Fatalf("exhausted transport retries must be retryable, got %v", err)
	}
	if got := f.rpc.SendCalls.Load(); got != DefaultSendRetries {
		t.Errorf("SendCalls = %d, want %d", got, DefaultSendRetries)
	}
	if got := f.storedState(t); got != domain.StateSubmitted {
		t.Errorf("state = %s, want SUBMITTED for safe resume", got)
	}
}

func TestExecute_RejectsWrongSigner(t *testing.T) {
	f := newFixture(t, &stub.RPCClient{BlockHeight: 500})

	otherSeed := make([]byte, ed25519.SeedSize)
	copy(otherSeed, []byte("a-different-wallet"))
	other := ed25519.NewKeyFromSeed(otherSeed)

	unsigned, err := solana.BuildTransferTransaction(
		base58.Encode(other.Public().(ed25519.PublicKey)), testRecipient, 1_000_000, testBlockhash)
	if err != nil {
		t.Fatalf("build transfer: %v", err)
	}
	decoded, _ := solana.DecodeTransaction(unsigned)
	sig := ed25519.Sign(other, decoded.Message)
	raw := append([]byte{1}, sig...)
	raw = append(raw, decoded.Message...)

	_, err = f.submitter.Execute(context.Background(), f.rec, base64.StdEncoding.EncodeToString(raw))
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("kind = %s, want %s", apperr.KindOf(err), apperr.KindValidation)
	}
	if f.rpc.SendCalls.Load() != 0 {
		t.Error("a transaction failing signer verification must not be relayed")
	}
}

func TestExecute_ConfirmPollClassifiesSlippage(t *testing.T) {
	rpc := &stub.RPCClient{
		BlockHeight: 500,
		StatusFunc: func(ctx context.Context, signature string) (*solana.SignatureStatus, error) {
			return &solana.SignatureStatus{
				Err: map[string]interface{}{"InstructionError": []interface{}{2, map[string]interface{}{"Custom": 6001}}},
			}, nil
		},
	}
	f := newFixture(t, rpc)

	_, err := f.submitter.Execute(context.Background(), f.rec, f.signedTx)
	if apperr.KindOf(err) != apperr.KindSlippage {
		t.Fatalf("kind = %s, want %s (err=%v)", apperr.KindOf(err), apperr.KindSlippage, err)
	}
}

func TestExecute_UnconfirmedPastAnchorExpires(t *testing.T) {
	rpc := &stub.RPCClient{
		BlockHeight: lastValid + 5,
		StatusFunc: func(ctx context.Context, signature string) (*solana.SignatureStatus, error) {
			return nil, nil
		},
	}
	f := newFixture(t, rpc)
	// Skip the preflight check by starting past it: mark SUBMITTED as a
	// resumed execution would.
	f.rec.State = domain.StateSubmitted
	if err := f.records.Update(context.Background(), f.rec); err != nil {
		t.Fatalf("update record: %v", err)
	}

	_, err := f.submitter.Execute(context.Background(), f.rec, f.signedTx)
	if apperr.KindOf(err) != apperr.KindExpired {
		t.Fatalf("kind = %s, want %s (err=%v)", apperr.KindOf(err), apperr.KindExpired, err)
	}
	if got := f.storedState(t); got != domain.StatePrepared {
		t.Errorf("state = %s, want PREPARED", got)
	}
}

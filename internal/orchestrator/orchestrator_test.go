package orchestrator

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"solana-dca-engine/internal/apperr"
	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/quote"
	"solana-dca-engine/internal/router"
	rstub "solana-dca-engine/internal/router/stub"
	"solana-dca-engine/internal/solana"
	sstub "solana-dca-engine/internal/solana/stub"
	"solana-dca-engine/internal/storage/memory"
	"solana-dca-engine/internal/submit"
	"solana-dca-engine/internal/txbuilder"
)

const (
	usdcMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	solMint   = "So11111111111111111111111111111111111111112"
	usdtMint  = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	recipient = "8pM1DN3RiT8vbom5u1sNryaNT1nyL8CTTW3b5PwWXRBH"
)

type fixture struct {
	orch    *Orchestrator
	records *memory.RecordStore
	goals   *memory.GoalStore
	rpc     *sstub.RPCClient
	router  *rstub.Router

	key    ed25519.PrivateKey
	signer string
}

func newFixture(t *testing.T, rpc *sstub.RPCClient, rt *rstub.Router, planner LegPlanner) *fixture {
	t.Helper()

	if rpc == nil {
		rpc = &sstub.RPCClient{BlockHeight: 500}
	}
	if rt == nil {
		rt = &rstub.Router{}
	}

	seed := make([]byte, ed25519.SeedSize)
	copy(seed, []byte("orchestrator-test-seed"))
	key := ed25519.NewKeyFromSeed(seed)
	signer := base58.Encode(key.Public().(ed25519.PublicKey))

	records := memory.NewRecordStore()
	goals := memory.NewGoalStore()

	acquirer, err := quote.NewAcquirer(quote.Options{Routing: rt})
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}
	builder, err := txbuilder.NewBuilder(txbuilder.Options{RPC: rpc, Routing: rt})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	submitter, err := submit.NewSubmitter(submit.Options{
		Records:        records,
		Audit:          memory.NewAuditStore(),
		RPC:            rpc,
		ConfirmTimeout: 2 * time.Second,
		PollInterval:   5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}

	orch, err := New(Options{
		Records:   records,
		Goals:     goals,
		Ledger:    memory.NewLedgerStore(records, goals),
		Audit:     memory.NewAuditStore(),
		Quotes:    acquirer,
		Builder:   builder,
		Submitter: submitter,
		Planner:   planner,
		RPC:       rpc,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{orch: orch, records: records, goals: goals, rpc: rpc, router: rt, key: key, signer: signer}
}

func (f *fixture) seedGoal(t *testing.T, target, invested string) *domain.Goal {
	t.Helper()
	g := &domain.Goal{
		ID:                "goal-1",
		OwnerID:           "owner-1",
		AssetSymbol:       "SOL",
		AssetMint:         solMint,
		AssetDecimals:     6,
		TargetAmount:      decimal.RequireFromString(target),
		InvestedAmount:    decimal.RequireFromString(invested),
		AmountPerInterval: decimal.RequireFromString("10"),
		Frequency:         domain.FrequencyWeekly,
		Status:            domain.GoalActive,
	}
	if err := f.goals.Insert(context.Background(), g); err != nil {
		t.Fatalf("seed goal: %v", err)
	}
	return g
}

// sign produces a signed transaction matching the record's anchor,
// standing in for the external wallet.
func (f *fixture) sign(t *testing.T, blockhash string) string {
	t.Helper()
	unsigned, err := solana.BuildTransferTransaction(f.signer, recipient, 1, blockhash)
	if err != nil {
		t.Fatalf("build signable transaction: %v", err)
	}
	decoded, err := solana.DecodeTransaction(unsigned)
	if err != nil {
		t.Fatalf("decode signable transaction: %v", err)
	}
	sig := ed25519.Sign(f.key, decoded.Message)
	raw := append([]byte{1}, sig...)
	raw = append(raw, decoded.Message...)
	return base64.StdEncoding.EncodeToString(raw)
}

func (f *fixture) prepare(t *testing.T, batchID string) *PreparedSwap {
	t.Helper()
	prepared, err := f.orch.PrepareSwap(context.Background(), PrepareSwapRequest{
		BatchID:         batchID,
		GoalID:          "goal-1",
		InputMint:       usdcMint,
		InputDecimals:   6,
		AmountBaseUnits: 10_000_000,
		SignerPubkey:    f.signer,
	})
	if err != nil {
		t.Fatalf("PrepareSwap failed: %v", err)
	}
	return prepared
}

func TestPrepareSwap_CreatesDepositAndSwapLeg(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.seedGoal(t, "100", "0")

	prepared := f.prepare(t, "batch-1")
	if prepared.Quote == nil || prepared.Unsigned == nil {
		t.Fatal("prepare payload incomplete")
	}
	if prepared.Record.Kind != domain.KindSwap {
		t.Errorf("leg kind = %s, want SWAP", prepared.Record.Kind)
	}
	if prepared.Record.State != domain.StatePrepared {
		t.Errorf("leg state = %s, want PREPARED", prepared.Record.State)
	}

	recs, err := f.records.GetByBatch(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("GetByBatch: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2 (deposit + swap)", len(recs))
	}
	var kinds []domain.RecordKind
	for _, r := range recs {
		kinds = append(kinds, r.Kind)
	}
	if kinds[0] != domain.KindDepositSimulation && kinds[1] != domain.KindDepositSimulation {
		t.Errorf("no deposit simulation record among %v", kinds)
	}
}

func TestPrepareSwap_ReplayReturnsStoredPayloadWithoutRequoting(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.seedGoal(t, "100", "0")

	first := f.prepare(t, "batch-1")
	quoteCalls := f.router.QuoteCalls.Load()

	second := f.prepare(t, "batch-1")
	if f.router.QuoteCalls.Load() != quoteCalls {
		t.Error("replayed prepare must not fetch a new quote")
	}
	if second.Record.ID != first.Record.ID {
		t.Errorf("replay returned record %s, want %s", second.Record.ID, first.Record.ID)
	}
	if second.Unsigned == nil || second.Unsigned.Base64 != first.Unsigned.Base64 {
		t.Error("replay must return the stored unsigned transaction")
	}
	if second.Quote == nil || second.Quote.QuoteID != first.Quote.QuoteID {
		t.Error("replay must return the stored quote")
	}
}

func TestPrepareSwap_ReplayPreservesQuoteEconomics(t *testing.T) {
	expires := time.Now().UTC().Add(45 * time.Second).Truncate(time.Second)
	rt := &rstub.Router{
		QuoteFunc: func(ctx context.Context, req router.QuoteRequest) (*domain.Quote, error) {
			return &domain.Quote{
				QuoteID:        "quote-fixed",
				InputMint:      req.InputMint,
				OutputMint:     req.OutputMint,
				InAmount:       req.Amount,
				OutAmount:      req.Amount,
				MinOutAmount:   req.Amount - req.Amount*uint64(req.SlippageBps)/10000,
				SlippageBps:    req.SlippageBps,
				PriceImpactPct: 0.25,
				ExpiresAt:      expires,
			}, nil
		},
	}
	f := newFixture(t, nil, rt, nil)
	f.seedGoal(t, "100", "0")

	first := f.prepare(t, "batch-1")
	if first.Quote.PriceImpactPct != 0.25 {
		t.Fatalf("first prepare price impact = %v, want 0.25", first.Quote.PriceImpactPct)
	}

	second := f.prepare(t, "batch-1")
	if second.Quote.PriceImpactPct != 0.25 {
		t.Errorf("replayed price impact = %v, want 0.25", second.Quote.PriceImpactPct)
	}
	if !second.Quote.ExpiresAt.Equal(expires) {
		t.Errorf("replayed expiry = %v, want %v", second.Quote.ExpiresAt, expires)
	}
}

func TestPrepareSwap_RejectsPausedAndCompletedGoals(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	g := f.seedGoal(t, "100", "0")
	ctx := context.Background()

	if err := f.goals.UpdateStatus(ctx, g.ID, domain.GoalActive, domain.GoalPaused); err != nil {
		t.Fatalf("pause goal: %v", err)
	}
	_, err := f.orch.PrepareSwap(ctx, PrepareSwapRequest{
		GoalID: g.ID, InputMint: usdcMint, InputDecimals: 6, AmountBaseUnits: 1, SignerPubkey: f.signer,
	})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("paused goal: kind = %s, want %s", apperr.KindOf(err), apperr.KindValidation)
	}
}

func TestExecuteSwap_ConfirmsAndAppliesLedger(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.seedGoal(t, "100", "0")
	ctx := context.Background()

	prepared := f.prepare(t, "batch-1")
	signed := f.sign(t, prepared.Unsigned.Anchor.Blockhash)

	res, err := f.orch.ExecuteSwap(ctx, ExecuteSwapRequest{BatchID: "batch-1", SignedTransaction: signed})
	if err != nil {
		t.Fatalf("ExecuteSwap failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.NetworkReference == "" {
		t.Error("network reference missing")
	}

	g, err := f.goals.GetByID(ctx, "goal-1")
	if err != nil {
		t.Fatalf("reload goal: %v", err)
	}
	// 10 USDC in at the stub's 1:1 rate, goal asset has 6 decimals.
	if !g.InvestedAmount.Equal(decimal.RequireFromString("10")) {
		t.Errorf("invested = %s, want 10", g.InvestedAmount)
	}

	rec, err := f.records.GetByID(ctx, prepared.Record.ID)
	if err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if rec.State != domain.StateConfirmed {
		t.Errorf("record state = %s, want CONFIRMED", rec.State)
	}
	if rec.TxHash == nil || *rec.TxHash != res.NetworkReference {
		t.Error("record network reference not stamped")
	}

	// Replayed execute is a no-op returning the stored reference.
	again, err := f.orch.ExecuteSwap(ctx, ExecuteSwapRequest{BatchID: "batch-1", SignedTransaction: signed})
	if err != nil {
		t.Fatalf("replayed ExecuteSwap failed: %v", err)
	}
	if !again.Success || again.NetworkReference != res.NetworkReference {
		t.Errorf("replay = %+v, want stored success", again)
	}
}

func TestExecuteSwap_LedgerCreditsSettledFill(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.seedGoal(t, "100", "0")
	ctx := context.Background()

	prepared := f.prepare(t, "batch-1")
	if prepared.Quote.OutAmount != 10_000_000 {
		t.Fatalf("quoted out = %d, want 10000000", prepared.Quote.OutAmount)
	}

	// The chain delivers less than quoted: the signer's balance of the
	// goal asset grows by 9.95 instead of the quoted 10.
	f.rpc.TransactionFunc = func(ctx context.Context, signature string) (*solana.TransactionDetail, error) {
		return &solana.TransactionDetail{
			PreTokenBalances: []solana.TokenBalance{
				{Mint: solMint, Owner: f.signer, Amount: 1_000},
			},
			PostTokenBalances: []solana.TokenBalance{
				{Mint: solMint, Owner: f.signer, Amount: 1_000 + 9_950_000},
			},
		}, nil
	}

	res, err := f.orch.ExecuteSwap(ctx, ExecuteSwapRequest{
		BatchID: "batch-1", SignedTransaction: f.sign(t, prepared.Unsigned.Anchor.Blockhash),
	})
	if err != nil {
		t.Fatalf("ExecuteSwap failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	g, err := f.goals.GetByID(ctx, "goal-1")
	if err != nil {
		t.Fatalf("reload goal: %v", err)
	}
	if !g.InvestedAmount.Equal(decimal.RequireFromString("9.95")) {
		t.Errorf("invested = %s, want the settled 9.95, not the quoted 10", g.InvestedAmount)
	}

	rec, err := f.records.GetByID(ctx, prepared.Record.ID)
	if err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if !rec.AmountAsset.Equal(decimal.RequireFromString("9.95")) {
		t.Errorf("record amount = %s, want 9.95", rec.AmountAsset)
	}
}

func TestExecuteSwap_CompletesGoalExactlyAtIncrement(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.seedGoal(t, "1.0", "0.999999")
	ctx := context.Background()

	prepared, err := f.orch.PrepareSwap(ctx, PrepareSwapRequest{
		BatchID: "batch-1", GoalID: "goal-1",
		InputMint: usdcMint, InputDecimals: 6,
		AmountBaseUnits: 2, // 1:1 stub rate, 6 decimals: 0.000002
		SignerPubkey:    f.signer,
	})
	if err != nil {
		t.Fatalf("PrepareSwap failed: %v", err)
	}

	res, err := f.orch.ExecuteSwap(ctx, ExecuteSwapRequest{
		BatchID: "batch-1", SignedTransaction: f.sign(t, prepared.Unsigned.Anchor.Blockhash),
	})
	if err != nil {
		t.Fatalf("ExecuteSwap failed: %v", err)
	}
	if !res.GoalCompleted {
		t.Error("expected goal completion")
	}

	g, err := f.goals.GetByID(ctx, "goal-1")
	if err != nil {
		t.Fatalf("reload goal: %v", err)
	}
	if !g.InvestedAmount.Equal(decimal.RequireFromString("1.000001")) {
		t.Errorf("invested = %s, want 1.000001", g.InvestedAmount)
	}
	if g.Status != domain.GoalCompleted {
		t.Errorf("status = %s, want COMPLETED", g.Status)
	}
}

func TestExecuteSwap_ExpiryRefreshesWithSameBatch(t *testing.T) {
	rpc := &sstub.RPCClient{BlockHeight: 500}
	f := newFixture(t, rpc, nil, nil)
	f.seedGoal(t, "100", "0")
	ctx := context.Background()

	prepared := f.prepare(t, "batch-1")
	signed := f.sign(t, prepared.Unsigned.Anchor.Blockhash)

	// The anchor's validity window elapses before execution.
	rpc.BlockHeight = prepared.Unsigned.Anchor.LastValidBlockHeight + 1

	res, err := f.orch.ExecuteSwap(ctx, ExecuteSwapRequest{BatchID: "batch-1", SignedTransaction: signed})
	if err != nil {
		t.Fatalf("ExecuteSwap failed: %v", err)
	}
	if res.Success || !res.Retryable {
		t.Fatalf("expected retryable result, got %+v", res)
	}
	if res.Code != apperr.KindExpired {
		t.Errorf("code = %s, want %s", res.Code, apperr.KindExpired)
	}
	if res.RefreshCount != 1 {
		t.Errorf("refresh count = %d, want 1", res.RefreshCount)
	}
	if res.NewUnsignedTransaction == nil || res.NewQuote == nil {
		t.Error("refreshed payload missing")
	}

	rec, err := f.records.GetByID(ctx, prepared.Record.ID)
	if err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if rec.BatchID != "batch-1" {
		t.Errorf("batch changed to %s", rec.BatchID)
	}
	if rec.State != domain.StatePrepared {
		t.Errorf("state = %s, want PREPARED", rec.State)
	}
	if rec.Metadata.RefreshCount != 1 {
		t.Errorf("persisted refresh count = %d, want 1", rec.Metadata.RefreshCount)
	}
}

func TestExecuteSwap_SlippageEscalatesThenExhausts(t *testing.T) {
	rpc := &sstub.RPCClient{
		BlockHeight: 500,
		SendFunc: func(ctx context.Context, tx string) (string, error) {
			return "", &solana.RPCError{Code: -32002, Message: "custom program error: 0x1771"}
		},
	}
	f := newFixture(t, rpc, nil, nil)
	f.seedGoal(t, "100", "0")
	ctx := context.Background()

	prepared := f.prepare(t, "batch-1")
	signed := f.sign(t, prepared.Unsigned.Anchor.Blockhash)

	wantBps := []int{100, 150, 200}
	for i, want := range wantBps {
		res, err := f.orch.ExecuteSwap(ctx, ExecuteSwapRequest{BatchID: "batch-1", SignedTransaction: signed})
		if err != nil {
			t.Fatalf("escalation %d failed: %v", i, err)
		}
		if !res.Retryable || res.Code != apperr.KindSlippage {
			t.Fatalf("escalation %d: got %+v", i, res)
		}
		if res.NewSlippageBps != want {
			t.Errorf("escalation %d: bps = %d, want %d", i, res.NewSlippageBps, want)
		}
	}

	// Past the ceiling: terminal.
	_, err := f.orch.ExecuteSwap(ctx, ExecuteSwapRequest{BatchID: "batch-1", SignedTransaction: signed})
	if apperr.KindOf(err) != apperr.KindSlippage {
		t.Fatalf("kind = %s, want %s", apperr.KindOf(err), apperr.KindSlippage)
	}
	if apperr.IsRetryable(err) {
		t.Error("ladder exhaustion must be terminal")
	}

	rec, err2 := f.records.GetByID(ctx, prepared.Record.ID)
	if err2 != nil {
		t.Fatalf("reload record: %v", err2)
	}
	if rec.State != domain.StateFailed {
		t.Errorf("state = %s, want FAILED", rec.State)
	}
	if rec.Metadata.FailureReason == "" {
		t.Error("failure reason not persisted")
	}
}

func TestExecuteSwap_TwoLegChaining(t *testing.T) {
	f := newFixture(t, nil, &rstub.Router{OutPerIn: 2}, TwoLegPlanner{IntermediateMint: usdtMint})
	f.seedGoal(t, "1000", "0")
	ctx := context.Background()

	prepared := f.prepare(t, "batch-1")
	if prepared.Record.Kind != domain.KindIntermediateSwap {
		t.Fatalf("first leg kind = %s, want INTERMEDIATE_SWAP", prepared.Record.Kind)
	}

	res, err := f.orch.ExecuteSwap(ctx, ExecuteSwapRequest{
		BatchID: "batch-1", SignedTransaction: f.sign(t, prepared.Unsigned.Anchor.Blockhash),
	})
	if err != nil {
		t.Fatalf("leg 1 execute failed: %v", err)
	}
	if !res.NextLeg || res.NewUnsignedTransaction == nil {
		t.Fatalf("expected next-leg payload, got %+v", res)
	}
	// Leg 2 input derives from leg 1's confirmed output: 10e6 * 2.
	if res.NewQuote.InAmount != 20_000_000 {
		t.Errorf("leg 2 in amount = %d, want 20000000", res.NewQuote.InAmount)
	}

	final, err := f.orch.ExecuteSwap(ctx, ExecuteSwapRequest{
		BatchID: "batch-1", SignedTransaction: f.sign(t, res.NewUnsignedTransaction.Anchor.Blockhash),
	})
	if err != nil {
		t.Fatalf("leg 2 execute failed: %v", err)
	}
	if !final.Success {
		t.Fatalf("expected success, got %+v", final)
	}

	g, err := f.goals.GetByID(ctx, "goal-1")
	if err != nil {
		t.Fatalf("reload goal: %v", err)
	}
	// 20e6 intermediate units doubled again by the stub: 40e6 base, 6 decimals.
	if !g.InvestedAmount.Equal(decimal.RequireFromString("40")) {
		t.Errorf("invested = %s, want 40", g.InvestedAmount)
	}
}

func TestExecuteSwap_SecondLegStartsFromSettledOutput(t *testing.T) {
	f := newFixture(t, nil, &rstub.Router{OutPerIn: 2}, TwoLegPlanner{IntermediateMint: usdtMint})
	f.seedGoal(t, "1000", "0")
	ctx := context.Background()

	prepared := f.prepare(t, "batch-1")

	// Leg 1 quotes 20e6 intermediate units but settles at 19e6; leg 2
	// must start from what was actually received.
	f.rpc.TransactionFunc = func(ctx context.Context, signature string) (*solana.TransactionDetail, error) {
		return &solana.TransactionDetail{
			PostTokenBalances: []solana.TokenBalance{
				{Mint: usdtMint, Owner: f.signer, Amount: 19_000_000},
			},
		}, nil
	}

	res, err := f.orch.ExecuteSwap(ctx, ExecuteSwapRequest{
		BatchID: "batch-1", SignedTransaction: f.sign(t, prepared.Unsigned.Anchor.Blockhash),
	})
	if err != nil {
		t.Fatalf("leg 1 execute failed: %v", err)
	}
	if !res.NextLeg || res.NewQuote == nil {
		t.Fatalf("expected next-leg payload, got %+v", res)
	}
	if res.NewQuote.InAmount != 19_000_000 {
		t.Errorf("leg 2 in amount = %d, want the settled 19000000", res.NewQuote.InAmount)
	}
}

func TestTransfer_PrepareSubmitAndRefresh(t *testing.T) {
	rpc := &sstub.RPCClient{BlockHeight: 500}
	f := newFixture(t, rpc, nil, nil)
	ctx := context.Background()

	prepared, err := f.orch.PrepareTransfer(ctx, PrepareTransferRequest{
		BatchID:    "transfer-1",
		FromPubkey: f.signer,
		ToPubkey:   recipient,
		Lamports:   1_000_000,
	})
	if err != nil {
		t.Fatalf("PrepareTransfer failed: %v", err)
	}
	if prepared.Record.Kind != domain.KindTransfer {
		t.Fatalf("kind = %s, want TRANSFER", prepared.Record.Kind)
	}

	// Replay returns the stored payload.
	replay, err := f.orch.PrepareTransfer(ctx, PrepareTransferRequest{
		BatchID: "transfer-1", FromPubkey: f.signer, ToPubkey: recipient, Lamports: 1_000_000,
	})
	if err != nil {
		t.Fatalf("replayed PrepareTransfer failed: %v", err)
	}
	if replay.Unsigned == nil || replay.Unsigned.Base64 != prepared.Unsigned.Base64 {
		t.Error("replay must return the stored unsigned transaction")
	}

	// Expired anchor: submit returns a refreshed payload.
	rpc.BlockHeight = prepared.Unsigned.Anchor.LastValidBlockHeight + 1
	res, err := f.orch.SubmitTransfer(ctx, "transfer-1", f.sign(t, prepared.Unsigned.Anchor.Blockhash))
	if err != nil {
		t.Fatalf("SubmitTransfer failed: %v", err)
	}
	if !res.Retryable || res.Code != apperr.KindExpired || res.RefreshedPayload == nil {
		t.Fatalf("expected refreshed payload, got %+v", res)
	}
	if res.RefreshCount != 1 {
		t.Errorf("refresh count = %d, want 1", res.RefreshCount)
	}

	// Anchor valid again: submit lands.
	rpc.BlockHeight = 500
	final, err := f.orch.SubmitTransfer(ctx, "transfer-1", f.sign(t, res.RefreshedPayload.Anchor.Blockhash))
	if err != nil {
		t.Fatalf("final SubmitTransfer failed: %v", err)
	}
	if !final.Success || final.NetworkReference == "" {
		t.Fatalf("expected success, got %+v", final)
	}

	rec, err := f.records.GetByID(ctx, prepared.Record.ID)
	if err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if rec.State != domain.StateConfirmed {
		t.Errorf("state = %s, want CONFIRMED", rec.State)
	}
}

// Package orchestrator coordinates the swap execution flow.
// It drives: idempotent prepare → quote → unsigned transaction →
// (external client signature) → submission → confirmation → ledger,
// with anchor refresh and slippage escalation as failure side loops.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"solana-dca-engine/internal/apperr"
	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/guard"
	"solana-dca-engine/internal/idhash"
	"solana-dca-engine/internal/observability"
	"solana-dca-engine/internal/quote"
	"solana-dca-engine/internal/slippage"
	"solana-dca-engine/internal/solana"
	"solana-dca-engine/internal/storage"
	"solana-dca-engine/internal/submit"
	"solana-dca-engine/internal/txbuilder"
	"solana-dca-engine/internal/units"
)

// Extra metadata keys used to persist the prepare payload, so duplicate
// prepares return the same response and submits resume with no
// in-memory state.
const (
	extraUnsignedTx  = "unsigned_tx"
	extraFeeLamports = "fee_lamports"
)

// Orchestrator coordinates the swap execution flow end to end.
type Orchestrator struct {
	guard     *guard.Guard
	records   storage.RecordStore
	goals     storage.GoalStore
	ledger    storage.LedgerStore
	audit     storage.AuditStore
	quotes    *quote.Acquirer
	builder   *txbuilder.Builder
	submitter *submit.Submitter
	ladder    *slippage.Ladder
	planner   LegPlanner
	rpc       solana.RPCClient

	provider string
	network  string
	logger   *log.Logger
}

// Options for creating Orchestrator.
type Options struct {
	Records   storage.RecordStore
	Goals     storage.GoalStore
	Ledger    storage.LedgerStore
	Audit     storage.AuditStore
	Quotes    *quote.Acquirer
	Builder   *txbuilder.Builder
	Submitter *submit.Submitter

	// Ladder defaults to the 50/100/150/200 bps ladder.
	Ladder *slippage.Ladder
	// Planner defaults to SingleLegPlanner.
	Planner LegPlanner
	// RPC, when set, resolves confirmed fills from on-chain token
	// balance deltas; without it the ledger credits quoted amounts.
	RPC solana.RPCClient

	Provider string
	Network  string
	Logger   *log.Logger
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Records == nil:
		return nil, errors.New("record store is required")
	case opts.Goals == nil:
		return nil, errors.New("goal store is required")
	case opts.Ledger == nil:
		return nil, errors.New("ledger store is required")
	case opts.Audit == nil:
		return nil, errors.New("audit store is required")
	case opts.Quotes == nil:
		return nil, errors.New("quote acquirer is required")
	case opts.Builder == nil:
		return nil, errors.New("transaction builder is required")
	case opts.Submitter == nil:
		return nil, errors.New("submitter is required")
	}

	o := &Orchestrator{
		guard:     guard.New(opts.Records),
		records:   opts.Records,
		goals:     opts.Goals,
		ledger:    opts.Ledger,
		audit:     opts.Audit,
		quotes:    opts.Quotes,
		builder:   opts.Builder,
		submitter: opts.Submitter,
		ladder:    opts.Ladder,
		planner:   opts.Planner,
		rpc:       opts.RPC,
		provider:  opts.Provider,
		network:   opts.Network,
		logger:    opts.Logger,
	}
	if o.ladder == nil {
		o.ladder = slippage.DefaultLadder()
	}
	if o.planner == nil {
		o.planner = SingleLegPlanner{}
	}
	if o.provider == "" {
		o.provider = "jupiter"
	}
	if o.network == "" {
		o.network = "mainnet"
	}
	if o.logger == nil {
		o.logger = log.New(log.Writer(), "[orchestrator] ", log.LstdFlags)
	}
	return o, nil
}

// PrepareSwapRequest is the quote-mode input of the swap endpoint.
type PrepareSwapRequest struct {
	// BatchID correlates the operation's phases; generated when empty.
	BatchID string
	GoalID  string

	InputMint       string
	InputDecimals   int
	AmountBaseUnits uint64

	// ToleranceBps defaults to the ladder's first step.
	ToleranceBps int

	// SignerPubkey is the wallet that will sign the transaction.
	SignerPubkey string
}

// PreparedSwap is the quote-mode response payload.
type PreparedSwap struct {
	BatchID  string
	Record   *domain.TransactionRecord
	Quote    *domain.Quote
	Unsigned *domain.UnsignedTransaction
}

// PrepareSwap runs the prepare phase: a simulated deposit entry and the
// first swap leg's record, quote, and unsigned transaction, all under
// the idempotency guard. Calling it again with the same batch returns
// the stored payload without re-quoting.
func (o *Orchestrator) PrepareSwap(ctx context.Context, req PrepareSwapRequest) (*PreparedSwap, error) {
	if req.GoalID == "" {
		return nil, apperr.Validation("goal id is required")
	}
	if req.SignerPubkey == "" {
		return nil, apperr.Validation("signer pubkey is required")
	}
	if req.AmountBaseUnits == 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	if req.InputMint == "" {
		return nil, apperr.Validation("input mint is required")
	}
	if req.InputDecimals < 0 || req.InputDecimals > units.MaxDecimals {
		return nil, apperr.Validation("input decimals must be between 0 and %d", units.MaxDecimals)
	}
	toleranceBps := req.ToleranceBps
	if toleranceBps == 0 {
		toleranceBps = o.ladder.First()
	}
	if toleranceBps < 0 || toleranceBps > o.ladder.Ceiling() {
		return nil, apperr.Validation("slippage tolerance %d bps outside allowed range (max %d)", toleranceBps, o.ladder.Ceiling())
	}

	goal, err := o.goals.GetByID(ctx, req.GoalID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("goal %s not found", req.GoalID)
		}
		return nil, apperr.Internal("load goal", err)
	}
	switch goal.Status {
	case domain.GoalPaused:
		return nil, apperr.Validation("goal %s is paused", goal.ID)
	case domain.GoalCompleted:
		return nil, apperr.Validation("goal %s is already completed", goal.ID)
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}

	depositAmount, err := units.FromBaseUnits(req.AmountBaseUnits, req.InputDecimals)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	// Simulated deposit entry, at most one per batch.
	_, created, err := o.guard.EnsureOnce(ctx, batchID, domain.KindDepositSimulation, func(ctx context.Context) (*domain.TransactionRecord, error) {
		return &domain.TransactionRecord{
			ID:         idhash.ComputeRecordID(batchID, string(domain.KindDepositSimulation)),
			BatchID:    batchID,
			GoalID:     goal.ID,
			Kind:       domain.KindDepositSimulation,
			Provider:   o.provider,
			Network:    o.network,
			State:      domain.StateConfirmed,
			AmountFiat: depositAmount,
			AssetMint:  req.InputMint,
			Metadata:   domain.RecordMetadata{Deposit: &domain.DepositMetadata{Simulated: true}},
		}, nil
	})
	if err != nil {
		return nil, apperr.Internal("record simulated deposit", err)
	}
	if created {
		o.auditEvent(ctx, batchID, domain.KindDepositSimulation, domain.PhasePrepare, "created", fmt.Sprintf("simulated deposit of %s", depositAmount))
	}
	observability.RecordPrepare(string(domain.KindDepositSimulation), prepareOutcome(created))

	legs := o.planner.Plan(req.InputMint, goal.AssetMint)
	first := legs[0]

	return o.prepareLeg(ctx, batchID, goal, first, req.AmountBaseUnits, toleranceBps, req.SignerPubkey, depositAmount)
}

// prepareLeg guards the creation of one swap-leg record with its quote
// and unsigned transaction. A lost race returns the winner's payload.
func (o *Orchestrator) prepareLeg(ctx context.Context, batchID string, goal *domain.Goal, leg Leg, amountBaseUnits uint64, toleranceBps int, signer string, amountFiat decimal.Decimal) (*PreparedSwap, error) {
	var (
		builtQuote    *domain.Quote
		builtUnsigned *domain.UnsignedTransaction
	)

	rec, created, err := o.guard.EnsureOnce(ctx, batchID, leg.Kind, func(ctx context.Context) (*domain.TransactionRecord, error) {
		q, qerr := o.quotes.Acquire(ctx, leg.InputMint, leg.OutputMint, amountBaseUnits, toleranceBps)
		if qerr != nil {
			observability.RecordQuoteFailure(string(apperr.KindOf(qerr)))
			o.auditEvent(ctx, batchID, leg.Kind, domain.PhasePrepare, "quote_failed", qerr.Error())
			return nil, qerr
		}
		observability.RecordQuoteAcquired(strconv.Itoa(q.SlippageBps))

		unsigned, berr := o.builder.BuildSwap(ctx, q, signer)
		if berr != nil {
			o.auditEvent(ctx, batchID, leg.Kind, domain.PhasePrepare, "build_failed", berr.Error())
			return nil, apperr.Internal("build unsigned transaction", berr)
		}

		expectedOut, cerr := units.FromBaseUnits(q.OutAmount, goal.AssetDecimals)
		if cerr != nil {
			return nil, apperr.Internal("convert expected out amount", cerr)
		}

		builtQuote = q
		builtUnsigned = unsigned

		return &domain.TransactionRecord{
			ID:          idhash.ComputeRecordID(batchID, string(leg.Kind)),
			BatchID:     batchID,
			GoalID:      goal.ID,
			Kind:        leg.Kind,
			Provider:    o.provider,
			Network:     o.network,
			State:       domain.StatePrepared,
			AmountFiat:  amountFiat,
			AmountAsset: expectedOut,
			AssetMint:   leg.OutputMint,
			Metadata: domain.RecordMetadata{
				Swap: &domain.SwapMetadata{
					QuoteID:              q.QuoteID,
					InputMint:            q.InputMint,
					OutputMint:           q.OutputMint,
					InAmount:             q.InAmount,
					OutAmount:            q.OutAmount,
					MinOutAmount:         q.MinOutAmount,
					SlippageBps:          q.SlippageBps,
					SignerPubkey:         signer,
					PriceImpactPct:       q.PriceImpactPct,
					QuoteExpiresAt:       q.ExpiresAt,
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
	observability.RecordPrepare(string(leg.Kind), prepareOutcome(created))

	if created {
		o.auditEvent(ctx, batchID, leg.Kind, domain.PhasePrepare, "created",
			fmt.Sprintf("quote %s at %d bps", builtQuote.QuoteID, builtQuote.SlippageBps))
		return &PreparedSwap{BatchID: batchID, Record: rec, Quote: builtQuote, Unsigned: builtUnsigned}, nil
	}

	// Lost the race or replayed: reconstruct the payload from the row.
	return &PreparedSwap{
		BatchID:  batchID,
		Record:   rec,
		Quote:    quoteFromRecord(rec),
		Unsigned: unsignedFromRecord(rec),
	}, nil
}

// ExecuteSwapRequest is the execute-mode input of the swap endpoint.
type ExecuteSwapRequest struct {
	BatchID           string
	SignedTransaction string
}

// ExecuteSwapResult reports the outcome of one execute call. Retryable
// outcomes carry the refreshed payload the client must sign anew.
type ExecuteSwapResult struct {
	Success          bool
	Retryable        bool
	Code             apperr.Kind
	NetworkReference string
	GoalCompleted    bool

	// NextLeg is true when this confirmation unlocked the batch's next
	// swap leg, whose payload is attached for signing.
	NextLeg bool

	NewQuote               *domain.Quote
	NewUnsignedTransaction *domain.UnsignedTransaction
	NewSlippageBps         int
	RefreshCount           int
}

// ExecuteSwap submits the signed transaction of the batch's active leg
// and reconciles the confirmed result into the ledger. Expiry and
// slippage rejections come back as retryable results with a rebuilt
// payload; exhausting the slippage ladder is terminal.
func (o *Orchestrator) ExecuteSwap(ctx context.Context, req ExecuteSwapRequest) (*ExecuteSwapResult, error) {
	if req.BatchID == "" {
		return nil, apperr.Validation("batch id is required")
	}
	if req.SignedTransaction == "" {
		return nil, apperr.Validation("signed transaction is required")
	}

	active, done, err := o.activeLeg(ctx, req.BatchID)
	if err != nil {
		return nil, err
	}
	if done != nil {
		// Every leg already confirmed: idempotent success.
		return &ExecuteSwapResult{Success: true, NetworkReference: *done.TxHash}, nil
	}

	goal, err := o.goals.GetByID(ctx, active.GoalID)
	if err != nil {
		return nil, apperr.Internal("load goal", err)
	}

	signature, err := o.submitter.Execute(ctx, active, req.SignedTransaction)
	if err != nil {
		return o.handleExecuteFailure(ctx, active, goal, err)
	}
	observability.RecordSubmission("confirmed")

	if active.Kind == domain.KindIntermediateSwap {
		return o.confirmIntermediateLeg(ctx, active, goal, signature)
	}

	received, err := units.FromBaseUnits(o.settledOutAmount(ctx, active, signature), goal.AssetDecimals)
	if err != nil {
		return nil, apperr.Internal("convert received amount", err)
	}
	updatedGoal, err := o.ledger.ApplyConfirmedSwap(ctx, active, signature, received)
	if err != nil {
		o.auditEvent(ctx, active.BatchID, active.Kind, domain.PhaseLedger, "apply_failed", err.Error())
		return nil, apperr.Internal("apply confirmed swap to ledger", err)
	}
	completed := updatedGoal.Status == domain.GoalCompleted
	observability.RecordLedgerCommit(completed)
	o.auditEvent(ctx, active.BatchID, active.Kind, domain.PhaseLedger, "applied",
		fmt.Sprintf("invested %s, goal %s now %s", received, updatedGoal.ID, updatedGoal.Status))
	o.logger.Printf("batch %s confirmed %s, goal %s invested=%s status=%s",
		active.BatchID, signature, updatedGoal.ID, updatedGoal.InvestedAmount, updatedGoal.Status)

	return &ExecuteSwapResult{
		Success:          true,
		NetworkReference: signature,
		GoalCompleted:    completed,
	}, nil
}

// confirmIntermediateLeg stamps the intermediate leg and prepares the
// final leg from its confirmed output amount.
func (o *Orchestrator) confirmIntermediateLeg(ctx context.Context, rec *domain.TransactionRecord, goal *domain.Goal, signature string) (*ExecuteSwapResult, error) {
	settled := o.settledOutAmount(ctx, rec, signature)
	rec.State = domain.StateConfirmed
	rec.TxHash = &signature
	if err := o.records.Update(ctx, rec); err != nil {
		return nil, apperr.Internal("stamp intermediate leg", err)
	}
	o.auditEvent(ctx, rec.BatchID, rec.Kind, domain.PhaseConfirm, "leg_confirmed", signature)

	next := Leg{
		Kind:       domain.KindSwap,
		InputMint:  rec.Metadata.Swap.OutputMint,
		OutputMint: goal.AssetMint,
	}
	prepared, err := o.prepareLeg(ctx, rec.BatchID, goal, next, settled, o.ladder.First(), rec.Metadata.Swap.SignerPubkey, decimal.Zero)
	if err != nil {
		return nil, err
	}

	return &ExecuteSwapResult{
		Retryable:              true,
		NextLeg:                true,
		NewQuote:               prepared.Quote,
		NewUnsignedTransaction: prepared.Unsigned,
		NewSlippageBps:         prepared.Record.Metadata.Swap.SlippageBps,
	}, nil
}

// settledOutAmount resolves a confirmed leg's output from the
// transaction's token balance deltas. Falls back to the quoted amount
// when no RPC client is wired or the balances are not observable.
func (o *Orchestrator) settledOutAmount(ctx context.Context, rec *domain.TransactionRecord, signature string) uint64 {
	m := rec.Metadata.Swap
	if o.rpc == nil {
		return m.OutAmount
	}
	detail, err := o.rpc.GetTransaction(ctx, signature)
	if err != nil {
		o.logger.Printf("batch %s: balance lookup for %s failed, crediting quoted amount: %v",
			rec.BatchID, signature, err)
		return m.OutAmount
	}
	actual, ok := detail.ReceivedAmount(m.SignerPubkey, m.OutputMint)
	if !ok {
		return m.OutAmount
	}
	if actual != m.OutAmount {
		o.logger.Printf("batch %s: settled %d base units of %s against quoted %d",
			rec.BatchID, actual, m.OutputMint, m.OutAmount)
	}
	return actual
}

// handleExecuteFailure turns the submitter's classified failures into
// retryable payloads (refresh, escalation) or terminal errors.
func (o *Orchestrator) handleExecuteFailure(ctx context.Context, rec *domain.TransactionRecord, goal *domain.Goal, err error) (*ExecuteSwapResult, error) {
	switch apperr.KindOf(err) {
	case apperr.KindExpired:
		observability.RecordSubmission("expired")
		return o.refreshLeg(ctx, rec, goal)

	case apperr.KindSlippage:
		observability.RecordSubmission("slippage")
		return o.escalateLeg(ctx, rec, goal)

	default:
		observability.RecordSubmission("failed")
		return nil, err
	}
}

// refreshLeg rebuilds the leg against a fresh anchor at the same
// tolerance, incrementing the refresh counter by exactly one.
func (o *Orchestrator) refreshLeg(ctx context.Context, rec *domain.TransactionRecord, goal *domain.Goal) (*ExecuteSwapResult, error) {
	m := rec.Metadata.Swap
	res, err := o.rebuildLeg(ctx, rec, goal, m.InAmount, m.SlippageBps)
	if err != nil {
		return nil, err
	}
	rec.Metadata.RefreshCount++
	if uerr := o.records.Update(ctx, rec); uerr != nil {
		return nil, apperr.Internal("persist refreshed leg", uerr)
	}
	observability.RecordAnchorRefresh()
	o.auditEvent(ctx, rec.BatchID, rec.Kind, domain.PhaseSubmit, "refreshed",
		fmt.Sprintf("refresh %d, new anchor %s", rec.Metadata.RefreshCount, rec.Metadata.Swap.Blockhash))

	res.Code = apperr.KindExpired
	res.RefreshCount = rec.Metadata.RefreshCount
	return res, nil
}

// escalateLeg re-quotes at the next ladder step; exhausting the ladder
// marks the record FAILED and is terminal.
func (o *Orchestrator) escalateLeg(ctx context.Context, rec *domain.TransactionRecord, goal *domain.Goal) (*ExecuteSwapResult, error) {
	current := rec.Metadata.Swap.SlippageBps
	next, ok := o.ladder.Next(current)
	if !ok {
		rec.State = domain.StateFailed
		rec.Metadata.FailureReason = fmt.Sprintf("slippage ceiling %d bps exhausted", o.ladder.Ceiling())
		if uerr := o.records.Update(ctx, rec); uerr != nil {
			return nil, apperr.Internal("persist slippage exhaustion", uerr)
		}
		o.auditEvent(ctx, rec.BatchID, rec.Kind, domain.PhaseSubmit, "slippage_exhausted", rec.Metadata.FailureReason)
		return nil, apperr.Terminal(apperr.Slippage(rec.Metadata.FailureReason, nil))
	}

	res, err := o.rebuildLeg(ctx, rec, goal, rec.Metadata.Swap.InAmount, next)
	if err != nil {
		return nil, err
	}
	if uerr := o.records.Update(ctx, rec); uerr != nil {
		return nil, apperr.Internal("persist escalated leg", uerr)
	}
	observability.RecordSlippageEscalation(strconv.Itoa(next))
	o.auditEvent(ctx, rec.BatchID, rec.Kind, domain.PhaseSubmit, "escalated",
		fmt.Sprintf("tolerance %d -> %d bps", current, next))

	res.Code = apperr.KindSlippage
	res.RefreshCount = rec.Metadata.RefreshCount
	return res, nil
}

// rebuildLeg re-quotes and rebuilds the record's transaction in place
// without persisting; callers adjust counters and persist.
func (o *Orchestrator) rebuildLeg(ctx context.Context, rec *domain.TransactionRecord, goal *domain.Goal, amountBaseUnits uint64, toleranceBps int) (*ExecuteSwapResult, error) {
	m := rec.Metadata.Swap
	q, err := o.quotes.Acquire(ctx, m.InputMint, m.OutputMint, amountBaseUnits, toleranceBps)
	if err != nil {
		o.auditEvent(ctx, rec.BatchID, rec.Kind, domain.PhasePrepare, "requote_failed", err.Error())
		return nil, err
	}
	unsigned, err := o.builder.BuildSwap(ctx, q, m.SignerPubkey)
	if err != nil {
		o.auditEvent(ctx, rec.BatchID, rec.Kind, domain.PhasePrepare, "rebuild_failed", err.Error())
		return nil, apperr.Internal("rebuild unsigned transaction", err)
	}

	expectedOut, err := units.FromBaseUnits(q.OutAmount, goal.AssetDecimals)
	if err != nil {
		return nil, apperr.Internal("convert expected out amount", err)
	}

	m.QuoteID = q.QuoteID
	m.OutAmount = q.OutAmount
	m.MinOutAmount = q.MinOutAmount
	m.SlippageBps = q.SlippageBps
	m.PriceImpactPct = q.PriceImpactPct
	m.QuoteExpiresAt = q.ExpiresAt
	m.Blockhash = unsigned.Anchor.Blockhash
	m.LastValidBlockHeight = unsigned.Anchor.LastValidBlockHeight
	rec.AmountAsset = expectedOut
	if rec.Metadata.Extra == nil {
		rec.Metadata.Extra = make(map[string]string)
	}
	rec.Metadata.Extra[extraUnsignedTx] = unsigned.Base64
	rec.Metadata.Extra[extraFeeLamports] = strconv.FormatUint(unsigned.FeeLamports, 10)

	return &ExecuteSwapResult{
		Retryable:              true,
		NewQuote:               q,
		NewUnsignedTransaction: unsigned,
		NewSlippageBps:         q.SlippageBps,
	}, nil
}

// activeLeg finds the batch's first unconfirmed swap-kind record. When
// every leg is confirmed it returns the final one for the idempotent
// success path.
func (o *Orchestrator) activeLeg(ctx context.Context, batchID string) (active, done *domain.TransactionRecord, err error) {
	recs, err := o.records.GetByBatch(ctx, batchID)
	if err != nil {
		return nil, nil, apperr.Internal("load batch records", err)
	}

	var legs []*domain.TransactionRecord
	for _, r := range recs {
		if r.Kind == domain.KindIntermediateSwap || r.Kind == domain.KindSwap {
			legs = append(legs, r)
		}
	}
	if len(legs) == 0 {
		return nil, nil, apperr.NotFound("batch %s has no prepared swap", batchID)
	}

	for _, r := range legs {
		if r.State != domain.StateConfirmed {
			return r, nil, nil
		}
	}

	final := legs[len(legs)-1]
	if final.TxHash == nil {
		return nil, nil, apperr.Internal("confirmed batch missing network reference", nil)
	}
	return nil, final, nil
}

func (o *Orchestrator) auditEvent(ctx context.Context, batchID string, kind domain.RecordKind, phase, outcome, detail string) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := o.audit.Append(actx, &domain.AuditEvent{
		Timestamp: time.Now().UTC(),
		BatchID:   batchID,
		Kind:      kind,
		Phase:     phase,
		Outcome:   outcome,
		Detail:    detail,
	})
	if err != nil {
		o.logger.Printf("audit append failed for batch %s: %v", batchID, err)
	}
}

// quoteFromRecord reconstructs the quote payload persisted on a record.
func quoteFromRecord(rec *domain.TransactionRecord) *domain.Quote {
	m := rec.Metadata.Swap
	if m == nil {
		return nil
	}
	return &domain.Quote{
		QuoteID:        m.QuoteID,
		InputMint:      m.InputMint,
		OutputMint:     m.OutputMint,
		InAmount:       m.InAmount,
		OutAmount:      m.OutAmount,
		MinOutAmount:   m.MinOutAmount,
		SlippageBps:    m.SlippageBps,
		PriceImpactPct: m.PriceImpactPct,
		ExpiresAt:      m.QuoteExpiresAt,
	}
}

// unsignedFromRecord reconstructs the unsigned transaction payload
// persisted on a record, or nil if none was stored.
func unsignedFromRecord(rec *domain.TransactionRecord) *domain.UnsignedTransaction {
	m := rec.Metadata.Swap
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

func prepareOutcome(created bool) string {
	if created {
		return "created"
	}
	return "existing"
}

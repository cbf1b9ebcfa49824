package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GoalStatus is the lifecycle state of an accumulation goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "ACTIVE"
	GoalPaused    GoalStatus = "PAUSED"
	GoalCompleted GoalStatus = "COMPLETED"
)

// Valid reports whether s is a known goal status.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalPaused, GoalCompleted:
		return true
	}
	return false
}

// Frequency is the deposit cadence of a goal.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Goal is a user's accumulation target for one asset.
//
// InvestedAmount is mutated only by confirmed SWAP records through the
// ledger; Status flips to COMPLETED only via the ledger increment rule.
type Goal struct {
	ID      string
	OwnerID string

	AssetSymbol   string
	AssetMint     string
	AssetDecimals int

	TargetAmount   decimal.Decimal
	InvestedAmount decimal.Decimal

	AmountPerInterval decimal.Decimal
	Frequency         Frequency

	Status GoalStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Completed reports whether the invested amount has reached the target.
func (g *Goal) Completed() bool {
	return g.InvestedAmount.GreaterThanOrEqual(g.TargetAmount)
}

package orchestrator

import "solana-dca-engine/internal/domain"

// Leg is one swap hop of a batch.
type Leg struct {
	Kind       domain.RecordKind
	InputMint  string
	OutputMint string
}

// LegPlanner decides how a deposit asset reaches the goal asset. The
// single-leg plan is the product default; multi-leg conversion through
// an intermediate asset stays available as a strategy.
type LegPlanner interface {
	Plan(inputMint, goalMint string) []Leg
}

// SingleLegPlanner swaps the deposit asset directly into the goal asset.
type SingleLegPlanner struct{}

func (SingleLegPlanner) Plan(inputMint, goalMint string) []Leg {
	return []Leg{{Kind: domain.KindSwap, InputMint: inputMint, OutputMint: goalMint}}
}

// TwoLegPlanner routes through an intermediate mint when neither side
// of the pair is the intermediate itself. The second leg's input amount
// is derived from the first leg's confirmed output, never from a
// client-supplied figure.
type TwoLegPlanner struct {
	IntermediateMint string
}

func (p TwoLegPlanner) Plan(inputMint, goalMint string) []Leg {
	if p.IntermediateMint == "" || inputMint == p.IntermediateMint || goalMint == p.IntermediateMint {
		return SingleLegPlanner{}.Plan(inputMint, goalMint)
	}
	return []Leg{
		{Kind: domain.KindIntermediateSwap, InputMint: inputMint, OutputMint: p.IntermediateMint},
		{Kind: domain.KindSwap, InputMint: p.IntermediateMint, OutputMint: goalMint},
	}
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"solana-dca-engine/internal/apperr"
	"solana-dca-engine/internal/domain"
)

type createGoalRequest struct {
	OwnerID           string `json:"ownerId"`
	AssetSymbol       string `json:"assetSymbol"`
	AssetMint         string `json:"assetMint"`
	AssetDecimals     int    `json:"assetDecimals"`
	TargetAmount      string `json:"targetAmount"`
	AmountPerInterval string `json:"amountPerInterval"`
	Frequency         string `json:"frequency"`
}

// goalPayload renders decimal amounts as strings to keep precision on
// the wire.
type goalPayload struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"ownerId"`
	AssetSymbol       string    `json:"assetSymbol"`
	AssetMint         string    `json:"assetMint"`
	AssetDecimals     int       `json:"assetDecimals"`
	TargetAmount      string    `json:"targetAmount"`
	InvestedAmount    string    `json:"investedAmount"`
	AmountPerInterval string    `json:"amountPerInterval"`
	Frequency         string    `json:"frequency"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	target, err := decimal.NewFromString(req.TargetAmount)
	if err != nil {
		writeError(w, apperr.Validation("invalid targetAmount %q", req.TargetAmount))
		return
	}
	perInterval, err := decimal.NewFromString(req.AmountPerInterval)
	if err != nil {
		writeError(w, apperr.Validation("invalid amountPerInterval %q", req.AmountPerInterval))
		return
	}

	goal, err := s.goals.Create(r.Context(), &domain.Goal{
		OwnerID:           req.OwnerID,
		AssetSymbol:       req.AssetSymbol,
		AssetMint:         req.AssetMint,
		AssetDecimals:     req.AssetDecimals,
		TargetAmount:      target,
		AmountPerInterval: perInterval,
		Frequency:         domain.Frequency(req.Frequency),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalPayload(goal))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.goals.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalPayload(goal))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, apperr.Validation("owner query parameter is required"))
		return
	}
	list, err := s.goals.ListByOwner(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	payload := make([]goalPayload, 0, len(list))
	for _, g := range list {
		payload = append(payload, toGoalPayload(g))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"goals": payload})
}

func (s *Server) handleGoalStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	goal, err := s.goals.ChangeStatus(r.Context(), r.PathValue("id"), domain.GoalStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalPayload(goal))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.goals.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toGoalPayload(g *domain.Goal) goalPayload {
	return goalPayload{
		ID:                g.ID,
		OwnerID:           g.OwnerID,
		AssetSymbol:       g.AssetSymbol,
		AssetMint:         g.AssetMint,
		AssetDecimals:     g.AssetDecimals,
		TargetAmount:      g.TargetAmount.String(),
		InvestedAmount:    g.InvestedAmount.String(),
		AmountPerInterval: g.AmountPerInterval.String(),
		Frequency:         string(g.Frequency),
		Status:            string(g.Status),
		CreatedAt:         g.CreatedAt,
		UpdatedAt:         g.UpdatedAt,
	}
}

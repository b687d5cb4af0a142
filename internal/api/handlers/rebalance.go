package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/logger"
)

// Planner computes a trade plan against the live account
type Planner interface {
	Plan(ctx context.Context, target contracts.TargetAllocation) (*contracts.TradePlan, *contracts.Account, error)
}

// RebalanceHandler handles rebalance API endpoints
type RebalanceHandler struct {
	planner Planner
	logger  *logger.Logger
}

// NewRebalanceHandler creates a new rebalance handler
func NewRebalanceHandler(planner Planner, log *logger.Logger) *RebalanceHandler {
	return &RebalanceHandler{
		planner: planner,
		logger:  log.Module("rebalance_api"),
	}
}

// PreviewResponse is the body of a preview reply
type PreviewResponse struct {
	Account *contracts.Account     `json:"account"`
	Plan    *contracts.TradePlan   `json:"plan"`
	Trades  []contracts.TradeDelta `json:"trades"`
}

// Preview returns the trades that would bring the live account to the
// posted weights. Nothing is submitted.
// POST /api/rebalance/preview
func (h *RebalanceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req holdingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Holdings) == 0 {
		respondError(w, http.StatusBadRequest, "holdings is required")
		return
	}

	plan, account, err := h.planner.Plan(r.Context(), req.allocation())
	if err != nil {
		h.logger.WithError(err).Warn("Rebalance preview failed")
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, PreviewResponse{
		Account: account,
		Plan:    plan,
		Trades:  plan.NonZero(),
	})
}

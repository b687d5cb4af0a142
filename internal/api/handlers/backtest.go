package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/wonny/rebalancer/internal/backtest"
	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/internal/report"
	"github.com/wonny/rebalancer/pkg/config"
	"github.com/wonny/rebalancer/pkg/logger"
)

// BacktestRunner runs a simulation with history loaded on demand
type BacktestRunner interface {
	Run(ctx context.Context, cfg backtest.Config) (*backtest.Result, error)
}

// BacktestHandler handles backtest API endpoints
type BacktestHandler struct {
	runner   BacktestRunner
	defaults config.BacktestConfig
	logger   *logger.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(runner BacktestRunner, defaults config.BacktestConfig, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		runner:   runner,
		defaults: defaults,
		logger:   log.Module("backtest_api"),
	}
}

// BacktestRequest is the body of a backtest call
type BacktestRequest struct {
	holdingsRequest
	Benchmarks []string `json:"benchmarks"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Frequency  string   `json:"frequency"`
	Notional   float64  `json:"notional"`
	StepDays   int      `json:"step_days"`
}

func (h *BacktestHandler) config(req BacktestRequest) (backtest.Config, error) {
	cfg := backtest.Config{
		Allocation:      req.allocation(),
		Benchmarks:      h.defaults.Benchmarks,
		Frequency:       contracts.ParseFrequency(req.Frequency),
		InitialNotional: h.defaults.Notional,
		StepDays:        h.defaults.StepDays,
	}
	if req.Benchmarks != nil {
		cfg.Benchmarks = make([]string, 0, len(req.Benchmarks))
		for _, b := range req.Benchmarks {
			if b = strings.ToUpper(strings.TrimSpace(b)); b != "" {
				cfg.Benchmarks = append(cfg.Benchmarks, b)
			}
		}
	}
	if req.Notional > 0 {
		cfg.InitialNotional = req.Notional
	}
	if req.StepDays > 0 {
		cfg.StepDays = req.StepDays
	}

	var err error
	if cfg.StartDate, err = contracts.ParseDate(req.StartDate); err != nil {
		return cfg, fmt.Errorf("invalid start_date: %w", err)
	}
	if req.EndDate != "" {
		if cfg.EndDate, err = contracts.ParseDate(req.EndDate); err != nil {
			return cfg, fmt.Errorf("invalid end_date: %w", err)
		}
	}
	return cfg, nil
}

func (h *BacktestHandler) run(w http.ResponseWriter, r *http.Request) (*backtest.Result, bool) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if len(req.Holdings) == 0 {
		respondError(w, http.StatusBadRequest, "holdings is required")
		return nil, false
	}

	cfg, err := h.config(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	result, err := h.runner.Run(r.Context(), cfg)
	if err != nil {
		h.logger.WithError(err).Warn("Backtest failed")
		respondError(w, statusFor(err), err.Error())
		return nil, false
	}
	return result, true
}

// Run returns the return records and summary metrics
// POST /api/backtest
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, ok := h.run(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Chart returns the cumulative return chart as PNG
// POST /api/backtest/chart
func (h *BacktestHandler) Chart(w http.ResponseWriter, r *http.Request) {
	result, ok := h.run(w, r)
	if !ok {
		return
	}

	png, err := report.RenderChart(result.Records, report.ChartOptions{
		Title: "Cumulative return",
		Subtitle: fmt.Sprintf("%s to %s, %s rebalance",
			result.StartDate.Format(contracts.DateLayout),
			result.EndDate.Format(contracts.DateLayout),
			result.Frequency),
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to render chart")
		respondError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

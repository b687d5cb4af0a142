package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wonny/rebalancer/internal/contracts"
)

// respondJSON writes data as JSON. Encoding failures become a 500.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": "failed to encode response"})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var (
		invalid   *contracts.InvalidAllocationError
		missing   *contracts.MissingPriceError
		history   *contracts.InsufficientHistoryError
		series    *contracts.InvalidSeriesError
		execution *contracts.ExecutionError
	)

	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &missing), errors.As(err, &history), errors.As(err, &series):
		return http.StatusUnprocessableEntity
	case errors.As(err, &execution):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// holdingsRequest is the allocation part of a request body
type holdingsRequest struct {
	Holdings []contracts.Holding `json:"holdings"`
}

func (r holdingsRequest) allocation() contracts.TargetAllocation {
	holdings := make([]contracts.Holding, len(r.Holdings))
	for i, h := range r.Holdings {
		holdings[i] = contracts.Holding{
			Ticker: strings.ToUpper(strings.TrimSpace(h.Ticker)),
			Weight: h.Weight,
		}
	}
	return contracts.NewTargetAllocation(holdings...)
}

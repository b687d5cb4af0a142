package config_test

import (
	"fmt"

	"github.com/wonny/rebalancer/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Broker gateway: %s\n", cfg.Broker.BaseURL())
	fmt.Printf("Fractional shares: %v\n", cfg.Rebalance.Fractional)
	fmt.Printf("Backtest step: %d days\n", cfg.Backtest.StepDays)
}

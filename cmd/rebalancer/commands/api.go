package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/rebalancer/internal/api"
	"github.com/wonny/rebalancer/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                   - Health check
  POST /api/rebalance/preview    - Trades for posted weights against the live account
  POST /api/backtest             - Return records and summary metrics
  POST /api/backtest/chart       - Cumulative return chart (PNG)

Example:
  go run ./cmd/rebalancer api
  go run ./cmd/rebalancer api --port 8080 --source db`,
	RunE: runAPIServer,
}

var (
	apiPort   string
	apiSource string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default: PORT)")
	apiCmd.Flags().StringVar(&apiSource, "source", sourceAPI, "backtest history source (api|db)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rebalancer API Server ===")

	ctx := context.Background()
	d, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	rebalanceHandler := handlers.NewRebalanceHandler(d.rebalanceService(true), d.log)

	var backtestHandler *handlers.BacktestHandler
	if runner, err := d.backtestRunner(apiSource); err == nil {
		backtestHandler = handlers.NewBacktestHandler(runner, d.cfg.Backtest, d.log)
	} else {
		d.log.WithError(err).Warn("Backtest endpoints disabled")
	}

	router := api.NewRouter(rebalanceHandler, backtestHandler, d.log)
	server := api.New(d.cfg, d.log, router)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", d.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(sigCtx); err != nil {
		return err
	}

	d.log.Info("Server stopped")
	return nil
}

package logger_test

import (
	"os"

	"github.com/wonny/rebalancer/pkg/config"
	"github.com/wonny/rebalancer/pkg/logger"
)

func Example() {
	cfg := &config.Config{Env: "development", LogLevel: "info", LogFormat: "json"}
	log := logger.NewWithWriter(cfg, os.Stderr)

	log.Module("backtest").WithFields(map[string]interface{}{
		"start":     "2015-01-02",
		"frequency": "quarterly",
	}).Info("Starting backtest")
}

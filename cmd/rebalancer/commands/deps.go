package commands

import (
	"context"
	"fmt"

	"github.com/wonny/rebalancer/internal/allocation"
	"github.com/wonny/rebalancer/internal/backtest"
	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/internal/execution"
	"github.com/wonny/rebalancer/internal/external/eodhd"
	"github.com/wonny/rebalancer/internal/external/ibkr"
	"github.com/wonny/rebalancer/internal/marketdata"
	"github.com/wonny/rebalancer/internal/portfolio"
	"github.com/wonny/rebalancer/internal/rebalance"
	"github.com/wonny/rebalancer/pkg/config"
	"github.com/wonny/rebalancer/pkg/database"
	"github.com/wonny/rebalancer/pkg/logger"
	"github.com/wonny/rebalancer/pkg/redis"
)

// History sources for backtests
const (
	sourceAPI = "api"
	sourceDB  = "db"
)

// deps holds the shared wiring of every command. Storage is optional: a nil
// db means DATABASE_URL was not set.
type deps struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client
	cache *redis.Cache
}

func loadDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if portfolioFile != "" {
		cfg.Rebalance.DefinitionPath = portfolioFile
	}

	d := &deps{cfg: cfg, log: logger.New(cfg)}

	if cfg.Database.Enabled() {
		d.db, err = database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := d.db.Migrate(ctx); err != nil {
			d.db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		d.log.Info("Connected to database")
	}

	d.redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		d.log.WithError(err).Warn("Redis unavailable, caching disabled")
		d.redis, _ = redis.New(ctx, config.RedisConfig{Enabled: false})
	}
	d.cache = redis.NewCache(d.redis, "rebalancer")

	return d, nil
}

func (d *deps) Close() {
	if d.db != nil {
		d.db.Close()
	}
	if d.redis != nil {
		d.redis.Close()
	}
}

func (d *deps) loadAllocation() (contracts.TargetAllocation, error) {
	alloc, err := portfolio.Load(d.cfg.Rebalance.DefinitionPath)
	if err != nil {
		return contracts.TargetAllocation{}, fmt.Errorf("load %s: %w", d.cfg.Rebalance.DefinitionPath, err)
	}
	return alloc, nil
}

func (d *deps) broker() *ibkr.Client {
	return ibkr.NewClient(d.cfg.Broker, d.log)
}

func (d *deps) dataAPI() (*eodhd.Client, error) {
	if d.cfg.DataAPI.Key == "" {
		return nil, fmt.Errorf("DATA_API_KEY is required")
	}
	return eodhd.NewClient(d.cfg.DataAPI, d.log), nil
}

func (d *deps) marketRepository() (*marketdata.Repository, error) {
	if d.db == nil {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return marketdata.NewRepository(d.db.Pool), nil
}

// historySource returns the price source for backtests
func (d *deps) historySource(kind string) (marketdata.Source, error) {
	switch kind {
	case sourceDB:
		repo, err := d.marketRepository()
		if err != nil {
			return nil, err
		}
		return repo, nil
	case sourceAPI, "":
		api, err := d.dataAPI()
		if err != nil {
			return nil, err
		}
		return marketdata.NewCachedSource(api, d.cache, d.log), nil
	default:
		return nil, fmt.Errorf("unknown history source %q (valid: api, db)", kind)
	}
}

func (d *deps) backtestRunner(kind string) (*backtest.Runner, error) {
	src, err := d.historySource(kind)
	if err != nil {
		return nil, err
	}
	loader := marketdata.NewLoader(src, marketdata.DefaultWorkers, d.log)
	return backtest.NewRunner(loader, backtest.NewEngine(d.log), d.log), nil
}

func (d *deps) rebalanceService(dryRun bool) *rebalance.Service {
	broker := d.broker()

	var store execution.OrderStore
	if d.db != nil {
		store = execution.NewRepository(d.db.Pool)
	}

	differ := allocation.NewDiffer(allocation.Config{
		Fractional:       d.cfg.Rebalance.Fractional,
		FractionalPlaces: d.cfg.Rebalance.FractionalPlaces,
	}, d.log)

	return rebalance.NewService(
		broker,
		marketdata.NewCachedQuoter(broker, d.cache, d.log),
		differ,
		execution.NewPlanner(execution.DefaultPlannerConfig(d.cfg.Broker.ClientID), d.log),
		execution.NewExecutor(broker, store, d.log),
		rebalance.Config{DryRun: dryRun, QuoteWorkers: marketdata.DefaultWorkers},
		d.log,
	)
}

func (d *deps) collector(workers int) (*marketdata.Collector, error) {
	api, err := d.dataAPI()
	if err != nil {
		return nil, err
	}
	repo, err := d.marketRepository()
	if err != nil {
		return nil, err
	}
	return marketdata.NewCollector(api, repo, workers, d.log), nil
}

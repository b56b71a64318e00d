package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/lavandowski/internal/alerts"
	"github.com/opensource-finance/lavandowski/internal/batch"
	"github.com/opensource-finance/lavandowski/internal/bus"
	"github.com/opensource-finance/lavandowski/internal/cache"
	"github.com/opensource-finance/lavandowski/internal/counterparty"
	"github.com/opensource-finance/lavandowski/internal/decision"
	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/identity"
	"github.com/opensource-finance/lavandowski/internal/llm"
	"github.com/opensource-finance/lavandowski/internal/prompt"
	"github.com/opensource-finance/lavandowski/internal/report"
	"github.com/opensource-finance/lavandowski/internal/submission"
	"github.com/opensource-finance/lavandowski/internal/warehouse"
)

// app is the wired pipeline.
type app struct {
	cfg          *domain.Config
	logger       *slog.Logger
	warehouse    domain.Warehouse
	catalog      *warehouse.Catalog
	cache        domain.Cache
	bus          domain.EventBus
	orchestrator *batch.Orchestrator

	closers []func() error
}

// newWarehouse opens the warehouse alone, for commands that only read it.
func newWarehouse(ctx context.Context, cfg *domain.Config, logger *slog.Logger) (domain.Warehouse, *warehouse.Catalog, error) {
	wh, err := warehouse.New(ctx, cfg.Warehouse)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize warehouse: %w", err)
	}
	logger.Info("warehouse initialized", "driver", cfg.Warehouse.Driver)
	return wh, warehouse.NewCatalog(cfg.Warehouse.Driver, cfg.Warehouse.Tables), nil
}

// newApp wires every component in dependency order. Close releases them in reverse.
func newApp(ctx context.Context, cfg *domain.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.warehouse, a.catalog, err = newWarehouse(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.warehouse.Close)

	a.cache, err = cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	a.closers = append(a.closers, a.cache.Close)
	logger.Info("cache initialized", "type", cfg.Cache.Type)

	a.bus, err = bus.New(cfg.EventBus)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}
	a.closers = append(a.closers, a.bus.Close)
	logger.Info("event bus initialized", "type", cfg.EventBus.Type)

	var lookup counterparty.Lookup
	if cfg.Identity.Enabled() {
		lookup = identity.NewClient(cfg.Identity, a.cache)
		logger.Info("identity lookups enabled", "daily_quota", cfg.Identity.DailyQuota)
	} else {
		logger.Warn("identity credentials missing, counterparty analysis disabled")
	}
	analyzer := counterparty.NewAnalyzer(lookup, logger)

	source, err := alerts.NewSource(a.warehouse, a.catalog, cfg.Alerts, logger)
	if err != nil {
		return nil, err
	}

	if cfg.LLM.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, analyses will fail")
	}

	deps := batch.Deps{
		Source:    source,
		Reports:   report.NewBuilder(a.warehouse, a.catalog, analyzer, logger),
		Composer:  prompt.NewComposer(),
		Analyst:   llm.NewClient(cfg.LLM, logger),
		Mapper:    decision.NewMapper(logger),
		Submitter: submission.NewClient(cfg.Submission),
		Bus:       a.bus,
		Catalog:   a.catalog,
		Logger:    logger,
	}
	if rec, ok := a.warehouse.(batch.Recorder); ok {
		deps.Recorder = rec
	}
	a.orchestrator = batch.NewOrchestrator(deps, cfg.Submission.DryRun)
	logger.Info("pipeline initialized",
		"llm_mode", cfg.LLM.Mode,
		"dry_run", cfg.Submission.DryRun,
		"analysis_log", deps.Recorder != nil,
	)

	return a, nil
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to close component", "error", err)
		}
	}
	a.closers = nil
}

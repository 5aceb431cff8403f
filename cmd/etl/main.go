package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/climate-warehouse-etl/internal/adapter/csvsource"
	"github.com/couchcryptid/climate-warehouse-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/climate-warehouse-etl/internal/adapter/kafka"
	"github.com/couchcryptid/climate-warehouse-etl/internal/adapter/postgres"
	"github.com/couchcryptid/climate-warehouse-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/climate-warehouse-etl/internal/config"
	"github.com/couchcryptid/climate-warehouse-etl/internal/observability"
	"github.com/couchcryptid/climate-warehouse-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// warehouse is a loader that can also report its own readiness.
type warehouse interface {
	pipeline.Loader
	sharedobs.ReadinessChecker
}

func main() {
	if err := run(); err != nil {
		slog.Error("etl failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wh, closeWarehouse, err := openWarehouse(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s warehouse: %w", cfg.WarehouseDriver, err)
	}
	defer closeWarehouse()

	extractor := csvsource.NewExtractor(cfg.SourcePaths, logger)
	p := pipeline.New(extractor, wh, logger, metrics, pipeline.OptionsFromConfig(cfg))

	// Publish loaded facts (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		p.WithPublisher(publisher)
		logger.Info("fact publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaFactTopic)
	} else {
		logger.Info("fact publishing disabled")
	}

	if cfg.HTTPAddr != "" {
		srv := newServer(cfg.HTTPAddr, p, wh, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			logger.Info("shutdown complete")
		}()
	}

	report, err := p.Run(ctx)
	if err != nil {
		return err
	}
	if !report.Complete() {
		logger.Warn("run incomplete",
			"run_id", report.RunID,
			"dropped_facts", report.DroppedFacts(),
			"failed_rows", report.FailedRows,
		)
	}
	return nil
}

// newServer serves the pipeline's reports. Readiness needs both a reachable
// warehouse and a completed run without failed load batches.
func newServer(addr string, p *pipeline.Pipeline, wh warehouse, logger *slog.Logger) *httpadapter.Server {
	return httpadapter.NewServer(addr, p, logger, wh, p)
}

// openWarehouse connects the configured warehouse driver.
func openWarehouse(ctx context.Context, cfg *config.Config, logger *slog.Logger) (warehouse, func(), error) {
	switch cfg.WarehouseDriver {
	case config.DriverPostgres:
		l, err := postgres.Connect(ctx, cfg.WarehouseDSN, cfg.WarehouseSchema, logger)
		if err != nil {
			return nil, nil, err
		}
		return l, l.Close, nil
	case config.DriverSQLite:
		l, err := sqlite.Open(cfg.WarehouseDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {
			if err := l.Close(); err != nil {
				logger.Error("sqlite close error", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported warehouse driver %q", cfg.WarehouseDriver)
	}
}

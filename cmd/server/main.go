// Package main is the entry point for the portfolio analytics service.
// It wires the market data client, the analysis service, the SQLite-backed
// repositories, the HTTP server, and the background maintenance jobs.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sidnei-almeida/groq-finance-inference/internal/clients/yahoo"
	"github.com/sidnei-almeida/groq-finance-inference/internal/config"
	"github.com/sidnei-almeida/groq-finance-inference/internal/database"
	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/pricecache"
	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/quant"
	analysishandlers "github.com/sidnei-almeida/groq-finance-inference/internal/modules/quant/handlers"
	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/reports"
	"github.com/sidnei-almeida/groq-finance-inference/internal/scheduler"
	"github.com/sidnei-almeida/groq-finance-inference/internal/server"
	"github.com/sidnei-almeida/groq-finance-inference/pkg/logger"
)

// reportRetention is how long completed analyses are kept before the
// retention job deletes them.
const reportRetention = 90 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting portfolio analytics service")

	// Two-database architecture:
	// - reports.db: durable analysis results and their stage logs
	// - cache.db: ephemeral market data cache
	reportsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "reports.db"),
		Profile: database.ProfileStandard,
		Name:    "reports",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open reports database")
	}
	defer reportsDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	// Catch on-disk corruption at startup rather than mid-request.
	integrityCtx, cancelIntegrity := context.WithTimeout(context.Background(), 30*time.Second)
	for _, db := range []*database.DB{reportsDB, cacheDB} {
		if err := db.HealthCheck(integrityCtx); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Database integrity check failed")
		}
	}
	cancelIntegrity()

	cacheRepo := pricecache.NewRepository(cacheDB.Conn(), log)
	if err := cacheRepo.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache schema")
	}

	reportRepo := reports.NewRepository(reportsDB.Conn(), log)
	if err := reportRepo.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize reports schema")
	}

	marketData := yahoo.NewClient(cfg.BenchmarkSymbol, log)
	marketData.SetCache(cacheRepo)
	if cfg.MarketDataURL != "" {
		marketData.SetBaseURL(cfg.MarketDataURL)
	}

	analysisService := quant.NewService(marketData, cfg.RiskFreeRate, log)
	analysisHandler := analysishandlers.NewHandler(analysisService, reportRepo, log)

	srv := server.New(server.Config{
		Log:             log,
		Config:          cfg,
		StandardDB:      reportsDB,
		CacheDB:         cacheDB,
		AnalysisHandler: analysisHandler,
	})

	sched := scheduler.New(log)
	registerJobs(sched, marketData, cacheRepo, reportRepo, log)
	sched.Start()

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// registerJobs wires the recurring maintenance jobs. Schedule failures are
// fatal: a typo in a cron expression should not ship.
func registerJobs(
	sched *scheduler.Scheduler,
	marketData *yahoo.Client,
	cacheRepo *pricecache.Repository,
	reportRepo *reports.Repository,
	log zerolog.Logger,
) {
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		// Warm the benchmark series shortly before US markets open.
		{"0 13 * * 1-5", scheduler.NewBenchmarkWarmJob(marketData, "1y", log)},
		{"@hourly", scheduler.NewCachePurgeJob(cacheRepo, log)},
		{"@daily", scheduler.NewReportRetentionJob(reportRepo, reportRetention, log)},
	}

	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
	}
}

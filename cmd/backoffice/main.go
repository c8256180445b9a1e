// Command backoffice is the operator CLI for the ingestion pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"backoffice/internal/config"
	"backoffice/internal/database"
	"backoffice/internal/ingestion"
	"backoffice/internal/logger"
	"backoffice/internal/marketdata"
	"backoffice/internal/metrics"
	"backoffice/internal/services"
	"backoffice/internal/tenant"
)

// cliActor is recorded as the actor of audit events raised from the CLI.
const cliActor = "cli"

var rootCmd = &cobra.Command{
	Use:   "backoffice",
	Short: "Backoffice portfolio ingestion operator tool",
	Long: `Operator commands for the portfolio ingestion pipeline: run or
preflight an import, export the instruments an import could not resolve,
sync FX reference rates and manage schema migrations.`,
	SilenceUsage: true,
}

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Sync()
		os.Exit(1)
	}
}

// app holds the services the commands drive.
type app struct {
	cfg       *config.Config
	db        *database.Manager
	imports   services.PortfolioImportServicer
	preflight services.PreflightServicer
	exporter  services.MissingInstrumentExporter
	fxRates   services.FXRateServicer
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	dbConfig, err := database.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database configuration: %w", err)
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}

	db := dbManager.DB()
	m := metrics.New()
	audit := services.NewAuditService(db)
	instruments := services.NewInstrumentService(db)
	snapshots := services.NewPositionSnapshotService(db)
	forex := marketdata.NewForexClient(
		marketdata.WithBaseURL(cfg.FXBaseURL),
		marketdata.WithRateLimit(cfg.FXRateLimitRPS),
	)
	fxRates := services.NewFXRateService(db, forex, audit, "yahoo")
	imports := services.NewPortfolioImportService(db, instruments, snapshots, audit, m,
		services.ImportConfig{UploadDir: cfg.UploadDir, BatchSize: cfg.ImportBatchSize})
	preflight := services.NewPreflightService(db, imports, instruments, fxRates, m)

	return &app{
		cfg:       cfg,
		db:        dbManager,
		imports:   imports,
		preflight: preflight,
		exporter:  services.NewMissingInstrumentExporter(db, imports, preflight),
		fxRates:   fxRates,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		logger.Get().Warnw("failed to close database", "error", err)
	}
}

// tenantContext scopes ctx to orgID with the CLI as actor.
func tenantContext(ctx context.Context, orgID string) (context.Context, error) {
	if orgID == "" {
		return nil, fmt.Errorf("--org is required")
	}
	return tenant.WithActor(tenant.WithOrg(ctx, orgID), cliActor), nil
}

// parseMappingFlags turns field=column flag pairs into a mapping, rejecting
// unknown fields.
func parseMappingFlags(pairs map[string]string) (ingestion.Mapping, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(ingestion.Mapping, len(pairs))
	for field, column := range pairs {
		if !ingestion.KnownField(field) {
			return nil, fmt.Errorf("unknown mapping field %q", field)
		}
		if column == "" {
			return nil, fmt.Errorf("mapping field %q has no column", field)
		}
		m[ingestion.Field(field)] = column
	}
	return m, nil
}

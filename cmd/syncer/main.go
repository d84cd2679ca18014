// Command syncer runs a single reconciliation pass and prints the run
// report, for cron jobs and manual backfills.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/app"
	"github.com/dcallies/voucher-sync/internal/config"
	"github.com/dcallies/voucher-sync/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	lookback := flag.Int("lookback", 0, "discovery window in hours (0 uses the configured default)")
	asJSON := flag.Bool("json", false, "print the run report as JSON")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	orchestrator, db, err := app.BuildPipeline(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build pipeline", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := orchestrator.RunSync(ctx, *lookback)
	if err != nil {
		logger.Error("Sync run failed", zap.Error(err))
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			logger.Error("Failed to encode run report", zap.Error(err))
			os.Exit(1)
		}
	} else {
		fmt.Printf("Run finished in %s (lookback %dh)\n",
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond), run.LookbackHours)
		fmt.Printf("  seen: %d  created: %d  duplicates: %d  needs review: %d  failed: %d  sheet retries: %d\n",
			run.DocumentsSeen, run.DocumentsCreated, run.DocumentsSkippedDuplicate,
			run.DocumentsNeedsReview, run.DocumentsFailed, run.SheetRetriesSucceeded)
		for _, e := range run.Errors {
			fmt.Printf("  [%s] %s: %s\n", e.Stage, e.DocumentName, e.Message)
		}
		if run.Cancelled {
			fmt.Println("  run was cancelled before completion")
		}
	}

	if run.DocumentsFailed > 0 || run.Cancelled {
		os.Exit(2)
	}
}

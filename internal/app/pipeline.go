// Package app wires the sync pipeline from configuration. Both the HTTP
// server and the one-shot CLI build the same pipeline through it.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/clients"
	"github.com/dcallies/voucher-sync/internal/config"
	"github.com/dcallies/voucher-sync/internal/drive"
	"github.com/dcallies/voucher-sync/internal/extract"
	"github.com/dcallies/voucher-sync/internal/ledger"
	"github.com/dcallies/voucher-sync/internal/ocr"
	"github.com/dcallies/voucher-sync/internal/parse"
	"github.com/dcallies/voucher-sync/internal/repository"
	"github.com/dcallies/voucher-sync/internal/storage"
	syncpipe "github.com/dcallies/voucher-sync/internal/sync"
	"github.com/dcallies/voucher-sync/pkg/database"
)

// BuildPipeline constructs the orchestrator and its backing database. The
// caller owns closing the returned DB.
func BuildPipeline(cfg *config.Config, logger *zap.Logger) (*syncpipe.Orchestrator, *database.DB, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.NewMigrator(db, logger).RunMigrations(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	driveClient := drive.NewClient(drive.Config{
		AppID:       cfg.Drive.AppID,
		AppSecret:   cfg.Drive.AppSecret,
		FolderToken: cfg.Drive.FolderToken,
		MaxRetries:  cfg.Drive.MaxRetries,
	}, logger)

	primary := ocr.NewTesseractEngine(cfg.OCR.Languages)
	fallback := ocr.NewVisionEngine(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.Temperature,
		cfg.OpenAI.MaxTokens,
		logger,
	)
	extractor := extract.NewExtractor(primary, fallback, extract.Config{
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
		MinTextLength: cfg.OCR.MinTextLength,
		MinConfidence: cfg.OCR.MinConfidence,
	}, logger)

	parser := parse.NewParser(cfg.Sync.HourlyRate, cfg.Sync.FallbackAmounts, logger)
	resolver := clients.NewResolver(cfg.Clients)
	repo := repository.NewVoucherRepository(db.DB, logger)

	appender, err := ledger.NewAppender(cfg.Ledger.Path, cfg.Ledger.SheetName, logger)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	var archive *storage.Archive
	if cfg.Sync.ArchiveDir != "" {
		archive, err = storage.NewArchive(cfg.Sync.ArchiveDir, logger)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to initialize archive: %w", err)
		}
	}

	orchestrator := syncpipe.NewOrchestrator(
		driveClient,
		driveClient,
		extractor,
		parser,
		resolver,
		repo,
		appender,
		syncpipe.Config{
			Workers:              cfg.Sync.Workers,
			DefaultLookbackHours: cfg.Sync.DefaultLookbackHours,
		},
		logger,
	)
	if archive != nil {
		orchestrator.WithArchive(archive)
	}

	return orchestrator, db, nil
}

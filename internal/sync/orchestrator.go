package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/drive"
	"github.com/dcallies/voucher-sync/internal/extract"
	"github.com/dcallies/voucher-sync/internal/models"
	"github.com/dcallies/voucher-sync/internal/parse"
	"github.com/dcallies/voucher-sync/internal/repository"
)

// DocumentLister enumerates candidate documents in the watched folder.
type DocumentLister interface {
	ListDocuments(ctx context.Context, since time.Time) ([]drive.DocumentInfo, error)
}

// DocumentFetcher retrieves a document's raw bytes.
type DocumentFetcher interface {
	Fetch(ctx context.Context, documentID string) ([]byte, error)
}

// TextExtractor converts a document into raw text.
type TextExtractor interface {
	Extract(ctx context.Context, doc extract.Document) (extract.Extraction, error)
}

// FieldParser extracts a voucher from raw text.
type FieldParser interface {
	Parse(text string) (*models.Voucher, error)
}

// ClientResolver maps client codes to canonical names.
type ClientResolver interface {
	Resolve(code string) (string, error)
}

// VoucherStore is the relational sink plus the dedupe guard.
type VoucherStore interface {
	Exists(ctx context.Context, voucherNumber string) (bool, error)
	Create(ctx context.Context, v *models.Voucher) error
	UpdateStatus(ctx context.Context, voucherNumber, status string) error
	ListSheetPending(ctx context.Context) ([]*models.Voucher, error)
}

// LedgerSink is the secondary spreadsheet sink.
type LedgerSink interface {
	Append(v *models.Voucher) error
}

// DocumentArchiver keeps a local copy of fetched document bytes. Archiving
// is best effort and never fails a document.
type DocumentArchiver interface {
	Save(documentID, documentName string, content []byte) (string, error)
}

// Config tunes the orchestrator.
type Config struct {
	Workers              int
	DefaultLookbackHours int
}

// Orchestrator drives each discovered document through
// fetch → extract → parse → resolve → dedupe → persist, isolating
// per-document failures and producing a run report. It is the only
// component holding cross-document state.
type Orchestrator struct {
	lister   DocumentLister
	fetcher  DocumentFetcher
	extract  TextExtractor
	parser   FieldParser
	resolver ClientResolver
	store    VoucherStore
	ledger   LedgerSink
	archive  DocumentArchiver
	cfg      Config
	logger   *zap.Logger
}

// NewOrchestrator wires the pipeline together.
func NewOrchestrator(
	lister DocumentLister,
	fetcher DocumentFetcher,
	extractor TextExtractor,
	parser FieldParser,
	resolver ClientResolver,
	store VoucherStore,
	ledger LedgerSink,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.DefaultLookbackHours <= 0 {
		cfg.DefaultLookbackHours = 24
	}
	return &Orchestrator{
		lister:   lister,
		fetcher:  fetcher,
		extract:  extractor,
		parser:   parser,
		resolver: resolver,
		store:    store,
		ledger:   ledger,
		cfg:      cfg,
		logger:   logger,
	}
}

// WithArchive attaches an optional archiver for raw document bytes.
func (o *Orchestrator) WithArchive(a DocumentArchiver) *Orchestrator {
	o.archive = a
	return o
}

// RunSync is the single entry point of the pipeline. It returns an error
// only when discovery itself fails; every per-document failure is captured
// in the returned report instead.
func (o *Orchestrator) RunSync(ctx context.Context, lookbackHours int) (*models.SyncRun, error) {
	if lookbackHours <= 0 {
		lookbackHours = o.cfg.DefaultLookbackHours
	}
	run := models.NewSyncRun(lookbackHours)

	o.logger.Info("Starting sync run",
		zap.Int("lookback_hours", lookbackHours),
		zap.Int("workers", o.cfg.Workers))

	// Second saga step first: retry ledger appends for vouchers that were
	// persisted on an earlier run but never made it into the sheet.
	o.retrySheetPending(ctx, run)

	since := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	docs, err := o.lister.ListDocuments(ctx, since)
	if err != nil {
		// Discovery failure is catastrophic: zero documents processed, the
		// run reports a top-level failure rather than partial results.
		run.Finish(ctx.Err() != nil)
		return nil, err
	}
	run.RecordSeen(len(docs))

	jobs := make(chan drive.DocumentInfo)
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				o.processDocument(ctx, doc, run)
			}
		}()
	}

dispatch:
	for _, doc := range docs {
		select {
		case <-ctx.Done():
			// Documents not yet started are simply never picked up.
			break dispatch
		case jobs <- doc:
		}
	}
	close(jobs)
	wg.Wait()

	run.Finish(ctx.Err() != nil)
	o.logger.Info("Sync run finished",
		zap.Int("seen", run.DocumentsSeen),
		zap.Int("created", run.DocumentsCreated),
		zap.Int("duplicates", run.DocumentsSkippedDuplicate),
		zap.Int("failed", run.DocumentsFailed),
		zap.Bool("cancelled", run.Cancelled))
	return run, nil
}

// processDocument runs one document through the pipeline stages. Stages
// are strictly sequential for a document; any typed error ends its
// processing and is recorded against the run.
func (o *Orchestrator) processDocument(ctx context.Context, info drive.DocumentInfo, run *models.SyncRun) {
	if ctx.Err() != nil {
		return
	}

	logger := o.logger.With(
		zap.String("document_id", info.ID),
		zap.String("document_name", info.Name))

	data, err := o.fetcher.Fetch(ctx, info.ID)
	if err != nil {
		logger.Warn("Document fetch failed", zap.Error(err))
		run.RecordFailure(models.DocumentError{
			DocumentID:   info.ID,
			DocumentName: info.Name,
			Stage:        models.StageFetch,
			Message:      err.Error(),
		})
		return
	}

	if o.archive != nil {
		if _, err := o.archive.Save(info.ID, info.Name, data); err != nil {
			logger.Warn("Failed to archive document", zap.Error(err))
		}
	}

	extraction, err := o.extract.Extract(ctx, extract.Document{
		ID:        info.ID,
		Name:      info.Name,
		MediaType: info.MediaType,
		Data:      data,
	})
	if err != nil {
		logger.Warn("Text extraction failed", zap.Error(err))
		run.RecordFailure(models.DocumentError{
			DocumentID:   info.ID,
			DocumentName: info.Name,
			Stage:        models.StageExtraction,
			Message:      err.Error(),
		})
		return
	}

	voucher, err := o.parser.Parse(extraction.Text)
	if err != nil {
		logger.Warn("Voucher parsing failed", zap.Error(err))
		docErr := models.DocumentError{
			DocumentID:   info.ID,
			DocumentName: info.Name,
			Stage:        models.StageParsing,
			Message:      err.Error(),
		}
		var parseErr *parse.ParseError
		if errors.As(err, &parseErr) {
			docErr.PartialFields = parseErr.Partial
		}
		run.RecordFailure(docErr)
		return
	}
	voucher.SourceDocumentID = info.ID

	name, err := o.resolver.Resolve(voucher.ClientCode)
	if err != nil {
		logger.Warn("Client code resolution failed",
			zap.String("client_code", voucher.ClientCode),
			zap.Error(err))
		run.RecordFailure(models.DocumentError{
			DocumentID:   info.ID,
			DocumentName: info.Name,
			Stage:        models.StageResolution,
			Message:      err.Error(),
		})
		return
	}
	voucher.ClientName = name

	o.persist(ctx, voucher, info, run, logger)
}

// persist runs the two-step saga: relational insert first (source of
// truth), ledger append second. A ledger failure degrades the record to
// SheetPending; the relational write is never undone.
func (o *Orchestrator) persist(ctx context.Context, v *models.Voucher, info drive.DocumentInfo, run *models.SyncRun, logger *zap.Logger) {
	exists, err := o.store.Exists(ctx, v.VoucherNumber)
	if err != nil {
		run.RecordFailure(models.DocumentError{
			DocumentID:   info.ID,
			DocumentName: info.Name,
			Stage:        models.StagePersistence,
			Message:      err.Error(),
		})
		return
	}
	if exists {
		logger.Info("Voucher already persisted, skipping",
			zap.String("voucher_number", v.VoucherNumber))
		run.RecordDuplicate()
		return
	}

	needsReview := v.Status == models.StatusNeedsReview
	if !needsReview {
		v.Status = models.StatusPersisted
	}

	if err := o.store.Create(ctx, v); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Another worker won the race for this voucher number.
			run.RecordDuplicate()
			return
		}
		logger.Error("Relational insert failed", zap.Error(err))
		run.RecordFailure(models.DocumentError{
			DocumentID:   info.ID,
			DocumentName: info.Name,
			Stage:        models.StagePersistence,
			Message:      err.Error(),
		})
		return
	}

	if needsReview {
		// Guessed amounts stay out of the ledger until someone reviews them.
		logger.Info("Voucher persisted for manual review",
			zap.String("voucher_number", v.VoucherNumber))
		run.RecordCreated(true)
		return
	}

	if err := o.ledger.Append(v); err != nil {
		logger.Warn("Ledger append failed, marking sheet pending",
			zap.String("voucher_number", v.VoucherNumber),
			zap.Error(err))
		if uerr := o.store.UpdateStatus(ctx, v.VoucherNumber, models.StatusSheetPending); uerr != nil {
			logger.Error("Failed to mark voucher sheet pending", zap.Error(uerr))
		}
		run.RecordCreated(false)
		return
	}

	if err := o.store.UpdateStatus(ctx, v.VoucherNumber, models.StatusSheetSynced); err != nil {
		logger.Error("Failed to mark voucher sheet synced", zap.Error(err))
	}
	run.RecordCreated(false)
}

// retrySheetPending re-attempts the ledger append for vouchers left in
// SheetPending by earlier runs. The append is idempotent, so a crash
// between append and status update cannot double-write.
func (o *Orchestrator) retrySheetPending(ctx context.Context, run *models.SyncRun) {
	pending, err := o.store.ListSheetPending(ctx)
	if err != nil {
		o.logger.Warn("Failed to list sheet-pending vouchers", zap.Error(err))
		return
	}

	for _, v := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := o.ledger.Append(v); err != nil {
			o.logger.Warn("Ledger retry failed, leaving sheet pending",
				zap.String("voucher_number", v.VoucherNumber),
				zap.Error(err))
			continue
		}
		if err := o.store.UpdateStatus(ctx, v.VoucherNumber, models.StatusSheetSynced); err != nil {
			o.logger.Error("Failed to mark retried voucher sheet synced",
				zap.String("voucher_number", v.VoucherNumber),
				zap.Error(err))
			continue
		}
		run.RecordSheetRetry()
	}
}

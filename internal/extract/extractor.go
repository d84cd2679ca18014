package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/ocr"
)

// ExtractionError indicates that no engine produced usable text for a
// document. It is recorded per-document and never aborts a run.
type ExtractionError struct {
	DocumentID string
	Reason     string
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed for document %s: %s: %v", e.DocumentID, e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed for document %s: %s", e.DocumentID, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Document is a fetched candidate document ready for extraction.
type Document struct {
	ID        string
	Name      string
	MediaType string
	Data      []byte
}

// Extraction is the extractor's output for one document.
type Extraction struct {
	Text       string
	Confidence float64
	Engine     string
	Pages      int
}

// Config tunes the extractor's fallback behavior.
type Config struct {
	DPI           int
	MaxPages      int
	MinTextLength int
	MinConfidence float64
}

// Extractor converts a document into raw text. The primary engine is tried
// first; when its output is empty, too short, or below the confidence
// threshold, the fallback engine is tried on the same rasterized pages and
// the better result wins. If both come up empty the extraction fails.
type Extractor struct {
	primary  ocr.Engine
	fallback ocr.Engine
	cfg      Config
	logger   *zap.Logger
}

// NewExtractor creates a text extractor with a primary and a fallback engine.
func NewExtractor(primary, fallback ocr.Engine, cfg Config, logger *zap.Logger) *Extractor {
	return &Extractor{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		logger:   logger,
	}
}

// Extract runs OCR over a document and returns its concatenated page text.
func (e *Extractor) Extract(ctx context.Context, doc Document) (Extraction, error) {
	pages, err := rasterize(doc.Data, doc.MediaType, e.cfg.DPI, e.cfg.MaxPages)
	if err != nil {
		return Extraction{}, &ExtractionError{DocumentID: doc.ID, Reason: "rasterization failed", Err: err}
	}

	primary, primaryErr := e.runEngine(ctx, e.primary, pages)
	if primaryErr == nil && e.acceptable(primary) {
		e.logger.Debug("Primary engine accepted",
			zap.String("document_id", doc.ID),
			zap.String("engine", e.primary.Name()),
			zap.Float64("confidence", primary.Confidence))
		return e.result(primary, e.primary.Name(), len(pages)), nil
	}

	if primaryErr != nil {
		e.logger.Warn("Primary engine failed, trying fallback",
			zap.String("document_id", doc.ID),
			zap.String("engine", e.primary.Name()),
			zap.Error(primaryErr))
	} else {
		e.logger.Info("Primary engine output below threshold, trying fallback",
			zap.String("document_id", doc.ID),
			zap.Int("text_length", len(primary.Text)),
			zap.Float64("confidence", primary.Confidence))
	}

	secondary, secondaryErr := e.runEngine(ctx, e.fallback, pages)
	if secondaryErr != nil {
		if primaryErr != nil {
			return Extraction{}, &ExtractionError{DocumentID: doc.ID, Reason: "both engines failed", Err: secondaryErr}
		}
		// Fallback failed outright; keep whatever the primary produced if
		// it is at least non-empty.
		if strings.TrimSpace(primary.Text) != "" {
			return e.result(primary, e.primary.Name(), len(pages)), nil
		}
		return Extraction{}, &ExtractionError{DocumentID: doc.ID, Reason: "primary empty and fallback failed", Err: secondaryErr}
	}

	// Keep the better of the two results. No silent empty-string success.
	best, engine := secondary, e.fallback.Name()
	if primaryErr == nil && betterThan(primary, secondary) {
		best, engine = primary, e.primary.Name()
	}
	if strings.TrimSpace(best.Text) == "" {
		return Extraction{}, &ExtractionError{DocumentID: doc.ID, Reason: "both engines returned empty text"}
	}

	return e.result(best, engine, len(pages)), nil
}

// runEngine recognizes every page with one engine and concatenates the page
// texts, averaging page confidences.
func (e *Extractor) runEngine(ctx context.Context, engine ocr.Engine, pages []ocr.Page) (ocr.Result, error) {
	var parts []string
	var confSum float64

	for _, page := range pages {
		res, err := engine.Recognize(ctx, page)
		if err != nil {
			return ocr.Result{}, fmt.Errorf("%s on page %d: %w", engine.Name(), page.Index, err)
		}
		parts = append(parts, res.Text)
		confSum += res.Confidence
	}

	return ocr.Result{
		Text:       strings.TrimSpace(strings.Join(parts, "\n")),
		Confidence: confSum / float64(len(pages)),
	}, nil
}

func (e *Extractor) acceptable(res ocr.Result) bool {
	if len(res.Text) < e.cfg.MinTextLength {
		return false
	}
	return res.Confidence >= e.cfg.MinConfidence
}

func (e *Extractor) result(res ocr.Result, engine string, pages int) Extraction {
	return Extraction{
		Text:       res.Text,
		Confidence: res.Confidence,
		Engine:     engine,
		Pages:      pages,
	}
}

func betterThan(a, b ocr.Result) bool {
	if len(strings.TrimSpace(b.Text)) == 0 {
		return true
	}
	return a.Confidence > b.Confidence && len(a.Text) >= len(b.Text)
}

package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/models"
)

// SinkError wraps a ledger write failure. Ledger failures are treated as
// transient: the relational record is degraded to SheetPending and retried
// on a later run instead of being rolled back.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("ledger sink %s failed: %v", e.Op, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

var header = []interface{}{
	"Voucher Number", "Client Code", "Client Name",
	"Service Start", "Service End",
	"Hours", "Rate", "Amount", "Invoice Date", "Status",
}

// voucherNumberColumn is the column scanned for idempotent retries.
const voucherNumberColumn = 0

// Appender persists vouchers as rows in an Excel ledger workbook. All
// writes are serialized; the workbook is not safe for concurrent mutation
// and the ledger is the rate-limited secondary sink anyway.
type Appender struct {
	mu        sync.Mutex
	path      string
	sheetName string
	logger    *zap.Logger
}

// NewAppender creates a ledger appender for the workbook at path, creating
// the workbook with a header row if it does not exist yet.
func NewAppender(path, sheetName string, logger *zap.Logger) (*Appender, error) {
	a := &Appender{
		path:      path,
		sheetName: sheetName,
		logger:    logger,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := a.createWorkbook(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Append writes one voucher row to the ledger. Appending the same voucher
// number twice is a no-op, which makes the SheetPending retry path
// idempotent.
func (a *Appender) Append(v *models.Voucher) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := excelize.OpenFile(a.path)
	if err != nil {
		return &SinkError{Op: "open", Err: err}
	}
	defer f.Close()

	rows, err := f.GetRows(a.sheetName)
	if err != nil {
		return &SinkError{Op: "read", Err: err}
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) > voucherNumberColumn && row[voucherNumberColumn] == v.VoucherNumber {
			a.logger.Debug("Voucher already in ledger, skipping append",
				zap.String("voucher_number", v.VoucherNumber))
			return nil
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return &SinkError{Op: "append", Err: err}
	}
	if err := f.SetSheetRow(a.sheetName, cell, &[]interface{}{
		v.VoucherNumber,
		v.ClientCode,
		v.ClientName,
		v.ServiceStartDate.Format("2006-01-02"),
		v.ServiceEndDate.Format("2006-01-02"),
		v.Hours,
		v.Rate,
		v.Amount,
		v.InvoiceDate.Format("2006-01-02"),
		v.Status,
	}); err != nil {
		return &SinkError{Op: "append", Err: err}
	}

	if err := f.Save(); err != nil {
		return &SinkError{Op: "save", Err: err}
	}

	a.logger.Info("Voucher appended to ledger",
		zap.String("voucher_number", v.VoucherNumber),
		zap.Float64("amount", v.Amount))
	return nil
}

// createWorkbook writes a fresh workbook containing only the header row.
func (a *Appender) createWorkbook() error {
	if dir := filepath.Dir(a.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &SinkError{Op: "create", Err: err}
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(a.sheetName)
	if err != nil {
		return &SinkError{Op: "create", Err: err}
	}
	f.SetActiveSheet(index)
	if a.sheetName != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return &SinkError{Op: "create", Err: err}
		}
	}

	if err := f.SetSheetRow(a.sheetName, "A1", &header); err != nil {
		return &SinkError{Op: "create", Err: err}
	}

	if err := f.SaveAs(a.path); err != nil {
		return &SinkError{Op: "create", Err: err}
	}

	a.logger.Info("Created ledger workbook", zap.String("path", a.path))
	return nil
}

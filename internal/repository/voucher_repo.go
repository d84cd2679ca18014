package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/models"
)

// ErrDuplicate indicates a voucher number that is already persisted. It is
// informational for the pipeline, not a failure.
var ErrDuplicate = errors.New("voucher already exists")

// SinkError wraps a relational write failure. It is fatal for the document
// being processed; nothing further is attempted for it.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("relational sink %s failed: %v", e.Op, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// VoucherRepository handles voucher database operations
type VoucherRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVoucherRepository creates a new voucher repository
func NewVoucherRepository(db *sql.DB, logger *zap.Logger) *VoucherRepository {
	return &VoucherRepository{
		db:     db,
		logger: logger,
	}
}

// Exists reports whether a voucher number is already persisted. This is the
// authoritative dedupe check.
func (r *VoucherRepository) Exists(ctx context.Context, voucherNumber string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM vouchers WHERE voucher_number = ?", voucherNumber,
	).Scan(&one)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to check voucher existence",
			zap.String("voucher_number", voucherNumber),
			zap.Error(err))
		return false, &SinkError{Op: "exists", Err: err}
	}
	return true, nil
}

// Create inserts a new voucher. The unique constraint on voucher_number is
// the last line of defense against concurrent duplicate inserts; a
// constraint violation surfaces as ErrDuplicate.
func (r *VoucherRepository) Create(ctx context.Context, v *models.Voucher) error {
	query := `
		INSERT INTO vouchers (
			voucher_number, client_code, client_name,
			service_start_date, service_end_date,
			hours, rate, amount, invoice_date,
			status, source_document_id, raw_text_excerpt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
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
		v.SourceDocumentID,
		v.RawTextExcerpt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicate
		}
		r.logger.Error("Failed to create voucher",
			zap.String("voucher_number", v.VoucherNumber),
			zap.Error(err))
		return &SinkError{Op: "insert", Err: err}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return &SinkError{Op: "insert", Err: err}
	}
	v.ID = id
	return nil
}

// UpdateStatus transitions a persisted voucher's status.
func (r *VoucherRepository) UpdateStatus(ctx context.Context, voucherNumber, status string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE vouchers SET status = ? WHERE voucher_number = ?",
		status, voucherNumber,
	)
	if err != nil {
		r.logger.Error("Failed to update voucher status",
			zap.String("voucher_number", voucherNumber),
			zap.String("status", status),
			zap.Error(err))
		return &SinkError{Op: "update status", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &SinkError{Op: "update status", Err: err}
	}
	if affected == 0 {
		return &SinkError{Op: "update status", Err: fmt.Errorf("voucher %s not found", voucherNumber)}
	}
	return nil
}

// GetByNumber retrieves a voucher by its unique number. Returns nil when
// not found.
func (r *VoucherRepository) GetByNumber(ctx context.Context, voucherNumber string) (*models.Voucher, error) {
	query := `
		SELECT id, voucher_number, client_code, client_name,
			service_start_date, service_end_date,
			hours, rate, amount, invoice_date,
			status, source_document_id, raw_text_excerpt, created_at
		FROM vouchers
		WHERE voucher_number = ?
	`

	v, err := r.scanVoucher(r.db.QueryRowContext(ctx, query, voucherNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get voucher",
			zap.String("voucher_number", voucherNumber),
			zap.Error(err))
		return nil, &SinkError{Op: "select", Err: err}
	}
	return v, nil
}

// ListSheetPending returns vouchers whose relational write succeeded but
// whose ledger append has not, oldest first.
func (r *VoucherRepository) ListSheetPending(ctx context.Context) ([]*models.Voucher, error) {
	query := `
		SELECT id, voucher_number, client_code, client_name,
			service_start_date, service_end_date,
			hours, rate, amount, invoice_date,
			status, source_document_id, raw_text_excerpt, created_at
		FROM vouchers
		WHERE status = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, models.StatusSheetPending)
	if err != nil {
		return nil, &SinkError{Op: "list sheet pending", Err: err}
	}
	defer rows.Close()

	var vouchers []*models.Voucher
	for rows.Next() {
		v, err := r.scanVoucher(rows)
		if err != nil {
			return nil, &SinkError{Op: "list sheet pending", Err: err}
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanVoucher.
type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *VoucherRepository) scanVoucher(s scanner) (*models.Voucher, error) {
	var v models.Voucher
	var startDate, endDate, invoiceDate string
	var excerpt sql.NullString

	err := s.Scan(
		&v.ID,
		&v.VoucherNumber,
		&v.ClientCode,
		&v.ClientName,
		&startDate,
		&endDate,
		&v.Hours,
		&v.Rate,
		&v.Amount,
		&invoiceDate,
		&v.Status,
		&v.SourceDocumentID,
		&excerpt,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if v.ServiceStartDate, err = time.Parse("2006-01-02", startDate); err != nil {
		return nil, fmt.Errorf("bad service_start_date %q: %w", startDate, err)
	}
	if v.ServiceEndDate, err = time.Parse("2006-01-02", endDate); err != nil {
		return nil, fmt.Errorf("bad service_end_date %q: %w", endDate, err)
	}
	if v.InvoiceDate, err = time.Parse("2006-01-02", invoiceDate); err != nil {
		return nil, fmt.Errorf("bad invoice_date %q: %w", invoiceDate, err)
	}
	if excerpt.Valid {
		v.RawTextExcerpt = excerpt.String
	}

	return &v, nil
}

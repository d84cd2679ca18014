package models

import (
	"math"
	"regexp"
	"time"
)

// Voucher statuses as stored in the vouchers table.
const (
	StatusParsed       = "PARSED"
	StatusNeedsReview  = "NEEDS_REVIEW"
	StatusPersisted    = "PERSISTED"
	StatusSheetPending = "SHEET_PENDING"
	StatusSheetSynced  = "SHEET_SYNCED"
)

// VoucherNumberPattern matches the canonical voucher number format:
// 5 digits, hyphen, 3-letter client code, 4 digits (e.g. 12357-ROS8227).
var VoucherNumberPattern = regexp.MustCompile(`\d{5}-[A-Z]{3}\d{4}`)

// Voucher is a structured record of an authorized service period extracted
// from a scanned source document. VoucherNumber is the unique key.
type Voucher struct {
	ID               int64
	VoucherNumber    string
	ClientCode       string
	ClientName       string
	ServiceStartDate time.Time
	ServiceEndDate   time.Time
	Hours            float64
	Rate             float64
	Amount           float64
	InvoiceDate      time.Time
	Status           string
	SourceDocumentID string
	RawTextExcerpt   string
	CreatedAt        time.Time
}

// ComputeAmount recalculates Amount from Hours and Rate, rounded to cents.
func (v *Voucher) ComputeAmount() {
	v.Amount = Round2(v.Hours * v.Rate)
}

// ComputeInvoiceDate sets InvoiceDate to the first day of the month
// immediately following the service end date's month. This derivation always
// wins over any invoice date printed in the document.
func (v *Voucher) ComputeInvoiceDate() {
	end := v.ServiceEndDate
	v.InvoiceDate = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// Round2 rounds to two decimal places (cents).
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

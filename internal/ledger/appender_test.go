package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/models"
)

func newTestAppender(t *testing.T) *Appender {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	a, err := NewAppender(path, "Vouchers", zap.NewNop())
	require.NoError(t, err)
	return a
}

func ledgerVoucher(number string) *models.Voucher {
	v := &models.Voucher{
		VoucherNumber:    number,
		ClientCode:       number[6:9],
		ClientName:       "Rosewood Care Services",
		ServiceStartDate: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		ServiceEndDate:   time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC),
		Hours:            6.0,
		Rate:             30.0,
		Status:           models.StatusSheetSynced,
	}
	v.ComputeAmount()
	v.ComputeInvoiceDate()
	return v
}

func readRows(t *testing.T, a *Appender) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(a.path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(a.sheetName)
	require.NoError(t, err)
	return rows
}

func TestAppender_CreatesWorkbookWithHeader(t *testing.T) {
	a := newTestAppender(t)

	rows := readRows(t, a)
	require.Len(t, rows, 1)
	assert.Equal(t, "Voucher Number", rows[0][0])
	assert.Equal(t, "Amount", rows[0][7])
}

func TestAppender_AppendsVoucherRow(t *testing.T) {
	a := newTestAppender(t)

	require.NoError(t, a.Append(ledgerVoucher("12357-ROS8227")))

	rows := readRows(t, a)
	require.Len(t, rows, 2)
	assert.Equal(t, "12357-ROS8227", rows[1][0])
	assert.Equal(t, "ROS", rows[1][1])
	assert.Equal(t, "2025-11-30", rows[1][4])
	assert.Equal(t, "2025-12-01", rows[1][8])
}

func TestAppender_AppendIsIdempotent(t *testing.T) {
	a := newTestAppender(t)

	v := ledgerVoucher("12357-ROS8227")
	require.NoError(t, a.Append(v))
	require.NoError(t, a.Append(v))

	rows := readRows(t, a)
	assert.Len(t, rows, 2)
}

func TestAppender_AppendsMultipleVouchers(t *testing.T) {
	a := newTestAppender(t)

	require.NoError(t, a.Append(ledgerVoucher("11111-ROS0001")))
	require.NoError(t, a.Append(ledgerVoucher("22222-HGT0002")))
	require.NoError(t, a.Append(ledgerVoucher("33333-ABC0003")))

	rows := readRows(t, a)
	require.Len(t, rows, 4)
	assert.Equal(t, "22222-HGT0002", rows[2][0])
	assert.Equal(t, "HGT", rows[2][1])
}

func TestAppender_ReopensExistingWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")

	a1, err := NewAppender(path, "Vouchers", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a1.Append(ledgerVoucher("11111-ROS0001")))

	// A second appender over the same file must keep the existing rows.
	a2, err := NewAppender(path, "Vouchers", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a2.Append(ledgerVoucher("22222-HGT0002")))

	rows := readRows(t, a2)
	assert.Len(t, rows, 3)
}

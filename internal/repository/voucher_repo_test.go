package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/models"
	"github.com/dcallies/voucher-sync/pkg/database"
)

func newTestRepo(t *testing.T) *VoucherRepository {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations())

	return NewVoucherRepository(db.DB, logger)
}

func testVoucher(number string) *models.Voucher {
	v := &models.Voucher{
		VoucherNumber:    number,
		ClientCode:       number[6:9],
		ClientName:       "Rosewood Care Services",
		ServiceStartDate: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		ServiceEndDate:   time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC),
		Hours:            6.0,
		Rate:             30.0,
		Status:           models.StatusPersisted,
		SourceDocumentID: "doc-" + number,
		RawTextExcerpt:   "Voucher No: " + number,
	}
	v.ComputeAmount()
	v.ComputeInvoiceDate()
	return v
}

func TestVoucherRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v := testVoucher("12357-ROS8227")
	require.NoError(t, repo.Create(ctx, v))
	assert.NotZero(t, v.ID)

	got, err := repo.GetByNumber(ctx, "12357-ROS8227")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ROS", got.ClientCode)
	assert.Equal(t, 180.00, got.Amount)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), got.InvoiceDate)
	assert.Equal(t, models.StatusPersisted, got.Status)
}

func TestVoucherRepository_GetMissingReturnsNil(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByNumber(context.Background(), "00000-XXX0000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVoucherRepository_DuplicateInsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testVoucher("12357-ROS8227")))

	err := repo.Create(ctx, testVoucher("12357-ROS8227"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestVoucherRepository_Exists(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, "12357-ROS8227")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Create(ctx, testVoucher("12357-ROS8227")))

	exists, err = repo.Exists(ctx, "12357-ROS8227")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestVoucherRepository_UpdateStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testVoucher("12357-ROS8227")))
	require.NoError(t, repo.UpdateStatus(ctx, "12357-ROS8227", models.StatusSheetSynced))

	got, err := repo.GetByNumber(ctx, "12357-ROS8227")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSheetSynced, got.Status)
}

func TestVoucherRepository_UpdateStatusMissingVoucher(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.UpdateStatus(context.Background(), "00000-XXX0000", models.StatusSheetSynced)
	assert.Error(t, err)
}

func TestVoucherRepository_ListSheetPending(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	synced := testVoucher("11111-ROS0001")
	require.NoError(t, repo.Create(ctx, synced))
	require.NoError(t, repo.UpdateStatus(ctx, synced.VoucherNumber, models.StatusSheetSynced))

	pending := testVoucher("22222-ROS0002")
	pending.Status = models.StatusSheetPending
	require.NoError(t, repo.Create(ctx, pending))

	got, err := repo.ListSheetPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "22222-ROS0002", got[0].VoucherNumber)
}

package service

import (
	"context"
	"regexp"
	"testing"

	"license-service/internal/models"
	"license-service/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCheckoutService(t *testing.T) (*CheckoutService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewCheckoutService(store.NewWithDB(db), nil, nil), mock
}

func expectSessionLock(mock sqlmock.Sqlmock, status string, total, careLoop int64) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM cart_sessions WHERE session_id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "status", "total_amount", "care_loop_amount", "created_at", "updated_at"}).
			AddRow("sess-1", status, total, careLoop, testTime(), testTime()))
}

func TestCheckoutSettlesCart(t *testing.T) {
	svc, mock := newMockCheckoutService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectSessionLock(mock, models.SessionStatusActive, 300000, 45000)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO checkout_transactions")).
		WithArgs("sess-1", int64(300000), int64(45000), int64(12), models.CheckoutStatusProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "total_amount", "care_loop_amount", "grain_count", "payment_status", "created_at", "updated_at"}).
			AddRow(int64(31), "sess-1", int64(300000), int64(45000), int64(12), models.CheckoutStatusProcessing, testTime(), testTime()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cart_sessions SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_items")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	resp, err := svc.Checkout(ctx, &CheckoutRequest{SessionID: "sess-1", GrainCount: 12})
	require.NoError(t, err)
	assert.Equal(t, int64(31), resp.TransactionID)
	assert.Equal(t, int64(300000), resp.TotalAmount)
	assert.Equal(t, int64(45000), resp.CareLoopAmount)
	assert.Equal(t, models.CheckoutStatusProcessing, resp.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutAlreadySettled(t *testing.T) {
	svc, mock := newMockCheckoutService(t)
	ctx := context.Background()

	// A second checkout sees the completed status and creates nothing:
	// no insert expectation exists beyond the session lock.
	mock.ExpectBegin()
	expectSessionLock(mock, models.SessionStatusCompleted, 300000, 45000)
	mock.ExpectRollback()

	_, err := svc.Checkout(ctx, &CheckoutRequest{SessionID: "sess-1", GrainCount: 12})

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "cart already settled", conflictErr.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc, mock := newMockCheckoutService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectSessionLock(mock, models.SessionStatusActive, 0, 0)
	mock.ExpectRollback()

	_, err := svc.Checkout(ctx, &CheckoutRequest{SessionID: "sess-1", GrainCount: 1})

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "cart is empty", conflictErr.Reason)
}

func TestCheckoutUnknownSession(t *testing.T) {
	svc, mock := newMockCheckoutService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM cart_sessions WHERE session_id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}))
	mock.ExpectRollback()

	_, err := svc.Checkout(ctx, &CheckoutRequest{SessionID: "ghost", GrainCount: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	svc, mock := newMockCheckoutService(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM licenses WHERE is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(10)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(total_amount), 0) FROM checkout_transactions")).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(900000)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cart_sessions WHERE status = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalLicenses)
	assert.Equal(t, int64(900000), stats.TotalRevenue)
	assert.Equal(t, int64(80), stats.SyncSpeed)
}

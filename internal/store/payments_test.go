package store

import (
	"context"
	"regexp"
	"testing"

	"license-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentColumns() []string {
	return []string{"transaction_id", "session_id", "gateway", "amount_cents", "currency",
		"status", "payment_intent_id", "customer_email", "created_at", "updated_at"}
}

func TestCompletePaymentTx(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM payment_transactions WHERE transaction_id = $1 FOR UPDATE")).
		WithArgs("TXN_abc").
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow("TXN_abc", "sess-1", models.GatewayPaypal, int64(300000), "USD",
				models.PaymentStatusPending, nil, nil, testTime(), testTime()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_transactions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM cart_sessions WHERE session_id = $1 FOR UPDATE")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.SessionStatusActive))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cart_sessions SET status = $1, updated_at = NOW() WHERE session_id = $2")).
		WithArgs(models.SessionStatusCompleted, "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_items WHERE session_id = $1")).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	p, err := s.CompletePaymentTx(ctx, "TXN_abc", nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePaymentTxAlreadyCompleted(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM payment_transactions WHERE transaction_id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow("TXN_abc", "sess-1", models.GatewayManual, int64(300000), "USD",
				models.PaymentStatusCompleted, nil, nil, testTime(), testTime()))
	mock.ExpectRollback()

	_, err := s.CompletePaymentTx(ctx, "TXN_abc", nil)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePaymentTxUnknown(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM payment_transactions WHERE transaction_id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(paymentColumns()))
	mock.ExpectRollback()

	_, err := s.CompletePaymentTx(ctx, "TXN_ghost", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompletePaymentTxSessionAlreadySettled(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	// Checkout already settled the session; completing the payment must
	// not try to clear the cart a second time.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM payment_transactions WHERE transaction_id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow("TXN_abc", "sess-1", models.GatewayStripe, int64(300000), "USD",
				models.PaymentStatusPending, nil, nil, testTime(), testTime()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_transactions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM cart_sessions WHERE session_id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.SessionStatusCompleted))
	mock.ExpectCommit()

	p, err := s.CompletePaymentTx(ctx, "TXN_abc", nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireStalePayments(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	// The expired transactions come back so their failure can be published.
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payment_transactions")).
		WithArgs(models.PaymentStatusFailed, models.PaymentStatusPending, 900).
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "session_id"}).
			AddRow("TXN_a", "sess-1").
			AddRow("TXN_b", "sess-2"))

	expired, err := s.ExpireStalePayments(ctx, 900)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "TXN_a", expired[0].TransactionID)
	assert.Equal(t, "sess-2", expired[1].SessionID)
}

func TestCompleteCheckoutForSession(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE checkout_transactions")).
		WithArgs(models.CheckoutStatusCompleted, "sess-1", models.CheckoutStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	advanced, err := s.CompleteCheckoutForSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), advanced)
}

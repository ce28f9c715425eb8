package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return newSQLStore(sqlx.NewDb(db, DriverSQLite)), mock
}

func TestWithTx_BeginFails(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	called := false
	err := store.WithTx(context.Background(), func(Store) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrTxFailed)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitFails(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM carts").
		WithArgs("cust_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	err := store.WithTx(context.Background(), func(tx Store) error {
		return tx.DeleteCart(context.Background(), "cust_1")
	})
	assert.ErrorIs(t, err, ErrTxFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackFailureIsReported(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection lost"))

	err := store.WithTx(context.Background(), func(Store) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, ErrTxFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementPromotionUsage_ExhaustedRollsBack(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE promotions").
		WithArgs(sqlmock.AnyArg(), "promo-1", true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("promo-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Store) error {
		return tx.IncrementPromotionUsage(context.Background(), "promo-1", testNow)
	})
	assert.ErrorIs(t, err, ErrUsageExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatus_DatabaseError(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectExec("UPDATE orders").WillReturnError(errors.New("database is locked"))

	o := &domain.Order{ID: "order-1", Status: domain.OrderConfirmed}
	err := store.UpdateOrderStatus(context.Background(), o, domain.OrderPending)

	var sErr *StoreError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "UpdateOrderStatus", sErr.Op)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing_Failure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	store := newSQLStore(sqlx.NewDb(db, DriverSQLite))

	mock.ExpectPing().WillReturnError(errors.New("refused"))
	assert.ErrorIs(t, store.Ping(context.Background()), ErrConnectionFailed)
}

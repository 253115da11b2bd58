package postgres

import (
	"context"
	"errors"
	"testing"

	"points-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerStore_GetWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLedgerStore(mock)
	w := newTestWallet("wallet-a", 100)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE wallet_id").WithArgs("wallet-a").WillReturnRows(walletRow(w))

	result, err := store.GetWallet(context.Background(), "wallet-a")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "owner-wallet-a", result.OwnerID)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(100)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_GetWallet_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLedgerStore(mock)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE wallet_id").WithArgs("missing").WillReturnRows(pgxmock.NewRows(walletCols()))

	result, err := store.GetWallet(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_GetWallet_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLedgerStore(mock)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE wallet_id").WithArgs("wallet-a").WillReturnError(errors.New("conn reset"))

	_, err = store.GetWallet(context.Background(), "wallet-a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get wallet by id")
}

func TestLedgerStore_GetWalletByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLedgerStore(mock)
	w := newTestWallet("wallet-a", 5)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").WithArgs("owner-wallet-a").WillReturnRows(walletRow(w))

	result, err := store.GetWalletByOwner(context.Background(), "owner-wallet-a")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "wallet-a", result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_ListWallets(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLedgerStore(mock)
	a := newTestWallet("wallet-a", 5)
	b := newTestWallet("wallet-b", 7)
	b.Locked = true

	mock.ExpectQuery("SELECT .+ FROM wallets ORDER BY").WillReturnRows(
		pgxmock.NewRows(walletCols()).
			AddRow(a.ID, a.OwnerID, a.Balance, a.Locked, a.CreatedAt).
			AddRow(b.ID, b.OwnerID, b.Balance, b.Locked, b.CreatedAt),
	)

	wallets, err := store.ListWallets(context.Background())
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.True(t, wallets[1].Locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_UpsertWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLedgerStore(mock)
	w := newTestWallet("wallet-a", 100)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallets .+ ON CONFLICT \\(wallet_id\\) DO UPDATE").
		WithArgs(w.ID, w.OwnerID, w.Balance, w.Locked, w.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpsertWallet(context.Background(), w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_UpsertWallet_UnknownOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLedgerStore(mock)
	w := newTestWallet("wallet-a", 100)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.OwnerID, w.Balance, w.Locked, w.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})
	mock.ExpectRollback()

	err = store.UpsertWallet(context.Background(), w)
	assert.Equal(t, apperror.KindConstraint, apperror.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_UpsertWallet_NegativeBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLedgerStore(mock)

	err = store.UpsertWallet(context.Background(), newTestWallet("wallet-a", -1))
	assertAppError(t, err, "VAL_002")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_SetWalletLocked(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLedgerStore(mock)
	locked := newTestWallet("wallet-a", 10)
	locked.Locked = true

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE wallets SET is_locked = \\$1 WHERE wallet_id = \\$2 RETURNING").
		WithArgs(true, "wallet-a").
		WillReturnRows(walletRow(locked))
	mock.ExpectCommit()

	w, err := store.SetWalletLocked(context.Background(), "wallet-a", true)
	require.NoError(t, err)
	assert.True(t, w.Locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_SetWalletLocked_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLedgerStore(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE wallets SET is_locked").
		WithArgs(false, "missing").
		WillReturnRows(pgxmock.NewRows(walletCols()))
	mock.ExpectRollback()

	_, err = store.SetWalletLocked(context.Background(), "missing", false)
	assertAppError(t, err, "STATE_001")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockPair_ReturnsInCallerOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockWalletSQL).WithArgs("a").WillReturnRows(walletRow(newTestWallet("a", 1)))
	mock.ExpectQuery(lockWalletSQL).WithArgs("b").WillReturnRows(walletRow(newTestWallet("b", 2)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	from, to, err := lockPair(context.Background(), tx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, "b", from.ID)
	assert.Equal(t, "a", to.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapWriteError(t *testing.T) {
	assert.Equal(t, apperror.KindConstraint, apperror.KindOf(mapWriteError("op", &pgconn.PgError{Code: "23503"})))
	assertAppError(t, mapWriteError("op", &pgconn.PgError{Code: "23514"}), "STATE_003")

	err := mapWriteError("op", errors.New("boom"))
	assert.EqualError(t, err, "op: boom")
}

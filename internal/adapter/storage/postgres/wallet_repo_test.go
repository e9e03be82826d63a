package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(userID uuid.UUID, number string, balance int64) *domain.Wallet {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Wallet{
		ID:           uuid.New(),
		UserID:       userID,
		WalletNumber: number,
		Balance:      balance,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func walletColumnNames() []string {
	return []string{"id", "user_id", "wallet_number", "balance", "created_at", "updated_at"}
}

func walletRow(w *domain.Wallet) *pgxmock.Rows {
	return pgxmock.NewRows(walletColumnNames()).AddRow(
		w.ID, w.UserID, w.WalletNumber, w.Balance, w.CreatedAt, w.UpdatedAt,
	)
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New(), "123456789012", 0)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallets .+ ON CONFLICT DO NOTHING").
		WithArgs(w.ID, w.UserID, w.WalletNumber, w.Balance, w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	created, err := repo.Create(context.Background(), tx, w)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Create_NumberCollision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New(), "123456789012", 0)

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.UserID, w.WalletNumber, w.Balance, w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := repo.Create(context.Background(), nil, w)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestWalletRepo_GetByNumber(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New(), "000000000042", 2500)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE wallet_number").
		WithArgs(w.WalletNumber).
		WillReturnRows(walletRow(w))

	result, err := repo.GetByNumber(context.Background(), w.WalletNumber)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(2500), result.Balance)
	assert.Equal(t, w.UserID, result.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByUserID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE user_id").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(walletColumnNames()))

	result, err := repo.GetByUserID(context.Background(), userID)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestWalletRepo_NumberExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("123456789012").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.NumberExists(context.Background(), "123456789012")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_LockForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	a := newTestWallet(uuid.New(), "111111111111", 100)
	b := newTestWallet(uuid.New(), "222222222222", 200)
	ids := []uuid.UUID{a.ID, b.ID}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id = ANY\\(\\$1\\) ORDER BY id FOR UPDATE").
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows(walletColumnNames()).
			AddRow(a.ID, a.UserID, a.WalletNumber, a.Balance, a.CreatedAt, a.UpdatedAt).
			AddRow(b.ID, b.UserID, b.WalletNumber, b.Balance, b.CreatedAt, b.UpdatedAt))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	wallets, err := repo.LockForUpdate(context.Background(), tx, ids...)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, int64(200), wallets[1].Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_AdjustBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE wallets SET balance = balance \\+ \\$1").
		WithArgs(int64(-300), userID).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(700)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	balance, err := repo.AdjustBalance(context.Background(), tx, userID, -300)
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_AdjustBalance_Underflow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("UPDATE wallets SET balance").
		WithArgs(int64(-10000), userID).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.AdjustBalance(context.Background(), nil, userID, -10000)
	assert.ErrorIs(t, err, domain.ErrBalanceUnderflow)
}

func TestWalletRepo_AdjustBalance_DBError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("UPDATE wallets SET balance").
		WithArgs(int64(50), userID).
		WillReturnError(errors.New("connection reset"))

	_, err = repo.AdjustBalance(context.Background(), nil, userID, 50)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrBalanceUnderflow)
	assert.Contains(t, err.Error(), "adjust wallet balance")
}

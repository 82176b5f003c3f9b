package payments

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hilla1/server/models"
)

func testStore(t *testing.T) *TransactionStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	// Serialize access so concurrent tests do not trip SQLITE_BUSY.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.MpesaTransaction{}))

	return NewTransactionStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedPending(t *testing.T, store *TransactionStore, checkoutRequestID string) *models.MpesaTransaction {
	t.Helper()

	tx := &models.MpesaTransaction{
		Phone:             "254712345678",
		Amount:            1500,
		CheckoutRequestID: checkoutRequestID,
		MerchantRequestID: "merchant-1",
		Status:            models.StatusPending,
	}
	require.NoError(t, store.Create(tx))
	return tx
}

func TestByCheckoutIDNotFound(t *testing.T) {
	store := testStore(t)

	tx, err := store.ByCheckoutID("ws_CO_missing")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestFinalizeFirstWins(t *testing.T) {
	store := testStore(t)
	seedPending(t, store, "ws_CO_1")

	won, err := store.Finalize("ws_CO_1", TerminalUpdate{
		Status:        models.StatusCompleted,
		ResultCode:    0,
		ResultDesc:    "The service request is processed successfully.",
		ReceiptNumber: "NLJ7RT61SV",
		Amount:        1500,
	})
	require.NoError(t, err)
	assert.True(t, won)

	// A later, conflicting outcome must lose.
	won, err = store.Finalize("ws_CO_1", TerminalUpdate{
		Status:     models.StatusCancelled,
		ResultCode: 1032,
		ResultDesc: "Request cancelled by user",
	})
	require.NoError(t, err)
	assert.False(t, won)

	tx, err := store.ByCheckoutID("ws_CO_1")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, models.StatusCompleted, tx.Status)
	assert.Equal(t, "NLJ7RT61SV", tx.MpesaReceiptNumber)
	require.NotNil(t, tx.ResultCode)
	assert.Equal(t, 0, *tx.ResultCode)
}

func TestFinalizeUnknownTransaction(t *testing.T) {
	store := testStore(t)

	won, err := store.Finalize("ws_CO_missing", TerminalUpdate{Status: models.StatusFailed})
	require.NoError(t, err)
	assert.False(t, won)
}

func TestFinalizeOptionalFields(t *testing.T) {
	store := testStore(t)
	seedPending(t, store, "ws_CO_1")

	// Failure outcome has no metadata; existing values stay.
	won, err := store.Finalize("ws_CO_1", TerminalUpdate{
		Status:     models.StatusInsufficient,
		ResultCode: 1,
		ResultDesc: "The balance is insufficient for the transaction",
	})
	require.NoError(t, err)
	assert.True(t, won)

	tx, err := store.ByCheckoutID("ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, "254712345678", tx.Phone)
	assert.Equal(t, int64(1500), tx.Amount)
	assert.Empty(t, tx.MpesaReceiptNumber)
}

func TestFinalizeConcurrent(t *testing.T) {
	store := testStore(t)
	seedPending(t, store, "ws_CO_race")

	const attempts = 8
	results := make([]bool, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := models.StatusCompleted
			if i%2 == 1 {
				status = models.StatusTimeout
			}
			won, err := store.Finalize("ws_CO_race", TerminalUpdate{Status: status, ResultCode: i})
			if err == nil {
				results[i] = won
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, won := range results {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	tx, err := store.ByCheckoutID("ws_CO_race")
	require.NoError(t, err)
	assert.True(t, tx.Terminal())
}

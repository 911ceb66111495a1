package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/transient"
)

// testDepositService wires only the transient store: the wallet and
// database stay nil, so any path that touches them panics the test.
func testDepositService(store transient.Store) *DepositService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDepositService(nil, nil, nil, store, logger)
}

func pendingDeposit(processed bool) *models.PendingDeposit {
	return &models.PendingDeposit{
		DepositID:   "dep_1",
		UserID:      9,
		OrderID:     41,
		Gateway:     "paypal",
		Currency:    "USD",
		AmountCents: 5000,
		Processed:   processed,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestDepositService_SaveFindRoundTrip(t *testing.T) {
	svc := testDepositService(transient.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, svc.save(ctx, pendingDeposit(false)))

	got, err := svc.Find(ctx, "dep_1")
	require.NoError(t, err)
	assert.Equal(t, "dep_1", got.DepositID)
	assert.EqualValues(t, 9, got.UserID)
	assert.EqualValues(t, 5000, got.AmountCents)
	assert.False(t, got.Processed)
}

func TestDepositService_FindUnknown(t *testing.T) {
	svc := testDepositService(transient.NewMemoryStore())

	_, err := svc.Find(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDepositService_MaybeCreditDeposit_ProcessedIsNoop(t *testing.T) {
	svc := testDepositService(transient.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, svc.save(ctx, pendingDeposit(true)))

	// A processed deposit short-circuits before the wallet is touched.
	assert.NoError(t, svc.MaybeCreditDeposit(ctx, "dep_1", "txn_1"))
}

func TestDepositService_MaybeCreditDeposit_UnknownIsNoop(t *testing.T) {
	svc := testDepositService(transient.NewMemoryStore())

	assert.NoError(t, svc.MaybeCreditDeposit(context.Background(), "expired", "txn_1"))
}

func TestDepositService_Cancel(t *testing.T) {
	t.Run("drops a pending deposit", func(t *testing.T) {
		svc := testDepositService(transient.NewMemoryStore())
		ctx := context.Background()

		require.NoError(t, svc.save(ctx, pendingDeposit(false)))
		require.NoError(t, svc.Cancel(ctx, "dep_1"))

		_, err := svc.Find(ctx, "dep_1")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("keeps a processed deposit", func(t *testing.T) {
		svc := testDepositService(transient.NewMemoryStore())
		ctx := context.Background()

		require.NoError(t, svc.save(ctx, pendingDeposit(true)))
		require.NoError(t, svc.Cancel(ctx, "dep_1"))

		got, err := svc.Find(ctx, "dep_1")
		require.NoError(t, err)
		assert.True(t, got.Processed)
	})
}

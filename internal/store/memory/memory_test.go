package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/bankledger/internal/domain"
	"github.com/punchamoorthee/bankledger/internal/store/memory"
)

func seed(t *testing.T, s *memory.Store, numbers ...string) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	owner := &domain.Client{Name: "Ada", Address: "12 Analytical St"}
	require.NoError(t, s.CreateClient(ctx, owner))

	ids := make(map[string]int64, len(numbers))
	for _, n := range numbers {
		acc := &domain.Account{Number: n, Type: domain.DebitCard, Balance: decimal.Zero, ClientID: owner.ID}
		require.NoError(t, s.CreateAccount(ctx, acc))
		ids[n] = acc.ID
	}
	return ids
}

func TestLockRequiresTransaction(t *testing.T) {
	s := memory.New(time.Second)
	ids := seed(t, s, "A")

	_, err := s.LockByID(context.Background(), ids["A"])
	assert.ErrorIs(t, err, domain.ErrNoTransaction)

	err = s.Persist(context.Background(), &domain.Account{ID: ids["A"]})
	assert.ErrorIs(t, err, domain.ErrNoTransaction)
}

func TestUncommittedWritesAreInvisibleAndRolledBack(t *testing.T) {
	s := memory.New(time.Second)
	ids := seed(t, s, "A")
	ctx := context.Background()

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		acc, err := s.LockByID(ctx, ids["A"])
		require.NoError(t, err)
		acc.Credit(decimal.RequireFromString("9.99"))
		require.NoError(t, s.Persist(ctx, acc))

		outside, err := s.GetAccount(context.Background(), ids["A"])
		require.NoError(t, err)
		assert.True(t, outside.Balance.IsZero(), "staged balance leaked outside the transaction")
		return domain.ErrInsufficientFunds
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	acc, err := s.GetAccount(ctx, ids["A"])
	require.NoError(t, err)
	assert.True(t, acc.Balance.IsZero())
}

func TestLockByNumbersSkipsUnknownAndDeduplicates(t *testing.T) {
	s := memory.New(time.Second)
	seed(t, s, "A", "B")

	err := s.WithTransaction(context.Background(), func(ctx context.Context) error {
		got, err := s.LockByNumbers(ctx, []string{"B", "missing", "B", "A"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Contains(t, got, "A")
		assert.Contains(t, got, "B")
		return nil
	})
	require.NoError(t, err)
}

// A waiter that needs {A, B} while B is held must already own A: locks are
// taken in ascending number order.
func TestLockByNumbersAcquiresInAscendingOrder(t *testing.T) {
	s := memory.New(time.Second)
	ids := seed(t, s, "A", "B")
	ctx := context.Background()

	holdB := make(chan struct{})
	releaseB := make(chan struct{})
	go s.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.LockByNumbers(ctx, []string{"B"})
		close(holdB)
		<-releaseB
		return err
	})
	<-holdB

	waiterDone := make(chan error, 1)
	go func() {
		waiterDone <- s.WithTransaction(ctx, func(ctx context.Context) error {
			_, err := s.LockByNumbers(ctx, []string{"B", "A"})
			return err
		})
	}()

	// Give the waiter time to take A and block on B.
	time.Sleep(30 * time.Millisecond)
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	err := s.WithTransaction(probeCtx, func(ctx context.Context) error {
		_, err := s.LockByID(ctx, ids["A"])
		return err
	})
	assert.ErrorIs(t, err, domain.ErrLockTimeout, "A should be held by the waiter")

	close(releaseB)
	assert.NoError(t, <-waiterDone)
}

func TestLockTimeout(t *testing.T) {
	s := memory.New(20 * time.Millisecond)
	ids := seed(t, s, "A")
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	go s.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.LockByID(ctx, ids["A"])
		close(held)
		<-release
		return err
	})
	<-held
	defer close(release)

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.LockByID(ctx, ids["A"])
		return err
	})
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
}

func TestPersistEnforcesColumnConstraints(t *testing.T) {
	s := memory.New(time.Second)
	ids := seed(t, s, "A")

	err := s.WithTransaction(context.Background(), func(ctx context.Context) error {
		acc, err := s.LockByID(ctx, ids["A"])
		require.NoError(t, err)

		acc.Balance = decimal.RequireFromString("-0.01")
		assert.Error(t, s.Persist(ctx, acc))

		acc.Balance = decimal.RequireFromString("10000000000000.00")
		assert.Error(t, s.Persist(ctx, acc))

		acc.Balance = decimal.RequireFromString("9999999999999.99")
		assert.NoError(t, s.Persist(ctx, acc))
		return nil
	})
	require.NoError(t, err)
}

func TestCreateAccountUniqueNumber(t *testing.T) {
	s := memory.New(time.Second)
	seed(t, s, "A")
	ctx := context.Background()

	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)

	err = s.CreateAccount(ctx, &domain.Account{Number: "A", Type: domain.CreditCard, ClientID: clients[0].ID})
	assert.ErrorIs(t, err, domain.ErrUniqueNumber)

	err = s.CreateAccount(ctx, &domain.Account{Number: "Z", Type: domain.CreditCard, ClientID: 999})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedgerVisibleOnlyAfterCommit(t *testing.T) {
	s := memory.New(time.Second)
	ids := seed(t, s, "A", "B")
	ctx := context.Background()
	amount := decimal.RequireFromString("3.00")

	var transferID int64
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		tr, err := s.RecordTransfer(ctx, ids["A"], ids["B"], amount)
		require.NoError(t, err)
		transferID = tr.ID

		_, err = s.GetTransfer(ctx, tr.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	tr, err := s.GetTransfer(ctx, transferID)
	require.NoError(t, err)
	assert.True(t, tr.Amount.Equal(amount))

	entries, err := s.ListEntries(ctx, ids["A"])
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "-3.00", domain.FormatMoney(entries[0].Delta))
	require.NotNil(t, entries[0].TransferID)
	assert.Equal(t, transferID, *entries[0].TransferID)
}

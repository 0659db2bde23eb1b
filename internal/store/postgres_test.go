package store_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/punchamoorthee/bankledger/internal/domain"
	"github.com/punchamoorthee/bankledger/internal/service"
	"github.com/punchamoorthee/bankledger/internal/store"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

// postgresDSN starts one container for the whole package run.
func postgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pgOnce.Do(func() {
		ctx := context.Background()
		req := testcontainers.ContainerRequest{
			Image:        "postgres:15",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "testuser",
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		}
		var container testcontainers.Container
		container, pgErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if pgErr != nil {
			return
		}
		host, err := container.Host(ctx)
		if err != nil {
			pgErr = err
			return
		}
		port, err := container.MappedPort(ctx, "5432")
		if err != nil {
			pgErr = err
			return
		}
		pgDSN = fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	})
	require.NoError(t, pgErr, "failed to start postgres container")
	return pgDSN
}

type pgFixture struct {
	store     *store.Store
	transfers *service.TransferService
	clientID  int64
}

func newPGFixture(t *testing.T, lockTimeout time.Duration) *pgFixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewStore(ctx, postgresDSN(t), store.PoolOptions{MaxConns: 20, LockTimeout: lockTimeout})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	// Migrate twice: already-applied files are skipped.
	require.NoError(t, s.Migrate(ctx))
	_, err = s.Db.Exec(ctx, "TRUNCATE ledger_entries, transfers, accounts, clients RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	owner := &domain.Client{Name: "Barbara", Address: "MIT", Birthdate: time.Date(1939, 11, 7, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.CreateClient(ctx, owner))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &pgFixture{
		store:     s,
		transfers: service.NewTransferService(s, s, s, logger),
		clientID:  owner.ID,
	}
}

func (f *pgFixture) open(t *testing.T, number, balance string) *domain.Account {
	t.Helper()
	ctx := context.Background()
	acc := &domain.Account{Number: number, Type: domain.DebitCard, Balance: decimal.Zero, ClientID: f.clientID}
	require.NoError(t, f.store.CreateAccount(ctx, acc))
	if d := decimal.RequireFromString(balance); d.IsPositive() {
		_, err := f.transfers.Credit(ctx, acc.ID, d)
		require.NoError(t, err)
	}
	return acc
}

func (f *pgFixture) balance(t *testing.T, id int64) string {
	t.Helper()
	acc, err := f.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return domain.FormatMoney(acc.Balance)
}

func TestPostgresCreditAndTransfer(t *testing.T) {
	f := newPGFixture(t, time.Second)
	x := f.open(t, "1001", "5.00")
	y := f.open(t, "1002", "0")

	acc, err := f.transfers.Credit(context.Background(), x.ID, decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	assert.Equal(t, "15.00", domain.FormatMoney(acc.Balance))

	res, err := f.transfers.Transfer(context.Background(), "1001", "1002", decimal.RequireFromString("14.99"))
	require.NoError(t, err)
	assert.Equal(t, "0.01", f.balance(t, x.ID))
	assert.Equal(t, "14.99", f.balance(t, y.ID))

	tr, err := f.store.GetTransfer(context.Background(), res.Transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, "14.99", domain.FormatMoney(tr.Amount))

	entries, err := f.store.ListEntries(context.Background(), x.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "-14.99", domain.FormatMoney(entries[0].Delta))
}

func TestPostgresRejectionsLeaveBalances(t *testing.T) {
	f := newPGFixture(t, time.Second)
	x := f.open(t, "1001", "10.00")
	y := f.open(t, "1002", "9999999999999.00")

	_, err := f.transfers.Transfer(context.Background(), "1001", "1002", decimal.RequireFromString("10.01"))
	assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))

	// numeric(15,2) overflow on the destination rolls back the source debit.
	_, err = f.transfers.Transfer(context.Background(), "1001", "1002", decimal.RequireFromString("1.00"))
	assert.Equal(t, domain.KindPersistence, domain.KindOf(err))

	_, err = f.transfers.Transfer(context.Background(), "0000", "0001", decimal.RequireFromString("1.00"))
	assert.Equal(t, domain.KindSourceNotFound, domain.KindOf(err))

	assert.Equal(t, "10.00", f.balance(t, x.ID))
	assert.Equal(t, "9999999999999.00", f.balance(t, y.ID))
}

func TestPostgresConcurrentCredits(t *testing.T) {
	f := newPGFixture(t, 5*time.Second)
	x := f.open(t, "1001", "5.00")

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := f.transfers.Credit(context.Background(), x.ID, decimal.RequireFromString("1.00"))
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, "55.00", f.balance(t, x.ID))
}

func TestPostgresOppositeTransfersDoNotDeadlock(t *testing.T) {
	f := newPGFixture(t, 0)
	a := f.open(t, "2001", "100.00")
	b := f.open(t, "2002", "100.00")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var g errgroup.Group
	for i := 0; i < 100; i++ {
		g.Go(func() error {
			_, err := f.transfers.Transfer(ctx, "2001", "2002", decimal.RequireFromString("1.00"))
			return err
		})
		g.Go(func() error {
			_, err := f.transfers.Transfer(ctx, "2002", "2001", decimal.RequireFromString("1.00"))
			return err
		})
	}
	// A 40P01 deadlock would surface here as a persistence error.
	require.NoError(t, g.Wait())
	assert.Equal(t, "100.00", f.balance(t, a.ID))
	assert.Equal(t, "100.00", f.balance(t, b.ID))
}

func TestPostgresLockTimeout(t *testing.T) {
	f := newPGFixture(t, 100*time.Millisecond)
	x := f.open(t, "1001", "5.00")

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- f.store.WithTransaction(context.Background(), func(ctx context.Context) error {
			_, err := f.store.LockByID(ctx, x.ID)
			close(held)
			<-release
			return err
		})
	}()
	<-held

	_, err := f.transfers.Credit(context.Background(), x.ID, decimal.RequireFromString("1.00"))
	close(release)
	require.NoError(t, <-done)

	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.Equal(t, "5.00", f.balance(t, x.ID))
}

func TestPostgresLockRequiresTransaction(t *testing.T) {
	f := newPGFixture(t, time.Second)
	x := f.open(t, "1001", "0")

	_, err := f.store.LockByID(context.Background(), x.ID)
	assert.ErrorIs(t, err, domain.ErrNoTransaction)
	assert.ErrorIs(t, f.store.Persist(context.Background(), x), domain.ErrNoTransaction)
}

func TestPostgresCreateAccountConstraints(t *testing.T) {
	f := newPGFixture(t, time.Second)
	f.open(t, "1001", "0")
	ctx := context.Background()

	err := f.store.CreateAccount(ctx, &domain.Account{Number: "1001", Type: domain.CreditCard, ClientID: f.clientID})
	assert.ErrorIs(t, err, domain.ErrUniqueNumber)

	err = f.store.CreateAccount(ctx, &domain.Account{Number: "1002", Type: domain.CreditCard, ClientID: 9999})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.store.GetAccount(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

package reservation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/seat-ledger/reservation"
)

type fakeReconcileStore struct {
	seats   []reservation.SeatTicketCount
	wallets []reservation.WalletTotal
	err     error
}

func (f fakeReconcileStore) SeatTicketCounts(context.Context) ([]reservation.SeatTicketCount, error) {
	return f.seats, f.err
}

func (f fakeReconcileStore) WalletTotals(context.Context) ([]reservation.WalletTotal, error) {
	return f.wallets, f.err
}

func TestReconcile_FlagsDiscrepancies(t *testing.T) {
	store := fakeReconcileStore{
		seats: []reservation.SeatTicketCount{
			{SeatID: "ok-free", Number: 1},
			{SeatID: "ok-booked", Number: 2, Booked: true, PaidTickets: 1},
			{SeatID: "orphan-booking", Number: 3, Booked: true},
			{SeatID: "ticket-on-free-seat", Number: 4, PaidTickets: 1},
			{SeatID: "double-sold", Number: 5, Booked: true, PaidTickets: 2},
		},
		wallets: []reservation.WalletTotal{
			{UserID: "ok", Balance: money("90"), InitialBalance: money("100"), Transactions: money("-10")},
			{UserID: "drift", Balance: money("95"), InitialBalance: money("100"), Transactions: money("-10")},
		},
	}

	report, err := reservation.Reconcile(context.Background(), store)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, 5, report.SeatsChecked)
	assert.Equal(t, 2, report.WalletsChecked)

	var bad []reservation.SeatID
	for _, s := range report.Seats {
		bad = append(bad, s.SeatID)
	}
	assert.Equal(t, []reservation.SeatID{"orphan-booking", "ticket-on-free-seat", "double-sold"}, bad)

	require.Len(t, report.Wallets, 1)
	assert.Equal(t, reservation.UserID("drift"), report.Wallets[0].UserID)
	requireMoney(t, "90.00", report.Wallets[0].Expected)
}

func TestReconcile_StoreError(t *testing.T) {
	_, err := reservation.Reconcile(context.Background(), fakeReconcileStore{err: errors.New("boom")})
	require.Error(t, err)
}

func TestReconcile_CleanAfterActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	a := f.addUser(t, "a", "200")
	b := f.addUser(t, "b", "30")
	bus, seats := f.addBus(t, "REC", 4, "25")

	t1, err := f.engine.Purchase(ctx, a.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)
	_, err = f.engine.Purchase(ctx, b.ID, bus.ID, seats[1].ID)
	require.NoError(t, err)
	_, err = f.engine.Wallet().Deposit(ctx, b.ID, money("12.34"))
	require.NoError(t, err)
	_, err = f.engine.Cancel(ctx, a.ID, t1.ID)
	require.NoError(t, err)

	report, err := reservation.Reconcile(ctx, f.store)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 4, report.SeatsChecked)
	assert.Equal(t, 2, report.WalletsChecked)
}

package reservation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/seat-ledger/reservation"
	"github.com/warp/seat-ledger/reservation/store"
)

// =============================================================================
// PURCHASE
// =============================================================================

func TestPurchase_DebitsWalletBooksSeatAndIssuesTicket(t *testing.T) {
	// GIVEN: A user with $100 and a bus with 2 seats at $50
	// WHEN: The user buys seat 1
	// THEN: Balance is $50, seat 1 is booked, one PAID ticket at $50 and one
	//       TICKET_PURCHASE row of -$50 exist

	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	user := f.addUser(t, "alice", "100")
	bus, seats := f.addBus(t, "B-1", 2, "50")

	ticket, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)

	assert.Equal(t, reservation.TicketPaid, ticket.Status)
	assert.Equal(t, user.ID, ticket.UserID)
	assert.Equal(t, seats[0].ID, ticket.SeatID)
	requireMoney(t, "50.00", ticket.Price)
	assert.Equal(t, testNow, ticket.PurchasedAt)

	requireMoney(t, "50.00", f.balance(t, user.ID))

	available, err := f.engine.AvailableSeats(ctx, bus.ID)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, 2, available[0].Number)

	history := f.history(t, user.ID)
	require.Len(t, history, 1)
	assert.Equal(t, reservation.TxTicketPurchase, history[0].Type)
	requireMoney(t, "-50.00", history[0].Amount)
	assert.Equal(t, "Ticket for bus B-1 seat 1", history[0].Description)

	f.requireConsistent(t)
}

func TestPurchase_InsufficientFunds_NoMutation(t *testing.T) {
	// GIVEN: A user with $10 and a $50 seat
	// WHEN: The user tries to buy it
	// THEN: InsufficientFunds; balance, seat and history untouched

	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	user := f.addUser(t, "bob", "10")
	bus, seats := f.addBus(t, "B-2", 1, "50")

	_, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.ErrorIs(t, err, reservation.ErrInsufficientFunds)

	var shortage *reservation.InsufficientFundsError
	require.True(t, errors.As(err, &shortage))
	requireMoney(t, "40.00", shortage.Shortfall())

	requireMoney(t, "10.00", f.balance(t, user.ID))
	assert.Empty(t, f.history(t, user.ID))
	available, err := f.engine.AvailableSeats(ctx, bus.ID)
	require.NoError(t, err)
	assert.Len(t, available, 1)
	assert.Empty(t, f.audit.all())
}

func TestPurchase_ExactBalanceSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	user := f.addUser(t, "exact", "50")
	bus, seats := f.addBus(t, "B-3", 1, "50")

	_, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)
	requireMoney(t, "0.00", f.balance(t, user.ID))
}

func TestPurchase_SeatAlreadyBooked(t *testing.T) {
	// GIVEN: Seat 1 already bought by A
	// WHEN: B tries to buy seat 1
	// THEN: SeatAlreadyBooked and B's wallet is untouched

	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	a := f.addUser(t, "a", "100")
	b := f.addUser(t, "b", "100")
	bus, seats := f.addBus(t, "B-4", 2, "50")

	_, err := f.engine.Purchase(ctx, a.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)

	_, err = f.engine.Purchase(ctx, b.ID, bus.ID, seats[0].ID)
	require.ErrorIs(t, err, reservation.ErrSeatAlreadyBooked)
	assert.True(t, reservation.IsClientError(err))
	assert.False(t, reservation.IsRetryable(err))

	requireMoney(t, "100.00", f.balance(t, b.ID))
	assert.Empty(t, f.history(t, b.ID))
	f.requireConsistent(t)
}

func TestPurchase_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	user := f.addUser(t, "nf", "100")
	bus, seats := f.addBus(t, "B-5", 1, "50")
	other, _ := f.addBus(t, "B-6", 1, "50")

	tests := []struct {
		name   string
		user   reservation.UserID
		bus    reservation.BusID
		seat   reservation.SeatID
		target error
	}{
		{"unknown user", "nobody", bus.ID, seats[0].ID, reservation.ErrUserNotFound},
		{"unknown bus", user.ID, "no-bus", seats[0].ID, reservation.ErrBusNotFound},
		{"unknown seat", user.ID, bus.ID, "no-seat", reservation.ErrSeatNotFound},
		{"seat on another bus", user.ID, other.ID, seats[0].ID, reservation.ErrSeatNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Purchase(ctx, tt.user, tt.bus, tt.seat)
			require.ErrorIs(t, err, tt.target)
			assert.True(t, reservation.IsNotFound(err))
		})
	}
	requireMoney(t, "100.00", f.balance(t, user.ID))
	f.requireConsistent(t)
}

func TestPurchase_ConcurrentSameSeat_ExactlyOneWinner(t *testing.T) {
	// GIVEN: 20 users with $100 each and a single $50 seat
	// WHEN: All of them buy it at the same time
	// THEN: Exactly one succeeds, everyone else gets SeatAlreadyBooked, and
	//       only the winner is debited

	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	bus, seats := f.addBus(t, "RACE", 1, "50")

	const buyers = 20
	users := make([]reservation.User, buyers)
	for i := range users {
		users[i] = f.addUser(t, "racer", "100")
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   []reservation.UserID
		losses int
	)
	for _, u := range users {
		wg.Add(1)
		go func(u reservation.User) {
			defer wg.Done()
			_, err := f.engine.Purchase(ctx, u.ID, bus.ID, seats[0].ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins = append(wins, u.ID)
			case errors.Is(err, reservation.ErrSeatAlreadyBooked):
				losses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u)
	}
	wg.Wait()

	require.Len(t, wins, 1)
	assert.Equal(t, buyers-1, losses)
	for _, u := range users {
		want := "100.00"
		if u.ID == wins[0] {
			want = "50.00"
		}
		requireMoney(t, want, f.balance(t, u.ID))
	}
	f.requireConsistent(t)
}

func TestPurchase_ConcurrentSameWallet_NeverOverspends(t *testing.T) {
	// GIVEN: One user with $100 and 5 seats at $40
	// WHEN: Five purchases race on the same wallet
	// THEN: Exactly two succeed and the balance ends at $20

	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	user := f.addUser(t, "spender", "100")
	bus, seats := f.addBus(t, "WALLET", 5, "40")

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ok  int
		nsf int
	)
	for _, s := range seats {
		wg.Add(1)
		go func(s reservation.Seat) {
			defer wg.Done()
			_, err := f.engine.Purchase(ctx, user.ID, bus.ID, s.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, reservation.ErrInsufficientFunds) {
				nsf++
			}
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 2, ok)
	assert.Equal(t, 3, nsf)
	requireMoney(t, "20.00", f.balance(t, user.ID))
	f.requireConsistent(t)
}

// failingInsertStore runs units normally but fails every ticket insert,
// after the seat has been booked and the wallet debited.
type failingInsertStore struct {
	*store.Memory
}

func (s failingInsertStore) WithTx(ctx context.Context, fn func(reservation.Tx) error) error {
	return s.Memory.WithTx(ctx, func(tx reservation.Tx) error {
		return fn(failingInsertTx{tx})
	})
}

type failingInsertTx struct {
	reservation.Tx
}

func (failingInsertTx) InsertTicket(context.Context, reservation.Ticket) error {
	return reservation.Unavailable("insert ticket", errors.New("disk I/O error"))
}

func TestPurchase_TicketInsertFails_RollsBackSeatAndDebit(t *testing.T) {
	// GIVEN: A store whose ticket insert fails at the last step of purchase
	// WHEN: A purchase runs
	// THEN: StoreUnavailable; the seat is free, the balance unchanged and
	//       no transaction row exists

	ctx := context.Background()
	mem := store.NewMemory()
	engine := reservation.NewEngine(failingInsertStore{mem}, reservation.Options{})
	user := addUserTo(t, mem, "carol", "100", reservation.RoleCustomer)
	bus, seats := addBusTo(t, mem, "FAIL", 1, "50", testNow.Add(time.Hour))

	_, err := engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.ErrorIs(t, err, reservation.ErrStoreUnavailable)
	assert.True(t, reservation.IsRetryable(err))

	got, err := mem.FindUser(ctx, user.ID)
	require.NoError(t, err)
	requireMoney(t, "100.00", got.Balance)

	available, err := mem.AvailableSeats(ctx, bus.ID)
	require.NoError(t, err)
	assert.Len(t, available, 1)

	txs, err := mem.TransactionsBefore(ctx, user.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)

	report, err := reservation.Reconcile(ctx, mem)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

// failingDebitStore fails the wallet row append of every unit, after the
// seat has been booked and the balance lowered in that unit.
type failingDebitStore struct {
	*store.Memory
}

func (s failingDebitStore) WithTx(ctx context.Context, fn func(reservation.Tx) error) error {
	return s.Memory.WithTx(ctx, func(tx reservation.Tx) error {
		return fn(failingDebitTx{tx})
	})
}

type failingDebitTx struct {
	reservation.Tx
}

func (failingDebitTx) AppendTransaction(context.Context, reservation.Transaction) (reservation.Transaction, error) {
	return reservation.Transaction{}, reservation.Unavailable("append transaction", errors.New("database is locked"))
}

func TestPurchase_DebitFails_SeatStaysFree(t *testing.T) {
	// GIVEN: A store whose wallet debit fails mid-purchase
	// WHEN: A purchase runs
	// THEN: StoreUnavailable; the seat is still available, the balance is
	//       unchanged and the user holds no ticket

	ctx := context.Background()
	mem := store.NewMemory()
	engine := reservation.NewEngine(failingDebitStore{mem}, reservation.Options{})
	user := addUserTo(t, mem, "dave", "100", reservation.RoleCustomer)
	bus, seats := addBusTo(t, mem, "DEBIT", 1, "50", testNow.Add(time.Hour))

	_, err := engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.ErrorIs(t, err, reservation.ErrStoreUnavailable)

	available, err := mem.AvailableSeats(ctx, bus.ID)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.False(t, available[0].Booked)

	got, err := mem.FindUser(ctx, user.ID)
	require.NoError(t, err)
	requireMoney(t, "100.00", got.Balance)

	tickets, err := mem.TicketsByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, tickets)

	report, err := reservation.Reconcile(ctx, mem)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

// =============================================================================
// CANCEL
// =============================================================================

func TestScenario_BuyRejectBuyCancel(t *testing.T) {
	// GIVEN: Bus with 2 seats at $50; A and B with $100 each
	// WHEN: A buys seat 1, B tries seat 1 then buys seat 2, A cancels
	// THEN: A ends at $90 after a $40 refund, seat 1 is free again, B at $50

	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	a := f.addUser(t, "a", "100")
	b := f.addUser(t, "b", "100")
	bus, seats := f.addBus(t, "SCN", 2, "50")

	ticketA, err := f.engine.Purchase(ctx, a.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)
	requireMoney(t, "50.00", f.balance(t, a.ID))

	_, err = f.engine.Purchase(ctx, b.ID, bus.ID, seats[0].ID)
	require.ErrorIs(t, err, reservation.ErrSeatAlreadyBooked)

	_, err = f.engine.Purchase(ctx, b.ID, bus.ID, seats[1].ID)
	require.NoError(t, err)
	requireMoney(t, "50.00", f.balance(t, b.ID))

	refund, err := f.engine.Cancel(ctx, a.ID, ticketA.ID)
	require.NoError(t, err)
	requireMoney(t, "40.00", refund)
	requireMoney(t, "90.00", f.balance(t, a.ID))

	available, err := f.engine.AvailableSeats(ctx, bus.ID)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, seats[0].ID, available[0].ID)

	history := f.history(t, a.ID)
	require.Len(t, history, 2)
	assert.Equal(t, reservation.TxRefund, history[0].Type)
	requireMoney(t, "40.00", history[0].Amount)
	assert.Equal(t, reservation.TxTicketPurchase, history[1].Type)

	tickets, err := f.engine.Tickets(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, reservation.TicketCancelled, tickets[0].Status)

	f.requireConsistent(t)
}

func TestCancel_Twice_InvalidStateWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	user := f.addUser(t, "twice", "100")
	bus, seats := f.addBus(t, "TWICE", 1, "50")

	ticket, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)
	_, err = f.engine.Cancel(ctx, user.ID, ticket.ID)
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, user.ID, ticket.ID)
	require.ErrorIs(t, err, reservation.ErrInvalidState)
	var stateErr *reservation.StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, reservation.TicketCancelled, stateErr.Status)

	requireMoney(t, "90.00", f.balance(t, user.ID))
	assert.Len(t, f.history(t, user.ID), 2)
	f.requireConsistent(t)
}

func TestCancel_OtherUsersTicket_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	owner := f.addUser(t, "owner", "100")
	thief := f.addUser(t, "thief", "100")
	bus, seats := f.addBus(t, "OWN", 1, "50")

	ticket, err := f.engine.Purchase(ctx, owner.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, thief.ID, ticket.ID)
	require.ErrorIs(t, err, reservation.ErrTicketNotFound)

	_, err = f.engine.Cancel(ctx, owner.ID, "missing")
	require.ErrorIs(t, err, reservation.ErrTicketNotFound)

	requireMoney(t, "100.00", f.balance(t, thief.ID))
	requireMoney(t, "50.00", f.balance(t, owner.ID))
}

func TestCancelWithRefund_Percentages(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		percent int
		refund  string
		rows    int
	}{
		{"full refund", "50", 100, "50.00", 2},
		{"default share", "33.33", 80, "26.66", 2},
		{"half cent rounds up", "0.01", 50, "0.01", 2},
		{"no refund writes no row", "50", 0, "0.00", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, reservation.Options{})
			user := f.addUser(t, "pct", "100")
			bus, seats := f.addBus(t, "PCT", 1, tt.price)

			ticket, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
			require.NoError(t, err)

			refund, err := f.engine.CancelWithRefund(ctx, user.ID, ticket.ID, tt.percent)
			require.NoError(t, err)
			requireMoney(t, tt.refund, refund)
			assert.Len(t, f.history(t, user.ID), tt.rows)

			want := money("100").Sub(money(tt.price)).Add(money(tt.refund))
			requireMoney(t, want.StringFixed(2), f.balance(t, user.ID))
			f.requireConsistent(t)
		})
	}
}

func TestCancelWithRefund_PercentOutOfRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	user := f.addUser(t, "range", "100")
	bus, seats := f.addBus(t, "RANGE", 1, "50")
	ticket, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)

	for _, pct := range []int{-1, 101} {
		_, err := f.engine.CancelWithRefund(ctx, user.ID, ticket.ID, pct)
		require.ErrorIs(t, err, reservation.ErrInvalidAmount)
	}

	tickets, err := f.engine.Tickets(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.TicketPaid, tickets[0].Status)
}

func TestCancel_ConfiguredRefundPercent(t *testing.T) {
	ctx := context.Background()
	half := 50
	f := newFixture(t, reservation.Options{RefundPercent: &half})
	user := f.addUser(t, "half", "100")
	bus, seats := f.addBus(t, "HALF", 1, "50")
	ticket, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)

	refund, err := f.engine.Cancel(ctx, user.ID, ticket.ID)
	require.NoError(t, err)
	requireMoney(t, "25.00", refund)
}

func TestCancel_ConfiguredZeroPercent_NoRefund(t *testing.T) {
	// GIVEN: An engine configured to refund nothing
	// WHEN: A $100 ticket is cancelled
	// THEN: Refund is 0, the balance stays at 0, no REFUND row is written
	//       and the seat is free again

	ctx := context.Background()
	none := 0
	f := newFixture(t, reservation.Options{RefundPercent: &none})
	user := f.addUser(t, "nothing-back", "100")
	bus, seats := f.addBus(t, "ZERO", 1, "100")
	ticket, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)

	refund, err := f.engine.Cancel(ctx, user.ID, ticket.ID)
	require.NoError(t, err)
	assert.True(t, refund.IsZero(), refund.String())
	requireMoney(t, "0.00", f.balance(t, user.ID))

	for _, tx := range f.history(t, user.ID) {
		assert.NotEqual(t, reservation.TxRefund, tx.Type)
	}
	available, err := f.engine.AvailableSeats(ctx, bus.ID)
	require.NoError(t, err)
	assert.Len(t, available, 1)
	f.requireConsistent(t)
}

func TestCancel_AfterDeparture(t *testing.T) {
	// GIVEN: A ticket on a bus that has already left
	// WHEN: Cancelling with and without the departure block
	// THEN: Blocked engines refuse with InvalidState, default engines refund

	ctx := context.Background()
	for _, block := range []bool{true, false} {
		f := newFixture(t, reservation.Options{BlockCancelAfterDeparture: block})
		user := f.addUser(t, "late", "100")
		bus, seats := addBusTo(t, f.store, "LATE", 1, "50", testNow.Add(-time.Hour))

		ticket, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
		require.NoError(t, err)

		_, err = f.engine.Cancel(ctx, user.ID, ticket.ID)
		if block {
			require.ErrorIs(t, err, reservation.ErrInvalidState)
			assert.Contains(t, err.Error(), "departed")
			requireMoney(t, "50.00", f.balance(t, user.ID))
		} else {
			require.NoError(t, err)
			requireMoney(t, "90.00", f.balance(t, user.ID))
		}
	}
}

// =============================================================================
// ADMIN OVERRIDE, QUERIES, AUDIT
// =============================================================================

func TestPurgeTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	admin := f.addAdmin(t)
	user := f.addUser(t, "purged", "100")
	bus, seats := f.addBus(t, "PURGE", 1, "50")

	ticket, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)

	err = f.engine.PurgeTicket(ctx, user.ID, ticket.ID)
	require.ErrorIs(t, err, reservation.ErrForbidden)

	require.NoError(t, f.engine.PurgeTicket(ctx, admin.ID, ticket.ID))

	tickets, err := f.engine.Tickets(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, tickets)
	available, err := f.engine.AvailableSeats(ctx, bus.ID)
	require.NoError(t, err)
	assert.Len(t, available, 1)

	// No refund on purge.
	requireMoney(t, "50.00", f.balance(t, user.ID))

	err = f.engine.PurgeTicket(ctx, admin.ID, ticket.ID)
	require.ErrorIs(t, err, reservation.ErrTicketNotFound)
}

func TestTickets_NewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	user := f.addUser(t, "many", "500")
	bus, seats := f.addBus(t, "MANY", 3, "10")

	var ids []reservation.TicketID
	for _, s := range seats {
		ticket, err := f.engine.Purchase(ctx, user.ID, bus.ID, s.ID)
		require.NoError(t, err)
		ids = append(ids, ticket.ID)
	}

	tickets, err := f.engine.Tickets(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	assert.Equal(t, ids[2], tickets[0].ID)
	assert.Equal(t, ids[0], tickets[2].ID)
}

func TestAudit_RecordedAfterCommitOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, reservation.Options{})
	user := f.addUser(t, "audited", "60")
	bus, seats := f.addBus(t, "AUD", 2, "50")

	ticket, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)
	_, err = f.engine.Purchase(ctx, user.ID, bus.ID, seats[1].ID)
	require.ErrorIs(t, err, reservation.ErrInsufficientFunds)

	entries := f.audit.all()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], string(user.ID))
	assert.Contains(t, entries[0], string(ticket.ID))
}

func TestAudit_SinkFailureDoesNotFailPurchase(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{fail: errors.New("broker down")}
	f := newFixture(t, reservation.Options{Audit: sink})
	user := f.addUser(t, "quiet", "100")
	bus, seats := f.addBus(t, "QUIET", 1, "50")

	_, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.NoError(t, err)
	requireMoney(t, "50.00", f.balance(t, user.ID))
}

func TestPurchase_CancelledContext_StoreUnavailable(t *testing.T) {
	f := newFixture(t, reservation.Options{})
	user := f.addUser(t, "ctx", "100")
	bus, seats := f.addBus(t, "CTX", 1, "50")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Purchase(ctx, user.ID, bus.ID, seats[0].ID)
	require.ErrorIs(t, err, reservation.ErrStoreUnavailable)
	require.ErrorIs(t, err, context.Canceled)
	requireMoney(t, "100.00", f.balance(t, user.ID))
}

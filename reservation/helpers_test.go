package reservation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/seat-ledger/reservation"
	"github.com/warp/seat-ledger/reservation/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func money(s string) decimal.Decimal {
	return reservation.MustMoney(s)
}

type fixture struct {
	store  *store.Memory
	engine *reservation.Engine
	audit  *recordingSink
}

func newFixture(t *testing.T, opts reservation.Options) *fixture {
	t.Helper()
	mem := store.NewMemory()
	sink := &recordingSink{}
	if opts.Audit == nil {
		opts.Audit = sink
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	return &fixture{store: mem, engine: reservation.NewEngine(mem, opts), audit: sink}
}

// addUser inserts a user straight into the catalog, skipping bcrypt.
func (f *fixture) addUser(t *testing.T, name, balance string) reservation.User {
	t.Helper()
	return addUserTo(t, f.store, name, balance, reservation.RoleCustomer)
}

func (f *fixture) addAdmin(t *testing.T) reservation.User {
	t.Helper()
	return addUserTo(t, f.store, "admin", "0", reservation.RoleAdmin)
}

func addUserTo(t *testing.T, c reservation.Catalog, name, balance string, role reservation.Role) reservation.User {
	t.Helper()
	u := reservation.User{
		ID:             reservation.UserID(reservation.NewID()),
		Name:           name,
		Email:          name + "-" + reservation.NewID()[:8] + "@example.com",
		CredentialHash: "x",
		Balance:        money(balance),
		InitialBalance: money(balance),
		Role:           role,
		CreatedAt:      testNow,
	}
	require.NoError(t, c.CreateUser(context.Background(), u))
	return u
}

// addBus creates a bus departing a day after testNow.
func (f *fixture) addBus(t *testing.T, number string, seats int, price string) (reservation.Bus, []reservation.Seat) {
	t.Helper()
	return addBusTo(t, f.store, number, seats, price, testNow.Add(24*time.Hour))
}

func addBusTo(t *testing.T, c reservation.Catalog, number string, seats int, price string, departure time.Time) (reservation.Bus, []reservation.Seat) {
	t.Helper()
	bus := reservation.Bus{
		ID:           reservation.BusID(reservation.NewID()),
		Name:         "Express " + number,
		Number:       number,
		TotalSeats:   seats,
		PricePerSeat: money(price),
		DepartureAt:  departure,
		ArrivalAt:    departure.Add(4 * time.Hour),
		Route:        "Lisbon-Porto",
	}
	created, err := c.CreateBus(context.Background(), bus)
	require.NoError(t, err)
	require.Len(t, created, seats)
	return bus, created
}

func (f *fixture) balance(t *testing.T, id reservation.UserID) decimal.Decimal {
	t.Helper()
	b, err := f.engine.Wallet().Balance(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (f *fixture) history(t *testing.T, id reservation.UserID) []reservation.Transaction {
	t.Helper()
	var out []reservation.Transaction
	for tx, err := range f.engine.Wallet().History(context.Background(), id, 0) {
		require.NoError(t, err)
		out = append(out, tx)
	}
	return out
}

func (f *fixture) requireConsistent(t *testing.T) {
	t.Helper()
	report, err := reservation.Reconcile(context.Background(), f.store)
	require.NoError(t, err)
	require.True(t, report.Clean(), "ledger out of sync: %+v", report)
}

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Equal(t, want, got.StringFixed(2))
}

// recordingSink is an AuditSink that keeps every record.
type recordingSink struct {
	mu      sync.Mutex
	entries []string
	fail    error
}

func (s *recordingSink) Record(_ context.Context, actorID, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.entries = append(s.entries, actorID+": "+description)
	return nil
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.entries...)
}

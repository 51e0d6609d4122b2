// Package store provides an in-memory reservation.Store.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/seat-ledger/reservation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps all state in maps. Units of work are serialized by a
// one-slot semaphore and run against a private copy of the state, which
// replaces the committed state only when the unit succeeds. Readers
// outside a unit always see committed state.
type Memory struct {
	mu    sync.RWMutex
	sem   chan struct{}
	state *state
	audit []reservation.AuditEntry
}

type state struct {
	users       map[reservation.UserID]reservation.User
	buses       map[reservation.BusID]reservation.Bus
	seats       map[reservation.SeatID]reservation.Seat
	tickets     map[reservation.TicketID]reservation.Ticket
	ticketOrder []reservation.TicketID
	txs         []reservation.Transaction
	seq         int64
}

func NewMemory() *Memory {
	return &Memory{
		sem: make(chan struct{}, 1),
		state: &state{
			users:   make(map[reservation.UserID]reservation.User),
			buses:   make(map[reservation.BusID]reservation.Bus),
			seats:   make(map[reservation.SeatID]reservation.Seat),
			tickets: make(map[reservation.TicketID]reservation.Ticket),
		},
	}
}

var (
	_ reservation.Store          = (*Memory)(nil)
	_ reservation.Catalog        = (*Memory)(nil)
	_ reservation.AuditStore     = (*Memory)(nil)
	_ reservation.ReconcileStore = (*Memory)(nil)
)

// WithTx executes fn within a unit of work. Waiting for the previous unit
// is bounded by ctx; giving up is reported as ErrStoreUnavailable.
func (m *Memory) WithTx(ctx context.Context, fn func(reservation.Tx) error) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()

	m.mu.RLock()
	work := m.state.clone()
	m.mu.RUnlock()

	if err := fn(&memoryTx{st: work}); err != nil {
		// Rollback: the working copy is dropped.
		return err
	}

	m.mu.Lock()
	m.state = work
	m.mu.Unlock()
	return nil
}

func (m *Memory) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return reservation.Unavailable("begin", err)
	}
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return reservation.Unavailable("begin", ctx.Err())
	}
}

func (m *Memory) release() { <-m.sem }

func (s *state) clone() *state {
	c := &state{
		users:       make(map[reservation.UserID]reservation.User, len(s.users)),
		buses:       make(map[reservation.BusID]reservation.Bus, len(s.buses)),
		seats:       make(map[reservation.SeatID]reservation.Seat, len(s.seats)),
		tickets:     make(map[reservation.TicketID]reservation.Ticket, len(s.tickets)),
		ticketOrder: append([]reservation.TicketID(nil), s.ticketOrder...),
		txs:         append([]reservation.Transaction(nil), s.txs...),
		seq:         s.seq,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.buses {
		c.buses[k] = v
	}
	for k, v := range s.seats {
		c.seats[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	return c
}

// =============================================================================
// READ-ONLY QUERIES
// =============================================================================

func (m *Memory) FindUser(_ context.Context, id reservation.UserID) (reservation.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.state.users[id]
	if !ok {
		return reservation.User{}, reservation.ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) GetBus(_ context.Context, id reservation.BusID) (reservation.Bus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.state.buses[id]
	if !ok {
		return reservation.Bus{}, reservation.ErrBusNotFound
	}
	return b, nil
}

func (m *Memory) AvailableSeats(_ context.Context, busID reservation.BusID) ([]reservation.Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []reservation.Seat
	for _, s := range m.state.seats {
		if s.BusID == busID && !s.Booked {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *Memory) TransactionsBefore(_ context.Context, userID reservation.UserID, beforeSeq int64, limit int) ([]reservation.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []reservation.Transaction
	// txs is kept in Seq order; walk it backwards for newest first.
	for i := len(m.state.txs) - 1; i >= 0; i-- {
		t := m.state.txs[i]
		if t.UserID != userID || (beforeSeq > 0 && t.Seq >= beforeSeq) {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) TicketsByUser(_ context.Context, userID reservation.UserID) ([]reservation.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []reservation.Ticket{}
	for i := len(m.state.ticketOrder) - 1; i >= 0; i-- {
		t := m.state.tickets[m.state.ticketOrder[i]]
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) CreateUser(ctx context.Context, u reservation.User) error {
	return m.WithTx(ctx, func(tx reservation.Tx) error {
		st := tx.(*memoryTx).st
		for _, existing := range st.users {
			if existing.Email == u.Email {
				return reservation.ErrAlreadyExists
			}
		}
		if _, ok := st.users[u.ID]; ok {
			return reservation.ErrAlreadyExists
		}
		st.users[u.ID] = u
		return nil
	})
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (reservation.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.state.users {
		if u.Email == email {
			return u, nil
		}
	}
	return reservation.User{}, reservation.ErrUserNotFound
}

func (m *Memory) CreateBus(ctx context.Context, b reservation.Bus) ([]reservation.Seat, error) {
	var seats []reservation.Seat
	err := m.WithTx(ctx, func(tx reservation.Tx) error {
		st := tx.(*memoryTx).st
		for _, existing := range st.buses {
			if existing.Number == b.Number {
				return reservation.ErrAlreadyExists
			}
		}
		st.buses[b.ID] = b
		seats = make([]reservation.Seat, 0, b.TotalSeats)
		for n := 1; n <= b.TotalSeats; n++ {
			s := reservation.Seat{ID: reservation.SeatID(reservation.NewID()), BusID: b.ID, Number: n}
			st.seats[s.ID] = s
			seats = append(seats, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seats, nil
}

func (m *Memory) UpdateBus(ctx context.Context, b reservation.Bus) error {
	return m.WithTx(ctx, func(tx reservation.Tx) error {
		st := tx.(*memoryTx).st
		current, ok := st.buses[b.ID]
		if !ok {
			return reservation.ErrBusNotFound
		}
		for id, existing := range st.buses {
			if id != b.ID && existing.Number == b.Number {
				return reservation.ErrAlreadyExists
			}
		}
		b.TotalSeats = current.TotalSeats
		st.buses[b.ID] = b
		return nil
	})
}

func (m *Memory) DeleteBus(ctx context.Context, id reservation.BusID) error {
	return m.WithTx(ctx, func(tx reservation.Tx) error {
		st := tx.(*memoryTx).st
		if _, ok := st.buses[id]; !ok {
			return reservation.ErrBusNotFound
		}
		delete(st.buses, id)
		for sid, s := range st.seats {
			if s.BusID == id {
				delete(st.seats, sid)
			}
		}
		order := st.ticketOrder[:0]
		for _, tid := range st.ticketOrder {
			if st.tickets[tid].BusID == id {
				delete(st.tickets, tid)
				continue
			}
			order = append(order, tid)
		}
		st.ticketOrder = order
		return nil
	})
}

func (m *Memory) ListBuses(_ context.Context) ([]reservation.Bus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]reservation.Bus, 0, len(m.state.buses))
	for _, b := range m.state.buses {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DepartureAt.Equal(out[j].DepartureAt) {
			return out[i].DepartureAt.Before(out[j].DepartureAt)
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

// =============================================================================
// AUDIT LOG - not part of units of work
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, e reservation.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.audit {
		if existing.ID == e.ID {
			return reservation.ErrAlreadyExists
		}
	}
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) RecentAudit(_ context.Context, limit int) ([]reservation.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []reservation.AuditEntry{}
	for i := len(m.audit) - 1; i >= 0; i-- {
		out = append(out, m.audit[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func (m *Memory) SeatTicketCounts(_ context.Context) ([]reservation.SeatTicketCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paid := make(map[reservation.SeatID]int)
	for _, t := range m.state.tickets {
		if t.Status == reservation.TicketPaid {
			paid[t.SeatID]++
		}
	}
	out := make([]reservation.SeatTicketCount, 0, len(m.state.seats))
	for _, s := range m.state.seats {
		out = append(out, reservation.SeatTicketCount{
			SeatID:      s.ID,
			BusID:       s.BusID,
			Number:      s.Number,
			Booked:      s.Booked,
			PaidTickets: paid[s.ID],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BusID != out[j].BusID {
			return out[i].BusID < out[j].BusID
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (m *Memory) WalletTotals(_ context.Context) ([]reservation.WalletTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sums := make(map[reservation.UserID]decimal.Decimal)
	for _, t := range m.state.txs {
		sums[t.UserID] = sums[t.UserID].Add(t.Amount)
	}
	out := make([]reservation.WalletTotal, 0, len(m.state.users))
	for _, u := range m.state.users {
		out = append(out, reservation.WalletTotal{
			UserID:         u.ID,
			Balance:        u.Balance,
			InitialBalance: u.InitialBalance,
			Transactions:   sums[u.ID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// =============================================================================
// UNIT OF WORK VIEW
// =============================================================================

// memoryTx operates on the unit's private copy. The semaphore already
// gives the unit exclusive access, so Lock* only has to read.
type memoryTx struct {
	st *state
}

func (tx *memoryTx) LockUser(_ context.Context, id reservation.UserID) (reservation.User, error) {
	u, ok := tx.st.users[id]
	if !ok {
		return reservation.User{}, reservation.ErrUserNotFound
	}
	return u, nil
}

func (tx *memoryTx) GetBus(_ context.Context, id reservation.BusID) (reservation.Bus, error) {
	b, ok := tx.st.buses[id]
	if !ok {
		return reservation.Bus{}, reservation.ErrBusNotFound
	}
	return b, nil
}

func (tx *memoryTx) LockSeat(_ context.Context, id reservation.SeatID) (reservation.Seat, error) {
	s, ok := tx.st.seats[id]
	if !ok {
		return reservation.Seat{}, reservation.ErrSeatNotFound
	}
	return s, nil
}

func (tx *memoryTx) SetSeatBooked(_ context.Context, id reservation.SeatID, booked bool) error {
	s, ok := tx.st.seats[id]
	if !ok {
		return reservation.ErrSeatNotFound
	}
	s.Booked = booked
	tx.st.seats[id] = s
	return nil
}

func (tx *memoryTx) SetBalance(_ context.Context, id reservation.UserID, balance decimal.Decimal) error {
	u, ok := tx.st.users[id]
	if !ok {
		return reservation.ErrUserNotFound
	}
	u.Balance = balance
	tx.st.users[id] = u
	return nil
}

func (tx *memoryTx) AppendTransaction(_ context.Context, t reservation.Transaction) (reservation.Transaction, error) {
	tx.st.seq++
	t.Seq = tx.st.seq
	tx.st.txs = append(tx.st.txs, t)
	return t, nil
}

func (tx *memoryTx) InsertTicket(_ context.Context, t reservation.Ticket) error {
	if _, ok := tx.st.tickets[t.ID]; ok {
		return reservation.ErrAlreadyExists
	}
	tx.st.tickets[t.ID] = t
	tx.st.ticketOrder = append(tx.st.ticketOrder, t.ID)
	return nil
}

func (tx *memoryTx) LockTicket(_ context.Context, id reservation.TicketID) (reservation.Ticket, error) {
	t, ok := tx.st.tickets[id]
	if !ok {
		return reservation.Ticket{}, reservation.ErrTicketNotFound
	}
	return t, nil
}

func (tx *memoryTx) SetTicketStatus(_ context.Context, id reservation.TicketID, status reservation.TicketStatus) error {
	t, ok := tx.st.tickets[id]
	if !ok {
		return reservation.ErrTicketNotFound
	}
	t.Status = status
	tx.st.tickets[id] = t
	return nil
}

func (tx *memoryTx) DeleteTicket(_ context.Context, id reservation.TicketID) error {
	if _, ok := tx.st.tickets[id]; !ok {
		return reservation.ErrTicketNotFound
	}
	delete(tx.st.tickets, id)
	for i, tid := range tx.st.ticketOrder {
		if tid == id {
			tx.st.ticketOrder = append(tx.st.ticketOrder[:i], tx.st.ticketOrder[i+1:]...)
			break
		}
	}
	return nil
}

/*
store.go - Persistence contracts for the reservation core

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:      Atomic units of work (WithTx) plus read-only queries
  Tx:         Row operations valid inside one unit of work
  Catalog:    User and bus records (external collaborators' data access)
  AuditStore: Append-only audit_log persistence

LOCKING CONTRACT:
  Tx.LockUser, Tx.LockSeat and Tx.LockTicket acquire an exclusive lock on
  the row BEFORE its state is returned, and hold it until the unit commits
  or rolls back. Two units locking the same row serialize: the second one
  observes the first one's committed state.

  Lock waits are bounded: by ctx, and by the store's own lock timeout or
  deadlock detection. A unit that cannot acquire its locks fails with an
  error wrapping ErrStoreUnavailable and is rolled back.

ATOMIC UNITS:
  WithTx commits iff fn returns nil. Any error rolls back every write made
  through the Tx, so no partial state (booked seat without ticket, debit
  without ticket) is ever observable.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:       BEGIN IMMEDIATE + busy timeout
  - store/postgres/postgres.go:   SELECT ... FOR UPDATE + lock_timeout
  - reservation/store/memory.go:  single-writer semaphore, snapshot rollback

SEE ALSO:
  - inventory.go, wallet.go: Use Tx inside the engine's unit
  - engine.go: Purchase / cancel units
*/
package reservation

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Units of work and read-only queries
// =============================================================================

type Store interface {
	// WithTx executes fn within one atomic unit of work.
	// If fn returns error, every write is rolled back.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// FindUser returns ErrUserNotFound if the user does not exist.
	FindUser(ctx context.Context, id UserID) (User, error)

	// GetBus returns ErrBusNotFound if the bus does not exist.
	GetBus(ctx context.Context, id BusID) (Bus, error)

	// AvailableSeats returns free seats of a bus ordered by seat number.
	AvailableSeats(ctx context.Context, busID BusID) ([]Seat, error)

	// TransactionsBefore returns up to limit transactions of a user with
	// Seq < beforeSeq, newest first. beforeSeq <= 0 starts at the newest.
	TransactionsBefore(ctx context.Context, userID UserID, beforeSeq int64, limit int) ([]Transaction, error)

	// TicketsByUser returns a user's tickets, newest first.
	TicketsByUser(ctx context.Context, userID UserID) ([]Ticket, error)
}

// Tx is the view of the store inside a unit of work.
type Tx interface {
	// LockUser locks the user row for update and returns it.
	LockUser(ctx context.Context, id UserID) (User, error)

	// GetBus reads a bus without locking it; its price is read once per unit.
	GetBus(ctx context.Context, id BusID) (Bus, error)

	// LockSeat locks the seat row for update and returns it.
	LockSeat(ctx context.Context, id SeatID) (Seat, error)

	SetSeatBooked(ctx context.Context, id SeatID, booked bool) error

	SetBalance(ctx context.Context, id UserID, balance decimal.Decimal) error

	// AppendTransaction persists a wallet row and returns it with Seq set.
	AppendTransaction(ctx context.Context, t Transaction) (Transaction, error)

	InsertTicket(ctx context.Context, t Ticket) error

	// LockTicket locks the ticket row for update and returns it.
	LockTicket(ctx context.Context, id TicketID) (Ticket, error)

	SetTicketStatus(ctx context.Context, id TicketID, status TicketStatus) error

	// DeleteTicket hard-deletes a ticket. Administrative override only.
	DeleteTicket(ctx context.Context, id TicketID) error
}

// =============================================================================
// CATALOG - User and bus records
// =============================================================================

type Catalog interface {
	// CreateUser inserts a user. Returns ErrAlreadyExists on duplicate email.
	CreateUser(ctx context.Context, u User) error

	// FindUserByEmail returns ErrUserNotFound if no user has that email.
	FindUserByEmail(ctx context.Context, email string) (User, error)

	// CreateBus inserts a bus and its seats 1..TotalSeats in one unit.
	// Returns ErrAlreadyExists on duplicate bus number.
	CreateBus(ctx context.Context, b Bus) ([]Seat, error)

	// UpdateBus rewrites a bus's descriptive fields and price. TotalSeats is
	// left as stored. Returns ErrBusNotFound or, on a duplicate number,
	// ErrAlreadyExists. Existing tickets keep the price they were sold at.
	UpdateBus(ctx context.Context, b Bus) error

	// DeleteBus removes a bus; its seats and tickets cascade.
	DeleteBus(ctx context.Context, id BusID) error

	// ListBuses returns all buses ordered by departure.
	ListBuses(ctx context.Context) ([]Bus, error)
}

// =============================================================================
// AUDIT LOG - Separate from the wallet ledger, tracks who did what when
// =============================================================================

type AuditStore interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

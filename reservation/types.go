/*
Package reservation provides the seat reservation ledger core.

PURPOSE:
  Users hold a wallet balance, buses expose a fixed seat inventory, and
  tickets bind a user to a seat with an atomic payment. This package owns
  the domain types, the Seat Inventory, the Wallet Ledger and the
  Reservation Engine that composes them inside one store transaction.

KEY CONCEPTS IN THIS FILE (types.go):
  - User:        Wallet owner; role flag decides admin capabilities
  - Bus / Seat:  Fixed seat inventory, seats numbered 1..N per bus
  - Ticket:      Binds a user to a seat at the price paid (PAID/CANCELLED)
  - Transaction: Append-only wallet row, one per balance mutation

DESIGN PRINCIPLES:
  1. Precision: Money uses decimal.Decimal, rounded to cents
  2. Type Safety: Distinct ID types prevent mixing seat/bus/user IDs
  3. One entity per concept: Role is a flag on User, not a type hierarchy

SEE ALSO:
  - money.go:     Cent rounding and refund computation
  - store.go:     Persistence contracts (Store, Tx, Catalog)
  - engine.go:    Purchase / cancel orchestration
*/
package reservation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type BusID string
type SeatID string
type TicketID string
type TransactionID string

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// USER - Wallet owner
// =============================================================================

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID             UserID
	Name           string
	Email          string
	CredentialHash string
	Balance        decimal.Decimal
	InitialBalance decimal.Decimal // balance at registration, for reconciliation
	Role           Role
	CreatedAt      time.Time
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// =============================================================================
// BUS & SEAT - Fixed inventory
// =============================================================================

type Bus struct {
	ID           BusID
	Name         string
	Number       string // unique external number
	TotalSeats   int
	PricePerSeat decimal.Decimal
	DepartureAt  time.Time
	ArrivalAt    time.Time
	Route        string
}

type Seat struct {
	ID     SeatID
	BusID  BusID
	Number int
	Booked bool
}

// =============================================================================
// TICKET
// =============================================================================

type TicketStatus string

const (
	TicketPaid      TicketStatus = "PAID"
	TicketCancelled TicketStatus = "CANCELLED"
)

type Ticket struct {
	ID          TicketID
	UserID      UserID
	BusID       BusID
	SeatID      SeatID
	Price       decimal.Decimal // fixed at purchase time
	PurchasedAt time.Time
	Status      TicketStatus
}

// =============================================================================
// TRANSACTION - Append-only wallet history
// =============================================================================

type TransactionType string

const (
	TxDeposit        TransactionType = "DEPOSIT"
	TxTicketPurchase TransactionType = "TICKET_PURCHASE"
	TxRefund         TransactionType = "REFUND"
)

type Transaction struct {
	ID          TransactionID
	Seq         int64 // assigned by the store, increases with every append
	UserID      UserID
	Type        TransactionType
	Amount      decimal.Decimal // signed: credits positive, debits negative
	Description string
	CreatedAt   time.Time
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditEntry records who did what when. Written as a side effect, never
// read by the engine.
type AuditEntry struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actor_id"`
	Description string    `json:"description"`
	RecordedAt  time.Time `json:"recorded_at"`
}

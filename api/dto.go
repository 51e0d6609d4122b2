/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the reservation domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts go out as fixed two-decimal strings ("50.00"). Request amounts
  accept either a JSON string or a number; both are parsed with
  decimal.Decimal and rounded to cents by the core.

VALIDATION:
  Validation is done by the reservation core, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/seat-ledger/reservation"
)

// =============================================================================
// USERS
// =============================================================================

// RegisterUserRequest opens a customer account with an empty wallet.
// Funds arrive through deposits.
type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
}

func toUserDTO(u reservation.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Balance:   u.Balance.StringFixed(2),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// =============================================================================
// BUSES & SEATS
// =============================================================================

type CreateBusRequest struct {
	Name         string          `json:"name"`
	Number       string          `json:"number"`
	TotalSeats   int             `json:"total_seats"`
	PricePerSeat decimal.Decimal `json:"price_per_seat"`
	DepartureAt  time.Time       `json:"departure_at"`
	ArrivalAt    time.Time       `json:"arrival_at"`
	Route        string          `json:"route"`
}

// UpdateBusRequest replaces a bus's editable fields. The seat count cannot
// change after creation.
type UpdateBusRequest struct {
	Name         string          `json:"name"`
	Number       string          `json:"number"`
	PricePerSeat decimal.Decimal `json:"price_per_seat"`
	DepartureAt  time.Time       `json:"departure_at"`
	ArrivalAt    time.Time       `json:"arrival_at"`
	Route        string          `json:"route"`
}

type BusDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Number       string `json:"number"`
	TotalSeats   int    `json:"total_seats"`
	PricePerSeat string `json:"price_per_seat"`
	DepartureAt  string `json:"departure_at,omitempty"`
	ArrivalAt    string `json:"arrival_at,omitempty"`
	Route        string `json:"route,omitempty"`
}

type SeatDTO struct {
	ID     string `json:"id"`
	BusID  string `json:"bus_id"`
	Number int    `json:"number"`
	Booked bool   `json:"booked"`
}

// CreateBusResponse returns the new bus with its generated seats.
type CreateBusResponse struct {
	Bus   BusDTO    `json:"bus"`
	Seats []SeatDTO `json:"seats"`
}

func toBusDTO(b reservation.Bus) BusDTO {
	dto := BusDTO{
		ID:           string(b.ID),
		Name:         b.Name,
		Number:       b.Number,
		TotalSeats:   b.TotalSeats,
		PricePerSeat: b.PricePerSeat.StringFixed(2),
		Route:        b.Route,
	}
	if !b.DepartureAt.IsZero() {
		dto.DepartureAt = b.DepartureAt.Format(time.RFC3339)
	}
	if !b.ArrivalAt.IsZero() {
		dto.ArrivalAt = b.ArrivalAt.Format(time.RFC3339)
	}
	return dto
}

func toSeatDTOs(seats []reservation.Seat) []SeatDTO {
	dtos := make([]SeatDTO, len(seats))
	for i, s := range seats {
		dtos[i] = SeatDTO{ID: string(s.ID), BusID: string(s.BusID), Number: s.Number, Booked: s.Booked}
	}
	return dtos
}

// =============================================================================
// TICKETS
// =============================================================================

type PurchaseTicketRequest struct {
	BusID  string `json:"bus_id"`
	SeatID string `json:"seat_id"`
}

// CancelTicketRequest is optional; an empty body uses the default refund.
type CancelTicketRequest struct {
	RefundPercent *int `json:"refund_percent,omitempty"`
}

type TicketDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	BusID       string `json:"bus_id"`
	SeatID      string `json:"seat_id"`
	Price       string `json:"price"`
	Status      string `json:"status"`
	PurchasedAt string `json:"purchased_at"`
}

type CancelTicketResponse struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
	Refund   string `json:"refund"`
}

func toTicketDTO(t reservation.Ticket) TicketDTO {
	return TicketDTO{
		ID:          string(t.ID),
		UserID:      string(t.UserID),
		BusID:       string(t.BusID),
		SeatID:      string(t.SeatID),
		Price:       t.Price.StringFixed(2),
		Status:      string(t.Status),
		PurchasedAt: t.PurchasedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// WALLET
// =============================================================================

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type WalletDTO struct {
	UserID  string `json:"user_id"`
	Balance string `json:"balance"`
}

type TransactionDTO struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

func toTransactionDTO(t reservation.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(t.ID),
		Type:        string(t.Type),
		Amount:      t.Amount.StringFixed(2),
		Description: t.Description,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditEntryDTO struct {
	ID          string `json:"id"`
	ActorID     string `json:"actor_id"`
	Description string `json:"description"`
	RecordedAt  string `json:"recorded_at"`
}

func toAuditEntryDTO(e reservation.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:          e.ID,
		ActorID:     e.ActorID,
		Description: e.Description,
		RecordedAt:  e.RecordedAt.Format(time.RFC3339Nano),
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

/*
errors.go - Centralized error types for the reservation core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Stores wrap driver failures with ErrStoreUnavailable; the engine
  returns the domain sentinels (or structured errors unwrapping to them).

ERROR CATEGORIES:
  1. Not found    - user, bus, seat, ticket
  2. Domain rules - already booked, insufficient funds, wrong ticket state,
                    invalid amount, forbidden
  3. Store        - connection, lock timeout, deadlock

RETRY POLICY:
  Only ErrStoreUnavailable is eligible for a caller-directed retry.
  Domain errors are terminal for the attempt.

USAGE:
    ticket, err := engine.Purchase(ctx, userID, busID, seatID)
    if errors.Is(err, reservation.ErrSeatAlreadyBooked) {
        // pick another seat
    }
*/
package reservation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrBusNotFound    = errors.New("bus not found")
	ErrSeatNotFound   = errors.New("seat not found")
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrSeatAlreadyBooked is returned when the locked seat is already taken.
	ErrSeatAlreadyBooked = errors.New("seat already booked")

	// ErrInsufficientFunds is returned when a debit exceeds the wallet balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidState is returned when a ticket is not in the status an
	// operation requires (e.g. cancelling a CANCELLED ticket).
	ErrInvalidState = errors.New("invalid ticket state")

	// ErrInvalidAmount is returned for non-positive amounts and refund
	// percentages outside [0, 100].
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidInput is returned when registration or bus data fails
	// validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password. The two cases are not distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is returned when the actor lacks the admin flag.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyExists is returned on unique constraint conflicts
	// (bus number, user email).
	ErrAlreadyExists = errors.New("already exists")

	// ErrStoreUnavailable wraps connection failures, lock timeouts and
	// deadlocks reported by the underlying store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a wallet shortage.
type InsufficientFundsError struct {
	UserID    UserID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s, shortfall %s",
		e.Available.StringFixed(2), e.Requested.StringFixed(2), e.Shortfall().StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// StateError reports a ticket whose status forbids the operation.
type StateError struct {
	TicketID TicketID
	Status   TicketStatus
	Reason   string
}

func (e *StateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ticket %s: %s", e.TicketID, e.Reason)
	}
	return fmt.Sprintf("ticket %s is %s", e.TicketID, e.Status)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// Unavailable wraps a store failure so errors.Is(err, ErrStoreUnavailable)
// holds while the driver error stays inspectable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to a business rule or
// invalid input. These are terminal for the attempt.
func IsClientError(err error) bool {
	return errors.Is(err, ErrSeatAlreadyBooked) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrAlreadyExists)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrBusNotFound) ||
		errors.Is(err, ErrSeatNotFound) ||
		errors.Is(err, ErrTicketNotFound)
}

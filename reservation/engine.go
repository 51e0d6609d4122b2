/*
engine.go - Reservation Transaction Core

PURPOSE:
  Orchestrates purchase and cancellation across the Seat Inventory and the
  Wallet Ledger. Each operation is ONE unit of work: every step runs
  against the same Tx and nothing is committed until the last step
  succeeds.

PURCHASE (user, bus, seat):
  1. Lock the buyer's wallet row           -> ErrUserNotFound
  2. Read the bus price, compare balance   -> ErrBusNotFound, ErrInsufficientFunds
  3. Lock the seat row                     -> ErrSeatNotFound, ErrSeatAlreadyBooked
  4. Reserve the seat
  5. Debit the price (TICKET_PURCHASE)
  6. Insert the PAID ticket at that price
  7. Commit

CANCEL (user, ticket, refund percent):
  1. Lock the ticket, scoped to the user   -> ErrTicketNotFound
  2. Require status PAID                   -> ErrInvalidState
  3. Mark CANCELLED
  4. Release the seat
  5. refund = price * percent / 100, rounded to the cent
  6. Credit the refund (REFUND)
  7. Commit

LOCK ORDER:
  Purchase takes user -> seat, cancel takes ticket -> seat -> user. A
  deadlock between the two is resolved by the store (deadlock detection or
  lock timeout); the losing unit fails with ErrStoreUnavailable and is
  rolled back like any other failure.

AUDIT:
  Audit records are written after commit and outside the unit. A failing
  audit sink is logged and ignored.
*/
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Options tunes engine policy.
type Options struct {
	// RefundPercent is used by Cancel. Nil means DefaultRefundPercent; an
	// explicit 0 cancels without refund.
	RefundPercent *int

	// BlockCancelAfterDeparture rejects cancellation once the bus has left.
	// Off by default: a PAID ticket can always be cancelled.
	BlockCancelAfterDeparture bool

	Audit  AuditSink
	Logger *zap.Logger
	Now    func() time.Time
}

// Engine is the reservation transaction core.
type Engine struct {
	store         Store
	inventory     *Inventory
	wallet        *Wallet
	opts          Options
	refundPercent int
	log           *zap.Logger
}

func NewEngine(store Store, opts Options) *Engine {
	refundPercent := DefaultRefundPercent
	if opts.RefundPercent != nil {
		refundPercent = *opts.RefundPercent
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Audit == nil {
		opts.Audit = NopAudit{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	wallet := NewWallet(store, opts.Audit, opts.Logger)
	wallet.now = opts.Now
	return &Engine{
		store:         store,
		inventory:     NewInventory(store),
		wallet:        wallet,
		opts:          opts,
		refundPercent: refundPercent,
		log:           opts.Logger.Named("engine"),
	}
}

func (e *Engine) Inventory() *Inventory { return e.inventory }
func (e *Engine) Wallet() *Wallet       { return e.wallet }

// =============================================================================
// PURCHASE
// =============================================================================

// Purchase buys seatID on busID for userID and returns the PAID ticket.
func (e *Engine) Purchase(ctx context.Context, userID UserID, busID BusID, seatID SeatID) (Ticket, error) {
	var ticket Ticket
	err := e.store.WithTx(ctx, func(tx Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		bus, err := tx.GetBus(ctx, busID)
		if err != nil {
			return err
		}
		price := Cents(bus.PricePerSeat)
		if user.Balance.LessThan(price) {
			return &InsufficientFundsError{UserID: userID, Available: user.Balance, Requested: price}
		}

		seat, err := tx.LockSeat(ctx, seatID)
		if err != nil {
			return err
		}
		if seat.BusID != busID {
			return fmt.Errorf("seat %s is not on bus %s: %w", seatID, busID, ErrSeatNotFound)
		}
		if _, err := reserveIn(ctx, tx, seatID); err != nil {
			return err
		}

		now := e.opts.Now()
		desc := fmt.Sprintf("Ticket for bus %s seat %d", bus.Number, seat.Number)
		if _, err := debitIn(ctx, tx, user, price, TxTicketPurchase, desc, now); err != nil {
			return err
		}

		ticket = Ticket{
			ID:          TicketID(NewID()),
			UserID:      userID,
			BusID:       busID,
			SeatID:      seatID,
			Price:       price,
			PurchasedAt: now,
			Status:      TicketPaid,
		}
		return tx.InsertTicket(ctx, ticket)
	})
	if err != nil {
		e.logFailure("purchase failed", err,
			zap.String("user_id", string(userID)),
			zap.String("bus_id", string(busID)),
			zap.String("seat_id", string(seatID)))
		return Ticket{}, err
	}

	e.log.Info("ticket purchased",
		zap.String("ticket_id", string(ticket.ID)),
		zap.String("user_id", string(userID)),
		zap.String("price", ticket.Price.StringFixed(2)))
	recordAudit(ctx, e.opts.Audit, e.log, string(userID),
		fmt.Sprintf("Purchased ticket %s (bus %s, seat %s) for %s", ticket.ID, busID, seatID, ticket.Price.StringFixed(2)))
	return ticket, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel cancels a PAID ticket with the configured refund percent and
// returns the refunded amount.
func (e *Engine) Cancel(ctx context.Context, userID UserID, ticketID TicketID) (decimal.Decimal, error) {
	return e.CancelWithRefund(ctx, userID, ticketID, e.refundPercent)
}

// CancelWithRefund cancels a PAID ticket refunding percent of its price.
// Cancelling an already cancelled ticket is rejected with ErrInvalidState
// and has no side effects.
func (e *Engine) CancelWithRefund(ctx context.Context, userID UserID, ticketID TicketID, percent int) (decimal.Decimal, error) {
	if percent < 0 || percent > 100 {
		return decimal.Zero, fmt.Errorf("refund percent %d: %w", percent, ErrInvalidAmount)
	}

	var refund decimal.Decimal
	err := e.store.WithTx(ctx, func(tx Tx) error {
		ticket, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.UserID != userID {
			// Someone else's ticket is indistinguishable from a missing one.
			return ErrTicketNotFound
		}
		if ticket.Status != TicketPaid {
			return &StateError{TicketID: ticketID, Status: ticket.Status}
		}
		if e.opts.BlockCancelAfterDeparture {
			bus, err := tx.GetBus(ctx, ticket.BusID)
			if err != nil {
				return err
			}
			if !bus.DepartureAt.IsZero() && !e.opts.Now().Before(bus.DepartureAt) {
				return &StateError{TicketID: ticketID, Status: ticket.Status, Reason: "bus has already departed"}
			}
		}

		if err := tx.SetTicketStatus(ctx, ticketID, TicketCancelled); err != nil {
			return err
		}
		if err := releaseIn(ctx, tx, ticket.SeatID); err != nil {
			return err
		}

		refund, err = RefundAmount(ticket.Price, percent)
		if err != nil {
			return err
		}
		if refund.IsZero() {
			return nil
		}
		_, err = creditIn(ctx, tx, userID, refund, TxRefund,
			fmt.Sprintf("Refund for ticket %s (%d%%)", ticketID, percent), e.opts.Now())
		return err
	})
	if err != nil {
		e.logFailure("cancel failed", err,
			zap.String("user_id", string(userID)),
			zap.String("ticket_id", string(ticketID)))
		return decimal.Zero, err
	}

	e.log.Info("ticket cancelled",
		zap.String("ticket_id", string(ticketID)),
		zap.String("refund", refund.StringFixed(2)))
	recordAudit(ctx, e.opts.Audit, e.log, string(userID),
		fmt.Sprintf("Cancelled ticket %s, refund %s", ticketID, refund.StringFixed(2)))
	return refund, nil
}

// =============================================================================
// QUERIES & ADMIN OVERRIDE
// =============================================================================

// AvailableSeats returns the free seats of a bus ordered by seat number.
func (e *Engine) AvailableSeats(ctx context.Context, busID BusID) ([]Seat, error) {
	return e.inventory.ListAvailable(ctx, busID)
}

// Tickets returns a user's tickets, newest first.
func (e *Engine) Tickets(ctx context.Context, userID UserID) ([]Ticket, error) {
	return e.store.TicketsByUser(ctx, userID)
}

// PurgeTicket hard-deletes a ticket. Only admins may do this. A PAID
// ticket's seat is released first (without refund) so no booked seat is
// left without a ticket.
func (e *Engine) PurgeTicket(ctx context.Context, actorID UserID, ticketID TicketID) error {
	err := e.store.WithTx(ctx, func(tx Tx) error {
		actor, err := tx.LockUser(ctx, actorID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() {
			return ErrForbidden
		}
		ticket, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status == TicketPaid {
			if err := releaseIn(ctx, tx, ticket.SeatID); err != nil {
				return err
			}
		}
		return tx.DeleteTicket(ctx, ticketID)
	})
	if err != nil {
		e.logFailure("purge failed", err,
			zap.String("actor_id", string(actorID)),
			zap.String("ticket_id", string(ticketID)))
		return err
	}
	recordAudit(ctx, e.opts.Audit, e.log, string(actorID), fmt.Sprintf("Purged ticket %s", ticketID))
	return nil
}

// logFailure logs domain rejections at info and store failures at error.
func (e *Engine) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		e.log.Error(msg, fields...)
	default:
		e.log.Info(msg, fields...)
	}
}

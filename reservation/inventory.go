/*
inventory.go - Seat Inventory

PURPOSE:
  Per-bus fixed set of seats, each exclusively booked or free. Seats are
  generated 1..N when the bus is created and only their booked flag
  changes afterwards.

CONCURRENCY:
  TryReserve locks the seat row BEFORE reading the flag. Two concurrent
  reservations of the same seat serialize on that lock: the first flips
  the flag and commits, the second reads booked=true and gets
  ErrSeatAlreadyBooked. Never both.

IN-UNIT FORMS:
  reserveIn / releaseIn run against a Tx so the engine can reserve a seat
  inside its own purchase unit. TryReserve / Release wrap them in a unit
  of their own for standalone use.
*/
package reservation

import (
	"context"
	"fmt"
)

// Inventory manages the booked/free state of seats.
type Inventory struct {
	store Store
}

func NewInventory(store Store) *Inventory {
	return &Inventory{store: store}
}

// ListAvailable returns the free seats of a bus ordered by seat number.
// Read-only. An unknown bus yields an empty list.
func (inv *Inventory) ListAvailable(ctx context.Context, busID BusID) ([]Seat, error) {
	seats, err := inv.store.AvailableSeats(ctx, busID)
	if err != nil {
		return nil, err
	}
	if seats == nil {
		seats = []Seat{}
	}
	return seats, nil
}

// TryReserve books a free seat in its own unit of work.
func (inv *Inventory) TryReserve(ctx context.Context, seatID SeatID) (Seat, error) {
	var seat Seat
	err := inv.store.WithTx(ctx, func(tx Tx) error {
		var err error
		seat, err = reserveIn(ctx, tx, seatID)
		return err
	})
	if err != nil {
		return Seat{}, err
	}
	return seat, nil
}

// Release frees a booked seat in its own unit of work.
// Releasing a free seat is a no-op.
func (inv *Inventory) Release(ctx context.Context, seatID SeatID) error {
	return inv.store.WithTx(ctx, func(tx Tx) error {
		return releaseIn(ctx, tx, seatID)
	})
}

func reserveIn(ctx context.Context, tx Tx, seatID SeatID) (Seat, error) {
	seat, err := tx.LockSeat(ctx, seatID)
	if err != nil {
		return Seat{}, err
	}
	if seat.Booked {
		return Seat{}, fmt.Errorf("seat %d: %w", seat.Number, ErrSeatAlreadyBooked)
	}
	if err := tx.SetSeatBooked(ctx, seatID, true); err != nil {
		return Seat{}, err
	}
	seat.Booked = true
	return seat, nil
}

func releaseIn(ctx context.Context, tx Tx, seatID SeatID) error {
	seat, err := tx.LockSeat(ctx, seatID)
	if err != nil {
		return err
	}
	if !seat.Booked {
		return nil
	}
	return tx.SetSeatBooked(ctx, seatID, false)
}

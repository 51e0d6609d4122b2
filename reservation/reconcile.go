package reservation

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReconcileStore exposes the aggregate reads reconciliation needs.
type ReconcileStore interface {
	// SeatTicketCounts returns, for every seat, its booked flag and the
	// number of PAID tickets referencing it.
	SeatTicketCounts(ctx context.Context) ([]SeatTicketCount, error)

	// WalletTotals returns, for every user, the stored balance, the initial
	// balance and the sum of signed transaction amounts.
	WalletTotals(ctx context.Context) ([]WalletTotal, error)
}

type SeatTicketCount struct {
	SeatID      SeatID
	BusID       BusID
	Number      int
	Booked      bool
	PaidTickets int
}

type WalletTotal struct {
	UserID         UserID
	Balance        decimal.Decimal
	InitialBalance decimal.Decimal
	Transactions   decimal.Decimal
}

// SeatDiscrepancy is a seat whose booked flag disagrees with its tickets.
type SeatDiscrepancy struct {
	SeatID      SeatID `json:"seat_id"`
	BusID       BusID  `json:"bus_id"`
	Number      int    `json:"number"`
	Booked      bool   `json:"booked"`
	PaidTickets int    `json:"paid_tickets"`
}

// WalletDiscrepancy is a user whose balance is not initial + sum(history).
type WalletDiscrepancy struct {
	UserID   UserID          `json:"user_id"`
	Balance  decimal.Decimal `json:"balance"`
	Expected decimal.Decimal `json:"expected"`
}

type Report struct {
	SeatsChecked   int                 `json:"seats_checked"`
	WalletsChecked int                 `json:"wallets_checked"`
	Seats          []SeatDiscrepancy   `json:"seats"`
	Wallets        []WalletDiscrepancy `json:"wallets"`
}

// Clean reports whether no discrepancy was found.
func (r Report) Clean() bool {
	return len(r.Seats) == 0 && len(r.Wallets) == 0
}

// Reconcile checks the two ledger invariants over the whole store:
// a seat is booked iff exactly one PAID ticket references it, and every
// balance equals its initial balance plus the signed transaction sum.
func Reconcile(ctx context.Context, store ReconcileStore) (Report, error) {
	report := Report{Seats: []SeatDiscrepancy{}, Wallets: []WalletDiscrepancy{}}

	seats, err := store.SeatTicketCounts(ctx)
	if err != nil {
		return Report{}, err
	}
	report.SeatsChecked = len(seats)
	for _, s := range seats {
		consistent := (s.Booked && s.PaidTickets == 1) || (!s.Booked && s.PaidTickets == 0)
		if !consistent {
			report.Seats = append(report.Seats, SeatDiscrepancy(s))
		}
	}

	wallets, err := store.WalletTotals(ctx)
	if err != nil {
		return Report{}, err
	}
	report.WalletsChecked = len(wallets)
	for _, w := range wallets {
		expected := w.InitialBalance.Add(w.Transactions)
		if !w.Balance.Equal(expected) {
			report.Wallets = append(report.Wallets, WalletDiscrepancy{
				UserID:   w.UserID,
				Balance:  w.Balance,
				Expected: expected,
			})
		}
	}
	return report, nil
}

/*
wallet.go - Wallet Ledger

PURPOSE:
  Per-user balance plus an append-only transaction history. Every
  balance mutation writes exactly one Transaction row in the same unit,
  so balance == initial balance + sum(signed amounts) always holds.

SIGN CONVENTION:
  Credits (DEPOSIT, REFUND) are stored positive, debits (TICKET_PURCHASE)
  negative.

CONCURRENCY:
  Debit locks the user row before comparing balance and amount, and
  keeps the lock until commit. Two debits against the same wallet
  serialize; the second sees the first one's result, so funds are never
  spent twice.

HISTORY:
  History returns an iter.Seq2 that pages through the store newest
  first. Nothing is read until the caller ranges over it, and every range
  starts again from the newest row.
*/
package reservation

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const historyPageSize = 50

// Wallet exposes balance operations on users.
type Wallet struct {
	store Store
	audit AuditSink
	log   *zap.Logger
	now   func() time.Time
}

func NewWallet(store Store, audit AuditSink, log *zap.Logger) *Wallet {
	if log == nil {
		log = zap.NewNop()
	}
	if audit == nil {
		audit = NopAudit{}
	}
	return &Wallet{store: store, audit: audit, log: log, now: time.Now}
}

// Balance returns the current balance of a user.
func (w *Wallet) Balance(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	u, err := w.store.FindUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return u.Balance, nil
}

// Deposit credits a user's wallet with a DEPOSIT transaction.
func (w *Wallet) Deposit(ctx context.Context, userID UserID, amount decimal.Decimal) (Transaction, error) {
	return w.Credit(ctx, userID, amount, TxDeposit, "Wallet deposit")
}

// Credit increases the balance and appends a positive transaction.
func (w *Wallet) Credit(ctx context.Context, userID UserID, amount decimal.Decimal, typ TransactionType, description string) (Transaction, error) {
	var out Transaction
	err := w.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = creditIn(ctx, tx, userID, amount, typ, description, w.now())
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	recordAudit(ctx, w.audit, w.log, string(userID),
		fmt.Sprintf("%s: +%s (%s)", typ, out.Amount.StringFixed(2), description))
	return out, nil
}

// Debit decreases the balance and appends a negative transaction.
// Fails with *InsufficientFundsError without mutating anything.
func (w *Wallet) Debit(ctx context.Context, userID UserID, amount decimal.Decimal, typ TransactionType, description string) (Transaction, error) {
	var out Transaction
	err := w.store.WithTx(ctx, func(tx Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		out, err = debitIn(ctx, tx, user, amount, typ, description, w.now())
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	recordAudit(ctx, w.audit, w.log, string(userID),
		fmt.Sprintf("%s: %s (%s)", typ, out.Amount.StringFixed(2), description))
	return out, nil
}

// History yields up to limit transactions of a user, newest first.
// limit <= 0 yields the whole history.
func (w *Wallet) History(ctx context.Context, userID UserID, limit int) iter.Seq2[Transaction, error] {
	return func(yield func(Transaction, error) bool) {
		var (
			before  int64
			yielded int
		)
		for {
			size := historyPageSize
			if limit > 0 && limit-yielded < size {
				size = limit - yielded
			}
			if size <= 0 {
				return
			}
			page, err := w.store.TransactionsBefore(ctx, userID, before, size)
			if err != nil {
				yield(Transaction{}, err)
				return
			}
			for _, t := range page {
				if !yield(t, nil) {
					return
				}
				yielded++
				before = t.Seq
			}
			if len(page) < size {
				return
			}
		}
	}
}

// creditIn assumes nothing about locks held by the caller; it locks the
// user row itself (re-locking a row already held by the unit is fine).
func creditIn(ctx context.Context, tx Tx, userID UserID, amount decimal.Decimal, typ TransactionType, description string, at time.Time) (Transaction, error) {
	amount = Cents(amount)
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	user, err := tx.LockUser(ctx, userID)
	if err != nil {
		return Transaction{}, err
	}
	if err := tx.SetBalance(ctx, userID, user.Balance.Add(amount)); err != nil {
		return Transaction{}, err
	}
	return tx.AppendTransaction(ctx, Transaction{
		ID:          TransactionID(NewID()),
		UserID:      userID,
		Type:        typ,
		Amount:      amount,
		Description: description,
		CreatedAt:   at,
	})
}

// debitIn expects user to be the row the unit already locked.
func debitIn(ctx context.Context, tx Tx, user User, amount decimal.Decimal, typ TransactionType, description string, at time.Time) (Transaction, error) {
	amount = Cents(amount)
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	if user.Balance.LessThan(amount) {
		return Transaction{}, &InsufficientFundsError{UserID: user.ID, Available: user.Balance, Requested: amount}
	}
	if err := tx.SetBalance(ctx, user.ID, user.Balance.Sub(amount)); err != nil {
		return Transaction{}, err
	}
	return tx.AppendTransaction(ctx, Transaction{
		ID:          TransactionID(NewID()),
		UserID:      user.ID,
		Type:        typ,
		Amount:      amount.Neg(),
		Description: description,
		CreatedAt:   at,
	})
}

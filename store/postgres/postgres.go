/*
Package postgres provides a PostgreSQL-backed implementation of the
reservation storage interfaces.

CONCURRENCY:
  Row locks are real: Tx.LockUser, Tx.LockSeat and Tx.LockTicket run
  SELECT ... FOR UPDATE, so two units touching the same seat serialize on
  that row while units on other seats proceed in parallel.

  Every unit sets lock_timeout (SET LOCAL) so a blocked lock wait fails
  instead of hanging. Lock timeouts (55P03), deadlocks (40P01),
  serialization failures (40001) and connection errors all surface as
  reservation.ErrStoreUnavailable and roll the unit back.

MONEY:
  Amounts are NUMERIC(14,2). They are read back as text and parsed into
  decimal.Decimal so no value passes through floating point.

SEE ALSO:
  - store/sqlite: Default store
  - reservation/store.go: Locking contract
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/seat-ledger/reservation"
)

const defaultLockTimeout = 5 * time.Second

// Store provides Postgres-backed persistence for the reservation core.
type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

var (
	_ reservation.Store          = (*Store)(nil)
	_ reservation.Catalog        = (*Store)(nil)
	_ reservation.AuditStore     = (*Store)(nil)
	_ reservation.ReconcileStore = (*Store)(nil)
)

// New connects to databaseURL and runs migrations. lockTimeout bounds each
// row lock wait; zero means 5s.
func New(ctx context.Context, databaseURL string, lockTimeout time.Duration) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	s := &Store{pool: pool, lockTimeout: lockTimeout}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return mapErr("ping", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			credential_hash TEXT NOT NULL DEFAULT '',
			balance NUMERIC(14,2) NOT NULL DEFAULT 0,
			initial_balance NUMERIC(14,2) NOT NULL DEFAULT 0,
			role TEXT NOT NULL DEFAULT 'customer',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS buses (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			number TEXT UNIQUE NOT NULL,
			total_seats INTEGER NOT NULL CHECK (total_seats > 0),
			price_per_seat NUMERIC(14,2) NOT NULL,
			departure_at TIMESTAMPTZ NOT NULL,
			arrival_at TIMESTAMPTZ NOT NULL,
			route TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS seats (
			id TEXT PRIMARY KEY,
			bus_id TEXT NOT NULL REFERENCES buses(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			booked BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (bus_id, number)
		);`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			bus_id TEXT NOT NULL REFERENCES buses(id) ON DELETE CASCADE,
			seat_id TEXT NOT NULL REFERENCES seats(id) ON DELETE CASCADE,
			price NUMERIC(14,2) NOT NULL,
			purchased_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('PAID', 'CANCELLED')),
			created_seq BIGSERIAL
		);`,
		`CREATE INDEX IF NOT EXISTS tickets_user_idx ON tickets (user_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS tickets_paid_seat_idx ON tickets (seat_id) WHERE status = 'PAID';`,
		`CREATE TABLE IF NOT EXISTS transactions (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT UNIQUE NOT NULL,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			amount NUMERIC(14,2) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS transactions_user_seq_idx ON transactions (user_id, seq DESC);`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT UNIQUE NOT NULL,
			actor_id TEXT NOT NULL,
			description TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// =============================================================================
// UNITS OF WORK (reservation.Store)
// =============================================================================

// WithTx executes fn in a READ COMMITTED transaction with a bounded lock
// wait. Row locks taken through the Tx are held until commit or rollback.
func (s *Store) WithTx(ctx context.Context, fn func(reservation.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapErr("begin", err)
	}
	defer tx.Rollback(ctx)

	// SET does not take bind parameters.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())); err != nil {
		return mapErr("set lock_timeout", err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapErr("commit", err)
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

func (ts *txStore) LockUser(ctx context.Context, id reservation.UserID) (reservation.User, error) {
	return getUser(ctx, ts.tx, id, " FOR UPDATE")
}

func (ts *txStore) GetBus(ctx context.Context, id reservation.BusID) (reservation.Bus, error) {
	return getBus(ctx, ts.tx, id)
}

func (ts *txStore) LockSeat(ctx context.Context, id reservation.SeatID) (reservation.Seat, error) {
	var seat reservation.Seat
	err := ts.tx.QueryRow(ctx,
		`SELECT id, bus_id, number, booked FROM seats WHERE id = $1 FOR UPDATE`, id,
	).Scan(&seat.ID, &seat.BusID, &seat.Number, &seat.Booked)
	if errors.Is(err, pgx.ErrNoRows) {
		return reservation.Seat{}, reservation.ErrSeatNotFound
	}
	if err != nil {
		return reservation.Seat{}, mapErr("lock seat", err)
	}
	return seat, nil
}

func (ts *txStore) SetSeatBooked(ctx context.Context, id reservation.SeatID, booked bool) error {
	tag, err := ts.tx.Exec(ctx, `UPDATE seats SET booked = $1 WHERE id = $2`, booked, id)
	return affectedOne(tag, err, "update seat", reservation.ErrSeatNotFound)
}

func (ts *txStore) SetBalance(ctx context.Context, id reservation.UserID, balance decimal.Decimal) error {
	tag, err := ts.tx.Exec(ctx, `UPDATE users SET balance = $1::numeric WHERE id = $2`, balance.StringFixed(2), id)
	return affectedOne(tag, err, "update balance", reservation.ErrUserNotFound)
}

func (ts *txStore) AppendTransaction(ctx context.Context, t reservation.Transaction) (reservation.Transaction, error) {
	err := ts.tx.QueryRow(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, description, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		RETURNING seq`,
		t.ID, t.UserID, t.Type, t.Amount.StringFixed(2), t.Description, t.CreatedAt,
	).Scan(&t.Seq)
	if err != nil {
		return reservation.Transaction{}, mapErr("append transaction", err)
	}
	return t, nil
}

func (ts *txStore) InsertTicket(ctx context.Context, t reservation.Ticket) error {
	_, err := ts.tx.Exec(ctx, `
		INSERT INTO tickets (id, user_id, bus_id, seat_id, price, purchased_at, status)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`,
		t.ID, t.UserID, t.BusID, t.SeatID, t.Price.StringFixed(2), t.PurchasedAt, t.Status,
	)
	if err != nil {
		return mapErr("insert ticket", err)
	}
	return nil
}

func (ts *txStore) LockTicket(ctx context.Context, id reservation.TicketID) (reservation.Ticket, error) {
	row := ts.tx.QueryRow(ctx, `
		SELECT id, user_id, bus_id, seat_id, price::text, purchased_at, status
		FROM tickets WHERE id = $1 FOR UPDATE`, id)
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return reservation.Ticket{}, reservation.ErrTicketNotFound
	}
	if err != nil {
		return reservation.Ticket{}, mapErr("lock ticket", err)
	}
	return t, nil
}

func (ts *txStore) SetTicketStatus(ctx context.Context, id reservation.TicketID, status reservation.TicketStatus) error {
	tag, err := ts.tx.Exec(ctx, `UPDATE tickets SET status = $1 WHERE id = $2`, status, id)
	return affectedOne(tag, err, "update ticket", reservation.ErrTicketNotFound)
}

func (ts *txStore) DeleteTicket(ctx context.Context, id reservation.TicketID) error {
	tag, err := ts.tx.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	return affectedOne(tag, err, "delete ticket", reservation.ErrTicketNotFound)
}

// =============================================================================
// READ-ONLY QUERIES
// =============================================================================

func (s *Store) FindUser(ctx context.Context, id reservation.UserID) (reservation.User, error) {
	return getUser(ctx, s.pool, id, "")
}

func (s *Store) GetBus(ctx context.Context, id reservation.BusID) (reservation.Bus, error) {
	return getBus(ctx, s.pool, id)
}

func (s *Store) AvailableSeats(ctx context.Context, busID reservation.BusID) ([]reservation.Seat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, bus_id, number, booked FROM seats
		WHERE bus_id = $1 AND NOT booked
		ORDER BY number`, busID)
	if err != nil {
		return nil, mapErr("available seats", err)
	}
	defer rows.Close()

	var seats []reservation.Seat
	for rows.Next() {
		var seat reservation.Seat
		if err := rows.Scan(&seat.ID, &seat.BusID, &seat.Number, &seat.Booked); err != nil {
			return nil, mapErr("scan seat", err)
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("available seats", err)
	}
	return seats, nil
}

func (s *Store) TransactionsBefore(ctx context.Context, userID reservation.UserID, beforeSeq int64, limit int) ([]reservation.Transaction, error) {
	query := `
		SELECT seq, id, user_id, type, amount::text, description, created_at
		FROM transactions
		WHERE user_id = $1 AND ($2::bigint <= 0 OR seq < $2::bigint)
		ORDER BY seq DESC`
	args := []any{userID, beforeSeq}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr("query transactions", err)
	}
	defer rows.Close()

	var txs []reservation.Transaction
	for rows.Next() {
		var (
			t      reservation.Transaction
			amount string
		)
		if err := rows.Scan(&t.Seq, &t.ID, &t.UserID, &t.Type, &amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, mapErr("scan transaction", err)
		}
		if t.Amount, err = parseMoney("parse amount", amount); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("query transactions", err)
	}
	return txs, nil
}

func (s *Store) TicketsByUser(ctx context.Context, userID reservation.UserID) ([]reservation.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, bus_id, seat_id, price::text, purchased_at, status
		FROM tickets WHERE user_id = $1
		ORDER BY purchased_at DESC, created_seq DESC`, userID)
	if err != nil {
		return nil, mapErr("query tickets", err)
	}
	defer rows.Close()

	tickets := []reservation.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, mapErr("scan ticket", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("query tickets", err)
	}
	return tickets, nil
}

// =============================================================================
// CATALOG (reservation.Catalog)
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u reservation.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, credential_hash, balance, initial_balance, role, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8)`,
		u.ID, u.Name, u.Email, u.CredentialHash,
		u.Balance.StringFixed(2), u.InitialBalance.StringFixed(2), u.Role, u.CreatedAt,
	)
	if err != nil {
		return mapErr("create user", err)
	}
	return nil
}

// FindUserByEmail looks a user up by lower-cased email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (reservation.User, error) {
	return getUserWhere(ctx, s.pool, "email = $1", email)
}

// CreateBus inserts the bus and its seats in one transaction.
func (s *Store) CreateBus(ctx context.Context, b reservation.Bus) ([]reservation.Seat, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, mapErr("begin", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO buses (id, name, number, total_seats, price_per_seat, departure_at, arrival_at, route)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)`,
		b.ID, b.Name, b.Number, b.TotalSeats, b.PricePerSeat.StringFixed(2), b.DepartureAt, b.ArrivalAt, b.Route,
	)
	if err != nil {
		return nil, mapErr("create bus", err)
	}

	seats := make([]reservation.Seat, 0, b.TotalSeats)
	batch := &pgx.Batch{}
	for n := 1; n <= b.TotalSeats; n++ {
		seat := reservation.Seat{ID: reservation.SeatID(reservation.NewID()), BusID: b.ID, Number: n}
		batch.Queue(`INSERT INTO seats (id, bus_id, number, booked) VALUES ($1, $2, $3, FALSE)`,
			seat.ID, seat.BusID, seat.Number)
		seats = append(seats, seat)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, mapErr("create seats", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr("commit", err)
	}
	return seats, nil
}

// DeleteBus removes a bus; seats and tickets cascade.
func (s *Store) UpdateBus(ctx context.Context, b reservation.Bus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE buses
		SET name = $1, number = $2, price_per_seat = $3::numeric, departure_at = $4, arrival_at = $5, route = $6
		WHERE id = $7`,
		b.Name, b.Number, b.PricePerSeat.StringFixed(2), b.DepartureAt, b.ArrivalAt, b.Route, b.ID,
	)
	return affectedOne(tag, err, "update bus", reservation.ErrBusNotFound)
}

func (s *Store) DeleteBus(ctx context.Context, id reservation.BusID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM buses WHERE id = $1`, id)
	return affectedOne(tag, err, "delete bus", reservation.ErrBusNotFound)
}

func (s *Store) ListBuses(ctx context.Context) ([]reservation.Bus, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, number, total_seats, price_per_seat::text, departure_at, arrival_at, route
		FROM buses ORDER BY departure_at, number`)
	if err != nil {
		return nil, mapErr("list buses", err)
	}
	defer rows.Close()

	buses := []reservation.Bus{}
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return nil, mapErr("scan bus", err)
		}
		buses = append(buses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list buses", err)
	}
	return buses, nil
}

// =============================================================================
// AUDIT LOG (reservation.AuditStore)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e reservation.AuditEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (id, actor_id, description, recorded_at) VALUES ($1, $2, $3, $4)`,
		e.ID, e.ActorID, e.Description, e.RecordedAt,
	)
	if err != nil {
		return mapErr("append audit", err)
	}
	return nil
}

func (s *Store) RecentAudit(ctx context.Context, limit int) ([]reservation.AuditEntry, error) {
	query := `SELECT id, actor_id, description, recorded_at FROM audit_log ORDER BY seq DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr("recent audit", err)
	}
	defer rows.Close()

	entries := []reservation.AuditEntry{}
	for rows.Next() {
		var e reservation.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Description, &e.RecordedAt); err != nil {
			return nil, mapErr("scan audit", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("recent audit", err)
	}
	return entries, nil
}

// =============================================================================
// RECONCILIATION (reservation.ReconcileStore)
// =============================================================================

func (s *Store) SeatTicketCounts(ctx context.Context) ([]reservation.SeatTicketCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.bus_id, s.number, s.booked, COUNT(t.id)
		FROM seats s
		LEFT JOIN tickets t ON t.seat_id = s.id AND t.status = 'PAID'
		GROUP BY s.id, s.bus_id, s.number, s.booked
		ORDER BY s.bus_id, s.number`)
	if err != nil {
		return nil, mapErr("seat ticket counts", err)
	}
	defer rows.Close()

	var out []reservation.SeatTicketCount
	for rows.Next() {
		var (
			c     reservation.SeatTicketCount
			count int64
		)
		if err := rows.Scan(&c.SeatID, &c.BusID, &c.Number, &c.Booked, &count); err != nil {
			return nil, mapErr("scan seat count", err)
		}
		c.PaidTickets = int(count)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("seat ticket counts", err)
	}
	return out, nil
}

// WalletTotals lets NUMERIC do the summing; it is exact.
func (s *Store) WalletTotals(ctx context.Context) ([]reservation.WalletTotal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.balance::text, u.initial_balance::text, COALESCE(SUM(t.amount), 0)::text
		FROM users u
		LEFT JOIN transactions t ON t.user_id = u.id
		GROUP BY u.id, u.balance, u.initial_balance
		ORDER BY u.id`)
	if err != nil {
		return nil, mapErr("wallet totals", err)
	}
	defer rows.Close()

	var out []reservation.WalletTotal
	for rows.Next() {
		var (
			w                     reservation.WalletTotal
			balance, initial, sum string
		)
		if err := rows.Scan(&w.UserID, &balance, &initial, &sum); err != nil {
			return nil, mapErr("scan wallet total", err)
		}
		var err error
		if w.Balance, err = parseMoney("parse balance", balance); err != nil {
			return nil, err
		}
		if w.InitialBalance, err = parseMoney("parse initial balance", initial); err != nil {
			return nil, err
		}
		if w.Transactions, err = parseMoney("parse transaction sum", sum); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("wallet totals", err)
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func getUser(ctx context.Context, q queryer, id reservation.UserID, lock string) (reservation.User, error) {
	return getUserWhere(ctx, q, "id = $1"+lock, id)
}

func getUserWhere(ctx context.Context, q queryer, where string, arg any) (reservation.User, error) {
	var (
		u                reservation.User
		balance, initial string
	)
	err := q.QueryRow(ctx, `
		SELECT id, name, email, credential_hash, balance::text, initial_balance::text, role, created_at
		FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.CredentialHash, &balance, &initial, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return reservation.User{}, reservation.ErrUserNotFound
	}
	if err != nil {
		return reservation.User{}, mapErr("get user", err)
	}
	if u.Balance, err = parseMoney("parse balance", balance); err != nil {
		return reservation.User{}, err
	}
	if u.InitialBalance, err = parseMoney("parse balance", initial); err != nil {
		return reservation.User{}, err
	}
	return u, nil
}

func getBus(ctx context.Context, q queryer, id reservation.BusID) (reservation.Bus, error) {
	row := q.QueryRow(ctx, `
		SELECT id, name, number, total_seats, price_per_seat::text, departure_at, arrival_at, route
		FROM buses WHERE id = $1`, id)
	b, err := scanBus(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return reservation.Bus{}, reservation.ErrBusNotFound
	}
	if err != nil {
		return reservation.Bus{}, mapErr("get bus", err)
	}
	return b, nil
}

func scanBus(row pgx.Row) (reservation.Bus, error) {
	var (
		b     reservation.Bus
		price string
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Number, &b.TotalSeats, &price, &b.DepartureAt, &b.ArrivalAt, &b.Route); err != nil {
		return reservation.Bus{}, err
	}
	var err error
	if b.PricePerSeat, err = parseMoney("parse price", price); err != nil {
		return reservation.Bus{}, err
	}
	return b, nil
}

func scanTicket(row pgx.Row) (reservation.Ticket, error) {
	var (
		t     reservation.Ticket
		price string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.BusID, &t.SeatID, &price, &t.PurchasedAt, &t.Status); err != nil {
		return reservation.Ticket{}, err
	}
	var err error
	if t.Price, err = parseMoney("parse price", price); err != nil {
		return reservation.Ticket{}, err
	}
	return t, nil
}

func affectedOne(tag pgconn.CommandTag, err error, op string, notFound error) error {
	if err != nil {
		return mapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

// SQLSTATE codes handled by mapErr.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// mapErr translates driver errors: unique violations become
// ErrAlreadyExists, other integrity violations ErrInvalidInput. Lock
// conflicts, timeouts and connection failures are ErrStoreUnavailable;
// anything else is returned as a plain error.
func mapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			return fmt.Errorf("%s: %w", op, reservation.ErrAlreadyExists)
		case pgErr.Code == codeSerializationFailure, pgErr.Code == codeDeadlockDetected, pgErr.Code == codeLockNotAvailable:
			return reservation.Unavailable(op+": lock conflict", err)
		case strings.HasPrefix(pgErr.Code, "23"):
			return fmt.Errorf("%s: %w: %w", op, reservation.ErrInvalidInput, err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return reservation.Unavailable(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var netErr net.Error
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.As(err, &netErr) ||
		pgconn.Timeout(err) || pgconn.SafeToRetry(err) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return reservation.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// parseMoney reads a NUMERIC rendered as text.
func parseMoney(op, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

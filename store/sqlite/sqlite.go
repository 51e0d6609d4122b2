/*
Package sqlite provides a SQLite-backed implementation of the reservation
storage interfaces.

PURPOSE:
  Implements reservation.Store, reservation.Catalog, reservation.AuditStore
  and reservation.ReconcileStore on SQLite. This is the default production
  store.

KEY TABLES:
  users:        Wallet owners with current and initial balance
  buses:        Bus records, unique number
  seats:        Seats 1..N per bus, booked flag
  tickets:      PAID/CANCELLED tickets, price fixed at purchase
  transactions: Append-only wallet history, seq gives newest-first order
  audit_log:    Who did what when

INDEXES:
  - idx_tickets_paid_seat: at most one PAID ticket per seat, enforced by
    the database as a second line behind the seat lock
  - idx_transactions_user_seq: history paging (hot path)

CONCURRENCY:
  SQLite has no row locks. Every unit of work is opened with BEGIN
  IMMEDIATE (_txlock=immediate), which takes the database write lock
  before the first read, so "lock row then read" holds trivially: a unit
  that reads a seat can be sure nobody else changes it before commit.
  Waiting for the write lock is bounded by _busy_timeout and by ctx.
  SQLITE_BUSY, SQLITE_LOCKED and context errors surface as
  reservation.ErrStoreUnavailable.

  Inside a unit every statement goes through the *sql.Tx. For ":memory:"
  the pool is limited to one connection (each connection would otherwise
  get its own empty database), so touching s.db from inside a unit would
  wait on itself.

WAL MODE:
  Opened with WAL so readers outside a unit don't block on the writer.

USAGE:
  store, err := sqlite.New("./seatledger.db", 5*time.Second)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := reservation.NewEngine(store, reservation.Options{})

SEE ALSO:
  - reservation/store.go: Interface definitions
  - reservation/store/memory.go: In-memory implementation for testing
  - store/postgres: Row-level locking with SELECT ... FOR UPDATE
*/
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/seat-ledger/reservation"
)

const defaultBusyTimeout = 5 * time.Second

// Store implements the reservation storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ reservation.Store          = (*Store)(nil)
	_ reservation.Catalog        = (*Store)(nil)
	_ reservation.AuditStore     = (*Store)(nil)
	_ reservation.ReconcileStore = (*Store)(nil)
)

// New opens (and migrates) the database at dbPath. Use ":memory:" for an
// in-memory database. busyTimeout bounds how long a unit waits for the
// write lock; zero means 5s.
func New(dbPath string, busyTimeout time.Duration) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate",
		dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := NewFromDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewFromDB wraps an already opened, already migrated database.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return mapErr("ping", err)
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		credential_hash TEXT NOT NULL DEFAULT '',
		balance TEXT NOT NULL,
		initial_balance TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'customer',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS buses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		number TEXT NOT NULL UNIQUE,
		total_seats INTEGER NOT NULL CHECK (total_seats > 0),
		price_per_seat TEXT NOT NULL,
		departure_at TEXT NOT NULL,
		arrival_at TEXT NOT NULL,
		route TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS seats (
		id TEXT PRIMARY KEY,
		bus_id TEXT NOT NULL REFERENCES buses(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		booked INTEGER NOT NULL DEFAULT 0,
		UNIQUE(bus_id, number)
	);

	CREATE TABLE IF NOT EXISTS tickets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		bus_id TEXT NOT NULL REFERENCES buses(id) ON DELETE CASCADE,
		seat_id TEXT NOT NULL REFERENCES seats(id) ON DELETE CASCADE,
		price TEXT NOT NULL,
		purchased_at TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PAID', 'CANCELLED'))
	);

	CREATE INDEX IF NOT EXISTS idx_tickets_user
		ON tickets(user_id);

	-- A seat can be held by at most one PAID ticket
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_paid_seat
		ON tickets(seat_id) WHERE status = 'PAID';

	-- Wallet history (append-only)
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_seq
		ON transactions(user_id, seq DESC);

	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		actor_id TEXT NOT NULL,
		description TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// UNITS OF WORK (reservation.Store)
// =============================================================================

// WithTx executes fn within a database transaction. The write lock is
// taken at BEGIN; any error from fn rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(reservation.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr("begin", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapErr("commit", err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) LockUser(ctx context.Context, id reservation.UserID) (reservation.User, error) {
	return getUser(ctx, ts.tx, id)
}

func (ts *txStore) GetBus(ctx context.Context, id reservation.BusID) (reservation.Bus, error) {
	return getBus(ctx, ts.tx, id)
}

func (ts *txStore) LockSeat(ctx context.Context, id reservation.SeatID) (reservation.Seat, error) {
	var seat reservation.Seat
	err := ts.tx.QueryRowContext(ctx,
		"SELECT id, bus_id, number, booked FROM seats WHERE id = ?", id,
	).Scan(&seat.ID, &seat.BusID, &seat.Number, &seat.Booked)
	if errors.Is(err, sql.ErrNoRows) {
		return reservation.Seat{}, reservation.ErrSeatNotFound
	}
	if err != nil {
		return reservation.Seat{}, mapErr("lock seat", err)
	}
	return seat, nil
}

func (ts *txStore) SetSeatBooked(ctx context.Context, id reservation.SeatID, booked bool) error {
	res, err := ts.tx.ExecContext(ctx, "UPDATE seats SET booked = ? WHERE id = ?", booked, id)
	return affectedOne(res, err, "update seat", reservation.ErrSeatNotFound)
}

func (ts *txStore) SetBalance(ctx context.Context, id reservation.UserID, balance decimal.Decimal) error {
	res, err := ts.tx.ExecContext(ctx,
		"UPDATE users SET balance = ? WHERE id = ?", balance.StringFixed(2), id)
	return affectedOne(res, err, "update balance", reservation.ErrUserNotFound)
}

func (ts *txStore) AppendTransaction(ctx context.Context, t reservation.Transaction) (reservation.Transaction, error) {
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Type, t.Amount.StringFixed(2), t.Description, formatTime(t.CreatedAt),
	)
	if err != nil {
		return reservation.Transaction{}, mapErr("append transaction", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return reservation.Transaction{}, mapErr("append transaction", err)
	}
	t.Seq = seq
	return t, nil
}

func (ts *txStore) InsertTicket(ctx context.Context, t reservation.Ticket) error {
	_, err := ts.tx.ExecContext(ctx, `
		INSERT INTO tickets (id, user_id, bus_id, seat_id, price, purchased_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.BusID, t.SeatID, t.Price.StringFixed(2), formatTime(t.PurchasedAt), t.Status,
	)
	if err != nil {
		return mapErr("insert ticket", err)
	}
	return nil
}

func (ts *txStore) LockTicket(ctx context.Context, id reservation.TicketID) (reservation.Ticket, error) {
	row := ts.tx.QueryRowContext(ctx, `
		SELECT id, user_id, bus_id, seat_id, price, purchased_at, status
		FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reservation.Ticket{}, reservation.ErrTicketNotFound
	}
	if err != nil {
		return reservation.Ticket{}, mapErr("lock ticket", err)
	}
	return t, nil
}

func (ts *txStore) SetTicketStatus(ctx context.Context, id reservation.TicketID, status reservation.TicketStatus) error {
	res, err := ts.tx.ExecContext(ctx, "UPDATE tickets SET status = ? WHERE id = ?", status, id)
	return affectedOne(res, err, "update ticket", reservation.ErrTicketNotFound)
}

func (ts *txStore) DeleteTicket(ctx context.Context, id reservation.TicketID) error {
	res, err := ts.tx.ExecContext(ctx, "DELETE FROM tickets WHERE id = ?", id)
	return affectedOne(res, err, "delete ticket", reservation.ErrTicketNotFound)
}

// =============================================================================
// READ-ONLY QUERIES
// =============================================================================

func (s *Store) FindUser(ctx context.Context, id reservation.UserID) (reservation.User, error) {
	return getUser(ctx, s.db, id)
}

func (s *Store) GetBus(ctx context.Context, id reservation.BusID) (reservation.Bus, error) {
	return getBus(ctx, s.db, id)
}

func (s *Store) AvailableSeats(ctx context.Context, busID reservation.BusID) ([]reservation.Seat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bus_id, number, booked FROM seats
		WHERE bus_id = ? AND booked = 0
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
		SELECT seq, id, user_id, type, amount, description, created_at
		FROM transactions
		WHERE user_id = ? AND (? <= 0 OR seq < ?)
		ORDER BY seq DESC`
	args := []any{userID, beforeSeq, beforeSeq}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("query transactions", err)
	}
	defer rows.Close()

	var txs []reservation.Transaction
	for rows.Next() {
		var (
			t         reservation.Transaction
			createdAt string
		)
		if err := rows.Scan(&t.Seq, &t.ID, &t.UserID, &t.Type, &t.Amount, &t.Description, &createdAt); err != nil {
			return nil, mapErr("scan transaction", err)
		}
		t.CreatedAt = parseTime(createdAt)
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("query transactions", err)
	}
	return txs, nil
}

func (s *Store) TicketsByUser(ctx context.Context, userID reservation.UserID) ([]reservation.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, bus_id, seat_id, price, purchased_at, status
		FROM tickets WHERE user_id = ?
		ORDER BY purchased_at DESC, rowid DESC`, userID)
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, credential_hash, balance, initial_balance, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.CredentialHash,
		u.Balance.StringFixed(2), u.InitialBalance.StringFixed(2), u.Role,
		formatTime(u.CreatedAt),
	)
	if err != nil {
		return mapErr("create user", err)
	}
	return nil
}

// FindUserByEmail looks a user up by lower-cased email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (reservation.User, error) {
	return getUserWhere(ctx, s.db, "email = ?", email)
}

// CreateBus inserts the bus and its seats in one transaction.
func (s *Store) CreateBus(ctx context.Context, b reservation.Bus) ([]reservation.Seat, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapErr("begin", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO buses (id, name, number, total_seats, price_per_seat, departure_at, arrival_at, route)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Number, b.TotalSeats, b.PricePerSeat.StringFixed(2),
		formatTime(b.DepartureAt), formatTime(b.ArrivalAt), b.Route,
	)
	if err != nil {
		return nil, mapErr("create bus", err)
	}

	stmt, err := sqlTx.PrepareContext(ctx, "INSERT INTO seats (id, bus_id, number, booked) VALUES (?, ?, ?, 0)")
	if err != nil {
		return nil, mapErr("prepare seats", err)
	}
	defer stmt.Close()

	seats := make([]reservation.Seat, 0, b.TotalSeats)
	for n := 1; n <= b.TotalSeats; n++ {
		seat := reservation.Seat{ID: reservation.SeatID(reservation.NewID()), BusID: b.ID, Number: n}
		if _, err := stmt.ExecContext(ctx, seat.ID, seat.BusID, seat.Number); err != nil {
			return nil, mapErr("create seat", err)
		}
		seats = append(seats, seat)
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, mapErr("commit", err)
	}
	return seats, nil
}

// DeleteBus removes a bus; seats and tickets cascade.
func (s *Store) UpdateBus(ctx context.Context, b reservation.Bus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE buses
		SET name = ?, number = ?, price_per_seat = ?, departure_at = ?, arrival_at = ?, route = ?
		WHERE id = ?`,
		b.Name, b.Number, b.PricePerSeat.StringFixed(2),
		formatTime(b.DepartureAt), formatTime(b.ArrivalAt), b.Route, b.ID,
	)
	return affectedOne(res, err, "update bus", reservation.ErrBusNotFound)
}

func (s *Store) DeleteBus(ctx context.Context, id reservation.BusID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM buses WHERE id = ?", id)
	return affectedOne(res, err, "delete bus", reservation.ErrBusNotFound)
}

func (s *Store) ListBuses(ctx context.Context) ([]reservation.Bus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, number, total_seats, price_per_seat, departure_at, arrival_at, route
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
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_log (id, actor_id, description, recorded_at) VALUES (?, ?, ?, ?)",
		e.ID, e.ActorID, e.Description, formatTime(e.RecordedAt),
	)
	if err != nil {
		return mapErr("append audit", err)
	}
	return nil
}

func (s *Store) RecentAudit(ctx context.Context, limit int) ([]reservation.AuditEntry, error) {
	query := "SELECT id, actor_id, description, recorded_at FROM audit_log ORDER BY seq DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("recent audit", err)
	}
	defer rows.Close()

	entries := []reservation.AuditEntry{}
	for rows.Next() {
		var (
			e          reservation.AuditEntry
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Description, &recordedAt); err != nil {
			return nil, mapErr("scan audit", err)
		}
		e.RecordedAt = parseTime(recordedAt)
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
	rows, err := s.db.QueryContext(ctx, `
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
		var c reservation.SeatTicketCount
		if err := rows.Scan(&c.SeatID, &c.BusID, &c.Number, &c.Booked, &c.PaidTickets); err != nil {
			return nil, mapErr("scan seat count", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("seat ticket counts", err)
	}
	return out, nil
}

// WalletTotals sums amounts in Go: SQLite's SUM over TEXT would go through
// floating point.
func (s *Store) WalletTotals(ctx context.Context) ([]reservation.WalletTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.balance, u.initial_balance, t.amount
		FROM users u
		LEFT JOIN transactions t ON t.user_id = u.id
		ORDER BY u.id`)
	if err != nil {
		return nil, mapErr("wallet totals", err)
	}
	defer rows.Close()

	var out []reservation.WalletTotal
	for rows.Next() {
		var (
			id      reservation.UserID
			balance decimal.Decimal
			initial decimal.Decimal
			amount  decimal.NullDecimal
		)
		if err := rows.Scan(&id, &balance, &initial, &amount); err != nil {
			return nil, mapErr("scan wallet total", err)
		}
		if len(out) == 0 || out[len(out)-1].UserID != id {
			out = append(out, reservation.WalletTotal{UserID: id, Balance: balance, InitialBalance: initial})
		}
		if amount.Valid {
			last := &out[len(out)-1]
			last.Transactions = last.Transactions.Add(amount.Decimal)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("wallet totals", err)
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func getUser(ctx context.Context, q querier, id reservation.UserID) (reservation.User, error) {
	return getUserWhere(ctx, q, "id = ?", id)
}

func getUserWhere(ctx context.Context, q querier, where string, arg any) (reservation.User, error) {
	var (
		u         reservation.User
		createdAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, name, email, credential_hash, balance, initial_balance, role, created_at
		FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.CredentialHash, &u.Balance, &u.InitialBalance, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return reservation.User{}, reservation.ErrUserNotFound
	}
	if err != nil {
		return reservation.User{}, mapErr("get user", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func getBus(ctx context.Context, q querier, id reservation.BusID) (reservation.Bus, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, number, total_seats, price_per_seat, departure_at, arrival_at, route
		FROM buses WHERE id = ?`, id)
	b, err := scanBus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reservation.Bus{}, reservation.ErrBusNotFound
	}
	if err != nil {
		return reservation.Bus{}, mapErr("get bus", err)
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBus(row scanner) (reservation.Bus, error) {
	var (
		b                  reservation.Bus
		departure, arrival string
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Number, &b.TotalSeats, &b.PricePerSeat, &departure, &arrival, &b.Route); err != nil {
		return reservation.Bus{}, err
	}
	b.DepartureAt = parseTime(departure)
	b.ArrivalAt = parseTime(arrival)
	return b, nil
}

func scanTicket(row scanner) (reservation.Ticket, error) {
	var (
		t           reservation.Ticket
		purchasedAt string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.BusID, &t.SeatID, &t.Price, &purchasedAt, &t.Status); err != nil {
		return reservation.Ticket{}, err
	}
	t.PurchasedAt = parseTime(purchasedAt)
	return t, nil
}

func affectedOne(res sql.Result, err error, op string, notFound error) error {
	if err != nil {
		return mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(op, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// mapErr translates driver errors: unique violations become
// ErrAlreadyExists, other constraint violations ErrInvalidInput. Only lock
// contention and connection failures are ErrStoreUnavailable; anything
// else is returned as a plain error.
func mapErr(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrConstraint:
			if se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
				return fmt.Errorf("%s: %w", op, reservation.ErrAlreadyExists)
			}
			return fmt.Errorf("%s: %w: %w", op, reservation.ErrInvalidInput, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr:
			return reservation.Unavailable(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return reservation.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// timeLayout is fixed width so TEXT order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts fractional seconds of any width.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

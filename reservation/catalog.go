/*
catalog.go - User and bus registration

PURPOSE:
  Thin data-access layer for the records the engine consumes: users with a
  starting balance and buses with their seat inventory. Registration and
  bus management are owned by other parts of the system; this is only the
  surface the API and tests need to create those records.

SEE ALSO:
  - store.go: Catalog interface
*/
package reservation

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// NewUser is the input of RegisterUser.
type NewUser struct {
	Name           string
	Email          string
	Password       string
	InitialBalance decimal.Decimal
	Role           Role
}

// NewBus is the input of AddBus.
type NewBus struct {
	Name         string
	Number       string
	TotalSeats   int
	PricePerSeat decimal.Decimal
	DepartureAt  time.Time
	ArrivalAt    time.Time
	Route        string
}

// Directory registers users and manages buses.
type Directory struct {
	store   Store
	catalog Catalog
	audit   AuditSink
	log     *zap.Logger
	now     func() time.Time
}

func NewDirectory(store Store, catalog Catalog, audit AuditSink, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	if audit == nil {
		audit = NopAudit{}
	}
	return &Directory{store: store, catalog: catalog, audit: audit, log: log.Named("directory"), now: time.Now}
}

// RegisterUser validates and stores a new user. The password is kept only
// as a bcrypt hash.
func (d *Directory) RegisterUser(ctx context.Context, in NewUser) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return User{}, fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return User{}, fmt.Errorf("invalid email %q: %w", in.Email, ErrInvalidInput)
	}
	if len(in.Password) < 6 {
		return User{}, fmt.Errorf("password must be at least 6 characters: %w", ErrInvalidInput)
	}
	balance := Cents(in.InitialBalance)
	if balance.IsNegative() {
		return User{}, fmt.Errorf("initial balance %s: %w", balance, ErrInvalidAmount)
	}
	if in.Role == "" {
		in.Role = RoleCustomer
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:             UserID(NewID()),
		Name:           in.Name,
		Email:          in.Email,
		CredentialHash: string(hash),
		Balance:        balance,
		InitialBalance: balance,
		Role:           in.Role,
		CreatedAt:      d.now(),
	}
	if err := d.catalog.CreateUser(ctx, u); err != nil {
		return User{}, err
	}
	d.log.Info("user registered", zap.String("user_id", string(u.ID)), zap.String("role", string(u.Role)))
	return u, nil
}

// Login returns the user owning email if password matches.
func (d *Directory) Login(ctx context.Context, email, password string) (User, error) {
	u, err := d.catalog.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !CheckPassword(u, password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// CheckPassword reports whether password matches the user's stored hash.
func CheckPassword(u User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.CredentialHash), []byte(password)) == nil
}

// AddBus creates a bus with seats 1..TotalSeats. Admin only.
func (d *Directory) AddBus(ctx context.Context, actorID UserID, in NewBus) (Bus, []Seat, error) {
	if err := d.RequireAdmin(ctx, actorID); err != nil {
		return Bus{}, nil, err
	}
	in.Number = strings.TrimSpace(in.Number)
	if in.Number == "" {
		return Bus{}, nil, fmt.Errorf("bus number is required: %w", ErrInvalidInput)
	}
	if in.TotalSeats <= 0 {
		return Bus{}, nil, fmt.Errorf("total seats %d: %w", in.TotalSeats, ErrInvalidInput)
	}
	price := Cents(in.PricePerSeat)
	if !price.IsPositive() {
		return Bus{}, nil, fmt.Errorf("price %s: %w", price, ErrInvalidAmount)
	}
	if !in.ArrivalAt.IsZero() && in.ArrivalAt.Before(in.DepartureAt) {
		return Bus{}, nil, fmt.Errorf("arrival before departure: %w", ErrInvalidInput)
	}

	bus := Bus{
		ID:           BusID(NewID()),
		Name:         strings.TrimSpace(in.Name),
		Number:       in.Number,
		TotalSeats:   in.TotalSeats,
		PricePerSeat: price,
		DepartureAt:  in.DepartureAt,
		ArrivalAt:    in.ArrivalAt,
		Route:        in.Route,
	}
	seats, err := d.catalog.CreateBus(ctx, bus)
	if err != nil {
		return Bus{}, nil, err
	}
	recordAudit(ctx, d.audit, d.log, string(actorID),
		fmt.Sprintf("Added bus %s (%d seats at %s)", bus.Number, bus.TotalSeats, price.StringFixed(2)))
	return bus, seats, nil
}

// UpdateBus changes a bus's name, number, price, schedule and route. The
// seat count is fixed at creation. Tickets already sold keep their price.
// Admin only.
func (d *Directory) UpdateBus(ctx context.Context, actorID UserID, busID BusID, in NewBus) (Bus, error) {
	if err := d.RequireAdmin(ctx, actorID); err != nil {
		return Bus{}, err
	}
	current, err := d.store.GetBus(ctx, busID)
	if err != nil {
		return Bus{}, err
	}
	in.Number = strings.TrimSpace(in.Number)
	if in.Number == "" {
		return Bus{}, fmt.Errorf("bus number is required: %w", ErrInvalidInput)
	}
	price := Cents(in.PricePerSeat)
	if !price.IsPositive() {
		return Bus{}, fmt.Errorf("price %s: %w", price, ErrInvalidAmount)
	}
	if !in.ArrivalAt.IsZero() && in.ArrivalAt.Before(in.DepartureAt) {
		return Bus{}, fmt.Errorf("arrival before departure: %w", ErrInvalidInput)
	}

	bus := Bus{
		ID:           current.ID,
		Name:         strings.TrimSpace(in.Name),
		Number:       in.Number,
		TotalSeats:   current.TotalSeats,
		PricePerSeat: price,
		DepartureAt:  in.DepartureAt,
		ArrivalAt:    in.ArrivalAt,
		Route:        in.Route,
	}
	if err := d.catalog.UpdateBus(ctx, bus); err != nil {
		return Bus{}, err
	}
	recordAudit(ctx, d.audit, d.log, string(actorID),
		fmt.Sprintf("Updated bus %s (price %s -> %s)", bus.Number,
			current.PricePerSeat.StringFixed(2), price.StringFixed(2)))
	return bus, nil
}

// RemoveBus deletes a bus with its seats and tickets. Admin only.
func (d *Directory) RemoveBus(ctx context.Context, actorID UserID, busID BusID) error {
	if err := d.RequireAdmin(ctx, actorID); err != nil {
		return err
	}
	if err := d.catalog.DeleteBus(ctx, busID); err != nil {
		return err
	}
	recordAudit(ctx, d.audit, d.log, string(actorID), fmt.Sprintf("Removed bus %s", busID))
	return nil
}

// Buses lists all buses ordered by departure.
func (d *Directory) Buses(ctx context.Context) ([]Bus, error) {
	buses, err := d.catalog.ListBuses(ctx)
	if err != nil {
		return nil, err
	}
	if buses == nil {
		buses = []Bus{}
	}
	return buses, nil
}

// RequireAdmin returns ErrForbidden unless actorID is an admin.
func (d *Directory) RequireAdmin(ctx context.Context, actorID UserID) error {
	actor, err := d.store.FindUser(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

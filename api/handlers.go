/*
handlers.go - HTTP API handlers for the seat reservation ledger

PURPOSE:
  Exposes the reservation core via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every decision to the reservation
  package. Handlers never touch the store directly except for the
  read-only reconciliation report and audit log.

ENDPOINTS:
  Users (public):
    POST   /api/users                        Register a customer
    POST   /api/auth/token                   Exchange email + password for a bearer token

  Buses:
    GET    /api/buses                        List buses
    POST   /api/buses                        Add bus with seats (admin)
    PUT    /api/buses/{id}                   Edit bus; seat count is fixed (admin)
    DELETE /api/buses/{id}                   Remove bus (admin)
    GET    /api/buses/{id}/seats             Available seats

  Tickets (caller's own):
    POST   /api/tickets                      Purchase
    GET    /api/tickets                      List
    POST   /api/tickets/{id}/cancel          Cancel; custom refund_percent is admin only
    DELETE /api/tickets/{id}                 Purge (admin)

  Wallet (caller's own):
    GET    /api/wallet                       Balance
    POST   /api/wallet/deposits              Deposit
    GET    /api/wallet/transactions?limit=   History, newest first

  Admin:
    GET    /api/admin/reconciliation         Ledger consistency report; ?cached=true
                                             returns the scheduler's last report
    GET    /api/admin/audit?limit=           Recent audit entries, newest first

ERROR HANDLING:
  Domain errors map to HTTP status in writeDomainError:
  - 400: invalid amount or input
  - 401: bad credentials (missing or invalid tokens are rejected in auth.go)
  - 402: insufficient funds
  - 403: forbidden
  - 404: user, bus, seat or ticket not found
  - 409: seat already booked, wrong ticket state, duplicate
  - 503: store unavailable (lock timeout, deadlock); Retry-After is set

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Bearer token identity
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/seat-ledger/reservation"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *reservation.Engine
	Directory *reservation.Directory
	Reconcile reservation.ReconcileStore
	Auth      *Authenticator

	// Audit backs /api/admin/audit when set.
	Audit reservation.AuditStore

	// Scheduler, when set, runs on-demand reconciliations so they are
	// logged and cached like the periodic ones.
	Scheduler *ReconciliationScheduler

	// Ping backs /healthz when set.
	Ping func(context.Context) error

	log *zap.Logger
}

func NewHandler(engine *reservation.Engine, directory *reservation.Directory, reconcile reservation.ReconcileStore, auth *Authenticator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Engine:    engine,
		Directory: directory,
		Reconcile: reconcile,
		Auth:      auth,
		log:       log.Named("api"),
	}
}

// Health reports whether the store answers.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// RegisterUser creates a customer account with a zero balance.
// POST /api/users
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Directory.RegisterUser(r.Context(), reservation.NewUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     reservation.RoleCustomer,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to register user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// IssueToken exchanges email and password for a bearer token.
// POST /api/auth/token
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Directory.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, "Login failed", err)
		return
	}
	token, err := h.Auth.Issue(user.ID)
	if err != nil {
		h.writeDomainError(w, "Failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token, User: toUserDTO(user)})
}

// =============================================================================
// BUS HANDLERS
// =============================================================================

// ListBuses returns all buses ordered by departure.
// GET /api/buses
func (h *Handler) ListBuses(w http.ResponseWriter, r *http.Request) {
	buses, err := h.Directory.Buses(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list buses", err)
		return
	}

	dtos := make([]BusDTO, len(buses))
	for i, b := range buses {
		dtos[i] = toBusDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBus adds a bus and generates its seats.
// POST /api/buses
func (h *Handler) CreateBus(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)

	var req CreateBusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	bus, seats, err := h.Directory.AddBus(r.Context(), caller, reservation.NewBus{
		Name:         req.Name,
		Number:       req.Number,
		TotalSeats:   req.TotalSeats,
		PricePerSeat: req.PricePerSeat,
		DepartureAt:  req.DepartureAt,
		ArrivalAt:    req.ArrivalAt,
		Route:        req.Route,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create bus", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateBusResponse{Bus: toBusDTO(bus), Seats: toSeatDTOs(seats)})
}

// UpdateBus edits a bus. Tickets already sold keep their price.
// PUT /api/buses/{id}
func (h *Handler) UpdateBus(w http.ResponseWriter, r *http.Request) {
	busID := reservation.BusID(chi.URLParam(r, "id"))

	var req UpdateBusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	bus, err := h.Directory.UpdateBus(r.Context(), callerID(r), busID, reservation.NewBus{
		Name:         req.Name,
		Number:       req.Number,
		PricePerSeat: req.PricePerSeat,
		DepartureAt:  req.DepartureAt,
		ArrivalAt:    req.ArrivalAt,
		Route:        req.Route,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to update bus", err)
		return
	}
	writeJSON(w, http.StatusOK, toBusDTO(bus))
}

// DeleteBus removes a bus with its seats and tickets.
// DELETE /api/buses/{id}
func (h *Handler) DeleteBus(w http.ResponseWriter, r *http.Request) {
	busID := reservation.BusID(chi.URLParam(r, "id"))
	if err := h.Directory.RemoveBus(r.Context(), callerID(r), busID); err != nil {
		h.writeDomainError(w, "Failed to delete bus", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAvailableSeats returns the free seats of a bus by seat number.
// GET /api/buses/{id}/seats
func (h *Handler) ListAvailableSeats(w http.ResponseWriter, r *http.Request) {
	busID := reservation.BusID(chi.URLParam(r, "id"))
	seats, err := h.Engine.AvailableSeats(r.Context(), busID)
	if err != nil {
		h.writeDomainError(w, "Failed to list seats", err)
		return
	}
	writeJSON(w, http.StatusOK, toSeatDTOs(seats))
}

// =============================================================================
// TICKET HANDLERS
// =============================================================================

// PurchaseTicket buys a seat for the caller.
// POST /api/tickets
func (h *Handler) PurchaseTicket(w http.ResponseWriter, r *http.Request) {
	var req PurchaseTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BusID == "" || req.SeatID == "" {
		writeError(w, http.StatusBadRequest, "bus_id and seat_id are required", nil)
		return
	}

	ticket, err := h.Engine.Purchase(r.Context(), callerID(r),
		reservation.BusID(req.BusID), reservation.SeatID(req.SeatID))
	if err != nil {
		h.writeDomainError(w, "Failed to purchase ticket", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTicketDTO(ticket))
}

// ListTickets returns the caller's tickets, newest first.
// GET /api/tickets
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Engine.Tickets(r.Context(), callerID(r))
	if err != nil {
		h.writeDomainError(w, "Failed to list tickets", err)
		return
	}

	dtos := make([]TicketDTO, len(tickets))
	for i, t := range tickets {
		dtos[i] = toTicketDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CancelTicket cancels one of the caller's PAID tickets.
// POST /api/tickets/{id}/cancel
func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerID(r)
	ticketID := reservation.TicketID(chi.URLParam(r, "id"))

	var req CancelTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var (
		refund decimal.Decimal
		err    error
	)
	if req.RefundPercent != nil {
		if err := h.Directory.RequireAdmin(ctx, caller); err != nil {
			h.writeDomainError(w, "Custom refund percent requires admin", err)
			return
		}
		refund, err = h.Engine.CancelWithRefund(ctx, caller, ticketID, *req.RefundPercent)
	} else {
		refund, err = h.Engine.Cancel(ctx, caller, ticketID)
	}
	if err != nil {
		h.writeDomainError(w, "Failed to cancel ticket", err)
		return
	}

	writeJSON(w, http.StatusOK, CancelTicketResponse{
		TicketID: string(ticketID),
		Status:   string(reservation.TicketCancelled),
		Refund:   refund.StringFixed(2),
	})
}

// PurgeTicket hard-deletes a ticket.
// DELETE /api/tickets/{id}
func (h *Handler) PurgeTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := reservation.TicketID(chi.URLParam(r, "id"))
	if err := h.Engine.PurgeTicket(r.Context(), callerID(r), ticketID); err != nil {
		h.writeDomainError(w, "Failed to purge ticket", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

// GetWallet returns the caller's balance.
// GET /api/wallet
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	balance, err := h.Engine.Wallet().Balance(r.Context(), caller)
	if err != nil {
		h.writeDomainError(w, "Failed to get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, WalletDTO{UserID: string(caller), Balance: balance.StringFixed(2)})
}

// Deposit credits the caller's wallet.
// POST /api/wallet/deposits
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, err := h.Engine.Wallet().Deposit(r.Context(), callerID(r), req.Amount)
	if err != nil {
		h.writeDomainError(w, "Failed to deposit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// ListTransactions returns the caller's wallet history, newest first.
// GET /api/wallet/transactions?limit=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	dtos := []TransactionDTO{}
	for tx, err := range h.Engine.Wallet().History(r.Context(), callerID(r), limit) {
		if err != nil {
			h.writeDomainError(w, "Failed to list transactions", err)
			return
		}
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetReconciliation checks seat and wallet invariants across the store.
// GET /api/admin/reconciliation
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Directory.RequireAdmin(ctx, callerID(r)); err != nil {
		h.writeDomainError(w, "Reconciliation requires admin", err)
		return
	}

	if h.Scheduler != nil && r.URL.Query().Get("cached") == "true" {
		if report, ok := h.Scheduler.LastReport(); ok {
			writeJSON(w, http.StatusOK, report)
			return
		}
	}

	var (
		report reservation.Report
		err    error
	)
	if h.Scheduler != nil {
		report, err = h.Scheduler.RunNow(ctx)
	} else {
		report, err = reservation.Reconcile(ctx, h.Reconcile)
	}
	if err != nil {
		h.writeDomainError(w, "Failed to reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListAudit returns recent audit entries, newest first.
// GET /api/admin/audit?limit=
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Directory.RequireAdmin(ctx, callerID(r)); err != nil {
		h.writeDomainError(w, "Audit log requires admin", err)
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	dtos := []AuditEntryDTO{}
	if h.Audit != nil {
		entries, err := h.Audit.RecentAudit(ctx, limit)
		if err != nil {
			h.writeDomainError(w, "Failed to read audit log", err)
			return
		}
		for _, e := range entries {
			dtos = append(dtos, toAuditEntryDTO(e))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// callerID is only called behind the auth middleware.
func callerID(r *http.Request) reservation.UserID {
	id, _ := UserIDFrom(r.Context())
	return id
}

// writeDomainError maps reservation errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case reservation.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, reservation.ErrSeatAlreadyBooked),
		errors.Is(err, reservation.ErrInvalidState),
		errors.Is(err, reservation.ErrAlreadyExists):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, reservation.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, message, err)
	case errors.Is(err, reservation.ErrInvalidAmount),
		errors.Is(err, reservation.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, reservation.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, message, nil)
	case errors.Is(err, reservation.ErrForbidden):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, reservation.ErrStoreUnavailable):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		h.log.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

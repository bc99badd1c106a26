package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"reflights/internal/api/middleware"
	"reflights/internal/domain"
	"reflights/internal/domain/payment"
	"reflights/internal/domain/ticket"
	"reflights/internal/usecase"
)

type Handlers struct {
	uc     *usecase.UseCases
	logger *slog.Logger
}

func NewHandlers(uc *usecase.UseCases, logger *slog.Logger) *Handlers {
	return &Handlers{uc: uc, logger: logger}
}

type mintRequest struct {
	To            string         `json:"to"`
	FlightNumber  string         `json:"flight_number"`
	Departure     string         `json:"departure"`
	Destination   string         `json:"destination"`
	DepartureTime time.Time      `json:"departure_time"`
	ArrivalTime   time.Time      `json:"arrival_time"`
	SeatClass     string         `json:"seat_class"`
	Paid          payment.Amount `json:"paid"`
}

func (h *Handlers) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !h.decode(w, r, &req) {
		return
	}

	caller := middleware.Caller(r.Context())
	if req.To == "" {
		req.To = caller
	}
	res, err := h.uc.Registry.Mint(r.Context(), usecase.MintParams{
		Payer: caller,
		To:    req.To,
		Metadata: ticket.Metadata{
			FlightNumber:  req.FlightNumber,
			Departure:     req.Departure,
			Destination:   req.Destination,
			DepartureTime: req.DepartureTime,
			ArrivalTime:   req.ArrivalTime,
			SeatClass:     req.SeatClass,
		},
		Paid: req.Paid,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusCreated, res)
}

func (h *Handlers) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	t, err := h.uc.Registry.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, t)
}

func (h *Handlers) GetTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	trail, err := h.uc.Queries.GetTicketTrail(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.respond(w, http.StatusOK, trail)
}

func (h *Handlers) Transfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	var req struct {
		To string `json:"to"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.uc.Registry.Transfer(r.Context(), id, middleware.Caller(r.Context()), req.To); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"ticket_id": id, "owner": req.To})
}

func (h *Handlers) MarkUsed(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	if err := h.uc.Registry.MarkUsed(r.Context(), id, middleware.Caller(r.Context())); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"ticket_id": id, "used": true})
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	var req struct {
		Price payment.Amount `json:"price"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.uc.Market.List(r.Context(), id, req.Price, middleware.Caller(r.Context())); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusCreated, map[string]any{"ticket_id": id, "price": req.Price})
}

func (h *Handlers) GetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	l, err := h.uc.Market.GetListing(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, l)
}

func (h *Handlers) CancelListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	if err := h.uc.Market.Cancel(r.Context(), id, middleware.Caller(r.Context())); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Buy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	var req struct {
		Paid payment.Amount `json:"paid"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.uc.Market.Buy(r.Context(), id, middleware.Caller(r.Context()), req.Paid)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, res)
}

func (h *Handlers) ActiveListings(w http.ResponseWriter, r *http.Request) {
	ids, err := h.uc.Market.ActiveListings(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"ticket_ids": ids})
}

func (h *Handlers) QuoteRelocation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	fee, err := h.uc.Bridge.QuoteRelocation(r.Context(), id, q.Get("destination"), q.Get("recipient"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"ticket_id": id, "fee": fee})
}

func (h *Handlers) Relocate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	var req struct {
		Destination string         `json:"destination"`
		Recipient   string         `json:"recipient"`
		Funds       payment.Amount `json:"funds"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.uc.Bridge.InitiateRelocation(r.Context(), usecase.RelocationParams{
		TicketID:      id,
		Destination:   req.Destination,
		Recipient:     req.Recipient,
		Caller:        middleware.Caller(r.Context()),
		AttachedFunds: req.Funds,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusAccepted, res)
}

func (h *Handlers) GetRelocation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.uc.Bridge.GetRelocation(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, rec)
}

func (h *Handlers) Balance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	bal, err := h.uc.Queries.Balance(r.Context(), account)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"account": account, "balance": bal})
}

type allowRequest struct {
	Allowed bool `json:"allowed"`
}

func (h *Handlers) AllowlistDomain(w http.ResponseWriter, r *http.Request) {
	var req allowRequest
	if !h.decode(w, r, &req) {
		return
	}
	domainID := chi.URLParam(r, "domain")
	if err := h.uc.Admin.AllowlistDomain(r.Context(), middleware.Caller(r.Context()), domainID, req.Allowed); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"domain": domainID, "allowed": req.Allowed})
}

func (h *Handlers) AllowlistSender(w http.ResponseWriter, r *http.Request) {
	var req allowRequest
	if !h.decode(w, r, &req) {
		return
	}
	sender := chi.URLParam(r, "sender")
	if err := h.uc.Admin.AllowlistSender(r.Context(), middleware.Caller(r.Context()), sender, req.Allowed); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"sender": sender, "allowed": req.Allowed})
}

func (h *Handlers) Pause(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	if err := h.uc.Admin.EmergencyPause(r.Context(), middleware.Caller(r.Context()), id); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"ticket_id": id, "paused": true})
}

func (h *Handlers) SetResellable(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	var req struct {
		Resellable bool `json:"resellable"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.uc.Admin.SetResellable(r.Context(), middleware.Caller(r.Context()), id, req.Resellable); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"ticket_id": id, "resellable": req.Resellable})
}

func (h *Handlers) Withdraw(w http.ResponseWriter, r *http.Request) {
	amount, err := h.uc.Admin.Withdraw(r.Context(), middleware.Caller(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"withdrawn": amount})
}

func (h *Handlers) ticketID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.fail(w, fmt.Errorf("%w: ticket id %q", domain.ErrValidation, chi.URLParam(r, "id")))
		return 0, false
	}
	return id, true
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.fail(w, fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handlers) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("encode response", "error", err)
	}
}

func (h *Handlers) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	kind := domain.Kind(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		kind, msg = "internal", http.StatusText(status)
	}
	if errors.Is(err, domain.ErrTransport) {
		h.logger.Warn("transport failure", "error", err)
	}
	h.respond(w, status, map[string]string{"error": msg, "kind": kind})
}

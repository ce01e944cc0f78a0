// Package handlers is the HTTP surface of the booking engine.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bookwell/libs/httpx"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

// IdempotencyHeader opts a commit into replay protection.
const IdempotencyHeader = "Idempotency-Key"

type Engine interface {
	ListAvailability(ctx context.Context, q engine.AvailabilityQuery) (engine.Availability, error)
	Commit(ctx context.Context, req engine.CommitRequest) (engine.CommitResult, error)
	Transition(ctx context.Context, req engine.TransitionRequest) (model.Booking, error)
	ListBookings(ctx context.Context, tenantID string, limit int) ([]model.Booking, error)
	GetBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, error)
}

type BookingHandler struct {
	engine Engine
	logger *slog.Logger
}

func NewBookingHandler(e Engine, logger *slog.Logger) *BookingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingHandler{engine: e, logger: logger}
}

type availabilityRequest struct {
	BranchID   string `validate:"required"`
	ServiceID  string `validate:"required"`
	EmployeeID string
	Date       string `validate:"omitempty,datetime=2006-01-02"`
	From       string `validate:"omitempty,datetime=2006-01-02"`
	To         string `validate:"omitempty,datetime=2006-01-02"`
	OptionIDs  []string
}

type slotItem struct {
	Time      string `json:"time"`
	StartAt   string `json:"start_at"`
	Available bool   `json:"available"`
}

type dateItem struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
}

type availabilityResponse struct {
	Mode            string     `json:"mode"`
	Date            string     `json:"date,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Slots           []slotItem `json:"slots"`
	Dates           []dateItem `json:"dates"`
}

type customerRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"max=200"`
	Phone string `json:"phone" validate:"max=32"`
	Email string `json:"email" validate:"omitempty,email"`
}

type createBookingRequest struct {
	BranchID     string          `json:"branch_id" validate:"required"`
	ServiceID    string          `json:"service_id" validate:"required"`
	EmployeeID   string          `json:"employee_id"`
	Date         string          `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime    string          `json:"start_time" validate:"omitempty,datetime=15:04"`
	CheckOutDate string          `json:"check_out_date" validate:"omitempty,datetime=2006-01-02"`
	Customer     customerRequest `json:"customer"`
	Notes        string          `json:"notes" validate:"max=2000"`
	OptionIDs    []string        `json:"option_ids" validate:"dive,required"`
}

type transitionRequest struct {
	BookingID string `json:"booking_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=PENDING CONFIRMED CANCELLED COMPLETED NO_SHOW"`
	Reason    string `json:"reason" validate:"max=500"`
}

type bookingItem struct {
	ID            string   `json:"id"`
	BranchID      string   `json:"branch_id"`
	ServiceID     string   `json:"service_id"`
	EmployeeID    string   `json:"employee_id,omitempty"`
	ResourceID    string   `json:"resource_id"`
	CustomerID    string   `json:"customer_id"`
	Mode          string   `json:"mode"`
	Date          string   `json:"date"`
	StartTime     string   `json:"start_time,omitempty"`
	EndTime       string   `json:"end_time,omitempty"`
	CheckOutDate  string   `json:"check_out_date,omitempty"`
	StartAt       string   `json:"start_at"`
	EndAt         string   `json:"end_at"`
	TotalNights   int      `json:"total_nights,omitempty"`
	TotalPrice    string   `json:"total_price"`
	DepositAmount string   `json:"deposit_amount"`
	OptionIDs     []string `json:"option_ids,omitempty"`
	Status        string   `json:"status"`
	Notes         string   `json:"notes,omitempty"`
	CancelledAt   string   `json:"cancelled_at,omitempty"`
	CancelReason  string   `json:"cancel_reason,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

func toItem(b model.Booking) bookingItem {
	item := bookingItem{
		ID:            b.ID,
		BranchID:      b.BranchID,
		ServiceID:     b.ServiceID,
		EmployeeID:    b.EmployeeID,
		ResourceID:    b.ResourceID,
		CustomerID:    b.CustomerID,
		Mode:          string(b.Mode),
		Date:          b.Date,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		CheckOutDate:  b.CheckOutDate,
		StartAt:       b.StartAt.UTC().Format(time.RFC3339),
		EndAt:         b.EndAt.UTC().Format(time.RFC3339),
		TotalNights:   b.TotalNights,
		TotalPrice:    b.TotalPrice.StringFixed(2),
		DepositAmount: b.DepositAmount.StringFixed(2),
		OptionIDs:     b.OptionIDs,
		Status:        string(b.Status),
		Notes:         b.Notes,
		CancelReason:  b.CancelReason,
		CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

// Availability serves GET /api/v1/availability.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	tenant, err := tenantID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	req := availabilityRequest{
		BranchID:   strings.TrimSpace(q.Get("branch_id")),
		ServiceID:  strings.TrimSpace(q.Get("service_id")),
		EmployeeID: strings.TrimSpace(q.Get("employee_id")),
		Date:       strings.TrimSpace(q.Get("date")),
		From:       strings.TrimSpace(q.Get("from")),
		To:         strings.TrimSpace(q.Get("to")),
		OptionIDs:  splitList(q.Get("option_ids")),
	}
	if err := check(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	av, err := h.engine.ListAvailability(r.Context(), engine.AvailabilityQuery{
		TenantID:   tenant,
		BranchID:   req.BranchID,
		ServiceID:  req.ServiceID,
		EmployeeID: req.EmployeeID,
		Date:       req.Date,
		From:       req.From,
		To:         req.To,
		OptionIDs:  req.OptionIDs,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := availabilityResponse{
		Mode:            string(av.Mode),
		Date:            av.Date,
		DurationMinutes: av.DurationMinutes,
		Slots:           make([]slotItem, 0, len(av.Slots)),
		Dates:           make([]dateItem, 0, len(av.Dates)),
	}
	for _, s := range av.Slots {
		resp.Slots = append(resp.Slots, slotItem{Time: s.Time, StartAt: s.Start.UTC().Format(time.RFC3339), Available: s.Available})
	}
	for _, d := range av.Dates {
		resp.Dates = append(resp.Dates, dateItem{Date: d.Date, Available: d.Available})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Bookings serves GET (list or single by id) and POST (commit) on /api/v1/bookings.
func (h *BookingHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, model.Validationf("invalid json body"))
		return
	}
	if err := check(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.engine.Commit(r.Context(), engine.CommitRequest{
		TenantID:     tenant,
		BranchID:     strings.TrimSpace(req.BranchID),
		ServiceID:    strings.TrimSpace(req.ServiceID),
		EmployeeID:   strings.TrimSpace(req.EmployeeID),
		Date:         req.Date,
		StartTime:    req.StartTime,
		CheckOutDate: req.CheckOutDate,
		Customer: model.CustomerIdentity{
			CustomerID: req.Customer.ID,
			Name:       req.Customer.Name,
			Phone:      req.Customer.Phone,
			Email:      req.Customer.Email,
		},
		Notes:          strings.TrimSpace(req.Notes),
		OptionIDs:      req.OptionIDs,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyHeader)),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
		w.Header().Set("Idempotent-Replayed", "true")
	}
	httpx.WriteJSON(w, status, toItem(res.Booking))
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		b, err := h.engine.GetBooking(r.Context(), tenant, id)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toItem(b))
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	bookings, err := h.engine.ListBookings(r.Context(), tenant, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toItem(b))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Transition serves POST /api/v1/bookings/transition.
func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	tenant, err := tenantID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, model.Validationf("invalid json body"))
		return
	}
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	if err := check(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	b, err := h.engine.Transition(r.Context(), engine.TransitionRequest{
		TenantID:  tenant,
		BookingID: strings.TrimSpace(req.BookingID),
		To:        model.Status(req.Status),
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toItem(b))
}

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/bookwell/libs/httpx"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/admin"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

type Admin interface {
	SetMainBranch(ctx context.Context, tenantID, branchID string) error
	AssignEmployeesToBranch(ctx context.Context, tenantID, branchID string, employeeIDs []string, active bool) error
	AssignServicesToEmployee(ctx context.Context, tenantID, employeeID string, serviceIDs []string) error
	CleanupBranch(ctx context.Context, tenantID, branchID string) (admin.CleanupResult, error)
}

type AdminHandler struct {
	admin  Admin
	logger *slog.Logger
}

func NewAdminHandler(a Admin, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{admin: a, logger: logger}
}

type branchRequest struct {
	BranchID string `json:"branch_id" validate:"required"`
}

type branchEmployeesRequest struct {
	BranchID    string   `json:"branch_id" validate:"required"`
	EmployeeIDs []string `json:"employee_ids" validate:"required,min=1,dive,required"`
	Active      *bool    `json:"active"`
}

type employeeServicesRequest struct {
	EmployeeID string   `json:"employee_id" validate:"required"`
	ServiceIDs []string `json:"service_ids" validate:"dive,required"`
}

// decode reads a JSON body for a POST admin call. It writes the error response itself.
func (h *AdminHandler) decode(w http.ResponseWriter, r *http.Request, dst any) (string, bool) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return "", false
	}
	tenant, err := tenantID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return "", false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, h.logger, model.Validationf("invalid json body"))
		return "", false
	}
	if err := check(dst); err != nil {
		writeError(w, r, h.logger, err)
		return "", false
	}
	return tenant, true
}

func (h *AdminHandler) MainBranch(w http.ResponseWriter, r *http.Request) {
	var req branchRequest
	tenant, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	if err := h.admin.SetMainBranch(r.Context(), tenant, req.BranchID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"main_branch_id": req.BranchID})
}

func (h *AdminHandler) BranchEmployees(w http.ResponseWriter, r *http.Request) {
	var req branchEmployeesRequest
	tenant, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	if err := h.admin.AssignEmployeesToBranch(r.Context(), tenant, req.BranchID, req.EmployeeIDs, active); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"branch_id": req.BranchID, "assigned": len(req.EmployeeIDs)})
}

func (h *AdminHandler) EmployeeServices(w http.ResponseWriter, r *http.Request) {
	var req employeeServicesRequest
	tenant, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	if err := h.admin.AssignServicesToEmployee(r.Context(), tenant, req.EmployeeID, req.ServiceIDs); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"employee_id": req.EmployeeID, "services": len(req.ServiceIDs)})
}

func (h *AdminHandler) BranchCleanup(w http.ResponseWriter, r *http.Request) {
	var req branchRequest
	tenant, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	res, err := h.admin.CleanupBranch(r.Context(), tenant, req.BranchID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"branch_id":     req.BranchID,
		"schedules":     res.Schedules,
		"blocked_dates": res.BlockedDates,
		"assignments":   res.Assignments,
	})
}

package handlers

import "net/http"

// Register mounts the API on mux. webhook may be nil when deposits are disabled.
func Register(mux *http.ServeMux, bookings *BookingHandler, admin *AdminHandler, webhook http.HandlerFunc) {
	mux.HandleFunc("/api/v1/availability", bookings.Availability)
	mux.HandleFunc("/api/v1/bookings", bookings.Bookings)
	mux.HandleFunc("/api/v1/bookings/transition", bookings.Transition)

	mux.HandleFunc("/api/v1/admin/main-branch", admin.MainBranch)
	mux.HandleFunc("/api/v1/admin/branch-employees", admin.BranchEmployees)
	mux.HandleFunc("/api/v1/admin/employee-services", admin.EmployeeServices)
	mux.HandleFunc("/api/v1/admin/branch-cleanup", admin.BranchCleanup)

	if webhook != nil {
		mux.HandleFunc("/api/v1/deposits/webhooks/stripe", webhook)
	}
}

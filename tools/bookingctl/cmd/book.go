package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func bookCmd() *cobra.Command {
	var req BookRequest
	var options string
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Commit a booking",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.BranchID == "" || req.ServiceID == "" || req.Date == "" {
				return fmt.Errorf("--branch, --service and --date are required")
			}
			if req.StartTime == "" && req.CheckOutDate == "" {
				return fmt.Errorf("--time (hourly) or --check-out (daily) is required")
			}
			req.OptionIDs = splitCSV(options)
			if idempotencyKey == "" {
				idempotencyKey = uuid.NewString()
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			b, err := newClient().Book(ctx, req, idempotencyKey)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(b)
			}
			printBooking(b)
			fmt.Printf("idempotency key: %s\n", idempotencyKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.BranchID, "branch", "", "Branch id")
	cmd.Flags().StringVar(&req.ServiceID, "service", "", "Service id")
	cmd.Flags().StringVar(&req.EmployeeID, "employee", "", "Employee id (default: first free eligible employee)")
	cmd.Flags().StringVar(&req.Date, "date", "", "Date or check-in date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.StartTime, "time", "", "Start time (HH:MM)")
	cmd.Flags().StringVar(&req.CheckOutDate, "check-out", "", "Check-out date for daily services (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.Customer.ID, "customer-id", "", "Existing customer id")
	cmd.Flags().StringVar(&req.Customer.Name, "name", "", "Customer name")
	cmd.Flags().StringVar(&req.Customer.Phone, "phone", "", "Customer phone")
	cmd.Flags().StringVar(&req.Customer.Email, "email", "", "Customer email")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Notes")
	cmd.Flags().StringVar(&options, "options", "", "Comma-separated variation option ids")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Replay-safe key (default: random)")
	return cmd
}

func printBooking(b Booking) {
	when := b.Date + " " + b.StartTime + "-" + b.EndTime
	if b.Mode == "DAILY" {
		when = fmt.Sprintf("%s -> %s (%d nights)", b.Date, b.CheckOutDate, b.TotalNights)
	}
	fmt.Printf("%s  %s  %s  %s  total=%s deposit=%s\n", b.ID, b.Status, b.ResourceID, when, b.TotalPrice, b.DepositAmount)
}

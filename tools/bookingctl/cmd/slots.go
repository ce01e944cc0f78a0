package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func slotsCmd() *cobra.Command {
	var p AvailabilityParams
	var options string
	var onlyFree bool

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List bookable slots (hourly) or dates (daily)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.BranchID == "" || p.ServiceID == "" {
				return fmt.Errorf("--branch and --service are required")
			}
			if p.Date == "" && p.From == "" {
				return fmt.Errorf("--date or --from is required")
			}
			p.OptionIDs = splitCSV(options)

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			av, err := newClient().Availability(ctx, p)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(av)
			}

			if av.Mode == "DAILY" {
				for _, d := range av.Dates {
					if onlyFree && !d.Available {
						continue
					}
					fmt.Printf("%s  %s\n", d.Date, mark(d.Available))
				}
				return nil
			}
			fmt.Printf("%s (%d min)\n", av.Date, av.DurationMinutes)
			for _, s := range av.Slots {
				if onlyFree && !s.Available {
					continue
				}
				fmt.Printf("  %s  %s\n", s.Time, mark(s.Available))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&p.BranchID, "branch", "", "Branch id")
	cmd.Flags().StringVar(&p.ServiceID, "service", "", "Service id")
	cmd.Flags().StringVar(&p.EmployeeID, "employee", "", "Employee id (default: any eligible)")
	cmd.Flags().StringVar(&p.Date, "date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.From, "from", "", "Range start for daily services (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.To, "to", "", "Range end for daily services (YYYY-MM-DD)")
	cmd.Flags().StringVar(&options, "options", "", "Comma-separated variation option ids")
	cmd.Flags().BoolVar(&onlyFree, "free", false, "Only show available entries")
	return cmd
}

func mark(available bool) string {
	if available {
		return "free"
	}
	return "taken"
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

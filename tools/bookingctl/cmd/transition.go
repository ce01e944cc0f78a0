package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

func transitionCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "transition <booking-id> <status>",
		Short: "Move a booking to CONFIRMED, CANCELLED, COMPLETED or NO_SHOW",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			b, err := newClient().Transition(ctx, args[0], strings.ToUpper(args[1]), reason)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(b)
			}
			printBooking(b)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Cancellation reason")
	return cmd
}

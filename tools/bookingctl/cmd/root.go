// Package cmd implements bookingctl, an operator CLI for the booking service HTTP API.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL    string
	tenant     string
	outputJSON bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "bookingctl",
	Short: "Operate the booking service: query slots, book, move bookings through their lifecycle",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(tenant) == "" {
			return fmt.Errorf("--tenant (or BOOKWELL_TENANT) is required")
		}
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(bookCmd())
	rootCmd.AddCommand(transitionCmd())
	rootCmd.AddCommand(depositSimCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", getenv("BOOKWELL_URL", "http://localhost:8083"), "booking service base URL")
	rootCmd.PersistentFlags().StringVar(&tenant, "tenant", getenv("BOOKWELL_TENANT", ""), "tenant id")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output raw JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
}

func newClient() *Client {
	return NewClient(baseURL, tenant, timeout)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

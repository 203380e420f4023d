package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/udec-estadio/humidityboard/pkg/dashboard"
)

var errNoReadings = errors.New("no readings available for the tracked locations")

var recommendCmd = &cobra.Command{
	Use:   "recommend [humidity]",
	Short: "Print the cleat recommendation",
	Long: `Print the cleat recommendation for a humidity percentage. Without an
argument the current average is fetched from the server.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		value, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(args[0]), "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid humidity %q: %w", args[0], err)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("invalid humidity %q: must be a finite number", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), dashboard.Recommend(&value))
		return nil
	}

	a := appFrom(cmd)
	poller := dashboard.NewPoller(a.apiClient(), dashboard.Options{
		Locations:  a.cfg.Dashboard.Locations,
		RequireAll: a.cfg.Dashboard.RequireAll,
		Logger:     a.logger,
	})

	snap, err := poller.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch readings: %w", err)
	}
	if snap.Average == nil {
		return errNoReadings
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%.1f%%: %s\n", *snap.Average, snap.Recommendation)
	return nil
}

package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/udec-estadio/humidityboard/pkg/dashboard"
	"golang.org/x/term"
)

const clearScreen = "\033[H\033[2J"

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the dashboard in the terminal",
	Long: `Poll the server's reading list and show the latest humidity per location,
the recent history, the average and the cleat recommendation. The screen is
redrawn in place when stdout is a terminal.`,
	RunE: runWatch,
}

var (
	watchInterval time.Duration
	watchOnce     bool
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "poll interval (defaults to POLL_INTERVAL)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "fetch once, print and exit")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)

	interval := a.cfg.Dashboard.PollInterval
	if watchInterval > 0 {
		interval = watchInterval
	}

	client := a.apiClient()
	poller := dashboard.NewPoller(client, dashboard.Options{
		Interval:    interval,
		Locations:   a.cfg.Dashboard.Locations,
		HistorySize: a.cfg.Dashboard.HistorySize,
		RequireAll:  a.cfg.Dashboard.RequireAll,
		Logger:      a.logger,
	})

	out := cmd.OutOrStdout()
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	if watchOnce {
		snap, err := poller.Refresh(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch readings from %s: %w", client.BaseURL(), err)
		}
		writeSnapshot(out, snap, client.BaseURL())
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := poller.Refresh(ctx)
		if err != nil && ctx.Err() != nil {
			return nil
		}

		if interactive {
			fmt.Fprint(out, clearScreen)
		} else {
			fmt.Fprintln(out, strings.Repeat("-", 60))
		}
		writeSnapshot(out, snap, client.BaseURL())

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// writeSnapshot prints one dashboard frame
func writeSnapshot(w io.Writer, snap dashboard.Snapshot, source string) {
	fmt.Fprintf(w, "Humidityboard  %s\n\n", source)

	width := 0
	for _, loc := range snap.Locations {
		width = max(width, len(loc.Name))
	}

	for _, loc := range snap.Locations {
		value := "--"
		if loc.Latest != nil {
			value = fmt.Sprintf("%.1f%%", loc.Latest.Value)
		}
		fmt.Fprintf(w, "  %-*s  %7s  %s\n", width, loc.Name, value, sparkBar(loc.Values()))
	}

	average := "--"
	if snap.Average != nil {
		average = fmt.Sprintf("%.1f%%", *snap.Average)
	}
	fmt.Fprintf(w, "\n  Average:        %s\n", average)
	fmt.Fprintf(w, "  Recommendation: %s\n", snap.Recommendation)

	if snap.Loaded() {
		fmt.Fprintf(w, "  Updated:        %s\n", snap.UpdatedAt.Local().Format(time.TimeOnly))
	}
	if snap.Stale() {
		fmt.Fprintf(w, "  Warning:        data may be stale since %s\n", snap.LastErrorAt.Local().Format(time.TimeOnly))
	}
}

// sparkBar renders values on a fixed 0-100 scale with block characters
func sparkBar(values []float64) string {
	var b strings.Builder
	top := float64(len(sparkBlocks) - 1)
	for _, v := range values {
		v = math.Max(0, math.Min(100, v))
		b.WriteRune(sparkBlocks[int(math.Round(v/100*top))])
	}
	return b.String()
}

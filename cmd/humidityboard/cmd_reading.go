package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/udec-estadio/humidityboard/pkg/models"
)

var readingCmd = &cobra.Command{
	Use:   "reading",
	Short: "Record and inspect humidity readings",
	Long:  `Send readings to a running server, list the latest ones or count what is stored.`,
}

var readingAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a humidity reading through the API",
	RunE:  runReadingAdd,
}

var readingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the latest readings",
	RunE:  runReadingList,
}

var readingCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored readings (reads the database directly)",
	RunE:  runReadingCount,
}

var (
	readingValue    float64
	readingLocation string
)

func init() {
	rootCmd.AddCommand(readingCmd)
	readingCmd.AddCommand(readingAddCmd)
	readingCmd.AddCommand(readingListCmd)
	readingCmd.AddCommand(readingCountCmd)

	readingAddCmd.Flags().Float64Var(&readingValue, "value", 0, "humidity in percent")
	readingAddCmd.Flags().StringVar(&readingLocation, "location", "", "sensor location (e.g. centro)")
	_ = readingAddCmd.MarkFlagRequired("value")
	_ = readingAddCmd.MarkFlagRequired("location")
}

func runReadingAdd(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)

	req := models.RecordRequest{Value: readingValue, Location: strings.TrimSpace(readingLocation)}
	if err := req.Validate(); err != nil {
		return err
	}

	reading, err := a.apiClient().RecordReading(cmd.Context(), req.Value, req.Location)
	if err != nil {
		return fmt.Errorf("failed to record reading: %w", err)
	}

	fmt.Printf("Recorded reading #%d: %.1f%% at %s (%s)\n",
		reading.ID, reading.Value, reading.Location, reading.Timestamp.Local().Format(time.DateTime))
	return nil
}

func runReadingList(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)

	readings, err := a.apiClient().ListReadings(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list readings: %w", err)
	}

	if len(readings) == 0 {
		fmt.Println("No readings recorded yet.")
		return nil
	}

	return printReadings(readings)
}

func runReadingCount(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)

	dbManager, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer dbManager.Close()

	count, err := dbManager.CountReadings(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count readings: %w", err)
	}

	fmt.Println(count)
	return nil
}

func printReadings(readings []models.Reading) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLOCATION\tVALUE\tTIMESTAMP")
	for _, r := range readings {
		fmt.Fprintf(tw, "%d\t%s\t%.1f%%\t%s\n", r.ID, r.Location, r.Value, r.Timestamp.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

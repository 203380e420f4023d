package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/udec-estadio/humidityboard/pkg/api"
	"github.com/udec-estadio/humidityboard/pkg/config"
	"github.com/udec-estadio/humidityboard/pkg/database"
	"github.com/udec-estadio/humidityboard/pkg/logging"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "humidityboard",
	Short: "Humidityboard - stadium humidity monitoring",
	Long: `Humidityboard records humidity readings from the stadium sensors and
shows them on a dashboard together with a cleat recommendation.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadApp,
}

// app carries what every command needs; stored in the command context
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

type appKey struct{}

var apiURLFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "server address for client commands (overrides API_URL)")
}

func loadApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if apiURLFlag != "" {
		cfg.APIURL = apiURLFlag
	}

	logger := logging.New(cfg, version)
	slog.SetDefault(logger)

	cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{cfg: cfg, logger: logger}))
	return nil
}

func appFrom(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey{}).(*app)
}

// openDatabase connects to PostgreSQL; the caller must Close the manager
func (a *app) openDatabase() (*database.DatabaseManager, error) {
	dbManager, err := database.NewDatabaseManager(a.cfg.Database, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbManager, nil
}

func (a *app) apiClient() *api.Client {
	return api.NewClient(a.cfg.APIURL)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

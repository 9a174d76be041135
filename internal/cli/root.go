package cli

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/seuros/amiri/internal/config"
	"github.com/seuros/amiri/internal/dashboard"
	"github.com/seuros/amiri/internal/database"
	"github.com/seuros/amiri/internal/logging"
	"github.com/seuros/amiri/internal/observability"
	"github.com/seuros/amiri/internal/provider"
)

var Version = "dev"

// Flags shared by every command.
var (
	databaseURLFlag string
	dataSourceFlag  string
	portFlag        string
)

// newClock is the clock handed to providers and the service. Tests pin it.
var newClock = func() clockwork.Clock { return clockwork.NewRealClock() }

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:   "amiri",
	Short: "Sales forecast dashboard",
	Long: `Amiri - sales history and model forecasts side by side.

Amiri serves an interactive dashboard comparing actual sales with a model
forecast per product and region, and exposes the same data on the command
line. Data comes from PostgreSQL, a pair of Excel workbooks or a built-in
demo dataset.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadDotEnv(".env")
	},
	// Default to serve command if no subcommand provided
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runServe(cmd, args)
		}
		return cmd.Help()
	},
}

// Execute is called by main
func Execute(version string) error {
	Version = version
	RootCmd.Version = version
	return RootCmd.Execute()
}

// loadDotEnv fills unset environment variables from path. A missing file is fine.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.L().Warn("failed to load env file", "path", path, "error", err)
	}
}

func loadConfig(horizon int) (*config.Config, error) {
	return config.LoadWithOverrides(config.Overrides{
		DatabaseURL: databaseURLFlag,
		Port:        portFlag,
		DataSource:  dataSourceFlag,
		Horizon:     horizon,
	})
}

// connectDatabase opens the pool when the configured source may use it.
// Failure is not fatal: providers fall back to the demo dataset.
func connectDatabase(cfg *config.Config) bool {
	if cfg.DatabaseURL == "" {
		return false
	}
	switch cfg.DataSource {
	case config.SourceDemo, config.SourceSpreadsheet:
		return false
	}
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		logging.L().Warn("database unavailable, continuing without it", "error", err)
		return false
	}
	return true
}

// newService builds the provider chain and dashboard service for cfg.
func newService(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics) (*dashboard.Service, error) {
	p, err := provider.New(cfg, clock, metrics)
	if err != nil {
		return nil, err
	}
	return dashboard.NewService(p, dashboard.Options{
		Clock:          clock,
		Location:       cfg.Location(),
		DefaultHorizon: cfg.DefaultHorizon,
		CacheSize:      cfg.CacheSize,
		Metrics:        metrics,
	}), nil
}

// openService is the setup shared by the one-shot data commands. The
// returned func closes the database pool.
func openService(horizon int) (*config.Config, *dashboard.Service, func(), error) {
	cfg, err := loadConfig(horizon)
	if err != nil {
		return nil, nil, nil, err
	}
	connectDatabase(cfg)
	cleanup := func() {
		if err := database.Close(); err != nil {
			logging.L().Warn("failed to close database", "error", err)
		}
	}

	svc, err := newService(cfg, newClock(), nil)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return cfg, svc, cleanup, nil
}

func init() {
	RootCmd.PersistentFlags().StringVar(&databaseURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	RootCmd.PersistentFlags().StringVar(&dataSourceFlag, "data-source", "", "Data source: auto, postgres, spreadsheet or demo")
	RootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "HTTP port (overrides PORT)")

	RootCmd.AddCommand(serveCmd)
}

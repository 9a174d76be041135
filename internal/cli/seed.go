package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seuros/amiri/internal/config"
	"github.com/seuros/amiri/internal/database"
	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/logging"
	"github.com/seuros/amiri/internal/provider"
	"github.com/seuros/amiri/internal/realtime"
)

var (
	seedFromWorkbook bool
	seedNotify       bool
)

var seedCmd = &cobra.Command{
	Use:   "seed [--from-workbook]",
	Short: "Load observations and model metrics into PostgreSQL",
	Long: `Load observations and model metrics into PostgreSQL.

By default the demo dataset is generated for today and stored. With
--from-workbook the forecast and metrics workbooks from configuration are
imported instead. Rows are upserted, so seeding twice is safe.

Example:
  amiri seed
  amiri seed --from-workbook`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

// seedData returns the rows to store and the date they were validated against.
func seedData(ctx context.Context, cfg *config.Config, fromWorkbook bool) ([]forecast.Observation, []forecast.ModelMetrics, error) {
	clock := newClock()
	today := forecast.Today(clock.Now(), cfg.Location())

	if fromWorkbook {
		obs, err := provider.ReadObservations(cfg.ForecastFile, today)
		if err != nil {
			return nil, nil, err
		}
		metrics, err := provider.ReadMetrics(cfg.MetricsFile)
		if err != nil {
			return nil, nil, err
		}
		return obs, metrics, nil
	}

	demo := provider.NewSynthetic(clock, cfg.Location(), provider.DemoSeed)
	obs, err := demo.Observations(ctx, provider.Query{})
	if err != nil {
		return nil, nil, err
	}
	return obs, demo.AllMetrics(), nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(0)
	if err != nil {
		return err
	}
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx := commandContext(cmd)
	obs, metrics, err := seedData(ctx, cfg, seedFromWorkbook)
	if err != nil {
		return err
	}

	today := forecast.Today(newClock().Now(), cfg.Location())
	nObs, err := database.SeedObservations(ctx, obs, today)
	if err != nil {
		return err
	}
	nMetrics, err := database.SeedMetrics(ctx, metrics)
	if err != nil {
		return err
	}

	if seedNotify {
		if err := realtime.NotifyChange(ctx, "forecast_observation", "SEED"); err != nil {
			logging.L().Warn("failed to notify dashboards", "error", err)
		}
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Seeded %d observations and %d metrics rows\n", nObs, nMetrics)
	return nil
}

func init() {
	seedCmd.Flags().BoolVar(&seedFromWorkbook, "from-workbook", false, "Import the configured forecast and metrics workbooks")
	seedCmd.Flags().BoolVar(&seedNotify, "notify", true, "Tell running dashboards to reload")
	RootCmd.AddCommand(seedCmd)
}

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/amiri/internal/config"
	"github.com/seuros/amiri/internal/database"
	"github.com/seuros/amiri/internal/export"
	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/provider"
)

func TestSeedDataDemo(t *testing.T) {
	setupCLI(t)
	cfg := &config.Config{Timezone: "UTC"}

	obs, metrics, err := seedData(context.Background(), cfg, false)
	require.NoError(t, err)

	perPair := provider.DemoHistoryDays + provider.DemoForecastDays
	assert.Len(t, obs, len(provider.DemoProducts)*len(provider.DemoRegions)*perPair)
	assert.Len(t, metrics, len(provider.DemoProducts)*len(provider.DemoMetricsRegions))

	today := forecast.Day(fixedNow)
	for _, o := range obs {
		require.NoError(t, o.Validate(today))
	}
}

func TestSeedDataFromWorkbook(t *testing.T) {
	setupCLI(t)
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, export.XLSX(&buf, []forecast.Observation{
		{Date: fixedNow.AddDate(0, 0, -1), Product: "Candy A", Region: "North", Actual: forecast.Float(10), Predicted: 11},
	}))
	forecastFile := filepath.Join(dir, "forecast.xlsx")
	require.NoError(t, os.WriteFile(forecastFile, buf.Bytes(), 0o600))

	buf.Reset()
	require.NoError(t, export.MetricsXLSX(&buf, []forecast.ModelMetrics{
		{ModelName: "prophet", Product: "Candy A", Region: "North", MAE: 1, RMSE: 2, WAPE: 3, Bias: 4},
	}))
	metricsFile := filepath.Join(dir, "metrics.xlsx")
	require.NoError(t, os.WriteFile(metricsFile, buf.Bytes(), 0o600))

	cfg := &config.Config{Timezone: "UTC", ForecastFile: forecastFile, MetricsFile: metricsFile}
	obs, metrics, err := seedData(context.Background(), cfg, true)
	require.NoError(t, err)
	assert.Len(t, obs, 1)
	require.Len(t, metrics, 1)
	assert.Equal(t, "prophet", metrics[0].ModelName)

	cfg.MetricsFile = filepath.Join(dir, "missing.xlsx")
	_, _, err = seedData(context.Background(), cfg, true)
	assert.Error(t, err)
}

func TestSeedRequiresDatabase(t *testing.T) {
	setupCLI(t)
	_, _, err := execute(t, "seed")
	assert.ErrorIs(t, err, database.ErrNoDatabaseURL)
}

func TestMigrateRequiresDatabase(t *testing.T) {
	setupCLI(t)
	for _, sub := range []string{"up", "down", "version"} {
		_, _, err := execute(t, "migrate", sub)
		assert.ErrorIs(t, err, database.ErrNoDatabaseURL, sub)
	}
}

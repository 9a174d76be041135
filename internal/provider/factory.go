package provider

import (
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/seuros/amiri/internal/config"
	"github.com/seuros/amiri/internal/database"
	"github.com/seuros/amiri/internal/logging"
	"github.com/seuros/amiri/internal/observability"
)

// DemoSeed fixes the demo dataset so every process renders the same numbers.
const DemoSeed uint64 = 20240110

// New builds the provider selected by cfg.DataSource:
//
//	demo         synthetic data only
//	postgres     database tables, demo data when a query fails
//	spreadsheet  forecast/metrics workbooks, demo data when reading fails
//	auto         postgres when connected, else the workbook when present, else demo
//
// Postgres requires database.Connect to have been called.
func New(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics) (Provider, error) {
	demo := NewSynthetic(clock, cfg.Location(), DemoSeed)

	switch cfg.DataSource {
	case config.SourceDemo:
		return demo, nil
	case config.SourcePostgres:
		return NewFallback(NewPostgres(), demo, metrics), nil
	case config.SourceSpreadsheet:
		return NewFallback(NewSpreadsheet(cfg.ForecastFile, cfg.MetricsFile, clock, cfg.Location()), demo, metrics), nil
	case config.SourceAuto, "":
		if database.Available() {
			return NewFallback(NewPostgres(), demo, metrics), nil
		}
		if _, err := os.Stat(cfg.ForecastFile); err == nil {
			return NewFallback(NewSpreadsheet(cfg.ForecastFile, cfg.MetricsFile, clock, cfg.Location()), demo, metrics), nil
		}
		logging.L().Info("no database or forecast workbook found, using demo data")
		return demo, nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
	}
}

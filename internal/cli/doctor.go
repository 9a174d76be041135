package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/seuros/amiri/internal/config"
	"github.com/seuros/amiri/internal/database"
	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/provider"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on the Amiri installation",
	Long: `Run health checks on the Amiri installation.

Checks performed:
  - Configuration valid
  - Forecast and metrics workbooks readable
  - Database connection
  - PostgreSQL version ≥13
  - Database migrations completed
  - Change notification function and triggers exist
  - Stored dataset is not empty

Database checks are skipped when no database is configured.

Example:
  amiri doctor
  amiri doctor --json`,
	RunE: runDoctor,
}

// osExit is replaced in tests.
var osExit = os.Exit

const minPostgresMajor = 13

type CheckResult struct {
	Name       string `json:"name"`
	Pass       bool   `json:"pass"`
	Error      string `json:"error,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Details    string `json:"details,omitempty"`
}

const notifyFunction = "notify_forecast_change"

var requiredTriggers = []struct {
	name  string
	table string
}{
	{"trg_forecast_observation_notify", "forecast_observation"},
	{"trg_model_metrics_notify", "model_metrics"},
}

// checkWorkbook reads a workbook the way the spreadsheet provider does. A
// missing file only fails when the spreadsheet source is selected.
func checkWorkbook(name, path string, required bool, read func(string) (int, error)) CheckResult {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return CheckResult{Name: name, Pass: true, Details: path + " not present"}
		}
		return CheckResult{
			Name:       name,
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Set forecast_file/metrics_file or place the workbook in the working directory",
		}
	}

	n, err := read(path)
	if err != nil {
		return CheckResult{
			Name:       name,
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Check the sheet has the expected header row",
		}
	}
	return CheckResult{Name: name, Pass: true, Details: fmt.Sprintf("%s, %d rows", path, n)}
}

func workbookChecks(cfg *config.Config) []CheckResult {
	required := cfg.DataSource == config.SourceSpreadsheet
	today := forecast.Today(newClock().Now(), cfg.Location())

	return []CheckResult{
		checkWorkbook("Forecast Workbook", cfg.ForecastFile, required, func(path string) (int, error) {
			obs, err := provider.ReadObservations(path, today)
			return len(obs), err
		}),
		checkWorkbook("Metrics Workbook", cfg.MetricsFile, required, func(path string) (int, error) {
			m, err := provider.ReadMetrics(path)
			return len(m), err
		}),
	}
}

func checkDatabaseConnection(ctx context.Context, db *sql.DB) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return CheckResult{
			Name:       "Database Connection",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Verify DATABASE_URL and ensure PostgreSQL is running",
		}
	}
	return CheckResult{Name: "Database Connection", Pass: true}
}

func checkPostgreSQLVersion(ctx context.Context, db *sql.DB) CheckResult {
	var version string
	if err := db.QueryRowContext(ctx, "SHOW server_version").Scan(&version); err != nil {
		return CheckResult{Name: "PostgreSQL Version", Pass: false, Error: err.Error()}
	}

	// e.g. "16.2 (Debian 16.2-1.pgdg120+2)"
	fields := strings.Fields(version)
	if len(fields) == 0 {
		return CheckResult{
			Name:  "PostgreSQL Version",
			Pass:  false,
			Error: "server reported an empty version",
		}
	}
	number := fields[0]
	major, _ := strconv.Atoi(strings.Split(number, ".")[0])
	if major < minPostgresMajor {
		return CheckResult{
			Name:       "PostgreSQL Version",
			Pass:       false,
			Error:      fmt.Sprintf("Version %s found, need ≥%d", number, minPostgresMajor),
			Suggestion: fmt.Sprintf("Upgrade PostgreSQL to version %d or higher", minPostgresMajor),
		}
	}
	return CheckResult{Name: "PostgreSQL Version", Pass: true, Details: number}
}

// migrationVersion is replaced in tests; golang-migrate opens its own connection.
var migrationVersion = database.GetMigrationVersion

func checkMigrations(cfg *config.Config) CheckResult {
	version, dirty, err := migrationVersion(cfg.DatabaseURL)
	if err != nil {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Run migrations with: amiri migrate up",
		}
	}

	if dirty {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      "Migration state is dirty",
			Suggestion: "Fix dirty migration state, may need manual intervention",
		}
	}

	if version != database.LatestVersion {
		return CheckResult{
			Name:       "Database Migrations",
			Pass:       false,
			Error:      fmt.Sprintf("Migration version %d, expected %d", version, database.LatestVersion),
			Suggestion: "Run migrations with: amiri migrate up",
		}
	}

	return CheckResult{Name: "Database Migrations", Pass: true, Details: fmt.Sprintf("v%d", version)}
}

func checkNotifyFunction(ctx context.Context, db *sql.DB) CheckResult {
	var found bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM pg_proc
			JOIN pg_namespace ON pg_proc.pronamespace = pg_namespace.oid
			WHERE nspname = 'public' AND proname = $1
		)
	`, notifyFunction).Scan(&found)
	if err != nil {
		return CheckResult{Name: "Notify Function", Pass: false, Error: err.Error()}
	}
	if !found {
		return CheckResult{
			Name:       "Notify Function",
			Pass:       false,
			Error:      notifyFunction + " not found",
			Suggestion: "Run migrations to create the notify function",
		}
	}
	return CheckResult{Name: "Notify Function", Pass: true, Details: notifyFunction}
}

func checkTriggers(ctx context.Context, db *sql.DB) CheckResult {
	triggerNames := make([]string, len(requiredTriggers))
	for i, t := range requiredTriggers {
		triggerNames[i] = t.name
	}

	rows, err := db.QueryContext(ctx, `
		SELECT tgname, tgrelid::regclass::text
		FROM pg_trigger
		WHERE tgname = ANY($1)
	`, pq.Array(triggerNames))
	if err != nil {
		return CheckResult{Name: "Notify Triggers", Pass: false, Error: err.Error()}
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var name, table string
		if err := rows.Scan(&name, &table); err != nil {
			return CheckResult{Name: "Notify Triggers", Pass: false, Error: err.Error()}
		}
		found[name] = table
	}

	var missing []string
	for _, trigger := range requiredTriggers {
		if table, ok := found[trigger.name]; !ok || table != trigger.table {
			missing = append(missing, trigger.name)
		}
	}

	if len(missing) > 0 {
		return CheckResult{
			Name:       "Notify Triggers",
			Pass:       false,
			Error:      fmt.Sprintf("Missing triggers: %s", strings.Join(missing, ", ")),
			Suggestion: "Run migrations to create missing triggers",
		}
	}

	return CheckResult{
		Name:    "Notify Triggers",
		Pass:    true,
		Details: fmt.Sprintf("%d/%d triggers found", len(requiredTriggers), len(requiredTriggers)),
	}
}

func checkDataset(ctx context.Context) CheckResult {
	stats, err := database.GetDatasetStats(ctx)
	if err != nil {
		return CheckResult{Name: "Stored Dataset", Pass: false, Error: err.Error()}
	}
	if stats.Observations == 0 {
		return CheckResult{
			Name:       "Stored Dataset",
			Pass:       false,
			Error:      "No observations stored",
			Suggestion: "Load data with: amiri seed",
		}
	}

	details := fmt.Sprintf("%d observations, %d metrics rows", stats.Observations, stats.Metrics)
	if stats.FirstDate != nil && stats.LastDate != nil {
		details += fmt.Sprintf(", %s to %s", stats.FirstDate.Format(time.DateOnly), stats.LastDate.Format(time.DateOnly))
	}
	return CheckResult{Name: "Stored Dataset", Pass: true, Details: details}
}

// databaseChecks runs against database.DB, which must be set.
func databaseChecks(ctx context.Context, cfg *config.Config) []CheckResult {
	db := database.DB
	conn := checkDatabaseConnection(ctx, db)
	if !conn.Pass {
		return []CheckResult{conn}
	}
	return []CheckResult{
		conn,
		checkPostgreSQLVersion(ctx, db),
		checkMigrations(cfg),
		checkNotifyFunction(ctx, db),
		checkTriggers(ctx, db),
		checkDataset(ctx),
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(0)
	if err != nil {
		_, _ = fmt.Fprintf(out, "✗ Configuration Error: %v\n", err)
		return err
	}

	results := []CheckResult{{Name: "Configuration", Pass: true, Details: "data source " + cfg.DataSource}}
	results = append(results, workbookChecks(cfg)...)

	if cfg.DatabaseURL == "" {
		results = append(results, CheckResult{Name: "Database", Pass: true, Details: "not configured, skipped"})
	} else if err := database.Connect(cfg.DatabaseURL); err != nil {
		results = append(results, CheckResult{
			Name:       "Database Connection",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Verify DATABASE_URL and ensure PostgreSQL is running",
		})
	} else {
		defer func() { _ = database.Close() }()
		results = append(results, databaseChecks(commandContext(cmd), cfg)...)
	}

	if jsonOutput {
		outputDoctorJSON(out, results)
	} else {
		outputDoctorHuman(out, results)
	}

	for _, r := range results {
		if !r.Pass {
			osExit(1)
			break
		}
	}
	return nil
}

func outputDoctorHuman(w io.Writer, results []CheckResult) {
	_, _ = fmt.Fprintln(w, "\nAmiri Health Check")

	passed := 0
	for _, r := range results {
		icon := "✓"
		if r.Pass {
			passed++
		} else {
			icon = "✗"
		}

		_, _ = fmt.Fprintf(w, "%s %s", icon, r.Name)
		if r.Details != "" {
			_, _ = fmt.Fprintf(w, " (%s)", r.Details)
		}
		_, _ = fmt.Fprintln(w)

		if !r.Pass {
			if r.Error != "" {
				_, _ = fmt.Fprintf(w, "  Error: %s\n", r.Error)
			}
			if r.Suggestion != "" {
				_, _ = fmt.Fprintf(w, "  Hint: %s\n", r.Suggestion)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\n%d/%d checks passed\n\n", passed, len(results))
}

func outputDoctorJSON(w io.Writer, results []CheckResult) {
	data, _ := json.MarshalIndent(results, "", "  ")
	_, _ = fmt.Fprintln(w, string(data))
}

func init() {
	doctorCmd.Flags().Bool("json", false, "Output results as JSON")
	RootCmd.AddCommand(doctorCmd)
}

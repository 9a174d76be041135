package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/amiri/internal/config"
	"github.com/seuros/amiri/internal/database"
	"github.com/seuros/amiri/internal/export"
	"github.com/seuros/amiri/internal/forecast"
)

func withMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	orig := database.DB
	database.DB = mockDB
	t.Cleanup(func() {
		database.DB = orig
		_ = mockDB.Close()
	})
	return mock
}

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	orig := osExit
	osExit = func(c int) { code = c }
	t.Cleanup(func() { osExit = orig })
	return &code
}

func TestCheckWorkbook(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.xlsx")
	count := func(string) (int, error) { return 3, nil }

	r := checkWorkbook("Forecast Workbook", missing, false, count)
	assert.True(t, r.Pass)
	assert.Contains(t, r.Details, "not present")

	r = checkWorkbook("Forecast Workbook", missing, true, count)
	assert.False(t, r.Pass)
	assert.NotEmpty(t, r.Suggestion)

	present := filepath.Join(dir, "present.xlsx")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o600))

	r = checkWorkbook("Forecast Workbook", present, true, count)
	assert.True(t, r.Pass)
	assert.Equal(t, present+", 3 rows", r.Details)

	r = checkWorkbook("Forecast Workbook", present, true, func(string) (int, error) { return 0, errors.New("bad header") })
	assert.False(t, r.Pass)
	assert.Equal(t, "bad header", r.Error)
}

func TestWorkbookChecksReadRealWorkbooks(t *testing.T) {
	setupCLI(t)
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, export.XLSX(&buf, []forecast.Observation{
		{Date: fixedNow.AddDate(0, 0, -1), Product: "Candy A", Region: "North", Actual: forecast.Float(10), Predicted: 11},
		{Date: fixedNow.AddDate(0, 0, 1), Product: "Candy A", Region: "North", Predicted: 12},
	}))
	forecastFile := filepath.Join(dir, "forecast.xlsx")
	require.NoError(t, os.WriteFile(forecastFile, buf.Bytes(), 0o600))

	cfg := &config.Config{
		DataSource:   config.SourceSpreadsheet,
		ForecastFile: forecastFile,
		MetricsFile:  filepath.Join(dir, "metrics.xlsx"),
	}
	results := workbookChecks(cfg)
	require.Len(t, results, 2)
	assert.True(t, results[0].Pass)
	assert.Contains(t, results[0].Details, "2 rows")
	assert.False(t, results[1].Pass, "metrics workbook is required for the spreadsheet source")
}

func TestCheckPostgreSQLVersion(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectQuery("SHOW server_version").
		WillReturnRows(sqlmock.NewRows([]string{"server_version"}).AddRow("16.2 (Debian 16.2-1.pgdg120+2)"))
	mock.ExpectQuery("SHOW server_version").
		WillReturnRows(sqlmock.NewRows([]string{"server_version"}).AddRow("12.9"))

	r := checkPostgreSQLVersion(context.Background(), database.DB)
	assert.True(t, r.Pass)
	assert.Equal(t, "16.2", r.Details)

	r = checkPostgreSQLVersion(context.Background(), database.DB)
	assert.False(t, r.Pass)
	assert.Contains(t, r.Error, "12.9")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckPostgreSQLVersionEmpty(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectQuery("SHOW server_version").
		WillReturnRows(sqlmock.NewRows([]string{"server_version"}).AddRow(""))

	r := checkPostgreSQLVersion(context.Background(), database.DB)
	assert.False(t, r.Pass)
	assert.Contains(t, r.Error, "empty version")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckMigrations(t *testing.T) {
	orig := migrationVersion
	t.Cleanup(func() { migrationVersion = orig })
	cfg := &config.Config{DatabaseURL: "postgres://test"}

	tests := []struct {
		name    string
		version uint
		dirty   bool
		err     error
		pass    bool
	}{
		{"current", database.LatestVersion, false, nil, true},
		{"behind", database.LatestVersion - 1, false, nil, false},
		{"dirty", database.LatestVersion, true, nil, false},
		{"error", 0, false, errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			migrationVersion = func(url string) (uint, bool, error) {
				assert.Equal(t, "postgres://test", url)
				return tt.version, tt.dirty, tt.err
			}
			r := checkMigrations(cfg)
			assert.Equal(t, tt.pass, r.Pass)
			if !tt.pass {
				assert.NotEmpty(t, r.Suggestion)
			}
		})
	}
}

func TestCheckNotifyFunction(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(notifyFunction).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(notifyFunction).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	assert.True(t, checkNotifyFunction(context.Background(), database.DB).Pass)
	assert.False(t, checkNotifyFunction(context.Background(), database.DB).Pass)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckTriggers(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectQuery("SELECT tgname").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"tgname", "tgrelid"}).
			AddRow("trg_forecast_observation_notify", "forecast_observation").
			AddRow("trg_model_metrics_notify", "model_metrics"))
	mock.ExpectQuery("SELECT tgname").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"tgname", "tgrelid"}).
			AddRow("trg_forecast_observation_notify", "forecast_observation"))

	r := checkTriggers(context.Background(), database.DB)
	assert.True(t, r.Pass)
	assert.Equal(t, "2/2 triggers found", r.Details)

	r = checkTriggers(context.Background(), database.DB)
	assert.False(t, r.Pass)
	assert.Contains(t, r.Error, "trg_model_metrics_notify")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckDataset(t *testing.T) {
	mock := withMockDB(t)
	first := time.Date(2023, time.November, 11, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, time.April, 9, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"observations", "metrics", "first", "last"}).
			AddRow(int64(900), int64(12), first, last))
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"observations", "metrics", "first", "last"}).
			AddRow(int64(0), int64(0), nil, nil))

	r := checkDataset(context.Background())
	assert.True(t, r.Pass)
	assert.Equal(t, "900 observations, 12 metrics rows, 2023-11-11 to 2024-04-09", r.Details)

	r = checkDataset(context.Background())
	assert.False(t, r.Pass)
	assert.Contains(t, r.Suggestion, "amiri seed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseChecksStopWhenUnreachable(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	orig := database.DB
	database.DB = mockDB
	t.Cleanup(func() {
		database.DB = orig
		_ = mockDB.Close()
	})

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	results := databaseChecks(context.Background(), &config.Config{})
	require.Len(t, results, 1)
	assert.False(t, results[0].Pass)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutputDoctorHuman(t *testing.T) {
	var buf bytes.Buffer
	outputDoctorHuman(&buf, []CheckResult{
		{Name: "Configuration", Pass: true, Details: "data source demo"},
		{Name: "Database Connection", Pass: false, Error: "refused", Suggestion: "Start PostgreSQL"},
	})

	out := buf.String()
	assert.Contains(t, out, "✓ Configuration (data source demo)")
	assert.Contains(t, out, "✗ Database Connection")
	assert.Contains(t, out, "Error: refused")
	assert.Contains(t, out, "Hint: Start PostgreSQL")
	assert.Contains(t, out, "1/2 checks passed")
}

func TestDoctorWithoutDatabasePasses(t *testing.T) {
	setupCLI(t)
	code := stubExit(t)

	out, _, err := execute(t, "doctor", "--data-source", "demo", "--json")
	require.NoError(t, err)

	var results []CheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 4)
	assert.Equal(t, "Configuration", results[0].Name)
	assert.Equal(t, "Database", results[3].Name)
	for _, r := range results {
		assert.True(t, r.Pass, r.Name)
	}
	assert.Equal(t, -1, *code)
}

func TestDoctorFailsWithoutRequiredWorkbook(t *testing.T) {
	setupCLI(t)
	code := stubExit(t)

	out, _, err := execute(t, "doctor", "--data-source", "spreadsheet")
	require.NoError(t, err)
	assert.Contains(t, out, "✗ Forecast Workbook")
	assert.Equal(t, 1, *code)
}

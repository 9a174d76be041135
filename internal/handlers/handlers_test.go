package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v3"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/seuros/amiri/internal/dashboard"
	"github.com/seuros/amiri/internal/database"
	"github.com/seuros/amiri/internal/observability"
	"github.com/seuros/amiri/internal/provider"
	"github.com/seuros/amiri/internal/realtime"
)

var now = time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)

func setupApp(t *testing.T) (*fiber.App, *observability.Metrics) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(now)
	m := observability.NewMetricsForTesting()
	svc := dashboard.NewService(provider.NewSynthetic(clock, nil, 1), dashboard.Options{
		Clock:          clock,
		DefaultHorizon: 30,
		Metrics:        m,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(m.Exports)

	hub := realtime.NewHub(clock, m)
	t.Cleanup(hub.Close)

	h := New(svc, Options{Version: "1.2.3", Metrics: m, Hub: hub, Gatherer: registry})
	app := fiber.New(fiber.Config{Views: Views()})
	h.Register(app)
	return app, m
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestFilters(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/filters")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var f dashboard.Filters
	require.NoError(t, json.Unmarshal(body, &f))
	assert.Equal(t, []string{"Candy A", "Candy B", "Candy C"}, f.Products)
	assert.Equal(t, []string{"North", "West"}, f.Regions)
	assert.Equal(t, 30, f.DefaultHorizon)
	assert.Equal(t, "2024-01-10", f.Today)
	assert.Equal(t, "demo", f.Source)
}

func TestSeriesWide(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/series?product=Candy+A&region=North&horizon=14")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got SeriesResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.False(t, got.Empty)
	assert.Equal(t, "Candy A", got.Product)
	assert.Equal(t, 14, got.HorizonDays)
	assert.Equal(t, "2024-01-10", got.Today)
	require.Len(t, got.Points, provider.DemoHistoryDays+14)
	assert.Empty(t, got.Long)
	require.NotNil(t, got.Accuracy)

	last := got.Points[len(got.Points)-1]
	assert.Equal(t, "2024-01-24", last.Date.Format("2006-01-02"))
	assert.Nil(t, last.Actual)
}

func TestSeriesLong(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/series?product=Candy+B&region=West&horizon=5&shape=long")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got SeriesResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Len(t, got.Long, 2*(provider.DemoHistoryDays+5))
	assert.Empty(t, got.Points)
	assert.Equal(t, "Actual sales", got.Long[0].Measure)
	assert.Equal(t, "Model forecast", got.Long[1].Measure)
}

func TestSeriesClampsHorizon(t *testing.T) {
	app, _ := setupApp(t)

	_, body := get(t, app, "/api/series?product=Candy+A&region=North&horizon=400")
	var got SeriesResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 90, got.HorizonDays)
}

func TestSeriesValidation(t *testing.T) {
	app, _ := setupApp(t)

	for _, target := range []string{
		"/api/series",
		"/api/series?product=Candy+A",
		"/api/series?region=North",
		"/api/series?product=+&region=North",
	} {
		resp, body := get(t, app, target)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
		assert.Contains(t, string(body), "product and region are required")
	}

	resp, body := get(t, app, "/api/series?product=Candy+A&region=North&shape=tall")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "shape")
}

func TestSeriesEmptySelection(t *testing.T) {
	app, m := setupApp(t)

	resp, body := get(t, app, "/api/series?product=Candy+A&region=South")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got SeriesResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Empty)
	assert.Equal(t, "no_match", got.Reason)
	assert.Equal(t, dashboard.MessageNoData, got.Message)
	assert.Empty(t, got.Points)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmptySelections.WithLabelValues("no_match")))
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/metrics?product=Candy+C&region=East")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var mv dashboard.MetricsView
	require.NoError(t, json.Unmarshal(body, &mv))
	assert.False(t, mv.Empty)
	require.Len(t, mv.Metrics, 1)
	assert.Equal(t, "prophet", mv.Metrics[0].ModelName)

	_, body = get(t, app, "/api/metrics?product=Candy+Z&region=East")
	require.NoError(t, json.Unmarshal(body, &mv))
	assert.True(t, mv.Empty)
	assert.Equal(t, dashboard.MessageNoMetrics, mv.Message)

	resp, _ = get(t, app, "/api/metrics?product=Candy+C")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportCSV(t *testing.T) {
	app, m := setupApp(t)

	resp, body := get(t, app, "/api/export/csv?product=Candy+A&region=North&horizon=7")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), `forecast_Candy A_North.csv`)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/csv")

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 1+provider.DemoHistoryDays+7)
	assert.Equal(t, "date,product_name,region,y,yhat,yhat_lower,yhat_upper", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2023-11-11,Candy A,North,"))
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "2024-01-17,Candy A,North,,"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("csv")))
}

func TestExportXLSX(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/export/xlsx?product=Candy+B&region=West&horizon=3")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), `forecast_Candy B_West.xlsx`)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Forecast")
	require.NoError(t, err)
	assert.Len(t, rows, 1+provider.DemoHistoryDays+3)
}

func TestExportEmptySelection(t *testing.T) {
	app, m := setupApp(t)

	resp, body := get(t, app, "/api/export/csv?product=Candy+A&region=East")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), dashboard.MessageNoData)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Exports.WithLabelValues("csv")))
}

func TestExportMetrics(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/export/metrics?product=Candy+A&region=South&format=xlsx")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "metrics_Candy A_South.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Metrics")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	resp, _ = get(t, app, "/api/export/metrics?product=Candy+A&region=South&format=pdf")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, app, "/api/export/metrics?product=Candy+Z&region=South")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDashboardPage(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")

	html := string(body)
	assert.Contains(t, html, "Amiri Forecasting Dashboard")
	assert.Contains(t, html, "forecast-chart")
	assert.Contains(t, html, "Forecast vs actual sales for Candy A (North)")
	assert.Contains(t, html, "Min expected sales")
	assert.Contains(t, html, "/api/export/csv?horizon=30")
	assert.Contains(t, html, "prophet")
	assert.Contains(t, html, "Positive means the model overestimates demand")
}

func TestDashboardPageEmptyStates(t *testing.T) {
	app, _ := setupApp(t)

	// South has metrics but no sales rows; Candy Z has neither.
	_, body := get(t, app, "/dashboard?product=Candy+A&region=South")
	html := string(body)
	assert.Contains(t, html, dashboard.MessageNoData)
	assert.NotContains(t, html, "forecast-chart")
	assert.Contains(t, html, "prophet")

	_, body = get(t, app, "/dashboard?product=Candy+Z&region=North&horizon=10")
	html = string(body)
	assert.Contains(t, html, dashboard.MessageNoData)
	assert.Contains(t, html, dashboard.MessageNoMetrics)
}

func TestChartPage(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/api/chart?product=Candy+C&region=West&horizon=20")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "forecast-chart")
	assert.Contains(t, string(body), "Model forecast")

	resp, body = get(t, app, "/api/chart?product=Candy+C&region=South")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), dashboard.MessageNoData)
}

func TestIndexRedirects(t *testing.T) {
	app, _ := setupApp(t)

	resp, _ := get(t, app, "/")
	assert.GreaterOrEqual(t, resp.StatusCode, 300)
	assert.Less(t, resp.StatusCode, 400)
	assert.Equal(t, "/dashboard", resp.Header.Get(fiber.HeaderLocation))
}

func TestHealthAndVersion(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := get(t, app, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "demo", health["source"])
	assert.Equal(t, "2024-01-10", health["today"])

	_, body = get(t, app, "/api/version")
	assert.JSONEq(t, `{"version":"1.2.3"}`, string(body))
}

func TestUp(t *testing.T) {
	app, _ := setupApp(t)

	original := database.DB
	database.DB = nil
	t.Cleanup(func() { database.DB = original })

	resp, _ := get(t, app, "/up")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	database.DB = mockDB

	mock.ExpectPing()
	resp, _ = get(t, app, "/up")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mock.ExpectPing().WillReturnError(assert.AnError)
	resp, body := get(t, app, "/up")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "database unavailable", string(body))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrometheusEndpoint(t *testing.T) {
	app, _ := setupApp(t)

	resp, _ := get(t, app, "/api/export/csv?product=Candy+A&region=North")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := get(t, app, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `amiri_exports_total{format="csv"} 1`)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	app, _ := setupApp(t)

	resp, _ := get(t, app, "/ws")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestFormatNumber(t *testing.T) {
	v := 3.14159
	assert.Equal(t, "3.14", formatNumber(v))
	assert.Equal(t, "3.14", formatNumber(&v))
	assert.Equal(t, "", formatNumber((*float64)(nil)))
	assert.Equal(t, "7", formatNumber(7))
}

package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/amiri/internal/chart"
	"github.com/seuros/amiri/internal/dashboard"
	"github.com/seuros/amiri/internal/export"
	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/httpx"
)

// MetricNote explains one accuracy metric under the metrics table.
type MetricNote struct {
	Name string
	Text string
	Hint string
}

// MetricNotes are shown below the metrics table.
var MetricNotes = []MetricNote{
	{"MAE", "Mean absolute error: how far the forecast is from actual sales on average.", "Lower is better."},
	{"RMSE", "Root mean squared error: like MAE but reacts more strongly to sharp spikes.", "RMSE well above MAE means the model occasionally misses badly."},
	{"WAPE", "Weighted absolute percentage error: forecast error as a share of total sales.", "WAPE = 10% means the model is off by about 10% of actual sales."},
	{"Bias", "Systematic direction of the error.", "Positive means the model overestimates demand, negative means it underestimates."},
}

type dashboardPage struct {
	Title   string
	Version string
	Filters dashboard.Filters

	Product string
	Region  string
	Horizon int

	View     dashboard.View
	Chart    template.HTML
	Headers  []string
	Rows     [][]string
	CSVURL   string
	XLSXURL  string
	Accuracy *forecast.Accuracy

	Metrics        dashboard.MetricsView
	MetricsHeaders []string
	MetricsRows    [][]string
	Notes          []MetricNote
}

// Dashboard renders the HTML dashboard. Missing filters default to the first
// product and region and the configured horizon.
// GET /dashboard?product=&region=&horizon=
func (h *Handlers) Dashboard(c fiber.Ctx) error {
	ctx := c.Context()
	filters, err := h.svc.Filters(ctx)
	if err != nil {
		return httpx.Internal(c, "Failed to load filters", err)
	}

	page := dashboardPage{
		Title:   "Amiri Forecasting Dashboard",
		Version: h.version,
		Filters: filters,
		Product: c.Query("product", first(filters.Products)),
		Region:  c.Query("region", first(filters.Regions)),
		Horizon: forecast.ClampHorizon(fiber.Query[int](c, "horizon", h.svc.DefaultHorizon())),
		Notes:   MetricNotes,
	}

	if page.Product != "" && page.Region != "" {
		if page.View, err = h.svc.Series(ctx, page.Product, page.Region, page.Horizon); err != nil {
			return httpx.Internal(c, "Failed to load series", err)
		}
		if page.Metrics, err = h.svc.Metrics(ctx, page.Product, page.Region); err != nil {
			return httpx.Internal(c, "Failed to load metrics", err)
		}
	} else {
		page.View = dashboard.View{Empty: true, Message: dashboard.MessageNoData}
		page.Metrics = dashboard.MetricsView{Empty: true, Message: dashboard.MessageNoMetrics}
	}

	if !page.View.Empty {
		page.Chart = chart.Snippet(page.View.Series)
		page.Headers = export.Display(export.ObservationHeader)
		for _, p := range page.View.Series.Points {
			page.Rows = append(page.Rows, export.ObservationRecord(p))
		}
		page.Accuracy = page.View.Accuracy
		q := selectionQuery(page.Product, page.Region, page.Horizon)
		page.CSVURL = "/api/export/csv?" + q
		page.XLSXURL = "/api/export/xlsx?" + q
	}
	if !page.Metrics.Empty {
		page.MetricsHeaders = export.Display(export.MetricsHeader)
		for _, m := range page.Metrics.Metrics {
			page.MetricsRows = append(page.MetricsRows, export.MetricsRecord(m))
		}
	}

	return c.Render("dashboard", page)
}

// Chart renders a standalone chart page for one selection.
// GET /api/chart?product=&region=&horizon=
func (h *Handlers) Chart(c fiber.Ctx) error {
	product, region, horizon, err := selection(c)
	if err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, err.Error())
	}

	view, err := h.svc.Series(c.Context(), product, region, horizon)
	if err != nil {
		return httpx.Internal(c, "Failed to load series", err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	if view.Empty {
		return c.Status(fiber.StatusNotFound).SendString("<p>" + template.HTMLEscapeString(view.Message) + "</p>")
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf, view.Series); err != nil {
		return httpx.Internal(c, "Failed to render chart", err)
	}
	return c.Send(buf.Bytes())
}

func selectionQuery(product, region string, horizon int) string {
	v := url.Values{}
	v.Set("product", product)
	v.Set("region", region)
	v.Set("horizon", strconv.Itoa(horizon))
	return v.Encode()
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// formatNumber renders metric values with two decimals.
func formatNumber(v any) string {
	switch n := v.(type) {
	case float64:
		return fmt.Sprintf("%.2f", n)
	case *float64:
		if n == nil {
			return ""
		}
		return fmt.Sprintf("%.2f", *n)
	case int:
		return strconv.Itoa(n)
	default:
		return fmt.Sprint(v)
	}
}

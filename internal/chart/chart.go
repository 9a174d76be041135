// Package chart renders reconciled series as ECharts line charts.
package chart

import (
	"fmt"
	"html/template"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/seuros/amiri/internal/forecast"
)

// Series names, also used as measure labels in long format.
const (
	MeasureActual    = "Actual sales"
	MeasurePredicted = "Model forecast"
	seriesLower      = "Min expected sales"
	seriesBand       = "Confidence interval"
)

const (
	colorActual   = "#1f77b4"
	colorForecast = "#ff7f0e"
	colorBand     = "rgba(255, 127, 14, 0.2)"
	colorToday    = "gray"

	// ECharts skips "-" values, leaving a gap.
	gap = "-"
)

// Point is one row of the long (melted) form of a series.
type Point struct {
	Date    string   `json:"date"`
	Measure string   `json:"measure"`
	Value   *float64 `json:"value"`
}

// Long reshapes a series into one row per date and measure, actual first.
func Long(series forecast.Series) []Point {
	out := make([]Point, 0, len(series.Points)*2)
	for _, p := range series.Points {
		date := p.Date.Format(forecast.DateLayout)
		out = append(out,
			Point{Date: date, Measure: MeasureActual, Value: p.Actual},
			Point{Date: date, Measure: MeasurePredicted, Value: forecast.Float(p.Predicted)},
		)
	}
	return out
}

// Line builds the forecast-vs-actual chart: actual sales over history, the
// dashed forecast after today, a shaded band between the forecast bounds and
// a vertical marker on today.
func Line(series forecast.Series) *charts.Line {
	today := series.Today.Format(forecast.DateLayout)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Amiri Forecasting Dashboard",
			Width:     "100%",
			Height:    "500px",
			ChartID:   "forecast-chart",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Forecast vs actual sales for %s (%s)", series.Product, series.Region),
			Subtitle: fmt.Sprintf("Horizon %d days from %s", series.HorizonDays, today),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: boolPtr(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: boolPtr(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date", Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Sales"}),
	)

	dates := make([]string, len(series.Points))
	actual := make([]opts.LineData, len(series.Points))
	predicted := make([]opts.LineData, len(series.Points))
	lower := make([]opts.LineData, len(series.Points))
	band := make([]opts.LineData, len(series.Points))

	for i, p := range series.Points {
		dates[i] = p.Date.Format(forecast.DateLayout)
		actual[i] = value(p.Actual)
		predicted[i], lower[i], band[i] = opts.LineData{Value: gap}, opts.LineData{Value: gap}, opts.LineData{Value: gap}

		if !p.Date.After(series.Today) {
			continue
		}
		predicted[i] = opts.LineData{Value: p.Predicted}
		if p.HasBounds() {
			lower[i] = opts.LineData{Value: *p.PredictedLow}
			band[i] = opts.LineData{Value: *p.PredictedHigh - *p.PredictedLow}
		}
	}

	line.SetXAxis(dates).
		AddSeries(MeasureActual, actual,
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorActual, Width: 3}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colorActual}),
			charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{Name: "Today", XAxis: today}),
			charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
				Symbol:    []string{"none", "none"},
				LineStyle: &opts.LineStyle{Color: colorToday, Type: "dotted", Width: 2},
			}),
		).
		AddSeries(MeasurePredicted, predicted,
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorForecast, Width: 3, Type: "dashed"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colorForecast}),
		).
		// Stacking the band width on the lower bound fills the area between the bounds.
		AddSeries(seriesLower, lower,
			charts.WithLineChartOpts(opts.LineChart{Stack: "band", Symbol: "none"}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: "transparent"}),
		).
		AddSeries(seriesBand, band,
			charts.WithLineChartOpts(opts.LineChart{Stack: "band", Symbol: "none"}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: "transparent"}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Color: colorBand}),
		)

	return line
}

// Snippet renders the chart as an embeddable element plus script.
func Snippet(series forecast.Series) template.HTML {
	s := Line(series).RenderSnippet()
	return template.HTML(s.Element + "\n" + s.Script)
}

// Render writes a standalone HTML page with the chart.
func Render(w io.Writer, series forecast.Series) error {
	return Line(series).Render(w)
}

func value(v *float64) opts.LineData {
	if v == nil {
		return opts.LineData{Value: gap}
	}
	return opts.LineData{Value: *v}
}

func boolPtr(b bool) *bool { return &b }

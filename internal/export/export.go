// Package export writes reconciled series and model metrics as CSV and XLSX
// downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/seuros/amiri/internal/forecast"
)

// Sheet names in exported workbooks.
const (
	ForecastSheet = "Forecast"
	MetricsSheet  = "Metrics"
)

// Column headers shared by the CSV and XLSX exports. They match what the
// spreadsheet provider reads, so an export can be loaded back.
var (
	ObservationHeader = []string{"date", "product_name", "region", "y", "yhat", "yhat_lower", "yhat_upper"}
	MetricsHeader     = []string{"model_name", "mae", "rmse", "wape", "summ_error_3month", "product_name", "region"}
)

// DisplayHeaders maps raw column names to the titles shown in tables.
var DisplayHeaders = map[string]string{
	"date":              "Date",
	"product_name":      "Product",
	"region":            "Region",
	"y":                 "Actual sales",
	"yhat":              "Model forecast",
	"yhat_lower":        "Min expected sales",
	"yhat_upper":        "Max expected sales",
	"model_name":        "Model",
	"mae":               "MAE",
	"rmse":              "RMSE",
	"wape":              "WAPE",
	"summ_error_3month": "Bias",
}

// Display returns the display titles for columns, falling back to the raw name.
func Display(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		if title, ok := DisplayHeaders[c]; ok {
			out[i] = title
		} else {
			out[i] = c
		}
	}
	return out
}

var unsafeName = strings.NewReplacer("/", "-", "\\", "-", "\"", "", "\n", "", "\r", "")

// Filename returns forecast_<product>_<region>.<ext>.
func Filename(product, region, ext string) string {
	return name("forecast", product, region, ext)
}

// MetricsFilename returns metrics_<product>_<region>.<ext>.
func MetricsFilename(product, region, ext string) string {
	return name("metrics", product, region, ext)
}

func name(prefix, product, region, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, unsafeName.Replace(product), unsafeName.Replace(region), strings.TrimPrefix(ext, "."))
}

// ObservationRecord formats one observation as text cells. Missing values are empty.
func ObservationRecord(o forecast.Observation) []string {
	return []string{
		o.Date.Format(forecast.DateLayout),
		o.Product,
		o.Region,
		formatOptional(o.Actual),
		formatFloat(o.Predicted),
		formatOptional(o.PredictedLow),
		formatOptional(o.PredictedHigh),
	}
}

// MetricsRecord formats one metrics row as text cells.
func MetricsRecord(m forecast.ModelMetrics) []string {
	return []string{
		m.ModelName,
		formatFloat(m.MAE),
		formatFloat(m.RMSE),
		formatFloat(m.WAPE),
		formatFloat(m.Bias),
		m.Product,
		m.Region,
	}
}

// CSV writes points with a header row.
func CSV(w io.Writer, points []forecast.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ObservationHeader); err != nil {
		return err
	}
	for _, p := range points {
		if err := cw.Write(ObservationRecord(p)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MetricsCSV writes metrics rows with a header row.
func MetricsCSV(w io.Writer, metrics []forecast.ModelMetrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MetricsHeader); err != nil {
		return err
	}
	for _, m := range metrics {
		if err := cw.Write(MetricsRecord(m)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes points to a single-sheet workbook. Numbers are stored as
// numeric cells and missing values are left blank.
func XLSX(w io.Writer, points []forecast.Observation) error {
	rows := make([][]any, 0, len(points))
	for _, p := range points {
		rows = append(rows, []any{
			p.Date.Format(forecast.DateLayout),
			p.Product,
			p.Region,
			optional(p.Actual),
			p.Predicted,
			optional(p.PredictedLow),
			optional(p.PredictedHigh),
		})
	}
	return writeWorkbook(w, ForecastSheet, ObservationHeader, rows)
}

// MetricsXLSX writes metrics rows to a single-sheet workbook.
func MetricsXLSX(w io.Writer, metrics []forecast.ModelMetrics) error {
	rows := make([][]any, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []any{m.ModelName, m.MAE, m.RMSE, m.WAPE, m.Bias, m.Product, m.Region})
	}
	return writeWorkbook(w, MetricsSheet, MetricsHeader, rows)
}

func writeWorkbook(w io.Writer, sheet string, header []string, rows [][]any) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// optional turns a missing value into nil so excelize leaves the cell empty.
func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

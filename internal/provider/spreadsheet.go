package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/xuri/excelize/v2"

	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/logging"
)

// Column names of the spreadsheet exports.
var (
	ObservationColumns = []string{"date", "product_name", "region", "y", "yhat", "yhat_lower", "yhat_upper"}
	MetricsColumns     = []string{"model_name", "mae", "rmse", "wape", "summ_error_3month", "product_name", "region"}
)

// Spreadsheet reads a forecast workbook and an optional metrics workbook.
// Both are parsed once and re-read when a file's modification time changes.
// Forecast rows are also re-read when the day rolls over, since whether an
// actual value is allowed depends on today.
type Spreadsheet struct {
	forecastPath string
	metricsPath  string
	clock        clockwork.Clock
	loc          *time.Location

	mu           sync.Mutex
	forecastMod  time.Time
	forecastDay  time.Time
	metricsMod   time.Time
	observations []forecast.Observation
	metrics      []forecast.ModelMetrics
}

// NewSpreadsheet creates the workbook-backed provider.
func NewSpreadsheet(forecastPath, metricsPath string, clock clockwork.Clock, loc *time.Location) *Spreadsheet {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Spreadsheet{forecastPath: forecastPath, metricsPath: metricsPath, clock: clock, loc: loc}
}

func (s *Spreadsheet) Name() string { return "spreadsheet" }

func (s *Spreadsheet) Observations(_ context.Context, q Query) ([]forecast.Observation, error) {
	obs, _, err := s.load()
	if err != nil {
		return nil, err
	}
	return filter(obs, q), nil
}

func (s *Spreadsheet) Metrics(_ context.Context, product, region string) ([]forecast.ModelMetrics, error) {
	_, metrics, err := s.load()
	if err != nil {
		return nil, err
	}
	return forecast.FilterMetrics(metrics, product, region), nil
}

func (s *Spreadsheet) Catalog(_ context.Context) (forecast.Catalog, error) {
	obs, _, err := s.load()
	if err != nil {
		return forecast.Catalog{}, err
	}
	return forecast.NewCatalog(obs), nil
}

func (s *Spreadsheet) load() ([]forecast.Observation, []forecast.ModelMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.forecastPath)
	if err != nil {
		return nil, nil, fmt.Errorf("forecast workbook: %w", err)
	}
	today := forecast.Today(s.clock.Now(), s.loc)
	if s.observations == nil || !info.ModTime().Equal(s.forecastMod) || !today.Equal(s.forecastDay) {
		obs, err := ReadObservations(s.forecastPath, today)
		if err != nil {
			return nil, nil, err
		}
		s.observations = obs
		s.forecastMod = info.ModTime()
		s.forecastDay = today
		logging.L().Info("loaded forecast workbook", "path", s.forecastPath, "rows", len(obs))
	}

	if s.metricsPath != "" {
		switch info, err := os.Stat(s.metricsPath); {
		case errors.Is(err, fs.ErrNotExist):
			s.metrics = []forecast.ModelMetrics{}
		case err != nil:
			return nil, nil, fmt.Errorf("metrics workbook: %w", err)
		case s.metrics == nil || !info.ModTime().Equal(s.metricsMod):
			metrics, err := ReadMetrics(s.metricsPath)
			if err != nil {
				return nil, nil, err
			}
			s.metrics = metrics
			s.metricsMod = info.ModTime()
		}
	} else if s.metrics == nil {
		s.metrics = []forecast.ModelMetrics{}
	}

	return s.observations, s.metrics, nil
}

// ReadObservations parses the first sheet of a forecast workbook. Rows
// violating the data model are skipped and counted in the log.
func ReadObservations(path string, today time.Time) ([]forecast.Observation, error) {
	rows, err := readSheet(path)
	if err != nil {
		return nil, err
	}
	idx, err := columnIndex(rows[0], "date", "product_name", "region", "yhat")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make([]forecast.Observation, 0, len(rows)-1)
	skipped := 0
	for i, row := range rows[1:] {
		o, err := parseObservation(row, idx)
		if err == nil {
			err = o.Validate(today)
		}
		if err != nil {
			skipped++
			logging.L().Debug("skipping forecast row", "path", path, "row", i+2, "error", err)
			continue
		}
		out = append(out, o)
	}
	if skipped > 0 {
		logging.L().Warn("skipped invalid forecast rows", "path", path, "skipped", skipped)
	}
	return out, nil
}

// ReadMetrics parses the first sheet of a model metrics workbook. The bias
// column may be named bias or summ_error_3month.
func ReadMetrics(path string) ([]forecast.ModelMetrics, error) {
	rows, err := readSheet(path)
	if err != nil {
		return nil, err
	}
	idx, err := columnIndex(rows[0], "model_name", "product_name", "region")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, ok := idx["bias"]; !ok {
		if i, ok := idx["summ_error_3month"]; ok {
			idx["bias"] = i
		}
	}

	out := make([]forecast.ModelMetrics, 0, len(rows)-1)
	for i, row := range rows[1:] {
		m := forecast.ModelMetrics{
			ModelName: cell(row, idx, "model_name"),
			Product:   cell(row, idx, "product_name"),
			Region:    cell(row, idx, "region"),
			RunID:     cell(row, idx, "run_id"),
		}
		if m.ModelName == "" || m.Product == "" || m.Region == "" {
			logging.L().Debug("skipping metrics row", "path", path, "row", i+2)
			continue
		}
		var perr error
		for key, dst := range map[string]*float64{"mae": &m.MAE, "rmse": &m.RMSE, "wape": &m.WAPE, "bias": &m.Bias} {
			v, err := number(cell(row, idx, key))
			if err != nil {
				perr = fmt.Errorf("%s: %w", key, err)
				break
			}
			if v != nil {
				*dst = *v
			}
		}
		if perr != nil {
			logging.L().Debug("skipping metrics row", "path", path, "row", i+2, "error", perr)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%s: no worksheet found", path)
	}
	// Raw values keep date cells as serial numbers instead of locale-formatted text.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: worksheet is empty", path)
	}
	return rows, nil
}

func columnIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[name]; !dup && name != "" {
			idx[name] = i
		}
	}
	var missing []string
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func cell(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseObservation(row []string, idx map[string]int) (forecast.Observation, error) {
	var o forecast.Observation

	date, err := parseCellDate(cell(row, idx, "date"))
	if err != nil {
		return o, err
	}
	o.Date = date
	o.Product = cell(row, idx, "product_name")
	o.Region = cell(row, idx, "region")

	predicted, err := number(cell(row, idx, "yhat"))
	if err != nil {
		return o, fmt.Errorf("yhat: %w", err)
	}
	if predicted == nil {
		return o, fmt.Errorf("yhat is required")
	}
	o.Predicted = *predicted

	if o.Actual, err = number(cell(row, idx, "y")); err != nil {
		return o, fmt.Errorf("y: %w", err)
	}
	if o.PredictedLow, err = number(cell(row, idx, "yhat_lower")); err != nil {
		return o, fmt.Errorf("yhat_lower: %w", err)
	}
	if o.PredictedHigh, err = number(cell(row, idx, "yhat_upper")); err != nil {
		return o, fmt.Errorf("yhat_upper: %w", err)
	}
	return o, nil
}

func parseCellDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("date serial %q: %w", v, err)
		}
		return forecast.Day(t), nil
	}
	return forecast.ParseDate(v)
}

// number parses an optional numeric cell; empty and NaN cells are nil.
func number(v string) (*float64, error) {
	switch strings.ToLower(v) {
	case "", "nan", "null", "none":
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", v)
	}
	return &f, nil
}

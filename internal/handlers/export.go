package handlers

import (
	"bytes"
	"io"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/amiri/internal/export"
	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/httpx"
)

type writerFunc func(io.Writer, []forecast.Observation) error

// ExportCSV downloads the selection as forecast_<product>_<region>.csv.
// GET /api/export/csv?product=&region=&horizon=
func (h *Handlers) ExportCSV(c fiber.Ctx) error {
	return h.exportSeries(c, "csv", httpx.MIMECSV, export.CSV)
}

// ExportXLSX downloads the selection as a single-sheet workbook.
// GET /api/export/xlsx?product=&region=&horizon=
func (h *Handlers) ExportXLSX(c fiber.Ctx) error {
	return h.exportSeries(c, "xlsx", httpx.MIMEXLSX, export.XLSX)
}

func (h *Handlers) exportSeries(c fiber.Ctx, format, contentType string, write writerFunc) error {
	product, region, horizon, err := selection(c)
	if err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, err.Error())
	}

	view, err := h.svc.Series(c.Context(), product, region, horizon)
	if err != nil {
		return httpx.Internal(c, "Failed to load series", err)
	}
	if view.Empty {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"empty":   true,
			"reason":  view.Reason,
			"message": view.Message,
		})
	}

	var buf bytes.Buffer
	if err := write(&buf, view.Series.Points); err != nil {
		return httpx.Internal(c, "Failed to build export", err)
	}
	h.countExport(format)
	return httpx.Attachment(c, export.Filename(product, region, format), contentType, buf.Bytes())
}

// ExportMetrics downloads the model metrics for a product/region pair.
// GET /api/export/metrics?product=&region=&format=csv|xlsx
func (h *Handlers) ExportMetrics(c fiber.Ctx) error {
	values, missing := httpx.RequiredQuery(c, "product", "region")
	if len(missing) > 0 {
		return httpx.Error(c, fiber.StatusBadRequest, "product and region are required")
	}
	format := c.Query("format", "csv")

	mv, err := h.svc.Metrics(c.Context(), values["product"], values["region"])
	if err != nil {
		return httpx.Internal(c, "Failed to load metrics", err)
	}
	if mv.Empty {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"empty": true, "message": mv.Message})
	}

	var buf bytes.Buffer
	contentType := httpx.MIMECSV
	switch format {
	case "csv":
		err = export.MetricsCSV(&buf, mv.Metrics)
	case "xlsx":
		contentType = httpx.MIMEXLSX
		err = export.MetricsXLSX(&buf, mv.Metrics)
	default:
		return httpx.Error(c, fiber.StatusBadRequest, "format must be csv or xlsx")
	}
	if err != nil {
		return httpx.Internal(c, "Failed to build export", err)
	}
	h.countExport("metrics_" + format)
	return httpx.Attachment(c, export.MetricsFilename(values["product"], values["region"], format), contentType, buf.Bytes())
}

func (h *Handlers) countExport(format string) {
	if h.metrics != nil {
		h.metrics.Exports.WithLabelValues(format).Inc()
	}
}

package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/seuros/amiri/internal/chart"
	"github.com/seuros/amiri/internal/dashboard"
	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/httpx"
)

// Series shapes.
const (
	ShapeWide = "wide"
	ShapeLong = "long"
)

// SeriesResponse is the body of GET /api/series.
type SeriesResponse struct {
	Product     string                 `json:"product"`
	Region      string                 `json:"region"`
	HorizonDays int                    `json:"horizon_days"`
	Today       string                 `json:"today"`
	Empty       bool                   `json:"empty"`
	Reason      string                 `json:"reason,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Points      []forecast.Observation `json:"points,omitempty"`
	Long        []chart.Point          `json:"long,omitempty"`
	Accuracy    *forecast.Accuracy     `json:"accuracy,omitempty"`
	Pagination  *PaginationMeta        `json:"pagination,omitempty"`
}

// selection reads product, region and horizon from the query string.
func selection(c fiber.Ctx) (product, region string, horizon int, err error) {
	values, missing := httpx.RequiredQuery(c, "product", "region")
	if len(missing) > 0 {
		return "", "", 0, fiber.NewError(fiber.StatusBadRequest, "product and region are required")
	}
	horizon = fiber.Query[int](c, "horizon", 0)
	return values["product"], values["region"], horizon, nil
}

// Filters returns the options for the filter controls.
// GET /api/filters
func (h *Handlers) Filters(c fiber.Ctx) error {
	f, err := h.svc.Filters(c.Context())
	if err != nil {
		return httpx.Internal(c, "Failed to load filters", err)
	}
	return c.JSON(f)
}

// Series returns the reconciled series for one selection. Unknown
// combinations answer 200 with an empty state.
// GET /api/series?product=&region=&horizon=&shape=wide|long[&page=&per=]
func (h *Handlers) Series(c fiber.Ctx) error {
	product, region, horizon, err := selection(c)
	if err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, err.Error())
	}
	shape := c.Query("shape", ShapeWide)
	if shape != ShapeWide && shape != ShapeLong {
		return httpx.Error(c, fiber.StatusBadRequest, "shape must be wide or long")
	}

	view, err := h.svc.Series(c.Context(), product, region, horizon)
	if err != nil {
		return httpx.Internal(c, "Failed to load series", err)
	}
	resp := seriesResponse(view, shape)
	if params, ok := parsePagination(c); ok && !view.Empty {
		if shape == ShapeLong {
			meta := buildPaginationMeta(params, len(resp.Long))
			resp.Long = pageOf(resp.Long, params)
			resp.Pagination = &meta
		} else {
			meta := buildPaginationMeta(params, len(resp.Points))
			resp.Points = pageOf(resp.Points, params)
			resp.Pagination = &meta
		}
	}
	return c.JSON(resp)
}

func seriesResponse(view dashboard.View, shape string) SeriesResponse {
	s := view.Series
	resp := SeriesResponse{
		Product:     s.Product,
		Region:      s.Region,
		HorizonDays: s.HorizonDays,
		Today:       s.Today.Format(forecast.DateLayout),
		Empty:       view.Empty,
		Reason:      view.Reason,
		Message:     view.Message,
		Accuracy:    view.Accuracy,
	}
	if view.Empty {
		return resp
	}
	if shape == ShapeLong {
		resp.Long = chart.Long(s)
	} else {
		resp.Points = s.Points
	}
	return resp
}

// Metrics returns the model metrics for a product/region pair.
// GET /api/metrics?product=&region=
func (h *Handlers) Metrics(c fiber.Ctx) error {
	values, missing := httpx.RequiredQuery(c, "product", "region")
	if len(missing) > 0 {
		return httpx.Error(c, fiber.StatusBadRequest, "product and region are required")
	}

	mv, err := h.svc.Metrics(c.Context(), values["product"], values["region"])
	if err != nil {
		return httpx.Internal(c, "Failed to load metrics", err)
	}
	return c.JSON(mv)
}

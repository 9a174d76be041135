package handlers

import (
	"math"

	"github.com/gofiber/fiber/v3"
)

const (
	defaultPer = 30
	maxPer     = 366
)

// PaginationParams holds the page window requested for a series.
type PaginationParams struct {
	Page   int `json:"page"` // 1-indexed
	Per    int `json:"per"`
	Offset int `json:"-"`
}

// PaginationMeta describes the window returned.
type PaginationMeta struct {
	Page       int  `json:"page"`
	Per        int  `json:"per"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// parsePagination reads page and per. ok is false when the client did not ask
// for a page, in which case the full series is returned.
func parsePagination(c fiber.Ctx) (PaginationParams, bool) {
	if c.Query("page") == "" && c.Query("per") == "" {
		return PaginationParams{}, false
	}
	per := min(max(fiber.Query[int](c, "per", defaultPer), 1), maxPer)
	// keeps (page-1)*per from overflowing
	page := min(max(fiber.Query[int](c, "page", 1), 1), math.MaxInt/per)
	return PaginationParams{Page: page, Per: per, Offset: (page - 1) * per}, true
}

func buildPaginationMeta(params PaginationParams, total int) PaginationMeta {
	var totalPages int
	if total > 0 && params.Per > 0 {
		totalPages = (total + params.Per - 1) / params.Per
	}
	return PaginationMeta{
		Page:       params.Page,
		Per:        params.Per,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    params.Page < totalPages,
	}
}

// pageOf slices items to the requested window.
func pageOf[T any](items []T, params PaginationParams) []T {
	if params.Offset < 0 || params.Offset >= len(items) {
		return []T{}
	}
	end := min(params.Offset+params.Per, len(items))
	return items[params.Offset:end]
}

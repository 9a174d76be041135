// Package handlers exposes the dashboard over HTTP: a JSON API, file
// exports, the HTML dashboard and operational endpoints.
package handlers

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seuros/amiri/internal/dashboard"
	"github.com/seuros/amiri/internal/observability"
	"github.com/seuros/amiri/internal/realtime"
)

//go:embed templates
var templatesFS embed.FS

// Options configures the handler set.
type Options struct {
	Version string
	Metrics *observability.Metrics
	// Hub serves /ws when set.
	Hub *realtime.Hub
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
}

// Handlers serves dashboard requests from a Service.
type Handlers struct {
	svc      *dashboard.Service
	version  string
	metrics  *observability.Metrics
	hub      *realtime.Hub
	gatherer prometheus.Gatherer
}

// New creates the handler set.
func New(svc *dashboard.Service, opts Options) *Handlers {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Handlers{
		svc:      svc,
		version:  opts.Version,
		metrics:  opts.Metrics,
		hub:      opts.Hub,
		gatherer: opts.Gatherer,
	}
}

// Views returns the template engine for the HTML pages. Pass it as
// fiber.Config.Views.
func Views() fiber.Views {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("num", formatNumber)
	return engine
}

// Register mounts every route on app.
func (h *Handlers) Register(app *fiber.App) {
	app.Get("/", func(c fiber.Ctx) error {
		return c.Redirect().To("/dashboard")
	})
	app.Get("/dashboard", h.Dashboard)
	app.Get("/health", h.Health)
	app.Get("/up", h.Up)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Get("/version", h.Version)
	api.Get("/filters", h.Filters)
	api.Get("/series", h.Series)
	api.Get("/metrics", h.Metrics)
	api.Get("/chart", h.Chart)
	api.Get("/export/csv", h.ExportCSV)
	api.Get("/export/xlsx", h.ExportXLSX)
	api.Get("/export/metrics", h.ExportMetrics)

	if h.hub != nil {
		app.Use("/ws", func(c fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", h.hub.Handler())
	}
}

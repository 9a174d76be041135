// Package dashboard turns filter selections into chart-ready views. It owns
// the selection cache and is the only place the reconciler is invoked for
// interactive requests.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/logging"
	"github.com/seuros/amiri/internal/observability"
	"github.com/seuros/amiri/internal/provider"
)

// Empty-state messages shown in place of a chart or table.
const (
	MessageNoData    = "No data for the selected filters"
	MessageNoMetrics = "No metrics for the selected combination"
)

// Filters lists what the filter controls offer.
type Filters struct {
	Products       []string `json:"products"`
	Regions        []string `json:"regions"`
	HorizonMin     int      `json:"horizon_min"`
	HorizonMax     int      `json:"horizon_max"`
	DefaultHorizon int      `json:"default_horizon"`
	Today          string   `json:"today"`
	Source         string   `json:"source"`
}

// View is the result of one selection: the reconciled series plus the error
// measured over its history window, or an empty state.
type View struct {
	Series   forecast.Series    `json:"series"`
	Accuracy *forecast.Accuracy `json:"accuracy,omitempty"`
	Empty    bool               `json:"empty"`
	Reason   string             `json:"reason,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// MetricsView is the model metrics table for one product/region.
type MetricsView struct {
	Product  string                  `json:"product"`
	Region   string                  `json:"region"`
	Metrics  []forecast.ModelMetrics `json:"metrics"`
	Accuracy *forecast.Accuracy      `json:"accuracy,omitempty"`
	Empty    bool                    `json:"empty"`
	Message  string                  `json:"message,omitempty"`
}

// Options configures a Service.
type Options struct {
	Clock          clockwork.Clock
	Location       *time.Location
	DefaultHorizon int
	CacheSize      int
	Metrics        *observability.Metrics
}

// Service answers dashboard queries against a provider.
type Service struct {
	provider       provider.Provider
	cache          *Cache
	clock          clockwork.Clock
	loc            *time.Location
	defaultHorizon int
	metrics        *observability.Metrics
}

// NewService creates a Service. Zero options fall back to the real clock,
// UTC, the default horizon and a 128-entry cache.
func NewService(p provider.Provider, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DefaultHorizon == 0 {
		opts.DefaultHorizon = forecast.DefaultHorizon
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = 128
	}
	return &Service{
		provider:       p,
		cache:          NewCache(opts.CacheSize, opts.Metrics),
		clock:          opts.Clock,
		loc:            opts.Location,
		defaultHorizon: forecast.ClampHorizon(opts.DefaultHorizon),
		metrics:        opts.Metrics,
	}
}

// Today is the current calendar date in the configured timezone.
func (s *Service) Today() time.Time {
	return forecast.Today(s.clock.Now(), s.loc)
}

// DefaultHorizon is the horizon used when a request does not set one.
func (s *Service) DefaultHorizon() int {
	return s.defaultHorizon
}

// Source names the active provider.
func (s *Service) Source() string {
	return s.provider.Name()
}

// Filters returns the distinct products and regions plus horizon bounds.
func (s *Service) Filters(ctx context.Context) (Filters, error) {
	cat, err := s.provider.Catalog(ctx)
	if err != nil {
		return Filters{}, fmt.Errorf("load catalog: %w", err)
	}
	return Filters{
		Products:       cat.Products,
		Regions:        cat.Regions,
		HorizonMin:     forecast.HorizonMin,
		HorizonMax:     forecast.HorizonMax,
		DefaultHorizon: s.defaultHorizon,
		Today:          s.Today().Format(forecast.DateLayout),
		Source:         s.provider.Name(),
	}, nil
}

// Series reconciles one selection. A horizon of 0 means the default; other
// values are clamped into range. An empty selection is returned as a View
// with Empty set, not as an error.
func (s *Service) Series(ctx context.Context, product, region string, horizon int) (View, error) {
	if horizon == 0 {
		horizon = s.defaultHorizon
	}
	key := forecast.Selection{
		Product:     product,
		Region:      region,
		HorizonDays: forecast.ClampHorizon(horizon),
		Today:       s.Today(),
	}

	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	start := s.clock.Now()
	obs, err := s.provider.Observations(ctx, provider.Query{
		Product:     key.Product,
		Region:      key.Region,
		Today:       key.Today,
		HorizonDays: key.HorizonDays,
	})
	if err != nil {
		return View{}, fmt.Errorf("load observations: %w", err)
	}

	view := build(obs, key)
	if s.metrics != nil {
		s.metrics.ReconcileDuration.Observe(s.clock.Since(start).Seconds())
		if view.Empty {
			s.metrics.EmptySelections.WithLabelValues(view.Reason).Inc()
		}
	}

	s.cache.Put(key, view)
	return view, nil
}

func build(obs []forecast.Observation, key forecast.Selection) View {
	series, err := forecast.Reconcile(obs, key.Product, key.Region, key.HorizonDays, key.Today)

	var empty *forecast.EmptySelectionError
	if errors.As(err, &empty) {
		return View{Series: series, Empty: true, Reason: empty.Reason, Message: MessageNoData}
	}

	view := View{Series: series}
	if acc, ok := forecast.Evaluate(series.History()); ok {
		view.Accuracy = &acc
	}
	return view
}

// Metrics returns the model metrics for product/region, with the error
// measured over the default horizon's history window alongside.
func (s *Service) Metrics(ctx context.Context, product, region string) (MetricsView, error) {
	metrics, err := s.provider.Metrics(ctx, product, region)
	if err != nil {
		return MetricsView{}, fmt.Errorf("load metrics: %w", err)
	}

	mv := MetricsView{Product: product, Region: region, Metrics: metrics}
	if len(metrics) == 0 {
		mv.Metrics = []forecast.ModelMetrics{}
		mv.Empty = true
		mv.Message = MessageNoMetrics
	}

	if view, err := s.Series(ctx, product, region, 0); err == nil {
		mv.Accuracy = view.Accuracy
	} else {
		logging.L().Debug("window accuracy unavailable", "product", product, "region", region, "error", err)
	}
	return mv, nil
}

// Invalidate drops every cached selection. Called when the underlying data changes.
func (s *Service) Invalidate() {
	s.cache.Purge()
	logging.L().Debug("dashboard cache purged")
}

// CacheLen reports the number of cached selections.
func (s *Service) CacheLen() int {
	return s.cache.Len()
}

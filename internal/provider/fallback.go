package provider

import (
	"context"

	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/logging"
	"github.com/seuros/amiri/internal/observability"
)

// Fallback serves from primary and switches to secondary for any call that
// fails. Each fallback is logged and counted; the next call tries primary again.
type Fallback struct {
	primary   Provider
	secondary Provider
	metrics   *observability.Metrics
}

// NewFallback wraps primary. metrics may be nil.
func NewFallback(primary, secondary Provider, metrics *observability.Metrics) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, metrics: metrics}
}

func (f *Fallback) Name() string { return f.primary.Name() }

func (f *Fallback) Observations(ctx context.Context, q Query) ([]forecast.Observation, error) {
	obs, err := f.primary.Observations(ctx, q)
	if err == nil {
		f.record(f.primary, "success")
		return obs, nil
	}
	f.fellBack("observations", err)
	return f.secondary.Observations(ctx, q)
}

func (f *Fallback) Metrics(ctx context.Context, product, region string) ([]forecast.ModelMetrics, error) {
	m, err := f.primary.Metrics(ctx, product, region)
	if err == nil {
		f.record(f.primary, "success")
		return m, nil
	}
	f.fellBack("metrics", err)
	return f.secondary.Metrics(ctx, product, region)
}

func (f *Fallback) Catalog(ctx context.Context) (forecast.Catalog, error) {
	c, err := f.primary.Catalog(ctx)
	if err == nil {
		f.record(f.primary, "success")
		return c, nil
	}
	f.fellBack("catalog", err)
	return f.secondary.Catalog(ctx)
}

func (f *Fallback) fellBack(call string, err error) {
	logging.L().Warn("data provider failed, serving demo data",
		"provider", f.primary.Name(),
		"fallback", f.secondary.Name(),
		"call", call,
		"error", err,
	)
	f.record(f.primary, "error")
	if f.metrics != nil {
		f.metrics.ProviderFallbacks.WithLabelValues(f.primary.Name()).Inc()
	}
}

func (f *Fallback) record(p Provider, outcome string) {
	if f.metrics != nil {
		f.metrics.ProviderRequests.WithLabelValues(p.Name(), outcome).Inc()
	}
}

// Package provider supplies observations and model metrics to the dashboard.
// Each variant hides where the data lives; the reconciliation step downstream
// never knows which one is active.
package provider

import (
	"context"
	"time"

	"github.com/seuros/amiri/internal/forecast"
)

// Query narrows the observations a provider returns. Providers may use it to
// push filtering down to storage but callers still run forecast.Reconcile on
// the result. An empty Product or Region matches everything.
type Query struct {
	Product     string
	Region      string
	Today       time.Time
	HorizonDays int
}

// End is the last date the query can need.
func (q Query) End() time.Time {
	return forecast.Day(q.Today).AddDate(0, 0, q.HorizonDays)
}

func (q Query) matches(o forecast.Observation) bool {
	if q.Product != "" && o.Product != q.Product {
		return false
	}
	if q.Region != "" && o.Region != q.Region {
		return false
	}
	return q.Today.IsZero() || !forecast.Day(o.Date).After(q.End())
}

// Provider is a source of forecast data.
type Provider interface {
	Name() string
	Observations(ctx context.Context, q Query) ([]forecast.Observation, error)
	Metrics(ctx context.Context, product, region string) ([]forecast.ModelMetrics, error)
	Catalog(ctx context.Context) (forecast.Catalog, error)
}

func filter(observations []forecast.Observation, q Query) []forecast.Observation {
	out := make([]forecast.Observation, 0, len(observations))
	for _, o := range observations {
		if q.matches(o) {
			out = append(out, o)
		}
	}
	return out
}

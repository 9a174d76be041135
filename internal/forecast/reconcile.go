// Package forecast holds the fact/forecast data model and the reconciliation
// step that turns a raw observation set into one chart-ready series.
//
// A series is built from two segments split at "today":
//
//	history   date <= today            actual known
//	forecast  today < date <= today+h  actual unknown, clipped to the horizon h
//
// Forecast rows never overlay the history range. Values pass through
// untouched; nothing is interpolated or smoothed.
package forecast

import (
	"slices"
	"time"
)

// Reconcile filters observations to one product/region, keeps all history
// rows plus the forecast rows within horizonDays of today, and returns them
// ordered by date.
//
// horizonDays is not validated here; callers clamp it first. An empty result
// is reported as an *EmptySelectionError alongside a Series carrying the
// selection, so callers can still render the empty state.
func Reconcile(observations []Observation, product, region string, horizonDays int, today time.Time) (Series, error) {
	today = Day(today)
	limit := today.AddDate(0, 0, horizonDays)

	series := Series{
		Selection: Selection{
			Product:     product,
			Region:      region,
			HorizonDays: horizonDays,
			Today:       today,
		},
		Points: make([]Observation, 0),
	}

	matched := 0
	for _, o := range observations {
		if o.Product != product || o.Region != region {
			continue
		}
		matched++

		o.Date = Day(o.Date)
		if o.Date.After(today) && o.Date.After(limit) {
			continue
		}
		series.Points = append(series.Points, o)
	}

	if len(series.Points) == 0 {
		reason := ReasonNoMatch
		if matched > 0 {
			reason = ReasonClipped
		}
		return series, &EmptySelectionError{
			Product:     product,
			Region:      region,
			HorizonDays: horizonDays,
			Reason:      reason,
		}
	}

	slices.SortStableFunc(series.Points, func(a, b Observation) int {
		return a.Date.Compare(b.Date)
	})

	return series, nil
}

package forecast

import (
	"fmt"
	"time"
)

// Horizon bounds for the forecast window, in days after today.
const (
	HorizonMin     = 1
	HorizonMax     = 90
	DefaultHorizon = 30
)

// Observation is one row of the dataset: a single (date, product, region) triple.
// Actual is nil for dates after today.
type Observation struct {
	Date          time.Time `json:"date"`
	Product       string    `json:"product_name"`
	Region        string    `json:"region"`
	Actual        *float64  `json:"y"`
	Predicted     float64   `json:"yhat"`
	PredictedLow  *float64  `json:"yhat_lower,omitempty"`
	PredictedHigh *float64  `json:"yhat_upper,omitempty"`
}

// HasBounds reports whether both bound columns are present.
func (o Observation) HasBounds() bool {
	return o.PredictedLow != nil && o.PredictedHigh != nil
}

// Validate checks the row against the data model invariants relative to today.
func (o Observation) Validate(today time.Time) error {
	if o.Date.IsZero() {
		return fmt.Errorf("%s/%s: missing date", o.Product, o.Region)
	}
	if o.Product == "" || o.Region == "" {
		return fmt.Errorf("%s: product and region are required", o.Date.Format(DateLayout))
	}
	if o.Actual != nil && Day(o.Date).After(Day(today)) {
		return fmt.Errorf("%s/%s %s: actual value on a future date", o.Product, o.Region, o.Date.Format(DateLayout))
	}
	if o.PredictedLow != nil && *o.PredictedLow > o.Predicted {
		return fmt.Errorf("%s/%s %s: lower bound %.2f above prediction %.2f",
			o.Product, o.Region, o.Date.Format(DateLayout), *o.PredictedLow, o.Predicted)
	}
	if o.PredictedHigh != nil && *o.PredictedHigh < o.Predicted {
		return fmt.Errorf("%s/%s %s: upper bound %.2f below prediction %.2f",
			o.Product, o.Region, o.Date.Format(DateLayout), *o.PredictedHigh, o.Predicted)
	}
	return nil
}

// Selection identifies one dashboard view. It doubles as the cache key, so
// Today must already be normalized with Day.
type Selection struct {
	Product     string    `json:"product"`
	Region      string    `json:"region"`
	HorizonDays int       `json:"horizon_days"`
	Today       time.Time `json:"today"`
}

// Series is the reconciled, date-ordered result for one selection.
type Series struct {
	Selection
	Points []Observation `json:"points"`
}

// History returns the points dated on or before today.
func (s Series) History() []Observation {
	for i, p := range s.Points {
		if p.Date.After(s.Today) {
			return s.Points[:i]
		}
	}
	return s.Points
}

// Forecast returns the points dated after today.
func (s Series) Forecast() []Observation {
	return s.Points[len(s.History()):]
}

// ModelMetrics is the accuracy report of one model for a product/region pair.
type ModelMetrics struct {
	ModelName string  `json:"model_name"`
	Product   string  `json:"product_name"`
	Region    string  `json:"region"`
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
	WAPE      float64 `json:"wape"`
	Bias      float64 `json:"bias"`
	RunID     string  `json:"run_id,omitempty"`
}

// Catalog lists the filter values available in a dataset.
type Catalog struct {
	Products []string `json:"products"`
	Regions  []string `json:"regions"`
}

// Float returns a pointer to v, for building optional columns.
func Float(v float64) *float64 {
	return &v
}

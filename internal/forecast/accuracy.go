package forecast

import (
	"math"
	"slices"
	"strings"
)

// Accuracy summarizes forecast error over the history rows of a series.
//
//	MAE   mean |predicted - actual|
//	RMSE  sqrt(mean (predicted - actual)^2)
//	WAPE  sum |predicted - actual| / sum |actual| * 100
//	Bias  mean (predicted - actual); positive means the model overestimates demand
type Accuracy struct {
	Samples int     `json:"samples"`
	MAE     float64 `json:"mae"`
	RMSE    float64 `json:"rmse"`
	WAPE    float64 `json:"wape"`
	Bias    float64 `json:"bias"`
}

// Evaluate computes Accuracy over points that carry an actual value. The
// boolean is false when no point has one.
func Evaluate(points []Observation) (Accuracy, bool) {
	var (
		n                                int
		absSum, sqSum, errSum, actualSum float64
	)
	for _, p := range points {
		if p.Actual == nil {
			continue
		}
		diff := p.Predicted - *p.Actual
		n++
		absSum += math.Abs(diff)
		sqSum += diff * diff
		errSum += diff
		actualSum += math.Abs(*p.Actual)
	}
	if n == 0 {
		return Accuracy{}, false
	}

	acc := Accuracy{
		Samples: n,
		MAE:     absSum / float64(n),
		RMSE:    math.Sqrt(sqSum / float64(n)),
		Bias:    errSum / float64(n),
	}
	if actualSum > 0 {
		acc.WAPE = absSum / actualSum * 100
	}
	return acc, true
}

// FilterMetrics keeps the metrics rows for one product/region, ordered by model name.
func FilterMetrics(metrics []ModelMetrics, product, region string) []ModelMetrics {
	out := make([]ModelMetrics, 0)
	for _, m := range metrics {
		if m.Product == product && m.Region == region {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b ModelMetrics) int {
		return strings.Compare(a.ModelName, b.ModelName)
	})
	return out
}

// NewCatalog collects the distinct products and regions of a dataset, sorted.
func NewCatalog(observations []Observation) Catalog {
	products := make([]string, 0)
	regions := make([]string, 0)
	for _, o := range observations {
		if o.Product != "" && !slices.Contains(products, o.Product) {
			products = append(products, o.Product)
		}
		if o.Region != "" && !slices.Contains(regions, o.Region) {
			regions = append(regions, o.Region)
		}
	}
	slices.Sort(products)
	slices.Sort(regions)
	return Catalog{Products: products, Regions: regions}
}

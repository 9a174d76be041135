package provider

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/seuros/amiri/internal/forecast"
)

// Demo dataset shape.
var (
	DemoProducts       = []string{"Candy A", "Candy B", "Candy C"}
	DemoRegions        = []string{"North", "West"}
	DemoMetricsRegions = []string{"North", "South", "East", "West"}
)

const (
	DemoHistoryDays  = 60
	DemoForecastDays = 90
	DemoModel        = "prophet"

	historyBand  = 10
	forecastBand = 15
)

type dataset struct {
	observations []forecast.Observation
	metrics      []forecast.ModelMetrics
}

// Synthetic generates the demo dataset. The dataset depends only on the seed
// and the current date and is memoized per date, so repeated requests during
// a day see identical numbers.
type Synthetic struct {
	clock clockwork.Clock
	loc   *time.Location
	seed  uint64

	mu   sync.Mutex
	day  time.Time
	data *dataset
}

// NewSynthetic creates the demo provider. A nil clock uses the real clock and
// a nil location means UTC.
func NewSynthetic(clock clockwork.Clock, loc *time.Location, seed uint64) *Synthetic {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Synthetic{clock: clock, loc: loc, seed: seed}
}

func (s *Synthetic) Name() string { return "demo" }

func (s *Synthetic) Observations(_ context.Context, q Query) ([]forecast.Observation, error) {
	today := q.Today
	if today.IsZero() {
		today = forecast.Today(s.clock.Now(), s.loc)
	}
	return filter(s.dataset(today).observations, q), nil
}

func (s *Synthetic) Metrics(_ context.Context, product, region string) ([]forecast.ModelMetrics, error) {
	today := forecast.Today(s.clock.Now(), s.loc)
	return forecast.FilterMetrics(s.dataset(today).metrics, product, region), nil
}

func (s *Synthetic) Catalog(_ context.Context) (forecast.Catalog, error) {
	today := forecast.Today(s.clock.Now(), s.loc)
	return forecast.NewCatalog(s.dataset(today).observations), nil
}

// AllMetrics returns every metrics row of the dataset for today.
func (s *Synthetic) AllMetrics() []forecast.ModelMetrics {
	today := forecast.Today(s.clock.Now(), s.loc)
	return append([]forecast.ModelMetrics(nil), s.dataset(today).metrics...)
}

func (s *Synthetic) dataset(today time.Time) *dataset {
	today = forecast.Day(today)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil || !s.day.Equal(today) {
		s.data = generate(s.seed, today)
		s.day = today
	}
	return s.data
}

func generate(seed uint64, today time.Time) *dataset {
	rng := rand.New(rand.NewPCG(seed, uint64(today.Unix())))

	// uniform integer in [lo, hi)
	intn := func(lo, hi int) float64 {
		return float64(lo + rng.IntN(hi-lo))
	}

	obs := make([]forecast.Observation, 0, len(DemoProducts)*len(DemoRegions)*(DemoHistoryDays+DemoForecastDays))
	for _, product := range DemoProducts {
		for _, region := range DemoRegions {
			for i := DemoHistoryDays; i >= 1; i-- {
				actual := intn(80, 150)
				predicted := actual + intn(-5, 5)
				obs = append(obs, forecast.Observation{
					Date:          today.AddDate(0, 0, -i),
					Product:       product,
					Region:        region,
					Actual:        forecast.Float(actual),
					Predicted:     predicted,
					PredictedLow:  forecast.Float(predicted - historyBand),
					PredictedHigh: forecast.Float(predicted + historyBand),
				})
			}
			for i := 1; i <= DemoForecastDays; i++ {
				predicted := intn(90, 140)
				obs = append(obs, forecast.Observation{
					Date:          today.AddDate(0, 0, i),
					Product:       product,
					Region:        region,
					Predicted:     predicted,
					PredictedLow:  forecast.Float(predicted - forecastBand),
					PredictedHigh: forecast.Float(predicted + forecastBand),
				})
			}
		}
	}

	uniform := func(lo, hi float64) float64 {
		return decimal.NewFromFloat(lo + rng.Float64()*(hi-lo)).Round(2).InexactFloat64()
	}
	runID := uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "amiri:demo:%d:%s", seed, today.Format(forecast.DateLayout))).String()

	metrics := make([]forecast.ModelMetrics, 0, len(DemoProducts)*len(DemoMetricsRegions))
	for _, product := range DemoProducts {
		for _, region := range DemoMetricsRegions {
			metrics = append(metrics, forecast.ModelMetrics{
				ModelName: DemoModel,
				Product:   product,
				Region:    region,
				MAE:       uniform(5, 10),
				RMSE:      uniform(7, 12),
				WAPE:      uniform(1, 3),
				Bias:      uniform(15, 30),
				RunID:     runID,
			})
		}
	}

	return &dataset{observations: obs, metrics: metrics}
}

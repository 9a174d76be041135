package provider

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/seuros/amiri/internal/database"
	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/logging"
)

// ErrNotConnected is returned by Postgres when database.DB is nil.
var ErrNotConnected = database.ErrNotConnected

// Postgres reads the forecast_observation and model_metrics tables through
// the shared database.DB pool.
type Postgres struct{}

// NewPostgres returns the database-backed provider.
func NewPostgres() *Postgres { return &Postgres{} }

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) db() (*sql.DB, error) {
	if database.DB == nil {
		return nil, ErrNotConnected
	}
	return database.DB, nil
}

func (p *Postgres) Observations(ctx context.Context, q Query) ([]forecast.Observation, error) {
	db, err := p.db()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT obs_date, product_name, region, actual, predicted, predicted_low, predicted_high
		FROM forecast_observation
		WHERE ($1::text = '' OR product_name = $1)
		  AND ($2::text = '' OR region = $2)
		  AND ($3::date IS NULL OR obs_date <= $3::date)
		ORDER BY obs_date, product_name, region`

	var end sql.NullString
	if !q.Today.IsZero() {
		end = sql.NullString{String: q.End().Format(forecast.DateLayout), Valid: true}
	}

	rows, err := db.QueryContext(ctx, query, q.Product, q.Region, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.L().Warn("failed to close observation rows", "error", err)
		}
	}()

	out := make([]forecast.Observation, 0)
	for rows.Next() {
		var (
			o                 forecast.Observation
			actual, low, high sql.NullFloat64
		)
		if err := rows.Scan(&o.Date, &o.Product, &o.Region, &actual, &o.Predicted, &low, &high); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		o.Date = forecast.Day(o.Date)
		o.Actual = floatPtr(actual)
		o.PredictedLow = floatPtr(low)
		o.PredictedHigh = floatPtr(high)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}
	return out, nil
}

func (p *Postgres) Metrics(ctx context.Context, product, region string) ([]forecast.ModelMetrics, error) {
	db, err := p.db()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT model_name, product_name, region, mae, rmse, wape, bias, COALESCE(run_id::text, '')
		FROM model_metrics
		WHERE product_name = $1 AND region = $2
		ORDER BY model_name`, product, region)
	if err != nil {
		return nil, fmt.Errorf("failed to query model metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]forecast.ModelMetrics, 0)
	for rows.Next() {
		var m forecast.ModelMetrics
		if err := rows.Scan(&m.ModelName, &m.Product, &m.Region, &m.MAE, &m.RMSE, &m.WAPE, &m.Bias, &m.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan model metrics: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read model metrics: %w", err)
	}
	return out, nil
}

func (p *Postgres) Catalog(ctx context.Context) (forecast.Catalog, error) {
	db, err := p.db()
	if err != nil {
		return forecast.Catalog{}, err
	}

	products, err := distinct(ctx, db, `SELECT DISTINCT product_name FROM forecast_observation ORDER BY product_name`)
	if err != nil {
		return forecast.Catalog{}, err
	}
	regions, err := distinct(ctx, db, `SELECT DISTINCT region FROM forecast_observation ORDER BY region`)
	if err != nil {
		return forecast.Catalog{}, err
	}
	return forecast.Catalog{Products: products, Regions: regions}, nil
}

func distinct(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan catalog value: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return forecast.Float(v.Float64)
}

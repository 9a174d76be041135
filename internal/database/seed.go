package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/logging"
)

const upsertObservation = `
	INSERT INTO forecast_observation
		(obs_date, product_name, region, actual, predicted, predicted_low, predicted_high, updated_at)
	VALUES ($1::date, $2, $3, $4, $5, $6, $7, now())
	ON CONFLICT (obs_date, product_name, region) DO UPDATE SET
		actual = EXCLUDED.actual,
		predicted = EXCLUDED.predicted,
		predicted_low = EXCLUDED.predicted_low,
		predicted_high = EXCLUDED.predicted_high,
		updated_at = now()`

const upsertMetrics = `
	INSERT INTO model_metrics
		(model_name, product_name, region, mae, rmse, wape, bias, run_id, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	ON CONFLICT (model_name, product_name, region) DO UPDATE SET
		mae = EXCLUDED.mae,
		rmse = EXCLUDED.rmse,
		wape = EXCLUDED.wape,
		bias = EXCLUDED.bias,
		run_id = EXCLUDED.run_id,
		updated_at = now()`

// SeedObservations upserts rows in a single transaction. Rows failing
// Observation.Validate abort the whole batch.
func SeedObservations(ctx context.Context, observations []forecast.Observation, today time.Time) (int, error) {
	for _, o := range observations {
		if err := o.Validate(today); err != nil {
			return 0, fmt.Errorf("invalid observation: %w", err)
		}
	}

	err := withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertObservation)
		if err != nil {
			return fmt.Errorf("failed to prepare observation insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, o := range observations {
			if _, err := stmt.ExecContext(ctx,
				o.Date.Format(forecast.DateLayout), o.Product, o.Region,
				nullFloat(o.Actual), o.Predicted, nullFloat(o.PredictedLow), nullFloat(o.PredictedHigh),
			); err != nil {
				return fmt.Errorf("failed to insert observation %s %s/%s: %w",
					o.Date.Format(forecast.DateLayout), o.Product, o.Region, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logging.L().Info("seeded observations", "rows", len(observations))
	return len(observations), nil
}

// SeedMetrics upserts model metrics rows in a single transaction.
func SeedMetrics(ctx context.Context, metrics []forecast.ModelMetrics) (int, error) {
	err := withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertMetrics)
		if err != nil {
			return fmt.Errorf("failed to prepare metrics insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, m := range metrics {
			var runID sql.NullString
			if m.RunID != "" {
				runID = sql.NullString{String: m.RunID, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				m.ModelName, m.Product, m.Region, m.MAE, m.RMSE, m.WAPE, m.Bias, runID,
			); err != nil {
				return fmt.Errorf("failed to insert metrics %s %s/%s: %w", m.ModelName, m.Product, m.Region, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logging.L().Info("seeded model metrics", "rows", len(metrics))
	return len(metrics), nil
}

// DatasetStats summarizes the stored observations.
type DatasetStats struct {
	Observations int64      `json:"observations"`
	Metrics      int64      `json:"metrics"`
	FirstDate    *time.Time `json:"first_date,omitempty"`
	LastDate     *time.Time `json:"last_date,omitempty"`
}

// GetDatasetStats counts stored rows and reports the covered date range.
func GetDatasetStats(ctx context.Context) (DatasetStats, error) {
	var stats DatasetStats
	if DB == nil {
		return stats, ErrNotConnected
	}

	var first, last sql.NullTime
	err := DB.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM forecast_observation),
			(SELECT count(*) FROM model_metrics),
			(SELECT min(obs_date) FROM forecast_observation),
			(SELECT max(obs_date) FROM forecast_observation)
	`).Scan(&stats.Observations, &stats.Metrics, &first, &last)
	if err != nil {
		return stats, fmt.Errorf("failed to query dataset stats: %w", err)
	}
	if first.Valid {
		stats.FirstDate = &first.Time
	}
	if last.Valid {
		stats.LastDate = &last.Time
	}
	return stats, nil
}

func withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if DB == nil {
		return ErrNotConnected
	}
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

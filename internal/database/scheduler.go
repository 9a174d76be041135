package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/logging"
)

const retentionInterval = 24 * time.Hour

// RetentionScheduler deletes observations older than the retention window once a day.
type RetentionScheduler struct {
	days     int
	clock    clockwork.Clock
	stopChan chan struct{}
	done     chan struct{}
}

// NewRetentionScheduler creates a scheduler keeping the last days of data.
// A zero window disables pruning.
func NewRetentionScheduler(days int, clock clockwork.Clock) *RetentionScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RetentionScheduler{
		days:     days,
		clock:    clock,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs a prune immediately and then every 24 hours until Stop.
func (rs *RetentionScheduler) Start() {
	if rs.days <= 0 {
		logging.L().Info("retention scheduler disabled")
		close(rs.done)
		return
	}
	logging.L().Info("starting retention scheduler", "retention_days", rs.days)
	go rs.loop()
}

// Stop signals the loop to exit and waits for it.
func (rs *RetentionScheduler) Stop() {
	select {
	case <-rs.stopChan:
	default:
		close(rs.stopChan)
	}
	<-rs.done
}

func (rs *RetentionScheduler) loop() {
	defer close(rs.done)

	rs.runOnce()

	ticker := rs.clock.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			rs.runOnce()
		case <-rs.stopChan:
			return
		}
	}
}

func (rs *RetentionScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := rs.Prune(ctx)
	if err != nil {
		logging.L().Warn("retention prune failed", "error", err)
		return
	}
	if deleted > 0 {
		logging.L().Info("pruned old observations", "deleted", deleted)
	}
}

// Cutoff is the oldest date kept.
func (rs *RetentionScheduler) Cutoff() time.Time {
	return forecast.Day(rs.clock.Now()).AddDate(0, 0, -rs.days)
}

// Prune removes observations dated before Cutoff.
func (rs *RetentionScheduler) Prune(ctx context.Context) (int64, error) {
	if DB == nil {
		return 0, ErrNotConnected
	}
	res, err := DB.ExecContext(ctx,
		`DELETE FROM forecast_observation WHERE obs_date < $1::date`,
		rs.Cutoff().Format(forecast.DateLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune observations: %w", err)
	}
	return res.RowsAffected()
}

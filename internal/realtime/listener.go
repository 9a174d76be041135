package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"

	"github.com/seuros/amiri/internal/database"
	"github.com/seuros/amiri/internal/logging"
	"github.com/seuros/amiri/internal/observability"
)

// ChannelName is the LISTEN/NOTIFY channel the forecast tables' triggers publish on.
const ChannelName = "amiri_forecast_changes"

// EventDataChanged tells clients to refetch their current selection.
const EventDataChanged = "data_changed"

// ChangeEvent is the message pushed to websocket clients.
type ChangeEvent struct {
	Type       string    `json:"type"`
	Table      string    `json:"table,omitempty"`
	Op         string    `json:"op,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// notification is the trigger payload.
type notification struct {
	Table string `json:"table"`
	Op    string `json:"op"`
}

// Invalidator drops derived state when the data changes.
type Invalidator interface {
	Invalidate()
}

// Listener turns database notifications into cache purges and client pushes.
type Listener struct {
	hub     *Hub
	cache   Invalidator
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewListener creates a Listener. cache and metrics may be nil.
func NewListener(hub *Hub, cache Invalidator, clock clockwork.Clock, metrics *observability.Metrics) *Listener {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Listener{hub: hub, cache: cache, clock: clock, metrics: metrics}
}

// Handle processes one notification payload. Unparseable payloads still
// count as a change.
func (l *Listener) Handle(payload string) ChangeEvent {
	event := ChangeEvent{Type: EventDataChanged, ReceivedAt: l.clock.Now().UTC()}

	var n notification
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			logging.L().Debug("unparseable change payload", "payload", payload, "error", err)
		}
	}
	event.Table, event.Op = n.Table, n.Op

	if l.metrics != nil {
		l.metrics.ChangeNotifications.Inc()
	}
	if l.cache != nil {
		l.cache.Invalidate()
	}
	if l.hub != nil {
		l.hub.Publish(event)
	}
	logging.L().Info("forecast data changed", "table", event.Table, "op", event.Op)
	return event
}

// Start subscribes to ChannelName on a dedicated connection and handles
// notifications until ctx is cancelled.
func (l *Listener) Start(ctx context.Context, databaseURL string) error {
	listener := pq.NewListener(databaseURL, 5*time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		if err != nil {
			logging.L().Warn("change listener event", "event", event, "error", err)
		}
		// Notifications sent while reconnecting are lost.
		if event == pq.ListenerEventReconnected {
			l.Handle("")
		}
	})

	if err := listener.Listen(ChannelName); err != nil {
		_ = listener.Close()
		return fmt.Errorf("listen on %s: %w", ChannelName, err)
	}
	logging.L().Info("listening for data changes", "channel", ChannelName)

	go func() {
		defer func() {
			_ = listener.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil {
					continue
				}
				l.Handle(n.Extra)
			case <-l.clock.After(time.Minute):
				if err := listener.Ping(); err != nil {
					logging.L().Warn("change listener ping failed", "error", err)
				}
			}
		}
	}()

	return nil
}

// NotifyChange publishes a change notification for table, in the same shape
// the table triggers use.
func NotifyChange(ctx context.Context, table, op string) error {
	if database.DB == nil {
		return database.ErrNotConnected
	}
	data, err := json.Marshal(notification{Table: table, Op: op})
	if err != nil {
		return err
	}
	if _, err := database.DB.ExecContext(ctx, "SELECT pg_notify($1, $2)", ChannelName, string(data)); err != nil {
		return fmt.Errorf("notify %s: %w", ChannelName, err)
	}
	return nil
}

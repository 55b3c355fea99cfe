// Package notifier fires time-based reminders: an event with a notification
// lead time becomes due that many minutes before it starts, and is delivered
// exactly once through a pluggable sink. Delivery state lives in sqlite so
// restarts don't re-notify.
package notifier

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/dayplan-app/dayplan/engine"
	"github.com/dayplan-app/dayplan/engine/db"
)

const migration = `
CREATE TABLE IF NOT EXISTS notifications (
    event_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    notified_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
) STRICT;
`

// retention bounds how long fired notifications are kept around.
const retention = 30 * 24 * time.Hour

// Sink receives notifications that are due. The default sink only logs -
// presenting reminders to the user is the client's job, via /api/notifications.
type Sink interface {
	Notify(ctx context.Context, n *Notification) error
}

type logSink struct{}

func (logSink) Notify(ctx context.Context, n *Notification) error {
	slog.Info("event notification", "eventID", n.EventID, "title", n.Title, "message", n.Message)
	return nil
}

// Notification is a reminder for one upcoming event.
type Notification struct {
	EventID    string `json:"eventId"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	NotifiedAt int64  `json:"notifiedAt,omitempty"`
}

func (n *Notification) String() string {
	return fmt.Sprintf("notification for event %s", n.EventID)
}

type Module struct {
	db   *sql.DB
	sink Sink
	now  func() time.Time
}

func New(d *sql.DB, sink Sink) *Module {
	db.MustMigrate(d, migration)
	if sink == nil {
		sink = logSink{}
	}
	return &Module{db: d, sink: sink, now: time.Now}
}

func (m *Module) AttachRoutes(router *engine.Router) {
	router.Handle("GET", "/api/notifications", m.handleListNotifications)
}

func (m *Module) AttachWorkers(mgr *engine.ProcMgr) {
	mgr.Add(engine.Poll(time.Second*15, engine.PollWorkqueue(engine.WithRateLimiting[*Notification](m, 5))))
	mgr.Add(engine.Poll(time.Hour, engine.Cleanup(m.db, "old notifications",
		"DELETE FROM notifications WHERE notified_at < strftime('%s', 'now') - ?", int64(retention.Seconds()))))
}

// GetItem finds the next event whose notification window has opened: the
// lead time has elapsed but the event hasn't started yet, and nothing has
// been sent for it before.
func (m *Module) GetItem(ctx context.Context) (*Notification, error) {
	now := m.now().Unix()
	n := &Notification{}
	var startTS int64
	var lead int
	err := m.db.QueryRowContext(ctx, `
		SELECT e.id, e.title, e.start_ts, e.notification_time FROM events e
		LEFT JOIN notifications n ON n.event_id = e.id
		WHERE n.event_id IS NULL
			AND e.notification_time > 0
			AND e.start_ts - (e.notification_time * 60) <= $1
			AND e.start_ts > $1
		ORDER BY e.start_ts
		LIMIT 1`, now).Scan(&n.EventID, &n.Title, &startTS, &lead)
	if err != nil {
		return nil, err
	}

	minutes := (startTS - now) / 60
	n.Message = fmt.Sprintf("%q starts in %d minutes", n.Title, minutes)
	return n, nil
}

func (m *Module) ProcessItem(ctx context.Context, n *Notification) error {
	return m.sink.Notify(ctx, n)
}

// UpdateItem records the notification so it never fires twice. Failed
// deliveries are recorded too: a reminder that can't be delivered inside its
// window is better dropped than retried after the event started.
func (m *Module) UpdateItem(ctx context.Context, n *Notification, success bool) error {
	_, err := m.db.ExecContext(ctx,
		"INSERT INTO notifications (event_id, title, message, notified_at) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING",
		n.EventID, n.Title, n.Message, m.now().Unix())
	return err
}

func (m *Module) handleListNotifications(r *http.Request, ps httprouter.Params) engine.Response {
	rows, err := m.db.QueryContext(r.Context(), `
		SELECT event_id, title, message, notified_at FROM notifications
		ORDER BY notified_at DESC LIMIT 50`)
	if err != nil {
		return engine.Error(err)
	}
	defer rows.Close()

	notifications := []*Notification{}
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(&n.EventID, &n.Title, &n.Message, &n.NotifiedAt); err != nil {
			return engine.Error(err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return engine.Error(err)
	}

	return engine.JSON(map[string]any{"notifications": notifications})
}

package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplan-app/dayplan/engine"
	"github.com/dayplan-app/dayplan/engine/db"
	"github.com/dayplan-app/dayplan/modules/events"
)

type fakeSink struct {
	notifications []*Notification
	err           error
}

func (f *fakeSink) Notify(ctx context.Context, n *Notification) error {
	f.notifications = append(f.notifications, n)
	return f.err
}

func seedEvent(t *testing.T, m *Module, id, title string, start time.Time, leadMinutes int) {
	t.Helper()
	_, err := m.db.Exec(`
		INSERT INTO events (
			id, series_id, title, date, start_time, end_time, start_ts,
			description, location, category, repeat_type, repeat_interval, repeat_end, notification_time
		) VALUES ($1, '', $2, $3, $4, $5, $6, '', '', '', 'none', 0, '', $7)`,
		id, title, start.Format("2006-01-02"), start.Format("15:04"),
		start.Add(time.Hour).Format("15:04"), start.Unix(), leadMinutes)
	require.NoError(t, err)
}

func newTestModule(t *testing.T) (*Module, *fakeSink) {
	d := db.OpenTest(t)
	events.New(d) // migrate the events schema this module reads
	sink := &fakeSink{}
	m := New(d, sink)
	return m, sink
}

func TestNotifierFiresInsideWindow(t *testing.T) {
	ctx := context.Background()
	m, sink := newTestModule(t)

	base := time.Date(2025, 9, 5, 12, 0, 0, 0, time.Local)
	m.now = func() time.Time { return base }

	seedEvent(t, m, "due", "Dentist", base.Add(10*time.Minute), 30)       // window open
	seedEvent(t, m, "early", "Review", base.Add(2*time.Hour), 30)         // window not open yet
	seedEvent(t, m, "started", "Standup", base.Add(-5*time.Minute), 30)   // already started
	seedEvent(t, m, "silent", "Lunch", base.Add(10*time.Minute), 0)       // no reminder requested

	poll := engine.PollWorkqueue[*Notification](m)

	// First pass processes the one due notification, second pass finds nothing
	assert.True(t, poll(ctx))
	assert.False(t, poll(ctx))

	require.Len(t, sink.notifications, 1)
	assert.Equal(t, "due", sink.notifications[0].EventID)
	assert.Equal(t, `"Dentist" starts in 10 minutes`, sink.notifications[0].Message)

	// Polling again never re-fires for the same event
	assert.False(t, poll(ctx))
	assert.Len(t, sink.notifications, 1)
}

func TestNotifierFiresOnceEvenWhenSinkFails(t *testing.T) {
	ctx := context.Background()
	m, sink := newTestModule(t)
	sink.err = context.DeadlineExceeded

	base := time.Date(2025, 9, 5, 12, 0, 0, 0, time.Local)
	m.now = func() time.Time { return base }
	seedEvent(t, m, "due", "Dentist", base.Add(10*time.Minute), 30)

	poll := engine.PollWorkqueue[*Notification](m)
	assert.True(t, poll(ctx))
	assert.False(t, poll(ctx))

	// The failed delivery is recorded rather than retried: retrying after the
	// event starts would be worse than dropping the reminder.
	var count int
	require.NoError(t, m.db.QueryRow("SELECT COUNT(*) FROM notifications").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNotificationsAPI(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestModule(t)

	base := time.Date(2025, 9, 5, 12, 0, 0, 0, time.Local)
	m.now = func() time.Time { return base }
	seedEvent(t, m, "due", "Dentist", base.Add(10*time.Minute), 30)

	router := engine.NewRouter()
	m.AttachRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	e := httpexpect.Default(t, server.URL)

	e.GET("/api/notifications").
		Expect().
		Status(http.StatusOK).JSON().Object().Value("notifications").Array().IsEmpty()

	engine.PollWorkqueue[*Notification](m)(ctx)

	list := e.GET("/api/notifications").
		Expect().
		Status(http.StatusOK).JSON().Object().Value("notifications").Array()
	list.Length().IsEqual(1)
	obj := list.Value(0).Object()
	obj.Value("eventId").IsEqual("due")
	obj.Value("message").IsEqual(`"Dentist" starts in 10 minutes`)
	obj.Value("notifiedAt").Number().Gt(0)
}

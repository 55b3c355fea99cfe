// Package events implements event management: CRUD over sqlite, server-side
// expansion of recurring series, the overlap confirmation gate, search, seed
// fixtures, and the iCal feed. The scheduling decisions themselves live in the
// calendar package - this module feeds it data and persists what comes back.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/dayplan-app/dayplan/calendar"
	"github.com/dayplan-app/dayplan/engine"
	"github.com/dayplan-app/dayplan/engine/db"
)

const migration = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    series_id TEXT NOT NULL DEFAULT '',
    created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    title TEXT NOT NULL,
    date TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT NOT NULL,
    start_ts INTEGER NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    repeat_type TEXT NOT NULL DEFAULT 'none',
    repeat_interval INTEGER NOT NULL DEFAULT 0,
    repeat_end TEXT NOT NULL DEFAULT '',
    notification_time INTEGER NOT NULL DEFAULT 0
) STRICT;

CREATE INDEX IF NOT EXISTS events_date_idx ON events(date);
CREATE INDEX IF NOT EXISTS events_series_idx ON events(series_id);
CREATE INDEX IF NOT EXISTS events_start_ts_idx ON events(start_ts);
`

const (
	// seriesLimit caps how many instances one series may materialize.
	seriesLimit = 500

	// fallbackHorizonYears bounds series whose rule has no end date.
	fallbackHorizonYears = 2
)

const eventColumns = `id, series_id, title, date, start_time, end_time, description, location, category, repeat_type, repeat_interval, repeat_end, notification_time`

type Module struct {
	db *sql.DB
}

func New(d *sql.DB) *Module {
	db.MustMigrate(d, migration)
	return &Module{db: d}
}

func (m *Module) AttachRoutes(router *engine.Router) {
	router.Handle("GET", "/api/events", m.handleListEvents)
	router.Handle("POST", "/api/events", m.handleCreateEvent)
	router.Handle("POST", "/api/events-list", m.handleCreateSeries)
	router.Handle("PUT", "/api/events/:id", m.handleUpdateEvent)
	router.Handle("DELETE", "/api/events/:id", m.handleDeleteEvent)
	router.Handle("GET", "/ical", m.handleICalFeed)
}

type eventList struct {
	Events []calendar.Event `json:"events"`
}

// conflictList is the 409 body: the events the candidate would collide with.
// The client shows them and may retry the same request with force=true.
type conflictList struct {
	Message  string           `json:"message"`
	Overlaps []calendar.Event `json:"overlaps"`
}

func (m *Module) handleListEvents(r *http.Request, ps httprouter.Params) engine.Response {
	query := r.URL.Query()
	from, to := query.Get("from"), query.Get("to")
	for _, bound := range []string{from, to} {
		if bound == "" {
			continue
		}
		if _, err := calendar.ParseDate(bound); err != nil {
			return engine.ClientErrorf("invalid date bound: %s", err)
		}
	}

	events, err := m.queryEvents(r.Context(), from, to)
	if err != nil {
		return engine.Error(err)
	}

	if q := query.Get("q"); q != "" {
		events = filterEvents(events, q)
	}
	return engine.JSON(&eventList{Events: events})
}

func (m *Module) handleCreateEvent(r *http.Request, ps httprouter.Params) engine.Response {
	event, err := decodeEvent(r)
	if err != nil {
		return engine.ClientErrorf("invalid event: %s", err)
	}
	event.ID = ""

	if resp := m.overlapGate(r, event, ""); resp != nil {
		return resp
	}

	event.ID = uuid.NewString()
	if err := m.insertEvent(r.Context(), m.db, event, ""); err != nil {
		return engine.Error(err)
	}
	return engine.JSONStatus(http.StatusCreated, &event)
}

func (m *Module) handleCreateSeries(r *http.Request, ps httprouter.Params) engine.Response {
	seed, err := decodeEvent(r)
	if err != nil {
		return engine.ClientErrorf("invalid event: %s", err)
	}
	if !seed.Repeat.Recurring() {
		return engine.ClientErrorf("event does not recur - use POST /api/events instead")
	}
	seed.ID = ""

	instances, err := m.expandSeries(seed)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidRule) || errors.Is(err, calendar.ErrMalformedTime) {
			return engine.ClientErrorf("invalid recurrence: %s", err)
		}
		return engine.Error(err)
	}

	seriesID := uuid.NewString()
	created, err := m.replaceSeries(r.Context(), seriesID, instances)
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSONStatus(http.StatusCreated, &eventList{Events: created})
}

func (m *Module) handleUpdateEvent(r *http.Request, ps httprouter.Params) engine.Response {
	id := ps.ByName("id")
	_, seriesID, err := m.queryEventByID(r.Context(), id)
	if err == sql.ErrNoRows {
		return engine.NotFoundf("event not found")
	}
	if err != nil {
		return engine.Error(err)
	}

	event, err := decodeEvent(r)
	if err != nil {
		return engine.ClientErrorf("invalid event: %s", err)
	}

	switch applyTo(r) {
	case "this":
		return m.updateInstance(r, id, event)
	case "series":
		if seriesID == "" {
			return engine.ClientErrorf("event is not part of a recurring series")
		}
		return m.updateSeries(r, seriesID, event)
	default:
		return engine.ClientErrorf("applyTo must be 'this' or 'series'")
	}
}

// updateInstance rewrites a single event. If it belonged to a series it is
// detached: the stored instance stops recurring while its siblings remain.
func (m *Module) updateInstance(r *http.Request, id string, event calendar.Event) engine.Response {
	event.ID = id
	if resp := m.overlapGate(r, event, ""); resp != nil {
		return resp
	}

	event.Repeat = calendar.RepeatRule{Type: calendar.RepeatNone, Interval: 0}
	startTS, err := startTimestamp(event)
	if err != nil {
		return engine.Error(err)
	}

	_, err = m.db.ExecContext(r.Context(), `
		UPDATE events SET
			series_id = '', title = $1, date = $2, start_time = $3, end_time = $4, start_ts = $5,
			description = $6, location = $7, category = $8,
			repeat_type = 'none', repeat_interval = 0, repeat_end = '', notification_time = $9
		WHERE id = $10`,
		event.Title, event.Date, event.StartTime, event.EndTime, startTS,
		event.Description, event.Location, event.Category, event.NotificationTime, id)
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(&event)
}

// updateSeries re-expands the series from the submitted event and replaces
// every sibling instance with the new expansion.
func (m *Module) updateSeries(r *http.Request, seriesID string, seed calendar.Event) engine.Response {
	if !seed.Repeat.Recurring() {
		return engine.ClientErrorf("a series update requires a recurring repeat rule")
	}
	seed.ID = ""

	instances, err := m.expandSeries(seed)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidRule) || errors.Is(err, calendar.ErrMalformedTime) {
			return engine.ClientErrorf("invalid recurrence: %s", err)
		}
		return engine.Error(err)
	}

	if r.URL.Query().Get("force") != "true" {
		var conflicts []calendar.Event
		for _, instance := range instances {
			found, err := m.findConflicts(r.Context(), instance, seriesID)
			if err != nil {
				return engine.Error(err)
			}
			conflicts = append(conflicts, found...)
		}
		if len(conflicts) > 0 {
			return engine.JSONStatus(http.StatusConflict, &conflictList{
				Message:  "the updated series overlaps existing events",
				Overlaps: conflicts,
			})
		}
	}

	created, err := m.replaceSeries(r.Context(), seriesID, instances)
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(&eventList{Events: created})
}

func (m *Module) handleDeleteEvent(r *http.Request, ps httprouter.Params) engine.Response {
	id := ps.ByName("id")
	_, seriesID, err := m.queryEventByID(r.Context(), id)
	if err == sql.ErrNoRows {
		return engine.NotFoundf("event not found")
	}
	if err != nil {
		return engine.Error(err)
	}

	switch applyTo(r) {
	case "this":
		_, err = m.db.ExecContext(r.Context(), "DELETE FROM events WHERE id = $1", id)
	case "series":
		if seriesID == "" {
			_, err = m.db.ExecContext(r.Context(), "DELETE FROM events WHERE id = $1", id)
		} else {
			_, err = m.db.ExecContext(r.Context(), "DELETE FROM events WHERE series_id = $1", seriesID)
		}
	default:
		return engine.ClientErrorf("applyTo must be 'this' or 'series'")
	}
	if err != nil {
		return engine.Error(err)
	}
	return engine.Empty()
}

// overlapGate returns a 409 Response listing the events the candidate
// overlaps, or nil when the write may proceed (no conflicts, or the client
// confirmed with force=true). The candidate's own ID - and optionally a whole
// series - is excluded from consideration.
func (m *Module) overlapGate(r *http.Request, candidate calendar.Event, excludeSeries string) engine.Response {
	if r.URL.Query().Get("force") == "true" {
		return nil
	}
	conflicts, err := m.findConflicts(r.Context(), candidate, excludeSeries)
	if err != nil {
		return engine.Error(err)
	}
	if len(conflicts) == 0 {
		return nil
	}
	return engine.JSONStatus(http.StatusConflict, &conflictList{
		Message:  "the event overlaps existing events",
		Overlaps: conflicts,
	})
}

func (m *Module) findConflicts(ctx context.Context, candidate calendar.Event, excludeSeries string) ([]calendar.Event, error) {
	existing, err := m.queryEventsByDate(ctx, candidate.Date, excludeSeries)
	if err != nil {
		return nil, err
	}
	return calendar.FindOverlaps(candidate, existing), nil
}

func (m *Module) expandSeries(seed calendar.Event) ([]calendar.Event, error) {
	opts := calendar.ExpandOptions{Limit: seriesLimit}
	if seed.Repeat.EndDate == "" {
		// Open-ended rules are bounded by a fixed horizon past the anchor.
		// The day is carried over as-is: the horizon is only compared
		// against, never emitted, so Feb 29 anchors are fine.
		anchor, err := calendar.ParseDate(seed.Date)
		if err != nil {
			return nil, err
		}
		opts.Horizon = calendar.Date{Year: anchor.Year + fallbackHorizonYears, Month: anchor.Month, Day: anchor.Day}
	}
	return calendar.Expand(seed, opts)
}

// replaceSeries atomically swaps the stored instances of a series for the
// given expansion, assigning fresh IDs.
func (m *Module) replaceSeries(ctx context.Context, seriesID string, instances []calendar.Event) ([]calendar.Event, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE series_id = $1", seriesID); err != nil {
		return nil, err
	}

	created := make([]calendar.Event, 0, len(instances))
	for _, instance := range instances {
		instance.ID = uuid.NewString()
		if err := m.insertEvent(ctx, tx, instance, seriesID); err != nil {
			return nil, err
		}
		created = append(created, instance)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (m *Module) insertEvent(ctx context.Context, db execer, event calendar.Event, seriesID string) error {
	startTS, err := startTimestamp(event)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO events (
			id, series_id, title, date, start_time, end_time, start_ts,
			description, location, category,
			repeat_type, repeat_interval, repeat_end, notification_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		event.ID, seriesID, event.Title, event.Date, event.StartTime, event.EndTime, startTS,
		event.Description, event.Location, event.Category,
		string(event.Repeat.Type), event.Repeat.Interval, event.Repeat.EndDate, event.NotificationTime)
	return err
}

func (m *Module) queryEvents(ctx context.Context, from, to string) ([]calendar.Event, error) {
	query := "SELECT " + eventColumns + " FROM events"
	var clauses []string
	var args []any
	if from != "" {
		clauses = append(clauses, "date >= ?")
		args = append(args, from)
	}
	if to != "" {
		clauses = append(clauses, "date <= ?")
		args = append(args, to)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date, start_time, created"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (m *Module) queryEventsByDate(ctx context.Context, date, excludeSeries string) ([]calendar.Event, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE date = $1 AND ($2 = '' OR series_id != $2)
		ORDER BY date, start_time, created`, date, excludeSeries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (m *Module) queryEventByID(ctx context.Context, id string) (calendar.Event, string, error) {
	row := m.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = $1", id)
	return scanEvent(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (calendar.Event, string, error) {
	var e calendar.Event
	var seriesID, repeatType string
	err := s.Scan(&e.ID, &seriesID, &e.Title, &e.Date, &e.StartTime, &e.EndTime,
		&e.Description, &e.Location, &e.Category,
		&repeatType, &e.Repeat.Interval, &e.Repeat.EndDate, &e.NotificationTime)
	e.Repeat.Type = calendar.RepeatType(repeatType)
	return e, seriesID, err
}

func scanEvents(rows *sql.Rows) ([]calendar.Event, error) {
	events := []calendar.Event{}
	for rows.Next() {
		e, _, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// decodeEvent parses and validates the request body. Validation here is the
// boundary's job: by the time an event reaches the calendar package its dates
// and times are well-formed and start precedes end.
func decodeEvent(r *http.Request) (calendar.Event, error) {
	var event calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		return event, err
	}
	if event.Repeat.Type == "" {
		event.Repeat.Type = calendar.RepeatNone
	}
	return event, validateEvent(event)
}

func validateEvent(e calendar.Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("title is required")
	}
	if _, err := calendar.ParseDate(e.Date); err != nil {
		return err
	}
	if _, err := calendar.ParseClock(e.StartTime); err != nil {
		return err
	}
	if _, err := calendar.ParseClock(e.EndTime); err != nil {
		return err
	}
	if e.StartTime >= e.EndTime {
		return fmt.Errorf("startTime %q must be before endTime %q", e.StartTime, e.EndTime)
	}
	if e.NotificationTime < 0 {
		return errors.New("notificationTime must not be negative")
	}
	return nil
}

// startTimestamp converts the event's date + start time into a local unix
// timestamp, which the notifier compares against the clock.
func startTimestamp(e calendar.Event) (int64, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", e.Date+" "+e.StartTime, time.Local)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", calendar.ErrMalformedTime, err)
	}
	return t.Unix(), nil
}

func applyTo(r *http.Request) string {
	v := r.URL.Query().Get("applyTo")
	if v == "" {
		return "this"
	}
	return v
}

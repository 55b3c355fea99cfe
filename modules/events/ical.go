package events

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/julienschmidt/httprouter"
	"github.com/teambition/rrule-go"

	"github.com/dayplan-app/dayplan/calendar"
	"github.com/dayplan-app/dayplan/engine"
)

// handleICalFeed serves all events as an iCal feed. Recurring series are
// collapsed back into a single VEVENT with an RRULE so subscribing clients
// expand them natively instead of seeing hundreds of detached copies.
func (m *Module) handleICalFeed(r *http.Request, ps httprouter.Params) engine.Response {
	rows, err := m.db.QueryContext(r.Context(), `
		SELECT `+eventColumns+` FROM events ORDER BY date, start_time, created`)
	if err != nil {
		return engine.Error(err)
	}
	defer rows.Close()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Dayplan//Calendar//EN")
	cal.SetCalscale("GREGORIAN")

	// Rows are date-ordered, so the first instance seen for a series is its
	// anchor; later siblings are skipped.
	seenSeries := map[string]bool{}
	for rows.Next() {
		event, seriesID, err := scanEvent(rows)
		if err != nil {
			return engine.Error(err)
		}
		if seriesID != "" {
			if seenSeries[seriesID] {
				continue
			}
			seenSeries[seriesID] = true
		}
		if err := addFeedEvent(cal, event, seriesID); err != nil {
			return engine.Error(err)
		}
	}
	if err := rows.Err(); err != nil {
		return engine.Error(err)
	}

	serialized := cal.Serialize()
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=events.ics")
		fmt.Fprint(w, serialized)
	}
}

func addFeedEvent(cal *ics.Calendar, event calendar.Event, seriesID string) error {
	start, err := time.ParseInLocation("2006-01-02 15:04", event.Date+" "+event.StartTime, time.Local)
	if err != nil {
		return err
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", event.Date+" "+event.EndTime, time.Local)
	if err != nil {
		return err
	}

	ve := cal.AddEvent(fmt.Sprintf("event-%s@dayplan", event.ID))
	ve.SetDtStampTime(time.Now())
	ve.SetStartAt(start)
	ve.SetEndAt(end)
	ve.SetSummary(event.Title)
	if event.Description != "" {
		ve.SetDescription(event.Description)
	}
	if event.Location != "" {
		ve.SetLocation(event.Location)
	}

	if seriesID != "" && event.Repeat.Recurring() {
		if rule := buildRRule(event.Repeat, start); rule != "" {
			ve.AddRrule(rule)
		}
	}
	return nil
}

// buildRRule renders the repeat rule as an RRULE property value. The RFC 5545
// default for a monthly rule anchored on day 31 (or a yearly rule anchored on
// Feb 29) is to skip months/years lacking that day, which matches how the
// stored series was expanded.
func buildRRule(rule calendar.RepeatRule, start time.Time) string {
	opt := rrule.ROption{Interval: rule.Interval, Dtstart: start}
	switch rule.Type {
	case calendar.RepeatDaily:
		opt.Freq = rrule.DAILY
	case calendar.RepeatWeekly:
		opt.Freq = rrule.WEEKLY
	case calendar.RepeatMonthly:
		opt.Freq = rrule.MONTHLY
	case calendar.RepeatYearly:
		opt.Freq = rrule.YEARLY
	default:
		return ""
	}

	if rule.EndDate != "" {
		until, err := calendar.ParseDate(rule.EndDate)
		if err == nil {
			opt.Until = time.Date(until.Year, time.Month(until.Month), until.Day, 23, 59, 59, 0, time.Local)
		}
	}

	rr, err := rrule.NewRRule(opt)
	if err != nil {
		slog.Error("failed to build RRULE for feed", "error", err, "type", rule.Type)
		return ""
	}
	return rr.String()
}

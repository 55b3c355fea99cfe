package calendar

import (
	"errors"
	"fmt"
)

// ErrInvalidRule indicates a recurrence rule that violates the expansion
// contract: non-positive interval, a non-recurring type, or no upper bound.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// maxInstances is a hard safety cap on the number of generated instances,
// applied regardless of what the caller asks for.
const maxInstances = 1000

// ExpandOptions bounds expansion when the rule itself has no end date.
// At least one of Horizon or Limit must be set in that case - expansion is
// never unbounded.
type ExpandOptions struct {
	// Horizon is a fallback inclusive end date used when the rule has none.
	Horizon Date

	// Limit caps the number of generated instances (including the seed).
	// Values above the package's hard cap are clamped down to it.
	Limit int
}

// Expand materializes a recurring seed event into its full series: one event
// per generated date, in ascending date order, the seed's own date first.
// Every instance carries the seed's fields (including the repeat rule)
// unchanged except for the date. IDs are never set - persistence assigns them.
func Expand(seed Event, opts ExpandOptions) ([]Event, error) {
	start, err := ParseDate(seed.Date)
	if err != nil {
		return nil, err
	}

	dates, err := ExpandDates(start, seed.Repeat, opts)
	if err != nil {
		return nil, err
	}

	instances := make([]Event, 0, len(dates))
	for _, d := range dates {
		instance := seed
		instance.ID = ""
		instance.Date = d.String()
		instances = append(instances, instance)
	}
	return instances, nil
}

// ExpandDates generates the ascending sequence of dates described by the rule,
// starting at (and always including) the given anchor date.
//
// Monthly and yearly rules keep the anchor's day-of-month: when a target month
// does not have that day (day 31 in a 30-day month, Feb 29 in a non-leap
// year), the occurrence is skipped entirely rather than clamped to the end of
// the month, and the sequence keeps stepping from the original anchor.
func ExpandDates(start Date, rule RepeatRule, opts ExpandOptions) ([]Date, error) {
	switch rule.Type {
	case RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
	case RepeatNone, "":
		return nil, fmt.Errorf("%w: type %q does not recur", ErrInvalidRule, rule.Type)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidRule, rule.Type)
	}
	if rule.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidRule, rule.Interval)
	}

	end, bounded, err := expansionEnd(rule, opts)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 || limit > maxInstances {
		limit = maxInstances
	}
	if !bounded && opts.Limit <= 0 {
		return nil, fmt.Errorf("%w: no end date and no expansion cap supplied", ErrInvalidRule)
	}

	dates := []Date{start}

	switch rule.Type {
	case RepeatDaily, RepeatWeekly:
		step := rule.Interval
		if rule.Type == RepeatWeekly {
			step *= 7
		}
		for cur := start.AddDays(step); ; cur = cur.AddDays(step) {
			if bounded && cur.After(end) {
				break
			}
			if len(dates) >= limit {
				break
			}
			dates = append(dates, cur)
		}

	case RepeatMonthly:
		for i := rule.Interval; ; i += rule.Interval {
			year, month := addMonths(start.Year, start.Month, i)
			if bounded && (Date{Year: year, Month: month, Day: 1}).After(end) {
				break
			}
			if start.Day > daysInMonth(year, month) {
				continue // this month has no such day; skip, don't clamp
			}
			cur := Date{Year: year, Month: month, Day: start.Day}
			if bounded && cur.After(end) {
				break
			}
			if len(dates) >= limit {
				break
			}
			dates = append(dates, cur)
		}

	case RepeatYearly:
		for i := rule.Interval; ; i += rule.Interval {
			year := start.Year + i
			if bounded && (Date{Year: year, Month: start.Month, Day: 1}).After(end) {
				break
			}
			if start.Day > daysInMonth(year, start.Month) {
				continue // Feb 29 anchor in a non-leap year; skip, don't clamp
			}
			cur := Date{Year: year, Month: start.Month, Day: start.Day}
			if bounded && cur.After(end) {
				break
			}
			if len(dates) >= limit {
				break
			}
			dates = append(dates, cur)
		}
	}

	return dates, nil
}

// expansionEnd resolves the inclusive end date of the series: the rule's own
// end date when present, otherwise the caller's fallback horizon.
func expansionEnd(rule RepeatRule, opts ExpandOptions) (Date, bool, error) {
	if rule.EndDate != "" {
		end, err := ParseDate(rule.EndDate)
		if err != nil {
			return Date{}, false, err
		}
		return end, true, nil
	}
	if !opts.Horizon.IsZero() {
		return opts.Horizon, true, nil
	}
	return Date{}, false, nil
}

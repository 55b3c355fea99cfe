package events

import (
	"strings"

	"github.com/dayplan-app/dayplan/calendar"
)

// filterEvents returns the events matching the search term, preserving order.
// The match is a case-insensitive substring check over title, description,
// and location - the same fields the client's search box covers.
func filterEvents(events []calendar.Event, term string) []calendar.Event {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return events
	}

	matched := []calendar.Event{}
	for _, e := range events {
		if matchesSearch(e, needle) {
			matched = append(matched, e)
		}
	}
	return matched
}

func matchesSearch(e calendar.Event, needle string) bool {
	return strings.Contains(strings.ToLower(e.Title), needle) ||
		strings.Contains(strings.ToLower(e.Description), needle) ||
		strings.Contains(strings.ToLower(e.Location), needle)
}

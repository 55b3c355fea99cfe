package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func span(id, date, start, end string) Event {
	return Event{ID: id, Date: date, StartTime: start, EndTime: end}
}

func TestFindOverlaps(t *testing.T) {
	existing := []Event{
		span("a", "2025-09-05", "14:00", "15:00"),
		span("b", "2025-09-05", "16:00", "17:00"),
		span("c", "2025-09-06", "14:00", "15:00"),
	}

	got := FindOverlaps(span("", "2025-09-05", "14:30", "15:30"), existing)
	assert.Equal(t, []Event{existing[0]}, got)

	// Same times on a different date never overlap
	got = FindOverlaps(span("", "2025-09-07", "14:30", "15:30"), existing)
	assert.Empty(t, got)

	// Containment counts as overlap in both directions
	got = FindOverlaps(span("", "2025-09-05", "13:00", "18:00"), existing)
	assert.Equal(t, []Event{existing[0], existing[1]}, got)
	got = FindOverlaps(span("", "2025-09-05", "14:15", "14:45"), existing)
	assert.Equal(t, []Event{existing[0]}, got)
}

func TestFindOverlapsHalfOpenBoundary(t *testing.T) {
	existing := []Event{span("b", "2025-09-05", "10:00", "11:00")}

	// Back-to-back events touch but do not overlap
	assert.Empty(t, FindOverlaps(span("", "2025-09-05", "09:00", "10:00"), existing))
	assert.Empty(t, FindOverlaps(span("", "2025-09-05", "11:00", "12:00"), existing))

	// One minute of intersection is enough
	assert.Len(t, FindOverlaps(span("", "2025-09-05", "09:00", "10:01"), existing), 1)
	assert.Len(t, FindOverlaps(span("", "2025-09-05", "10:59", "12:00"), existing), 1)
}

func TestFindOverlapsExcludesSelf(t *testing.T) {
	existing := []Event{
		span("a", "2025-09-05", "14:00", "15:00"),
		span("b", "2025-09-05", "14:00", "15:00"),
	}

	// Re-submitting an event unchanged must not conflict with its own stored
	// version, but still conflicts with everything else in the slot.
	got := FindOverlaps(span("a", "2025-09-05", "14:00", "15:00"), existing)
	assert.Equal(t, []Event{existing[1]}, got)

	// A new event (no ID yet) gets no exclusion at all
	got = FindOverlaps(span("", "2025-09-05", "14:00", "15:00"), existing)
	assert.Equal(t, existing, got)
}

func TestFindOverlapsStableOrder(t *testing.T) {
	existing := []Event{
		span("c", "2025-09-05", "14:40", "15:40"),
		span("a", "2025-09-05", "14:00", "15:00"),
		span("b", "2025-09-05", "14:20", "15:20"),
	}

	candidate := span("", "2025-09-05", "14:30", "15:30")
	first := FindOverlaps(candidate, existing)
	assert.Equal(t, []Event{existing[0], existing[1], existing[2]}, first)

	// Determinism: same input, same output
	assert.Equal(t, first, FindOverlaps(candidate, existing))
}

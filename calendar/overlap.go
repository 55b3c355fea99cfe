package calendar

// FindOverlaps returns the subset of existing events whose time span
// intersects the candidate's, preserving the input order.
//
// Two events overlap iff they fall on the same date and their [start, end)
// half-open intervals intersect - events that merely touch at a boundary
// (one ends exactly when the other starts) do not overlap, so back-to-back
// scheduling is allowed. Times compare lexicographically, which matches
// wall-clock order for zero-padded HH:MM strings within a single day.
//
// When the candidate has an ID (an edit-in-place check), its own stored
// version is excluded so an event never conflicts with itself.
func FindOverlaps(candidate Event, existing []Event) []Event {
	var overlapping []Event
	for _, other := range existing {
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if other.Date != candidate.Date {
			continue
		}
		if candidate.StartTime < other.EndTime && other.StartTime < candidate.EndTime {
			overlapping = append(overlapping, other)
		}
	}
	return overlapping
}

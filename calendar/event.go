package calendar

// RepeatType enumerates the supported recurrence frequencies.
type RepeatType string

const (
	RepeatNone    RepeatType = "none"
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
	RepeatYearly  RepeatType = "yearly"
)

// RepeatRule describes how an event recurs. Interval is the step count in the
// rule's unit (every N days/weeks/months/years). EndDate, when set, is the
// inclusive upper bound of the generated series.
type RepeatRule struct {
	Type     RepeatType `json:"type"`
	Interval int        `json:"interval"`
	EndDate  string     `json:"endDate,omitempty"`
}

// Recurring reports whether the rule describes an actual series.
func (r RepeatRule) Recurring() bool {
	return r.Type != "" && r.Type != RepeatNone && r.Interval > 0
}

// Event is the canonical calendar entry. Date is the anchor day of this
// specific instance ("YYYY-MM-DD"); StartTime/EndTime are wall-clock times on
// that day ("HH:MM", 24h). ID is assigned at persist time and empty on
// unsaved candidates. Title, description, location, and category are opaque
// to this package.
type Event struct {
	ID               string     `json:"id,omitempty"`
	Title            string     `json:"title"`
	Date             string     `json:"date"`
	StartTime        string     `json:"startTime"`
	EndTime          string     `json:"endTime"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	Category         string     `json:"category"`
	Repeat           RepeatRule `json:"repeat"`
	NotificationTime int        `json:"notificationTime"`
}

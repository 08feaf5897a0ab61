package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// WINDOW - Inclusive day-precision report boundary
// =============================================================================

// Window is the time boundary a report is computed over. Start is the
// first instant of the first day, End the last instant of the last day.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t falls within the window [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return "[" + w.Start.Format("2006-01-02") + ", " + w.End.Format("2006-01-02") + "]"
}

// =============================================================================
// WINDOW RESOLUTION
// =============================================================================

// WindowQuery selects exactly one window form.
type WindowQuery struct {
	Month     string // "2025-03"
	Week      string // ISO week, "2025-W12"
	StartDate string // "2025-03-01", paired with EndDate
	EndDate   string
}

// ResolveWindow turns a query into a concrete window.
//
// Forms:
//   Month               -> full calendar month
//   Week                -> ISO calendar week, Monday through Sunday
//   StartDate + EndDate -> start-of-day(start) to end-of-day(end)
//
// Exactly one form must be supplied; anything else is a ValidationError.
func ResolveWindow(q WindowQuery) (Window, error) {
	supplied := 0
	if q.Month != "" {
		supplied++
	}
	if q.Week != "" {
		supplied++
	}
	if q.StartDate != "" || q.EndDate != "" {
		supplied++
	}
	if supplied != 1 {
		return Window{}, &ValidationError{
			Field:  "window",
			Reason: "exactly one of month, week, or startDate+endDate is required",
		}
	}

	switch {
	case q.Month != "":
		return MonthWindow(q.Month)
	case q.Week != "":
		return weekWindow(q.Week)
	default:
		return rangeWindow(q.StartDate, q.EndDate)
	}
}

// MonthWindow resolves a "YYYY-MM" key to its full calendar month.
// Shared by the report engine and the snapshot cache so both agree on
// month boundaries.
func MonthWindow(month string) (Window, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return Window{}, &ValidationError{Field: "month", Reason: "must be YYYY-MM"}
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := endOfDay(start.AddDate(0, 1, -1))
	return Window{Start: start, End: end}, nil
}

func weekWindow(week string) (Window, error) {
	parts := strings.SplitN(week, "-W", 2)
	if len(parts) != 2 {
		return Window{}, &ValidationError{Field: "week", Reason: "must be YYYY-Www"}
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return Window{}, &ValidationError{Field: "week", Reason: "must be YYYY-Www"}
	}
	wk, err := strconv.Atoi(parts[1])
	if err != nil || wk < 1 || wk > 53 {
		return Window{}, &ValidationError{Field: "week", Reason: "week number out of range"}
	}

	monday := isoWeekStart(year, wk)
	if y, w := monday.ISOWeek(); y != year || w != wk {
		// Week 53 requested in a 52-week year.
		return Window{}, &ValidationError{Field: "week", Reason: fmt.Sprintf("%d has no week %d", year, wk)}
	}
	return Window{Start: monday, End: endOfDay(monday.AddDate(0, 0, 6))}, nil
}

// isoWeekStart returns the Monday of the given ISO-8601 week.
// January 4th is always in week 1.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

func rangeWindow(startDate, endDate string) (Window, error) {
	if startDate == "" || endDate == "" {
		return Window{}, &ValidationError{
			Field:  "window",
			Reason: "startDate and endDate must be supplied together",
		}
	}
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return Window{}, &ValidationError{Field: "startDate", Reason: "must be YYYY-MM-DD"}
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return Window{}, &ValidationError{Field: "endDate", Reason: "must be YYYY-MM-DD"}
	}
	if end.Before(start) {
		return Window{}, &ValidationError{Field: "endDate", Reason: "endDate before startDate"}
	}
	return Window{Start: start, End: endOfDay(end)}, nil
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

package logquery

import "time"

// Window is a half-open UTC time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// ResolveWindow implements spec.md section 4.2's time-window resolution: an
// explicit date (and optional end_date) selects that UTC day (or day range);
// omitted dates default to the last 24 hours ending now. A date paired with
// time/end_time narrows the window within the day(s) instead of using
// midnight-to-midnight.
func ResolveWindow(date, timeOfDay, endDate, endTimeOfDay string, now time.Time) (Window, error) {
	now = now.UTC()

	if date == "" {
		return Window{Start: now.Add(-24 * time.Hour), End: now}, nil
	}

	start, err := parseDateTime(date, timeOfDay, "00:00:00")
	if err != nil {
		return Window{}, err
	}

	endDateStr := endDate
	if endDateStr == "" {
		endDateStr = date
	}
	defaultEndTime := "00:00:00"
	if endDate == "" && endTimeOfDay == "" {
		// Same-day default: end is the start of the following day.
		end := start.Add(24 * time.Hour)
		return Window{Start: start, End: end}, nil
	}
	end, err := parseDateTime(endDateStr, endTimeOfDay, defaultEndTime)
	if err != nil {
		return Window{}, err
	}
	if endDate == date && endTimeOfDay == "" {
		end = start.Add(24 * time.Hour)
	}
	return Window{Start: start, End: end}, nil
}

func parseDateTime(date, timeOfDay, defaultTime string) (time.Time, error) {
	t := timeOfDay
	if t == "" {
		t = defaultTime
	}
	layout := "2006-01-02 15:04:05"
	return time.Parse(layout, date+" "+t)
}

package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
)

// ErrInvalidTimeRange is returned for a range outside the recognised set.
var ErrInvalidTimeRange = errors.New("invalid time range")

// TimeRange is a dashboard reporting window.
type TimeRange string

const (
	Range24h       TimeRange = "24h"
	Range7d        TimeRange = "7d"
	Range30d       TimeRange = "30d"
	RangeLastMonth TimeRange = "lastMonth"
)

// TimeRanges lists the recognised ranges.
var TimeRanges = []TimeRange{Range24h, Range7d, Range30d, RangeLastMonth}

// ParseTimeRange validates a raw range argument.
func ParseTimeRange(s string) (TimeRange, error) {
	for _, tr := range TimeRanges {
		if string(tr) == s {
			return tr, nil
		}
	}
	return "", fmt.Errorf("%w: %q (expected one of 24h, 7d, 30d, lastMonth)", ErrInvalidTimeRange, s)
}

// Windows are the intervals a cost summary compares.
type Windows struct {
	// Current is the reported window.
	Current Window `json:"current"`
	// Preceding is the window of equal length immediately before Current.
	Preceding Window `json:"preceding"`
	// SameDayLastMonth runs from the start of the prior calendar month up to
	// the current day-of-month cutoff (exclusive).
	SameDayLastMonth Window `json:"sameDayLastMonth"`
	// PriorMonth is the full calendar month before the reference month.
	PriorMonth Window `json:"priorMonth"`
	// Granularity of the current and preceding windows.
	Granularity analytics.Granularity `json:"granularity"`
	// DaysInMonth is the length of the month containing now.
	DaysInMonth int `json:"daysInMonth"`
}

// ResolveWindows computes the comparison windows for tr at now. All times are UTC.
func ResolveWindows(tr TimeRange, now time.Time) (Windows, error) {
	now = now.UTC()
	thisMonth := monthStart(now)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	w := Windows{
		Granularity: analytics.GranularityDaily,
		DaysInMonth: analytics.DaysInMonth(now),
	}

	switch tr {
	case Range24h:
		w.Current = Window{Start: now.Add(-24 * time.Hour), End: now}
		w.Granularity = analytics.GranularityHourly
	case Range7d:
		w.Current = Window{Start: now.AddDate(0, 0, -7), End: now}
	case Range30d:
		w.Current = Window{Start: thisMonth, End: now}
	case RangeLastMonth:
		w.Current = Window{Start: lastMonth, End: thisMonth}
	default:
		return Windows{}, fmt.Errorf("%w: %q", ErrInvalidTimeRange, tr)
	}
	w.Preceding = w.Current.Preceding()

	if tr == RangeLastMonth {
		// The reported month is already complete, so the cutoff is the whole month.
		prior := Window{Start: lastMonth.AddDate(0, -1, 0), End: lastMonth}
		w.SameDayLastMonth = prior
		w.PriorMonth = prior
		return w, nil
	}

	day := now.Day()
	if limit := analytics.DaysInMonth(lastMonth); day > limit {
		day = limit
	}
	// On the 1st this window is empty, so the total spend trend is Neutral all day.
	w.SameDayLastMonth = Window{Start: lastMonth, End: lastMonth.AddDate(0, 0, day-1)}
	w.PriorMonth = Window{Start: lastMonth, End: thisMonth}
	return w, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

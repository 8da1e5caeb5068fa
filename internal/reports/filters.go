package reports

import (
	"errors"
	"time"
)

// GetDateRange resolves a preset or custom range relative to now. Custom
// ranges take start and end in "2006-01-02" form; the end day is inclusive.
// DateRangeAll returns two zero times.
func GetDateRange(dateRange, startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	endOfDay := func(t time.Time) time.Time { return t.AddDate(0, 0, 1).Add(-time.Second) }

	switch dateRange {
	case DateRangeAll:
		return time.Time{}, time.Time{}, nil
	case DateRangeDaily:
		return today, endOfDay(today), nil
	case DateRangeWeekly:
		// last 7 days including today
		return today.AddDate(0, 0, -6), endOfDay(today), nil
	case DateRangeMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0).Add(-time.Second), nil
	case DateRangeYearly:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0).Add(-time.Second), nil
	case DateRangeCustom:
		if startStr == "" || endStr == "" {
			return time.Time{}, time.Time{}, errors.New("start_date and end_date required for custom range")
		}
		start, err := time.ParseInLocation("2006-01-02", startStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("start_date must be YYYY-MM-DD")
		}
		end, err := time.ParseInLocation("2006-01-02", endStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("end_date must be YYYY-MM-DD")
		}
		end = endOfDay(end)
		if start.After(end) {
			return time.Time{}, time.Time{}, errors.New("start_date must be before end_date")
		}
		return start, end, nil
	default:
		return GetDateRange(DateRangeWeekly, "", "", now)
	}
}

package slices

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Granularity string

const (
	Weekly Granularity = "weekly"
	Daily  Granularity = "daily"
)

const dayLayout = "2006-01-02"

var (
	dayPattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	weekPattern      = regexp.MustCompile(`^\d{4}-W\d{1,2}$`)
	exactWeekPattern = regexp.MustCompile(`^\d{4}-W\d{2}$`)
)

func ToDay(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// ToWeek renders the ISO week of t as YYYY-Www.
func ToWeek(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func IsWeek(period string) bool {
	return exactWeekPattern.MatchString(period)
}

func IsDay(period string) bool {
	return dayPattern.MatchString(period)
}

func parseWeek(period string) (int, int, bool) {
	if !weekPattern.MatchString(period) {
		return 0, 0, false
	}
	parts := strings.SplitN(period, "-W", 2)
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	week, err := strconv.Atoi(parts[1])
	if err != nil || week < 1 {
		return 0, 0, false
	}
	return year, week, true
}

// weekMonday returns the Monday that starts ISO week w of year y.
func weekMonday(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(week-1)*7)
}

// WeekDates lists the seven UTC dates, Monday first, of an ISO week.
func WeekDates(period string) []string {
	year, week, ok := parseWeek(period)
	if !ok {
		return nil
	}
	monday := weekMonday(year, week)
	out := make([]string, 7)
	for i := range out {
		out[i] = ToDay(monday.AddDate(0, 0, i))
	}
	return out
}

// Range returns the half-open time range covered by a week or day period.
func Range(period string) (time.Time, time.Time, bool) {
	if year, week, ok := parseWeek(period); ok {
		from := weekMonday(year, week)
		return from, from.AddDate(0, 0, 7), true
	}
	if IsDay(period) {
		from, err := time.Parse(dayLayout, period)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return from, from.AddDate(0, 0, 1), true
	}
	return time.Time{}, time.Time{}, false
}

func lastISOWeek(year int) int {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

// PreviousPeriod steps a week or day period back by one. Week 1 rolls over
// to the last ISO week of the prior year. Other strings are returned as is.
func PreviousPeriod(period string) string {
	if IsWeek(period) {
		year, week, _ := parseWeek(period)
		if week > 1 {
			return fmt.Sprintf("%d-W%02d", year, week-1)
		}
		return fmt.Sprintf("%d-W%02d", year-1, lastISOWeek(year-1))
	}
	if IsDay(period) {
		d, err := time.Parse(dayLayout, period)
		if err != nil {
			return period
		}
		return ToDay(d.AddDate(0, 0, -1))
	}
	return period
}

// ResolvePeriod picks the period to aggregate. A forced value is coerced to
// the granularity; false is returned when it could not be and now was used.
func ResolvePeriod(forced string, g Granularity, now time.Time) (string, bool) {
	forced = strings.TrimSpace(forced)
	if forced != "" {
		if g == Weekly {
			if week, ok := coerceWeek(forced); ok {
				return week, true
			}
		} else if day, ok := coerceDay(forced); ok {
			return day, true
		}
	}

	current := ToDay(now)
	if g == Weekly {
		current = ToWeek(now)
	}
	return current, forced == ""
}

func coerceWeek(value string) (string, bool) {
	if weekPattern.MatchString(value) {
		year, week, ok := parseWeek(value)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%d-W%02d", year, week), true
	}
	if t, ok := parseFlexible(value); ok {
		return ToWeek(t), true
	}
	return "", false
}

func coerceDay(value string) (string, bool) {
	if dayPattern.MatchString(value) {
		return value, true
	}
	if t, ok := parseFlexible(value); ok {
		return ToDay(t), true
	}
	return "", false
}

func parseFlexible(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", dayLayout, "2006/01/02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

type Signal string

const (
	Rising  Signal = "rising"
	Falling Signal = "falling"
	Steady  Signal = "steady"
)

func TrendSignal(delta float64) Signal {
	switch {
	case delta >= 0.2:
		return Rising
	case delta <= -0.2:
		return Falling
	default:
		return Steady
	}
}

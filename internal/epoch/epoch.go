package epoch

import (
	"fmt"
	"time"
)

// Scope identifies the recurrence window a key belongs to.
type Scope string

const (
	ScopeDaily  Scope = "DAILY"
	ScopeWeekly Scope = "WEEKLY"
)

const dailyLayout = "2006-01-02"

// DailyKey returns the daily epoch key for an instant in the given location,
// e.g. "2024-03-14". Pure: the same inputs always produce the same key.
func DailyKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dailyLayout)
}

// WeeklyKey returns the ISO-8601 week key (Monday start) for an instant,
// e.g. "2024-W11". ISO weeks are used regardless of user locale so that
// weekly quests and leaderboard windows compare the same for everyone.
func WeeklyKey(t time.Time, loc *time.Location) string {
	year, week := t.In(loc).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// Key dispatches on scope. Weekly scope yields an ISO week key, everything
// else (daily and admin-pushed global quests) keys on the calendar day.
func Key(scope Scope, t time.Time, loc *time.Location) string {
	if scope == ScopeWeekly {
		return WeeklyKey(t, loc)
	}
	return DailyKey(t, loc)
}

// ParseDailyKey parses a daily key back into a UTC midnight instant.
func ParseDailyKey(key string) (time.Time, error) {
	return time.ParseInLocation(dailyLayout, key, time.UTC)
}

// PrevDailyKey returns the key of the day immediately before the given one.
// Returns "" for unparseable input.
func PrevDailyKey(key string) string {
	t, err := ParseDailyKey(key)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(dailyLayout)
}

// NextDailyKey returns the key of the day immediately after the given one.
func NextDailyKey(key string) string {
	t, err := ParseDailyKey(key)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, 1).Format(dailyLayout)
}

// PrevWeeklyKey returns the ISO week key immediately before the given one,
// handling year rollover (e.g. "2024-W01" -> "2023-W52").
func PrevWeeklyKey(key string) string {
	var year, week int
	if _, err := fmt.Sscanf(key, "%d-W%d", &year, &week); err != nil {
		return ""
	}
	monday := mondayOfISOWeek(year, week)
	y, w := monday.AddDate(0, 0, -7).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// mondayOfISOWeek returns the Monday starting the given ISO week.
// January 4th is always inside ISO week 1 of its year.
func mondayOfISOWeek(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	wd := int(jan4.Weekday())
	if wd == 0 {
		wd = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, 1-wd)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

// LoadLocation resolves an IANA timezone name, falling back to UTC for
// empty or invalid names so epoch computation stays total.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

package task

import (
	"fmt"
	"sort"
	"time"
)

// DefaultUpcomingLimit is how many upcoming tasks the calendar lists.
const DefaultUpcomingLimit = 5

// Day is one cell of a month grid.
type Day struct {
	Day     int    `json:"day"`
	Date    string `json:"date"`
	HasTask bool   `json:"hasTask"`
	IsToday bool   `json:"isToday"`
}

// Month is a calendar page. Blanks is the number of empty cells before the
// first day when weeks start on Sunday.
type Month struct {
	Year   int        `json:"year"`
	Month  time.Month `json:"month"`
	Title  string     `json:"title"`
	Blanks int        `json:"blanks"`
	Days   []Day      `json:"days"`
}

// BuildMonth lays out year/month and marks the days that have at least one
// open task due.
func BuildMonth(tasks []Task, year int, month time.Month, today time.Time) Month {
	due := make(map[string]bool)
	for _, t := range tasks {
		if t.DueDate != "" && !t.Completed {
			due[t.DueDate] = true
		}
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	n := first.AddDate(0, 1, -1).Day()
	todayStr := today.Format(time.DateOnly)

	m := Month{
		Year:   year,
		Month:  month,
		Title:  fmt.Sprintf("%s %d", month, year),
		Blanks: int(first.Weekday()),
		Days:   make([]Day, 0, n),
	}
	for d := 1; d <= n; d++ {
		date := fmt.Sprintf("%04d-%02d-%02d", year, int(month), d)
		m.Days = append(m.Days, Day{
			Day:     d,
			Date:    date,
			HasTask: due[date],
			IsToday: date == todayStr,
		})
	}
	return m
}

// PrevMonth steps back one month, wrapping to December of the prior year.
func PrevMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// NextMonth steps forward one month, wrapping to January of the next year.
func NextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

// Upcoming returns open tasks that have a due date, soonest first, capped
// at limit (no cap when limit <= 0).
func Upcoming(tasks []Task, limit int) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.DueDate != "" && !t.Completed {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DueDate != out[j].DueDate {
			return out[i].DueDate < out[j].DueDate
		}
		return out[i].DueTime < out[j].DueTime
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

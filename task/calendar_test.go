package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMonth(t *testing.T) {
	today := time.Date(2025, 12, 3, 9, 0, 0, 0, time.UTC)
	m := BuildMonth(sampleTasks(), 2025, time.December, today)

	assert.Equal(t, "December 2025", m.Title)
	assert.Equal(t, 1, m.Blanks, "1 Dec 2025 is a Monday")
	require.Len(t, m.Days, 31)

	assert.True(t, m.Days[1].HasTask, "2025-12-02 has an open task")
	assert.True(t, m.Days[2].HasTask, "2025-12-03 still has one open task")
	assert.False(t, m.Days[0].HasTask)
	assert.True(t, m.Days[2].IsToday)
	assert.Equal(t, "2025-12-03", m.Days[2].Date)
}

func TestBuildMonth_IgnoresCompleted(t *testing.T) {
	tasks := []Task{{DueDate: "2026-02-10", Completed: true}}
	m := BuildMonth(tasks, 2026, time.February, time.Time{})
	require.Len(t, m.Days, 28)
	assert.False(t, m.Days[9].HasTask)
}

func TestMonthNavigation(t *testing.T) {
	y, m := PrevMonth(2026, time.January)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.December, m)

	y, m = NextMonth(2025, time.December)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.January, m)

	y, m = NextMonth(2025, time.June)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.July, m)
}

func TestUpcoming(t *testing.T) {
	got := Upcoming(sampleTasks(), DefaultUpcomingLimit)
	require.Len(t, got, 2)
	assert.Equal(t, "local-1", got[0].ID)
	assert.Equal(t, "local-3", got[1].ID)

	assert.Len(t, Upcoming(sampleTasks(), 1), 1)
}

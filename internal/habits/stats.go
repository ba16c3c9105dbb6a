package habits

import (
	"math"
	"time"
)

const (
	statsWindowDays = 7
	dayLabelLayout  = "Mon"
)

// DayStat summarizes one calendar day of the statistics window.
type DayStat struct {
	Day            string
	Date           time.Time
	Completed      bool
	CompletedCount int
	MissedCount    int
}

// Stats is the dashboard summary derived from a user's habits.
type Stats struct {
	TotalHabits    int
	ActiveHabits   int
	CompletionRate int
	CurrentStreak  int
	BestStreak     int
	StreakData     []DayStat
}

type dayBounds struct {
	start time.Time
	end   time.Time
}

// ComputeStats derives the dashboard summary for the seven calendar days ending on now's day.
func ComputeStats(habits []Habit, now time.Time, location *time.Location) Stats {
	if location == nil {
		location = time.Local
	}
	days := lastDays(now, location, statsWindowDays)

	stats := Stats{TotalHabits: len(habits)}
	totalCompletions := 0
	for _, habit := range habits {
		if len(habit.Completions) > 0 {
			stats.ActiveHabits++
		}
		if habit.CurrentStreak > stats.CurrentStreak {
			stats.CurrentStreak = habit.CurrentStreak
		}
		if habit.BestStreak > stats.BestStreak {
			stats.BestStreak = habit.BestStreak
		}
		for _, day := range days {
			if completedWithin(habit, day) {
				totalCompletions++
			}
		}
	}

	possibleCompletions := len(habits) * len(days)
	if possibleCompletions > 0 {
		stats.CompletionRate = int(math.Round(float64(totalCompletions) / float64(possibleCompletions) * 100))
	}

	stats.StreakData = make([]DayStat, 0, len(days))
	for _, day := range days {
		entry := DayStat{
			Day:  day.start.Format(dayLabelLayout),
			Date: day.start,
		}
		for _, habit := range habits {
			if habit.CreatedAt.After(day.end) {
				continue
			}
			if completedWithin(habit, day) {
				entry.CompletedCount++
			} else {
				entry.MissedCount++
			}
		}
		entry.Completed = entry.CompletedCount > 0
		stats.StreakData = append(stats.StreakData, entry)
	}

	return stats
}

// lastDays returns count consecutive day bounds ending with now's day, oldest first.
func lastDays(now time.Time, location *time.Location, count int) []dayBounds {
	today := startOfDay(now, location)
	days := make([]dayBounds, 0, count)
	for offset := count - 1; offset >= 0; offset-- {
		day := today.AddDate(0, 0, -offset)
		days = append(days, dayBounds{start: day, end: endOfDay(day, location)})
	}
	return days
}

func completedWithin(habit Habit, day dayBounds) bool {
	for _, completion := range habit.Completions {
		if withinDay(completion.CompletedAt, day.start, day.end) {
			return true
		}
	}
	return false
}

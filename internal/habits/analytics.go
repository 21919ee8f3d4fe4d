package habits

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DateLayout is the calendar-day format of DailyEntry.Date.
const DateLayout = "2006-01-02"

// DailyEntry is one day of habit check-ins. Habits maps a category key to a
// free-form value; an empty value means the habit was not done.
type DailyEntry struct {
	Date      string            `json:"date"`
	Habits    map[string]string `json:"habits"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StreakSummary counts consecutive check-in days.
type StreakSummary struct {
	Current      int `json:"current_streak"`
	Longest      int `json:"longest_streak"`
	TotalEntries int `json:"total_entries"`
}

// Streaks computes the longest run of consecutive days and the current run
// ending today or yesterday. Unparseable dates are ignored.
func Streaks(entries []DailyEntry, now time.Time) StreakSummary {
	summary := StreakSummary{TotalEntries: len(entries)}
	days := uniqueDays(entries)
	if len(days) == 0 {
		return summary
	}

	run := 0
	for i, d := range days {
		if i > 0 && daysBetween(days[i-1], d) == 1 {
			run++
		} else {
			run = 1
		}
		if run > summary.Longest {
			summary.Longest = run
		}
	}

	today := truncateDay(now)
	check := today
	for i := len(days) - 1; i >= 0; i-- {
		gap := daysBetween(days[i], check)
		if gap > 1 || gap < 0 {
			break
		}
		summary.Current++
		check = days[i]
	}
	return summary
}

func uniqueDays(entries []DailyEntry) []time.Time {
	seen := map[string]bool{}
	var days []time.Time
	for _, e := range entries {
		d, err := time.Parse(DateLayout, strings.TrimSpace(e.Date))
		if err != nil || seen[d.Format(DateLayout)] {
			continue
		}
		seen[d.Format(DateLayout)] = true
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// TrendSummary describes the last seven check-ins.
type TrendSummary struct {
	HabitFrequency   map[string]int `json:"habit_frequency"`
	CompletionRate7d float64        `json:"completion_rate_7d"`
	EntriesCount     int            `json:"entries_count"`
}

// TrendWindow is the number of most recent check-ins Trends looks at.
const TrendWindow = 7

// Trends counts, over the last seven check-ins, how often each habit was
// done, plus the share of the week with a check-in.
func Trends(entries []DailyEntry) TrendSummary {
	sorted := append([]DailyEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
	last := sorted
	if len(last) > TrendWindow {
		last = last[len(last)-TrendWindow:]
	}

	freq := map[string]int{}
	for _, e := range last {
		for key, val := range e.Habits {
			if strings.TrimSpace(val) != "" {
				freq[key]++
			}
		}
	}
	rate := float64(len(last)) / TrendWindow
	return TrendSummary{
		HabitFrequency:   freq,
		CompletionRate7d: math.Round(rate*100) / 100,
		EntriesCount:     len(entries),
	}
}

// Forecast projects how likely a habit is to be kept up next week.
type Forecast struct {
	Habit      string  `json:"habit"`
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Likelihood float64 `json:"likelihood"`
}

// Forecasts turns a trend into per-habit projections, most likely first.
// Likelihood is the habit's share of the last seven days.
func Forecasts(trend TrendSummary) []Forecast {
	out := make([]Forecast, 0, len(trend.HabitFrequency))
	for habit, n := range trend.HabitFrequency {
		p := math.Min(1, float64(n)/TrendWindow)
		p = math.Round(p*100) / 100
		out = append(out, Forecast{
			Habit:      habit,
			Title:      forecastTitle(habit, p),
			Summary:    forecastSummary(habit, n),
			Likelihood: p,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Likelihood != out[j].Likelihood {
			return out[i].Likelihood > out[j].Likelihood
		}
		return out[i].Habit < out[j].Habit
	})
	return out
}

func forecastTitle(habit string, p float64) string {
	label := habitLabel(habit)
	switch {
	case p >= 0.7:
		return label + " likely to continue"
	case p >= 0.4:
		return label + " holding steady"
	default:
		return label + " at risk of slipping"
	}
}

func forecastSummary(habit string, n int) string {
	return fmt.Sprintf("%s logged on %d of the last %d days", habitLabel(habit), n, TrendWindow)
}

func habitLabel(key string) string {
	for _, c := range Categories {
		if c.Key == key {
			return c.Label
		}
	}
	return key
}

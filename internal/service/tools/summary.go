package tools

import (
	"fmt"
	"math"
	"time"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/tracker"
)

// Summary aggregates a list of time entries. Every figure is rounded to two
// decimals after aggregation.
type Summary struct {
	TotalHours         float64            `json:"total_hours"`
	TotalEntries       int                `json:"total_entries"`
	WorkingDays        int                `json:"working_days"`
	AverageHoursPerDay float64            `json:"average_hours_per_day"`
	ProjectBreakdown   map[string]float64 `json:"project_breakdown"`
	WeeklyBreakdown    map[string]float64 `json:"weekly_breakdown"`
	DailyBreakdown     map[string]float64 `json:"daily_breakdown"`
}

// Summarize computes totals per project, ISO week (YYYY-Www) and day.
func Summarize(entries []tracker.TimeEntry) Summary {
	var total float64
	projects := map[string]float64{}
	weeks := map[string]float64{}
	days := map[string]float64{}

	for _, e := range entries {
		total += e.Hours
		if e.Project != nil && e.Project.Name != "" {
			projects[e.Project.Name] += e.Hours
		}
		if e.SpentOn == "" {
			continue
		}
		days[e.SpentOn] += e.Hours
		if day, err := time.Parse(dateLayout, e.SpentOn); err == nil {
			year, week := day.ISOWeek()
			weeks[fmt.Sprintf("%04d-W%02d", year, week)] += e.Hours
		}
	}

	var average float64
	if len(days) > 0 {
		average = total / float64(len(days))
	}

	return Summary{
		TotalHours:         round2(total),
		TotalEntries:       len(entries),
		WorkingDays:        len(days),
		AverageHoursPerDay: round2(average),
		ProjectBreakdown:   roundAll(projects),
		WeeklyBreakdown:    roundAll(weeks),
		DailyBreakdown:     roundAll(days),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundAll(m map[string]float64) map[string]float64 {
	for k, v := range m {
		m[k] = round2(v)
	}
	return m
}

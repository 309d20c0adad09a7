// Package burndown derives the ideal-vs-actual remaining story point series
// for a sprint window. The computation is pure and restartable: it reads one
// immutable task snapshot and keeps no state between calls.
package burndown

import (
	"time"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

// Point is one day of the burndown series.
type Point struct {
	Day    int     `json:"day"`
	Ideal  float64 `json:"ideal"`
	Actual float64 `json:"actual"`
}

// Project computes the series for tasks within [start, end]. It returns nil
// when either date is missing, end precedes start, or the tasks carry no
// story points. Day boundaries are taken at date granularity in UTC.
func Project(tasks []domain.Task, start, end time.Time) []Point {
	if start.IsZero() || end.IsZero() {
		return nil
	}
	startDay := truncateToDay(start)
	endDay := truncateToDay(end)
	if endDay.Before(startDay) {
		return nil
	}

	totalSP := 0
	for i := range tasks {
		totalSP += tasks[i].StoryPoints
	}
	if totalSP == 0 {
		return nil
	}

	totalDays := int(endDay.Sub(startDay).Hours()/24) + 1
	denom := totalDays - 1
	if denom < 1 {
		denom = 1
	}
	slope := float64(totalSP) / float64(denom)

	points := make([]Point, 0, totalDays)
	for i := 0; i < totalDays; i++ {
		day := startDay.AddDate(0, 0, i)

		ideal := float64(totalSP) - slope*float64(i)
		if ideal < 0 {
			ideal = 0
		}

		completed := 0
		for j := range tasks {
			if tasks[j].CompletedAt == nil {
				continue
			}
			if !truncateToDay(*tasks[j].CompletedAt).After(day) {
				completed += tasks[j].StoryPoints
			}
		}

		points = append(points, Point{
			Day:    i,
			Ideal:  ideal,
			Actual: float64(totalSP - completed),
		})
	}
	return points
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

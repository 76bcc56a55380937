package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/myrjola/runplan/internal/errors"
)

// ErrInvalidPlan is returned when a raw plan lacks a list of weeks.
var ErrInvalidPlan = errors.NewSentinel("invalid plan")

const daysPerWeek = 7

// Normalizer converts raw generator plans into canonical schedules. It holds no mutable state and is safe for
// concurrent use.
type Normalizer struct {
	defaults Defaults
}

// NewNormalizer creates a Normalizer that fills in missing warm-up and cool-down distances from defaults.
func NewNormalizer(defaults Defaults) *Normalizer {
	return &Normalizer{defaults: defaults}
}

// Normalize converts plan into a canonical schedule starting at the Monday on or before startDate.
//
// weekNumberOffset shifts week numbering so that the first week becomes weekNumberOffset+1. Content anomalies
// are corrected and reported in Schedule.Warnings. The only error is ErrInvalidPlan.
func (n *Normalizer) Normalize(plan RawPlan, startDate time.Time, weekNumberOffset int) (Schedule, error) {
	rawWeeks, ok := plan["weeks"].([]any)
	if !ok {
		return Schedule{}, errors.Wrap(ErrInvalidPlan, "weeks missing or not a list")
	}

	firstMonday := mondayOf(startDate)
	sched := Schedule{
		Weeks:    make([]Week, 0, len(rawWeeks)),
		Warnings: []string{},
	}
	for i, rawWeek := range rawWeeks {
		weekNumber := i + 1 + weekNumberOffset
		weekStart := firstMonday.AddDate(0, 0, daysPerWeek*i)
		week, warnings := n.normalizeWeek(rawWeek, weekNumber, weekStart)
		sched.Weeks = append(sched.Weeks, week)
		sched.Warnings = append(sched.Warnings, warnings...)
	}
	return sched, nil
}

func (n *Normalizer) normalizeWeek(rawWeek any, weekNumber int, weekStart time.Time) (Week, []string) {
	var warnings []string
	week := Week{
		ID:            0,
		WeekNumber:    weekNumber,
		StartDate:     formatDate(weekStart),
		TotalVolumeKm: 0,
		Days:          make([]Day, 0, daysPerWeek),
	}

	var rawDays []any
	if wm, ok := rawWeek.(map[string]any); ok {
		rawDays, ok = wm["days"].([]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("week %d: days missing or not a list", weekNumber))
		}
	} else {
		warnings = append(warnings, fmt.Sprintf("week %d: entry is not an object", weekNumber))
	}
	if rawDays != nil && len(rawDays) != daysPerWeek {
		warnings = append(warnings, fmt.Sprintf("week %d: expected %d days, got %d", weekNumber, daysPerWeek,
			len(rawDays)))
	}

	volume := 0.0
	for idx := range daysPerWeek {
		dayOfWeek := idx + 1
		date := formatDate(weekStart.AddDate(0, 0, idx))

		var dm map[string]any
		if idx < len(rawDays) {
			var ok bool
			if dm, ok = rawDays[idx].(map[string]any); !ok {
				warnings = append(warnings, fmt.Sprintf("week %d day %d: entry is not an object, using rest",
					weekNumber, dayOfWeek))
			}
		}

		raw := parseRawDay(dm)
		day := normalizeDay(raw, date, dayOfWeek, n.defaults)
		if naive := resolveType(raw.typeToken); naive != day.Type {
			warnings = append(warnings, fmt.Sprintf("week %d day %d (%s): type %q reclassified as %q",
				weekNumber, dayOfWeek, date, naive, day.Type))
		}
		if day.DistanceKm != nil && *day.DistanceKm > 0 {
			volume += *day.DistanceKm
		}
		week.Days = append(week.Days, day)
	}
	week.TotalVolumeKm = math.Round(volume*10) / 10 //nolint:mnd // one decimal
	return week, warnings
}

package schedule

import (
	"time"
)

// DayType is the canonical purpose of a training day.
type DayType string

const (
	DayTypeRest     DayType = "rest"
	DayTypeEasy     DayType = "easy"
	DayTypeLong     DayType = "long"
	DayTypeTempo    DayType = "tempo"
	DayTypeInterval DayType = "interval"
	DayTypeFartlek  DayType = "fartlek"
	DayTypeRace     DayType = "race"
	DayTypeControl  DayType = "control"
	DayTypeOther    DayType = "other"
	DayTypeSBU      DayType = "sbu"
	DayTypeFree     DayType = "free"
)

// DayTypes lists every canonical day type.
func DayTypes() []DayType {
	return []DayType{
		DayTypeRest, DayTypeEasy, DayTypeLong, DayTypeTempo, DayTypeInterval, DayTypeFartlek,
		DayTypeRace, DayTypeControl, DayTypeOther, DayTypeSBU, DayTypeFree,
	}
}

// Valid reports whether t is one of the canonical day types.
func (t DayType) Valid() bool {
	for _, dt := range DayTypes() {
		if dt == t {
			return true
		}
	}
	return false
}

// IsRunning reports whether a day of this type is a run and carries a run exercise.
func (t DayType) IsRunning() bool {
	switch t { //nolint:exhaustive // the remaining types are not runs.
	case DayTypeEasy, DayTypeLong, DayTypeTempo, DayTypeInterval, DayTypeFartlek, DayTypeRace, DayTypeControl:
		return true
	default:
		return false
	}
}

// isSimpleRun reports whether the day is a single continuous run described by distance and pace.
func (t DayType) isSimpleRun() bool {
	switch t { //nolint:exhaustive // the remaining types have their own structure.
	case DayTypeEasy, DayTypeLong, DayTypeTempo, DayTypeRace, DayTypeControl:
		return true
	default:
		return false
	}
}

// isKeyByDefault reports whether days of this type count as key workouts when the generator does not say.
func (t DayType) isKeyByDefault() bool {
	switch t { //nolint:exhaustive // the remaining types are routine days.
	case DayTypeInterval, DayTypeTempo, DayTypeLong, DayTypeFartlek, DayTypeRace, DayTypeControl:
		return true
	default:
		return false
	}
}

// Category classifies an exercise.
type Category string

const (
	// CategoryRun is the single run synthesised for running days.
	CategoryRun Category = "run"
	// CategoryOFP is general physical preparation such as strength and core work.
	CategoryOFP Category = "ofp"
	// CategorySBU is running specific drills.
	CategorySBU Category = "sbu"
)

// Exercise is one item of a day's content.
type Exercise struct {
	Category    Category `json:"category"`
	Name        string   `json:"name"`
	Sets        *int     `json:"sets"`
	Reps        *int     `json:"reps"`
	WeightKg    *float64 `json:"weight_kg"`
	DistanceM   *int     `json:"distance_m"`
	DurationSec *int     `json:"duration_sec"`
	Pace        *string  `json:"pace"`
	Notes       *string  `json:"notes"`
	OrderIndex  int      `json:"order_index"`
	// LibraryID references exercise_library when the exercise is a known library entry.
	LibraryID *int64 `json:"exercise_library_id,omitempty"`
}

// Day is a canonical training day. Dates are ISO dates (YYYY-MM-DD).
type Day struct {
	ID              int64      `json:"id,omitempty"`
	Date            string     `json:"date"`
	DayOfWeek       int        `json:"day_of_week"`
	Type            DayType    `json:"type"`
	Description     string     `json:"description"`
	DistanceKm      *float64   `json:"distance_km"`
	DurationMinutes *int       `json:"duration_minutes"`
	Pace            *string    `json:"pace"`
	IsKeyWorkout    bool       `json:"is_key_workout"`
	Exercises       []Exercise `json:"exercises"`
}

// Week is a canonical Monday to Sunday week.
type Week struct {
	ID            int64   `json:"id,omitempty"`
	WeekNumber    int     `json:"week_number"`
	StartDate     string  `json:"start_date"`
	TotalVolumeKm float64 `json:"total_volume_km"`
	Days          []Day   `json:"days"`
}

// Schedule is the result of normalizing a raw plan.
type Schedule struct {
	Weeks []Week `json:"weeks"`
	// Warnings are content anomalies that were corrected or skipped during normalization.
	Warnings []string `json:"warnings"`
}

// RawPlan is the untrusted output of the plan generator: {"weeks": [{"days": [...]}, ...]}.
type RawPlan map[string]any

// Defaults are the values the day normalizer assumes when the generator leaves them out.
type Defaults struct {
	// WarmupKm is the warm-up distance of interval and fartlek days without warmup_km.
	WarmupKm float64
	// CooldownKm is the cool-down distance of interval and fartlek days without cooldown_km.
	CooldownKm float64
}

// StandardDefaults returns the defaults used in production.
func StandardDefaults() Defaults {
	return Defaults{
		WarmupKm:   2,   //nolint:mnd // km
		CooldownKm: 1.5, //nolint:mnd // km
	}
}

const dateFormat = time.DateOnly

func formatDate(t time.Time) string {
	return t.Format(dateFormat)
}

// dateOnly strips the clock and location so that date arithmetic is not affected by DST.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// mondayOf returns the Monday on or before t.
func mondayOf(t time.Time) time.Time {
	t = dateOnly(t)
	offset := (int(t.Weekday()) + 6) % 7 //nolint:mnd // days since Monday
	return t.AddDate(0, 0, -offset)
}

package schedule

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/runplan/internal/errors"
)

const samplePlan = `{"weeks": [
  {"days": [
    {"type": "rest"},
    {"type": "easy_run", "distance_km": 10, "pace": "5:00"},
    {"type": "intervals", "reps": 5, "interval_m": 400, "rest_m": 200, "rest_type": "jog"},
    {"type": "rest", "description": "Отдых"},
    {"type": "ofp", "exercises": [{"name": "Приседания", "sets": 3, "reps": 10}]},
    {"type": "long_run", "distance_km": 3.33},
    {"type": "rest", "distance_km": 8}
  ]},
  {"days": [
    {"type": "rest"},
    {"type": "easy", "description": "Бег 6 км в лёгком темпе", "distance_km": 6},
    {"type": "sbu", "description": "Многоскоки — 5×30 м\nЗахлёст голени — 50 м"},
    "garbage",
    {"type": "tempo", "distance_km": 8, "pace": "4:30"},
    {"type": "fartlek", "segments": [{"reps": 6, "distance_m": 200, "recovery_m": 200}]}
  ]}
]}`

func mustDecodePlan(t *testing.T, raw string) RawPlan {
	t.Helper()
	var plan RawPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	return plan
}

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer(StandardDefaults())
	wednesday := time.Date(2025, 3, 5, 15, 30, 0, 0, time.FixedZone("MSK", 3*60*60))

	got, err := n.Normalize(mustDecodePlan(t, samplePlan), wednesday, 4)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got.Weeks) != 2 {
		t.Fatalf("got %d weeks, want 2", len(got.Weeks))
	}

	type weekHeader struct {
		Number int
		Start  string
		Volume float64
		Days   int
	}
	var headers []weekHeader
	for _, w := range got.Weeks {
		headers = append(headers, weekHeader{w.WeekNumber, w.StartDate, w.TotalVolumeKm, len(w.Days)})
	}
	// Week 1: 10 + 6.5 + 3.33 + 8 = 27.83. Week 2: 6 + 8 + (2 + 2.4 + 1.5).
	wantHeaders := []weekHeader{
		{Number: 5, Start: "2025-03-03", Volume: 27.8, Days: 7},
		{Number: 6, Start: "2025-03-10", Volume: 19.9, Days: 7},
	}
	if diff := cmp.Diff(wantHeaders, headers); diff != "" {
		t.Errorf("weeks mismatch (-want +got):\n%s", diff)
	}

	var types []DayType
	for _, d := range got.Weeks[1].Days {
		types = append(types, d.Type)
	}
	wantTypes := []DayType{
		DayTypeRest, DayTypeEasy, DayTypeSBU, DayTypeRest, DayTypeTempo, DayTypeFartlek, DayTypeRest,
	}
	if diff := cmp.Diff(wantTypes, types); diff != "" {
		t.Errorf("week 6 day types mismatch (-want +got):\n%s", diff)
	}

	wantWarnings := []string{
		`week 5 day 7 (2025-03-09): type "rest" reclassified as "easy"`,
		"week 6: expected 7 days, got 6",
		"week 6 day 4: entry is not an object, using rest",
	}
	if diff := cmp.Diff(wantWarnings, got.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizer_Normalize_invariants(t *testing.T) {
	n := NewNormalizer(StandardDefaults())
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) // Sunday
	got, err := n.Normalize(mustDecodePlan(t, samplePlan), start, 0)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	var prev time.Time
	for i, w := range got.Weeks {
		if w.WeekNumber != i+1 {
			t.Errorf("week %d has number %d", i, w.WeekNumber)
		}
		weekStart, parseErr := time.Parse(time.DateOnly, w.StartDate)
		if parseErr != nil {
			t.Fatalf("parse start date %q: %v", w.StartDate, parseErr)
		}
		if weekStart.Weekday() != time.Monday {
			t.Errorf("week %d starts on %s", w.WeekNumber, weekStart.Weekday())
		}
		if i > 0 && weekStart.Sub(prev) != 7*24*time.Hour {
			t.Errorf("week %d starts %s after the previous one", w.WeekNumber, weekStart.Sub(prev))
		}
		prev = weekStart

		for j, d := range w.Days {
			if d.DayOfWeek != j+1 {
				t.Errorf("%s: day_of_week = %d, want %d", d.Date, d.DayOfWeek, j+1)
			}
			if want := weekStart.AddDate(0, 0, j).Format(time.DateOnly); d.Date != want {
				t.Errorf("date = %s, want %s", d.Date, want)
			}
			isEmpty := d.Description == "" && d.DistanceKm == nil && d.DurationMinutes == nil && d.Pace == nil &&
				len(d.Exercises) == 0
			if (d.Type == DayTypeRest) != isEmpty {
				t.Errorf("%s: type %q with content %+v", d.Date, d.Type, d)
			}
			runs := slices.IndexFunc(d.Exercises, func(e Exercise) bool { return e.Category == CategoryRun })
			if runs >= 0 && slices.IndexFunc(d.Exercises[runs+1:], func(e Exercise) bool {
				return e.Category == CategoryRun
			}) >= 0 {
				t.Errorf("%s: more than one run exercise", d.Date)
			}
		}
	}
	if got.Weeks[0].StartDate != "2025-05-26" {
		t.Errorf("first week starts %s, want 2025-05-26", got.Weeks[0].StartDate)
	}
}

func TestNormalizer_Normalize_idempotent(t *testing.T) {
	n := NewNormalizer(StandardDefaults())
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	first, err := n.Normalize(mustDecodePlan(t, samplePlan), start, 0)
	if err != nil {
		t.Fatalf("first Normalize: %v", err)
	}
	second, err := n.Normalize(mustDecodePlan(t, samplePlan), start, 0)
	if err != nil {
		t.Fatalf("second Normalize: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("normalizing twice differs:\n%s\n%s", a, b)
	}
}

func TestNormalizer_Normalize_structuralErrors(t *testing.T) {
	n := NewNormalizer(StandardDefaults())
	tests := []struct {
		name string
		plan string
	}{
		{name: "missing weeks", plan: `{"days": []}`},
		{name: "weeks not a list", plan: `{"weeks": {"days": []}}`},
		{name: "null weeks", plan: `{"weeks": null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(mustDecodePlan(t, tt.plan), time.Now(), 0)
			if !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("Normalize() error = %v, want %v", err, ErrInvalidPlan)
			}
		})
	}
}

func TestNormalizer_Normalize_malformedWeeks(t *testing.T) {
	n := NewNormalizer(StandardDefaults())
	plan := mustDecodePlan(t, `{"weeks": [42, {"days": "none"}, {"days": []}]}`)
	got, err := n.Normalize(plan, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), 0)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for _, w := range got.Weeks {
		for _, d := range w.Days {
			if d.Type != DayTypeRest {
				t.Errorf("week %d %s: type %q, want rest", w.WeekNumber, d.Date, d.Type)
			}
		}
		if len(w.Days) != 7 {
			t.Errorf("week %d has %d days", w.WeekNumber, len(w.Days))
		}
	}
	if len(got.Warnings) != 3 {
		t.Errorf("got warnings %s, want three", strings.Join(got.Warnings, "; "))
	}
}

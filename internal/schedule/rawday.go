package schedule

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/myrjola/runplan/internal/ptr"
)

// rawDay is the statically typed view of one generator day. Presence matters as much as value, so every
// optional field is a pointer or has an accompanying flag.
type rawDay struct {
	typeToken       string
	description     string
	hasDescription  bool
	distanceKm      *float64
	durationMinutes *int
	pace            *string
	isKeyWorkout    *bool

	warmupKm     *float64
	cooldownKm   *float64
	reps         *int
	intervalM    *float64
	restM        *float64
	restType     string
	segments     []rawSegment
	hasSegments  bool
	exercises    []rawExercise
	hasExercises bool
	notes        string
	hasNotes     bool
}

type rawSegment struct {
	reps      int
	distanceM float64
	recoveryM float64
	pace      *string
}

type rawExercise struct {
	name        string
	sets        *int
	reps        *int
	weightKg    *float64
	distanceM   *int
	durationSec *int
	pace        *string
	notes       *string
	libraryID   *int64
}

// parseRawDay converts the generator's loosely typed day object. Values of the wrong type are treated as absent.
func parseRawDay(m map[string]any) rawDay {
	d := rawDay{
		typeToken:       toString(m["type"]),
		distanceKm:      toPositive(m["distance_km"], maxDistanceKm),
		durationMinutes: toCount(m["duration_minutes"], maxDurationMinutes),
		pace:            toPace(m["pace"]),
		isKeyWorkout:    toBool(m["is_key_workout"]),
		warmupKm:        toNonNegative(m["warmup_km"], maxDistanceKm),
		cooldownKm:      toNonNegative(m["cooldown_km"], maxDistanceKm),
		reps:            toCount(m["reps"], maxCount),
		intervalM:       toNonNegative(m["interval_m"], maxDistanceM),
		restM:           toNonNegative(m["rest_m"], maxDistanceM),
		restType:        strings.TrimSpace(toString(m["rest_type"])),
	}

	d.description = strings.TrimSpace(toString(m["description"]))
	d.hasDescription = d.description != ""

	if notes, ok := m["notes"]; ok && notes != nil {
		d.notes = strings.TrimSpace(toString(notes))
		d.hasNotes = true
	}

	if segments, ok := m["segments"].([]any); ok {
		d.hasSegments = true
		for _, s := range segments {
			sm, isMap := s.(map[string]any)
			if !isMap {
				continue
			}
			d.segments = append(d.segments, rawSegment{
				reps:      ptr.Deref(toCount(sm["reps"], maxCount), 1),
				distanceM: ptr.Deref(toNonNegative(sm["distance_m"], maxDistanceM), 0),
				recoveryM: ptr.Deref(toNonNegative(sm["recovery_m"], maxDistanceM), 0),
				pace:      toPace(sm["pace"]),
			})
		}
	}

	if exercises, ok := m["exercises"].([]any); ok {
		d.hasExercises = true
		for _, e := range exercises {
			em, isMap := e.(map[string]any)
			if !isMap {
				continue
			}
			d.exercises = append(d.exercises, parseRawExercise(em))
		}
	}

	return d
}

func parseRawExercise(m map[string]any) rawExercise {
	e := rawExercise{
		name:        strings.TrimSpace(toString(m["name"])),
		sets:        toCount(m["sets"], maxCount),
		reps:        toCount(m["reps"], maxCount),
		weightKg:    toPositive(m["weight_kg"], maxWeightKg),
		distanceM:   toCount(m["distance_m"], maxDistanceM),
		durationSec: toCount(m["duration_sec"], maxDurationMinutes*60), //nolint:mnd // seconds per minute
		pace:        toPace(m["pace"]),
		notes:       nil,
		libraryID:   nil,
	}
	if e.durationSec == nil {
		if minutes := toPositive(m["duration_min"], maxDurationMinutes); minutes != nil {
			sec := int(math.Round(*minutes * 60)) //nolint:mnd // seconds per minute
			e.durationSec = &sec
		}
	}
	if notes := strings.TrimSpace(toString(m["notes"])); notes != "" {
		e.notes = &notes
	}
	if id := toCount(m["exercise_id"], math.MaxInt32); id != nil {
		libraryID := int64(*id)
		e.libraryID = &libraryID
	}
	return e
}

// isStructured reports whether the day uses the structured field shape rather than a free-text description.
func (d rawDay) isStructured(naive DayType) bool {
	if d.warmupKm != nil || d.reps != nil || d.intervalM != nil || d.hasSegments || d.hasExercises || d.hasNotes {
		return true
	}
	if naive.isSimpleRun() && d.distanceKm != nil && !d.hasDescription {
		return true
	}
	// A bare rest day has nothing to reconcile.
	return naive == DayTypeRest && !d.hasDescription
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}

// Plausibility limits for generator numbers. Values outside them are treated as absent.
const (
	maxDistanceKm      = 1000
	maxDistanceM       = 100_000
	maxCount           = 1000
	maxDurationMinutes = 24 * 60
	maxWeightKg        = 500
	maxPaceSeconds     = 60 * 60
)

var leadingNumberRe = regexp.MustCompile(`^[-+]?\d+(?:[.,]\d+)?`)

// toFloat accepts JSON numbers and numeric strings such as "8,5" or "10 км". NaN and infinities are absent.
func toFloat(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		match := leadingNumberRe.FindString(strings.TrimSpace(n))
		if match == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.Replace(match, ",", ".", 1), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// toInt rounds toFloat to an integer. Values beyond the int32 range are absent.
func toInt(v any) *int {
	f := toFloat(v)
	if f == nil || math.Abs(*f) > math.MaxInt32 {
		return nil
	}
	i := int(math.Round(*f))
	return &i
}

// toCount is toInt restricted to 1..limit.
func toCount(v any, limit int) *int {
	i := toInt(v)
	if i == nil || *i < 1 || *i > limit {
		return nil
	}
	return i
}

// toPositive is toFloat restricted to (0, limit].
func toPositive(v any, limit float64) *float64 {
	f := toFloat(v)
	if f == nil || *f <= 0 || *f > limit {
		return nil
	}
	return f
}

// toNonNegative is toFloat restricted to [0, limit].
func toNonNegative(v any, limit float64) *float64 {
	f := toFloat(v)
	if f == nil || *f < 0 || *f > limit {
		return nil
	}
	return f
}

// toBool understands the truthy and falsy encodings generators tend to use. Anything else is absent.
func toBool(v any) *bool {
	var b bool
	switch x := v.(type) {
	case bool:
		b = x
	case float64:
		b = x != 0
	case int:
		b = x != 0
	case json.Number:
		b = x.String() != "0"
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1", "да", "key":
			b = true
		case "false", "no", "n", "0", "нет":
			b = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &b
}

var paceRe = regexp.MustCompile(`^(\d{1,2})\s*[:'.’]\s*(\d{2})`)

// toPace converts pace encodings to canonical M:SS. Numbers below 60 are minutes per km, larger ones seconds.
func toPace(v any) *string {
	var seconds int
	switch p := v.(type) {
	case string:
		s := strings.TrimSpace(p)
		if m := paceRe.FindStringSubmatch(s); m != nil {
			minutes, _ := strconv.Atoi(m[1])
			sec, _ := strconv.Atoi(m[2])
			if sec >= 60 { //nolint:mnd // seconds per minute
				return nil
			}
			seconds = minutes*60 + sec //nolint:mnd // seconds per minute
			break
		}
		f := toFloat(s)
		if f == nil || strings.ContainsAny(s, ":'") {
			return nil
		}
		seconds = paceNumberSeconds(*f)
	default:
		f := toFloat(v)
		if f == nil {
			return nil
		}
		seconds = paceNumberSeconds(*f)
	}
	if seconds <= 0 {
		return nil
	}
	formatted := formatPace(seconds)
	return &formatted
}

func paceNumberSeconds(f float64) int {
	if f <= 0 || f > maxPaceSeconds {
		return 0
	}
	if f < 60 { //nolint:mnd // treat as minutes per km
		return int(math.Round(f * 60)) //nolint:mnd // seconds per minute
	}
	return int(math.Round(f))
}

func formatPace(seconds int) string {
	return strconv.Itoa(seconds/60) + ":" + twoDigits(seconds%60) //nolint:mnd // seconds per minute
}

func twoDigits(n int) string {
	if n < 10 { //nolint:mnd // pad single digits
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// paceSeconds returns the seconds per km of a canonical M:SS pace.
func paceSeconds(pace string) (int, bool) {
	minutes, seconds, ok := strings.Cut(pace, ":")
	if !ok {
		return 0, false
	}
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0, false
	}
	s, err := strconv.Atoi(seconds)
	if err != nil {
		return 0, false
	}
	return m*60 + s, true //nolint:mnd // seconds per minute
}

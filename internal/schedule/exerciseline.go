package schedule

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	bulletRe       = regexp.MustCompile(`^(?:[-•*]\s+|\d{1,2}[.)]\s+)`)
	setsRepsRe     = regexp.MustCompile(`^(\d+)\s*[×xх*]\s*(\d+)(?:\s*,?\s*(\d+(?:[.,]\d+)?)\s*кг)?`)
	minutesRe      = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*мин`)
	secondsRe      = regexp.MustCompile(`^(\d+)\s*сек`)
	setsMetersRe   = regexp.MustCompile(`^(\d+)\s*[×xх*]\s*(\d+)\s*м(?:$|[^а-яёa-z])`)
	metersRe       = regexp.MustCompile(`^(\d+)\s*(?:м|метр\S*)(?:$|[^а-яёa-z])`)
	kilometersRe   = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*км`)
	circuitRe      = regexp.MustCompile(`^([^:]+):\s*(.+?)\s*\(\s*(\d+)\s+подход\S*\s+по\s+(\d+)\s+повтор\S*\s*\)\s*\.?$`)
	circuitSplitRe = regexp.MustCompile(`\s*,\s*|\s+и\s+`)
)

// parseExerciseLines turns free text with one exercise per line into exercises of the given category.
//
// Lines look like "Приседания — 3×10, 20 кг" for OFP and "Бег с высоким подниманием бедра — 50 м" for SBU.
// Parsing never fails: details that cannot be understood are kept as notes and lines without a dash become
// exercises with only a name.
func parseExerciseLines(text string, kind Category) []Exercise {
	var lines []string
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(bulletRe.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return []Exercise{}
	}

	if len(lines) == 1 && kind == CategoryOFP {
		if _, _, found := splitOnDash(lines[0]); !found {
			if circuit := parseCircuit(lines[0]); len(circuit) > 0 {
				return circuit
			}
		}
	}

	exercises := make([]Exercise, 0, len(lines))
	for i, line := range lines {
		e := Exercise{Category: kind, OrderIndex: i} //nolint:exhaustruct // remaining fields are optional.
		name, details, found := splitOnDash(line)
		if !found {
			e.Name = line
			exercises = append(exercises, e)
			continue
		}
		e.Name = name
		if e.Name == "" {
			e.Name = details
			details = ""
		}
		if details != "" {
			if kind == CategorySBU {
				parseDrillDetails(&e, details)
			} else {
				parseStrengthDetails(&e, details)
			}
		}
		exercises = append(exercises, e)
	}
	return exercises
}

// splitOnDash splits at the first em or en dash, or at a spaced hyphen when the line has no dashes.
func splitOnDash(line string) (string, string, bool) {
	if i := strings.IndexAny(line, "—–"); i >= 0 {
		_, size := utf8.DecodeRuneInString(line[i:])
		return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+size:]), true
	}
	if name, details, found := strings.Cut(line, " - "); found {
		return strings.TrimSpace(name), strings.TrimSpace(details), true
	}
	return "", "", false
}

func parseStrengthDetails(e *Exercise, details string) {
	if m := setsRepsRe.FindStringSubmatch(details); m != nil {
		e.Sets = atoiRef(m[1])
		e.Reps = atoiRef(m[2])
		if m[3] != "" {
			e.WeightKg = toPositive(m[3], maxWeightKg)
		}
		return
	}
	if m := minutesRe.FindStringSubmatch(details); m != nil {
		if minutes := toPositive(m[1], maxDurationMinutes); minutes != nil {
			sec := int(math.Round(*minutes * 60)) //nolint:mnd // seconds per minute
			e.DurationSec = &sec
			return
		}
	}
	if m := secondsRe.FindStringSubmatch(details); m != nil {
		e.DurationSec = atoiRef(m[1])
		return
	}
	e.Notes = &details
}

func parseDrillDetails(e *Exercise, details string) {
	if m := setsMetersRe.FindStringSubmatch(details); m != nil {
		e.Sets = atoiRef(m[1])
		e.DistanceM = atoiRef(m[2])
		return
	}
	if m := kilometersRe.FindStringSubmatch(details); m != nil {
		if km := toPositive(m[1], maxDistanceKm); km != nil {
			meters := int(math.Round(*km * 1000)) //nolint:mnd // meters per km
			e.DistanceM = &meters
			return
		}
	}
	if m := metersRe.FindStringSubmatch(details); m != nil {
		e.DistanceM = atoiRef(m[1])
		return
	}
	e.Notes = &details
}

// parseCircuit explodes "Круговая: приседания, отжимания и выпады (3 подхода по 12 повторений)" into one
// exercise per name sharing the sets and reps.
func parseCircuit(line string) []Exercise {
	m := circuitRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	var exercises []Exercise
	for _, name := range circuitSplitRe.Split(m[2], -1) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		exercises = append(exercises, Exercise{ //nolint:exhaustruct // remaining fields are optional.
			Category:   CategoryOFP,
			Name:       name,
			Sets:       atoiRef(m[3]),
			Reps:       atoiRef(m[4]),
			OrderIndex: len(exercises),
		})
	}
	return exercises
}

func atoiRef(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil || n > math.MaxInt32 {
		return nil
	}
	return &n
}

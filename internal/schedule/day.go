package schedule

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/myrjola/runplan/internal/ptr"
)

// typeSynonyms maps generator type tokens to canonical day types after lowercasing and replacing spaces and
// hyphens with underscores.
//
//nolint:gochecknoglobals // lookup table.
var typeSynonyms = map[string]DayType{
	"rest": DayTypeRest, "rest_day": DayTypeRest, "day_off": DayTypeRest, "off": DayTypeRest, "отдых": DayTypeRest,
	"easy": DayTypeEasy, "easy_run": DayTypeEasy, "recovery": DayTypeEasy, "recovery_run": DayTypeEasy,
	"jog":  DayTypeEasy,
	"long": DayTypeLong, "long_run": DayTypeLong, "marathon": DayTypeLong, "half_marathon": DayTypeLong,
	"tempo": DayTypeTempo, "tempo_run": DayTypeTempo, "threshold": DayTypeTempo,
	"interval": DayTypeInterval, "intervals": DayTypeInterval, "repeats": DayTypeInterval,
	"fartlek": DayTypeFartlek,
	"race":    DayTypeRace, "competition": DayTypeRace,
	"control": DayTypeControl, "control_run": DayTypeControl, "time_trial": DayTypeControl,
	"other": DayTypeOther, "ofp": DayTypeOther, "strength": DayTypeOther, "gym": DayTypeOther,
	"sbu": DayTypeSBU, "drills": DayTypeSBU,
	"free": DayTypeFree, "cross": DayTypeFree, "cross_training": DayTypeFree,
}

// resolveType maps a raw type token to its canonical type. Unknown tokens become rest.
func resolveType(token string) DayType {
	key := strings.ToLower(strings.TrimSpace(token))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if t, ok := typeSynonyms[key]; ok {
		return t
	}
	return DayTypeRest
}

// runSignalRe finds running content in free text: distances, paces and words for running.
var runSignalRe = regexp.MustCompile(
	`(?i)\d+(?:[.,]\d+)?\s*(?:км|km)|\d+\s*м(?:$|[^а-яёa-z])|\d{1,2}:\d{2}\s*(?:/\s*км|мин/км)|темп|pace|бег|пробежк|трусц|jog|run`,
)

// negatedRunRe matches phrases such as "без бега" that mention running only to exclude it.
var negatedRunRe = regexp.MustCompile(`(?i)без\s+(?:бег|пробеж)[а-яё]*`)

//nolint:gochecknoglobals // lookup table.
var runLabels = map[DayType]string{
	DayTypeEasy:     "Лёгкий бег",
	DayTypeLong:     "Длительный бег",
	DayTypeTempo:    "Темповый бег",
	DayTypeInterval: "Интервалы",
	DayTypeFartlek:  "Фартлек",
	DayTypeRace:     "Забег",
	DayTypeControl:  "Контрольный забег",
}

//nolint:gochecknoglobals // lookup table.
var restTypeLabels = map[string]string{
	"jog":  "трусцой",
	"walk": "шагом",
	"rest": "стоя",
	"stand": "стоя",
}

// dayContent is the shape-independent result of step 2 that the final steps operate on.
type dayContent struct {
	typ             DayType
	description     string
	distanceKm      *float64
	durationMinutes *int
	pace            *string
	exercises       []Exercise
}

// normalizeDay converts one raw day into a canonical day. It never fails: malformed values degrade to absent.
func normalizeDay(raw rawDay, date string, dayOfWeek int, defaults Defaults) Day {
	typ := resolveType(raw.typeToken)
	structured := raw.isStructured(typ)

	var c dayContent
	if structured {
		c = structuredContent(raw, typ, defaults)
	} else {
		c = legacyContent(raw, typ)
	}

	if c.typ == DayTypeRest {
		if hasRunSignal(c, !structured) {
			if structured {
				c = simpleRunContent(raw, DayTypeEasy)
			} else {
				c.typ = DayTypeEasy
			}
		} else {
			c = dayContent{typ: DayTypeRest, description: "", distanceKm: nil, durationMinutes: nil, pace: nil,
				exercises: nil}
		}
	}

	isKey := c.typ.isKeyByDefault()
	if raw.isKeyWorkout != nil {
		isKey = *raw.isKeyWorkout
	}

	return Day{
		ID:              0,
		Date:            date,
		DayOfWeek:       dayOfWeek,
		Type:            c.typ,
		Description:     c.description,
		DistanceKm:      c.distanceKm,
		DurationMinutes: c.durationMinutes,
		Pace:            c.pace,
		IsKeyWorkout:    isKey,
		Exercises:       assembleExercises(c),
	}
}

func hasRunSignal(c dayContent, inspectText bool) bool {
	if c.distanceKm != nil && *c.distanceKm > 0 {
		return true
	}
	return inspectText && runSignalRe.MatchString(negatedRunRe.ReplaceAllString(c.description, ""))
}

// assembleExercises synthesises the run of running days and orders the exercises of OFP and SBU days.
func assembleExercises(c dayContent) []Exercise {
	switch {
	case c.typ.IsRunning() && c.distanceKm != nil && *c.distanceKm > 0:
		run := Exercise{ //nolint:exhaustruct // strength fields do not apply to runs.
			Category:  CategoryRun,
			Name:      runLabels[c.typ],
			DistanceM: ptr.Ref(int(math.Round(*c.distanceKm * 1000))), //nolint:mnd // meters per km
			Pace:      c.pace,
		}
		if c.durationMinutes != nil {
			run.DurationSec = ptr.Ref(*c.durationMinutes * 60) //nolint:mnd // seconds per minute
		}
		if c.description != "" {
			run.Notes = ptr.Ref(c.description)
		}
		return []Exercise{run}
	case c.typ == DayTypeOther || c.typ == DayTypeSBU:
		exercises := make([]Exercise, len(c.exercises))
		for i, e := range c.exercises {
			e.OrderIndex = i
			exercises[i] = e
		}
		return exercises
	default:
		return []Exercise{}
	}
}

func legacyContent(raw rawDay, typ DayType) dayContent {
	c := dayContent{
		typ:             typ,
		description:     raw.description,
		distanceKm:      raw.distanceKm,
		durationMinutes: raw.durationMinutes,
		pace:            raw.pace,
		exercises:       nil,
	}
	if c.description == "" && c.distanceKm != nil && *c.distanceKm > 0 {
		c.description = "Бег " + formatKm(*c.distanceKm) + " км"
		if c.pace != nil {
			c.description += " в темпе " + *c.pace
		}
	}
	switch typ { //nolint:exhaustive // only OFP and SBU days carry parsed exercises.
	case DayTypeOther:
		c.exercises = parseExerciseLines(c.description, CategoryOFP)
	case DayTypeSBU:
		c.exercises = parseExerciseLines(c.description, CategorySBU)
	}
	return c
}

func structuredContent(raw rawDay, typ DayType, defaults Defaults) dayContent {
	switch typ {
	case DayTypeEasy, DayTypeLong, DayTypeTempo, DayTypeRace, DayTypeControl:
		return simpleRunContent(raw, typ)
	case DayTypeInterval:
		return intervalContent(raw, defaults)
	case DayTypeFartlek:
		return fartlekContent(raw, defaults)
	case DayTypeOther:
		return exerciseListContent(raw, typ, CategoryOFP)
	case DayTypeSBU:
		return exerciseListContent(raw, typ, CategorySBU)
	case DayTypeFree, DayTypeRest:
		return dayContent{
			typ:             typ,
			description:     raw.notes,
			distanceKm:      raw.distanceKm,
			durationMinutes: raw.durationMinutes,
			pace:            raw.pace,
			exercises:       nil,
		}
	}
	return dayContent{typ: DayTypeRest} //nolint:exhaustruct // unreachable for canonical types.
}

func simpleRunContent(raw rawDay, typ DayType) dayContent {
	c := dayContent{
		typ:             typ,
		description:     "",
		distanceKm:      raw.distanceKm,
		durationMinutes: raw.durationMinutes,
		pace:            raw.pace,
		exercises:       nil,
	}
	if c.durationMinutes == nil && c.distanceKm != nil && c.pace != nil {
		if seconds, ok := paceSeconds(*c.pace); ok {
			c.durationMinutes = ptr.Ref(int(math.Round(*c.distanceKm * float64(seconds) / 60))) //nolint:mnd // minutes
		}
	}

	var b strings.Builder
	b.WriteString(runLabels[typ])
	if c.distanceKm != nil {
		b.WriteString(": " + formatKm(*c.distanceKm) + " км")
		if c.pace != nil {
			b.WriteString(", темп " + *c.pace)
		}
	} else if c.pace != nil {
		b.WriteString(": темп " + *c.pace)
	}
	c.description = joinLines(b.String(), raw.notes)
	return c
}

func intervalContent(raw rawDay, defaults Defaults) dayContent {
	warmup := ptr.Deref(raw.warmupKm, defaults.WarmupKm)
	cooldown := ptr.Deref(raw.cooldownKm, defaults.CooldownKm)
	reps := ptr.Deref(raw.reps, 0)
	intervalM := ptr.Deref(raw.intervalM, 0)
	restM := ptr.Deref(raw.restM, 0)

	distance := roundTo(warmup+float64(reps)*(intervalM+restM)/1000+cooldown, 2) //nolint:mnd // meters per km

	lines := []string{warmupLine(warmup)}
	if reps > 0 && intervalM > 0 {
		work := strconv.Itoa(reps) + " × " + formatMeters(intervalM)
		if raw.pace != nil {
			work += " в темпе " + *raw.pace
		}
		if restM > 0 {
			work += ", отдых " + formatMeters(restM)
			if label := restTypeLabel(raw.restType); label != "" {
				work += " " + label
			}
		}
		lines = append(lines, work)
	}
	lines = append(lines, cooldownLine(cooldown), raw.notes)

	return dayContent{
		typ:             DayTypeInterval,
		description:     joinLines(lines...),
		distanceKm:      positiveOrNil(distance),
		durationMinutes: raw.durationMinutes,
		pace:            nil,
		exercises:       nil,
	}
}

func fartlekContent(raw rawDay, defaults Defaults) dayContent {
	warmup := ptr.Deref(raw.warmupKm, defaults.WarmupKm)
	cooldown := ptr.Deref(raw.cooldownKm, defaults.CooldownKm)

	distance := warmup + cooldown
	lines := []string{warmupLine(warmup)}
	for _, s := range raw.segments {
		distance += float64(s.reps) * (s.distanceM + s.recoveryM) / 1000 //nolint:mnd // meters per km
		line := strconv.Itoa(s.reps) + " × " + formatMeters(s.distanceM)
		if s.pace != nil {
			line += " в темпе " + *s.pace
		}
		if s.recoveryM > 0 {
			line += " / " + formatMeters(s.recoveryM) + " восстановление"
		}
		lines = append(lines, line)
	}
	lines = append(lines, cooldownLine(cooldown), raw.notes)

	return dayContent{
		typ:             DayTypeFartlek,
		description:     joinLines(lines...),
		distanceKm:      positiveOrNil(roundTo(distance, 2)), //nolint:mnd // two decimals
		durationMinutes: raw.durationMinutes,
		pace:            raw.pace,
		exercises:       nil,
	}
}

func exerciseListContent(raw rawDay, typ DayType, category Category) dayContent {
	exercises := make([]Exercise, 0, len(raw.exercises))
	lines := make([]string, 0, len(raw.exercises)+1)
	for _, re := range raw.exercises {
		if re.name == "" {
			continue
		}
		e := Exercise{
			Category:    category,
			Name:        re.name,
			Sets:        re.sets,
			Reps:        re.reps,
			WeightKg:    re.weightKg,
			DistanceM:   re.distanceM,
			DurationSec: re.durationSec,
			Pace:        re.pace,
			Notes:       re.notes,
			OrderIndex:  len(exercises),
			LibraryID:   re.libraryID,
		}
		exercises = append(exercises, e)
		lines = append(lines, exerciseLine(e))
	}
	lines = append(lines, raw.notes)
	return dayContent{
		typ:             typ,
		description:     joinLines(lines...),
		distanceKm:      raw.distanceKm,
		durationMinutes: raw.durationMinutes,
		pace:            nil,
		exercises:       exercises,
	}
}

// exerciseLine formats e in the grammar parseExerciseLines reads.
func exerciseLine(e Exercise) string {
	var details string
	switch {
	case e.Sets != nil && e.Reps != nil:
		details = strconv.Itoa(*e.Sets) + "×" + strconv.Itoa(*e.Reps)
		if e.WeightKg != nil {
			details += ", " + formatKm(*e.WeightKg) + " кг"
		}
	case e.Sets != nil && e.DistanceM != nil:
		details = strconv.Itoa(*e.Sets) + "×" + strconv.Itoa(*e.DistanceM) + " м"
	case e.DistanceM != nil:
		details = strconv.Itoa(*e.DistanceM) + " м"
	case e.DurationSec != nil && *e.DurationSec%60 == 0:
		details = strconv.Itoa(*e.DurationSec/60) + " мин" //nolint:mnd // seconds per minute
	case e.DurationSec != nil:
		details = strconv.Itoa(*e.DurationSec) + " сек"
	case e.Notes != nil:
		details = *e.Notes
	}
	if details == "" {
		return e.Name
	}
	return e.Name + " — " + details
}

func warmupLine(km float64) string {
	return "Разминка " + formatKm(km) + " км"
}

func cooldownLine(km float64) string {
	return "Заминка " + formatKm(km) + " км"
}

func restTypeLabel(restType string) string {
	if label, ok := restTypeLabels[strings.ToLower(restType)]; ok {
		return label
	}
	return restType
}

func joinLines(lines ...string) string {
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func positiveOrNil(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}

// formatKm formats a distance or weight without trailing zeros, e.g. 10, 8.5 or 1.25.
func formatKm(v float64) string {
	return strconv.FormatFloat(roundTo(v, 2), 'f', -1, 64) //nolint:mnd // two decimals
}

func formatMeters(m float64) string {
	return strconv.FormatFloat(math.Round(m), 'f', -1, 64) + " м"
}
